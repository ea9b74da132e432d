package e2e

import (
	"context"
	"fmt"
	"sync"
	"sync/atomic"
	"testing"
	"time"

	"github.com/jackc/pgx/v5/pgxpool"
	"github.com/testcontainers/testcontainers-go/modules/postgres"

	"github.com/danpung/yeyakbot/internal/datalayer"
	"github.com/danpung/yeyakbot/internal/kst"
	"github.com/danpung/yeyakbot/internal/repository"
)

var seedOnce sync.Once

var snowflakeCounter uint64 = 1e17

// NextSnowflake returns a fresh Discord-shaped numeric identifier.
func NextSnowflake() int64 {
	return int64(atomic.AddUint64(&snowflakeCounter, 1))
}

// SeedGlobalNoise fills the store with far-future reservations owned by
// other users, so tests run against a database that is not conveniently
// empty.
func SeedGlobalNoise(t *testing.T, repo *repository.PostgresReservationRepository) {
	t.Helper()
	seedOnce.Do(func() {
		farFuture := time.Date(2099, 1, 1, 0, 0, 0, 0, kst.Location)
		for i := range 100 {
			reservation := repository.Reservation{
				GuildID:   NextSnowflake(),
				ChannelID: NextSnowflake(),
				UserID:    NextSnowflake(),
				SendAt:    farFuture.Add(time.Duration(i) * time.Minute),
				Content:   fmt.Sprintf("noise-reservation-%d", i),
			}

			if _, err := repo.Create(t.Context(), reservation); err != nil {
				t.Fatalf("failed to create noise reservation: %v", err)
			}
		}
	})
}

var (
	once              sync.Once
	postgresContainer *postgres.PostgresContainer
	connStr           string
	startErr          error
	pool              *pgxpool.Pool
	wg                sync.WaitGroup
)

// UsePostgres signals that the test is using Postgres as its database.
// This will either provision or reuse a Postgres container for the test.
// Do not expect a clean state in the database; it is shared across tests
// to simulate real-world usage.
func UsePostgres(t *testing.T) string {
	t.Helper()

	once.Do(func() {
		ctx := context.Background()
		postgresContainer, startErr = postgres.Run(
			ctx,
			"postgres",
			postgres.WithDatabase("yeyakbot"),
			postgres.WithUsername("user"),
			postgres.WithPassword("password"),
			postgres.BasicWaitStrategies(),
		)
		if startErr != nil {
			return
		}
		connStr, startErr = postgresContainer.ConnectionString(ctx)
		if startErr != nil {
			return
		}

		pool, startErr = pgxpool.New(ctx, connStr)
		if startErr != nil {
			return
		}
		defer pool.Close()

		startErr = datalayer.MigratePostgres(pool)
	})

	if startErr != nil {
		t.Fatalf("failed to start postgres container: %v", startErr)
	}
	wg.Add(1)
	t.Cleanup(wg.Done)

	return connStr
}

// GetRepository creates a new PostgresReservationRepository for testing.
// It uses the provided connection string to connect to the database.
// It performs no modifications or migrations on the database schema.
func GetRepository(t *testing.T, connStr string) *repository.PostgresReservationRepository {
	t.Helper()
	pool, err := pgxpool.New(t.Context(), connStr)
	if err != nil {
		t.Fatalf("failed to create postgres pool: %v", err)
	}

	t.Cleanup(pool.Close)
	return repository.NewPostgresReservationRepository(pool)
}

func TerminatePostgresForE2E() {
	wg.Wait()
	if postgresContainer != nil {
		err := postgresContainer.Terminate(context.Background())
		if err != nil {
			fmt.Printf("failed to terminate postgres container: %v", err)
		}
	}
}
