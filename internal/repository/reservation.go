package repository

import (
	"context"
	"fmt"
	"time"

	"github.com/jackc/pgx/v5/pgxpool"

	"github.com/danpung/yeyakbot/internal/kst"
)

// Reservation is a message waiting to be delivered. A row in the store is
// the sole truth of "pending": once the row is gone the reservation was
// either delivered or cancelled, and the store no longer distinguishes which.
type Reservation struct {
	ID        int64
	GuildID   int64
	ChannelID int64
	UserID    int64
	SendAt    time.Time
	Content   string
}

// ReservationStore is the capability surface shared by the command handlers
// and the dispatcher. Implementations must serialize mutations so that a
// completed Create is visible to any later List call, and so that at most
// one of two racing deletes of the same id reports success.
type ReservationStore interface {
	Create(ctx context.Context, r Reservation) (int64, error)
	ListPending(ctx context.Context) ([]Reservation, error)
	ListByOwner(ctx context.Context, userID int64) ([]Reservation, error)
	CancelByOwner(ctx context.Context, id, userID int64) (bool, error)
	DeleteByID(ctx context.Context, id int64) error
}

type PostgresReservationRepository struct {
	db *pgxpool.Pool
}

func NewPostgresReservationRepository(db *pgxpool.Pool) *PostgresReservationRepository {
	return &PostgresReservationRepository{db: db}
}

// Create persists a reservation and returns its store-assigned id. SendAt is
// written in the fixed text layout, truncated to the second, interpreted in
// Korea Standard Time.
func (r *PostgresReservationRepository) Create(ctx context.Context, reservation Reservation) (int64, error) {
	const query = `
	INSERT INTO reservation (guild_id, channel_id, user_id, send_time, content)
	VALUES ($1, $2, $3, $4, $5)
	RETURNING id
	`

	var id int64
	err := r.db.QueryRow(
		ctx,
		query,
		reservation.GuildID,
		reservation.ChannelID,
		reservation.UserID,
		kst.Format(reservation.SendAt),
		reservation.Content,
	).Scan(&id)
	if err != nil {
		return 0, fmt.Errorf("failed to insert reservation: %w", err)
	}

	return id, nil
}

const selectColumns = `id, guild_id, channel_id, user_id, send_time, content`

// ListPending returns every pending reservation across all guilds and
// owners. Used by the dispatcher.
func (r *PostgresReservationRepository) ListPending(ctx context.Context) ([]Reservation, error) {
	const query = `SELECT ` + selectColumns + ` FROM reservation ORDER BY id`

	rows, err := r.db.Query(ctx, query)
	if err != nil {
		return nil, fmt.Errorf("failed to query reservations: %w", err)
	}
	defer rows.Close()

	return scanReservations(rows)
}

// ListByOwner returns one user's pending reservations in insertion order.
func (r *PostgresReservationRepository) ListByOwner(ctx context.Context, userID int64) ([]Reservation, error) {
	const query = `SELECT ` + selectColumns + ` FROM reservation WHERE user_id = $1 ORDER BY id`

	rows, err := r.db.Query(ctx, query, userID)
	if err != nil {
		return nil, fmt.Errorf("failed to query reservations for user %d: %w", userID, err)
	}
	defer rows.Close()

	return scanReservations(rows)
}

// CancelByOwner deletes the reservation only if it belongs to userID and
// reports whether a row was deleted. The single DELETE keeps the
// check-ownership-then-delete step atomic against a racing dispatcher.
func (r *PostgresReservationRepository) CancelByOwner(ctx context.Context, id, userID int64) (bool, error) {
	const query = `DELETE FROM reservation WHERE id = $1 AND user_id = $2`

	tag, err := r.db.Exec(ctx, query, id, userID)
	if err != nil {
		return false, fmt.Errorf("failed to cancel reservation %d: %w", id, err)
	}

	return tag.RowsAffected() > 0, nil
}

// DeleteByID removes a reservation unconditionally. Deleting an id that no
// longer exists is a no-op.
func (r *PostgresReservationRepository) DeleteByID(ctx context.Context, id int64) error {
	const query = `DELETE FROM reservation WHERE id = $1`

	if _, err := r.db.Exec(ctx, query, id); err != nil {
		return fmt.Errorf("failed to delete reservation %d: %w", id, err)
	}
	return nil
}

type rowScanner interface {
	Next() bool
	Scan(dest ...any) error
	Err() error
}

func scanReservations(rows rowScanner) ([]Reservation, error) {
	var reservations []Reservation
	for rows.Next() {
		var (
			reservation Reservation
			sendTime    string
		)
		if err := rows.Scan(
			&reservation.ID,
			&reservation.GuildID,
			&reservation.ChannelID,
			&reservation.UserID,
			&sendTime,
			&reservation.Content,
		); err != nil {
			return nil, fmt.Errorf("failed to scan reservation row: %w", err)
		}

		sendAt, err := kst.Parse(sendTime)
		if err != nil {
			return nil, fmt.Errorf("failed to parse send_time %q: %w", sendTime, err)
		}
		reservation.SendAt = sendAt

		reservations = append(reservations, reservation)
	}
	if err := rows.Err(); err != nil {
		return nil, fmt.Errorf("failed to read reservation rows: %w", err)
	}

	return reservations, nil
}

var _ ReservationStore = (*PostgresReservationRepository)(nil)
