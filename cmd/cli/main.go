package main

import (
	"context"
	"fmt"
	"log"
	"os"
	"strconv"

	"github.com/urfave/cli/v2"

	"github.com/danpung/yeyakbot/internal/config"
	"github.com/danpung/yeyakbot/internal/datalayer"
	"github.com/danpung/yeyakbot/internal/kst"
	"github.com/danpung/yeyakbot/internal/repository"
)

func main() {
	if err := config.LoadEnv(); err != nil && !os.IsNotExist(err) {
		log.Fatalf("Failed to load .env file: %v", err)
	}

	pool, err := datalayer.NewPostgresPoolFromEnv()
	if err != nil {
		log.Fatalf("Failed to create postgres pool: %v", err)
	}
	if err := datalayer.MigratePostgres(pool); err != nil {
		log.Fatalf("Failed to migrate postgres: %v", err)
	}
	repo := repository.NewPostgresReservationRepository(pool)

	app := &cli.App{
		Name:        "yeyakbot-cli",
		Description: "Operator tool for the reservation store. Talks to the database directly, no Discord involved.",
		Commands: []*cli.Command{
			{
				Name:  "list",
				Usage: "List every pending reservation",
				Action: func(c *cli.Context) error {
					reservations, err := repo.ListPending(context.Background())
					if err != nil {
						return fmt.Errorf("failed to list reservations: %w", err)
					}
					if len(reservations) == 0 {
						fmt.Println("no pending reservations")
						return nil
					}
					for _, r := range reservations {
						fmt.Printf(
							"id=%d guild=%d channel=%d user=%d send_at=%q content=%q\n",
							r.ID, r.GuildID, r.ChannelID, r.UserID, kst.Format(r.SendAt), r.Content,
						)
					}
					return nil
				},
			},
			{
				Name:      "delete",
				Usage:     "Delete a reservation by id, regardless of owner",
				ArgsUsage: "<id>",
				Action: func(c *cli.Context) error {
					if c.NArg() != 1 {
						return fmt.Errorf("expected exactly one argument: the reservation id")
					}
					id, err := strconv.ParseInt(c.Args().First(), 10, 64)
					if err != nil {
						return fmt.Errorf("invalid reservation id %q: %w", c.Args().First(), err)
					}
					if err := repo.DeleteByID(context.Background(), id); err != nil {
						return err
					}
					fmt.Printf("deleted reservation %d (no-op if it did not exist)\n", id)
					return nil
				},
			},
			{
				Name:  "purge-due",
				Usage: "Delete every reservation that is already due, without sending it",
				Action: func(c *cli.Context) error {
					ctx := context.Background()
					reservations, err := repo.ListPending(ctx)
					if err != nil {
						return fmt.Errorf("failed to list reservations: %w", err)
					}
					now := kst.Now()
					purged := 0
					for _, r := range reservations {
						if now.Before(r.SendAt) {
							continue
						}
						if err := repo.DeleteByID(ctx, r.ID); err != nil {
							return fmt.Errorf("failed to delete reservation %d: %w", r.ID, err)
						}
						purged++
					}
					fmt.Printf("purged %d due reservation(s)\n", purged)
					return nil
				},
			},
		},
	}

	if err := app.Run(os.Args); err != nil {
		log.Fatalf("Command failed: %v", err)
	}
}
