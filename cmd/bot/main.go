package main

import (
	"context"
	"flag"
	"fmt"
	"log"
	"log/slog"
	"os"
	"os/signal"

	"github.com/danpung/yeyakbot/internal/config"
	"github.com/danpung/yeyakbot/internal/datalayer"
	"github.com/danpung/yeyakbot/internal/dispatcher"
	"github.com/danpung/yeyakbot/internal/handler"
	"github.com/danpung/yeyakbot/internal/repository"
)

var dryRun = flag.Bool("dry-run", false, "Log due reservations instead of sending them to Discord")

func runBotForever() error {
	flag.Parse()

	if err := config.LoadEnv(); err != nil {
		if os.IsNotExist(err) {
			slog.Warn("No .env file found, continuing without it")
		} else {
			return fmt.Errorf("failed to load .env file: %w", err)
		}
	}

	pool, err := datalayer.NewPostgresPoolFromEnv()
	if err != nil {
		return fmt.Errorf("failed to create postgres pool: %w", err)
	}

	if err := datalayer.MigratePostgres(pool); err != nil {
		return fmt.Errorf("failed to migrate postgres: %w", err)
	}

	discordConfig, err := config.NewDiscordConfigFromEnv()
	if err != nil {
		return fmt.Errorf("failed to load config: %w", err)
	}

	repo := repository.NewPostgresReservationRepository(pool)

	session, err := handler.NewSession(discordConfig.Token, handler.Handlers{
		Ready:             handler.ReadyLog,
		InteractionCreate: handler.MakeInteractionCreateHandler(repo),
	})
	if err != nil {
		return fmt.Errorf("failed to create session: %w", err)
	}

	if err := session.Open(); err != nil {
		return fmt.Errorf("failed to open session: %w", err)
	}
	defer func() {
		if err := session.Close(); err != nil {
			slog.Warn("failed to close session", "error", err)
		}
	}()

	// An empty guild ID registers the commands globally.
	if err := handler.EstablishCommands(session, discordConfig.GuildID); err != nil {
		return fmt.Errorf("failed to establish commands: %w", err)
	}

	var sender dispatcher.Sender = dispatcher.NewDiscordSender(session)
	if *dryRun {
		sender = &dispatcher.PrintingSender{}
	}

	ctx, cancel := context.WithCancel(context.Background())
	defer cancel()
	go dispatcher.New(repo, sender).Run(ctx)

	stop := make(chan os.Signal, 1)
	signal.Notify(stop, os.Interrupt)

	<-stop
	return nil
}

func main() {
	if err := runBotForever(); err != nil {
		log.Fatalf("failed to run bot: %v", err)
	}
}
