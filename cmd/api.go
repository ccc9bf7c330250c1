package cmd

import (
	"context"
	"fmt"

	"github.com/rs/zerolog/log"
	"github.com/urfave/cli/v2"

	"github.com/voiceqa/internal/api"
	"github.com/voiceqa/internal/api/auth"
	"github.com/voiceqa/internal/comments"
	"github.com/voiceqa/internal/config"
	"github.com/voiceqa/internal/database"
	"github.com/voiceqa/internal/logging"
	"github.com/voiceqa/internal/notify"
	"github.com/voiceqa/internal/users"
)

// APICommand returns the CLI command for starting the API server
func APICommand() *cli.Command {
	return &cli.Command{
		Name:  "api",
		Usage: "Start the VoiceQA comment API server",
		Flags: []cli.Flag{
			&cli.IntFlag{
				Name:    "port",
				Aliases: []string{"p"},
				Usage:   "Port for the API server (overrides config)",
			},
		},
		Action: runAPI,
	}
}

func runAPI(c *cli.Context) error {
	cfg, err := config.LoadConfig(c.String("config"))
	if err != nil {
		return fmt.Errorf("failed to load config: %w", err)
	}
	if err := config.Validate(cfg); err != nil {
		return fmt.Errorf("invalid configuration: %w", err)
	}
	if c.IsSet("port") {
		cfg.Server.Port = c.Int("port")
	}

	logging.Setup(cfg.Log.Level, cfg.Log.Pretty)

	db, err := database.NewDB(cfg.Database.URL)
	if err != nil {
		return fmt.Errorf("failed to connect to database: %w", err)
	}
	defer db.Close()

	if err := database.Migrate(db); err != nil {
		return fmt.Errorf("failed to migrate database: %w", err)
	}

	dbURL, err := database.ResolveURL(cfg.Database.URL)
	if err != nil {
		return fmt.Errorf("failed to resolve database URL: %w", err)
	}

	queue, err := notify.NewQueue(c.Context, dbURL)
	if err != nil {
		return fmt.Errorf("failed to create notification queue: %w", err)
	}
	if err := queue.Start(c.Context); err != nil {
		return fmt.Errorf("failed to start notification queue: %w", err)
	}
	defer func() {
		if err := queue.Stop(context.Background()); err != nil {
			log.Warn().Err(err).Msg("failed to stop notification queue cleanly")
		}
	}()

	userService := users.NewService(db)
	tokenService := auth.NewTokenService(cfg.Auth.JWTSecret)
	storage := comments.NewStorage(db)
	handlers := comments.NewHandlers(storage, userService, queue, cfg.Mentions.MaxSuggestions)

	log.Info().Int("port", cfg.Server.Port).Msg("starting API server")
	server := api.NewServer(cfg.Server.Port, userService, tokenService, handlers)
	return server.Start()
}
