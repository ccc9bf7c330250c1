package cmd

import (
	"fmt"

	"github.com/google/uuid"
	"github.com/urfave/cli/v2"

	"github.com/voiceqa/internal/config"
	"github.com/voiceqa/internal/database"
	"github.com/voiceqa/internal/users"
)

// UserCommand returns the user administration command
func UserCommand() *cli.Command {
	return &cli.Command{
		Name:  "user",
		Usage: "Manage users",
		Subcommands: []*cli.Command{
			{
				Name:  "create",
				Usage: "Create a user account",
				Flags: []cli.Flag{
					&cli.StringFlag{Name: "email", Usage: "Email address", Required: true},
					&cli.StringFlag{Name: "name", Usage: "Display name", Required: true},
					&cli.StringFlag{Name: "password", Usage: "Password", Required: true},
					&cli.StringFlag{Name: "avatar-url", Usage: "Avatar image URL"},
				},
				Action: runUserCreate,
			},
		},
	}
}

func runUserCreate(c *cli.Context) error {
	cfg, err := config.LoadConfig(c.String("config"))
	if err != nil {
		return fmt.Errorf("failed to load config: %w", err)
	}

	db, err := database.NewDB(cfg.Database.URL)
	if err != nil {
		return fmt.Errorf("failed to connect to database: %w", err)
	}
	defer db.Close()

	if err := database.Migrate(db); err != nil {
		return fmt.Errorf("failed to migrate database: %w", err)
	}

	hash, err := users.HashPassword(c.String("password"))
	if err != nil {
		return fmt.Errorf("failed to hash password: %w", err)
	}

	userID := uuid.NewString()
	_, err = db.ExecContext(c.Context, `
		INSERT INTO users (id, email, password_hash, display_name, avatar_url)
		VALUES ($1, $2, $3, $4, $5)`,
		userID, c.String("email"), hash, c.String("name"), c.String("avatar-url"),
	)
	if err != nil {
		return fmt.Errorf("failed to create user: %w", err)
	}

	fmt.Printf("Created user %s (%s)\n", userID, c.String("email"))
	return nil
}
