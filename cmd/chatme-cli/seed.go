package main

import (
	"context"
	"fmt"
	"log/slog"

	"github.com/spf13/cobra"

	"github.com/chatme-app/chatme/internal/config"
	"github.com/chatme-app/chatme/internal/database"
	"github.com/chatme-app/chatme/internal/identity"
	"github.com/chatme-app/chatme/internal/logging"
)

var seedUsers = []struct {
	name  string
	email string
}{
	{"Alice Carter", "alice@example.com"},
	{"Bob Nguyen", "bob@example.com"},
	{"Carol Okafor", "carol@example.com"},
	{"Dan Petrov", "dan@example.com"},
	{"Erin Walsh", "erin@example.com"},
}

func newSeedCmd() *cobra.Command {
	var password string

	cmd := &cobra.Command{
		Use:   "seed",
		Short: "Create demo accounts in the configured database",
		RunE: func(cmd *cobra.Command, args []string) error {
			cfg := config.New()
			logging.New()

			ctx := context.Background()
			db, err := database.NewDB(ctx, cfg)
			if err != nil {
				return fmt.Errorf("connect to database: %w", err)
			}
			defer db.Close(ctx)

			if err := database.EnsureSchema(ctx, db); err != nil {
				return fmt.Errorf("ensure schema: %w", err)
			}

			idsvc := identity.New(database.NewUserStore(db), cfg.JWTSecret, cfg.TokenTTL)
			for _, u := range seedUsers {
				user, err := idsvc.SignUp(ctx, u.name, u.email, password)
				if err != nil {
					// Re-running the seed against a populated database is fine.
					slog.Warn("skipping seed user", "email", u.email, "error", err)
					continue
				}
				slog.Info("seeded user", "user_id", user.ID, "email", user.Email)
			}
			return nil
		},
	}

	cmd.Flags().StringVar(&password, "password", "password123", "password for all seeded accounts")
	return cmd
}
