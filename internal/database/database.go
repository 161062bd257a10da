package database

import (
	"context"
	"fmt"
	"log/slog"

	"github.com/surrealdb/surrealdb.go"

	"github.com/chatme-app/chatme/internal/config"
)

// NewDB creates and configures a new SurrealDB connection.
func NewDB(ctx context.Context, cfg *config.Config) (*surrealdb.DB, error) {
	db, err := surrealdb.FromEndpointURLString(ctx, cfg.DBUrl)
	if err != nil {
		return nil, fmt.Errorf("failed to connect to surrealdb: %w", err)
	}

	authData := &surrealdb.Auth{
		Username: cfg.DBUser,
		Password: cfg.DBPass,
	}

	if _, err = db.SignIn(ctx, authData); err != nil {
		db.Close(ctx)
		return nil, fmt.Errorf("failed to sign in: %w", err)
	}

	if err = db.Use(ctx, cfg.DBNs, cfg.DBDb); err != nil {
		db.Close(ctx)
		return nil, fmt.Errorf("failed to use namespace/db: %w", err)
	}

	slog.Info("Successfully signed in to SurrealDB")
	return db, nil
}

// EnsureSchema defines the indexes the stores rely on. The connection
// user_id index is what keeps the router's fan-out lookups from scanning the
// whole registry; the chat owner index backs chat listings.
func EnsureSchema(ctx context.Context, db *surrealdb.DB) error {
	statements := []string{
		`DEFINE INDEX IF NOT EXISTS connection_user ON TABLE connection FIELDS user_id`,
		`DEFINE INDEX IF NOT EXISTS chat_owner ON TABLE chat FIELDS owner_id`,
		`DEFINE INDEX IF NOT EXISTS chat_owner_chat ON TABLE chat FIELDS owner_id, chat_id UNIQUE`,
		`DEFINE INDEX IF NOT EXISTS message_chat ON TABLE message FIELDS chat_id`,
		`DEFINE INDEX IF NOT EXISTS user_email ON TABLE user FIELDS email UNIQUE`,
	}
	for _, stmt := range statements {
		if err := Execute(ctx, db, stmt, nil); err != nil {
			return fmt.Errorf("failed to define schema: %w", err)
		}
	}
	return nil
}
