// Package registry tracks which transport connections belong to which users.
// It is the source of truth for presence: a user is online exactly when the
// registry holds at least one connection for them.
package registry

import (
	"context"
	"errors"
	"fmt"
	"log/slog"
	"sort"
	"time"

	"github.com/chatme-app/chatme/internal/domain"
)

// Registry wraps the durable connection mapping and keeps the owning user's
// lastSeen stamp in step with connect/disconnect events. The registry
// mutation and the lastSeen stamp are independent writes against the store;
// there is no cross-item transaction, so a crash between them leaves a
// consistency window that the next connect/disconnect heals.
type Registry struct {
	conns  domain.ConnectionRepository
	users  domain.UserRepository
	logger *slog.Logger
	now    func() time.Time
}

// New creates a Registry.
func New(conns domain.ConnectionRepository, users domain.UserRepository) *Registry {
	return &Registry{
		conns:  conns,
		users:  users,
		logger: slog.Default().With("service", "registry"),
		now:    time.Now,
	}
}

// Register records a new live connection and stamps the owner's lastSeen.
// ErrAlreadyExists means the transport reused a live identifier, which is a
// logic error upstream, not an expected condition.
func (r *Registry) Register(ctx context.Context, connID, userID string) error {
	conn := &domain.Connection{
		ID:            connID,
		UserID:        userID,
		EstablishedAt: r.now(),
	}
	if err := r.conns.Create(ctx, conn); err != nil {
		return fmt.Errorf("register connection: %w", err)
	}

	if err := r.users.TouchLastSeen(ctx, userID, conn.EstablishedAt); err != nil {
		// The connection is already registered; a failed stamp only delays
		// the lastSeen update until the next lifecycle event.
		r.logger.Warn("failed to stamp lastSeen on connect",
			"user_id", userID, "conn_id", connID, "error", err)
	}

	r.logger.Info("connection registered", "user_id", userID, "conn_id", connID)
	return nil
}

// Unregister removes a connection. It is idempotent: disconnect
// notifications can arrive more than once or after the record was already
// cleaned up, and that is not an error.
func (r *Registry) Unregister(ctx context.Context, connID string) error {
	conn, err := r.conns.FindByID(ctx, connID)
	if err != nil {
		if errors.Is(err, domain.ErrNotFound) {
			return nil
		}
		return fmt.Errorf("unregister connection: %w", err)
	}

	existed, err := r.conns.Delete(ctx, connID)
	if err != nil {
		return fmt.Errorf("unregister connection: %w", err)
	}
	if !existed {
		return nil
	}

	if err := r.users.TouchLastSeen(ctx, conn.UserID, r.now()); err != nil {
		r.logger.Warn("failed to stamp lastSeen on disconnect",
			"user_id", conn.UserID, "conn_id", connID, "error", err)
	}

	r.logger.Info("connection unregistered", "user_id", conn.UserID, "conn_id", connID)
	return nil
}

// FindByConnection resolves a connection ID to its owning user, or
// domain.ErrNotFound.
func (r *Registry) FindByConnection(ctx context.Context, connID string) (string, error) {
	conn, err := r.conns.FindByID(ctx, connID)
	if err != nil {
		return "", err
	}
	return conn.UserID, nil
}

// ListAll returns every live connection.
func (r *Registry) ListAll(ctx context.Context) ([]domain.Connection, error) {
	return r.conns.List(ctx)
}

// ConnectionsForUser returns the user's live connections. Backed by a store
// index, so routing a message is not a registry scan.
func (r *Registry) ConnectionsForUser(ctx context.Context, userID string) ([]domain.Connection, error) {
	return r.conns.ListByUser(ctx, userID)
}

// OnlineUsers derives the distinct set of online user IDs, sorted for
// deterministic broadcasts.
func (r *Registry) OnlineUsers(ctx context.Context) ([]string, error) {
	conns, err := r.conns.List(ctx)
	if err != nil {
		return nil, err
	}
	seen := make(map[string]struct{}, len(conns))
	users := make([]string, 0, len(conns))
	for _, conn := range conns {
		if _, ok := seen[conn.UserID]; ok {
			continue
		}
		seen[conn.UserID] = struct{}{}
		users = append(users, conn.UserID)
	}
	sort.Strings(users)
	return users, nil
}
