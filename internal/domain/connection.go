package domain

import (
	"context"
	"time"
)

// Connection represents one live transport-level session. It is created when
// a client's WebSocket handshake completes and authentication succeeds, and
// deleted when the transport reports closure. It is never mutated otherwise.
//
// A user may hold any number of simultaneous connections (multi-device);
// "online" means at least one live connection exists.
type Connection struct {
	ID            string    `json:"id"`
	UserID        string    `json:"userId"`
	EstablishedAt time.Time `json:"establishedAt"`
}

// ConnectionRepository is the durable mapping from connection IDs to user
// identities, the source of truth for who is online.
type ConnectionRepository interface {
	// Create stores a new connection. Returns ErrAlreadyExists if the
	// transport reused a live identifier.
	Create(ctx context.Context, conn *Connection) error

	// Delete removes a connection. It reports whether the connection
	// existed; deleting an absent connection is not an error, because
	// disconnect notifications can arrive more than once.
	Delete(ctx context.Context, connID string) (bool, error)

	// FindByID returns the connection or ErrNotFound.
	FindByID(ctx context.Context, connID string) (*Connection, error)

	// List returns every live connection. Used by the presence aggregator
	// for full-state broadcasts.
	List(ctx context.Context) ([]Connection, error)

	// ListByUser returns the user's live connections via a store-side
	// index, so per-event fan-out lookups avoid a full scan.
	ListByUser(ctx context.Context, userID string) ([]Connection, error)
}
