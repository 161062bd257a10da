package database

import (
	"context"
	"fmt"

	"github.com/surrealdb/surrealdb.go"

	"github.com/chatme-app/chatme/internal/domain"
)

// var _ ensures ConnectionStore implements the repository contract.
var _ domain.ConnectionRepository = (*ConnectionStore)(nil)

// ConnectionStore persists live connections in SurrealDB. The transport's
// connection ID doubles as the record ID, so a reused live identifier fails
// the CREATE instead of silently overwriting another session.
type ConnectionStore struct {
	db *surrealdb.DB
}

// NewConnectionStore creates a new ConnectionStore.
func NewConnectionStore(db *surrealdb.DB) *ConnectionStore {
	return &ConnectionStore{db: db}
}

type connectionRow struct {
	ConnID        string `json:"conn_id"`
	UserID        string `json:"user_id"`
	EstablishedAt string `json:"established_at"`
}

func (r connectionRow) toDomain() domain.Connection {
	return domain.Connection{
		ID:            r.ConnID,
		UserID:        r.UserID,
		EstablishedAt: parseTime(r.EstablishedAt),
	}
}

const connectionFields = "conn_id, user_id, established_at"

// Create stores a new connection record.
func (s *ConnectionStore) Create(ctx context.Context, conn *domain.Connection) error {
	query := `CREATE type::thing('connection', $id) CONTENT {
		conn_id: $id,
		user_id: $user,
		established_at: $at
	}`
	params := map[string]any{
		"id":   conn.ID,
		"user": conn.UserID,
		"at":   formatTime(conn.EstablishedAt),
	}
	if err := Execute(ctx, s.db, query, params); err != nil {
		if isExistsError(err) {
			return fmt.Errorf("connection %s: %w", conn.ID, domain.ErrAlreadyExists)
		}
		return fmt.Errorf("failed to create connection: %w", err)
	}
	return nil
}

// Delete removes a connection, reporting whether it existed.
func (s *ConnectionStore) Delete(ctx context.Context, connID string) (bool, error) {
	existing, err := s.find(ctx, connID)
	if err != nil {
		return false, err
	}
	if existing == nil {
		return false, nil
	}
	query := `DELETE type::thing('connection', $id)`
	if err := Execute(ctx, s.db, query, map[string]any{"id": connID}); err != nil {
		return false, fmt.Errorf("failed to delete connection: %w", err)
	}
	return true, nil
}

// FindByID returns the connection or domain.ErrNotFound.
func (s *ConnectionStore) FindByID(ctx context.Context, connID string) (*domain.Connection, error) {
	row, err := s.find(ctx, connID)
	if err != nil {
		return nil, err
	}
	if row == nil {
		return nil, fmt.Errorf("connection %s: %w", connID, domain.ErrNotFound)
	}
	conn := row.toDomain()
	return &conn, nil
}

func (s *ConnectionStore) find(ctx context.Context, connID string) (*connectionRow, error) {
	query := `SELECT ` + connectionFields + ` FROM type::thing('connection', $id)`
	row, err := QueryOne[connectionRow](ctx, s.db, query, map[string]any{"id": connID})
	if err != nil {
		return nil, fmt.Errorf("failed to look up connection: %w", err)
	}
	return row, nil
}

// List returns every live connection. This is the full scan the presence
// broadcast needs; routing paths use ListByUser instead.
func (s *ConnectionStore) List(ctx context.Context) ([]domain.Connection, error) {
	query := `SELECT ` + connectionFields + ` FROM connection`
	rows, err := Query[connectionRow](ctx, s.db, query, nil)
	if err != nil {
		return nil, fmt.Errorf("failed to list connections: %w", err)
	}
	return rowsToConnections(rows), nil
}

// ListByUser returns the user's live connections via the user_id index.
func (s *ConnectionStore) ListByUser(ctx context.Context, userID string) ([]domain.Connection, error) {
	query := `SELECT ` + connectionFields + ` FROM connection WHERE user_id = $user`
	rows, err := Query[connectionRow](ctx, s.db, query, map[string]any{"user": userID})
	if err != nil {
		return nil, fmt.Errorf("failed to list user connections: %w", err)
	}
	return rowsToConnections(rows), nil
}

func rowsToConnections(rows []connectionRow) []domain.Connection {
	conns := make([]domain.Connection, 0, len(rows))
	for _, row := range rows {
		conns = append(conns, row.toDomain())
	}
	return conns
}
