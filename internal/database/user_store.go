package database

import (
	"context"
	"fmt"
	"time"

	"github.com/surrealdb/surrealdb.go"

	"github.com/chatme-app/chatme/internal/domain"
)

var _ domain.UserRepository = (*UserStore)(nil)

// UserStore persists users. The unique email index (see EnsureSchema) makes
// duplicate sign-ups fail at the store rather than by scan-then-insert.
type UserStore struct {
	db *surrealdb.DB
}

// NewUserStore creates a new UserStore.
func NewUserStore(db *surrealdb.DB) *UserStore {
	return &UserStore{db: db}
}

type userRow struct {
	UserID         string  `json:"user_id"`
	Name           string  `json:"name"`
	SearchName     string  `json:"search_name"`
	Email          string  `json:"email"`
	Password       string  `json:"password"`
	ProfilePicture *string `json:"profile_picture"`
	LastSeenAt     string  `json:"last_seen"`
	CreatedAt      string  `json:"created_at"`
	UpdatedAt      string  `json:"updated_at"`
}

func (r userRow) toDomain() domain.User {
	return domain.User{
		ID:             r.UserID,
		Name:           r.Name,
		SearchName:     r.SearchName,
		Email:          r.Email,
		Password:       r.Password,
		ProfilePicture: r.ProfilePicture,
		LastSeenAt:     parseTime(r.LastSeenAt),
		CreatedAt:      parseTime(r.CreatedAt),
		UpdatedAt:      parseTime(r.UpdatedAt),
	}
}

const userFields = "user_id, name, search_name, email, password, profile_picture, last_seen, created_at, updated_at"

// Create stores a new user. Returns domain.ErrAlreadyExists when the email
// is taken.
func (s *UserStore) Create(ctx context.Context, user *domain.User) (*domain.User, error) {
	query := `CREATE type::thing('user', $id) CONTENT {
		user_id: $id,
		name: $name,
		search_name: $search_name,
		email: $email,
		password: $password,
		profile_picture: $picture,
		last_seen: $now,
		created_at: $now,
		updated_at: $now
	}`
	params := map[string]any{
		"id":          user.ID,
		"name":        user.Name,
		"search_name": domain.NormalizeSearchName(user.Name),
		"email":       user.Email,
		"password":    user.Password,
		"picture":     user.ProfilePicture,
		"now":         formatTime(user.CreatedAt),
	}
	if err := Execute(ctx, s.db, query, params); err != nil {
		if isExistsError(err) {
			return nil, fmt.Errorf("user %s: %w", user.Email, domain.ErrAlreadyExists)
		}
		return nil, fmt.Errorf("failed to create user: %w", err)
	}
	return s.FindByID(ctx, user.ID)
}

// FindByID returns the user or domain.ErrNotFound.
func (s *UserStore) FindByID(ctx context.Context, id string) (*domain.User, error) {
	query := `SELECT ` + userFields + ` FROM type::thing('user', $id)`
	row, err := QueryOne[userRow](ctx, s.db, query, map[string]any{"id": id})
	if err != nil {
		return nil, fmt.Errorf("failed to look up user: %w", err)
	}
	if row == nil {
		return nil, fmt.Errorf("user %s: %w", id, domain.ErrNotFound)
	}
	user := row.toDomain()
	return &user, nil
}

// FindByEmail returns the user or domain.ErrNotFound.
func (s *UserStore) FindByEmail(ctx context.Context, email string) (*domain.User, error) {
	query := `SELECT ` + userFields + ` FROM user WHERE email = $email`
	row, err := QueryOne[userRow](ctx, s.db, query, map[string]any{"email": email})
	if err != nil {
		return nil, fmt.Errorf("failed to look up user by email: %w", err)
	}
	if row == nil {
		return nil, fmt.Errorf("user %s: %w", email, domain.ErrNotFound)
	}
	user := row.toDomain()
	return &user, nil
}

// List returns one page of the user directory, ordered by search name with
// the user ID as tie-break.
func (s *UserStore) List(ctx context.Context, q domain.ListQuery) ([]domain.User, string, error) {
	query := `SELECT ` + userFields + ` FROM user`
	params := map[string]any{"limit": q.Limit}
	where := ""

	if q.Search != "" {
		where = ` WHERE string::contains(search_name, $search)`
		params["search"] = domain.NormalizeSearchName(q.Search)
	}
	if parts, ok := decodeCursor(q.Cursor, 2); ok {
		if where == "" {
			where = ` WHERE `
		} else {
			where += ` AND `
		}
		where += `(search_name > $c_name OR (search_name = $c_name AND user_id > $c_id))`
		params["c_name"] = parts[0]
		params["c_id"] = parts[1]
	}
	query += where + ` ORDER BY search_name ASC, user_id ASC LIMIT $limit`

	rows, err := Query[userRow](ctx, s.db, query, params)
	if err != nil {
		return nil, "", fmt.Errorf("failed to list users: %w", err)
	}

	users := make([]domain.User, 0, len(rows))
	for _, row := range rows {
		users = append(users, row.toDomain())
	}

	next := ""
	if q.Limit > 0 && len(rows) == q.Limit {
		last := rows[len(rows)-1]
		next = encodeCursor(last.SearchName, last.UserID)
	}
	return users, next, nil
}

// UpdateProfile updates the user's name and/or profile picture.
func (s *UserStore) UpdateProfile(ctx context.Context, id string, name *string, picture *string) (*domain.User, error) {
	sets := `updated_at = $now`
	params := map[string]any{
		"id":  id,
		"now": formatTime(time.Now()),
	}
	if name != nil {
		sets += `, name = $name, search_name = $search_name`
		params["name"] = *name
		params["search_name"] = domain.NormalizeSearchName(*name)
	}
	if picture != nil {
		sets += `, profile_picture = $picture`
		params["picture"] = *picture
	}
	query := `UPDATE type::thing('user', $id) SET ` + sets
	if err := Execute(ctx, s.db, query, params); err != nil {
		return nil, fmt.Errorf("failed to update profile: %w", err)
	}
	return s.FindByID(ctx, id)
}

// TouchLastSeen stamps the user's lastSeen timestamp.
func (s *UserStore) TouchLastSeen(ctx context.Context, id string, at time.Time) error {
	query := `UPDATE type::thing('user', $id) SET last_seen = $at, updated_at = $at`
	params := map[string]any{"id": id, "at": formatTime(at)}
	if err := Execute(ctx, s.db, query, params); err != nil {
		return fmt.Errorf("failed to stamp last seen: %w", err)
	}
	return nil
}
