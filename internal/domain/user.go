package domain

import (
	"context"
	"strings"
	"time"
)

// User represents the core user model in the application domain.
// Online status is never stored: a user is online exactly when the
// connection registry holds at least one live connection for them.
type User struct {
	ID             string    `json:"id"`
	Name           string    `json:"name"`
	SearchName     string    `json:"searchName"`
	Email          string    `json:"email"`
	Password       string    `json:"-"`
	ProfilePicture *string   `json:"profilePicture"`
	LastSeenAt     time.Time `json:"lastSeen"`
	CreatedAt      time.Time `json:"createdAt"`
	UpdatedAt      time.Time `json:"updatedAt"`
}

// Contact is the projection of a user embedded into chat listings.
type Contact struct {
	Name           string    `json:"name"`
	ProfilePicture *string   `json:"profilePicture"`
	LastSeenAt     time.Time `json:"lastSeen"`
}

// Contact returns the presence-relevant projection of the user.
func (u *User) Contact() Contact {
	return Contact{
		Name:           u.Name,
		ProfilePicture: u.ProfilePicture,
		LastSeenAt:     u.LastSeenAt,
	}
}

// NormalizeSearchName derives the lowercased name used for directory and
// contact search.
func NormalizeSearchName(name string) string {
	return strings.ToLower(strings.TrimSpace(name))
}

// ListQuery carries cursor pagination and optional search for list reads.
// Cursor is opaque to callers; an empty cursor starts from the beginning.
type ListQuery struct {
	Limit  int
	Cursor string
	Search string
}

// UserRepository defines the contract for user storage. It lives in the
// domain because it is a requirement of the domain, not of the database
// implementation.
type UserRepository interface {
	Create(ctx context.Context, user *User) (*User, error)
	FindByID(ctx context.Context, id string) (*User, error)
	FindByEmail(ctx context.Context, email string) (*User, error)
	List(ctx context.Context, q ListQuery) ([]User, string, error)
	UpdateProfile(ctx context.Context, id string, name *string, picture *string) (*User, error)
	// TouchLastSeen stamps the user's lastSeen to the given instant. Called
	// on both connect and disconnect.
	TouchLastSeen(ctx context.Context, id string, at time.Time) error
}
