package domain

import (
	"context"
	"time"
)

// Chat is one participant's copy of a conversation. Every conversation is a
// symmetric pair of records sharing an ID: one owned by each participant,
// each pointing at the other via ContactID. The two sides are created
// together and share LastMessage/UpdatedAt semantics, but each side tracks
// its own unread counter.
type Chat struct {
	ID                string    `json:"id"`
	OwnerID           string    `json:"-"`
	ContactID         string    `json:"contactId"`
	ContactSearchName string    `json:"contactSearchName"`
	StartedBy         string    `json:"startedBy"`
	LastMessage       string    `json:"lastMessage"`
	UnreadCount       int       `json:"unreadMessages"`
	CreatedAt         time.Time `json:"createdAt"`
	UpdatedAt         time.Time `json:"updatedAt"`
}

// ExtendedChat is a chat joined with the contact's user projection, the
// shape returned by list-chats and start-chat.
type ExtendedChat struct {
	Chat
	Contact Contact `json:"contact"`
}

// PairKey returns the canonical key for the participant pair, independent of
// who started the chat. Used for the conditional create that prevents two
// concurrent start-chat calls from producing duplicate conversations.
func PairKey(userA, userB string) string {
	if userA < userB {
		return userA + ":" + userB
	}
	return userB + ":" + userA
}

// ChatRepository stores the per-participant chat records.
type ChatRepository interface {
	// CreatePair atomically reserves the participant pair and stores both
	// sides. Returns ErrAlreadyExists when a chat between the two
	// participants already exists.
	CreatePair(ctx context.Context, mine, theirs *Chat) error

	FindByOwnerAndID(ctx context.Context, ownerID, chatID string) (*Chat, error)
	FindByOwnerAndContact(ctx context.Context, ownerID, contactID string) (*Chat, error)

	// ListByOwner returns the owner's chats ordered by most recent activity,
	// with cursor pagination and optional contact-name search.
	ListByOwner(ctx context.Context, ownerID string, q ListQuery) ([]Chat, string, error)

	// SetLastMessage updates one side's last message preview and activity
	// timestamp.
	SetLastMessage(ctx context.Context, ownerID, chatID, content string, at time.Time) error

	// IncrementUnread bumps one side's unread counter. Implementations
	// backed by a store with atomic increments must use that primitive.
	IncrementUnread(ctx context.Context, ownerID, chatID string) error

	// ResetUnread zeroes one side's unread counter unconditionally.
	// Last-writer-wins against a concurrent increment is accepted.
	ResetUnread(ctx context.Context, ownerID, chatID string) error
}
