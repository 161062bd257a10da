package domain

import (
	"context"
	"time"
)

// Message is immutable once created. It is conceptually owned by its chat
// and is never mutated or deleted by this subsystem.
type Message struct {
	ID         string    `json:"id"`
	ChatID     string    `json:"chatId"`
	SenderID   string    `json:"senderId"`
	ReceiverID string    `json:"receiverId"`
	Content    string    `json:"content"`
	CreatedAt  time.Time `json:"createdAt"`
}

// Less reports whether m sorts before other in a chat's history. Ordering is
// by sender-assigned CreatedAt, with the message ID breaking ties for equal
// timestamps.
func (m *Message) Less(other *Message) bool {
	if !m.CreatedAt.Equal(other.CreatedAt) {
		return m.CreatedAt.Before(other.CreatedAt)
	}
	return m.ID < other.ID
}

// MessageRepository stores chat messages.
type MessageRepository interface {
	Create(ctx context.Context, msg *Message) error

	// ListByChat returns one page of a chat's history, newest first, with a
	// resumption cursor for the next page. Callers wanting chronological
	// order reverse the page.
	ListByChat(ctx context.Context, chatID string, q ListQuery) ([]Message, string, error)
}
