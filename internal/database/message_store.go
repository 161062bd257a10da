package database

import (
	"context"
	"fmt"

	"github.com/surrealdb/surrealdb.go"

	"github.com/chatme-app/chatme/internal/domain"
)

var _ domain.MessageRepository = (*MessageStore)(nil)

// MessageStore persists chat messages. Messages are immutable; the store
// only ever creates and reads them.
type MessageStore struct {
	db *surrealdb.DB
}

// NewMessageStore creates a new MessageStore.
func NewMessageStore(db *surrealdb.DB) *MessageStore {
	return &MessageStore{db: db}
}

type messageRow struct {
	MsgID      string `json:"msg_id"`
	ChatID     string `json:"chat_id"`
	SenderID   string `json:"sender_id"`
	ReceiverID string `json:"receiver_id"`
	Content    string `json:"content"`
	CreatedAt  string `json:"created_at"`
}

func (r messageRow) toDomain() domain.Message {
	return domain.Message{
		ID:         r.MsgID,
		ChatID:     r.ChatID,
		SenderID:   r.SenderID,
		ReceiverID: r.ReceiverID,
		Content:    r.Content,
		CreatedAt:  parseTime(r.CreatedAt),
	}
}

const messageFields = "msg_id, chat_id, sender_id, receiver_id, content, created_at"

// Create stores a new message. The message ID doubles as the record ID, so
// a retried send of the same message cannot produce two rows.
func (s *MessageStore) Create(ctx context.Context, msg *domain.Message) error {
	query := `CREATE type::thing('message', $id) CONTENT {
		msg_id: $id,
		chat_id: $chat,
		sender_id: $sender,
		receiver_id: $receiver,
		content: $content,
		created_at: $at
	}`
	params := map[string]any{
		"id":       msg.ID,
		"chat":     msg.ChatID,
		"sender":   msg.SenderID,
		"receiver": msg.ReceiverID,
		"content":  msg.Content,
		"at":       formatTime(msg.CreatedAt),
	}
	if err := Execute(ctx, s.db, query, params); err != nil {
		if isExistsError(err) {
			return fmt.Errorf("message %s: %w", msg.ID, domain.ErrAlreadyExists)
		}
		return fmt.Errorf("failed to create message: %w", err)
	}
	return nil
}

// ListByChat returns one page of the chat's history, newest first. The
// cursor encodes the last row's (created_at, msg_id) so pages never skip or
// repeat messages even when timestamps collide.
func (s *MessageStore) ListByChat(ctx context.Context, chatID string, q domain.ListQuery) ([]domain.Message, string, error) {
	query := `SELECT ` + messageFields + ` FROM message WHERE chat_id = $chat`
	params := map[string]any{"chat": chatID, "limit": q.Limit}

	if parts, ok := decodeCursor(q.Cursor, 2); ok {
		query += ` AND (created_at < $c_at OR (created_at = $c_at AND msg_id < $c_id))`
		params["c_at"] = parts[0]
		params["c_id"] = parts[1]
	}
	query += ` ORDER BY created_at DESC, msg_id DESC LIMIT $limit`

	rows, err := Query[messageRow](ctx, s.db, query, params)
	if err != nil {
		return nil, "", fmt.Errorf("failed to list messages: %w", err)
	}

	messages := make([]domain.Message, 0, len(rows))
	for _, row := range rows {
		messages = append(messages, row.toDomain())
	}

	next := ""
	if q.Limit > 0 && len(rows) == q.Limit {
		last := rows[len(rows)-1]
		next = encodeCursor(last.CreatedAt, last.MsgID)
	}
	return messages, next, nil
}
