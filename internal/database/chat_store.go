package database

import (
	"context"
	"fmt"
	"time"

	"github.com/surrealdb/surrealdb.go"

	"github.com/chatme-app/chatme/internal/domain"
)

var _ domain.ChatRepository = (*ChatStore)(nil)

// ChatStore persists the per-participant chat records. Each side is
// addressed by the composite record ID [owner_id, chat_id]; the symmetric
// pair shares the chat_id. A chat_pair record keyed by the canonical ordered
// participant pair guards against duplicate conversations.
type ChatStore struct {
	db *surrealdb.DB
}

// NewChatStore creates a new ChatStore.
func NewChatStore(db *surrealdb.DB) *ChatStore {
	return &ChatStore{db: db}
}

type chatRow struct {
	ChatID            string `json:"chat_id"`
	OwnerID           string `json:"owner_id"`
	ContactID         string `json:"contact_id"`
	ContactSearchName string `json:"contact_search_name"`
	StartedBy         string `json:"started_by"`
	LastMessage       string `json:"last_message"`
	UnreadCount       int    `json:"unread_messages"`
	CreatedAt         string `json:"created_at"`
	UpdatedAt         string `json:"updated_at"`
}

func (r chatRow) toDomain() domain.Chat {
	return domain.Chat{
		ID:                r.ChatID,
		OwnerID:           r.OwnerID,
		ContactID:         r.ContactID,
		ContactSearchName: r.ContactSearchName,
		StartedBy:         r.StartedBy,
		LastMessage:       r.LastMessage,
		UnreadCount:       r.UnreadCount,
		CreatedAt:         parseTime(r.CreatedAt),
		UpdatedAt:         parseTime(r.UpdatedAt),
	}
}

const chatFields = "chat_id, owner_id, contact_id, contact_search_name, started_by, last_message, unread_messages, created_at, updated_at"

// CreatePair reserves the canonical participant pair and writes both sides
// in one transaction. The pair record's ID collides for concurrent
// start-chat calls regardless of which participant initiated, which aborts
// the whole transaction and surfaces domain.ErrAlreadyExists.
func (s *ChatStore) CreatePair(ctx context.Context, mine, theirs *domain.Chat) error {
	query := `
		BEGIN TRANSACTION;
		CREATE type::thing('chat_pair', $pair) CONTENT { chat_id: $chat, created_at: $now };
		CREATE type::thing('chat', [$owner_a, $chat]) CONTENT {
			chat_id: $chat, owner_id: $owner_a, contact_id: $contact_a,
			contact_search_name: $search_a, started_by: $started_by,
			last_message: '', unread_messages: 0,
			created_at: $now, updated_at: $now
		};
		CREATE type::thing('chat', [$owner_b, $chat]) CONTENT {
			chat_id: $chat, owner_id: $owner_b, contact_id: $contact_b,
			contact_search_name: $search_b, started_by: $started_by,
			last_message: '', unread_messages: 0,
			created_at: $now, updated_at: $now
		};
		COMMIT TRANSACTION;
	`
	params := map[string]any{
		"pair":       domain.PairKey(mine.OwnerID, theirs.OwnerID),
		"chat":       mine.ID,
		"owner_a":    mine.OwnerID,
		"contact_a":  mine.ContactID,
		"search_a":   mine.ContactSearchName,
		"owner_b":    theirs.OwnerID,
		"contact_b":  theirs.ContactID,
		"search_b":   theirs.ContactSearchName,
		"started_by": mine.StartedBy,
		"now":        formatTime(mine.CreatedAt),
	}
	if err := Execute(ctx, s.db, query, params); err != nil {
		if isExistsError(err) {
			return fmt.Errorf("chat between %s and %s: %w", mine.OwnerID, theirs.OwnerID, domain.ErrAlreadyExists)
		}
		return fmt.Errorf("failed to create chat pair: %w", err)
	}
	return nil
}

// FindByOwnerAndID returns one side of a chat or domain.ErrNotFound.
func (s *ChatStore) FindByOwnerAndID(ctx context.Context, ownerID, chatID string) (*domain.Chat, error) {
	query := `SELECT ` + chatFields + ` FROM type::thing('chat', [$owner, $chat])`
	params := map[string]any{"owner": ownerID, "chat": chatID}
	row, err := QueryOne[chatRow](ctx, s.db, query, params)
	if err != nil {
		return nil, fmt.Errorf("failed to look up chat: %w", err)
	}
	if row == nil {
		return nil, fmt.Errorf("chat %s for %s: %w", chatID, ownerID, domain.ErrNotFound)
	}
	chat := row.toDomain()
	return &chat, nil
}

// FindByOwnerAndContact returns the owner's chat with the given contact, or
// domain.ErrNotFound when none has been started.
func (s *ChatStore) FindByOwnerAndContact(ctx context.Context, ownerID, contactID string) (*domain.Chat, error) {
	query := `SELECT ` + chatFields + ` FROM chat WHERE owner_id = $owner AND contact_id = $contact`
	params := map[string]any{"owner": ownerID, "contact": contactID}
	row, err := QueryOne[chatRow](ctx, s.db, query, params)
	if err != nil {
		return nil, fmt.Errorf("failed to look up chat by contact: %w", err)
	}
	if row == nil {
		return nil, fmt.Errorf("chat with %s for %s: %w", contactID, ownerID, domain.ErrNotFound)
	}
	chat := row.toDomain()
	return &chat, nil
}

// ListByOwner returns one page of the owner's chats, most recent activity
// first.
func (s *ChatStore) ListByOwner(ctx context.Context, ownerID string, q domain.ListQuery) ([]domain.Chat, string, error) {
	query := `SELECT ` + chatFields + ` FROM chat WHERE owner_id = $owner`
	params := map[string]any{"owner": ownerID, "limit": q.Limit}

	if q.Search != "" {
		query += ` AND string::contains(contact_search_name, $search)`
		params["search"] = domain.NormalizeSearchName(q.Search)
	}
	if parts, ok := decodeCursor(q.Cursor, 1); ok {
		query += ` AND updated_at < $cursor`
		params["cursor"] = parts[0]
	}
	query += ` ORDER BY updated_at DESC LIMIT $limit`

	rows, err := Query[chatRow](ctx, s.db, query, params)
	if err != nil {
		return nil, "", fmt.Errorf("failed to list chats: %w", err)
	}

	chats := make([]domain.Chat, 0, len(rows))
	for _, row := range rows {
		chats = append(chats, row.toDomain())
	}

	next := ""
	if q.Limit > 0 && len(rows) == q.Limit {
		next = encodeCursor(rows[len(rows)-1].UpdatedAt)
	}
	return chats, next, nil
}

// SetLastMessage updates one side's message preview and activity timestamp.
func (s *ChatStore) SetLastMessage(ctx context.Context, ownerID, chatID, content string, at time.Time) error {
	query := `UPDATE type::thing('chat', [$owner, $chat]) SET last_message = $content, updated_at = $at`
	params := map[string]any{
		"owner":   ownerID,
		"chat":    chatID,
		"content": content,
		"at":      formatTime(at),
	}
	if err := Execute(ctx, s.db, query, params); err != nil {
		return fmt.Errorf("failed to set last message: %w", err)
	}
	return nil
}

// IncrementUnread bumps one side's unread counter with the store's atomic
// increment, so concurrent messages never lose an update.
func (s *ChatStore) IncrementUnread(ctx context.Context, ownerID, chatID string) error {
	query := `UPDATE type::thing('chat', [$owner, $chat]) SET unread_messages += 1`
	params := map[string]any{"owner": ownerID, "chat": chatID}
	if err := Execute(ctx, s.db, query, params); err != nil {
		return fmt.Errorf("failed to increment unread counter: %w", err)
	}
	return nil
}

// ResetUnread zeroes one side's unread counter.
func (s *ChatStore) ResetUnread(ctx context.Context, ownerID, chatID string) error {
	query := `UPDATE type::thing('chat', [$owner, $chat]) SET unread_messages = 0`
	params := map[string]any{"owner": ownerID, "chat": chatID}
	if err := Execute(ctx, s.db, query, params); err != nil {
		return fmt.Errorf("failed to reset unread counter: %w", err)
	}
	return nil
}
