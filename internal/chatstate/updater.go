// Package chatstate keeps each side's chat summary (last message, activity
// timestamp, unread counter) consistent with the message stream.
package chatstate

import (
	"context"
	"fmt"
	"log/slog"

	"golang.org/x/sync/errgroup"

	"github.com/chatme-app/chatme/internal/domain"
)

// Updater applies summary mutations to both sides of a chat.
type Updater struct {
	chats  domain.ChatRepository
	logger *slog.Logger
}

// New creates an Updater.
func New(chats domain.ChatRepository) *Updater {
	return &Updater{
		chats:  chats,
		logger: slog.Default().With("service", "chatstate"),
	}
}

// OnNewMessage updates both chat sides for a freshly persisted message:
// last message and activity timestamp on both, unread counter only on the
// receiver's side. The writes are independent; they run concurrently and
// any failure is surfaced so the caller can report the whole operation as
// failed. A partial success is possible and self-heals on the next message.
func (u *Updater) OnNewMessage(ctx context.Context, msg *domain.Message) error {
	g, ctx := errgroup.WithContext(ctx)

	g.Go(func() error {
		return u.chats.SetLastMessage(ctx, msg.SenderID, msg.ChatID, msg.Content, msg.CreatedAt)
	})
	g.Go(func() error {
		if err := u.chats.SetLastMessage(ctx, msg.ReceiverID, msg.ChatID, msg.Content, msg.CreatedAt); err != nil {
			return err
		}
		return u.chats.IncrementUnread(ctx, msg.ReceiverID, msg.ChatID)
	})

	if err := g.Wait(); err != nil {
		return fmt.Errorf("update chat summaries for message %s: %w", msg.ID, err)
	}
	return nil
}

// MarkViewed resets the viewer's unread counter. The chat must belong to
// the viewer; domain.ErrNotFound otherwise. The reset is unconditional:
// last-writer-wins against a concurrent increment is accepted.
func (u *Updater) MarkViewed(ctx context.Context, viewerID, chatID string) error {
	if _, err := u.chats.FindByOwnerAndID(ctx, viewerID, chatID); err != nil {
		return err
	}
	if err := u.chats.ResetUnread(ctx, viewerID, chatID); err != nil {
		return fmt.Errorf("reset unread for chat %s: %w", chatID, err)
	}
	u.logger.Debug("chat viewed", "user_id", viewerID, "chat_id", chatID)
	return nil
}
