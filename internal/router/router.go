// Package router dispatches client socket events to the domain services and
// pushes the resulting events back out through the delivery transport.
package router

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"log/slog"
	"sync"
	"time"

	"github.com/google/uuid"
	"golang.org/x/sync/errgroup"
	"golang.org/x/time/rate"

	"github.com/chatme-app/chatme/internal/domain"
	"github.com/chatme-app/chatme/internal/presence"
	"github.com/chatme-app/chatme/internal/pubsub"
)

// typingRate caps relayed typing signals per sender. Typing indicators are
// cosmetic; excess signals are dropped, not queued.
const typingRate = rate.Limit(5)

// Directory is the slice of the connection registry the router needs.
type Directory interface {
	Register(ctx context.Context, connID, userID string) error
	Unregister(ctx context.Context, connID string) error
	FindByConnection(ctx context.Context, connID string) (string, error)
	ConnectionsForUser(ctx context.Context, userID string) ([]domain.Connection, error)
}

// Sender pushes a payload to a single connection.
type Sender interface {
	Send(connID string, payload []byte) error
}

// StateUpdater keeps chat summaries in step with the message stream.
type StateUpdater interface {
	OnNewMessage(ctx context.Context, msg *domain.Message) error
	MarkViewed(ctx context.Context, viewerID, chatID string) error
}

// Router implements the transport's event sink. Each inbound frame resolves
// the sending user through the directory, runs the domain operation and
// fans resulting events out to the affected users' connections.
type Router struct {
	directory Directory
	chats     domain.ChatRepository
	messages  domain.MessageRepository
	users     domain.UserRepository
	updater   StateUpdater
	sender    Sender
	queue     pubsub.Publisher
	logger    *slog.Logger
	now       func() time.Time

	mu     sync.Mutex
	typing map[string]*rate.Limiter
}

// New creates a Router.
func New(
	directory Directory,
	chats domain.ChatRepository,
	messages domain.MessageRepository,
	users domain.UserRepository,
	updater StateUpdater,
	sender Sender,
	queue pubsub.Publisher,
) *Router {
	return &Router{
		directory: directory,
		chats:     chats,
		messages:  messages,
		users:     users,
		updater:   updater,
		sender:    sender,
		queue:     queue,
		logger:    slog.Default().With("service", "router"),
		now:       time.Now,
		typing:    make(map[string]*rate.Limiter),
	}
}

// OnConnect registers the connection and queues a presence recompute.
func (r *Router) OnConnect(ctx context.Context, userID, connID string) error {
	if err := r.directory.Register(ctx, connID, userID); err != nil {
		return err
	}
	r.enqueueRecompute(ctx, "connect", userID, connID)
	return nil
}

// OnDisconnect unregisters the connection and queues a presence recompute.
// The recompute is queued even when the record was already gone, so a
// broadcast raced by cleanup still converges.
func (r *Router) OnDisconnect(ctx context.Context, connID string) error {
	userID, err := r.directory.FindByConnection(ctx, connID)
	if err != nil && !errors.Is(err, domain.ErrNotFound) {
		return err
	}
	if err := r.directory.Unregister(ctx, connID); err != nil {
		return err
	}
	r.enqueueRecompute(ctx, "disconnect", userID, connID)
	return nil
}

// OnClientEvent decodes the envelope and dispatches on the action. Unknown
// actions are an error so the transport can log them; they never tear the
// connection down.
func (r *Router) OnClientEvent(ctx context.Context, connID string, payload []byte) error {
	var ev ClientEvent
	if err := json.Unmarshal(payload, &ev); err != nil {
		return fmt.Errorf("malformed client event: %w", err)
	}

	senderID, err := r.directory.FindByConnection(ctx, connID)
	if err != nil {
		return fmt.Errorf("resolve connection %s: %w", connID, err)
	}

	switch ev.Action {
	case ActionSendMessage:
		return r.handleSendMessage(ctx, senderID, ev.Data)
	case ActionViewChat:
		return r.handleViewChat(ctx, senderID, ev.Data)
	case ActionTypingChat:
		return r.handleTypingChat(ctx, senderID, ev.Data)
	case ActionStartChat:
		return r.handleStartChat(ctx, senderID, ev.Data)
	default:
		return fmt.Errorf("unknown action %q", ev.Action)
	}
}

func (r *Router) handleSendMessage(ctx context.Context, senderID string, data json.RawMessage) error {
	var in SendMessageData
	if err := json.Unmarshal(data, &in); err != nil {
		return fmt.Errorf("malformed send_message data: %w", err)
	}
	if in.Message == "" || in.ChatID == "" || in.ContactID == "" {
		return fmt.Errorf("send_message: message, chatId and contactId are required")
	}

	// The chat must belong to the sender; otherwise any connection could
	// write into any conversation.
	if _, err := r.chats.FindByOwnerAndID(ctx, senderID, in.ChatID); err != nil {
		return fmt.Errorf("send_message: chat %s: %w", in.ChatID, err)
	}

	msg := &domain.Message{
		ID:         uuid.NewString(),
		ChatID:     in.ChatID,
		SenderID:   senderID,
		ReceiverID: in.ContactID,
		Content:    in.Message,
		CreatedAt:  r.now().UTC(),
	}

	// Persistence, summary updates and live delivery are independent; they
	// run concurrently and the operation fails if any of them does. Delivery
	// failures to stale connections don't count: the message is durable and
	// the client catches up over HTTP.
	g, gctx := errgroup.WithContext(ctx)
	g.Go(func() error {
		return r.messages.Create(gctx, msg)
	})
	g.Go(func() error {
		return r.updater.OnNewMessage(gctx, msg)
	})
	g.Go(func() error {
		return r.deliverMessage(gctx, msg)
	})
	if err := g.Wait(); err != nil {
		return fmt.Errorf("send_message: %w", err)
	}

	r.logger.Debug("message routed",
		"chat_id", msg.ChatID, "sender_id", senderID, "receiver_id", in.ContactID)
	return nil
}

// deliverMessage pushes the message to every live connection of the
// receiver. ContactID in the outbound event is the sender, the receiver's
// view of the conversation.
func (r *Router) deliverMessage(ctx context.Context, msg *domain.Message) error {
	conns, err := r.directory.ConnectionsForUser(ctx, msg.ReceiverID)
	if err != nil {
		return fmt.Errorf("list receiver connections: %w", err)
	}

	payload, err := json.Marshal(ReceivedMessageEvent{
		EventType: EventReceivedMessage,
		Message:   msg,
		ChatID:    msg.ChatID,
		ContactID: msg.SenderID,
		CreatedAt: msg.CreatedAt.Format(time.RFC3339Nano),
	})
	if err != nil {
		return fmt.Errorf("marshal received_message: %w", err)
	}

	r.fanOut(conns, payload)
	return nil
}

func (r *Router) handleViewChat(ctx context.Context, viewerID string, data json.RawMessage) error {
	var in ViewChatData
	if err := json.Unmarshal(data, &in); err != nil {
		return fmt.Errorf("malformed view_chat data: %w", err)
	}
	if in.ChatID == "" {
		return fmt.Errorf("view_chat: chatId is required")
	}
	if err := r.updater.MarkViewed(ctx, viewerID, in.ChatID); err != nil {
		return fmt.Errorf("view_chat: %w", err)
	}
	return nil
}

func (r *Router) handleTypingChat(ctx context.Context, senderID string, data json.RawMessage) error {
	var in TypingChatData
	if err := json.Unmarshal(data, &in); err != nil {
		return fmt.Errorf("malformed typing_chat data: %w", err)
	}
	if in.ChatID == "" || in.ContactID == "" {
		return fmt.Errorf("typing_chat: chatId and contactId are required")
	}

	if !r.typingLimiter(senderID).Allow() {
		r.logger.Debug("typing signal throttled", "user_id", senderID)
		return nil
	}

	conns, err := r.directory.ConnectionsForUser(ctx, in.ContactID)
	if err != nil {
		return fmt.Errorf("typing_chat: %w", err)
	}

	payload, err := json.Marshal(TypingChatEvent{
		EventType: EventTypingChat,
		ChatID:    in.ChatID,
		ContactID: senderID,
		IsTyping:  in.IsTyping,
	})
	if err != nil {
		return fmt.Errorf("marshal typing_chat: %w", err)
	}

	r.fanOut(conns, payload)
	return nil
}

func (r *Router) handleStartChat(ctx context.Context, callerID string, data json.RawMessage) error {
	var in StartChatData
	if err := json.Unmarshal(data, &in); err != nil {
		return fmt.Errorf("malformed start_chat data: %w", err)
	}
	if in.ContactID == "" {
		return fmt.Errorf("start_chat: contactId is required")
	}
	if _, err := r.StartChat(ctx, callerID, in.ContactID); err != nil {
		return fmt.Errorf("start_chat: %w", err)
	}
	return nil
}

// StartChat opens a conversation between the caller and a target user, or
// returns the existing one. On a fresh create the target's live connections
// are told about their new chat. Also called by the HTTP layer.
func (r *Router) StartChat(ctx context.Context, callerID, targetID string) (*domain.ExtendedChat, error) {
	if callerID == targetID {
		return nil, fmt.Errorf("cannot start a chat with yourself")
	}

	target, err := r.users.FindByID(ctx, targetID)
	if err != nil {
		return nil, fmt.Errorf("target user %s: %w", targetID, err)
	}
	caller, err := r.users.FindByID(ctx, callerID)
	if err != nil {
		return nil, fmt.Errorf("caller %s: %w", callerID, err)
	}

	if existing, err := r.chats.FindByOwnerAndContact(ctx, callerID, targetID); err == nil {
		return &domain.ExtendedChat{Chat: *existing, Contact: target.Contact()}, nil
	} else if !errors.Is(err, domain.ErrNotFound) {
		return nil, err
	}

	now := r.now().UTC()
	chatID := uuid.NewString()
	mine := &domain.Chat{
		ID:                chatID,
		OwnerID:           callerID,
		ContactID:         targetID,
		ContactSearchName: target.SearchName,
		StartedBy:         callerID,
		CreatedAt:         now,
		UpdatedAt:         now,
	}
	theirs := &domain.Chat{
		ID:                chatID,
		OwnerID:           targetID,
		ContactID:         callerID,
		ContactSearchName: caller.SearchName,
		StartedBy:         callerID,
		CreatedAt:         now,
		UpdatedAt:         now,
	}

	if err := r.chats.CreatePair(ctx, mine, theirs); err != nil {
		if errors.Is(err, domain.ErrAlreadyExists) {
			// Lost a race against a concurrent start from either side; both
			// callers converge on the surviving pair.
			existing, ferr := r.chats.FindByOwnerAndContact(ctx, callerID, targetID)
			if ferr != nil {
				return nil, fmt.Errorf("chat pair exists but side is missing: %w", ferr)
			}
			return &domain.ExtendedChat{Chat: *existing, Contact: target.Contact()}, nil
		}
		return nil, err
	}

	r.notifyNewChat(ctx, theirs, caller)

	r.logger.Info("chat started",
		"chat_id", chatID, "caller_id", callerID, "target_id", targetID)
	return &domain.ExtendedChat{Chat: *mine, Contact: target.Contact()}, nil
}

// notifyNewChat pushes the target's side of a fresh chat to their live
// connections. Best effort: an offline target sees the chat on next login.
func (r *Router) notifyNewChat(ctx context.Context, theirs *domain.Chat, caller *domain.User) {
	conns, err := r.directory.ConnectionsForUser(ctx, theirs.OwnerID)
	if err != nil {
		r.logger.Warn("failed to list target connections for new chat",
			"user_id", theirs.OwnerID, "error", err)
		return
	}
	if len(conns) == 0 {
		return
	}

	payload, err := json.Marshal(ReceivedNewChatEvent{
		EventType: EventReceivedNewChat,
		Chat:      &domain.ExtendedChat{Chat: *theirs, Contact: caller.Contact()},
	})
	if err != nil {
		r.logger.Error("failed to marshal received_new_chat", "error", err)
		return
	}

	r.fanOut(conns, payload)
}

// fanOut pushes a payload to each connection, swallowing stale-connection
// failures. A user's device going away mid-delivery is routine, not an
// error of the operation being delivered.
func (r *Router) fanOut(conns []domain.Connection, payload []byte) {
	for _, conn := range conns {
		if err := r.sender.Send(conn.ID, payload); err != nil {
			if errors.Is(err, domain.ErrStaleConnection) {
				r.logger.Debug("skipping stale connection", "conn_id", conn.ID)
				continue
			}
			r.logger.Error("failed to push event", "conn_id", conn.ID, "error", err)
		}
	}
}

func (r *Router) enqueueRecompute(ctx context.Context, kind, userID, connID string) {
	payload, err := json.Marshal(presence.RecomputeJob{
		Type:         kind,
		UserID:       userID,
		ConnectionID: connID,
	})
	if err != nil {
		r.logger.Error("failed to marshal recompute job", "error", err)
		return
	}
	if err := r.queue.Publish(ctx, pubsub.Message{
		Topic:   presence.TopicRecompute,
		Payload: payload,
	}); err != nil {
		// Presence drifts until the next lifecycle event republishes.
		r.logger.Error("failed to enqueue presence recompute",
			"type", kind, "user_id", userID, "error", err)
	}
}

func (r *Router) typingLimiter(userID string) *rate.Limiter {
	r.mu.Lock()
	defer r.mu.Unlock()
	lim, ok := r.typing[userID]
	if !ok {
		lim = rate.NewLimiter(typingRate, int(typingRate))
		r.typing[userID] = lim
	}
	return lim
}
