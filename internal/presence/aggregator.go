// Package presence turns bursts of connect/disconnect activity into
// consolidated "who is online now" broadcasts.
package presence

import (
	"context"
	"encoding/json"
	"errors"
	"log/slog"
	"sort"
	"sync"
	"time"

	"github.com/chatme-app/chatme/internal/domain"
	"github.com/chatme-app/chatme/internal/pubsub"
)

// DefaultDebounce is the quiet period after the last connect/disconnect
// before a broadcast fires. Page reloads disconnect and immediately
// reconnect; a few seconds of slack collapses that churn into one push.
const DefaultDebounce = 3 * time.Second

// ConnectionLister is the slice of the registry the aggregator needs.
type ConnectionLister interface {
	ListAll(ctx context.Context) ([]domain.Connection, error)
}

// Sender pushes a payload to a single connection.
type Sender interface {
	Send(connID string, payload []byte) error
}

// OnlineUsersEvent is the outbound broadcast. It always carries the full
// online set, never a delta: clients replace their local state wholesale,
// so a missed broadcast self-heals on the next one.
type OnlineUsersEvent struct {
	EventType   string   `json:"eventType"`
	OnlineUsers []string `json:"onlineUsers"`
}

// Aggregator consumes recompute jobs from the work queue, debounces them,
// recomputes the online set from the registry and pushes it to every live
// connection. The online set is a pure function of the registry; the cached
// copy is only ever replaced by a fresh recompute.
type Aggregator struct {
	registry ConnectionLister
	sender   Sender
	debounce time.Duration
	logger   *slog.Logger

	mu      sync.Mutex
	pending *time.Timer
	online  []string
	cached  bool
}

// Option configures an Aggregator.
type Option func(*Aggregator)

// WithDebounce overrides the debounce window. Zero disables debouncing and
// recomputes synchronously, which tests rely on.
func WithDebounce(d time.Duration) Option {
	return func(a *Aggregator) {
		a.debounce = d
	}
}

// NewAggregator creates an Aggregator.
func NewAggregator(registry ConnectionLister, sender Sender, opts ...Option) *Aggregator {
	a := &Aggregator{
		registry: registry,
		sender:   sender,
		debounce: DefaultDebounce,
		logger:   slog.Default().With("service", "presence"),
	}
	for _, opt := range opts {
		opt(a)
	}
	return a
}

// Start subscribes the aggregator to the recompute queue.
func (a *Aggregator) Start(ctx context.Context, sub pubsub.Subscriber) error {
	return sub.Subscribe(ctx, TopicRecompute, a.handleJob)
}

func (a *Aggregator) handleJob(ctx context.Context, msg pubsub.Message) error {
	var job RecomputeJob
	if err := json.Unmarshal(msg.Payload, &job); err != nil {
		// A malformed job is dropped, not retried; the next lifecycle event
		// will trigger a recompute anyway.
		a.logger.Error("failed to unmarshal recompute job", "error", err)
		return nil
	}

	a.logger.Debug("presence recompute queued",
		"type", job.Type, "user_id", job.UserID, "conn_id", job.ConnectionID)
	a.schedule()
	return nil
}

// schedule arms or extends the debounce timer. Trailing-edge: the broadcast
// fires one window after the last event of a burst, so at least one
// recompute always happens after the final event.
func (a *Aggregator) schedule() {
	if a.debounce <= 0 {
		a.Recompute(context.Background())
		return
	}

	a.mu.Lock()
	defer a.mu.Unlock()
	if a.pending != nil {
		a.pending.Reset(a.debounce)
		return
	}
	a.pending = time.AfterFunc(a.debounce, func() {
		a.Recompute(context.Background())
	})
}

// Recompute derives the current online set from the registry and broadcasts
// it to every live connection. Push failures to stale connections are logged
// and swallowed; the registry corrects itself on the next unregister.
func (a *Aggregator) Recompute(ctx context.Context) {
	a.mu.Lock()
	if a.pending != nil {
		a.pending.Stop()
		a.pending = nil
	}
	a.mu.Unlock()

	conns, err := a.registry.ListAll(ctx)
	if err != nil {
		// Leave the cache untouched; the queue redelivers and the next
		// lifecycle event reschedules.
		a.logger.Error("failed to list connections for recompute", "error", err)
		return
	}

	online := distinctUsers(conns)

	a.mu.Lock()
	a.online = online
	a.cached = true
	a.mu.Unlock()

	payload, err := json.Marshal(OnlineUsersEvent{
		EventType:   "online_users",
		OnlineUsers: online,
	})
	if err != nil {
		a.logger.Error("failed to marshal online users event", "error", err)
		return
	}

	delivered := 0
	for _, conn := range conns {
		if err := a.sender.Send(conn.ID, payload); err != nil {
			if errors.Is(err, domain.ErrStaleConnection) {
				a.logger.Debug("skipping stale connection", "conn_id", conn.ID)
				continue
			}
			a.logger.Error("failed to push online users",
				"conn_id", conn.ID, "error", err)
			continue
		}
		delivered++
	}

	a.logger.Info("presence broadcast",
		"online_users", len(online),
		"connections", len(conns),
		"delivered", delivered)
}

// OnlineUsers returns the most recently broadcast online set, computing a
// fresh snapshot when none has been cached yet.
func (a *Aggregator) OnlineUsers(ctx context.Context) ([]string, error) {
	a.mu.Lock()
	if a.cached {
		online := make([]string, len(a.online))
		copy(online, a.online)
		a.mu.Unlock()
		return online, nil
	}
	a.mu.Unlock()

	conns, err := a.registry.ListAll(ctx)
	if err != nil {
		return nil, err
	}
	online := distinctUsers(conns)

	a.mu.Lock()
	a.online = online
	a.cached = true
	a.mu.Unlock()
	return online, nil
}

// Shutdown cancels any pending broadcast.
func (a *Aggregator) Shutdown() {
	a.mu.Lock()
	defer a.mu.Unlock()
	if a.pending != nil {
		a.pending.Stop()
		a.pending = nil
	}
}

func distinctUsers(conns []domain.Connection) []string {
	seen := make(map[string]struct{}, len(conns))
	users := make([]string, 0, len(conns))
	for _, conn := range conns {
		if _, ok := seen[conn.UserID]; ok {
			continue
		}
		seen[conn.UserID] = struct{}{}
		users = append(users, conn.UserID)
	}
	// Sorted so repeated broadcasts of the same state are byte-identical.
	sort.Strings(users)
	return users
}
