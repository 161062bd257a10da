package presence

import (
	"context"
	"encoding/json"
	"sync"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/chatme-app/chatme/internal/domain"
	"github.com/chatme-app/chatme/internal/pubsub"
)

type fakeLister struct {
	mu    sync.Mutex
	conns []domain.Connection
}

func (l *fakeLister) ListAll(ctx context.Context) ([]domain.Connection, error) {
	l.mu.Lock()
	defer l.mu.Unlock()
	return append([]domain.Connection(nil), l.conns...), nil
}

func (l *fakeLister) set(conns ...domain.Connection) {
	l.mu.Lock()
	defer l.mu.Unlock()
	l.conns = conns
}

type fakeSender struct {
	mu    sync.Mutex
	sent  map[string][][]byte
	stale map[string]bool
}

func newFakeSender() *fakeSender {
	return &fakeSender{sent: make(map[string][][]byte), stale: make(map[string]bool)}
}

func (s *fakeSender) Send(connID string, payload []byte) error {
	s.mu.Lock()
	defer s.mu.Unlock()
	if s.stale[connID] {
		return domain.ErrStaleConnection
	}
	s.sent[connID] = append(s.sent[connID], payload)
	return nil
}

func (s *fakeSender) payloads(connID string) [][]byte {
	s.mu.Lock()
	defer s.mu.Unlock()
	return append([][]byte(nil), s.sent[connID]...)
}

func (s *fakeSender) totalSends() int {
	s.mu.Lock()
	defer s.mu.Unlock()
	n := 0
	for _, p := range s.sent {
		n += len(p)
	}
	return n
}

func recomputeJob(t *testing.T, kind, userID, connID string) pubsub.Message {
	t.Helper()
	payload, err := json.Marshal(RecomputeJob{Type: kind, UserID: userID, ConnectionID: connID})
	require.NoError(t, err)
	return pubsub.Message{Topic: TopicRecompute, Payload: payload}
}

func TestRecomputeBroadcastsFullSetToEveryConnection(t *testing.T) {
	lister := &fakeLister{}
	lister.set(
		domain.Connection{ID: "conn-1", UserID: "bob"},
		domain.Connection{ID: "conn-2", UserID: "alice"},
		domain.Connection{ID: "conn-3", UserID: "bob"},
	)
	sender := newFakeSender()
	agg := NewAggregator(lister, sender, WithDebounce(0))

	agg.Recompute(context.Background())

	for _, connID := range []string{"conn-1", "conn-2", "conn-3"} {
		payloads := sender.payloads(connID)
		require.Len(t, payloads, 1, "connection %s", connID)

		var ev OnlineUsersEvent
		require.NoError(t, json.Unmarshal(payloads[0], &ev))
		assert.Equal(t, "online_users", ev.EventType)
		// Always the full distinct set, sorted, never a delta.
		assert.Equal(t, []string{"alice", "bob"}, ev.OnlineUsers)
	}
}

func TestRecomputeSkipsStaleConnections(t *testing.T) {
	lister := &fakeLister{}
	lister.set(
		domain.Connection{ID: "conn-1", UserID: "alice"},
		domain.Connection{ID: "conn-2", UserID: "bob"},
	)
	sender := newFakeSender()
	sender.stale["conn-1"] = true
	agg := NewAggregator(lister, sender, WithDebounce(0))

	agg.Recompute(context.Background())

	assert.Empty(t, sender.payloads("conn-1"))
	assert.Len(t, sender.payloads("conn-2"), 1)
}

func TestBurstOfJobsCoalescesIntoOneBroadcast(t *testing.T) {
	lister := &fakeLister{}
	lister.set(domain.Connection{ID: "conn-1", UserID: "alice"})
	sender := newFakeSender()
	agg := NewAggregator(lister, sender, WithDebounce(30*time.Millisecond))

	ctx := context.Background()
	// A reload burst: disconnect and reconnect in quick succession.
	require.NoError(t, agg.handleJob(ctx, recomputeJob(t, "disconnect", "alice", "old-conn")))
	require.NoError(t, agg.handleJob(ctx, recomputeJob(t, "connect", "alice", "conn-1")))
	require.NoError(t, agg.handleJob(ctx, recomputeJob(t, "connect", "bob", "conn-9")))

	assert.Equal(t, 0, sender.totalSends(), "nothing fires inside the quiet period")

	assert.Eventually(t, func() bool {
		return sender.totalSends() == 1
	}, time.Second, 5*time.Millisecond)

	// And nothing more after the single trailing broadcast.
	time.Sleep(60 * time.Millisecond)
	assert.Equal(t, 1, sender.totalSends())
}

func TestMalformedJobIsDroppedWithoutRetry(t *testing.T) {
	lister := &fakeLister{}
	sender := newFakeSender()
	agg := NewAggregator(lister, sender, WithDebounce(0))

	err := agg.handleJob(context.Background(), pubsub.Message{
		Topic:   TopicRecompute,
		Payload: []byte("{not json"),
	})
	assert.NoError(t, err, "a poison message must be acked, not redelivered")
	assert.Equal(t, 0, sender.totalSends())
}

func TestOnlineUsersServesCachedSetAfterRecompute(t *testing.T) {
	lister := &fakeLister{}
	lister.set(domain.Connection{ID: "conn-1", UserID: "alice"})
	sender := newFakeSender()
	agg := NewAggregator(lister, sender, WithDebounce(0))

	ctx := context.Background()
	agg.Recompute(ctx)

	// The registry moves on, but reads serve the last broadcast state.
	lister.set(
		domain.Connection{ID: "conn-1", UserID: "alice"},
		domain.Connection{ID: "conn-2", UserID: "bob"},
	)

	online, err := agg.OnlineUsers(ctx)
	require.NoError(t, err)
	assert.Equal(t, []string{"alice"}, online)

	agg.Recompute(ctx)
	online, err = agg.OnlineUsers(ctx)
	require.NoError(t, err)
	assert.Equal(t, []string{"alice", "bob"}, online)
}

func TestOnlineUsersComputesFreshSnapshotWhenUncached(t *testing.T) {
	lister := &fakeLister{}
	lister.set(domain.Connection{ID: "conn-1", UserID: "carol"})
	agg := NewAggregator(lister, newFakeSender(), WithDebounce(0))

	online, err := agg.OnlineUsers(context.Background())
	require.NoError(t, err)
	assert.Equal(t, []string{"carol"}, online)
}
