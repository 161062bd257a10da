package pubsub

import (
	"context"
	"sync"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestPublishSubscribeRoundTrip(t *testing.T) {
	q := NewWatermillQueue()
	defer q.Close()

	ctx := context.Background()

	var mu sync.Mutex
	var received []Message
	err := q.Subscribe(ctx, "test.topic", func(ctx context.Context, msg Message) error {
		mu.Lock()
		defer mu.Unlock()
		received = append(received, msg)
		return nil
	})
	require.NoError(t, err)

	require.NoError(t, q.Publish(ctx, Message{
		Topic:    "test.topic",
		Payload:  []byte(`{"hello":"world"}`),
		Metadata: map[string]string{"origin": "test"},
	}))

	assert.Eventually(t, func() bool {
		mu.Lock()
		defer mu.Unlock()
		return len(received) == 1
	}, time.Second, 5*time.Millisecond)

	mu.Lock()
	defer mu.Unlock()
	assert.Equal(t, "test.topic", received[0].Topic)
	assert.JSONEq(t, `{"hello":"world"}`, string(received[0].Payload))
	assert.Equal(t, "test", received[0].Metadata["origin"])
}

func TestSubscriberOnlySeesItsTopic(t *testing.T) {
	q := NewWatermillQueue()
	defer q.Close()

	ctx := context.Background()

	var mu sync.Mutex
	var got []string
	err := q.Subscribe(ctx, "topic.a", func(ctx context.Context, msg Message) error {
		mu.Lock()
		defer mu.Unlock()
		got = append(got, string(msg.Payload))
		return nil
	})
	require.NoError(t, err)

	require.NoError(t, q.Publish(ctx, Message{Topic: "topic.b", Payload: []byte("b")}))
	require.NoError(t, q.Publish(ctx, Message{Topic: "topic.a", Payload: []byte("a")}))

	assert.Eventually(t, func() bool {
		mu.Lock()
		defer mu.Unlock()
		return len(got) == 1 && got[0] == "a"
	}, time.Second, 5*time.Millisecond)
}
