package ws

import (
	"fmt"
	"sync"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/chatme-app/chatme/internal/domain"
)

func TestSendToUnknownConnectionIsStale(t *testing.T) {
	b := NewBridge()

	err := b.Send("never-registered", []byte("hello"))
	assert.ErrorIs(t, err, domain.ErrStaleConnection)
}

func TestSendToFullBufferRetiresConnection(t *testing.T) {
	b := NewBridge()
	cl := &client{id: "conn-1", userID: "alice", send: make(chan []byte, 1), bridge: b}
	b.clients[cl.id] = cl

	// First payload fits the buffer; nothing is draining it, so the second
	// marks the client dead and retires it.
	require.NoError(t, b.Send("conn-1", []byte("one")))
	err := b.Send("conn-1", []byte("two"))
	assert.ErrorIs(t, err, domain.ErrStaleConnection)

	// Retired for good: later sends fail the same way.
	err = b.Send("conn-1", []byte("three"))
	assert.ErrorIs(t, err, domain.ErrStaleConnection)
}

func TestConcurrentSendAndRemoveDoesNotPanic(t *testing.T) {
	// Disconnect closes the send channel while broadcasts are in flight.
	// A Send racing the close must come back stale, never panic.
	for i := 0; i < 50; i++ {
		b := NewBridge()
		cl := &client{
			id:     fmt.Sprintf("conn-%d", i),
			userID: "alice",
			send:   make(chan []byte, 4),
			bridge: b,
		}
		b.clients[cl.id] = cl

		var wg sync.WaitGroup
		for s := 0; s < 4; s++ {
			wg.Add(1)
			go func() {
				defer wg.Done()
				for j := 0; j < 100; j++ {
					if err := b.Send(cl.id, []byte("online_users")); err != nil {
						assert.ErrorIs(t, err, domain.ErrStaleConnection)
						return
					}
				}
			}()
		}
		wg.Add(1)
		go func() {
			defer wg.Done()
			b.remove(cl)
		}()
		wg.Wait()
	}
}

func TestRemoveIsIdempotent(t *testing.T) {
	b := NewBridge()
	cl := &client{id: "conn-1", userID: "alice", send: make(chan []byte, 1), bridge: b}
	b.clients[cl.id] = cl

	b.remove(cl)
	assert.NotPanics(t, func() { b.remove(cl) })
}
