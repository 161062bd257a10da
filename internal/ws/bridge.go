// Package ws is the delivery transport: it owns the WebSocket connections
// and knows how to push a payload to a specific connection ID.
package ws

import (
	"context"
	"fmt"
	"log/slog"
	"net/http"
	"sync"

	"github.com/coder/websocket"
	"github.com/google/uuid"
	"github.com/labstack/echo/v4"

	"github.com/chatme-app/chatme/internal/domain"
	"github.com/chatme-app/chatme/internal/middleware"
)

// EventSink receives connection lifecycle and client events from the
// bridge. The event router implements it.
type EventSink interface {
	OnConnect(ctx context.Context, userID, connID string) error
	OnDisconnect(ctx context.Context, connID string) error
	OnClientEvent(ctx context.Context, connID string, payload []byte) error
}

// Bridge manages all WebSocket connections. It assigns each accepted
// connection an opaque ID and exposes Send for pushing payloads to one
// connection.
type Bridge struct {
	mu      sync.RWMutex
	clients map[string]*client
	logger  *slog.Logger
}

// NewBridge initializes a Bridge with no connections.
func NewBridge() *Bridge {
	return &Bridge{
		clients: make(map[string]*client),
		logger:  slog.Default().With("service", "ws"),
	}
}

// Handler returns an echo.HandlerFunc that upgrades the request and runs
// the connection's read/write pumps. Lifecycle and client events flow into
// the sink.
func (b *Bridge) Handler(sink EventSink) echo.HandlerFunc {
	return func(c echo.Context) error {
		userID, ok := c.Get(middleware.UserIDContextKey).(string)
		if !ok || userID == "" {
			return c.String(http.StatusUnauthorized, "user not authenticated")
		}

		conn, err := websocket.Accept(c.Response(), c.Request(), &websocket.AcceptOptions{
			InsecureSkipVerify: true, // In production, check origin.
		})
		if err != nil {
			b.logger.Error("failed to upgrade connection", "error", err)
			return err
		}

		cl := &client{
			id:     uuid.NewString(),
			userID: userID,
			conn:   conn,
			send:   make(chan []byte, 256),
			bridge: b,
		}
		b.add(cl)

		// The connection outlives the upgrade request, so lifecycle events
		// run on a background context, not the request's.
		if err := sink.OnConnect(context.Background(), userID, cl.id); err != nil {
			b.logger.Error("connect rejected", "user_id", userID, "conn_id", cl.id, "error", err)
			b.remove(cl)
			conn.Close(websocket.StatusInternalError, "connect failed")
			return nil
		}

		go cl.writePump()
		go cl.readPump(sink)
		return nil
	}
}

// Send pushes a payload to a single connection. Returns
// domain.ErrStaleConnection when the connection is gone or its send buffer
// is full (a stuck client is treated as dead and retired).
func (b *Bridge) Send(connID string, payload []byte) error {
	// The read lock is held across the channel send: remove closes the
	// channel under the write lock, so a concurrent disconnect can never
	// close it between the lookup and the send.
	b.mu.RLock()
	cl, ok := b.clients[connID]
	if !ok {
		b.mu.RUnlock()
		return fmt.Errorf("connection %s: %w", connID, domain.ErrStaleConnection)
	}

	select {
	case cl.send <- payload:
		b.mu.RUnlock()
		return nil
	default:
	}
	b.mu.RUnlock()

	b.logger.Warn("send buffer full, retiring connection",
		"user_id", cl.userID, "conn_id", cl.id)
	b.remove(cl)
	return fmt.Errorf("connection %s: %w", connID, domain.ErrStaleConnection)
}

// Close tears down every live connection, e.g. on server shutdown.
func (b *Bridge) Close() {
	b.mu.Lock()
	clients := make([]*client, 0, len(b.clients))
	for _, cl := range b.clients {
		clients = append(clients, cl)
	}
	b.mu.Unlock()

	for _, cl := range clients {
		b.remove(cl)
		cl.conn.Close(websocket.StatusGoingAway, "server shutting down")
	}
}

func (b *Bridge) add(cl *client) {
	b.mu.Lock()
	b.clients[cl.id] = cl
	b.mu.Unlock()
	b.logger.Info("client connected", "user_id", cl.userID, "conn_id", cl.id)
}

// remove detaches a client and closes its send channel. Idempotent: the
// read pump and a failed Send can both try to retire the same client.
func (b *Bridge) remove(cl *client) {
	b.mu.Lock()
	defer b.mu.Unlock()
	if current, ok := b.clients[cl.id]; ok && current == cl {
		delete(b.clients, cl.id)
		close(cl.send)
		b.logger.Info("client disconnected", "user_id", cl.userID, "conn_id", cl.id)
	}
}
