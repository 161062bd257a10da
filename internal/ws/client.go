package ws

import (
	"context"
	"io"
	"time"

	"github.com/coder/websocket"
)

const writeTimeout = 10 * time.Second

// client is one live WebSocket connection.
type client struct {
	id     string
	userID string
	conn   *websocket.Conn
	send   chan []byte
	bridge *Bridge
}

// readPump pumps frames from the connection into the sink until the
// transport reports closure, then runs the disconnect path.
func (c *client) readPump(sink EventSink) {
	defer func() {
		c.bridge.remove(c)
		c.conn.Close(websocket.StatusNormalClosure, "client disconnected")
		if err := sink.OnDisconnect(context.Background(), c.id); err != nil {
			c.bridge.logger.Error("disconnect handling failed",
				"conn_id", c.id, "error", err)
		}
	}()

	for {
		_, payload, err := c.conn.Read(context.Background())
		if err != nil {
			status := websocket.CloseStatus(err)
			if status == websocket.StatusNormalClosure || status == websocket.StatusGoingAway {
				c.bridge.logger.Debug("websocket closed by client", "conn_id", c.id)
			} else if err != io.EOF {
				c.bridge.logger.Warn("websocket read error", "conn_id", c.id, "error", err)
			}
			return
		}

		if err := sink.OnClientEvent(context.Background(), c.id, payload); err != nil {
			// A bad or failed event doesn't tear the connection down.
			c.bridge.logger.Warn("client event failed",
				"user_id", c.userID, "conn_id", c.id, "error", err)
		}
	}
}

// writePump pumps payloads from the send channel onto the wire.
func (c *client) writePump() {
	defer c.conn.Close(websocket.StatusNormalClosure, "server-side cleanup")

	for payload := range c.send {
		ctx, cancel := context.WithTimeout(context.Background(), writeTimeout)
		err := c.conn.Write(ctx, websocket.MessageText, payload)
		cancel()
		if err != nil {
			c.bridge.logger.Warn("websocket write error", "conn_id", c.id, "error", err)
			return
		}
	}
}
