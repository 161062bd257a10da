package handlers

import (
	"context"
	"net/http"

	"github.com/labstack/echo/v4"
)

// OnlineLister exposes the presence aggregator's current online set.
type OnlineLister interface {
	OnlineUsers(ctx context.Context) ([]string, error)
}

// PresenceHandler serves presence reads over HTTP. Live updates go over the
// socket; this endpoint exists for initial page loads and debugging.
type PresenceHandler struct {
	presence OnlineLister
}

// NewPresenceHandler creates a new PresenceHandler.
func NewPresenceHandler(presence OnlineLister) *PresenceHandler {
	return &PresenceHandler{presence: presence}
}

// GetOnlineUsers returns the current online user IDs (GET /presence).
func (h *PresenceHandler) GetOnlineUsers(c echo.Context) error {
	online, err := h.presence.OnlineUsers(c.Request().Context())
	if err != nil {
		return httpError(err)
	}
	return c.JSON(http.StatusOK, map[string]any{
		"onlineUsers": online,
		"count":       len(online),
	})
}

// HealthCheck reports liveness (GET /health).
func HealthCheck(c echo.Context) error {
	return c.JSON(http.StatusOK, map[string]string{"status": "ok"})
}
