// Package handlers contains the HTTP layer: request decoding, validation
// and mapping domain results onto JSON responses.
package handlers

import (
	"log/slog"
	"net/http"

	"github.com/labstack/echo/v4"

	"github.com/chatme-app/chatme/internal/identity"
)

// AuthHandler handles account registration and sign-in.
type AuthHandler struct {
	identity *identity.Service
}

// NewAuthHandler creates a new AuthHandler.
func NewAuthHandler(identity *identity.Service) *AuthHandler {
	return &AuthHandler{identity: identity}
}

// SignUp registers a new account and signs it in (POST /auth/signup).
func (h *AuthHandler) SignUp(c echo.Context) error {
	var req SignUpRequest
	if err := c.Bind(&req); err != nil {
		return echo.NewHTTPError(http.StatusBadRequest, "invalid request body")
	}
	if err := c.Validate(&req); err != nil {
		return httpError(err)
	}

	ctx := c.Request().Context()
	user, err := h.identity.SignUp(ctx, req.Name, req.Email, req.Password)
	if err != nil {
		return httpError(err)
	}

	token, err := h.identity.IssueToken(user.ID)
	if err != nil {
		slog.Error("failed to issue token after signup", "user_id", user.ID, "error", err)
		return httpError(err)
	}

	return c.JSON(http.StatusCreated, AuthResponse{User: user, Token: token})
}

// SignIn checks credentials and returns a token (POST /auth/signin).
func (h *AuthHandler) SignIn(c echo.Context) error {
	var req SignInRequest
	if err := c.Bind(&req); err != nil {
		return echo.NewHTTPError(http.StatusBadRequest, "invalid request body")
	}
	if err := c.Validate(&req); err != nil {
		return httpError(err)
	}

	user, token, err := h.identity.SignIn(c.Request().Context(), req.Email, req.Password)
	if err != nil {
		slog.Warn("failed sign-in attempt", "email", req.Email)
		return httpError(err)
	}

	return c.JSON(http.StatusOK, AuthResponse{User: user, Token: token})
}
