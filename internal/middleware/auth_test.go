package middleware

import (
	"context"
	"net/http"
	"net/http/httptest"
	"testing"

	"github.com/labstack/echo/v4"
	"github.com/stretchr/testify/assert"

	"github.com/chatme-app/chatme/internal/domain"
)

type fakeVerifier struct {
	tokens map[string]string // token -> userID
}

func (v *fakeVerifier) VerifyToken(ctx context.Context, token string) (string, error) {
	if userID, ok := v.tokens[token]; ok {
		return userID, nil
	}
	return "", domain.ErrUnauthorized
}

func setupAuthTest() *echo.Echo {
	e := echo.New()
	verifier := &fakeVerifier{tokens: map[string]string{"good-token": "alice"}}
	e.GET("/protected", func(c echo.Context) error {
		return c.String(http.StatusOK, UserID(c))
	}, Auth(verifier))
	return e
}

func TestAuthMiddleware(t *testing.T) {
	e := setupAuthTest()

	t.Run("missing token is rejected", func(t *testing.T) {
		req := httptest.NewRequest(http.MethodGet, "/protected", nil)
		rec := httptest.NewRecorder()

		e.ServeHTTP(rec, req)
		assert.Equal(t, http.StatusUnauthorized, rec.Code)
	})

	t.Run("invalid token is rejected", func(t *testing.T) {
		req := httptest.NewRequest(http.MethodGet, "/protected", nil)
		req.Header.Set(echo.HeaderAuthorization, "Bearer bad-token")
		rec := httptest.NewRecorder()

		e.ServeHTTP(rec, req)
		assert.Equal(t, http.StatusUnauthorized, rec.Code)
	})

	t.Run("bearer header authenticates", func(t *testing.T) {
		req := httptest.NewRequest(http.MethodGet, "/protected", nil)
		req.Header.Set(echo.HeaderAuthorization, "Bearer good-token")
		rec := httptest.NewRecorder()

		e.ServeHTTP(rec, req)
		assert.Equal(t, http.StatusOK, rec.Code)
		assert.Equal(t, "alice", rec.Body.String())
	})

	t.Run("query parameter authenticates for socket upgrades", func(t *testing.T) {
		req := httptest.NewRequest(http.MethodGet, "/protected?token=good-token", nil)
		rec := httptest.NewRecorder()

		e.ServeHTTP(rec, req)
		assert.Equal(t, http.StatusOK, rec.Code)
		assert.Equal(t, "alice", rec.Body.String())
	})
}
