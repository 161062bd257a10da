package middleware

import (
	"net/http"
	"strings"

	"github.com/labstack/echo/v4"

	"github.com/chatme-app/chatme/internal/identity"
)

// UserIDContextKey is where Auth stores the authenticated user's ID on the
// echo context.
const UserIDContextKey = "userID"

// Auth protects routes that require authentication. The token comes from
// the Authorization header, or from a "token" query parameter for WebSocket
// upgrades, where browsers cannot set headers.
func Auth(verifier identity.Verifier) echo.MiddlewareFunc {
	return func(next echo.HandlerFunc) echo.HandlerFunc {
		return func(c echo.Context) error {
			token := bearerToken(c.Request().Header.Get(echo.HeaderAuthorization))
			if token == "" {
				token = c.QueryParam("token")
			}
			if token == "" {
				return echo.NewHTTPError(http.StatusUnauthorized, "missing token")
			}

			userID, err := verifier.VerifyToken(c.Request().Context(), token)
			if err != nil {
				return echo.NewHTTPError(http.StatusUnauthorized, "invalid token")
			}

			c.Set(UserIDContextKey, userID)
			return next(c)
		}
	}
}

// UserID returns the authenticated user's ID set by Auth, or "".
func UserID(c echo.Context) string {
	userID, _ := c.Get(UserIDContextKey).(string)
	return userID
}

func bearerToken(header string) string {
	const prefix = "Bearer "
	if len(header) > len(prefix) && strings.EqualFold(header[:len(prefix)], prefix) {
		return header[len(prefix):]
	}
	return ""
}
