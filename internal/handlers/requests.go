package handlers

import (
	"strconv"

	"github.com/go-playground/validator/v10"
	"github.com/labstack/echo/v4"

	"github.com/chatme-app/chatme/internal/domain"
)

// CustomValidator wraps go-playground/validator to implement Echo's
// Validator interface.
type CustomValidator struct {
	validator *validator.Validate
}

// NewValidator creates a new CustomValidator.
func NewValidator() *CustomValidator {
	return &CustomValidator{validator: validator.New()}
}

// Validate implements the echo.Validator interface.
func (cv *CustomValidator) Validate(i interface{}) error {
	return cv.validator.Struct(i)
}

// SignUpRequest is the payload for POST /auth/signup.
type SignUpRequest struct {
	Name     string `json:"name" validate:"required,min=2,max=64"`
	Email    string `json:"email" validate:"required,email"`
	Password string `json:"password" validate:"required,min=8,max=72"`
}

// SignInRequest is the payload for POST /auth/signin.
type SignInRequest struct {
	Email    string `json:"email" validate:"required,email"`
	Password string `json:"password" validate:"required"`
}

// StartChatRequest is the payload for POST /chats.
type StartChatRequest struct {
	ContactID string `json:"contactId" validate:"required"`
}

const (
	defaultPageLimit = 20
	maxPageLimit     = 100
)

// listQuery extracts cursor pagination and search parameters from the
// request. Out-of-range limits clamp rather than error.
func listQuery(c echo.Context) domain.ListQuery {
	limit := defaultPageLimit
	if raw := c.QueryParam("limit"); raw != "" {
		if parsed, err := strconv.Atoi(raw); err == nil && parsed > 0 {
			limit = parsed
		}
	}
	if limit > maxPageLimit {
		limit = maxPageLimit
	}
	return domain.ListQuery{
		Limit:  limit,
		Cursor: c.QueryParam("cursor"),
		Search: domain.NormalizeSearchName(c.QueryParam("search")),
	}
}
