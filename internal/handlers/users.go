package handlers

import (
	"fmt"
	"net/http"
	"path/filepath"

	"github.com/labstack/echo/v4"

	"github.com/chatme-app/chatme/internal/domain"
	"github.com/chatme-app/chatme/internal/middleware"
	"github.com/chatme-app/chatme/internal/storage"
)

// UserHandler serves the user directory and profile management.
type UserHandler struct {
	users domain.UserRepository
	store storage.Store
}

// NewUserHandler creates a new UserHandler.
func NewUserHandler(users domain.UserRepository, store storage.Store) *UserHandler {
	return &UserHandler{users: users, store: store}
}

// List returns a page of the user directory, optionally filtered by name
// (GET /users?search=&limit=&cursor=).
func (h *UserHandler) List(c echo.Context) error {
	users, next, err := h.users.List(c.Request().Context(), listQuery(c))
	if err != nil {
		return httpError(err)
	}
	return c.JSON(http.StatusOK, Page[domain.User]{Items: users, NextCursor: next})
}

// Get returns one user's public profile (GET /users/:id).
func (h *UserHandler) Get(c echo.Context) error {
	user, err := h.users.FindByID(c.Request().Context(), c.Param("id"))
	if err != nil {
		return httpError(err)
	}
	return c.JSON(http.StatusOK, user)
}

// Me returns the authenticated user's own profile (GET /users/me).
func (h *UserHandler) Me(c echo.Context) error {
	user, err := h.users.FindByID(c.Request().Context(), middleware.UserID(c))
	if err != nil {
		return httpError(err)
	}
	return c.JSON(http.StatusOK, user)
}

// UpdateMe updates the caller's display name and/or profile picture
// (PUT /users/me, multipart form with optional "name" and "picture"
// fields).
func (h *UserHandler) UpdateMe(c echo.Context) error {
	ctx := c.Request().Context()
	userID := middleware.UserID(c)

	var name *string
	if v := c.FormValue("name"); v != "" {
		name = &v
	}

	var picture *string
	if fileHeader, err := c.FormFile("picture"); err == nil {
		src, err := fileHeader.Open()
		if err != nil {
			return echo.NewHTTPError(http.StatusBadRequest, "invalid picture upload")
		}
		defer src.Close()

		// One picture per user; a new upload replaces the old one in place.
		path := fmt.Sprintf("profiles/%s%s", userID, filepath.Ext(fileHeader.Filename))
		if _, err := h.store.Save(ctx, path, src); err != nil {
			middleware.FromContext(ctx).Error("failed to save profile picture",
				"user_id", userID, "error", err)
			return httpError(err)
		}
		url := "/users/" + userID + "/picture"
		picture = &url
	}

	if name == nil && picture == nil {
		return echo.NewHTTPError(http.StatusBadRequest, "nothing to update")
	}

	user, err := h.users.UpdateProfile(ctx, userID, name, picture)
	if err != nil {
		return httpError(err)
	}
	return c.JSON(http.StatusOK, user)
}

// Picture streams a user's profile picture (GET /users/:id/picture).
func (h *UserHandler) Picture(c echo.Context) error {
	ctx := c.Request().Context()
	user, err := h.users.FindByID(ctx, c.Param("id"))
	if err != nil {
		return httpError(err)
	}
	if user.ProfilePicture == nil {
		return echo.NewHTTPError(http.StatusNotFound, "no profile picture")
	}

	// The stored extension is recovered by probing the known prefixes.
	for _, ext := range []string{".jpg", ".jpeg", ".png", ".webp", ""} {
		content, err := h.store.Get(ctx, "profiles/"+user.ID+ext)
		if err != nil {
			continue
		}
		defer content.Close()
		return c.Stream(http.StatusOK, mimeForExt(ext), content)
	}
	return echo.NewHTTPError(http.StatusNotFound, "no profile picture")
}

func mimeForExt(ext string) string {
	switch ext {
	case ".png":
		return "image/png"
	case ".webp":
		return "image/webp"
	default:
		return "image/jpeg"
	}
}
