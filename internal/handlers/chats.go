package handlers

import (
	"context"
	"net/http"

	"github.com/labstack/echo/v4"

	"github.com/chatme-app/chatme/internal/domain"
	"github.com/chatme-app/chatme/internal/middleware"
)

// ChatStarter opens (or returns) the conversation between two users. The
// event router implements it so WebSocket and HTTP starts share one path.
type ChatStarter interface {
	StartChat(ctx context.Context, callerID, targetID string) (*domain.ExtendedChat, error)
}

// ChatHandler serves chat listings, chat creation and message history.
type ChatHandler struct {
	chats    domain.ChatRepository
	messages domain.MessageRepository
	users    domain.UserRepository
	starter  ChatStarter
}

// NewChatHandler creates a new ChatHandler.
func NewChatHandler(
	chats domain.ChatRepository,
	messages domain.MessageRepository,
	users domain.UserRepository,
	starter ChatStarter,
) *ChatHandler {
	return &ChatHandler{chats: chats, messages: messages, users: users, starter: starter}
}

// List returns a page of the caller's chats, most recently active first,
// each joined with the contact's profile (GET /chats?search=&limit=&cursor=).
func (h *ChatHandler) List(c echo.Context) error {
	ctx := c.Request().Context()
	callerID := middleware.UserID(c)

	chats, next, err := h.chats.ListByOwner(ctx, callerID, listQuery(c))
	if err != nil {
		return httpError(err)
	}

	extended := make([]domain.ExtendedChat, 0, len(chats))
	for _, chat := range chats {
		contact, err := h.users.FindByID(ctx, chat.ContactID)
		if err != nil {
			// A deleted contact still leaves the chat listable.
			extended = append(extended, domain.ExtendedChat{Chat: chat})
			continue
		}
		extended = append(extended, domain.ExtendedChat{Chat: chat, Contact: contact.Contact()})
	}

	return c.JSON(http.StatusOK, Page[domain.ExtendedChat]{Items: extended, NextCursor: next})
}

// Start opens a chat with another user, returning the existing one when the
// pair already has a conversation (POST /chats).
func (h *ChatHandler) Start(c echo.Context) error {
	var req StartChatRequest
	if err := c.Bind(&req); err != nil {
		return echo.NewHTTPError(http.StatusBadRequest, "invalid request body")
	}
	if err := c.Validate(&req); err != nil {
		return httpError(err)
	}

	chat, err := h.starter.StartChat(c.Request().Context(), middleware.UserID(c), req.ContactID)
	if err != nil {
		return httpError(err)
	}
	return c.JSON(http.StatusCreated, chat)
}

// Messages returns one page of a chat's history in chronological order
// (GET /chats/:chatId/messages?limit=&cursor=). Paging walks backwards
// through time: the first page is the most recent messages, the cursor
// fetches older ones.
func (h *ChatHandler) Messages(c echo.Context) error {
	ctx := c.Request().Context()
	chatID := c.Param("chatId")

	// The chat must belong to the caller.
	if _, err := h.chats.FindByOwnerAndID(ctx, middleware.UserID(c), chatID); err != nil {
		return httpError(err)
	}

	msgs, next, err := h.messages.ListByChat(ctx, chatID, listQuery(c))
	if err != nil {
		return httpError(err)
	}

	// The store returns newest first; clients render oldest first.
	for i, j := 0, len(msgs)-1; i < j; i, j = i+1, j-1 {
		msgs[i], msgs[j] = msgs[j], msgs[i]
	}

	return c.JSON(http.StatusOK, Page[domain.Message]{Items: msgs, NextCursor: next})
}
