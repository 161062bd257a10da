package router

import (
	"encoding/json"

	"github.com/chatme-app/chatme/internal/domain"
)

// Inbound actions a client may send over the socket.
const (
	ActionSendMessage = "send_message"
	ActionViewChat    = "view_chat"
	ActionTypingChat  = "typing_chat"
	ActionStartChat   = "start_chat"
)

// Outbound event types pushed to clients.
const (
	EventReceivedMessage = "received_message"
	EventTypingChat      = "typing_chat"
	EventReceivedNewChat = "received_new_chat"
)

// ClientEvent is the envelope for every inbound frame. Data is decoded per
// action once the envelope is known.
type ClientEvent struct {
	Action string          `json:"action"`
	Data   json.RawMessage `json:"data"`
}

// SendMessageData carries a new message for an existing chat. ContactID is
// the receiver.
type SendMessageData struct {
	Message   string `json:"message" validate:"required"`
	ChatID    string `json:"chatId" validate:"required"`
	ContactID string `json:"contactId" validate:"required"`
}

// ViewChatData marks a chat as read by the sender of the event.
type ViewChatData struct {
	ChatID string `json:"chatId" validate:"required"`
}

// TypingChatData signals the typing state toward a contact.
type TypingChatData struct {
	ChatID    string `json:"chatId" validate:"required"`
	ContactID string `json:"contactId" validate:"required"`
	IsTyping  bool   `json:"isTyping"`
}

// StartChatData opens a chat with another user.
type StartChatData struct {
	ContactID string `json:"contactId" validate:"required"`
}

// ReceivedMessageEvent is pushed to the receiver's connections. Message is
// the full persisted record: clients need its id for de-duplication and
// equal-timestamp ordering. ContactID is the sender's ID so the client can
// attribute the message to the right conversation.
type ReceivedMessageEvent struct {
	EventType string          `json:"eventType"`
	Message   *domain.Message `json:"message"`
	ChatID    string          `json:"chatId"`
	ContactID string          `json:"contactId"`
	CreatedAt string          `json:"createdAt"`
}

// TypingChatEvent is relayed to the contact's connections.
type TypingChatEvent struct {
	EventType string `json:"eventType"`
	ChatID    string `json:"chatId"`
	ContactID string `json:"contactId"`
	IsTyping  bool   `json:"isTyping"`
}

// ReceivedNewChatEvent tells the other participant a chat now exists, so
// their chat list updates without a refresh.
type ReceivedNewChatEvent struct {
	EventType string               `json:"eventType"`
	Chat      *domain.ExtendedChat `json:"chat"`
}
