package ws

import (
	"encoding/json"
	"time"

	"github.com/google/uuid"
	"github.com/vedran77/chatter/internal/domain"
)

// Event types - Client → Server
const (
	EventTypeMessageSend    = "message.send"
	EventTypeTyping         = "typing"
	EventTypeMarkRead       = "messages.mark_read"
	EventTypeReactionAdd    = "reaction.add"
	EventTypeReactionRemove = "reaction.remove"
	EventTypeRoomJoin       = "room.join"
	EventTypeRoomLeave      = "room.leave"
	EventTypePing           = "ping"
)

// Event types - Server → Client
const (
	EventTypeMessageReceived = "message.received"
	EventTypeMessageSent     = "message.sent"
	EventTypeMessagesRead    = "messages.read"
	EventTypeReactionAdded   = "reaction.added"
	EventTypeReactionRemoved = "reaction.removed"
	EventTypePresence        = "presence"
	EventTypePresenceState   = "presence.state"
	EventTypeUserTyping      = "user.typing"
	EventTypePong            = "pong"
	EventTypeError           = "error"
)

// Event is the base envelope for all WebSocket messages.
type Event struct {
	Type      string          `json:"type"`
	Payload   json.RawMessage `json:"payload,omitempty"`
	Timestamp int64           `json:"ts,omitempty"`
}

// --- Client → Server payloads ---

type MessageSendPayload struct {
	ReceiverID uuid.UUID          `json:"receiver_id"`
	Text       string             `json:"text"`
	Attachment *domain.Attachment `json:"attachment,omitempty"`
}

type TypingPayload struct {
	ReceiverID uuid.UUID `json:"receiver_id"`
	IsTyping   bool      `json:"is_typing"`
}

type MarkReadPayload struct {
	SenderID uuid.UUID `json:"sender_id"`
}

type ReactionAddPayload struct {
	MessageID  uuid.UUID `json:"message_id"`
	Emoji      string    `json:"emoji"`
	ReceiverID uuid.UUID `json:"receiver_id"`
}

type ReactionRemovePayload struct {
	MessageID  uuid.UUID `json:"message_id"`
	ReceiverID uuid.UUID `json:"receiver_id"`
}

type RoomPayload struct {
	UserID uuid.UUID `json:"user_id"`
}

// --- Server → Client payloads ---

type MessagePayload struct {
	domain.Message
}

type MessagesReadPayload struct {
	ReadBy uuid.UUID `json:"read_by"`
}

type PresencePayload struct {
	UserID   uuid.UUID `json:"user_id"`
	IsOnline bool      `json:"is_online"`
}

type PresenceStatePayload struct {
	UserIDs []uuid.UUID `json:"user_ids"`
}

type UserTypingPayload struct {
	UserID   uuid.UUID `json:"user_id"`
	Username string    `json:"username"`
	IsTyping bool      `json:"is_typing"`
}

type ErrorPayload struct {
	Code    string            `json:"code"`
	Message string            `json:"message"`
	Fields  map[string]string `json:"fields,omitempty"`
}

// NewEvent creates a server→client event with the current timestamp.
func NewEvent(eventType string, payload any) (*Event, error) {
	data, err := json.Marshal(payload)
	if err != nil {
		return nil, err
	}
	return &Event{
		Type:      eventType,
		Payload:   data,
		Timestamp: time.Now().Unix(),
	}, nil
}
