package domain

import (
	"time"

	"github.com/google/uuid"
)

const (
	AttachmentImage    = "image"
	AttachmentVideo    = "video"
	AttachmentAudio    = "audio"
	AttachmentDocument = "document"
)

// Attachment describes a file carried by a message.
type Attachment struct {
	URL  string `json:"url"`
	Name string `json:"name"`
	Kind string `json:"kind"`
}

// Reaction is an emoji set by one user on one message. A user has at
// most one reaction per message; reacting again replaces the emoji.
type Reaction struct {
	UserID    uuid.UUID `json:"user_id"`
	Emoji     string    `json:"emoji"`
	CreatedAt time.Time `json:"created_at"`
}

type Message struct {
	ID         uuid.UUID   `json:"id"`
	SenderID   uuid.UUID   `json:"sender_id"`
	ReceiverID uuid.UUID   `json:"receiver_id"`
	Text       *string     `json:"text,omitempty"`
	Attachment *Attachment `json:"attachment,omitempty"`
	Reactions  []Reaction  `json:"reactions"`
	IsRead     bool        `json:"is_read"`
	ReadAt     *time.Time  `json:"read_at,omitempty"`
	CreatedAt  time.Time   `json:"created_at"`
	// Joined fields
	SenderUsername   string `json:"sender_username,omitempty"`
	ReceiverUsername string `json:"receiver_username,omitempty"`
}

// Conversation is one entry of the grouped-by-counterpart listing:
// the other user plus the most recent message exchanged with them.
type Conversation struct {
	User        User    `json:"user"`
	LastMessage Message `json:"last_message"`
}
