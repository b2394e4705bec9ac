package repository

import (
	"context"
	"time"

	"github.com/google/uuid"
	"github.com/vedran77/chatter/internal/domain"
)

type UserRepository interface {
	Create(ctx context.Context, user *domain.User) error
	GetByID(ctx context.Context, id uuid.UUID) (*domain.User, error)
	GetByEmail(ctx context.Context, email string) (*domain.User, error)
	GetByUsername(ctx context.Context, username string) (*domain.User, error)
	// List returns every user except the excluded one, online first,
	// then most recently seen.
	List(ctx context.Context, exclude uuid.UUID) ([]domain.User, error)
	UpdateProfile(ctx context.Context, user *domain.User) error
	SetPresence(ctx context.Context, id uuid.UUID, online bool, lastSeen time.Time) error
	SetResetToken(ctx context.Context, id uuid.UUID, token *string, expiresAt *time.Time) error
	GetByResetToken(ctx context.Context, token string) (*domain.User, error)
	UpdatePassword(ctx context.Context, id uuid.UUID, passwordHash string) error
}

type MessageRepository interface {
	Create(ctx context.Context, msg *domain.Message) error
	GetByID(ctx context.Context, id uuid.UUID) (*domain.Message, error)
	// ListBetween returns all messages exchanged by the pair in
	// ascending creation order, reactions included.
	ListBetween(ctx context.Context, userA, userB uuid.UUID) ([]domain.Message, error)
	// ListConversations returns the most recent message per
	// counterpart for the given user, newest conversation first.
	ListConversations(ctx context.Context, userID uuid.UUID) ([]domain.Conversation, error)
	// MarkRead flips every unread message from sender to receiver in
	// one statement and reports how many rows changed.
	MarkRead(ctx context.Context, senderID, receiverID uuid.UUID, readAt time.Time) (int64, error)
	Delete(ctx context.Context, id uuid.UUID) error
	// UpsertReaction inserts the user's reaction or replaces its emoji
	// atomically. The stored timestamp is kept on replace.
	UpsertReaction(ctx context.Context, messageID, userID uuid.UUID, emoji string, at time.Time) error
	DeleteReaction(ctx context.Context, messageID, userID uuid.UUID) error
	ListReactions(ctx context.Context, messageID uuid.UUID) ([]domain.Reaction, error)
}
