package service

import (
	"context"
	"errors"
	"fmt"
	"strings"
	"time"

	"github.com/google/uuid"
	"github.com/vedran77/chatter/internal/domain"
	"github.com/vedran77/chatter/internal/metrics"
	"github.com/vedran77/chatter/internal/repository"
)

var (
	ErrUserNotFound     = errors.New("user not found")
	ErrMessageNotFound  = errors.New("message not found")
	ErrEmptyMessage     = errors.New("message needs text or an attachment")
	ErrNotMessageSender = errors.New("only the message sender can perform this action")
)

// Notifier pushes real-time events to connected clients. Every method
// is best-effort: an offline recipient is skipped, never an error.
type Notifier interface {
	MessageCreated(msg *domain.Message)
	ConversationRead(senderID, readBy uuid.UUID)
	ReactionAdded(actorID, counterpartID uuid.UUID, upd *ReactionUpdate)
	ReactionRemoved(actorID, counterpartID uuid.UUID, upd *ReactionUpdate)
}

// ReactionUpdate is fanned out to both sides after a reaction change.
type ReactionUpdate struct {
	MessageID uuid.UUID         `json:"message_id"`
	UserID    uuid.UUID         `json:"user_id"`
	Emoji     string            `json:"emoji,omitempty"`
	Reactions []domain.Reaction `json:"reactions"`
}

type ChatService struct {
	messageRepo repository.MessageRepository
	userRepo    repository.UserRepository
	notifier    Notifier
}

func NewChatService(messageRepo repository.MessageRepository, userRepo repository.UserRepository) *ChatService {
	return &ChatService{
		messageRepo: messageRepo,
		userRepo:    userRepo,
	}
}

// SetNotifier sets the real-time notifier (optional dependency).
func (s *ChatService) SetNotifier(n Notifier) {
	s.notifier = n
}

type SendMessageInput struct {
	Text       string             `json:"text"`
	Attachment *domain.Attachment `json:"attachment,omitempty"`
}

// SendMessage persists a message and pushes it to the receiver if they
// are online. Persistence either succeeds fully or the send fails; the
// live push is an overlay on top of the durable write. The sender ack
// is the transport's concern: the socket path acks its own connection,
// the REST path answers with the created record only.
func (s *ChatService) SendMessage(ctx context.Context, senderID, receiverID uuid.UUID, input SendMessageInput) (*domain.Message, error) {
	text := strings.TrimSpace(input.Text)
	if text == "" && input.Attachment == nil {
		return nil, ErrEmptyMessage
	}

	receiver, err := s.userRepo.GetByID(ctx, receiverID)
	if err != nil {
		return nil, err
	}
	if receiver == nil {
		return nil, ErrUserNotFound
	}

	msg := &domain.Message{
		ID:         uuid.New(),
		SenderID:   senderID,
		ReceiverID: receiverID,
		Attachment: input.Attachment,
		CreatedAt:  time.Now(),
	}
	if text != "" {
		msg.Text = &text
	}

	if err := s.messageRepo.Create(ctx, msg); err != nil {
		return nil, fmt.Errorf("creating message: %w", err)
	}
	metrics.MessagesSent.Inc()

	full, err := s.messageRepo.GetByID(ctx, msg.ID)
	if err != nil {
		return nil, err
	}

	if s.notifier != nil {
		s.notifier.MessageCreated(full)
	}

	return full, nil
}

// MarkConversationRead flips every unread message from the counterpart
// to the reader in one bulk update. Idempotent: a second call changes
// nothing and does not error. The read notification goes out on every
// call, changed rows or not; the counterpart treats it as state, not a
// delta.
func (s *ChatService) MarkConversationRead(ctx context.Context, readerID, counterpartID uuid.UUID) error {
	if _, err := s.messageRepo.MarkRead(ctx, counterpartID, readerID, time.Now()); err != nil {
		return fmt.Errorf("marking messages read: %w", err)
	}

	if s.notifier != nil {
		s.notifier.ConversationRead(counterpartID, readerID)
	}
	return nil
}

// AddReaction sets the actor's reaction on a message, replacing any
// previous one from the same user. The write is a store-side atomic
// upsert keyed by (message, user), so concurrent reactions from the
// two participants cannot drop each other. counterpartID may be Nil,
// in which case the other side is derived from the message itself.
func (s *ChatService) AddReaction(ctx context.Context, actorID, messageID uuid.UUID, emoji string, counterpartID uuid.UUID) (*ReactionUpdate, error) {
	msg, err := s.messageRepo.GetByID(ctx, messageID)
	if err != nil {
		return nil, err
	}
	if msg == nil {
		return nil, ErrMessageNotFound
	}

	if err := s.messageRepo.UpsertReaction(ctx, messageID, actorID, emoji, time.Now()); err != nil {
		return nil, fmt.Errorf("upserting reaction: %w", err)
	}

	reactions, err := s.messageRepo.ListReactions(ctx, messageID)
	if err != nil {
		return nil, err
	}

	upd := &ReactionUpdate{
		MessageID: messageID,
		UserID:    actorID,
		Emoji:     emoji,
		Reactions: reactions,
	}

	if s.notifier != nil {
		s.notifier.ReactionAdded(actorID, s.counterpart(msg, actorID, counterpartID), upd)
	}
	return upd, nil
}

// RemoveReaction drops the actor's reaction if present. Removing a
// reaction that was never added is a no-op, not an error.
func (s *ChatService) RemoveReaction(ctx context.Context, actorID, messageID uuid.UUID, counterpartID uuid.UUID) (*ReactionUpdate, error) {
	msg, err := s.messageRepo.GetByID(ctx, messageID)
	if err != nil {
		return nil, err
	}
	if msg == nil {
		return nil, ErrMessageNotFound
	}

	if err := s.messageRepo.DeleteReaction(ctx, messageID, actorID); err != nil {
		return nil, fmt.Errorf("deleting reaction: %w", err)
	}

	reactions, err := s.messageRepo.ListReactions(ctx, messageID)
	if err != nil {
		return nil, err
	}

	upd := &ReactionUpdate{
		MessageID: messageID,
		UserID:    actorID,
		Reactions: reactions,
	}

	if s.notifier != nil {
		s.notifier.ReactionRemoved(actorID, s.counterpart(msg, actorID, counterpartID), upd)
	}
	return upd, nil
}

// Conversation returns the full history with the other user in
// ascending order and marks their messages read as a side effect,
// matching the REST history contract.
func (s *ChatService) Conversation(ctx context.Context, userID, otherID uuid.UUID) ([]domain.Message, error) {
	other, err := s.userRepo.GetByID(ctx, otherID)
	if err != nil {
		return nil, err
	}
	if other == nil {
		return nil, ErrUserNotFound
	}

	messages, err := s.messageRepo.ListBetween(ctx, userID, otherID)
	if err != nil {
		return nil, err
	}
	if messages == nil {
		messages = []domain.Message{}
	}

	if err := s.MarkConversationRead(ctx, userID, otherID); err != nil {
		return nil, err
	}
	return messages, nil
}

// Conversations lists the latest message per counterpart, newest first.
func (s *ChatService) Conversations(ctx context.Context, userID uuid.UUID) ([]domain.Conversation, error) {
	convs, err := s.messageRepo.ListConversations(ctx, userID)
	if err != nil {
		return nil, err
	}
	if convs == nil {
		convs = []domain.Conversation{}
	}
	return convs, nil
}

// DeleteMessage removes a message. Sender-only.
func (s *ChatService) DeleteMessage(ctx context.Context, userID, messageID uuid.UUID) error {
	msg, err := s.messageRepo.GetByID(ctx, messageID)
	if err != nil {
		return err
	}
	if msg == nil {
		return ErrMessageNotFound
	}
	if msg.SenderID != userID {
		return ErrNotMessageSender
	}
	return s.messageRepo.Delete(ctx, messageID)
}

func (s *ChatService) counterpart(msg *domain.Message, actorID, supplied uuid.UUID) uuid.UUID {
	if supplied != uuid.Nil {
		return supplied
	}
	if msg.SenderID == actorID {
		return msg.ReceiverID
	}
	return msg.SenderID
}
