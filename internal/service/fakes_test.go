package service

import (
	"context"
	"sort"
	"sync"
	"time"

	"github.com/google/uuid"
	"github.com/vedran77/chatter/internal/domain"
)

// In-memory fakes mirroring the repository contracts, including the
// atomic reaction upsert the postgres implementation provides.

type fakeUserRepo struct {
	mu    sync.Mutex
	users map[uuid.UUID]*domain.User
}

func newFakeUserRepo(users ...*domain.User) *fakeUserRepo {
	r := &fakeUserRepo{users: make(map[uuid.UUID]*domain.User)}
	for _, u := range users {
		r.users[u.ID] = u
	}
	return r
}

func (r *fakeUserRepo) Create(_ context.Context, user *domain.User) error {
	r.mu.Lock()
	defer r.mu.Unlock()
	r.users[user.ID] = user
	return nil
}

func (r *fakeUserRepo) GetByID(_ context.Context, id uuid.UUID) (*domain.User, error) {
	r.mu.Lock()
	defer r.mu.Unlock()
	return r.users[id], nil
}

func (r *fakeUserRepo) GetByEmail(_ context.Context, email string) (*domain.User, error) {
	r.mu.Lock()
	defer r.mu.Unlock()
	for _, u := range r.users {
		if u.Email == email {
			return u, nil
		}
	}
	return nil, nil
}

func (r *fakeUserRepo) GetByUsername(_ context.Context, username string) (*domain.User, error) {
	r.mu.Lock()
	defer r.mu.Unlock()
	for _, u := range r.users {
		if u.Username == username {
			return u, nil
		}
	}
	return nil, nil
}

func (r *fakeUserRepo) GetByResetToken(_ context.Context, token string) (*domain.User, error) {
	r.mu.Lock()
	defer r.mu.Unlock()
	for _, u := range r.users {
		if u.ResetToken != nil && *u.ResetToken == token {
			return u, nil
		}
	}
	return nil, nil
}

func (r *fakeUserRepo) List(_ context.Context, exclude uuid.UUID) ([]domain.User, error) {
	r.mu.Lock()
	defer r.mu.Unlock()
	var users []domain.User
	for _, u := range r.users {
		if u.ID != exclude {
			users = append(users, *u)
		}
	}
	return users, nil
}

func (r *fakeUserRepo) UpdateProfile(_ context.Context, user *domain.User) error {
	r.mu.Lock()
	defer r.mu.Unlock()
	r.users[user.ID] = user
	return nil
}

func (r *fakeUserRepo) SetPresence(_ context.Context, id uuid.UUID, online bool, lastSeen time.Time) error {
	r.mu.Lock()
	defer r.mu.Unlock()
	if u, ok := r.users[id]; ok {
		u.IsOnline = online
		u.LastSeen = lastSeen
	}
	return nil
}

func (r *fakeUserRepo) SetResetToken(_ context.Context, id uuid.UUID, token *string, expiresAt *time.Time) error {
	r.mu.Lock()
	defer r.mu.Unlock()
	if u, ok := r.users[id]; ok {
		u.ResetToken = token
		u.ResetExpiresAt = expiresAt
	}
	return nil
}

func (r *fakeUserRepo) UpdatePassword(_ context.Context, id uuid.UUID, passwordHash string) error {
	r.mu.Lock()
	defer r.mu.Unlock()
	if u, ok := r.users[id]; ok {
		u.PasswordHash = passwordHash
	}
	return nil
}

type fakeMessageRepo struct {
	mu        sync.Mutex
	messages  map[uuid.UUID]*domain.Message
	reactions map[uuid.UUID]map[uuid.UUID]domain.Reaction
}

func newFakeMessageRepo() *fakeMessageRepo {
	return &fakeMessageRepo{
		messages:  make(map[uuid.UUID]*domain.Message),
		reactions: make(map[uuid.UUID]map[uuid.UUID]domain.Reaction),
	}
}

func (r *fakeMessageRepo) Create(_ context.Context, msg *domain.Message) error {
	r.mu.Lock()
	defer r.mu.Unlock()
	stored := *msg
	r.messages[msg.ID] = &stored
	return nil
}

func (r *fakeMessageRepo) GetByID(_ context.Context, id uuid.UUID) (*domain.Message, error) {
	r.mu.Lock()
	defer r.mu.Unlock()
	msg, ok := r.messages[id]
	if !ok {
		return nil, nil
	}
	out := *msg
	out.Reactions = r.listReactionsLocked(id)
	return &out, nil
}

func (r *fakeMessageRepo) ListBetween(_ context.Context, userA, userB uuid.UUID) ([]domain.Message, error) {
	r.mu.Lock()
	defer r.mu.Unlock()
	var out []domain.Message
	for id, m := range r.messages {
		if (m.SenderID == userA && m.ReceiverID == userB) || (m.SenderID == userB && m.ReceiverID == userA) {
			msg := *m
			msg.Reactions = r.listReactionsLocked(id)
			out = append(out, msg)
		}
	}
	sort.Slice(out, func(i, j int) bool { return out[i].CreatedAt.Before(out[j].CreatedAt) })
	return out, nil
}

func (r *fakeMessageRepo) ListConversations(_ context.Context, userID uuid.UUID) ([]domain.Conversation, error) {
	r.mu.Lock()
	defer r.mu.Unlock()
	latest := make(map[uuid.UUID]domain.Message)
	for _, m := range r.messages {
		var other uuid.UUID
		switch userID {
		case m.SenderID:
			other = m.ReceiverID
		case m.ReceiverID:
			other = m.SenderID
		default:
			continue
		}
		if cur, ok := latest[other]; !ok || m.CreatedAt.After(cur.CreatedAt) {
			latest[other] = *m
		}
	}
	var convs []domain.Conversation
	for other, m := range latest {
		convs = append(convs, domain.Conversation{
			User:        domain.User{ID: other},
			LastMessage: m,
		})
	}
	sort.Slice(convs, func(i, j int) bool {
		return convs[i].LastMessage.CreatedAt.After(convs[j].LastMessage.CreatedAt)
	})
	return convs, nil
}

func (r *fakeMessageRepo) MarkRead(_ context.Context, senderID, receiverID uuid.UUID, readAt time.Time) (int64, error) {
	r.mu.Lock()
	defer r.mu.Unlock()
	var changed int64
	for _, m := range r.messages {
		if m.SenderID == senderID && m.ReceiverID == receiverID && !m.IsRead {
			m.IsRead = true
			at := readAt
			m.ReadAt = &at
			changed++
		}
	}
	return changed, nil
}

func (r *fakeMessageRepo) Delete(_ context.Context, id uuid.UUID) error {
	r.mu.Lock()
	defer r.mu.Unlock()
	delete(r.messages, id)
	delete(r.reactions, id)
	return nil
}

func (r *fakeMessageRepo) UpsertReaction(_ context.Context, messageID, userID uuid.UUID, emoji string, at time.Time) error {
	r.mu.Lock()
	defer r.mu.Unlock()
	byUser, ok := r.reactions[messageID]
	if !ok {
		byUser = make(map[uuid.UUID]domain.Reaction)
		r.reactions[messageID] = byUser
	}
	if existing, ok := byUser[userID]; ok {
		// Replace keeps the original timestamp, like the upsert.
		existing.Emoji = emoji
		byUser[userID] = existing
		return nil
	}
	byUser[userID] = domain.Reaction{UserID: userID, Emoji: emoji, CreatedAt: at}
	return nil
}

func (r *fakeMessageRepo) DeleteReaction(_ context.Context, messageID, userID uuid.UUID) error {
	r.mu.Lock()
	defer r.mu.Unlock()
	delete(r.reactions[messageID], userID)
	return nil
}

func (r *fakeMessageRepo) ListReactions(_ context.Context, messageID uuid.UUID) ([]domain.Reaction, error) {
	r.mu.Lock()
	defer r.mu.Unlock()
	return r.listReactionsLocked(messageID), nil
}

func (r *fakeMessageRepo) listReactionsLocked(messageID uuid.UUID) []domain.Reaction {
	var out []domain.Reaction
	for _, re := range r.reactions[messageID] {
		out = append(out, re)
	}
	sort.Slice(out, func(i, j int) bool {
		if !out[i].CreatedAt.Equal(out[j].CreatedAt) {
			return out[i].CreatedAt.Before(out[j].CreatedAt)
		}
		return out[i].UserID.String() < out[j].UserID.String()
	})
	return out
}

type notifierCall struct {
	kind        string
	actorID     uuid.UUID
	counterpart uuid.UUID
	msg         *domain.Message
	upd         *ReactionUpdate
}

type recordingNotifier struct {
	mu    sync.Mutex
	calls []notifierCall
}

func (n *recordingNotifier) MessageCreated(msg *domain.Message) {
	n.record(notifierCall{kind: "message", msg: msg})
}

func (n *recordingNotifier) ConversationRead(senderID, readBy uuid.UUID) {
	n.record(notifierCall{kind: "read", actorID: readBy, counterpart: senderID})
}

func (n *recordingNotifier) ReactionAdded(actorID, counterpartID uuid.UUID, upd *ReactionUpdate) {
	n.record(notifierCall{kind: "reaction_added", actorID: actorID, counterpart: counterpartID, upd: upd})
}

func (n *recordingNotifier) ReactionRemoved(actorID, counterpartID uuid.UUID, upd *ReactionUpdate) {
	n.record(notifierCall{kind: "reaction_removed", actorID: actorID, counterpart: counterpartID, upd: upd})
}

func (n *recordingNotifier) record(c notifierCall) {
	n.mu.Lock()
	defer n.mu.Unlock()
	n.calls = append(n.calls, c)
}

func (n *recordingNotifier) byKind(kind string) []notifierCall {
	n.mu.Lock()
	defer n.mu.Unlock()
	var out []notifierCall
	for _, c := range n.calls {
		if c.kind == kind {
			out = append(out, c)
		}
	}
	return out
}
