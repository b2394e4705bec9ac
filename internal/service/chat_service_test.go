package service

import (
	"context"
	"sync"
	"testing"
	"time"

	"github.com/google/uuid"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	"github.com/vedran77/chatter/internal/domain"
)

func newChatFixture(t *testing.T) (*ChatService, *fakeMessageRepo, *fakeUserRepo, *recordingNotifier, *domain.User, *domain.User) {
	t.Helper()
	alice := &domain.User{ID: uuid.New(), Username: "alice", Email: "alice@example.com"}
	bob := &domain.User{ID: uuid.New(), Username: "bob", Email: "bob@example.com"}

	userRepo := newFakeUserRepo(alice, bob)
	messageRepo := newFakeMessageRepo()
	notifier := &recordingNotifier{}

	svc := NewChatService(messageRepo, userRepo)
	svc.SetNotifier(notifier)
	return svc, messageRepo, userRepo, notifier, alice, bob
}

func TestSendMessage(t *testing.T) {
	ctx := context.Background()

	t.Run("empty message fails and persists nothing", func(t *testing.T) {
		svc, messageRepo, _, notifier, alice, bob := newChatFixture(t)

		_, err := svc.SendMessage(ctx, alice.ID, bob.ID, SendMessageInput{Text: "   "})
		require.ErrorIs(t, err, ErrEmptyMessage)
		assert.Empty(t, messageRepo.messages)
		assert.Empty(t, notifier.byKind("message"))
	})

	t.Run("unknown receiver fails", func(t *testing.T) {
		svc, messageRepo, _, _, alice, _ := newChatFixture(t)

		_, err := svc.SendMessage(ctx, alice.ID, uuid.New(), SendMessageInput{Text: "hi"})
		require.ErrorIs(t, err, ErrUserNotFound)
		assert.Empty(t, messageRepo.messages)
	})

	t.Run("valid text message persists and notifies once", func(t *testing.T) {
		svc, messageRepo, _, notifier, alice, bob := newChatFixture(t)

		msg, err := svc.SendMessage(ctx, alice.ID, bob.ID, SendMessageInput{Text: "hi bob"})
		require.NoError(t, err)
		require.NotNil(t, msg)
		assert.Equal(t, alice.ID, msg.SenderID)
		assert.Equal(t, bob.ID, msg.ReceiverID)
		require.NotNil(t, msg.Text)
		assert.Equal(t, "hi bob", *msg.Text)
		assert.False(t, msg.IsRead)

		assert.Len(t, messageRepo.messages, 1)
		created := notifier.byKind("message")
		require.Len(t, created, 1)
		assert.Equal(t, msg.ID, created[0].msg.ID)
	})

	t.Run("attachment-only message is valid", func(t *testing.T) {
		svc, _, _, _, alice, bob := newChatFixture(t)

		msg, err := svc.SendMessage(ctx, alice.ID, bob.ID, SendMessageInput{
			Attachment: &domain.Attachment{URL: "https://cdn.example.com/pic.png", Name: "pic.png", Kind: domain.AttachmentImage},
		})
		require.NoError(t, err)
		assert.Nil(t, msg.Text)
		require.NotNil(t, msg.Attachment)
		assert.Equal(t, domain.AttachmentImage, msg.Attachment.Kind)
	})

	t.Run("persists regardless of receiver presence", func(t *testing.T) {
		// The service always persists and always hands the message to
		// the notifier; the hub decides whether anyone is reachable.
		svc, messageRepo, _, _, alice, bob := newChatFixture(t)

		_, err := svc.SendMessage(ctx, alice.ID, bob.ID, SendMessageInput{Text: "offline still persists"})
		require.NoError(t, err)
		assert.Len(t, messageRepo.messages, 1)
	})
}

func TestMarkConversationRead(t *testing.T) {
	ctx := context.Background()
	svc, _, _, notifier, alice, bob := newChatFixture(t)

	for i := 0; i < 3; i++ {
		_, err := svc.SendMessage(ctx, alice.ID, bob.ID, SendMessageInput{Text: "msg"})
		require.NoError(t, err)
	}

	require.NoError(t, svc.MarkConversationRead(ctx, bob.ID, alice.ID))

	msgs, err := svc.Conversation(ctx, bob.ID, alice.ID)
	require.NoError(t, err)
	require.Len(t, msgs, 3)
	for _, m := range msgs {
		assert.True(t, m.IsRead)
		assert.NotNil(t, m.ReadAt)
	}

	reads := notifier.byKind("read")
	require.NotEmpty(t, reads)
	assert.Equal(t, bob.ID, reads[0].actorID)
	assert.Equal(t, alice.ID, reads[0].counterpart)

	// Re-reading an already-read conversation stays idempotent on the
	// store but still notifies the counterpart with the current state.
	before := len(notifier.byKind("read"))
	require.NoError(t, svc.MarkConversationRead(ctx, bob.ID, alice.ID))
	assert.Len(t, notifier.byKind("read"), before+1)

	msgs, err = svc.Conversation(ctx, bob.ID, alice.ID)
	require.NoError(t, err)
	require.Len(t, msgs, 3)
	firstReadAt := msgs[0].ReadAt
	require.NotNil(t, firstReadAt)

	// The bulk update only touches unread rows, so read_at never moves.
	require.NoError(t, svc.MarkConversationRead(ctx, bob.ID, alice.ID))
	msgs, err = svc.Conversation(ctx, bob.ID, alice.ID)
	require.NoError(t, err)
	assert.Equal(t, *firstReadAt, *msgs[0].ReadAt)
}

func TestReactions(t *testing.T) {
	ctx := context.Background()

	seedMessage := func(t *testing.T, svc *ChatService, sender, receiver uuid.UUID) *domain.Message {
		t.Helper()
		msg, err := svc.SendMessage(ctx, sender, receiver, SendMessageInput{Text: "react to me"})
		require.NoError(t, err)
		return msg
	}

	t.Run("unknown message", func(t *testing.T) {
		svc, _, _, _, alice, _ := newChatFixture(t)
		_, err := svc.AddReaction(ctx, alice.ID, uuid.New(), "👍", uuid.Nil)
		require.ErrorIs(t, err, ErrMessageNotFound)
	})

	t.Run("same user replaces own reaction, timestamp kept", func(t *testing.T) {
		svc, _, _, _, alice, bob := newChatFixture(t)
		msg := seedMessage(t, svc, alice.ID, bob.ID)

		first, err := svc.AddReaction(ctx, bob.ID, msg.ID, "👍", alice.ID)
		require.NoError(t, err)
		require.Len(t, first.Reactions, 1)
		firstAt := first.Reactions[0].CreatedAt

		second, err := svc.AddReaction(ctx, bob.ID, msg.ID, "❤️", alice.ID)
		require.NoError(t, err)
		require.Len(t, second.Reactions, 1)
		assert.Equal(t, "❤️", second.Reactions[0].Emoji)
		assert.Equal(t, firstAt, second.Reactions[0].CreatedAt)
	})

	t.Run("two users reacting concurrently lose nothing", func(t *testing.T) {
		svc, _, _, _, alice, bob := newChatFixture(t)
		msg := seedMessage(t, svc, alice.ID, bob.ID)

		const rounds = 50
		var wg sync.WaitGroup
		for _, actor := range []uuid.UUID{alice.ID, bob.ID} {
			wg.Add(1)
			go func(actor uuid.UUID) {
				defer wg.Done()
				for i := 0; i < rounds; i++ {
					_, err := svc.AddReaction(ctx, actor, msg.ID, "🔥", uuid.Nil)
					assert.NoError(t, err)
				}
			}(actor)
		}
		wg.Wait()

		full, err := svc.messageRepo.GetByID(ctx, msg.ID)
		require.NoError(t, err)
		require.Len(t, full.Reactions, 2)
		seen := map[uuid.UUID]bool{}
		for _, re := range full.Reactions {
			seen[re.UserID] = true
		}
		assert.True(t, seen[alice.ID])
		assert.True(t, seen[bob.ID])
	})

	t.Run("fanout reaches both sides with derived counterpart", func(t *testing.T) {
		svc, _, _, notifier, alice, bob := newChatFixture(t)
		msg := seedMessage(t, svc, alice.ID, bob.ID)

		// REST path passes Nil; the counterpart comes from the message.
		_, err := svc.AddReaction(ctx, bob.ID, msg.ID, "👍", uuid.Nil)
		require.NoError(t, err)

		added := notifier.byKind("reaction_added")
		require.Len(t, added, 1)
		assert.Equal(t, bob.ID, added[0].actorID)
		assert.Equal(t, alice.ID, added[0].counterpart)
	})

	t.Run("removing an absent reaction is a no-op", func(t *testing.T) {
		svc, _, _, notifier, alice, bob := newChatFixture(t)
		msg := seedMessage(t, svc, alice.ID, bob.ID)

		upd, err := svc.RemoveReaction(ctx, bob.ID, msg.ID, alice.ID)
		require.NoError(t, err)
		assert.Empty(t, upd.Reactions)
		assert.Len(t, notifier.byKind("reaction_removed"), 1)
	})

	t.Run("remove drops only the actor's reaction", func(t *testing.T) {
		svc, _, _, _, alice, bob := newChatFixture(t)
		msg := seedMessage(t, svc, alice.ID, bob.ID)

		_, err := svc.AddReaction(ctx, alice.ID, msg.ID, "👍", bob.ID)
		require.NoError(t, err)
		_, err = svc.AddReaction(ctx, bob.ID, msg.ID, "❤️", alice.ID)
		require.NoError(t, err)

		upd, err := svc.RemoveReaction(ctx, bob.ID, msg.ID, alice.ID)
		require.NoError(t, err)
		require.Len(t, upd.Reactions, 1)
		assert.Equal(t, alice.ID, upd.Reactions[0].UserID)
	})
}

func TestConversation(t *testing.T) {
	ctx := context.Background()
	svc, _, _, _, alice, bob := newChatFixture(t)

	var ids []uuid.UUID
	for i, text := range []string{"one", "two", "three"} {
		sender, receiver := alice.ID, bob.ID
		if i%2 == 1 {
			sender, receiver = bob.ID, alice.ID
		}
		msg, err := svc.SendMessage(ctx, sender, receiver, SendMessageInput{Text: text})
		require.NoError(t, err)
		ids = append(ids, msg.ID)
		time.Sleep(time.Millisecond)
	}

	t.Run("ascending order and read side effect", func(t *testing.T) {
		msgs, err := svc.Conversation(ctx, bob.ID, alice.ID)
		require.NoError(t, err)
		require.Len(t, msgs, 3)
		for i, m := range msgs {
			assert.Equal(t, ids[i], m.ID)
		}
		// The mark-read side effect lands after the listing, so the
		// next fetch shows alice's messages as read.
		again, err := svc.Conversation(ctx, bob.ID, alice.ID)
		require.NoError(t, err)
		for _, m := range again {
			if m.SenderID == alice.ID {
				assert.True(t, m.IsRead)
			}
		}
	})

	t.Run("unknown counterpart", func(t *testing.T) {
		_, err := svc.Conversation(ctx, bob.ID, uuid.New())
		require.ErrorIs(t, err, ErrUserNotFound)
	})

	t.Run("grouped conversation list returns latest per counterpart", func(t *testing.T) {
		convs, err := svc.Conversations(ctx, alice.ID)
		require.NoError(t, err)
		require.Len(t, convs, 1)
		assert.Equal(t, bob.ID, convs[0].User.ID)
		assert.Equal(t, ids[len(ids)-1], convs[0].LastMessage.ID)
	})
}

func TestDeleteMessage(t *testing.T) {
	ctx := context.Background()
	svc, messageRepo, _, _, alice, bob := newChatFixture(t)

	msg, err := svc.SendMessage(ctx, alice.ID, bob.ID, SendMessageInput{Text: "delete me"})
	require.NoError(t, err)

	require.ErrorIs(t, svc.DeleteMessage(ctx, bob.ID, msg.ID), ErrNotMessageSender)
	require.NoError(t, svc.DeleteMessage(ctx, alice.ID, msg.ID))
	assert.Empty(t, messageRepo.messages)
	require.ErrorIs(t, svc.DeleteMessage(ctx, alice.ID, msg.ID), ErrMessageNotFound)
}
