package postgres

import (
	"context"
	"errors"
	"sort"
	"time"

	"github.com/google/uuid"
	"github.com/jackc/pgx/v5"
	"github.com/jackc/pgx/v5/pgxpool"
	"github.com/vedran77/chatter/internal/domain"
)

type MessageRepo struct {
	pool *pgxpool.Pool
}

func NewMessageRepo(pool *pgxpool.Pool) *MessageRepo {
	return &MessageRepo{pool: pool}
}

func (r *MessageRepo) Create(ctx context.Context, msg *domain.Message) error {
	query := `
		INSERT INTO messages (id, sender_id, receiver_id, text, attachment_url, attachment_name, attachment_kind, is_read, created_at)
		VALUES ($1, $2, $3, $4, $5, $6, $7, $8, $9)`

	var attURL, attName, attKind *string
	if msg.Attachment != nil {
		attURL, attName, attKind = &msg.Attachment.URL, &msg.Attachment.Name, &msg.Attachment.Kind
	}
	_, err := r.pool.Exec(ctx, query,
		msg.ID, msg.SenderID, msg.ReceiverID, msg.Text,
		attURL, attName, attKind, msg.IsRead, msg.CreatedAt,
	)
	return err
}

func (r *MessageRepo) GetByID(ctx context.Context, id uuid.UUID) (*domain.Message, error) {
	query := `
		SELECT m.id, m.sender_id, m.receiver_id, m.text,
			m.attachment_url, m.attachment_name, m.attachment_kind,
			m.is_read, m.read_at, m.created_at, s.username, rc.username
		FROM messages m
		JOIN users s ON m.sender_id = s.id
		JOIN users rc ON m.receiver_id = rc.id
		WHERE m.id = $1`

	var msg domain.Message
	err := scanMessageRow(r.pool.QueryRow(ctx, query, id), &msg)
	if errors.Is(err, pgx.ErrNoRows) {
		return nil, nil
	}
	if err != nil {
		return nil, err
	}

	reactions, err := r.ListReactions(ctx, id)
	if err != nil {
		return nil, err
	}
	msg.Reactions = reactions
	return &msg, nil
}

func (r *MessageRepo) ListBetween(ctx context.Context, userA, userB uuid.UUID) ([]domain.Message, error) {
	query := `
		SELECT m.id, m.sender_id, m.receiver_id, m.text,
			m.attachment_url, m.attachment_name, m.attachment_kind,
			m.is_read, m.read_at, m.created_at, s.username, rc.username
		FROM messages m
		JOIN users s ON m.sender_id = s.id
		JOIN users rc ON m.receiver_id = rc.id
		WHERE (m.sender_id = $1 AND m.receiver_id = $2)
			OR (m.sender_id = $2 AND m.receiver_id = $1)
		ORDER BY m.created_at ASC`

	rows, err := r.pool.Query(ctx, query, userA, userB)
	if err != nil {
		return nil, err
	}
	defer rows.Close()

	var messages []domain.Message
	index := make(map[uuid.UUID]int)
	for rows.Next() {
		var msg domain.Message
		if err := scanMessageRow(rows, &msg); err != nil {
			return nil, err
		}
		index[msg.ID] = len(messages)
		messages = append(messages, msg)
	}
	if err := rows.Err(); err != nil {
		return nil, err
	}
	if len(messages) == 0 {
		return messages, nil
	}

	// Stitch reactions for the whole pair in one pass.
	reactionQuery := `
		SELECT r.message_id, r.user_id, r.emoji, r.created_at
		FROM message_reactions r
		JOIN messages m ON r.message_id = m.id
		WHERE (m.sender_id = $1 AND m.receiver_id = $2)
			OR (m.sender_id = $2 AND m.receiver_id = $1)
		ORDER BY r.created_at ASC`

	rrows, err := r.pool.Query(ctx, reactionQuery, userA, userB)
	if err != nil {
		return nil, err
	}
	defer rrows.Close()

	for rrows.Next() {
		var msgID uuid.UUID
		var re domain.Reaction
		if err := rrows.Scan(&msgID, &re.UserID, &re.Emoji, &re.CreatedAt); err != nil {
			return nil, err
		}
		if i, ok := index[msgID]; ok {
			messages[i].Reactions = append(messages[i].Reactions, re)
		}
	}
	return messages, rrows.Err()
}

func (r *MessageRepo) ListConversations(ctx context.Context, userID uuid.UUID) ([]domain.Conversation, error) {
	query := `
		SELECT DISTINCT ON (t.other_id)
			t.id, t.sender_id, t.receiver_id, t.text,
			t.attachment_url, t.attachment_name, t.attachment_kind,
			t.is_read, t.read_at, t.created_at,
			u.id, u.username, u.email, u.avatar_url, u.is_online, u.last_seen, u.created_at, u.updated_at
		FROM (
			SELECT m.*,
				CASE WHEN m.sender_id = $1 THEN m.receiver_id ELSE m.sender_id END AS other_id
			FROM messages m
			WHERE m.sender_id = $1 OR m.receiver_id = $1
		) t
		JOIN users u ON u.id = t.other_id
		ORDER BY t.other_id, t.created_at DESC`

	rows, err := r.pool.Query(ctx, query, userID)
	if err != nil {
		return nil, err
	}
	defer rows.Close()

	var convs []domain.Conversation
	for rows.Next() {
		var c domain.Conversation
		var attURL, attName, attKind *string
		if err := rows.Scan(
			&c.LastMessage.ID, &c.LastMessage.SenderID, &c.LastMessage.ReceiverID, &c.LastMessage.Text,
			&attURL, &attName, &attKind,
			&c.LastMessage.IsRead, &c.LastMessage.ReadAt, &c.LastMessage.CreatedAt,
			&c.User.ID, &c.User.Username, &c.User.Email, &c.User.AvatarURL,
			&c.User.IsOnline, &c.User.LastSeen, &c.User.CreatedAt, &c.User.UpdatedAt,
		); err != nil {
			return nil, err
		}
		setAttachment(&c.LastMessage, attURL, attName, attKind)
		convs = append(convs, c)
	}
	if err := rows.Err(); err != nil {
		return nil, err
	}

	// DISTINCT ON orders by counterpart; callers want newest first.
	sort.Slice(convs, func(i, j int) bool {
		return convs[i].LastMessage.CreatedAt.After(convs[j].LastMessage.CreatedAt)
	})
	return convs, nil
}

func (r *MessageRepo) MarkRead(ctx context.Context, senderID, receiverID uuid.UUID, readAt time.Time) (int64, error) {
	query := `
		UPDATE messages SET is_read = TRUE, read_at = $1
		WHERE sender_id = $2 AND receiver_id = $3 AND is_read = FALSE`
	tag, err := r.pool.Exec(ctx, query, readAt, senderID, receiverID)
	if err != nil {
		return 0, err
	}
	return tag.RowsAffected(), nil
}

func (r *MessageRepo) Delete(ctx context.Context, id uuid.UUID) error {
	_, err := r.pool.Exec(ctx, `DELETE FROM messages WHERE id = $1`, id)
	return err
}

// UpsertReaction relies on the (message_id, user_id) primary key so two
// concurrent reactions from different users can never lose each other.
// A replace keeps the original created_at, only the emoji changes.
func (r *MessageRepo) UpsertReaction(ctx context.Context, messageID, userID uuid.UUID, emoji string, at time.Time) error {
	query := `
		INSERT INTO message_reactions (message_id, user_id, emoji, created_at)
		VALUES ($1, $2, $3, $4)
		ON CONFLICT (message_id, user_id) DO UPDATE SET emoji = EXCLUDED.emoji`
	_, err := r.pool.Exec(ctx, query, messageID, userID, emoji, at)
	return err
}

func (r *MessageRepo) DeleteReaction(ctx context.Context, messageID, userID uuid.UUID) error {
	_, err := r.pool.Exec(ctx, `DELETE FROM message_reactions WHERE message_id = $1 AND user_id = $2`, messageID, userID)
	return err
}

func (r *MessageRepo) ListReactions(ctx context.Context, messageID uuid.UUID) ([]domain.Reaction, error) {
	query := `
		SELECT user_id, emoji, created_at
		FROM message_reactions
		WHERE message_id = $1
		ORDER BY created_at ASC`

	rows, err := r.pool.Query(ctx, query, messageID)
	if err != nil {
		return nil, err
	}
	defer rows.Close()

	var reactions []domain.Reaction
	for rows.Next() {
		var re domain.Reaction
		if err := rows.Scan(&re.UserID, &re.Emoji, &re.CreatedAt); err != nil {
			return nil, err
		}
		reactions = append(reactions, re)
	}
	return reactions, rows.Err()
}

func scanMessageRow(row pgx.Row, msg *domain.Message) error {
	var attURL, attName, attKind *string
	err := row.Scan(
		&msg.ID, &msg.SenderID, &msg.ReceiverID, &msg.Text,
		&attURL, &attName, &attKind,
		&msg.IsRead, &msg.ReadAt, &msg.CreatedAt,
		&msg.SenderUsername, &msg.ReceiverUsername,
	)
	if err != nil {
		return err
	}
	setAttachment(msg, attURL, attName, attKind)
	return nil
}

func setAttachment(msg *domain.Message, url, name, kind *string) {
	if url == nil {
		return
	}
	att := domain.Attachment{URL: *url}
	if name != nil {
		att.Name = *name
	}
	if kind != nil {
		att.Kind = *kind
	}
	msg.Attachment = &att
}
