package repositories

import (
	"context"
	"time"

	"github.com/jmoiron/sqlx"

	"social-chat/internal/db"
	"social-chat/internal/models"
)

// MessageRepository defines interactions for chat messages.
type MessageRepository interface {
	CreateMessage(ctx context.Context, msg models.Message) error
	ListMessages(ctx context.Context, chatID string, before time.Time, limit int) ([]models.Message, error)
	MarkRead(ctx context.Context, chatID string, userID string, messageIDs []string, at time.Time) ([]string, error)
}

// MessageRepo is a sqlx-backed repository.
type MessageRepo struct {
	db *sqlx.DB
}

// NewMessageRepo constructs MessageRepo.
func NewMessageRepo(db *sqlx.DB) *MessageRepo {
	return &MessageRepo{db: db}
}

// CreateMessage appends a message to its chat.
func (r *MessageRepo) CreateMessage(ctx context.Context, msg models.Message) error {
	_, err := db.GetExecutor(ctx, r.db).ExecContext(ctx, `INSERT INTO messages (id, chat_id, sender_id, text, type, created_at)
        VALUES ($1, $2, $3, $4, $5, $6)`, msg.ID, msg.ChatID, msg.SenderID, msg.Text, msg.Type, msg.CreatedAt)
	return err
}

// ListMessages returns up to limit messages older than before (zero means newest),
// in chronological order, with their readers.
func (r *MessageRepo) ListMessages(ctx context.Context, chatID string, before time.Time, limit int) ([]models.Message, error) {
	if limit <= 0 || limit > 100 {
		limit = 50
	}
	exec := db.GetExecutor(ctx, r.db)

	var msgs []models.Message
	var err error
	if before.IsZero() {
		err = exec.SelectContext(ctx, &msgs, `SELECT id, chat_id, sender_id, text, type, created_at FROM messages
            WHERE chat_id=$1 ORDER BY created_at DESC, id DESC LIMIT $2`, chatID, limit)
	} else {
		err = exec.SelectContext(ctx, &msgs, `SELECT id, chat_id, sender_id, text, type, created_at FROM messages
            WHERE chat_id=$1 AND created_at < $2 ORDER BY created_at DESC, id DESC LIMIT $3`, chatID, before.UTC(), limit)
	}
	if err != nil {
		return nil, err
	}

	// newest-first from the query, chronological for clients
	for i, j := 0, len(msgs)-1; i < j; i, j = i+1, j-1 {
		msgs[i], msgs[j] = msgs[j], msgs[i]
	}
	if len(msgs) == 0 {
		return []models.Message{}, nil
	}

	ids := make([]string, 0, len(msgs))
	for _, m := range msgs {
		ids = append(ids, m.ID)
	}
	readers, err := r.readersByMessage(ctx, exec, ids)
	if err != nil {
		return nil, err
	}
	for i := range msgs {
		msgs[i].ReadBy = readers[msgs[i].ID]
		if msgs[i].ReadBy == nil {
			msgs[i].ReadBy = []string{}
		}
	}
	return msgs, nil
}

// MarkRead records userID as a reader of the given messages of chatID.
// Ids outside the chat are ignored; the ids actually belonging to the chat are returned.
func (r *MessageRepo) MarkRead(ctx context.Context, chatID string, userID string, messageIDs []string, at time.Time) ([]string, error) {
	if len(messageIDs) == 0 {
		return []string{}, nil
	}
	exec := db.GetExecutor(ctx, r.db)

	query, args, err := sqlx.In(`SELECT id FROM messages WHERE chat_id = ? AND id IN (?)`, chatID, messageIDs)
	if err != nil {
		return nil, err
	}
	var owned []string
	if err := exec.SelectContext(ctx, &owned, exec.Rebind(query), args...); err != nil {
		return nil, err
	}

	for _, id := range owned {
		if _, err := exec.ExecContext(ctx, `INSERT INTO message_reads (message_id, user_id, read_at) VALUES ($1, $2, $3)
            ON CONFLICT (message_id, user_id) DO NOTHING`, id, userID, at); err != nil {
			return nil, err
		}
	}
	if owned == nil {
		owned = []string{}
	}
	return owned, nil
}

func (r *MessageRepo) readersByMessage(ctx context.Context, exec db.Executor, messageIDs []string) (map[string][]string, error) {
	query, args, err := sqlx.In(`SELECT message_id, user_id FROM message_reads WHERE message_id IN (?) ORDER BY read_at ASC, user_id ASC`, messageIDs)
	if err != nil {
		return nil, err
	}
	var rows []struct {
		MessageID string `db:"message_id"`
		UserID    string `db:"user_id"`
	}
	if err := exec.SelectContext(ctx, &rows, exec.Rebind(query), args...); err != nil {
		return nil, err
	}
	out := make(map[string][]string, len(messageIDs))
	for _, row := range rows {
		out[row.MessageID] = append(out[row.MessageID], row.UserID)
	}
	return out, nil
}
