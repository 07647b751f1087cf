package repositories

import (
	"context"
	"database/sql"
	"errors"
	"time"

	"github.com/jmoiron/sqlx"

	"social-chat/internal/db"
	"social-chat/internal/models"
)

var (
	ErrChatNotFound     = errors.New("chat not found")
	ErrDirectChatExists = errors.New("active direct chat already exists")
)

// ChatRepository abstracts chat room persistence.
type ChatRepository interface {
	CreateChat(ctx context.Context, room models.ChatRoom) error
	FindActiveDirect(ctx context.Context, directKey string) (models.ChatRoom, error)
	GetChat(ctx context.Context, chatID string) (models.ChatRoom, error)
	ListChats(ctx context.Context, userID string) ([]models.ChatRoom, error)
	IsParticipant(ctx context.Context, chatID string, userID string) (bool, error)
	UpdateSummary(ctx context.Context, chatID string, summary models.MessageSummary) error
	Deactivate(ctx context.Context, chatID string, at time.Time) error
}

// ChatRepo is a sqlx implementation of ChatRepository.
type ChatRepo struct {
	db *sqlx.DB
}

// NewChatRepo constructs a ChatRepo.
func NewChatRepo(db *sqlx.DB) *ChatRepo {
	return &ChatRepo{db: db}
}

const chatColumns = `c.id, c.type, c.name, c.direct_key, c.last_message_text, c.last_message_sender, c.last_message_at, c.is_active, c.created_by, c.created_at, c.updated_at`

// CreateChat inserts the room and its participants. Callers wrap it in a transaction.
// A conflicting active direct room is reported as ErrDirectChatExists.
func (r *ChatRepo) CreateChat(ctx context.Context, room models.ChatRoom) error {
	exec := db.GetExecutor(ctx, r.db)
	_, err := exec.ExecContext(ctx, `INSERT INTO chat_rooms (id, type, name, direct_key, is_active, created_by, created_at, updated_at)
        VALUES ($1, $2, $3, $4, $5, $6, $7, $8)`,
		room.ID, room.Type, room.Name, room.DirectKey, room.IsActive, room.CreatedBy, room.CreatedAt, room.UpdatedAt)
	if err != nil {
		if db.IsUniqueViolation(err) {
			return ErrDirectChatExists
		}
		return err
	}

	for _, userID := range room.Participants {
		if _, err := exec.ExecContext(ctx, `INSERT INTO chat_room_participants (chat_id, user_id, joined_at) VALUES ($1, $2, $3)`,
			room.ID, userID, room.CreatedAt); err != nil {
			return err
		}
	}
	return nil
}

// FindActiveDirect returns the active direct room with the given pair key.
func (r *ChatRepo) FindActiveDirect(ctx context.Context, directKey string) (models.ChatRoom, error) {
	exec := db.GetExecutor(ctx, r.db)
	var room models.ChatRoom
	err := exec.GetContext(ctx, &room, `SELECT `+chatColumns+` FROM chat_rooms c
        WHERE c.direct_key=$1 AND c.type='direct' AND c.is_active = TRUE`, directKey)
	if errors.Is(err, sql.ErrNoRows) {
		return models.ChatRoom{}, ErrChatNotFound
	}
	if err != nil {
		return models.ChatRoom{}, err
	}
	return r.withParticipants(ctx, exec, room)
}

// GetChat fetches a room by id, active or not.
func (r *ChatRepo) GetChat(ctx context.Context, chatID string) (models.ChatRoom, error) {
	exec := db.GetExecutor(ctx, r.db)
	var room models.ChatRoom
	err := exec.GetContext(ctx, &room, `SELECT `+chatColumns+` FROM chat_rooms c WHERE c.id=$1`, chatID)
	if errors.Is(err, sql.ErrNoRows) {
		return models.ChatRoom{}, ErrChatNotFound
	}
	if err != nil {
		return models.ChatRoom{}, err
	}
	return r.withParticipants(ctx, exec, room)
}

// ListChats returns active rooms of the user, most recently updated first.
func (r *ChatRepo) ListChats(ctx context.Context, userID string) ([]models.ChatRoom, error) {
	exec := db.GetExecutor(ctx, r.db)
	var rooms []models.ChatRoom
	err := exec.SelectContext(ctx, &rooms, `SELECT `+chatColumns+` FROM chat_rooms c
        INNER JOIN chat_room_participants p ON p.chat_id = c.id
        WHERE p.user_id=$1 AND c.is_active = TRUE
        ORDER BY c.updated_at DESC`, userID)
	if err != nil {
		return nil, err
	}
	if len(rooms) == 0 {
		return []models.ChatRoom{}, nil
	}

	ids := make([]string, 0, len(rooms))
	for _, room := range rooms {
		ids = append(ids, room.ID)
	}
	members, err := r.participantsByChat(ctx, exec, ids)
	if err != nil {
		return nil, err
	}
	for i := range rooms {
		rooms[i].Participants = members[rooms[i].ID]
		rooms[i].HydrateSummary()
	}
	return rooms, nil
}

// IsParticipant checks whether a user belongs to the chat.
func (r *ChatRepo) IsParticipant(ctx context.Context, chatID string, userID string) (bool, error) {
	var exists bool
	err := db.GetExecutor(ctx, r.db).GetContext(ctx, &exists,
		`SELECT EXISTS(SELECT 1 FROM chat_room_participants WHERE chat_id=$1 AND user_id=$2)`, chatID, userID)
	return exists, err
}

// UpdateSummary caches the newest message on the room and bumps updated_at.
func (r *ChatRepo) UpdateSummary(ctx context.Context, chatID string, summary models.MessageSummary) error {
	res, err := db.GetExecutor(ctx, r.db).ExecContext(ctx, `UPDATE chat_rooms
        SET last_message_text=$1, last_message_sender=$2, last_message_at=$3, updated_at=$4
        WHERE id=$5`, summary.Text, summary.SenderID, summary.Timestamp, summary.Timestamp, chatID)
	return expectOneRow(res, err, ErrChatNotFound)
}

// Deactivate hides the room from listings. Rooms are never hard deleted.
func (r *ChatRepo) Deactivate(ctx context.Context, chatID string, at time.Time) error {
	res, err := db.GetExecutor(ctx, r.db).ExecContext(ctx,
		`UPDATE chat_rooms SET is_active = FALSE, updated_at=$1 WHERE id=$2`, at, chatID)
	return expectOneRow(res, err, ErrChatNotFound)
}

func (r *ChatRepo) withParticipants(ctx context.Context, exec db.Executor, room models.ChatRoom) (models.ChatRoom, error) {
	members, err := r.participantsByChat(ctx, exec, []string{room.ID})
	if err != nil {
		return models.ChatRoom{}, err
	}
	room.Participants = members[room.ID]
	room.HydrateSummary()
	return room, nil
}

func (r *ChatRepo) participantsByChat(ctx context.Context, exec db.Executor, chatIDs []string) (map[string][]string, error) {
	query, args, err := sqlx.In(`SELECT chat_id, user_id FROM chat_room_participants WHERE chat_id IN (?) ORDER BY joined_at ASC, user_id ASC`, chatIDs)
	if err != nil {
		return nil, err
	}
	var rows []struct {
		ChatID string `db:"chat_id"`
		UserID string `db:"user_id"`
	}
	if err := exec.SelectContext(ctx, &rows, exec.Rebind(query), args...); err != nil {
		return nil, err
	}
	out := make(map[string][]string, len(chatIDs))
	for _, row := range rows {
		out[row.ChatID] = append(out[row.ChatID], row.UserID)
	}
	return out, nil
}

func expectOneRow(res sql.Result, err error, notFound error) error {
	if err != nil {
		return err
	}
	count, err := res.RowsAffected()
	if err != nil {
		return err
	}
	if count == 0 {
		return notFound
	}
	return nil
}
