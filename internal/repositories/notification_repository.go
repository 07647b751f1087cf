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
	ErrNotificationNotFound = errors.New("notification not found")
	ErrSettingsNotFound     = errors.New("notification settings not found")
)

// NotificationRepository abstracts the notification ledger and per-user settings.
type NotificationRepository interface {
	CreateNotification(ctx context.Context, n models.Notification) error
	ListNotifications(ctx context.Context, userID string, unreadOnly bool, limit, offset int) ([]models.Notification, error)
	MarkRead(ctx context.Context, notificationID string, userID string) error
	MarkAllRead(ctx context.Context, userID string) (int64, error)
	CountUnread(ctx context.Context, userID string) (int, error)
	GetSettings(ctx context.Context, userID string) (models.NotificationSettings, error)
	UpsertSettings(ctx context.Context, s models.NotificationSettings) error
}

// NotificationRepo is a sqlx implementation of NotificationRepository.
type NotificationRepo struct {
	db *sqlx.DB
}

// NewNotificationRepo constructs a NotificationRepo.
func NewNotificationRepo(db *sqlx.DB) *NotificationRepo {
	return &NotificationRepo{db: db}
}

const notificationColumns = `id, user_id, type, title, body, data, is_read, created_at`

// CreateNotification appends an entry to the user's ledger.
func (r *NotificationRepo) CreateNotification(ctx context.Context, n models.Notification) error {
	_, err := db.GetExecutor(ctx, r.db).ExecContext(ctx, `INSERT INTO notifications (id, user_id, type, title, body, data, is_read, created_at)
        VALUES ($1, $2, $3, $4, $5, $6, $7, $8)`, n.ID, n.UserID, n.Type, n.Title, n.Body, n.Data, n.IsRead, n.CreatedAt)
	return err
}

// ListNotifications pages through the ledger newest first.
func (r *NotificationRepo) ListNotifications(ctx context.Context, userID string, unreadOnly bool, limit, offset int) ([]models.Notification, error) {
	if limit <= 0 || limit > 100 {
		limit = 20
	}
	if offset < 0 {
		offset = 0
	}
	filter := ``
	if unreadOnly {
		filter = ` AND is_read = FALSE`
	}
	var out []models.Notification
	err := db.GetExecutor(ctx, r.db).SelectContext(ctx, &out, `SELECT `+notificationColumns+` FROM notifications
        WHERE user_id=$1`+filter+` ORDER BY created_at DESC, id DESC LIMIT $2 OFFSET $3`, userID, limit, offset)
	if err != nil {
		return nil, err
	}
	if out == nil {
		out = []models.Notification{}
	}
	return out, nil
}

// MarkRead flags one notification owned by userID as read. Re-marking is a no-op.
func (r *NotificationRepo) MarkRead(ctx context.Context, notificationID string, userID string) error {
	exec := db.GetExecutor(ctx, r.db)
	var owner string
	err := exec.GetContext(ctx, &owner, `SELECT user_id FROM notifications WHERE id=$1`, notificationID)
	if errors.Is(err, sql.ErrNoRows) || (err == nil && owner != userID) {
		return ErrNotificationNotFound
	}
	if err != nil {
		return err
	}
	_, err = exec.ExecContext(ctx, `UPDATE notifications SET is_read = TRUE WHERE id=$1`, notificationID)
	return err
}

// MarkAllRead flags every unread notification of userID and returns how many changed.
func (r *NotificationRepo) MarkAllRead(ctx context.Context, userID string) (int64, error) {
	res, err := db.GetExecutor(ctx, r.db).ExecContext(ctx, `UPDATE notifications SET is_read = TRUE WHERE user_id=$1 AND is_read = FALSE`, userID)
	if err != nil {
		return 0, err
	}
	return res.RowsAffected()
}

// CountUnread counts unread notifications of userID.
func (r *NotificationRepo) CountUnread(ctx context.Context, userID string) (int, error) {
	var count int
	err := db.GetExecutor(ctx, r.db).GetContext(ctx, &count, `SELECT COUNT(*) FROM notifications WHERE user_id=$1 AND is_read = FALSE`, userID)
	return count, err
}

// GetSettings returns stored settings or ErrSettingsNotFound.
func (r *NotificationRepo) GetSettings(ctx context.Context, userID string) (models.NotificationSettings, error) {
	var s models.NotificationSettings
	err := db.GetExecutor(ctx, r.db).GetContext(ctx, &s, `SELECT user_id, push_notifications, message_notifications, friend_request_notifications, updated_at
        FROM notification_settings WHERE user_id=$1`, userID)
	if errors.Is(err, sql.ErrNoRows) {
		return models.NotificationSettings{}, ErrSettingsNotFound
	}
	return s, err
}

// UpsertSettings stores the full settings row.
func (r *NotificationRepo) UpsertSettings(ctx context.Context, s models.NotificationSettings) error {
	if s.UpdatedAt.IsZero() {
		s.UpdatedAt = time.Now().UTC()
	}
	_, err := db.GetExecutor(ctx, r.db).ExecContext(ctx, `INSERT INTO notification_settings
        (user_id, push_notifications, message_notifications, friend_request_notifications, updated_at)
        VALUES ($1, $2, $3, $4, $5)
        ON CONFLICT (user_id) DO UPDATE SET
            push_notifications = EXCLUDED.push_notifications,
            message_notifications = EXCLUDED.message_notifications,
            friend_request_notifications = EXCLUDED.friend_request_notifications,
            updated_at = EXCLUDED.updated_at`,
		s.UserID, s.PushNotifications, s.MessageNotifications, s.FriendRequestNotifications, s.UpdatedAt)
	return err
}
