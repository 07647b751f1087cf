package models

import (
	"database/sql/driver"
	"encoding/json"
	"fmt"
	"time"
)

// NotificationType names the event that produced a notification.
type NotificationType string

const (
	NotificationMessage        NotificationType = "message"
	NotificationFriendRequest  NotificationType = "friend_request"
	NotificationFriendAccepted NotificationType = "friend_accepted"
)

// NotificationData is the string map attached to a notification, stored as JSON text.
type NotificationData map[string]string

// Value implements driver.Valuer.
func (d NotificationData) Value() (driver.Value, error) {
	if d == nil {
		return "{}", nil
	}
	raw, err := json.Marshal(map[string]string(d))
	if err != nil {
		return nil, err
	}
	return string(raw), nil
}

// Scan implements sql.Scanner.
func (d *NotificationData) Scan(src any) error {
	var raw []byte
	switch v := src.(type) {
	case nil:
		*d = NotificationData{}
		return nil
	case string:
		raw = []byte(v)
	case []byte:
		raw = v
	default:
		return fmt.Errorf("unsupported notification data type %T", src)
	}
	out := map[string]string{}
	if len(raw) > 0 {
		if err := json.Unmarshal(raw, &out); err != nil {
			return err
		}
	}
	*d = out
	return nil
}

// Notification is one entry of a user's notification ledger.
type Notification struct {
	ID        string           `db:"id" json:"id"`
	UserID    string           `db:"user_id" json:"user_id"`
	Type      NotificationType `db:"type" json:"type"`
	Title     string           `db:"title" json:"title"`
	Body      string           `db:"body" json:"body"`
	Data      NotificationData `db:"data" json:"data"`
	IsRead    bool             `db:"is_read" json:"is_read"`
	CreatedAt time.Time        `db:"created_at" json:"created_at"`
}

// NotificationSettings are per-user toggles. A missing row means all enabled.
type NotificationSettings struct {
	UserID                     string    `db:"user_id" json:"user_id"`
	PushNotifications          bool      `db:"push_notifications" json:"push_notifications"`
	MessageNotifications       bool      `db:"message_notifications" json:"message_notifications"`
	FriendRequestNotifications bool      `db:"friend_request_notifications" json:"friend_request_notifications"`
	UpdatedAt                  time.Time `db:"updated_at" json:"updated_at"`
}

// DefaultNotificationSettings returns the settings of a user who never changed them.
func DefaultNotificationSettings(userID string) NotificationSettings {
	return NotificationSettings{
		UserID:                     userID,
		PushNotifications:          true,
		MessageNotifications:       true,
		FriendRequestNotifications: true,
	}
}

// NotificationEvent is pushed to a user's realtime stream.
type NotificationEvent struct {
	Type         string        `json:"type"`
	Notification *Notification `json:"notification,omitempty"`
}
