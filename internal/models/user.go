package models

import "time"

// UserProfile is the directory record of an authenticated identity.
type UserProfile struct {
	ID          string     `db:"id" json:"id"`
	Email       string     `db:"email" json:"email"`
	DisplayName string     `db:"display_name" json:"display_name"`
	AvatarURL   *string    `db:"avatar_url" json:"avatar_url,omitempty"`
	IsOnline    bool       `db:"is_online" json:"is_online"`
	LastSeen    *time.Time `db:"last_seen" json:"last_seen,omitempty"`
	CreatedAt   time.Time  `db:"created_at" json:"created_at"`
	UpdatedAt   time.Time  `db:"updated_at" json:"updated_at"`
}
