package models

import (
	"sort"
	"strings"
	"time"
)

// ChatType distinguishes two-party rooms from multi-party ones.
type ChatType string

const (
	ChatTypeDirect ChatType = "direct"
	ChatTypeGroup  ChatType = "group"
)

// ChatRoom is a conversation between its participants.
type ChatRoom struct {
	ID                string     `db:"id" json:"id"`
	Type              ChatType   `db:"type" json:"type"`
	Name              *string    `db:"name" json:"name,omitempty"`
	DirectKey         *string    `db:"direct_key" json:"-"`
	LastMessageText   *string    `db:"last_message_text" json:"-"`
	LastMessageSender *string    `db:"last_message_sender" json:"-"`
	LastMessageAt     *time.Time `db:"last_message_at" json:"-"`
	IsActive          bool       `db:"is_active" json:"is_active"`
	CreatedBy         string     `db:"created_by" json:"created_by"`
	CreatedAt         time.Time  `db:"created_at" json:"created_at"`
	UpdatedAt         time.Time  `db:"updated_at" json:"updated_at"`

	Participants []string        `db:"-" json:"participants"`
	LastMessage  *MessageSummary `db:"-" json:"last_message,omitempty"`
}

// MessageSummary is the cached preview of the newest message of a room.
type MessageSummary struct {
	Text      string    `json:"text"`
	SenderID  string    `json:"sender_id"`
	Timestamp time.Time `json:"timestamp"`
}

// HydrateSummary copies the flat summary columns into LastMessage.
func (r *ChatRoom) HydrateSummary() {
	if r.LastMessageText == nil || r.LastMessageAt == nil {
		r.LastMessage = nil
		return
	}
	summary := &MessageSummary{Text: *r.LastMessageText, Timestamp: *r.LastMessageAt}
	if r.LastMessageSender != nil {
		summary.SenderID = *r.LastMessageSender
	}
	r.LastMessage = summary
}

// HasParticipant reports whether userID belongs to the room.
func (r ChatRoom) HasParticipant(userID string) bool {
	for _, p := range r.Participants {
		if p == userID {
			return true
		}
	}
	return false
}

// OtherParticipants returns every participant except userID.
func (r ChatRoom) OtherParticipants(userID string) []string {
	others := make([]string, 0, len(r.Participants))
	for _, p := range r.Participants {
		if p != userID {
			others = append(others, p)
		}
	}
	return others
}

// DirectKey is the order-independent key of a two-party room.
func DirectKey(userA, userB string) string {
	pair := []string{userA, userB}
	sort.Strings(pair)
	return strings.Join(pair, ":")
}
