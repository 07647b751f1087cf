package models

import "time"

// MessageType classifies message content.
type MessageType string

const (
	MessageTypeText   MessageType = "text"
	MessageTypeImage  MessageType = "image"
	MessageTypeSystem MessageType = "system"
)

// Message represents a chat message. Only ReadBy changes after creation.
type Message struct {
	ID        string      `db:"id" json:"id"`
	ChatID    string      `db:"chat_id" json:"chat_id"`
	SenderID  string      `db:"sender_id" json:"sender_id"`
	Text      string      `db:"text" json:"text"`
	Type      MessageType `db:"type" json:"type"`
	CreatedAt time.Time   `db:"created_at" json:"timestamp"`
	ReadBy    []string    `db:"-" json:"read_by"`
}

// ChatEvent is broadcast to subscribers of a chat room.
type ChatEvent struct {
	Type       string   `json:"type"`
	ChatID     string   `json:"chat_id"`
	Message    *Message `json:"message,omitempty"`
	ReaderID   string   `json:"reader_id,omitempty"`
	MessageIDs []string `json:"message_ids,omitempty"`
}

const (
	ChatEventMessage = "message"
	ChatEventRead    = "read"
)
