package db

import (
	"context"
	"fmt"
	"time"

	"github.com/jmoiron/sqlx"
	_ "github.com/lib/pq"
	_ "github.com/mattn/go-sqlite3"
)

// Connect opens the database for the configured driver and runs migrations.
func Connect(ctx context.Context, driver, dsn string, maxOpenConns int) (*sqlx.DB, error) {
	db, err := sqlx.Open(driver, dsn)
	if err != nil {
		return nil, fmt.Errorf("open db: %w", err)
	}
	if maxOpenConns > 0 {
		db.SetMaxOpenConns(maxOpenConns)
	}
	db.SetConnMaxIdleTime(5 * time.Minute)

	pingCtx, cancel := context.WithTimeout(ctx, 5*time.Second)
	defer cancel()
	if err := db.PingContext(pingCtx); err != nil {
		_ = db.Close()
		return nil, fmt.Errorf("connect db: %w", err)
	}

	if err := Migrate(ctx, db); err != nil {
		_ = db.Close()
		return nil, fmt.Errorf("run migrations: %w", err)
	}

	return db, nil
}

// The statements below run unchanged on postgres and sqlite.
var migrations = []string{
	`CREATE TABLE IF NOT EXISTS users (
            id TEXT PRIMARY KEY,
            email TEXT NOT NULL,
            display_name TEXT NOT NULL,
            avatar_url TEXT,
            is_online BOOLEAN NOT NULL DEFAULT FALSE,
            last_seen TIMESTAMP,
            created_at TIMESTAMP NOT NULL,
            updated_at TIMESTAMP NOT NULL
        );`,
	`CREATE TABLE IF NOT EXISTS chat_rooms (
            id TEXT PRIMARY KEY,
            type TEXT NOT NULL,
            name TEXT,
            direct_key TEXT,
            last_message_text TEXT,
            last_message_sender TEXT,
            last_message_at TIMESTAMP,
            is_active BOOLEAN NOT NULL DEFAULT TRUE,
            created_by TEXT NOT NULL,
            created_at TIMESTAMP NOT NULL,
            updated_at TIMESTAMP NOT NULL
        );`,
	`CREATE UNIQUE INDEX IF NOT EXISTS chat_rooms_active_direct_key
            ON chat_rooms (direct_key) WHERE is_active = TRUE AND direct_key IS NOT NULL;`,
	`CREATE TABLE IF NOT EXISTS chat_room_participants (
            chat_id TEXT NOT NULL REFERENCES chat_rooms(id) ON DELETE CASCADE,
            user_id TEXT NOT NULL,
            joined_at TIMESTAMP NOT NULL,
            PRIMARY KEY(chat_id, user_id)
        );`,
	`CREATE INDEX IF NOT EXISTS chat_room_participants_user ON chat_room_participants (user_id);`,
	`CREATE TABLE IF NOT EXISTS messages (
            id TEXT PRIMARY KEY,
            chat_id TEXT NOT NULL REFERENCES chat_rooms(id) ON DELETE CASCADE,
            sender_id TEXT NOT NULL,
            text TEXT NOT NULL,
            type TEXT NOT NULL,
            created_at TIMESTAMP NOT NULL
        );`,
	`CREATE INDEX IF NOT EXISTS messages_chat_created ON messages (chat_id, created_at);`,
	`CREATE TABLE IF NOT EXISTS message_reads (
            message_id TEXT NOT NULL REFERENCES messages(id) ON DELETE CASCADE,
            user_id TEXT NOT NULL,
            read_at TIMESTAMP NOT NULL,
            PRIMARY KEY(message_id, user_id)
        );`,
	`CREATE TABLE IF NOT EXISTS friend_requests (
            id TEXT PRIMARY KEY,
            from_user TEXT NOT NULL,
            to_user TEXT NOT NULL,
            message TEXT,
            status TEXT NOT NULL,
            created_at TIMESTAMP NOT NULL,
            responded_at TIMESTAMP
        );`,
	`CREATE UNIQUE INDEX IF NOT EXISTS friend_requests_pending_pair
            ON friend_requests (from_user, to_user) WHERE status = 'pending';`,
	`CREATE INDEX IF NOT EXISTS friend_requests_to_user ON friend_requests (to_user, status);`,
	`CREATE TABLE IF NOT EXISTS friendships (
            id TEXT PRIMARY KEY,
            user1 TEXT NOT NULL,
            user2 TEXT NOT NULL,
            status TEXT NOT NULL,
            accepted_at TIMESTAMP NOT NULL,
            UNIQUE(user1, user2)
        );`,
	`CREATE TABLE IF NOT EXISTS notifications (
            id TEXT PRIMARY KEY,
            user_id TEXT NOT NULL,
            type TEXT NOT NULL,
            title TEXT NOT NULL,
            body TEXT NOT NULL,
            data TEXT NOT NULL,
            is_read BOOLEAN NOT NULL DEFAULT FALSE,
            created_at TIMESTAMP NOT NULL
        );`,
	`CREATE INDEX IF NOT EXISTS notifications_user_created ON notifications (user_id, created_at);`,
	`CREATE TABLE IF NOT EXISTS notification_settings (
            user_id TEXT PRIMARY KEY,
            push_notifications BOOLEAN NOT NULL,
            message_notifications BOOLEAN NOT NULL,
            friend_request_notifications BOOLEAN NOT NULL,
            updated_at TIMESTAMP NOT NULL
        );`,
}

// Migrate applies the schema. Every statement is idempotent.
func Migrate(ctx context.Context, db *sqlx.DB) error {
	for _, m := range migrations {
		if _, err := db.ExecContext(ctx, m); err != nil {
			return err
		}
	}
	return nil
}
