// Package dbtest opens throwaway in-memory databases with the production schema.
package dbtest

import (
	"context"
	"fmt"
	"testing"

	"github.com/google/uuid"
	"github.com/jmoiron/sqlx"
	_ "github.com/mattn/go-sqlite3"

	"social-chat/internal/db"
)

// Open returns a migrated in-memory sqlite database closed at the end of the test.
func Open(t testing.TB) *sqlx.DB {
	t.Helper()

	dsn := fmt.Sprintf("file:%s?mode=memory&cache=shared&_foreign_keys=on", uuid.NewString())
	conn, err := sqlx.Open("sqlite3", dsn)
	if err != nil {
		t.Fatalf("open sqlite: %v", err)
	}
	// one connection keeps the in-memory database and its transactions consistent
	conn.SetMaxOpenConns(1)

	if err := db.Migrate(context.Background(), conn); err != nil {
		_ = conn.Close()
		t.Fatalf("migrate sqlite: %v", err)
	}
	t.Cleanup(func() { _ = conn.Close() })
	return conn
}
