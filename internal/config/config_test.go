package config

import (
	"testing"
	"time"

	"github.com/stretchr/testify/require"
)

func TestLoadRequiresJWTSecret(t *testing.T) {
	t.Setenv("CHAT_JWT_SECRET", "")

	_, err := Load()
	require.Error(t, err)
}

func TestLoadDefaultsAndOverrides(t *testing.T) {
	t.Setenv("CHAT_JWT_SECRET", "secret")
	t.Setenv("CHAT_PRESENCE_TTL", "2m")
	t.Setenv("CHAT_DATABASE_DRIVER", "SQLITE3")

	cfg, err := Load()
	require.NoError(t, err)
	require.Equal(t, "secret", cfg.JWTSecret)
	require.Equal(t, 2*time.Minute, cfg.PresenceTTL)
	require.Equal(t, "sqlite3", cfg.DatabaseDriver)
	require.Equal(t, 1, cfg.DBMaxOpenConns)
	require.Equal(t, "chat.events", cfg.AMQPExchange)
}

func TestLoadRejectsUnknownDriver(t *testing.T) {
	t.Setenv("CHAT_JWT_SECRET", "secret")
	t.Setenv("CHAT_DATABASE_DRIVER", "mysql")

	_, err := Load()
	require.Error(t, err)
}

func TestLoadRejectsBadPresenceTTL(t *testing.T) {
	t.Setenv("CHAT_JWT_SECRET", "secret")
	t.Setenv("CHAT_PRESENCE_TTL", "soon")

	_, err := Load()
	require.Error(t, err)
}
