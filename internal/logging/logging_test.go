package logging

import (
	"bytes"
	"context"
	"encoding/json"
	"testing"

	"github.com/rs/zerolog"
	"github.com/stretchr/testify/require"
)

func TestNewWithWriterAddsServiceFields(t *testing.T) {
	var buf bytes.Buffer
	logger := NewWithWriter(&buf, "social-chat", "test", "debug")

	logger.Debug().Msg("hello")

	var line map[string]any
	require.NoError(t, json.Unmarshal(buf.Bytes(), &line))
	require.Equal(t, "social-chat", line["service"])
	require.Equal(t, "test", line["env"])
	require.Equal(t, "hello", line["message"])
}

func TestNewWithWriterFallsBackToInfo(t *testing.T) {
	var buf bytes.Buffer
	logger := NewWithWriter(&buf, "svc", "test", "chatty")

	logger.Debug().Msg("hidden")
	require.Zero(t, buf.Len())
}

func TestFromContext(t *testing.T) {
	fallback := zerolog.Nop()
	require.Equal(t, fallback, FromContext(context.Background(), fallback))

	var buf bytes.Buffer
	scoped := NewWithWriter(&buf, "svc", "test", "info")
	ctx := WithContext(context.Background(), scoped)

	log := FromContext(ctx, fallback)
	log.Info().Msg("scoped")
	require.Contains(t, buf.String(), "scoped")
}
