package logging

import (
	"bytes"
	"context"
	"encoding/json"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestNewLogger_AddsServiceAndContext(t *testing.T) {
	var buf bytes.Buffer
	logger := NewLogger(Config{
		Level:       "debug",
		Format:      "json",
		Output:      &buf,
		ServiceName: "severino-relay",
		Environment: "test",
	})

	ctx := WithConnectionID(WithUserID(WithRequestID(context.Background(), "req-1"), "u1"), "conn-1")
	logger.InfoContext(ctx, "hello", "room", "managers")

	var entry map[string]any
	require.NoError(t, json.Unmarshal(buf.Bytes(), &entry))
	assert.Equal(t, "hello", entry["msg"])
	assert.Equal(t, "severino-relay", entry["service"])
	assert.Equal(t, "test", entry["environment"])
	assert.Equal(t, "req-1", entry["request_id"])
	assert.Equal(t, "u1", entry["user_id"])
	assert.Equal(t, "conn-1", entry["connection_id"])
	assert.Equal(t, "managers", entry["room"])
}

func TestNewLogger_LevelFilter(t *testing.T) {
	var buf bytes.Buffer
	logger := NewLogger(Config{Level: "warn", Format: "text", Output: &buf})

	logger.Info("dropped")
	logger.Warn("kept")

	assert.NotContains(t, buf.String(), "dropped")
	assert.Contains(t, buf.String(), "kept")
}

func TestLoggerFromContext(t *testing.T) {
	var buf bytes.Buffer
	base := NewLogger(Config{Format: "json", Output: &buf})

	LoggerFromContext(WithRequestID(context.Background(), "req-9"), base).Info("x")

	assert.Contains(t, buf.String(), `"request_id":"req-9"`)
	assert.Equal(t, "req-9", GetRequestID(WithRequestID(context.Background(), "req-9")))
	assert.Empty(t, GetRequestID(context.Background()))
}

func TestLogPanic(t *testing.T) {
	var buf bytes.Buffer
	LogPanic(NewLogger(Config{Format: "json", Output: &buf}), "boom", "path", "/emit")

	var entry map[string]any
	require.NoError(t, json.Unmarshal(buf.Bytes(), &entry))
	assert.Equal(t, "boom", entry["panic"])
	assert.Equal(t, "/emit", entry["path"])
	assert.NotEmpty(t, entry["stack_trace"])
}
