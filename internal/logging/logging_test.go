package logging

import (
	"bytes"
	"log/slog"
	"testing"

	"github.com/stretchr/testify/assert"
)

func TestParseLevel(t *testing.T) {
	assert.Equal(t, slog.LevelDebug, ParseLevel("debug"))
	assert.Equal(t, slog.LevelWarn, ParseLevel("WARN"))
	assert.Equal(t, slog.LevelInfo, ParseLevel("verbose"))
}

func TestNewFormats(t *testing.T) {
	var buf bytes.Buffer
	New(&buf, "info", "json").Info("hello", "user_id", "u1")
	assert.Contains(t, buf.String(), `"user_id":"u1"`)

	buf.Reset()
	New(&buf, "info", "text").Info("hello", "user_id", "u1")
	assert.Contains(t, buf.String(), "user_id=u1")

	buf.Reset()
	New(&buf, "error", "text").Info("dropped")
	assert.Empty(t, buf.String())
}
