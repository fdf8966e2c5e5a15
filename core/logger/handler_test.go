package logger

import (
	"bytes"
	"context"
	"encoding/json"
	"io"
	"log/slog"
	"strings"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func newTestLogger(format logFormat) (*slog.Logger, *asyncWriter, *bytes.Buffer) {
	var buf bytes.Buffer
	w := newAsyncWriter([]io.Writer{&buf}, 16)
	h := newStructuredHandler(handlerConfig{
		level:  slog.LevelDebug,
		writer: w,
		format: format,
	})
	return slog.New(h), w, &buf
}

func TestHandlerJSONKeyOrder(t *testing.T) {
	log, w, buf := newTestLogger(formatJSON)

	log.LogAttrs(context.Background(), slog.LevelInfo, "screen.shown",
		slog.String("err", "boom"),
		slog.String("component", "flow"),
		slog.String("state", "entering_phone"),
	)
	require.NoError(t, w.Flush())

	line := strings.TrimSpace(buf.String())
	var decoded map[string]any
	require.NoError(t, json.Unmarshal([]byte(line), &decoded))
	assert.Equal(t, "screen.shown", decoded["event"])
	assert.Equal(t, "flow", decoded["component"])
	assert.Equal(t, "INFO", decoded["level"])

	// component/state must come before err in the serialized order
	assert.Less(t, strings.Index(line, `"component"`), strings.Index(line, `"err"`))
	assert.Less(t, strings.Index(line, `"state"`), strings.Index(line, `"err"`))
}

func TestHandlerKVQuoting(t *testing.T) {
	log, w, buf := newTestLogger(formatKV)

	log.LogAttrs(context.Background(), slog.LevelWarn, "delete.failed",
		slog.String("payload", "two words"),
		slog.Int("chat_id", 42),
	)
	require.NoError(t, w.Flush())

	line := strings.TrimSpace(buf.String())
	assert.Contains(t, line, `payload="two words"`)
	assert.Contains(t, line, "chat_id=42")
	assert.Contains(t, line, "level=WARN")
}

func TestHandlerContextEnrichment(t *testing.T) {
	log, w, buf := newTestLogger(formatJSON)

	ctx := WithRID(context.Background(), "10:20:30")
	ctx = WithUpdateMeta(ctx, 10, 30, 20)
	ctx = WithHandler(ctx, "parent.confirm")

	log.LogAttrs(ctx, slog.LevelInfo, "persisted")
	require.NoError(t, w.Flush())

	var decoded map[string]any
	require.NoError(t, json.Unmarshal(bytes.TrimSpace(buf.Bytes()), &decoded))
	assert.Equal(t, "a.k.u", decoded["rid"])
	assert.Equal(t, float64(20), decoded["chat_id"])
	assert.Equal(t, "parent.confirm", decoded["handler"])
}

func TestCompactRID(t *testing.T) {
	assert.Equal(t, "a.k.u", CompactRID("10:20:30"))
	assert.Equal(t, "not-a-rid", CompactRID("not-a-rid"))
	assert.Equal(t, "", CompactRID("  "))
}

func TestSanitizeLimit(t *testing.T) {
	assert.Equal(t, "abc", SanitizeLimit("a\x00b\x1bc", 10))
	assert.Equal(t, "абв", SanitizeLimit("абвгд", 3))
	assert.Equal(t, "", SanitizeLimit("anything", 0))
}
