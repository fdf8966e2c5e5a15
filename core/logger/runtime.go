package logger

import (
	"context"
	"log/slog"
	"strconv"
	"strings"
	"unicode"
)

// Context plumbing for request-scoped log metadata. Middleware fills
// the context once per update; the handler pulls the fields back out
// when a record is emitted.

type ctxKey int

const (
	keyRID ctxKey = iota
	keyUpdateID
	keyUserID
	keyChatID
	keyLogger
	keyHandler
)

func ctxValue[T any](ctx context.Context, key ctxKey) (T, bool) {
	var zero T
	if ctx == nil {
		return zero, false
	}
	v, ok := ctx.Value(key).(T)
	if !ok {
		return zero, false
	}
	return v, true
}

// WithLogger stores a request-scoped logger in the context.
func WithLogger(ctx context.Context, log *slog.Logger) context.Context {
	if ctx == nil {
		ctx = context.Background()
	}
	if log == nil {
		return ctx
	}
	return context.WithValue(ctx, keyLogger, log)
}

// FromContext returns the request-scoped logger, or the global one.
func FromContext(ctx context.Context) *slog.Logger {
	if l, ok := ctxValue[*slog.Logger](ctx, keyLogger); ok {
		return l
	}
	return L
}

// WithRID attaches the update correlation id.
func WithRID(ctx context.Context, rid string) context.Context {
	if ctx == nil {
		ctx = context.Background()
	}
	return context.WithValue(ctx, keyRID, rid)
}

// RIDFrom returns the correlation id, empty when absent.
func RIDFrom(ctx context.Context) string {
	s, _ := ctxValue[string](ctx, keyRID)
	return s
}

// WithUpdateMeta attaches the inbound update identifiers.
func WithUpdateMeta(ctx context.Context, updateID int, userID, chatID int64) context.Context {
	if ctx == nil {
		ctx = context.Background()
	}
	ctx = context.WithValue(ctx, keyUpdateID, updateID)
	ctx = context.WithValue(ctx, keyUserID, userID)
	return context.WithValue(ctx, keyChatID, chatID)
}

// WithHandler records which handler owns the rest of the request.
func WithHandler(ctx context.Context, handler string) context.Context {
	if handler == "" {
		return ctx
	}
	if ctx == nil {
		ctx = context.Background()
	}
	return context.WithValue(ctx, keyHandler, handler)
}

// HandlerFrom returns the owning handler name, empty when absent.
func HandlerFrom(ctx context.Context) string {
	s, _ := ctxValue[string](ctx, keyHandler)
	return s
}

// UserIDFrom returns the Telegram user id, zero when absent.
func UserIDFrom(ctx context.Context) int64 {
	id, _ := ctxValue[int64](ctx, keyUserID)
	return id
}

// ChatIDFrom returns the chat id, zero when absent.
func ChatIDFrom(ctx context.Context) int64 {
	id, _ := ctxValue[int64](ctx, keyChatID)
	return id
}

// UpdateIDFrom returns the update id, zero when absent.
func UpdateIDFrom(ctx context.Context) int {
	id, _ := ctxValue[int](ctx, keyUpdateID)
	return id
}

// Sanitize strips control runes (keeping tab and newline) so user text
// cannot mangle a log line.
func Sanitize(s string) string {
	if s == "" {
		return s
	}
	var b strings.Builder
	b.Grow(len(s))
	for _, r := range s {
		switch {
		case r == '\n' || r == '\t':
			b.WriteRune(r)
		case r == 0x7F, unicode.IsControl(r), unicode.Is(unicode.Cf, r):
		default:
			b.WriteRune(r)
		}
	}
	return b.String()
}

// SanitizeLimit sanitizes and truncates to max runes.
func SanitizeLimit(s string, max int) string {
	if max <= 0 {
		return ""
	}
	r := []rune(Sanitize(s))
	if len(r) <= max {
		return string(r)
	}
	return string(r[:max])
}

// BuildRID builds the updateID:chatID:userID correlation id.
func BuildRID(updateID int, chatID, userID int64) string {
	return strconv.Itoa(updateID) + ":" +
		strconv.FormatInt(chatID, 10) + ":" +
		strconv.FormatInt(userID, 10)
}

// CompactRID re-encodes a numeric a:b:c rid into dotted base36. Inputs
// that do not look like a rid pass through unchanged.
func CompactRID(rid string) string {
	rid = strings.TrimSpace(rid)
	if rid == "" {
		return ""
	}
	parts := strings.Split(rid, ":")
	if len(parts) != 3 {
		return rid
	}
	out := make([]string, 0, 3)
	for _, p := range parts {
		n, err := strconv.ParseInt(strings.TrimSpace(p), 10, 64)
		if err != nil {
			return rid
		}
		out = append(out, strconv.FormatInt(n, 36))
	}
	return strings.Join(out, ".")
}
