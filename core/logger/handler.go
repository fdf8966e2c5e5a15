package logger

import (
	"bytes"
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"log/slog"
	"sort"
	"strconv"
	"strings"
	"time"
)

type logFormat string

const (
	formatJSON logFormat = "json"
	formatKV   logFormat = "kv"

	timeFormatMillis = "2006-01-02T15:04:05.000Z07:00"
)

type handlerConfig struct {
	level    slog.Leveler
	writer   *asyncWriter
	format   logFormat
	keyOrder []string
}

// defaultKeyOrder pins a stable column order for log lines so that grep/eyeball
// reading stays consistent across components.
var defaultKeyOrder = []string{
	"ts",
	"level",
	"component",
	"event",
	"status",
	"rid",
	"update_id",
	"user_id",
	"chat_id",
	"handler",
	"state",
	"screen",
	"cb_key",
	"payload",
	"lang",
	"role",
	"field",
	"outcome",
	"duration_ms",
	"messages",
	"kb",
	"count",
	"err",
	"err_code",
	"cause",
}

type structuredHandler struct {
	cfg    handlerConfig
	attrs  []slog.Attr
	groups []string
}

func newStructuredHandler(cfg handlerConfig) *structuredHandler {
	if cfg.level == nil {
		cfg.level = slog.LevelInfo
	}
	if cfg.keyOrder == nil {
		cfg.keyOrder = append([]string(nil), defaultKeyOrder...)
	}
	return &structuredHandler{cfg: cfg}
}

func (h *structuredHandler) Enabled(_ context.Context, level slog.Level) bool {
	min := slog.LevelInfo
	if h.cfg.level != nil {
		min = h.cfg.level.Level()
	}
	return level >= min
}

// Handle renders the record into one line in the configured format and
// hands it to the async writer.
func (h *structuredHandler) Handle(ctx context.Context, r slog.Record) error {
	if h.cfg.writer == nil {
		return errors.New("logger: writer not initialized")
	}

	fields := h.recordFields(ctx, r)

	var line []byte
	if h.cfg.format == formatKV {
		line = formatKVLine(fields, h.cfg.keyOrder)
	} else {
		var err error
		if line, err = formatJSONLine(fields, h.cfg.keyOrder); err != nil {
			return err
		}
	}
	return h.cfg.writer.Write(append(line, '\n'))
}

func (h *structuredHandler) recordFields(ctx context.Context, r slog.Record) map[string]any {
	fields := map[string]any{
		"ts":    r.Time.UTC().Truncate(time.Millisecond).Format(timeFormatMillis),
		"level": strings.ToUpper(r.Level.String()),
	}

	for _, a := range h.attrs {
		h.collectAttr(fields, a)
	}
	r.Attrs(func(a slog.Attr) bool {
		h.collectAttr(fields, a)
		return true
	})
	addContextFields(ctx, fields)

	if rid, ok := fields["rid"].(string); ok && rid != "" {
		if compact := CompactRID(rid); compact != "" {
			fields["rid"] = compact
		}
	}
	if event, _ := fields["event"].(string); event == "" {
		fields["event"] = r.Message
		if r.Message == "" {
			fields["event"] = "unknown"
		}
	}
	return fields
}

// WithAttrs returns a handler that includes the provided attributes on every record.
func (h *structuredHandler) WithAttrs(attrs []slog.Attr) slog.Handler {
	clone := *h
	clone.attrs = append(append([]slog.Attr(nil), h.attrs...), attrs...)
	return &clone
}

// WithGroup returns a handler scoping subsequent attribute keys under name.
func (h *structuredHandler) WithGroup(name string) slog.Handler {
	if name == "" {
		return h
	}
	clone := *h
	clone.groups = append(append([]string(nil), h.groups...), name)
	return &clone
}

func (h *structuredHandler) collectAttr(fields map[string]any, attr slog.Attr) {
	flattenAttr(strings.Join(h.groups, "."), attr, func(key string, val slog.Value) {
		switch val.Kind() {
		case slog.KindDuration:
			fields[key] = RoundMS(val.Duration()).Milliseconds()
		case slog.KindTime:
			fields[key] = val.Time().UTC().Format(timeFormatMillis)
		default:
			fields[key] = val.Any()
		}
	})
}

func flattenAttr(prefix string, attr slog.Attr, fn func(string, slog.Value)) {
	key := attr.Key
	if key == "" {
		return
	}
	if prefix != "" {
		key = prefix + "." + key
	}
	val := attr.Value.Resolve()
	if val.Kind() != slog.KindGroup {
		fn(key, val)
		return
	}
	for _, sub := range val.Group() {
		flattenAttr(key, sub, fn)
	}
}

// addContextFields backfills request metadata carried on the context
// unless the record already set the same key explicitly.
func addContextFields(ctx context.Context, fields map[string]any) {
	if ctx == nil {
		return
	}
	backfill := func(key string, value any, present bool) {
		if !present {
			return
		}
		if _, set := fields[key]; !set {
			fields[key] = value
		}
	}

	rid := RIDFrom(ctx)
	backfill("rid", rid, rid != "")
	updID := UpdateIDFrom(ctx)
	backfill("update_id", updID, updID != 0)
	userID := UserIDFrom(ctx)
	backfill("user_id", userID, userID != 0)
	chatID := ChatIDFrom(ctx)
	backfill("chat_id", chatID, chatID != 0)
	handler := HandlerFrom(ctx)
	backfill("handler", handler, handler != "")
}

// orderedKeys returns keys from the pinned order first, then the rest
// sorted alphabetically.
func orderedKeys(fields map[string]any, order []string) []string {
	keys := make([]string, 0, len(fields))
	pinned := make(map[string]struct{}, len(order))
	for _, k := range order {
		pinned[k] = struct{}{}
		if _, ok := fields[k]; ok {
			keys = append(keys, k)
		}
	}

	tail := len(keys)
	for k := range fields {
		if _, ok := pinned[k]; !ok {
			keys = append(keys, k)
		}
	}
	sort.Strings(keys[tail:])
	return keys
}

func formatJSONLine(fields map[string]any, order []string) ([]byte, error) {
	var buf bytes.Buffer
	buf.WriteByte('{')
	for i, k := range orderedKeys(fields, order) {
		if i > 0 {
			buf.WriteByte(',')
		}
		kb, err := json.Marshal(k)
		if err != nil {
			return nil, err
		}
		vb, err := json.Marshal(fields[k])
		if err != nil {
			// values that cannot be marshalled fall back to fmt
			vb, _ = json.Marshal(fmt.Sprint(fields[k]))
		}
		buf.Write(kb)
		buf.WriteByte(':')
		buf.Write(vb)
	}
	buf.WriteByte('}')
	return buf.Bytes(), nil
}

func formatKVLine(fields map[string]any, order []string) []byte {
	var buf bytes.Buffer
	for i, k := range orderedKeys(fields, order) {
		if i > 0 {
			buf.WriteByte(' ')
		}
		buf.WriteString(k)
		buf.WriteByte('=')
		buf.WriteString(formatValueKV(fields[k]))
	}
	return buf.Bytes()
}

func formatValueKV(val any) string {
	switch v := val.(type) {
	case string:
		if v == "" || strings.ContainsAny(v, " \t\"=") {
			return strconv.Quote(v)
		}
		return v
	case error:
		return strconv.Quote(v.Error())
	default:
		s := fmt.Sprint(v)
		if strings.ContainsAny(s, " \t\"=") {
			return strconv.Quote(s)
		}
		return s
	}
}
