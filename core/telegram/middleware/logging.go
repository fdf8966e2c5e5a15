package middleware

import (
	"log/slog"
	"strings"
	"sync"
	"time"

	"github.com/stemly/regbot/core/logger"
	tghelpers "github.com/stemly/regbot/core/telegram/helpers"

	tele "gopkg.in/telebot.v4"
)

// updateDedup remembers recently seen update IDs so an update logged on
// one router branch is not logged again on another.
type updateDedup struct {
	mu      sync.Mutex
	seen    map[int]time.Time
	keepFor time.Duration
}

var receiptDedup = &updateDedup{
	seen:    make(map[int]time.Time),
	keepFor: 10 * time.Second,
}

func (d *updateDedup) firstSighting(updateID int) bool {
	now := time.Now()

	d.mu.Lock()
	defer d.mu.Unlock()
	for id, ts := range d.seen {
		if now.Sub(ts) > d.keepFor {
			delete(d.seen, id)
		}
	}
	if _, dup := d.seen[updateID]; dup {
		return false
	}
	d.seen[updateID] = now
	return true
}

// LoggerMiddleware assigns a request ID to the update, stores an
// enriched context for downstream handlers and logs one receipt line
// per update.
func LoggerMiddleware(next tele.HandlerFunc) tele.HandlerFunc {
	return func(c tele.Context) error {
		upd := c.Update()

		var chatID, userID int64
		if chat := c.Chat(); chat != nil {
			chatID = chat.ID
		}
		if user := c.Sender(); user != nil {
			userID = user.ID
		}

		rid := logger.BuildRID(upd.ID, chatID, userID)
		c.Set("rid", rid)
		c.Set("update_start", time.Now())

		ctx := logger.WithRID(logger.Background(), rid)
		ctx = logger.WithUpdateMeta(ctx, upd.ID, userID, chatID)
		ctx = logger.WithLogger(ctx, logger.Component("tg"))
		tghelpers.StoreContext(c, ctx)

		if receiptDedup.firstSighting(upd.ID) {
			logger.LogEvent(ctx, logger.Component("tg"), slog.LevelDebug, "update.received",
				receiptAttrs(c, rid, chatID, userID)...)
		}

		return next(c)
	}
}

func receiptAttrs(c tele.Context, rid string, chatID, userID int64) []slog.Attr {
	attrs := []slog.Attr{
		slog.String("status", "ok"),
		slog.String("rid", rid),
		slog.Int("update_id", c.Update().ID),
	}
	if chatID != 0 {
		attrs = append(attrs, slog.Int64("chat_id", chatID))
	}
	if userID != 0 {
		attrs = append(attrs, slog.Int64("user_id", userID))
		if user := c.Sender(); user != nil {
			if user.Username != "" {
				attrs = append(attrs, slog.String("username", logger.SanitizeLimit(user.Username, 64)))
			}
			if user.LanguageCode != "" {
				attrs = append(attrs, slog.String("lang", user.LanguageCode))
			}
		}
	}

	switch upd := c.Update(); {
	case upd.Callback != nil:
		key, payload := splitCallback(upd.Callback)
		if key != "" {
			attrs = append(attrs, slog.String("cb_key", logger.SanitizeLimit(key, 128)))
		}
		if payload != "" {
			attrs = append(attrs, slog.String("payload", logger.SanitizeLimit(payload, 256)))
		}
	case upd.Message != nil:
		if t := c.Text(); t != "" {
			attrs = append(attrs, slog.String("payload", logger.SanitizeLimit(t, 256)))
		}
	}
	return attrs
}

func splitCallback(cb *tele.Callback) (key, payload string) {
	if cb == nil {
		return "", ""
	}
	if cb.Unique != "" {
		return cb.Unique, cb.Data
	}
	key, payload, _ = strings.Cut(strings.TrimPrefix(cb.Data, "\\f"), "|")
	return strings.TrimSpace(key), payload
}
