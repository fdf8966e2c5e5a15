package middleware

import (
	"log/slog"
	"sync"
	"time"

	"github.com/stemly/regbot/core/logger"

	tele "gopkg.in/telebot.v4"
)

// RateLimitOptions configures behaviour of the rate limit middleware.
type RateLimitOptions struct {
	Interval  time.Duration
	Exclude   map[string]struct{}
	OnLimited tele.HandlerFunc
}

type userThrottle struct {
	mu       sync.Mutex
	lastSeen map[int64]time.Time
}

// allow records the user's activity and reports whether the update may
// pass given the minimum interval.
func (t *userThrottle) allow(userID int64, interval time.Duration) bool {
	now := time.Now()

	t.mu.Lock()
	defer t.mu.Unlock()
	if last, seen := t.lastSeen[userID]; seen && now.Sub(last) < interval {
		return false
	}
	t.lastSeen[userID] = now
	return true
}

func updateKind(upd tele.Update) string {
	switch {
	case upd.Callback != nil:
		return "callback"
	case upd.Message != nil:
		return "message"
	default:
		return "other"
	}
}

// RateLimitMiddleware returns a middleware that enforces a minimum interval
// between messages from the same user.
func RateLimitMiddleware(opts RateLimitOptions) tele.MiddlewareFunc {
	throttle := &userThrottle{lastSeen: make(map[int64]time.Time)}

	return func(next tele.HandlerFunc) tele.HandlerFunc {
		return func(c tele.Context) error {
			user := c.Sender()
			if user == nil || opts.Interval <= 0 {
				return next(c)
			}
			if _, skip := opts.Exclude[updateKind(c.Update())]; skip {
				return next(c)
			}

			if !throttle.allow(user.ID, opts.Interval) {
				logger.TG.Warn("rate limit",
					slog.String("event", "tg.rate_limit"),
					slog.Int64("user_id", user.ID),
				)
				if opts.OnLimited != nil {
					_ = opts.OnLimited(c)
				}
				return nil
			}
			return next(c)
		}
	}
}
