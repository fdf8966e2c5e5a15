package flow

import (
	"context"

	"github.com/stemly/regbot/core/logger"
	"github.com/stemly/regbot/internal/session"
	"log/slog"
)

// flushHistory deletes every tracked message for the chat, most recent
// first. Deletes are best effort: a message past the transport's age
// threshold cannot be removed and the screen must still advance, so
// every failure is swallowed and the list is cleared unconditionally.
func (c *Controller) flushHistory(ctx context.Context, chatID int64) {
	var ids []int
	c.sessions.Update(chatID, func(s *session.Session) {
		ids = s.Pending
		s.Pending = nil
	})

	failed := 0
	for i := len(ids) - 1; i >= 0; i-- {
		if err := c.tp.Delete(ctx, chatID, ids[i]); err != nil {
			failed++
		}
	}
	if len(ids) > 0 {
		logger.Flow.Debug("history flushed",
			slog.String("event", "flush_history"),
			slog.Int64("chat_id", chatID),
			slog.Int("count", len(ids)),
			slog.Int("failed", failed),
		)
	}
}

// track appends message ids to the chat's pending deletion list.
func (c *Controller) track(chatID int64, ids ...int) {
	c.sessions.Update(chatID, func(s *session.Session) {
		s.Track(ids...)
	})
}

// replaceHistory drops the tracked list without deleting and seeds it
// with the given ids. Used when a new screen owns the transcript.
func (c *Controller) replaceHistory(chatID int64, ids ...int) {
	c.sessions.Update(chatID, func(s *session.Session) {
		s.Pending = nil
		s.Track(ids...)
	})
}
