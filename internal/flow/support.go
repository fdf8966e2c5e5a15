package flow

import (
	"context"
	"fmt"
	"strings"

	"github.com/stemly/regbot/core/logger"
	"github.com/stemly/regbot/internal/session"
	"log/slog"
)

// Support chat: the user enters a forwarding mode where every message
// goes to the configured support group until /stop.

// EnterSupport switches the chat into support mode. Wired to the
// /support command and the main-menu support button.
func (c *Controller) EnterSupport(ctx context.Context, ev Event) error {
	lang := c.langOf(ev.ChatID)

	if old := c.sessions.Get(ev.ChatID).MenuMessageID; old != 0 {
		_ = c.tp.Delete(ctx, ev.ChatID, old)
		c.sessions.Update(ev.ChatID, func(s *session.Session) { s.MenuMessageID = 0 })
	}

	c.sessions.SetState(ev.ChatID, StateSupportChat)
	_, err := c.tp.Send(ctx, ev.ChatID, c.texts.Get(lang, "support-welcome"), nil)
	return err
}

// StopSupport exits support mode. Wired to /stop.
func (c *Controller) StopSupport(ctx context.Context, ev Event) error {
	lang := c.langOf(ev.ChatID)
	c.sessions.SetState(ev.ChatID, session.StateIdle)
	_, err := c.tp.Send(ctx, ev.ChatID, c.texts.Get(lang, "support-goodbye"), nil)
	return err
}

// IsSupportButton reports whether the text is a localized support
// button label from the main menu.
func (c *Controller) IsSupportButton(text string) bool {
	text = strings.TrimSpace(text)
	for _, lang := range c.texts.Languages() {
		if text == c.texts.Get(lang, "button-support") {
			return true
		}
	}
	return false
}

func (c *Controller) onSupportMessage(ctx context.Context, ev Event) error {
	lang := c.langOf(ev.ChatID)

	if strings.TrimSpace(ev.Text) == "/stop" {
		return c.StopSupport(ctx, ev)
	}

	if c.supportGroupID == 0 {
		logger.Flow.Warn("support group not configured",
			slog.String("event", "support"),
			slog.Int64("chat_id", ev.ChatID),
		)
		_, err := c.tp.Send(ctx, ev.ChatID, c.texts.Get(lang, "support-sent"), nil)
		return err
	}

	header := fmt.Sprintf("Новое сообщение от пользователя:\nID: %d", ev.UserID)
	if _, err := c.tp.Send(ctx, c.supportGroupID, header, nil); err != nil {
		return err
	}
	if err := c.tp.Forward(ctx, c.supportGroupID, ev.ChatID, ev.MessageID); err != nil {
		return err
	}

	_, err := c.tp.Send(ctx, ev.ChatID, c.texts.Get(lang, "support-sent"), nil)
	return err
}
