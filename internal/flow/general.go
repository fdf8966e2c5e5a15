package flow

import (
	"context"

	"github.com/stemly/regbot/core/logger"
	"github.com/stemly/regbot/internal/session"
	"github.com/stemly/regbot/internal/texts"
	"log/slog"
)

// Start resets the chat and opens the language screen. Wired to the
// /start command; it interrupts any flow in progress.
func (c *Controller) Start(ctx context.Context, ev Event) error {
	c.flushHistory(ctx, ev.ChatID)
	c.sessions.Clear(ev.ChatID)
	c.sessions.SetState(ev.ChatID, StateChoosingLanguage)

	return c.prompt(ctx, ev.ChatID, c.texts.Get(texts.DefaultLang, "choose-language"), c.kbLanguage())
}

// Menu forces the main menu, dropping whatever screen was active.
// Conversation drafts survive a /menu so /start stays the only hard
// reset.
func (c *Controller) Menu(ctx context.Context, ev Event) error {
	if old := c.sessions.Get(ev.ChatID).MenuMessageID; old != 0 {
		_ = c.tp.Delete(ctx, ev.ChatID, old)
	}
	return c.showMainMenu(ctx, ev.ChatID)
}

func (c *Controller) onLanguageChosen(ctx context.Context, ev Event) error {
	lang := ev.Payload
	if lang != "ru" && lang != "uz" {
		lang = texts.DefaultLang
	}
	c.sessions.Update(ev.ChatID, func(s *session.Session) {
		s.Lang = lang
		s.State = StateChoosingRole
	})

	err := c.tp.Edit(ctx, ev.ChatID, ev.MessageID, c.texts.Get(lang, "choose-role"), c.kbRole(lang))
	if err != nil {
		return err
	}
	c.answer(ctx, ev)
	return nil
}

func (c *Controller) onRoleChosen(ctx context.Context, ev Event) error {
	lang := c.langOf(ev.ChatID)
	role := ev.Payload

	logger.Flow.Info("role chosen",
		slog.String("event", "role"),
		slog.Int64("chat_id", ev.ChatID),
		slog.String("role", role),
		slog.String("lang", lang),
	)

	if role == "student" {
		// Student self-registration is served by the main menu for now.
		c.sessions.Update(ev.ChatID, func(s *session.Session) {
			s.Role = "student"
		})
		if err := c.tp.Edit(ctx, ev.ChatID, ev.MessageID, c.texts.Get(lang, "student-welcome"), nil); err != nil {
			return err
		}
		c.answer(ctx, ev)
		return c.showMainMenu(ctx, ev.ChatID)
	}

	c.sessions.Update(ev.ChatID, func(s *session.Session) {
		s.Role = "parent"
		s.State = StateParentConfirmingCreation
	})
	err := c.tp.Edit(ctx, ev.ChatID, ev.MessageID, c.texts.Get(lang, "create-profile-prompt"), c.kbCreateProfile(lang))
	if err != nil {
		return err
	}
	c.answer(ctx, ev)
	return nil
}
