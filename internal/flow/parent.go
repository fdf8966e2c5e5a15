package flow

import (
	"context"
	"strings"

	"github.com/stemly/regbot/core/logger"
	"github.com/stemly/regbot/internal/domain"
	"github.com/stemly/regbot/internal/identity"
	"github.com/stemly/regbot/internal/session"
	"github.com/stemly/regbot/internal/validate"
	"log/slog"

	tele "gopkg.in/telebot.v4"
)

// Parent registration: linear capture with edit-and-jump-back support.
// Each field step stores the answer, then either advances or, when the
// editing flag is set, returns straight to the confirmation screen.

func (c *Controller) onCreateProfile(ctx context.Context, ev Event) error {
	lang := c.langOf(ev.ChatID)
	c.sessions.Update(ev.ChatID, func(s *session.Session) {
		s.Pending = []int{ev.MessageID}
		s.State = StateParentFirstName
	})
	if err := c.tp.Edit(ctx, ev.ChatID, ev.MessageID, c.texts.Get(lang, "prompt-enter-first-name"), nil); err != nil {
		return err
	}
	c.answer(ctx, ev)
	return nil
}

func (c *Controller) onPostponeCreation(ctx context.Context, ev Event) error {
	_ = c.tp.Delete(ctx, ev.ChatID, ev.MessageID)
	c.answer(ctx, ev)
	return c.showMainMenu(ctx, ev.ChatID)
}

// finishFieldStep routes a completed field write: back to confirmation
// while editing, otherwise on to the next linear step.
func (c *Controller) finishFieldStep(ctx context.Context, ev Event, next func(context.Context, Event) error) error {
	editing := false
	c.sessions.Update(ev.ChatID, func(s *session.Session) {
		editing = s.Editing
		s.Editing = false
	})
	if editing {
		return c.showParentConfirmation(ctx, ev.ChatID)
	}
	return next(ctx, ev)
}

func (c *Controller) onParentFirstName(ctx context.Context, ev Event) error {
	name := strings.TrimSpace(ev.Text)
	c.sessions.Update(ev.ChatID, func(s *session.Session) {
		s.EnsureParent().FirstName = name
	})
	return c.finishFieldStep(ctx, ev, func(ctx context.Context, ev Event) error {
		lang := c.langOf(ev.ChatID)
		c.sessions.SetState(ev.ChatID, StateParentLastName)
		c.track(ev.ChatID, ev.MessageID)
		return c.prompt(ctx, ev.ChatID, c.texts.Get(lang, "prompt-enter-last-name"), nil)
	})
}

func (c *Controller) onParentLastName(ctx context.Context, ev Event) error {
	name := strings.TrimSpace(ev.Text)
	c.sessions.Update(ev.ChatID, func(s *session.Session) {
		s.EnsureParent().LastName = name
	})
	return c.finishFieldStep(ctx, ev, func(ctx context.Context, ev Event) error {
		lang := c.langOf(ev.ChatID)
		c.sessions.SetState(ev.ChatID, StateParentPhone)
		c.track(ev.ChatID, ev.MessageID)
		return c.prompt(ctx, ev.ChatID, c.texts.Get(lang, "parent-enter-phone-prompt"), c.kbSharePhone(lang))
	})
}

func (c *Controller) onParentPhone(ctx context.Context, ev Event) error {
	// Raw text or shared contact; stored verbatim, normalized only at
	// identity submission.
	phone := strings.TrimSpace(ev.Text)
	if ev.Contact != "" {
		phone = ev.Contact
	}
	c.sessions.Update(ev.ChatID, func(s *session.Session) {
		s.EnsureParent().Phone = phone
	})
	return c.finishFieldStep(ctx, ev, func(ctx context.Context, ev Event) error {
		lang := c.langOf(ev.ChatID)
		c.sessions.SetState(ev.ChatID, StateParentCity)
		c.track(ev.ChatID, ev.MessageID)
		return c.prompt(ctx, ev.ChatID, c.texts.Get(lang, "parent-enter-city-prompt"), nil)
	})
}

func (c *Controller) onParentCity(ctx context.Context, ev Event) error {
	city := strings.TrimSpace(ev.Text)
	c.sessions.Update(ev.ChatID, func(s *session.Session) {
		s.EnsureParent().City = city
		s.Editing = false
	})
	c.track(ev.ChatID, ev.MessageID)
	// City is the last capture step: both paths land on confirmation.
	return c.showParentConfirmation(ctx, ev.ChatID)
}

// onParentEmail captures the optional email field. It is reachable
// only through the edit menu, so both outcomes return to confirmation.
func (c *Controller) onParentEmail(ctx context.Context, ev Event) error {
	email := strings.TrimSpace(ev.Text)
	c.track(ev.ChatID, ev.MessageID)

	if err := validate.CheckEmail(email); err != nil {
		lang := c.langOf(ev.ChatID)
		return c.prompt(ctx, ev.ChatID, c.texts.Get(lang, "email-input-error"), c.kbSkipEmail(lang))
	}

	c.sessions.Update(ev.ChatID, func(s *session.Session) {
		s.EnsureParent().Email = email
		s.Editing = false
	})
	return c.showParentConfirmation(ctx, ev.ChatID)
}

// onSkipEmail records the skip sentinel; the identity payload drops
// the field entirely when it is set.
func (c *Controller) onSkipEmail(ctx context.Context, ev Event) error {
	c.sessions.Update(ev.ChatID, func(s *session.Session) {
		s.EnsureParent().Email = domain.EmailSkipped
		s.Editing = false
	})
	c.answer(ctx, ev)
	return c.showParentConfirmation(ctx, ev.ChatID)
}

// onConfirmParentProfile persists the assembled profile: sink write,
// then identity upsert. Neither failure blocks the flow; the upsert
// outcome only tones the success message.
func (c *Controller) onConfirmParentProfile(ctx context.Context, ev Event) error {
	c.flushHistory(ctx, ev.ChatID)

	var profile domain.ParentProfile
	c.sessions.Update(ev.ChatID, func(s *session.Session) {
		d := s.EnsureParent()
		profile = domain.ParentProfile{
			TelegramID: ev.UserID,
			FirstName:  d.FirstName,
			LastName:   d.LastName,
			Phone:      d.Phone,
			City:       d.City,
			Email:      d.Email,
		}
	})

	if c.sink != nil {
		if err := c.sink.AddParent(ctx, profile); err != nil {
			logger.Flow.Warn("sink write failed",
				slog.String("event", "confirm_parent"),
				slog.Int64("chat_id", ev.ChatID),
				slog.String("err", err.Error()),
			)
		}
	}

	if c.identity != nil {
		if _, err := c.identity.Upsert(ctx, identity.ParentPayload(profile)); err != nil {
			logger.Flow.Warn("identity upsert failed for parent",
				slog.String("event", "confirm_parent"),
				slog.Int64("chat_id", ev.ChatID),
				slog.String("err", err.Error()),
			)
		}
	}

	c.answer(ctx, ev)
	return c.showAddChildScreen(ctx, ev.ChatID, "profile-confirmed", "add-child-prompt")
}

func (c *Controller) onEditParentProfile(ctx context.Context, ev Event) error {
	lang := c.langOf(ev.ChatID)
	c.sessions.SetState(ev.ChatID, StateParentEditing)
	if err := c.tp.Edit(ctx, ev.ChatID, ev.MessageID, c.texts.Get(lang, "choose-field-to-edit"), c.kbEditProfile(lang)); err != nil {
		return err
	}
	c.answer(ctx, ev)
	return nil
}

// onEditFieldChosen re-enters one field-entry state with the editing
// flag raised. An unknown selector is surfaced as an alert and aborts
// without touching state.
func (c *Controller) onEditFieldChosen(ctx context.Context, ev Event) error {
	lang := c.langOf(ev.ChatID)

	type target struct {
		state     session.State
		promptKey string
		markup    *tele.ReplyMarkup
	}
	targets := map[string]target{
		FieldFirstName: {StateParentFirstName, "prompt-enter-first-name", nil},
		FieldLastName:  {StateParentLastName, "prompt-enter-last-name", nil},
		FieldPhone:     {StateParentPhone, "parent-enter-phone-prompt", c.kbSharePhone(lang)},
		FieldCity:      {StateParentCity, "parent-enter-city-prompt", nil},
		FieldEmail:     {StateParentEmail, "parent-enter-email-prompt", c.kbSkipEmail(lang)},
	}

	tgt, ok := targets[ev.Payload]
	if !ok {
		logger.Flow.Warn("unknown edit field",
			slog.String("event", "edit_field"),
			slog.Int64("chat_id", ev.ChatID),
			slog.String("field", ev.Payload),
		)
		c.alert(ctx, ev, c.texts.Get(lang, "unknown-edit-field"))
		return nil
	}

	c.sessions.Update(ev.ChatID, func(s *session.Session) {
		s.Editing = true
		s.State = tgt.state
	})

	_ = c.tp.Delete(ctx, ev.ChatID, ev.MessageID)
	c.answer(ctx, ev)

	id, err := c.tp.Send(ctx, ev.ChatID, c.texts.Get(lang, tgt.promptKey), tgt.markup)
	if err != nil {
		return err
	}
	c.replaceHistory(ev.ChatID, id)
	return nil
}

func (c *Controller) onBackToConfirmation(ctx context.Context, ev Event) error {
	c.answer(ctx, ev)
	return c.showParentConfirmation(ctx, ev.ChatID)
}

// Statically wired back buttons: city entry returns to phone entry,
// confirmation returns to city entry.

func (c *Controller) onBackToPhoneInput(ctx context.Context, ev Event) error {
	c.flushHistory(ctx, ev.ChatID)
	lang := c.langOf(ev.ChatID)
	c.sessions.SetState(ev.ChatID, StateParentPhone)
	c.answer(ctx, ev)

	id, err := c.tp.Send(ctx, ev.ChatID, c.texts.Get(lang, "parent-enter-phone-prompt"), c.kbSharePhone(lang))
	if err != nil {
		return err
	}
	c.replaceHistory(ev.ChatID, id)
	return nil
}

func (c *Controller) onBackToCityInput(ctx context.Context, ev Event) error {
	lang := c.langOf(ev.ChatID)
	c.sessions.SetState(ev.ChatID, StateParentCity)
	c.answer(ctx, ev)

	id, err := c.tp.Send(ctx, ev.ChatID, c.texts.Get(lang, "parent-enter-city-prompt"), nil)
	if err != nil {
		return err
	}
	c.replaceHistory(ev.ChatID, id)
	return nil
}

func (c *Controller) onFinishRegistration(ctx context.Context, ev Event) error {
	c.answer(ctx, ev)
	return c.showMainMenu(ctx, ev.ChatID)
}
