package flow

import (
	"context"
	"strings"

	"github.com/stemly/regbot/core/logger"
	"github.com/stemly/regbot/internal/domain"
	ident "github.com/stemly/regbot/internal/identity"
	"github.com/stemly/regbot/internal/session"
	"github.com/stemly/regbot/internal/validate"
	"log/slog"
)

// Child registration: optional phone lookup against the identity API,
// then linear capture. Every lookup branch converges on first-name
// entry so display fields are always collected fresh.

func (c *Controller) onAddChild(ctx context.Context, ev Event) error {
	lang := c.langOf(ev.ChatID)
	c.sessions.Update(ev.ChatID, func(s *session.Session) {
		s.ResetChild()
		s.State = StateAskingChildRegistered
	})
	if err := c.tp.Edit(ctx, ev.ChatID, ev.MessageID, c.texts.Get(lang, "is-child-registered-prompt"), c.kbYesNo(lang)); err != nil {
		return err
	}
	c.answer(ctx, ev)
	return nil
}

func (c *Controller) onChildRegisteredYes(ctx context.Context, ev Event) error {
	lang := c.langOf(ev.ChatID)
	c.sessions.SetState(ev.ChatID, StateChildLookupPhone)
	if err := c.tp.Edit(ctx, ev.ChatID, ev.MessageID, c.texts.Get(lang, "enter-child-phone-prompt"), nil); err != nil {
		return err
	}
	c.answer(ctx, ev)
	return nil
}

func (c *Controller) onChildRegisteredNo(ctx context.Context, ev Event) error {
	lang := c.langOf(ev.ChatID)
	c.sessions.SetState(ev.ChatID, StateChildFirstName)
	if err := c.tp.Edit(ctx, ev.ChatID, ev.MessageID, c.texts.Get(lang, "child-enter-name-prompt"), nil); err != nil {
		return err
	}
	c.answer(ctx, ev)
	return nil
}

// onChildLookupPhone queries the identity API and renders one of three
// variants: named confirmation, anonymous confirmation, or not found.
// A lookup failure reads as not found; registration must stay possible
// with the API down.
func (c *Controller) onChildLookupPhone(ctx context.Context, ev Event) error {
	lang := c.langOf(ev.ChatID)
	phone := strings.TrimSpace(ev.Text)
	if ev.Contact != "" {
		phone = ev.Contact
	}

	c.sessions.Update(ev.ChatID, func(s *session.Session) {
		s.EnsureChild().LookupPhone = phone
	})
	c.track(ev.ChatID, ev.MessageID)

	searchingID, _ := c.tp.Send(ctx, ev.ChatID, c.texts.Get(lang, "searching-user"), nil)

	var res ident.LookupResult
	if c.identity != nil {
		res = c.identity.FindByPhone(ctx, phone)
	}
	if res.Outcome == ident.Failed {
		logger.Flow.Warn("child lookup failed",
			slog.String("event", "child_lookup"),
			slog.Int64("chat_id", ev.ChatID),
			slog.String("err", res.Err.Error()),
		)
	}

	found := res.Outcome == ident.Found
	var text string
	switch {
	case found && res.Record.FullName() != "":
		text = c.texts.Render(lang, "found-child-confirmation", map[string]string{
			"first_name": res.Record.Profile.FirstName,
			"last_name":  res.Record.Profile.LastName,
		})
	case found:
		text = c.texts.Render(lang, "child-found-no-name", map[string]string{"phone": phone})
	default:
		text = c.texts.Get(lang, "child-not-found-prompt")
	}

	if found {
		c.sessions.Update(ev.ChatID, func(s *session.Session) {
			s.EnsureChild().Found = res.Record
		})
	}

	if searchingID != 0 {
		_ = c.tp.Delete(ctx, ev.ChatID, searchingID)
	}

	c.sessions.SetState(ev.ChatID, StateConfirmingFoundChild)
	_, err := c.tp.Send(ctx, ev.ChatID, text, c.kbFoundChild(lang, found))
	return err
}

// onFoundChildConfirmed stores the external id so account creation is
// skipped later; the name is still re-captured rather than trusted.
func (c *Controller) onFoundChildConfirmed(ctx context.Context, ev Event) error {
	lang := c.langOf(ev.ChatID)

	s := c.sessions.Get(ev.ChatID)
	found := s.EnsureChild().Found
	if found == nil || found.User.ID == "" {
		if err := c.tp.Edit(ctx, ev.ChatID, ev.MessageID, c.texts.Get(lang, "api-error-prompt"), nil); err != nil {
			return err
		}
		c.answer(ctx, ev)
		return nil
	}

	c.sessions.Update(ev.ChatID, func(s *session.Session) {
		d := s.EnsureChild()
		d.ExodeUserID = found.User.ID
		if found.User.Phone != "" {
			d.LookupPhone = found.User.Phone
		}
		s.State = StateChildFirstName
	})

	if err := c.tp.Edit(ctx, ev.ChatID, ev.MessageID, c.texts.Get(lang, "child-enter-name-prompt"), nil); err != nil {
		return err
	}
	c.answer(ctx, ev)
	return nil
}

func (c *Controller) onFoundChildRejected(ctx context.Context, ev Event) error {
	lang := c.langOf(ev.ChatID)
	c.sessions.Update(ev.ChatID, func(s *session.Session) {
		d := s.EnsureChild()
		d.Found = nil
		d.ExodeUserID = ""
		s.State = StateChildFirstName
	})
	if err := c.tp.Edit(ctx, ev.ChatID, ev.MessageID, c.texts.Get(lang, "child-enter-name-prompt"), nil); err != nil {
		return err
	}
	c.answer(ctx, ev)
	return nil
}

func (c *Controller) onChildFirstName(ctx context.Context, ev Event) error {
	lang := c.langOf(ev.ChatID)
	c.sessions.Update(ev.ChatID, func(s *session.Session) {
		s.EnsureChild().FirstName = strings.TrimSpace(ev.Text)
		s.State = StateChildLastName
	})
	c.track(ev.ChatID, ev.MessageID)
	return c.prompt(ctx, ev.ChatID, c.texts.Get(lang, "child-enter-last-name-prompt"), nil)
}

func (c *Controller) onChildLastName(ctx context.Context, ev Event) error {
	lang := c.langOf(ev.ChatID)
	c.sessions.Update(ev.ChatID, func(s *session.Session) {
		s.EnsureChild().LastName = strings.TrimSpace(ev.Text)
		s.State = StateChildDOB
	})
	c.track(ev.ChatID, ev.MessageID)
	return c.prompt(ctx, ev.ChatID, c.texts.Get(lang, "child-enter-dob-prompt"), c.kbCalendar(lang))
}

func (c *Controller) onManualDOBRequested(ctx context.Context, ev Event) error {
	lang := c.langOf(ev.ChatID)
	c.sessions.SetState(ev.ChatID, StateChildDOBManual)
	if err := c.tp.Edit(ctx, ev.ChatID, ev.MessageID, c.texts.Get(lang, "child-enter-dob-manual-prompt"), nil); err != nil {
		return err
	}
	c.answer(ctx, ev)
	return nil
}

// onChildDOBManual re-prompts in place on a malformed date; state does
// not advance and nothing is recorded.
func (c *Controller) onChildDOBManual(ctx context.Context, ev Event) error {
	lang := c.langOf(ev.ChatID)
	c.track(ev.ChatID, ev.MessageID)

	if _, err := validate.ParseDOB(ev.Text); err != nil {
		return c.prompt(ctx, ev.ChatID, c.texts.Get(lang, "child-dob-error"), nil)
	}

	c.sessions.Update(ev.ChatID, func(s *session.Session) {
		s.EnsureChild().DOB = strings.TrimSpace(ev.Text)
		s.State = StateChildClass
	})
	return c.prompt(ctx, ev.ChatID, c.texts.Get(lang, "child-enter-class-prompt"), nil)
}

func (c *Controller) onChildClass(ctx context.Context, ev Event) error {
	lang := c.langOf(ev.ChatID)
	c.track(ev.ChatID, ev.MessageID)

	grade, err := validate.ParseGrade(ev.Text)
	if err != nil {
		return c.prompt(ctx, ev.ChatID, c.texts.Get(lang, "class-input-error"), nil)
	}

	c.sessions.Update(ev.ChatID, func(s *session.Session) {
		s.EnsureChild().Grade = grade
		s.State = StateChildCity
	})
	return c.prompt(ctx, ev.ChatID, c.texts.Get(lang, "child-enter-city-prompt"), c.kbCityList(lang))
}

func (c *Controller) onChildCityPicked(ctx context.Context, ev Event) error {
	lang := c.langOf(ev.ChatID)
	c.sessions.Update(ev.ChatID, func(s *session.Session) {
		s.EnsureChild().City = ev.Payload
		s.State = StateChildInterests
	})
	if err := c.tp.Edit(ctx, ev.ChatID, ev.MessageID, c.texts.Get(lang, "child-choose-interests-prompt"), c.kbInterests(lang, nil)); err != nil {
		return err
	}
	c.answer(ctx, ev)
	return nil
}

func (c *Controller) onManualCityRequested(ctx context.Context, ev Event) error {
	lang := c.langOf(ev.ChatID)
	c.sessions.SetState(ev.ChatID, StateChildCityManual)
	if err := c.tp.Edit(ctx, ev.ChatID, ev.MessageID, c.texts.Get(lang, "manual-city-prompt"), nil); err != nil {
		return err
	}
	c.answer(ctx, ev)
	return nil
}

func (c *Controller) onChildCityManual(ctx context.Context, ev Event) error {
	lang := c.langOf(ev.ChatID)
	c.sessions.Update(ev.ChatID, func(s *session.Session) {
		s.EnsureChild().City = strings.TrimSpace(ev.Text)
		s.State = StateChildInterests
	})
	c.track(ev.ChatID, ev.MessageID)
	return c.prompt(ctx, ev.ChatID, c.texts.Get(lang, "child-choose-interests-prompt"), c.kbInterests(lang, nil))
}

// onInterestToggled flips one tag and redraws the keyboard in place.
func (c *Controller) onInterestToggled(ctx context.Context, ev Event) error {
	lang := c.langOf(ev.ChatID)
	var chosen []string
	c.sessions.Update(ev.ChatID, func(s *session.Session) {
		d := s.EnsureChild()
		d.Interests = validate.Toggle(d.Interests, ev.Payload)
		chosen = d.Interests
	})
	if err := c.tp.EditMarkup(ctx, ev.ChatID, ev.MessageID, c.kbInterests(lang, chosen)); err != nil {
		return err
	}
	c.answer(ctx, ev)
	return nil
}

func (c *Controller) onInterestsDone(ctx context.Context, ev Event) error {
	_ = c.tp.Delete(ctx, ev.ChatID, ev.MessageID)
	c.answer(ctx, ev)
	return c.showChildConfirmation(ctx, ev.ChatID)
}

func (c *Controller) onBackToInterests(ctx context.Context, ev Event) error {
	lang := c.langOf(ev.ChatID)
	chosen := c.sessions.Get(ev.ChatID).EnsureChild().Interests
	c.sessions.SetState(ev.ChatID, StateChildInterests)
	if err := c.tp.Edit(ctx, ev.ChatID, ev.MessageID, c.texts.Get(lang, "child-choose-interests-prompt"), c.kbInterests(lang, chosen)); err != nil {
		return err
	}
	c.answer(ctx, ev)
	return nil
}

// childProfile assembles the draft into a persistence record.
func childProfile(d *session.ChildDraft) domain.ChildProfile {
	return domain.ChildProfile{
		FirstName:   d.FirstName,
		LastName:    d.LastName,
		DOB:         d.DOB,
		Grade:       d.Grade,
		City:        d.City,
		Interests:   d.Interests,
		ExodeUserID: d.ExodeUserID,
		Phone:       d.LookupPhone,
	}
}

// onConfirmChild persists the child and branches: a linked child skips
// account creation and loops straight back to the add-child decision;
// an unlinked one first passes the explicit consent gate.
func (c *Controller) onConfirmChild(ctx context.Context, ev Event) error {
	c.flushHistory(ctx, ev.ChatID)
	lang := c.langOf(ev.ChatID)

	s := c.sessions.Get(ev.ChatID)
	profile := childProfile(s.EnsureChild())

	if c.sink != nil {
		if err := c.sink.AddChild(ctx, ev.UserID, profile); err != nil {
			logger.Flow.Warn("sink write failed",
				slog.String("event", "confirm_child"),
				slog.Int64("chat_id", ev.ChatID),
				slog.String("err", err.Error()),
			)
		}
	}

	c.answer(ctx, ev)

	if profile.Linked() {
		c.sessions.Update(ev.ChatID, func(s *session.Session) { s.ResetChild() })
		return c.showAddChildScreen(ctx, ev.ChatID, "child-profile-linked-success", "add-another-child-prompt")
	}

	c.sessions.SetState(ev.ChatID, StateChildConsent)
	id, err := c.tp.Send(ctx, ev.ChatID, c.texts.Get(lang, "platform-consent-prompt"), c.kbConsent(lang))
	if err != nil {
		return err
	}
	c.replaceHistory(ev.ChatID, id)
	return nil
}

// onConsent finalizes an unlinked child: consent-yes attempts account
// creation and reports success or a degraded outcome, consent-no
// records a local-only registration. Both branches reset the draft and
// loop back for the next child.
func (c *Controller) onConsent(ctx context.Context, ev Event) error {
	c.flushHistory(ctx, ev.ChatID)

	s := c.sessions.Get(ev.ChatID)
	child := childProfile(s.EnsureChild())

	var parent domain.ParentProfile
	if s.Parent != nil {
		parent = domain.ParentProfile{
			Phone: s.Parent.Phone,
			Email: s.Parent.Email,
		}
	}

	resultKey := "child-profile-created-locally"
	if ev.Key == KeyConsentYes {
		resultKey = "api-error-prompt"
		if c.identity != nil {
			payload := ident.ChildPayload(child, parent, c.identity.PlaceholderDomain())
			if rec, err := c.identity.Upsert(ctx, payload); err == nil && rec != nil {
				resultKey = "child-profile-created-success"
			}
		}
		logger.Flow.Info("child consent processed",
			slog.String("event", "consent"),
			slog.Int64("chat_id", ev.ChatID),
			slog.String("outcome", resultKey),
		)
	}

	c.sessions.Update(ev.ChatID, func(s *session.Session) { s.ResetChild() })
	c.answer(ctx, ev)
	return c.showAddChildScreen(ctx, ev.ChatID, resultKey, "add-another-child-prompt")
}
