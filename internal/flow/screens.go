package flow

import (
	"context"
	"strconv"
	"strings"
	"time"

	"github.com/stemly/regbot/core/telegram/keyboard"
	"github.com/stemly/regbot/internal/session"
	"github.com/stemly/regbot/internal/validate"

	tele "gopkg.in/telebot.v4"
)

// Screen rendering: prompt text comes from the texts table, choice
// sets are built with the shared keyboard helpers. Each kb* function
// covers one choice set.

func (c *Controller) kbLanguage() *tele.ReplyMarkup {
	return keyboard.InlineButtons([]keyboard.InlineBtn{
		{Text: c.texts.Get("ru", "button-russian"), Unique: KeyLanguage, Data: "ru"},
		{Text: c.texts.Get("ru", "button-uzbek"), Unique: KeyLanguage, Data: "uz"},
	})
}

func (c *Controller) kbRole(lang string) *tele.ReplyMarkup {
	return keyboard.InlineButtons([]keyboard.InlineBtn{
		{Text: c.texts.Get(lang, "button-parent"), Unique: KeyRole, Data: "parent"},
		{Text: c.texts.Get(lang, "button-student"), Unique: KeyRole, Data: "student"},
	})
}

func (c *Controller) kbCreateProfile(lang string) *tele.ReplyMarkup {
	return keyboard.InlineButtons([]keyboard.InlineBtn{
		{Text: c.texts.Get(lang, "button-create-profile"), Unique: KeyCreateProfile},
		{Text: c.texts.Get(lang, "button-postpone"), Unique: KeyPostpone},
	})
}

func (c *Controller) kbSharePhone(lang string) *tele.ReplyMarkup {
	return keyboard.ContactButton(c.texts.Get(lang, "button-share-phone"))
}

func (c *Controller) kbProfileConfirm(lang string) *tele.ReplyMarkup {
	return keyboard.InlineButtons([]keyboard.InlineBtn{
		{Text: c.texts.Get(lang, "button-confirm"), Unique: KeyConfirmProfile},
		{Text: c.texts.Get(lang, "button-edit"), Unique: KeyEditProfile},
		{Text: c.texts.Get(lang, "button-back"), Unique: KeyBackToCity},
	})
}

func (c *Controller) kbEditProfile(lang string) *tele.ReplyMarkup {
	return keyboard.InlineButtons([]keyboard.InlineBtn{
		{Text: c.texts.Get(lang, "edit-first-name"), Unique: KeyEditField, Data: FieldFirstName},
		{Text: c.texts.Get(lang, "edit-last-name"), Unique: KeyEditField, Data: FieldLastName},
		{Text: c.texts.Get(lang, "edit-phone"), Unique: KeyEditField, Data: FieldPhone},
		{Text: c.texts.Get(lang, "edit-city"), Unique: KeyEditField, Data: FieldCity},
		{Text: c.texts.Get(lang, "edit-email"), Unique: KeyEditField, Data: FieldEmail},
		{Text: c.texts.Get(lang, "button-back"), Unique: KeyBackToConfirm},
	})
}

func (c *Controller) kbSkipEmail(lang string) *tele.ReplyMarkup {
	return keyboard.InlineButtons([]keyboard.InlineBtn{
		{Text: c.texts.Get(lang, "button-skip"), Unique: KeySkipEmail},
	})
}

func (c *Controller) kbAddChild(lang string) *tele.ReplyMarkup {
	return keyboard.InlineButtons([]keyboard.InlineBtn{
		{Text: c.texts.Get(lang, "button-add-child"), Unique: KeyAddChild},
		{Text: c.texts.Get(lang, "button-finish"), Unique: KeyFinish},
	})
}

func (c *Controller) kbYesNo(lang string) *tele.ReplyMarkup {
	return keyboard.InlineButtonsRows([]keyboard.InlineBtn{
		{Text: c.texts.Get(lang, "button-yes"), Unique: KeyYes},
		{Text: c.texts.Get(lang, "button-no"), Unique: KeyNo},
	})
}

// kbFoundChild renders the lookup outcome choices: a found record gets
// confirm/deny, a miss only the add-new affordance.
func (c *Controller) kbFoundChild(lang string, found bool) *tele.ReplyMarkup {
	if found {
		return keyboard.InlineButtons([]keyboard.InlineBtn{
			{Text: c.texts.Get(lang, "button-this-is-my-child"), Unique: KeyFoundChildYes},
			{Text: c.texts.Get(lang, "button-add-another"), Unique: KeyFoundChildNo},
		})
	}
	return keyboard.InlineButtons([]keyboard.InlineBtn{
		{Text: c.texts.Get(lang, "button-add-new-child"), Unique: KeyFoundChildNo},
	})
}

func (c *Controller) kbCityList(lang string) *tele.ReplyMarkup {
	cities := c.texts.Cities(lang)
	buttons := make([]keyboard.InlineBtn, 0, len(cities))
	for _, city := range cities {
		buttons = append(buttons, keyboard.InlineBtn{Text: city, Unique: KeyCity, Data: city})
	}
	markup := keyboard.InlineButtonsNPerRow(buttons, 2)
	return keyboard.AppendRow(markup, keyboard.InlineBtn{
		Text:   c.texts.Get(lang, "button-manual-city"),
		Unique: KeyManualCity,
	})
}

func (c *Controller) kbInterests(lang string, chosen []string) *tele.ReplyMarkup {
	tags := c.texts.Interests()
	buttons := make([]keyboard.InlineBtn, 0, len(tags))
	for _, tag := range tags {
		marker := "⚪️"
		if validate.Has(chosen, tag) {
			marker = "✅"
		}
		buttons = append(buttons, keyboard.InlineBtn{
			Text:   marker + " " + c.texts.InterestLabel(lang, tag),
			Unique: KeyInterest,
			Data:   tag,
		})
	}
	markup := keyboard.InlineButtonsNPerRow(buttons, 2)
	return keyboard.AppendRow(markup, keyboard.InlineBtn{
		Text:   c.texts.Get(lang, "button-interests-done"),
		Unique: KeyInterestsDone,
	})
}

func (c *Controller) kbChildConfirm(lang string) *tele.ReplyMarkup {
	return keyboard.InlineButtons([]keyboard.InlineBtn{
		{Text: c.texts.Get(lang, "button-confirm"), Unique: KeyConfirmChild},
		{Text: c.texts.Get(lang, "button-back"), Unique: KeyBackToInterests},
	})
}

func (c *Controller) kbConsent(lang string) *tele.ReplyMarkup {
	return keyboard.InlineButtons([]keyboard.InlineBtn{
		{Text: c.texts.Get(lang, "button-consent-yes"), Unique: KeyConsentYes},
		{Text: c.texts.Get(lang, "button-consent-no"), Unique: KeyConsentNo},
	})
}

func (c *Controller) kbMainMenu(lang string) *tele.ReplyMarkup {
	return keyboard.ReplyButtons([]string{c.texts.Get(lang, "button-support")})
}

// prompt sends a screen message and tracks it for deletion.
func (c *Controller) prompt(ctx context.Context, chatID int64, text string, markup *tele.ReplyMarkup) error {
	id, err := c.tp.Send(ctx, chatID, text, markup)
	if err != nil {
		return err
	}
	c.track(chatID, id)
	return nil
}

// parentSummary renders the parent confirmation text.
func (c *Controller) parentSummary(lang string, d *session.ParentDraft) string {
	return c.texts.Render(lang, "parent-profile-confirmation", map[string]string{
		"first_name": d.FirstName,
		"last_name":  d.LastName,
		"phone":      d.Phone,
		"city":       d.City,
	})
}

// childSummary renders the child confirmation text, including the
// day-precision age computed from the captured date of birth.
func (c *Controller) childSummary(lang string, d *session.ChildDraft) string {
	age := ""
	if dob, err := validate.ParseDOB(d.DOB); err == nil {
		age = strconv.Itoa(validate.Age(dob, time.Now()))
	}

	interests := c.texts.Get(lang, "not-specified")
	if len(d.Interests) > 0 {
		labels := make([]string, 0, len(d.Interests))
		for _, tag := range d.Interests {
			labels = append(labels, c.texts.InterestLabel(lang, tag))
		}
		interests = strings.Join(labels, ", ")
	}

	return c.texts.Render(lang, "child-profile-confirmation", map[string]string{
		"first_name":  d.FirstName,
		"last_name":   d.LastName,
		"dob":         d.DOB,
		"age":         age,
		"class_level": strconv.Itoa(d.Grade),
		"city":        d.City,
		"interests":   interests,
	})
}

// showParentConfirmation flushes the screen history and renders the
// parent confirmation screen; the new message becomes the only tracked
// one.
func (c *Controller) showParentConfirmation(ctx context.Context, chatID int64) error {
	c.flushHistory(ctx, chatID)
	s := c.sessions.Get(chatID)
	lang := c.langOf(chatID)

	id, err := c.tp.Send(ctx, chatID, c.parentSummary(lang, s.EnsureParent()), c.kbProfileConfirm(lang))
	if err != nil {
		return err
	}
	c.replaceHistory(chatID, id)
	c.sessions.SetState(chatID, StateParentConfirming)
	return nil
}

// showChildConfirmation mirrors showParentConfirmation for the child
// draft.
func (c *Controller) showChildConfirmation(ctx context.Context, chatID int64) error {
	c.flushHistory(ctx, chatID)
	s := c.sessions.Get(chatID)
	lang := c.langOf(chatID)

	id, err := c.tp.Send(ctx, chatID, c.childSummary(lang, s.EnsureChild()), c.kbChildConfirm(lang))
	if err != nil {
		return err
	}
	c.replaceHistory(chatID, id)
	c.sessions.SetState(chatID, StateChildConfirming)
	return nil
}

// showAddChildScreen renders the add-child decision prompt, prefixed
// with an outcome line from the step that led here.
func (c *Controller) showAddChildScreen(ctx context.Context, chatID int64, prefixKey, promptKey string) error {
	lang := c.langOf(chatID)
	text := c.texts.Get(lang, promptKey)
	if prefixKey != "" {
		text = c.texts.Get(lang, prefixKey) + "\n\n" + text
	}

	id, err := c.tp.Send(ctx, chatID, text, c.kbAddChild(lang))
	if err != nil {
		return err
	}
	c.replaceHistory(chatID, id)
	c.sessions.SetState(chatID, StateAddingChildDecision)
	return nil
}

// showMainMenu clears conversation state and renders the terminal main
// menu screen.
func (c *Controller) showMainMenu(ctx context.Context, chatID int64) error {
	c.flushHistory(ctx, chatID)
	lang := c.langOf(chatID)

	id, err := c.tp.Send(ctx, chatID, c.texts.Get(lang, "main-menu-welcome"), c.kbMainMenu(lang))
	if err != nil {
		return err
	}
	c.sessions.Update(chatID, func(s *session.Session) {
		s.State = session.StateIdle
		s.MenuMessageID = id
	})
	return nil
}
