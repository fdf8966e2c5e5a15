package flow

import (
	"context"
	"fmt"
	"strconv"
	"strings"
	"time"

	"github.com/stemly/regbot/core/telegram/keyboard"
	"github.com/stemly/regbot/internal/session"

	tele "gopkg.in/telebot.v4"
)

// Inline birth-date picker: year, then month, then day, all on one
// message edited in place. Payload stages are "y|<year>",
// "m|<year>|<month>" and "d|<year>|<month>|<day>"; a manual-input
// button falls back to typed DD.MM.YYYY entry.

const calendarYearSpan = 18

func calendarYears(now time.Time) []int {
	years := make([]int, 0, calendarYearSpan)
	for y := now.Year(); y > now.Year()-calendarYearSpan; y-- {
		years = append(years, y)
	}
	return years
}

// kbCalendar is the entry screen: year grid plus manual fallback.
func (c *Controller) kbCalendar(lang string) *tele.ReplyMarkup {
	years := calendarYears(time.Now())
	buttons := make([]keyboard.InlineBtn, 0, len(years))
	for _, y := range years {
		buttons = append(buttons, keyboard.InlineBtn{
			Text:   strconv.Itoa(y),
			Unique: KeyCalendar,
			Data:   fmt.Sprintf("y|%d", y),
		})
	}
	markup := keyboard.InlineButtonsNPerRow(buttons, 3)
	return keyboard.AppendRow(markup, keyboard.InlineBtn{
		Text:   c.texts.Get(lang, "button-manual-dob"),
		Unique: KeyManualDOB,
	})
}

func (c *Controller) kbCalendarMonths(year int) *tele.ReplyMarkup {
	buttons := make([]keyboard.InlineBtn, 0, 12)
	for m := 1; m <= 12; m++ {
		buttons = append(buttons, keyboard.InlineBtn{
			Text:   fmt.Sprintf("%02d", m),
			Unique: KeyCalendar,
			Data:   fmt.Sprintf("m|%d|%d", year, m),
		})
	}
	return keyboard.InlineButtonsNPerRow(buttons, 4)
}

func (c *Controller) kbCalendarDays(year, month int) *tele.ReplyMarkup {
	last := time.Date(year, time.Month(month)+1, 0, 0, 0, 0, 0, time.UTC).Day()
	buttons := make([]keyboard.InlineBtn, 0, last)
	for d := 1; d <= last; d++ {
		buttons = append(buttons, keyboard.InlineBtn{
			Text:   strconv.Itoa(d),
			Unique: KeyCalendar,
			Data:   fmt.Sprintf("d|%d|%d|%d", year, month, d),
		})
	}
	return keyboard.InlineButtonsNPerRow(buttons, 7)
}

// onChildCalendar advances the picker one stage; the final stage
// stores the date and moves on to the grade prompt.
func (c *Controller) onChildCalendar(ctx context.Context, ev Event) error {
	lang := c.langOf(ev.ChatID)
	parts := strings.Split(ev.Payload, "|")

	switch parts[0] {
	case "y":
		if len(parts) != 2 {
			break
		}
		year, err := strconv.Atoi(parts[1])
		if err != nil {
			break
		}
		if err := c.tp.EditMarkup(ctx, ev.ChatID, ev.MessageID, c.kbCalendarMonths(year)); err != nil {
			return err
		}
		c.answer(ctx, ev)
		return nil

	case "m":
		if len(parts) != 3 {
			break
		}
		year, err1 := strconv.Atoi(parts[1])
		month, err2 := strconv.Atoi(parts[2])
		if err1 != nil || err2 != nil || month < 1 || month > 12 {
			break
		}
		if err := c.tp.EditMarkup(ctx, ev.ChatID, ev.MessageID, c.kbCalendarDays(year, month)); err != nil {
			return err
		}
		c.answer(ctx, ev)
		return nil

	case "d":
		if len(parts) != 4 {
			break
		}
		year, err1 := strconv.Atoi(parts[1])
		month, err2 := strconv.Atoi(parts[2])
		day, err3 := strconv.Atoi(parts[3])
		if err1 != nil || err2 != nil || err3 != nil {
			break
		}
		dob := fmt.Sprintf("%02d.%02d.%04d", day, month, year)
		c.sessions.Update(ev.ChatID, func(s *session.Session) {
			s.EnsureChild().DOB = dob
			s.State = StateChildClass
		})
		if err := c.tp.Edit(ctx, ev.ChatID, ev.MessageID, c.texts.Get(lang, "child-enter-class-prompt"), nil); err != nil {
			return err
		}
		c.answer(ctx, ev)
		return nil
	}

	// Malformed stage payload: acknowledge and stay put.
	c.answer(ctx, ev)
	return nil
}
