// Package bot binds the conversation flows to telebot: it adapts
// inbound updates into flow events, registers commands and callbacks,
// and serializes handling per chat.
package bot

import (
	"context"
	"strings"

	tg "github.com/stemly/regbot/core/telegram"
	"github.com/stemly/regbot/core/telegram/callbacks"
	"github.com/stemly/regbot/core/telegram/commands"
	tghelpers "github.com/stemly/regbot/core/telegram/helpers"
	"github.com/stemly/regbot/internal/flow"

	tele "gopkg.in/telebot.v4"
)

// Bot glues a flow.Controller to the telegram runtime.
type Bot struct {
	ctrl  *flow.Controller
	locks *chatLocks
}

// New wraps a controller.
func New(ctrl *flow.Controller) *Bot {
	return &Bot{ctrl: ctrl, locks: newChatLocks()}
}

// InProgress implements the router FSM interface.
func (b *Bot) InProgress(chatID int64) bool {
	return b.ctrl.InProgress(chatID)
}

// ManagerHandler routes a text or contact update into the active
// conversation. Registration commands still interrupt a flow here,
// because an in-progress conversation captures all text first.
func (b *Bot) ManagerHandler(c tele.Context) error {
	ev := eventFromMessage(c)
	ctx := tghelpers.BuildContext(c)

	unlock := b.locks.acquire(ev.ChatID)
	defer unlock()

	switch strings.TrimSpace(ev.Text) {
	case "/start":
		return b.ctrl.Start(ctx, ev)
	case "/menu":
		return b.ctrl.Menu(ctx, ev)
	}
	return b.ctrl.Dispatch(ctx, ev)
}

// callbackHandler routes one button press through the controller.
func (b *Bot) callbackHandler(c tele.Context) error {
	ev := eventFromCallback(c)
	ctx := tghelpers.BuildContext(c)

	unlock := b.locks.acquire(ev.ChatID)
	defer unlock()

	return b.ctrl.Dispatch(ctx, ev)
}

// Register wires commands, flow callbacks and the text fallback into
// the shared registry.
func (b *Bot) Register(reg *tg.Registry) {
	reg.RegisterCommand("/start", commands.Command{
		Description: "Начать регистрацию",
		Handler:     b.command(b.ctrl.Start),
	})
	reg.RegisterCommand("/menu", commands.Command{
		Description: "Главное меню",
		Handler:     b.command(b.ctrl.Menu),
	})
	reg.RegisterCommand("/support", commands.Command{
		Description: "Чат с поддержкой",
		Handler:     b.command(b.ctrl.EnterSupport),
	})
	reg.RegisterCommand("/stop", commands.Command{
		Description: "Выйти из чата с поддержкой",
		Handler:     b.command(b.ctrl.StopSupport),
		Hidden:      true,
	})

	for _, key := range b.ctrl.CallbackKeys() {
		_ = reg.RegisterCallback(key, b.callbackHandler)
	}

	// Reply-keyboard buttons arrive as plain text; the support button
	// is the only one the menu offers.
	reg.SetTextFallback(func(c tele.Context) error {
		if b.ctrl.IsSupportButton(c.Text()) {
			return b.command(b.ctrl.EnterSupport)(c)
		}
		return nil
	})
}

// command adapts a controller entry point into a telebot handler.
func (b *Bot) command(h func(context.Context, flow.Event) error) tele.HandlerFunc {
	return func(c tele.Context) error {
		ev := eventFromMessage(c)
		ctx := tghelpers.BuildContext(c)

		unlock := b.locks.acquire(ev.ChatID)
		defer unlock()

		return h(ctx, ev)
	}
}

func eventFromMessage(c tele.Context) flow.Event {
	ev := flow.Event{
		Text: c.Text(),
	}
	if chat := c.Chat(); chat != nil {
		ev.ChatID = chat.ID
	}
	if sender := c.Sender(); sender != nil {
		ev.UserID = sender.ID
	}
	if msg := c.Message(); msg != nil {
		ev.MessageID = msg.ID
		if msg.Contact != nil {
			ev.Contact = msg.Contact.PhoneNumber
		}
	}
	return ev
}

func eventFromCallback(c tele.Context) flow.Event {
	ev := eventFromMessage(c)
	cb := c.Callback()
	if cb == nil {
		return ev
	}
	ev.CallbackID = cb.ID
	if cb.Message != nil {
		ev.MessageID = cb.Message.ID
	}
	ev.Key, ev.Payload = callbacks.ParseCallbackData(cb)
	return ev
}
