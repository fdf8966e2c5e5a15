package bot

import (
	"context"
	"errors"
	"strconv"

	tele "gopkg.in/telebot.v4"
)

// Transport implements flow.Transport on a live bot. Telebot's
// API methods carry their own HTTP timeouts, so the context is only
// honored as an early-out before each call.
type Transport struct {
	bot *tele.Bot
}

var errUnbound = errors.New("bot: transport is not bound yet")

// NewTransport builds an unbound transport; Bind attaches the bot once
// the telegram runtime is up. Calls before Bind return an error.
func NewTransport() *Transport {
	return &Transport{}
}

// Bind attaches the live bot instance.
func (t *Transport) Bind(b *tele.Bot) {
	t.bot = b
}

func (t *Transport) ready(ctx context.Context) error {
	if err := ctx.Err(); err != nil {
		return err
	}
	if t.bot == nil {
		return errUnbound
	}
	return nil
}

func stored(chatID int64, messageID int) tele.Editable {
	return &tele.StoredMessage{
		MessageID: strconv.Itoa(messageID),
		ChatID:    chatID,
	}
}

func (t *Transport) Send(ctx context.Context, chatID int64, text string, markup *tele.ReplyMarkup) (int, error) {
	if err := t.ready(ctx); err != nil {
		return 0, err
	}
	var opts []interface{}
	if markup != nil {
		opts = append(opts, markup)
	}
	msg, err := t.bot.Send(tele.ChatID(chatID), text, opts...)
	if err != nil {
		return 0, err
	}
	return msg.ID, nil
}

func (t *Transport) Edit(ctx context.Context, chatID int64, messageID int, text string, markup *tele.ReplyMarkup) error {
	if err := t.ready(ctx); err != nil {
		return err
	}
	var opts []interface{}
	if markup != nil {
		opts = append(opts, markup)
	}
	_, err := t.bot.Edit(stored(chatID, messageID), text, opts...)
	return err
}

func (t *Transport) EditMarkup(ctx context.Context, chatID int64, messageID int, markup *tele.ReplyMarkup) error {
	if err := t.ready(ctx); err != nil {
		return err
	}
	_, err := t.bot.EditReplyMarkup(stored(chatID, messageID), markup)
	return err
}

func (t *Transport) Delete(ctx context.Context, chatID int64, messageID int) error {
	if err := t.ready(ctx); err != nil {
		return err
	}
	return t.bot.Delete(stored(chatID, messageID))
}

func (t *Transport) Answer(ctx context.Context, callbackID, text string, alert bool) error {
	if err := t.ready(ctx); err != nil {
		return err
	}
	return t.bot.Respond(&tele.Callback{ID: callbackID}, &tele.CallbackResponse{
		Text:      text,
		ShowAlert: alert,
	})
}

func (t *Transport) Forward(ctx context.Context, toChatID, fromChatID int64, messageID int) error {
	if err := t.ready(ctx); err != nil {
		return err
	}
	_, err := t.bot.Forward(tele.ChatID(toChatID), stored(fromChatID, messageID))
	return err
}
