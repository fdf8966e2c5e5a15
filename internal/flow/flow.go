// Package flow holds the conversation controllers: per-chat state
// machines that sequence registration prompts, validate input, branch
// on identity lookups and keep the transcript clean by deleting
// superseded screens. Transport, sink and identity API are consumed
// through narrow interfaces.
package flow

import (
	"context"
	"fmt"

	"github.com/stemly/regbot/core/logger"
	"github.com/stemly/regbot/internal/identity"
	"github.com/stemly/regbot/internal/session"
	"github.com/stemly/regbot/internal/storage"
	"github.com/stemly/regbot/internal/texts"
	"log/slog"

	tele "gopkg.in/telebot.v4"
)

// Event is one inbound interaction: a free-text message (possibly a
// shared contact) or a button press.
type Event struct {
	ChatID    int64
	UserID    int64
	MessageID int // inbound message, or the message the button sits on

	Text    string
	Contact string // phone from a structured contact payload

	Key        string // callback unique; empty for plain messages
	Payload    string
	CallbackID string
}

// IsCallback reports whether the event is a button press.
func (e Event) IsCallback() bool { return e.Key != "" }

// Transport is the outbound side of the chat: everything the flows can
// do to the transcript. Send returns the new message id so screens can
// be tracked for deletion.
type Transport interface {
	Send(ctx context.Context, chatID int64, text string, markup *tele.ReplyMarkup) (int, error)
	Edit(ctx context.Context, chatID int64, messageID int, text string, markup *tele.ReplyMarkup) error
	EditMarkup(ctx context.Context, chatID int64, messageID int, markup *tele.ReplyMarkup) error
	Delete(ctx context.Context, chatID int64, messageID int) error
	Answer(ctx context.Context, callbackID, text string, alert bool) error
	Forward(ctx context.Context, toChatID, fromChatID int64, messageID int) error
}

// Identity is the lookup/upsert bridge the flows depend on.
type Identity interface {
	FindByPhone(ctx context.Context, phone string) identity.LookupResult
	Upsert(ctx context.Context, p identity.Payload) (*identity.Record, error)
	PlaceholderDomain() string
}

// Options wires a Controller.
type Options struct {
	Sessions  *session.Manager
	Texts     *texts.Table
	Sink      storage.Sink
	Identity  Identity
	Transport Transport

	// SupportGroupID receives forwarded support-chat messages; zero
	// disables forwarding (messages are acknowledged only).
	SupportGroupID int64
}

// Controller drives every conversation. One instance serves all chats;
// per-chat data lives in the session manager.
type Controller struct {
	sessions *session.Manager
	texts    *texts.Table
	sink     storage.Sink
	identity Identity
	tp       Transport

	supportGroupID int64

	table Table
}

// New builds a Controller and validates its transition table. A wiring
// gap is a startup error, not a runtime surprise.
func New(opts Options) (*Controller, error) {
	if opts.Sessions == nil || opts.Texts == nil || opts.Transport == nil {
		return nil, fmt.Errorf("flow: sessions, texts and transport are required")
	}
	c := &Controller{
		sessions:       opts.Sessions,
		texts:          opts.Texts,
		sink:           opts.Sink,
		identity:       opts.Identity,
		tp:             opts.Transport,
		supportGroupID: opts.SupportGroupID,
	}
	c.table = c.buildTable()
	if err := c.table.Validate(); err != nil {
		return nil, err
	}
	return c, nil
}

// InProgress reports whether the chat has an active conversation.
func (c *Controller) InProgress(chatID int64) bool {
	return c.sessions.InProgress(chatID)
}

// CallbackKeys lists every callback unique the table reacts to, for
// registry wiring.
func (c *Controller) CallbackKeys() []string {
	return c.table.CallbackKeys()
}

// Dispatch routes one event through the transition table. Unmatched
// button presses are acknowledged and dropped; unmatched text in an
// active state is ignored so stray messages cannot derail a screen.
func (c *Controller) Dispatch(ctx context.Context, ev Event) error {
	st := c.sessions.StateOf(ev.ChatID)

	handlers, ok := c.table[st]
	if !ok {
		return c.drop(ctx, ev, st, "no_state_entry")
	}
	h, ok := handlers[eventKeyOf(ev)]
	if !ok {
		return c.drop(ctx, ev, st, "no_transition")
	}

	err := h(ctx, ev)
	if err != nil {
		logger.Flow.Error("handler failed",
			slog.String("event", "dispatch"),
			slog.String("state", string(st)),
			slog.String("cb_key", ev.Key),
			slog.Int64("chat_id", ev.ChatID),
			slog.String("err", err.Error()),
		)
	}
	return err
}

func (c *Controller) drop(ctx context.Context, ev Event, st session.State, reason string) error {
	logger.Flow.Debug("event dropped",
		slog.String("event", "dispatch"),
		slog.String("state", string(st)),
		slog.String("cb_key", ev.Key),
		slog.String("reason", reason),
		slog.Int64("chat_id", ev.ChatID),
	)
	if ev.IsCallback() {
		return c.tp.Answer(ctx, ev.CallbackID, "", false)
	}
	return nil
}

// langOf returns the chat's language, defaulting sensibly for chats
// that somehow reach a prompt before choosing one.
func (c *Controller) langOf(chatID int64) string {
	s := c.sessions.Get(chatID)
	if s.Lang == "" {
		return texts.DefaultLang
	}
	return s.Lang
}

func (c *Controller) answer(ctx context.Context, ev Event) {
	if ev.IsCallback() {
		_ = c.tp.Answer(ctx, ev.CallbackID, "", false)
	}
}

func (c *Controller) alert(ctx context.Context, ev Event, text string) {
	if ev.IsCallback() {
		_ = c.tp.Answer(ctx, ev.CallbackID, text, true)
	}
}
