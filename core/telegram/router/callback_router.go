package router

import (
	"log/slog"
	"time"

	tg "github.com/stemly/regbot/core/telegram"
	"github.com/stemly/regbot/core/telegram/middleware"

	tele "gopkg.in/telebot.v4"
)

// CallbackOptions customises fallback behaviour for callbacks.
type CallbackOptions struct {
	NotFound tele.HandlerFunc
}

// CallbackRoute returns a handler that routes callbacks through the
// registry. Unknown keys go to the registry fallback, then to
// opts.NotFound.
func CallbackRoute(reg *tg.Registry, opts CallbackOptions) tg.Route {
	handler := func(c tele.Context) error {
		cb := c.Callback()
		if cb == nil {
			return nil
		}
		start := time.Now()

		key, _ := parseCallback(cb)
		name := "callback." + normalizeHandlerName(key)
		extras := []slog.Attr{slog.String("cb_key", key)}

		target, ok := reg.GetCallback(key)
		if !ok || target == nil {
			target = reg.CallbackNotFound()
			if target == nil {
				target = opts.NotFound
			}
			extras = append(extras, slog.String("reason", "not_found"))
		}

		return handleWithSummary(c, name, start, func() error {
			if target == nil {
				return nil
			}
			return target(c)
		}, extras...)
	}

	return tg.Route{
		Endpoint: tele.OnCallback,
		Handler:  middleware.RecoverMiddleware(middleware.LoggerMiddleware(handler)),
	}
}
