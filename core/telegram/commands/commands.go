// Package commands defines the command metadata the registry stores.
package commands

import tele "gopkg.in/telebot.v4"

// Command couples a handler with the metadata the router and the
// command menu need.
type Command struct {
	Handler     tele.HandlerFunc
	Description string
	// AdminOnly restricts the command to the configured admin user.
	AdminOnly bool
	// Hidden keeps the command out of the Telegram command menu.
	Hidden  bool
	Aliases []string
}
