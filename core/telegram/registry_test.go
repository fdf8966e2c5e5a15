package telegram

import (
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/stemly/regbot/core/telegram/commands"

	tele "gopkg.in/telebot.v4"
)

func noopHandler(tele.Context) error { return nil }

func TestRegistryCommands(t *testing.T) {
	reg := NewRegistry()
	reg.RegisterCommand("/start", commands.Command{Handler: noopHandler, Description: "restart"})
	reg.RegisterCommand("/help", commands.Command{Handler: noopHandler, Description: "help", Hidden: true})
	reg.RegisterCommand("no-slash", commands.Command{Handler: noopHandler, Description: "bad"})
	reg.RegisterCommand("/start", commands.Command{Handler: noopHandler, Description: "dup"})

	assert.Len(t, reg.Commands(), 2)

	visible := reg.ListCommands(true)
	require.Len(t, visible, 1)
	assert.Equal(t, "/start", visible[0].Text)

	key, cmd, ok := reg.LookupCommand("start")
	require.True(t, ok)
	assert.Equal(t, "/start", key)
	assert.Equal(t, "restart", cmd.Description)
}

func TestRegistryCommandAliases(t *testing.T) {
	reg := NewRegistry()
	reg.RegisterCommand("/menu", commands.Command{Handler: noopHandler, Description: "menu", Aliases: []string{"main"}})

	key, _, ok := reg.LookupCommand("/main")
	require.True(t, ok)
	assert.Equal(t, "/menu", key)

	_, _, ok = reg.LookupCommand("/missing")
	assert.False(t, ok)
}

func TestRegistryCallbacks(t *testing.T) {
	reg := NewRegistry()
	require.NoError(t, reg.RegisterCallback("confirm_profile", noopHandler))
	assert.Error(t, reg.RegisterCallback("confirm_profile", noopHandler))
	assert.Error(t, reg.RegisterCallback("", noopHandler))

	_, ok := reg.GetCallback("confirm_profile")
	assert.True(t, ok)
	_, ok = reg.GetCallback("unknown")
	assert.False(t, ok)

	assert.Equal(t, []string{"confirm_profile"}, reg.ListCallbacks())
}
