package keyboard

import (
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestInlineButtonsOnePerRow(t *testing.T) {
	markup := InlineButtons([]InlineBtn{
		{Text: "Yes", Unique: "yes"},
		{Text: "No", Unique: "no"},
	})
	require.Len(t, markup.InlineKeyboard, 2)
	assert.Len(t, markup.InlineKeyboard[0], 1)
	assert.Equal(t, "Yes", markup.InlineKeyboard[0][0].Text)
}

func TestInlineButtonsNPerRow(t *testing.T) {
	buttons := []InlineBtn{
		{Text: "A", Unique: "a"},
		{Text: "B", Unique: "b"},
		{Text: "C", Unique: "c"},
		{Text: "D", Unique: "d"},
		{Text: "E", Unique: "e"},
	}
	markup := InlineButtonsNPerRow(buttons, 2)
	require.Len(t, markup.InlineKeyboard, 3)
	assert.Len(t, markup.InlineKeyboard[0], 2)
	assert.Len(t, markup.InlineKeyboard[2], 1)
}

func TestAppendRow(t *testing.T) {
	markup := InlineButtons([]InlineBtn{{Text: "A", Unique: "a"}})
	markup = AppendRow(markup, InlineBtn{Text: "Back", Unique: "back"}, InlineBtn{Text: "Done", Unique: "done"})
	require.Len(t, markup.InlineKeyboard, 2)
	assert.Len(t, markup.InlineKeyboard[1], 2)
}

func TestReplyButtons(t *testing.T) {
	markup := ReplyButtons([]string{"Menu", "Support"})
	assert.True(t, markup.ResizeKeyboard)
	require.Len(t, markup.ReplyKeyboard, 1)
	assert.Equal(t, "Menu", markup.ReplyKeyboard[0][0].Text)
}
