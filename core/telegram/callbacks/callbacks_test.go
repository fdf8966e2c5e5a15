package callbacks

import (
	"testing"

	"github.com/stretchr/testify/assert"

	tele "gopkg.in/telebot.v4"
)

func TestParseCallbackData(t *testing.T) {
	tests := []struct {
		name    string
		data    string
		unique  string
		payload string
	}{
		{name: "unique only", data: "\\fconfirm_profile", unique: "confirm_profile"},
		{name: "unique with payload", data: "\\fcity|Tashkent", unique: "city", payload: "Tashkent"},
		{name: "payload with separator", data: "\\fcal|d|2010|5|17", unique: "cal", payload: "d|2010|5|17"},
		{name: "no prefix", data: "lang|ru", unique: "lang", payload: "ru"},
		{name: "empty", data: "", unique: ""},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			u, p := ParseCallbackData(&tele.Callback{Data: tt.data})
			assert.Equal(t, tt.unique, u)
			assert.Equal(t, tt.payload, p)
		})
	}
}

func TestParseCallbackDataNil(t *testing.T) {
	u, p := ParseCallbackData(nil)
	assert.Empty(t, u)
	assert.Empty(t, p)
}
