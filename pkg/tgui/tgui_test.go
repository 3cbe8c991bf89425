package tgui

import (
	"testing"

	"github.com/stretchr/testify/assert"
	tele "gopkg.in/telebot.v4"
)

func TestDataRoundTrip(t *testing.T) {
	d := Data("rem", "snooze", "abc:10")
	assert.Equal(t, "rem:snooze:abc:10", d)

	scope, action, payload, ok := SplitData(d)
	assert.True(t, ok)
	assert.Equal(t, "rem", scope)
	assert.Equal(t, "snooze", action)
	assert.Equal(t, "abc:10", payload)

	assert.Equal(t, "rem:back", Data(" rem ", "back", ""))
	for _, bad := range []string{"", "rem", ":done", "rem::x"} {
		_, _, _, ok := SplitData(bad)
		assert.False(t, ok, bad)
	}
}

func TestBuilderEscapesAndAttachesKeyboard(t *testing.T) {
	msg := New().Line("a < b").Line("").Build()
	assert.Equal(t, "a &lt; b", msg.Text)
	assert.Equal(t, "HTML", msg.Opt.ParseMode)
	assert.Nil(t, msg.Opt.ReplyMarkupAdapter)

	kb := NewInline().Row(Btn("✅ Yes", "rem:done:x")).Row()
	assert.Equal(t, 1, kb.Len())
	msg = New().Line("hi").Inline(kb).Build()
	rm, ok := msg.Opt.ReplyMarkupAdapter.(*tele.ReplyMarkup)
	assert.True(t, ok)
	assert.Equal(t, "rem:done:x", rm.InlineKeyboard[0][0].Data)
}
