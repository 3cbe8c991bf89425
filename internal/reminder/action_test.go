package reminder

import (
	"strings"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"remindbot/internal/pending"
	"remindbot/pkg/tgui"
)

var testToken = pending.Token(strings.Repeat("0f", 16))

func TestActionDataRoundTrip(t *testing.T) {
	for _, a := range []Action{
		{Kind: Complete, Token: testToken},
		{Kind: Defer, Token: testToken},
		{Kind: Snooze, Token: testToken, Minutes: 30},
		{Kind: Back, Token: testToken},
	} {
		data := a.Data()
		assert.LessOrEqual(t, len(data), tgui.MaxCallbackData, data)
		got, err := DecodeAction(data)
		require.NoError(t, err, data)
		assert.Equal(t, a, got)
	}
	assert.Equal(t, "rem:snooze:"+string(testToken)+":5", Action{Kind: Snooze, Token: testToken, Minutes: 5}.Data())
}

func TestDecodeActionRejectsMalformed(t *testing.T) {
	tok := string(testToken)
	for _, data := range []string{
		"",
		"rem",
		"rem:done",
		"other:done:" + tok,
		"rem:maybe:" + tok,
		"rem:done:xyz",
		"rem:done:" + strings.ToUpper(tok),
		"rem:snooze:" + tok,
		"rem:snooze:" + tok + ":",
		"rem:snooze:" + tok + ":abc",
		"rem:snooze:" + tok + ":0",
		"rem:snooze:" + tok + ":-5",
		"rem:done:" + tok + ":5",
	} {
		_, err := DecodeAction(data)
		assert.ErrorIs(t, err, ErrInvalidAction, "data %q", data)
	}
}
