package reminder

import (
	"fmt"
	"strings"

	"remindbot/internal/pending"
)

// Button is one inline choice. Data is callback data.
type Button struct {
	Label string
	Data  string
}

// Prompt is transport-neutral message content: plain text plus rows of
// buttons.
type Prompt struct {
	Text    string
	Buttons [][]Button
}

func (p Prompt) HasButtons() bool {
	for _, row := range p.Buttons {
		if len(row) > 0 {
			return true
		}
	}
	return false
}

const (
	textExpired     = "⚠️ This reminder is no longer available (maybe expired)."
	textTaskMissing = "⚠️ Task not found (it may have been removed earlier)."
	textBadSnooze   = "⚠️ Invalid snooze value."
)

func reminderPrompt(name, task string, tok pending.Token) Prompt {
	if strings.TrimSpace(name) == "" {
		name = "there"
	}
	return Prompt{
		Text: fmt.Sprintf("⏰ Reminder, %s! You need to do:\n👉 %s", name, task),
		Buttons: [][]Button{{
			{Label: "✅ Yes", Data: Action{Kind: Complete, Token: tok}.Data()},
			{Label: "❌ No", Data: Action{Kind: Defer, Token: tok}.Data()},
		}},
	}
}

func snoozePrompt(task string, tok pending.Token, choices []int) Prompt {
	row := make([]Button, 0, len(choices))
	for _, m := range choices {
		row = append(row, Button{
			Label: fmt.Sprintf("%d min", m),
			Data:  Action{Kind: Snooze, Token: tok, Minutes: m}.Data(),
		})
	}
	return Prompt{
		Text: "⏳ Noted. When should I remind you again for:\n👉 " + task,
		Buttons: [][]Button{
			row,
			{{Label: "↩️ Back", Data: Action{Kind: Back, Token: tok}.Data()}},
		},
	}
}

func completedPrompt(task string) Prompt {
	return Prompt{Text: "🎉 Great! Task completed and removed:\n👉 " + task}
}

func snoozedPrompt(minutes int, task string) Prompt {
	unit := "minutes"
	if minutes == 1 {
		unit = "minute"
	}
	return Prompt{Text: fmt.Sprintf("🔔 Okay! I'll remind you again in %d %s:\n👉 %s", minutes, unit, task)}
}
