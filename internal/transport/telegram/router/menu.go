package router

import (
	"sort"
	"strings"

	kit "remindbot/internal/transport"
)

// sanitizeCommand reduces s to Telegram's command alphabet [a-z0-9_]{1,32}.
// It returns "" when nothing usable is left.
func sanitizeCommand(s string) string {
	s = strings.TrimSpace(strings.ToLower(strings.TrimPrefix(s, "/")))
	var b strings.Builder
	lastUnderscore := false
	for _, r := range s {
		switch {
		case (r >= 'a' && r <= 'z') || (r >= '0' && r <= '9'):
			b.WriteRune(r)
			lastUnderscore = false
		case r == '_' || r == '-' || r == ' ':
			if b.Len() > 0 && !lastUnderscore {
				b.WriteByte('_')
				lastUnderscore = true
			}
		}
	}
	out := strings.Trim(b.String(), "_")
	if len(out) > 32 {
		out = strings.TrimRight(out[:32], "_")
	}
	if out != "" && out[0] >= '0' && out[0] <= '9' {
		return ""
	}
	return out
}

// menuCommands lists visible routes for setMyCommands, sorted by verb.
func menuCommands(routes []Route) []kit.BotCommand {
	seen := map[string]bool{}
	out := make([]kit.BotCommand, 0, len(routes))
	for _, r := range routes {
		if r.Hidden {
			continue
		}
		cmd := sanitizeCommand(r.Verb)
		if cmd == "" || seen[cmd] {
			continue
		}
		seen[cmd] = true
		desc := strings.ReplaceAll(strings.TrimSpace(r.Description), "\n", " ")
		if desc == "" {
			desc = cmd
		}
		out = append(out, kit.BotCommand{Command: cmd, Description: desc})
	}
	sort.SliceStable(out, func(i, j int) bool { return out[i].Command < out[j].Command })
	if len(out) > 100 {
		out = out[:100]
	}
	return out
}
