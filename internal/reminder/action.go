package reminder

import (
	"fmt"
	"strconv"
	"strings"

	"remindbot/internal/pending"
	"remindbot/internal/when"
	"remindbot/pkg/tgui"
)

// Scope is the callback-data scope owned by reminder buttons.
const Scope = "rem"

type Kind int

const (
	Complete Kind = iota + 1
	Defer
	Snooze
	Back
)

var kindNames = map[Kind]string{
	Complete: "done",
	Defer:    "later",
	Snooze:   "snooze",
	Back:     "back",
}

func (k Kind) String() string {
	if s, ok := kindNames[k]; ok {
		return s
	}
	return "unknown"
}

func kindFromString(s string) (Kind, bool) {
	for k, name := range kindNames {
		if name == s {
			return k, true
		}
	}
	return 0, false
}

// Action is a decoded button press. Minutes is only meaningful for Snooze.
type Action struct {
	Kind    Kind
	Token   pending.Token
	Minutes int
}

// Data renders the action as inline callback data:
// rem:<done|later|snooze|back>:<token>[:<minutes>].
func (a Action) Data() string {
	payload := string(a.Token)
	if a.Kind == Snooze {
		payload += ":" + strconv.Itoa(a.Minutes)
	}
	return tgui.Data(Scope, a.Kind.String(), payload)
}

// DecodeAction parses callback data produced by Action.Data. Anything else,
// including a snooze without a positive minute count, yields ErrInvalidAction.
func DecodeAction(data string) (Action, error) {
	scope, verb, payload, ok := tgui.SplitData(data)
	if !ok || scope != Scope {
		return Action{}, fmt.Errorf("%q: %w", data, ErrInvalidAction)
	}
	kind, ok := kindFromString(verb)
	if !ok {
		return Action{}, fmt.Errorf("unknown action %q: %w", verb, ErrInvalidAction)
	}

	tok, rest := payload, ""
	if kind == Snooze {
		i := strings.LastIndexByte(payload, ':')
		if i < 0 {
			return Action{}, fmt.Errorf("snooze without minutes: %w", ErrInvalidAction)
		}
		tok, rest = payload[:i], payload[i+1:]
	}
	if !pending.ValidToken(tok) {
		return Action{}, fmt.Errorf("malformed token %q: %w", tok, ErrInvalidAction)
	}

	a := Action{Kind: kind, Token: pending.Token(tok)}
	if kind == Snooze {
		m, err := when.ParseMinutes(rest)
		if err != nil {
			return Action{}, fmt.Errorf("snooze minutes: %v: %w", err, ErrInvalidAction)
		}
		a.Minutes = m
	}
	return a, nil
}
