package when

import (
	"errors"
	"fmt"
	"regexp"
	"strconv"
	"strings"
)

// MaxRelativeMinutes bounds "in <minutes>" to one year.
const MaxRelativeMinutes = 366 * 24 * 60

// ErrParse marks a malformed time specification.
var ErrParse = errors.New("invalid time spec")

// ParseError carries the rejected input.
type ParseError struct {
	Input  string
	Reason string
}

func (e *ParseError) Error() string {
	if e.Input == "" {
		return "time spec: " + e.Reason
	}
	return fmt.Sprintf("time spec %q: %s", e.Input, e.Reason)
}

func (e *ParseError) Unwrap() error { return ErrParse }

// Kind distinguishes relative and absolute specs.
type Kind int

const (
	Relative Kind = iota + 1
	Absolute
)

// Spec is a parsed "in <minutes>" or "at <HH:MM>" request.
type Spec struct {
	Kind    Kind
	Minutes int // Relative
	Hour    int // Absolute
	Minute  int // Absolute
}

func In(minutes int) Spec      { return Spec{Kind: Relative, Minutes: minutes} }
func At(hour, minute int) Spec { return Spec{Kind: Absolute, Hour: hour, Minute: minute} }
func (s Spec) IsZero() bool    { return s.Kind == 0 }

func (s Spec) String() string {
	switch s.Kind {
	case Relative:
		return fmt.Sprintf("in %d min", s.Minutes)
	case Absolute:
		return fmt.Sprintf("at %02d:%02d", s.Hour, s.Minute)
	default:
		return "<none>"
	}
}

var reHHMM = regexp.MustCompile(`^(\d{1,2}):(\d{2})$`)

// Parse reads a mode keyword ("in" or "at") and its value.
func Parse(mode, value string) (Spec, error) {
	mode = strings.ToLower(strings.TrimSpace(mode))
	value = strings.TrimSpace(value)
	switch mode {
	case "in":
		m, err := ParseMinutes(value)
		if err != nil {
			return Spec{}, err
		}
		return In(m), nil
	case "at":
		h, m, err := parseHHMM(value)
		if err != nil {
			return Spec{}, err
		}
		return At(h, m), nil
	case "":
		return Spec{}, &ParseError{Reason: "mode required (use 'in' or 'at')"}
	default:
		return Spec{}, &ParseError{Input: mode, Reason: "unknown mode (use 'in' or 'at')"}
	}
}

// ParseMinutes parses a positive minute count.
func ParseMinutes(s string) (int, error) {
	s = strings.TrimSpace(s)
	if s == "" {
		return 0, &ParseError{Reason: "minutes required"}
	}
	n, err := strconv.Atoi(s)
	if err != nil {
		return 0, &ParseError{Input: s, Reason: "minutes must be a whole number"}
	}
	if n <= 0 {
		return 0, &ParseError{Input: s, Reason: "minutes must be positive"}
	}
	if n > MaxRelativeMinutes {
		return 0, &ParseError{Input: s, Reason: "minutes must be at most one year"}
	}
	return n, nil
}

func parseHHMM(s string) (hour int, minute int, err error) {
	m := reHHMM.FindStringSubmatch(s)
	if m == nil {
		return 0, 0, &ParseError{Input: s, Reason: "expected HH:MM"}
	}
	hour, _ = strconv.Atoi(m[1])
	minute, _ = strconv.Atoi(m[2])
	if hour > 23 {
		return 0, 0, &ParseError{Input: s, Reason: "hour must be 00-23"}
	}
	if minute > 59 {
		return 0, 0, &ParseError{Input: s, Reason: "minute must be 00-59"}
	}
	return hour, minute, nil
}
