package when

import (
	"fmt"
	"strings"
	"time"
	_ "time/tzdata" // zone database for hosts without /usr/share/zoneinfo

	"github.com/robfig/cron/v3"
)

// DefaultTimezone is the zone "at HH:MM" is interpreted in when none is configured.
const DefaultTimezone = "Asia/Jakarta"

// Resolver turns a Spec into an absolute instant in a fixed timezone.
type Resolver struct {
	loc    *time.Location
	parser cron.Parser
}

func NewResolver(loc *time.Location) *Resolver {
	if loc == nil {
		loc = time.UTC
	}
	return &Resolver{
		loc:    loc,
		parser: cron.NewParser(cron.Minute | cron.Hour | cron.Dom | cron.Month | cron.Dow),
	}
}

// LoadLocation resolves an IANA zone name; empty means DefaultTimezone.
func LoadLocation(name string) (*time.Location, error) {
	name = strings.TrimSpace(name)
	if name == "" {
		name = DefaultTimezone
	}
	return time.LoadLocation(name)
}

func (r *Resolver) Location() *time.Location { return r.loc }

// Resolve computes the fire instant for spec.
//
// Relative specs are now+minutes. Absolute specs resolve to the next
// occurrence of HH:MM strictly after now: a target equal to now rolls over to
// the following day.
func (r *Resolver) Resolve(spec Spec, now time.Time) (time.Time, error) {
	switch spec.Kind {
	case Relative:
		if spec.Minutes <= 0 || spec.Minutes > MaxRelativeMinutes {
			return time.Time{}, &ParseError{Input: fmt.Sprint(spec.Minutes), Reason: "minutes out of range"}
		}
		return now.Add(time.Duration(spec.Minutes) * time.Minute), nil
	case Absolute:
		if spec.Hour < 0 || spec.Hour > 23 || spec.Minute < 0 || spec.Minute > 59 {
			return time.Time{}, &ParseError{Input: spec.String(), Reason: "time of day out of range"}
		}
		// A daily cron schedule's Next is strictly after its argument, which
		// gives the rollover rule for free, DST gaps included.
		sched, err := r.parser.Parse(fmt.Sprintf("%d %d * * *", spec.Minute, spec.Hour))
		if err != nil {
			return time.Time{}, &ParseError{Input: spec.String(), Reason: err.Error()}
		}
		next := sched.Next(now.In(r.loc))
		if next.IsZero() {
			return time.Time{}, &ParseError{Input: spec.String(), Reason: "no upcoming occurrence"}
		}
		return next, nil
	default:
		return time.Time{}, &ParseError{Reason: "empty time spec"}
	}
}
