package when

import (
	"errors"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func jakarta(t *testing.T) *time.Location {
	t.Helper()
	loc, err := LoadLocation("")
	require.NoError(t, err)
	return loc
}

func TestParseVariants(t *testing.T) {
	t.Parallel()
	tests := []struct {
		name  string
		mode  string
		value string
		want  Spec
	}{
		{name: "relative", mode: "in", value: "10", want: In(10)},
		{name: "relative upper case mode", mode: "IN", value: " 5 ", want: In(5)},
		{name: "absolute", mode: "at", value: "14:30", want: At(14, 30)},
		{name: "absolute single digit hour", mode: "at", value: "7:05", want: At(7, 5)},
		{name: "midnight", mode: "at", value: "00:00", want: At(0, 0)},
	}
	for _, tt := range tests {
		tt := tt
		t.Run(tt.name, func(t *testing.T) {
			got, err := Parse(tt.mode, tt.value)
			require.NoError(t, err)
			assert.Equal(t, tt.want, got)
		})
	}
}

func TestParseInvalid(t *testing.T) {
	t.Parallel()
	cases := [][2]string{
		{"in", ""},
		{"in", "ten"},
		{"in", "0"},
		{"in", "-5"},
		{"in", "1.5"},
		{"in", "99999999"},
		{"at", "24:00"},
		{"at", "12:60"},
		{"at", "1230"},
		{"at", "12:3"},
		{"at", ""},
		{"on", "12:30"},
		{"", "10"},
	}
	for _, c := range cases {
		_, err := Parse(c[0], c[1])
		require.Error(t, err, "Parse(%q, %q)", c[0], c[1])
		assert.True(t, errors.Is(err, ErrParse), "Parse(%q, %q) = %v", c[0], c[1], err)
		var pe *ParseError
		assert.True(t, errors.As(err, &pe))
	}
}

func TestResolveRelativeIsExact(t *testing.T) {
	r := NewResolver(jakarta(t))
	now := time.Date(2026, 3, 1, 9, 17, 23, 500, jakarta(t))
	got, err := r.Resolve(In(10), now)
	require.NoError(t, err)
	assert.True(t, got.Equal(now.Add(10*time.Minute)), "got %s", got)
}

func TestResolveAbsolute(t *testing.T) {
	loc := jakarta(t)
	r := NewResolver(loc)
	day := func(d, h, m, s int) time.Time { return time.Date(2026, 3, d, h, m, s, 0, loc) }

	tests := []struct {
		name string
		now  time.Time
		want time.Time
	}{
		{name: "later today", now: day(10, 9, 0, 0), want: day(10, 14, 30, 0)},
		{name: "already passed", now: day(10, 15, 0, 0), want: day(11, 14, 30, 0)},
		{name: "equal rolls over", now: day(10, 14, 30, 0), want: day(11, 14, 30, 0)},
		{name: "one second before", now: day(10, 14, 29, 59), want: day(10, 14, 30, 0)},
		{name: "sub-second after", now: day(10, 14, 30, 0).Add(300 * time.Millisecond), want: day(11, 14, 30, 0)},
		{name: "month end", now: day(31, 23, 0, 0), want: time.Date(2026, 4, 1, 14, 30, 0, 0, loc)},
	}
	for _, tt := range tests {
		tt := tt
		t.Run(tt.name, func(t *testing.T) {
			got, err := r.Resolve(At(14, 30), tt.now)
			require.NoError(t, err)
			assert.True(t, got.Equal(tt.want), "got %s want %s", got, tt.want)
		})
	}
}

func TestResolveAbsoluteUsesResolverZone(t *testing.T) {
	loc := jakarta(t) // UTC+7
	r := NewResolver(loc)
	// 01:00 UTC is 08:00 in Jakarta, so 09:00 is still ahead today.
	now := time.Date(2026, 3, 10, 1, 0, 0, 0, time.UTC)
	got, err := r.Resolve(At(9, 0), now)
	require.NoError(t, err)
	assert.True(t, got.Equal(time.Date(2026, 3, 10, 2, 0, 0, 0, time.UTC)), "got %s", got)
	assert.Equal(t, loc, got.Location())
}

func TestResolveRejectsEmptyAndOutOfRange(t *testing.T) {
	r := NewResolver(nil)
	now := time.Now()
	for _, spec := range []Spec{{}, In(0), In(-1), At(24, 0), At(1, 61)} {
		_, err := r.Resolve(spec, now)
		assert.ErrorIs(t, err, ErrParse, "spec %s", spec)
	}
}
