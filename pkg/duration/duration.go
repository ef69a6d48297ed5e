// Package duration parses and formats durations with day and week units on
// top of Go's native syntax, for config values like "30d" or "2w".
package duration

import (
	"fmt"
	"strconv"
	"strings"
	"time"
)

// Extended units. Months and years are deliberately not defined; retention
// windows that long should be written in days.
const (
	Day  = 24 * time.Hour
	Week = 7 * Day
)

var unitValues = map[string]time.Duration{
	"d": Day, "day": Day, "days": Day,
	"w": Week, "wk": Week, "wks": Week, "week": Week, "weeks": Week,
	"h": time.Hour, "hr": time.Hour, "hrs": time.Hour, "hour": time.Hour, "hours": time.Hour,
	"m": time.Minute, "min": time.Minute, "mins": time.Minute, "minute": time.Minute, "minutes": time.Minute,
	"s": time.Second, "sec": time.Second, "secs": time.Second, "second": time.Second, "seconds": time.Second,
	"ms": time.Millisecond,
	"us": time.Microsecond, "µs": time.Microsecond,
	"ns": time.Nanosecond,
}

// Parse reads durations like "30d", "2w", "1w2d12h" or "30 days". Anything
// time.ParseDuration accepts also parses, including fractions like "1.5h".
func Parse(s string) (time.Duration, error) {
	in := strings.TrimSpace(s)
	if in == "" {
		return 0, fmt.Errorf("duration: empty string")
	}

	neg := strings.HasPrefix(in, "-")
	body := strings.TrimSpace(strings.TrimPrefix(in, "-"))

	total, ok := scanTokens(body)
	if !ok {
		// Not whole number+unit pairs; let the standard parser decide.
		d, err := time.ParseDuration(in)
		if err != nil {
			return 0, fmt.Errorf("duration: invalid %q", s)
		}
		return d, nil
	}
	if neg {
		total = -total
	}
	return total, nil
}

// scanTokens walks number+unit pairs such as "1w2d12h" or "30 days",
// tolerating whitespace between tokens. ok is false when the string does
// not decompose that way.
func scanTokens(s string) (time.Duration, bool) {
	var total time.Duration
	consumed := 0

	i := 0
	for i < len(s) {
		for i < len(s) && s[i] == ' ' {
			i++
		}
		if i == len(s) {
			break
		}

		start := i
		for i < len(s) && isDigit(s[i]) {
			i++
		}
		if i == start {
			return 0, false
		}
		value, err := strconv.ParseInt(s[start:i], 10, 64)
		if err != nil {
			return 0, false
		}

		for i < len(s) && s[i] == ' ' {
			i++
		}
		ustart := i
		for i < len(s) && s[i] != ' ' && !isDigit(s[i]) {
			i++
		}
		unit, ok := unitValues[strings.ToLower(s[ustart:i])]
		if !ok {
			return 0, false
		}

		total += time.Duration(value) * unit
		consumed++
	}

	return total, consumed > 0
}

func isDigit(b byte) bool { return b >= '0' && b <= '9' }

// MustParse is Parse for hardcoded values; it panics on error.
func MustParse(s string) time.Duration {
	d, err := Parse(s)
	if err != nil {
		panic(err)
	}
	return d
}

// Format renders d using the largest whole units, omitting zero components:
// ninety minutes is "1h30m", ten days is "1w3d".
func Format(d time.Duration) string {
	if d == 0 {
		return "0s"
	}

	var b strings.Builder
	if d < 0 {
		b.WriteByte('-')
		d = -d
	}

	for _, u := range []struct {
		name  string
		value time.Duration
	}{
		{"w", Week},
		{"d", Day},
		{"h", time.Hour},
		{"m", time.Minute},
		{"s", time.Second},
		{"ms", time.Millisecond},
		{"µs", time.Microsecond},
		{"ns", time.Nanosecond},
	} {
		if n := d / u.value; n > 0 {
			fmt.Fprintf(&b, "%d%s", n, u.name)
			d -= n * u.value
		}
	}

	return b.String()
}
