// Package duration parses durations with day and week units on top of the
// standard library format, e.g. "7d", "2w", "1w2d12h", "36h".
package duration

import (
	"fmt"
	"regexp"
	"strconv"
	"strings"
	"time"
)

const (
	// Day is 24 hours.
	Day = 24 * time.Hour
	// Week is 7 days.
	Week = 7 * Day
)

var extended = regexp.MustCompile(`(?i)(\d+)\s*(weeks?|w|days?|d)`)

// Parse parses s. Day and week terms are folded into hours before the
// remainder is handed to time.ParseDuration.
func Parse(s string) (time.Duration, error) {
	s = strings.TrimSpace(s)
	if s == "" {
		return 0, fmt.Errorf("duration: empty string")
	}
	negative := strings.HasPrefix(s, "-")
	s = strings.TrimSpace(strings.TrimPrefix(s, "-"))

	var hours int64
	rest := extended.ReplaceAllStringFunc(s, func(m string) string {
		parts := extended.FindStringSubmatch(m)
		n, _ := strconv.ParseInt(parts[1], 10, 64)
		if strings.HasPrefix(strings.ToLower(parts[2]), "w") {
			n *= 7
		}
		hours += n * 24
		return ""
	})
	rest = strings.Join(strings.Fields(rest), "")

	expr := rest
	if hours > 0 {
		expr = strconv.FormatInt(hours, 10) + "h" + rest
	}
	if expr == "" {
		return 0, fmt.Errorf("duration: invalid %q", s)
	}
	d, err := time.ParseDuration(expr)
	if err != nil {
		return 0, fmt.Errorf("duration: %w", err)
	}
	if negative {
		d = -d
	}
	return d, nil
}

// Format renders d using weeks and days for the whole-day part.
func Format(d time.Duration) string {
	if d == 0 {
		return "0s"
	}
	var b strings.Builder
	if d < 0 {
		b.WriteByte('-')
		d = -d
	}
	if w := d / Week; w > 0 {
		fmt.Fprintf(&b, "%dw", w)
		d -= w * Week
	}
	if n := d / Day; n > 0 {
		fmt.Fprintf(&b, "%dd", n)
		d -= n * Day
	}
	if d > 0 {
		b.WriteString(d.String())
	}
	return b.String()
}
