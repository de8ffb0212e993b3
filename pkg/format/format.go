// Package format renders sizes, counts, schedules and ages for people.
package format

import (
	"fmt"
	"strconv"
	"strings"
	"time"

	"golang.org/x/text/language"
	"golang.org/x/text/message"
)

var printer = message.NewPrinter(language.English)

var byteUnits = []string{"KB", "MB", "GB", "TB", "PB", "EB"}

// Bytes formats a byte count with binary units.
// Example: Bytes(1536) => "1.5 KB"
func Bytes(n int64) string {
	const unit = 1024
	if n < unit {
		return fmt.Sprintf("%d B", n)
	}
	div, exp := int64(unit), 0
	for v := n / unit; v >= unit && exp < len(byteUnits)-1; v /= unit {
		div *= unit
		exp++
	}
	return fmt.Sprintf("%.1f %s", float64(n)/float64(div), byteUnits[exp])
}

// Number formats n with thousand separators.
// Example: Number(1234567) => "1,234,567"
func Number(n int64) string {
	return printer.Sprintf("%d", n)
}

// Schedule describes a six-field cron expression (seconds first). Shapes it
// does not recognise are returned unchanged.
// Example: Schedule("0 */15 * * * *") => "every 15 minutes"
func Schedule(expr string) string {
	expr = strings.TrimSpace(expr)
	switch expr {
	case "@hourly":
		return "every hour"
	case "@daily", "@midnight":
		return "daily at 00:00"
	case "@weekly":
		return "weekly on Sunday at 00:00"
	case "@monthly":
		return "monthly on the 1st at 00:00"
	}
	if rest, ok := strings.CutPrefix(expr, "@every "); ok {
		return "every " + rest
	}

	f := strings.Fields(expr)
	if len(f) != 6 {
		return expr
	}
	sec, minute, hour, dom, month, dow := f[0], f[1], f[2], f[3], f[4], f[5]
	if dom != "*" || month != "*" {
		return expr
	}

	if n, ok := step(sec); ok && minute == "*" && hour == "*" {
		return plural(n, "second")
	}
	if sec != "0" {
		return expr
	}
	if n, ok := step(minute); ok && hour == "*" {
		return plural(n, "minute")
	}
	m, err := strconv.Atoi(minute)
	if err != nil {
		return expr
	}
	if hour == "*" {
		return fmt.Sprintf("every hour at :%02d", m)
	}
	if n, ok := step(hour); ok {
		return fmt.Sprintf("%s at :%02d", plural(n, "hour"), m)
	}
	h, err := strconv.Atoi(hour)
	if err != nil {
		return expr
	}
	at := fmt.Sprintf("%02d:%02d", h, m)
	if dow == "*" {
		return "daily at " + at
	}
	if d, err := strconv.Atoi(dow); err == nil && d >= 0 && d < 7 {
		return fmt.Sprintf("%ss at %s", time.Weekday(d), at)
	}
	return expr
}

// step parses "*/n" and reports n.
func step(field string) (int, bool) {
	rest, ok := strings.CutPrefix(field, "*/")
	if !ok {
		return 0, false
	}
	n, err := strconv.Atoi(rest)
	if err != nil || n <= 0 {
		return 0, false
	}
	return n, true
}

func plural(n int, unit string) string {
	if n == 1 {
		return "every " + unit
	}
	return fmt.Sprintf("every %d %ss", n, unit)
}

// Ago describes how long before now t was.
// Example: Ago(now.Add(-5*time.Minute), now) => "5 minutes ago"
func Ago(t, now time.Time) string {
	d := now.Sub(t)
	if d < 0 {
		return "in the future"
	}
	switch {
	case d < time.Minute:
		return "just now"
	case d < time.Hour:
		return unitsAgo(int(d/time.Minute), "minute")
	case d < 24*time.Hour:
		return unitsAgo(int(d/time.Hour), "hour")
	default:
		return unitsAgo(int(d/(24*time.Hour)), "day")
	}
}

func unitsAgo(n int, unit string) string {
	if n == 1 {
		return "1 " + unit + " ago"
	}
	return fmt.Sprintf("%d %ss ago", n, unit)
}
