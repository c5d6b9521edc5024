// Package timeparse implements the engine's MM / HH:MM / DD:HH:MM[.SS]
// time string grammar.
package timeparse

import (
	"fmt"
	"strconv"
	"strings"
	"time"
)

// Millis is a millisecond duration decoded from the engine's time string
// grammar. Config structs use this type (rather than a bare int64) so the
// mapstructure decode hook in internal/config knows to route it through
// Parse instead of a plain numeric conversion.
type Millis int64

// Parse converts a time string of the form "MM", "HH:MM" or "DD:HH:MM",
// optionally suffixed with ".SS", into a duration in milliseconds. Field
// ranges: seconds 0-59, minutes 0-59, hours 0-23, days 0-365.
func Parse(s string) (int64, error) {
	s = strings.TrimSpace(s)
	if s == "" {
		return 0, fmt.Errorf("empty time string")
	}

	seconds := 0
	if dot := strings.IndexByte(s, '.'); dot >= 0 {
		secStr := s[dot+1:]
		s = s[:dot]
		v, err := strconv.Atoi(secStr)
		if err != nil {
			return 0, fmt.Errorf("invalid seconds field %q: %w", secStr, err)
		}
		if v < 0 || v > 59 {
			return 0, fmt.Errorf("seconds %d out of range [0,59]", v)
		}
		seconds = v
	}

	fields := strings.Split(s, ":")
	var days, hours, minutes int
	var err error
	switch len(fields) {
	case 1:
		minutes, err = atoiRange(fields[0], 0, 59, "minutes")
	case 2:
		hours, err = atoiRange(fields[0], 0, 23, "hours")
		if err == nil {
			minutes, err = atoiRange(fields[1], 0, 59, "minutes")
		}
	case 3:
		days, err = atoiRange(fields[0], 0, 365, "days")
		if err == nil {
			hours, err = atoiRange(fields[1], 0, 23, "hours")
		}
		if err == nil {
			minutes, err = atoiRange(fields[2], 0, 59, "minutes")
		}
	default:
		return 0, fmt.Errorf("time string %q has too many colon-separated fields", s)
	}
	if err != nil {
		return 0, err
	}

	total := int64(days)*86400000 + int64(hours)*3600000 + int64(minutes)*60000 + int64(seconds)*1000
	return total, nil
}

func atoiRange(s string, lo, hi int, field string) (int, error) {
	v, err := strconv.Atoi(s)
	if err != nil {
		return 0, fmt.Errorf("invalid %s field %q: %w", field, s, err)
	}
	if v < lo || v > hi {
		return 0, fmt.Errorf("%s %d out of range [%d,%d]", field, v, lo, hi)
	}
	return v, nil
}

// Format renders a millisecond duration back into the DD:HH:MM.SS form,
// mirroring DurationToString, omitting leading zero-valued fields except
// the minutes/seconds that are always present.
func Format(ms int64) string {
	d := time.Duration(ms) * time.Millisecond
	days := int64(d / (24 * time.Hour))
	d -= time.Duration(days) * 24 * time.Hour
	hours := int64(d / time.Hour)
	d -= time.Duration(hours) * time.Hour
	minutes := int64(d / time.Minute)
	d -= time.Duration(minutes) * time.Minute
	seconds := int64(d / time.Second)

	switch {
	case days > 0:
		return fmt.Sprintf("%d:%02d:%02d.%02d", days, hours, minutes, seconds)
	case hours > 0:
		return fmt.Sprintf("%d:%02d.%02d", hours, minutes, seconds)
	default:
		return fmt.Sprintf("%d.%02d", minutes, seconds)
	}
}
