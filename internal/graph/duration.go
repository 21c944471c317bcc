package graph

import (
	"fmt"
	"strconv"
	"strings"
	"time"
)

// ParseDuration parses the ISO-8601 duration subset used by edge conditions
// and send schedules: P[nW][nD][T[nH][nM][nS]], e.g. "PT10M", "P1D",
// "P1DT2H30M". Fractional components are not supported.
func ParseDuration(s string) (time.Duration, error) {
	orig := s
	if len(s) < 2 || (s[0] != 'P' && s[0] != 'p') {
		return 0, fmt.Errorf("invalid ISO-8601 duration %q", orig)
	}
	s = s[1:]

	datePart := s
	timePart := ""
	if i := strings.IndexAny(s, "Tt"); i >= 0 {
		datePart, timePart = s[:i], s[i+1:]
		if timePart == "" {
			return 0, fmt.Errorf("invalid ISO-8601 duration %q", orig)
		}
	}

	var total time.Duration
	consume := func(part string, units map[byte]time.Duration, order string) error {
		pos := 0
		lastUnit := -1
		for pos < len(part) {
			start := pos
			for pos < len(part) && part[pos] >= '0' && part[pos] <= '9' {
				pos++
			}
			if start == pos || pos == len(part) {
				return fmt.Errorf("invalid ISO-8601 duration %q", orig)
			}
			unit := part[pos] &^ 0x20 // uppercase
			d, ok := units[unit]
			if !ok {
				return fmt.Errorf("invalid ISO-8601 duration %q: unknown unit %q", orig, string(part[pos]))
			}
			idx := strings.IndexByte(order, unit)
			if idx <= lastUnit {
				return fmt.Errorf("invalid ISO-8601 duration %q: units out of order", orig)
			}
			lastUnit = idx
			n, err := strconv.Atoi(part[start:pos])
			if err != nil {
				return fmt.Errorf("invalid ISO-8601 duration %q: %w", orig, err)
			}
			total += time.Duration(n) * d
			pos++
		}
		return nil
	}

	dateUnits := map[byte]time.Duration{'W': 7 * 24 * time.Hour, 'D': 24 * time.Hour}
	timeUnits := map[byte]time.Duration{'H': time.Hour, 'M': time.Minute, 'S': time.Second}
	if err := consume(datePart, dateUnits, "WD"); err != nil {
		return 0, err
	}
	if err := consume(timePart, timeUnits, "HMS"); err != nil {
		return 0, err
	}
	if datePart == "" && timePart == "" {
		return 0, fmt.Errorf("invalid ISO-8601 duration %q", orig)
	}
	return total, nil
}

// ParseClock parses an "HH:MM" wall-clock string.
func ParseClock(s string) (hour, minute int, err error) {
	parts := strings.SplitN(s, ":", 2)
	if len(parts) != 2 {
		return 0, 0, fmt.Errorf("invalid clock time %q", s)
	}
	hour, err = strconv.Atoi(parts[0])
	if err != nil || hour < 0 || hour > 23 {
		return 0, 0, fmt.Errorf("invalid clock time %q", s)
	}
	minute, err = strconv.Atoi(parts[1])
	if err != nil || minute < 0 || minute > 59 {
		return 0, 0, fmt.Errorf("invalid clock time %q", s)
	}
	return hour, minute, nil
}

// NextLocal returns the first occurrence of the given wall-clock time at or
// after t in the supplied location.
func NextLocal(t time.Time, hour, minute int, loc *time.Location) time.Time {
	local := t.In(loc)
	candidate := time.Date(local.Year(), local.Month(), local.Day(), hour, minute, 0, 0, loc)
	if candidate.Before(local) {
		candidate = candidate.AddDate(0, 0, 1)
	}
	return candidate
}
