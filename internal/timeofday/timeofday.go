// Package timeofday converts wall-clock "HH:MM" values to minutes since
// midnight and back, and provides the interval helpers used by slot
// computation. Values never carry a calendar day: a window that ends
// before midnight is written as 23:59.
package timeofday

import (
	"fmt"
	"strconv"
	"strings"
	"time"
)

const (
	// MinutesPerDay is the modulus applied by Format.
	MinutesPerDay = 24 * 60

	// EndOfDay is the last representable minute of a day (23:59).
	EndOfDay = MinutesPerDay - 1

	// DateLayout is the calendar date format used across the service.
	DateLayout = "2006-01-02"
)

// ParseMinutes parses "HH:MM" into minutes since midnight.
func ParseMinutes(s string) (int, error) {
	parts := strings.Split(strings.TrimSpace(s), ":")
	if len(parts) != 2 || len(parts[0]) == 0 || len(parts[0]) > 2 || len(parts[1]) != 2 {
		return 0, fmt.Errorf("invalid time format %q, expected HH:MM", s)
	}

	hour, err := strconv.Atoi(parts[0])
	if err != nil || hour < 0 || hour > 23 {
		return 0, fmt.Errorf("invalid hour in %q", s)
	}

	minute, err := strconv.Atoi(parts[1])
	if err != nil || minute < 0 || minute > 59 {
		return 0, fmt.Errorf("invalid minute in %q", s)
	}

	return hour*60 + minute, nil
}

// MustMinutes is ParseMinutes for values already validated at the boundary.
// It panics on malformed input.
func MustMinutes(s string) int {
	m, err := ParseMinutes(s)
	if err != nil {
		panic(err)
	}
	return m
}

// Valid reports whether s is a well-formed "HH:MM".
func Valid(s string) bool {
	_, err := ParseMinutes(s)
	return err == nil
}

// Format renders minutes as zero-padded "HH:MM", wrapping modulo one day.
func Format(m int) string {
	m %= MinutesPerDay
	if m < 0 {
		m += MinutesPerDay
	}
	return fmt.Sprintf("%02d:%02d", m/60, m%60)
}

// Overlaps reports whether [s1,e1) and [s2,e2) intersect.
// Intervals that only touch do not overlap.
func Overlaps(s1, e1, s2, e2 int) bool {
	return s1 < e2 && e1 > s2
}

// Lattice returns start, start+interval, ... up to and including end when
// end lands on a lattice point.
func Lattice(start, end, interval int) []string {
	if interval <= 0 || end < start {
		return nil
	}
	out := make([]string, 0, (end-start)/interval+1)
	for m := start; m <= end; m += interval {
		out = append(out, Format(m))
	}
	return out
}

// ParseDate parses a "YYYY-MM-DD" date in loc.
func ParseDate(s string, loc *time.Location) (time.Time, error) {
	if loc == nil {
		loc = time.UTC
	}
	d, err := time.ParseInLocation(DateLayout, strings.TrimSpace(s), loc)
	if err != nil {
		return time.Time{}, fmt.Errorf("invalid date %q, expected YYYY-MM-DD", s)
	}
	return d, nil
}

// Weekday returns the day index used by slot rules: 0=Monday .. 6=Sunday.
func Weekday(d time.Time) int {
	return (int(d.Weekday()) + 6) % 7
}

// MinuteOfDay returns the minutes elapsed since midnight for t.
func MinuteOfDay(t time.Time) int {
	return t.Hour()*60 + t.Minute()
}
