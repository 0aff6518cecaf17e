// Package calendar holds the date arithmetic the availability engine is built on.
// Every function works in the location of its arguments; callers convert to the
// business time zone before asking day-level questions.
package calendar

import (
	"fmt"
	"strconv"
	"strings"
	"time"
)

const (
	dateLayout = "2006-01-02"

	// MinutesPerDay is the value ParseClock returns for "24:00".
	MinutesPerDay = 24 * 60
)

// DateKey formats t as YYYY-MM-DD in t's own location.
func DateKey(t time.Time) string {
	return t.Format(dateLayout)
}

// ParseDate parses a YYYY-MM-DD key into midnight of that day in loc.
func ParseDate(key string, loc *time.Location) (time.Time, error) {
	if loc == nil {
		loc = time.UTC
	}
	d, err := time.ParseInLocation(dateLayout, strings.TrimSpace(key), loc)
	if err != nil {
		return time.Time{}, fmt.Errorf("invalid date %q: %w", key, err)
	}
	return d, nil
}

func StartOfDay(t time.Time) time.Time {
	y, m, d := t.Date()
	return time.Date(y, m, d, 0, 0, 0, 0, t.Location())
}

// EndOfDay returns the last nanosecond of t's day.
func EndOfDay(t time.Time) time.Time {
	return StartOfDay(t).AddDate(0, 0, 1).Add(-time.Nanosecond)
}

func Today(now time.Time) time.Time {
	return StartOfDay(now)
}

// AddDays moves by calendar days, keeping wall-clock time across DST changes.
func AddDays(t time.Time, days int) time.Time {
	return t.AddDate(0, 0, days)
}

// HorizonEnd is the last bookable instant: the end of day today+(days-1).
func HorizonEnd(now time.Time, days int) time.Time {
	return EndOfDay(AddDays(Today(now), days-1))
}

func SameDay(a, b time.Time) bool {
	b = b.In(a.Location())
	ay, am, ad := a.Date()
	by, bm, bd := b.Date()
	return ay == by && am == bm && ad == bd
}

// ParseClock parses HH:MM into minutes after midnight. "24:00" is accepted as end of day.
func ParseClock(s string) (int, error) {
	s = strings.TrimSpace(s)
	hh, mm, ok := strings.Cut(s, ":")
	if !ok || len(hh) == 0 || len(hh) > 2 || len(mm) != 2 {
		return 0, fmt.Errorf("invalid clock %q: want HH:MM", s)
	}
	h, err := strconv.Atoi(hh)
	if err != nil {
		return 0, fmt.Errorf("invalid clock %q: %w", s, err)
	}
	m, err := strconv.Atoi(mm)
	if err != nil {
		return 0, fmt.Errorf("invalid clock %q: %w", s, err)
	}
	if h < 0 || m < 0 || m > 59 || h > 24 || (h == 24 && m != 0) {
		return 0, fmt.Errorf("invalid clock %q: out of range", s)
	}
	return h*60 + m, nil
}

// FormatClock is the inverse of ParseClock.
func FormatClock(minutes int) string {
	return fmt.Sprintf("%02d:%02d", minutes/60, minutes%60)
}

// At returns the instant minutes after the start of day's calendar date, in day's location.
func At(day time.Time, minutes int) time.Time {
	y, m, d := day.Date()
	return time.Date(y, m, d, minutes/60, minutes%60, 0, 0, day.Location())
}

// HourOn returns the top of hour on day's date. ok is false when that wall-clock hour
// does not exist, as on a spring-forward day.
func HourOn(day time.Time, hour int) (t time.Time, ok bool) {
	t = At(day, hour*60)
	return t, t.Hour() == hour && SameDay(day, t)
}

// HourStart truncates t to the top of its hour without leaving the instant's offset,
// so the repeated hour of a fall-back day stays distinct.
func HourStart(t time.Time) time.Time {
	return t.Add(-time.Duration(t.Minute())*time.Minute -
		time.Duration(t.Second())*time.Second -
		time.Duration(t.Nanosecond()))
}

// HourStarts lists every top-of-hour instant on day's date in order. A daylight-saving
// change yields 23 or 25 entries.
func HourStarts(day time.Time) []time.Time {
	start := StartOfDay(day)
	next := StartOfDay(AddDays(start, 1))
	hours := make([]time.Time, 0, 25)
	for t := start; t.Before(next); t = HourStart(t.Add(time.Hour)) {
		hours = append(hours, t)
	}
	return hours
}
