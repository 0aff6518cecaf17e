package calendar

import (
	"testing"
	"time"
)

func TestDateKeyUsesLocation(t *testing.T) {
	taipei, err := time.LoadLocation("Asia/Taipei")
	if err != nil {
		t.Skipf("tzdata unavailable: %v", err)
	}
	instant := time.Date(2026, 3, 1, 20, 0, 0, 0, time.UTC)
	if got := DateKey(instant.In(taipei)); got != "2026-03-02" {
		t.Fatalf("expected 2026-03-02, got %s", got)
	}
	if got := DateKey(instant); got != "2026-03-01" {
		t.Fatalf("expected 2026-03-01, got %s", got)
	}
}

func TestParseDate(t *testing.T) {
	d, err := ParseDate("2026-08-10", time.UTC)
	if err != nil {
		t.Fatalf("unexpected error: %v", err)
	}
	if !d.Equal(time.Date(2026, 8, 10, 0, 0, 0, 0, time.UTC)) {
		t.Fatalf("unexpected date %s", d)
	}
	if _, err := ParseDate("2026-13-01", time.UTC); err == nil {
		t.Fatalf("expected error for bad month")
	}
}

func TestDayBoundaries(t *testing.T) {
	now := time.Date(2026, 8, 10, 15, 4, 5, 6, time.UTC)
	if got := StartOfDay(now); !got.Equal(time.Date(2026, 8, 10, 0, 0, 0, 0, time.UTC)) {
		t.Fatalf("unexpected start of day %s", got)
	}
	if got := EndOfDay(now); !got.Equal(time.Date(2026, 8, 10, 23, 59, 59, 999999999, time.UTC)) {
		t.Fatalf("unexpected end of day %s", got)
	}
}

func TestHorizonEnd(t *testing.T) {
	now := time.Date(2026, 8, 10, 15, 0, 0, 0, time.UTC)
	want := time.Date(2026, 8, 30, 23, 59, 59, 999999999, time.UTC)
	if got := HorizonEnd(now, 21); !got.Equal(want) {
		t.Fatalf("expected %s, got %s", want, got)
	}
	if got := HorizonEnd(now, 1); !got.Equal(EndOfDay(now)) {
		t.Fatalf("expected horizon of 1 day to end today, got %s", got)
	}
}

func TestParseClock(t *testing.T) {
	cases := map[string]int{"09:00": 540, "9:30": 570, "00:00": 0, "23:59": 1439, "24:00": MinutesPerDay}
	for in, want := range cases {
		got, err := ParseClock(in)
		if err != nil {
			t.Fatalf("%s: unexpected error: %v", in, err)
		}
		if got != want {
			t.Fatalf("%s: expected %d, got %d", in, want, got)
		}
	}
	for _, bad := range []string{"", "9", "24:30", "12:60", "ab:cd", "12:5", "-1:00"} {
		if _, err := ParseClock(bad); err == nil {
			t.Fatalf("%q: expected error", bad)
		}
	}
}

func TestAtAndFormatClock(t *testing.T) {
	day := time.Date(2026, 8, 10, 13, 0, 0, 0, time.UTC)
	if got := At(day, 9*60+30); !got.Equal(time.Date(2026, 8, 10, 9, 30, 0, 0, time.UTC)) {
		t.Fatalf("unexpected At result %s", got)
	}
	if got := At(day, MinutesPerDay); !got.Equal(time.Date(2026, 8, 11, 0, 0, 0, 0, time.UTC)) {
		t.Fatalf("expected 24:00 to be next midnight, got %s", got)
	}
	if got := FormatClock(570); got != "09:30" {
		t.Fatalf("expected 09:30, got %s", got)
	}
}

func TestSameDay(t *testing.T) {
	a := time.Date(2026, 8, 10, 0, 0, 0, 0, time.UTC)
	if !SameDay(a, a.Add(23*time.Hour)) {
		t.Fatalf("expected same day")
	}
	if SameDay(a, a.Add(24*time.Hour)) {
		t.Fatalf("expected different day")
	}
}

func TestHourStartsAcrossDaylightSaving(t *testing.T) {
	ny, err := time.LoadLocation("America/New_York")
	if err != nil {
		t.Skipf("tzdata unavailable: %v", err)
	}
	cases := map[string]struct {
		day  time.Time
		want int
	}{
		"spring forward": {time.Date(2026, 3, 8, 12, 0, 0, 0, ny), 23},
		"fall back":      {time.Date(2026, 11, 1, 12, 0, 0, 0, ny), 25},
		"ordinary":       {time.Date(2026, 8, 10, 12, 0, 0, 0, ny), 24},
	}
	for name, tc := range cases {
		hours := HourStarts(tc.day)
		if len(hours) != tc.want {
			t.Fatalf("%s: expected %d hours, got %d", name, tc.want, len(hours))
		}
		for i, h := range hours {
			if h.Minute() != 0 || !SameDay(tc.day, h) {
				t.Fatalf("%s: unexpected hour start %s", name, h)
			}
			if i > 0 && h.Sub(hours[i-1]) != time.Hour {
				t.Fatalf("%s: expected hourly steps, got %s after %s", name, h, hours[i-1])
			}
		}
	}
}

func TestHourOnRejectsSkippedHour(t *testing.T) {
	ny, err := time.LoadLocation("America/New_York")
	if err != nil {
		t.Skipf("tzdata unavailable: %v", err)
	}
	day := time.Date(2026, 3, 8, 0, 0, 0, 0, ny)
	if _, ok := HourOn(day, 2); ok {
		t.Fatalf("expected 02:00 to be missing on 2026-03-08")
	}
	got, ok := HourOn(day, 3)
	if !ok || got.Hour() != 3 {
		t.Fatalf("expected 03:00, got %s ok=%v", got, ok)
	}
}

func TestHourStartKeepsRepeatedHourDistinct(t *testing.T) {
	ny, err := time.LoadLocation("America/New_York")
	if err != nil {
		t.Skipf("tzdata unavailable: %v", err)
	}
	// 2026-11-01 01:30 EST is 06:30 UTC; the earlier 01:30 EDT is 05:30 UTC.
	second := time.Date(2026, 11, 1, 6, 30, 0, 0, time.UTC).In(ny)
	want := time.Date(2026, 11, 1, 6, 0, 0, 0, time.UTC)
	if got := HourStart(second); !got.Equal(want) {
		t.Fatalf("expected %s, got %s", want.In(ny), got)
	}
}
