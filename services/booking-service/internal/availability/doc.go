// Package availability decides which start times a plan may be booked at.
//
// Everything here is a pure function of an immutable Snapshot and an explicit
// evaluation instant, so it is safe for concurrent use and trivially repeatable.
// Malformed input never errors; it degrades to "not bookable".
package availability

import (
	"time"

	"github.com/62saybyetopain/new-reservation-system/services/booking-service/internal/model"
)

const (
	// HorizonDays is how many calendar days, today included, are open for booking.
	HorizonDays = 21
	// SlotInterval is the grid candidate start times sit on, relative to the top of the hour.
	SlotInterval = 10 * time.Minute
	// EveningHour is the first hour the evening-load rule applies to.
	EveningHour = 19
)

// FallbackWindow is used when no schedule entry covers a day.
var FallbackWindow = model.TimeWindow{Start: "09:00", End: "22:00"}

// PreviewPlan stands in for the visitor's plan when the calendar is browsed before choosing one.
var PreviewPlan = model.Plan{ID: "preview", Name: "preview", DurationMinutes: 10, RestMinutes: 5}

// Snapshot is the read-only state every decision is evaluated against.
type Snapshot struct {
	Bookings  []model.Booking
	Overrides map[string]model.DayOverride
	Schedule  model.WeeklySchedule
}

// Without returns a copy of s minus the booking with the given id.
func (s Snapshot) Without(bookingID string) Snapshot {
	out := s
	out.Bookings = make([]model.Booking, 0, len(s.Bookings))
	for _, b := range s.Bookings {
		if b.ID != bookingID {
			out.Bookings = append(out.Bookings, b)
		}
	}
	return out
}

// DayBookings returns the bookings starting on day's calendar date, judged in day's location.
// Bookings without a start time are dropped.
func (s Snapshot) DayBookings(day time.Time) []model.Booking {
	return bookingsOn(day, s.Bookings)
}

func bookingsOn(day time.Time, bookings []model.Booking) []model.Booking {
	var out []model.Booking
	for _, b := range bookings {
		if !b.HasStart() {
			continue
		}
		if sameDate(day, b.StartTime) {
			out = append(out, b)
		}
	}
	return out
}

func sameDate(day, t time.Time) bool {
	t = t.In(day.Location())
	dy, dm, dd := day.Date()
	ty, tm, td := t.Date()
	return dy == ty && dm == tm && dd == td
}

// OnGrid reports whether t sits on the SlotInterval grid.
func OnGrid(t time.Time) bool {
	return t.Second() == 0 && t.Nanosecond() == 0 && t.Minute()%int(SlotInterval/time.Minute) == 0
}
