package availability

import (
	"time"

	"github.com/62saybyetopain/new-reservation-system/services/booking-service/internal/calendar"
	"github.com/62saybyetopain/new-reservation-system/services/booking-service/internal/model"
)

// IsSlotAvailable reports whether plan can start exactly at slot. The day is judged in slot's
// location, so callers pass slot in the business time zone.
func IsSlotAvailable(slot time.Time, plan *model.Plan, snap Snapshot, now time.Time) bool {
	if slot.IsZero() || plan == nil || !plan.Valid() || slot.Before(now) {
		return false
	}
	if slot.After(calendar.HorizonEnd(now.In(slot.Location()), HorizonDays)) {
		return false
	}

	day := Resolve(slot, snap.Overrides, snap.Schedule)
	if day.IsRest() {
		return false
	}

	end := slot.Add(plan.Occupied())
	if !fitsWindow(slot, end, day.Slots) {
		return false
	}

	dayBookings := snap.DayBookings(slot)
	if HasConflict(slot, end, dayBookings) {
		return false
	}
	return EveningAllowed(slot, *plan, dayBookings)
}

// fitsWindow requires [start, end) to sit inside a single window; spanning a gap is rejected.
func fitsWindow(start, end time.Time, windows []model.TimeWindow) bool {
	for _, w := range windows {
		from, to, err := w.Minutes()
		if err != nil {
			continue
		}
		ws := calendar.At(start, from)
		we := calendar.At(start, to)
		if !start.Before(ws) && !end.After(we) {
			return true
		}
	}
	return false
}
