package availability

import (
	"time"

	"github.com/62saybyetopain/new-reservation-system/services/booking-service/internal/calendar"
	"github.com/62saybyetopain/new-reservation-system/services/booking-service/internal/model"
)

// SlotsForHour lists the bookable starts at 0, 10, ..., 50 minutes past hourStart, in order.
func SlotsForHour(hourStart time.Time, plan *model.Plan, snap Snapshot, now time.Time) []time.Time {
	if hourStart.IsZero() || plan == nil {
		return nil
	}
	hourStart = calendar.HourStart(hourStart)
	var slots []time.Time
	for offset := time.Duration(0); offset < time.Hour; offset += SlotInterval {
		candidate := hourStart.Add(offset)
		if IsSlotAvailable(candidate, plan, snap, now) {
			slots = append(slots, candidate)
		}
	}
	return slots
}

// SlotsForDay concatenates SlotsForHour over every real hour of day, skipping the hour a
// spring-forward removes and visiting both copies of the hour a fall-back repeats.
func SlotsForDay(day time.Time, plan *model.Plan, snap Snapshot, now time.Time) []time.Time {
	var slots []time.Time
	for _, hourStart := range calendar.HourStarts(day) {
		slots = append(slots, SlotsForHour(hourStart, plan, snap, now)...)
	}
	return slots
}
