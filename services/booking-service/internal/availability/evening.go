package availability

import (
	"time"

	"github.com/62saybyetopain/new-reservation-system/services/booking-service/internal/model"
)

const longSessionMinutes = 60

// EveningAllowed applies the evening-load rule: from EveningHour on, a long session needs the
// evening to itself, and an existing long evening session blocks every other evening start.
func EveningAllowed(slot time.Time, plan model.Plan, dayBookings []model.Booking) bool {
	if slot.Hour() < EveningHour {
		return true
	}
	evening := 0
	for _, b := range dayBookings {
		if !b.HasStart() || b.StartTime.In(slot.Location()).Hour() < EveningHour {
			continue
		}
		if b.DurationMinutes >= longSessionMinutes {
			return false
		}
		evening++
	}
	return !(plan.DurationMinutes >= longSessionMinutes && evening > 0)
}
