package availability

import (
	"time"

	"github.com/62saybyetopain/new-reservation-system/services/booking-service/internal/model"
)

// HasConflict reports whether [start, end) overlaps the occupied interval of any booking.
func HasConflict(start, end time.Time, dayBookings []model.Booking) bool {
	for _, b := range dayBookings {
		if !b.HasStart() {
			continue
		}
		if start.Before(b.OccupiedEnd()) && end.After(b.StartTime) {
			return true
		}
	}
	return false
}

// Overlaps applies the same half-open test to two bookings. It is symmetric.
func Overlaps(a, b model.Booking) bool {
	if !a.HasStart() || !b.HasStart() {
		return false
	}
	return a.StartTime.Before(b.OccupiedEnd()) && a.OccupiedEnd().After(b.StartTime)
}
