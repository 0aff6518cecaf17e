package availability

import (
	"time"

	"github.com/62saybyetopain/new-reservation-system/services/booking-service/internal/calendar"
	"github.com/62saybyetopain/new-reservation-system/services/booking-service/internal/model"
)

// Effective is the resolved availability of one concrete date.
type Effective struct {
	Type  model.DayType      `json:"type"`
	Slots []model.TimeWindow `json:"slots,omitempty"`
}

func (e Effective) IsRest() bool {
	return e.Type == model.DayRest
}

// Resolve picks, in order: the override for day's date, the weekly schedule entry for
// day's weekday, or the 09:00-22:00 fallback. An override is returned as stored.
func Resolve(day time.Time, overrides map[string]model.DayOverride, schedule model.WeeklySchedule) Effective {
	if o, ok := overrides[calendar.DateKey(day)]; ok {
		return Effective{Type: o.Type, Slots: o.Slots}
	}
	if entry, ok := schedule[day.Weekday()]; ok {
		if !entry.IsOpen {
			return Effective{Type: model.DayRest}
		}
		return Effective{Type: model.DayOpen, Slots: entry.Slots}
	}
	return Effective{Type: model.DayOpen, Slots: []model.TimeWindow{FallbackWindow}}
}
