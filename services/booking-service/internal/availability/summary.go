package availability

import (
	"time"

	"github.com/62saybyetopain/new-reservation-system/services/booking-service/internal/calendar"
	"github.com/62saybyetopain/new-reservation-system/services/booking-service/internal/model"
)

type Status string

const (
	StatusUnavailable Status = "unavailable"
	StatusRest        Status = "rest"
	StatusAvailable   Status = "available"
	StatusFull        Status = "full"
)

type Reason string

const (
	ReasonExpired    Reason = "expired"
	ReasonNotYetOpen Reason = "not_yet_open"
	// ReasonSkipped marks a wall-clock hour that a daylight-saving change removes.
	ReasonSkipped Reason = "skipped"
)

// Summary describes one calendar cell without exposing who booked it.
type Summary struct {
	Hour   int    `json:"hour"`
	Status Status `json:"status"`
	Reason Reason `json:"reason,omitempty"`
	Count  int    `json:"count,omitempty"`
}

// HourSummary classifies hour on day. A nil plan is replaced by PreviewPlan.
func HourSummary(day time.Time, hour int, plan *model.Plan, snap Snapshot, now time.Time) Summary {
	start, ok := calendar.HourOn(day, hour)
	switch {
	case !ok:
		return Summary{Hour: hour, Status: StatusUnavailable, Reason: ReasonSkipped}
	case start.Before(now):
		return Summary{Hour: hour, Status: StatusUnavailable, Reason: ReasonExpired}
	case start.After(calendar.HorizonEnd(now.In(day.Location()), HorizonDays)):
		return Summary{Hour: hour, Status: StatusUnavailable, Reason: ReasonNotYetOpen}
	}

	eff := Resolve(day, snap.Overrides, snap.Schedule)
	if eff.IsRest() || !hourInWindows(hour, eff.Slots) {
		return Summary{Hour: hour, Status: StatusRest}
	}

	if plan == nil {
		preview := PreviewPlan
		plan = &preview
	}
	if n := len(SlotsForHour(start, plan, snap, now)); n > 0 {
		return Summary{Hour: hour, Status: StatusAvailable, Count: n}
	}
	return Summary{Hour: hour, Status: StatusFull}
}

// hourInWindows compares whole hours only, so 09:30-12:00 counts hour 9 as open.
func hourInWindows(hour int, windows []model.TimeWindow) bool {
	for _, w := range windows {
		from, to, err := w.Minutes()
		if err != nil {
			continue
		}
		if hour >= from/60 && hour < to/60 {
			return true
		}
	}
	return false
}

// Day is the calendar row for one date.
type Day struct {
	Date         string    `json:"date"`
	Weekday      string    `json:"weekday"`
	Availability Effective `json:"availability"`
	Hours        []Summary `json:"hours"`
}

// DaySummary summarises hours [fromHour, toHour) of day. The range is clamped to 0-24.
func DaySummary(day time.Time, fromHour, toHour int, plan *model.Plan, snap Snapshot, now time.Time) Day {
	fromHour = max(fromHour, 0)
	toHour = min(toHour, 24)
	out := Day{
		Date:         calendar.DateKey(day),
		Weekday:      day.Weekday().String(),
		Availability: Resolve(day, snap.Overrides, snap.Schedule),
	}
	for hour := fromHour; hour < toHour; hour++ {
		out.Hours = append(out.Hours, HourSummary(day, hour, plan, snap, now))
	}
	return out
}
