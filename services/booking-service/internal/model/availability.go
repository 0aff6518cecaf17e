package model

import (
	"errors"
	"fmt"
	"time"

	"github.com/62saybyetopain/new-reservation-system/services/booking-service/internal/calendar"
)

type DayType string

const (
	DayOpen DayType = "open"
	DayRest DayType = "rest"
)

// TimeWindow is an open range of a day as HH:MM clocks. An End of "00:00" or "24:00" means midnight.
type TimeWindow struct {
	Start string `json:"start"`
	End   string `json:"end"`
}

// Minutes returns the window as minutes after midnight.
func (w TimeWindow) Minutes() (start, end int, err error) {
	start, err = calendar.ParseClock(w.Start)
	if err != nil {
		return 0, 0, err
	}
	end, err = calendar.ParseClock(w.End)
	if err != nil {
		return 0, 0, err
	}
	if end == 0 {
		end = calendar.MinutesPerDay
	}
	return start, end, nil
}

func (w TimeWindow) Validate() error {
	start, end, err := w.Minutes()
	if err != nil {
		return err
	}
	if start >= end {
		return fmt.Errorf("window %s-%s: start must be before end", w.Start, w.End)
	}
	return nil
}

func ValidateWindows(windows []TimeWindow) error {
	for _, w := range windows {
		if err := w.Validate(); err != nil {
			return err
		}
	}
	return nil
}

// DayOverride replaces the weekly schedule for one calendar date.
type DayOverride struct {
	Date      string       `json:"date"`
	Type      DayType      `json:"type"`
	Slots     []TimeWindow `json:"slots,omitempty"`
	UpdatedAt time.Time    `json:"updated_at"`
}

func (o DayOverride) Validate() error {
	switch o.Type {
	case DayRest:
		return nil
	case DayOpen:
		if len(o.Slots) == 0 {
			return errors.New("open override needs at least one window")
		}
		return ValidateWindows(o.Slots)
	default:
		return fmt.Errorf("unknown day type %q", o.Type)
	}
}

type WeekdaySchedule struct {
	IsOpen bool         `json:"is_open"`
	Slots  []TimeWindow `json:"slots"`
}

// WeeklySchedule is the default availability keyed by weekday. A nil map means "not configured".
type WeeklySchedule map[time.Weekday]WeekdaySchedule

func (s WeeklySchedule) Validate() error {
	for day, entry := range s {
		if day < time.Sunday || day > time.Saturday {
			return fmt.Errorf("weekday %d out of range", day)
		}
		if !entry.IsOpen {
			continue
		}
		if err := ValidateWindows(entry.Slots); err != nil {
			return fmt.Errorf("%s: %w", day, err)
		}
	}
	return nil
}
