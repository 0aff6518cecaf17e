package model

import (
	"time"

	"github.com/shopspring/decimal"
)

// Plan is a bookable offering. Bookings copy its name, duration and rest when created.
type Plan struct {
	ID              string          `json:"id"`
	Category        string          `json:"category"`
	Name            string          `json:"name"`
	Description     string          `json:"description"`
	DurationMinutes int             `json:"duration_minutes"`
	RestMinutes     int             `json:"rest_minutes"`
	Price           decimal.Decimal `json:"price"`
	Active          bool            `json:"active"`
	CreatedAt       time.Time       `json:"created_at"`
	UpdatedAt       time.Time       `json:"updated_at"`
}

// Valid reports whether the plan can occupy time on the calendar.
func (p Plan) Valid() bool {
	return p.DurationMinutes > 0 && p.RestMinutes >= 0
}

// Occupied is the service duration plus the mandatory rest after it.
func (p Plan) Occupied() time.Duration {
	return time.Duration(p.DurationMinutes+p.RestMinutes) * time.Minute
}
