package outbox

import (
	"encoding/json"
	"fmt"
)

// Event types double as Kafka topic names.
const (
	TypeBookingCreated       = "booking.created.v1"
	TypeBookingRescheduled   = "booking.rescheduled.v1"
	TypeBookingCancelled     = "booking.cancelled.v1"
	TypeAvailabilityChanged  = "availability.config.changed.v1"
	AggregateBooking         = "booking"
	AggregateAvailability    = "availability"
	AvailabilityAggregateKey = "calendar"
)

// Event is the domain event envelope written to the outbox table.
type Event struct {
	AggregateType string
	AggregateID   string
	EventType     string
	Payload       []byte
}

// NewEvent marshals payload as the event body.
func NewEvent(aggregateType, aggregateID, eventType string, payload any) (Event, error) {
	body, err := json.Marshal(payload)
	if err != nil {
		return Event{}, fmt.Errorf("marshal %s payload: %w", eventType, err)
	}
	return Event{
		AggregateType: aggregateType,
		AggregateID:   aggregateID,
		EventType:     eventType,
		Payload:       body,
	}, nil
}
