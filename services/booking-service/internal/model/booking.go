package model

import "time"

type CompletionStatus string

const (
	CompletionPending   CompletionStatus = "pending"
	CompletionCompleted CompletionStatus = "completed"
)

func (s CompletionStatus) Valid() bool {
	return s == CompletionPending || s == CompletionCompleted
}

type ContactType string

const (
	ContactPhone     ContactType = "phone"
	ContactEmail     ContactType = "email"
	ContactLine      ContactType = "line"
	ContactInstagram ContactType = "ig"
	ContactTwitter   ContactType = "twitter"
	ContactFacebook  ContactType = "fb"
)

func (c ContactType) Valid() bool {
	switch c {
	case ContactPhone, ContactEmail, ContactLine, ContactInstagram, ContactTwitter, ContactFacebook:
		return true
	}
	return false
}

// FormAnswer is one questionnaire step the visitor went through before booking.
type FormAnswer struct {
	Question string `json:"question"`
	Answer   string `json:"answer"`
}

// Booking is a reserved start time. A zero StartTime marks a malformed record that never blocks.
type Booking struct {
	ID               string           `json:"id"`
	StartTime        time.Time        `json:"start_time"`
	DurationMinutes  int              `json:"duration_minutes"`
	RestMinutes      int              `json:"rest_minutes"`
	PlanID           string           `json:"plan_id"`
	PlanName         string           `json:"plan_name"`
	CustomerName     string           `json:"customer_name"`
	Contact          string           `json:"contact"`
	ContactType      ContactType      `json:"contact_type"`
	Attendees        int              `json:"attendees"`
	FormAnswers      []FormAnswer     `json:"form_answers"`
	IsRead           bool             `json:"is_read"`
	CompletionStatus CompletionStatus `json:"completion_status"`
	CreatedAt        time.Time        `json:"created_at"`
	UpdatedAt        time.Time        `json:"updated_at"`
}

// OccupiedEnd is the exclusive end of [StartTime, StartTime+duration+rest).
func (b Booking) OccupiedEnd() time.Time {
	return b.StartTime.Add(time.Duration(b.DurationMinutes+b.RestMinutes) * time.Minute)
}

func (b Booking) HasStart() bool {
	return !b.StartTime.IsZero()
}

// BookingFilter narrows admin booking listings. Zero values mean "no constraint".
type BookingFilter struct {
	From       time.Time
	To         time.Time
	UnreadOnly bool
	Status     CompletionStatus
	Limit      int
	Newest     bool
}

// BookingCounts feeds the admin dashboard badges.
type BookingCounts struct {
	Unread   int `json:"unread"`
	Pending  int `json:"pending"`
	Upcoming int `json:"upcoming"`
}
