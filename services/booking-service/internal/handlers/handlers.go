package handlers

import (
	"context"
	"errors"
	"fmt"
	"log/slog"
	"net/http"
	"strings"
	"time"

	"github.com/62saybyetopain/new-reservation-system/libs/httpx"
	"github.com/62saybyetopain/new-reservation-system/services/booking-service/internal/admin"
	"github.com/62saybyetopain/new-reservation-system/services/booking-service/internal/availability"
	"github.com/62saybyetopain/new-reservation-system/services/booking-service/internal/booking"
	"github.com/62saybyetopain/new-reservation-system/services/booking-service/internal/model"
	"github.com/62saybyetopain/new-reservation-system/services/booking-service/internal/snapshot"
	"github.com/go-playground/validator/v10"
)

var validate = validator.New()

// Bookings is the booking lifecycle the handlers drive.
type Bookings interface {
	Create(ctx context.Context, req booking.CreateRequest) (booking.CreateResult, error)
	Reschedule(ctx context.Context, id string, newStart time.Time) (model.Booking, error)
	Cancel(ctx context.Context, id string) error
	MarkRead(ctx context.Context, ids []string) (int64, error)
	SetCompletion(ctx context.Context, id string, status model.CompletionStatus) error
	Get(ctx context.Context, id string) (model.Booking, error)
	List(ctx context.Context, f model.BookingFilter) ([]model.Booking, error)
	Counts(ctx context.Context) (model.BookingCounts, error)
}

// Snapshots serves read-only availability input.
type Snapshots interface {
	Load(ctx context.Context, from, to time.Time) (availability.Snapshot, error)
	Plans(ctx context.Context) ([]model.Plan, error)
	Plan(ctx context.Context, id string) (model.Plan, error)
}

type Config interface {
	ListPlans(ctx context.Context) ([]model.Plan, error)
	CreatePlan(ctx context.Context, in admin.PlanInput) (model.Plan, error)
	UpdatePlan(ctx context.Context, in admin.PlanInput) (model.Plan, error)
	DeletePlan(ctx context.Context, id string) error
	ListOverrides(ctx context.Context, from, to string) ([]model.DayOverride, error)
	PutOverride(ctx context.Context, o model.DayOverride) (model.DayOverride, error)
	DeleteOverride(ctx context.Context, date string) error
	Schedule(ctx context.Context) (model.WeeklySchedule, error)
	PutSchedule(ctx context.Context, s model.WeeklySchedule) error
}

// writeServiceError maps domain errors onto status codes; anything unknown is a 500.
func writeServiceError(w http.ResponseWriter, logger *slog.Logger, op string, err error) {
	switch {
	case errors.Is(err, booking.ErrSlotTaken):
		httpx.WriteError(w, http.StatusConflict, "time slot is no longer available")
	case errors.Is(err, admin.ErrConflict):
		httpx.WriteError(w, http.StatusConflict, err.Error())
	case errors.Is(err, booking.ErrBusy):
		w.Header().Set("Retry-After", "1")
		httpx.WriteError(w, http.StatusServiceUnavailable, "booking is busy, retry")
	case errors.Is(err, booking.ErrPlanNotFound), errors.Is(err, snapshot.ErrPlanNotFound):
		httpx.WriteError(w, http.StatusNotFound, "plan not found")
	case errors.Is(err, booking.ErrNotFound), errors.Is(err, admin.ErrNotFound):
		httpx.WriteError(w, http.StatusNotFound, "not found")
	case errors.Is(err, booking.ErrInvalidInput), errors.Is(err, admin.ErrInvalidInput):
		httpx.WriteError(w, http.StatusBadRequest, err.Error())
	case errors.Is(err, context.DeadlineExceeded):
		httpx.WriteError(w, http.StatusGatewayTimeout, "request timed out")
	default:
		logger.Error(op+" failed", "err", err)
		httpx.WriteError(w, http.StatusInternalServerError, "internal error")
	}
}

// decodeAndValidate reads a JSON body and runs its validate tags.
func decodeAndValidate(w http.ResponseWriter, r *http.Request, dst any) bool {
	if err := httpx.DecodeJSON(r, dst); err != nil {
		httpx.WriteError(w, http.StatusBadRequest, "invalid json body")
		return false
	}
	return validateStruct(w, dst)
}

func validateStruct(w http.ResponseWriter, v any) bool {
	if err := validate.Struct(v); err != nil {
		httpx.WriteError(w, http.StatusBadRequest, validationMessage(err))
		return false
	}
	return true
}

func validationMessage(err error) string {
	var verrs validator.ValidationErrors
	if !errors.As(err, &verrs) {
		return "invalid request"
	}
	parts := make([]string, 0, len(verrs))
	for _, fe := range verrs {
		parts = append(parts, fmt.Sprintf("%s failed %s", strings.ToLower(fe.Field()), fe.Tag()))
	}
	return strings.Join(parts, "; ")
}

type bookingView struct {
	ID               string                 `json:"id"`
	PlanID           string                 `json:"plan_id"`
	PlanName         string                 `json:"plan_name"`
	StartTime        string                 `json:"start_time"`
	EndTime          string                 `json:"end_time"`
	OccupiedUntil    string                 `json:"occupied_until"`
	DurationMinutes  int                    `json:"duration_minutes"`
	RestMinutes      int                    `json:"rest_minutes"`
	CustomerName     string                 `json:"customer_name"`
	Contact          string                 `json:"contact"`
	ContactType      model.ContactType      `json:"contact_type"`
	Attendees        int                    `json:"attendees"`
	FormAnswers      []model.FormAnswer     `json:"form_answers,omitempty"`
	IsRead           bool                   `json:"is_read"`
	CompletionStatus model.CompletionStatus `json:"completion_status"`
	CreatedAt        string                 `json:"created_at"`
}

func viewBooking(b model.Booking, loc *time.Location) bookingView {
	start := b.StartTime.In(loc)
	return bookingView{
		ID:               b.ID,
		PlanID:           b.PlanID,
		PlanName:         b.PlanName,
		StartTime:        start.Format(time.RFC3339),
		EndTime:          start.Add(time.Duration(b.DurationMinutes) * time.Minute).Format(time.RFC3339),
		OccupiedUntil:    b.OccupiedEnd().In(loc).Format(time.RFC3339),
		DurationMinutes:  b.DurationMinutes,
		RestMinutes:      b.RestMinutes,
		CustomerName:     b.CustomerName,
		Contact:          b.Contact,
		ContactType:      b.ContactType,
		Attendees:        b.Attendees,
		FormAnswers:      b.FormAnswers,
		IsRead:           b.IsRead,
		CompletionStatus: b.CompletionStatus,
		CreatedAt:        b.CreatedAt.In(loc).Format(time.RFC3339),
	}
}
