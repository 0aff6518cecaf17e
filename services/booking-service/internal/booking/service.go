// Package booking is the transactional boundary around the availability engine.
// Every write re-reads the affected day under a per-day lock and re-runs the
// slot predicate before committing, so two clients can never hold overlapping time.
package booking

import (
	"context"
	"errors"
	"fmt"
	"log/slog"
	"slices"
	"strings"
	"time"

	"github.com/62saybyetopain/new-reservation-system/services/booking-service/internal/availability"
	"github.com/62saybyetopain/new-reservation-system/services/booking-service/internal/calendar"
	"github.com/62saybyetopain/new-reservation-system/services/booking-service/internal/model"
	"github.com/62saybyetopain/new-reservation-system/services/booking-service/internal/outbox"
	"github.com/62saybyetopain/new-reservation-system/services/booking-service/internal/storage"
	"github.com/google/uuid"
)

var (
	// ErrSlotTaken means the slot was not bookable when the write was attempted.
	ErrSlotTaken    = errors.New("slot is no longer available")
	ErrNotFound     = errors.New("booking not found")
	ErrPlanNotFound = errors.New("plan not found")
	ErrInvalidInput = errors.New("invalid input")
	// ErrBusy means a concurrent write held the same rows; the request can be retried.
	ErrBusy = errors.New("booking is busy, retry")
)

const cancelAttempts = 2

type Service struct {
	store  Store
	loc    *time.Location
	now    func() time.Time
	logger *slog.Logger
}

type Option func(*Service)

// WithClock replaces time.Now, mainly for tests.
func WithClock(now func() time.Time) Option {
	return func(s *Service) { s.now = now }
}

func NewService(store Store, loc *time.Location, logger *slog.Logger, opts ...Option) *Service {
	if loc == nil {
		loc = time.UTC
	}
	s := &Service{store: store, loc: loc, now: time.Now, logger: logger}
	for _, opt := range opts {
		opt(s)
	}
	return s
}

type CreateRequest struct {
	PlanID         string
	StartTime      time.Time
	CustomerName   string
	Contact        string
	ContactType    model.ContactType
	Attendees      int
	FormAnswers    []model.FormAnswer
	IdempotencyKey string
}

type CreateResult struct {
	Booking model.Booking
	// Replayed is set when the idempotency key had already produced this booking.
	Replayed bool
}

func (s *Service) Create(ctx context.Context, req CreateRequest) (CreateResult, error) {
	req, err := s.normalizeCreate(req)
	if err != nil {
		return CreateResult{}, err
	}

	var res CreateResult
	err = s.store.InTx(ctx, func(tx Tx) error {
		if req.IdempotencyKey != "" {
			existingID, err := tx.ClaimIdempotencyKey(ctx, req.IdempotencyKey)
			if err != nil {
				return err
			}
			if existingID != "" {
				b, err := tx.BookingForUpdate(ctx, existingID)
				if err != nil {
					return err
				}
				res = CreateResult{Booking: b, Replayed: true}
				return nil
			}
		}

		if err := tx.LockDay(ctx, calendar.DateKey(req.StartTime)); err != nil {
			return err
		}

		plan, err := tx.GetPlan(ctx, req.PlanID)
		if errors.Is(err, storage.ErrNotFound) || (err == nil && !plan.Active) {
			return ErrPlanNotFound
		}
		if err != nil {
			return err
		}

		snap, err := s.daySnapshot(ctx, tx, req.StartTime)
		if err != nil {
			return err
		}
		if !availability.IsSlotAvailable(req.StartTime, &plan, snap, s.now()) {
			return ErrSlotTaken
		}

		now := s.now().UTC()
		b := model.Booking{
			ID:               uuid.NewString(),
			StartTime:        req.StartTime,
			DurationMinutes:  plan.DurationMinutes,
			RestMinutes:      plan.RestMinutes,
			PlanID:           plan.ID,
			PlanName:         plan.Name,
			CustomerName:     req.CustomerName,
			Contact:          req.Contact,
			ContactType:      req.ContactType,
			Attendees:        req.Attendees,
			FormAnswers:      req.FormAnswers,
			CompletionStatus: model.CompletionPending,
			CreatedAt:        now,
			UpdatedAt:        now,
		}
		if err := tx.InsertBooking(ctx, b); err != nil {
			return err
		}
		if req.IdempotencyKey != "" {
			if err := tx.SaveIdempotencyKey(ctx, req.IdempotencyKey, b.ID); err != nil {
				return err
			}
		}
		if err := s.enqueue(ctx, tx, outbox.TypeBookingCreated, b, time.Time{}); err != nil {
			return err
		}
		res = CreateResult{Booking: b}
		return nil
	})
	if err != nil {
		return CreateResult{}, s.txError("create booking", err)
	}
	if !res.Replayed {
		s.logger.Info("booking created", "booking_id", res.Booking.ID, "plan_id", res.Booking.PlanID,
			"start_time", res.Booking.StartTime.Format(time.RFC3339))
	}
	return res, nil
}

func (s *Service) normalizeCreate(req CreateRequest) (CreateRequest, error) {
	req.PlanID = strings.TrimSpace(req.PlanID)
	req.CustomerName = strings.TrimSpace(req.CustomerName)
	req.Contact = strings.TrimSpace(req.Contact)
	req.IdempotencyKey = strings.TrimSpace(req.IdempotencyKey)
	if req.ContactType == "" {
		req.ContactType = model.ContactPhone
	}
	if req.Attendees <= 0 {
		req.Attendees = 1
	}

	switch {
	case req.PlanID == "":
		return req, fmt.Errorf("%w: plan_id is required", ErrInvalidInput)
	case req.CustomerName == "" || req.Contact == "":
		return req, fmt.Errorf("%w: name and contact are required", ErrInvalidInput)
	case !req.ContactType.Valid():
		return req, fmt.Errorf("%w: unknown contact type %q", ErrInvalidInput, req.ContactType)
	}
	start, err := s.slotTime(req.StartTime)
	if err != nil {
		return req, err
	}
	req.StartTime = start
	return req, nil
}

// slotTime moves t into the business zone and checks it sits on the slot grid.
func (s *Service) slotTime(t time.Time) (time.Time, error) {
	if t.IsZero() {
		return time.Time{}, fmt.Errorf("%w: start_time is required", ErrInvalidInput)
	}
	t = t.In(s.loc)
	if !availability.OnGrid(t) {
		return time.Time{}, fmt.Errorf("%w: start_time must fall on a %d-minute boundary", ErrInvalidInput, int(availability.SlotInterval/time.Minute))
	}
	return t, nil
}

// Reschedule moves a booking to newStart in one transaction. The booking keeps its id and
// admin flags; on any failure it stays where it was.
func (s *Service) Reschedule(ctx context.Context, id string, newStart time.Time) (model.Booking, error) {
	id = strings.TrimSpace(id)
	if id == "" {
		return model.Booking{}, fmt.Errorf("%w: booking id is required", ErrInvalidInput)
	}
	newStart, err := s.slotTime(newStart)
	if err != nil {
		return model.Booking{}, err
	}

	var moved model.Booking
	var previous time.Time
	err = s.store.InTx(ctx, func(tx Tx) error {
		b, err := tx.BookingForUpdate(ctx, id)
		if err != nil {
			return err
		}
		if b.StartTime.Equal(newStart) {
			moved = b
			return nil
		}

		days := []string{calendar.DateKey(newStart)}
		if b.HasStart() {
			days = append(days, calendar.DateKey(b.StartTime.In(s.loc)))
		}
		slices.Sort(days)
		for _, day := range slices.Compact(days) {
			if err := tx.LockDay(ctx, day); err != nil {
				return err
			}
		}

		snap, err := s.daySnapshot(ctx, tx, newStart)
		if err != nil {
			return err
		}
		plan := planOf(b)
		if !availability.IsSlotAvailable(newStart, &plan, snap.Without(b.ID), s.now()) {
			return ErrSlotTaken
		}

		previous = b.StartTime
		b.StartTime = newStart
		if err := tx.MoveBooking(ctx, b.ID, b.StartTime, b.OccupiedEnd()); err != nil {
			return err
		}
		b.UpdatedAt = s.now().UTC()
		if err := s.enqueue(ctx, tx, outbox.TypeBookingRescheduled, b, previous); err != nil {
			return err
		}
		moved = b
		return nil
	})
	if err != nil {
		return model.Booking{}, s.txError("reschedule booking", err)
	}
	if !previous.IsZero() {
		s.logger.Info("booking rescheduled", "booking_id", id,
			"from", previous.In(s.loc).Format(time.RFC3339), "to", newStart.Format(time.RFC3339))
	}
	return moved, nil
}

func (s *Service) Cancel(ctx context.Context, id string) error {
	id = strings.TrimSpace(id)
	if id == "" {
		return fmt.Errorf("%w: booking id is required", ErrInvalidInput)
	}
	var err error
	for attempt := 1; attempt <= cancelAttempts; attempt++ {
		err = s.store.InTx(ctx, func(tx Tx) error {
			// Key rows first: a replay locks its key and then the booking, and the delete cascades to the key.
			if err := tx.LockIdempotencyKeys(ctx, id); err != nil {
				return err
			}
			b, err := tx.BookingForUpdate(ctx, id)
			if err != nil {
				return err
			}
			if b.HasStart() {
				if err := tx.LockDay(ctx, calendar.DateKey(b.StartTime.In(s.loc))); err != nil {
					return err
				}
			}
			if err := tx.DeleteBooking(ctx, id); err != nil {
				return err
			}
			return s.enqueue(ctx, tx, outbox.TypeBookingCancelled, b, time.Time{})
		})
		if err == nil || !storage.IsConflict(err) {
			break
		}
		s.logger.Warn("booking cancel lost a race", "booking_id", id, "attempt", attempt, "err", err)
	}
	if storage.IsConflict(err) {
		return fmt.Errorf("cancel booking: %w", ErrBusy)
	}
	if err != nil {
		return s.txError("cancel booking", err)
	}
	s.logger.Info("booking cancelled", "booking_id", id)
	return nil
}

// MarkRead flags bookings as seen by the administrator and returns how many changed.
func (s *Service) MarkRead(ctx context.Context, ids []string) (int64, error) {
	clean := make([]string, 0, len(ids))
	for _, id := range ids {
		if id = strings.TrimSpace(id); id != "" {
			clean = append(clean, id)
		}
	}
	slices.Sort(clean)
	clean = slices.Compact(clean)
	if len(clean) == 0 {
		return 0, fmt.Errorf("%w: at least one booking id is required", ErrInvalidInput)
	}

	var n int64
	err := s.store.InTx(ctx, func(tx Tx) error {
		var err error
		n, err = tx.MarkRead(ctx, clean)
		return err
	})
	if err != nil {
		return 0, s.txError("mark bookings read", err)
	}
	return n, nil
}

func (s *Service) SetCompletion(ctx context.Context, id string, status model.CompletionStatus) error {
	id = strings.TrimSpace(id)
	if id == "" || !status.Valid() {
		return fmt.Errorf("%w: booking id and a valid completion status are required", ErrInvalidInput)
	}
	err := s.store.InTx(ctx, func(tx Tx) error {
		return tx.SetCompletion(ctx, id, status)
	})
	if err != nil {
		return s.txError("set completion", err)
	}
	return nil
}

func (s *Service) Get(ctx context.Context, id string) (model.Booking, error) {
	b, err := s.store.GetBooking(ctx, strings.TrimSpace(id))
	if err != nil {
		return model.Booking{}, s.txError("get booking", err)
	}
	return b, nil
}

func (s *Service) List(ctx context.Context, f model.BookingFilter) ([]model.Booking, error) {
	if f.Status != "" && !f.Status.Valid() {
		return nil, fmt.Errorf("%w: unknown completion status %q", ErrInvalidInput, f.Status)
	}
	out, err := s.store.ListBookings(ctx, f)
	if err != nil {
		return nil, fmt.Errorf("list bookings: %w", err)
	}
	return out, nil
}

// Counts returns the dashboard counters; upcoming counts pending bookings from today on.
func (s *Service) Counts(ctx context.Context) (model.BookingCounts, error) {
	c, err := s.store.CountBookings(ctx, calendar.Today(s.now().In(s.loc)))
	if err != nil {
		return model.BookingCounts{}, fmt.Errorf("count bookings: %w", err)
	}
	return c, nil
}

func (s *Service) daySnapshot(ctx context.Context, tx Tx, day time.Time) (availability.Snapshot, error) {
	from := calendar.StartOfDay(day)
	bookings, err := tx.BookingsBetween(ctx, from, calendar.AddDays(from, 1))
	if err != nil {
		return availability.Snapshot{}, err
	}
	schedule, err := tx.Schedule(ctx)
	if err != nil {
		return availability.Snapshot{}, err
	}
	snap := availability.Snapshot{Bookings: bookings, Schedule: schedule}

	key := calendar.DateKey(day)
	override, ok, err := tx.GetOverride(ctx, key)
	if err != nil {
		return availability.Snapshot{}, err
	}
	if ok {
		snap.Overrides = map[string]model.DayOverride{key: override}
	}
	return snap, nil
}

// planOf rebuilds the plan terms a booking was made under.
func planOf(b model.Booking) model.Plan {
	return model.Plan{
		ID:              b.PlanID,
		Name:            b.PlanName,
		DurationMinutes: b.DurationMinutes,
		RestMinutes:     b.RestMinutes,
		Active:          true,
	}
}

type bookingEvent struct {
	BookingID         string            `json:"booking_id"`
	PlanID            string            `json:"plan_id"`
	PlanName          string            `json:"plan_name"`
	StartTime         string            `json:"start_time"`
	EndTime           string            `json:"end_time"`
	PreviousStartTime string            `json:"previous_start_time,omitempty"`
	DurationMinutes   int               `json:"duration_minutes"`
	RestMinutes       int               `json:"rest_minutes"`
	CustomerName      string            `json:"customer_name"`
	Contact           string            `json:"contact"`
	ContactType       model.ContactType `json:"contact_type"`
	Attendees         int               `json:"attendees"`
}

func (s *Service) enqueue(ctx context.Context, tx Tx, eventType string, b model.Booking, previous time.Time) error {
	payload := bookingEvent{
		BookingID:       b.ID,
		PlanID:          b.PlanID,
		PlanName:        b.PlanName,
		StartTime:       b.StartTime.In(s.loc).Format(time.RFC3339),
		EndTime:         b.StartTime.Add(time.Duration(b.DurationMinutes) * time.Minute).In(s.loc).Format(time.RFC3339),
		DurationMinutes: b.DurationMinutes,
		RestMinutes:     b.RestMinutes,
		CustomerName:    b.CustomerName,
		Contact:         b.Contact,
		ContactType:     b.ContactType,
		Attendees:       b.Attendees,
	}
	if !previous.IsZero() {
		payload.PreviousStartTime = previous.In(s.loc).Format(time.RFC3339)
	}
	evt, err := outbox.NewEvent(outbox.AggregateBooking, b.ID, eventType, payload)
	if err != nil {
		return err
	}
	return tx.Enqueue(ctx, evt)
}

// txError wraps err for op, folding storage conditions into the package sentinels.
func (s *Service) txError(op string, err error) error {
	switch {
	case errors.Is(err, ErrSlotTaken), errors.Is(err, ErrPlanNotFound), errors.Is(err, ErrInvalidInput), errors.Is(err, ErrNotFound):
		return fmt.Errorf("%s: %w", op, err)
	case errors.Is(err, storage.ErrNotFound):
		return fmt.Errorf("%s: %w", op, ErrNotFound)
	case storage.IsConflict(err):
		s.logger.Warn("booking write lost a race", "op", op, "err", err)
		return fmt.Errorf("%s: %w", op, ErrSlotTaken)
	default:
		return fmt.Errorf("%s: %w", op, err)
	}
}
