// Package admin manages the configuration the availability engine reads: the plan
// catalogue, per-date overrides and the default weekly schedule.
package admin

import (
	"context"
	"errors"
	"fmt"
	"log/slog"
	"strings"
	"time"

	"github.com/62saybyetopain/new-reservation-system/services/booking-service/internal/calendar"
	"github.com/62saybyetopain/new-reservation-system/services/booking-service/internal/model"
	"github.com/62saybyetopain/new-reservation-system/services/booking-service/internal/outbox"
	"github.com/62saybyetopain/new-reservation-system/services/booking-service/internal/storage"
	"github.com/google/uuid"
	"github.com/shopspring/decimal"
)

var (
	ErrNotFound     = errors.New("not found")
	ErrInvalidInput = errors.New("invalid input")
	ErrConflict     = errors.New("already exists")

	// errUnchanged aborts a write that turned out to have nothing to do.
	errUnchanged = errors.New("unchanged")
)

type Service struct {
	store       Store
	invalidator Invalidator
	logger      *slog.Logger
	now         func() time.Time
}

func NewService(store Store, invalidator Invalidator, logger *slog.Logger) *Service {
	return &Service{store: store, invalidator: invalidator, logger: logger, now: time.Now}
}

type PlanInput struct {
	ID              string
	Category        string
	Name            string
	Description     string
	DurationMinutes int
	RestMinutes     int
	Price           decimal.Decimal
	Active          *bool
}

func (in PlanInput) plan() (model.Plan, error) {
	p := model.Plan{
		ID:              strings.TrimSpace(in.ID),
		Category:        strings.TrimSpace(in.Category),
		Name:            strings.TrimSpace(in.Name),
		Description:     strings.TrimSpace(in.Description),
		DurationMinutes: in.DurationMinutes,
		RestMinutes:     in.RestMinutes,
		Price:           in.Price,
		Active:          in.Active == nil || *in.Active,
	}
	switch {
	case p.Name == "":
		return p, fmt.Errorf("%w: plan name is required", ErrInvalidInput)
	case !p.Valid():
		return p, fmt.Errorf("%w: duration must be positive and rest non-negative", ErrInvalidInput)
	case p.Price.IsNegative():
		return p, fmt.Errorf("%w: price must not be negative", ErrInvalidInput)
	}
	return p, nil
}

func (s *Service) ListPlans(ctx context.Context) ([]model.Plan, error) {
	plans, err := s.store.ListPlans(ctx, false)
	if err != nil {
		return nil, fmt.Errorf("list plans: %w", err)
	}
	return plans, nil
}

func (s *Service) CreatePlan(ctx context.Context, in PlanInput) (model.Plan, error) {
	p, err := in.plan()
	if err != nil {
		return model.Plan{}, err
	}
	if p.ID == "" {
		p.ID = uuid.NewString()
	}
	p.CreatedAt = s.now().UTC()
	p.UpdatedAt = p.CreatedAt

	err = s.write(ctx, "create plan", change{Kind: "plan", Key: p.ID, Action: "upsert"}, func(tx Tx) error {
		return tx.InsertPlan(ctx, p)
	})
	return p, err
}

func (s *Service) UpdatePlan(ctx context.Context, in PlanInput) (model.Plan, error) {
	p, err := in.plan()
	if err != nil {
		return model.Plan{}, err
	}
	if p.ID == "" {
		return model.Plan{}, fmt.Errorf("%w: plan id is required", ErrInvalidInput)
	}
	var updated model.Plan
	err = s.write(ctx, "update plan", change{Kind: "plan", Key: p.ID, Action: "upsert"}, func(tx Tx) error {
		if err := tx.UpdatePlan(ctx, p); err != nil {
			return err
		}
		var err error
		updated, err = tx.GetPlan(ctx, p.ID)
		return err
	})
	return updated, err
}

// DeletePlan removes a plan from the catalogue. Existing bookings keep their copied terms.
func (s *Service) DeletePlan(ctx context.Context, id string) error {
	id = strings.TrimSpace(id)
	if id == "" {
		return fmt.Errorf("%w: plan id is required", ErrInvalidInput)
	}
	return s.write(ctx, "delete plan", change{Kind: "plan", Key: id, Action: "delete"}, func(tx Tx) error {
		return tx.DeletePlan(ctx, id)
	})
}

func (s *Service) ListOverrides(ctx context.Context, from, to string) ([]model.DayOverride, error) {
	for _, key := range []string{from, to} {
		if key == "" {
			continue
		}
		if _, err := calendar.ParseDate(key, time.UTC); err != nil {
			return nil, fmt.Errorf("%w: %v", ErrInvalidInput, err)
		}
	}
	out, err := s.store.ListOverrides(ctx, from, to)
	if err != nil {
		return nil, fmt.Errorf("list overrides: %w", err)
	}
	return out, nil
}

func (s *Service) PutOverride(ctx context.Context, o model.DayOverride) (model.DayOverride, error) {
	d, err := calendar.ParseDate(o.Date, time.UTC)
	if err != nil {
		return model.DayOverride{}, fmt.Errorf("%w: %v", ErrInvalidInput, err)
	}
	o.Date = calendar.DateKey(d)
	if err := o.Validate(); err != nil {
		return model.DayOverride{}, fmt.Errorf("%w: %v", ErrInvalidInput, err)
	}
	if o.Type == model.DayRest {
		o.Slots = nil
	}
	o.UpdatedAt = s.now().UTC()

	err = s.write(ctx, "put override", change{Kind: "override", Key: o.Date, Action: "upsert"}, func(tx Tx) error {
		return tx.UpsertOverride(ctx, o)
	})
	return o, err
}

func (s *Service) DeleteOverride(ctx context.Context, date string) error {
	d, err := calendar.ParseDate(date, time.UTC)
	if err != nil {
		return fmt.Errorf("%w: %v", ErrInvalidInput, err)
	}
	key := calendar.DateKey(d)
	return s.write(ctx, "delete override", change{Kind: "override", Key: key, Action: "delete"}, func(tx Tx) error {
		return tx.DeleteOverride(ctx, key)
	})
}

// PruneOverrides deletes overrides for dates before the given day and reports how many went.
func (s *Service) PruneOverrides(ctx context.Context, before time.Time) (int64, error) {
	key := calendar.DateKey(before)
	var n int64
	err := s.write(ctx, "prune overrides", change{Kind: "override", Key: key, Action: "prune"}, func(tx Tx) error {
		var err error
		if n, err = tx.PruneOverrides(ctx, key); err == nil && n == 0 {
			return errUnchanged
		}
		return err
	})
	return n, err
}

func (s *Service) Schedule(ctx context.Context) (model.WeeklySchedule, error) {
	sched, err := s.store.Schedule(ctx)
	if err != nil {
		return nil, fmt.Errorf("get schedule: %w", err)
	}
	return sched, nil
}

// PutSchedule replaces the weekly schedule. An empty schedule restores the 09:00-22:00 fallback.
func (s *Service) PutSchedule(ctx context.Context, sched model.WeeklySchedule) error {
	if err := sched.Validate(); err != nil {
		return fmt.Errorf("%w: %v", ErrInvalidInput, err)
	}
	normalized := make(model.WeeklySchedule, len(sched))
	for day, entry := range sched {
		if !entry.IsOpen {
			entry.Slots = nil
		}
		normalized[day] = entry
	}
	return s.write(ctx, "put schedule", change{Kind: "schedule", Key: "weekly", Action: "upsert"}, func(tx Tx) error {
		return tx.ReplaceSchedule(ctx, normalized)
	})
}

type change struct {
	Kind   string `json:"kind"`
	Key    string `json:"key"`
	Action string `json:"action"`
}

// write runs fn under the config lock, records a change event and invalidates caches after commit.
func (s *Service) write(ctx context.Context, op string, c change, fn func(Tx) error) error {
	err := s.store.InTx(ctx, func(tx Tx) error {
		if err := tx.LockConfig(ctx); err != nil {
			return err
		}
		if err := fn(tx); err != nil {
			return err
		}
		evt, err := outbox.NewEvent(outbox.AggregateAvailability, outbox.AvailabilityAggregateKey, outbox.TypeAvailabilityChanged, c)
		if err != nil {
			return err
		}
		return tx.Enqueue(ctx, evt)
	})
	switch {
	case err == nil:
	case errors.Is(err, errUnchanged):
		return nil
	case errors.Is(err, storage.ErrNotFound):
		return fmt.Errorf("%s %s: %w", op, c.Key, ErrNotFound)
	case storage.IsUniqueViolation(err):
		return fmt.Errorf("%s %s: %w", op, c.Key, ErrConflict)
	default:
		return fmt.Errorf("%s: %w", op, err)
	}

	s.logger.Info("availability config changed", "kind", c.Kind, "key", c.Key, "action", c.Action)
	s.invalidate(ctx)
	return nil
}

func (s *Service) invalidate(ctx context.Context) {
	if s.invalidator == nil {
		return
	}
	if err := s.invalidator.Invalidate(ctx); err != nil {
		s.logger.Warn("config cache invalidation failed", "err", err)
	}
}
