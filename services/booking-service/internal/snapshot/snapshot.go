// Package snapshot assembles the immutable availability.Snapshot the engine evaluates.
// Bookings are always read fresh; the rarely changing configuration (overrides,
// weekly schedule, plan catalogue) is served from a cache that admin writes invalidate.
package snapshot

import (
	"context"
	"errors"
	"fmt"
	"log/slog"
	"time"

	"github.com/62saybyetopain/new-reservation-system/services/booking-service/internal/availability"
	"github.com/62saybyetopain/new-reservation-system/services/booking-service/internal/model"
)

// ErrPlanNotFound is returned by Plan for unknown or inactive plans.
var ErrPlanNotFound = errors.New("plan not found")

// Store reads the source of truth.
type Store interface {
	BookingsBetween(ctx context.Context, from, to time.Time) ([]model.Booking, error)
	ListOverrides(ctx context.Context, from, to string) ([]model.DayOverride, error)
	Schedule(ctx context.Context) (model.WeeklySchedule, error)
	ListPlans(ctx context.Context, activeOnly bool) ([]model.Plan, error)
}

// Config is the cached, booking-independent part of a snapshot.
type Config struct {
	Overrides map[string]model.DayOverride `json:"overrides"`
	Schedule  model.WeeklySchedule         `json:"schedule"`
	Plans     []model.Plan                 `json:"plans"`
	LoadedAt  time.Time                    `json:"loaded_at"`
	// Generation is the cache generation observed before the store was read.
	Generation int64 `json:"generation"`
}

// Cache stores Config. A miss is (Config{}, false, nil).
//
// Every Invalidate bumps the generation, and Set drops a Config whose Generation is
// no longer current, so a read that raced an admin write cannot repopulate the cache
// with what it saw before the commit.
type Cache interface {
	Get(ctx context.Context) (Config, bool, error)
	Generation(ctx context.Context) (int64, error)
	Set(ctx context.Context, cfg Config) error
	Invalidate(ctx context.Context) error
}

type Loader struct {
	store  Store
	cache  Cache
	logger *slog.Logger
}

// NewLoader builds a Loader. A nil cache reads configuration from the store every time.
func NewLoader(store Store, cache Cache, logger *slog.Logger) *Loader {
	return &Loader{store: store, cache: cache, logger: logger}
}

// Load returns a snapshot holding the bookings that start in [from, to) and the full configuration.
func (l *Loader) Load(ctx context.Context, from, to time.Time) (availability.Snapshot, error) {
	cfg, err := l.Config(ctx)
	if err != nil {
		return availability.Snapshot{}, err
	}
	bookings, err := l.store.BookingsBetween(ctx, from, to)
	if err != nil {
		return availability.Snapshot{}, fmt.Errorf("load bookings: %w", err)
	}
	return availability.Snapshot{
		Bookings:  bookings,
		Overrides: cfg.Overrides,
		Schedule:  cfg.Schedule,
	}, nil
}

func (l *Loader) Plans(ctx context.Context) ([]model.Plan, error) {
	cfg, err := l.Config(ctx)
	if err != nil {
		return nil, err
	}
	return cfg.Plans, nil
}

func (l *Loader) Plan(ctx context.Context, id string) (model.Plan, error) {
	plans, err := l.Plans(ctx)
	if err != nil {
		return model.Plan{}, err
	}
	for _, p := range plans {
		if p.ID == id {
			return p, nil
		}
	}
	return model.Plan{}, ErrPlanNotFound
}

// Config serves the cached configuration, falling back to the store. Cache failures are
// logged and never fail the read.
func (l *Loader) Config(ctx context.Context) (Config, error) {
	if l.cache != nil {
		cfg, ok, err := l.cache.Get(ctx)
		if err != nil {
			l.logger.Warn("snapshot cache read failed", "err", err)
		} else if ok {
			return cfg, nil
		}
	}

	cacheable := false
	var gen int64
	if l.cache != nil {
		var err error
		if gen, err = l.cache.Generation(ctx); err != nil {
			l.logger.Warn("snapshot cache generation read failed", "err", err)
		} else {
			cacheable = true
		}
	}

	cfg, err := l.loadConfig(ctx)
	if err != nil {
		return Config{}, err
	}
	cfg.Generation = gen
	if cacheable {
		if err := l.cache.Set(ctx, cfg); err != nil {
			l.logger.Warn("snapshot cache write failed", "err", err)
		}
	}
	return cfg, nil
}

// Invalidate drops the cached configuration.
func (l *Loader) Invalidate(ctx context.Context) error {
	if l.cache == nil {
		return nil
	}
	return l.cache.Invalidate(ctx)
}

func (l *Loader) loadConfig(ctx context.Context) (Config, error) {
	overrides, err := l.store.ListOverrides(ctx, "", "")
	if err != nil {
		return Config{}, fmt.Errorf("load overrides: %w", err)
	}
	schedule, err := l.store.Schedule(ctx)
	if err != nil {
		return Config{}, fmt.Errorf("load schedule: %w", err)
	}
	plans, err := l.store.ListPlans(ctx, true)
	if err != nil {
		return Config{}, fmt.Errorf("load plans: %w", err)
	}

	cfg := Config{
		Overrides: make(map[string]model.DayOverride, len(overrides)),
		Schedule:  schedule,
		Plans:     plans,
		LoadedAt:  time.Now().UTC(),
	}
	for _, o := range overrides {
		cfg.Overrides[o.Date] = o
	}
	return cfg, nil
}
