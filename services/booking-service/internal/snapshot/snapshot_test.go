package snapshot

import (
	"context"
	"encoding/json"
	"errors"
	"io"
	"log/slog"
	"testing"
	"time"

	"github.com/62saybyetopain/new-reservation-system/services/booking-service/internal/model"
)

type countingStore struct {
	configLoads int
	bookings    []model.Booking
	overrides   []model.DayOverride
	schedule    model.WeeklySchedule
	plans       []model.Plan
	err         error
	onLoad      func()
}

func (s *countingStore) BookingsBetween(_ context.Context, from, to time.Time) ([]model.Booking, error) {
	var out []model.Booking
	for _, b := range s.bookings {
		if !b.StartTime.Before(from) && b.StartTime.Before(to) {
			out = append(out, b)
		}
	}
	return out, nil
}

func (s *countingStore) ListOverrides(context.Context, string, string) ([]model.DayOverride, error) {
	s.configLoads++
	if s.onLoad != nil {
		s.onLoad()
	}
	return s.overrides, s.err
}

func (s *countingStore) Schedule(context.Context) (model.WeeklySchedule, error) {
	return s.schedule, nil
}

func (s *countingStore) ListPlans(context.Context, bool) ([]model.Plan, error) {
	return s.plans, nil
}

type brokenCache struct{}

func (brokenCache) Get(context.Context) (Config, bool, error) {
	return Config{}, false, errors.New("down")
}
func (brokenCache) Generation(context.Context) (int64, error) { return 0, errors.New("down") }
func (brokenCache) Set(context.Context, Config) error         { return errors.New("down") }
func (brokenCache) Invalidate(context.Context) error          { return errors.New("down") }

func discard() *slog.Logger { return slog.New(slog.NewTextHandler(io.Discard, nil)) }

func fixture() *countingStore {
	return &countingStore{
		bookings: []model.Booking{
			{ID: "b1", StartTime: time.Date(2026, 8, 10, 10, 0, 0, 0, time.UTC), DurationMinutes: 60, RestMinutes: 15},
			{ID: "b2", StartTime: time.Date(2026, 8, 12, 10, 0, 0, 0, time.UTC), DurationMinutes: 60, RestMinutes: 15},
		},
		overrides: []model.DayOverride{{Date: "2026-08-10", Type: model.DayRest}},
		schedule:  model.WeeklySchedule{time.Sunday: {IsOpen: false}},
		plans:     []model.Plan{{ID: "half", Name: "Half", DurationMinutes: 60, RestMinutes: 15, Active: true}},
	}
}

func TestLoadUsesCacheForConfig(t *testing.T) {
	store := fixture()
	l := NewLoader(store, NewMemoryCache(time.Minute), discard())
	ctx := context.Background()

	from := time.Date(2026, 8, 10, 0, 0, 0, 0, time.UTC)
	snap, err := l.Load(ctx, from, from.AddDate(0, 0, 1))
	if err != nil {
		t.Fatalf("load: %v", err)
	}
	if len(snap.Bookings) != 1 || snap.Bookings[0].ID != "b1" {
		t.Fatalf("expected only b1 in range, got %+v", snap.Bookings)
	}
	if snap.Overrides["2026-08-10"].Type != model.DayRest {
		t.Fatalf("expected override keyed by date, got %+v", snap.Overrides)
	}

	if _, err := l.Load(ctx, from, from.AddDate(0, 0, 7)); err != nil {
		t.Fatalf("load: %v", err)
	}
	if store.configLoads != 1 {
		t.Fatalf("expected config to be loaded once, got %d", store.configLoads)
	}

	if err := l.Invalidate(ctx); err != nil {
		t.Fatalf("invalidate: %v", err)
	}
	if _, err := l.Plans(ctx); err != nil {
		t.Fatalf("plans: %v", err)
	}
	if store.configLoads != 2 {
		t.Fatalf("expected reload after invalidation, got %d", store.configLoads)
	}
}

func TestCacheFailureFallsBackToStore(t *testing.T) {
	store := fixture()
	l := NewLoader(store, brokenCache{}, discard())
	p, err := l.Plan(context.Background(), "half")
	if err != nil || p.ID != "half" {
		t.Fatalf("expected plan from store, got %+v (%v)", p, err)
	}
	if _, err := l.Plan(context.Background(), "missing"); !errors.Is(err, ErrPlanNotFound) {
		t.Fatalf("expected ErrPlanNotFound, got %v", err)
	}
}

func TestStoreErrorPropagates(t *testing.T) {
	store := fixture()
	store.err = errors.New("db down")
	l := NewLoader(store, nil, discard())
	if _, err := l.Load(context.Background(), time.Now(), time.Now()); err == nil {
		t.Fatalf("expected error")
	}
}

func TestInvalidationDuringLoadIsNotOverwritten(t *testing.T) {
	store := fixture()
	cache := NewMemoryCache(time.Minute)
	l := NewLoader(store, cache, discard())
	ctx := context.Background()

	// An admin write commits and invalidates while the first read is still in the store.
	store.onLoad = func() {
		store.onLoad = nil
		store.overrides = nil
		if err := l.Invalidate(ctx); err != nil {
			t.Fatalf("invalidate: %v", err)
		}
	}
	stale, err := l.Config(ctx)
	if err != nil {
		t.Fatalf("config: %v", err)
	}
	if len(stale.Overrides) != 1 {
		t.Fatalf("expected the racing read to see the old override, got %+v", stale.Overrides)
	}
	if _, ok, _ := cache.Get(ctx); ok {
		t.Fatalf("expected stale config to be kept out of the cache")
	}

	fresh, err := l.Config(ctx)
	if err != nil {
		t.Fatalf("config: %v", err)
	}
	if len(fresh.Overrides) != 0 || store.configLoads != 2 {
		t.Fatalf("expected a fresh load, got %+v after %d loads", fresh.Overrides, store.configLoads)
	}
	if _, ok, _ := cache.Get(ctx); !ok {
		t.Fatalf("expected the current generation to be cached")
	}
}

func TestMemoryCacheExpires(t *testing.T) {
	c := NewMemoryCache(time.Minute)
	now := time.Date(2026, 8, 1, 0, 0, 0, 0, time.UTC)
	c.now = func() time.Time { return now }
	_ = c.Set(context.Background(), Config{Plans: []model.Plan{{ID: "x"}}})
	if _, ok, _ := c.Get(context.Background()); !ok {
		t.Fatalf("expected hit")
	}
	now = now.Add(2 * time.Minute)
	if _, ok, _ := c.Get(context.Background()); ok {
		t.Fatalf("expected expiry")
	}
}

func TestConfigSurvivesJSON(t *testing.T) {
	cfg := Config{
		Overrides: map[string]model.DayOverride{"2026-08-10": {Date: "2026-08-10", Type: model.DayOpen, Slots: []model.TimeWindow{{Start: "09:00", End: "12:00"}}}},
		Schedule:  model.WeeklySchedule{time.Monday: {IsOpen: true, Slots: []model.TimeWindow{{Start: "09:00", End: "19:00"}}}},
	}
	raw, err := json.Marshal(cfg)
	if err != nil {
		t.Fatalf("marshal: %v", err)
	}
	var out Config
	if err := json.Unmarshal(raw, &out); err != nil {
		t.Fatalf("unmarshal: %v", err)
	}
	if out.Schedule[time.Monday].Slots[0].End != "19:00" || out.Overrides["2026-08-10"].Slots[0].Start != "09:00" {
		t.Fatalf("weekday-keyed schedule did not survive the cache encoding: %+v", out)
	}
}
