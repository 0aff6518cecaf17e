package admin

import (
	"context"
	"fmt"
	"time"

	"github.com/62saybyetopain/new-reservation-system/services/booking-service/internal/model"
	"github.com/shopspring/decimal"
)

// DefaultPlans is the starter catalogue installed into an empty database.
func DefaultPlans() []model.Plan {
	return []model.Plan{
		{ID: "rec_experience_10", Category: "experience", Name: "Experience (10 min)", Description: "A quick first session to feel the initial relief.", DurationMinutes: 10, RestMinutes: 5, Price: decimal.NewFromInt(300), Active: true},
		{ID: "rec_experience_30", Category: "experience", Name: "Experience (30 min)", Description: "A basic session focused on a single area.", DurationMinutes: 30, RestMinutes: 10, Price: decimal.NewFromInt(800), Active: true},
		{ID: "rec_half_body", Category: "half_body", Name: "Systematic half-body (60 min)", Description: "Structured work on the upper or lower body.", DurationMinutes: 60, RestMinutes: 15, Price: decimal.NewFromInt(1500), Active: true},
		{ID: "rec_full_body", Category: "full_body", Name: "Complete full-body (120 min)", Description: "Head to toe, a full deep session.", DurationMinutes: 120, RestMinutes: 20, Price: decimal.NewFromInt(2800), Active: true},
	}
}

// DefaultSchedule opens Monday to Saturday 09:00-19:00 and rests on Sunday.
func DefaultSchedule() model.WeeklySchedule {
	s := model.WeeklySchedule{time.Sunday: {IsOpen: false}}
	for d := time.Monday; d <= time.Saturday; d++ {
		s[d] = model.WeekdaySchedule{IsOpen: true, Slots: []model.TimeWindow{{Start: "09:00", End: "19:00"}}}
	}
	return s
}

// Seed installs the default catalogue and schedule when no plan exists yet.
// It reports whether anything was written.
func (s *Service) Seed(ctx context.Context) (bool, error) {
	seeded := false
	err := s.write(ctx, "seed defaults", change{Kind: "seed", Key: "defaults", Action: "seed"}, func(tx Tx) error {
		n, err := tx.CountPlans(ctx)
		if err != nil {
			return err
		}
		if n > 0 {
			return errUnchanged
		}
		now := s.now().UTC()
		for _, p := range DefaultPlans() {
			p.CreatedAt, p.UpdatedAt = now, now
			if err := tx.InsertPlan(ctx, p); err != nil {
				return fmt.Errorf("seed plan %s: %w", p.ID, err)
			}
		}
		sched, err := tx.Schedule(ctx)
		if err != nil {
			return err
		}
		if len(sched) == 0 {
			if err := tx.ReplaceSchedule(ctx, DefaultSchedule()); err != nil {
				return err
			}
		}
		seeded = true
		return nil
	})
	return seeded, err
}
