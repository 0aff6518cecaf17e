package admin

import (
	"context"

	"github.com/62saybyetopain/new-reservation-system/services/booking-service/internal/model"
	"github.com/62saybyetopain/new-reservation-system/services/booking-service/internal/outbox"
	"github.com/62saybyetopain/new-reservation-system/services/booking-service/internal/storage"
)

type Tx interface {
	LockConfig(ctx context.Context) error
	CountPlans(ctx context.Context) (int, error)
	GetPlan(ctx context.Context, id string) (model.Plan, error)
	InsertPlan(ctx context.Context, p model.Plan) error
	UpdatePlan(ctx context.Context, p model.Plan) error
	DeletePlan(ctx context.Context, id string) error
	UpsertOverride(ctx context.Context, o model.DayOverride) error
	DeleteOverride(ctx context.Context, date string) error
	PruneOverrides(ctx context.Context, before string) (int64, error)
	Schedule(ctx context.Context) (model.WeeklySchedule, error)
	ReplaceSchedule(ctx context.Context, s model.WeeklySchedule) error
	Enqueue(ctx context.Context, evt outbox.Event) error
}

type Store interface {
	InTx(ctx context.Context, fn func(Tx) error) error
	ListPlans(ctx context.Context, activeOnly bool) ([]model.Plan, error)
	ListOverrides(ctx context.Context, from, to string) ([]model.DayOverride, error)
	Schedule(ctx context.Context) (model.WeeklySchedule, error)
}

// Invalidator drops cached configuration after a committed write.
type Invalidator interface {
	Invalidate(ctx context.Context) error
}

type postgresStore struct {
	*storage.Store
}

func NewPostgresStore(s *storage.Store) Store {
	return postgresStore{Store: s}
}

func (p postgresStore) InTx(ctx context.Context, fn func(Tx) error) error {
	return p.Store.InTx(ctx, func(tx *storage.Tx) error { return fn(tx) })
}
