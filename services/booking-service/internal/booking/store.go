package booking

import (
	"context"
	"time"

	"github.com/62saybyetopain/new-reservation-system/services/booking-service/internal/model"
	"github.com/62saybyetopain/new-reservation-system/services/booking-service/internal/outbox"
	"github.com/62saybyetopain/new-reservation-system/services/booking-service/internal/storage"
)

// Tx is the unit of work a booking mutation runs in. Not-found lookups return storage.ErrNotFound.
type Tx interface {
	LockDay(ctx context.Context, dateKey string) error
	BookingsBetween(ctx context.Context, from, to time.Time) ([]model.Booking, error)
	GetOverride(ctx context.Context, date string) (model.DayOverride, bool, error)
	Schedule(ctx context.Context) (model.WeeklySchedule, error)
	GetPlan(ctx context.Context, id string) (model.Plan, error)
	BookingForUpdate(ctx context.Context, id string) (model.Booking, error)
	InsertBooking(ctx context.Context, b model.Booking) error
	MoveBooking(ctx context.Context, id string, start, occupiedEnd time.Time) error
	DeleteBooking(ctx context.Context, id string) error
	MarkRead(ctx context.Context, ids []string) (int64, error)
	SetCompletion(ctx context.Context, id string, status model.CompletionStatus) error
	ClaimIdempotencyKey(ctx context.Context, key string) (string, error)
	SaveIdempotencyKey(ctx context.Context, key, bookingID string) error
	LockIdempotencyKeys(ctx context.Context, bookingID string) error
	Enqueue(ctx context.Context, evt outbox.Event) error
}

type Store interface {
	InTx(ctx context.Context, fn func(Tx) error) error
	GetBooking(ctx context.Context, id string) (model.Booking, error)
	ListBookings(ctx context.Context, f model.BookingFilter) ([]model.Booking, error)
	CountBookings(ctx context.Context, since time.Time) (model.BookingCounts, error)
}

type postgresStore struct {
	*storage.Store
}

// NewPostgresStore adapts the pgx store to Store.
func NewPostgresStore(s *storage.Store) Store {
	return postgresStore{Store: s}
}

func (p postgresStore) InTx(ctx context.Context, fn func(Tx) error) error {
	return p.Store.InTx(ctx, func(tx *storage.Tx) error { return fn(tx) })
}
