package booking

import (
	"context"
	"slices"
	"sync"
	"time"

	"github.com/62saybyetopain/new-reservation-system/services/booking-service/internal/model"
	"github.com/62saybyetopain/new-reservation-system/services/booking-service/internal/outbox"
	"github.com/62saybyetopain/new-reservation-system/services/booking-service/internal/storage"
)

// memStore is a serialised in-memory Store. A transaction works on a copy that is kept only on success.
type memStore struct {
	mu        sync.Mutex
	state     memState
	insertErr error
	// deleteErrs fail successive DeleteBooking calls in order.
	deleteErrs []error
	locked     []string
}

type memState struct {
	bookings    map[string]model.Booking
	plans       map[string]model.Plan
	overrides   map[string]model.DayOverride
	schedule    model.WeeklySchedule
	idempotency map[string]string
	events      []outbox.Event
}

func newMemStore() *memStore {
	return &memStore{state: memState{
		bookings:    map[string]model.Booking{},
		plans:       map[string]model.Plan{},
		overrides:   map[string]model.DayOverride{},
		idempotency: map[string]string{},
	}}
}

func (s memState) clone() memState {
	out := s
	out.bookings = make(map[string]model.Booking, len(s.bookings))
	for k, v := range s.bookings {
		out.bookings[k] = v
	}
	out.idempotency = make(map[string]string, len(s.idempotency))
	for k, v := range s.idempotency {
		out.idempotency[k] = v
	}
	out.events = slices.Clone(s.events)
	return out
}

func (s *memStore) InTx(ctx context.Context, fn func(Tx) error) error {
	s.mu.Lock()
	defer s.mu.Unlock()
	tx := &memTx{store: s, state: s.state.clone()}
	if err := fn(tx); err != nil {
		return err
	}
	s.state = tx.state
	return nil
}

func (s *memStore) GetBooking(_ context.Context, id string) (model.Booking, error) {
	s.mu.Lock()
	defer s.mu.Unlock()
	b, ok := s.state.bookings[id]
	if !ok {
		return model.Booking{}, storage.ErrNotFound
	}
	return b, nil
}

func (s *memStore) ListBookings(_ context.Context, f model.BookingFilter) ([]model.Booking, error) {
	s.mu.Lock()
	defer s.mu.Unlock()
	var out []model.Booking
	for _, b := range s.state.bookings {
		if f.UnreadOnly && b.IsRead {
			continue
		}
		if f.Status != "" && b.CompletionStatus != f.Status {
			continue
		}
		out = append(out, b)
	}
	slices.SortFunc(out, func(a, b model.Booking) int { return a.StartTime.Compare(b.StartTime) })
	return out, nil
}

func (s *memStore) CountBookings(_ context.Context, since time.Time) (model.BookingCounts, error) {
	s.mu.Lock()
	defer s.mu.Unlock()
	var c model.BookingCounts
	for _, b := range s.state.bookings {
		if !b.IsRead {
			c.Unread++
		}
		if b.CompletionStatus == model.CompletionPending {
			c.Pending++
			if !b.StartTime.Before(since) {
				c.Upcoming++
			}
		}
	}
	return c, nil
}

func (s *memStore) events() []outbox.Event {
	s.mu.Lock()
	defer s.mu.Unlock()
	return slices.Clone(s.state.events)
}

func (s *memStore) booking(id string) (model.Booking, bool) {
	s.mu.Lock()
	defer s.mu.Unlock()
	b, ok := s.state.bookings[id]
	return b, ok
}

type memTx struct {
	store *memStore
	state memState
}

func (t *memTx) LockDay(_ context.Context, dateKey string) error {
	t.store.locked = append(t.store.locked, dateKey)
	return nil
}

func (t *memTx) BookingsBetween(_ context.Context, from, to time.Time) ([]model.Booking, error) {
	var out []model.Booking
	for _, b := range t.state.bookings {
		if !b.StartTime.Before(from) && b.StartTime.Before(to) {
			out = append(out, b)
		}
	}
	return out, nil
}

func (t *memTx) GetOverride(_ context.Context, date string) (model.DayOverride, bool, error) {
	o, ok := t.state.overrides[date]
	return o, ok, nil
}

func (t *memTx) Schedule(context.Context) (model.WeeklySchedule, error) {
	return t.state.schedule, nil
}

func (t *memTx) GetPlan(_ context.Context, id string) (model.Plan, error) {
	p, ok := t.state.plans[id]
	if !ok {
		return model.Plan{}, storage.ErrNotFound
	}
	return p, nil
}

func (t *memTx) BookingForUpdate(_ context.Context, id string) (model.Booking, error) {
	b, ok := t.state.bookings[id]
	if !ok {
		return model.Booking{}, storage.ErrNotFound
	}
	return b, nil
}

func (t *memTx) InsertBooking(_ context.Context, b model.Booking) error {
	if t.store.insertErr != nil {
		return t.store.insertErr
	}
	t.state.bookings[b.ID] = b
	return nil
}

func (t *memTx) MoveBooking(_ context.Context, id string, start, _ time.Time) error {
	b, ok := t.state.bookings[id]
	if !ok {
		return storage.ErrNotFound
	}
	b.StartTime = start
	t.state.bookings[id] = b
	return nil
}

func (t *memTx) DeleteBooking(_ context.Context, id string) error {
	if len(t.store.deleteErrs) > 0 {
		err := t.store.deleteErrs[0]
		t.store.deleteErrs = t.store.deleteErrs[1:]
		return err
	}
	if _, ok := t.state.bookings[id]; !ok {
		return storage.ErrNotFound
	}
	delete(t.state.bookings, id)
	for key, bookingID := range t.state.idempotency {
		if bookingID == id {
			delete(t.state.idempotency, key)
		}
	}
	return nil
}

func (t *memTx) MarkRead(_ context.Context, ids []string) (int64, error) {
	var n int64
	for _, id := range ids {
		if b, ok := t.state.bookings[id]; ok && !b.IsRead {
			b.IsRead = true
			t.state.bookings[id] = b
			n++
		}
	}
	return n, nil
}

func (t *memTx) SetCompletion(_ context.Context, id string, status model.CompletionStatus) error {
	b, ok := t.state.bookings[id]
	if !ok {
		return storage.ErrNotFound
	}
	b.CompletionStatus = status
	t.state.bookings[id] = b
	return nil
}

func (t *memTx) ClaimIdempotencyKey(_ context.Context, key string) (string, error) {
	return t.state.idempotency[key], nil
}

func (t *memTx) LockIdempotencyKeys(_ context.Context, bookingID string) error {
	t.store.locked = append(t.store.locked, "keys:"+bookingID)
	return nil
}

func (t *memTx) SaveIdempotencyKey(_ context.Context, key, bookingID string) error {
	t.state.idempotency[key] = bookingID
	return nil
}

func (t *memTx) Enqueue(_ context.Context, evt outbox.Event) error {
	t.state.events = append(t.state.events, evt)
	return nil
}
