package consumer

import (
	"context"
	"errors"
	"io"
	"log/slog"
	"testing"

	"github.com/62saybyetopain/new-reservation-system/libs/kafkax"
	"github.com/segmentio/kafka-go"
)

type memInbox struct {
	seen map[string]bool
	err  error
}

func (m *memInbox) Record(_ context.Context, id, _ string) (bool, error) {
	if m.err != nil {
		return false, m.err
	}
	if m.seen[id] {
		return false, nil
	}
	m.seen[id] = true
	return true, nil
}

type countingInvalidator struct {
	n   int
	err error
}

func (c *countingInvalidator) Invalidate(context.Context) error {
	c.n++
	return c.err
}

func message(id string) kafka.Message {
	return kafka.Message{
		Topic:   "availability.config.changed.v1",
		Key:     []byte("calendar"),
		Headers: kafkax.MetaHeaders(kafkax.EventMeta{EventID: id, EventType: "availability.config.changed.v1"}),
	}
}

func discard() *slog.Logger { return slog.New(slog.NewTextHandler(io.Discard, nil)) }

func TestHandleInvalidatesOncePerEvent(t *testing.T) {
	inv := &countingInvalidator{}
	c := New(discard(), &memInbox{seen: map[string]bool{}}, Config{}, InvalidateConfig(inv))

	if !c.Handle(context.Background(), message("evt-1")) {
		t.Fatalf("expected first delivery handled")
	}
	if c.Handle(context.Background(), message("evt-1")) {
		t.Fatalf("expected redelivery skipped")
	}
	if !c.Handle(context.Background(), message("evt-2")) {
		t.Fatalf("expected new event handled")
	}
	if inv.n != 2 {
		t.Fatalf("expected 2 invalidations, got %d", inv.n)
	}
}

func TestHandleReportsFailures(t *testing.T) {
	inv := &countingInvalidator{err: errors.New("redis down")}
	c := New(discard(), &memInbox{seen: map[string]bool{}}, Config{}, InvalidateConfig(inv))
	if c.Handle(context.Background(), message("evt-1")) {
		t.Fatalf("expected handler error to be reported")
	}

	c = New(discard(), &memInbox{err: errors.New("db down")}, Config{}, InvalidateConfig(inv))
	if c.Handle(context.Background(), message("evt-2")) {
		t.Fatalf("expected inbox error to be reported")
	}
	if inv.n != 1 {
		t.Fatalf("expected handler skipped on inbox failure, got %d calls", inv.n)
	}
}

func TestRunWithoutBrokersReturns(t *testing.T) {
	c := New(discard(), &memInbox{seen: map[string]bool{}}, Config{}, InvalidateConfig(&countingInvalidator{}))
	c.Run(context.Background())
}
