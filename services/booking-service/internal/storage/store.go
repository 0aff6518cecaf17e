package storage

import (
	"context"
	"errors"
	"fmt"

	"github.com/62saybyetopain/new-reservation-system/libs/db"
	"github.com/62saybyetopain/new-reservation-system/services/booking-service/internal/outbox"
	"github.com/jackc/pgx/v5"
	"github.com/jackc/pgx/v5/pgconn"
)

var ErrNotFound = errors.New("not found")

// Querier is the subset of pgx shared by the pool and a transaction.
type Querier interface {
	Exec(ctx context.Context, sql string, args ...any) (pgconn.CommandTag, error)
	Query(ctx context.Context, sql string, args ...any) (pgx.Rows, error)
	QueryRow(ctx context.Context, sql string, args ...any) pgx.Row
}

// queries carries every repository method so Store and Tx run the same SQL.
type queries struct {
	q Querier
}

// Store reads outside a transaction and opens transactions.
type Store struct {
	queries
	pool   *db.Pool
	outbox *outbox.Repository
}

func NewStore(pool *db.Pool, outboxRepo *outbox.Repository) *Store {
	return &Store{queries: queries{q: pool}, pool: pool, outbox: outboxRepo}
}

// Tx is one read-committed unit of work. Day locks and outbox rows live and die with it.
type Tx struct {
	queries
	tx     pgx.Tx
	outbox *outbox.Repository
}

func (s *Store) InTx(ctx context.Context, fn func(*Tx) error) error {
	return s.pool.InTx(ctx, pgx.ReadCommitted, func(tx pgx.Tx) error {
		return fn(&Tx{queries: queries{q: tx}, tx: tx, outbox: s.outbox})
	})
}

// LockDay serialises writers touching the same calendar date until the transaction ends.
func (t *Tx) LockDay(ctx context.Context, dateKey string) error {
	_, err := t.tx.Exec(ctx, `SELECT pg_advisory_xact_lock(hashtext($1))`, DayLockKey(dateKey))
	if err != nil {
		return fmt.Errorf("lock day %s: %w", dateKey, err)
	}
	return nil
}

// LockConfig serialises admin writes to plans, overrides and the weekly schedule.
func (t *Tx) LockConfig(ctx context.Context) error {
	_, err := t.tx.Exec(ctx, `SELECT pg_advisory_xact_lock(hashtext($1))`, configLockKey)
	return err
}

func (t *Tx) Enqueue(ctx context.Context, evt outbox.Event) error {
	return t.outbox.Insert(ctx, t.tx, evt)
}

const configLockKey = "booking-config"

func DayLockKey(dateKey string) string {
	return "booking-day:" + dateKey
}

// IsConflict reports errors that mean "the calendar changed underneath you".
func IsConflict(err error) bool {
	return db.HasCode(err, db.CodeExclusionViolation, db.CodeSerializationFailure, db.CodeDeadlockDetected)
}

func IsUniqueViolation(err error) bool {
	return db.HasCode(err, db.CodeUniqueViolation)
}

func notFound(err error) error {
	if errors.Is(err, pgx.ErrNoRows) {
		return ErrNotFound
	}
	return err
}
