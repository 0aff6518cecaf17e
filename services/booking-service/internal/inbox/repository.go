package inbox

import (
	"context"

	"github.com/62saybyetopain/new-reservation-system/libs/db"
	"github.com/jackc/pgx/v5/pgconn"
)

type Execer interface {
	Exec(ctx context.Context, sql string, args ...any) (pgconn.CommandTag, error)
}

// Repository remembers consumed event ids so redelivered messages are handled once.
type Repository struct {
	q Execer
}

func NewRepository(q Execer) *Repository {
	return &Repository{q: q}
}

// Record reports true the first time an event id is seen.
func (r *Repository) Record(ctx context.Context, eventID string, eventType string) (bool, error) {
	_, err := r.q.Exec(ctx, `
		INSERT INTO inbox_events (event_id, event_type)
		VALUES ($1, $2)
	`, eventID, eventType)
	if err == nil {
		return true, nil
	}
	if db.HasCode(err, db.CodeUniqueViolation) {
		return false, nil
	}
	return false, err
}
