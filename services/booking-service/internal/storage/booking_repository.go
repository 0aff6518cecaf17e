package storage

import (
	"context"
	"strconv"
	"strings"
	"time"

	"github.com/62saybyetopain/new-reservation-system/services/booking-service/internal/model"
	"github.com/jackc/pgx/v5"
)

const bookingColumns = `id, start_time, duration_minutes, rest_minutes, plan_id, plan_name,
	customer_name, contact, contact_type, attendees, form_answers, is_read, completion_status,
	created_at, updated_at`

func scanBooking(row pgx.Row) (model.Booking, error) {
	var b model.Booking
	err := row.Scan(
		&b.ID,
		&b.StartTime,
		&b.DurationMinutes,
		&b.RestMinutes,
		&b.PlanID,
		&b.PlanName,
		&b.CustomerName,
		&b.Contact,
		&b.ContactType,
		&b.Attendees,
		&b.FormAnswers,
		&b.IsRead,
		&b.CompletionStatus,
		&b.CreatedAt,
		&b.UpdatedAt,
	)
	return b, err
}

func collectBookings(rows pgx.Rows) ([]model.Booking, error) {
	defer rows.Close()
	var out []model.Booking
	for rows.Next() {
		b, err := scanBooking(rows)
		if err != nil {
			return nil, err
		}
		out = append(out, b)
	}
	if rows.Err() != nil {
		return nil, rows.Err()
	}
	return out, nil
}

// BookingsBetween returns bookings starting in [from, to), ordered by start.
func (r queries) BookingsBetween(ctx context.Context, from, to time.Time) ([]model.Booking, error) {
	rows, err := r.q.Query(ctx, `
		SELECT `+bookingColumns+`
		FROM bookings
		WHERE start_time >= $1 AND start_time < $2
		ORDER BY start_time ASC
	`, from, to)
	if err != nil {
		return nil, err
	}
	return collectBookings(rows)
}

func (r queries) GetBooking(ctx context.Context, id string) (model.Booking, error) {
	b, err := scanBooking(r.q.QueryRow(ctx, `SELECT `+bookingColumns+` FROM bookings WHERE id = $1`, id))
	return b, notFound(err)
}

func (r queries) BookingForUpdate(ctx context.Context, id string) (model.Booking, error) {
	b, err := scanBooking(r.q.QueryRow(ctx, `SELECT `+bookingColumns+` FROM bookings WHERE id = $1 FOR UPDATE`, id))
	return b, notFound(err)
}

func (r queries) InsertBooking(ctx context.Context, b model.Booking) error {
	answers := b.FormAnswers
	if answers == nil {
		answers = []model.FormAnswer{}
	}
	_, err := r.q.Exec(ctx, `
		INSERT INTO bookings
			(id, start_time, end_time, duration_minutes, rest_minutes, plan_id, plan_name,
			 customer_name, contact, contact_type, attendees, form_answers, is_read, completion_status, created_at, updated_at)
		VALUES ($1, $2, $3, $4, $5, $6, $7, $8, $9, $10, $11, $12, $13, $14, $15, $15)
	`, b.ID, b.StartTime, b.OccupiedEnd(), b.DurationMinutes, b.RestMinutes, b.PlanID, b.PlanName,
		b.CustomerName, b.Contact, b.ContactType, b.Attendees, answers, b.IsRead, b.CompletionStatus, b.CreatedAt)
	return err
}

// MoveBooking rewrites the start of an existing booking in place.
func (r queries) MoveBooking(ctx context.Context, id string, start, occupiedEnd time.Time) error {
	tag, err := r.q.Exec(ctx, `
		UPDATE bookings
		SET start_time = $2, end_time = $3, updated_at = now()
		WHERE id = $1
	`, id, start, occupiedEnd)
	if err != nil {
		return err
	}
	if tag.RowsAffected() == 0 {
		return ErrNotFound
	}
	return nil
}

func (r queries) DeleteBooking(ctx context.Context, id string) error {
	tag, err := r.q.Exec(ctx, `DELETE FROM bookings WHERE id = $1`, id)
	if err != nil {
		return err
	}
	if tag.RowsAffected() == 0 {
		return ErrNotFound
	}
	return nil
}

func (r queries) MarkRead(ctx context.Context, ids []string) (int64, error) {
	if len(ids) == 0 {
		return 0, nil
	}
	tag, err := r.q.Exec(ctx, `
		UPDATE bookings SET is_read = true, updated_at = now()
		WHERE id = ANY($1) AND NOT is_read
	`, ids)
	if err != nil {
		return 0, err
	}
	return tag.RowsAffected(), nil
}

func (r queries) SetCompletion(ctx context.Context, id string, status model.CompletionStatus) error {
	tag, err := r.q.Exec(ctx, `
		UPDATE bookings SET completion_status = $2, updated_at = now()
		WHERE id = $1
	`, id, status)
	if err != nil {
		return err
	}
	if tag.RowsAffected() == 0 {
		return ErrNotFound
	}
	return nil
}

func (r queries) ListBookings(ctx context.Context, f model.BookingFilter) ([]model.Booking, error) {
	var (
		where []string
		args  []any
	)
	add := func(cond string, v any) {
		args = append(args, v)
		where = append(where, strings.ReplaceAll(cond, "?", "$"+strconv.Itoa(len(args))))
	}
	if !f.From.IsZero() {
		add("start_time >= ?", f.From)
	}
	if !f.To.IsZero() {
		add("start_time < ?", f.To)
	}
	if f.UnreadOnly {
		where = append(where, "NOT is_read")
	}
	if f.Status != "" {
		add("completion_status = ?", f.Status)
	}

	limit := f.Limit
	if limit <= 0 || limit > 500 {
		limit = 100
	}
	args = append(args, limit)

	order := "ASC"
	if f.Newest {
		order = "DESC"
	}

	sql := `SELECT ` + bookingColumns + ` FROM bookings`
	if len(where) > 0 {
		sql += ` WHERE ` + strings.Join(where, " AND ")
	}
	sql += ` ORDER BY start_time ` + order + ` LIMIT $` + strconv.Itoa(len(args))

	rows, err := r.q.Query(ctx, sql, args...)
	if err != nil {
		return nil, err
	}
	return collectBookings(rows)
}

func (r queries) CountBookings(ctx context.Context, since time.Time) (model.BookingCounts, error) {
	var c model.BookingCounts
	err := r.q.QueryRow(ctx, `
		SELECT
			count(*) FILTER (WHERE NOT is_read),
			count(*) FILTER (WHERE completion_status = 'pending'),
			count(*) FILTER (WHERE completion_status = 'pending' AND start_time >= $1)
		FROM bookings
	`, since).Scan(&c.Unread, &c.Pending, &c.Upcoming)
	return c, err
}

// ClaimIdempotencyKey locks key for the transaction and returns the booking it already produced, if any.
func (r queries) ClaimIdempotencyKey(ctx context.Context, key string) (string, error) {
	if _, err := r.q.Exec(ctx, `
		INSERT INTO booking_idempotency_keys (idempotency_key)
		VALUES ($1)
		ON CONFLICT (idempotency_key) DO NOTHING
	`, key); err != nil {
		return "", err
	}
	var bookingID string
	err := r.q.QueryRow(ctx, `
		SELECT COALESCE(booking_id::text, '')
		FROM booking_idempotency_keys
		WHERE idempotency_key = $1
		FOR UPDATE
	`, key).Scan(&bookingID)
	return bookingID, err
}

// LockIdempotencyKeys locks the key rows that point at bookingID. Taking them before the
// booking row keeps cancel in the same lock order as an idempotent replay.
func (r queries) LockIdempotencyKeys(ctx context.Context, bookingID string) error {
	_, err := r.q.Exec(ctx, `
		SELECT 1
		FROM booking_idempotency_keys
		WHERE booking_id = $1
		FOR UPDATE
	`, bookingID)
	return err
}

func (r queries) SaveIdempotencyKey(ctx context.Context, key, bookingID string) error {
	_, err := r.q.Exec(ctx, `
		UPDATE booking_idempotency_keys
		SET booking_id = $2, updated_at = now()
		WHERE idempotency_key = $1
	`, key, bookingID)
	return err
}
