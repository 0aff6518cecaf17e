package storage

import (
	"context"
	"errors"
	"time"

	"github.com/62saybyetopain/new-reservation-system/services/booking-service/internal/model"
	"github.com/jackc/pgx/v5"
)

const overrideColumns = `to_char(day, 'YYYY-MM-DD'), type, slots, updated_at`

func (r queries) GetOverride(ctx context.Context, date string) (model.DayOverride, bool, error) {
	var o model.DayOverride
	err := r.q.QueryRow(ctx, `SELECT `+overrideColumns+` FROM day_overrides WHERE day = $1::date`, date).
		Scan(&o.Date, &o.Type, &o.Slots, &o.UpdatedAt)
	if errors.Is(err, pgx.ErrNoRows) {
		return model.DayOverride{}, false, nil
	}
	if err != nil {
		return model.DayOverride{}, false, err
	}
	return o, true, nil
}

// ListOverrides returns overrides with from <= date <= to. Empty bounds are open.
func (r queries) ListOverrides(ctx context.Context, from, to string) ([]model.DayOverride, error) {
	rows, err := r.q.Query(ctx, `
		SELECT `+overrideColumns+`
		FROM day_overrides
		WHERE ($1 = '' OR day >= NULLIF($1, '')::date)
			AND ($2 = '' OR day <= NULLIF($2, '')::date)
		ORDER BY day
	`, from, to)
	if err != nil {
		return nil, err
	}
	defer rows.Close()

	var out []model.DayOverride
	for rows.Next() {
		var o model.DayOverride
		if err := rows.Scan(&o.Date, &o.Type, &o.Slots, &o.UpdatedAt); err != nil {
			return nil, err
		}
		out = append(out, o)
	}
	if rows.Err() != nil {
		return nil, rows.Err()
	}
	return out, nil
}

func (r queries) UpsertOverride(ctx context.Context, o model.DayOverride) error {
	slots := o.Slots
	if slots == nil {
		slots = []model.TimeWindow{}
	}
	_, err := r.q.Exec(ctx, `
		INSERT INTO day_overrides (day, type, slots, updated_at)
		VALUES ($1::date, $2, $3, now())
		ON CONFLICT (day) DO UPDATE
		SET type = EXCLUDED.type, slots = EXCLUDED.slots, updated_at = now()
	`, o.Date, o.Type, slots)
	return err
}

func (r queries) DeleteOverride(ctx context.Context, date string) error {
	tag, err := r.q.Exec(ctx, `DELETE FROM day_overrides WHERE day = $1::date`, date)
	if err != nil {
		return err
	}
	if tag.RowsAffected() == 0 {
		return ErrNotFound
	}
	return nil
}

// PruneOverrides deletes overrides dated before the given day.
func (r queries) PruneOverrides(ctx context.Context, before string) (int64, error) {
	tag, err := r.q.Exec(ctx, `DELETE FROM day_overrides WHERE day < $1::date`, before)
	if err != nil {
		return 0, err
	}
	return tag.RowsAffected(), nil
}

// Schedule returns the weekly schedule. An empty result means none has been configured.
func (r queries) Schedule(ctx context.Context) (model.WeeklySchedule, error) {
	rows, err := r.q.Query(ctx, `SELECT weekday, is_open, slots FROM weekly_schedule ORDER BY weekday`)
	if err != nil {
		return nil, err
	}
	defer rows.Close()

	var schedule model.WeeklySchedule
	for rows.Next() {
		var (
			weekday int16
			entry   model.WeekdaySchedule
		)
		if err := rows.Scan(&weekday, &entry.IsOpen, &entry.Slots); err != nil {
			return nil, err
		}
		if schedule == nil {
			schedule = model.WeeklySchedule{}
		}
		schedule[time.Weekday(weekday)] = entry
	}
	if rows.Err() != nil {
		return nil, rows.Err()
	}
	return schedule, nil
}

// ReplaceSchedule swaps the whole weekly schedule. Weekdays absent from s fall back to defaults.
func (r queries) ReplaceSchedule(ctx context.Context, s model.WeeklySchedule) error {
	if _, err := r.q.Exec(ctx, `DELETE FROM weekly_schedule`); err != nil {
		return err
	}
	for day, entry := range s {
		slots := entry.Slots
		if slots == nil {
			slots = []model.TimeWindow{}
		}
		if _, err := r.q.Exec(ctx, `
			INSERT INTO weekly_schedule (weekday, is_open, slots, updated_at)
			VALUES ($1, $2, $3, now())
		`, int16(day), entry.IsOpen, slots); err != nil {
			return err
		}
	}
	return nil
}
