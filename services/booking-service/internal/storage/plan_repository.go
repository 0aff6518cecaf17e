package storage

import (
	"context"
	"fmt"

	"github.com/62saybyetopain/new-reservation-system/services/booking-service/internal/model"
	"github.com/jackc/pgx/v5"
	"github.com/shopspring/decimal"
)

const planColumns = `id, category, name, description, duration_minutes, rest_minutes, price::text, active, created_at, updated_at`

func scanPlan(row pgx.Row) (model.Plan, error) {
	var (
		p     model.Plan
		price string
	)
	if err := row.Scan(&p.ID, &p.Category, &p.Name, &p.Description, &p.DurationMinutes, &p.RestMinutes,
		&price, &p.Active, &p.CreatedAt, &p.UpdatedAt); err != nil {
		return model.Plan{}, err
	}
	d, err := decimal.NewFromString(price)
	if err != nil {
		return model.Plan{}, fmt.Errorf("plan %s price %q: %w", p.ID, price, err)
	}
	p.Price = d
	return p, nil
}

func (r queries) GetPlan(ctx context.Context, id string) (model.Plan, error) {
	p, err := scanPlan(r.q.QueryRow(ctx, `SELECT `+planColumns+` FROM plans WHERE id = $1`, id))
	return p, notFound(err)
}

func (r queries) ListPlans(ctx context.Context, activeOnly bool) ([]model.Plan, error) {
	rows, err := r.q.Query(ctx, `
		SELECT `+planColumns+`
		FROM plans
		WHERE active OR NOT $1
		ORDER BY category, duration_minutes, name
	`, activeOnly)
	if err != nil {
		return nil, err
	}
	defer rows.Close()

	var plans []model.Plan
	for rows.Next() {
		p, err := scanPlan(rows)
		if err != nil {
			return nil, err
		}
		plans = append(plans, p)
	}
	if rows.Err() != nil {
		return nil, rows.Err()
	}
	return plans, nil
}

func (r queries) CountPlans(ctx context.Context) (int, error) {
	var n int
	err := r.q.QueryRow(ctx, `SELECT count(*) FROM plans`).Scan(&n)
	return n, err
}

func (r queries) InsertPlan(ctx context.Context, p model.Plan) error {
	_, err := r.q.Exec(ctx, `
		INSERT INTO plans (id, category, name, description, duration_minutes, rest_minutes, price, active, created_at, updated_at)
		VALUES ($1, $2, $3, $4, $5, $6, $7::numeric, $8, $9, $9)
	`, p.ID, p.Category, p.Name, p.Description, p.DurationMinutes, p.RestMinutes, p.Price.StringFixed(2), p.Active, p.CreatedAt)
	return err
}

func (r queries) UpdatePlan(ctx context.Context, p model.Plan) error {
	tag, err := r.q.Exec(ctx, `
		UPDATE plans
		SET category = $2, name = $3, description = $4, duration_minutes = $5, rest_minutes = $6,
			price = $7::numeric, active = $8, updated_at = now()
		WHERE id = $1
	`, p.ID, p.Category, p.Name, p.Description, p.DurationMinutes, p.RestMinutes, p.Price.StringFixed(2), p.Active)
	if err != nil {
		return err
	}
	if tag.RowsAffected() == 0 {
		return ErrNotFound
	}
	return nil
}

func (r queries) DeletePlan(ctx context.Context, id string) error {
	tag, err := r.q.Exec(ctx, `DELETE FROM plans WHERE id = $1`, id)
	if err != nil {
		return err
	}
	if tag.RowsAffected() == 0 {
		return ErrNotFound
	}
	return nil
}
