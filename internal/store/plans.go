package store

import (
	"context"
	"database/sql"
	"errors"
	"fmt"

	"github.com/google/uuid"
)

func (c *Client) GetPlan(ctx context.Context, id uuid.UUID) (*Plan, error) {
	row := c.QueryRow(ctx, `
		SELECT id, name, max_sms_per_month, max_devices, price_monthly, price_yearly, public, created_at, updated_at
		FROM plans WHERE id = $1`, id)
	return scanPlan(row)
}

// GetFreePlan looks up the default plan quotas fall back to, matching the
// original's `ilike('%free%')` lookup; creates one if none exists.
func (c *Client) GetFreePlan(ctx context.Context) (*Plan, error) {
	row := c.QueryRow(ctx, `
		SELECT id, name, max_sms_per_month, max_devices, price_monthly, price_yearly, public, created_at, updated_at
		FROM plans WHERE name ILIKE '%free%' ORDER BY created_at ASC LIMIT 1`)
	plan, err := scanPlan(row)
	if errors.Is(err, ErrNotFound) {
		return c.CreatePlan(ctx, &Plan{
			ID:             uuid.New(),
			Name:           "Free",
			MaxSMSPerMonth: 50,
			MaxDevices:     1,
			PriceMonthly:   0,
			PriceYearly:    0,
			Public:         true,
		})
	}
	return plan, err
}

func (c *Client) CreatePlan(ctx context.Context, p *Plan) (*Plan, error) {
	row := c.QueryRow(ctx, `
		INSERT INTO plans (id, name, max_sms_per_month, max_devices, price_monthly, price_yearly, public)
		VALUES ($1, $2, $3, $4, $5, $6, $7)
		RETURNING id, name, max_sms_per_month, max_devices, price_monthly, price_yearly, public, created_at, updated_at`,
		p.ID, p.Name, p.MaxSMSPerMonth, p.MaxDevices, p.PriceMonthly, p.PriceYearly, p.Public)
	return scanPlan(row)
}

func (c *Client) ListPublicPlans(ctx context.Context) ([]*Plan, error) {
	rows, err := c.Query(ctx, `
		SELECT id, name, max_sms_per_month, max_devices, price_monthly, price_yearly, public, created_at, updated_at
		FROM plans WHERE public = true ORDER BY price_monthly ASC`)
	if err != nil {
		return nil, fmt.Errorf("list plans: %w", err)
	}
	defer rows.Close()

	var plans []*Plan
	for rows.Next() {
		var p Plan
		if err := rows.Scan(&p.ID, &p.Name, &p.MaxSMSPerMonth, &p.MaxDevices, &p.PriceMonthly, &p.PriceYearly, &p.Public, &p.CreatedAt, &p.UpdatedAt); err != nil {
			return nil, fmt.Errorf("scan plan: %w", err)
		}
		plans = append(plans, &p)
	}
	return plans, rows.Err()
}

func scanPlan(row *sql.Row) (*Plan, error) {
	var p Plan
	err := row.Scan(&p.ID, &p.Name, &p.MaxSMSPerMonth, &p.MaxDevices, &p.PriceMonthly, &p.PriceYearly, &p.Public, &p.CreatedAt, &p.UpdatedAt)
	if errors.Is(err, sql.ErrNoRows) {
		return nil, ErrNotFound
	}
	if err != nil {
		return nil, fmt.Errorf("scan plan: %w", err)
	}
	return &p, nil
}
