package store

import (
	"context"
	"database/sql"
	"errors"
	"fmt"

	"github.com/google/uuid"
)

func (c *Client) GetSubscriptionByUser(ctx context.Context, userID uuid.UUID) (*Subscription, error) {
	row := c.QueryRow(ctx, subscriptionSelect+` WHERE user_id = $1`, userID)
	return scanSubscription(row)
}

func GetSubscriptionForUpdateTx(ctx context.Context, tx *sql.Tx, id uuid.UUID) (*Subscription, error) {
	row := tx.QueryRowContext(ctx, subscriptionSelect+` WHERE id = $1 FOR UPDATE`, id)
	return scanSubscription(row)
}

func (c *Client) GetSubscription(ctx context.Context, id uuid.UUID) (*Subscription, error) {
	row := c.QueryRow(ctx, subscriptionSelect+` WHERE id = $1`, id)
	return scanSubscription(row)
}

func (c *Client) CreateSubscription(ctx context.Context, s *Subscription) (*Subscription, error) {
	row := c.QueryRow(ctx, `
		INSERT INTO subscriptions (id, user_id, plan_id, billing_cycle, status, payment_method,
			cancel_at_period_end, current_period_start, current_period_end, provider_user_uuid)
		VALUES ($1, $2, $3, $4, $5, $6, $7, $8, $9, $10)
		RETURNING `+subscriptionColumns,
		s.ID, s.UserID, s.PlanID, s.BillingCycle, s.Status, s.PaymentMethod,
		s.CancelAtPeriodEnd, s.CurrentPeriodStart, s.CurrentPeriodEnd, s.ProviderUserUUID)
	return scanSubscription(row)
}

func UpdateSubscriptionTx(ctx context.Context, tx *sql.Tx, s *Subscription) (*Subscription, error) {
	row := tx.QueryRowContext(ctx, `
		UPDATE subscriptions SET plan_id = $1, status = $2, payment_method = $3, cancel_at_period_end = $4,
			current_period_start = $5, current_period_end = $6, provider_user_uuid = $7, canceled_at = $8, updated_at = now()
		WHERE id = $9
		RETURNING `+subscriptionColumns,
		s.PlanID, s.Status, s.PaymentMethod, s.CancelAtPeriodEnd, s.CurrentPeriodStart, s.CurrentPeriodEnd,
		s.ProviderUserUUID, s.CanceledAt, s.ID)
	return scanSubscription(row)
}

func (c *Client) UpdateSubscription(ctx context.Context, s *Subscription) (*Subscription, error) {
	row := c.QueryRow(ctx, `
		UPDATE subscriptions SET plan_id = $1, status = $2, payment_method = $3, cancel_at_period_end = $4,
			current_period_start = $5, current_period_end = $6, provider_user_uuid = $7, canceled_at = $8, updated_at = now()
		WHERE id = $9
		RETURNING `+subscriptionColumns,
		s.PlanID, s.Status, s.PaymentMethod, s.CancelAtPeriodEnd, s.CurrentPeriodStart, s.CurrentPeriodEnd,
		s.ProviderUserUUID, s.CanceledAt, s.ID)
	return scanSubscription(row)
}

// ListSubscriptionsDueForRenewal returns ACTIVE, non-cancel-pending,
// authorized subscriptions whose period end falls within the reminder
// window, for the daily renewal scan (C12).
func (c *Client) ListSubscriptionsDueForRenewal(ctx context.Context, reminderDays int) ([]*Subscription, error) {
	rows, err := c.Query(ctx, subscriptionSelect+`
		WHERE status = $1 AND cancel_at_period_end = false AND provider_user_uuid IS NOT NULL
			AND current_period_end <= now() + ($2 || ' days')::interval
			AND id NOT IN (SELECT subscription_id FROM payments WHERE status = $3)`,
		SubscriptionActive, reminderDays, PaymentPending)
	if err != nil {
		return nil, fmt.Errorf("list renewal candidates: %w", err)
	}
	defer rows.Close()
	return scanSubscriptionRowsAll(rows)
}

// ListPastDueExpired returns PAST_DUE subscriptions whose grace period has
// elapsed.
func (c *Client) ListPastDueExpired(ctx context.Context, graceDays int) ([]*Subscription, error) {
	rows, err := c.Query(ctx, subscriptionSelect+`
		WHERE status = $1 AND current_period_end < now() - ($2 || ' days')::interval`,
		SubscriptionPastDue, graceDays)
	if err != nil {
		return nil, fmt.Errorf("list past-due expired: %w", err)
	}
	defer rows.Close()
	return scanSubscriptionRowsAll(rows)
}

const subscriptionColumns = `id, user_id, plan_id, billing_cycle, status, payment_method,
	cancel_at_period_end, current_period_start, current_period_end, provider_user_uuid, canceled_at, created_at, updated_at`

const subscriptionSelect = `SELECT ` + subscriptionColumns + ` FROM subscriptions`

func scanSubscription(row *sql.Row) (*Subscription, error) {
	var s Subscription
	err := row.Scan(&s.ID, &s.UserID, &s.PlanID, &s.BillingCycle, &s.Status, &s.PaymentMethod,
		&s.CancelAtPeriodEnd, &s.CurrentPeriodStart, &s.CurrentPeriodEnd, &s.ProviderUserUUID, &s.CanceledAt,
		&s.CreatedAt, &s.UpdatedAt)
	if errors.Is(err, sql.ErrNoRows) {
		return nil, ErrNotFound
	}
	if err != nil {
		return nil, fmt.Errorf("scan subscription: %w", err)
	}
	return &s, nil
}

func scanSubscriptionRowsAll(rows *sql.Rows) ([]*Subscription, error) {
	var out []*Subscription
	for rows.Next() {
		var s Subscription
		if err := rows.Scan(&s.ID, &s.UserID, &s.PlanID, &s.BillingCycle, &s.Status, &s.PaymentMethod,
			&s.CancelAtPeriodEnd, &s.CurrentPeriodStart, &s.CurrentPeriodEnd, &s.ProviderUserUUID, &s.CanceledAt,
			&s.CreatedAt, &s.UpdatedAt); err != nil {
			return nil, fmt.Errorf("scan subscription: %w", err)
		}
		out = append(out, &s)
	}
	return out, rows.Err()
}
