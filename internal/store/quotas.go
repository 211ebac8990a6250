package store

import (
	"context"
	"database/sql"
	"errors"
	"fmt"
	"time"

	"github.com/google/uuid"
)

// GetQuotaForUpdate locks the user's quota row for the duration of tx. It is
// the serialization point the quota service's reserve/release contract
// depends on; the billing controller also takes it when changing a user's
// plan.
func GetQuotaForUpdate(ctx context.Context, tx *sql.Tx, userID uuid.UUID) (*Quota, error) {
	row := tx.QueryRowContext(ctx, `
		SELECT id, user_id, plan_id, sms_sent_this_month, devices_registered, last_reset_date
		FROM quotas WHERE user_id = $1 FOR UPDATE`, userID)
	return scanQuota(row)
}

func CreateQuotaTx(ctx context.Context, tx *sql.Tx, q *Quota) (*Quota, error) {
	row := tx.QueryRowContext(ctx, `
		INSERT INTO quotas (id, user_id, plan_id, sms_sent_this_month, devices_registered, last_reset_date)
		VALUES ($1, $2, $3, $4, $5, $6)
		RETURNING id, user_id, plan_id, sms_sent_this_month, devices_registered, last_reset_date`,
		q.ID, q.UserID, q.PlanID, q.SMSSentThisMonth, q.DevicesRegistered, q.LastResetDate)
	return scanQuota(row)
}

func SetSMSSentTx(ctx context.Context, tx *sql.Tx, quotaID uuid.UUID, sent int) error {
	_, err := tx.ExecContext(ctx, `UPDATE quotas SET sms_sent_this_month = $1 WHERE id = $2`, sent, quotaID)
	if err != nil {
		return fmt.Errorf("update sms_sent_this_month: %w", err)
	}
	return nil
}

func SetDevicesRegisteredTx(ctx context.Context, tx *sql.Tx, quotaID uuid.UUID, count int) error {
	_, err := tx.ExecContext(ctx, `UPDATE quotas SET devices_registered = $1 WHERE id = $2`, count, quotaID)
	if err != nil {
		return fmt.Errorf("update devices_registered: %w", err)
	}
	return nil
}

func SetQuotaPlanTx(ctx context.Context, tx *sql.Tx, quotaID, planID uuid.UUID) error {
	_, err := tx.ExecContext(ctx, `UPDATE quotas SET plan_id = $1 WHERE id = $2`, planID, quotaID)
	if err != nil {
		return fmt.Errorf("update quota plan: %w", err)
	}
	return nil
}

func ResetQuotaTx(ctx context.Context, tx *sql.Tx, quotaID uuid.UUID, resetDate time.Time) error {
	_, err := tx.ExecContext(ctx, `UPDATE quotas SET sms_sent_this_month = 0, last_reset_date = $1 WHERE id = $2`, resetDate, quotaID)
	if err != nil {
		return fmt.Errorf("reset quota: %w", err)
	}
	return nil
}

func (c *Client) GetQuota(ctx context.Context, userID uuid.UUID) (*Quota, error) {
	row := c.QueryRow(ctx, `
		SELECT id, user_id, plan_id, sms_sent_this_month, devices_registered, last_reset_date
		FROM quotas WHERE user_id = $1`, userID)
	return scanQuota(row)
}

// ListQuotasForReset returns every quota whose last_reset_date falls on
// resetDay, for the monthly sweep.
func (c *Client) ListQuotasForReset(ctx context.Context, resetDay int) ([]*Quota, error) {
	rows, err := c.Query(ctx, `
		SELECT id, user_id, plan_id, sms_sent_this_month, devices_registered, last_reset_date
		FROM quotas WHERE EXTRACT(DAY FROM last_reset_date) = $1`, resetDay)
	if err != nil {
		return nil, fmt.Errorf("list quotas for reset: %w", err)
	}
	defer rows.Close()

	var out []*Quota
	for rows.Next() {
		var q Quota
		if err := rows.Scan(&q.ID, &q.UserID, &q.PlanID, &q.SMSSentThisMonth, &q.DevicesRegistered, &q.LastResetDate); err != nil {
			return nil, fmt.Errorf("scan quota: %w", err)
		}
		out = append(out, &q)
	}
	return out, rows.Err()
}

func scanQuota(row *sql.Row) (*Quota, error) {
	var q Quota
	err := row.Scan(&q.ID, &q.UserID, &q.PlanID, &q.SMSSentThisMonth, &q.DevicesRegistered, &q.LastResetDate)
	if errors.Is(err, sql.ErrNoRows) {
		return nil, ErrNotFound
	}
	if err != nil {
		return nil, fmt.Errorf("scan quota: %w", err)
	}
	return &q, nil
}
