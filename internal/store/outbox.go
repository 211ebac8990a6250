package store

import (
	"context"
	"database/sql"
	"errors"
	"fmt"
	"time"

	"github.com/google/uuid"
)

// Outbox is the supplemented per-chunk dispatch-attempt ledger
// (grounded on the original's SMSOutbox table), giving the notification
// dispatcher's dead-letter path concrete persisted state.
func (c *Client) CreateOutboxEntry(ctx context.Context, o *Outbox) (*Outbox, error) {
	row := c.QueryRow(ctx, `
		INSERT INTO outbox (id, message_id, device_id, payload, status, attempts, next_attempt_at, last_error)
		VALUES ($1, $2, $3, $4, $5, $6, $7, $8)
		RETURNING id, message_id, device_id, payload, status, attempts, next_attempt_at, last_error, created_at, updated_at`,
		o.ID, o.MessageID, o.DeviceID, o.Payload, o.Status, o.Attempts, o.NextAttemptAt, o.LastError)
	return scanOutbox(row)
}

func (c *Client) RecordOutboxAttempt(ctx context.Context, id uuid.UUID, status string, lastErr *string, nextAttempt *time.Time) error {
	_, err := c.Exec(ctx, `
		UPDATE outbox SET status = $1, attempts = attempts + 1, last_error = $2, next_attempt_at = $3, updated_at = now()
		WHERE id = $4`, status, lastErr, nextAttempt, id)
	if err != nil {
		return fmt.Errorf("record outbox attempt: %w", err)
	}
	return nil
}

func (c *Client) ListPendingOutboxEntries(ctx context.Context, limit int) ([]*Outbox, error) {
	rows, err := c.Query(ctx, `
		SELECT id, message_id, device_id, payload, status, attempts, next_attempt_at, last_error, created_at, updated_at
		FROM outbox WHERE status IN ($1, $2) AND (next_attempt_at IS NULL OR next_attempt_at <= now())
		ORDER BY created_at ASC LIMIT $3`, OutboxPending, OutboxRetry, limit)
	if err != nil {
		return nil, fmt.Errorf("list pending outbox: %w", err)
	}
	defer rows.Close()

	var out []*Outbox
	for rows.Next() {
		var o Outbox
		if err := rows.Scan(&o.ID, &o.MessageID, &o.DeviceID, &o.Payload, &o.Status, &o.Attempts,
			&o.NextAttemptAt, &o.LastError, &o.CreatedAt, &o.UpdatedAt); err != nil {
			return nil, fmt.Errorf("scan outbox: %w", err)
		}
		out = append(out, &o)
	}
	return out, rows.Err()
}

func scanOutbox(row *sql.Row) (*Outbox, error) {
	var o Outbox
	err := row.Scan(&o.ID, &o.MessageID, &o.DeviceID, &o.Payload, &o.Status, &o.Attempts,
		&o.NextAttemptAt, &o.LastError, &o.CreatedAt, &o.UpdatedAt)
	if errors.Is(err, sql.ErrNoRows) {
		return nil, ErrNotFound
	}
	if err != nil {
		return nil, fmt.Errorf("scan outbox: %w", err)
	}
	return &o, nil
}
