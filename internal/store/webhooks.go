package store

import (
	"context"
	"database/sql"
	"errors"
	"fmt"

	"github.com/google/uuid"
	"github.com/lib/pq"
)

func (c *Client) CreateWebhookConfig(ctx context.Context, w *WebhookConfig) (*WebhookConfig, error) {
	row := c.QueryRow(ctx, `
		INSERT INTO webhook_configs (id, user_id, url, secret_key, events, active)
		VALUES ($1, $2, $3, $4, $5, $6)
		RETURNING id, user_id, url, secret_key, events, active, created_at, updated_at`,
		w.ID, w.UserID, w.URL, w.SecretKey, pq.Array(w.Events), w.Active)
	return scanWebhook(row)
}

func (c *Client) GetWebhookConfig(ctx context.Context, id uuid.UUID) (*WebhookConfig, error) {
	row := c.QueryRow(ctx, `
		SELECT id, user_id, url, secret_key, events, active, created_at, updated_at
		FROM webhook_configs WHERE id = $1`, id)
	return scanWebhook(row)
}

func (c *Client) ListActiveWebhooksByUser(ctx context.Context, userID uuid.UUID) ([]*WebhookConfig, error) {
	rows, err := c.Query(ctx, `
		SELECT id, user_id, url, secret_key, events, active, created_at, updated_at
		FROM webhook_configs WHERE user_id = $1 AND active = true`, userID)
	if err != nil {
		return nil, fmt.Errorf("list webhooks: %w", err)
	}
	defer rows.Close()

	var out []*WebhookConfig
	for rows.Next() {
		var w WebhookConfig
		if err := rows.Scan(&w.ID, &w.UserID, &w.URL, &w.SecretKey, pq.Array(&w.Events), &w.Active, &w.CreatedAt, &w.UpdatedAt); err != nil {
			return nil, fmt.Errorf("scan webhook: %w", err)
		}
		out = append(out, &w)
	}
	return out, rows.Err()
}

func (c *Client) UpdateWebhookConfig(ctx context.Context, w *WebhookConfig) (*WebhookConfig, error) {
	row := c.QueryRow(ctx, `
		UPDATE webhook_configs SET url = $1, secret_key = $2, events = $3, active = $4, updated_at = now()
		WHERE id = $5
		RETURNING id, user_id, url, secret_key, events, active, created_at, updated_at`,
		w.URL, w.SecretKey, pq.Array(w.Events), w.Active, w.ID)
	return scanWebhook(row)
}

func (c *Client) DeleteWebhookConfig(ctx context.Context, id uuid.UUID) error {
	_, err := c.Exec(ctx, `DELETE FROM webhook_configs WHERE id = $1`, id)
	if err != nil {
		return fmt.Errorf("delete webhook: %w", err)
	}
	return nil
}

func scanWebhook(row *sql.Row) (*WebhookConfig, error) {
	var w WebhookConfig
	err := row.Scan(&w.ID, &w.UserID, &w.URL, &w.SecretKey, pq.Array(&w.Events), &w.Active, &w.CreatedAt, &w.UpdatedAt)
	if errors.Is(err, sql.ErrNoRows) {
		return nil, ErrNotFound
	}
	if err != nil {
		return nil, fmt.Errorf("scan webhook: %w", err)
	}
	return &w, nil
}
