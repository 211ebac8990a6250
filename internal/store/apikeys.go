package store

import (
	"context"
	"database/sql"
	"errors"
	"fmt"

	"github.com/google/uuid"
)

func (c *Client) CreateAPIKey(ctx context.Context, k *ApiKey) (*ApiKey, error) {
	row := c.QueryRow(ctx, `
		INSERT INTO api_keys (id, user_id, name, key, active)
		VALUES ($1, $2, $3, $4, $5)
		RETURNING id, user_id, name, key, active, last_used_at, created_at`,
		k.ID, k.UserID, k.Name, k.Key, k.Active)
	return scanAPIKey(row)
}

func (c *Client) GetAPIKeyByKey(ctx context.Context, key string) (*ApiKey, error) {
	row := c.QueryRow(ctx, `
		SELECT id, user_id, name, key, active, last_used_at, created_at
		FROM api_keys WHERE key = $1 AND active = true`, key)
	return scanAPIKey(row)
}

func (c *Client) TouchAPIKey(ctx context.Context, id uuid.UUID) error {
	_, err := c.Exec(ctx, `UPDATE api_keys SET last_used_at = now() WHERE id = $1`, id)
	if err != nil {
		return fmt.Errorf("touch api key: %w", err)
	}
	return nil
}

func (c *Client) RevokeAPIKey(ctx context.Context, id uuid.UUID) error {
	_, err := c.Exec(ctx, `UPDATE api_keys SET active = false WHERE id = $1`, id)
	if err != nil {
		return fmt.Errorf("revoke api key: %w", err)
	}
	return nil
}

func scanAPIKey(row *sql.Row) (*ApiKey, error) {
	var k ApiKey
	err := row.Scan(&k.ID, &k.UserID, &k.Name, &k.Key, &k.Active, &k.LastUsedAt, &k.CreatedAt)
	if errors.Is(err, sql.ErrNoRows) {
		return nil, ErrNotFound
	}
	if err != nil {
		return nil, fmt.Errorf("scan api key: %w", err)
	}
	return &k, nil
}
