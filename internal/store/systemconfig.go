package store

import (
	"context"
	"database/sql"
	"errors"
	"fmt"
)

func (c *Client) GetSystemConfig(ctx context.Context, key string) (*SystemConfig, error) {
	row := c.QueryRow(ctx, `SELECT key, value, description FROM system_config WHERE key = $1`, key)
	var cfg SystemConfig
	err := row.Scan(&cfg.Key, &cfg.Value, &cfg.Description)
	if errors.Is(err, sql.ErrNoRows) {
		return nil, ErrNotFound
	}
	if err != nil {
		return nil, fmt.Errorf("scan system config: %w", err)
	}
	return &cfg, nil
}

func (c *Client) SetSystemConfig(ctx context.Context, cfg *SystemConfig) error {
	_, err := c.Exec(ctx, `
		INSERT INTO system_config (key, value, description) VALUES ($1, $2, $3)
		ON CONFLICT (key) DO UPDATE SET value = EXCLUDED.value, description = EXCLUDED.description`,
		cfg.Key, cfg.Value, cfg.Description)
	if err != nil {
		return fmt.Errorf("set system config: %w", err)
	}
	return nil
}

func (c *Client) ListSystemConfig(ctx context.Context) ([]*SystemConfig, error) {
	rows, err := c.Query(ctx, `SELECT key, value, description FROM system_config ORDER BY key`)
	if err != nil {
		return nil, fmt.Errorf("list system config: %w", err)
	}
	defer rows.Close()

	var out []*SystemConfig
	for rows.Next() {
		var cfg SystemConfig
		if err := rows.Scan(&cfg.Key, &cfg.Value, &cfg.Description); err != nil {
			return nil, fmt.Errorf("scan system config: %w", err)
		}
		out = append(out, &cfg)
	}
	return out, rows.Err()
}
