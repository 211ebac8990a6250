package store

import (
	"context"
	"database/sql"
	"errors"
	"fmt"

	"github.com/google/uuid"
)

func (c *Client) CreateDevice(ctx context.Context, d *Device) (*Device, error) {
	row := c.QueryRow(ctx, `
		INSERT INTO devices (id, user_id, name, phone_number, api_key, fcm_token)
		VALUES ($1, $2, $3, $4, $5, $6)
		RETURNING id, user_id, name, phone_number, api_key, fcm_token, created_at, updated_at`,
		d.ID, d.UserID, d.Name, d.PhoneNumber, d.APIKey, d.FCMToken)
	return scanDevice(row)
}

func (c *Client) GetDevice(ctx context.Context, id uuid.UUID) (*Device, error) {
	row := c.QueryRow(ctx, `
		SELECT id, user_id, name, phone_number, api_key, fcm_token, created_at, updated_at
		FROM devices WHERE id = $1`, id)
	return scanDevice(row)
}

func (c *Client) GetDeviceByAPIKey(ctx context.Context, apiKey string) (*Device, error) {
	row := c.QueryRow(ctx, `
		SELECT id, user_id, name, phone_number, api_key, fcm_token, created_at, updated_at
		FROM devices WHERE api_key = $1`, apiKey)
	return scanDevice(row)
}

func (c *Client) ListDevicesByUser(ctx context.Context, userID uuid.UUID) ([]*Device, error) {
	rows, err := c.Query(ctx, `
		SELECT id, user_id, name, phone_number, api_key, fcm_token, created_at, updated_at
		FROM devices WHERE user_id = $1 ORDER BY created_at ASC`, userID)
	if err != nil {
		return nil, fmt.Errorf("list devices: %w", err)
	}
	defer rows.Close()

	var out []*Device
	for rows.Next() {
		var d Device
		if err := scanDeviceRows(rows, &d); err != nil {
			return nil, err
		}
		out = append(out, &d)
	}
	return out, rows.Err()
}

func (c *Client) CountDevicesByUser(ctx context.Context, userID uuid.UUID) (int, error) {
	var n int
	err := c.QueryRow(ctx, `SELECT COUNT(*) FROM devices WHERE user_id = $1`, userID).Scan(&n)
	if err != nil {
		return 0, fmt.Errorf("count devices: %w", err)
	}
	return n, nil
}

func (c *Client) UpdateDevice(ctx context.Context, d *Device) (*Device, error) {
	row := c.QueryRow(ctx, `
		UPDATE devices SET name = $1, phone_number = $2, fcm_token = $3, updated_at = now()
		WHERE id = $4
		RETURNING id, user_id, name, phone_number, api_key, fcm_token, created_at, updated_at`,
		d.Name, d.PhoneNumber, d.FCMToken, d.ID)
	return scanDevice(row)
}

func (c *Client) SetDeviceFCMToken(ctx context.Context, id uuid.UUID, token string) error {
	_, err := c.Exec(ctx, `UPDATE devices SET fcm_token = $1, updated_at = now() WHERE id = $2`, token, id)
	if err != nil {
		return fmt.Errorf("set fcm token: %w", err)
	}
	return nil
}

func (c *Client) DeleteDevice(ctx context.Context, id uuid.UUID) error {
	_, err := c.Exec(ctx, `DELETE FROM devices WHERE id = $1`, id)
	if err != nil {
		return fmt.Errorf("delete device: %w", err)
	}
	return nil
}

func scanDevice(row *sql.Row) (*Device, error) {
	var d Device
	err := row.Scan(&d.ID, &d.UserID, &d.Name, &d.PhoneNumber, &d.APIKey, &d.FCMToken, &d.CreatedAt, &d.UpdatedAt)
	if errors.Is(err, sql.ErrNoRows) {
		return nil, ErrNotFound
	}
	if err != nil {
		return nil, fmt.Errorf("scan device: %w", err)
	}
	return &d, nil
}

func scanDeviceRows(rows *sql.Rows, d *Device) error {
	if err := rows.Scan(&d.ID, &d.UserID, &d.Name, &d.PhoneNumber, &d.APIKey, &d.FCMToken, &d.CreatedAt, &d.UpdatedAt); err != nil {
		return fmt.Errorf("scan device: %w", err)
	}
	return nil
}
