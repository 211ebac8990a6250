package store

import (
	"context"
	"database/sql"
	"errors"
	"fmt"

	"github.com/google/uuid"
)

var ErrNotFound = errors.New("store: not found")

func (c *Client) GetUser(ctx context.Context, id uuid.UUID) (*User, error) {
	row := c.QueryRow(ctx, `
		SELECT id, email, active, superuser, email_verified, hashed_password, created_at
		FROM users WHERE id = $1`, id)
	return scanUser(row)
}

func (c *Client) GetUserByEmail(ctx context.Context, email string) (*User, error) {
	row := c.QueryRow(ctx, `
		SELECT id, email, active, superuser, email_verified, hashed_password, created_at
		FROM users WHERE email = $1`, email)
	return scanUser(row)
}

func scanUser(row *sql.Row) (*User, error) {
	var u User
	err := row.Scan(&u.ID, &u.Email, &u.Active, &u.Superuser, &u.EmailVerified, &u.HashedPassword, &u.CreatedAt)
	if errors.Is(err, sql.ErrNoRows) {
		return nil, ErrNotFound
	}
	if err != nil {
		return nil, fmt.Errorf("scan user: %w", err)
	}
	return &u, nil
}
