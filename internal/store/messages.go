package store

import (
	"context"
	"database/sql"
	"errors"
	"fmt"
	"time"

	"github.com/google/uuid"
)

func (c *Client) CreateMessage(ctx context.Context, m *Message) (*Message, error) {
	row := c.QueryRow(ctx, `
		INSERT INTO messages (id, user_id, device_id, batch_id, "to", "from", body, status, message_type, created_at)
		VALUES ($1, $2, $3, $4, $5, $6, $7, $8, $9, now())
		RETURNING id, user_id, device_id, batch_id, "to", "from", body, status, message_type,
			error_message, webhook_sent, created_at, updated_at, sent_at, delivered_at`,
		m.ID, m.UserID, m.DeviceID, m.BatchID, m.To, m.From, m.Body, m.Status, m.MessageType)
	return scanMessage(row)
}

// CreateMessageTx is used by the send pipeline so the batch insert shares a
// transaction with the quota reservation it follows.
func CreateMessageTx(ctx context.Context, tx *sql.Tx, m *Message) (*Message, error) {
	row := tx.QueryRowContext(ctx, `
		INSERT INTO messages (id, user_id, device_id, batch_id, "to", "from", body, status, message_type, created_at)
		VALUES ($1, $2, $3, $4, $5, $6, $7, $8, $9, now())
		RETURNING id, user_id, device_id, batch_id, "to", "from", body, status, message_type,
			error_message, webhook_sent, created_at, updated_at, sent_at, delivered_at`,
		m.ID, m.UserID, m.DeviceID, m.BatchID, m.To, m.From, m.Body, m.Status, m.MessageType)
	return scanMessage(row)
}

func (c *Client) GetMessage(ctx context.Context, id uuid.UUID) (*Message, error) {
	row := c.QueryRow(ctx, `
		SELECT id, user_id, device_id, batch_id, "to", "from", body, status, message_type,
			error_message, webhook_sent, created_at, updated_at, sent_at, delivered_at
		FROM messages WHERE id = $1`, id)
	return scanMessage(row)
}

type MessageFilter struct {
	UserID      uuid.UUID
	MessageType string // "" = any
	Skip, Limit int
}

func (c *Client) ListMessages(ctx context.Context, f MessageFilter) ([]*Message, error) {
	query := `
		SELECT id, user_id, device_id, batch_id, "to", "from", body, status, message_type,
			error_message, webhook_sent, created_at, updated_at, sent_at, delivered_at
		FROM messages WHERE user_id = $1`
	args := []interface{}{f.UserID}
	if f.MessageType != "" {
		query += fmt.Sprintf(" AND message_type = $%d", len(args)+1)
		args = append(args, f.MessageType)
	}
	query += " ORDER BY created_at DESC"
	if f.Limit > 0 {
		query += fmt.Sprintf(" LIMIT $%d OFFSET $%d", len(args)+1, len(args)+2)
		args = append(args, f.Limit, f.Skip)
	}

	rows, err := c.Query(ctx, query, args...)
	if err != nil {
		return nil, fmt.Errorf("list messages: %w", err)
	}
	defer rows.Close()

	var out []*Message
	for rows.Next() {
		var m Message
		if err := scanMessageRows(rows, &m); err != nil {
			return nil, err
		}
		out = append(out, &m)
	}
	return out, rows.Err()
}

// UpdateMessageStatus is idempotent: it refuses to overwrite a terminal
// status (sent, delivered, failed) once set, matching the re-delivery
// invariant for device ACKs.
func (c *Client) UpdateMessageStatus(ctx context.Context, id uuid.UUID, status string, errMsg *string, sentAt, deliveredAt *time.Time) error {
	_, err := c.Exec(ctx, `
		UPDATE messages SET status = $1, error_message = $2,
			sent_at = COALESCE(sent_at, $3), delivered_at = COALESCE(delivered_at, $4), updated_at = now()
		WHERE id = $5 AND status NOT IN ('sent', 'delivered', 'failed')`,
		status, errMsg, sentAt, deliveredAt, id)
	if err != nil {
		return fmt.Errorf("update message status: %w", err)
	}
	return nil
}

func (c *Client) SetMessageWebhookSent(ctx context.Context, id uuid.UUID) error {
	_, err := c.Exec(ctx, `UPDATE messages SET webhook_sent = true WHERE id = $1`, id)
	if err != nil {
		return fmt.Errorf("set webhook sent: %w", err)
	}
	return nil
}

func (c *Client) ListQueuedMessagesByUser(ctx context.Context, userID uuid.UUID) ([]*Message, error) {
	rows, err := c.Query(ctx, `
		SELECT id, user_id, device_id, batch_id, "to", "from", body, status, message_type,
			error_message, webhook_sent, created_at, updated_at, sent_at, delivered_at
		FROM messages WHERE user_id = $1 AND status = $2 ORDER BY created_at ASC`, userID, MessageQueued)
	if err != nil {
		return nil, fmt.Errorf("list queued messages: %w", err)
	}
	defer rows.Close()

	var out []*Message
	for rows.Next() {
		var m Message
		if err := scanMessageRows(rows, &m); err != nil {
			return nil, err
		}
		out = append(out, &m)
	}
	return out, rows.Err()
}

// AssignMessageDevice moves a queued message to assigned; a row in any
// other status is left unchanged. Neither the send pipeline (which inserts
// assigned rows directly) nor the drain sweep calls it.
func (c *Client) AssignMessageDevice(ctx context.Context, id, deviceID uuid.UUID) error {
	_, err := c.Exec(ctx, `
		UPDATE messages SET device_id = $1, status = $2, updated_at = now()
		WHERE id = $3 AND status = $4`, deviceID, MessageAssigned, id, MessageQueued)
	if err != nil {
		return fmt.Errorf("assign message device: %w", err)
	}
	return nil
}

func scanMessage(row *sql.Row) (*Message, error) {
	var m Message
	err := row.Scan(&m.ID, &m.UserID, &m.DeviceID, &m.BatchID, &m.To, &m.From, &m.Body, &m.Status, &m.MessageType,
		&m.ErrorMessage, &m.WebhookSent, &m.CreatedAt, &m.UpdatedAt, &m.SentAt, &m.DeliveredAt)
	if errors.Is(err, sql.ErrNoRows) {
		return nil, ErrNotFound
	}
	if err != nil {
		return nil, fmt.Errorf("scan message: %w", err)
	}
	return &m, nil
}

func scanMessageRows(rows *sql.Rows, m *Message) error {
	if err := rows.Scan(&m.ID, &m.UserID, &m.DeviceID, &m.BatchID, &m.To, &m.From, &m.Body, &m.Status, &m.MessageType,
		&m.ErrorMessage, &m.WebhookSent, &m.CreatedAt, &m.UpdatedAt, &m.SentAt, &m.DeliveredAt); err != nil {
		return fmt.Errorf("scan message: %w", err)
	}
	return nil
}
