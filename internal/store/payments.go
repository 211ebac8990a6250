package store

import (
	"context"
	"database/sql"
	"errors"
	"fmt"

	"github.com/google/uuid"
)

const paymentColumns = `id, subscription_id, amount, currency, status, provider_name, provider_transaction_id,
	provider_invoice_id, provider_invoice_url, period_start, period_end, paid_at, created_at, updated_at`

func CreatePaymentTx(ctx context.Context, tx *sql.Tx, p *Payment) (*Payment, error) {
	row := tx.QueryRowContext(ctx, `
		INSERT INTO payments (id, subscription_id, amount, currency, status, provider_name,
			provider_transaction_id, provider_invoice_id, provider_invoice_url, period_start, period_end, paid_at)
		VALUES ($1, $2, $3, $4, $5, $6, $7, $8, $9, $10, $11, $12)
		RETURNING `+paymentColumns,
		p.ID, p.SubscriptionID, p.Amount, p.Currency, p.Status, p.ProviderName,
		p.ProviderTransactionID, p.ProviderInvoiceID, p.ProviderInvoiceURL, p.PeriodStart, p.PeriodEnd, p.PaidAt)
	return scanPayment(row)
}

func (c *Client) GetPayment(ctx context.Context, id uuid.UUID) (*Payment, error) {
	row := c.QueryRow(ctx, `SELECT `+paymentColumns+` FROM payments WHERE id = $1`, id)
	return scanPayment(row)
}

func (c *Client) GetPaymentByTransactionID(ctx context.Context, txID string) (*Payment, error) {
	row := c.QueryRow(ctx, `SELECT `+paymentColumns+` FROM payments WHERE provider_transaction_id = $1`, txID)
	return scanPayment(row)
}

func UpdatePaymentTx(ctx context.Context, tx *sql.Tx, p *Payment) (*Payment, error) {
	row := tx.QueryRowContext(ctx, `
		UPDATE payments SET status = $1, provider_transaction_id = $2, provider_invoice_id = $3,
			provider_invoice_url = $4, paid_at = $5, updated_at = now()
		WHERE id = $6
		RETURNING `+paymentColumns,
		p.Status, p.ProviderTransactionID, p.ProviderInvoiceID, p.ProviderInvoiceURL, p.PaidAt, p.ID)
	return scanPayment(row)
}

func scanPayment(row *sql.Row) (*Payment, error) {
	var p Payment
	err := row.Scan(&p.ID, &p.SubscriptionID, &p.Amount, &p.Currency, &p.Status, &p.ProviderName,
		&p.ProviderTransactionID, &p.ProviderInvoiceID, &p.ProviderInvoiceURL, &p.PeriodStart, &p.PeriodEnd,
		&p.PaidAt, &p.CreatedAt, &p.UpdatedAt)
	if errors.Is(err, sql.ErrNoRows) {
		return nil, ErrNotFound
	}
	if err != nil {
		return nil, fmt.Errorf("scan payment: %w", err)
	}
	return &p, nil
}
