// Package billing implements the Subscription Controller (C10), the
// Payment Provider Port (C11), and the Renewal Scan Job (C12). Ported from
// the original's dataclass-based PaymentProvider ABC
// (payment/base.py) into a small Go interface plus result structs, per the
// capability-interface re-architecture note.
package billing

import "context"

type InvoiceStatus string

const (
	InvoiceStatusPending InvoiceStatus = "PENDING"
	InvoiceStatusPaid    InvoiceStatus = "PAID"
	InvoiceStatusFailed  InvoiceStatus = "FAILED"
)

type WebhookEventType string

const (
	EventPaymentCompleted       WebhookEventType = "PAYMENT_COMPLETED"
	EventAuthorizationCompleted WebhookEventType = "AUTHORIZATION_COMPLETED"
	EventPaymentFailed          WebhookEventType = "PAYMENT_FAILED"
)

type InvoiceRequest struct {
	Amount      float64
	Currency    string
	Description string
	RemoteID    string // correlates to Payment.id
	WebhookURL  string
}

type InvoiceResult struct {
	InvoiceID  string
	InvoiceURL string
}

type TransactionInfo struct {
	TransactionID string
	Status        InvoiceStatus
	Amount        float64
}

type AuthorizationRequest struct {
	RemoteID    string // correlates to User.id
	CallbackURL string
	SuccessURL  string
	ErrorURL    string
}

type AuthorizationResult struct {
	AuthorizationURL string
}

type ChargeRequest struct {
	UserUUID    string
	Amount      float64
	Description string
	RemoteID    string // correlates to Payment.id
}

type ChargeResult struct {
	Success       bool
	TransactionID string
	Error         string
}

// WebhookEvent is the normalized shape every provider's parse_webhook
// produces.
type WebhookEvent struct {
	EventType     WebhookEventType
	RemoteID      string
	TransactionID string
	UserUUID      string
	Amount        float64
	Raw           []byte
}

// PaymentProvider is the capability interface external payment providers
// implement. Registered once at startup — no runtime dynamic dispatch.
type PaymentProvider interface {
	ProviderName() string
	IsConfigured() bool

	CreateInvoice(ctx context.Context, req InvoiceRequest) (*InvoiceResult, error)
	GetTransaction(ctx context.Context, transactionID string) (*TransactionInfo, error)
	VerifyPayment(ctx context.Context, transactionID string) (*TransactionInfo, error)
	GetBalance(ctx context.Context) (float64, error)

	SupportsAuthorizedPayments() bool
	GetAuthorizationURL(ctx context.Context, req AuthorizationRequest) (*AuthorizationResult, error)
	ChargeAuthorizedUser(ctx context.Context, req ChargeRequest) (*ChargeResult, error)

	ParseWebhook(ctx context.Context, body []byte, headers map[string]string) (*WebhookEvent, error)
}
