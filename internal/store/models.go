package store

import (
	"time"

	"github.com/google/uuid"
)

// Message status values, per the data model's lifecycle definition.
const (
	MessageQueued    = "queued"
	MessageAssigned  = "assigned"
	MessageSending   = "sending"
	MessageSent      = "sent"
	MessageDelivered = "delivered"
	MessageFailed    = "failed"
	MessageReceived  = "received"
)

const (
	MessageTypeOutgoing = "outgoing"
	MessageTypeIncoming = "incoming"
)

// Subscription lifecycle states.
const (
	SubscriptionPending  = "PENDING"
	SubscriptionActive   = "ACTIVE"
	SubscriptionPastDue  = "PAST_DUE"
	SubscriptionCanceled = "CANCELED"
	SubscriptionExpired  = "EXPIRED"
)

const (
	BillingMonthly = "MONTHLY"
	BillingYearly  = "YEARLY"
)

const (
	PaymentMethodInvoice    = "INVOICE"
	PaymentMethodAuthorized = "AUTHORIZED"
)

// Payment status values.
const (
	PaymentPending   = "PENDING"
	PaymentCompleted = "COMPLETED"
	PaymentFailed    = "FAILED"
	PaymentRefunded  = "REFUNDED"
)

// Outbox delivery-attempt status, for the per-chunk dispatch ledger.
const (
	OutboxPending = "pending"
	OutboxSending = "sending"
	OutboxSent    = "sent"
	OutboxFailed  = "failed"
	OutboxRetry   = "retry"
)

type User struct {
	ID             uuid.UUID
	Email          string
	Active         bool
	Superuser      bool
	EmailVerified  bool
	HashedPassword string
	CreatedAt      time.Time
}

type Plan struct {
	ID              uuid.UUID
	Name            string
	MaxSMSPerMonth  int
	MaxDevices      int
	PriceMonthly    float64
	PriceYearly     float64
	Public          bool
	CreatedAt       time.Time
	UpdatedAt       time.Time
}

type Subscription struct {
	ID                  uuid.UUID
	UserID              uuid.UUID
	PlanID              uuid.UUID
	BillingCycle        string
	Status              string
	PaymentMethod       string
	CancelAtPeriodEnd   bool
	CurrentPeriodStart  time.Time
	CurrentPeriodEnd    time.Time
	ProviderUserUUID    *string
	CanceledAt          *time.Time
	CreatedAt           time.Time
	UpdatedAt           time.Time
}

type Payment struct {
	ID                    uuid.UUID
	SubscriptionID        uuid.UUID
	Amount                float64
	Currency              string
	Status                string
	ProviderName          string
	ProviderTransactionID *string
	ProviderInvoiceID     *string
	ProviderInvoiceURL    *string
	PeriodStart           time.Time
	PeriodEnd             time.Time
	PaidAt                *time.Time
	CreatedAt             time.Time
	UpdatedAt             time.Time
}

type Quota struct {
	ID                uuid.UUID
	UserID            uuid.UUID
	PlanID            uuid.UUID
	SMSSentThisMonth  int
	DevicesRegistered int
	LastResetDate     time.Time
}

type Device struct {
	ID          uuid.UUID
	UserID      uuid.UUID
	Name        string
	PhoneNumber string
	APIKey      string
	FCMToken    *string
	CreatedAt   time.Time
	UpdatedAt   time.Time
}

type Message struct {
	ID           uuid.UUID
	UserID       uuid.UUID
	DeviceID     *uuid.UUID
	BatchID      *uuid.UUID
	To           string
	From         *string
	Body         string
	Status       string
	MessageType  string
	ErrorMessage *string
	WebhookSent  bool
	CreatedAt    time.Time
	UpdatedAt    time.Time
	SentAt       *time.Time
	DeliveredAt  *time.Time
}

type WebhookConfig struct {
	ID        uuid.UUID
	UserID    uuid.UUID
	URL       string
	SecretKey *string
	Events    []string
	Active    bool
	CreatedAt time.Time
	UpdatedAt time.Time
}

type ApiKey struct {
	ID         uuid.UUID
	UserID     uuid.UUID
	Name       string
	Key        string
	Active     bool
	LastUsedAt *time.Time
	CreatedAt  time.Time
}

type SystemConfig struct {
	Key         string
	Value       string
	Description string
}

// Outbox is the per-chunk notification-dispatch attempt ledger
// (SUPPLEMENTED FEATURES — not in the distilled spec's data model, carried
// over from the original's SMSOutbox table).
type Outbox struct {
	ID            uuid.UUID
	MessageID     uuid.UUID
	DeviceID      *uuid.UUID
	Payload       []byte
	Status        string
	Attempts      int
	NextAttemptAt *time.Time
	LastError     *string
	CreatedAt     time.Time
	UpdatedAt     time.Time
}
