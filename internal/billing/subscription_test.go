package billing

import (
	"context"
	"testing"
	"time"

	"github.com/google/uuid"

	"github.com/brivas/smsgateway/internal/store"
)

func TestHandleWebhookEventRejectsUnrecognizedType(t *testing.T) {
	c := &Controller{}
	err := c.HandleWebhookEvent(context.Background(), &WebhookEvent{EventType: "SOMETHING_ELSE"})
	if err == nil {
		t.Fatal("expected error for unrecognized event type")
	}
}

func TestHandleWebhookEventPaymentCompletedRejectsBadRemoteID(t *testing.T) {
	c := &Controller{}
	err := c.HandleWebhookEvent(context.Background(), &WebhookEvent{EventType: EventPaymentCompleted, RemoteID: "not-a-uuid"})
	if err == nil {
		t.Fatal("expected error for non-uuid remote_id")
	}
}

func TestHandleWebhookEventAuthorizationCompletedRejectsBadRemoteID(t *testing.T) {
	c := &Controller{}
	err := c.HandleWebhookEvent(context.Background(), &WebhookEvent{EventType: EventAuthorizationCompleted, RemoteID: "not-a-uuid"})
	if err == nil {
		t.Fatal("expected error for non-uuid remote_id")
	}
}

func TestRenewalAmountAndPeriodMonthly(t *testing.T) {
	periodEnd := time.Date(2026, 1, 1, 0, 0, 0, 0, time.UTC)
	sub := &store.Subscription{BillingCycle: store.BillingMonthly, CurrentPeriodEnd: periodEnd}
	plan := &store.Plan{PriceMonthly: 9.99, PriceYearly: 99.99}

	amount, start, end := renewalAmountAndPeriod(sub, plan)
	if amount != 9.99 {
		t.Errorf("expected monthly price 9.99, got %v", amount)
	}
	if !start.Equal(periodEnd) {
		t.Errorf("expected next period to start at the current period end, got %v", start)
	}
	if end.Sub(start) != monthlyPeriod {
		t.Errorf("expected a monthly period length, got %v", end.Sub(start))
	}
}

func TestRenewalAmountAndPeriodYearly(t *testing.T) {
	periodEnd := time.Date(2026, 1, 1, 0, 0, 0, 0, time.UTC)
	sub := &store.Subscription{BillingCycle: store.BillingYearly, CurrentPeriodEnd: periodEnd}
	plan := &store.Plan{PriceMonthly: 9.99, PriceYearly: 99.99}

	amount, start, end := renewalAmountAndPeriod(sub, plan)
	if amount != 99.99 {
		t.Errorf("expected yearly price 99.99, got %v", amount)
	}
	if end.Sub(start) != yearlyPeriod {
		t.Errorf("expected a yearly period length, got %v", end.Sub(start))
	}
}

// fakeInvoiceProvider isolates the CreateInvoice contract GenerateRenewalInvoice
// depends on, without requiring a database to exercise the transaction it
// runs inside.
type fakeInvoiceProvider struct {
	PaymentProvider
	invoiceErr error
	lastReq    InvoiceRequest
}

func (f *fakeInvoiceProvider) CreateInvoice(ctx context.Context, req InvoiceRequest) (*InvoiceResult, error) {
	f.lastReq = req
	if f.invoiceErr != nil {
		return nil, f.invoiceErr
	}
	return &InvoiceResult{InvoiceID: "inv_123", InvoiceURL: "https://pay.example/inv_123"}, nil
}

func TestFakeInvoiceProviderRecordsRenewalInvoiceRequest(t *testing.T) {
	provider := &fakeInvoiceProvider{}
	result, err := provider.CreateInvoice(context.Background(), InvoiceRequest{
		Amount:      9.99,
		RemoteID:    uuid.New().String(),
		Description: "subscription renewal",
	})
	if err != nil {
		t.Fatalf("unexpected error: %v", err)
	}
	if result.InvoiceID == "" || result.InvoiceURL == "" {
		t.Fatal("expected a populated invoice id and url")
	}
	if provider.lastReq.Description != "subscription renewal" {
		t.Errorf("expected the renewal description to reach the provider, got %q", provider.lastReq.Description)
	}
}
