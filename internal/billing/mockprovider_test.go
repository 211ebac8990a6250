package billing

import (
	"context"
	"testing"
)

func TestMockProviderCreateInvoiceReturnsResolvableURL(t *testing.T) {
	p := NewMockProvider()
	inv, err := p.CreateInvoice(context.Background(), InvoiceRequest{Amount: 9.99, RemoteID: "pay-1"})
	if err != nil {
		t.Fatalf("unexpected error: %v", err)
	}
	if inv.InvoiceID == "" || inv.InvoiceURL == "" {
		t.Fatal("expected non-empty invoice id and url")
	}
}

func TestMockProviderChargeAuthorizedUserSucceeds(t *testing.T) {
	p := NewMockProvider()
	result, err := p.ChargeAuthorizedUser(context.Background(), ChargeRequest{UserUUID: "u1", Amount: 4.99})
	if err != nil {
		t.Fatalf("unexpected error: %v", err)
	}
	if !result.Success || result.TransactionID == "" {
		t.Fatal("expected successful charge with a transaction id")
	}

	tx, err := p.GetTransaction(context.Background(), result.TransactionID)
	if err != nil {
		t.Fatalf("expected charged transaction to be retrievable: %v", err)
	}
	if tx.Status != InvoiceStatusPaid {
		t.Errorf("expected status PAID, got %s", tx.Status)
	}
}

func TestMockProviderGetTransactionUnknownFails(t *testing.T) {
	p := NewMockProvider()
	if _, err := p.GetTransaction(context.Background(), "nope"); err == nil {
		t.Fatal("expected error for unknown transaction id")
	}
}

func TestMockProviderParseWebhookAlwaysErrors(t *testing.T) {
	p := NewMockProvider()
	if _, err := p.ParseWebhook(context.Background(), []byte(`{}`), nil); err == nil {
		t.Fatal("expected mock provider to reject webhook parsing")
	}
}
