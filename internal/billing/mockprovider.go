package billing

import (
	"context"
	"errors"
	"fmt"
	"sync"

	"github.com/google/uuid"
)

// MockProvider is the only concrete registered provider. Real provider
// implementations (the equivalents of the original's qvapay_provider.py /
// tropipay_provider.py) are out of scope per PURPOSE & SCOPE — only the
// boundary contract is specified — so MockProvider exists to exercise the
// Subscription Controller and HTTP layer end to end with in-memory fixtures
// (freshly generated ids under a fixed mock-provider.local host).
type MockProvider struct {
	mu           sync.Mutex
	invoices     map[string]InvoiceStatus
	transactions map[string]TransactionInfo
}

func NewMockProvider() *MockProvider {
	return &MockProvider{
		invoices:     make(map[string]InvoiceStatus),
		transactions: make(map[string]TransactionInfo),
	}
}

func (m *MockProvider) ProviderName() string { return "mock" }

func (m *MockProvider) IsConfigured() bool { return true }

func (m *MockProvider) CreateInvoice(ctx context.Context, req InvoiceRequest) (*InvoiceResult, error) {
	id := uuid.New().String()
	m.mu.Lock()
	m.invoices[id] = InvoiceStatusPending
	m.mu.Unlock()
	return &InvoiceResult{
		InvoiceID:  id,
		InvoiceURL: fmt.Sprintf("https://mock-provider.local/invoices/%s", id),
	}, nil
}

func (m *MockProvider) GetTransaction(ctx context.Context, transactionID string) (*TransactionInfo, error) {
	m.mu.Lock()
	defer m.mu.Unlock()
	info, ok := m.transactions[transactionID]
	if !ok {
		return nil, errors.New("mock provider: unknown transaction")
	}
	return &info, nil
}

func (m *MockProvider) VerifyPayment(ctx context.Context, transactionID string) (*TransactionInfo, error) {
	return m.GetTransaction(ctx, transactionID)
}

func (m *MockProvider) GetBalance(ctx context.Context) (float64, error) {
	return 0, nil
}

func (m *MockProvider) SupportsAuthorizedPayments() bool { return true }

func (m *MockProvider) GetAuthorizationURL(ctx context.Context, req AuthorizationRequest) (*AuthorizationResult, error) {
	return &AuthorizationResult{
		AuthorizationURL: fmt.Sprintf("https://mock-provider.local/authorize/%s", req.RemoteID),
	}, nil
}

// ChargeAuthorizedUser always succeeds with a freshly generated transaction
// id recorded as paid in memory; there is no real settlement behind it.
func (m *MockProvider) ChargeAuthorizedUser(ctx context.Context, req ChargeRequest) (*ChargeResult, error) {
	txID := uuid.New().String()
	m.mu.Lock()
	m.transactions[txID] = TransactionInfo{TransactionID: txID, Status: InvoiceStatusPaid, Amount: req.Amount}
	m.mu.Unlock()
	return &ChargeResult{Success: true, TransactionID: txID}, nil
}

func (m *MockProvider) ParseWebhook(ctx context.Context, body []byte, headers map[string]string) (*WebhookEvent, error) {
	return nil, errors.New("mock provider: webhooks are driven by test fixtures, not parsed from transport")
}
