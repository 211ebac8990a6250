package billing

import (
	"context"
	"database/sql"
	"fmt"
	"time"

	"github.com/google/uuid"
	"go.uber.org/zap"

	"github.com/brivas/smsgateway/internal/apperr"
	"github.com/brivas/smsgateway/internal/store"
)

const (
	monthlyPeriod = 30 * 24 * time.Hour
	yearlyPeriod  = 365 * 24 * time.Hour
)

// Controller implements the Subscription Controller (C10): creation,
// activation, renewal, cancellation, and expiry, grounded on
// subscription_service.py's create_subscription / process_payment_
// confirmation / generate_renewal_invoice / cancel_subscription /
// expire_subscription.
type Controller struct {
	db       *store.Client
	provider PaymentProvider
	logger   *zap.Logger
}

func NewController(db *store.Client, provider PaymentProvider, logger *zap.Logger) *Controller {
	return &Controller{db: db, provider: provider, logger: logger}
}

// StartResult carries whatever URL the caller must redirect the user to,
// when payment is not free.
type StartResult struct {
	Subscription *store.Subscription
	PaymentURL   string
}

// CreateSubscription starts a subscription in either INVOICE or AUTHORIZED
// mode depending on plan price and caller intent.
func (c *Controller) CreateSubscription(ctx context.Context, user *store.User, plan *store.Plan, cycle string, authorized bool) (*StartResult, error) {
	existing, err := c.db.GetSubscriptionByUser(ctx, user.ID)
	if err != nil && err != store.ErrNotFound {
		return nil, err
	}
	if existing != nil && (existing.Status == store.SubscriptionActive || existing.Status == store.SubscriptionPending) {
		return nil, apperr.Conflict("user already has an active subscription")
	}
	if !plan.Public {
		return nil, apperr.Validation("plan is not available for subscription")
	}

	now := time.Now().UTC()
	periodEnd := now.Add(monthlyPeriod)
	amount := plan.PriceMonthly
	if cycle == store.BillingYearly {
		periodEnd = now.Add(yearlyPeriod)
		amount = plan.PriceYearly
		if amount <= 0 {
			amount = plan.PriceMonthly * 12
		}
	}

	method := store.PaymentMethodInvoice
	if authorized {
		method = store.PaymentMethodAuthorized
	}

	sub, err := c.db.CreateSubscription(ctx, &store.Subscription{
		ID:                 uuid.New(),
		UserID:             user.ID,
		PlanID:             plan.ID,
		BillingCycle:       cycle,
		Status:             store.SubscriptionPending,
		PaymentMethod:      method,
		CurrentPeriodStart: now,
		CurrentPeriodEnd:   periodEnd,
	})
	if err != nil {
		return nil, fmt.Errorf("create subscription: %w", err)
	}

	if amount <= 0 {
		sub.Status = store.SubscriptionActive
		if _, err := c.db.UpdateSubscription(ctx, sub); err != nil {
			return nil, fmt.Errorf("activate free subscription: %w", err)
		}
		if err := c.updateUserQuota(ctx, user.ID, plan.ID); err != nil {
			return nil, err
		}
		return &StartResult{Subscription: sub}, nil
	}

	if authorized {
		return c.startAuthorized(ctx, user, sub, amount)
	}
	return c.startInvoice(ctx, user, sub, amount)
}

func (c *Controller) startInvoice(ctx context.Context, user *store.User, sub *store.Subscription, amount float64) (*StartResult, error) {
	var result *StartResult
	txErr := c.db.WithTransaction(ctx, func(tx *sql.Tx) error {
		p, err := store.CreatePaymentTx(ctx, tx, &store.Payment{
			ID:             uuid.New(),
			SubscriptionID: sub.ID,
			Amount:         amount,
			Currency:       "USD",
			Status:         store.PaymentPending,
			ProviderName:   c.provider.ProviderName(),
			PeriodStart:    sub.CurrentPeriodStart,
			PeriodEnd:      sub.CurrentPeriodEnd,
		})
		if err != nil {
			return fmt.Errorf("create payment: %w", err)
		}

		invoice, err := c.provider.CreateInvoice(ctx, InvoiceRequest{
			Amount:      amount,
			Currency:    "USD",
			Description: "subscription",
			RemoteID:    p.ID.String(),
		})
		if err != nil {
			return apperr.Provider("failed to create provider invoice: %v", err)
		}

		p.ProviderInvoiceID = &invoice.InvoiceID
		p.ProviderInvoiceURL = &invoice.InvoiceURL
		if _, err := store.UpdatePaymentTx(ctx, tx, p); err != nil {
			return fmt.Errorf("store invoice reference: %w", err)
		}

		result = &StartResult{Subscription: sub, PaymentURL: invoice.InvoiceURL}
		return nil
	})
	if txErr != nil {
		return nil, txErr
	}
	return result, nil
}

func (c *Controller) startAuthorized(ctx context.Context, user *store.User, sub *store.Subscription, amount float64) (*StartResult, error) {
	auth, err := c.provider.GetAuthorizationURL(ctx, AuthorizationRequest{RemoteID: user.ID.String()})
	if err != nil {
		return nil, apperr.Provider("failed to get authorization url: %v", err)
	}
	return &StartResult{Subscription: sub, PaymentURL: auth.AuthorizationURL}, nil
}

// ProcessPaymentConfirmation activates a subscription on PAYMENT_COMPLETED.
// Idempotent: a second delivery of the same transaction is a no-op.
func (c *Controller) ProcessPaymentConfirmation(ctx context.Context, paymentID uuid.UUID, transactionID string) error {
	return c.db.WithTransaction(ctx, func(tx *sql.Tx) error {
		payment, err := c.db.GetPayment(ctx, paymentID)
		if err != nil {
			return err
		}
		if payment.Status == store.PaymentCompleted {
			return nil // idempotent no-op
		}

		now := time.Now().UTC()
		payment.Status = store.PaymentCompleted
		payment.ProviderTransactionID = &transactionID
		payment.PaidAt = &now
		if _, err := store.UpdatePaymentTx(ctx, tx, payment); err != nil {
			return fmt.Errorf("mark payment completed: %w", err)
		}

		sub, err := store.GetSubscriptionForUpdateTx(ctx, tx, payment.SubscriptionID)
		if err != nil {
			return err
		}

		wasPending := sub.Status == store.SubscriptionPending
		sub.Status = store.SubscriptionActive
		if !wasPending {
			sub.CurrentPeriodStart = payment.PeriodStart
			sub.CurrentPeriodEnd = payment.PeriodEnd
		}
		if _, err := store.UpdateSubscriptionTx(ctx, tx, sub); err != nil {
			return fmt.Errorf("activate subscription: %w", err)
		}

		if err := c.updateUserQuotaTx(ctx, tx, sub.UserID, sub.PlanID); err != nil {
			return err
		}

		if wasPending {
			quota, err := store.GetQuotaForUpdate(ctx, tx, sub.UserID)
			if err != nil {
				return err
			}
			if err := store.ResetQuotaTx(ctx, tx, quota.ID, now); err != nil {
				return err
			}
		}

		return nil
	})
}

// GenerateRenewalInvoice is invoked by the daily renewal scan for due
// subscriptions that are not set up for authorized charging, and as the
// fallback when an authorized renewal charge fails.
func (c *Controller) GenerateRenewalInvoice(ctx context.Context, subscriptionID uuid.UUID) error {
	return c.db.WithTransaction(ctx, func(tx *sql.Tx) error {
		sub, err := store.GetSubscriptionForUpdateTx(ctx, tx, subscriptionID)
		if err != nil {
			return err
		}
		if sub.Status != store.SubscriptionActive {
			return apperr.Validation("subscription is not active")
		}
		if sub.CancelAtPeriodEnd {
			sub.Status = store.SubscriptionCanceled
			now := time.Now().UTC()
			sub.CanceledAt = &now
			_, err := store.UpdateSubscriptionTx(ctx, tx, sub)
			if err != nil {
				return err
			}
			return apperr.Validation("subscription is set to cancel at period end")
		}

		plan, err := c.db.GetPlan(ctx, sub.PlanID)
		if err != nil {
			return err
		}

		amount, nextStart, nextEnd := renewalAmountAndPeriod(sub, plan)

		payment, err := store.CreatePaymentTx(ctx, tx, &store.Payment{
			ID:             uuid.New(),
			SubscriptionID: sub.ID,
			Amount:         amount,
			Currency:       "USD",
			Status:         store.PaymentPending,
			ProviderName:   c.provider.ProviderName(),
			PeriodStart:    nextStart,
			PeriodEnd:      nextEnd,
		})
		if err != nil {
			return fmt.Errorf("create renewal payment: %w", err)
		}

		invoice, err := c.provider.CreateInvoice(ctx, InvoiceRequest{
			Amount:      amount,
			Currency:    "USD",
			Description: "subscription renewal",
			RemoteID:    payment.ID.String(),
		})
		if err != nil {
			return apperr.Provider("failed to create renewal invoice: %v", err)
		}

		payment.ProviderInvoiceID = &invoice.InvoiceID
		payment.ProviderInvoiceURL = &invoice.InvoiceURL
		if _, err := store.UpdatePaymentTx(ctx, tx, payment); err != nil {
			return fmt.Errorf("store renewal invoice reference: %w", err)
		}

		sub.Status = store.SubscriptionPastDue
		_, err = store.UpdateSubscriptionTx(ctx, tx, sub)
		return err
	})
}

// renewalAmountAndPeriod resolves the amount and next billing period for a
// renewal invoice from the plan's billing cycle, split out from
// GenerateRenewalInvoice so it can be exercised without a transaction.
func renewalAmountAndPeriod(sub *store.Subscription, plan *store.Plan) (amount float64, nextStart, nextEnd time.Time) {
	amount = plan.PriceMonthly
	nextStart = sub.CurrentPeriodEnd
	nextEnd = nextStart.Add(monthlyPeriod)
	if sub.BillingCycle == store.BillingYearly {
		amount = plan.PriceYearly
		nextEnd = nextStart.Add(yearlyPeriod)
	}
	return amount, nextStart, nextEnd
}

// CancelSubscription: immediate cancellation downgrades to the free plan
// right away; otherwise the subscription continues until period end.
func (c *Controller) CancelSubscription(ctx context.Context, subscriptionID uuid.UUID, immediate bool) error {
	return c.db.WithTransaction(ctx, func(tx *sql.Tx) error {
		sub, err := store.GetSubscriptionForUpdateTx(ctx, tx, subscriptionID)
		if err != nil {
			return err
		}
		if sub.Status == store.SubscriptionCanceled {
			return apperr.Validation("subscription is already canceled")
		}

		now := time.Now().UTC()
		if immediate {
			sub.Status = store.SubscriptionCanceled
			sub.CanceledAt = &now
			if _, err := store.UpdateSubscriptionTx(ctx, tx, sub); err != nil {
				return err
			}
			return c.downgradeToFreeTx(ctx, tx, sub.UserID)
		}

		sub.CancelAtPeriodEnd = true
		sub.CanceledAt = &now
		_, err = store.UpdateSubscriptionTx(ctx, tx, sub)
		return err
	})
}

// ExpireSubscription downgrades a subscription past its grace period.
func (c *Controller) ExpireSubscription(ctx context.Context, subscriptionID uuid.UUID) error {
	return c.db.WithTransaction(ctx, func(tx *sql.Tx) error {
		sub, err := store.GetSubscriptionForUpdateTx(ctx, tx, subscriptionID)
		if err != nil {
			return err
		}
		sub.Status = store.SubscriptionExpired
		if _, err := store.UpdateSubscriptionTx(ctx, tx, sub); err != nil {
			return err
		}
		return c.downgradeToFreeTx(ctx, tx, sub.UserID)
	})
}

func (c *Controller) updateUserQuota(ctx context.Context, userID, planID uuid.UUID) error {
	return c.db.WithTransaction(ctx, func(tx *sql.Tx) error {
		return c.updateUserQuotaTx(ctx, tx, userID, planID)
	})
}

func (c *Controller) updateUserQuotaTx(ctx context.Context, tx *sql.Tx, userID, planID uuid.UUID) error {
	quota, err := store.GetQuotaForUpdate(ctx, tx, userID)
	if err == store.ErrNotFound {
		_, err := store.CreateQuotaTx(ctx, tx, &store.Quota{
			ID:            uuid.New(),
			UserID:        userID,
			PlanID:        planID,
			LastResetDate: time.Now().UTC(),
		})
		return err
	}
	if err != nil {
		return err
	}
	return store.SetQuotaPlanTx(ctx, tx, quota.ID, planID)
}

func (c *Controller) downgradeToFreeTx(ctx context.Context, tx *sql.Tx, userID uuid.UUID) error {
	freePlan, err := c.db.GetFreePlan(ctx)
	if err != nil {
		return fmt.Errorf("resolve free plan: %w", err)
	}
	return c.updateUserQuotaTx(ctx, tx, userID, freePlan.ID)
}

// ParseWebhook delegates to the registered provider, keeping HTTP handlers
// decoupled from the concrete PaymentProvider implementation.
func (c *Controller) ParseWebhook(ctx context.Context, body []byte, headers map[string]string) (*WebhookEvent, error) {
	return c.provider.ParseWebhook(ctx, body, headers)
}

// HandleWebhookEvent routes a normalized provider event to the matching
// subscription transition, per §4.9: PAYMENT_COMPLETED activates a pending
// invoice-mode subscription or extends an active one;
// AUTHORIZATION_COMPLETED stores the provider's user handle and immediately
// attempts the first charge; PAYMENT_FAILED marks the payment failed
// without otherwise altering subscription state (the renewal scan or
// upgrade caller surfaces the failure).
func (c *Controller) HandleWebhookEvent(ctx context.Context, event *WebhookEvent) error {
	switch event.EventType {
	case EventPaymentCompleted:
		paymentID, err := uuid.Parse(event.RemoteID)
		if err != nil {
			return apperr.Validation("payment_completed webhook: invalid remote_id")
		}
		return c.ProcessPaymentConfirmation(ctx, paymentID, event.TransactionID)

	case EventAuthorizationCompleted:
		userID, err := uuid.Parse(event.RemoteID)
		if err != nil {
			return apperr.Validation("authorization_completed webhook: invalid remote_id")
		}
		return c.completeAuthorization(ctx, userID, event)

	case EventPaymentFailed:
		return c.markPaymentFailed(ctx, event)

	default:
		return apperr.Validation("unrecognized webhook event type")
	}
}

func (c *Controller) completeAuthorization(ctx context.Context, userID uuid.UUID, event *WebhookEvent) error {
	sub, err := c.db.GetSubscriptionByUser(ctx, userID)
	if err != nil {
		return err
	}
	if sub.Status != store.SubscriptionPending {
		return apperr.Validation("subscription is not pending authorization")
	}

	providerUUID := event.UserUUID
	sub.ProviderUserUUID = &providerUUID
	if _, err := c.db.UpdateSubscription(ctx, sub); err != nil {
		return fmt.Errorf("store provider user uuid: %w", err)
	}

	plan, err := c.db.GetPlan(ctx, sub.PlanID)
	if err != nil {
		return err
	}
	amount := plan.PriceMonthly
	if sub.BillingCycle == store.BillingYearly {
		amount = plan.PriceYearly
	}

	paymentID := uuid.New()
	result, chargeErr := c.provider.ChargeAuthorizedUser(ctx, ChargeRequest{
		UserUUID: providerUUID,
		Amount:   amount,
		RemoteID: paymentID.String(),
	})

	return c.db.WithTransaction(ctx, func(tx *sql.Tx) error {
		now := time.Now().UTC()
		payment, err := store.CreatePaymentTx(ctx, tx, &store.Payment{
			ID:             paymentID,
			SubscriptionID: sub.ID,
			Amount:         amount,
			Currency:       "USD",
			Status:         store.PaymentPending,
			ProviderName:   c.provider.ProviderName(),
			PeriodStart:    sub.CurrentPeriodStart,
			PeriodEnd:      sub.CurrentPeriodEnd,
		})
		if err != nil {
			return err
		}

		locked, err := store.GetSubscriptionForUpdateTx(ctx, tx, sub.ID)
		if err != nil {
			return err
		}

		if chargeErr != nil || !result.Success {
			payment.Status = store.PaymentFailed
			locked.Status = store.SubscriptionExpired
		} else {
			payment.Status = store.PaymentCompleted
			payment.ProviderTransactionID = &result.TransactionID
			payment.PaidAt = &now
			locked.Status = store.SubscriptionActive
		}
		if _, err := store.UpdatePaymentTx(ctx, tx, payment); err != nil {
			return err
		}
		if _, err := store.UpdateSubscriptionTx(ctx, tx, locked); err != nil {
			return err
		}

		if locked.Status == store.SubscriptionActive {
			return c.updateUserQuotaTx(ctx, tx, locked.UserID, locked.PlanID)
		}
		return c.downgradeToFreeTx(ctx, tx, locked.UserID)
	})
}

func (c *Controller) markPaymentFailed(ctx context.Context, event *WebhookEvent) error {
	paymentID, err := uuid.Parse(event.RemoteID)
	if err != nil {
		return apperr.Validation("payment_failed webhook: invalid remote_id")
	}
	return c.db.WithTransaction(ctx, func(tx *sql.Tx) error {
		payment, err := c.db.GetPayment(ctx, paymentID)
		if err != nil {
			return err
		}
		payment.Status = store.PaymentFailed
		_, err = store.UpdatePaymentTx(ctx, tx, payment)
		return err
	})
}
