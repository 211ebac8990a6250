package billing

import (
	"context"
	"database/sql"
	"time"

	"github.com/google/uuid"
	"go.uber.org/zap"

	"github.com/brivas/smsgateway/internal/config"
	"github.com/brivas/smsgateway/internal/store"
)

// SystemConfig row keys that override the reminder/grace windows at
// request time, per SPEC_FULL.md's merge step.
const (
	reminderDaysConfigKey = "renewal_reminder_days"
	graceDaysConfigKey    = "renewal_grace_period_days"
)

// RenewalScanEndpoint is the internal callback the daily queue schedule
// posts to; see queue.Scheduler.Schedule. Must match the route
// apps/api-gateway mounts handleCheckRenewalsJob on.
const RenewalScanEndpoint = "/api/v1/subscriptions/jobs/check-renewals"

const renewalScanScheduleID = "billing:renewal-scan"

// defaults for the reminder/grace windows; overridable via config in the
// wiring at startup.
const (
	DefaultRenewalReminderDays = 3
	DefaultRenewalGraceDays    = 7
)

// RenewalScanner implements the Renewal Scan Job (C12): a daily sweep that
// charges authorized-mode subscriptions approaching their period end and
// expires subscriptions that have sat PAST_DUE beyond the grace period.
// Grounded on subscription_service.py's cron-driven check_and_process_
// renewals / expire_overdue_subscriptions routines.
type RenewalScanner struct {
	db           *store.Client
	controller   *Controller
	provider     PaymentProvider
	reminderDays int
	graceDays    int
	logger       *zap.Logger
}

func NewRenewalScanner(db *store.Client, controller *Controller, provider PaymentProvider, reminderDays, graceDays int, logger *zap.Logger) *RenewalScanner {
	if reminderDays <= 0 {
		reminderDays = DefaultRenewalReminderDays
	}
	if graceDays <= 0 {
		graceDays = DefaultRenewalGraceDays
	}
	return &RenewalScanner{db: db, controller: controller, provider: provider, reminderDays: reminderDays, graceDays: graceDays, logger: logger}
}

// Run performs one full scan: charge-or-invoice subscriptions due for
// renewal, then expire subscriptions that never recovered from PAST_DUE.
// Errors on individual subscriptions are logged and do not abort the scan.
func (r *RenewalScanner) Run(ctx context.Context) error {
	if err := r.processRenewals(ctx); err != nil {
		return err
	}
	return r.processExpirations(ctx)
}

func (r *RenewalScanner) processRenewals(ctx context.Context) error {
	reminderDays := config.ResolveInt(ctx, r.db, reminderDaysConfigKey, r.reminderDays)
	due, err := r.db.ListSubscriptionsDueForRenewal(ctx, reminderDays)
	if err != nil {
		return err
	}
	for _, sub := range due {
		if err := r.renewOne(ctx, sub); err != nil {
			r.logger.Warn("renewal failed", zap.String("subscription_id", sub.ID.String()), zap.Error(err))
		}
	}
	return nil
}

func (r *RenewalScanner) renewOne(ctx context.Context, sub *store.Subscription) error {
	if sub.PaymentMethod == store.PaymentMethodAuthorized && sub.ProviderUserUUID != nil {
		return r.chargeAuthorizedRenewal(ctx, sub)
	}
	return r.controller.GenerateRenewalInvoice(ctx, sub.ID)
}

func (r *RenewalScanner) chargeAuthorizedRenewal(ctx context.Context, sub *store.Subscription) error {
	plan, err := r.db.GetPlan(ctx, sub.PlanID)
	if err != nil {
		return err
	}
	amount := plan.PriceMonthly
	period := 30 * 24 * time.Hour
	if sub.BillingCycle == store.BillingYearly {
		amount = plan.PriceYearly
		period = 365 * 24 * time.Hour
	}

	paymentID := uuid.New()
	result, err := r.provider.ChargeAuthorizedUser(ctx, ChargeRequest{
		UserUUID: *sub.ProviderUserUUID,
		Amount:   amount,
		RemoteID: paymentID.String(),
	})
	if err != nil || !result.Success {
		r.logger.Warn("authorized charge failed, falling back to invoice", zap.String("subscription_id", sub.ID.String()))
		return r.controller.GenerateRenewalInvoice(ctx, sub.ID)
	}

	txErr := r.db.WithTransaction(ctx, func(tx *sql.Tx) error {
		payment, err := store.CreatePaymentTx(ctx, tx, &store.Payment{
			ID:             paymentID,
			SubscriptionID: sub.ID,
			Amount:         amount,
			Currency:       "USD",
			Status:         store.PaymentPending,
			ProviderName:   r.provider.ProviderName(),
			PeriodStart:    sub.CurrentPeriodEnd,
			PeriodEnd:      sub.CurrentPeriodEnd.Add(period),
		})
		if err != nil {
			return err
		}
		paymentID = payment.ID
		return nil
	})
	if txErr != nil {
		return txErr
	}
	return r.controller.ProcessPaymentConfirmation(ctx, paymentID, result.TransactionID)
}

func (r *RenewalScanner) processExpirations(ctx context.Context) error {
	graceDays := config.ResolveInt(ctx, r.db, graceDaysConfigKey, r.graceDays)
	overdue, err := r.db.ListPastDueExpired(ctx, graceDays)
	if err != nil {
		return err
	}
	for _, sub := range overdue {
		if err := r.controller.ExpireSubscription(ctx, sub.ID); err != nil {
			r.logger.Warn("expiration failed", zap.String("subscription_id", sub.ID.String()), zap.Error(err))
		}
	}
	return nil
}
