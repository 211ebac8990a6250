// Package quota implements the atomic check-and-reserve quota contract
// (C2): SMS and device counters enforced against plan limits with
// row-level locking, plus the monthly reset sweep.
package quota

import (
	"context"
	"database/sql"
	"fmt"
	"time"

	"github.com/google/uuid"
	"go.uber.org/zap"

	"github.com/brivas/smsgateway/internal/apperr"
	"github.com/brivas/smsgateway/internal/config"
	"github.com/brivas/smsgateway/internal/store"
)

// quotaResetDayConfigKey is the SystemConfig row key that overrides
// Service.resetDay at request time, per SPEC_FULL.md's SystemConfig merge
// step.
const quotaResetDayConfigKey = "quota_reset_day"

// ResetEndpoint is the internal callback the daily quota-reset queue
// schedule posts to; see queue.Scheduler.Schedule.
const ResetEndpoint = "/api/v1/internal/quota/reset-scan"

type Service struct {
	db       *store.Client
	resetDay int
	logger   *zap.Logger
}

func New(db *store.Client, resetDay int, logger *zap.Logger) *Service {
	return &Service{db: db, resetDay: resetDay, logger: logger}
}

// resolveResetDay consults the SystemConfig override before falling back
// to the configured default, per SPEC_FULL.md's merge step.
func (s *Service) resolveResetDay(ctx context.Context) int {
	return config.ResolveInt(ctx, s.db, quotaResetDayConfigKey, s.resetDay)
}

// Status is the public snapshot returned by GetQuota.
type Status struct {
	PlanName        string
	UsedSMS         int
	LimitSMS        int
	UsedDevices     int
	LimitDevices    int
	NextResetDate   time.Time
}

// getOrCreateQuotaTx fetches the user's quota row for update, creating a
// default Free-plan quota if one does not exist yet, mirroring
// _get_or_create_quota / _create_default_quota in the original.
func (s *Service) getOrCreateQuotaTx(ctx context.Context, tx *sql.Tx, userID uuid.UUID) (*store.Quota, error) {
	q, err := store.GetQuotaForUpdate(ctx, tx, userID)
	if err == nil {
		return q, nil
	}
	if err != store.ErrNotFound {
		return nil, err
	}

	plan, err := s.db.GetFreePlan(ctx)
	if err != nil {
		return nil, fmt.Errorf("resolve free plan: %w", err)
	}

	return store.CreateQuotaTx(ctx, tx, &store.Quota{
		ID:                uuid.New(),
		UserID:            userID,
		PlanID:            plan.ID,
		SMSSentThisMonth:  0,
		DevicesRegistered: 0,
		LastResetDate:     time.Now().UTC(),
	})
}

// ReserveSMS atomically checks and increments sms_sent_this_month. Returns
// an *apperr.Error with Kind=KindQuota on overflow; the caller must not
// persist any messages in that case.
func (s *Service) ReserveSMS(ctx context.Context, userID uuid.UUID, n int) error {
	return s.db.WithTransaction(ctx, func(tx *sql.Tx) error {
		q, err := s.getOrCreateQuotaTx(ctx, tx, userID)
		if err != nil {
			return err
		}

		plan, err := s.db.GetPlan(ctx, q.PlanID)
		if err != nil {
			return fmt.Errorf("load plan: %w", err)
		}

		if q.SMSSentThisMonth+n > plan.MaxSMSPerMonth {
			resetDate := calculateResetDate(q.LastResetDate, s.resolveResetDay(ctx))
			return apperr.QuotaExceeded(apperr.QuotaDetail{
				QuotaType:  "sms_monthly",
				Limit:      plan.MaxSMSPerMonth,
				Used:       q.SMSSentThisMonth,
				Available:  max0(plan.MaxSMSPerMonth - q.SMSSentThisMonth),
				ResetDate:  resetDate.Format(time.RFC3339),
				UpgradeURL: "/api/v1/plans/list",
			})
		}

		return store.SetSMSSentTx(ctx, tx, q.ID, q.SMSSentThisMonth+n)
	})
}

// ReleaseSMS symmetrically decrements a reservation that could not be
// fulfilled downstream (e.g. a persistence failure after reserve).
func (s *Service) ReleaseSMS(ctx context.Context, userID uuid.UUID, n int) error {
	return s.db.WithTransaction(ctx, func(tx *sql.Tx) error {
		q, err := store.GetQuotaForUpdate(ctx, tx, userID)
		if err != nil {
			return err
		}
		return store.SetSMSSentTx(ctx, tx, q.ID, max0(q.SMSSentThisMonth-n))
	})
}

func (s *Service) CheckAndRegisterDevice(ctx context.Context, userID uuid.UUID) error {
	return s.db.WithTransaction(ctx, func(tx *sql.Tx) error {
		q, err := s.getOrCreateQuotaTx(ctx, tx, userID)
		if err != nil {
			return err
		}

		plan, err := s.db.GetPlan(ctx, q.PlanID)
		if err != nil {
			return fmt.Errorf("load plan: %w", err)
		}

		if q.DevicesRegistered+1 > plan.MaxDevices {
			return apperr.QuotaExceeded(apperr.QuotaDetail{
				QuotaType:  "devices",
				Limit:      plan.MaxDevices,
				Used:       q.DevicesRegistered,
				Available:  max0(plan.MaxDevices - q.DevicesRegistered),
				UpgradeURL: "/api/v1/plans/list",
			})
		}

		return store.SetDevicesRegisteredTx(ctx, tx, q.ID, q.DevicesRegistered+1)
	})
}

func (s *Service) UnregisterDevice(ctx context.Context, userID uuid.UUID) error {
	return s.db.WithTransaction(ctx, func(tx *sql.Tx) error {
		q, err := store.GetQuotaForUpdate(ctx, tx, userID)
		if err != nil {
			return err
		}
		return store.SetDevicesRegisteredTx(ctx, tx, q.ID, max0(q.DevicesRegistered-1))
	})
}

func (s *Service) GetQuota(ctx context.Context, userID uuid.UUID) (*Status, error) {
	q, err := s.db.GetQuota(ctx, userID)
	if err == store.ErrNotFound {
		plan, ferr := s.db.GetFreePlan(ctx)
		if ferr != nil {
			return nil, ferr
		}
		return &Status{
			PlanName:      plan.Name,
			LimitSMS:      plan.MaxSMSPerMonth,
			LimitDevices:  plan.MaxDevices,
			NextResetDate: calculateResetDate(time.Now().UTC(), s.resolveResetDay(ctx)),
		}, nil
	}
	if err != nil {
		return nil, err
	}

	plan, err := s.db.GetPlan(ctx, q.PlanID)
	if err != nil {
		return nil, fmt.Errorf("load plan: %w", err)
	}

	return &Status{
		PlanName:      plan.Name,
		UsedSMS:       q.SMSSentThisMonth,
		LimitSMS:      plan.MaxSMSPerMonth,
		UsedDevices:   q.DevicesRegistered,
		LimitDevices:  plan.MaxDevices,
		NextResetDate: calculateResetDate(q.LastResetDate, s.resolveResetDay(ctx)),
	}, nil
}

// ResetMonthly zeroes sms_sent_this_month for every quota whose
// last_reset_date falls on resetDay, resolving a SystemConfig override
// ahead of the passed-in fallback. Intended to run once daily from
// internal/queue's scheduler; idempotent within a day since it only ever
// sets sms_sent_this_month to zero.
func (s *Service) ResetMonthly(ctx context.Context, resetDay int) (int, error) {
	resetDay = config.ResolveInt(ctx, s.db, quotaResetDayConfigKey, resetDay)
	quotas, err := s.db.ListQuotasForReset(ctx, resetDay)
	if err != nil {
		return 0, err
	}

	now := time.Now().UTC()
	var reset int
	for _, q := range quotas {
		err := s.db.WithTransaction(ctx, func(tx *sql.Tx) error {
			locked, err := store.GetQuotaForUpdate(ctx, tx, q.UserID)
			if err != nil {
				return err
			}
			return store.ResetQuotaTx(ctx, tx, locked.ID, now)
		})
		if err != nil {
			s.logger.Warn("failed to reset quota", zap.String("user_id", q.UserID.String()), zap.Error(err))
			continue
		}
		reset++
	}
	return reset, nil
}

// calculateResetDate mirrors the original's month-rollover-then-clamp
// technique: advance to the first of next month, then clamp day to the
// last valid day of that month when it would otherwise overflow.
func calculateResetDate(from time.Time, resetDay int) time.Time {
	year, month, _ := from.Date()
	nextMonth := month + 1
	nextYear := year
	if nextMonth > 12 {
		nextMonth = 1
		nextYear++
	}

	lastDay := time.Date(nextYear, nextMonth+1, 0, 0, 0, 0, 0, time.UTC).Day()
	day := resetDay
	if day > lastDay {
		day = lastDay
	}

	return time.Date(nextYear, nextMonth, day, 0, 0, 0, 0, time.UTC)
}

func max0(n int) int {
	if n < 0 {
		return 0
	}
	return n
}
