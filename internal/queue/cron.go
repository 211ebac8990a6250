package queue

import (
	"context"
	"fmt"
	"strconv"
	"strings"
	"sync"
	"time"

	"go.uber.org/zap"
)

// schedule is a minimal 5-field (minute hour * * *) daily cron spec. No
// external cron library appears anywhere in the example pack, so this is
// deliberately a small stdlib time.Ticker-driven implementation rather than
// a dependency this domain has no other use for.
type schedule struct {
	minute, hour int
	endpoint     string
	retries      int
	scheduleID   string
}

// Scheduler drives daily recurring jobs (the C12 renewal scan trigger).
type Scheduler struct {
	client    *Client
	logger    *zap.Logger
	mu        sync.Mutex
	schedules map[string]schedule
}

func NewScheduler(client *Client, logger *zap.Logger) *Scheduler {
	return &Scheduler{client: client, logger: logger, schedules: make(map[string]schedule)}
}

// Schedule idempotently upserts a recurring job. Only daily "M H * * *"
// cron expressions are supported — sufficient for the renewal scan's
// "0 8 * * *" and any similar fixed daily trigger this core needs.
func (s *Scheduler) Schedule(cronExpr, endpoint string, retries int, scheduleID string) error {
	minute, hour, err := parseDailyCron(cronExpr)
	if err != nil {
		return err
	}

	s.mu.Lock()
	s.schedules[scheduleID] = schedule{minute: minute, hour: hour, endpoint: endpoint, retries: retries, scheduleID: scheduleID}
	s.mu.Unlock()
	return nil
}

// Run blocks, firing each registered schedule once per day at its
// configured wall-clock time, until ctx is canceled.
func (s *Scheduler) Run(ctx context.Context) {
	ticker := time.NewTicker(time.Minute)
	defer ticker.Stop()

	fired := make(map[string]string) // scheduleID -> last-fired date string

	for {
		select {
		case <-ctx.Done():
			return
		case now := <-ticker.C:
			s.mu.Lock()
			schedules := make([]schedule, 0, len(s.schedules))
			for _, sch := range s.schedules {
				schedules = append(schedules, sch)
			}
			s.mu.Unlock()

			today := now.Format("2006-01-02")
			for _, sch := range schedules {
				if now.Hour() == sch.hour && now.Minute() == sch.minute && fired[sch.scheduleID] != today {
					fired[sch.scheduleID] = today
					if _, err := s.client.Enqueue(ctx, sch.endpoint, []byte(`{}`), sch.retries, sch.scheduleID+":"+today, 0); err != nil {
						s.logger.Error("scheduled enqueue failed", zap.String("schedule_id", sch.scheduleID), zap.Error(err))
					}
				}
			}
		}
	}
}

func parseDailyCron(expr string) (minute, hour int, err error) {
	fields := strings.Fields(expr)
	if len(fields) != 5 || fields[2] != "*" || fields[3] != "*" || fields[4] != "*" {
		return 0, 0, fmt.Errorf("unsupported cron expression %q: only daily M H * * * is supported", expr)
	}
	minute, err = strconv.Atoi(fields[0])
	if err != nil {
		return 0, 0, fmt.Errorf("invalid minute field: %w", err)
	}
	hour, err = strconv.Atoi(fields[1])
	if err != nil {
		return 0, 0, fmt.Errorf("invalid hour field: %w", err)
	}
	return minute, hour, nil
}
