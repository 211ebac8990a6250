// SMS gateway control plane entry point.
package main

import (
	"context"
	"net/http"
	"os"
	"os/signal"
	"strconv"
	"syscall"
	"time"

	"github.com/redis/go-redis/v9"
	"go.uber.org/zap"

	gateway "github.com/brivas/smsgateway/apps/api-gateway"
	"github.com/brivas/smsgateway/internal/authn"
	"github.com/brivas/smsgateway/internal/billing"
	"github.com/brivas/smsgateway/internal/config"
	"github.com/brivas/smsgateway/internal/devices"
	"github.com/brivas/smsgateway/internal/dispatch"
	"github.com/brivas/smsgateway/internal/hub"
	"github.com/brivas/smsgateway/internal/inbound"
	"github.com/brivas/smsgateway/internal/quota"
	"github.com/brivas/smsgateway/internal/queue"
	"github.com/brivas/smsgateway/internal/sms"
	"github.com/brivas/smsgateway/internal/store"
)

func main() {
	logger, _ := zap.NewProduction()
	defer logger.Sync()

	cfg, err := config.Load()
	if err != nil {
		logger.Fatal("failed to load configuration", zap.Error(err))
	}

	logger.Info("starting smsgateway control plane", zap.Time("startup", time.Now()))

	db, err := store.Connect(&store.Config{
		Host:     cfg.DatabaseHost,
		Port:     cfg.DatabasePort,
		Database: cfg.DatabaseName,
		User:     cfg.DatabaseUser,
		Password: cfg.DatabasePassword,
		SSLMode:  cfg.DatabaseSSLMode,
	})
	if err != nil {
		logger.Fatal("failed to connect to database", zap.Error(err))
	}
	defer db.Close()

	redisClient := redis.NewClient(&redis.Options{Addr: cfg.RedisAddr})
	defer redisClient.Close()

	queueClient := queue.New(queue.Config{
		Brokers:    cfg.KafkaBrokers,
		Topic:      cfg.KafkaTopic,
		DLQTopic:   cfg.KafkaDLQTopic,
		BaseURL:    cfg.QueueBaseURL,
		SigningKey: cfg.QueueSigningKey,
	}, redisClient, logger)
	defer queueClient.Close()

	h := hub.New(db, logger)
	registry := devices.New(db)
	quotaSvc := quota.New(db, cfg.QuotaResetDay, logger)
	disp := dispatch.New(db, queueClient, logger)
	pushProvider := dispatch.NewMockPushProvider(logger)
	disp.Register(dispatch.NewAndroidHandler(h, pushProvider, logger))
	disp.Register(dispatch.NewModemHandler(logger))

	fanout := inbound.New(db, queueClient, logger)
	deliverer := inbound.NewDeliverer(db, cfg.WebhookTimeout, logger)
	pipeline := sms.New(db, quotaSvc, h, disp, logger)
	drain := sms.NewDrainSweeper(db, h, disp, logger, cfg.SMSDrainQueuedOnRegister)

	provider := billing.NewMockProvider()
	billingController := billing.NewController(db, provider, logger)
	renewalScanner := billing.NewRenewalScanner(db, billingController, provider, cfg.RenewalReminderDays, cfg.RenewalGracePeriodDays, logger)

	authEngine := authn.New(db, cfg.JWTSigningKey, logger)
	deviceAuth := authn.NewDeviceAuthenticator(registry)

	wsHandler := hub.NewHandler(h, db, registry, logger, fanout.HandleIncoming)

	scheduler := queue.NewScheduler(queueClient, logger)
	if err := scheduler.Schedule("0 8 * * *", billing.RenewalScanEndpoint, 3, "billing-renewal-scan"); err != nil {
		logger.Fatal("failed to register renewal scan schedule", zap.Error(err))
	}
	if err := scheduler.Schedule("30 2 * * *", quota.ResetEndpoint, 3, "quota-reset-scan"); err != nil {
		logger.Fatal("failed to register quota reset schedule", zap.Error(err))
	}

	srv := gateway.NewServer(gateway.Deps{
		DB:            db,
		Auth:          authEngine,
		DeviceAuth:    deviceAuth,
		Registry:      registry,
		Quota:         quotaSvc,
		Hub:           h,
		Dispatcher:    disp,
		Pipeline:      pipeline,
		Fanout:        fanout,
		Deliverer:     deliverer,
		Billing:       billingController,
		Renewal:       renewalScanner,
		QuotaResetDay: cfg.QuotaResetDay,
		QueueClient:   queueClient,
		WSHandler:     wsHandler,
		Logger:        logger,
	})

	ctx, cancel := context.WithCancel(context.Background())
	defer cancel()

	go func() {
		if err := queueClient.Run(ctx); err != nil && ctx.Err() == nil {
			logger.Error("queue consumer stopped", zap.Error(err))
		}
	}()
	go scheduler.Run(ctx)
	go runIdleSweep(ctx, h)
	go drain.Run(ctx, time.Minute)
	go runOutboxReconcile(ctx, disp, logger)

	httpServer := &http.Server{
		Addr:    cfg.Host + ":" + strconv.Itoa(cfg.Port),
		Handler: srv.Router(),
	}

	go func() {
		logger.Info("http server listening", zap.String("addr", httpServer.Addr))
		if err := httpServer.ListenAndServe(); err != nil && err != http.ErrServerClosed {
			logger.Fatal("http server failed", zap.Error(err))
		}
	}()

	shutdown := make(chan os.Signal, 1)
	signal.Notify(shutdown, os.Interrupt, syscall.SIGTERM)
	<-shutdown

	logger.Info("shutting down")
	cancel()

	shutdownCtx, shutdownCancel := context.WithTimeout(context.Background(), 15*time.Second)
	defer shutdownCancel()
	if err := httpServer.Shutdown(shutdownCtx); err != nil {
		logger.Error("graceful shutdown failed", zap.Error(err))
	}
}

func runIdleSweep(ctx context.Context, h *hub.Hub) {
	ticker := time.NewTicker(time.Minute)
	defer ticker.Stop()
	for {
		select {
		case <-ctx.Done():
			return
		case <-ticker.C:
			h.SweepIdleSessions(ctx)
		}
	}
}

// runOutboxReconcile periodically recovers outbox entries stuck pending or
// retry past their next_attempt_at, e.g. after a crash between enqueue and
// delivery.
func runOutboxReconcile(ctx context.Context, disp *dispatch.Dispatcher, logger *zap.Logger) {
	ticker := time.NewTicker(5 * time.Minute)
	defer ticker.Stop()
	for {
		select {
		case <-ctx.Done():
			return
		case <-ticker.C:
			if n, err := disp.ReconcileStalePending(ctx, 100); err != nil {
				logger.Warn("outbox reconcile failed", zap.Error(err))
			} else if n > 0 {
				logger.Info("outbox reconcile requeued stale entries", zap.Int("count", n))
			}
		}
	}
}
