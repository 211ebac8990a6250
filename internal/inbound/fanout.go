// Package inbound implements Inbound Fan-out (C8) and the Webhook
// Deliverer (C9): persist an incoming SMS, locate active webhooks, and
// enqueue — never inline — a signed delivery per matching webhook.
// Grounded on the original's ad-hoc background-task fan-out, corrected per
// the re-architecture note to always route through the job queue.
package inbound

import (
	"context"
	"encoding/json"
	"fmt"
	"time"

	"github.com/google/uuid"
	"go.uber.org/zap"

	"github.com/brivas/smsgateway/internal/queue"
	"github.com/brivas/smsgateway/internal/store"
)

const WebhookDeliverEndpoint = "/api/v1/internal/webhooks/deliver"

const EventSMSReceived = "sms_received"

type Fanout struct {
	db     *store.Client
	queue  *queue.Client
	logger *zap.Logger
}

func New(db *store.Client, q *queue.Client, logger *zap.Logger) *Fanout {
	return &Fanout{db: db, queue: q, logger: logger}
}

// DeliveryJob is the payload handed to the queue for each matching webhook.
type DeliveryJob struct {
	WebhookID string `json:"webhook_id"`
	Event     string `json:"event"`
	From      string `json:"from"`
	Body      string `json:"body"`
	Timestamp string `json:"timestamp"`
	MessageID string `json:"message_id"`
}

// HandleIncoming persists the Message then enqueues one delivery job per
// active webhook subscribed to sms_received. Matches the hub's
// IncomingHandler signature.
func (f *Fanout) HandleIncoming(ctx context.Context, device *store.Device, from, body string, timestamp time.Time) {
	msg, err := f.db.CreateMessage(ctx, &store.Message{
		ID:          uuid.New(),
		UserID:      device.UserID,
		DeviceID:    &device.ID,
		To:          "",
		From:        &from,
		Body:        body,
		Status:      store.MessageReceived,
		MessageType: store.MessageTypeIncoming,
	})
	if err != nil {
		f.logger.Error("failed to persist inbound message", zap.Error(err))
		return
	}

	webhooks, err := f.db.ListActiveWebhooksByUser(ctx, device.UserID)
	if err != nil {
		f.logger.Error("failed to list webhooks", zap.Error(err))
		return
	}

	for _, wh := range webhooks {
		if !containsEvent(wh.Events, EventSMSReceived) {
			continue
		}

		job := DeliveryJob{
			WebhookID: wh.ID.String(),
			Event:     EventSMSReceived,
			From:      from,
			Body:      body,
			Timestamp: timestamp.UTC().Format(time.RFC3339),
			MessageID: msg.ID.String(),
		}
		payload, err := json.Marshal(job)
		if err != nil {
			f.logger.Error("marshal webhook job failed", zap.Error(err))
			continue
		}

		dedupID := fmt.Sprintf("webhook:%s:%s", wh.ID, msg.ID)
		if _, err := f.queue.Enqueue(ctx, WebhookDeliverEndpoint, payload, 3, dedupID, 0); err != nil {
			f.logger.Error("enqueue webhook delivery failed", zap.String("webhook_id", wh.ID.String()), zap.Error(err))
		}
	}
}

func containsEvent(events []string, target string) bool {
	for _, e := range events {
		if e == target {
			return true
		}
	}
	return false
}
