package inbound

import (
	"bytes"
	"context"
	"crypto/hmac"
	"crypto/sha256"
	"encoding/hex"
	"encoding/json"
	"fmt"
	"net/http"
	"time"

	"github.com/google/uuid"
	"go.uber.org/zap"

	"github.com/brivas/smsgateway/internal/store"
)

// Deliverer performs the actual signed HTTP POST to a tenant webhook (C9).
// Invoked from the queue callback handler once a DeliveryJob is dequeued.
type Deliverer struct {
	db      *store.Client
	http    *http.Client
	logger  *zap.Logger
}

func NewDeliverer(db *store.Client, timeout time.Duration, logger *zap.Logger) *Deliverer {
	return &Deliverer{db: db, http: &http.Client{Timeout: timeout}, logger: logger}
}

// Deliver builds the sorted-key, minimally-separated JSON payload, signs it
// if the webhook has a secret, and POSTs it. Success (2xx) marks the
// originating Message's webhook_sent flag. A network error or non-2xx
// response is logged and returned as an error so the queue retries the job;
// the inbound Message is never rolled back.
func (d *Deliverer) Deliver(ctx context.Context, job DeliveryJob) error {
	webhookID, err := uuid.Parse(job.WebhookID)
	if err != nil {
		return fmt.Errorf("invalid webhook_id: %w", err)
	}
	webhook, err := d.db.GetWebhookConfig(ctx, webhookID)
	if err != nil {
		return fmt.Errorf("load webhook config: %w", err)
	}
	if !webhook.Active {
		return nil
	}

	payload := map[string]interface{}{
		"event":      job.Event,
		"from":       job.From,
		"body":       job.Body,
		"timestamp":  job.Timestamp,
		"message_id": job.MessageID,
	}
	body, err := json.Marshal(payload) // map keys serialize sorted, minimal separators
	if err != nil {
		return fmt.Errorf("marshal webhook payload: %w", err)
	}

	req, err := http.NewRequestWithContext(ctx, http.MethodPost, webhook.URL, bytes.NewReader(body))
	if err != nil {
		return fmt.Errorf("build webhook request: %w", err)
	}
	req.Header.Set("Content-Type", "application/json")
	if webhook.SecretKey != nil && *webhook.SecretKey != "" {
		req.Header.Set("X-Webhook-Signature", sign(*webhook.SecretKey, body))
	}

	resp, err := d.http.Do(req)
	if err != nil {
		d.logger.Warn("webhook delivery failed", zap.String("webhook_id", job.WebhookID), zap.Error(err))
		return fmt.Errorf("post webhook: %w", err)
	}
	defer resp.Body.Close()

	if resp.StatusCode < 200 || resp.StatusCode >= 300 {
		d.logger.Warn("webhook delivery non-2xx", zap.String("webhook_id", job.WebhookID), zap.Int("status", resp.StatusCode))
		return fmt.Errorf("webhook responded with status %d", resp.StatusCode)
	}

	messageID, err := uuid.Parse(job.MessageID)
	if err == nil {
		if err := d.db.SetMessageWebhookSent(ctx, messageID); err != nil {
			d.logger.Warn("failed to mark webhook_sent", zap.Error(err))
		}
	}
	return nil
}

func sign(secret string, body []byte) string {
	mac := hmac.New(sha256.New, []byte(secret))
	mac.Write(body)
	return hex.EncodeToString(mac.Sum(nil))
}

// VerifySignature recomputes the HMAC over body and constant-time compares
// it to the provided lowercase-hex signature. Exposed for webhook receivers
// written against this package's conventions and exercised by tests.
func VerifySignature(secret string, body []byte, signature string) bool {
	expected := sign(secret, body)
	return hmac.Equal([]byte(expected), []byte(signature))
}

