// Package queue implements the Job Queue Client (C6): enqueue-with-retries,
// dedup, signed-callback delivery and verification, and daily scheduling.
// Grounded on the original's qstash_service.py contract, re-grounded on
// segmentio/kafka-go as the durable transport (the durable-queue
// implementation itself is an external collaborator per PURPOSE & SCOPE;
// this module is the contract the core consumes) with redis/go-redis for
// dedup-key tracking.
package queue

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
	"github.com/redis/go-redis/v9"
	"github.com/segmentio/kafka-go"
	"go.uber.org/zap"
)

type job struct {
	ID       string          `json:"id"`
	Endpoint string          `json:"endpoint"`
	Payload  json.RawMessage `json:"payload"`
	Retries  int             `json:"retries"`
	Attempt  int             `json:"attempt"`
	DedupID  string          `json:"dedup_id,omitempty"`
	NotBefore time.Time      `json:"not_before,omitempty"`
}

type Config struct {
	Brokers       []string
	Topic         string
	DLQTopic      string
	BaseURL       string
	SigningKey    string
	DedupWindow   time.Duration
}

// Client produces jobs to the durable topic and (via Run) consumes,
// verifies dedup, and delivers the signed HTTP callback.
type Client struct {
	cfg    Config
	writer *kafka.Writer
	redis  *redis.Client
	http   *http.Client
	logger *zap.Logger
}

func New(cfg Config, redisClient *redis.Client, logger *zap.Logger) *Client {
	if cfg.DedupWindow == 0 {
		cfg.DedupWindow = 24 * time.Hour
	}
	return &Client{
		cfg: cfg,
		writer: &kafka.Writer{
			Addr:     kafka.TCP(cfg.Brokers...),
			Topic:    cfg.Topic,
			Balancer: &kafka.LeastBytes{},
		},
		redis:  redisClient,
		http:   &http.Client{Timeout: 30 * time.Second},
		logger: logger,
	}
}

func (c *Client) Close() error {
	return c.writer.Close()
}

// Enqueue delivers payload to endpoint via the durable queue with retries
// and an optional dedup key and delay. Returns the generated job id.
func (c *Client) Enqueue(ctx context.Context, endpoint string, payload []byte, retries int, dedupID string, delay time.Duration) (string, error) {
	j := job{
		ID:       uuid.New().String(),
		Endpoint: endpoint,
		Payload:  payload,
		Retries:  retries,
		DedupID:  dedupID,
	}
	if delay > 0 {
		j.NotBefore = time.Now().Add(delay)
	}

	encoded, err := json.Marshal(j)
	if err != nil {
		return "", fmt.Errorf("marshal job: %w", err)
	}

	if err := c.writer.WriteMessages(ctx, kafka.Message{
		Key:   []byte(j.ID),
		Value: encoded,
	}); err != nil {
		return "", fmt.Errorf("enqueue job: %w", err)
	}

	return j.ID, nil
}

// VerifySignature checks an inbound callback's HMAC-SHA256 signature over
// the raw body, matching the deliverer's own signing scheme.
func (c *Client) VerifySignature(body []byte, signatureHeader string, url string) bool {
	if c.cfg.SigningKey == "" {
		return true
	}
	mac := hmac.New(sha256.New, []byte(c.cfg.SigningKey))
	mac.Write(body)
	expected := hex.EncodeToString(mac.Sum(nil))
	return hmac.Equal([]byte(expected), []byte(signatureHeader))
}

func (c *Client) sign(body []byte) string {
	mac := hmac.New(sha256.New, []byte(c.cfg.SigningKey))
	mac.Write(body)
	return hex.EncodeToString(mac.Sum(nil))
}

// Run drives the consumer loop: reads jobs, drops duplicates seen within
// the dedup window, delivers the signed callback, and routes exhausted
// retries to the DLQ topic. Blocks until ctx is canceled.
func (c *Client) Run(ctx context.Context) error {
	reader := kafka.NewReader(kafka.ReaderConfig{
		Brokers: c.cfg.Brokers,
		Topic:   c.cfg.Topic,
		GroupID: "smsgateway-queue-consumer",
	})
	defer reader.Close()

	for {
		msg, err := reader.ReadMessage(ctx)
		if err != nil {
			if ctx.Err() != nil {
				return nil
			}
			c.logger.Error("queue read failed", zap.Error(err))
			continue
		}

		var j job
		if err := json.Unmarshal(msg.Value, &j); err != nil {
			c.logger.Error("malformed queue job", zap.Error(err))
			continue
		}

		c.deliver(ctx, j)
	}
}

func (c *Client) deliver(ctx context.Context, j job) {
	if !j.NotBefore.IsZero() && time.Now().Before(j.NotBefore) {
		time.Sleep(time.Until(j.NotBefore))
	}

	if j.DedupID != "" && c.redis != nil {
		key := "queue:dedup:" + j.DedupID
		set, err := c.redis.SetNX(ctx, key, "1", c.cfg.DedupWindow).Result()
		if err == nil && !set {
			c.logger.Info("dropping duplicate job", zap.String("dedup_id", j.DedupID))
			return
		}
	}

	url := c.cfg.BaseURL + j.Endpoint
	for attempt := 0; attempt <= j.Retries; attempt++ {
		req, err := http.NewRequestWithContext(ctx, http.MethodPost, url, bytes.NewReader(j.Payload))
		if err != nil {
			c.logger.Error("build callback request failed", zap.Error(err))
			return
		}
		req.Header.Set("Content-Type", "application/json")
		req.Header.Set("X-Queue-Signature", c.sign(j.Payload))

		resp, err := c.http.Do(req)
		if err == nil && resp.StatusCode >= 200 && resp.StatusCode < 300 {
			resp.Body.Close()
			return
		}
		if resp != nil {
			resp.Body.Close()
		}
		c.logger.Warn("queue callback attempt failed", zap.String("job_id", j.ID), zap.Int("attempt", attempt), zap.Error(err))
	}

	c.sendToDLQ(ctx, j)
}

func (c *Client) sendToDLQ(ctx context.Context, j job) {
	encoded, err := json.Marshal(j)
	if err != nil {
		c.logger.Error("marshal dlq job failed", zap.Error(err))
		return
	}
	dlqWriter := &kafka.Writer{
		Addr:     kafka.TCP(c.cfg.Brokers...),
		Topic:    c.cfg.DLQTopic,
		Balancer: &kafka.LeastBytes{},
	}
	defer dlqWriter.Close()

	if err := dlqWriter.WriteMessages(ctx, kafka.Message{Key: []byte(j.ID), Value: encoded}); err != nil {
		c.logger.Error("write to dlq failed", zap.String("job_id", j.ID), zap.Error(err))
	}
}
