// Package dispatch implements the Notification Dispatcher (C5): routes
// device-grouped send batches to a device-type handler through the durable
// job queue, chunking oversized batches and recording per-chunk dedup keys.
// Grounded on the original's notification_dispatcher.py (DeviceType enum,
// BaseDeviceHandler ABC, classmethod handler registry) translated into a Go
// interface with variants registered at startup, per the capability-
// interface re-architecture note.
package dispatch

import (
	"context"
	"crypto/sha256"
	"encoding/hex"
	"encoding/json"
	"fmt"
	"time"

	"github.com/google/uuid"
	"go.uber.org/zap"

	"github.com/brivas/smsgateway/internal/queue"
	"github.com/brivas/smsgateway/internal/store"
)

// outboxRetryBackoff is how far out next_attempt_at is set on a failed
// chunk delivery. The queue client runs its own retries; next_attempt_at
// only decides when ReconcileStalePending may re-enqueue the chunk.
const outboxRetryBackoff = time.Minute

// pushSizeCeiling is the out-of-band push payload budget (FCM-compatible),
// in bytes of the serialized `messages` portion of the payload.
const pushSizeCeiling = 4096

const NotificationsEndpoint = "/api/v1/internal/notifications/send"

type DeviceType string

const (
	DeviceTypeAndroid DeviceType = "ANDROID"
	DeviceTypeModem    DeviceType = "MODEM"
)

// MessageRef is one recipient within a dispatch payload.
type MessageRef struct {
	MessageID string `json:"message_id"`
	Recipient string `json:"recipient"`
}

// Payload is what C6 delivers to the registered handler on callback.
type Payload struct {
	DeviceID    string       `json:"device_id"`
	DeviceToken string       `json:"device_token"`
	DeviceType  DeviceType   `json:"device_type"`
	Messages    []MessageRef `json:"messages"`
	Body        string       `json:"body"`
	OutboxID    string       `json:"outbox_id,omitempty"`
}

// Handler is the per-device-type delivery capability. Android pushes via
// the live session or an out-of-band push fallback; Modem is an
// intentionally unimplemented placeholder mirroring the original's
// ModemHandler (serial transmission is out of scope for this core).
type Handler interface {
	DeviceType() DeviceType
	Send(ctx context.Context, deviceToken string, payload Payload) bool
}

// Dispatcher groups messages by device, chunks oversized batches, and
// enqueues each chunk through the job queue client.
type Dispatcher struct {
	db       *store.Client
	queue    *queue.Client
	logger   *zap.Logger
	handlers map[DeviceType]Handler
}

func New(db *store.Client, q *queue.Client, logger *zap.Logger) *Dispatcher {
	return &Dispatcher{
		db:       db,
		queue:    q,
		logger:   logger,
		handlers: make(map[DeviceType]Handler),
	}
}

// Register installs a handler for a device type at startup. No runtime
// reflection — the set of variants is fixed and known ahead of time.
func (d *Dispatcher) Register(h Handler) {
	d.handlers[h.DeviceType()] = h
}

func (d *Dispatcher) HandlerFor(t DeviceType) (Handler, bool) {
	h, ok := d.handlers[t]
	return h, ok
}

// deviceType defaults to ANDROID when an FCM token is present, else MODEM —
// matching the original's `_get_device_type` fallback (that file notes a
// TODO for an explicit device.type field; this module carries the same gap
// since spec's Device model has no such field either).
func deviceType(device *store.Device) DeviceType {
	if device.FCMToken != nil && *device.FCMToken != "" {
		return DeviceTypeAndroid
	}
	return DeviceTypeModem
}

// Dispatch groups messages by device and enqueues one chunked job per
// device, splitting the recipient list to respect pushSizeCeiling while
// preserving recipient order.
func (d *Dispatcher) Dispatch(ctx context.Context, messages []*store.Message) error {
	byDevice := make(map[uuid.UUID][]*store.Message)
	for _, m := range messages {
		if m.DeviceID == nil {
			continue
		}
		byDevice[*m.DeviceID] = append(byDevice[*m.DeviceID], m)
	}

	for deviceID, msgs := range byDevice {
		device, err := d.db.GetDevice(ctx, deviceID)
		if err != nil {
			d.logger.Warn("dispatch: device lookup failed", zap.String("device_id", deviceID.String()), zap.Error(err))
			continue
		}

		refs := make([]MessageRef, len(msgs))
		for i, m := range msgs {
			refs[i] = MessageRef{MessageID: m.ID.String(), Recipient: m.To}
		}

		body := msgs[0].Body
		chunks := chunkRefs(refs, pushSizeCeiling)

		token := ""
		if device.FCMToken != nil {
			token = *device.FCMToken
		}

		for _, chunk := range chunks {
			payload := Payload{
				DeviceID:    deviceID.String(),
				DeviceToken: token,
				DeviceType:  deviceType(device),
				Messages:    chunk,
				Body:        body,
			}

			firstMessageID, err := uuid.Parse(chunk[0].MessageID)
			if err != nil {
				d.logger.Warn("dispatch: invalid message id in chunk", zap.String("message_id", chunk[0].MessageID), zap.Error(err))
			} else {
				payloadForOutbox, err := json.Marshal(payload)
				if err != nil {
					return fmt.Errorf("marshal outbox payload: %w", err)
				}
				entry, err := d.db.CreateOutboxEntry(ctx, &store.Outbox{
					ID:        uuid.New(),
					MessageID: firstMessageID,
					DeviceID:  &deviceID,
					Payload:   payloadForOutbox,
					Status:    store.OutboxPending,
				})
				if err != nil {
					d.logger.Warn("failed to create outbox entry", zap.String("device_id", deviceID.String()), zap.Error(err))
				} else {
					payload.OutboxID = entry.ID.String()
				}
			}

			payloadBytes, err := json.Marshal(payload)
			if err != nil {
				return fmt.Errorf("marshal dispatch payload: %w", err)
			}

			dedupID := dedupKey(deviceID, body, len(chunk))
			if _, err := d.queue.Enqueue(ctx, NotificationsEndpoint, payloadBytes, 3, dedupID, 0); err != nil {
				d.logger.Error("enqueue dispatch job failed", zap.String("device_id", deviceID.String()), zap.Error(err))
			}
		}
	}

	return nil
}

// ProcessQueued is the callback entry point the job queue invokes once per
// enqueued chunk (C5 step 4), once per delivery attempt the queue client
// makes. Records the outcome of each attempt onto the chunk's Outbox row
// when one was created.
func (d *Dispatcher) ProcessQueued(ctx context.Context, payload Payload) bool {
	handler, ok := d.handlers[payload.DeviceType]
	if !ok {
		d.logger.Error("no handler registered for device type", zap.String("device_type", string(payload.DeviceType)))
		d.recordOutboxAttempt(ctx, payload, false)
		return false
	}
	sent := handler.Send(ctx, payload.DeviceToken, payload)
	d.recordOutboxAttempt(ctx, payload, sent)
	return sent
}

// ReconcileStalePending re-enqueues outbox entries whose next_attempt_at
// has passed without reaching a terminal status, recovering chunks whose
// queue job was lost to a process crash between enqueue and delivery.
// Intended to run periodically from cmd/server, mirroring
// internal/sms's DrainSweeper.
func (d *Dispatcher) ReconcileStalePending(ctx context.Context, limit int) (int, error) {
	entries, err := d.db.ListPendingOutboxEntries(ctx, limit)
	if err != nil {
		return 0, err
	}

	var requeued int
	for _, entry := range entries {
		if entry.DeviceID == nil {
			continue
		}
		var payload Payload
		if err := json.Unmarshal(entry.Payload, &payload); err != nil {
			d.logger.Warn("failed to unmarshal stale outbox payload", zap.String("outbox_id", entry.ID.String()), zap.Error(err))
			continue
		}
		payload.OutboxID = entry.ID.String()
		body, err := json.Marshal(payload)
		if err != nil {
			d.logger.Warn("failed to marshal stale outbox payload", zap.String("outbox_id", entry.ID.String()), zap.Error(err))
			continue
		}
		dedupID := dedupKey(*entry.DeviceID, payload.Body, len(payload.Messages))
		if _, err := d.queue.Enqueue(ctx, NotificationsEndpoint, body, 3, dedupID, 0); err != nil {
			d.logger.Warn("failed to re-enqueue stale outbox entry", zap.String("outbox_id", entry.ID.String()), zap.Error(err))
			continue
		}
		requeued++
	}
	return requeued, nil
}

func (d *Dispatcher) recordOutboxAttempt(ctx context.Context, payload Payload, success bool) {
	if payload.OutboxID == "" {
		return
	}
	id, err := uuid.Parse(payload.OutboxID)
	if err != nil {
		return
	}

	status := store.OutboxSent
	var lastErr *string
	var nextAttempt *time.Time
	if !success {
		status = store.OutboxRetry
		msg := "device send failed"
		lastErr = &msg
		next := time.Now().UTC().Add(outboxRetryBackoff)
		nextAttempt = &next
	}

	if err := d.db.RecordOutboxAttempt(ctx, id, status, lastErr, nextAttempt); err != nil {
		d.logger.Warn("failed to record outbox attempt", zap.String("outbox_id", payload.OutboxID), zap.Error(err))
	}
}

// dedupKey matches the `hash(device_id || body || len(messages))` contract.
func dedupKey(deviceID uuid.UUID, body string, n int) string {
	h := sha256.Sum256([]byte(fmt.Sprintf("%s|%s|%d", deviceID, body, n)))
	return hex.EncodeToString(h[:])
}

func mustParseDeviceID(s string) uuid.UUID {
	id, err := uuid.Parse(s)
	if err != nil {
		return uuid.Nil
	}
	return id
}

func chunkRefs(refs []MessageRef, ceilingBytes int) [][]MessageRef {
	if len(refs) == 0 {
		return nil
	}

	full, err := json.Marshal(refs)
	if err == nil && len(full) <= ceilingBytes {
		return [][]MessageRef{refs}
	}

	var chunks [][]MessageRef
	var current []MessageRef
	for _, ref := range refs {
		candidate := append(append([]MessageRef{}, current...), ref)
		encoded, err := json.Marshal(candidate)
		if err == nil && len(encoded) > ceilingBytes && len(current) > 0 {
			chunks = append(chunks, current)
			current = []MessageRef{ref}
			continue
		}
		current = candidate
	}
	if len(current) > 0 {
		chunks = append(chunks, current)
	}
	return chunks
}
