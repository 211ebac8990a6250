package dispatch

import (
	"context"

	"go.uber.org/zap"

	"github.com/brivas/smsgateway/internal/hub"
)

// PushProvider is the out-of-band push capability port: when a device has
// no live session to push a task frame to directly, the handler falls back
// to this external collaborator (FCM in the original's FCMService). Mirrors
// the billing.PaymentProvider capability-interface pattern — one interface,
// one concrete implementation registered at startup.
type PushProvider interface {
	ProviderName() string
	SendDataMessage(ctx context.Context, deviceToken string, messages []MessageRef, body string) bool
}

// MockPushProvider is the only PushProvider implementation wired up: real
// FCM delivery is an external collaborator out of scope per PURPOSE &
// SCOPE, so this records what would have been sent and reports success,
// giving the fallback path something concrete to exercise and test against.
type MockPushProvider struct {
	logger *zap.Logger
}

func NewMockPushProvider(logger *zap.Logger) *MockPushProvider {
	return &MockPushProvider{logger: logger}
}

func (p *MockPushProvider) ProviderName() string { return "mock" }

func (p *MockPushProvider) SendDataMessage(ctx context.Context, deviceToken string, messages []MessageRef, body string) bool {
	if deviceToken == "" {
		return false
	}
	p.logger.Info("mock push provider: data message sent",
		zap.String("device_token", deviceToken), zap.Int("message_count", len(messages)))
	return true
}

// AndroidHandler prefers pushing a task frame directly to a live session;
// when the device has no live session (or the live push fails) it falls
// back to the out-of-band push provider, matching the original's
// FCMHandler.send() fallback behind a live WebSocket session check.
type AndroidHandler struct {
	hub    *hub.Hub
	push   PushProvider
	logger *zap.Logger
}

func NewAndroidHandler(h *hub.Hub, push PushProvider, logger *zap.Logger) *AndroidHandler {
	return &AndroidHandler{hub: h, push: push, logger: logger}
}

func (h *AndroidHandler) DeviceType() DeviceType { return DeviceTypeAndroid }

func (h *AndroidHandler) Send(ctx context.Context, deviceToken string, payload Payload) bool {
	deviceID := mustParseDeviceID(payload.DeviceID)

	ok := true
	var undelivered []MessageRef
	for _, ref := range payload.Messages {
		delivered := h.hub.PushTask(deviceID, hub.TaskPayload{
			MessageID: ref.MessageID,
			To:        ref.Recipient,
			Body:      payload.Body,
		})
		if !delivered {
			undelivered = append(undelivered, ref)
		}
		ok = ok && delivered
	}
	if len(undelivered) == 0 {
		return true
	}

	h.logger.Info("falling back to out-of-band push", zap.String("device_id", payload.DeviceID), zap.Int("message_count", len(undelivered)))
	return h.push.SendDataMessage(ctx, deviceToken, undelivered, payload.Body)
}

// ModemHandler is an intentional placeholder: serial/modem transmission is
// not implemented, matching the original ModemHandler's explicit TODO.
type ModemHandler struct {
	logger *zap.Logger
}

func NewModemHandler(logger *zap.Logger) *ModemHandler {
	return &ModemHandler{logger: logger}
}

func (h *ModemHandler) DeviceType() DeviceType { return DeviceTypeModem }

func (h *ModemHandler) Send(ctx context.Context, deviceToken string, payload Payload) bool {
	h.logger.Warn("modem dispatch not implemented", zap.String("device_id", payload.DeviceID))
	return false
}
