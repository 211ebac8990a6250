package dispatch

import (
	"context"
	"testing"

	"github.com/google/uuid"
	"go.uber.org/zap"

	"github.com/brivas/smsgateway/internal/hub"
)

type fakeConn struct{}

func (fakeConn) WriteJSON(v interface{}) error     { return nil }
func (fakeConn) ReadMessage() (int, []byte, error) { return 0, nil, nil }
func (fakeConn) Close() error                      { return nil }

type fakePushProvider struct {
	called   bool
	token    string
	messages []MessageRef
	result   bool
}

func (f *fakePushProvider) ProviderName() string { return "fake" }

func (f *fakePushProvider) SendDataMessage(ctx context.Context, deviceToken string, messages []MessageRef, body string) bool {
	f.called = true
	f.token = deviceToken
	f.messages = messages
	return f.result
}

func TestAndroidHandlerSendUsesLiveSessionWithoutFallback(t *testing.T) {
	h := hub.New(nil, zap.NewNop())
	deviceID := uuid.New()
	h.Connect(deviceID, &fakeConn{})

	push := &fakePushProvider{result: true}
	handler := NewAndroidHandler(h, push, zap.NewNop())

	ok := handler.Send(context.Background(), "token-1", Payload{
		DeviceID: deviceID.String(),
		Messages: []MessageRef{{MessageID: "m1", Recipient: "+1"}},
		Body:     "hi",
	})

	if !ok {
		t.Fatal("expected Send to succeed for an online device")
	}
	if push.called {
		t.Error("expected push provider not to be called when live session delivers")
	}
}

func TestAndroidHandlerSendFallsBackToPushProviderWhenOffline(t *testing.T) {
	h := hub.New(nil, zap.NewNop())
	push := &fakePushProvider{result: true}
	handler := NewAndroidHandler(h, push, zap.NewNop())

	ok := handler.Send(context.Background(), "token-1", Payload{
		DeviceID: uuid.New().String(),
		Messages: []MessageRef{{MessageID: "m1", Recipient: "+1"}, {MessageID: "m2", Recipient: "+2"}},
		Body:     "hi",
	})

	if !ok {
		t.Fatal("expected Send to succeed via the push provider fallback")
	}
	if !push.called {
		t.Fatal("expected push provider to be called for an offline device")
	}
	if push.token != "token-1" {
		t.Errorf("expected fallback to receive the device token, got %q", push.token)
	}
	if len(push.messages) != 2 {
		t.Errorf("expected both undelivered messages to reach the fallback, got %d", len(push.messages))
	}
}

func TestAndroidHandlerSendReportsFailureWhenFallbackFails(t *testing.T) {
	h := hub.New(nil, zap.NewNop())
	push := &fakePushProvider{result: false}
	handler := NewAndroidHandler(h, push, zap.NewNop())

	ok := handler.Send(context.Background(), "", Payload{
		DeviceID: uuid.New().String(),
		Messages: []MessageRef{{MessageID: "m1", Recipient: "+1"}},
		Body:     "hi",
	})

	if ok {
		t.Fatal("expected Send to fail when both live session and fallback fail")
	}
}

func TestModemHandlerSendAlwaysReportsUnimplemented(t *testing.T) {
	handler := NewModemHandler(zap.NewNop())
	if handler.Send(context.Background(), "token", Payload{DeviceID: uuid.New().String()}) {
		t.Fatal("expected modem handler to report failure")
	}
}
