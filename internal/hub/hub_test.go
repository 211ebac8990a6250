package hub

import (
	"sync"
	"testing"
	"time"

	"github.com/google/uuid"
	"go.uber.org/zap"

	"github.com/brivas/smsgateway/internal/store"
)

type fakeConn struct {
	mu      sync.Mutex
	written []interface{}
	closed  bool
}

func (f *fakeConn) WriteJSON(v interface{}) error {
	f.mu.Lock()
	defer f.mu.Unlock()
	if f.closed {
		return errClosed
	}
	f.written = append(f.written, v)
	return nil
}

func (f *fakeConn) ReadMessage() (int, []byte, error) { return 0, nil, errClosed }

func (f *fakeConn) Close() error {
	f.mu.Lock()
	defer f.mu.Unlock()
	f.closed = true
	return nil
}

type closeErr struct{}

func (closeErr) Error() string { return "closed" }

var errClosed = closeErr{}

func TestHubConnectAndOnlineLookup(t *testing.T) {
	h := New(nil, zap.NewNop())
	deviceID := uuid.New()

	if h.IsOnline(deviceID) {
		t.Fatal("device should not be online before Connect")
	}

	h.Connect(deviceID, &fakeConn{})
	if !h.IsOnline(deviceID) {
		t.Fatal("device should be online after Connect")
	}

	h.Disconnect(deviceID)
	if h.IsOnline(deviceID) {
		t.Fatal("device should not be online after Disconnect")
	}
}

func TestHubOnlineDevicesPreservesOrder(t *testing.T) {
	h := New(nil, zap.NewNop())
	d1 := &store.Device{ID: uuid.New()}
	d2 := &store.Device{ID: uuid.New()}
	d3 := &store.Device{ID: uuid.New()}

	h.Connect(d1.ID, &fakeConn{})
	h.Connect(d3.ID, &fakeConn{})

	online := h.OnlineDevices([]*store.Device{d1, d2, d3})
	if len(online) != 2 || online[0].ID != d1.ID || online[1].ID != d3.ID {
		t.Fatalf("expected [d1, d3] preserving order, got %+v", online)
	}
}

func TestHubPushTaskToOfflineDeviceReturnsFalse(t *testing.T) {
	h := New(nil, zap.NewNop())
	if h.PushTask(uuid.New(), TaskPayload{MessageID: "m1", To: "+1", Body: "hi"}) {
		t.Error("expected PushTask to an unknown device to return false")
	}
}

func TestHubPushTaskDeliversFrame(t *testing.T) {
	h := New(nil, zap.NewNop())
	deviceID := uuid.New()
	conn := &fakeConn{}
	h.Connect(deviceID, conn)

	if !h.PushTask(deviceID, TaskPayload{MessageID: "m1", To: "+1", Body: "hi"}) {
		t.Fatal("expected PushTask to succeed for an online device")
	}

	// Give the session's writer goroutine a moment to drain the channel.
	time.Sleep(20 * time.Millisecond)
	conn.mu.Lock()
	defer conn.mu.Unlock()
	if len(conn.written) != 1 {
		t.Fatalf("expected exactly one frame written, got %d", len(conn.written))
	}
}
