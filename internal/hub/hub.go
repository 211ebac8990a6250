// Package hub implements the Connection Hub (C4): process-local membership
// of live bidirectional agent sessions, task routing, and report ingestion.
// Grounded on the original's websocket_manager.py (ConnectionManager +
// asyncio.Lock) — the sync.RWMutex-guarded map is the idiomatic Go
// translation of that asyncio lock; lookups take only the shared read lock,
// so concurrent lookups do not block one another.
package hub

import (
	"context"
	"encoding/json"
	"sync"
	"time"

	"github.com/google/uuid"
	"go.uber.org/zap"

	"github.com/brivas/smsgateway/internal/store"
)

const pingTimeout = 5 * time.Minute

// Conn is the minimal transport a Session needs; *websocket.Conn satisfies
// it, and tests substitute a fake.
type Conn interface {
	WriteJSON(v interface{}) error
	ReadMessage() (messageType int, p []byte, err error)
	Close() error
}

// Session wraps one agent's live connection plus its outbound ordering
// queue (insertion order per device, no cross-device ordering guarantee).
type Session struct {
	DeviceID uuid.UUID
	conn     Conn
	outbound chan []byte
	lastPing time.Time
	mu       sync.Mutex
	closed   bool
}

func newSession(deviceID uuid.UUID, conn Conn) *Session {
	return &Session{
		DeviceID: deviceID,
		conn:     conn,
		outbound: make(chan []byte, 256),
		lastPing: time.Now(),
	}
}

func (s *Session) touch() {
	s.mu.Lock()
	s.lastPing = time.Now()
	s.mu.Unlock()
}

func (s *Session) idleFor() time.Duration {
	s.mu.Lock()
	defer s.mu.Unlock()
	return time.Since(s.lastPing)
}

// enqueue pushes a frame onto this session's serialized writer goroutine.
// Never blocks the caller beyond the channel buffer.
func (s *Session) enqueue(frame []byte) bool {
	s.mu.Lock()
	defer s.mu.Unlock()
	if s.closed {
		return false
	}
	select {
	case s.outbound <- frame:
		return true
	default:
		return false
	}
}

func (s *Session) writer(logger *zap.Logger) {
	for frame := range s.outbound {
		var v interface{} = json.RawMessage(frame)
		if err := s.conn.WriteJSON(v); err != nil {
			logger.Warn("session write failed", zap.String("device_id", s.DeviceID.String()), zap.Error(err))
			return
		}
	}
}

func (s *Session) close() {
	s.mu.Lock()
	if s.closed {
		s.mu.Unlock()
		return
	}
	s.closed = true
	s.mu.Unlock()
	close(s.outbound)
	s.conn.Close()
}

// Hub owns the process-local device_id -> Session membership table.
type Hub struct {
	mu       sync.RWMutex
	sessions map[uuid.UUID]*Session

	db     *store.Client
	logger *zap.Logger
}

func New(db *store.Client, logger *zap.Logger) *Hub {
	h := &Hub{
		sessions: make(map[uuid.UUID]*Session),
		db:       db,
		logger:   logger,
	}
	return h
}

// IsOnline reports whether a device currently has a live session. Lookup
// takes only the shared read lock, so concurrent lookups do not block each
// other; they wait only while a session is being added or removed.
func (h *Hub) IsOnline(deviceID uuid.UUID) bool {
	h.mu.RLock()
	_, ok := h.sessions[deviceID]
	h.mu.RUnlock()
	return ok
}

// OnlineDevices filters candidates to those currently connected, preserving
// order (the send pipeline's round-robin assignment depends on a stable
// device list).
func (h *Hub) OnlineDevices(candidates []*store.Device) []*store.Device {
	h.mu.RLock()
	defer h.mu.RUnlock()

	online := make([]*store.Device, 0, len(candidates))
	for _, d := range candidates {
		if _, ok := h.sessions[d.ID]; ok {
			online = append(online, d)
		}
	}
	return online
}

// Connect registers a new session, replacing any prior session for the same
// device (a reconnect supersedes the stale socket).
func (h *Hub) Connect(deviceID uuid.UUID, conn Conn) *Session {
	session := newSession(deviceID, conn)

	h.mu.Lock()
	if old, ok := h.sessions[deviceID]; ok {
		go old.close()
	}
	h.sessions[deviceID] = session
	h.mu.Unlock()

	go session.writer(h.logger)
	return session
}

// Disconnect removes a session from the registry. Messages left in
// `assigned` for this device are not reassigned automatically — see the
// disconnect open-question decision — but the condition is logged so it is
// observable.
func (h *Hub) Disconnect(deviceID uuid.UUID) {
	h.mu.Lock()
	session, ok := h.sessions[deviceID]
	if ok {
		delete(h.sessions, deviceID)
	}
	h.mu.Unlock()

	if ok {
		session.close()
		h.logger.Info("device session disconnected", zap.String("device_id", deviceID.String()))
	}
}

// PushTask sends one task frame to a specific online device. Returns false
// if the device has no live session (caller should not treat this as a
// failure — the message simply remains queued/assigned for a later pass).
func (h *Hub) PushTask(deviceID uuid.UUID, task TaskPayload) bool {
	task.Type = FrameTask
	frame, err := json.Marshal(task)
	if err != nil {
		h.logger.Error("marshal task frame", zap.Error(err))
		return false
	}

	h.mu.RLock()
	session, ok := h.sessions[deviceID]
	h.mu.RUnlock()
	if !ok {
		return false
	}
	return session.enqueue(frame)
}

// SweepIdleSessions closes sessions that have not sent a ping within
// pingTimeout. Intended to run on a ticker from cmd/server.
func (h *Hub) SweepIdleSessions(ctx context.Context) {
	h.mu.RLock()
	stale := make([]uuid.UUID, 0)
	for id, session := range h.sessions {
		if session.idleFor() > pingTimeout {
			stale = append(stale, id)
		}
	}
	h.mu.RUnlock()

	for _, id := range stale {
		h.logger.Info("closing idle session", zap.String("device_id", id.String()))
		h.Disconnect(id)
	}
}

// Count reports current live session count, for health/metrics endpoints.
func (h *Hub) Count() int {
	h.mu.RLock()
	defer h.mu.RUnlock()
	return len(h.sessions)
}
