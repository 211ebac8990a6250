package hub

import (
	"context"
	"encoding/json"
	"net/http"
	"time"

	"github.com/google/uuid"
	"github.com/gorilla/websocket"
	"go.uber.org/zap"

	"github.com/brivas/smsgateway/internal/devices"
	"github.com/brivas/smsgateway/internal/store"
)

const closeInvalidAPIKey = 4001

// IncomingHandler is invoked for every sms_incoming frame; internal/inbound
// wires this to its fan-out so the hub never imports the fan-out package
// (hub is a leaf relative to it).
type IncomingHandler func(ctx context.Context, device *store.Device, from, body string, timestamp time.Time)

// Handler upgrades and drives one agent WebSocket connection for its
// lifetime. Grounded on apps/api-gateway/gateway.go's WebSocketHandler
// (upgrader + read loop) generalized to this domain's frame protocol.
type Handler struct {
	hub       *Hub
	db        *store.Client
	registry  *devices.Registry
	logger    *zap.Logger
	upgrader  websocket.Upgrader
	onIncoming IncomingHandler
}

func NewHandler(h *Hub, db *store.Client, registry *devices.Registry, logger *zap.Logger, onIncoming IncomingHandler) *Handler {
	return &Handler{
		hub:      h,
		db:       db,
		registry: registry,
		logger:   logger,
		upgrader: websocket.Upgrader{
			CheckOrigin: func(r *http.Request) bool { return true },
		},
		onIncoming: onIncoming,
	}
}

func (h *Handler) ServeHTTP(w http.ResponseWriter, r *http.Request) {
	apiKey := r.URL.Query().Get("api_key")
	device, err := h.registry.Authenticate(r.Context(), apiKey)
	if err != nil {
		conn, upErr := h.upgrader.Upgrade(w, r, nil)
		if upErr == nil {
			conn.WriteControl(websocket.CloseMessage,
				websocket.FormatCloseMessage(closeInvalidAPIKey, "invalid api_key"), time.Now().Add(time.Second))
			conn.Close()
		} else {
			http.Error(w, "invalid api_key", http.StatusUnauthorized)
		}
		return
	}

	conn, err := h.upgrader.Upgrade(w, r, nil)
	if err != nil {
		h.logger.Error("websocket upgrade failed", zap.Error(err))
		return
	}

	session := h.hub.Connect(device.ID, conn)
	defer h.hub.Disconnect(device.ID)

	h.readLoop(r.Context(), device, session, conn)
}

func (h *Handler) readLoop(ctx context.Context, device *store.Device, session *Session, conn *websocket.Conn) {
	for {
		_, raw, err := conn.ReadMessage()
		if err != nil {
			return
		}

		var envelope inboundFrame
		if err := json.Unmarshal(raw, &envelope); err != nil {
			h.sendError(session, "malformed frame")
			continue
		}

		switch envelope.Type {
		case FrameRegister:
			h.handleRegister(ctx, device, session, raw)
		case FramePing:
			session.touch()
			session.enqueue(mustMarshal(PongPayload{Type: FramePong}))
		case FrameSMSReport:
			h.handleSMSReport(ctx, device, session, raw)
		case FrameSMSIncoming:
			h.handleSMSIncoming(ctx, device, raw)
		default:
			h.sendError(session, "unrecognized frame type")
		}
	}
}

func (h *Handler) handleRegister(ctx context.Context, device *store.Device, session *Session, raw []byte) {
	var frame struct {
		RegisterPayload
	}
	if err := json.Unmarshal(raw, &frame); err != nil {
		h.sendError(session, "malformed register frame")
		return
	}

	updated := *device
	updated.Name = frame.DeviceName
	updated.PhoneNumber = frame.PhoneNumber
	if _, err := h.db.UpdateDevice(ctx, &updated); err != nil {
		h.logger.Warn("failed to persist device registration", zap.Error(err))
	}

	session.enqueue(mustMarshal(RegisteredPayload{
		Type:     FrameRegistered,
		DeviceID: device.ID.String(),
		Status:   "ok",
	}))
}

func (h *Handler) handleSMSReport(ctx context.Context, device *store.Device, session *Session, raw []byte) {
	var frame struct {
		SMSReportPayload
	}
	if err := json.Unmarshal(raw, &frame); err != nil {
		h.sendError(session, "malformed sms_report frame")
		return
	}

	messageID, err := uuid.Parse(frame.MessageID)
	if err != nil {
		h.sendError(session, "unknown message_id")
		return
	}

	msg, err := h.db.GetMessage(ctx, messageID)
	if err != nil || msg.DeviceID == nil || *msg.DeviceID != device.ID {
		// Unknown or stale message_id: drop, never back-propagate as a failure.
		h.sendError(session, "unknown message_id")
		return
	}

	var sentAt, deliveredAt *time.Time
	now := time.Now().UTC()
	var errMsg *string
	switch frame.Status {
	case store.MessageSent:
		sentAt = &now
	case store.MessageDelivered:
		sentAt = &now
		deliveredAt = &now
	case store.MessageFailed:
		if frame.Error != "" {
			errMsg = &frame.Error
		}
	default:
		h.sendError(session, "unrecognized report status")
		return
	}

	if err := h.db.UpdateMessageStatus(ctx, messageID, frame.Status, errMsg, sentAt, deliveredAt); err != nil {
		h.logger.Error("failed to record sms_report", zap.Error(err))
		return
	}

	session.enqueue(mustMarshal(AckPayload{Type: FrameAck, MessageID: frame.MessageID}))
}

func (h *Handler) handleSMSIncoming(ctx context.Context, device *store.Device, raw []byte) {
	var frame struct {
		SMSIncomingPayload
	}
	if err := json.Unmarshal(raw, &frame); err != nil {
		return
	}

	ts := time.Now().UTC()
	if frame.Timestamp != "" {
		if parsed, err := time.Parse(time.RFC3339, frame.Timestamp); err == nil {
			ts = parsed
		}
	}

	if h.onIncoming != nil {
		h.onIncoming(ctx, device, frame.From, frame.Body, ts)
	}
}

func (h *Handler) sendError(session *Session, message string) {
	session.enqueue(mustMarshal(ErrorPayload{Type: FrameError, Message: message}))
}

func mustMarshal(v interface{}) []byte {
	b, err := json.Marshal(v)
	if err != nil {
		return []byte(`{"type":"error","message":"internal encode failure"}`)
	}
	return b
}
