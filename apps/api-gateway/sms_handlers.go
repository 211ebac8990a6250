package gateway

import (
	"encoding/json"
	"net/http"
	"strconv"
	"time"

	"github.com/go-chi/chi/v5"
	"github.com/google/uuid"
	"go.uber.org/zap"

	"github.com/brivas/smsgateway/internal/apperr"
	"github.com/brivas/smsgateway/internal/authn"
	"github.com/brivas/smsgateway/internal/devices"
	"github.com/brivas/smsgateway/internal/sms"
	"github.com/brivas/smsgateway/internal/store"
)

type sendSMSRequest struct {
	Recipients []string `json:"recipients"`
	Body       string   `json:"body"`
	DeviceID   *string  `json:"device_id,omitempty"`
}

func (s *Server) handleSendSMS(w http.ResponseWriter, r *http.Request) {
	user, _ := authn.UserFromContext(r.Context())

	var req sendSMSRequest
	if err := json.NewDecoder(r.Body).Decode(&req); err != nil {
		writeError(w, apperr.Validation("malformed request body"))
		return
	}

	pReq := sms.Request{Recipients: req.Recipients, Body: req.Body}
	if req.DeviceID != nil {
		id, err := uuid.Parse(*req.DeviceID)
		if err != nil {
			writeError(w, apperr.Validation("device_id is not a valid uuid"))
			return
		}
		pReq.DeviceID = &id
	}

	result, err := s.pipeline.Send(r.Context(), user, pReq)
	if err != nil {
		writeError(w, err)
		return
	}

	writeJSON(w, http.StatusCreated, map[string]interface{}{
		"batch_id":         uuidOrNil(result.BatchID),
		"message_ids":      result.MessageIDs,
		"recipients_count": result.RecipientsCount,
		"status":           result.Status,
	})
}

func uuidOrNil(id *uuid.UUID) interface{} {
	if id == nil {
		return nil
	}
	return id.String()
}

func (s *Server) handleListMessages(w http.ResponseWriter, r *http.Request) {
	user, _ := authn.UserFromContext(r.Context())
	q := r.URL.Query()

	filter := store.MessageFilter{
		UserID:      user.ID,
		MessageType: q.Get("type"),
		Skip:        atoiDefault(q.Get("skip"), 0),
		Limit:       atoiDefault(q.Get("limit"), 100),
	}
	messages, err := s.db.ListMessages(r.Context(), filter)
	if err != nil {
		writeError(w, apperr.Internal("list messages: %v", err))
		return
	}
	writeJSON(w, http.StatusOK, messages)
}

func (s *Server) handleGetMessage(w http.ResponseWriter, r *http.Request) {
	user, _ := authn.UserFromContext(r.Context())
	id, err := uuid.Parse(chi.URLParam(r, "id"))
	if err != nil {
		writeError(w, apperr.Validation("invalid message id"))
		return
	}
	msg, err := s.db.GetMessage(r.Context(), id)
	if err != nil {
		writeError(w, apperr.NotFound("message not found"))
		return
	}
	if msg.UserID != user.ID {
		writeError(w, apperr.NotFound("message not found"))
		return
	}
	writeJSON(w, http.StatusOK, msg)
}

func (s *Server) handleListIncoming(w http.ResponseWriter, r *http.Request) {
	user, _ := authn.UserFromContext(r.Context())
	q := r.URL.Query()
	filter := store.MessageFilter{
		UserID:      user.ID,
		MessageType: store.MessageTypeIncoming,
		Skip:        atoiDefault(q.Get("skip"), 0),
		Limit:       atoiDefault(q.Get("limit"), 100),
	}
	messages, err := s.db.ListMessages(r.Context(), filter)
	if err != nil {
		writeError(w, apperr.Internal("list incoming: %v", err))
		return
	}
	writeJSON(w, http.StatusOK, messages)
}

type createDeviceRequest struct {
	Name        string `json:"name"`
	PhoneNumber string `json:"phone_number"`
}

func (s *Server) handleCreateDevice(w http.ResponseWriter, r *http.Request) {
	user, _ := authn.UserFromContext(r.Context())
	var req createDeviceRequest
	if err := json.NewDecoder(r.Body).Decode(&req); err != nil {
		writeError(w, apperr.Validation("malformed request body"))
		return
	}
	if req.Name == "" || req.PhoneNumber == "" {
		writeError(w, apperr.Validation("name and phone_number are required"))
		return
	}

	if err := s.quota.CheckAndRegisterDevice(r.Context(), user.ID); err != nil {
		writeError(w, err)
		return
	}

	apiKey, err := devices.GenerateAPIKey()
	if err != nil {
		writeError(w, apperr.Internal("generate api key: %v", err))
		return
	}

	device, err := s.db.CreateDevice(r.Context(), &store.Device{
		ID:          uuid.New(),
		UserID:      user.ID,
		Name:        req.Name,
		PhoneNumber: req.PhoneNumber,
		APIKey:      apiKey,
	})
	if err != nil {
		_ = s.quota.UnregisterDevice(r.Context(), user.ID)
		writeError(w, apperr.Internal("create device: %v", err))
		return
	}

	writeJSON(w, http.StatusCreated, map[string]string{
		"device_id": device.ID.String(),
		"api_key":   device.APIKey,
	})
}

func (s *Server) handleListDevices(w http.ResponseWriter, r *http.Request) {
	user, _ := authn.UserFromContext(r.Context())
	list, err := s.db.ListDevicesByUser(r.Context(), user.ID)
	if err != nil {
		writeError(w, apperr.Internal("list devices: %v", err))
		return
	}
	writeJSON(w, http.StatusOK, list)
}

type updateDeviceRequest struct {
	Name        *string `json:"name,omitempty"`
	PhoneNumber *string `json:"phone_number,omitempty"`
}

func (s *Server) handleUpdateDevice(w http.ResponseWriter, r *http.Request) {
	user, _ := authn.UserFromContext(r.Context())
	id, err := uuid.Parse(chi.URLParam(r, "id"))
	if err != nil {
		writeError(w, apperr.Validation("invalid device id"))
		return
	}
	device, err := s.db.GetDevice(r.Context(), id)
	if err != nil || device.UserID != user.ID {
		writeError(w, apperr.NotFound("device not found"))
		return
	}

	var req updateDeviceRequest
	if err := json.NewDecoder(r.Body).Decode(&req); err != nil {
		writeError(w, apperr.Validation("malformed request body"))
		return
	}
	if req.Name != nil {
		device.Name = *req.Name
	}
	if req.PhoneNumber != nil {
		device.PhoneNumber = *req.PhoneNumber
	}
	updated, err := s.db.UpdateDevice(r.Context(), device)
	if err != nil {
		writeError(w, apperr.Internal("update device: %v", err))
		return
	}
	writeJSON(w, http.StatusOK, updated)
}

func (s *Server) handleDeleteDevice(w http.ResponseWriter, r *http.Request) {
	user, _ := authn.UserFromContext(r.Context())
	id, err := uuid.Parse(chi.URLParam(r, "id"))
	if err != nil {
		writeError(w, apperr.Validation("invalid device id"))
		return
	}
	device, err := s.db.GetDevice(r.Context(), id)
	if err != nil || device.UserID != user.ID {
		writeError(w, apperr.NotFound("device not found"))
		return
	}
	if err := s.db.DeleteDevice(r.Context(), id); err != nil {
		writeError(w, apperr.Internal("delete device: %v", err))
		return
	}
	if err := s.quota.UnregisterDevice(r.Context(), user.ID); err != nil {
		s.logger.Warn("failed to release device quota slot", zap.Error(err))
	}
	writeJSON(w, http.StatusOK, map[string]string{"status": "deleted"})
}

// --- device callback endpoints (X-API-Key device auth) ---

func deviceContext(r *http.Request) *store.Device {
	device, _ := r.Context().Value(deviceContextKey).(*store.Device)
	return device
}

type deviceReportRequest struct {
	MessageID string  `json:"message_id"`
	Status    string  `json:"status"`
	Error     *string `json:"error,omitempty"`
}

func (s *Server) handleDeviceReport(w http.ResponseWriter, r *http.Request) {
	device := deviceContext(r)
	var req deviceReportRequest
	if err := json.NewDecoder(r.Body).Decode(&req); err != nil {
		writeError(w, apperr.Validation("malformed request body"))
		return
	}
	messageID, err := uuid.Parse(req.MessageID)
	if err != nil {
		writeError(w, apperr.Validation("invalid message_id"))
		return
	}
	msg, err := s.db.GetMessage(r.Context(), messageID)
	if err != nil || msg.DeviceID == nil || *msg.DeviceID != device.ID {
		writeError(w, apperr.Validation("unknown message for this device"))
		return
	}

	var sentAt, deliveredAt *time.Time
	now := time.Now().UTC()
	switch req.Status {
	case store.MessageSent, store.MessageDelivered:
		sentAt = &now
		if req.Status == store.MessageDelivered {
			deliveredAt = &now
		}
	}
	if err := s.db.UpdateMessageStatus(r.Context(), messageID, req.Status, req.Error, sentAt, deliveredAt); err != nil {
		writeError(w, apperr.Internal("update message status: %v", err))
		return
	}
	writeJSON(w, http.StatusOK, map[string]string{"message": "ok"})
}

type deviceIncomingRequest struct {
	From      string `json:"from"`
	Body      string `json:"body"`
	Timestamp string `json:"timestamp,omitempty"`
}

func (s *Server) handleDeviceIncoming(w http.ResponseWriter, r *http.Request) {
	device := deviceContext(r)
	var req deviceIncomingRequest
	if err := json.NewDecoder(r.Body).Decode(&req); err != nil {
		writeError(w, apperr.Validation("malformed request body"))
		return
	}
	ts := time.Now().UTC()
	if req.Timestamp != "" {
		if parsed, err := time.Parse(time.RFC3339, req.Timestamp); err == nil {
			ts = parsed
		}
	}
	s.fanout.HandleIncoming(r.Context(), device, req.From, req.Body, ts)
	writeJSON(w, http.StatusOK, map[string]string{"message": "ok"})
}

type setFCMTokenRequest struct {
	Token string `json:"token"`
}

func (s *Server) handleSetFCMToken(w http.ResponseWriter, r *http.Request) {
	device := deviceContext(r)
	var req setFCMTokenRequest
	if err := json.NewDecoder(r.Body).Decode(&req); err != nil {
		writeError(w, apperr.Validation("malformed request body"))
		return
	}
	if err := s.db.SetDeviceFCMToken(r.Context(), device.ID, req.Token); err != nil {
		writeError(w, apperr.Internal("set fcm token: %v", err))
		return
	}
	writeJSON(w, http.StatusOK, map[string]string{"status": "ok"})
}

func atoiDefault(s string, def int) int {
	if s == "" {
		return def
	}
	n, err := strconv.Atoi(s)
	if err != nil {
		return def
	}
	return n
}
