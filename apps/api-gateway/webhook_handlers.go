package gateway

import (
	"encoding/json"
	"net/http"

	"github.com/go-chi/chi/v5"
	"github.com/google/uuid"

	"github.com/brivas/smsgateway/internal/apperr"
	"github.com/brivas/smsgateway/internal/authn"
	"github.com/brivas/smsgateway/internal/store"
)

type webhookRequest struct {
	URL       string   `json:"url"`
	SecretKey *string  `json:"secret_key,omitempty"`
	Events    []string `json:"events"`
	Active    *bool    `json:"active,omitempty"`
}

func (s *Server) handleCreateWebhook(w http.ResponseWriter, r *http.Request) {
	user, _ := authn.UserFromContext(r.Context())
	var req webhookRequest
	if err := json.NewDecoder(r.Body).Decode(&req); err != nil {
		writeError(w, apperr.Validation("malformed request body"))
		return
	}
	if req.URL == "" || len(req.Events) == 0 {
		writeError(w, apperr.Validation("url and events are required"))
		return
	}

	wh, err := s.db.CreateWebhookConfig(r.Context(), &store.WebhookConfig{
		ID:        uuid.New(),
		UserID:    user.ID,
		URL:       req.URL,
		SecretKey: req.SecretKey,
		Events:    req.Events,
		Active:    true,
	})
	if err != nil {
		writeError(w, apperr.Internal("create webhook: %v", err))
		return
	}
	writeJSON(w, http.StatusCreated, wh)
}

func (s *Server) loadOwnedWebhook(w http.ResponseWriter, r *http.Request) (*store.WebhookConfig, bool) {
	user, _ := authn.UserFromContext(r.Context())
	id, err := uuid.Parse(chi.URLParam(r, "id"))
	if err != nil {
		writeError(w, apperr.Validation("invalid webhook id"))
		return nil, false
	}
	wh, err := s.db.GetWebhookConfig(r.Context(), id)
	if err != nil || wh.UserID != user.ID {
		writeError(w, apperr.NotFound("webhook not found"))
		return nil, false
	}
	return wh, true
}

func (s *Server) handleGetWebhook(w http.ResponseWriter, r *http.Request) {
	wh, ok := s.loadOwnedWebhook(w, r)
	if !ok {
		return
	}
	writeJSON(w, http.StatusOK, wh)
}

func (s *Server) handleUpdateWebhook(w http.ResponseWriter, r *http.Request) {
	wh, ok := s.loadOwnedWebhook(w, r)
	if !ok {
		return
	}
	var req webhookRequest
	if err := json.NewDecoder(r.Body).Decode(&req); err != nil {
		writeError(w, apperr.Validation("malformed request body"))
		return
	}
	if req.URL != "" {
		wh.URL = req.URL
	}
	if req.SecretKey != nil {
		wh.SecretKey = req.SecretKey
	}
	if len(req.Events) > 0 {
		wh.Events = req.Events
	}
	if req.Active != nil {
		wh.Active = *req.Active
	}
	updated, err := s.db.UpdateWebhookConfig(r.Context(), wh)
	if err != nil {
		writeError(w, apperr.Internal("update webhook: %v", err))
		return
	}
	writeJSON(w, http.StatusOK, updated)
}

func (s *Server) handleDeleteWebhook(w http.ResponseWriter, r *http.Request) {
	wh, ok := s.loadOwnedWebhook(w, r)
	if !ok {
		return
	}
	if err := s.db.DeleteWebhookConfig(r.Context(), wh.ID); err != nil {
		writeError(w, apperr.Internal("delete webhook: %v", err))
		return
	}
	writeJSON(w, http.StatusOK, map[string]string{"status": "deleted"})
}
