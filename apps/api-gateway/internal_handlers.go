package gateway

import (
	"encoding/json"
	"net/http"

	"github.com/brivas/smsgateway/internal/apperr"
	"github.com/brivas/smsgateway/internal/dispatch"
	"github.com/brivas/smsgateway/internal/inbound"
)

// handleInternalNotificationSend is the callback the queue posts to when a
// device-push job comes due. Already behind requireQueueSignature.
func (s *Server) handleInternalNotificationSend(w http.ResponseWriter, r *http.Request) {
	var payload dispatch.Payload
	if err := json.NewDecoder(r.Body).Decode(&payload); err != nil {
		writeError(w, apperr.Validation("malformed dispatch payload"))
		return
	}
	ok := s.dispatcher.ProcessQueued(r.Context(), payload)
	if !ok {
		writeError(w, apperr.Provider("device dispatch failed"))
		return
	}
	writeJSON(w, http.StatusOK, map[string]string{"status": "ok"})
}

// handleInternalWebhookDeliver is the callback the queue posts to when a
// tenant webhook delivery job comes due. Already behind requireQueueSignature.
func (s *Server) handleInternalWebhookDeliver(w http.ResponseWriter, r *http.Request) {
	var job inbound.DeliveryJob
	if err := json.NewDecoder(r.Body).Decode(&job); err != nil {
		writeError(w, apperr.Validation("malformed delivery job"))
		return
	}
	if err := s.deliverer.Deliver(r.Context(), job); err != nil {
		writeError(w, apperr.Internal("webhook delivery failed: %v", err))
		return
	}
	writeJSON(w, http.StatusOK, map[string]string{"status": "ok"})
}

// handleInternalQuotaReset is the callback the daily quota-reset schedule
// posts to via the queue; it drives quota.Service.ResetMonthly the same
// way handleCheckRenewalsJob drives the renewal scan. Already behind
// requireQueueSignature.
func (s *Server) handleInternalQuotaReset(w http.ResponseWriter, r *http.Request) {
	reset, err := s.quota.ResetMonthly(r.Context(), s.quotaResetDay)
	if err != nil {
		writeError(w, apperr.Internal("quota reset scan failed: %v", err))
		return
	}
	writeJSON(w, http.StatusOK, map[string]interface{}{"status": "ok", "reset_count": reset})
}
