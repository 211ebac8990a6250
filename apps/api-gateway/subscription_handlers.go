package gateway

import (
	"io"
	"net/http"

	"github.com/go-chi/chi/v5"
	"go.uber.org/zap"

	"github.com/brivas/smsgateway/internal/apperr"
)

// handleSubscriptionWebhook receives a signed callback from a payment
// provider. The provider path segment is accepted but unused beyond
// logging — only one provider is registered at a time per §9's
// capability-interface re-architecture, so there is nothing to route on.
func (s *Server) handleSubscriptionWebhook(w http.ResponseWriter, r *http.Request) {
	provider := chi.URLParam(r, "provider")

	body, err := io.ReadAll(r.Body)
	if err != nil {
		writeError(w, apperr.Validation("unreadable request body"))
		return
	}

	headers := map[string]string{}
	for k := range r.Header {
		headers[k] = r.Header.Get(k)
	}

	event, err := s.billing.ParseWebhook(r.Context(), body, headers)
	if err != nil {
		s.logger.Warn("failed to parse provider webhook", zap.String("provider", provider), zap.Error(err))
		writeError(w, apperr.Validation("unrecognized webhook payload"))
		return
	}

	if err := s.billing.HandleWebhookEvent(r.Context(), event); err != nil {
		writeError(w, err)
		return
	}
	writeJSON(w, http.StatusOK, map[string]string{"status": "processed"})
}

// handleCheckRenewalsJob is the internal callback the daily renewal
// schedule posts to via the queue; it carries the same X-Queue-Signature
// verification as the other internal callbacks.
func (s *Server) handleCheckRenewalsJob(w http.ResponseWriter, r *http.Request) {
	body, err := io.ReadAll(r.Body)
	if err != nil {
		writeError(w, apperr.Validation("unreadable request body"))
		return
	}
	sig := r.Header.Get("X-Queue-Signature")
	url := "http://" + r.Host + r.URL.Path
	if !s.queueClient.VerifySignature(body, sig, url) {
		writeError(w, &apperr.Error{Kind: apperr.KindAuthn, Message: "invalid queue signature"})
		return
	}

	if err := s.renewal.Run(r.Context()); err != nil {
		writeError(w, apperr.Internal("renewal scan failed: %v", err))
		return
	}
	writeJSON(w, http.StatusOK, map[string]string{"status": "ok"})
}
