package gateway

import (
	"bytes"
	"context"
	"io"
	"net/http"

	"github.com/brivas/smsgateway/internal/apperr"
)

type ctxKey string

const deviceContextKey ctxKey = "gateway_device"

// requireDevice authenticates an agent on the X-API-Key device callback
// endpoints (report, incoming, fcm-token) — the HTTP counterpart to the
// Connection Hub's websocket handshake.
func (s *Server) requireDevice(next http.Handler) http.Handler {
	return http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		device, err := s.deviceAuth.Authenticate(r)
		if err != nil {
			writeError(w, err)
			return
		}
		ctx := context.WithValue(r.Context(), deviceContextKey, device)
		next.ServeHTTP(w, r.WithContext(ctx))
	})
}

// requireQueueSignature validates the X-Queue-Signature header the queue
// consumer attaches to every internal callback delivery, per the
// Job Queue Client's signed-POST contract.
func (s *Server) requireQueueSignature(next http.Handler) http.Handler {
	return http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		body, err := io.ReadAll(r.Body)
		if err != nil {
			writeError(w, apperr.Validation("unreadable request body"))
			return
		}
		r.Body.Close()

		sig := r.Header.Get("X-Queue-Signature")
		url := "http://" + r.Host + r.URL.Path
		if !s.queueClient.VerifySignature(body, sig, url) {
			writeError(w, &apperr.Error{Kind: apperr.KindAuthn, Message: "invalid queue signature"})
			return
		}

		r.Body = io.NopCloser(bytes.NewReader(body))
		next.ServeHTTP(w, r)
	})
}

func (s *Server) handleDeviceWebSocket(w http.ResponseWriter, r *http.Request) {
	s.wsHandler.ServeHTTP(w, r)
}
