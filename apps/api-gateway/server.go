// Package gateway hosts the versioned HTTP surface (/api/v1) for the SMS
// gateway control plane: tenant-facing REST handlers, device callback
// endpoints, and signed internal callbacks driven by the queue. Routing
// follows the same go-chi + middleware + rs/cors stack the original
// Hasura-style engine in this package used, narrowed from auto-generated
// CRUD to a fixed set of purpose-built handlers.
package gateway

import (
	"context"
	"encoding/json"
	"errors"
	"net/http"
	"time"

	"github.com/go-chi/chi/v5"
	"github.com/go-chi/chi/v5/middleware"
	graphqllib "github.com/graphql-go/graphql"
	"github.com/rs/cors"
	"go.uber.org/zap"

	"github.com/brivas/smsgateway/internal/apperr"
	"github.com/brivas/smsgateway/internal/authn"
	"github.com/brivas/smsgateway/internal/billing"
	"github.com/brivas/smsgateway/internal/devices"
	"github.com/brivas/smsgateway/internal/dispatch"
	"github.com/brivas/smsgateway/internal/hub"
	"github.com/brivas/smsgateway/internal/inbound"
	"github.com/brivas/smsgateway/internal/quota"
	"github.com/brivas/smsgateway/internal/queue"
	"github.com/brivas/smsgateway/internal/sms"
	"github.com/brivas/smsgateway/internal/store"
)

// Server wires every internal package into the HTTP surface.
type Server struct {
	db         *store.Client
	auth       *authn.Engine
	deviceAuth *authn.DeviceAuthenticator
	registry   *devices.Registry
	quota      *quota.Service
	hub        *hub.Hub
	dispatcher *dispatch.Dispatcher
	pipeline   *sms.Pipeline
	fanout     *inbound.Fanout
	deliverer  *inbound.Deliverer
	billing    *billing.Controller
	renewal    *billing.RenewalScanner
	quotaResetDay int
	queueClient *queue.Client
	wsHandler  *hub.Handler
	gqlSchema  *graphqllib.Schema
	logger     *zap.Logger
	router     chi.Router
}

type Deps struct {
	DB         *store.Client
	Auth       *authn.Engine
	DeviceAuth *authn.DeviceAuthenticator
	Registry   *devices.Registry
	Quota      *quota.Service
	Hub        *hub.Hub
	Dispatcher *dispatch.Dispatcher
	Pipeline   *sms.Pipeline
	Fanout     *inbound.Fanout
	Deliverer  *inbound.Deliverer
	Billing    *billing.Controller
	Renewal    *billing.RenewalScanner
	QuotaResetDay int
	QueueClient *queue.Client
	WSHandler  *hub.Handler
	Logger     *zap.Logger
	AllowedOrigins []string
}

func NewServer(d Deps) *Server {
	s := &Server{
		db:          d.DB,
		auth:        d.Auth,
		deviceAuth:  d.DeviceAuth,
		registry:    d.Registry,
		quota:       d.Quota,
		hub:         d.Hub,
		dispatcher:  d.Dispatcher,
		pipeline:    d.Pipeline,
		fanout:      d.Fanout,
		deliverer:   d.Deliverer,
		billing:     d.Billing,
		renewal:     d.Renewal,
		quotaResetDay: d.QuotaResetDay,
		queueClient: d.QueueClient,
		wsHandler:   d.WSHandler,
		logger:      d.Logger,
	}
	schema, err := buildGraphQLSchema(d.DB, d.Quota)
	if err != nil {
		d.Logger.Fatal("failed to build graphql schema", zap.Error(err))
	}
	s.gqlSchema = schema
	s.router = s.routes(d.AllowedOrigins)
	return s
}

func (s *Server) Router() chi.Router { return s.router }

func (s *Server) routes(allowedOrigins []string) chi.Router {
	r := chi.NewRouter()
	r.Use(middleware.RequestID)
	r.Use(middleware.RealIP)
	r.Use(middleware.Logger)
	r.Use(middleware.Recoverer)
	r.Use(middleware.Timeout(30 * time.Second))

	if len(allowedOrigins) == 0 {
		allowedOrigins = []string{"*"}
	}
	r.Use(cors.New(cors.Options{
		AllowedOrigins: allowedOrigins,
		AllowedMethods: []string{"GET", "POST", "PUT", "DELETE"},
		AllowedHeaders: []string{"Authorization", "X-API-Key", "Content-Type", "X-Queue-Signature"},
	}).Handler)

	r.Get("/health", s.healthCheck)

	r.Route("/api/v1", func(r chi.Router) {
		r.Route("/sms", func(r chi.Router) {
			r.Group(func(r chi.Router) {
				r.Use(s.auth.RequireUser)
				r.Post("/send", s.handleSendSMS)
				r.Get("/messages", s.handleListMessages)
				r.Get("/messages/{id}", s.handleGetMessage)
				r.Get("/incoming", s.handleListIncoming)
				r.Post("/devices", s.handleCreateDevice)
				r.Get("/devices", s.handleListDevices)
				r.Put("/devices/{id}", s.handleUpdateDevice)
				r.Delete("/devices/{id}", s.handleDeleteDevice)
			})
			r.Group(func(r chi.Router) {
				r.Use(s.requireDevice)
				r.Post("/report", s.handleDeviceReport)
				r.Post("/incoming", s.handleDeviceIncoming)
				r.Post("/fcm-token", s.handleSetFCMToken)
			})
		})

		r.Route("/webhooks", func(r chi.Router) {
			r.Use(s.auth.RequireUser)
			r.Post("/", s.handleCreateWebhook)
			r.Get("/{id}", s.handleGetWebhook)
			r.Put("/{id}", s.handleUpdateWebhook)
			r.Delete("/{id}", s.handleDeleteWebhook)
		})

		r.Route("/plans", func(r chi.Router) {
			r.Get("/list", s.handleListPlans)
			r.Group(func(r chi.Router) {
				r.Use(s.auth.RequireUser)
				r.Get("/quota", s.handleGetQuota)
				r.Put("/upgrade", s.handleUpgradePlan)
				r.Post("/cancel", s.handleCancelPlan)
			})
		})

		r.Route("/subscriptions", func(r chi.Router) {
			r.Post("/webhook/{provider}", s.handleSubscriptionWebhook)
			r.Post("/jobs/check-renewals", s.handleCheckRenewalsJob)
		})

		r.Group(func(r chi.Router) {
			r.Use(s.auth.RequireUser)
			r.Post("/graphql", s.handleGraphQL)
		})

		r.Route("/internal", func(r chi.Router) {
			r.Use(s.requireQueueSignature)
			r.Post("/notifications/send", s.handleInternalNotificationSend)
			r.Post("/webhooks/deliver", s.handleInternalWebhookDeliver)
			r.Post("/quota/reset-scan", s.handleInternalQuotaReset)
		})
	})

	r.Get("/ws/devices", s.handleDeviceWebSocket)

	return r
}

func (s *Server) healthCheck(w http.ResponseWriter, r *http.Request) {
	status := http.StatusOK
	if err := s.db.Health(r.Context()); err != nil {
		status = http.StatusServiceUnavailable
	}
	writeJSON(w, status, map[string]string{"status": "ok"})
}

// --- response helpers, shared across handler files ---

func writeJSON(w http.ResponseWriter, status int, v interface{}) {
	w.Header().Set("Content-Type", "application/json")
	w.WriteHeader(status)
	json.NewEncoder(w).Encode(v)
}

// writeError renders the {detail: ...} envelope spec.md's error model
// requires, mapping apperr.Error.Kind to its HTTP status and using the
// structured QuotaDetail payload when present.
func writeError(w http.ResponseWriter, err error) {
	var ae *apperr.Error
	if errors.As(err, &ae) {
		if ae.Detail != nil {
			writeJSON(w, ae.Kind.StatusCode(), map[string]interface{}{"detail": ae.Detail})
			return
		}
		writeJSON(w, ae.Kind.StatusCode(), map[string]string{"detail": ae.Message})
		return
	}
	writeJSON(w, http.StatusInternalServerError, map[string]string{"detail": "internal error"})
}

func ctxWithTimeout(r *http.Request, d time.Duration) (context.Context, context.CancelFunc) {
	return context.WithTimeout(r.Context(), d)
}
