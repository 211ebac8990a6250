package gateway

import (
	"encoding/json"
	"net/http"

	"github.com/google/uuid"

	"github.com/brivas/smsgateway/internal/apperr"
	"github.com/brivas/smsgateway/internal/authn"
	"github.com/brivas/smsgateway/internal/store"
)

func (s *Server) handleListPlans(w http.ResponseWriter, r *http.Request) {
	plans, err := s.db.ListPublicPlans(r.Context())
	if err != nil {
		writeError(w, apperr.Internal("list plans: %v", err))
		return
	}
	writeJSON(w, http.StatusOK, plans)
}

func (s *Server) handleGetQuota(w http.ResponseWriter, r *http.Request) {
	user, _ := authn.UserFromContext(r.Context())
	status, err := s.quota.GetQuota(r.Context(), user.ID)
	if err != nil {
		writeError(w, apperr.Internal("get quota: %v", err))
		return
	}
	writeJSON(w, http.StatusOK, status)
}

type upgradePlanRequest struct {
	PlanID     string `json:"plan_id"`
	Cycle      string `json:"billing_cycle"`
	Authorized bool   `json:"authorized"`
}

func (s *Server) handleUpgradePlan(w http.ResponseWriter, r *http.Request) {
	user, _ := authn.UserFromContext(r.Context())
	var req upgradePlanRequest
	if err := json.NewDecoder(r.Body).Decode(&req); err != nil {
		writeError(w, apperr.Validation("malformed request body"))
		return
	}
	planID, err := uuid.Parse(req.PlanID)
	if err != nil {
		writeError(w, apperr.Validation("invalid plan_id"))
		return
	}
	plan, err := s.db.GetPlan(r.Context(), planID)
	if err != nil {
		writeError(w, apperr.NotFound("plan not found"))
		return
	}
	cycle := req.Cycle
	if cycle == "" {
		cycle = store.BillingMonthly
	}

	result, err := s.billing.CreateSubscription(r.Context(), user, plan, cycle, req.Authorized)
	if err != nil {
		writeError(w, err)
		return
	}

	resp := map[string]interface{}{
		"status": result.Subscription.Status,
		"plan":   plan,
	}
	if result.PaymentURL != "" {
		if req.Authorized {
			resp["authorization_url"] = result.PaymentURL
		} else {
			resp["payment_url"] = result.PaymentURL
		}
	}
	writeJSON(w, http.StatusOK, resp)
}

func (s *Server) handleCancelPlan(w http.ResponseWriter, r *http.Request) {
	user, _ := authn.UserFromContext(r.Context())
	sub, err := s.db.GetSubscriptionByUser(r.Context(), user.ID)
	if err != nil {
		writeError(w, apperr.NotFound("no active subscription"))
		return
	}
	var req struct {
		Immediate bool `json:"immediate"`
	}
	_ = json.NewDecoder(r.Body).Decode(&req)

	if err := s.billing.CancelSubscription(r.Context(), sub.ID, req.Immediate); err != nil {
		writeError(w, err)
		return
	}
	writeJSON(w, http.StatusOK, map[string]string{"status": "canceled"})
}
