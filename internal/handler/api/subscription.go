package api

import (
	"net/http"

	"github.com/google/uuid"

	"github.com/strandhq/billing/internal/domain"
	"github.com/strandhq/billing/internal/handler"
)

// SubscriptionHandler exposes the subscription lifecycle for the
// caller's organization. At most one non-canceled subscription exists
// per organization, so routes address "the subscription" rather than a
// subscription id.
type SubscriptionHandler struct {
	subscriptions domain.SubscriptionService
}

// NewSubscriptionHandler creates a subscription handler.
func NewSubscriptionHandler(subscriptions domain.SubscriptionService) *SubscriptionHandler {
	return &SubscriptionHandler{subscriptions: subscriptions}
}

type createSubscriptionRequest struct {
	PlanID          uuid.UUID `json:"plan_id"`
	PaymentMethodID uuid.UUID `json:"payment_method_id"`
	TrialDays       int       `json:"trial_days"`

	// BillingEmail lands on the gateway-side customer for receipts.
	// Falls back to the caller's principal email when omitted.
	BillingEmail string `json:"billing_email"`
}

// Create handles POST /billing/subscription.
//
// A declined first charge still returns the created subscription: the
// organization is subscribed with an open invoice, and the 402 tells
// the client payment needs attention.
func (h *SubscriptionHandler) Create(w http.ResponseWriter, r *http.Request) {
	principal := domain.MustPrincipal(r.Context())

	var req createSubscriptionRequest
	if err := decodeJSON(r, &req); err != nil {
		handler.ErrorResponse(w, r, err)
		return
	}

	billingEmail := req.BillingEmail
	if billingEmail == "" {
		billingEmail = principal.Email
	}

	sub, err := h.subscriptions.CreateSubscription(r.Context(), domain.CreateSubscriptionParams{
		OrganizationID:  principal.OrganizationID,
		PlanID:          req.PlanID,
		PaymentMethodID: req.PaymentMethodID,
		TrialDays:       req.TrialDays,
		BillingEmail:    billingEmail,
	})
	if err != nil {
		if sub != nil && domain.IsCode(err, domain.EPAYMENT) {
			respondJSON(w, http.StatusPaymentRequired, toSubscriptionResponse(sub))
			return
		}
		handler.ErrorResponse(w, r, err)
		return
	}

	respondJSON(w, http.StatusCreated, toSubscriptionResponse(sub))
}

// Get handles GET /billing/subscription.
func (h *SubscriptionHandler) Get(w http.ResponseWriter, r *http.Request) {
	principal := domain.MustPrincipal(r.Context())

	sub, err := h.subscriptions.GetSubscription(r.Context(), principal.OrganizationID)
	if err != nil {
		handler.ErrorResponse(w, r, err)
		return
	}

	respondJSON(w, http.StatusOK, toSubscriptionResponse(sub))
}

type changePlanRequest struct {
	PlanID uuid.UUID `json:"plan_id"`
}

// ChangePlan handles PATCH /billing/subscription.
func (h *SubscriptionHandler) ChangePlan(w http.ResponseWriter, r *http.Request) {
	principal := domain.MustPrincipal(r.Context())

	var req changePlanRequest
	if err := decodeJSON(r, &req); err != nil {
		handler.ErrorResponse(w, r, err)
		return
	}

	current, err := h.subscriptions.GetSubscription(r.Context(), principal.OrganizationID)
	if err != nil {
		handler.ErrorResponse(w, r, err)
		return
	}

	sub, err := h.subscriptions.ChangePlan(r.Context(), domain.ChangePlanParams{
		SubscriptionID: current.ID,
		OrganizationID: principal.OrganizationID,
		NewPlanID:      req.PlanID,
	})
	if err != nil {
		// The plan switch persists even when the prorated charge is
		// declined; report the new state with a payment-required status.
		if sub != nil && domain.IsCode(err, domain.EPAYMENT) {
			respondJSON(w, http.StatusPaymentRequired, toSubscriptionResponse(sub))
			return
		}
		handler.ErrorResponse(w, r, err)
		return
	}

	respondJSON(w, http.StatusOK, toSubscriptionResponse(sub))
}

// Cancel handles DELETE /billing/subscription. The at_period_end query
// parameter defaults to true; passing false cancels immediately.
func (h *SubscriptionHandler) Cancel(w http.ResponseWriter, r *http.Request) {
	principal := domain.MustPrincipal(r.Context())

	atPeriodEnd := r.URL.Query().Get("at_period_end") != "false"

	current, err := h.subscriptions.GetSubscription(r.Context(), principal.OrganizationID)
	if err != nil {
		handler.ErrorResponse(w, r, err)
		return
	}

	sub, err := h.subscriptions.CancelSubscription(r.Context(), domain.CancelSubscriptionParams{
		SubscriptionID:    current.ID,
		OrganizationID:    principal.OrganizationID,
		CancelAtPeriodEnd: atPeriodEnd,
	})
	if err != nil {
		handler.ErrorResponse(w, r, err)
		return
	}

	respondJSON(w, http.StatusOK, toSubscriptionResponse(sub))
}
