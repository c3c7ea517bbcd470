package api

import (
	"net/http"

	"github.com/strandhq/billing/internal/domain"
	"github.com/strandhq/billing/internal/handler"
)

// PlanHandler exposes plan catalog management.
type PlanHandler struct {
	catalog domain.CatalogService
}

// NewPlanHandler creates a plan catalog handler.
func NewPlanHandler(catalog domain.CatalogService) *PlanHandler {
	return &PlanHandler{catalog: catalog}
}

type createPlanRequest struct {
	Name           string `json:"name"`
	Description    string `json:"description"`
	Kind           string `json:"kind"`
	PriceCents     int64  `json:"price_cents"`
	Currency       string `json:"currency"`
	BillingCycle   string `json:"billing_cycle"`
	MaxStylists    *int32 `json:"max_stylists"`
	MaxClients     *int32 `json:"max_clients"`
	MonthlyTokens  *int32 `json:"monthly_tokens"`
	TokenAmount    *int32 `json:"token_amount"`
	GatewayPriceID string `json:"gateway_price_id"`
	SortOrder      int32  `json:"sort_order"`
}

// Create handles POST /plans.
func (h *PlanHandler) Create(w http.ResponseWriter, r *http.Request) {
	var req createPlanRequest
	if err := decodeJSON(r, &req); err != nil {
		handler.ErrorResponse(w, r, err)
		return
	}

	plan, err := h.catalog.CreatePlan(r.Context(), domain.CreatePlanParams{
		Name:           req.Name,
		Description:    req.Description,
		Kind:           req.Kind,
		PriceCents:     req.PriceCents,
		Currency:       req.Currency,
		BillingCycle:   req.BillingCycle,
		MaxStylists:    req.MaxStylists,
		MaxClients:     req.MaxClients,
		MonthlyTokens:  req.MonthlyTokens,
		TokenAmount:    req.TokenAmount,
		GatewayPriceID: req.GatewayPriceID,
		SortOrder:      req.SortOrder,
	})
	if err != nil {
		handler.ErrorResponse(w, r, err)
		return
	}

	respondJSON(w, http.StatusCreated, toPlanResponse(plan))
}

// List handles GET /plans. A kind query parameter limits results to
// active plans of that kind. Admin callers can pass
// include_inactive=true to see retired plans.
func (h *PlanHandler) List(w http.ResponseWriter, r *http.Request) {
	if kind := r.URL.Query().Get("kind"); kind != "" {
		plans, err := h.catalog.ListPlansByKind(r.Context(), kind)
		if err != nil {
			handler.ErrorResponse(w, r, err)
			return
		}
		respondJSON(w, http.StatusOK, map[string]interface{}{
			"plans": toPlanResponses(plans),
		})
		return
	}

	includeInactive := r.URL.Query().Get("include_inactive") == "true"
	if includeInactive && !domain.CanManageBilling(r.Context()) {
		includeInactive = false
	}

	plans, err := h.catalog.ListPlans(r.Context(), includeInactive)
	if err != nil {
		handler.ErrorResponse(w, r, err)
		return
	}

	respondJSON(w, http.StatusOK, map[string]interface{}{
		"plans": toPlanResponses(plans),
	})
}

// Get handles GET /plans/{id}.
func (h *PlanHandler) Get(w http.ResponseWriter, r *http.Request) {
	id, err := pathUUID(r, "id")
	if err != nil {
		handler.ErrorResponse(w, r, err)
		return
	}

	plan, err := h.catalog.GetPlan(r.Context(), id)
	if err != nil {
		handler.ErrorResponse(w, r, err)
		return
	}

	respondJSON(w, http.StatusOK, toPlanResponse(plan))
}

type updatePlanRequest struct {
	Name           *string `json:"name"`
	Description    *string `json:"description"`
	PriceCents     *int64  `json:"price_cents"`
	MaxStylists    *int32  `json:"max_stylists"`
	MaxClients     *int32  `json:"max_clients"`
	MonthlyTokens  *int32  `json:"monthly_tokens"`
	TokenAmount    *int32  `json:"token_amount"`
	GatewayPriceID *string `json:"gateway_price_id"`
	SortOrder      *int32  `json:"sort_order"`
}

// Update handles PATCH /plans/{id}.
func (h *PlanHandler) Update(w http.ResponseWriter, r *http.Request) {
	id, err := pathUUID(r, "id")
	if err != nil {
		handler.ErrorResponse(w, r, err)
		return
	}

	var req updatePlanRequest
	if err := decodeJSON(r, &req); err != nil {
		handler.ErrorResponse(w, r, err)
		return
	}

	plan, err := h.catalog.UpdatePlan(r.Context(), id, domain.UpdatePlanParams{
		Name:           req.Name,
		Description:    req.Description,
		PriceCents:     req.PriceCents,
		MaxStylists:    req.MaxStylists,
		MaxClients:     req.MaxClients,
		MonthlyTokens:  req.MonthlyTokens,
		TokenAmount:    req.TokenAmount,
		GatewayPriceID: req.GatewayPriceID,
		SortOrder:      req.SortOrder,
	})
	if err != nil {
		handler.ErrorResponse(w, r, err)
		return
	}

	respondJSON(w, http.StatusOK, toPlanResponse(plan))
}

// Retire handles POST /plans/{id}/retire.
func (h *PlanHandler) Retire(w http.ResponseWriter, r *http.Request) {
	id, err := pathUUID(r, "id")
	if err != nil {
		handler.ErrorResponse(w, r, err)
		return
	}

	if err := h.catalog.RetirePlan(r.Context(), id); err != nil {
		handler.ErrorResponse(w, r, err)
		return
	}

	respondJSON(w, http.StatusOK, map[string]string{"status": "retired"})
}

// Reactivate handles POST /plans/{id}/reactivate.
func (h *PlanHandler) Reactivate(w http.ResponseWriter, r *http.Request) {
	id, err := pathUUID(r, "id")
	if err != nil {
		handler.ErrorResponse(w, r, err)
		return
	}

	if err := h.catalog.ReactivatePlan(r.Context(), id); err != nil {
		handler.ErrorResponse(w, r, err)
		return
	}

	respondJSON(w, http.StatusOK, map[string]string{"status": "active"})
}
