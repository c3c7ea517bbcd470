package api

import (
	"net/http"

	"github.com/strandhq/billing/internal/domain"
	"github.com/strandhq/billing/internal/handler"
)

// PaymentMethodHandler exposes payment method management for the
// caller's organization.
type PaymentMethodHandler struct {
	methods domain.PaymentMethodService
}

// NewPaymentMethodHandler creates a payment method handler.
func NewPaymentMethodHandler(methods domain.PaymentMethodService) *PaymentMethodHandler {
	return &PaymentMethodHandler{methods: methods}
}

type createPaymentMethodRequest struct {
	CardNumber string `json:"card_number"`
	ExpMonth   int32  `json:"exp_month"`
	ExpYear    int32  `json:"exp_year"`
	CVC        string `json:"cvc"`
	Email      string `json:"email"`
	IsDefault  bool   `json:"is_default"`
}

// Create handles POST /billing/payment-methods. Raw card details go
// straight to the gateway for tokenization and are never persisted.
func (h *PaymentMethodHandler) Create(w http.ResponseWriter, r *http.Request) {
	principal := domain.MustPrincipal(r.Context())

	var req createPaymentMethodRequest
	if err := decodeJSON(r, &req); err != nil {
		handler.ErrorResponse(w, r, err)
		return
	}

	method, err := h.methods.CreatePaymentMethod(r.Context(), domain.CreatePaymentMethodParams{
		OrganizationID: principal.OrganizationID,
		Card: domain.CardDetails{
			Number:   req.CardNumber,
			ExpMonth: req.ExpMonth,
			ExpYear:  req.ExpYear,
			CVC:      req.CVC,
		},
		Email:     req.Email,
		IsDefault: req.IsDefault,
	})
	if err != nil {
		handler.ErrorResponse(w, r, err)
		return
	}

	respondJSON(w, http.StatusCreated, toPaymentMethodResponse(method))
}

// List handles GET /billing/payment-methods.
func (h *PaymentMethodHandler) List(w http.ResponseWriter, r *http.Request) {
	principal := domain.MustPrincipal(r.Context())

	methods, err := h.methods.ListPaymentMethods(r.Context(), principal.OrganizationID)
	if err != nil {
		handler.ErrorResponse(w, r, err)
		return
	}

	respondJSON(w, http.StatusOK, map[string]interface{}{
		"payment_methods": toPaymentMethodResponses(methods),
	})
}

// SetDefault handles POST /billing/payment-methods/{id}/default.
func (h *PaymentMethodHandler) SetDefault(w http.ResponseWriter, r *http.Request) {
	principal := domain.MustPrincipal(r.Context())

	id, err := pathUUID(r, "id")
	if err != nil {
		handler.ErrorResponse(w, r, err)
		return
	}

	if err := h.methods.SetDefaultPaymentMethod(r.Context(), id, principal.OrganizationID); err != nil {
		handler.ErrorResponse(w, r, err)
		return
	}

	respondJSON(w, http.StatusOK, map[string]string{"status": "default_updated"})
}

// Delete handles DELETE /billing/payment-methods/{id}.
func (h *PaymentMethodHandler) Delete(w http.ResponseWriter, r *http.Request) {
	principal := domain.MustPrincipal(r.Context())

	id, err := pathUUID(r, "id")
	if err != nil {
		handler.ErrorResponse(w, r, err)
		return
	}

	if err := h.methods.DeletePaymentMethod(r.Context(), id, principal.OrganizationID); err != nil {
		handler.ErrorResponse(w, r, err)
		return
	}

	w.WriteHeader(http.StatusNoContent)
}
