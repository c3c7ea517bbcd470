package api

import (
	"net/http"

	"github.com/google/uuid"

	"github.com/strandhq/billing/internal/domain"
	"github.com/strandhq/billing/internal/handler"
)

// TokenHandler exposes one-time token pack purchases.
type TokenHandler struct {
	tokens domain.TokenService
}

// NewTokenHandler creates a token purchase handler.
func NewTokenHandler(tokens domain.TokenService) *TokenHandler {
	return &TokenHandler{tokens: tokens}
}

type purchaseTokensRequest struct {
	PlanID          uuid.UUID  `json:"plan_id"`
	PaymentMethodID *uuid.UUID `json:"payment_method_id"`
}

// Purchase handles POST /billing/tokens. Without an explicit payment
// method the organization's default is charged.
func (h *TokenHandler) Purchase(w http.ResponseWriter, r *http.Request) {
	principal := domain.MustPrincipal(r.Context())

	var req purchaseTokensRequest
	if err := decodeJSON(r, &req); err != nil {
		handler.ErrorResponse(w, r, err)
		return
	}

	invoice, err := h.tokens.PurchaseTokenPack(r.Context(), domain.TokenPurchaseParams{
		OrganizationID:  principal.OrganizationID,
		PlanID:          req.PlanID,
		PaymentMethodID: req.PaymentMethodID,
	})
	if err != nil {
		// A declined charge leaves the invoice open for retry; return it
		// alongside the payment-required status.
		if invoice != nil && domain.IsCode(err, domain.EPAYMENT) {
			respondJSON(w, http.StatusPaymentRequired, toInvoiceResponse(invoice))
			return
		}
		handler.ErrorResponse(w, r, err)
		return
	}

	respondJSON(w, http.StatusCreated, toInvoiceResponse(invoice))
}
