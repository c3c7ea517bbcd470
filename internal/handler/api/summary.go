package api

import (
	"net/http"

	"github.com/strandhq/billing/internal/domain"
	"github.com/strandhq/billing/internal/handler"
)

// SummaryHandler exposes the aggregated billing summary.
type SummaryHandler struct {
	summary domain.SummaryService
}

// NewSummaryHandler creates a billing summary handler.
func NewSummaryHandler(summary domain.SummaryService) *SummaryHandler {
	return &SummaryHandler{summary: summary}
}

// Get handles GET /billing/summary.
func (h *SummaryHandler) Get(w http.ResponseWriter, r *http.Request) {
	principal := domain.MustPrincipal(r.Context())

	summary, err := h.summary.GetBillingSummary(r.Context(), principal.OrganizationID)
	if err != nil {
		handler.ErrorResponse(w, r, err)
		return
	}

	respondJSON(w, http.StatusOK, toSummaryResponse(summary))
}
