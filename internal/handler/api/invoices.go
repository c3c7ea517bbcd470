package api

import (
	"net/http"
	"strconv"

	"github.com/strandhq/billing/internal/domain"
	"github.com/strandhq/billing/internal/handler"
)

const (
	defaultInvoicePageSize = 25
	maxInvoicePageSize     = 100
)

// InvoiceHandler exposes read access to the invoice ledger.
type InvoiceHandler struct {
	invoices domain.InvoiceService
}

// NewInvoiceHandler creates an invoice handler.
func NewInvoiceHandler(invoices domain.InvoiceService) *InvoiceHandler {
	return &InvoiceHandler{invoices: invoices}
}

// List handles GET /billing/invoices with limit/offset pagination.
func (h *InvoiceHandler) List(w http.ResponseWriter, r *http.Request) {
	principal := domain.MustPrincipal(r.Context())

	limit := queryInt32(r, "limit", defaultInvoicePageSize)
	if limit <= 0 || limit > maxInvoicePageSize {
		limit = defaultInvoicePageSize
	}
	offset := queryInt32(r, "offset", 0)
	if offset < 0 {
		offset = 0
	}

	invoices, err := h.invoices.ListInvoices(r.Context(), principal.OrganizationID, limit, offset)
	if err != nil {
		handler.ErrorResponse(w, r, err)
		return
	}

	respondJSON(w, http.StatusOK, map[string]interface{}{
		"invoices": toInvoiceResponses(invoices),
		"limit":    limit,
		"offset":   offset,
	})
}

// Get handles GET /billing/invoices/{id}, scoped to the caller's
// organization.
func (h *InvoiceHandler) Get(w http.ResponseWriter, r *http.Request) {
	principal := domain.MustPrincipal(r.Context())

	id, err := pathUUID(r, "id")
	if err != nil {
		handler.ErrorResponse(w, r, err)
		return
	}

	invoice, err := h.invoices.GetInvoice(r.Context(), id, principal.OrganizationID)
	if err != nil {
		handler.ErrorResponse(w, r, err)
		return
	}

	respondJSON(w, http.StatusOK, toInvoiceResponse(invoice))
}

func queryInt32(r *http.Request, name string, fallback int32) int32 {
	raw := r.URL.Query().Get(name)
	if raw == "" {
		return fallback
	}
	v, err := strconv.ParseInt(raw, 10, 32)
	if err != nil {
		return fallback
	}
	return int32(v)
}
