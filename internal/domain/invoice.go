package domain

import (
	"context"
	"time"

	"github.com/google/uuid"
)

// Invoice types.
const (
	InvoiceTypeSubscription = "subscription"
	InvoiceTypeOneTime      = "one_time"
	InvoiceTypeToken        = "token"
)

// Invoice statuses.
const (
	InvoiceDraft    = "draft"
	InvoiceSent     = "sent"
	InvoicePaid     = "paid"
	InvoiceCanceled = "canceled"
)

// Invoice domain errors.
var (
	ErrInvoiceNotFound     = &Error{Code: ENOTFOUND, Message: "Invoice not found"}
	ErrInvoiceAlreadyPaid  = &Error{Code: ECONFLICT, Message: "Invoice already paid"}
	ErrDuplicateChargeID   = &Error{Code: ECONFLICT, Message: "Charge id already recorded on another invoice"}
	ErrInvoiceNotMutable   = &Error{Code: EINVALID, Message: "Invoice status does not permit this transition"}
	ErrChargeNotRecognized = &Error{Code: ENOTFOUND, Message: "No invoice matches the reported charge id"}
)

// LineItem is one itemized row on an invoice. Amount is unit price
// times quantity, all in minor currency units.
type LineItem struct {
	Description    string `json:"description"`
	UnitPriceCents int64  `json:"unit_price_cents"`
	Quantity       int32  `json:"quantity"`
	AmountCents    int64  `json:"amount_cents"`
	TokenGrant     int32  `json:"token_grant,omitempty"`
}

// Invoice is an append-only ledger row. Invoices move through status
// transitions but are never deleted by normal flows. GatewayChargeID,
// when set, is unique across all invoices and serves as the
// idempotency key for webhook reconciliation.
type Invoice struct {
	ID              uuid.UUID
	OrganizationID  uuid.UUID
	SubscriptionID  *uuid.UUID
	Type            string // "subscription", "one_time", "token"
	Status          string // "draft", "sent", "paid", "canceled"
	LineItems       []LineItem
	SubtotalCents   int64
	TaxCents        int64
	TotalCents      int64
	Currency        string
	IssueDate       time.Time
	DueDate         time.Time
	PaidAt          *time.Time
	PeriodStart     *time.Time
	PeriodEnd       *time.Time
	GatewayChargeID string // unique when set
	CreatedAt       time.Time
	UpdatedAt       time.Time
}

// CreateInvoiceParams contains parameters for creating an invoice.
type CreateInvoiceParams struct {
	OrganizationID uuid.UUID
	SubscriptionID *uuid.UUID
	Type           string
	LineItems      []LineItem
	TaxCents       int64
	Currency       string
	DueDate        time.Time
	PeriodStart    *time.Time
	PeriodEnd      *time.Time
}

// InvoiceTotals aggregates amounts for an organization by status.
type InvoiceTotals struct {
	PaidCents    int64
	PendingCents int64
	OverdueCents int64
}

// InvoiceStore persists invoices.
type InvoiceStore interface {
	Create(ctx context.Context, invoice *Invoice) error
	GetByID(ctx context.Context, id uuid.UUID) (*Invoice, error)
	GetByGatewayChargeID(ctx context.Context, chargeID string) (*Invoice, error)
	ListByOrganization(ctx context.Context, organizationID uuid.UUID, limit, offset int32) ([]Invoice, error)
	ListOverdue(ctx context.Context, asOf time.Time) ([]Invoice, error)
	ListPendingByOrganization(ctx context.Context, organizationID uuid.UUID) ([]Invoice, error)
	SumTotals(ctx context.Context, organizationID uuid.UUID, asOf time.Time) (*InvoiceTotals, error)

	// RecordChargeAttempt records the external charge id on an invoice
	// (moving it to sent) and inserts the pending payment row for the
	// attempt in one transaction, so the charge id is never visible to
	// the reconciler without its payment row. Fails with
	// ErrDuplicateChargeID if another invoice already holds the charge
	// id.
	RecordChargeAttempt(ctx context.Context, invoiceID uuid.UUID, chargeID string, payment *Payment) error

	// UpdateStatus transitions the invoice status conditionally. The
	// update is a no-op returning false if the invoice is already in the
	// target status. Transitioning to paid stamps paidAt.
	UpdateStatus(ctx context.Context, id uuid.UUID, status string, paidAt *time.Time) (bool, error)

	// ApplyChargeSucceeded atomically marks the invoice for the charge id
	// paid and its pending payment rows success. Returns false without
	// error when the invoice is already paid (duplicate delivery); even
	// then, pending payment rows for the charge are still settled so the
	// paid invoice always carries a success row.
	ApplyChargeSucceeded(ctx context.Context, chargeID string, paidAt time.Time) (bool, error)

	// ApplyChargeFailed marks pending payment rows for the charge id
	// failed with the gateway-supplied reason. A paid invoice is never
	// reverted. Returns false when nothing was pending.
	ApplyChargeFailed(ctx context.Context, chargeID, reason string) (bool, error)
}

// InvoiceService manages the invoice ledger and synchronous charging.
type InvoiceService interface {
	// CreateInvoice appends a new invoice in draft status.
	CreateInvoice(ctx context.Context, params CreateInvoiceParams) (*Invoice, error)

	// GetInvoice retrieves an invoice scoped to the organization.
	GetInvoice(ctx context.Context, id, organizationID uuid.UUID) (*Invoice, error)

	// ListInvoices lists the organization's invoices, newest first.
	ListInvoices(ctx context.Context, organizationID uuid.UUID, limit, offset int32) ([]Invoice, error)

	// ChargeInvoice executes the charge through the gateway against the
	// given payment method, records the charge id and a payment history
	// row, and optimistically marks the invoice paid when the gateway
	// reports immediate success. The webhook reconciler later confirms
	// or corrects this optimistic result.
	ChargeInvoice(ctx context.Context, invoice *Invoice, method *PaymentMethod) error

	// ListOverdueInvoices returns sent invoices past their due date.
	// Overdue is derived from status and due date, not a stored status.
	ListOverdueInvoices(ctx context.Context, asOf time.Time) ([]Invoice, error)
}
