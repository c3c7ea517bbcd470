package domain

import (
	"context"
	"time"

	"github.com/google/uuid"
)

// Payment statuses. One row is written per charge attempt; an invoice
// may accumulate several rows across retries.
const (
	PaymentPending = "pending"
	PaymentSuccess = "success"
	PaymentFailed  = "failed"
)

// Payment records a single charge attempt against an invoice.
type Payment struct {
	ID              uuid.UUID
	OrganizationID  uuid.UUID
	InvoiceID       uuid.UUID
	PaymentMethodID *uuid.UUID
	AmountCents     int64
	Currency        string
	Status          string // "pending", "success", "failed"
	FailureReason   string
	GatewayChargeID string
	CreatedAt       time.Time
	UpdatedAt       time.Time
}

// PaymentStore persists payment history rows.
type PaymentStore interface {
	Create(ctx context.Context, payment *Payment) error
	GetByID(ctx context.Context, id uuid.UUID) (*Payment, error)
	ListByInvoice(ctx context.Context, invoiceID uuid.UUID) ([]Payment, error)
	ListByOrganization(ctx context.Context, organizationID uuid.UUID, limit, offset int32) ([]Payment, error)
	ListByGatewayChargeID(ctx context.Context, chargeID string) ([]Payment, error)
}

// BillingSummary aggregates an organization's billing position for the
// summary endpoint.
type BillingSummary struct {
	OrganizationID  uuid.UUID
	Subscription    *Subscription
	Plan            *Plan
	DefaultMethod   *PaymentMethod
	Totals          InvoiceTotals
	PendingInvoices []Invoice
	RecentPayments  []Payment
	GeneratedAt     time.Time
}

// SummaryService assembles the billing summary.
type SummaryService interface {
	GetBillingSummary(ctx context.Context, organizationID uuid.UUID) (*BillingSummary, error)
}

// TokenPurchaseParams contains parameters for a one-time token pack purchase.
type TokenPurchaseParams struct {
	OrganizationID  uuid.UUID
	PlanID          uuid.UUID
	PaymentMethodID *uuid.UUID // nil = use the default method
}

// TokenService sells token packs as one-time charges.
type TokenService interface {
	// PurchaseTokenPack creates a token invoice and charges it
	// immediately. The grant amount comes from the plan's token amount.
	PurchaseTokenPack(ctx context.Context, params TokenPurchaseParams) (*Invoice, error)
}
