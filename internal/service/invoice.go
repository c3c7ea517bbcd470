package service

import (
	"context"
	"errors"
	"fmt"
	"log/slog"
	"strconv"
	"time"

	"github.com/google/uuid"
	"github.com/strandhq/billing/internal/domain"
	"github.com/strandhq/billing/internal/gateway"
	"github.com/strandhq/billing/internal/telemetry"
)

type invoiceService struct {
	invoices domain.InvoiceStore
	payments domain.PaymentStore
	provider gateway.Provider
	logger   *slog.Logger
}

// NewInvoiceService creates a new InvoiceService instance
func NewInvoiceService(invoices domain.InvoiceStore, payments domain.PaymentStore, provider gateway.Provider, logger *slog.Logger) domain.InvoiceService {
	return &invoiceService{
		invoices: invoices,
		payments: payments,
		provider: provider,
		logger:   logger,
	}
}

// CreateInvoice appends a draft invoice. Subtotal and total are
// computed server side from the line items; callers never supply
// totals directly.
func (s *invoiceService) CreateInvoice(ctx context.Context, params domain.CreateInvoiceParams) (*domain.Invoice, error) {
	const op = "InvoiceService.CreateInvoice"

	if params.OrganizationID == uuid.Nil {
		return nil, domain.ErrOrganizationRequired
	}
	if len(params.LineItems) == 0 {
		return nil, domain.Invalid(op, "an invoice requires at least one line item")
	}
	switch params.Type {
	case domain.InvoiceTypeSubscription, domain.InvoiceTypeOneTime, domain.InvoiceTypeToken:
	default:
		return nil, domain.Invalid(op, fmt.Sprintf("unknown invoice type %q", params.Type))
	}

	var subtotal int64
	for i, item := range params.LineItems {
		if item.Quantity <= 0 {
			return nil, domain.Invalid(op, fmt.Sprintf("line item %d has no quantity", i))
		}
		if item.AmountCents != item.UnitPriceCents*int64(item.Quantity) {
			return nil, domain.Invalid(op, fmt.Sprintf("line item %d amount does not match unit price times quantity", i))
		}
		subtotal += item.AmountCents
	}
	if params.TaxCents < 0 {
		return nil, domain.Invalid(op, "tax must not be negative")
	}

	now := time.Now().UTC()
	invoice := &domain.Invoice{
		OrganizationID: params.OrganizationID,
		SubscriptionID: params.SubscriptionID,
		Type:           params.Type,
		Status:         domain.InvoiceDraft,
		LineItems:      params.LineItems,
		SubtotalCents:  subtotal,
		TaxCents:       params.TaxCents,
		TotalCents:     subtotal + params.TaxCents,
		Currency:       params.Currency,
		IssueDate:      now,
		DueDate:        params.DueDate,
		PeriodStart:    params.PeriodStart,
		PeriodEnd:      params.PeriodEnd,
	}

	if err := s.invoices.Create(ctx, invoice); err != nil {
		return nil, fmt.Errorf("failed to create invoice: %w", err)
	}

	if telemetry.Business != nil {
		telemetry.Business.InvoicesCreated.
			WithLabelValues(invoice.OrganizationID.String(), invoice.Type).Inc()
	}

	return invoice, nil
}

func (s *invoiceService) GetInvoice(ctx context.Context, id, organizationID uuid.UUID) (*domain.Invoice, error) {
	invoice, err := s.invoices.GetByID(ctx, id)
	if err != nil {
		return nil, err
	}
	if invoice.OrganizationID != organizationID {
		return nil, domain.ErrOrganizationMismatch
	}
	return invoice, nil
}

func (s *invoiceService) ListInvoices(ctx context.Context, organizationID uuid.UUID, limit, offset int32) ([]domain.Invoice, error) {
	invoices, err := s.invoices.ListByOrganization(ctx, organizationID, limit, offset)
	if err != nil {
		return nil, fmt.Errorf("failed to list invoices: %w", err)
	}
	return invoices, nil
}

// ChargeInvoice executes the synchronous charge path. Flow:
//  1. Charge the gateway using the invoice id as the idempotency key
//  2. Record the external charge id on the invoice (draft -> sent) and
//     the pending payment history row in a single store transaction
//  3. If the gateway reported immediate success, optimistically mark
//     the invoice paid; the webhook later confirms or corrects this
//
// A declined card surfaces as a payment error with the failure recorded
// in history. The invoice itself stays open for retry.
func (s *invoiceService) ChargeInvoice(ctx context.Context, invoice *domain.Invoice, method *domain.PaymentMethod) error {
	if invoice.Status == domain.InvoicePaid {
		return domain.ErrInvoiceAlreadyPaid
	}
	if invoice.Status == domain.InvoiceCanceled {
		return domain.ErrInvoiceNotMutable
	}
	if method.OrganizationID != invoice.OrganizationID {
		return domain.ErrOrganizationMismatch
	}

	if telemetry.Business != nil {
		telemetry.Business.PaymentAttempts.
			WithLabelValues(invoice.OrganizationID.String(), invoice.Type).Inc()
	}

	result, err := s.provider.Charge(ctx, gateway.ChargeParams{
		Token:       method.GatewayToken,
		AmountCents: invoice.TotalCents,
		Currency:    invoice.Currency,
		Description: chargeDescription(invoice),
		Metadata: map[string]string{
			"organization_id": invoice.OrganizationID.String(),
			"invoice_id":      invoice.ID.String(),
		},
		IdempotencyKey: invoice.ID.String(),
	})
	if err != nil {
		return s.recordChargeFailure(ctx, invoice, method, err)
	}

	payment := &domain.Payment{
		OrganizationID:  invoice.OrganizationID,
		InvoiceID:       invoice.ID,
		PaymentMethodID: &method.ID,
		AmountCents:     invoice.TotalCents,
		Currency:        invoice.Currency,
		Status:          domain.PaymentPending,
		GatewayChargeID: result.ChargeID,
	}
	if err := s.invoices.RecordChargeAttempt(ctx, invoice.ID, result.ChargeID, payment); err != nil {
		// The gateway accepted the charge but we could not record it.
		// The webhook reconciler can still locate the invoice through
		// charge metadata, so log loudly and surface the error.
		s.logger.Error("charge accepted but recording failed",
			slog.String("invoice_id", invoice.ID.String()),
			slog.String("charge_id", result.ChargeID),
			slog.String("error", err.Error()))
		return fmt.Errorf("failed to record gateway charge: %w", err)
	}
	invoice.GatewayChargeID = result.ChargeID
	invoice.Status = domain.InvoiceSent

	if result.Status == gateway.ChargeStatusSucceeded {
		now := time.Now().UTC()
		applied, err := s.invoices.ApplyChargeSucceeded(ctx, result.ChargeID, now)
		if err != nil {
			return fmt.Errorf("failed to mark invoice paid: %w", err)
		}
		if applied {
			invoice.Status = domain.InvoicePaid
			invoice.PaidAt = &now
			s.recordPaymentSuccess(invoice)
		}
	}

	s.logger.Info("invoice charged",
		slog.String("invoice_id", invoice.ID.String()),
		slog.String("organization_id", invoice.OrganizationID.String()),
		slog.String("charge_id", result.ChargeID),
		slog.String("charge_status", result.Status),
		slog.Int64("amount_cents", invoice.TotalCents))

	return nil
}

func (s *invoiceService) ListOverdueInvoices(ctx context.Context, asOf time.Time) ([]domain.Invoice, error) {
	invoices, err := s.invoices.ListOverdue(ctx, asOf)
	if err != nil {
		return nil, fmt.Errorf("failed to list overdue invoices: %w", err)
	}
	return invoices, nil
}

// recordChargeFailure appends a failed payment row and translates the
// gateway error for the caller. Declines are permanent payment errors;
// everything else is reported as a retryable internal failure.
func (s *invoiceService) recordChargeFailure(ctx context.Context, invoice *domain.Invoice, method *domain.PaymentMethod, chargeErr error) error {
	const op = "InvoiceService.ChargeInvoice"

	var declined *gateway.DeclinedError
	reason := "gateway unavailable"
	failureClass := "transient"
	if errors.As(chargeErr, &declined) {
		reason = declined.Message
		failureClass = "declined"
	}

	payment := &domain.Payment{
		OrganizationID:  invoice.OrganizationID,
		InvoiceID:       invoice.ID,
		PaymentMethodID: &method.ID,
		AmountCents:     invoice.TotalCents,
		Currency:        invoice.Currency,
		Status:          domain.PaymentFailed,
		FailureReason:   reason,
	}
	if err := s.payments.Create(ctx, payment); err != nil {
		s.logger.Error("failed to record failed payment attempt",
			slog.String("invoice_id", invoice.ID.String()),
			slog.String("error", err.Error()))
	}

	if telemetry.Business != nil {
		telemetry.Business.PaymentFailed.
			WithLabelValues(invoice.OrganizationID.String(), invoice.Type, failureClass).Inc()
	}

	s.logger.Warn("invoice charge failed",
		slog.String("invoice_id", invoice.ID.String()),
		slog.String("organization_id", invoice.OrganizationID.String()),
		slog.String("failure_class", failureClass),
		slog.String("reason", reason))

	if failureClass == "declined" {
		return domain.PaymentError(op, "The payment was declined: "+reason)
	}
	return domain.Internal(chargeErr, op, "")
}

func (s *invoiceService) recordPaymentSuccess(invoice *domain.Invoice) {
	if telemetry.Business == nil {
		return
	}
	org := invoice.OrganizationID.String()
	telemetry.Business.PaymentSucceeded.WithLabelValues(org, invoice.Type).Inc()
	telemetry.Business.RevenueCollected.
		WithLabelValues(org, invoice.Type, invoice.Currency).
		Add(float64(invoice.TotalCents))
}

func chargeDescription(invoice *domain.Invoice) string {
	if len(invoice.LineItems) == 1 {
		return invoice.LineItems[0].Description
	}
	return "Invoice with " + strconv.Itoa(len(invoice.LineItems)) + " items"
}
