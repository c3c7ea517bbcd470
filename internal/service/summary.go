package service

import (
	"context"
	"errors"
	"fmt"
	"time"

	"github.com/google/uuid"
	"github.com/strandhq/billing/internal/domain"
)

// recentPaymentLimit caps the payment history embedded in the summary.
const recentPaymentLimit = 10

type summaryService struct {
	subs     domain.SubscriptionStore
	plans    domain.PlanStore
	methods  domain.PaymentMethodStore
	invoices domain.InvoiceStore
	payments domain.PaymentStore
}

// NewSummaryService creates a new SummaryService instance
func NewSummaryService(
	subs domain.SubscriptionStore,
	plans domain.PlanStore,
	methods domain.PaymentMethodStore,
	invoices domain.InvoiceStore,
	payments domain.PaymentStore,
) domain.SummaryService {
	return &summaryService{
		subs:     subs,
		plans:    plans,
		methods:  methods,
		invoices: invoices,
		payments: payments,
	}
}

// GetBillingSummary assembles the organization's billing position: the
// current subscription and plan, the default payment method, ledger
// totals, open invoices and recent payment history. Absent pieces
// (no subscription, no default method) are nil rather than errors.
func (s *summaryService) GetBillingSummary(ctx context.Context, organizationID uuid.UUID) (*domain.BillingSummary, error) {
	if organizationID == uuid.Nil {
		return nil, domain.ErrOrganizationRequired
	}

	now := time.Now().UTC()
	summary := &domain.BillingSummary{
		OrganizationID: organizationID,
		GeneratedAt:    now,
	}

	sub, err := s.subs.GetActiveByOrganization(ctx, organizationID)
	switch {
	case err == nil:
		summary.Subscription = sub
		plan, err := s.plans.GetByID(ctx, sub.PlanID)
		if err != nil {
			return nil, fmt.Errorf("failed to resolve subscription plan: %w", err)
		}
		summary.Plan = plan
	case errors.Is(err, domain.ErrSubscriptionNotFound):
	default:
		return nil, fmt.Errorf("failed to load subscription: %w", err)
	}

	method, err := s.methods.GetDefault(ctx, organizationID)
	switch {
	case err == nil:
		summary.DefaultMethod = method
	case errors.Is(err, domain.ErrNoDefaultPaymentMethod):
	default:
		return nil, fmt.Errorf("failed to load default payment method: %w", err)
	}

	totals, err := s.invoices.SumTotals(ctx, organizationID, now)
	if err != nil {
		return nil, fmt.Errorf("failed to sum invoice totals: %w", err)
	}
	summary.Totals = *totals

	pending, err := s.invoices.ListPendingByOrganization(ctx, organizationID)
	if err != nil {
		return nil, fmt.Errorf("failed to list pending invoices: %w", err)
	}
	summary.PendingInvoices = pending

	payments, err := s.payments.ListByOrganization(ctx, organizationID, recentPaymentLimit, 0)
	if err != nil {
		return nil, fmt.Errorf("failed to list recent payments: %w", err)
	}
	summary.RecentPayments = payments

	return summary, nil
}
