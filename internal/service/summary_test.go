package service

import (
	"context"
	"testing"
	"time"

	"github.com/google/uuid"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/strandhq/billing/internal/domain"
)

func TestGetBillingSummary(t *testing.T) {
	orgID := uuid.New()
	plan := subscriptionPlan(9800)
	sub := &domain.Subscription{
		ID:             uuid.New(),
		OrganizationID: orgID,
		PlanID:         plan.ID,
		Status:         domain.SubscriptionActive,
	}
	method := orgMethod(orgID)

	subs := &mockSubscriptionStore{
		GetActiveByOrganizationFunc: func(ctx context.Context, organizationID uuid.UUID) (*domain.Subscription, error) {
			return sub, nil
		},
	}
	plans := &mockPlanStore{
		GetByIDFunc: func(ctx context.Context, id uuid.UUID) (*domain.Plan, error) {
			return plan, nil
		},
	}
	methods := &mockPaymentMethodStore{
		GetDefaultFunc: func(ctx context.Context, organizationID uuid.UUID) (*domain.PaymentMethod, error) {
			return method, nil
		},
	}
	invoices := &mockInvoiceStore{
		SumTotalsFunc: func(ctx context.Context, organizationID uuid.UUID, asOf time.Time) (*domain.InvoiceTotals, error) {
			return &domain.InvoiceTotals{PaidCents: 29400, PendingCents: 9800, OverdueCents: 0}, nil
		},
		ListPendingByOrganizationFunc: func(ctx context.Context, organizationID uuid.UUID) ([]domain.Invoice, error) {
			return []domain.Invoice{{ID: uuid.New(), OrganizationID: organizationID, Status: domain.InvoiceSent}}, nil
		},
	}
	payments := &mockPaymentStore{
		ListByOrganizationFunc: func(ctx context.Context, organizationID uuid.UUID, limit, offset int32) ([]domain.Payment, error) {
			assert.Equal(t, int32(recentPaymentLimit), limit)
			return []domain.Payment{{ID: uuid.New(), Status: domain.PaymentSuccess}}, nil
		},
	}

	svc := NewSummaryService(subs, plans, methods, invoices, payments)

	summary, err := svc.GetBillingSummary(context.Background(), orgID)
	require.NoError(t, err)

	assert.Equal(t, sub.ID, summary.Subscription.ID)
	assert.Equal(t, plan.ID, summary.Plan.ID)
	assert.Equal(t, method.ID, summary.DefaultMethod.ID)
	assert.Equal(t, int64(29400), summary.Totals.PaidCents)
	assert.Len(t, summary.PendingInvoices, 1)
	assert.Len(t, summary.RecentPayments, 1)
}

func TestGetBillingSummaryWithoutSubscription(t *testing.T) {
	orgID := uuid.New()

	svc := NewSummaryService(
		&mockSubscriptionStore{},
		&mockPlanStore{},
		&mockPaymentMethodStore{},
		&mockInvoiceStore{},
		&mockPaymentStore{},
	)

	summary, err := svc.GetBillingSummary(context.Background(), orgID)
	require.NoError(t, err)

	// an organization with no billing history gets an empty summary,
	// not an error
	assert.Nil(t, summary.Subscription)
	assert.Nil(t, summary.Plan)
	assert.Nil(t, summary.DefaultMethod)
	assert.Zero(t, summary.Totals.PaidCents)
}
