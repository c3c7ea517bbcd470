package service

import (
	"context"
	"io"
	"log/slog"
	"testing"
	"time"

	"github.com/google/uuid"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/strandhq/billing/internal/domain"
	"github.com/strandhq/billing/internal/gateway"
)

func testLogger() *slog.Logger {
	return slog.New(slog.NewTextHandler(io.Discard, nil))
}

func subscriptionPlan(price int64) *domain.Plan {
	limit := int32(5)
	tokens := int32(100)
	return &domain.Plan{
		ID:            uuid.New(),
		Name:          "Studio",
		Kind:          domain.PlanKindSubscription,
		PriceCents:    price,
		Currency:      "usd",
		BillingCycle:  domain.BillingCycleMonthly,
		MaxStylists:   &limit,
		MaxClients:    &limit,
		MonthlyTokens: &tokens,
		IsActive:      true,
	}
}

func orgMethod(orgID uuid.UUID) *domain.PaymentMethod {
	return &domain.PaymentMethod{
		ID:             uuid.New(),
		OrganizationID: orgID,
		MethodType:     domain.PaymentMethodCard,
		Brand:          "visa",
		Last4:          "4242",
		IsDefault:      true,
		GatewayToken:   "pm_test",
	}
}

func TestCreateSubscriptionWithTrial(t *testing.T) {
	orgID := uuid.New()
	plan := subscriptionPlan(9800)
	method := orgMethod(orgID)

	plans := &mockPlanStore{
		GetByIDFunc: func(ctx context.Context, id uuid.UUID) (*domain.Plan, error) {
			return plan, nil
		},
	}
	methods := &mockPaymentMethodStore{
		GetByIDFunc: func(ctx context.Context, id uuid.UUID) (*domain.PaymentMethod, error) {
			return method, nil
		},
	}
	subs := &mockSubscriptionStore{}
	invoices := &mockInvoiceService{}

	svc := NewSubscriptionService(subs, plans, methods, invoices, gateway.NewMockProvider(), testLogger())

	sub, err := svc.CreateSubscription(context.Background(), domain.CreateSubscriptionParams{
		OrganizationID:  orgID,
		PlanID:          plan.ID,
		PaymentMethodID: method.ID,
		TrialDays:       14,
	})
	require.NoError(t, err)

	assert.Equal(t, domain.SubscriptionTrialing, sub.Status)
	require.NotNil(t, sub.TrialEndsAt)
	assert.WithinDuration(t, time.Now().AddDate(0, 0, 14), *sub.TrialEndsAt, time.Minute)
	assert.Equal(t, *sub.TrialEndsAt, sub.CurrentPeriodEnd)

	// nothing is invoiced or charged during a trial
	assert.Empty(t, invoices.CreatedInvoices)
	assert.Empty(t, invoices.ChargedInvoices)
}

func TestCreateSubscriptionSendsBillingEmail(t *testing.T) {
	orgID := uuid.New()
	plan := subscriptionPlan(9800)
	plan.GatewayPriceID = "price_studio_monthly"
	method := orgMethod(orgID)

	plans := &mockPlanStore{
		GetByIDFunc: func(ctx context.Context, id uuid.UUID) (*domain.Plan, error) {
			return plan, nil
		},
	}
	methods := &mockPaymentMethodStore{
		GetByIDFunc: func(ctx context.Context, id uuid.UUID) (*domain.PaymentMethod, error) {
			return method, nil
		},
	}

	provider := gateway.NewMockProvider()
	var remoteParams gateway.CreateSubscriptionParams
	provider.CreateSubscriptionFunc = func(ctx context.Context, params gateway.CreateSubscriptionParams) (*gateway.RemoteSubscription, error) {
		remoteParams = params
		return &gateway.RemoteSubscription{ID: "sub_remote", Status: "active"}, nil
	}

	svc := NewSubscriptionService(&mockSubscriptionStore{}, plans, methods, &mockInvoiceService{}, provider, testLogger())

	sub, err := svc.CreateSubscription(context.Background(), domain.CreateSubscriptionParams{
		OrganizationID:  orgID,
		PlanID:          plan.ID,
		PaymentMethodID: method.ID,
		TrialDays:       14,
		BillingEmail:    "owner@studio.example",
	})
	require.NoError(t, err)

	assert.Equal(t, "owner@studio.example", remoteParams.Email)
	assert.Equal(t, "price_studio_monthly", remoteParams.PriceID)
	assert.Equal(t, "sub_remote", sub.GatewaySubscriptionID)
}

func TestCreateSubscriptionActiveChargesFirstInvoice(t *testing.T) {
	orgID := uuid.New()
	plan := subscriptionPlan(9800)
	method := orgMethod(orgID)

	plans := &mockPlanStore{
		GetByIDFunc: func(ctx context.Context, id uuid.UUID) (*domain.Plan, error) {
			return plan, nil
		},
	}
	methods := &mockPaymentMethodStore{
		GetByIDFunc: func(ctx context.Context, id uuid.UUID) (*domain.PaymentMethod, error) {
			return method, nil
		},
	}
	subs := &mockSubscriptionStore{}
	invoices := &mockInvoiceService{}

	svc := NewSubscriptionService(subs, plans, methods, invoices, gateway.NewMockProvider(), testLogger())

	sub, err := svc.CreateSubscription(context.Background(), domain.CreateSubscriptionParams{
		OrganizationID:  orgID,
		PlanID:          plan.ID,
		PaymentMethodID: method.ID,
	})
	require.NoError(t, err)

	assert.Equal(t, domain.SubscriptionActive, sub.Status)
	assert.Nil(t, sub.TrialEndsAt)

	require.Len(t, invoices.CreatedInvoices, 1)
	created := invoices.CreatedInvoices[0]
	assert.Equal(t, domain.InvoiceTypeSubscription, created.Type)
	require.Len(t, created.LineItems, 1)
	assert.Equal(t, int64(9800), created.LineItems[0].AmountCents)
	assert.Len(t, invoices.ChargedInvoices, 1)
}

func TestCreateSubscriptionRejectsSecondSubscription(t *testing.T) {
	orgID := uuid.New()
	plan := subscriptionPlan(9800)
	method := orgMethod(orgID)

	plans := &mockPlanStore{
		GetByIDFunc: func(ctx context.Context, id uuid.UUID) (*domain.Plan, error) {
			return plan, nil
		},
	}
	methods := &mockPaymentMethodStore{
		GetByIDFunc: func(ctx context.Context, id uuid.UUID) (*domain.PaymentMethod, error) {
			return method, nil
		},
	}
	subs := &mockSubscriptionStore{
		GetActiveByOrganizationFunc: func(ctx context.Context, organizationID uuid.UUID) (*domain.Subscription, error) {
			return &domain.Subscription{ID: uuid.New(), OrganizationID: organizationID, Status: domain.SubscriptionActive}, nil
		},
	}

	svc := NewSubscriptionService(subs, plans, methods, &mockInvoiceService{}, gateway.NewMockProvider(), testLogger())

	_, err := svc.CreateSubscription(context.Background(), domain.CreateSubscriptionParams{
		OrganizationID:  orgID,
		PlanID:          plan.ID,
		PaymentMethodID: method.ID,
	})
	assert.ErrorIs(t, err, domain.ErrSubscriptionExists)
}

func TestCreateSubscriptionRejectsTokenPackPlan(t *testing.T) {
	orgID := uuid.New()
	amount := int32(500)
	plan := &domain.Plan{
		ID:           uuid.New(),
		Name:         "Token Pack 500",
		Kind:         domain.PlanKindTokenPack,
		PriceCents:   2500,
		Currency:     "usd",
		BillingCycle: domain.BillingCycleOneTime,
		TokenAmount:  &amount,
		IsActive:     true,
	}

	plans := &mockPlanStore{
		GetByIDFunc: func(ctx context.Context, id uuid.UUID) (*domain.Plan, error) {
			return plan, nil
		},
	}

	svc := NewSubscriptionService(&mockSubscriptionStore{}, plans, &mockPaymentMethodStore{}, &mockInvoiceService{}, gateway.NewMockProvider(), testLogger())

	_, err := svc.CreateSubscription(context.Background(), domain.CreateSubscriptionParams{
		OrganizationID:  orgID,
		PlanID:          plan.ID,
		PaymentMethodID: uuid.New(),
	})
	assert.ErrorIs(t, err, domain.ErrPlanNotSubscribable)
}

func TestChangePlanUpgradeChargesProratedDifference(t *testing.T) {
	orgID := uuid.New()
	oldPlan := subscriptionPlan(9800)
	newPlan := subscriptionPlan(18000)
	newPlan.ID = uuid.New()
	newPlan.Name = "Salon"
	method := orgMethod(orgID)

	now := time.Now().UTC()
	sub := &domain.Subscription{
		ID:                 uuid.New(),
		OrganizationID:     orgID,
		PlanID:             oldPlan.ID,
		Status:             domain.SubscriptionActive,
		CurrentPeriodStart: now.AddDate(0, 0, -15),
		CurrentPeriodEnd:   now.AddDate(0, 0, 15),
	}

	plans := &mockPlanStore{
		GetByIDFunc: func(ctx context.Context, id uuid.UUID) (*domain.Plan, error) {
			if id == newPlan.ID {
				return newPlan, nil
			}
			return oldPlan, nil
		},
	}
	methods := &mockPaymentMethodStore{
		GetDefaultFunc: func(ctx context.Context, organizationID uuid.UUID) (*domain.PaymentMethod, error) {
			return method, nil
		},
	}
	subs := &mockSubscriptionStore{
		GetByIDFunc: func(ctx context.Context, id uuid.UUID) (*domain.Subscription, error) {
			return sub, nil
		},
	}
	invoices := &mockInvoiceService{}

	svc := NewSubscriptionService(subs, plans, methods, invoices, gateway.NewMockProvider(), testLogger())

	updated, err := svc.ChangePlan(context.Background(), domain.ChangePlanParams{
		SubscriptionID: sub.ID,
		OrganizationID: orgID,
		NewPlanID:      newPlan.ID,
	})
	require.NoError(t, err)
	assert.Equal(t, newPlan.ID, updated.PlanID)

	// round((18000 - 9800) * 15 / 30) = 4100
	require.Len(t, invoices.CreatedInvoices, 1)
	created := invoices.CreatedInvoices[0]
	assert.Equal(t, domain.InvoiceTypeOneTime, created.Type)
	require.Len(t, created.LineItems, 1)
	assert.Equal(t, int64(4100), created.LineItems[0].AmountCents)
	assert.Len(t, invoices.ChargedInvoices, 1)
}

func TestChangePlanDowngradeDoesNotCharge(t *testing.T) {
	orgID := uuid.New()
	oldPlan := subscriptionPlan(18000)
	newPlan := subscriptionPlan(9800)
	newPlan.ID = uuid.New()

	now := time.Now().UTC()
	sub := &domain.Subscription{
		ID:                 uuid.New(),
		OrganizationID:     orgID,
		PlanID:             oldPlan.ID,
		Status:             domain.SubscriptionActive,
		CurrentPeriodStart: now.AddDate(0, 0, -15),
		CurrentPeriodEnd:   now.AddDate(0, 0, 15),
	}

	plans := &mockPlanStore{
		GetByIDFunc: func(ctx context.Context, id uuid.UUID) (*domain.Plan, error) {
			if id == newPlan.ID {
				return newPlan, nil
			}
			return oldPlan, nil
		},
	}
	subs := &mockSubscriptionStore{
		GetByIDFunc: func(ctx context.Context, id uuid.UUID) (*domain.Subscription, error) {
			return sub, nil
		},
	}
	invoices := &mockInvoiceService{}

	svc := NewSubscriptionService(subs, plans, &mockPaymentMethodStore{}, invoices, gateway.NewMockProvider(), testLogger())

	updated, err := svc.ChangePlan(context.Background(), domain.ChangePlanParams{
		SubscriptionID: sub.ID,
		OrganizationID: orgID,
		NewPlanID:      newPlan.ID,
	})
	require.NoError(t, err)

	// the plan switches immediately but nothing is invoiced
	assert.Equal(t, newPlan.ID, updated.PlanID)
	assert.Empty(t, invoices.CreatedInvoices)
	assert.Empty(t, invoices.ChargedInvoices)
}

func TestChangePlanRejectsSamePlan(t *testing.T) {
	orgID := uuid.New()
	plan := subscriptionPlan(9800)
	sub := &domain.Subscription{
		ID:             uuid.New(),
		OrganizationID: orgID,
		PlanID:         plan.ID,
		Status:         domain.SubscriptionActive,
	}

	subs := &mockSubscriptionStore{
		GetByIDFunc: func(ctx context.Context, id uuid.UUID) (*domain.Subscription, error) {
			return sub, nil
		},
	}

	svc := NewSubscriptionService(subs, &mockPlanStore{}, &mockPaymentMethodStore{}, &mockInvoiceService{}, gateway.NewMockProvider(), testLogger())

	_, err := svc.ChangePlan(context.Background(), domain.ChangePlanParams{
		SubscriptionID: sub.ID,
		OrganizationID: orgID,
		NewPlanID:      plan.ID,
	})
	assert.ErrorIs(t, err, domain.ErrSamePlanChange)
}

func TestChangePlanRejectsOtherOrganization(t *testing.T) {
	sub := &domain.Subscription{
		ID:             uuid.New(),
		OrganizationID: uuid.New(),
		PlanID:         uuid.New(),
		Status:         domain.SubscriptionActive,
	}

	subs := &mockSubscriptionStore{
		GetByIDFunc: func(ctx context.Context, id uuid.UUID) (*domain.Subscription, error) {
			return sub, nil
		},
	}

	svc := NewSubscriptionService(subs, &mockPlanStore{}, &mockPaymentMethodStore{}, &mockInvoiceService{}, gateway.NewMockProvider(), testLogger())

	_, err := svc.ChangePlan(context.Background(), domain.ChangePlanParams{
		SubscriptionID: sub.ID,
		OrganizationID: uuid.New(),
		NewPlanID:      uuid.New(),
	})
	assert.ErrorIs(t, err, domain.ErrOrganizationMismatch)
}

func TestCancelSubscriptionAtPeriodEnd(t *testing.T) {
	orgID := uuid.New()
	sub := &domain.Subscription{
		ID:             uuid.New(),
		OrganizationID: orgID,
		Status:         domain.SubscriptionActive,
	}

	subs := &mockSubscriptionStore{
		GetByIDFunc: func(ctx context.Context, id uuid.UUID) (*domain.Subscription, error) {
			return sub, nil
		},
	}

	svc := NewSubscriptionService(subs, &mockPlanStore{}, &mockPaymentMethodStore{}, &mockInvoiceService{}, gateway.NewMockProvider(), testLogger())

	updated, err := svc.CancelSubscription(context.Background(), domain.CancelSubscriptionParams{
		SubscriptionID:    sub.ID,
		OrganizationID:    orgID,
		CancelAtPeriodEnd: true,
	})
	require.NoError(t, err)

	// stays active until the period runs out
	assert.Equal(t, domain.SubscriptionActive, updated.Status)
	assert.True(t, updated.CancelAtPeriodEnd)
}

func TestCancelSubscriptionImmediately(t *testing.T) {
	orgID := uuid.New()
	provider := gateway.NewMockProvider()
	sub := &domain.Subscription{
		ID:                    uuid.New(),
		OrganizationID:        orgID,
		Status:                domain.SubscriptionActive,
		GatewaySubscriptionID: "sub_remote",
	}

	var remoteCanceled bool
	provider.CancelSubscriptionFunc = func(ctx context.Context, subscriptionID string, atPeriodEnd bool) error {
		remoteCanceled = true
		assert.Equal(t, "sub_remote", subscriptionID)
		assert.False(t, atPeriodEnd)
		return nil
	}

	subs := &mockSubscriptionStore{
		GetByIDFunc: func(ctx context.Context, id uuid.UUID) (*domain.Subscription, error) {
			return sub, nil
		},
	}

	svc := NewSubscriptionService(subs, &mockPlanStore{}, &mockPaymentMethodStore{}, &mockInvoiceService{}, provider, testLogger())

	updated, err := svc.CancelSubscription(context.Background(), domain.CancelSubscriptionParams{
		SubscriptionID: sub.ID,
		OrganizationID: orgID,
	})
	require.NoError(t, err)

	assert.Equal(t, domain.SubscriptionCanceled, updated.Status)
	assert.True(t, remoteCanceled)
}

func TestCancelSubscriptionAlreadyCanceled(t *testing.T) {
	orgID := uuid.New()
	sub := &domain.Subscription{
		ID:             uuid.New(),
		OrganizationID: orgID,
		Status:         domain.SubscriptionCanceled,
	}

	subs := &mockSubscriptionStore{
		GetByIDFunc: func(ctx context.Context, id uuid.UUID) (*domain.Subscription, error) {
			return sub, nil
		},
	}

	svc := NewSubscriptionService(subs, &mockPlanStore{}, &mockPaymentMethodStore{}, &mockInvoiceService{}, gateway.NewMockProvider(), testLogger())

	_, err := svc.CancelSubscription(context.Background(), domain.CancelSubscriptionParams{
		SubscriptionID: sub.ID,
		OrganizationID: orgID,
	})
	assert.ErrorIs(t, err, domain.ErrSubscriptionCanceled)
}

func TestProcessDueRenewalsAdvancesPeriod(t *testing.T) {
	orgID := uuid.New()
	plan := subscriptionPlan(9800)
	method := orgMethod(orgID)

	periodEnd := time.Now().UTC().AddDate(0, 0, 2)
	due := []domain.Subscription{{
		ID:                 uuid.New(),
		OrganizationID:     orgID,
		PlanID:             plan.ID,
		Status:             domain.SubscriptionActive,
		CurrentPeriodStart: periodEnd.AddDate(0, -1, 0),
		CurrentPeriodEnd:   periodEnd,
	}}

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
	subs := &mockSubscriptionStore{
		ListExpiringWithinFunc: func(ctx context.Context, window time.Duration) ([]domain.Subscription, error) {
			return due, nil
		},
	}
	invoices := &mockInvoiceService{}

	svc := NewSubscriptionService(subs, plans, methods, invoices, gateway.NewMockProvider(), testLogger())

	n, err := svc.ProcessDueRenewals(context.Background(), 72*time.Hour)
	require.NoError(t, err)
	assert.Equal(t, 1, n)

	require.Len(t, subs.Updated, 1)
	renewed := subs.Updated[0]
	assert.Equal(t, periodEnd, renewed.CurrentPeriodStart)
	assert.Equal(t, periodEnd.AddDate(0, 1, 0), renewed.CurrentPeriodEnd)

	require.Len(t, invoices.CreatedInvoices, 1)
	created := invoices.CreatedInvoices[0]
	assert.Equal(t, domain.InvoiceTypeSubscription, created.Type)
	assert.WithinDuration(t, time.Now().AddDate(0, 0, renewalInvoiceDueDays), created.DueDate, time.Minute)
}

func TestProcessDueRenewalsConvertsTrial(t *testing.T) {
	orgID := uuid.New()
	plan := subscriptionPlan(9800)
	method := orgMethod(orgID)

	trialEnd := time.Now().UTC().AddDate(0, 0, 1)
	due := []domain.Subscription{{
		ID:                 uuid.New(),
		OrganizationID:     orgID,
		PlanID:             plan.ID,
		Status:             domain.SubscriptionTrialing,
		TrialEndsAt:        &trialEnd,
		CurrentPeriodStart: trialEnd.AddDate(0, 0, -14),
		CurrentPeriodEnd:   trialEnd,
	}}

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
	subs := &mockSubscriptionStore{
		ListExpiringWithinFunc: func(ctx context.Context, window time.Duration) ([]domain.Subscription, error) {
			return due, nil
		},
	}
	invoices := &mockInvoiceService{}

	svc := NewSubscriptionService(subs, plans, methods, invoices, gateway.NewMockProvider(), testLogger())

	n, err := svc.ProcessDueRenewals(context.Background(), 72*time.Hour)
	require.NoError(t, err)
	assert.Equal(t, 1, n)

	require.Len(t, subs.Updated, 1)
	converted := subs.Updated[0]
	assert.Equal(t, domain.SubscriptionActive, converted.Status)
	assert.Equal(t, trialEnd, converted.CurrentPeriodStart)

	// exactly one invoice for the first paid period
	assert.Len(t, invoices.CreatedInvoices, 1)
}

func TestProcessDueRenewalsFinalizesPendingCancel(t *testing.T) {
	orgID := uuid.New()
	due := []domain.Subscription{{
		ID:                uuid.New(),
		OrganizationID:    orgID,
		PlanID:            uuid.New(),
		Status:            domain.SubscriptionActive,
		CancelAtPeriodEnd: true,
		CurrentPeriodEnd:  time.Now().UTC().AddDate(0, 0, 1),
	}}

	subs := &mockSubscriptionStore{
		ListExpiringWithinFunc: func(ctx context.Context, window time.Duration) ([]domain.Subscription, error) {
			return due, nil
		},
	}
	invoices := &mockInvoiceService{}

	svc := NewSubscriptionService(subs, &mockPlanStore{}, &mockPaymentMethodStore{}, invoices, gateway.NewMockProvider(), testLogger())

	n, err := svc.ProcessDueRenewals(context.Background(), 72*time.Hour)
	require.NoError(t, err)
	assert.Equal(t, 1, n)

	require.Len(t, subs.Updated, 1)
	assert.Equal(t, domain.SubscriptionCanceled, subs.Updated[0].Status)
	assert.Empty(t, invoices.CreatedInvoices)
}

func TestProcessDueRenewalsIsolatesFailures(t *testing.T) {
	orgA := uuid.New()
	orgB := uuid.New()
	plan := subscriptionPlan(9800)

	periodEnd := time.Now().UTC().AddDate(0, 0, 1)
	due := []domain.Subscription{
		{ID: uuid.New(), OrganizationID: orgA, PlanID: plan.ID, Status: domain.SubscriptionActive, CurrentPeriodEnd: periodEnd},
		{ID: uuid.New(), OrganizationID: orgB, PlanID: plan.ID, Status: domain.SubscriptionActive, CurrentPeriodEnd: periodEnd},
	}

	plans := &mockPlanStore{
		GetByIDFunc: func(ctx context.Context, id uuid.UUID) (*domain.Plan, error) {
			return plan, nil
		},
	}
	methods := &mockPaymentMethodStore{
		GetDefaultFunc: func(ctx context.Context, organizationID uuid.UUID) (*domain.PaymentMethod, error) {
			// the first organization has no payment method on file
			if organizationID == orgA {
				return nil, domain.ErrNoDefaultPaymentMethod
			}
			return orgMethod(organizationID), nil
		},
	}
	subs := &mockSubscriptionStore{
		ListExpiringWithinFunc: func(ctx context.Context, window time.Duration) ([]domain.Subscription, error) {
			return due, nil
		},
	}

	svc := NewSubscriptionService(subs, plans, methods, &mockInvoiceService{}, gateway.NewMockProvider(), testLogger())

	n, err := svc.ProcessDueRenewals(context.Background(), 72*time.Hour)
	require.NoError(t, err)
	assert.Equal(t, 1, n)
}
