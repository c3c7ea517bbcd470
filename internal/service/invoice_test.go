package service

import (
	"context"
	"testing"
	"time"

	"github.com/google/uuid"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/strandhq/billing/internal/domain"
	"github.com/strandhq/billing/internal/gateway"
)

func TestCreateInvoiceComputesTotals(t *testing.T) {
	invoices := &mockInvoiceStore{}
	svc := NewInvoiceService(invoices, &mockPaymentStore{}, gateway.NewMockProvider(), testLogger())

	inv, err := svc.CreateInvoice(context.Background(), domain.CreateInvoiceParams{
		OrganizationID: uuid.New(),
		Type:           domain.InvoiceTypeOneTime,
		LineItems: []domain.LineItem{
			{Description: "Setup", UnitPriceCents: 5000, Quantity: 1, AmountCents: 5000},
			{Description: "Seats", UnitPriceCents: 1200, Quantity: 3, AmountCents: 3600},
		},
		TaxCents: 860,
		Currency: "usd",
		DueDate:  time.Now().AddDate(0, 0, 7),
	})
	require.NoError(t, err)

	assert.Equal(t, domain.InvoiceDraft, inv.Status)
	assert.Equal(t, int64(8600), inv.SubtotalCents)
	assert.Equal(t, int64(860), inv.TaxCents)
	assert.Equal(t, int64(9460), inv.TotalCents)
}

func TestCreateInvoiceRejectsMismatchedLineItem(t *testing.T) {
	svc := NewInvoiceService(&mockInvoiceStore{}, &mockPaymentStore{}, gateway.NewMockProvider(), testLogger())

	_, err := svc.CreateInvoice(context.Background(), domain.CreateInvoiceParams{
		OrganizationID: uuid.New(),
		Type:           domain.InvoiceTypeOneTime,
		LineItems: []domain.LineItem{
			{Description: "Seats", UnitPriceCents: 1200, Quantity: 3, AmountCents: 9999},
		},
		Currency: "usd",
		DueDate:  time.Now(),
	})
	require.Error(t, err)
	assert.Equal(t, domain.EINVALID, domain.ErrorCode(err))
}

func TestCreateInvoiceRejectsEmptyLineItems(t *testing.T) {
	svc := NewInvoiceService(&mockInvoiceStore{}, &mockPaymentStore{}, gateway.NewMockProvider(), testLogger())

	_, err := svc.CreateInvoice(context.Background(), domain.CreateInvoiceParams{
		OrganizationID: uuid.New(),
		Type:           domain.InvoiceTypeOneTime,
		Currency:       "usd",
		DueDate:        time.Now(),
	})
	require.Error(t, err)
	assert.Equal(t, domain.EINVALID, domain.ErrorCode(err))
}

func TestChargeInvoiceSuccessMarksPaid(t *testing.T) {
	orgID := uuid.New()
	invoice := &domain.Invoice{
		ID:             uuid.New(),
		OrganizationID: orgID,
		Type:           domain.InvoiceTypeSubscription,
		Status:         domain.InvoiceDraft,
		LineItems:      []domain.LineItem{{Description: "Studio subscription", UnitPriceCents: 9800, Quantity: 1, AmountCents: 9800}},
		TotalCents:     9800,
		Currency:       "usd",
	}
	method := orgMethod(orgID)

	var recordedCharge string
	var recordedPayment *domain.Payment
	invoices := &mockInvoiceStore{
		RecordChargeAttemptFunc: func(ctx context.Context, invoiceID uuid.UUID, chargeID string, payment *domain.Payment) error {
			recordedCharge = chargeID
			recordedPayment = payment
			payment.ID = uuid.New()
			return nil
		},
	}

	provider := gateway.NewMockProvider()
	provider.ChargeFunc = func(ctx context.Context, params gateway.ChargeParams) (*gateway.ChargeResult, error) {
		assert.Equal(t, invoice.ID.String(), params.IdempotencyKey)
		assert.Equal(t, int64(9800), params.AmountCents)
		return &gateway.ChargeResult{
			ChargeID:    "pi_123",
			Status:      gateway.ChargeStatusSucceeded,
			AmountCents: params.AmountCents,
			Currency:    params.Currency,
			CreatedAt:   time.Now(),
		}, nil
	}

	svc := NewInvoiceService(invoices, &mockPaymentStore{}, provider, testLogger())

	err := svc.ChargeInvoice(context.Background(), invoice, method)
	require.NoError(t, err)

	assert.Equal(t, "pi_123", recordedCharge)
	assert.Equal(t, domain.InvoicePaid, invoice.Status)
	require.NotNil(t, invoice.PaidAt)

	require.NotNil(t, recordedPayment)
	assert.Equal(t, domain.PaymentPending, recordedPayment.Status)
	assert.Equal(t, "pi_123", recordedPayment.GatewayChargeID)
}

// The pending payment row and the charge id reach the store in a
// single call, so a success webhook can never observe the charge id
// without its payment row. When the webhook wins the race the paid
// transition reports unapplied here and the invoice is left sent for
// the reconciler's result to stand.
func TestChargeInvoicePairsAttemptWithChargeID(t *testing.T) {
	orgID := uuid.New()
	invoice := &domain.Invoice{
		ID:             uuid.New(),
		OrganizationID: orgID,
		Type:           domain.InvoiceTypeToken,
		Status:         domain.InvoiceDraft,
		TotalCents:     2500,
		Currency:       "usd",
	}

	var pendingRecorded bool
	invoices := &mockInvoiceStore{
		RecordChargeAttemptFunc: func(ctx context.Context, invoiceID uuid.UUID, chargeID string, payment *domain.Payment) error {
			assert.Equal(t, invoice.ID, invoiceID)
			assert.Equal(t, chargeID, payment.GatewayChargeID)
			assert.Equal(t, domain.PaymentPending, payment.Status)
			pendingRecorded = true
			payment.ID = uuid.New()
			return nil
		},
		ApplyChargeSucceededFunc: func(ctx context.Context, chargeID string, paidAt time.Time) (bool, error) {
			// Webhook already settled this charge.
			require.True(t, pendingRecorded)
			return false, nil
		},
	}

	provider := gateway.NewMockProvider()
	provider.ChargeFunc = func(ctx context.Context, params gateway.ChargeParams) (*gateway.ChargeResult, error) {
		return &gateway.ChargeResult{
			ChargeID: "pi_race",
			Status:   gateway.ChargeStatusSucceeded,
			Currency: params.Currency,
		}, nil
	}

	svc := NewInvoiceService(invoices, &mockPaymentStore{}, provider, testLogger())

	err := svc.ChargeInvoice(context.Background(), invoice, orgMethod(orgID))
	require.NoError(t, err)

	assert.True(t, pendingRecorded)
	assert.Equal(t, domain.InvoiceSent, invoice.Status)
	assert.Nil(t, invoice.PaidAt)
}

func TestChargeInvoiceDuplicateChargeID(t *testing.T) {
	orgID := uuid.New()
	invoice := &domain.Invoice{
		ID:             uuid.New(),
		OrganizationID: orgID,
		Type:           domain.InvoiceTypeToken,
		Status:         domain.InvoiceDraft,
		TotalCents:     2500,
		Currency:       "usd",
	}

	var succeededCalled bool
	invoices := &mockInvoiceStore{
		RecordChargeAttemptFunc: func(ctx context.Context, invoiceID uuid.UUID, chargeID string, payment *domain.Payment) error {
			return domain.ErrDuplicateChargeID
		},
		ApplyChargeSucceededFunc: func(ctx context.Context, chargeID string, paidAt time.Time) (bool, error) {
			succeededCalled = true
			return true, nil
		},
	}

	provider := gateway.NewMockProvider()
	provider.ChargeFunc = func(ctx context.Context, params gateway.ChargeParams) (*gateway.ChargeResult, error) {
		return &gateway.ChargeResult{
			ChargeID: "pi_dup",
			Status:   gateway.ChargeStatusSucceeded,
			Currency: params.Currency,
		}, nil
	}

	svc := NewInvoiceService(invoices, &mockPaymentStore{}, provider, testLogger())

	err := svc.ChargeInvoice(context.Background(), invoice, orgMethod(orgID))
	require.Error(t, err)
	assert.ErrorIs(t, err, domain.ErrDuplicateChargeID)

	assert.False(t, succeededCalled)
	assert.NotEqual(t, domain.InvoicePaid, invoice.Status)
	assert.Nil(t, invoice.PaidAt)
}

func TestChargeInvoiceDeclinedRecordsFailure(t *testing.T) {
	orgID := uuid.New()
	invoice := &domain.Invoice{
		ID:             uuid.New(),
		OrganizationID: orgID,
		Type:           domain.InvoiceTypeToken,
		Status:         domain.InvoiceDraft,
		TotalCents:     2500,
		Currency:       "usd",
	}
	method := orgMethod(orgID)

	payments := &mockPaymentStore{}
	provider := gateway.NewMockProvider()
	provider.ChargeFunc = func(ctx context.Context, params gateway.ChargeParams) (*gateway.ChargeResult, error) {
		return nil, &gateway.DeclinedError{Code: "card_declined", Message: "Your card was declined"}
	}

	svc := NewInvoiceService(&mockInvoiceStore{}, payments, provider, testLogger())

	err := svc.ChargeInvoice(context.Background(), invoice, method)
	require.Error(t, err)
	assert.Equal(t, domain.EPAYMENT, domain.ErrorCode(err))

	require.Len(t, payments.Created, 1)
	assert.Equal(t, domain.PaymentFailed, payments.Created[0].Status)
	assert.Equal(t, "Your card was declined", payments.Created[0].FailureReason)
}

func TestChargeInvoiceTransientFailureIsInternal(t *testing.T) {
	orgID := uuid.New()
	invoice := &domain.Invoice{
		ID:             uuid.New(),
		OrganizationID: orgID,
		Type:           domain.InvoiceTypeSubscription,
		Status:         domain.InvoiceDraft,
		TotalCents:     9800,
		Currency:       "usd",
	}

	provider := gateway.NewMockProvider()
	provider.ChargeFunc = func(ctx context.Context, params gateway.ChargeParams) (*gateway.ChargeResult, error) {
		return nil, &gateway.TransientError{Message: "gateway timeout"}
	}

	svc := NewInvoiceService(&mockInvoiceStore{}, &mockPaymentStore{}, provider, testLogger())

	err := svc.ChargeInvoice(context.Background(), invoice, orgMethod(orgID))
	require.Error(t, err)
	assert.Equal(t, domain.EINTERNAL, domain.ErrorCode(err))
}

func TestChargeInvoiceRejectsPaidInvoice(t *testing.T) {
	orgID := uuid.New()
	invoice := &domain.Invoice{
		ID:             uuid.New(),
		OrganizationID: orgID,
		Status:         domain.InvoicePaid,
	}

	svc := NewInvoiceService(&mockInvoiceStore{}, &mockPaymentStore{}, gateway.NewMockProvider(), testLogger())

	err := svc.ChargeInvoice(context.Background(), invoice, orgMethod(orgID))
	assert.ErrorIs(t, err, domain.ErrInvoiceAlreadyPaid)
}

func TestChargeInvoiceRejectsForeignMethod(t *testing.T) {
	invoice := &domain.Invoice{
		ID:             uuid.New(),
		OrganizationID: uuid.New(),
		Status:         domain.InvoiceDraft,
		TotalCents:     1000,
	}

	svc := NewInvoiceService(&mockInvoiceStore{}, &mockPaymentStore{}, gateway.NewMockProvider(), testLogger())

	err := svc.ChargeInvoice(context.Background(), invoice, orgMethod(uuid.New()))
	assert.ErrorIs(t, err, domain.ErrOrganizationMismatch)
}

func TestGetInvoiceScopedToOrganization(t *testing.T) {
	owner := uuid.New()
	invoice := &domain.Invoice{ID: uuid.New(), OrganizationID: owner, Status: domain.InvoiceSent}

	invoices := &mockInvoiceStore{
		GetByIDFunc: func(ctx context.Context, id uuid.UUID) (*domain.Invoice, error) {
			return invoice, nil
		},
	}

	svc := NewInvoiceService(invoices, &mockPaymentStore{}, gateway.NewMockProvider(), testLogger())

	got, err := svc.GetInvoice(context.Background(), invoice.ID, owner)
	require.NoError(t, err)
	assert.Equal(t, invoice.ID, got.ID)

	_, err = svc.GetInvoice(context.Background(), invoice.ID, uuid.New())
	assert.ErrorIs(t, err, domain.ErrOrganizationMismatch)
}
