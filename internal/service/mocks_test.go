package service

import (
	"context"
	"time"

	"github.com/google/uuid"
	"github.com/strandhq/billing/internal/domain"
)

// Hand-rolled store mocks. Each method delegates to an optional Func
// field and falls back to a zero-value default, so tests only wire the
// calls they care about.

type mockPlanStore struct {
	CreateFunc           func(ctx context.Context, plan *domain.Plan) error
	GetByIDFunc          func(ctx context.Context, id uuid.UUID) (*domain.Plan, error)
	GetByNameFunc        func(ctx context.Context, name string) (*domain.Plan, error)
	ListFunc             func(ctx context.Context, includeInactive bool) ([]domain.Plan, error)
	ListActiveByKindFunc func(ctx context.Context, kind string) ([]domain.Plan, error)
	UpdateFunc           func(ctx context.Context, plan *domain.Plan) error
}

func (m *mockPlanStore) Create(ctx context.Context, plan *domain.Plan) error {
	if m.CreateFunc != nil {
		return m.CreateFunc(ctx, plan)
	}
	plan.ID = uuid.New()
	return nil
}

func (m *mockPlanStore) GetByID(ctx context.Context, id uuid.UUID) (*domain.Plan, error) {
	if m.GetByIDFunc != nil {
		return m.GetByIDFunc(ctx, id)
	}
	return nil, domain.ErrPlanNotFound
}

func (m *mockPlanStore) GetByName(ctx context.Context, name string) (*domain.Plan, error) {
	if m.GetByNameFunc != nil {
		return m.GetByNameFunc(ctx, name)
	}
	return nil, domain.ErrPlanNotFound
}

func (m *mockPlanStore) List(ctx context.Context, includeInactive bool) ([]domain.Plan, error) {
	if m.ListFunc != nil {
		return m.ListFunc(ctx, includeInactive)
	}
	return nil, nil
}

func (m *mockPlanStore) ListActiveByKind(ctx context.Context, kind string) ([]domain.Plan, error) {
	if m.ListActiveByKindFunc != nil {
		return m.ListActiveByKindFunc(ctx, kind)
	}
	return nil, nil
}

func (m *mockPlanStore) Update(ctx context.Context, plan *domain.Plan) error {
	if m.UpdateFunc != nil {
		return m.UpdateFunc(ctx, plan)
	}
	return nil
}

type mockSubscriptionStore struct {
	CreateFunc                  func(ctx context.Context, sub *domain.Subscription) error
	GetByIDFunc                 func(ctx context.Context, id uuid.UUID) (*domain.Subscription, error)
	GetActiveByOrganizationFunc func(ctx context.Context, organizationID uuid.UUID) (*domain.Subscription, error)
	GetByGatewayIDFunc          func(ctx context.Context, gatewaySubscriptionID string) (*domain.Subscription, error)
	UpdateFunc                  func(ctx context.Context, sub *domain.Subscription) error
	ListExpiringWithinFunc      func(ctx context.Context, window time.Duration) ([]domain.Subscription, error)

	Updated []domain.Subscription
}

func (m *mockSubscriptionStore) Create(ctx context.Context, sub *domain.Subscription) error {
	if m.CreateFunc != nil {
		return m.CreateFunc(ctx, sub)
	}
	sub.ID = uuid.New()
	return nil
}

func (m *mockSubscriptionStore) GetByID(ctx context.Context, id uuid.UUID) (*domain.Subscription, error) {
	if m.GetByIDFunc != nil {
		return m.GetByIDFunc(ctx, id)
	}
	return nil, domain.ErrSubscriptionNotFound
}

func (m *mockSubscriptionStore) GetActiveByOrganization(ctx context.Context, organizationID uuid.UUID) (*domain.Subscription, error) {
	if m.GetActiveByOrganizationFunc != nil {
		return m.GetActiveByOrganizationFunc(ctx, organizationID)
	}
	return nil, domain.ErrSubscriptionNotFound
}

func (m *mockSubscriptionStore) GetByGatewayID(ctx context.Context, gatewaySubscriptionID string) (*domain.Subscription, error) {
	if m.GetByGatewayIDFunc != nil {
		return m.GetByGatewayIDFunc(ctx, gatewaySubscriptionID)
	}
	return nil, domain.ErrSubscriptionNotFound
}

func (m *mockSubscriptionStore) Update(ctx context.Context, sub *domain.Subscription) error {
	m.Updated = append(m.Updated, *sub)
	if m.UpdateFunc != nil {
		return m.UpdateFunc(ctx, sub)
	}
	return nil
}

func (m *mockSubscriptionStore) ListExpiringWithin(ctx context.Context, window time.Duration) ([]domain.Subscription, error) {
	if m.ListExpiringWithinFunc != nil {
		return m.ListExpiringWithinFunc(ctx, window)
	}
	return nil, nil
}

type mockPaymentMethodStore struct {
	CreateFunc             func(ctx context.Context, method *domain.PaymentMethod) error
	GetByIDFunc            func(ctx context.Context, id uuid.UUID) (*domain.PaymentMethod, error)
	ListByOrganizationFunc func(ctx context.Context, organizationID uuid.UUID) ([]domain.PaymentMethod, error)
	GetDefaultFunc         func(ctx context.Context, organizationID uuid.UUID) (*domain.PaymentMethod, error)
	SetDefaultFunc         func(ctx context.Context, id, organizationID uuid.UUID) error
	DeleteFunc             func(ctx context.Context, id, organizationID uuid.UUID) error
}

func (m *mockPaymentMethodStore) Create(ctx context.Context, method *domain.PaymentMethod) error {
	if m.CreateFunc != nil {
		return m.CreateFunc(ctx, method)
	}
	method.ID = uuid.New()
	return nil
}

func (m *mockPaymentMethodStore) GetByID(ctx context.Context, id uuid.UUID) (*domain.PaymentMethod, error) {
	if m.GetByIDFunc != nil {
		return m.GetByIDFunc(ctx, id)
	}
	return nil, domain.ErrPaymentMethodNotFound
}

func (m *mockPaymentMethodStore) ListByOrganization(ctx context.Context, organizationID uuid.UUID) ([]domain.PaymentMethod, error) {
	if m.ListByOrganizationFunc != nil {
		return m.ListByOrganizationFunc(ctx, organizationID)
	}
	return nil, nil
}

func (m *mockPaymentMethodStore) GetDefault(ctx context.Context, organizationID uuid.UUID) (*domain.PaymentMethod, error) {
	if m.GetDefaultFunc != nil {
		return m.GetDefaultFunc(ctx, organizationID)
	}
	return nil, domain.ErrNoDefaultPaymentMethod
}

func (m *mockPaymentMethodStore) SetDefault(ctx context.Context, id, organizationID uuid.UUID) error {
	if m.SetDefaultFunc != nil {
		return m.SetDefaultFunc(ctx, id, organizationID)
	}
	return nil
}

func (m *mockPaymentMethodStore) Delete(ctx context.Context, id, organizationID uuid.UUID) error {
	if m.DeleteFunc != nil {
		return m.DeleteFunc(ctx, id, organizationID)
	}
	return nil
}

type mockInvoiceStore struct {
	CreateFunc                    func(ctx context.Context, invoice *domain.Invoice) error
	GetByIDFunc                   func(ctx context.Context, id uuid.UUID) (*domain.Invoice, error)
	GetByGatewayChargeIDFunc      func(ctx context.Context, chargeID string) (*domain.Invoice, error)
	ListByOrganizationFunc        func(ctx context.Context, organizationID uuid.UUID, limit, offset int32) ([]domain.Invoice, error)
	ListOverdueFunc               func(ctx context.Context, asOf time.Time) ([]domain.Invoice, error)
	ListPendingByOrganizationFunc func(ctx context.Context, organizationID uuid.UUID) ([]domain.Invoice, error)
	SumTotalsFunc                 func(ctx context.Context, organizationID uuid.UUID, asOf time.Time) (*domain.InvoiceTotals, error)
	RecordChargeAttemptFunc       func(ctx context.Context, invoiceID uuid.UUID, chargeID string, payment *domain.Payment) error
	UpdateStatusFunc              func(ctx context.Context, id uuid.UUID, status string, paidAt *time.Time) (bool, error)
	ApplyChargeSucceededFunc      func(ctx context.Context, chargeID string, paidAt time.Time) (bool, error)
	ApplyChargeFailedFunc         func(ctx context.Context, chargeID, reason string) (bool, error)
}

func (m *mockInvoiceStore) Create(ctx context.Context, invoice *domain.Invoice) error {
	if m.CreateFunc != nil {
		return m.CreateFunc(ctx, invoice)
	}
	invoice.ID = uuid.New()
	return nil
}

func (m *mockInvoiceStore) GetByID(ctx context.Context, id uuid.UUID) (*domain.Invoice, error) {
	if m.GetByIDFunc != nil {
		return m.GetByIDFunc(ctx, id)
	}
	return nil, domain.ErrInvoiceNotFound
}

func (m *mockInvoiceStore) GetByGatewayChargeID(ctx context.Context, chargeID string) (*domain.Invoice, error) {
	if m.GetByGatewayChargeIDFunc != nil {
		return m.GetByGatewayChargeIDFunc(ctx, chargeID)
	}
	return nil, domain.ErrChargeNotRecognized
}

func (m *mockInvoiceStore) ListByOrganization(ctx context.Context, organizationID uuid.UUID, limit, offset int32) ([]domain.Invoice, error) {
	if m.ListByOrganizationFunc != nil {
		return m.ListByOrganizationFunc(ctx, organizationID, limit, offset)
	}
	return nil, nil
}

func (m *mockInvoiceStore) ListOverdue(ctx context.Context, asOf time.Time) ([]domain.Invoice, error) {
	if m.ListOverdueFunc != nil {
		return m.ListOverdueFunc(ctx, asOf)
	}
	return nil, nil
}

func (m *mockInvoiceStore) ListPendingByOrganization(ctx context.Context, organizationID uuid.UUID) ([]domain.Invoice, error) {
	if m.ListPendingByOrganizationFunc != nil {
		return m.ListPendingByOrganizationFunc(ctx, organizationID)
	}
	return nil, nil
}

func (m *mockInvoiceStore) SumTotals(ctx context.Context, organizationID uuid.UUID, asOf time.Time) (*domain.InvoiceTotals, error) {
	if m.SumTotalsFunc != nil {
		return m.SumTotalsFunc(ctx, organizationID, asOf)
	}
	return &domain.InvoiceTotals{}, nil
}

func (m *mockInvoiceStore) RecordChargeAttempt(ctx context.Context, invoiceID uuid.UUID, chargeID string, payment *domain.Payment) error {
	if m.RecordChargeAttemptFunc != nil {
		return m.RecordChargeAttemptFunc(ctx, invoiceID, chargeID, payment)
	}
	payment.ID = uuid.New()
	return nil
}

func (m *mockInvoiceStore) UpdateStatus(ctx context.Context, id uuid.UUID, status string, paidAt *time.Time) (bool, error) {
	if m.UpdateStatusFunc != nil {
		return m.UpdateStatusFunc(ctx, id, status, paidAt)
	}
	return true, nil
}

func (m *mockInvoiceStore) ApplyChargeSucceeded(ctx context.Context, chargeID string, paidAt time.Time) (bool, error) {
	if m.ApplyChargeSucceededFunc != nil {
		return m.ApplyChargeSucceededFunc(ctx, chargeID, paidAt)
	}
	return true, nil
}

func (m *mockInvoiceStore) ApplyChargeFailed(ctx context.Context, chargeID, reason string) (bool, error) {
	if m.ApplyChargeFailedFunc != nil {
		return m.ApplyChargeFailedFunc(ctx, chargeID, reason)
	}
	return true, nil
}

type mockPaymentStore struct {
	CreateFunc                func(ctx context.Context, payment *domain.Payment) error
	GetByIDFunc               func(ctx context.Context, id uuid.UUID) (*domain.Payment, error)
	ListByInvoiceFunc         func(ctx context.Context, invoiceID uuid.UUID) ([]domain.Payment, error)
	ListByOrganizationFunc    func(ctx context.Context, organizationID uuid.UUID, limit, offset int32) ([]domain.Payment, error)
	ListByGatewayChargeIDFunc func(ctx context.Context, chargeID string) ([]domain.Payment, error)

	Created []domain.Payment
}

func (m *mockPaymentStore) Create(ctx context.Context, payment *domain.Payment) error {
	if m.CreateFunc != nil {
		return m.CreateFunc(ctx, payment)
	}
	payment.ID = uuid.New()
	m.Created = append(m.Created, *payment)
	return nil
}

func (m *mockPaymentStore) GetByID(ctx context.Context, id uuid.UUID) (*domain.Payment, error) {
	if m.GetByIDFunc != nil {
		return m.GetByIDFunc(ctx, id)
	}
	return nil, domain.NotFound("PaymentStore.GetByID", "payment", id.String())
}

func (m *mockPaymentStore) ListByInvoice(ctx context.Context, invoiceID uuid.UUID) ([]domain.Payment, error) {
	if m.ListByInvoiceFunc != nil {
		return m.ListByInvoiceFunc(ctx, invoiceID)
	}
	return nil, nil
}

func (m *mockPaymentStore) ListByOrganization(ctx context.Context, organizationID uuid.UUID, limit, offset int32) ([]domain.Payment, error) {
	if m.ListByOrganizationFunc != nil {
		return m.ListByOrganizationFunc(ctx, organizationID, limit, offset)
	}
	return nil, nil
}

func (m *mockPaymentStore) ListByGatewayChargeID(ctx context.Context, chargeID string) ([]domain.Payment, error) {
	if m.ListByGatewayChargeIDFunc != nil {
		return m.ListByGatewayChargeIDFunc(ctx, chargeID)
	}
	return nil, nil
}

type mockInvoiceService struct {
	CreateInvoiceFunc       func(ctx context.Context, params domain.CreateInvoiceParams) (*domain.Invoice, error)
	GetInvoiceFunc          func(ctx context.Context, id, organizationID uuid.UUID) (*domain.Invoice, error)
	ListInvoicesFunc        func(ctx context.Context, organizationID uuid.UUID, limit, offset int32) ([]domain.Invoice, error)
	ChargeInvoiceFunc       func(ctx context.Context, invoice *domain.Invoice, method *domain.PaymentMethod) error
	ListOverdueInvoicesFunc func(ctx context.Context, asOf time.Time) ([]domain.Invoice, error)

	CreatedInvoices []domain.CreateInvoiceParams
	ChargedInvoices []domain.Invoice
}

func (m *mockInvoiceService) CreateInvoice(ctx context.Context, params domain.CreateInvoiceParams) (*domain.Invoice, error) {
	m.CreatedInvoices = append(m.CreatedInvoices, params)
	if m.CreateInvoiceFunc != nil {
		return m.CreateInvoiceFunc(ctx, params)
	}
	var subtotal int64
	for _, item := range params.LineItems {
		subtotal += item.AmountCents
	}
	return &domain.Invoice{
		ID:             uuid.New(),
		OrganizationID: params.OrganizationID,
		SubscriptionID: params.SubscriptionID,
		Type:           params.Type,
		Status:         domain.InvoiceDraft,
		LineItems:      params.LineItems,
		SubtotalCents:  subtotal,
		TaxCents:       params.TaxCents,
		TotalCents:     subtotal + params.TaxCents,
		Currency:       params.Currency,
		DueDate:        params.DueDate,
		PeriodStart:    params.PeriodStart,
		PeriodEnd:      params.PeriodEnd,
	}, nil
}

func (m *mockInvoiceService) GetInvoice(ctx context.Context, id, organizationID uuid.UUID) (*domain.Invoice, error) {
	if m.GetInvoiceFunc != nil {
		return m.GetInvoiceFunc(ctx, id, organizationID)
	}
	return nil, domain.ErrInvoiceNotFound
}

func (m *mockInvoiceService) ListInvoices(ctx context.Context, organizationID uuid.UUID, limit, offset int32) ([]domain.Invoice, error) {
	if m.ListInvoicesFunc != nil {
		return m.ListInvoicesFunc(ctx, organizationID, limit, offset)
	}
	return nil, nil
}

func (m *mockInvoiceService) ChargeInvoice(ctx context.Context, invoice *domain.Invoice, method *domain.PaymentMethod) error {
	m.ChargedInvoices = append(m.ChargedInvoices, *invoice)
	if m.ChargeInvoiceFunc != nil {
		return m.ChargeInvoiceFunc(ctx, invoice, method)
	}
	invoice.Status = domain.InvoicePaid
	return nil
}

func (m *mockInvoiceService) ListOverdueInvoices(ctx context.Context, asOf time.Time) ([]domain.Invoice, error) {
	if m.ListOverdueInvoicesFunc != nil {
		return m.ListOverdueInvoicesFunc(ctx, asOf)
	}
	return nil, nil
}
