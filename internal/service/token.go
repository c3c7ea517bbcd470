package service

import (
	"context"
	"fmt"
	"log/slog"
	"time"

	"github.com/google/uuid"
	"github.com/strandhq/billing/internal/domain"
	"github.com/strandhq/billing/internal/telemetry"
)

type tokenService struct {
	plans    domain.PlanStore
	methods  domain.PaymentMethodStore
	invoices domain.InvoiceService
	logger   *slog.Logger
}

// NewTokenService creates a new TokenService instance
func NewTokenService(plans domain.PlanStore, methods domain.PaymentMethodStore, invoices domain.InvoiceService, logger *slog.Logger) domain.TokenService {
	return &tokenService{
		plans:    plans,
		methods:  methods,
		invoices: invoices,
		logger:   logger,
	}
}

// PurchaseTokenPack sells a one-time token pack. Flow:
//  1. Resolve the plan; it must be an active token pack
//  2. Resolve the payment method, falling back to the default
//  3. Create a token invoice carrying the grant amount on its line item
//  4. Charge it immediately
func (s *tokenService) PurchaseTokenPack(ctx context.Context, params domain.TokenPurchaseParams) (*domain.Invoice, error) {
	const op = "TokenService.PurchaseTokenPack"

	if params.OrganizationID == uuid.Nil {
		return nil, domain.ErrOrganizationRequired
	}

	plan, err := s.plans.GetByID(ctx, params.PlanID)
	if err != nil {
		return nil, err
	}
	if plan.Kind != domain.PlanKindTokenPack {
		return nil, domain.Invalid(op, "plan is not a token pack")
	}
	if !plan.IsActive {
		return nil, domain.ErrPlanInactive
	}
	if plan.TokenAmount == nil || *plan.TokenAmount <= 0 {
		return nil, domain.Invalid(op, "token pack has no token amount configured")
	}

	var method *domain.PaymentMethod
	if params.PaymentMethodID != nil {
		method, err = s.methods.GetByID(ctx, *params.PaymentMethodID)
		if err != nil {
			return nil, err
		}
		if method.OrganizationID != params.OrganizationID {
			return nil, domain.ErrOrganizationMismatch
		}
	} else {
		method, err = s.methods.GetDefault(ctx, params.OrganizationID)
		if err != nil {
			return nil, err
		}
	}

	invoice, err := s.invoices.CreateInvoice(ctx, domain.CreateInvoiceParams{
		OrganizationID: params.OrganizationID,
		Type:           domain.InvoiceTypeToken,
		LineItems: []domain.LineItem{{
			Description:    plan.Name,
			UnitPriceCents: plan.PriceCents,
			Quantity:       1,
			AmountCents:    plan.PriceCents,
			TokenGrant:     *plan.TokenAmount,
		}},
		Currency: plan.Currency,
		DueDate:  time.Now().UTC(),
	})
	if err != nil {
		return nil, fmt.Errorf("failed to create token invoice: %w", err)
	}

	if err := s.invoices.ChargeInvoice(ctx, invoice, method); err != nil {
		return invoice, err
	}

	if telemetry.Business != nil {
		telemetry.Business.TokenPacksSold.
			WithLabelValues(params.OrganizationID.String(), plan.Name).Inc()
	}

	s.logger.Info("token pack purchased",
		slog.String("organization_id", params.OrganizationID.String()),
		slog.String("plan", plan.Name),
		slog.Int("tokens", int(*plan.TokenAmount)),
		slog.String("invoice_id", invoice.ID.String()))

	return invoice, nil
}
