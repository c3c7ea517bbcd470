package service

import (
	"context"
	"fmt"
	"strings"

	"github.com/google/uuid"
	"github.com/strandhq/billing/internal/domain"
)

type catalogService struct {
	plans domain.PlanStore
}

// NewCatalogService creates a new CatalogService instance
func NewCatalogService(plans domain.PlanStore) domain.CatalogService {
	return &catalogService{plans: plans}
}

// CreatePlan validates and persists a new plan. Subscription plans must
// carry all entitlement limits; token packs must grant a positive token
// amount.
func (s *catalogService) CreatePlan(ctx context.Context, params domain.CreatePlanParams) (*domain.Plan, error) {
	const op = "CatalogService.CreatePlan"

	if err := validatePlanParams(op, params); err != nil {
		return nil, err
	}

	plan := &domain.Plan{
		Name:           strings.TrimSpace(params.Name),
		Description:    params.Description,
		Kind:           params.Kind,
		PriceCents:     params.PriceCents,
		Currency:       strings.ToLower(params.Currency),
		BillingCycle:   params.BillingCycle,
		MaxStylists:    params.MaxStylists,
		MaxClients:     params.MaxClients,
		MonthlyTokens:  params.MonthlyTokens,
		TokenAmount:    params.TokenAmount,
		GatewayPriceID: params.GatewayPriceID,
		SortOrder:      params.SortOrder,
		IsActive:       true,
	}

	if err := s.plans.Create(ctx, plan); err != nil {
		return nil, err
	}

	return plan, nil
}

func (s *catalogService) GetPlan(ctx context.Context, id uuid.UUID) (*domain.Plan, error) {
	return s.plans.GetByID(ctx, id)
}

func (s *catalogService) ListPlans(ctx context.Context, includeInactive bool) ([]domain.Plan, error) {
	plans, err := s.plans.List(ctx, includeInactive)
	if err != nil {
		return nil, fmt.Errorf("failed to list plans: %w", err)
	}
	return plans, nil
}

func (s *catalogService) ListPlansByKind(ctx context.Context, kind string) ([]domain.Plan, error) {
	const op = "CatalogService.ListPlansByKind"

	if kind != domain.PlanKindSubscription && kind != domain.PlanKindTokenPack {
		return nil, domain.Invalid(op, fmt.Sprintf("unknown plan kind %q", kind))
	}

	plans, err := s.plans.ListActiveByKind(ctx, kind)
	if err != nil {
		return nil, fmt.Errorf("failed to list %s plans: %w", kind, err)
	}
	return plans, nil
}

// UpdatePlan applies partial updates to a plan. The plan kind is fixed
// at creation and cannot change afterwards.
func (s *catalogService) UpdatePlan(ctx context.Context, id uuid.UUID, params domain.UpdatePlanParams) (*domain.Plan, error) {
	const op = "CatalogService.UpdatePlan"

	plan, err := s.plans.GetByID(ctx, id)
	if err != nil {
		return nil, err
	}

	if params.Name != nil {
		if strings.TrimSpace(*params.Name) == "" {
			return nil, domain.Invalid(op, "plan name is required")
		}
		plan.Name = strings.TrimSpace(*params.Name)
	}
	if params.Description != nil {
		plan.Description = *params.Description
	}
	if params.PriceCents != nil {
		if *params.PriceCents < 0 {
			return nil, domain.Invalid(op, "price must not be negative")
		}
		plan.PriceCents = *params.PriceCents
	}
	if params.MaxStylists != nil {
		plan.MaxStylists = params.MaxStylists
	}
	if params.MaxClients != nil {
		plan.MaxClients = params.MaxClients
	}
	if params.MonthlyTokens != nil {
		plan.MonthlyTokens = params.MonthlyTokens
	}
	if params.TokenAmount != nil {
		plan.TokenAmount = params.TokenAmount
	}
	if params.GatewayPriceID != nil {
		plan.GatewayPriceID = *params.GatewayPriceID
	}
	if params.SortOrder != nil {
		plan.SortOrder = *params.SortOrder
	}
	if params.IsActive != nil {
		plan.IsActive = *params.IsActive
	}

	if err := s.plans.Update(ctx, plan); err != nil {
		return nil, err
	}

	return plan, nil
}

// RetirePlan deactivates a plan so it can no longer be purchased.
// Existing subscriptions on the plan continue to renew.
func (s *catalogService) RetirePlan(ctx context.Context, id uuid.UUID) error {
	inactive := false
	_, err := s.UpdatePlan(ctx, id, domain.UpdatePlanParams{IsActive: &inactive})
	return err
}

// ReactivatePlan makes a retired plan purchasable again.
func (s *catalogService) ReactivatePlan(ctx context.Context, id uuid.UUID) error {
	active := true
	_, err := s.UpdatePlan(ctx, id, domain.UpdatePlanParams{IsActive: &active})
	return err
}

func validatePlanParams(op string, params domain.CreatePlanParams) error {
	if strings.TrimSpace(params.Name) == "" {
		return domain.Invalid(op, "plan name is required")
	}
	if params.PriceCents < 0 {
		return domain.Invalid(op, "price must not be negative")
	}
	if params.Currency == "" {
		return domain.Invalid(op, "currency is required")
	}

	switch params.Kind {
	case domain.PlanKindSubscription:
		if params.BillingCycle != domain.BillingCycleMonthly && params.BillingCycle != domain.BillingCycleYearly {
			return domain.Invalid(op, "subscription plans must bill monthly or yearly")
		}
		if params.MaxStylists == nil || params.MaxClients == nil || params.MonthlyTokens == nil {
			return domain.Invalid(op, "subscription plans require stylist, client and token limits")
		}
	case domain.PlanKindTokenPack:
		if params.BillingCycle != domain.BillingCycleOneTime {
			return domain.Invalid(op, "token packs are one-time purchases")
		}
		if params.TokenAmount == nil || *params.TokenAmount <= 0 {
			return domain.Invalid(op, "token packs require a positive token amount")
		}
	default:
		return domain.Invalid(op, fmt.Sprintf("unknown plan kind %q", params.Kind))
	}

	return nil
}
