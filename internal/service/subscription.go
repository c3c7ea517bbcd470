package service

import (
	"context"
	"errors"
	"fmt"
	"log/slog"
	"time"

	"github.com/google/uuid"
	"github.com/strandhq/billing/internal/domain"
	"github.com/strandhq/billing/internal/gateway"
	"github.com/strandhq/billing/internal/telemetry"
)

// renewalInvoiceDueDays is how long an organization has to settle a
// renewal invoice before it counts as overdue.
const renewalInvoiceDueDays = 7

type subscriptionService struct {
	subs     domain.SubscriptionStore
	plans    domain.PlanStore
	methods  domain.PaymentMethodStore
	invoices domain.InvoiceService
	provider gateway.Provider
	logger   *slog.Logger
}

// NewSubscriptionService creates a new SubscriptionService instance
func NewSubscriptionService(
	subs domain.SubscriptionStore,
	plans domain.PlanStore,
	methods domain.PaymentMethodStore,
	invoices domain.InvoiceService,
	provider gateway.Provider,
	logger *slog.Logger,
) domain.SubscriptionService {
	return &subscriptionService{
		subs:     subs,
		plans:    plans,
		methods:  methods,
		invoices: invoices,
		provider: provider,
		logger:   logger,
	}
}

// CreateSubscription starts a subscription for the organization. Flow:
//  1. Resolve and validate the plan (active subscription plan only)
//  2. Verify the payment method belongs to the organization
//  3. Reject if a non-canceled subscription already exists
//  4. Create the remote subscription when the plan has a gateway price
//  5. Persist trialing (trialDays > 0, nothing charged) or active
//  6. For active starts, create and charge the first period invoice
func (s *subscriptionService) CreateSubscription(ctx context.Context, params domain.CreateSubscriptionParams) (*domain.Subscription, error) {
	const op = "SubscriptionService.CreateSubscription"

	if params.OrganizationID == uuid.Nil {
		return nil, domain.ErrOrganizationRequired
	}
	if params.TrialDays < 0 {
		return nil, domain.Invalid(op, "trial days must not be negative")
	}

	plan, err := s.plans.GetByID(ctx, params.PlanID)
	if err != nil {
		return nil, err
	}
	if !plan.IsSubscription() {
		return nil, domain.ErrPlanNotSubscribable
	}
	if !plan.IsActive {
		return nil, domain.ErrPlanInactive
	}

	method, err := s.methods.GetByID(ctx, params.PaymentMethodID)
	if err != nil {
		return nil, err
	}
	if method.OrganizationID != params.OrganizationID {
		return nil, domain.ErrOrganizationMismatch
	}

	if _, err := s.subs.GetActiveByOrganization(ctx, params.OrganizationID); err == nil {
		return nil, domain.ErrSubscriptionExists
	} else if !errors.Is(err, domain.ErrSubscriptionNotFound) {
		return nil, fmt.Errorf("failed to check existing subscription: %w", err)
	}

	now := time.Now().UTC()
	sub := &domain.Subscription{
		OrganizationID:     params.OrganizationID,
		PlanID:             plan.ID,
		Status:             domain.SubscriptionActive,
		CurrentPeriodStart: now,
		CurrentPeriodEnd:   now.AddDate(0, 1, 0),
	}
	if params.TrialDays > 0 {
		trialEnd := now.AddDate(0, 0, params.TrialDays)
		sub.Status = domain.SubscriptionTrialing
		sub.TrialEndsAt = &trialEnd
		sub.CurrentPeriodEnd = trialEnd
	}

	if plan.GatewayPriceID != "" {
		remote, err := s.provider.CreateSubscription(ctx, gateway.CreateSubscriptionParams{
			Token:     method.GatewayToken,
			Email:     params.BillingEmail,
			PriceID:   plan.GatewayPriceID,
			TrialDays: int64(params.TrialDays),
			Metadata: map[string]string{
				"organization_id": params.OrganizationID.String(),
			},
		})
		if err != nil {
			if gateway.IsDeclined(err) {
				return nil, domain.PaymentError(op, "The payment method was rejected by the gateway")
			}
			return nil, fmt.Errorf("failed to create remote subscription: %w", err)
		}
		sub.GatewaySubscriptionID = remote.ID
	}

	if err := s.subs.Create(ctx, sub); err != nil {
		return nil, err
	}

	if telemetry.Business != nil {
		trial := "false"
		if params.TrialDays > 0 {
			trial = "true"
		}
		telemetry.Business.SubscriptionsCreated.
			WithLabelValues(sub.OrganizationID.String(), trial).Inc()
	}

	s.logger.Info("subscription created",
		slog.String("subscription_id", sub.ID.String()),
		slog.String("organization_id", sub.OrganizationID.String()),
		slog.String("plan", plan.Name),
		slog.String("status", sub.Status))

	if sub.Status == domain.SubscriptionActive {
		if err := s.issuePeriodInvoice(ctx, sub, plan, method); err != nil {
			return sub, err
		}
	}

	return sub, nil
}

func (s *subscriptionService) GetSubscription(ctx context.Context, organizationID uuid.UUID) (*domain.Subscription, error) {
	return s.subs.GetActiveByOrganization(ctx, organizationID)
}

// ChangePlan moves the subscription to a different plan. Upgrades are
// charged the prorated difference for the days remaining in the period;
// downgrades simply take effect at the next renewal. The plan switch is
// persisted before the upgrade charge runs, so a declined card leaves
// the organization on the new plan with an open invoice.
func (s *subscriptionService) ChangePlan(ctx context.Context, params domain.ChangePlanParams) (*domain.Subscription, error) {
	sub, err := s.subs.GetByID(ctx, params.SubscriptionID)
	if err != nil {
		return nil, err
	}
	if sub.OrganizationID != params.OrganizationID {
		return nil, domain.ErrOrganizationMismatch
	}
	if sub.IsTerminal() {
		return nil, domain.ErrSubscriptionCanceled
	}
	if sub.PlanID == params.NewPlanID {
		return nil, domain.ErrSamePlanChange
	}

	newPlan, err := s.plans.GetByID(ctx, params.NewPlanID)
	if err != nil {
		return nil, err
	}
	if !newPlan.IsSubscription() {
		return nil, domain.ErrPlanNotSubscribable
	}
	if !newPlan.IsActive {
		return nil, domain.ErrPlanInactive
	}

	oldPlan, err := s.plans.GetByID(ctx, sub.PlanID)
	if err != nil {
		return nil, fmt.Errorf("failed to resolve current plan: %w", err)
	}

	now := time.Now().UTC()
	prorated := ProrateUpgrade(oldPlan.PriceCents, newPlan.PriceCents, DaysRemaining(now, sub.CurrentPeriodEnd))

	sub.PlanID = newPlan.ID
	if err := s.subs.Update(ctx, sub); err != nil {
		return nil, err
	}

	if sub.GatewaySubscriptionID != "" && newPlan.GatewayPriceID != "" {
		if _, err := s.provider.UpdateSubscription(ctx, gateway.UpdateSubscriptionParams{
			SubscriptionID: sub.GatewaySubscriptionID,
			NewPriceID:     newPlan.GatewayPriceID,
		}); err != nil {
			s.logger.Error("remote plan change failed",
				slog.String("subscription_id", sub.ID.String()),
				slog.String("gateway_subscription_id", sub.GatewaySubscriptionID),
				slog.String("error", err.Error()))
		}
	}

	direction := "downgrade"
	if newPlan.PriceCents > oldPlan.PriceCents {
		direction = "upgrade"
	}
	if telemetry.Business != nil {
		telemetry.Business.PlanChanges.
			WithLabelValues(sub.OrganizationID.String(), direction).Inc()
	}

	s.logger.Info("subscription plan changed",
		slog.String("subscription_id", sub.ID.String()),
		slog.String("organization_id", sub.OrganizationID.String()),
		slog.String("from_plan", oldPlan.Name),
		slog.String("to_plan", newPlan.Name),
		slog.Int64("prorated_cents", prorated))

	if prorated > 0 {
		if err := s.chargeUpgrade(ctx, sub, oldPlan, newPlan, prorated, now); err != nil {
			return sub, err
		}
	}

	return sub, nil
}

// CancelSubscription cancels either at period end or immediately.
func (s *subscriptionService) CancelSubscription(ctx context.Context, params domain.CancelSubscriptionParams) (*domain.Subscription, error) {
	sub, err := s.subs.GetByID(ctx, params.SubscriptionID)
	if err != nil {
		return nil, err
	}
	if sub.OrganizationID != params.OrganizationID {
		return nil, domain.ErrOrganizationMismatch
	}
	if sub.IsTerminal() {
		return nil, domain.ErrSubscriptionCanceled
	}

	mode := "immediate"
	if params.CancelAtPeriodEnd {
		mode = "period_end"
		sub.CancelAtPeriodEnd = true
	} else {
		sub.Status = domain.SubscriptionCanceled
	}

	if err := s.subs.Update(ctx, sub); err != nil {
		return nil, err
	}

	if sub.GatewaySubscriptionID != "" {
		s.cancelRemote(ctx, sub, params.CancelAtPeriodEnd)
	}

	if telemetry.Business != nil {
		telemetry.Business.SubscriptionsCanceled.
			WithLabelValues(sub.OrganizationID.String(), mode).Inc()
	}

	s.logger.Info("subscription canceled",
		slog.String("subscription_id", sub.ID.String()),
		slog.String("organization_id", sub.OrganizationID.String()),
		slog.String("mode", mode))

	return sub, nil
}

// ProcessDueRenewals sweeps subscriptions whose period ends within the
// window and advances each one: pending cancels are finalized, trials
// convert to active with their first invoice, and active subscriptions
// roll into a new period with a fresh invoice. One subscription's
// failure is logged and skipped, never aborting the sweep.
func (s *subscriptionService) ProcessDueRenewals(ctx context.Context, window time.Duration) (int, error) {
	due, err := s.subs.ListExpiringWithin(ctx, window)
	if err != nil {
		return 0, fmt.Errorf("failed to list expiring subscriptions: %w", err)
	}

	processed := 0
	for i := range due {
		sub := &due[i]
		if err := s.renewOne(ctx, sub); err != nil {
			s.logger.Error("renewal failed",
				slog.String("subscription_id", sub.ID.String()),
				slog.String("organization_id", sub.OrganizationID.String()),
				slog.String("error", err.Error()))
			continue
		}
		processed++
	}

	return processed, nil
}

func (s *subscriptionService) renewOne(ctx context.Context, sub *domain.Subscription) error {
	if sub.CancelAtPeriodEnd {
		sub.Status = domain.SubscriptionCanceled
		if err := s.subs.Update(ctx, sub); err != nil {
			return err
		}
		if sub.GatewaySubscriptionID != "" {
			s.cancelRemote(ctx, sub, false)
		}
		s.logger.Info("pending cancel finalized",
			slog.String("subscription_id", sub.ID.String()),
			slog.String("organization_id", sub.OrganizationID.String()))
		return nil
	}

	switch sub.Status {
	case domain.SubscriptionTrialing, domain.SubscriptionActive:
	default:
		// past_due subscriptions wait for reconciliation or cancel,
		// they are not renewed.
		s.logger.Warn("skipping renewal for delinquent subscription",
			slog.String("subscription_id", sub.ID.String()),
			slog.String("status", sub.Status))
		return nil
	}

	plan, err := s.plans.GetByID(ctx, sub.PlanID)
	if err != nil {
		return fmt.Errorf("failed to resolve plan: %w", err)
	}

	fromTrial := sub.Status == domain.SubscriptionTrialing

	periodStart := sub.CurrentPeriodEnd
	sub.Status = domain.SubscriptionActive
	sub.CurrentPeriodStart = periodStart
	sub.CurrentPeriodEnd = periodStart.AddDate(0, 1, 0)
	if err := s.subs.Update(ctx, sub); err != nil {
		return err
	}

	if telemetry.Business != nil {
		if fromTrial {
			telemetry.Business.TrialConversions.
				WithLabelValues(sub.OrganizationID.String()).Inc()
		} else {
			telemetry.Business.SubscriptionRenewals.
				WithLabelValues(sub.OrganizationID.String()).Inc()
		}
	}

	method, err := s.methods.GetDefault(ctx, sub.OrganizationID)
	if err != nil {
		return fmt.Errorf("period advanced but charge skipped: %w", err)
	}

	if err := s.issuePeriodInvoice(ctx, sub, plan, method); err != nil {
		// The period advance stands; the invoice stays open and the
		// webhook or a retry settles it.
		return fmt.Errorf("period advanced but charge failed: %w", err)
	}

	s.logger.Info("subscription renewed",
		slog.String("subscription_id", sub.ID.String()),
		slog.String("organization_id", sub.OrganizationID.String()),
		slog.Bool("from_trial", fromTrial),
		slog.Time("period_end", sub.CurrentPeriodEnd))

	return nil
}

// issuePeriodInvoice creates and charges the invoice covering the
// subscription's current period.
func (s *subscriptionService) issuePeriodInvoice(ctx context.Context, sub *domain.Subscription, plan *domain.Plan, method *domain.PaymentMethod) error {
	periodStart := sub.CurrentPeriodStart
	periodEnd := sub.CurrentPeriodEnd

	invoice, err := s.invoices.CreateInvoice(ctx, domain.CreateInvoiceParams{
		OrganizationID: sub.OrganizationID,
		SubscriptionID: &sub.ID,
		Type:           domain.InvoiceTypeSubscription,
		LineItems: []domain.LineItem{{
			Description:    plan.Name + " subscription",
			UnitPriceCents: plan.PriceCents,
			Quantity:       1,
			AmountCents:    plan.PriceCents,
		}},
		Currency:    plan.Currency,
		DueDate:     time.Now().UTC().AddDate(0, 0, renewalInvoiceDueDays),
		PeriodStart: &periodStart,
		PeriodEnd:   &periodEnd,
	})
	if err != nil {
		return fmt.Errorf("failed to create period invoice: %w", err)
	}

	return s.invoices.ChargeInvoice(ctx, invoice, method)
}

// chargeUpgrade creates and charges the one-time prorated invoice for
// an upgrade against the organization's default payment method.
func (s *subscriptionService) chargeUpgrade(ctx context.Context, sub *domain.Subscription, oldPlan, newPlan *domain.Plan, prorated int64, now time.Time) error {
	method, err := s.methods.GetDefault(ctx, sub.OrganizationID)
	if err != nil {
		return err
	}

	invoice, err := s.invoices.CreateInvoice(ctx, domain.CreateInvoiceParams{
		OrganizationID: sub.OrganizationID,
		SubscriptionID: &sub.ID,
		Type:           domain.InvoiceTypeOneTime,
		LineItems: []domain.LineItem{{
			Description:    fmt.Sprintf("Upgrade from %s to %s (prorated)", oldPlan.Name, newPlan.Name),
			UnitPriceCents: prorated,
			Quantity:       1,
			AmountCents:    prorated,
		}},
		Currency: newPlan.Currency,
		DueDate:  now,
	})
	if err != nil {
		return fmt.Errorf("failed to create upgrade invoice: %w", err)
	}

	return s.invoices.ChargeInvoice(ctx, invoice, method)
}

// cancelRemote requests gateway-side cancellation. A remote failure is
// logged, never unwinding the local cancel; the reconciler converges
// the two sides.
func (s *subscriptionService) cancelRemote(ctx context.Context, sub *domain.Subscription, atPeriodEnd bool) {
	if err := s.provider.CancelSubscription(ctx, sub.GatewaySubscriptionID, atPeriodEnd); err != nil {
		s.logger.Error("remote cancellation failed",
			slog.String("subscription_id", sub.ID.String()),
			slog.String("gateway_subscription_id", sub.GatewaySubscriptionID),
			slog.String("error", err.Error()))
	}
}
