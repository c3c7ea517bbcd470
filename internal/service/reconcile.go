package service

import (
	"context"
	"errors"
	"fmt"
	"log/slog"

	"github.com/strandhq/billing/internal/domain"
	"github.com/strandhq/billing/internal/gateway"
	"github.com/strandhq/billing/internal/telemetry"
)

// Reconciler applies verified gateway events to local billing state.
// The gateway's webhook stream is the authoritative record of charge
// outcomes; everything written optimistically on the synchronous path
// is confirmed or corrected here. Every handler is idempotent, since
// gateways deliver at-least-once.
type Reconciler struct {
	invoices domain.InvoiceStore
	subs     domain.SubscriptionStore
	logger   *slog.Logger
}

// NewReconciler creates a new Reconciler instance
func NewReconciler(invoices domain.InvoiceStore, subs domain.SubscriptionStore, logger *slog.Logger) *Reconciler {
	return &Reconciler{
		invoices: invoices,
		subs:     subs,
		logger:   logger,
	}
}

// ProcessEvent dispatches a verified event to its handler. Unknown
// event kinds are logged and acknowledged so the gateway stops
// redelivering them.
func (r *Reconciler) ProcessEvent(ctx context.Context, event *gateway.Event) error {
	switch event.Kind {
	case gateway.EventChargeSucceeded:
		return r.handleChargeSucceeded(ctx, event)
	case gateway.EventChargeFailed:
		return r.handleChargeFailed(ctx, event)
	case gateway.EventSubscriptionPaymentSucceeded:
		return r.handleSubscriptionPaymentSucceeded(ctx, event)
	case gateway.EventSubscriptionPaymentFailed:
		return r.handleSubscriptionPaymentFailed(ctx, event)
	default:
		r.logger.Info("ignoring unhandled webhook event",
			slog.String("event_id", event.ID),
			slog.String("event_type", event.RawType))
		return nil
	}
}

// handleChargeSucceeded marks the invoice holding the charge id paid.
// Redeliveries and charges already settled synchronously are no-ops.
func (r *Reconciler) handleChargeSucceeded(ctx context.Context, event *gateway.Event) error {
	if event.ChargeID == "" {
		r.logger.Warn("charge succeeded event without charge id",
			slog.String("event_id", event.ID))
		return nil
	}

	applied, err := r.invoices.ApplyChargeSucceeded(ctx, event.ChargeID, event.Created)
	if err != nil {
		return fmt.Errorf("failed to apply charge success: %w", err)
	}
	if !applied {
		// Either a duplicate delivery or a charge this system never
		// issued. Tell them apart for the log line.
		if _, err := r.invoices.GetByGatewayChargeID(ctx, event.ChargeID); err != nil {
			if errors.Is(err, domain.ErrChargeNotRecognized) {
				r.logger.Warn("charge succeeded for unknown charge id",
					slog.String("event_id", event.ID),
					slog.String("charge_id", event.ChargeID))
				return nil
			}
			return fmt.Errorf("failed to resolve charge id: %w", err)
		}
		r.logger.Debug("duplicate charge succeeded delivery",
			slog.String("event_id", event.ID),
			slog.String("charge_id", event.ChargeID))
		return nil
	}

	invoice, err := r.invoices.GetByGatewayChargeID(ctx, event.ChargeID)
	if err == nil && telemetry.Business != nil {
		org := invoice.OrganizationID.String()
		telemetry.Business.PaymentSucceeded.WithLabelValues(org, invoice.Type).Inc()
		telemetry.Business.RevenueCollected.
			WithLabelValues(org, invoice.Type, invoice.Currency).
			Add(float64(invoice.TotalCents))
	}

	r.logger.Info("invoice reconciled as paid",
		slog.String("event_id", event.ID),
		slog.String("charge_id", event.ChargeID))

	return nil
}

// handleChargeFailed records the failure on pending payment rows. An
// invoice already paid is never reverted; a late failure event after a
// success is logged and dropped.
func (r *Reconciler) handleChargeFailed(ctx context.Context, event *gateway.Event) error {
	if event.ChargeID == "" {
		r.logger.Warn("charge failed event without charge id",
			slog.String("event_id", event.ID))
		return nil
	}

	reason := event.FailureReason
	if reason == "" {
		reason = "charge failed"
	}

	applied, err := r.invoices.ApplyChargeFailed(ctx, event.ChargeID, reason)
	if err != nil {
		return fmt.Errorf("failed to apply charge failure: %w", err)
	}
	if !applied {
		r.logger.Debug("charge failure with nothing pending",
			slog.String("event_id", event.ID),
			slog.String("charge_id", event.ChargeID))
		return nil
	}

	r.logger.Info("charge failure reconciled",
		slog.String("event_id", event.ID),
		slog.String("charge_id", event.ChargeID),
		slog.String("reason", reason))

	return nil
}

// handleSubscriptionPaymentSucceeded restores a past_due subscription
// to active once the gateway collects a period payment.
func (r *Reconciler) handleSubscriptionPaymentSucceeded(ctx context.Context, event *gateway.Event) error {
	sub, err := r.lookupSubscription(ctx, event)
	if err != nil || sub == nil {
		return err
	}

	if sub.Status != domain.SubscriptionPastDue {
		r.logger.Debug("subscription payment confirmed",
			slog.String("event_id", event.ID),
			slog.String("subscription_id", sub.ID.String()),
			slog.String("status", sub.Status))
		return nil
	}

	sub.Status = domain.SubscriptionActive
	if err := r.subs.Update(ctx, sub); err != nil {
		return fmt.Errorf("failed to restore subscription: %w", err)
	}

	r.logger.Info("subscription restored to active",
		slog.String("event_id", event.ID),
		slog.String("subscription_id", sub.ID.String()))

	return nil
}

// handleSubscriptionPaymentFailed moves the subscription to past_due.
// Canceled subscriptions stay canceled.
func (r *Reconciler) handleSubscriptionPaymentFailed(ctx context.Context, event *gateway.Event) error {
	sub, err := r.lookupSubscription(ctx, event)
	if err != nil || sub == nil {
		return err
	}

	if sub.IsTerminal() || sub.Status == domain.SubscriptionPastDue {
		return nil
	}

	sub.Status = domain.SubscriptionPastDue
	if err := r.subs.Update(ctx, sub); err != nil {
		return fmt.Errorf("failed to mark subscription past due: %w", err)
	}

	r.logger.Warn("subscription marked past due",
		slog.String("event_id", event.ID),
		slog.String("subscription_id", sub.ID.String()),
		slog.String("reason", event.FailureReason))

	return nil
}

func (r *Reconciler) lookupSubscription(ctx context.Context, event *gateway.Event) (*domain.Subscription, error) {
	if event.SubscriptionID == "" {
		r.logger.Warn("subscription event without subscription id",
			slog.String("event_id", event.ID),
			slog.String("event_type", event.RawType))
		return nil, nil
	}

	sub, err := r.subs.GetByGatewayID(ctx, event.SubscriptionID)
	if err != nil {
		if errors.Is(err, domain.ErrSubscriptionNotFound) {
			r.logger.Warn("subscription event for unknown subscription",
				slog.String("event_id", event.ID),
				slog.String("gateway_subscription_id", event.SubscriptionID))
			return nil, nil
		}
		return nil, fmt.Errorf("failed to resolve subscription: %w", err)
	}

	return sub, nil
}
