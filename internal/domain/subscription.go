package domain

import (
	"context"
	"time"

	"github.com/google/uuid"
)

// Subscription statuses. The lifecycle runs
// trialing -> active -> past_due -> canceled, with active -> canceled
// reachable directly on immediate cancel.
const (
	SubscriptionTrialing = "trialing"
	SubscriptionActive   = "active"
	SubscriptionPastDue  = "past_due"
	SubscriptionCanceled = "canceled"
)

// Subscription domain errors.
var (
	ErrSubscriptionNotFound = &Error{Code: ENOTFOUND, Message: "Subscription not found"}
	ErrSubscriptionExists   = &Error{Code: ECONFLICT, Message: "Organization already has an active subscription"}
	ErrSubscriptionCanceled = &Error{Code: ECONFLICT, Message: "Subscription is already canceled"}
	ErrSamePlanChange       = &Error{Code: EINVALID, Message: "Subscription is already on the requested plan"}
	ErrPlanNotSubscribable  = &Error{Code: EINVALID, Message: "Plan is not a subscription plan"}
)

// Subscription ties an organization to a plan for a billing period.
// At most one non-canceled subscription exists per organization.
type Subscription struct {
	ID                    uuid.UUID
	OrganizationID        uuid.UUID
	PlanID                uuid.UUID
	Status                string
	CurrentPeriodStart    time.Time
	CurrentPeriodEnd      time.Time
	CancelAtPeriodEnd     bool
	TrialEndsAt           *time.Time
	GatewaySubscriptionID string // remote subscription reference, may be empty
	CreatedAt             time.Time
	UpdatedAt             time.Time
}

// IsTerminal reports whether the subscription has reached its final state.
func (s *Subscription) IsTerminal() bool {
	return s.Status == SubscriptionCanceled
}

// InTrial reports whether the subscription is still inside its trial window.
func (s *Subscription) InTrial(now time.Time) bool {
	return s.Status == SubscriptionTrialing && s.TrialEndsAt != nil && now.Before(*s.TrialEndsAt)
}

// CreateSubscriptionParams contains parameters for starting a subscription.
type CreateSubscriptionParams struct {
	OrganizationID  uuid.UUID
	PlanID          uuid.UUID
	PaymentMethodID uuid.UUID
	TrialDays       int

	// BillingEmail identifies the customer on the gateway side.
	BillingEmail string
}

// ChangePlanParams contains parameters for an upgrade or downgrade.
type ChangePlanParams struct {
	SubscriptionID uuid.UUID
	OrganizationID uuid.UUID
	NewPlanID      uuid.UUID
}

// CancelSubscriptionParams contains parameters for canceling.
type CancelSubscriptionParams struct {
	SubscriptionID    uuid.UUID
	OrganizationID    uuid.UUID
	CancelAtPeriodEnd bool
}

// SubscriptionStore persists subscriptions.
type SubscriptionStore interface {
	Create(ctx context.Context, sub *Subscription) error
	GetByID(ctx context.Context, id uuid.UUID) (*Subscription, error)
	GetActiveByOrganization(ctx context.Context, organizationID uuid.UUID) (*Subscription, error)
	GetByGatewayID(ctx context.Context, gatewaySubscriptionID string) (*Subscription, error)
	Update(ctx context.Context, sub *Subscription) error

	// ListExpiringWithin returns non-canceled subscriptions whose current
	// period ends within the window. Used by the renewal sweep.
	ListExpiringWithin(ctx context.Context, window time.Duration) ([]Subscription, error)
}

// SubscriptionService drives the subscription lifecycle.
type SubscriptionService interface {
	// CreateSubscription starts a subscription for the organization.
	// With trialDays > 0 the subscription starts trialing and nothing is
	// charged; otherwise it starts active and the first period invoice is
	// created and charged immediately.
	CreateSubscription(ctx context.Context, params CreateSubscriptionParams) (*Subscription, error)

	// GetSubscription retrieves the organization's current subscription.
	GetSubscription(ctx context.Context, organizationID uuid.UUID) (*Subscription, error)

	// ChangePlan moves the subscription to a different plan. Upgrades
	// charge a prorated difference immediately; downgrades take effect at
	// the next renewal with no refund.
	ChangePlan(ctx context.Context, params ChangePlanParams) (*Subscription, error)

	// CancelSubscription cancels. With cancelAtPeriodEnd the subscription
	// stays active until the period ends; otherwise it is canceled
	// immediately and the remote subscription is canceled too.
	CancelSubscription(ctx context.Context, params CancelSubscriptionParams) (*Subscription, error)

	// ProcessDueRenewals sweeps subscriptions expiring within the window
	// and renews, converts from trial, or finalizes pending cancels.
	// One subscription's failure never aborts the rest; the number of
	// successfully processed subscriptions is returned.
	ProcessDueRenewals(ctx context.Context, window time.Duration) (int, error)
}
