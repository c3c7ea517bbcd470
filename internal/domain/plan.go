package domain

import (
	"context"
	"time"

	"github.com/google/uuid"
)

// Plan kinds.
const (
	PlanKindSubscription = "subscription"
	PlanKindTokenPack    = "token_pack"
)

// Billing cycles.
const (
	BillingCycleMonthly = "monthly"
	BillingCycleYearly  = "yearly"
	BillingCycleOneTime = "one_time"
)

// Plan-related domain errors.
var (
	ErrPlanNotFound   = &Error{Code: ENOTFOUND, Message: "Plan not found"}
	ErrPlanInactive   = &Error{Code: EGONE, Message: "Plan is no longer offered"}
	ErrDuplicatePlan  = &Error{Code: ECONFLICT, Message: "Plan name already exists"}
	ErrPlanKindChange = &Error{Code: EINVALID, Message: "Plan kind cannot be changed after creation"}
)

// Plan is a purchasable offering. Subscription plans carry entitlement
// limits and a recurring cycle; token packs are one-time purchases that
// grant a fixed token amount.
type Plan struct {
	ID             uuid.UUID
	Name           string
	Description    string
	Kind           string // "subscription", "token_pack"
	PriceCents     int64  // minor units, never floats
	Currency       string // ISO 4217, e.g. "usd"
	BillingCycle   string // "monthly", "yearly", "one_time"
	MaxStylists    *int32 // nil = unlimited
	MaxClients     *int32 // nil = unlimited
	MonthlyTokens  *int32 // subscription plans only
	TokenAmount    *int32 // token packs only
	GatewayPriceID string // provider-side price reference, may be empty
	SortOrder      int32
	IsActive       bool
	CreatedAt      time.Time
	UpdatedAt      time.Time
}

// IsSubscription reports whether the plan bills on a recurring cycle.
func (p *Plan) IsSubscription() bool {
	return p.Kind == PlanKindSubscription
}

// CreatePlanParams contains parameters for creating a plan.
type CreatePlanParams struct {
	Name           string
	Description    string
	Kind           string
	PriceCents     int64
	Currency       string
	BillingCycle   string
	MaxStylists    *int32
	MaxClients     *int32
	MonthlyTokens  *int32
	TokenAmount    *int32
	GatewayPriceID string
	SortOrder      int32
}

// UpdatePlanParams contains parameters for updating a plan.
// Nil pointer fields are left unchanged.
type UpdatePlanParams struct {
	Name           *string
	Description    *string
	PriceCents     *int64
	MaxStylists    *int32
	MaxClients     *int32
	MonthlyTokens  *int32
	TokenAmount    *int32
	GatewayPriceID *string
	SortOrder      *int32
	IsActive       *bool
}

// PlanStore persists plans.
type PlanStore interface {
	Create(ctx context.Context, plan *Plan) error
	GetByID(ctx context.Context, id uuid.UUID) (*Plan, error)
	GetByName(ctx context.Context, name string) (*Plan, error)
	List(ctx context.Context, includeInactive bool) ([]Plan, error)
	ListActiveByKind(ctx context.Context, kind string) ([]Plan, error)
	Update(ctx context.Context, plan *Plan) error
}

// CatalogService manages the plan catalog.
type CatalogService interface {
	// CreatePlan adds a new plan to the catalog.
	CreatePlan(ctx context.Context, params CreatePlanParams) (*Plan, error)

	// GetPlan retrieves a plan by ID. Inactive plans are still returned
	// so existing subscribers can resolve their plan.
	GetPlan(ctx context.Context, id uuid.UUID) (*Plan, error)

	// ListPlans returns plans ordered by sort order. When includeInactive
	// is false only purchasable plans are returned.
	ListPlans(ctx context.Context, includeInactive bool) ([]Plan, error)

	// ListPlansByKind returns active plans of one kind, ordered by sort
	// order.
	ListPlansByKind(ctx context.Context, kind string) ([]Plan, error)

	// UpdatePlan applies a partial update. Price or limit changes never
	// affect existing subscriptions until their next renewal.
	UpdatePlan(ctx context.Context, id uuid.UUID, params UpdatePlanParams) (*Plan, error)

	// RetirePlan marks a plan inactive. Existing subscriptions keep
	// running; new purchases are rejected.
	RetirePlan(ctx context.Context, id uuid.UUID) error

	// ReactivatePlan makes a retired plan purchasable again.
	ReactivatePlan(ctx context.Context, id uuid.UUID) error
}
