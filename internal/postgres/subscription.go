package postgres

import (
	"context"
	"errors"
	"time"

	"github.com/google/uuid"
	"github.com/jackc/pgx/v5"
	"github.com/jackc/pgx/v5/pgxpool"
	"github.com/strandhq/billing/internal/domain"
)

// SubscriptionStore implements domain.SubscriptionStore using PostgreSQL.
type SubscriptionStore struct {
	db *pgxpool.Pool
}

var _ domain.SubscriptionStore = (*SubscriptionStore)(nil)

// NewSubscriptionStore creates a new PostgreSQL-backed subscription store.
func NewSubscriptionStore(db *pgxpool.Pool) *SubscriptionStore {
	return &SubscriptionStore{db: db}
}

const subscriptionColumns = `id, organization_id, plan_id, status,
	current_period_start, current_period_end, cancel_at_period_end,
	trial_ends_at, gateway_subscription_id, created_at, updated_at`

func scanSubscription(row pgx.Row) (*domain.Subscription, error) {
	var sub domain.Subscription
	err := row.Scan(
		&sub.ID, &sub.OrganizationID, &sub.PlanID, &sub.Status,
		&sub.CurrentPeriodStart, &sub.CurrentPeriodEnd, &sub.CancelAtPeriodEnd,
		&sub.TrialEndsAt, &sub.GatewaySubscriptionID, &sub.CreatedAt, &sub.UpdatedAt,
	)
	if err != nil {
		return nil, err
	}
	return &sub, nil
}

// Create inserts a subscription. The partial unique index rejects a
// second non-canceled subscription for the organization.
func (s *SubscriptionStore) Create(ctx context.Context, sub *domain.Subscription) error {
	row := s.db.QueryRow(ctx, `
		INSERT INTO subscriptions (organization_id, plan_id, status,
			current_period_start, current_period_end, cancel_at_period_end,
			trial_ends_at, gateway_subscription_id)
		VALUES ($1, $2, $3, $4, $5, $6, $7, $8)
		RETURNING id, created_at, updated_at`,
		sub.OrganizationID, sub.PlanID, sub.Status,
		sub.CurrentPeriodStart, sub.CurrentPeriodEnd, sub.CancelAtPeriodEnd,
		sub.TrialEndsAt, sub.GatewaySubscriptionID,
	)
	if err := row.Scan(&sub.ID, &sub.CreatedAt, &sub.UpdatedAt); err != nil {
		if isUniqueViolation(err, "idx_subscriptions_one_live") {
			return domain.ErrSubscriptionExists
		}
		return domain.Internal(err, "subscription.create", "failed to insert subscription")
	}
	return nil
}

// GetByID retrieves a subscription.
func (s *SubscriptionStore) GetByID(ctx context.Context, id uuid.UUID) (*domain.Subscription, error) {
	sub, err := scanSubscription(s.db.QueryRow(ctx,
		`SELECT `+subscriptionColumns+` FROM subscriptions WHERE id = $1`, id))
	if err != nil {
		if errors.Is(err, pgx.ErrNoRows) {
			return nil, domain.ErrSubscriptionNotFound
		}
		return nil, domain.Internal(err, "subscription.get", "failed to get subscription")
	}
	return sub, nil
}

// GetActiveByOrganization returns the organization's non-canceled
// subscription, if any.
func (s *SubscriptionStore) GetActiveByOrganization(ctx context.Context, organizationID uuid.UUID) (*domain.Subscription, error) {
	sub, err := scanSubscription(s.db.QueryRow(ctx,
		`SELECT `+subscriptionColumns+` FROM subscriptions
		 WHERE organization_id = $1 AND status <> 'canceled'`,
		organizationID,
	))
	if err != nil {
		if errors.Is(err, pgx.ErrNoRows) {
			return nil, domain.ErrSubscriptionNotFound
		}
		return nil, domain.Internal(err, "subscription.get_active", "failed to get active subscription")
	}
	return sub, nil
}

// GetByGatewayID resolves a subscription from its remote id.
func (s *SubscriptionStore) GetByGatewayID(ctx context.Context, gatewaySubscriptionID string) (*domain.Subscription, error) {
	sub, err := scanSubscription(s.db.QueryRow(ctx,
		`SELECT `+subscriptionColumns+` FROM subscriptions
		 WHERE gateway_subscription_id = $1 AND gateway_subscription_id <> ''`,
		gatewaySubscriptionID,
	))
	if err != nil {
		if errors.Is(err, pgx.ErrNoRows) {
			return nil, domain.ErrSubscriptionNotFound
		}
		return nil, domain.Internal(err, "subscription.get_by_gateway_id", "failed to get subscription by gateway id")
	}
	return sub, nil
}

// Update rewrites the mutable subscription fields.
func (s *SubscriptionStore) Update(ctx context.Context, sub *domain.Subscription) error {
	tag, err := s.db.Exec(ctx, `
		UPDATE subscriptions
		SET plan_id = $2, status = $3, current_period_start = $4, current_period_end = $5,
			cancel_at_period_end = $6, trial_ends_at = $7, gateway_subscription_id = $8,
			updated_at = now()
		WHERE id = $1`,
		sub.ID, sub.PlanID, sub.Status, sub.CurrentPeriodStart, sub.CurrentPeriodEnd,
		sub.CancelAtPeriodEnd, sub.TrialEndsAt, sub.GatewaySubscriptionID,
	)
	if err != nil {
		return domain.Internal(err, "subscription.update", "failed to update subscription")
	}
	if tag.RowsAffected() == 0 {
		return domain.ErrSubscriptionNotFound
	}
	return nil
}

// ListExpiringWithin returns non-canceled subscriptions whose period
// ends inside the window, oldest expiry first.
func (s *SubscriptionStore) ListExpiringWithin(ctx context.Context, window time.Duration) ([]domain.Subscription, error) {
	rows, err := s.db.Query(ctx,
		`SELECT `+subscriptionColumns+` FROM subscriptions
		 WHERE status <> 'canceled' AND current_period_end <= $1
		 ORDER BY current_period_end`,
		time.Now().Add(window),
	)
	if err != nil {
		return nil, domain.Internal(err, "subscription.list_expiring", "failed to list expiring subscriptions")
	}
	defer rows.Close()

	var subs []domain.Subscription
	for rows.Next() {
		sub, err := scanSubscription(rows)
		if err != nil {
			return nil, domain.Internal(err, "subscription.list_expiring", "failed to scan subscription")
		}
		subs = append(subs, *sub)
	}
	if err := rows.Err(); err != nil {
		return nil, domain.Internal(err, "subscription.list_expiring", "failed to iterate subscriptions")
	}
	return subs, nil
}
