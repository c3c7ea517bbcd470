package postgres

import (
	"context"
	"errors"

	"github.com/google/uuid"
	"github.com/jackc/pgx/v5"
	"github.com/jackc/pgx/v5/pgxpool"
	"github.com/strandhq/billing/internal/domain"
)

// PlanStore implements domain.PlanStore using PostgreSQL.
type PlanStore struct {
	db *pgxpool.Pool
}

// Compile-time check that PlanStore implements domain.PlanStore.
var _ domain.PlanStore = (*PlanStore)(nil)

// NewPlanStore creates a new PostgreSQL-backed plan store.
func NewPlanStore(db *pgxpool.Pool) *PlanStore {
	return &PlanStore{db: db}
}

const planColumns = `id, name, description, kind, price_cents, currency, billing_cycle,
	max_stylists, max_clients, monthly_tokens, token_amount,
	gateway_price_id, sort_order, is_active, created_at, updated_at`

func scanPlan(row pgx.Row) (*domain.Plan, error) {
	var p domain.Plan
	err := row.Scan(
		&p.ID, &p.Name, &p.Description, &p.Kind, &p.PriceCents, &p.Currency, &p.BillingCycle,
		&p.MaxStylists, &p.MaxClients, &p.MonthlyTokens, &p.TokenAmount,
		&p.GatewayPriceID, &p.SortOrder, &p.IsActive, &p.CreatedAt, &p.UpdatedAt,
	)
	if err != nil {
		return nil, err
	}
	return &p, nil
}

// Create inserts a new plan and fills in generated fields.
func (s *PlanStore) Create(ctx context.Context, plan *domain.Plan) error {
	row := s.db.QueryRow(ctx, `
		INSERT INTO plans (name, description, kind, price_cents, currency, billing_cycle,
			max_stylists, max_clients, monthly_tokens, token_amount,
			gateway_price_id, sort_order, is_active)
		VALUES ($1, $2, $3, $4, $5, $6, $7, $8, $9, $10, $11, $12, $13)
		RETURNING id, created_at, updated_at`,
		plan.Name, plan.Description, plan.Kind, plan.PriceCents, plan.Currency, plan.BillingCycle,
		plan.MaxStylists, plan.MaxClients, plan.MonthlyTokens, plan.TokenAmount,
		plan.GatewayPriceID, plan.SortOrder, plan.IsActive,
	)

	if err := row.Scan(&plan.ID, &plan.CreatedAt, &plan.UpdatedAt); err != nil {
		if isUniqueViolation(err, "") {
			return domain.ErrDuplicatePlan
		}
		return domain.Internal(err, "plan.create", "failed to insert plan")
	}
	return nil
}

// GetByID retrieves a plan, active or not.
func (s *PlanStore) GetByID(ctx context.Context, id uuid.UUID) (*domain.Plan, error) {
	plan, err := scanPlan(s.db.QueryRow(ctx,
		`SELECT `+planColumns+` FROM plans WHERE id = $1`, id))
	if err != nil {
		if errors.Is(err, pgx.ErrNoRows) {
			return nil, domain.ErrPlanNotFound
		}
		return nil, domain.Internal(err, "plan.get", "failed to get plan")
	}
	return plan, nil
}

// GetByName retrieves a plan by its unique name.
func (s *PlanStore) GetByName(ctx context.Context, name string) (*domain.Plan, error) {
	plan, err := scanPlan(s.db.QueryRow(ctx,
		`SELECT `+planColumns+` FROM plans WHERE name = $1`, name))
	if err != nil {
		if errors.Is(err, pgx.ErrNoRows) {
			return nil, domain.ErrPlanNotFound
		}
		return nil, domain.Internal(err, "plan.get_by_name", "failed to get plan by name")
	}
	return plan, nil
}

// List returns plans ordered by sort order then name.
func (s *PlanStore) List(ctx context.Context, includeInactive bool) ([]domain.Plan, error) {
	query := `SELECT ` + planColumns + ` FROM plans`
	if !includeInactive {
		query += ` WHERE is_active`
	}
	query += ` ORDER BY sort_order, name`

	rows, err := s.db.Query(ctx, query)
	if err != nil {
		return nil, domain.Internal(err, "plan.list", "failed to list plans")
	}
	defer rows.Close()

	var plans []domain.Plan
	for rows.Next() {
		plan, err := scanPlan(rows)
		if err != nil {
			return nil, domain.Internal(err, "plan.list", "failed to scan plan")
		}
		plans = append(plans, *plan)
	}
	if err := rows.Err(); err != nil {
		return nil, domain.Internal(err, "plan.list", "failed to iterate plans")
	}
	return plans, nil
}

// ListActiveByKind returns active plans of the given kind ordered by
// sort order then name.
func (s *PlanStore) ListActiveByKind(ctx context.Context, kind string) ([]domain.Plan, error) {
	rows, err := s.db.Query(ctx,
		`SELECT `+planColumns+` FROM plans WHERE is_active AND kind = $1 ORDER BY sort_order, name`,
		kind)
	if err != nil {
		return nil, domain.Internal(err, "plan.list_by_kind", "failed to list plans by kind")
	}
	defer rows.Close()

	var plans []domain.Plan
	for rows.Next() {
		plan, err := scanPlan(rows)
		if err != nil {
			return nil, domain.Internal(err, "plan.list_by_kind", "failed to scan plan")
		}
		plans = append(plans, *plan)
	}
	if err := rows.Err(); err != nil {
		return nil, domain.Internal(err, "plan.list_by_kind", "failed to iterate plans")
	}
	return plans, nil
}

// Update rewrites the mutable plan fields.
func (s *PlanStore) Update(ctx context.Context, plan *domain.Plan) error {
	tag, err := s.db.Exec(ctx, `
		UPDATE plans
		SET name = $2, description = $3, price_cents = $4,
			max_stylists = $5, max_clients = $6, monthly_tokens = $7, token_amount = $8,
			gateway_price_id = $9, sort_order = $10, is_active = $11, updated_at = now()
		WHERE id = $1`,
		plan.ID, plan.Name, plan.Description, plan.PriceCents,
		plan.MaxStylists, plan.MaxClients, plan.MonthlyTokens, plan.TokenAmount,
		plan.GatewayPriceID, plan.SortOrder, plan.IsActive,
	)
	if err != nil {
		if isUniqueViolation(err, "") {
			return domain.ErrDuplicatePlan
		}
		return domain.Internal(err, "plan.update", "failed to update plan")
	}
	if tag.RowsAffected() == 0 {
		return domain.ErrPlanNotFound
	}
	return nil
}
