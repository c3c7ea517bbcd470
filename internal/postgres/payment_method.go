package postgres

import (
	"context"
	"errors"

	"github.com/google/uuid"
	"github.com/jackc/pgx/v5"
	"github.com/jackc/pgx/v5/pgxpool"
	"github.com/strandhq/billing/internal/domain"
)

// PaymentMethodStore implements domain.PaymentMethodStore using PostgreSQL.
//
// The single-default invariant is maintained transactionally: every
// mutation that can change which method is default clears and sets the
// flag inside one transaction, with the partial unique index as a
// backstop.
type PaymentMethodStore struct {
	db *pgxpool.Pool
}

var _ domain.PaymentMethodStore = (*PaymentMethodStore)(nil)

// NewPaymentMethodStore creates a new PostgreSQL-backed payment method store.
func NewPaymentMethodStore(db *pgxpool.Pool) *PaymentMethodStore {
	return &PaymentMethodStore{db: db}
}

const paymentMethodColumns = `id, organization_id, method_type, brand, last4,
	exp_month, exp_year, is_default, gateway_token, created_at, updated_at`

func scanPaymentMethod(row pgx.Row) (*domain.PaymentMethod, error) {
	var m domain.PaymentMethod
	err := row.Scan(
		&m.ID, &m.OrganizationID, &m.MethodType, &m.Brand, &m.Last4,
		&m.ExpMonth, &m.ExpYear, &m.IsDefault, &m.GatewayToken, &m.CreatedAt, &m.UpdatedAt,
	)
	if err != nil {
		return nil, err
	}
	return &m, nil
}

// Create inserts the method. When the method is to become the default,
// the previous default is cleared in the same transaction.
func (s *PaymentMethodStore) Create(ctx context.Context, method *domain.PaymentMethod) error {
	tx, err := s.db.Begin(ctx)
	if err != nil {
		return domain.Internal(err, "paymentmethod.create", "failed to begin transaction")
	}
	defer tx.Rollback(ctx)

	if method.IsDefault {
		if _, err := tx.Exec(ctx,
			`UPDATE payment_methods SET is_default = FALSE, updated_at = now()
			 WHERE organization_id = $1 AND is_default`,
			method.OrganizationID,
		); err != nil {
			return domain.Internal(err, "paymentmethod.create", "failed to clear previous default")
		}
	}

	row := tx.QueryRow(ctx, `
		INSERT INTO payment_methods (organization_id, method_type, brand, last4,
			exp_month, exp_year, is_default, gateway_token)
		VALUES ($1, $2, $3, $4, $5, $6, $7, $8)
		RETURNING id, created_at, updated_at`,
		method.OrganizationID, method.MethodType, method.Brand, method.Last4,
		method.ExpMonth, method.ExpYear, method.IsDefault, method.GatewayToken,
	)
	if err := row.Scan(&method.ID, &method.CreatedAt, &method.UpdatedAt); err != nil {
		return domain.Internal(err, "paymentmethod.create", "failed to insert payment method")
	}

	if err := tx.Commit(ctx); err != nil {
		return domain.Internal(err, "paymentmethod.create", "failed to commit")
	}
	return nil
}

// GetByID retrieves a payment method.
func (s *PaymentMethodStore) GetByID(ctx context.Context, id uuid.UUID) (*domain.PaymentMethod, error) {
	method, err := scanPaymentMethod(s.db.QueryRow(ctx,
		`SELECT `+paymentMethodColumns+` FROM payment_methods WHERE id = $1`, id))
	if err != nil {
		if errors.Is(err, pgx.ErrNoRows) {
			return nil, domain.ErrPaymentMethodNotFound
		}
		return nil, domain.Internal(err, "paymentmethod.get", "failed to get payment method")
	}
	return method, nil
}

// ListByOrganization returns the organization's methods, default first
// then oldest first.
func (s *PaymentMethodStore) ListByOrganization(ctx context.Context, organizationID uuid.UUID) ([]domain.PaymentMethod, error) {
	rows, err := s.db.Query(ctx,
		`SELECT `+paymentMethodColumns+` FROM payment_methods
		 WHERE organization_id = $1
		 ORDER BY is_default DESC, created_at`,
		organizationID,
	)
	if err != nil {
		return nil, domain.Internal(err, "paymentmethod.list", "failed to list payment methods")
	}
	defer rows.Close()

	var methods []domain.PaymentMethod
	for rows.Next() {
		method, err := scanPaymentMethod(rows)
		if err != nil {
			return nil, domain.Internal(err, "paymentmethod.list", "failed to scan payment method")
		}
		methods = append(methods, *method)
	}
	if err := rows.Err(); err != nil {
		return nil, domain.Internal(err, "paymentmethod.list", "failed to iterate payment methods")
	}
	return methods, nil
}

// GetDefault returns the organization's default method, or
// ErrNoDefaultPaymentMethod when none exists.
func (s *PaymentMethodStore) GetDefault(ctx context.Context, organizationID uuid.UUID) (*domain.PaymentMethod, error) {
	method, err := scanPaymentMethod(s.db.QueryRow(ctx,
		`SELECT `+paymentMethodColumns+` FROM payment_methods
		 WHERE organization_id = $1 AND is_default`,
		organizationID,
	))
	if err != nil {
		if errors.Is(err, pgx.ErrNoRows) {
			return nil, domain.ErrNoDefaultPaymentMethod
		}
		return nil, domain.Internal(err, "paymentmethod.get_default", "failed to get default payment method")
	}
	return method, nil
}

// SetDefault atomically clears the previous default and marks the
// given method.
func (s *PaymentMethodStore) SetDefault(ctx context.Context, id, organizationID uuid.UUID) error {
	tx, err := s.db.Begin(ctx)
	if err != nil {
		return domain.Internal(err, "paymentmethod.set_default", "failed to begin transaction")
	}
	defer tx.Rollback(ctx)

	if _, err := tx.Exec(ctx,
		`UPDATE payment_methods SET is_default = FALSE, updated_at = now()
		 WHERE organization_id = $1 AND is_default AND id <> $2`,
		organizationID, id,
	); err != nil {
		return domain.Internal(err, "paymentmethod.set_default", "failed to clear previous default")
	}

	tag, err := tx.Exec(ctx,
		`UPDATE payment_methods SET is_default = TRUE, updated_at = now()
		 WHERE id = $1 AND organization_id = $2`,
		id, organizationID,
	)
	if err != nil {
		return domain.Internal(err, "paymentmethod.set_default", "failed to set default")
	}
	if tag.RowsAffected() == 0 {
		return domain.ErrPaymentMethodNotFound
	}

	if err := tx.Commit(ctx); err != nil {
		return domain.Internal(err, "paymentmethod.set_default", "failed to commit")
	}
	return nil
}

// Delete removes the method. Deleting the default promotes the oldest
// remaining method in the same transaction.
func (s *PaymentMethodStore) Delete(ctx context.Context, id, organizationID uuid.UUID) error {
	tx, err := s.db.Begin(ctx)
	if err != nil {
		return domain.Internal(err, "paymentmethod.delete", "failed to begin transaction")
	}
	defer tx.Rollback(ctx)

	var wasDefault bool
	err = tx.QueryRow(ctx,
		`DELETE FROM payment_methods WHERE id = $1 AND organization_id = $2 RETURNING is_default`,
		id, organizationID,
	).Scan(&wasDefault)
	if err != nil {
		if errors.Is(err, pgx.ErrNoRows) {
			return domain.ErrPaymentMethodNotFound
		}
		return domain.Internal(err, "paymentmethod.delete", "failed to delete payment method")
	}

	if wasDefault {
		if _, err := tx.Exec(ctx, `
			UPDATE payment_methods SET is_default = TRUE, updated_at = now()
			WHERE id = (
				SELECT id FROM payment_methods
				WHERE organization_id = $1
				ORDER BY created_at
				LIMIT 1
			)`,
			organizationID,
		); err != nil {
			return domain.Internal(err, "paymentmethod.delete", "failed to promote replacement default")
		}
	}

	if err := tx.Commit(ctx); err != nil {
		return domain.Internal(err, "paymentmethod.delete", "failed to commit")
	}
	return nil
}
