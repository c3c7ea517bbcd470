package postgres

import (
	"context"
	"errors"

	"github.com/google/uuid"
	"github.com/jackc/pgx/v5"
	"github.com/jackc/pgx/v5/pgxpool"
	"github.com/strandhq/billing/internal/domain"
)

// PaymentStore implements domain.PaymentStore using PostgreSQL.
type PaymentStore struct {
	db *pgxpool.Pool
}

var _ domain.PaymentStore = (*PaymentStore)(nil)

// NewPaymentStore creates a new PostgreSQL-backed payment history store.
func NewPaymentStore(db *pgxpool.Pool) *PaymentStore {
	return &PaymentStore{db: db}
}

const paymentColumns = `id, organization_id, invoice_id, payment_method_id,
	amount_cents, currency, status, failure_reason, gateway_charge_id, created_at, updated_at`

func scanPayment(row pgx.Row) (*domain.Payment, error) {
	var p domain.Payment
	err := row.Scan(
		&p.ID, &p.OrganizationID, &p.InvoiceID, &p.PaymentMethodID,
		&p.AmountCents, &p.Currency, &p.Status, &p.FailureReason, &p.GatewayChargeID,
		&p.CreatedAt, &p.UpdatedAt,
	)
	if err != nil {
		return nil, err
	}
	return &p, nil
}

// Create records one charge attempt.
func (s *PaymentStore) Create(ctx context.Context, payment *domain.Payment) error {
	row := s.db.QueryRow(ctx, `
		INSERT INTO payment_history (organization_id, invoice_id, payment_method_id,
			amount_cents, currency, status, failure_reason, gateway_charge_id)
		VALUES ($1, $2, $3, $4, $5, $6, $7, $8)
		RETURNING id, created_at, updated_at`,
		payment.OrganizationID, payment.InvoiceID, payment.PaymentMethodID,
		payment.AmountCents, payment.Currency, payment.Status, payment.FailureReason, payment.GatewayChargeID,
	)
	if err := row.Scan(&payment.ID, &payment.CreatedAt, &payment.UpdatedAt); err != nil {
		return domain.Internal(err, "payment.create", "failed to insert payment record")
	}
	return nil
}

// GetByID retrieves a payment record.
func (s *PaymentStore) GetByID(ctx context.Context, id uuid.UUID) (*domain.Payment, error) {
	payment, err := scanPayment(s.db.QueryRow(ctx,
		`SELECT `+paymentColumns+` FROM payment_history WHERE id = $1`, id))
	if err != nil {
		if errors.Is(err, pgx.ErrNoRows) {
			return nil, domain.NotFound("payment.get", "payment", id.String())
		}
		return nil, domain.Internal(err, "payment.get", "failed to get payment")
	}
	return payment, nil
}

// ListByInvoice returns all charge attempts for an invoice, oldest first.
func (s *PaymentStore) ListByInvoice(ctx context.Context, invoiceID uuid.UUID) ([]domain.Payment, error) {
	rows, err := s.db.Query(ctx,
		`SELECT `+paymentColumns+` FROM payment_history
		 WHERE invoice_id = $1 ORDER BY created_at`,
		invoiceID,
	)
	if err != nil {
		return nil, domain.Internal(err, "payment.list_by_invoice", "failed to list payments")
	}
	defer rows.Close()
	return collectPayments(rows, "payment.list_by_invoice")
}

// ListByOrganization returns the organization's payments, newest first.
func (s *PaymentStore) ListByOrganization(ctx context.Context, organizationID uuid.UUID, limit, offset int32) ([]domain.Payment, error) {
	rows, err := s.db.Query(ctx,
		`SELECT `+paymentColumns+` FROM payment_history
		 WHERE organization_id = $1
		 ORDER BY created_at DESC
		 LIMIT $2 OFFSET $3`,
		organizationID, limit, offset,
	)
	if err != nil {
		return nil, domain.Internal(err, "payment.list_by_org", "failed to list payments")
	}
	defer rows.Close()
	return collectPayments(rows, "payment.list_by_org")
}

// ListByGatewayChargeID returns the attempts recorded for a charge id.
func (s *PaymentStore) ListByGatewayChargeID(ctx context.Context, chargeID string) ([]domain.Payment, error) {
	rows, err := s.db.Query(ctx,
		`SELECT `+paymentColumns+` FROM payment_history
		 WHERE gateway_charge_id = $1 AND gateway_charge_id <> ''
		 ORDER BY created_at`,
		chargeID,
	)
	if err != nil {
		return nil, domain.Internal(err, "payment.list_by_charge", "failed to list payments by charge id")
	}
	defer rows.Close()
	return collectPayments(rows, "payment.list_by_charge")
}

func collectPayments(rows pgx.Rows, op string) ([]domain.Payment, error) {
	var payments []domain.Payment
	for rows.Next() {
		payment, err := scanPayment(rows)
		if err != nil {
			return nil, domain.Internal(err, op, "failed to scan payment")
		}
		payments = append(payments, *payment)
	}
	if err := rows.Err(); err != nil {
		return nil, domain.Internal(err, op, "failed to iterate payments")
	}
	return payments, nil
}
