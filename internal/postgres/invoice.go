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

// InvoiceStore implements domain.InvoiceStore using PostgreSQL.
//
// The gateway charge id carries a partial unique index and every
// status transition is a conditional update, so concurrent
// reconciliation of the same charge is idempotent and a paid invoice
// is never reverted.
type InvoiceStore struct {
	db *pgxpool.Pool
}

var _ domain.InvoiceStore = (*InvoiceStore)(nil)

// NewInvoiceStore creates a new PostgreSQL-backed invoice store.
func NewInvoiceStore(db *pgxpool.Pool) *InvoiceStore {
	return &InvoiceStore{db: db}
}

const invoiceColumns = `id, organization_id, subscription_id, type, status, line_items,
	subtotal_cents, tax_cents, total_cents, currency, issue_date, due_date,
	paid_at, period_start, period_end, gateway_charge_id, created_at, updated_at`

func scanInvoice(row pgx.Row) (*domain.Invoice, error) {
	var inv domain.Invoice
	err := row.Scan(
		&inv.ID, &inv.OrganizationID, &inv.SubscriptionID, &inv.Type, &inv.Status, &inv.LineItems,
		&inv.SubtotalCents, &inv.TaxCents, &inv.TotalCents, &inv.Currency, &inv.IssueDate, &inv.DueDate,
		&inv.PaidAt, &inv.PeriodStart, &inv.PeriodEnd, &inv.GatewayChargeID, &inv.CreatedAt, &inv.UpdatedAt,
	)
	if err != nil {
		return nil, err
	}
	return &inv, nil
}

// Create appends a new invoice row.
func (s *InvoiceStore) Create(ctx context.Context, invoice *domain.Invoice) error {
	row := s.db.QueryRow(ctx, `
		INSERT INTO invoices (organization_id, subscription_id, type, status, line_items,
			subtotal_cents, tax_cents, total_cents, currency, issue_date, due_date,
			period_start, period_end, gateway_charge_id)
		VALUES ($1, $2, $3, $4, $5, $6, $7, $8, $9, $10, $11, $12, $13, $14)
		RETURNING id, created_at, updated_at`,
		invoice.OrganizationID, invoice.SubscriptionID, invoice.Type, invoice.Status, invoice.LineItems,
		invoice.SubtotalCents, invoice.TaxCents, invoice.TotalCents, invoice.Currency,
		invoice.IssueDate, invoice.DueDate, invoice.PeriodStart, invoice.PeriodEnd, invoice.GatewayChargeID,
	)
	if err := row.Scan(&invoice.ID, &invoice.CreatedAt, &invoice.UpdatedAt); err != nil {
		if isUniqueViolation(err, "idx_invoices_gateway_charge_id") {
			return domain.ErrDuplicateChargeID
		}
		return domain.Internal(err, "invoice.create", "failed to insert invoice")
	}
	return nil
}

// GetByID retrieves an invoice.
func (s *InvoiceStore) GetByID(ctx context.Context, id uuid.UUID) (*domain.Invoice, error) {
	inv, err := scanInvoice(s.db.QueryRow(ctx,
		`SELECT `+invoiceColumns+` FROM invoices WHERE id = $1`, id))
	if err != nil {
		if errors.Is(err, pgx.ErrNoRows) {
			return nil, domain.ErrInvoiceNotFound
		}
		return nil, domain.Internal(err, "invoice.get", "failed to get invoice")
	}
	return inv, nil
}

// GetByGatewayChargeID is the idempotency lookup used by the reconciler.
func (s *InvoiceStore) GetByGatewayChargeID(ctx context.Context, chargeID string) (*domain.Invoice, error) {
	inv, err := scanInvoice(s.db.QueryRow(ctx,
		`SELECT `+invoiceColumns+` FROM invoices
		 WHERE gateway_charge_id = $1 AND gateway_charge_id <> ''`,
		chargeID,
	))
	if err != nil {
		if errors.Is(err, pgx.ErrNoRows) {
			return nil, domain.ErrChargeNotRecognized
		}
		return nil, domain.Internal(err, "invoice.get_by_charge", "failed to get invoice by charge id")
	}
	return inv, nil
}

// ListByOrganization returns invoices newest first.
func (s *InvoiceStore) ListByOrganization(ctx context.Context, organizationID uuid.UUID, limit, offset int32) ([]domain.Invoice, error) {
	rows, err := s.db.Query(ctx,
		`SELECT `+invoiceColumns+` FROM invoices
		 WHERE organization_id = $1
		 ORDER BY created_at DESC
		 LIMIT $2 OFFSET $3`,
		organizationID, limit, offset,
	)
	if err != nil {
		return nil, domain.Internal(err, "invoice.list", "failed to list invoices")
	}
	defer rows.Close()
	return collectInvoices(rows, "invoice.list")
}

// ListOverdue returns sent invoices past their due date.
func (s *InvoiceStore) ListOverdue(ctx context.Context, asOf time.Time) ([]domain.Invoice, error) {
	rows, err := s.db.Query(ctx,
		`SELECT `+invoiceColumns+` FROM invoices
		 WHERE status = 'sent' AND due_date < $1
		 ORDER BY due_date`,
		asOf,
	)
	if err != nil {
		return nil, domain.Internal(err, "invoice.list_overdue", "failed to list overdue invoices")
	}
	defer rows.Close()
	return collectInvoices(rows, "invoice.list_overdue")
}

// ListPendingByOrganization returns the organization's unpaid sent invoices.
func (s *InvoiceStore) ListPendingByOrganization(ctx context.Context, organizationID uuid.UUID) ([]domain.Invoice, error) {
	rows, err := s.db.Query(ctx,
		`SELECT `+invoiceColumns+` FROM invoices
		 WHERE organization_id = $1 AND status = 'sent'
		 ORDER BY due_date`,
		organizationID,
	)
	if err != nil {
		return nil, domain.Internal(err, "invoice.list_pending", "failed to list pending invoices")
	}
	defer rows.Close()
	return collectInvoices(rows, "invoice.list_pending")
}

func collectInvoices(rows pgx.Rows, op string) ([]domain.Invoice, error) {
	var invoices []domain.Invoice
	for rows.Next() {
		inv, err := scanInvoice(rows)
		if err != nil {
			return nil, domain.Internal(err, op, "failed to scan invoice")
		}
		invoices = append(invoices, *inv)
	}
	if err := rows.Err(); err != nil {
		return nil, domain.Internal(err, op, "failed to iterate invoices")
	}
	return invoices, nil
}

// SumTotals aggregates amounts for the summary endpoint. Overdue is a
// subset of pending, derived from the due date.
func (s *InvoiceStore) SumTotals(ctx context.Context, organizationID uuid.UUID, asOf time.Time) (*domain.InvoiceTotals, error) {
	var totals domain.InvoiceTotals
	err := s.db.QueryRow(ctx, `
		SELECT
			COALESCE(SUM(total_cents) FILTER (WHERE status = 'paid'), 0),
			COALESCE(SUM(total_cents) FILTER (WHERE status = 'sent'), 0),
			COALESCE(SUM(total_cents) FILTER (WHERE status = 'sent' AND due_date < $2), 0)
		FROM invoices
		WHERE organization_id = $1`,
		organizationID, asOf,
	).Scan(&totals.PaidCents, &totals.PendingCents, &totals.OverdueCents)
	if err != nil {
		return nil, domain.Internal(err, "invoice.sum_totals", "failed to sum invoice totals")
	}
	return &totals, nil
}

// RecordChargeAttempt records the external charge id and the pending
// payment row in one transaction. The charge id only becomes visible
// to the reconciler once both rows are committed.
func (s *InvoiceStore) RecordChargeAttempt(ctx context.Context, invoiceID uuid.UUID, chargeID string, payment *domain.Payment) error {
	tx, err := s.db.Begin(ctx)
	if err != nil {
		return domain.Internal(err, "invoice.record_attempt", "failed to begin transaction")
	}
	defer tx.Rollback(ctx)

	tag, err := tx.Exec(ctx, `
		UPDATE invoices
		SET gateway_charge_id = $2, status = 'sent', updated_at = now()
		WHERE id = $1 AND status = 'draft'`,
		invoiceID, chargeID,
	)
	if err != nil {
		if isUniqueViolation(err, "idx_invoices_gateway_charge_id") {
			return domain.ErrDuplicateChargeID
		}
		return domain.Internal(err, "invoice.record_attempt", "failed to record charge id")
	}
	if tag.RowsAffected() == 0 {
		return domain.ErrInvoiceNotMutable
	}

	row := tx.QueryRow(ctx, `
		INSERT INTO payment_history (organization_id, invoice_id, payment_method_id,
			amount_cents, currency, status, failure_reason, gateway_charge_id)
		VALUES ($1, $2, $3, $4, $5, $6, $7, $8)
		RETURNING id, created_at, updated_at`,
		payment.OrganizationID, payment.InvoiceID, payment.PaymentMethodID,
		payment.AmountCents, payment.Currency, payment.Status, payment.FailureReason, payment.GatewayChargeID,
	)
	if err := row.Scan(&payment.ID, &payment.CreatedAt, &payment.UpdatedAt); err != nil {
		return domain.Internal(err, "invoice.record_attempt", "failed to insert payment record")
	}

	if err := tx.Commit(ctx); err != nil {
		return domain.Internal(err, "invoice.record_attempt", "failed to commit")
	}
	return nil
}

// UpdateStatus transitions the invoice conditionally. Returns false
// when the invoice was already in the target status.
func (s *InvoiceStore) UpdateStatus(ctx context.Context, id uuid.UUID, status string, paidAt *time.Time) (bool, error) {
	tag, err := s.db.Exec(ctx, `
		UPDATE invoices
		SET status = $2, paid_at = COALESCE($3, paid_at), updated_at = now()
		WHERE id = $1 AND status <> $2`,
		id, status, paidAt,
	)
	if err != nil {
		return false, domain.Internal(err, "invoice.update_status", "failed to update invoice status")
	}
	return tag.RowsAffected() > 0, nil
}

// ApplyChargeSucceeded marks the invoice for the charge paid and its
// pending payment rows success, as one transaction. Both writers (the
// synchronous API path and the webhook reconciler) funnel through
// here, so the paid transition is monotonic: an already paid invoice
// returns false. Pending payment rows for the charge are settled
// either way, so whichever writer loses the race still leaves the
// invoice paired with a success row.
func (s *InvoiceStore) ApplyChargeSucceeded(ctx context.Context, chargeID string, paidAt time.Time) (bool, error) {
	tx, err := s.db.Begin(ctx)
	if err != nil {
		return false, domain.Internal(err, "invoice.apply_succeeded", "failed to begin transaction")
	}
	defer tx.Rollback(ctx)

	tag, err := tx.Exec(ctx, `
		UPDATE invoices
		SET status = 'paid', paid_at = $2, updated_at = now()
		WHERE gateway_charge_id = $1 AND gateway_charge_id <> '' AND status <> 'paid'`,
		chargeID, paidAt,
	)
	if err != nil {
		return false, domain.Internal(err, "invoice.apply_succeeded", "failed to mark invoice paid")
	}
	applied := tag.RowsAffected() > 0

	if _, err := tx.Exec(ctx, `
		UPDATE payment_history
		SET status = 'success', updated_at = now()
		WHERE gateway_charge_id = $1 AND status = 'pending'`,
		chargeID,
	); err != nil {
		return false, domain.Internal(err, "invoice.apply_succeeded", "failed to mark payment success")
	}

	if err := tx.Commit(ctx); err != nil {
		return false, domain.Internal(err, "invoice.apply_succeeded", "failed to commit")
	}
	return applied, nil
}

// ApplyChargeFailed records the failure reason on pending payment rows
// for the charge. Only pending rows change, so a failed event arriving
// after success never reverts anything.
func (s *InvoiceStore) ApplyChargeFailed(ctx context.Context, chargeID, reason string) (bool, error) {
	tag, err := s.db.Exec(ctx, `
		UPDATE payment_history
		SET status = 'failed', failure_reason = $2, updated_at = now()
		WHERE gateway_charge_id = $1 AND status = 'pending'`,
		chargeID, reason,
	)
	if err != nil {
		return false, domain.Internal(err, "invoice.apply_failed", "failed to mark payment failed")
	}
	return tag.RowsAffected() > 0, nil
}
