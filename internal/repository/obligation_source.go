package repository

import (
	"context"
	"time"

	"github.com/jmoiron/sqlx"

	"github.com/segyhp/collections-engine/internal/domain"
	"github.com/segyhp/collections-engine/pkg/utils"
)

// financingSource reads overdue installments from the financing ledger
type financingSource struct {
	db *sqlx.DB
}

func NewFinancingSource(db *sqlx.DB) ObligationSource {
	return &financingSource{db: db}
}

func (s *financingSource) Name() domain.SourceType {
	return domain.SourceFinancing
}

func (s *financingSource) ListOverdue(ctx context.Context, clinicID string, asOf time.Time) ([]domain.Obligation, error) {
	query := `
		SELECT fp.id, fp.clinic_id, fpl.patient_id, fp.plan_id, COALESCE(fpl.name, '') AS plan_name,
		       fp.installment_number, fp.scheduled_amount, fp.paid_amount, fp.due_date,
		       COALESCE(fpl.currency, '') AS currency
		FROM financing_payments fp
		JOIN financing_plans fpl ON fpl.id = fp.plan_id
		WHERE fp.clinic_id = $1
		  AND fp.due_date < $2::date
		  AND fp.scheduled_amount - fp.paid_amount > 0
		  AND fpl.status <> 'cancelled'
		ORDER BY fp.due_date, fp.id
	`

	var payments []*domain.FinancingPayment
	if err := s.db.SelectContext(ctx, &payments, query, clinicID, utils.SQLDate(asOf)); err != nil {
		return nil, err
	}

	obligations := make([]domain.Obligation, len(payments))
	for i, p := range payments {
		obligations[i] = p
	}
	return obligations, nil
}

// invoiceSource reads unpaid balances from the invoice ledger
type invoiceSource struct {
	db *sqlx.DB
}

func NewInvoiceSource(db *sqlx.DB) ObligationSource {
	return &invoiceSource{db: db}
}

func (s *invoiceSource) Name() domain.SourceType {
	return domain.SourceInvoice
}

func (s *invoiceSource) ListOverdue(ctx context.Context, clinicID string, asOf time.Time) ([]domain.Obligation, error) {
	query := `
		SELECT id, clinic_id, patient_id, invoice_number, total, paid_amount, due_date, status, currency
		FROM invoices
		WHERE clinic_id = $1
		  AND due_date < $2::date
		  AND total - paid_amount > 0
		  AND status NOT IN ('draft', 'cancelled', 'void')
		ORDER BY due_date, id
	`

	var invoices []*domain.Invoice
	if err := s.db.SelectContext(ctx, &invoices, query, clinicID, utils.SQLDate(asOf)); err != nil {
		return nil, err
	}

	obligations := make([]domain.Obligation, len(invoices))
	for i, inv := range invoices {
		obligations[i] = inv
	}
	return obligations, nil
}
