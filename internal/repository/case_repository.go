package repository

import (
	"context"
	"database/sql"
	"errors"
	"fmt"
	"strings"
	"time"

	"github.com/google/uuid"
	"github.com/jmoiron/sqlx"
	"github.com/lib/pq"

	"github.com/segyhp/collections-engine/internal/domain"
	customError "github.com/segyhp/collections-engine/pkg/errors"
)

const caseColumns = `c.id, c.clinic_id, c.source, c.financing_payment_id, c.invoice_id, c.patient_id,
	c.type, c.title, c.description, c.details, c.currency,
	c.original_amount, c.overdue_amount, c.late_fee_amount, c.total_owed,
	c.original_due_date, c.days_overdue, c.status, c.priority,
	c.assigned_to, c.next_action_date, c.resolved_at, c.closed_at,
	c.version, c.created_at, c.updated_at`

const openStatuses = `('Pendiente', 'Enviado', 'Visto')`

// pgUniqueViolation is raised by the partial index guarding one open case per obligation
const pgUniqueViolation = "23505"

type caseRepository struct {
	db *sqlx.DB
}

func NewCaseRepository(db *sqlx.DB) CaseRepository {
	return &caseRepository{db: db}
}

func (r *caseRepository) Create(ctx context.Context, c *domain.DelinquencyCase) error {
	query := `
		INSERT INTO delinquency_cases (
			id, clinic_id, source, financing_payment_id, invoice_id, patient_id,
			type, title, description, details, currency,
			original_amount, overdue_amount, late_fee_amount, total_owed,
			original_due_date, days_overdue, status, priority,
			assigned_to, next_action_date, resolved_at, closed_at,
			version, created_at, updated_at
		) VALUES (
			$1, $2, $3, $4, $5, $6, $7, $8, $9, $10, $11, $12, $13,
			$14, $15, $16, $17, $18, $19, $20, $21, $22, $23, $24, $25, $26
		)
	`

	_, err := r.db.ExecContext(ctx, query,
		c.ID,
		c.ClinicID,
		c.Source,
		c.FinancingPaymentID,
		c.InvoiceID,
		c.PatientID,
		c.Type,
		c.Title,
		c.Description,
		c.Details,
		c.Currency,
		c.OriginalAmount,
		c.OverdueAmount,
		c.LateFeeAmount,
		c.TotalOwed,
		c.OriginalDueDate,
		c.DaysOverdue,
		c.Status,
		c.Priority,
		c.AssignedTo,
		c.NextActionDate,
		c.ResolvedAt,
		c.ClosedAt,
		c.Version,
		c.CreatedAt,
		c.UpdatedAt,
	)

	return mapWriteError(err)
}

func (r *caseRepository) GetByID(ctx context.Context, clinicID string, id uuid.UUID) (*domain.DelinquencyCase, error) {
	query := `SELECT ` + caseColumns + `
		FROM delinquency_cases c
		WHERE c.clinic_id = $1 AND c.id = $2
	`

	var c domain.DelinquencyCase
	err := r.db.GetContext(ctx, &c, query, clinicID, id)
	if errors.Is(err, sql.ErrNoRows) {
		return nil, customError.WrapNotFound("case", id.String())
	}
	if err != nil {
		return nil, err
	}

	return &c, nil
}

func (r *caseRepository) List(ctx context.Context, filter domain.CaseFilter) ([]*domain.DelinquencyCase, error) {
	conditions := []string{"c.clinic_id = $1"}
	args := []interface{}{filter.ClinicID}

	if filter.Status != nil {
		args = append(args, *filter.Status)
		conditions = append(conditions, fmt.Sprintf("c.status = $%d", len(args)))
	}
	if search := strings.TrimSpace(filter.Search); search != "" {
		args = append(args, "%"+search+"%")
		n := len(args)
		conditions = append(conditions, fmt.Sprintf(
			"(c.title ILIKE $%[1]d OR c.description ILIKE $%[1]d OR p.first_name ILIKE $%[1]d OR p.last_name ILIKE $%[1]d OR p.file_number ILIKE $%[1]d)", n))
	}

	query := `SELECT ` + caseColumns + `
		FROM delinquency_cases c
		LEFT JOIN patients p ON p.id = c.patient_id
		WHERE ` + strings.Join(conditions, " AND ") + `
		ORDER BY ` + priorityOrder + ` DESC, c.days_overdue DESC, c.created_at DESC
	`

	var cases []*domain.DelinquencyCase
	if err := r.db.SelectContext(ctx, &cases, query, args...); err != nil {
		return nil, err
	}

	return cases, nil
}

const priorityOrder = `CASE c.priority WHEN 'Crítica' THEN 4 WHEN 'Alta' THEN 3 WHEN 'Media' THEN 2 ELSE 1 END`

func (r *caseRepository) ListOpen(ctx context.Context, clinicID string) ([]*domain.DelinquencyCase, error) {
	query := `SELECT ` + caseColumns + `
		FROM delinquency_cases c
		WHERE c.clinic_id = $1 AND c.status IN ` + openStatuses + `
		ORDER BY c.created_at
	`

	var cases []*domain.DelinquencyCase
	if err := r.db.SelectContext(ctx, &cases, query, clinicID); err != nil {
		return nil, err
	}

	return cases, nil
}

func (r *caseRepository) FindLatestByObligation(ctx context.Context, clinicID string, ref domain.ObligationRef) (*domain.DelinquencyCase, error) {
	query := `SELECT ` + caseColumns + `
		FROM delinquency_cases c
		WHERE c.clinic_id = $1 AND c.source = $2
		  AND COALESCE(c.financing_payment_id, c.invoice_id) = $3
		ORDER BY c.created_at DESC
		LIMIT 1
	`

	var c domain.DelinquencyCase
	err := r.db.GetContext(ctx, &c, query, clinicID, ref.Source, ref.ID)
	if errors.Is(err, sql.ErrNoRows) {
		return nil, customError.WrapNotFound("case for obligation", ref.String())
	}
	if err != nil {
		return nil, err
	}

	return &c, nil
}

func (r *caseRepository) CountOpenByObligation(ctx context.Context, ref domain.ObligationRef, excludeID uuid.UUID) (int, error) {
	query := `
		SELECT COUNT(*)
		FROM delinquency_cases c
		WHERE c.source = $1
		  AND COALESCE(c.financing_payment_id, c.invoice_id) = $2
		  AND c.status IN ` + openStatuses + `
		  AND c.id <> $3
	`

	var count int
	if err := r.db.GetContext(ctx, &count, query, ref.Source, ref.ID, excludeID); err != nil {
		return 0, err
	}

	return count, nil
}

func (r *caseRepository) RefreshDerived(ctx context.Context, c *domain.DelinquencyCase) error {
	query := `
		UPDATE delinquency_cases
		SET original_amount = $2, overdue_amount = $3, late_fee_amount = $4, total_owed = $5,
		    days_overdue = $6, priority = $7, updated_at = $8
		WHERE id = $1
	`

	_, err := r.db.ExecContext(ctx, query,
		c.ID,
		c.OriginalAmount,
		c.OverdueAmount,
		c.LateFeeAmount,
		c.TotalOwed,
		c.DaysOverdue,
		c.Priority,
		c.UpdatedAt,
	)

	return err
}

func (r *caseRepository) Update(ctx context.Context, c *domain.DelinquencyCase, expectedVersion int, change *domain.StatusChange) error {
	query := `
		UPDATE delinquency_cases
		SET status = $3, priority = $4, assigned_to = $5, next_action_date = $6,
		    resolved_at = $7, closed_at = $8, days_overdue = $9, late_fee_amount = $10,
		    total_owed = $11, version = version + 1, updated_at = $12
		WHERE id = $1 AND version = $2
	`

	tx, err := r.db.BeginTxx(ctx, nil)
	if err != nil {
		return err
	}
	defer tx.Rollback()

	result, err := tx.ExecContext(ctx, query,
		c.ID,
		expectedVersion,
		c.Status,
		c.Priority,
		c.AssignedTo,
		c.NextActionDate,
		c.ResolvedAt,
		c.ClosedAt,
		c.DaysOverdue,
		c.LateFeeAmount,
		c.TotalOwed,
		c.UpdatedAt,
	)
	if err != nil {
		return mapWriteError(err)
	}

	rows, err := result.RowsAffected()
	if err != nil {
		return err
	}
	if rows == 0 {
		var exists bool
		if err := tx.GetContext(ctx, &exists, `SELECT EXISTS(SELECT 1 FROM delinquency_cases WHERE id = $1)`, c.ID); err != nil {
			return err
		}
		if !exists {
			return customError.WrapNotFound("case", c.ID.String())
		}
		return customError.WrapConflict(fmt.Sprintf("case %s was modified concurrently, reload and retry", c.ID))
	}

	if change != nil {
		_, err = tx.ExecContext(ctx, `
			INSERT INTO case_status_changes (id, case_id, from_status, to_status, actor_id, reason, changed_at)
			VALUES ($1, $2, $3, $4, $5, $6, $7)
		`,
			change.ID,
			change.CaseID,
			change.FromStatus,
			change.ToStatus,
			change.ActorID,
			change.Reason,
			change.ChangedAt,
		)
		if err != nil {
			return err
		}
	}

	if err := tx.Commit(); err != nil {
		return err
	}

	c.Version = expectedVersion + 1
	return nil
}

func (r *caseRepository) ListHistory(ctx context.Context, caseID uuid.UUID) ([]*domain.StatusChange, error) {
	query := `
		SELECT id, case_id, from_status, to_status, actor_id, reason, changed_at
		FROM case_status_changes
		WHERE case_id = $1
		ORDER BY changed_at, id
	`

	var history []*domain.StatusChange
	if err := r.db.SelectContext(ctx, &history, query, caseID); err != nil {
		return nil, err
	}

	return history, nil
}

func (r *caseRepository) ListDueForFollowUp(ctx context.Context, clinicID string, until time.Time) ([]*domain.DelinquencyCase, error) {
	query := `SELECT ` + caseColumns + `
		FROM delinquency_cases c
		WHERE c.clinic_id = $1
		  AND c.status IN ` + openStatuses + `
		  AND c.next_action_date IS NOT NULL
		  AND c.next_action_date <= $2
		ORDER BY c.next_action_date
	`

	var cases []*domain.DelinquencyCase
	if err := r.db.SelectContext(ctx, &cases, query, clinicID, until); err != nil {
		return nil, err
	}

	return cases, nil
}

func mapWriteError(err error) error {
	if err == nil {
		return nil
	}
	var pqErr *pq.Error
	if errors.As(err, &pqErr) && pqErr.Code == pgUniqueViolation {
		return customError.WrapConflict("an open case already exists for this obligation")
	}
	return err
}
