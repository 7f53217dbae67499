package repository

import (
	"context"

	"github.com/google/uuid"
	"github.com/jmoiron/sqlx"
	"github.com/lib/pq"

	"github.com/segyhp/collections-engine/internal/domain"
	customError "github.com/segyhp/collections-engine/pkg/errors"
)

const actionColumns = `id, case_id, actor_id, action_type, description, outcome, contact_method,
	duration_minutes, next_steps, follow_up_required, follow_up_date, follow_up_notes, created_at`

type actionRepository struct {
	db *sqlx.DB
}

func NewActionRepository(db *sqlx.DB) ActionRepository {
	return &actionRepository{db: db}
}

func (r *actionRepository) Create(ctx context.Context, action *domain.DelinquencyAction) error {
	query := `
		INSERT INTO delinquency_actions (` + actionColumns + `)
		VALUES ($1, $2, $3, $4, $5, $6, $7, $8, $9, $10, $11, $12, $13)
	`

	tx, err := r.db.BeginTxx(ctx, nil)
	if err != nil {
		return err
	}
	defer tx.Rollback()

	_, err = tx.ExecContext(ctx, query,
		action.ID,
		action.CaseID,
		action.ActorID,
		action.ActionType,
		action.Description,
		action.Outcome,
		action.ContactMethod,
		action.DurationMinutes,
		action.NextSteps,
		action.FollowUpRequired,
		action.FollowUpDate,
		action.FollowUpNotes,
		action.CreatedAt,
	)
	if err != nil {
		return err
	}

	if action.FollowUpRequired && action.FollowUpDate != nil {
		result, err := tx.ExecContext(ctx, `
			UPDATE delinquency_cases
			SET next_action_date = $2, updated_at = $3, version = version + 1
			WHERE id = $1
		`, action.CaseID, *action.FollowUpDate, action.CreatedAt)
		if err != nil {
			return err
		}
		if rows, err := result.RowsAffected(); err == nil && rows == 0 {
			return customError.WrapNotFound("case", action.CaseID.String())
		}
	}

	return tx.Commit()
}

func (r *actionRepository) ListByCase(ctx context.Context, caseID uuid.UUID) ([]*domain.DelinquencyAction, error) {
	query := `
		SELECT ` + actionColumns + `
		FROM delinquency_actions
		WHERE case_id = $1
		ORDER BY created_at DESC, id
	`

	var actions []*domain.DelinquencyAction
	if err := r.db.SelectContext(ctx, &actions, query, caseID); err != nil {
		return nil, err
	}

	return actions, nil
}

func (r *actionRepository) ListByCases(ctx context.Context, caseIDs []uuid.UUID) (map[uuid.UUID][]*domain.DelinquencyAction, error) {
	grouped := make(map[uuid.UUID][]*domain.DelinquencyAction, len(caseIDs))
	if len(caseIDs) == 0 {
		return grouped, nil
	}

	ids := make([]string, len(caseIDs))
	for i, id := range caseIDs {
		ids[i] = id.String()
	}

	query := `
		SELECT ` + actionColumns + `
		FROM delinquency_actions
		WHERE case_id = ANY($1::uuid[])
		ORDER BY created_at DESC, id
	`

	var actions []*domain.DelinquencyAction
	if err := r.db.SelectContext(ctx, &actions, query, pq.Array(ids)); err != nil {
		return nil, err
	}

	for _, a := range actions {
		grouped[a.CaseID] = append(grouped[a.CaseID], a)
	}

	return grouped, nil
}
