package repository

import (
	"context"
	"database/sql"
	"errors"

	"github.com/jmoiron/sqlx"
	"github.com/lib/pq"

	"github.com/segyhp/collections-engine/internal/domain"
	customError "github.com/segyhp/collections-engine/pkg/errors"
)

type patientRepository struct {
	db *sqlx.DB
}

func NewPatientRepository(db *sqlx.DB) PatientRepository {
	return &patientRepository{db: db}
}

func (r *patientRepository) GetByID(ctx context.Context, clinicID, id string) (*domain.Patient, error) {
	query := `
		SELECT id, first_name, last_name, file_number, email, phone
		FROM patients
		WHERE clinic_id = $1 AND id = $2
	`

	var p domain.Patient
	err := r.db.GetContext(ctx, &p, query, clinicID, id)
	if errors.Is(err, sql.ErrNoRows) {
		return nil, customError.WrapNotFound("patient", id)
	}
	if err != nil {
		return nil, err
	}

	return &p, nil
}

func (r *patientRepository) GetByIDs(ctx context.Context, clinicID string, ids []string) (map[string]*domain.Patient, error) {
	patients := make(map[string]*domain.Patient, len(ids))
	if len(ids) == 0 {
		return patients, nil
	}

	query := `
		SELECT id, first_name, last_name, file_number, email, phone
		FROM patients
		WHERE clinic_id = $1 AND id = ANY($2)
	`

	var rows []*domain.Patient
	if err := r.db.SelectContext(ctx, &rows, query, clinicID, pq.Array(ids)); err != nil {
		return nil, err
	}

	for _, p := range rows {
		patients[p.ID] = p
	}
	return patients, nil
}
