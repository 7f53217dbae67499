package repository

import (
	"context"
	"time"

	"github.com/google/uuid"

	"github.com/segyhp/collections-engine/internal/domain"
)

// CaseRepository defines the interface for delinquency case data operations
type CaseRepository interface {
	// Create inserts a new case. A second open case for the same obligation is rejected with a conflict.
	Create(ctx context.Context, c *domain.DelinquencyCase) error

	// GetByID retrieves a case of a clinic by id
	GetByID(ctx context.Context, clinicID string, id uuid.UUID) (*domain.DelinquencyCase, error)

	// List returns the cases of a clinic matching the filter, most urgent first
	List(ctx context.Context, filter domain.CaseFilter) ([]*domain.DelinquencyCase, error)

	// ListOpen returns every non-terminal case of a clinic
	ListOpen(ctx context.Context, clinicID string) ([]*domain.DelinquencyCase, error)

	// FindLatestByObligation returns the most recently created case for an obligation
	FindLatestByObligation(ctx context.Context, clinicID string, ref domain.ObligationRef) (*domain.DelinquencyCase, error)

	// CountOpenByObligation counts open cases for an obligation other than excludeID
	CountOpenByObligation(ctx context.Context, ref domain.ObligationRef, excludeID uuid.UUID) (int, error)

	// RefreshDerived stores recomputed amounts, aging and priority without touching the lifecycle
	RefreshDerived(ctx context.Context, c *domain.DelinquencyCase) error

	// Update persists a lifecycle change guarded by the version the caller read,
	// appending change to the status history in the same transaction when non-nil
	Update(ctx context.Context, c *domain.DelinquencyCase, expectedVersion int, change *domain.StatusChange) error

	// ListHistory returns the status history of a case, oldest first
	ListHistory(ctx context.Context, caseID uuid.UUID) ([]*domain.StatusChange, error)

	// ListDueForFollowUp returns open cases with a next action on or before until
	ListDueForFollowUp(ctx context.Context, clinicID string, until time.Time) ([]*domain.DelinquencyCase, error)
}

// ActionRepository defines the interface for the append-only action log
type ActionRepository interface {
	// Create appends an action and, when it requires follow-up, schedules the case's next action
	Create(ctx context.Context, action *domain.DelinquencyAction) error

	// ListByCase returns the actions of one case, newest first
	ListByCase(ctx context.Context, caseID uuid.UUID) ([]*domain.DelinquencyAction, error)

	// ListByCases returns the actions of several cases keyed by case id
	ListByCases(ctx context.Context, caseIDs []uuid.UUID) (map[uuid.UUID][]*domain.DelinquencyAction, error)
}

// ObligationSource is one ledger the case builder reads overdue items from
type ObligationSource interface {
	Name() domain.SourceType

	// ListOverdue returns obligations due strictly before the calendar date of asOf
	// with an outstanding balance
	ListOverdue(ctx context.Context, clinicID string, asOf time.Time) ([]domain.Obligation, error)
}

// PatientRepository gives read access to the patients module
type PatientRepository interface {
	GetByID(ctx context.Context, clinicID, id string) (*domain.Patient, error)
	GetByIDs(ctx context.Context, clinicID string, ids []string) (map[string]*domain.Patient, error)
}

// SettingsRepository stores per-clinic collection settings
type SettingsRepository interface {
	// Get returns the stored settings or a not found error when the clinic never saved any
	Get(ctx context.Context, clinicID string) (*domain.Settings, error)
	Save(ctx context.Context, clinicID string, settings *domain.Settings) error
}
