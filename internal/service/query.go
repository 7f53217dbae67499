package service

import (
	"context"
	"strings"

	"github.com/google/uuid"

	"github.com/segyhp/collections-engine/internal/domain"
	customError "github.com/segyhp/collections-engine/pkg/errors"
)

// CaseQuery holds the optional listing filters as received from the API
type CaseQuery struct {
	Search   string
	Status   string
	Priority string
}

// ListCases returns the cases of a clinic with their patient and action log,
// most urgent first. Derived fields are recomputed before filtering.
func (s *CollectionsService) ListCases(ctx context.Context, clinicID string, q CaseQuery) ([]*domain.DelinquencyCase, error) {
	filter := domain.CaseFilter{
		ClinicID: clinicID,
		Search:   strings.TrimSpace(q.Search),
	}

	if q.Status != "" {
		status, ok := domain.ParseCaseStatus(q.Status)
		if !ok {
			return nil, customError.WrapValidation("status", "unknown status "+q.Status)
		}
		filter.Status = &status
	}

	var priority domain.Priority
	if q.Priority != "" {
		p, ok := domain.ParsePriority(q.Priority)
		if !ok {
			return nil, customError.WrapValidation("priority", "unknown priority "+q.Priority)
		}
		priority = p
	}

	cases, err := s.refreshedCases(ctx, filter)
	if err != nil {
		return nil, err
	}

	if priority != "" {
		filtered := cases[:0]
		for _, c := range cases {
			if c.Priority == priority {
				filtered = append(filtered, c)
			}
		}
		cases = filtered
	}

	if err := s.embed(ctx, clinicID, cases); err != nil {
		return nil, err
	}

	sortCases(cases)
	return cases, nil
}

// GetCase returns a single case with patient, actions and status history
func (s *CollectionsService) GetCase(ctx context.Context, clinicID string, caseID uuid.UUID) (*domain.DelinquencyCase, error) {
	c, err := s.loadCase(ctx, clinicID, caseID)
	if err != nil {
		return nil, err
	}

	settings, err := s.Settings.Get(ctx, clinicID)
	if err != nil {
		return nil, err
	}
	c.Refresh(settings, s.now(), s.opts.Location)

	if err := s.embed(ctx, clinicID, []*domain.DelinquencyCase{c}); err != nil {
		return nil, err
	}

	history, err := s.CaseRepo.ListHistory(ctx, c.ID)
	if err != nil {
		return nil, dbError(err)
	}
	if history == nil {
		history = []*domain.StatusChange{}
	}
	c.History = history

	return c, nil
}

// refreshedCases loads cases and recomputes their derived fields for today
func (s *CollectionsService) refreshedCases(ctx context.Context, filter domain.CaseFilter) ([]*domain.DelinquencyCase, error) {
	settings, err := s.Settings.Get(ctx, filter.ClinicID)
	if err != nil {
		return nil, err
	}

	cases, err := s.CaseRepo.List(ctx, filter)
	if err != nil {
		return nil, dbError(err)
	}

	now := s.now()
	for _, c := range cases {
		c.Refresh(settings, now, s.opts.Location)
	}
	if cases == nil {
		cases = []*domain.DelinquencyCase{}
	}
	return cases, nil
}

// embed attaches patient summaries and action logs in two batched reads
func (s *CollectionsService) embed(ctx context.Context, clinicID string, cases []*domain.DelinquencyCase) error {
	if len(cases) == 0 {
		return nil
	}

	ids := make([]uuid.UUID, 0, len(cases))
	patientIDs := make([]string, 0, len(cases))
	seen := make(map[string]bool, len(cases))
	for _, c := range cases {
		ids = append(ids, c.ID)
		if !seen[c.PatientID] {
			seen[c.PatientID] = true
			patientIDs = append(patientIDs, c.PatientID)
		}
	}

	patients, err := s.PatientRepo.GetByIDs(ctx, clinicID, patientIDs)
	if err != nil {
		return dbError(err)
	}
	actions, err := s.ActionRepo.ListByCases(ctx, ids)
	if err != nil {
		return dbError(err)
	}

	for _, c := range cases {
		c.Patient = patients[c.PatientID]
		c.Actions = actions[c.ID]
		if c.Actions == nil {
			c.Actions = []*domain.DelinquencyAction{}
		}
	}
	return nil
}
