package service

import (
	"context"

	"github.com/segyhp/collections-engine/internal/domain"
)

// GetStats aggregates the unfiltered case set of a clinic on demand
func (s *CollectionsService) GetStats(ctx context.Context, clinicID string) (domain.Stats, error) {
	cases, err := s.refreshedCases(ctx, domain.CaseFilter{ClinicID: clinicID})
	if err != nil {
		return domain.Stats{}, err
	}

	return domain.ComputeStats(cases, s.now(), s.opts.Location), nil
}
