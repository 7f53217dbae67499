package service

import (
	"context"
	"log/slog"
	"time"

	"github.com/go-playground/validator/v10"
	"github.com/google/uuid"
	"golang.org/x/sync/singleflight"

	"github.com/segyhp/collections-engine/internal/domain"
	"github.com/segyhp/collections-engine/internal/lock"
	"github.com/segyhp/collections-engine/internal/logger"
	"github.com/segyhp/collections-engine/internal/notifier"
	"github.com/segyhp/collections-engine/internal/repository"
	customError "github.com/segyhp/collections-engine/pkg/errors"
)

// Options tunes the collections service
type Options struct {
	// Location is the clinic calendar used for aging and month boundaries
	Location         *time.Location
	SourceTimeout    time.Duration
	DetectionLockTTL time.Duration
}

type CollectionsService struct {
	CaseRepo    repository.CaseRepository
	ActionRepo  repository.ActionRepository
	PatientRepo repository.PatientRepository
	Sources     []repository.ObligationSource
	Settings    *SettingsProvider

	locker   lock.Locker
	notifier notifier.Notifier
	validate *validator.Validate
	inflight singleflight.Group
	opts     Options
	now      func() time.Time
	log      *slog.Logger
}

func NewCollectionsService(
	caseRepo repository.CaseRepository,
	actionRepo repository.ActionRepository,
	patientRepo repository.PatientRepository,
	sources []repository.ObligationSource,
	settings *SettingsProvider,
	locker lock.Locker,
	n notifier.Notifier,
	opts Options,
) *CollectionsService {
	if opts.Location == nil {
		opts.Location = time.UTC
	}
	if opts.SourceTimeout <= 0 {
		opts.SourceTimeout = 30 * time.Second
	}
	if opts.DetectionLockTTL <= 0 {
		opts.DetectionLockTTL = 10 * time.Minute
	}

	return &CollectionsService{
		CaseRepo:    caseRepo,
		ActionRepo:  actionRepo,
		PatientRepo: patientRepo,
		Sources:     sources,
		Settings:    settings,
		locker:      locker,
		notifier:    n,
		validate:    newValidator(),
		opts:        opts,
		now:         time.Now,
		log:         logger.WithService("collections"),
	}
}

// loadCase fetches a case scoped to its clinic
func (s *CollectionsService) loadCase(ctx context.Context, clinicID string, caseID uuid.UUID) (*domain.DelinquencyCase, error) {
	c, err := s.CaseRepo.GetByID(ctx, clinicID, caseID)
	if err != nil {
		return nil, dbError(err)
	}
	return c, nil
}

// dbError passes business errors through and wraps everything else
func dbError(err error) error {
	if _, ok := customError.As(err); ok {
		return err
	}
	return customError.WrapDatabaseError(err)
}
