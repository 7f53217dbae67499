package service

import (
	"context"
	"errors"
	"sort"
	"sync"
	"time"

	"golang.org/x/sync/errgroup"

	"github.com/segyhp/collections-engine/internal/domain"
	"github.com/segyhp/collections-engine/internal/lock"
	"github.com/segyhp/collections-engine/internal/logger"
	"github.com/segyhp/collections-engine/internal/metrics"
	customError "github.com/segyhp/collections-engine/pkg/errors"
	"github.com/segyhp/collections-engine/pkg/utils"
)

const autoResolveReason = "obligation no longer outstanding"

// DetectOptions adjusts a single detection run
type DetectOptions struct {
	// Force opens cases for obligations below the minimum days overdue
	Force bool
}

// SourceFailure names an obligation source that could not be queried
type SourceFailure struct {
	Source domain.SourceType `json:"source"`
	Error  string            `json:"error"`
}

// DetectionResult summarises one detection run
type DetectionResult struct {
	CreatedCount   int                       `json:"created_count"`
	RefreshedCount int                       `json:"refreshed_count"`
	ResolvedCount  int                       `json:"resolved_count"`
	SkippedCount   int                       `json:"skipped_count"`
	Cases          []*domain.DelinquencyCase `json:"cases"`
	Failures       []SourceFailure           `json:"failures,omitempty"`
	ItemErrors     []string                  `json:"item_errors,omitempty"`
	Partial        bool                      `json:"partial"`
}

type sourceBatch struct {
	source      domain.SourceType
	obligations []domain.Obligation
	err         error
}

// RunDetection scans every obligation source of a clinic and opens or refreshes
// cases. Runs for the same clinic are coalesced in-process and serialized
// across processes through the locker.
func (s *CollectionsService) RunDetection(ctx context.Context, clinicID string, opts DetectOptions) (*DetectionResult, error) {
	if clinicID == "" {
		return nil, customError.WrapValidation("clinic_id", "clinic id is required")
	}

	v, err, _ := s.inflight.Do(clinicID, func() (interface{}, error) {
		return s.detectLocked(ctx, clinicID, opts)
	})
	if err != nil {
		return nil, err
	}
	return v.(*DetectionResult), nil
}

func (s *CollectionsService) detectLocked(ctx context.Context, clinicID string, opts DetectOptions) (*DetectionResult, error) {
	key := "detection:" + clinicID
	log := logger.WithClinic("detection", clinicID)

	token, err := s.locker.Acquire(ctx, key, s.opts.DetectionLockTTL)
	switch {
	case errors.Is(err, lock.ErrNotAcquired):
		metrics.RecordDetectionRun("busy", 0)
		return nil, customError.WrapDetectionInProgress(clinicID)
	case err != nil:
		// the partial unique index still prevents duplicate open cases
		log.WarnContext(ctx, "detection lock unavailable, continuing without it", "error", err)
	default:
		defer func() {
			if err := s.locker.Release(context.WithoutCancel(ctx), key, token); err != nil {
				log.WarnContext(ctx, "failed to release detection lock", "error", err)
			}
		}()
	}

	started := time.Now()
	result, err := s.detect(ctx, clinicID, opts)
	elapsed := time.Since(started)

	switch {
	case err != nil:
		metrics.RecordDetectionRun("failed", elapsed)
		log.ErrorContext(ctx, "detection failed", "error", err, "duration", elapsed)
		return nil, err
	case result.Partial:
		metrics.RecordDetectionRun("partial", elapsed)
	default:
		metrics.RecordDetectionRun("ok", elapsed)
	}

	log.InfoContext(ctx, "detection finished",
		"created", result.CreatedCount,
		"refreshed", result.RefreshedCount,
		"resolved", result.ResolvedCount,
		"skipped", result.SkippedCount,
		"failed_sources", len(result.Failures),
		"item_errors", len(result.ItemErrors),
		"duration", elapsed,
	)
	return result, nil
}

func (s *CollectionsService) detect(ctx context.Context, clinicID string, opts DetectOptions) (*DetectionResult, error) {
	now := s.now()
	loc := s.opts.Location
	result := &DetectionResult{Cases: []*domain.DelinquencyCase{}}

	// 1. Settings are resolved once per run and passed down explicitly
	settings, err := s.Settings.Get(ctx, clinicID)
	if err != nil {
		return nil, err
	}

	// 2. Query every source concurrently, each under its own timeout
	batches := s.fetchObligations(ctx, clinicID, utils.StartOfDay(now, loc))

	queried := make(map[domain.SourceType]bool, len(batches))
	var lastErr error
	for _, b := range batches {
		if b.err != nil {
			lastErr = customError.WrapSourceUnavailable(string(b.source), b.err)
			result.Failures = append(result.Failures, SourceFailure{Source: b.source, Error: b.err.Error()})
			metrics.RecordSourceFailure(string(b.source))
			s.log.WarnContext(ctx, "obligation source unavailable",
				"clinic_id", clinicID, "source", b.source, "error", b.err)
			continue
		}
		queried[b.source] = true
	}
	if len(batches) > 0 && len(queried) == 0 {
		return nil, lastErr
	}
	result.Partial = len(result.Failures) > 0

	// 3. Index the open cases so every obligation maps to at most one of them
	open, err := s.CaseRepo.ListOpen(ctx, clinicID)
	if err != nil {
		return nil, customError.WrapDatabaseError(err)
	}
	openByRef := make(map[domain.ObligationRef]*domain.DelinquencyCase, len(open))
	for _, c := range open {
		openByRef[c.ObligationRef()] = c
	}

	// 4. Refresh matched cases, open new ones
	seen := make(map[domain.ObligationRef]bool)
	for _, b := range batches {
		if b.err != nil {
			continue
		}
		for _, o := range b.obligations {
			ref := o.Ref()
			if seen[ref] {
				continue
			}
			seen[ref] = true

			if existing, ok := openByRef[ref]; ok {
				existing.ApplyObligation(o)
				if err := s.refreshStored(ctx, existing, settings, now); err != nil {
					result.ItemErrors = append(result.ItemErrors, ref.String()+": "+err.Error())
					continue
				}
				result.RefreshedCount++
				result.Cases = append(result.Cases, existing)
				continue
			}

			c, skipped, err := s.openCase(ctx, clinicID, o, settings, now, opts)
			switch {
			case err != nil:
				result.ItemErrors = append(result.ItemErrors, ref.String()+": "+err.Error())
			case skipped:
				result.SkippedCount++
			default:
				result.CreatedCount++
				result.Cases = append(result.Cases, c)
				metrics.RecordCaseCreated(string(ref.Source))
			}
		}
	}

	// 5. Open cases the sources no longer report were paid or rescheduled
	for _, c := range open {
		ref := c.ObligationRef()
		if seen[ref] {
			continue
		}

		if queried[ref.Source] && settings.AutoResolvePaid {
			if err := s.autoResolve(ctx, c, settings, now); err != nil {
				result.ItemErrors = append(result.ItemErrors, ref.String()+": "+err.Error())
				result.Cases = append(result.Cases, c)
				continue
			}
			result.ResolvedCount++
			metrics.RecordCaseAutoResolved()
			continue
		}

		// source unavailable or auto-resolution disabled: keep aging the case
		if err := s.refreshStored(ctx, c, settings, now); err != nil {
			result.ItemErrors = append(result.ItemErrors, ref.String()+": "+err.Error())
		} else {
			result.RefreshedCount++
		}
		result.Cases = append(result.Cases, c)
	}

	metrics.RecordCasesRefreshed(result.RefreshedCount)
	sortCases(result.Cases)
	return result, nil
}

// fetchObligations queries all sources in parallel. A failing source never
// cancels the others; its error is carried in its batch.
func (s *CollectionsService) fetchObligations(ctx context.Context, clinicID string, asOf time.Time) []sourceBatch {
	batches := make([]sourceBatch, len(s.Sources))

	var g errgroup.Group
	var mu sync.Mutex
	for i, src := range s.Sources {
		g.Go(func() error {
			sctx, cancel := context.WithTimeout(ctx, s.opts.SourceTimeout)
			defer cancel()

			obligations, err := src.ListOverdue(sctx, clinicID, asOf)
			if err == nil && sctx.Err() != nil {
				err = sctx.Err()
			}

			mu.Lock()
			batches[i] = sourceBatch{source: src.Name(), obligations: obligations, err: err}
			mu.Unlock()
			return nil
		})
	}
	_ = g.Wait()

	return batches
}

// openCase creates a case unless the obligation is too recent or its current
// instance was already closed
func (s *CollectionsService) openCase(ctx context.Context, clinicID string, o domain.Obligation, settings domain.Settings, now time.Time, opts DetectOptions) (*domain.DelinquencyCase, bool, error) {
	days := utils.DaysOverdue(o.Due(), now, s.opts.Location)
	if days < 1 || (days < settings.MinDaysOverdue && !opts.Force) {
		return nil, true, nil
	}
	if !o.Outstanding().IsPositive() {
		return nil, true, nil
	}

	latest, err := s.CaseRepo.FindLatestByObligation(ctx, clinicID, o.Ref())
	switch {
	case errors.Is(err, customError.ErrNotFound):
	case err != nil:
		return nil, false, err
	case !latest.IsOpen() && latest.SameInstance(o):
		return nil, true, nil
	}

	c := domain.NewCaseFromObligation(clinicID, o, settings, now, s.opts.Location)
	if err := s.CaseRepo.Create(ctx, c); err != nil {
		if errors.Is(err, customError.ErrConflict) {
			// a concurrent writer opened it first
			return nil, true, nil
		}
		return nil, false, err
	}

	return c, false, nil
}

func (s *CollectionsService) refreshStored(ctx context.Context, c *domain.DelinquencyCase, settings domain.Settings, now time.Time) error {
	c.Refresh(settings, now, s.opts.Location)
	c.UpdatedAt = now
	return s.CaseRepo.RefreshDerived(ctx, c)
}

func (s *CollectionsService) autoResolve(ctx context.Context, c *domain.DelinquencyCase, settings domain.Settings, now time.Time) error {
	expected := c.Version
	change, err := c.Transition(domain.CaseStatusResolved, domain.SystemActor, autoResolveReason, now)
	if err != nil {
		return err
	}
	c.Refresh(settings, now, s.opts.Location)

	if err := s.CaseRepo.Update(ctx, c, expected, change); err != nil {
		return err
	}
	metrics.RecordCaseStatusChange(string(change.FromStatus), string(change.ToStatus))
	return nil
}

// sortCases orders cases most urgent first
func sortCases(cases []*domain.DelinquencyCase) {
	sort.SliceStable(cases, func(i, j int) bool {
		a, b := cases[i], cases[j]
		if a.Priority.Rank() != b.Priority.Rank() {
			return a.Priority.Rank() > b.Priority.Rank()
		}
		if a.DaysOverdue != b.DaysOverdue {
			return a.DaysOverdue > b.DaysOverdue
		}
		return a.CreatedAt.Before(b.CreatedAt)
	})
}
