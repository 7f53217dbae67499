package service

import (
	"context"
	"errors"
	"log/slog"
	"time"

	"github.com/go-playground/validator/v10"

	"github.com/segyhp/collections-engine/internal/cache"
	"github.com/segyhp/collections-engine/internal/domain"
	"github.com/segyhp/collections-engine/internal/logger"
	"github.com/segyhp/collections-engine/internal/repository"
	customError "github.com/segyhp/collections-engine/pkg/errors"
)

// SettingsProvider reads clinic settings through a cache and falls back to the
// configured defaults for clinics that never saved any
type SettingsProvider struct {
	repo     repository.SettingsRepository
	cache    cache.SettingsCache
	defaults domain.Settings
	validate *validator.Validate
	now      func() time.Time
	log      *slog.Logger
}

func NewSettingsProvider(repo repository.SettingsRepository, c cache.SettingsCache, defaults domain.Settings) *SettingsProvider {
	if c == nil {
		c = cache.NopSettingsCache{}
	}
	return &SettingsProvider{
		repo:     repo,
		cache:    c,
		defaults: defaults,
		validate: newValidator(),
		now:      time.Now,
		log:      logger.WithService("settings"),
	}
}

// Get returns the effective settings of a clinic
func (p *SettingsProvider) Get(ctx context.Context, clinicID string) (domain.Settings, error) {
	cached, err := p.cache.Get(ctx, clinicID)
	if err != nil {
		p.log.WarnContext(ctx, "settings cache read failed", "clinic_id", clinicID, "error", err)
	}
	if cached != nil {
		return *cached, nil
	}

	stored, err := p.repo.Get(ctx, clinicID)
	switch {
	case errors.Is(err, customError.ErrNotFound):
		s := p.defaults
		stored = &s
	case err != nil:
		return domain.Settings{}, customError.WrapDatabaseError(err)
	}

	if err := p.cache.Set(ctx, clinicID, stored); err != nil {
		p.log.WarnContext(ctx, "settings cache write failed", "clinic_id", clinicID, "error", err)
	}
	return *stored, nil
}

// Update validates and stores new settings for a clinic
func (p *SettingsProvider) Update(ctx context.Context, clinicID string, s domain.Settings) (domain.Settings, error) {
	if s.LateFeeType == "" {
		s.LateFeeType = domain.LateFeeFixed
	}
	if err := p.validate.Struct(s); err != nil {
		return domain.Settings{}, validationError(err)
	}
	if err := s.ValidateAmounts(); err != nil {
		return domain.Settings{}, err
	}
	if s.Currency == "" {
		s.Currency = p.defaults.Currency
	}

	s.UpdatedAt = p.now()
	if err := p.repo.Save(ctx, clinicID, &s); err != nil {
		return domain.Settings{}, customError.WrapDatabaseError(err)
	}

	if err := p.cache.Invalidate(ctx, clinicID); err != nil {
		p.log.WarnContext(ctx, "settings cache invalidation failed", "clinic_id", clinicID, "error", err)
	}

	return s, nil
}

// GetSettings returns the effective settings of a clinic
func (s *CollectionsService) GetSettings(ctx context.Context, clinicID string) (domain.Settings, error) {
	return s.Settings.Get(ctx, clinicID)
}

// UpdateSettings validates and stores the settings of a clinic
func (s *CollectionsService) UpdateSettings(ctx context.Context, clinicID string, settings domain.Settings) (domain.Settings, error) {
	return s.Settings.Update(ctx, clinicID, settings)
}
