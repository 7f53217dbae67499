// Package app wires the collections engine from configuration. The HTTP server
// and the scheduler share it.
package app

import (
	"context"
	"fmt"
	"time"

	"github.com/jmoiron/sqlx"
	_ "github.com/lib/pq"
	"github.com/redis/go-redis/v9"

	"github.com/segyhp/collections-engine/internal/cache"
	"github.com/segyhp/collections-engine/internal/config"
	"github.com/segyhp/collections-engine/internal/domain"
	"github.com/segyhp/collections-engine/internal/lock"
	"github.com/segyhp/collections-engine/internal/logger"
	"github.com/segyhp/collections-engine/internal/notifier"
	"github.com/segyhp/collections-engine/internal/repository"
	"github.com/segyhp/collections-engine/internal/service"
)

const lockPrefix = "collections:lock:"

type App struct {
	Config  *config.Config
	DB      *sqlx.DB
	Redis   *redis.Client
	Service *service.CollectionsService
}

// New connects to Postgres and Redis and builds the collections service
func New(cfg *config.Config) (*App, error) {
	db, err := initDB(cfg)
	if err != nil {
		return nil, fmt.Errorf("failed to initialize database: %w", err)
	}

	redisClient := initRedis(cfg)
	ctx, cancel := context.WithTimeout(context.Background(), 3*time.Second)
	defer cancel()
	if err := redisClient.Ping(ctx).Err(); err != nil {
		// settings fall back to the database and the lock degrades to the unique index
		logger.Warn("Redis unreachable at startup", "addr", cfg.Redis.Addr(), "error", err)
	}

	// Initialize repositories
	caseRepo := repository.NewCaseRepository(db)
	actionRepo := repository.NewActionRepository(db)
	patientRepo := repository.NewPatientRepository(db)
	settingsRepo := repository.NewSettingsRepository(db)
	sources := []repository.ObligationSource{
		repository.NewFinancingSource(db),
		repository.NewInvoiceSource(db),
	}

	settings := service.NewSettingsProvider(
		settingsRepo,
		cache.NewRedisSettingsCache(redisClient, cfg.Collections.GetSettingsCacheTTL()),
		DefaultSettings(cfg.Collections),
	)

	if !cfg.Notifier.HasEmailDelivery() {
		logger.Warn("SendGrid not configured, notices will only be logged")
	}
	n := notifier.New(cfg.Notifier.SendGridAPIKey, cfg.Notifier.FromEmail, cfg.Notifier.FromName)

	svc := service.NewCollectionsService(
		caseRepo,
		actionRepo,
		patientRepo,
		sources,
		settings,
		lock.NewRedisLocker(redisClient, lockPrefix),
		n,
		service.Options{
			Location:         cfg.Scheduler.Location(),
			SourceTimeout:    cfg.Collections.GetSourceTimeout(),
			DetectionLockTTL: cfg.Collections.GetDetectionLockTTL(),
		},
	)

	return &App{
		Config:  cfg,
		DB:      db,
		Redis:   redisClient,
		Service: svc,
	}, nil
}

// DefaultSettings applies the configured fallbacks on top of the built-in thresholds
func DefaultSettings(c config.CollectionsConfig) domain.Settings {
	s := domain.DefaultSettings()
	if c.DefaultMinDaysOverdue > 0 {
		s.MinDaysOverdue = c.DefaultMinDaysOverdue
	}
	s.HighValueThreshold = c.GetDefaultHighValueThreshold()
	s.Currency = c.DefaultCurrency
	return s
}

func (a *App) Close() {
	if err := a.Redis.Close(); err != nil {
		logger.Warn("Failed to close Redis client", "error", err)
	}
	if err := a.DB.Close(); err != nil {
		logger.Warn("Failed to close database", "error", err)
	}
}

func initDB(cfg *config.Config) (*sqlx.DB, error) {
	db, err := sqlx.Connect("postgres", cfg.Database.DSN())
	if err != nil {
		return nil, err
	}

	db.SetMaxOpenConns(cfg.Database.MaxOpenConns)
	db.SetMaxIdleConns(cfg.Database.MaxIdleConns)
	db.SetConnMaxLifetime(cfg.Database.GetConnMaxLifetime())

	return db, nil
}

func initRedis(cfg *config.Config) *redis.Client {
	return redis.NewClient(&redis.Options{
		Addr:     cfg.Redis.Addr(),
		Password: cfg.Redis.Password,
		DB:       cfg.Redis.DB,
	})
}
