package config

import (
	"fmt"
	"net/url"
	"strings"
	"time"
	_ "time/tzdata"

	"github.com/joho/godotenv"
	"github.com/shopspring/decimal"
	"github.com/spf13/viper"
)

// Config holds all configuration for our application
type Config struct {
	Server      ServerConfig
	Database    DatabaseConfig
	Redis       RedisConfig
	Scheduler   SchedulerConfig
	Logging     LoggingConfig
	Collections CollectionsConfig
	Notifier    NotifierConfig
	Health      HealthConfig
}

type ServerConfig struct {
	Port         string
	Host         string
	Env          string
	ReadTimeout  string
	WriteTimeout string
}

type DatabaseConfig struct {
	URL             string
	Host            string
	Port            string
	Name            string
	User            string
	Password        string
	SSLMode         string
	MaxOpenConns    int
	MaxIdleConns    int
	ConnMaxLifetime string
}

type RedisConfig struct {
	URL      string
	Host     string
	Port     string
	Password string
	DB       int
}

type SchedulerConfig struct {
	Timezone         string
	DetectionCron    string
	NoticeCron       string
	ReminderCron     string
	DetectionTimeout string
}

type LoggingConfig struct {
	Level  string
	Format string
}

type CollectionsConfig struct {
	ClinicIDs                 []string
	SourceTimeout             string
	DetectionLockTTL          string
	SettingsCacheTTL          string
	DefaultMinDaysOverdue     int
	DefaultHighValueThreshold string
	DefaultCurrency           string
}

type NotifierConfig struct {
	SendGridAPIKey string
	FromEmail      string
	FromName       string
}

type HealthConfig struct {
	Timeout string
}

func setDefaults(v *viper.Viper) {
	v.SetDefault("SERVER_PORT", "8080")
	v.SetDefault("SERVER_HOST", "0.0.0.0")
	v.SetDefault("ENV", "development")
	v.SetDefault("SERVER_READ_TIMEOUT", "15s")
	v.SetDefault("SERVER_WRITE_TIMEOUT", "30s")

	v.SetDefault("DATABASE_HOST", "localhost")
	v.SetDefault("DATABASE_PORT", "5432")
	v.SetDefault("DATABASE_NAME", "collections")
	v.SetDefault("DATABASE_USER", "postgres")
	v.SetDefault("DATABASE_SSLMODE", "disable")
	v.SetDefault("DATABASE_MAX_OPEN_CONNS", 25)
	v.SetDefault("DATABASE_MAX_IDLE_CONNS", 5)
	v.SetDefault("DATABASE_CONN_MAX_LIFETIME", "5m")

	v.SetDefault("REDIS_HOST", "localhost")
	v.SetDefault("REDIS_PORT", "6379")
	v.SetDefault("REDIS_DB", 0)

	v.SetDefault("SCHEDULER_TIMEZONE", "America/Santiago")
	v.SetDefault("DETECTION_CRON", "0 0 6 * * *")
	v.SetDefault("NOTICE_CRON", "0 0 9 * * *")
	v.SetDefault("REMINDER_CRON", "0 30 8 * * *")
	v.SetDefault("DETECTION_TIMEOUT", "5m")

	v.SetDefault("LOG_LEVEL", "info")
	v.SetDefault("LOG_FORMAT", "json")

	v.SetDefault("CLINIC_IDS", "")
	v.SetDefault("SOURCE_TIMEOUT", "30s")
	v.SetDefault("DETECTION_LOCK_TTL", "10m")
	v.SetDefault("SETTINGS_CACHE_TTL", "10m")
	v.SetDefault("DEFAULT_MIN_DAYS_OVERDUE", 1)
	v.SetDefault("DEFAULT_HIGH_VALUE_THRESHOLD", "0")
	v.SetDefault("DEFAULT_CURRENCY", "CLP")

	v.SetDefault("SENDGRID_API_KEY", "")
	v.SetDefault("NOTIFIER_FROM_EMAIL", "cobranzas@clinic.local")
	v.SetDefault("NOTIFIER_FROM_NAME", "Cobranzas")

	v.SetDefault("HEALTH_CHECK_TIMEOUT", "5s")
}

// Load reads configuration from environment variables and an optional .env file
func Load() (*Config, error) {
	// Don't fail if .env file doesn't exist
	_ = godotenv.Load()

	v := viper.New()
	setDefaults(v)
	v.AutomaticEnv()

	return FromViper(v)
}

// FromViper builds and validates the configuration from an already populated viper instance
func FromViper(v *viper.Viper) (*Config, error) {
	config := &Config{
		Server: ServerConfig{
			Port:         v.GetString("SERVER_PORT"),
			Host:         v.GetString("SERVER_HOST"),
			Env:          v.GetString("ENV"),
			ReadTimeout:  v.GetString("SERVER_READ_TIMEOUT"),
			WriteTimeout: v.GetString("SERVER_WRITE_TIMEOUT"),
		},
		Database: DatabaseConfig{
			URL:             v.GetString("DATABASE_URL"),
			Host:            v.GetString("DATABASE_HOST"),
			Port:            v.GetString("DATABASE_PORT"),
			Name:            v.GetString("DATABASE_NAME"),
			User:            v.GetString("DATABASE_USER"),
			Password:        v.GetString("DATABASE_PASSWORD"),
			SSLMode:         v.GetString("DATABASE_SSLMODE"),
			MaxOpenConns:    v.GetInt("DATABASE_MAX_OPEN_CONNS"),
			MaxIdleConns:    v.GetInt("DATABASE_MAX_IDLE_CONNS"),
			ConnMaxLifetime: v.GetString("DATABASE_CONN_MAX_LIFETIME"),
		},
		Redis: RedisConfig{
			URL:      v.GetString("REDIS_URL"),
			Host:     v.GetString("REDIS_HOST"),
			Port:     v.GetString("REDIS_PORT"),
			Password: v.GetString("REDIS_PASSWORD"),
			DB:       v.GetInt("REDIS_DB"),
		},
		Scheduler: SchedulerConfig{
			Timezone:         v.GetString("SCHEDULER_TIMEZONE"),
			DetectionCron:    v.GetString("DETECTION_CRON"),
			NoticeCron:       v.GetString("NOTICE_CRON"),
			ReminderCron:     v.GetString("REMINDER_CRON"),
			DetectionTimeout: v.GetString("DETECTION_TIMEOUT"),
		},
		Logging: LoggingConfig{
			Level:  v.GetString("LOG_LEVEL"),
			Format: v.GetString("LOG_FORMAT"),
		},
		Collections: CollectionsConfig{
			ClinicIDs:                 splitList(v.GetString("CLINIC_IDS")),
			SourceTimeout:             v.GetString("SOURCE_TIMEOUT"),
			DetectionLockTTL:          v.GetString("DETECTION_LOCK_TTL"),
			SettingsCacheTTL:          v.GetString("SETTINGS_CACHE_TTL"),
			DefaultMinDaysOverdue:     v.GetInt("DEFAULT_MIN_DAYS_OVERDUE"),
			DefaultHighValueThreshold: v.GetString("DEFAULT_HIGH_VALUE_THRESHOLD"),
			DefaultCurrency:           v.GetString("DEFAULT_CURRENCY"),
		},
		Notifier: NotifierConfig{
			SendGridAPIKey: v.GetString("SENDGRID_API_KEY"),
			FromEmail:      v.GetString("NOTIFIER_FROM_EMAIL"),
			FromName:       v.GetString("NOTIFIER_FROM_NAME"),
		},
		Health: HealthConfig{
			Timeout: v.GetString("HEALTH_CHECK_TIMEOUT"),
		},
	}

	// Validate configuration
	if err := config.Validate(); err != nil {
		return nil, fmt.Errorf("invalid configuration: %w", err)
	}

	return config, nil
}

func splitList(raw string) []string {
	var out []string
	for _, part := range strings.Split(raw, ",") {
		if part = strings.TrimSpace(part); part != "" {
			out = append(out, part)
		}
	}
	return out
}

// Validate checks if the configuration is valid
func (c *Config) Validate() error {
	if c.Server.Port == "" {
		return fmt.Errorf("SERVER_PORT is required")
	}

	if c.Database.URL == "" && c.Database.Host == "" {
		return fmt.Errorf("DATABASE_URL or DATABASE_HOST is required")
	}

	if c.Collections.DefaultMinDaysOverdue <= 0 {
		return fmt.Errorf("DEFAULT_MIN_DAYS_OVERDUE must be greater than 0")
	}

	threshold, err := decimal.NewFromString(c.Collections.DefaultHighValueThreshold)
	if err != nil {
		return fmt.Errorf("DEFAULT_HIGH_VALUE_THRESHOLD must be a valid decimal: %w", err)
	}
	if threshold.IsNegative() {
		return fmt.Errorf("DEFAULT_HIGH_VALUE_THRESHOLD must not be negative")
	}

	if len(c.Collections.DefaultCurrency) != 3 {
		return fmt.Errorf("DEFAULT_CURRENCY must be a 3 letter ISO code")
	}

	if _, err := time.LoadLocation(c.Scheduler.Timezone); err != nil {
		return fmt.Errorf("SCHEDULER_TIMEZONE must be a valid IANA zone: %w", err)
	}

	durations := map[string]string{
		"SERVER_READ_TIMEOUT":        c.Server.ReadTimeout,
		"SERVER_WRITE_TIMEOUT":       c.Server.WriteTimeout,
		"DATABASE_CONN_MAX_LIFETIME": c.Database.ConnMaxLifetime,
		"DETECTION_TIMEOUT":          c.Scheduler.DetectionTimeout,
		"SOURCE_TIMEOUT":             c.Collections.SourceTimeout,
		"DETECTION_LOCK_TTL":         c.Collections.DetectionLockTTL,
		"SETTINGS_CACHE_TTL":         c.Collections.SettingsCacheTTL,
		"HEALTH_CHECK_TIMEOUT":       c.Health.Timeout,
	}
	for key, value := range durations {
		if d, err := time.ParseDuration(value); err != nil || d <= 0 {
			return fmt.Errorf("%s must be a positive duration, got %q", key, value)
		}
	}

	return nil
}

// IsDevelopment returns true if running in development environment
func (c *Config) IsDevelopment() bool {
	return c.Server.Env == "development" || c.Server.Env == "dev"
}

// IsProduction returns true if running in production environment
func (c *Config) IsProduction() bool {
	return c.Server.Env == "production" || c.Server.Env == "prod"
}

// Addr is the listen address of the HTTP server
func (s ServerConfig) Addr() string {
	return s.Host + ":" + s.Port
}

func (s ServerConfig) GetReadTimeout() time.Duration {
	d, _ := time.ParseDuration(s.ReadTimeout)
	return d
}

func (s ServerConfig) GetWriteTimeout() time.Duration {
	d, _ := time.ParseDuration(s.WriteTimeout)
	return d
}

// DSN returns the postgres connection string, preferring DATABASE_URL
func (d DatabaseConfig) DSN() string {
	if d.URL != "" {
		return d.URL
	}
	u := url.URL{
		Scheme:   "postgres",
		User:     url.UserPassword(d.User, d.Password),
		Host:     d.Host + ":" + d.Port,
		Path:     "/" + d.Name,
		RawQuery: "sslmode=" + d.SSLMode,
	}
	return u.String()
}

func (d DatabaseConfig) GetConnMaxLifetime() time.Duration {
	lifetime, _ := time.ParseDuration(d.ConnMaxLifetime)
	return lifetime
}

// Addr returns host:port of the redis server
func (r RedisConfig) Addr() string {
	return r.Host + ":" + r.Port
}

// Location returns the zone used for calendar-day arithmetic and cron schedules
func (s SchedulerConfig) Location() *time.Location {
	loc, err := time.LoadLocation(s.Timezone)
	if err != nil {
		return time.UTC
	}
	return loc
}

func (s SchedulerConfig) GetDetectionTimeout() time.Duration {
	d, _ := time.ParseDuration(s.DetectionTimeout)
	return d
}

func (c CollectionsConfig) GetSourceTimeout() time.Duration {
	d, _ := time.ParseDuration(c.SourceTimeout)
	return d
}

func (c CollectionsConfig) GetDetectionLockTTL() time.Duration {
	d, _ := time.ParseDuration(c.DetectionLockTTL)
	return d
}

func (c CollectionsConfig) GetSettingsCacheTTL() time.Duration {
	d, _ := time.ParseDuration(c.SettingsCacheTTL)
	return d
}

// GetDefaultHighValueThreshold returns the fallback Crítica amount threshold as decimal
func (c CollectionsConfig) GetDefaultHighValueThreshold() decimal.Decimal {
	threshold, _ := decimal.NewFromString(c.DefaultHighValueThreshold)
	return threshold
}

// GetHealthTimeout returns the health check timeout as duration
func (c *Config) GetHealthTimeout() time.Duration {
	timeout, _ := time.ParseDuration(c.Health.Timeout)
	return timeout
}

// HasEmailDelivery reports whether notices can be delivered through SendGrid
func (n NotifierConfig) HasEmailDelivery() bool {
	return n.SendGridAPIKey != ""
}
