package repository

import (
	"context"
	"database/sql"
	"errors"

	"github.com/jmoiron/sqlx"

	"github.com/segyhp/collections-engine/internal/domain"
	customError "github.com/segyhp/collections-engine/pkg/errors"
)

type settingsRepository struct {
	db *sqlx.DB
}

func NewSettingsRepository(db *sqlx.DB) SettingsRepository {
	return &settingsRepository{db: db}
}

func (r *settingsRepository) Get(ctx context.Context, clinicID string) (*domain.Settings, error) {
	query := `
		SELECT reminder_lead_days, first_notice_days, second_notice_days, final_notice_days,
		       min_days_overdue, late_fee_enabled, late_fee_type, late_fee_amount, late_fee_accrual_days,
		       high_value_threshold, auto_send_notices, auto_resolve_paid,
		       contact_name, contact_phone, contact_email, currency, updated_at
		FROM collection_settings
		WHERE clinic_id = $1
	`

	var s domain.Settings
	err := r.db.GetContext(ctx, &s, query, clinicID)
	if errors.Is(err, sql.ErrNoRows) {
		return nil, customError.WrapNotFound("settings", clinicID)
	}
	if err != nil {
		return nil, err
	}

	return &s, nil
}

func (r *settingsRepository) Save(ctx context.Context, clinicID string, s *domain.Settings) error {
	query := `
		INSERT INTO collection_settings (
			clinic_id, reminder_lead_days, first_notice_days, second_notice_days, final_notice_days,
			min_days_overdue, late_fee_enabled, late_fee_type, late_fee_amount, late_fee_accrual_days,
			high_value_threshold, auto_send_notices, auto_resolve_paid,
			contact_name, contact_phone, contact_email, currency, updated_at
		) VALUES ($1, $2, $3, $4, $5, $6, $7, $8, $9, $10, $11, $12, $13, $14, $15, $16, $17, $18)
		ON CONFLICT (clinic_id) DO UPDATE SET
			reminder_lead_days = EXCLUDED.reminder_lead_days,
			first_notice_days = EXCLUDED.first_notice_days,
			second_notice_days = EXCLUDED.second_notice_days,
			final_notice_days = EXCLUDED.final_notice_days,
			min_days_overdue = EXCLUDED.min_days_overdue,
			late_fee_enabled = EXCLUDED.late_fee_enabled,
			late_fee_type = EXCLUDED.late_fee_type,
			late_fee_amount = EXCLUDED.late_fee_amount,
			late_fee_accrual_days = EXCLUDED.late_fee_accrual_days,
			high_value_threshold = EXCLUDED.high_value_threshold,
			auto_send_notices = EXCLUDED.auto_send_notices,
			auto_resolve_paid = EXCLUDED.auto_resolve_paid,
			contact_name = EXCLUDED.contact_name,
			contact_phone = EXCLUDED.contact_phone,
			contact_email = EXCLUDED.contact_email,
			currency = EXCLUDED.currency,
			updated_at = EXCLUDED.updated_at
	`

	_, err := r.db.ExecContext(ctx, query,
		clinicID,
		s.ReminderLeadDays,
		s.FirstNoticeDays,
		s.SecondNoticeDays,
		s.FinalNoticeDays,
		s.MinDaysOverdue,
		s.LateFeeEnabled,
		s.LateFeeType,
		s.LateFeeAmount,
		s.LateFeeAccrualDays,
		s.HighValueThreshold,
		s.AutoSendNotices,
		s.AutoResolvePaid,
		s.ContactName,
		s.ContactPhone,
		s.ContactEmail,
		s.Currency,
		s.UpdatedAt,
	)

	return err
}
