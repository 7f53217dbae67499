package domain

import (
	"time"

	"github.com/shopspring/decimal"

	customError "github.com/segyhp/collections-engine/pkg/errors"
	"github.com/segyhp/collections-engine/pkg/utils"
)

// LateFeeType selects how the penalty is computed
type LateFeeType string

const (
	LateFeeFixed      LateFeeType = "fixed"
	LateFeePercentage LateFeeType = "percentage"
)

// Settings holds the per-clinic collection thresholds. It is passed explicitly
// into detection and classification; nothing reads it from global state.
type Settings struct {
	ReminderLeadDays   int             `json:"reminder_lead_days" db:"reminder_lead_days" validate:"gte=0"`
	FirstNoticeDays    int             `json:"first_notice_days" db:"first_notice_days" validate:"gte=0"`
	SecondNoticeDays   int             `json:"second_notice_days" db:"second_notice_days" validate:"gtefield=FirstNoticeDays"`
	FinalNoticeDays    int             `json:"final_notice_days" db:"final_notice_days" validate:"gtefield=SecondNoticeDays"`
	MinDaysOverdue     int             `json:"min_days_overdue" db:"min_days_overdue" validate:"gte=1"`
	LateFeeEnabled     bool            `json:"late_fee_enabled" db:"late_fee_enabled"`
	LateFeeType        LateFeeType     `json:"late_fee_type" db:"late_fee_type" validate:"oneof=fixed percentage"`
	LateFeeAmount      decimal.Decimal `json:"late_fee_amount" db:"late_fee_amount"`
	LateFeeAccrualDays int             `json:"late_fee_accrual_days" db:"late_fee_accrual_days" validate:"gte=0"`
	HighValueThreshold decimal.Decimal `json:"high_value_threshold" db:"high_value_threshold"`
	AutoSendNotices    bool            `json:"auto_send_notices" db:"auto_send_notices"`
	AutoResolvePaid    bool            `json:"auto_resolve_paid" db:"auto_resolve_paid"`
	ContactName        string          `json:"contact_name" db:"contact_name"`
	ContactPhone       string          `json:"contact_phone" db:"contact_phone"`
	ContactEmail       string          `json:"contact_email" db:"contact_email" validate:"omitempty,email"`
	Currency           string          `json:"currency" db:"currency" validate:"omitempty,len=3"`
	UpdatedAt          time.Time       `json:"updated_at" db:"updated_at"`
}

// DefaultSettings returns the thresholds used when a clinic never saved any
func DefaultSettings() Settings {
	return Settings{
		ReminderLeadDays:   3,
		FirstNoticeDays:    1,
		SecondNoticeDays:   15,
		FinalNoticeDays:    30,
		MinDaysOverdue:     1,
		LateFeeType:        LateFeeFixed,
		LateFeeAmount:      decimal.Zero,
		HighValueThreshold: decimal.Zero,
		AutoResolvePaid:    true,
	}
}

// ValidateAmounts checks the decimal fields the struct tags cannot express
func (s Settings) ValidateAmounts() error {
	if s.LateFeeAmount.IsNegative() {
		return customError.WrapValidation("late_fee_amount", "late fee amount must not be negative")
	}
	if s.LateFeeType == LateFeePercentage && s.LateFeeAmount.GreaterThan(decimal.NewFromInt(1)) {
		return customError.WrapValidation("late_fee_amount", "percentage late fee is a fraction between 0 and 1")
	}
	if s.HighValueThreshold.IsNegative() {
		return customError.WrapValidation("high_value_threshold", "high value threshold must not be negative")
	}
	return nil
}

// LateFee computes the penalty for an overdue principal. The result is
// recomputed from scratch on every refresh and never accumulated. It is
// rounded to cents, so a percentage fee is proportional to the principal only
// within half a cent.
func (s Settings) LateFee(overdueAmount decimal.Decimal, daysOverdue int) decimal.Decimal {
	if !s.LateFeeEnabled || daysOverdue <= 0 {
		return decimal.Zero
	}

	var fee decimal.Decimal
	switch s.LateFeeType {
	case LateFeePercentage:
		fee = overdueAmount.Mul(s.LateFeeAmount)
	case LateFeeFixed:
		fee = s.LateFeeAmount
		if s.LateFeeAccrualDays > 0 {
			periods := int64(daysOverdue / s.LateFeeAccrualDays)
			fee = s.LateFeeAmount.Mul(decimal.NewFromInt(periods))
		}
	default:
		return decimal.Zero
	}

	return utils.NonNegative(utils.RoundCurrency(fee))
}

// NoticeStageFor maps an age in days to the notice the case is due for
func (s Settings) NoticeStageFor(daysOverdue int) NoticeStage {
	switch {
	case daysOverdue <= 0:
		return NoticeNone
	case daysOverdue >= s.FinalNoticeDays && s.FinalNoticeDays > 0:
		return NoticeFinal
	case daysOverdue >= s.SecondNoticeDays && s.SecondNoticeDays > 0:
		return NoticeSecond
	case daysOverdue >= s.FirstNoticeDays:
		return NoticeFirst
	}
	return NoticeNone
}
