package domain

import "github.com/shopspring/decimal"

// Age thresholds, in days overdue, for each severity tier
const (
	CriticalAfterDays = 60
	HighAfterDays     = 30
	MediumAfterDays   = 15
)

// ClassifyPriority maps age and amount owed to a severity tier. The higher of
// the two signals wins; a zero threshold disables the amount signal.
func ClassifyPriority(daysOverdue int, totalOwed, highValueThreshold decimal.Decimal) Priority {
	if daysOverdue >= CriticalAfterDays {
		return PriorityCritical
	}
	if highValueThreshold.IsPositive() && totalOwed.GreaterThan(highValueThreshold) {
		return PriorityCritical
	}

	switch {
	case daysOverdue >= HighAfterDays:
		return PriorityHigh
	case daysOverdue >= MediumAfterDays:
		return PriorityMedium
	default:
		return PriorityLow
	}
}
