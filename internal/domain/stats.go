package domain

import (
	"math"
	"time"

	"github.com/shopspring/decimal"

	"github.com/segyhp/collections-engine/pkg/utils"
)

// Stats summarises the case portfolio of a clinic
type Stats struct {
	TotalNotifications   int             `json:"total_notifications"`
	PendingNotifications int             `json:"pending_notifications"`
	TotalOwed            decimal.Decimal `json:"total_owed"`
	AverageDaysOverdue   int             `json:"average_days_overdue"`
	CriticalCount        int             `json:"critical_count"`
	ResolvedThisMonth    int             `json:"resolved_this_month"`
}

// ComputeStats reduces an already refreshed case set. It is never persisted.
func ComputeStats(cases []*DelinquencyCase, now time.Time, loc *time.Location) Stats {
	stats := Stats{TotalOwed: decimal.Zero}
	totalDays := 0

	for _, c := range cases {
		stats.TotalNotifications++
		stats.TotalOwed = stats.TotalOwed.Add(c.TotalOwed)
		totalDays += c.DaysOverdue

		if c.Status == CaseStatusPending {
			stats.PendingNotifications++
		}
		if c.Priority == PriorityCritical {
			stats.CriticalCount++
		}
		if c.Status == CaseStatusResolved && c.ResolvedAt != nil && utils.SameMonth(*c.ResolvedAt, now, loc) {
			stats.ResolvedThisMonth++
		}
	}

	if stats.TotalNotifications > 0 {
		stats.AverageDaysOverdue = int(math.Round(float64(totalDays) / float64(stats.TotalNotifications)))
	}

	return stats
}
