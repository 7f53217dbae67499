package domain

import (
	"errors"
	"testing"
	"time"

	"github.com/shopspring/decimal"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	customError "github.com/segyhp/collections-engine/pkg/errors"
)

var testNow = time.Date(2024, 6, 20, 14, 30, 0, 0, time.UTC)

func daysAgo(n int) time.Time {
	return time.Date(2024, 6, 20, 0, 0, 0, 0, time.UTC).AddDate(0, 0, -n)
}

func TestNewCaseFromObligation_InvoicePercentageFee(t *testing.T) {
	settings := DefaultSettings()
	settings.LateFeeEnabled = true
	settings.LateFeeType = LateFeePercentage
	settings.LateFeeAmount = decimal.RequireFromString("0.05")

	invoice := &Invoice{
		ID:         "INV-1",
		PatientID:  "PAT-1",
		Number:     "F-0001",
		Total:      decimal.NewFromInt(1000),
		PaidAmount: decimal.Zero,
		DueDate:    daysAgo(40),
		Status:     "issued",
		Currency:   "CLP",
	}

	c := NewCaseFromObligation("CLINIC-1", invoice, settings, testNow, time.UTC)

	assert.Equal(t, CaseStatusPending, c.Status)
	assert.Equal(t, 40, c.DaysOverdue)
	assert.True(t, c.OverdueAmount.Equal(decimal.NewFromInt(1000)))
	assert.True(t, c.LateFeeAmount.Equal(decimal.NewFromInt(50)), "late fee %s", c.LateFeeAmount)
	assert.True(t, c.TotalOwed.Equal(decimal.NewFromInt(1050)))
	assert.Equal(t, PriorityHigh, c.Priority)
	assert.Equal(t, NoticeFinal, c.NoticeStage)
	require.NotNil(t, c.InvoiceID)
	assert.Equal(t, "INV-1", *c.InvoiceID)
	assert.Nil(t, c.FinancingPaymentID)
	require.NotNil(t, c.Details.Invoice)
	assert.Equal(t, "F-0001", c.Details.Invoice.InvoiceNumber)
	assert.Equal(t, 1, c.Version)
}

func TestNewCaseFromObligation_FinancingPartialPayment(t *testing.T) {
	settings := DefaultSettings()
	settings.Currency = "USD"

	payment := &FinancingPayment{
		ID:                "FP-7",
		PatientID:         "PAT-2",
		PlanID:            "PLAN-1",
		PlanName:          "Ortodoncia",
		InstallmentNumber: 3,
		ScheduledAmount:   decimal.RequireFromString("250.00"),
		PaidAmount:        decimal.RequireFromString("100.00"),
		DueDate:           daysAgo(5),
	}

	c := NewCaseFromObligation("CLINIC-1", payment, settings, testNow, time.UTC)

	assert.Equal(t, "USD", c.Currency)
	assert.True(t, c.OriginalAmount.Equal(decimal.NewFromInt(250)))
	assert.True(t, c.OverdueAmount.Equal(decimal.NewFromInt(150)))
	assert.True(t, c.LateFeeAmount.IsZero())
	assert.True(t, c.TotalOwed.Equal(decimal.NewFromInt(150)))
	assert.Equal(t, PriorityLow, c.Priority)
	require.NotNil(t, c.FinancingPaymentID)
	assert.Equal(t, ObligationRef{Source: SourceFinancing, ID: "FP-7"}, c.ObligationRef())
	assert.Contains(t, c.Title, "#3")
}

func TestRefresh_AgesOneDayPerDay(t *testing.T) {
	settings := DefaultSettings()
	c := NewCaseFromObligation("CLINIC-1", &Invoice{ID: "I", Total: decimal.NewFromInt(10), DueDate: daysAgo(3)}, settings, testNow, time.UTC)

	prev := c.DaysOverdue
	for i := 1; i <= 90; i++ {
		c.Refresh(settings, testNow.AddDate(0, 0, i), time.UTC)
		assert.Equal(t, prev+1, c.DaysOverdue)
		prev = c.DaysOverdue
	}
}

func TestNewCaseFromObligation_DateColumnInClinicZone(t *testing.T) {
	loc, err := time.LoadLocation("America/Santiago")
	if err != nil {
		t.Skip("timezone database not available")
	}
	// noon in Santiago; DATE columns are scanned as midnight with a zero offset
	now := time.Date(2026, 10, 16, 12, 0, 0, 0, loc)

	tests := []struct {
		name     string
		dueDate  time.Time
		expected int
	}{
		{"forty days", time.Date(2026, 9, 6, 0, 0, 0, 0, time.UTC), 40},
		{"due yesterday", time.Date(2026, 10, 15, 0, 0, 0, 0, time.UTC), 1},
		{"due today", time.Date(2026, 10, 16, 0, 0, 0, 0, time.UTC), 0},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			invoice := &Invoice{ID: "INV-1", Total: decimal.NewFromInt(1000), DueDate: tt.dueDate}

			c := NewCaseFromObligation("CLINIC-1", invoice, DefaultSettings(), now, loc)

			assert.Equal(t, tt.expected, c.DaysOverdue)
		})
	}
}

func TestSameInstance_DateColumnVersusLocalDate(t *testing.T) {
	loc, err := time.LoadLocation("America/Santiago")
	if err != nil {
		t.Skip("timezone database not available")
	}
	stored := &Invoice{ID: "INV-1", Total: decimal.NewFromInt(10), DueDate: time.Date(2026, 9, 10, 0, 0, 0, 0, time.UTC)}
	c := NewCaseFromObligation("CLINIC-1", stored, DefaultSettings(), time.Date(2026, 10, 16, 12, 0, 0, 0, loc), loc)

	sameDay := *stored
	sameDay.DueDate = time.Date(2026, 9, 10, 0, 0, 0, 0, loc)

	assert.True(t, c.SameInstance(&sameDay))
}

func TestRefresh_TerminalCaseStopsAging(t *testing.T) {
	settings := DefaultSettings()
	c := NewCaseFromObligation("CLINIC-1", &Invoice{ID: "I", Total: decimal.NewFromInt(10), DueDate: daysAgo(10)}, settings, testNow, time.UTC)

	_, err := c.Transition(CaseStatusResolved, "user-1", "", testNow)
	require.NoError(t, err)

	c.Refresh(settings, testNow.AddDate(0, 0, 30), time.UTC)
	assert.Equal(t, 10, c.DaysOverdue)
}

func TestTransition(t *testing.T) {
	all := []CaseStatus{CaseStatusPending, CaseStatusSent, CaseStatusViewed, CaseStatusResolved, CaseStatusCancelled}
	allowed := map[[2]CaseStatus]bool{
		{CaseStatusPending, CaseStatusSent}:      true,
		{CaseStatusPending, CaseStatusResolved}:  true,
		{CaseStatusPending, CaseStatusCancelled}: true,
		{CaseStatusSent, CaseStatusViewed}:       true,
		{CaseStatusSent, CaseStatusResolved}:     true,
		{CaseStatusSent, CaseStatusCancelled}:    true,
		{CaseStatusViewed, CaseStatusResolved}:   true,
		{CaseStatusViewed, CaseStatusCancelled}:  true,
	}

	for _, from := range all {
		for _, to := range all {
			if from == to {
				continue
			}
			name := string(from) + "->" + string(to)
			t.Run(name, func(t *testing.T) {
				c := &DelinquencyCase{Status: from}
				change, err := c.Transition(to, "user-1", "", testNow)

				if allowed[[2]CaseStatus{from, to}] {
					require.NoError(t, err)
					require.NotNil(t, change)
					assert.Equal(t, from, change.FromStatus)
					assert.Equal(t, to, change.ToStatus)
					assert.Equal(t, to, c.Status)
					return
				}

				assert.True(t, errors.Is(err, customError.ErrInvalidTransition))
				assert.Nil(t, change)
				assert.Equal(t, from, c.Status)

				be, ok := customError.As(err)
				require.True(t, ok)
				assert.Equal(t, string(from), be.Details["current_status"])
				assert.Equal(t, string(to), be.Details["requested_status"])
			})
		}
	}
}

func TestTransition_Timestamps(t *testing.T) {
	resolved := &DelinquencyCase{Status: CaseStatusPending}
	_, err := resolved.Transition(CaseStatusResolved, "user-1", "paid at desk", testNow)
	require.NoError(t, err)
	require.NotNil(t, resolved.ResolvedAt)
	assert.Equal(t, testNow, *resolved.ResolvedAt)
	assert.Equal(t, testNow, resolved.UpdatedAt)

	cancelled := &DelinquencyCase{Status: CaseStatusSent}
	_, err = cancelled.Transition(CaseStatusCancelled, "user-1", "", testNow)
	require.NoError(t, err)
	assert.Nil(t, cancelled.ResolvedAt)
	require.NotNil(t, cancelled.ClosedAt)
}

func TestTransition_SameStatusIsNoOp(t *testing.T) {
	c := &DelinquencyCase{Status: CaseStatusSent}

	change, err := c.Transition(CaseStatusSent, "user-1", "", testNow)

	assert.NoError(t, err)
	assert.Nil(t, change)
	assert.True(t, c.UpdatedAt.IsZero())
}

func TestTransition_UnknownStatus(t *testing.T) {
	c := &DelinquencyCase{Status: CaseStatusPending}

	_, err := c.Transition(CaseStatus("Archivado"), "user-1", "", testNow)

	assert.True(t, errors.Is(err, customError.ErrValidation))
}

func TestReopen(t *testing.T) {
	c := &DelinquencyCase{Status: CaseStatusPending}
	_, err := c.Transition(CaseStatusResolved, "user-1", "", testNow)
	require.NoError(t, err)

	change, err := c.Reopen("user-2", "payment bounced", testNow.Add(time.Hour))

	require.NoError(t, err)
	assert.Equal(t, CaseStatusResolved, change.FromStatus)
	assert.Equal(t, CaseStatusPending, change.ToStatus)
	assert.Equal(t, CaseStatusPending, c.Status)
	assert.Nil(t, c.ResolvedAt)
	assert.Nil(t, c.ClosedAt)

	_, err = c.Reopen("user-2", "", testNow)
	assert.True(t, errors.Is(err, customError.ErrInvalidTransition))
}

func TestSameInstance(t *testing.T) {
	invoice := &Invoice{ID: "INV-1", Total: decimal.NewFromInt(10), DueDate: daysAgo(10)}
	c := NewCaseFromObligation("CLINIC-1", invoice, DefaultSettings(), testNow, time.UTC)

	assert.True(t, c.SameInstance(invoice))

	rescheduled := *invoice
	rescheduled.DueDate = daysAgo(2)
	assert.False(t, c.SameInstance(&rescheduled))

	other := *invoice
	other.ID = "INV-2"
	assert.False(t, c.SameInstance(&other))
}

func TestCaseDetails_ScanValue(t *testing.T) {
	in := CaseDetails{Financing: &FinancingDetails{PlanID: "P1", InstallmentNumber: 2}}

	raw, err := in.Value()
	require.NoError(t, err)

	var out CaseDetails
	require.NoError(t, out.Scan(raw))
	assert.Equal(t, in, out)

	require.NoError(t, out.Scan(nil))
	assert.Nil(t, out.Financing)

	assert.Error(t, out.Scan(42))
}
