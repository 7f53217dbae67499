package service

import (
	"context"
	"errors"
	"testing"
	"time"

	"github.com/google/uuid"
	"github.com/shopspring/decimal"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/mock"
	"github.com/stretchr/testify/require"

	"github.com/segyhp/collections-engine/internal/domain"
	customError "github.com/segyhp/collections-engine/pkg/errors"
)

// seedPortfolio detects a mixed set of cases and resolves one of them
func seedPortfolio(t *testing.T, env *testEnv) {
	t.Helper()

	env.invoices.set(
		overdueInvoice("inv-1", 1000, 40),
		overdueInvoice("inv-2", 200, 3),
		overdueInvoice("inv-3", 5000, 90),
	)
	env.financing.set(overdueInstallment("fp-1", 300, 20))
	result, err := env.svc.RunDetection(context.Background(), testClinic, DetectOptions{})
	require.NoError(t, err)
	require.Equal(t, 4, result.CreatedCount)

	for _, c := range result.Cases {
		if c.InvoiceID != nil && *c.InvoiceID == "inv-2" {
			_, err := env.svc.UpdateCaseStatus(context.Background(), testClinic, c.ID, "staff-1",
				StatusUpdate{Status: string(domain.CaseStatusResolved)})
			require.NoError(t, err)
		}
	}
}

func expectEmbedding(env *testEnv) {
	env.patients.On("GetByIDs", mock.Anything, testClinic, mock.Anything).
		Return(map[string]*domain.Patient{"patient-inv-1": {ID: "patient-inv-1", FirstName: "Ana"}}, nil).Maybe()
	env.actions.On("ListByCases", mock.Anything, mock.Anything).
		Return(map[uuid.UUID][]*domain.DelinquencyAction{}, nil).Maybe()
}

func TestListCases_Filters(t *testing.T) {
	env := newTestEnv(t, percentageSettings())
	seedPortfolio(t, env)
	expectEmbedding(env)

	tests := []struct {
		name      string
		query     CaseQuery
		wantCount int
	}{
		{name: "no filters", query: CaseQuery{}, wantCount: 4},
		{name: "status", query: CaseQuery{Status: "Pendiente"}, wantCount: 3},
		{name: "resolved", query: CaseQuery{Status: "Resuelto"}, wantCount: 1},
		{name: "priority", query: CaseQuery{Priority: "Crítica"}, wantCount: 1},
		{name: "status and priority", query: CaseQuery{Status: "Pendiente", Priority: "Media"}, wantCount: 1},
		{name: "search", query: CaseQuery{Search: "installment"}, wantCount: 1},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			cases, err := env.svc.ListCases(context.Background(), testClinic, tt.query)

			require.NoError(t, err)
			assert.Len(t, cases, tt.wantCount)
			for _, c := range cases {
				assert.NotNil(t, c.Actions)
			}
		})
	}
}

func TestListCases_InvalidFilters(t *testing.T) {
	env := newTestEnv(t, domain.DefaultSettings())

	_, err := env.svc.ListCases(context.Background(), testClinic, CaseQuery{Status: "Abierto"})
	assert.True(t, errors.Is(err, customError.ErrValidation))

	_, err = env.svc.ListCases(context.Background(), testClinic, CaseQuery{Priority: "Urgente"})
	assert.True(t, errors.Is(err, customError.ErrValidation))
}

func TestListCases_EmbedsPatientAndOrders(t *testing.T) {
	env := newTestEnv(t, percentageSettings())
	seedPortfolio(t, env)
	expectEmbedding(env)

	cases, err := env.svc.ListCases(context.Background(), testClinic, CaseQuery{})

	require.NoError(t, err)
	require.Len(t, cases, 4)
	assert.Equal(t, domain.PriorityCritical, cases[0].Priority)
	for i := 1; i < len(cases); i++ {
		assert.GreaterOrEqual(t, cases[i-1].Priority.Rank(), cases[i].Priority.Rank())
	}

	for _, c := range cases {
		if c.InvoiceID != nil && *c.InvoiceID == "inv-1" {
			require.NotNil(t, c.Patient)
			assert.Equal(t, "Ana", c.Patient.FirstName)
		}
	}
}

func TestListCases_RecomputesAging(t *testing.T) {
	env := newTestEnv(t, percentageSettings())
	env.invoices.set(overdueInvoice("inv-1", 1000, 40))
	_, err := env.svc.RunDetection(context.Background(), testClinic, DetectOptions{})
	require.NoError(t, err)
	expectEmbedding(env)

	// twenty days later the stored case has not been refreshed yet
	env.svc.now = func() time.Time { return testNow.AddDate(0, 0, 20) }
	cases, err := env.svc.ListCases(context.Background(), testClinic, CaseQuery{})

	require.NoError(t, err)
	require.Len(t, cases, 1)
	assert.Equal(t, 60, cases[0].DaysOverdue)
	assert.Equal(t, domain.PriorityCritical, cases[0].Priority)
}

func TestGetCase_IncludesHistory(t *testing.T) {
	env := newTestEnv(t, domain.DefaultSettings())
	c := seedCase(t, env, domain.CaseStatusPending)
	_, err := env.svc.UpdateCaseStatus(context.Background(), testClinic, c.ID, "staff-1", StatusUpdate{Status: "Enviado"})
	require.NoError(t, err)
	expectEmbedding(env)

	got, err := env.svc.GetCase(context.Background(), testClinic, c.ID)

	require.NoError(t, err)
	require.Len(t, got.History, 1)
	assert.Equal(t, domain.CaseStatusSent, got.History[0].ToStatus)
	assert.NotNil(t, got.Actions)
}

func TestGetStats_ConsistentWithListing(t *testing.T) {
	// Arrange
	env := newTestEnv(t, percentageSettings())
	seedPortfolio(t, env)
	expectEmbedding(env)

	// Act
	stats, err := env.svc.GetStats(context.Background(), testClinic)
	require.NoError(t, err)
	all, err := env.svc.ListCases(context.Background(), testClinic, CaseQuery{})
	require.NoError(t, err)
	pending, err := env.svc.ListCases(context.Background(), testClinic, CaseQuery{Status: "Pendiente"})
	require.NoError(t, err)

	// Assert
	assert.Equal(t, len(all), stats.TotalNotifications)
	assert.Equal(t, len(pending), stats.PendingNotifications)
	assert.Equal(t, 1, stats.CriticalCount)
	assert.Equal(t, 1, stats.ResolvedThisMonth)

	total := decimal.Zero
	days := 0
	for _, c := range all {
		total = total.Add(c.TotalOwed)
		days += c.DaysOverdue
	}
	assert.True(t, stats.TotalOwed.Equal(total), "want %s got %s", total, stats.TotalOwed)
	// (40 + 3 + 90 + 20) / 4 = 38.25
	assert.Equal(t, 38, stats.AverageDaysOverdue)
	assert.Equal(t, 153, days)
}

func TestGetStats_EmptyPortfolio(t *testing.T) {
	env := newTestEnv(t, domain.DefaultSettings())

	stats, err := env.svc.GetStats(context.Background(), testClinic)

	require.NoError(t, err)
	assert.Equal(t, 0, stats.TotalNotifications)
	assert.Equal(t, 0, stats.AverageDaysOverdue)
	assert.True(t, stats.TotalOwed.IsZero())
}
