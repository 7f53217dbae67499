package service

import (
	"context"
	"sort"
	"strings"
	"sync"
	"testing"
	"time"

	"github.com/google/uuid"
	"github.com/shopspring/decimal"
	"github.com/stretchr/testify/mock"

	"github.com/segyhp/collections-engine/internal/domain"
	"github.com/segyhp/collections-engine/internal/lock"
	"github.com/segyhp/collections-engine/internal/mocks"
	"github.com/segyhp/collections-engine/internal/repository"
	customError "github.com/segyhp/collections-engine/pkg/errors"
)

const testClinic = "clinic-1"

// testNow is the fixed "today" of every service test
var testNow = time.Date(2024, 6, 15, 10, 0, 0, 0, time.UTC)

func daysAgo(n int) time.Time {
	return time.Date(2024, 6, 15, 0, 0, 0, 0, time.UTC).AddDate(0, 0, -n)
}

// memoryCaseRepo is an in-memory CaseRepository enforcing the same rules as
// the Postgres one: one open case per obligation and version-guarded updates.
type memoryCaseRepo struct {
	mu      sync.Mutex
	cases   map[uuid.UUID]*domain.DelinquencyCase
	history []*domain.StatusChange
	creates int
}

func newMemoryCaseRepo() *memoryCaseRepo {
	return &memoryCaseRepo{cases: make(map[uuid.UUID]*domain.DelinquencyCase)}
}

func clone(c *domain.DelinquencyCase) *domain.DelinquencyCase {
	cp := *c
	return &cp
}

func (r *memoryCaseRepo) Create(_ context.Context, c *domain.DelinquencyCase) error {
	r.mu.Lock()
	defer r.mu.Unlock()

	for _, existing := range r.cases {
		if existing.IsOpen() && existing.ObligationRef() == c.ObligationRef() {
			return customError.WrapConflict("an open case already exists for this obligation")
		}
	}
	r.cases[c.ID] = clone(c)
	r.creates++
	return nil
}

func (r *memoryCaseRepo) GetByID(_ context.Context, clinicID string, id uuid.UUID) (*domain.DelinquencyCase, error) {
	r.mu.Lock()
	defer r.mu.Unlock()

	c, ok := r.cases[id]
	if !ok || c.ClinicID != clinicID {
		return nil, customError.WrapNotFound("case", id.String())
	}
	return clone(c), nil
}

func (r *memoryCaseRepo) List(_ context.Context, filter domain.CaseFilter) ([]*domain.DelinquencyCase, error) {
	r.mu.Lock()
	defer r.mu.Unlock()

	var out []*domain.DelinquencyCase
	for _, c := range r.cases {
		if c.ClinicID != filter.ClinicID {
			continue
		}
		if filter.Status != nil && c.Status != *filter.Status {
			continue
		}
		if filter.Search != "" && !strings.Contains(strings.ToLower(c.Title), strings.ToLower(filter.Search)) {
			continue
		}
		out = append(out, clone(c))
	}
	sort.Slice(out, func(i, j int) bool { return out[i].CreatedAt.Before(out[j].CreatedAt) })
	return out, nil
}

func (r *memoryCaseRepo) ListOpen(ctx context.Context, clinicID string) ([]*domain.DelinquencyCase, error) {
	all, _ := r.List(ctx, domain.CaseFilter{ClinicID: clinicID})
	var open []*domain.DelinquencyCase
	for _, c := range all {
		if c.IsOpen() {
			open = append(open, c)
		}
	}
	return open, nil
}

func (r *memoryCaseRepo) FindLatestByObligation(_ context.Context, clinicID string, ref domain.ObligationRef) (*domain.DelinquencyCase, error) {
	r.mu.Lock()
	defer r.mu.Unlock()

	var latest *domain.DelinquencyCase
	for _, c := range r.cases {
		if c.ClinicID != clinicID || c.ObligationRef() != ref {
			continue
		}
		if latest == nil || c.CreatedAt.After(latest.CreatedAt) {
			latest = c
		}
	}
	if latest == nil {
		return nil, customError.WrapNotFound("case", ref.String())
	}
	return clone(latest), nil
}

func (r *memoryCaseRepo) CountOpenByObligation(_ context.Context, ref domain.ObligationRef, excludeID uuid.UUID) (int, error) {
	r.mu.Lock()
	defer r.mu.Unlock()

	n := 0
	for _, c := range r.cases {
		if c.ID != excludeID && c.IsOpen() && c.ObligationRef() == ref {
			n++
		}
	}
	return n, nil
}

func (r *memoryCaseRepo) RefreshDerived(_ context.Context, c *domain.DelinquencyCase) error {
	r.mu.Lock()
	defer r.mu.Unlock()

	stored, ok := r.cases[c.ID]
	if !ok {
		return customError.WrapNotFound("case", c.ID.String())
	}
	stored.OriginalAmount = c.OriginalAmount
	stored.OverdueAmount = c.OverdueAmount
	stored.LateFeeAmount = c.LateFeeAmount
	stored.TotalOwed = c.TotalOwed
	stored.DaysOverdue = c.DaysOverdue
	stored.Priority = c.Priority
	stored.UpdatedAt = c.UpdatedAt
	return nil
}

func (r *memoryCaseRepo) Update(_ context.Context, c *domain.DelinquencyCase, expectedVersion int, change *domain.StatusChange) error {
	r.mu.Lock()
	defer r.mu.Unlock()

	stored, ok := r.cases[c.ID]
	if !ok {
		return customError.WrapNotFound("case", c.ID.String())
	}
	if stored.Version != expectedVersion {
		return customError.WrapConflict("case was modified concurrently")
	}
	if c.IsOpen() {
		for _, other := range r.cases {
			if other.ID != c.ID && other.IsOpen() && other.ObligationRef() == c.ObligationRef() {
				return customError.WrapConflict("an open case already exists for this obligation")
			}
		}
	}

	updated := clone(c)
	updated.Version = expectedVersion + 1
	r.cases[c.ID] = updated
	if change != nil {
		r.history = append(r.history, change)
	}
	c.Version = expectedVersion + 1
	return nil
}

func (r *memoryCaseRepo) ListHistory(_ context.Context, caseID uuid.UUID) ([]*domain.StatusChange, error) {
	r.mu.Lock()
	defer r.mu.Unlock()

	var out []*domain.StatusChange
	for _, h := range r.history {
		if h.CaseID == caseID {
			out = append(out, h)
		}
	}
	return out, nil
}

func (r *memoryCaseRepo) ListDueForFollowUp(ctx context.Context, clinicID string, until time.Time) ([]*domain.DelinquencyCase, error) {
	open, _ := r.ListOpen(ctx, clinicID)
	var out []*domain.DelinquencyCase
	for _, c := range open {
		if c.NextActionDate != nil && !c.NextActionDate.After(until) {
			out = append(out, c)
		}
	}
	return out, nil
}

func (r *memoryCaseRepo) openCount() int {
	r.mu.Lock()
	defer r.mu.Unlock()

	n := 0
	for _, c := range r.cases {
		if c.IsOpen() {
			n++
		}
	}
	return n
}

func (r *memoryCaseRepo) stored(id uuid.UUID) *domain.DelinquencyCase {
	r.mu.Lock()
	defer r.mu.Unlock()
	return clone(r.cases[id])
}

// staticSource serves a fixed obligation list, or an error
type staticSource struct {
	mu          sync.Mutex
	name        domain.SourceType
	obligations []domain.Obligation
	err         error
	delay       time.Duration
}

func (s *staticSource) Name() domain.SourceType { return s.name }

func (s *staticSource) ListOverdue(ctx context.Context, _ string, _ time.Time) ([]domain.Obligation, error) {
	if s.delay > 0 {
		select {
		case <-time.After(s.delay):
		case <-ctx.Done():
			return nil, ctx.Err()
		}
	}
	s.mu.Lock()
	defer s.mu.Unlock()
	return s.obligations, s.err
}

func (s *staticSource) set(obligations ...domain.Obligation) {
	s.mu.Lock()
	defer s.mu.Unlock()
	s.obligations = obligations
}

type testEnv struct {
	svc          *CollectionsService
	cases        *memoryCaseRepo
	actions      *mocks.MockActionRepository
	patients     *mocks.MockPatientRepository
	settingsRepo *mocks.MockSettingsRepository
	notifier     *mocks.MockNotifier
	invoices     *staticSource
	financing    *staticSource
}

func newTestEnv(t *testing.T, settings domain.Settings) *testEnv {
	t.Helper()

	env := &testEnv{
		cases:        newMemoryCaseRepo(),
		actions:      &mocks.MockActionRepository{},
		patients:     &mocks.MockPatientRepository{},
		settingsRepo: &mocks.MockSettingsRepository{},
		notifier:     &mocks.MockNotifier{},
		invoices:     &staticSource{name: domain.SourceInvoice},
		financing:    &staticSource{name: domain.SourceFinancing},
	}
	env.settingsRepo.On("Get", mock.Anything, testClinic).Return(&settings, nil).Maybe()

	provider := NewSettingsProvider(env.settingsRepo, nil, domain.DefaultSettings())
	env.svc = NewCollectionsService(
		env.cases,
		env.actions,
		env.patients,
		[]repository.ObligationSource{env.financing, env.invoices},
		provider,
		lock.NewLocalLocker(),
		env.notifier,
		Options{Location: time.UTC, SourceTimeout: time.Second},
	)
	env.svc.now = func() time.Time { return testNow }

	return env
}

func percentageSettings() domain.Settings {
	s := domain.DefaultSettings()
	s.LateFeeEnabled = true
	s.LateFeeType = domain.LateFeePercentage
	s.LateFeeAmount = decimal.NewFromFloat(0.05)
	return s
}

func overdueInvoice(id string, total int64, days int) *domain.Invoice {
	return &domain.Invoice{
		ID:         id,
		ClinicID:   testClinic,
		PatientID:  "patient-" + id,
		Number:     "F-" + id,
		Total:      decimal.NewFromInt(total),
		PaidAmount: decimal.Zero,
		DueDate:    daysAgo(days),
		Status:     "issued",
		Currency:   "CLP",
	}
}

func overdueInstallment(id string, amount int64, days int) *domain.FinancingPayment {
	return &domain.FinancingPayment{
		ID:                id,
		ClinicID:          testClinic,
		PatientID:         "patient-" + id,
		PlanID:            "plan-1",
		PlanName:          "Ortodoncia",
		InstallmentNumber: 3,
		ScheduledAmount:   decimal.NewFromInt(amount),
		PaidAmount:        decimal.Zero,
		DueDate:           daysAgo(days),
		Currency:          "CLP",
	}
}

func caseIDs(cases []*domain.DelinquencyCase) []uuid.UUID {
	ids := make([]uuid.UUID, 0, len(cases))
	for _, c := range cases {
		ids = append(ids, c.ID)
	}
	sort.Slice(ids, func(i, j int) bool { return ids[i].String() < ids[j].String() })
	return ids
}
