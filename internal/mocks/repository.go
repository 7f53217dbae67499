package mocks

import (
	"context"

	"github.com/google/uuid"
	"github.com/stretchr/testify/mock"

	"github.com/segyhp/collections-engine/internal/domain"
)

type MockActionRepository struct {
	mock.Mock
}

func (m *MockActionRepository) Create(ctx context.Context, action *domain.DelinquencyAction) error {
	args := m.Called(ctx, action)
	return args.Error(0)
}

func (m *MockActionRepository) ListByCase(ctx context.Context, caseID uuid.UUID) ([]*domain.DelinquencyAction, error) {
	args := m.Called(ctx, caseID)
	if args.Get(0) == nil {
		return nil, args.Error(1)
	}
	return args.Get(0).([]*domain.DelinquencyAction), args.Error(1)
}

func (m *MockActionRepository) ListByCases(ctx context.Context, caseIDs []uuid.UUID) (map[uuid.UUID][]*domain.DelinquencyAction, error) {
	args := m.Called(ctx, caseIDs)
	if args.Get(0) == nil {
		return nil, args.Error(1)
	}
	return args.Get(0).(map[uuid.UUID][]*domain.DelinquencyAction), args.Error(1)
}

type MockPatientRepository struct {
	mock.Mock
}

func (m *MockPatientRepository) GetByID(ctx context.Context, clinicID, id string) (*domain.Patient, error) {
	args := m.Called(ctx, clinicID, id)
	if args.Get(0) == nil {
		return nil, args.Error(1)
	}
	return args.Get(0).(*domain.Patient), args.Error(1)
}

func (m *MockPatientRepository) GetByIDs(ctx context.Context, clinicID string, ids []string) (map[string]*domain.Patient, error) {
	args := m.Called(ctx, clinicID, ids)
	if args.Get(0) == nil {
		return nil, args.Error(1)
	}
	return args.Get(0).(map[string]*domain.Patient), args.Error(1)
}

type MockSettingsRepository struct {
	mock.Mock
}

func (m *MockSettingsRepository) Get(ctx context.Context, clinicID string) (*domain.Settings, error) {
	args := m.Called(ctx, clinicID)
	if args.Get(0) == nil {
		return nil, args.Error(1)
	}
	return args.Get(0).(*domain.Settings), args.Error(1)
}

func (m *MockSettingsRepository) Save(ctx context.Context, clinicID string, settings *domain.Settings) error {
	args := m.Called(ctx, clinicID, settings)
	return args.Error(0)
}
