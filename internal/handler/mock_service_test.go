package handler_test

import (
	"context"

	"github.com/google/uuid"
	"github.com/stretchr/testify/mock"

	"github.com/segyhp/collections-engine/internal/domain"
	"github.com/segyhp/collections-engine/internal/service"
)

type MockCollectionsService struct {
	mock.Mock
}

func (m *MockCollectionsService) caseResult(args mock.Arguments) (*domain.DelinquencyCase, error) {
	if args.Get(0) == nil {
		return nil, args.Error(1)
	}
	return args.Get(0).(*domain.DelinquencyCase), args.Error(1)
}

func (m *MockCollectionsService) ListCases(ctx context.Context, clinicID string, q service.CaseQuery) ([]*domain.DelinquencyCase, error) {
	args := m.Called(ctx, clinicID, q)
	if args.Get(0) == nil {
		return nil, args.Error(1)
	}
	return args.Get(0).([]*domain.DelinquencyCase), args.Error(1)
}

func (m *MockCollectionsService) GetCase(ctx context.Context, clinicID string, caseID uuid.UUID) (*domain.DelinquencyCase, error) {
	return m.caseResult(m.Called(ctx, clinicID, caseID))
}

func (m *MockCollectionsService) RunDetection(ctx context.Context, clinicID string, opts service.DetectOptions) (*service.DetectionResult, error) {
	args := m.Called(ctx, clinicID, opts)
	if args.Get(0) == nil {
		return nil, args.Error(1)
	}
	return args.Get(0).(*service.DetectionResult), args.Error(1)
}

func (m *MockCollectionsService) UpdateCaseStatus(ctx context.Context, clinicID string, caseID uuid.UUID, actorID string, req service.StatusUpdate) (*domain.DelinquencyCase, error) {
	return m.caseResult(m.Called(ctx, clinicID, caseID, actorID, req))
}

func (m *MockCollectionsService) MarkViewed(ctx context.Context, clinicID string, caseID uuid.UUID, actorID string) (*domain.DelinquencyCase, error) {
	return m.caseResult(m.Called(ctx, clinicID, caseID, actorID))
}

func (m *MockCollectionsService) DispatchNotice(ctx context.Context, clinicID string, caseID uuid.UUID, actorID string) (*domain.DelinquencyCase, error) {
	return m.caseResult(m.Called(ctx, clinicID, caseID, actorID))
}

func (m *MockCollectionsService) ReopenCase(ctx context.Context, clinicID string, caseID uuid.UUID, actorID string, req service.ReopenRequest) (*domain.DelinquencyCase, error) {
	return m.caseResult(m.Called(ctx, clinicID, caseID, actorID, req))
}

func (m *MockCollectionsService) AssignCase(ctx context.Context, clinicID string, caseID uuid.UUID, req service.AssignmentUpdate) (*domain.DelinquencyCase, error) {
	return m.caseResult(m.Called(ctx, clinicID, caseID, req))
}

func (m *MockCollectionsService) ScheduleNextAction(ctx context.Context, clinicID string, caseID uuid.UUID, req service.NextActionUpdate) (*domain.DelinquencyCase, error) {
	return m.caseResult(m.Called(ctx, clinicID, caseID, req))
}

func (m *MockCollectionsService) RecordAction(ctx context.Context, clinicID string, caseID uuid.UUID, actorID string, req domain.RecordActionRequest) (*domain.DelinquencyAction, error) {
	args := m.Called(ctx, clinicID, caseID, actorID, req)
	if args.Get(0) == nil {
		return nil, args.Error(1)
	}
	return args.Get(0).(*domain.DelinquencyAction), args.Error(1)
}

func (m *MockCollectionsService) ListActions(ctx context.Context, clinicID string, caseID uuid.UUID) ([]*domain.DelinquencyAction, error) {
	args := m.Called(ctx, clinicID, caseID)
	if args.Get(0) == nil {
		return nil, args.Error(1)
	}
	return args.Get(0).([]*domain.DelinquencyAction), args.Error(1)
}

func (m *MockCollectionsService) GetStats(ctx context.Context, clinicID string) (domain.Stats, error) {
	args := m.Called(ctx, clinicID)
	return args.Get(0).(domain.Stats), args.Error(1)
}

func (m *MockCollectionsService) GetSettings(ctx context.Context, clinicID string) (domain.Settings, error) {
	args := m.Called(ctx, clinicID)
	return args.Get(0).(domain.Settings), args.Error(1)
}

func (m *MockCollectionsService) UpdateSettings(ctx context.Context, clinicID string, settings domain.Settings) (domain.Settings, error) {
	args := m.Called(ctx, clinicID, settings)
	return args.Get(0).(domain.Settings), args.Error(1)
}
