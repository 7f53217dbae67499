package scheduler

import (
	"context"
	"errors"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/mock"
	"github.com/stretchr/testify/require"

	"github.com/segyhp/collections-engine/internal/config"
	"github.com/segyhp/collections-engine/internal/service"
	customError "github.com/segyhp/collections-engine/pkg/errors"
)

type mockJobs struct {
	mock.Mock
}

func (m *mockJobs) RunDetection(ctx context.Context, clinicID string, opts service.DetectOptions) (*service.DetectionResult, error) {
	args := m.Called(ctx, clinicID, opts)
	if args.Get(0) == nil {
		return nil, args.Error(1)
	}
	return args.Get(0).(*service.DetectionResult), args.Error(1)
}

func (m *mockJobs) SendPendingNotices(ctx context.Context, clinicID string) (*service.NoticeRunResult, error) {
	args := m.Called(ctx, clinicID)
	if args.Get(0) == nil {
		return nil, args.Error(1)
	}
	return args.Get(0).(*service.NoticeRunResult), args.Error(1)
}

func (m *mockJobs) SendFollowUpReminders(ctx context.Context, clinicID string) (int, error) {
	args := m.Called(ctx, clinicID)
	return args.Int(0), args.Error(1)
}

func TestJobRunner_DetectDelinquencies_ContinuesAfterFailure(t *testing.T) {
	// Arrange
	jobs := new(mockJobs)
	jobs.On("RunDetection", mock.Anything, "clinic-a", service.DetectOptions{}).
		Return(nil, customError.WrapSourceUnavailable("invoice", errors.New("down"))).Once()
	jobs.On("RunDetection", mock.Anything, "clinic-b", service.DetectOptions{}).
		Return(&service.DetectionResult{CreatedCount: 2}, nil).Once()

	runner := NewJobRunner(jobs, []string{"clinic-a", "clinic-b"}, time.Second)

	// Act
	runner.DetectDelinquencies()

	// Assert
	jobs.AssertExpectations(t)
}

func TestJobRunner_DetectFor_BusyIsNotAnError(t *testing.T) {
	jobs := new(mockJobs)
	jobs.On("RunDetection", mock.Anything, "clinic-a", service.DetectOptions{}).
		Return(nil, customError.WrapDetectionInProgress("clinic-a"))

	runner := NewJobRunner(jobs, []string{"clinic-a"}, time.Second)

	assert.NoError(t, runner.DetectFor(context.Background(), "clinic-a"))
}

func TestJobRunner_NoticesFor(t *testing.T) {
	tests := []struct {
		name      string
		result    *service.NoticeRunResult
		err       error
		expectErr bool
	}{
		{"all sent", &service.NoticeRunResult{Sent: 3}, nil, false},
		{"some failed", &service.NoticeRunResult{Sent: 2, Failed: 1}, nil, true},
		{"service error", nil, errors.New("db down"), true},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			jobs := new(mockJobs)
			jobs.On("SendPendingNotices", mock.Anything, "clinic-a").Return(tt.result, tt.err)

			err := NewJobRunner(jobs, nil, time.Second).NoticesFor(context.Background(), "clinic-a")

			if tt.expectErr {
				assert.Error(t, err)
			} else {
				assert.NoError(t, err)
			}
		})
	}
}

func TestJobRunner_RecoversFromPanic(t *testing.T) {
	jobs := new(mockJobs)
	jobs.On("SendFollowUpReminders", mock.Anything, "clinic-a").Run(func(mock.Arguments) {
		panic("unexpected nil")
	})

	runner := NewJobRunner(jobs, []string{"clinic-a"}, time.Second)

	assert.NotPanics(t, runner.SendReminders)
}

func TestJobRunner_NoClinics(t *testing.T) {
	jobs := new(mockJobs)

	NewJobRunner(jobs, nil, time.Second).SendNotices()

	jobs.AssertNotCalled(t, "SendPendingNotices", mock.Anything, mock.Anything)
}

func TestNewScheduler(t *testing.T) {
	runner := NewJobRunner(new(mockJobs), []string{"clinic-a"}, time.Second)

	t.Run("registers every job", func(t *testing.T) {
		s, err := NewScheduler(runner, config.SchedulerConfig{
			Timezone:      "America/Bogota",
			DetectionCron: "0 0 6 * * *",
			NoticeCron:    "0 0 9 * * 1-5",
			ReminderCron:  "0 30 7 * * *",
		})

		require.NoError(t, err)
		assert.Len(t, s.NextRuns(), 3)
	})

	t.Run("empty cron expression disables a job", func(t *testing.T) {
		s, err := NewScheduler(runner, config.SchedulerConfig{DetectionCron: "0 0 6 * * *"})

		require.NoError(t, err)
		assert.Len(t, s.NextRuns(), 1)
	})

	t.Run("invalid cron expression", func(t *testing.T) {
		_, err := NewScheduler(runner, config.SchedulerConfig{DetectionCron: "every morning"})

		assert.Error(t, err)
	})
}

func TestScheduler_StartStop(t *testing.T) {
	runner := NewJobRunner(new(mockJobs), nil, time.Second)
	s, err := NewScheduler(runner, config.SchedulerConfig{DetectionCron: "0 0 6 * * *"})
	require.NoError(t, err)

	s.Start()
	s.Stop(time.Second)
}
