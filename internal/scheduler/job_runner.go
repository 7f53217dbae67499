package scheduler

import (
	"context"
	"errors"
	"fmt"
	"log/slog"
	"time"

	"github.com/segyhp/collections-engine/internal/logger"
	"github.com/segyhp/collections-engine/internal/service"
	customError "github.com/segyhp/collections-engine/pkg/errors"
)

// Jobs is the part of the collections service driven by the scheduler
type Jobs interface {
	RunDetection(ctx context.Context, clinicID string, opts service.DetectOptions) (*service.DetectionResult, error)
	SendPendingNotices(ctx context.Context, clinicID string) (*service.NoticeRunResult, error)
	SendFollowUpReminders(ctx context.Context, clinicID string) (int, error)
}

// JobRunner runs each scheduled job once per configured clinic
type JobRunner struct {
	jobs    Jobs
	clinics []string
	timeout time.Duration
	log     *slog.Logger
}

func NewJobRunner(jobs Jobs, clinics []string, timeout time.Duration) *JobRunner {
	if timeout <= 0 {
		timeout = 5 * time.Minute
	}
	return &JobRunner{
		jobs:    jobs,
		clinics: clinics,
		timeout: timeout,
		log:     logger.WithService("scheduler"),
	}
}

// DetectDelinquencies runs case detection for every clinic
func (jr *JobRunner) DetectDelinquencies() {
	jr.runWithRecovery("DetectDelinquencies", func() {
		jr.forEachClinic(jr.DetectFor)
	})
}

// SendNotices dispatches automatic notices for every clinic
func (jr *JobRunner) SendNotices() {
	jr.runWithRecovery("SendNotices", func() {
		jr.forEachClinic(jr.NoticesFor)
	})
}

// SendReminders mails the follow-up digest of every clinic
func (jr *JobRunner) SendReminders() {
	jr.runWithRecovery("SendReminders", func() {
		jr.forEachClinic(jr.RemindersFor)
	})
}

// DetectFor runs detection for one clinic. A run already in progress elsewhere
// is not an error.
func (jr *JobRunner) DetectFor(ctx context.Context, clinicID string) error {
	return jr.detect(ctx, clinicID, service.DetectOptions{})
}

// ForceDetectFor also opens cases below the clinic's minimum days overdue
func (jr *JobRunner) ForceDetectFor(ctx context.Context, clinicID string) error {
	return jr.detect(ctx, clinicID, service.DetectOptions{Force: true})
}

func (jr *JobRunner) detect(ctx context.Context, clinicID string, opts service.DetectOptions) error {
	result, err := jr.jobs.RunDetection(ctx, clinicID, opts)
	if errors.Is(err, customError.ErrDetectionInProgress) {
		jr.log.InfoContext(ctx, "detection skipped, another run holds the lock", "clinic_id", clinicID)
		return nil
	}
	if err != nil {
		return err
	}

	if result.Partial {
		for _, f := range result.Failures {
			jr.log.WarnContext(ctx, "detection source failed", "clinic_id", clinicID, "source", f.Source, "error", f.Error)
		}
	}
	jr.log.InfoContext(ctx, "detection completed",
		"clinic_id", clinicID,
		"created", result.CreatedCount,
		"refreshed", result.RefreshedCount,
		"resolved", result.ResolvedCount,
	)
	return nil
}

// NoticesFor dispatches the automatic notices of one clinic
func (jr *JobRunner) NoticesFor(ctx context.Context, clinicID string) error {
	result, err := jr.jobs.SendPendingNotices(ctx, clinicID)
	if err != nil {
		return err
	}
	if result.Failed > 0 {
		return fmt.Errorf("%d of %d notices failed", result.Failed, result.Failed+result.Sent)
	}
	return nil
}

// RemindersFor sends the follow-up digest of one clinic
func (jr *JobRunner) RemindersFor(ctx context.Context, clinicID string) error {
	count, err := jr.jobs.SendFollowUpReminders(ctx, clinicID)
	if err != nil {
		return err
	}
	jr.log.InfoContext(ctx, "follow-up reminders processed", "clinic_id", clinicID, "cases", count)
	return nil
}

// forEachClinic keeps going when one clinic fails
func (jr *JobRunner) forEachClinic(fn func(ctx context.Context, clinicID string) error) {
	if len(jr.clinics) == 0 {
		jr.log.Warn("no clinics configured, set CLINIC_IDS")
		return
	}

	for _, clinicID := range jr.clinics {
		ctx, cancel := context.WithTimeout(context.Background(), jr.timeout)
		if err := fn(ctx, clinicID); err != nil {
			jr.log.Error("job failed for clinic", "clinic_id", clinicID, "error", err)
		}
		cancel()
	}
}

// runWithRecovery wraps job execution with panic recovery
func (jr *JobRunner) runWithRecovery(jobName string, jobFunc func()) {
	defer func() {
		if r := recover(); r != nil {
			jr.log.Error("Job panicked", "job", jobName, "panic", r)
		}
	}()

	started := time.Now()
	jr.log.Info("Starting job", "job", jobName)
	jobFunc()
	jr.log.Info("Job completed", "job", jobName, "duration", time.Since(started))
}
