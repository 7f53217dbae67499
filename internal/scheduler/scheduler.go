package scheduler

import (
	"fmt"
	"time"

	"github.com/robfig/cron/v3"

	"github.com/segyhp/collections-engine/internal/config"
	"github.com/segyhp/collections-engine/internal/logger"
)

// Scheduler manages cron job scheduling
type Scheduler struct {
	cron *cron.Cron
	jobs *JobRunner
}

// NewScheduler registers the collection jobs on the clinic calendar. Cron
// expressions carry a leading seconds field.
func NewScheduler(jobRunner *JobRunner, cfg config.SchedulerConfig) (*Scheduler, error) {
	c := cron.New(
		cron.WithLocation(cfg.Location()),
		cron.WithSeconds(),
	)

	s := &Scheduler{
		cron: c,
		jobs: jobRunner,
	}

	if err := s.registerJobs(cfg); err != nil {
		return nil, err
	}
	return s, nil
}

func (s *Scheduler) registerJobs(cfg config.SchedulerConfig) error {
	jobs := []struct {
		name string
		spec string
		fn   func()
	}{
		{"DetectDelinquencies", cfg.DetectionCron, s.jobs.DetectDelinquencies},
		{"SendNotices", cfg.NoticeCron, s.jobs.SendNotices},
		{"SendReminders", cfg.ReminderCron, s.jobs.SendReminders},
	}

	for _, job := range jobs {
		if job.spec == "" {
			logger.Info("Cron job disabled", "job", job.name)
			continue
		}
		if _, err := s.cron.AddFunc(job.spec, job.fn); err != nil {
			return fmt.Errorf("failed to register %s job with schedule %q: %w", job.name, job.spec, err)
		}
	}

	logger.Info("All cron jobs registered successfully", "entries", len(s.cron.Entries()))
	return nil
}

// Start begins the cron scheduler
func (s *Scheduler) Start() {
	logger.Info("Starting cron scheduler...")
	s.cron.Start()
	logger.Info("Cron scheduler started successfully")
}

// Stop waits for running jobs to finish or for the timeout to elapse
func (s *Scheduler) Stop(timeout time.Duration) {
	logger.Info("Stopping cron scheduler...")
	ctx := s.cron.Stop()
	select {
	case <-ctx.Done():
		logger.Info("Cron scheduler stopped")
	case <-time.After(timeout):
		logger.Warn("Cron scheduler stop timed out, jobs still running", "timeout", timeout)
	}
}

// NextRuns returns the next activation of each registered job
func (s *Scheduler) NextRuns() []time.Time {
	entries := s.cron.Entries()
	next := make([]time.Time, 0, len(entries))
	for _, e := range entries {
		next = append(next, e.Schedule.Next(time.Now()))
	}
	return next
}
