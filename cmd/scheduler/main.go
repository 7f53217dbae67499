package main

import (
	"context"
	"fmt"
	"os"
	"os/signal"
	"syscall"
	"time"

	"github.com/spf13/cobra"

	"github.com/segyhp/collections-engine/internal/app"
	"github.com/segyhp/collections-engine/internal/config"
	"github.com/segyhp/collections-engine/internal/logger"
	"github.com/segyhp/collections-engine/internal/scheduler"
)

var rootCmd = &cobra.Command{
	Use:   "scheduler",
	Short: "Runs the clinic collections jobs",
	Long: `Runs delinquency detection, automatic notices and follow-up reminders
for the clinics listed in CLINIC_IDS, either on their cron schedules or once.`,
	SilenceUsage: true,
}

var serveCmd = &cobra.Command{
	Use:   "serve",
	Short: "Run the jobs on their cron schedules until interrupted",
	RunE:  runServe,
}

var runCmd = &cobra.Command{
	Use:       "run [detect|notices|reminders]",
	Short:     "Run one job immediately and exit",
	Args:      cobra.MatchAll(cobra.ExactArgs(1), cobra.OnlyValidArgs),
	ValidArgs: []string{"detect", "notices", "reminders"},
	RunE:      runOnce,
}

func init() {
	runCmd.Flags().StringP("clinic", "c", "", "Clinic ID (defaults to every clinic in CLINIC_IDS)")
	runCmd.Flags().BoolP("force", "f", false, "Open cases below the minimum days overdue")

	rootCmd.AddCommand(serveCmd)
	rootCmd.AddCommand(runCmd)
}

func main() {
	if err := rootCmd.Execute(); err != nil {
		os.Exit(1)
	}
}

func bootstrap() (*app.App, error) {
	cfg, err := config.Load()
	if err != nil {
		return nil, fmt.Errorf("failed to load configuration: %w", err)
	}
	logger.Initialize(cfg.Logging.Level, cfg.Logging.Format)

	return app.New(cfg)
}

func runServe(cmd *cobra.Command, args []string) error {
	application, err := bootstrap()
	if err != nil {
		return err
	}
	defer application.Close()

	cfg := application.Config
	runner := scheduler.NewJobRunner(application.Service, cfg.Collections.ClinicIDs, cfg.Scheduler.GetDetectionTimeout())

	s, err := scheduler.NewScheduler(runner, cfg.Scheduler)
	if err != nil {
		return err
	}
	s.Start()
	logger.Info("Scheduler started", "timezone", cfg.Scheduler.Location().String(), "clinics", len(cfg.Collections.ClinicIDs))

	// Wait for interrupt signal to gracefully shutdown
	quit := make(chan os.Signal, 1)
	signal.Notify(quit, syscall.SIGINT, syscall.SIGTERM)
	<-quit

	logger.Info("Shutting down scheduler...")
	s.Stop(time.Minute)
	return nil
}

func runOnce(cmd *cobra.Command, args []string) error {
	clinicID, _ := cmd.Flags().GetString("clinic")
	force, _ := cmd.Flags().GetBool("force")

	application, err := bootstrap()
	if err != nil {
		return err
	}
	defer application.Close()

	cfg := application.Config
	clinics := cfg.Collections.ClinicIDs
	if clinicID != "" {
		clinics = []string{clinicID}
	}
	if len(clinics) == 0 {
		return fmt.Errorf("no clinic given: pass --clinic or set CLINIC_IDS")
	}

	runner := scheduler.NewJobRunner(application.Service, clinics, cfg.Scheduler.GetDetectionTimeout())

	var job func(ctx context.Context, clinicID string) error
	switch args[0] {
	case "detect":
		job = runner.DetectFor
		if force {
			job = runner.ForceDetectFor
		}
	case "notices":
		job = runner.NoticesFor
	case "reminders":
		job = runner.RemindersFor
	}

	failed := 0
	for _, id := range clinics {
		ctx, cancel := context.WithTimeout(cmd.Context(), cfg.Scheduler.GetDetectionTimeout())
		if err := job(ctx, id); err != nil {
			logger.Error("Job failed", "job", args[0], "clinic_id", id, "error", err)
			failed++
		}
		cancel()
	}

	if failed > 0 {
		return fmt.Errorf("%s failed for %d of %d clinics", args[0], failed, len(clinics))
	}
	return nil
}
