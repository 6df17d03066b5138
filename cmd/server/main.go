// Package main is the entry point for the vnstock market data and
// signal pipeline. It ingests daily bars for the Vietnamese equity
// universe, computes technical indicators, evaluates the scoring rules
// and serves the results over a small operational HTTP API.
package main

import (
	"context"
	"os"
	"os/signal"
	"syscall"
	"time"

	"github.com/Hoangnph/vnstock-sub000/internal/config"
	"github.com/Hoangnph/vnstock-sub000/internal/di"
	"github.com/Hoangnph/vnstock-sub000/internal/scheduler"
	"github.com/Hoangnph/vnstock-sub000/internal/server"
	"github.com/Hoangnph/vnstock-sub000/pkg/logger"
)

func main() {
	cfg, err := config.Load()
	if err != nil {
		fallback := logger.New(logger.Config{Level: "info", Pretty: true})
		fallback.Fatal().Err(err).Msg("Failed to load configuration")
	}

	log := logger.New(logger.Config{
		Level:  cfg.LogLevel,
		Pretty: cfg.DevMode,
	})
	log.Info().Str("data_dir", cfg.DataDir).Msg("Starting vnstock pipeline")

	ctx, stop := signal.NotifyContext(context.Background(), os.Interrupt, syscall.SIGTERM)
	defer stop()

	container, err := di.Wire(ctx, cfg, log)
	if err != nil {
		log.Fatal().Err(err).Msg("Failed to wire dependencies")
	}
	defer container.Close()

	sched := scheduler.New(container.Calendar.Location(), log)
	if err := registerJobs(sched, container, cfg); err != nil {
		log.Fatal().Err(err).Msg("Failed to register scheduled jobs")
	}
	sched.Start()

	srv := server.New(server.Config{
		Port:    cfg.Port,
		DevMode: cfg.DevMode,
	}, server.Deps{
		Databases: container.Databases(),
		Tracking:  container.TrackingRepo,
		Universe:  container.UniverseRepo,
		Runs:      container.RunRepo,
		Analysis:  container.AnalysisRepo,
		Runner:    container.Orchestrator,
		Clock:     container.Clock,
		DataDir:   cfg.DataDir,
	}, log)

	serverErr := make(chan error, 1)
	go func() { serverErr <- srv.Start() }()

	select {
	case <-ctx.Done():
		log.Info().Msg("Shutdown signal received")
	case err := <-serverErr:
		if err != nil {
			log.Error().Err(err).Msg("HTTP server exited")
		}
	}

	shutdownCtx, cancel := context.WithTimeout(context.Background(), 15*time.Second)
	defer cancel()

	if err := srv.Shutdown(shutdownCtx); err != nil {
		log.Error().Err(err).Msg("HTTP server shutdown failed")
	}
	if err := sched.Stop(shutdownCtx); err != nil {
		log.Error().Err(err).Msg("Scheduler shutdown failed")
	}
	log.Info().Msg("Shutdown complete")
}

// registerJobs mounts the recurring work: the daily pipeline shortly
// after market close, nightly maintenance, a weekly vacuum and, when
// configured, a nightly off-site backup.
func registerJobs(sched *scheduler.Scheduler, c *di.Container, cfg *config.Config) error {
	jobs := []struct {
		spec string
		job  scheduler.Job
	}{
		{cfg.Pipeline.DailySchedule, scheduler.NewDailyPipelineJob(c.Orchestrator, c.Clock)},
		{"30 1 * * *", scheduler.NewMaintenanceJob(c.Maintenance)},
		{"0 3 * * 0", scheduler.NewVacuumJob(c.Maintenance)},
	}
	if c.Backup != nil {
		jobs = append(jobs, struct {
			spec string
			job  scheduler.Job
		}{"0 2 * * *", scheduler.NewBackupJob(c.Backup)})
	}

	for _, j := range jobs {
		if err := sched.Register(j.spec, j.job); err != nil {
			return err
		}
	}
	return nil
}
