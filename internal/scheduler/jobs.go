package scheduler

import (
	"context"

	"github.com/Hoangnph/vnstock-sub000/internal/domain"
	"github.com/Hoangnph/vnstock-sub000/internal/orchestrator"
	"github.com/Hoangnph/vnstock-sub000/internal/reliability"
)

// DailyPipelineJob triggers a full pipeline run targeting today. The
// session calendar inside the pipeline clamps the target to the last
// completed session, so firing before close simply processes yesterday.
type DailyPipelineJob struct {
	orch  *orchestrator.Orchestrator
	clock domain.Clock
}

// NewDailyPipelineJob creates the daily pipeline job.
func NewDailyPipelineJob(orch *orchestrator.Orchestrator, clk domain.Clock) *DailyPipelineJob {
	return &DailyPipelineJob{orch: orch, clock: clk}
}

// Name returns the job name.
func (j *DailyPipelineJob) Name() string { return "daily_pipeline" }

// Run executes the pipeline. An in-flight run surfaces as an error and
// the scheduler logs it; the next trigger retries.
func (j *DailyPipelineJob) Run(ctx context.Context) error {
	_, err := j.orch.Run(ctx, j.clock.Now())
	return err
}

// MaintenanceJob runs the daily database housekeeping pass.
type MaintenanceJob struct {
	svc *reliability.MaintenanceService
}

// NewMaintenanceJob creates the maintenance job.
func NewMaintenanceJob(svc *reliability.MaintenanceService) *MaintenanceJob {
	return &MaintenanceJob{svc: svc}
}

// Name returns the job name.
func (j *MaintenanceJob) Name() string { return "maintenance" }

// Run executes one maintenance pass.
func (j *MaintenanceJob) Run(ctx context.Context) error {
	return j.svc.Run(ctx)
}

// VacuumJob compacts the databases on a weekly cadence.
type VacuumJob struct {
	svc *reliability.MaintenanceService
}

// NewVacuumJob creates the vacuum job.
func NewVacuumJob(svc *reliability.MaintenanceService) *VacuumJob {
	return &VacuumJob{svc: svc}
}

// Name returns the job name.
func (j *VacuumJob) Name() string { return "vacuum" }

// Run vacuums every database.
func (j *VacuumJob) Run(ctx context.Context) error {
	return j.svc.Vacuum(ctx)
}

// BackupJob snapshots the databases and ships the archive off-site.
type BackupJob struct {
	svc *reliability.BackupService
}

// NewBackupJob creates the backup job.
func NewBackupJob(svc *reliability.BackupService) *BackupJob {
	return &BackupJob{svc: svc}
}

// Name returns the job name.
func (j *BackupJob) Name() string { return "backup" }

// Run creates and uploads one backup, then rotates old ones.
func (j *BackupJob) Run(ctx context.Context) error {
	return j.svc.CreateAndUpload(ctx)
}
