package reliability

import (
	"context"
	"fmt"
	"time"

	"github.com/rs/zerolog"
	"github.com/shirou/gopsutil/v3/disk"

	"github.com/Hoangnph/vnstock-sub000/internal/database"
	"github.com/Hoangnph/vnstock-sub000/internal/modules/indicators"
)

// DefaultCacheRetention is how long computed frames stay in the cache
// before the daily maintenance prunes them.
const DefaultCacheRetention = 14 * 24 * time.Hour

// Disk usage above this percentage fails the maintenance run.
const diskUsageCriticalPct = 95.0

// MaintenanceService performs the daily database housekeeping: an
// integrity check, a WAL checkpoint per database, frame cache pruning
// and a disk space check.
type MaintenanceService struct {
	databases      []*database.DB
	cache          *indicators.FrameCache
	dataDir        string
	cacheRetention time.Duration
	log            zerolog.Logger
}

// NewMaintenanceService creates a maintenance service. cache may be
// nil when frame caching is disabled.
func NewMaintenanceService(
	databases []*database.DB,
	cache *indicators.FrameCache,
	dataDir string,
	log zerolog.Logger,
) *MaintenanceService {
	return &MaintenanceService{
		databases:      databases,
		cache:          cache,
		dataDir:        dataDir,
		cacheRetention: DefaultCacheRetention,
		log:            log.With().Str("service", "maintenance").Logger(),
	}
}

// Run executes one maintenance pass. Integrity failures and a full
// disk are fatal; a failed checkpoint only logs, the next pass retries.
func (s *MaintenanceService) Run(ctx context.Context) error {
	started := time.Now()
	s.log.Info().Msg("Starting maintenance")

	for _, db := range s.databases {
		if err := db.QuickCheck(ctx); err != nil {
			return fmt.Errorf("health check failed for %s: %w", db.Name(), err)
		}

		if err := db.WALCheckpoint("TRUNCATE"); err != nil {
			s.log.Warn().Err(err).Str("database", db.Name()).Msg("WAL checkpoint failed")
		}
	}

	if s.cache != nil {
		pruned, err := s.cache.Prune(s.cacheRetention)
		if err != nil {
			s.log.Warn().Err(err).Msg("Frame cache prune failed")
		} else if pruned > 0 {
			s.log.Info().Int64("pruned", pruned).Msg("Stale cached frames removed")
		}
	}

	if err := s.checkDiskSpace(); err != nil {
		return err
	}

	s.log.Info().Dur("elapsed", time.Since(started)).Msg("Maintenance finished")
	return nil
}

// Vacuum compacts every database. Heavier than the daily pass, meant
// for a weekly schedule.
func (s *MaintenanceService) Vacuum(ctx context.Context) error {
	for _, db := range s.databases {
		if ctx.Err() != nil {
			return ctx.Err()
		}
		s.log.Info().Str("database", db.Name()).Msg("Vacuuming database")
		if err := db.Vacuum(); err != nil {
			return fmt.Errorf("vacuum failed for %s: %w", db.Name(), err)
		}
	}
	return nil
}

func (s *MaintenanceService) checkDiskSpace() error {
	usage, err := disk.Usage(s.dataDir)
	if err != nil {
		s.log.Warn().Err(err).Msg("Disk usage check failed")
		return nil
	}

	if usage.UsedPercent >= diskUsageCriticalPct {
		return fmt.Errorf("disk usage critical: %.1f%% used, %d MB free",
			usage.UsedPercent, usage.Free/1024/1024)
	}
	if usage.UsedPercent >= 90 {
		s.log.Warn().
			Float64("used_pct", usage.UsedPercent).
			Uint64("free_mb", usage.Free/1024/1024).
			Msg("Disk usage high")
	}
	return nil
}
