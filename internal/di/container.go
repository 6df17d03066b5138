// Package di wires the application graph: databases, repositories,
// engines, services and the orchestrator.
package di

import (
	"github.com/rs/zerolog"

	"github.com/Hoangnph/vnstock-sub000/internal/clock"
	"github.com/Hoangnph/vnstock-sub000/internal/config"
	"github.com/Hoangnph/vnstock-sub000/internal/database"
	"github.com/Hoangnph/vnstock-sub000/internal/domain"
	"github.com/Hoangnph/vnstock-sub000/internal/modules/analysis"
	"github.com/Hoangnph/vnstock-sub000/internal/modules/indicators"
	"github.com/Hoangnph/vnstock-sub000/internal/modules/ingestion"
	"github.com/Hoangnph/vnstock-sub000/internal/modules/prices"
	"github.com/Hoangnph/vnstock-sub000/internal/modules/scoring"
	"github.com/Hoangnph/vnstock-sub000/internal/modules/signals"
	"github.com/Hoangnph/vnstock-sub000/internal/modules/tracking"
	"github.com/Hoangnph/vnstock-sub000/internal/modules/universe"
	"github.com/Hoangnph/vnstock-sub000/internal/orchestrator"
	"github.com/Hoangnph/vnstock-sub000/internal/reliability"
)

// Container holds every wired component. Fields are populated by Wire
// in dependency order.
type Container struct {
	Cfg *config.Config
	Log zerolog.Logger

	MarketDB   *database.DB
	UniverseDB *database.DB
	AnalysisDB *database.DB

	Clock    domain.Clock
	Calendar *clock.Calendar

	PriceRepo    *prices.Repository
	ForeignRepo  *prices.ForeignRepository
	TrackingRepo *tracking.Repository
	UniverseRepo *universe.Repository
	ConfigRepo   *analysis.ConfigRepository
	AnalysisRepo *analysis.Repository
	RunRepo      *analysis.RunRepository
	FrameCache   *indicators.FrameCache

	Provider domain.MarketDataProvider

	IndicatorEngine *indicators.Engine
	ScoringEngine   *scoring.Engine
	SignalEngine    *signals.Engine

	Ingestion    *ingestion.Service
	Analysis     *analysis.Service
	Orchestrator *orchestrator.Orchestrator

	Maintenance *reliability.MaintenanceService
	// Backup stays nil unless backups are enabled in the configuration.
	Backup *reliability.BackupService
}

// Databases returns the three databases in a stable order.
func (c *Container) Databases() []*database.DB {
	return []*database.DB{c.MarketDB, c.UniverseDB, c.AnalysisDB}
}

// Close releases the database connections. Safe on a partially wired
// container.
func (c *Container) Close() {
	for _, db := range []*database.DB{c.AnalysisDB, c.UniverseDB, c.MarketDB} {
		if db != nil {
			_ = db.Close()
		}
	}
}
