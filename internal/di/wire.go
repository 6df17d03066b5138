package di

import (
	"context"
	"fmt"
	"path/filepath"

	"github.com/rs/zerolog"

	"github.com/Hoangnph/vnstock-sub000/internal/clients/vnd"
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

// Wire builds the full dependency graph from the configuration. The
// caller owns the returned container and must Close it.
func Wire(ctx context.Context, cfg *config.Config, log zerolog.Logger) (*Container, error) {
	c := &Container{
		Cfg:   cfg,
		Log:   log,
		Clock: domain.SystemClock(),
	}

	cal, err := clock.NewCalendar(cfg.Market.Timezone, cfg.Market.CloseHour)
	if err != nil {
		return nil, fmt.Errorf("failed to build session calendar: %w", err)
	}
	c.Calendar = cal

	if err := initDatabases(c, cfg); err != nil {
		c.Close()
		return nil, err
	}
	initRepositories(c, log)

	if err := initEngines(c, cfg, log); err != nil {
		c.Close()
		return nil, err
	}
	initServices(c, cfg, log)

	if err := initReliability(ctx, c, cfg, log); err != nil {
		c.Close()
		return nil, err
	}

	if err := seedUniverse(c, cfg, log); err != nil {
		c.Close()
		return nil, err
	}

	log.Info().Msg("Dependency wiring completed")
	return c, nil
}

func initDatabases(c *Container, cfg *config.Config) error {
	open := func(name string) (*database.DB, error) {
		db, err := database.New(database.Config{
			Path:    filepath.Join(cfg.DataDir, name+".db"),
			Profile: database.ProfileStandard,
			Name:    name,
		})
		if err != nil {
			return nil, fmt.Errorf("failed to open %s database: %w", name, err)
		}
		if err := db.Migrate(); err != nil {
			_ = db.Close()
			return nil, fmt.Errorf("failed to migrate %s database: %w", name, err)
		}
		return db, nil
	}

	var err error
	if c.MarketDB, err = open("market"); err != nil {
		return err
	}
	if c.UniverseDB, err = open("universe"); err != nil {
		return err
	}
	if c.AnalysisDB, err = open("analysis"); err != nil {
		return err
	}
	return nil
}

func initRepositories(c *Container, log zerolog.Logger) {
	c.PriceRepo = prices.NewRepository(c.MarketDB.Conn(), c.Clock, log)
	c.ForeignRepo = prices.NewForeignRepository(c.MarketDB.Conn(), c.Clock, log)
	c.TrackingRepo = tracking.NewRepository(c.MarketDB.Conn(), c.Clock, log)
	c.UniverseRepo = universe.NewRepository(c.UniverseDB.Conn(), c.Clock, log)
	c.ConfigRepo = analysis.NewConfigRepository(c.AnalysisDB.Conn(), c.Clock, log)
	c.AnalysisRepo = analysis.NewRepository(c.AnalysisDB.Conn(), c.Clock, log)
	c.RunRepo = analysis.NewRunRepository(c.AnalysisDB.Conn(), log)
	c.FrameCache = indicators.NewFrameCache(c.MarketDB.Conn(), c.Clock, log)
}

func initEngines(c *Container, cfg *config.Config, log zerolog.Logger) error {
	indicatorEng, err := indicators.NewEngine(indicators.DefaultConfig())
	if err != nil {
		return fmt.Errorf("failed to build indicator engine: %w", err)
	}
	c.IndicatorEngine = indicatorEng

	scoringCfg := scoring.DefaultConfig()
	scoringCfg.MinScoreThreshold = cfg.Pipeline.MinScoreThreshold
	scorer, err := scoring.NewEngine(scoringCfg, log)
	if err != nil {
		return fmt.Errorf("failed to build scoring engine: %w", err)
	}
	c.ScoringEngine = scorer

	signalCfg := signals.DefaultConfig()
	signalCfg.MinScoreThreshold = cfg.Pipeline.MinScoreThreshold
	c.SignalEngine = signals.NewEngine(scorer, signalCfg, log)
	return nil
}

func initServices(c *Container, cfg *config.Config, log zerolog.Logger) {
	client := vnd.NewClient(vnd.ClientConfig{
		BaseURL:           cfg.Provider.BaseURL,
		Timeout:           cfg.Provider.Timeout,
		MaxRetries:        cfg.Provider.MaxRetries,
		RetryBaseDelay:    cfg.Provider.RetryBaseDelay,
		RequestsPerSecond: cfg.Provider.RequestsPerSecond,
	}, log)
	c.Provider = vnd.NewAdapter(client, log)

	c.Ingestion = ingestion.NewService(
		c.Provider, c.PriceRepo, c.ForeignRepo, c.TrackingRepo,
		prices.NewSanitizer(log), c.MarketDB.Conn(), c.Calendar, c.Clock,
		c.FrameCache,
		ingestion.Config{
			Genesis:           cfg.Market.GenesisDate,
			EmptyWindowStride: cfg.Provider.EmptyWindowStride,
			MaxEmptyWindows:   cfg.Provider.MaxEmptyWindows,
		}, log)

	c.Analysis = analysis.NewService(
		c.PriceRepo, c.FrameCache, c.IndicatorEngine, c.SignalEngine,
		c.ConfigRepo, c.AnalysisRepo, c.AnalysisDB.Conn(), c.Clock,
		analysis.ServiceConfig{WindowDays: cfg.Pipeline.AnalysisWindowDays}, log)

	c.Orchestrator = orchestrator.New(
		universe.NewProvider(c.UniverseRepo),
		c.Ingestion, c.Analysis, c.RunRepo, c.Clock,
		orchestrator.Config{
			BatchSize:   cfg.Pipeline.BatchSize,
			SymbolDelay: cfg.Pipeline.SymbolDelay,
			BatchDelay:  cfg.Pipeline.BatchDelay,
			Parallel:    cfg.Pipeline.Parallel,
		}, log)
}

func initReliability(ctx context.Context, c *Container, cfg *config.Config, log zerolog.Logger) error {
	c.Maintenance = reliability.NewMaintenanceService(
		c.Databases(), c.FrameCache, cfg.DataDir, log)

	if !cfg.Backup.Enabled {
		return nil
	}

	store, err := reliability.NewS3Client(ctx, cfg.Backup, log)
	if err != nil {
		return fmt.Errorf("failed to build backup storage client: %w", err)
	}
	c.Backup = reliability.NewBackupService(
		c.Databases(), store, cfg.DataDir, cfg.Backup.RetentionDays, c.Clock, log)
	return nil
}

// seedUniverse bootstraps the stocks table from the configured seed
// list. Only an empty universe is seeded; a populated table wins.
func seedUniverse(c *Container, cfg *config.Config, log zerolog.Logger) error {
	if len(cfg.UniverseSeed) == 0 {
		return nil
	}

	existing, err := c.UniverseRepo.ListActive()
	if err != nil {
		return fmt.Errorf("failed to inspect universe before seeding: %w", err)
	}
	if len(existing) > 0 {
		return nil
	}

	for i, symbol := range cfg.UniverseSeed {
		err := c.UniverseRepo.Upsert(domain.Stock{
			Symbol:   symbol,
			Rank:     i + 1,
			IsActive: true,
		})
		if err != nil {
			return fmt.Errorf("failed to seed universe: %w", err)
		}
	}
	log.Info().Int("symbols", len(cfg.UniverseSeed)).Msg("Universe seeded")
	return nil
}
