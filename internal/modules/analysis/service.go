package analysis

import (
	"context"
	"database/sql"
	"fmt"
	"time"

	"github.com/rs/zerolog"
	"gonum.org/v1/gonum/floats"
	"gonum.org/v1/gonum/stat"

	"github.com/Hoangnph/vnstock-sub000/internal/database"
	"github.com/Hoangnph/vnstock-sub000/internal/domain"
	"github.com/Hoangnph/vnstock-sub000/internal/modules/indicators"
	"github.com/Hoangnph/vnstock-sub000/internal/modules/prices"
	"github.com/Hoangnph/vnstock-sub000/internal/modules/signals"
)

// ServiceConfig holds analysis service parameters.
type ServiceConfig struct {
	// WindowDays is the number of trailing bars signals are emitted for.
	// The service loads extra bars beyond the window for indicator
	// warm-up.
	WindowDays int `json:"window_days"`
}

// ConfigSet carries the resolved config rows for one pipeline run. The
// set is resolved once per run and shared across symbols.
type ConfigSet struct {
	Indicator *ConfigRecord
	Scoring   *ConfigRecord
	Analysis  *ConfigRecord
}

// Outcome summarizes one symbol's analysis.
type Outcome struct {
	Symbol       string
	ResultID     int64
	AnalysisDate time.Time
	TotalSignals int
	BuySignals   int
	SellSignals  int
	HoldSignals  int
	AvgScore     float64
	MaxScore     float64
	MinScore     float64
	FromCache    bool
	DataPoints   int
}

// Service runs the indicator-to-signal pipeline for one symbol and
// persists the outcome atomically.
type Service struct {
	priceRepo    *prices.Repository
	cache        *indicators.FrameCache
	indicatorEng *indicators.Engine
	signalEng    *signals.Engine
	configs      *ConfigRepository
	repo         *Repository
	analysisDB   *sql.DB
	clock        domain.Clock
	cfg          ServiceConfig
	log          zerolog.Logger
}

// NewService creates the analysis service. cache may be nil to disable
// frame caching.
func NewService(
	priceRepo *prices.Repository,
	cache *indicators.FrameCache,
	indicatorEng *indicators.Engine,
	signalEng *signals.Engine,
	configs *ConfigRepository,
	repo *Repository,
	analysisDB *sql.DB,
	clk domain.Clock,
	cfg ServiceConfig,
	log zerolog.Logger,
) *Service {
	if cfg.WindowDays <= 0 {
		cfg.WindowDays = 120
	}
	return &Service{
		priceRepo:    priceRepo,
		cache:        cache,
		indicatorEng: indicatorEng,
		signalEng:    signalEng,
		configs:      configs,
		repo:         repo,
		analysisDB:   analysisDB,
		clock:        clk,
		cfg:          cfg,
		log:          log.With().Str("service", "analysis").Logger(),
	}
}

// ResolveConfigs ensures config rows exist for the engines' current
// parameter sets and returns them. A failure here is fatal for the run.
func (s *Service) ResolveConfigs() (*ConfigSet, error) {
	indicator, err := s.configs.GetOrCreate(
		"default_indicators", "Standard technical indicator parameters",
		ConfigTypeIndicator, s.indicatorEng.Config())
	if err != nil {
		return nil, fmt.Errorf("failed to resolve indicator config: %w", err)
	}

	scoring, err := s.configs.GetOrCreate(
		"default_scoring", "Starter rule library with standard thresholds",
		ConfigTypeScoring, map[string]interface{}{
			"scoring": s.signalEng.Scorer().Config(),
			"signals": s.signalEng.Config(),
		})
	if err != nil {
		return nil, fmt.Errorf("failed to resolve scoring config: %w", err)
	}

	analysis, err := s.configs.GetOrCreate(
		"default_analysis", "Analysis window settings",
		ConfigTypeAnalysis, s.cfg)
	if err != nil {
		return nil, fmt.Errorf("failed to resolve analysis config: %w", err)
	}

	return &ConfigSet{Indicator: indicator, Scoring: scoring, Analysis: analysis}, nil
}

// Analyze runs indicators and signals for one symbol over the trailing
// window and persists the calculation, result and signals in a single
// transaction. Returns domain.ErrNoData when the symbol has too little
// history for the indicator warm-up.
func (s *Service) Analyze(ctx context.Context, symbol string, cfgs *ConfigSet) (*Outcome, error) {
	if ctx.Err() != nil {
		return nil, domain.ErrCancelled
	}
	started := s.clock.Now()
	symbol = domain.NormalizeSymbol(symbol)

	minBars := s.indicatorEng.Config().MinBars()
	bars, err := s.priceRepo.GetRecentBars(symbol, s.cfg.WindowDays+minBars)
	if err != nil {
		return nil, err
	}
	if len(bars) < minBars {
		return nil, fmt.Errorf("%w: %s has %d bars, indicator warm-up needs %d",
			domain.ErrNoData, symbol, len(bars), minBars)
	}

	endDate := bars[len(bars)-1].Time
	frame, fromCache, err := s.frameFor(symbol, bars, endDate, cfgs)
	if err != nil {
		return nil, err
	}

	sigs := s.windowSignals(frame, endDate)
	outcome := s.aggregate(symbol, endDate, sigs)
	outcome.FromCache = fromCache
	outcome.DataPoints = frame.Len()

	durationMS := s.clock.Now().Sub(started).Milliseconds()

	err = database.WithTransaction(s.analysisDB, func(tx *sql.Tx) error {
		calcID, err := s.repo.UpsertCalculation(tx, &Calculation{
			Symbol:     symbol,
			Date:       endDate,
			ConfigID:   cfgs.Indicator.ID,
			Indicators: frame.Snapshot(frame.Len() - 1),
			DataPoints: frame.Len(),
			StartDate:  bars[0].Time,
			EndDate:    endDate,
			DurationMS: durationMS,
		})
		if err != nil {
			return err
		}

		resultID, err := s.repo.UpsertResult(tx, &Result{
			Symbol:        symbol,
			Date:          endDate,
			CalculationID: calcID,
			IndicatorID:   cfgs.Indicator.ID,
			ScoringID:     cfgs.Scoring.ID,
			AnalysisID:    cfgs.Analysis.ID,
			TotalSignals:  outcome.TotalSignals,
			BuySignals:    outcome.BuySignals,
			SellSignals:   outcome.SellSignals,
			HoldSignals:   outcome.HoldSignals,
			AvgScore:      outcome.AvgScore,
			MaxScore:      outcome.MaxScore,
			MinScore:      outcome.MinScore,
			DataInfo: map[string]interface{}{
				"data_points": frame.Len(),
				"start_date":  domain.DateString(bars[0].Time),
				"end_date":    domain.DateString(endDate),
				"from_cache":  fromCache,
			},
			Summary: map[string]interface{}{
				"window_days": s.cfg.WindowDays,
			},
		})
		if err != nil {
			return err
		}
		outcome.ResultID = resultID

		return s.repo.ReplaceSignals(tx, resultID, sigs)
	})
	if err != nil {
		return nil, err
	}

	s.log.Info().
		Str("symbol", symbol).
		Str("date", domain.DateString(endDate)).
		Int("signals", outcome.TotalSignals).
		Bool("from_cache", fromCache).
		Msg("Symbol analyzed")

	return outcome, nil
}

// frameFor returns the computed frame, via the cache when possible.
func (s *Service) frameFor(symbol string, bars []domain.Bar, endDate time.Time, cfgs *ConfigSet) (*indicators.Frame, bool, error) {
	if s.cache != nil {
		cached, err := s.cache.Get(symbol, endDate, cfgs.Indicator.ContentHash)
		if err != nil {
			return nil, false, err
		}
		if cached != nil && cached.Len() == len(bars) {
			return cached, true, nil
		}
	}

	frame, err := s.indicatorEng.Compute(indicators.NewFrame(symbol, bars))
	if err != nil {
		return nil, false, err
	}

	if s.cache != nil {
		if err := s.cache.Put(frame, endDate, cfgs.Indicator.ContentHash); err != nil {
			s.log.Warn().Err(err).Str("symbol", symbol).Msg("Failed to cache frame")
		}
	}
	return frame, false, nil
}

// windowSignals evaluates the frame and keeps signals inside the
// trailing window.
func (s *Service) windowSignals(frame *indicators.Frame, endDate time.Time) []signals.Signal {
	all := s.signalEng.EvaluateAll(frame)
	if frame.Len() <= s.cfg.WindowDays {
		return all
	}

	windowStart := frame.Time(frame.Len() - s.cfg.WindowDays)
	var out []signals.Signal
	for _, sig := range all {
		if !sig.Time.Before(windowStart) {
			out = append(out, sig)
		}
	}
	return out
}

func (s *Service) aggregate(symbol string, date time.Time, sigs []signals.Signal) *Outcome {
	outcome := &Outcome{
		Symbol:       symbol,
		AnalysisDate: date,
		TotalSignals: len(sigs),
	}
	if len(sigs) == 0 {
		return outcome
	}

	scores := make([]float64, len(sigs))
	for i, sig := range sigs {
		scores[i] = sig.Score
		switch sig.Action {
		case domain.ActionBuy:
			outcome.BuySignals++
		case domain.ActionSell:
			outcome.SellSignals++
		default:
			outcome.HoldSignals++
		}
	}

	outcome.AvgScore = stat.Mean(scores, nil)
	outcome.MaxScore = floats.Max(scores)
	outcome.MinScore = floats.Min(scores)
	return outcome
}
