// Package orchestrator drives the daily pipeline: resolve the universe,
// ingest each symbol, analyze the ones with fresh data, and persist a
// run report.
package orchestrator

import (
	"context"
	"errors"
	"fmt"
	"sync"
	"time"

	"github.com/google/uuid"
	"github.com/rs/zerolog"
	"golang.org/x/sync/errgroup"

	"github.com/Hoangnph/vnstock-sub000/internal/domain"
	"github.com/Hoangnph/vnstock-sub000/internal/modules/analysis"
	"github.com/Hoangnph/vnstock-sub000/internal/modules/ingestion"
)

// Config holds pacing and parallelism settings.
type Config struct {
	BatchSize   int
	SymbolDelay time.Duration
	BatchDelay  time.Duration
	// Parallel processes a batch's symbols concurrently, bounded by
	// BatchSize. The default is sequential with delays, which is easier
	// on the provider's rate budget.
	Parallel bool
}

// SymbolOutcome is the per-symbol line of a run report.
type SymbolOutcome struct {
	Symbol       string  `json:"symbol"`
	Status       string  `json:"status"` // ok | skipped | failed
	BarsStored   int     `json:"bars_stored"`
	Signals      int     `json:"signals"`
	AvgScore     float64 `json:"avg_score,omitempty"`
	Error        string  `json:"error,omitempty"`
	LastDate     string  `json:"last_date,omitempty"`
	AnalysisDate string  `json:"analysis_date,omitempty"`
}

// Report aggregates one pipeline run.
type Report struct {
	RunID         string
	TargetDate    time.Time
	StartedAt     time.Time
	FinishedAt    time.Time
	TotalSymbols  int
	Succeeded     int
	Failed        int
	Skipped       int
	BarsStored    int
	SignalsStored int
	Outcomes      []SymbolOutcome
}

// Orchestrator owns a full pipeline run. Symbol failures are isolated;
// run-level failures (universe, config resolution) abort the run.
type Orchestrator struct {
	universe  domain.UniverseProvider
	ingestSvc *ingestion.Service
	analysis  *analysis.Service
	runs      *analysis.RunRepository
	clock     domain.Clock
	cfg       Config
	log       zerolog.Logger

	mu      sync.Mutex
	running bool
	lastRun *Report
}

// New creates an orchestrator.
func New(
	universe domain.UniverseProvider,
	ingestSvc *ingestion.Service,
	analysisSvc *analysis.Service,
	runs *analysis.RunRepository,
	clk domain.Clock,
	cfg Config,
	log zerolog.Logger,
) *Orchestrator {
	if cfg.BatchSize <= 0 {
		cfg.BatchSize = 4
	}
	return &Orchestrator{
		universe:  universe,
		ingestSvc: ingestSvc,
		analysis:  analysisSvc,
		runs:      runs,
		clock:     clk,
		cfg:       cfg,
		log:       log.With().Str("component", "orchestrator").Logger(),
	}
}

// Running reports whether a run is in flight.
func (o *Orchestrator) Running() bool {
	o.mu.Lock()
	defer o.mu.Unlock()
	return o.running
}

// LastReport returns the most recent completed report, or nil.
func (o *Orchestrator) LastReport() *Report {
	o.mu.Lock()
	defer o.mu.Unlock()
	return o.lastRun
}

// Run executes the pipeline up to targetEnd. Only one run may be in
// flight per orchestrator.
func (o *Orchestrator) Run(ctx context.Context, targetEnd time.Time) (*Report, error) {
	o.mu.Lock()
	if o.running {
		o.mu.Unlock()
		return nil, fmt.Errorf("a pipeline run is already in progress")
	}
	o.running = true
	o.mu.Unlock()

	defer func() {
		o.mu.Lock()
		o.running = false
		o.mu.Unlock()
	}()

	report := &Report{
		RunID:      uuid.NewString(),
		TargetDate: domain.Date(targetEnd),
		StartedAt:  o.clock.Now().UTC(),
	}

	o.log.Info().
		Str("run_id", report.RunID).
		Str("target", domain.DateString(targetEnd)).
		Msg("Pipeline run starting")

	stocks, err := o.universe.ActiveSymbols(ctx)
	if err != nil {
		return nil, fmt.Errorf("failed to resolve symbol universe: %w", err)
	}
	if len(stocks) == 0 {
		return nil, fmt.Errorf("symbol universe is empty")
	}
	report.TotalSymbols = len(stocks)

	cfgs, err := o.analysis.ResolveConfigs()
	if err != nil {
		return nil, err
	}

	outcomes := make([]SymbolOutcome, len(stocks))
	for start := 0; start < len(stocks); start += o.cfg.BatchSize {
		end := start + o.cfg.BatchSize
		if end > len(stocks) {
			end = len(stocks)
		}

		if start > 0 {
			if err := sleepCtx(ctx, o.cfg.BatchDelay); err != nil {
				return nil, err
			}
		}

		if err := o.processBatch(ctx, stocks[start:end], outcomes[start:end], targetEnd, cfgs); err != nil {
			return nil, err
		}
	}

	report.FinishedAt = o.clock.Now().UTC()
	report.Outcomes = outcomes
	for _, out := range outcomes {
		switch out.Status {
		case "ok":
			report.Succeeded++
		case "skipped":
			report.Skipped++
			report.Succeeded++
		default:
			report.Failed++
		}
		report.BarsStored += out.BarsStored
		report.SignalsStored += out.Signals
	}

	if err := o.persistReport(report); err != nil {
		o.log.Error().Err(err).Str("run_id", report.RunID).Msg("Failed to persist run report")
	}

	o.mu.Lock()
	o.lastRun = report
	o.mu.Unlock()

	o.log.Info().
		Str("run_id", report.RunID).
		Int("succeeded", report.Succeeded).
		Int("failed", report.Failed).
		Int("bars", report.BarsStored).
		Int("signals", report.SignalsStored).
		Dur("elapsed", report.FinishedAt.Sub(report.StartedAt)).
		Msg("Pipeline run finished")

	return report, nil
}

// processBatch runs one batch either sequentially with pacing delays or
// concurrently bounded by the batch size. Cancellation aborts the whole
// run; symbol errors only mark their outcome.
func (o *Orchestrator) processBatch(ctx context.Context, stocks []domain.Stock, outcomes []SymbolOutcome, targetEnd time.Time, cfgs *analysis.ConfigSet) error {
	if o.cfg.Parallel {
		g, gctx := errgroup.WithContext(ctx)
		g.SetLimit(o.cfg.BatchSize)
		for i := range stocks {
			i := i
			g.Go(func() error {
				outcomes[i] = o.processSymbol(gctx, stocks[i].Symbol, targetEnd, cfgs)
				if gctx.Err() != nil {
					return domain.ErrCancelled
				}
				return nil
			})
		}
		return g.Wait()
	}

	for i := range stocks {
		if i > 0 {
			if err := sleepCtx(ctx, o.cfg.SymbolDelay); err != nil {
				return err
			}
		}
		outcomes[i] = o.processSymbol(ctx, stocks[i].Symbol, targetEnd, cfgs)
		if ctx.Err() != nil {
			return domain.ErrCancelled
		}
	}
	return nil
}

// processSymbol runs ingest then analyze for one symbol and never
// returns an error: failures are captured in the outcome.
func (o *Orchestrator) processSymbol(ctx context.Context, symbol string, targetEnd time.Time, cfgs *analysis.ConfigSet) SymbolOutcome {
	outcome := SymbolOutcome{Symbol: symbol, Status: "ok"}

	ingested, err := o.ingestSvc.Ingest(ctx, symbol, targetEnd)
	if err != nil {
		o.log.Warn().Err(err).Str("symbol", symbol).Msg("Symbol ingestion failed")
		outcome.Status = "failed"
		outcome.Error = err.Error()
		return outcome
	}
	outcome.BarsStored = ingested.Stored
	outcome.LastDate = domain.DateString(ingested.LastDate)

	if ingested.Stored == 0 {
		// Nothing new landed; skip the analysis stage
		outcome.Status = "skipped"
		return outcome
	}

	result, err := o.analysis.Analyze(ctx, symbol, cfgs)
	if err != nil {
		if errors.Is(err, domain.ErrNoData) {
			// Too little history for the indicator warm-up: not a failure
			outcome.Status = "skipped"
			return outcome
		}
		o.log.Warn().Err(err).Str("symbol", symbol).Msg("Symbol analysis failed")
		outcome.Status = "failed"
		outcome.Error = err.Error()
		return outcome
	}

	outcome.Signals = result.TotalSignals
	outcome.AvgScore = result.AvgScore
	outcome.AnalysisDate = domain.DateString(result.AnalysisDate)
	return outcome
}

func (o *Orchestrator) persistReport(report *Report) error {
	perSymbol := make(map[string]interface{}, len(report.Outcomes))
	for _, out := range report.Outcomes {
		perSymbol[out.Symbol] = out
	}

	return o.runs.Save(&analysis.Run{
		ID:            report.RunID,
		TargetDate:    report.TargetDate,
		StartedAt:     report.StartedAt,
		FinishedAt:    report.FinishedAt,
		TotalSymbols:  report.TotalSymbols,
		Succeeded:     report.Succeeded,
		Failed:        report.Failed,
		BarsStored:    report.BarsStored,
		SignalsStored: report.SignalsStored,
		Report:        map[string]interface{}{"symbols": perSymbol},
	})
}

func sleepCtx(ctx context.Context, d time.Duration) error {
	if d <= 0 {
		return nil
	}
	select {
	case <-time.After(d):
		return nil
	case <-ctx.Done():
		return domain.ErrCancelled
	}
}
