// Package ingestion implements the watermark-driven EOD ingestion engine.
package ingestion

import (
	"context"
	"database/sql"
	"errors"
	"fmt"
	"time"

	"github.com/rs/zerolog"

	"github.com/Hoangnph/vnstock-sub000/internal/clock"
	"github.com/Hoangnph/vnstock-sub000/internal/database"
	"github.com/Hoangnph/vnstock-sub000/internal/domain"
	"github.com/Hoangnph/vnstock-sub000/internal/modules/prices"
	"github.com/Hoangnph/vnstock-sub000/internal/modules/tracking"
)

// CacheInvalidator drops cached derived data for a symbol after new bars
// land. The frame cache registers itself here.
type CacheInvalidator interface {
	Invalidate(symbol string) error
}

// Config holds ingestion engine parameters.
type Config struct {
	Genesis time.Time
	// EmptyWindowStride is the width in days of each probe window used
	// when a cold-start fetch comes back empty.
	EmptyWindowStride int
	// MaxEmptyWindows bounds the number of consecutive empty probe
	// windows before the engine concludes no history exists.
	MaxEmptyWindows int
}

// Result summarizes one symbol's ingestion run.
type Result struct {
	Symbol        string
	Fetched       int
	Stored        int
	Dropped       int
	ForeignStored int
	LastDate      time.Time
	Elapsed       time.Duration
}

// Service is the ingestion engine. Each Ingest call is one atomic unit:
// either the sanitized bars, foreign rows and the advanced watermark all
// commit together, or the watermark is marked ERROR and its date stays
// where it was.
type Service struct {
	provider  domain.MarketDataProvider
	priceRepo *prices.Repository
	foreign   *prices.ForeignRepository
	tracking  *tracking.Repository
	sanitizer *prices.Sanitizer
	marketDB  *sql.DB
	calendar  *clock.Calendar
	clock     domain.Clock
	cache     CacheInvalidator
	cfg       Config
	log       zerolog.Logger
}

// NewService creates the ingestion engine. cache may be nil when no
// frame cache is wired.
func NewService(
	provider domain.MarketDataProvider,
	priceRepo *prices.Repository,
	foreign *prices.ForeignRepository,
	trackingRepo *tracking.Repository,
	sanitizer *prices.Sanitizer,
	marketDB *sql.DB,
	calendar *clock.Calendar,
	clk domain.Clock,
	cache CacheInvalidator,
	cfg Config,
	log zerolog.Logger,
) *Service {
	if cfg.EmptyWindowStride <= 0 {
		cfg.EmptyWindowStride = 365
	}
	if cfg.MaxEmptyWindows <= 0 {
		cfg.MaxEmptyWindows = 3
	}
	return &Service{
		provider:  provider,
		priceRepo: priceRepo,
		foreign:   foreign,
		tracking:  trackingRepo,
		sanitizer: sanitizer,
		marketDB:  marketDB,
		calendar:  calendar,
		clock:     clk,
		cache:     cache,
		cfg:       cfg,
		log:       log.With().Str("service", "ingestion").Logger(),
	}
}

// Ingest updates one symbol up to targetEnd. An empty provider response
// is a zero-row success and leaves the watermark untouched, so a re-run
// covers the same window again. Provider failures mark the watermark
// ERROR without moving its date.
func (s *Service) Ingest(ctx context.Context, symbol string, targetEnd time.Time) (*Result, error) {
	started := s.clock.Now()
	symbol = domain.NormalizeSymbol(symbol)

	result, err := s.ingest(ctx, symbol, targetEnd, started)
	if err != nil {
		if errors.Is(err, domain.ErrCancelled) {
			// Cancellation is not a symbol failure; the watermark keeps
			// its previous status and date.
			return nil, err
		}
		if ferr := s.tracking.Fail(symbol, s.provider.Source(), err.Error()); ferr != nil {
			s.log.Error().Err(ferr).Str("symbol", symbol).Msg("Failed to record watermark error")
		}
		return nil, err
	}
	return result, nil
}

func (s *Service) ingest(ctx context.Context, symbol string, targetEnd time.Time, started time.Time) (*Result, error) {
	if ctx.Err() != nil {
		return nil, domain.ErrCancelled
	}

	effectiveEnd := s.calendar.EffectiveEnd(s.clock.Now(), targetEnd)

	wm, err := s.tracking.GetOrCreate(symbol, s.provider.Source(), s.cfg.Genesis)
	if err != nil {
		return nil, err
	}

	lastStored, err := s.priceRepo.LastDate(symbol)
	if err != nil {
		return nil, err
	}
	coldStart := lastStored.IsZero()

	start := s.fetchStart(wm, lastStored, coldStart)
	if start.After(effectiveEnd) {
		s.log.Debug().
			Str("symbol", symbol).
			Str("watermark", domain.DateString(wm.LastUpdatedDate)).
			Msg("Symbol already up to date")
		return &Result{
			Symbol:   symbol,
			LastDate: wm.LastUpdatedDate,
			Elapsed:  s.clock.Now().Sub(started),
		}, nil
	}

	fetch, err := s.provider.FetchDaily(ctx, symbol, start, effectiveEnd)
	if err != nil {
		return nil, fmt.Errorf("fetch %s [%s, %s]: %w",
			symbol, domain.DateString(start), domain.DateString(effectiveEnd), err)
	}

	if len(fetch.Bars) == 0 && coldStart {
		fetch, err = s.probeEarlier(ctx, symbol, start)
		if err != nil {
			return nil, err
		}
	}

	if len(fetch.Bars) == 0 {
		// Genuine empty range. The watermark stays put so the next run
		// re-covers the window once the provider has the data.
		s.log.Info().
			Str("symbol", symbol).
			Str("from", domain.DateString(start)).
			Str("to", domain.DateString(effectiveEnd)).
			Msg("Provider returned no bars")
		return &Result{
			Symbol:   symbol,
			LastDate: wm.LastUpdatedDate,
			Elapsed:  s.clock.Now().Sub(started),
		}, nil
	}

	clean, dropped := s.sanitizer.Sanitize(fetch.Bars)
	if len(clean) == 0 {
		// All rows irreparable: zero-row success, watermark untouched.
		s.log.Warn().
			Str("symbol", symbol).
			Int("fetched", len(fetch.Bars)).
			Msg("All fetched bars failed sanitization")
		return &Result{
			Symbol:   symbol,
			Fetched:  len(fetch.Bars),
			Dropped:  dropped,
			LastDate: wm.LastUpdatedDate,
			Elapsed:  s.clock.Now().Sub(started),
		}, nil
	}

	var stored, foreignStored int
	err = database.WithTransaction(s.marketDB, func(tx *sql.Tx) error {
		var txErr error
		stored, txErr = s.priceRepo.UpsertBatch(tx, clean)
		if txErr != nil {
			return txErr
		}
		foreignStored, txErr = s.foreign.UpsertBatch(tx, fetch.Foreign)
		return txErr
	})
	if err != nil {
		return nil, err
	}

	lastDate := clean[len(clean)-1].Time
	elapsed := s.clock.Now().Sub(started)

	if err := s.tracking.Advance(symbol, s.provider.Source(), lastDate, int64(stored), elapsed); err != nil {
		return nil, err
	}

	if s.cache != nil && stored > 0 {
		if err := s.cache.Invalidate(symbol); err != nil {
			s.log.Warn().Err(err).Str("symbol", symbol).Msg("Frame cache invalidation failed")
		}
	}

	s.log.Info().
		Str("symbol", symbol).
		Int("fetched", len(fetch.Bars)).
		Int("stored", stored).
		Int("dropped", dropped).
		Int("foreign", foreignStored).
		Str("last_date", domain.DateString(lastDate)).
		Msg("Symbol ingested")

	return &Result{
		Symbol:        symbol,
		Fetched:       len(fetch.Bars),
		Stored:        stored,
		Dropped:       dropped,
		ForeignStored: foreignStored,
		LastDate:      lastDate,
		Elapsed:       elapsed,
	}, nil
}

// fetchStart computes the first date to fetch. The stored bars are the
// source of truth when they are ahead of the watermark (for example
// after a manual backfill).
func (s *Service) fetchStart(wm *domain.Watermark, lastStored time.Time, coldStart bool) time.Time {
	if coldStart && domain.Date(wm.LastUpdatedDate).Equal(domain.Date(s.cfg.Genesis)) {
		// First ever run: the genesis day itself is in scope.
		return domain.Date(s.cfg.Genesis)
	}

	start := domain.Date(wm.LastUpdatedDate).AddDate(0, 0, 1)
	if !lastStored.IsZero() {
		fromStored := domain.Date(lastStored).AddDate(0, 0, 1)
		if fromStored.After(start) {
			start = fromStored
		}
	}

	genesis := domain.Date(s.cfg.Genesis)
	if start.Before(genesis) {
		start = genesis
	}
	return start
}

// probeEarlier walks backward from an empty cold-start window in
// stride-day probes, looking for where the symbol's history actually
// ends. After MaxEmptyWindows consecutive empty probes the symbol is
// treated as having no history.
func (s *Service) probeEarlier(ctx context.Context, symbol string, before time.Time) (*domain.FetchResult, error) {
	windowEnd := domain.Date(before).AddDate(0, 0, -1)

	for i := 0; i < s.cfg.MaxEmptyWindows; i++ {
		if ctx.Err() != nil {
			return nil, domain.ErrCancelled
		}

		windowStart := windowEnd.AddDate(0, 0, -(s.cfg.EmptyWindowStride - 1))

		s.log.Debug().
			Str("symbol", symbol).
			Str("from", domain.DateString(windowStart)).
			Str("to", domain.DateString(windowEnd)).
			Int("probe", i+1).
			Msg("Probing earlier window for history")

		fetch, err := s.provider.FetchDaily(ctx, symbol, windowStart, windowEnd)
		if err != nil {
			return nil, fmt.Errorf("probe %s [%s, %s]: %w",
				symbol, domain.DateString(windowStart), domain.DateString(windowEnd), err)
		}
		if len(fetch.Bars) > 0 {
			return fetch, nil
		}

		windowEnd = windowStart.AddDate(0, 0, -1)
	}

	return &domain.FetchResult{}, nil
}
