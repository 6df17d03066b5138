// Package prices persists OHLCV bars and foreign-flow aggregates and
// sanitizes provider data before storage.
package prices

import (
	"math"
	"sort"

	"github.com/rs/zerolog"

	"github.com/Hoangnph/vnstock-sub000/internal/domain"
)

// Sanitizer repairs and filters raw provider bars. Repairs are applied
// in a fixed order; bars that still violate the storage invariants after
// repair are dropped, never stored. Sanitize never fails.
type Sanitizer struct {
	log zerolog.Logger
}

// NewSanitizer creates a bar sanitizer.
func NewSanitizer(log zerolog.Logger) *Sanitizer {
	return &Sanitizer{
		log: log.With().Str("component", "bar_sanitizer").Logger(),
	}
}

// Sanitize repairs, filters, deduplicates and sorts a batch of bars.
// Returns the clean batch plus the number of dropped rows.
func (s *Sanitizer) Sanitize(bars []domain.Bar) ([]domain.Bar, int) {
	out := make([]domain.Bar, 0, len(bars))
	seen := make(map[int64]bool, len(bars))
	dropped := 0

	for _, bar := range bars {
		repaired := repair(bar)

		if !repaired.Valid() {
			dropped++
			s.log.Debug().
				Str("symbol", bar.Symbol).
				Str("date", domain.DateString(bar.Time)).
				Float64("open", bar.Open).
				Float64("high", bar.High).
				Float64("low", bar.Low).
				Float64("close", bar.Close).
				Int64("volume", bar.Volume).
				Msg("Dropping bar that failed repair")
			continue
		}

		// Duplicate timestamps within the batch: keep the first
		key := repaired.Time.Unix()
		if seen[key] {
			dropped++
			continue
		}
		seen[key] = true
		out = append(out, repaired)
	}

	sort.Slice(out, func(i, j int) bool {
		return out[i].Time.Before(out[j].Time)
	})

	return out, dropped
}

// repair applies the ordered repair steps to a single bar.
func repair(bar domain.Bar) domain.Bar {
	bar.Open = coerce(bar.Open)
	bar.High = coerce(bar.High)
	bar.Low = coerce(bar.Low)
	bar.Close = coerce(bar.Close)

	if bar.Close <= 0 {
		bar.Close = bar.Open
	}
	if bar.Low > bar.Close {
		bar.Low = bar.Close
	}
	if bar.Low > bar.Open {
		bar.Low = bar.Open
	}
	if bar.High < bar.Close {
		bar.High = bar.Close
	}
	if bar.High < bar.Open {
		bar.High = bar.Open
	}
	if bar.High < bar.Low {
		bar.High = bar.Low
	}

	bar.Time = domain.Date(bar.Time)
	return bar
}

// coerce maps NaN and Inf to zero so arithmetic never poisons the batch.
func coerce(v float64) float64 {
	if math.IsNaN(v) || math.IsInf(v, 0) {
		return 0
	}
	return v
}
