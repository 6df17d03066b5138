package domain

import (
	"context"
	"time"
)

// FetchResult is the merged result of one provider round-trip.
type FetchResult struct {
	Bars    []Bar
	Foreign []ForeignFlow
}

// MarketDataProvider is the narrow interface over an upstream EOD data
// source. Implementations may paginate internally; callers consume the
// merged result. An empty result with a nil error is a valid "no data"
// answer (weekend, holiday, delisted range).
type MarketDataProvider interface {
	// FetchDaily returns bars and foreign-flow rows for [from, to]
	// inclusive. Bar times are normalized to midnight UTC of the
	// trading date.
	FetchDaily(ctx context.Context, symbol string, from, to time.Time) (*FetchResult, error)

	// Source identifies the provider for watermark bookkeeping.
	Source() Source
}

// UniverseProvider yields the active symbol universe. The result must be
// stable for the duration of one orchestrator run.
type UniverseProvider interface {
	ActiveSymbols(ctx context.Context) ([]Stock, error)
}

// Clock abstracts wall-clock time so the effective-date rule is testable.
type Clock interface {
	Now() time.Time
}

// ClockFunc adapts a function to the Clock interface.
type ClockFunc func() time.Time

// Now implements Clock.
func (f ClockFunc) Now() time.Time { return f() }

// SystemClock returns a Clock backed by time.Now.
func SystemClock() Clock {
	return ClockFunc(time.Now)
}
