package vnd

import (
	"context"
	"time"

	"github.com/rs/zerolog"

	"github.com/Hoangnph/vnstock-sub000/internal/domain"
)

// Adapter implements domain.MarketDataProvider on top of the HTTP
// client. Bars and foreign flows are fetched in one logical round-trip;
// a missing foreign endpoint never fails the bar fetch.
type Adapter struct {
	client *Client
	log    zerolog.Logger
}

// NewAdapter creates a provider adapter around the HTTP client.
func NewAdapter(client *Client, log zerolog.Logger) *Adapter {
	return &Adapter{
		client: client,
		log:    log.With().Str("component", "vnd_adapter").Logger(),
	}
}

// Source implements domain.MarketDataProvider.
func (a *Adapter) Source() domain.Source {
	return domain.SourceVND
}

// FetchDaily implements domain.MarketDataProvider.
func (a *Adapter) FetchDaily(ctx context.Context, symbol string, from, to time.Time) (*domain.FetchResult, error) {
	history, err := a.client.GetHistory(ctx, symbol, from, to)
	if err != nil {
		return nil, err
	}

	bars := transformHistory(symbol, history)

	var flows []domain.ForeignFlow
	if len(bars) > 0 {
		foreign, err := a.client.GetForeignFlows(ctx, symbol, from, to)
		if err != nil {
			// Foreign flows are supplementary; log and continue with bars only
			a.log.Warn().Err(err).Str("symbol", symbol).Msg("Foreign flow fetch failed, storing bars only")
		} else {
			flows = transformForeign(symbol, foreign)
		}
	}

	a.log.Debug().
		Str("symbol", symbol).
		Str("from", domain.DateString(from)).
		Str("to", domain.DateString(to)).
		Int("bars", len(bars)).
		Int("foreign", len(flows)).
		Msg("Fetched daily data")

	return &domain.FetchResult{Bars: bars, Foreign: flows}, nil
}
