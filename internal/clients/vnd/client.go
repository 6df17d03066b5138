// Package vnd provides the HTTP client for the VNDirect-style EOD
// market data endpoints and adapts it to the domain provider interface.
package vnd

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"io"
	"net/http"
	"net/url"
	"strconv"
	"time"

	"github.com/rs/zerolog"
	"golang.org/x/time/rate"

	"github.com/Hoangnph/vnstock-sub000/internal/domain"
)

// ClientConfig holds HTTP client parameters.
type ClientConfig struct {
	BaseURL           string
	Timeout           time.Duration
	MaxRetries        int
	RetryBaseDelay    time.Duration
	RequestsPerSecond float64
}

// Client is the low-level HTTP client for the dchart history and
// foreign-flow endpoints. One client per process; requests share a
// keep-alive transport and a token-bucket rate limiter so a full
// universe sweep stays inside the provider's rate budget.
type Client struct {
	baseURL    string
	httpClient *http.Client
	limiter    *rate.Limiter
	maxRetries int
	baseDelay  time.Duration
	log        zerolog.Logger
}

// NewClient creates a new market data HTTP client.
func NewClient(cfg ClientConfig, log zerolog.Logger) *Client {
	if cfg.Timeout <= 0 {
		cfg.Timeout = 30 * time.Second
	}
	if cfg.MaxRetries < 1 {
		cfg.MaxRetries = 3
	}
	if cfg.RetryBaseDelay <= 0 {
		cfg.RetryBaseDelay = 2 * time.Second
	}
	if cfg.RequestsPerSecond <= 0 {
		cfg.RequestsPerSecond = 2
	}

	return &Client{
		baseURL:    cfg.BaseURL,
		httpClient: &http.Client{Timeout: cfg.Timeout},
		limiter:    rate.NewLimiter(rate.Limit(cfg.RequestsPerSecond), 1),
		maxRetries: cfg.MaxRetries,
		baseDelay:  cfg.RetryBaseDelay,
		log:        log.With().Str("client", "vnd").Logger(),
	}
}

// historyResponse is the dchart OHLCV payload: parallel arrays indexed
// by bar, with s = "ok" | "no_data".
type historyResponse struct {
	Status  string    `json:"s"`
	Times   []int64   `json:"t"`
	Opens   []float64 `json:"o"`
	Highs   []float64 `json:"h"`
	Lows    []float64 `json:"l"`
	Closes  []float64 `json:"c"`
	Volumes []float64 `json:"v"`
}

// foreignRow is one day of foreign buy/sell aggregates. Field names
// vary between endpoint revisions; transformers resolve the aliases.
type foreignRow struct {
	TradingDate string   `json:"tradingDate"`
	BuyVolume   *float64 `json:"buyVol"`
	SellVolume  *float64 `json:"sellVol"`
	BuyValue    *float64 `json:"buyVal"`
	SellValue   *float64 `json:"sellVal"`
	// Legacy aliases
	BuyForeignQtty  *float64 `json:"buyForeignQtty"`
	SellForeignQtty *float64 `json:"sellForeignQtty"`
	BuyForeignValue *float64 `json:"buyForeignValue"`
	SellForeignVal  *float64 `json:"sellForeignValue"`
}

type foreignResponse struct {
	Data []foreignRow `json:"data"`
}

// GetHistory fetches OHLCV bars for [from, to] inclusive.
func (c *Client) GetHistory(ctx context.Context, symbol string, from, to time.Time) (*historyResponse, error) {
	params := url.Values{}
	params.Set("symbol", domain.NormalizeSymbol(symbol))
	params.Set("resolution", "D")
	params.Set("from", strconv.FormatInt(from.Unix(), 10))
	// dchart treats `to` as exclusive at day granularity
	params.Set("to", strconv.FormatInt(to.AddDate(0, 0, 1).Unix(), 10))

	var resp historyResponse
	if err := c.getJSON(ctx, "/dchart/history", params, &resp); err != nil {
		return nil, err
	}
	return &resp, nil
}

// GetForeignFlows fetches daily foreign buy/sell aggregates for
// [from, to] inclusive. A 404 means the endpoint has no data for the
// symbol and is treated as an empty result.
func (c *Client) GetForeignFlows(ctx context.Context, symbol string, from, to time.Time) (*foreignResponse, error) {
	params := url.Values{}
	params.Set("symbol", domain.NormalizeSymbol(symbol))
	params.Set("fromDate", domain.DateString(from))
	params.Set("toDate", domain.DateString(to))

	var resp foreignResponse
	err := c.getJSON(ctx, "/fiin/foreign-trading", params, &resp)
	if err != nil {
		var te *domain.TransportError
		if asTransport(err, &te) && te.StatusCode == http.StatusNotFound {
			return &foreignResponse{}, nil
		}
		return nil, err
	}
	return &resp, nil
}

// getJSON performs a rate-limited GET with bounded exponential backoff.
// Retryable failures (429/403/5xx, timeouts, decode errors) are retried
// up to maxRetries times; the backoff doubles per attempt.
func (c *Client) getJSON(ctx context.Context, path string, params url.Values, out interface{}) error {
	fullURL := c.baseURL + path + "?" + params.Encode()

	var lastErr error
	for attempt := 0; attempt < c.maxRetries; attempt++ {
		if attempt > 0 {
			delay := c.baseDelay << (attempt - 1)
			c.log.Debug().
				Str("url", path).
				Int("attempt", attempt+1).
				Dur("backoff", delay).
				Msg("Retrying provider request")
			select {
			case <-time.After(delay):
			case <-ctx.Done():
				return domain.ErrCancelled
			}
		}

		if err := c.limiter.Wait(ctx); err != nil {
			return domain.ErrCancelled
		}

		lastErr = c.doOnce(ctx, fullURL, out)
		if lastErr == nil {
			return nil
		}
		if ctx.Err() != nil {
			return domain.ErrCancelled
		}
		if !domain.IsRetryable(lastErr) {
			return lastErr
		}
	}

	return fmt.Errorf("provider request failed after %d attempts: %w", c.maxRetries, lastErr)
}

func (c *Client) doOnce(ctx context.Context, fullURL string, out interface{}) error {
	req, err := http.NewRequestWithContext(ctx, http.MethodGet, fullURL, nil)
	if err != nil {
		return fmt.Errorf("failed to build request: %w", err)
	}
	req.Header.Set("Accept", "application/json")
	req.Header.Set("User-Agent", "vnstock-pipeline/1.0")

	resp, err := c.httpClient.Do(req)
	if err != nil {
		return &domain.TransportError{Err: err}
	}
	defer resp.Body.Close()

	if resp.StatusCode != http.StatusOK {
		body, _ := io.ReadAll(io.LimitReader(resp.Body, 512))
		return &domain.TransportError{
			StatusCode: resp.StatusCode,
			Err:        fmt.Errorf("unexpected status: %s", string(body)),
		}
	}

	if err := json.NewDecoder(resp.Body).Decode(out); err != nil {
		return &domain.TransportError{Err: fmt.Errorf("failed to decode response: %w", err)}
	}
	return nil
}

func asTransport(err error, target **domain.TransportError) bool {
	return errors.As(err, target)
}
