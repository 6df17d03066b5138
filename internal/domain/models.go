// Package domain holds the core market data model shared by all modules.
// It is pure: no database, HTTP or logging dependencies.
package domain

import (
	"strings"
	"time"
)

// Source identifies the upstream market data provider a row came from.
type Source string

const (
	// SourceVND - VNDirect dchart endpoint (primary EOD source)
	SourceVND Source = "VND"
	// SourceTCBS - TCBS long-term bars endpoint (secondary source)
	SourceTCBS Source = "TCBS"
)

// Bar is a daily OHLCV bar for a symbol.
// Time is normalized by the provider adapter to midnight UTC of the
// trading date, so date arithmetic on bars is exact.
type Bar struct {
	Symbol string    `json:"symbol"`
	Time   time.Time `json:"time"`
	Open   float64   `json:"open"`
	High   float64   `json:"high"`
	Low    float64   `json:"low"`
	Close  float64   `json:"close"`
	Volume int64     `json:"volume"`
	Source Source    `json:"source"`
}

// Value returns the traded value of the bar (close price x volume).
func (b Bar) Value() float64 {
	return b.Close * float64(b.Volume)
}

// Valid reports whether the bar satisfies the persisted-bar invariants:
// close > 0, low <= min(open, close), high >= max(open, close),
// high >= low, volume >= 0.
func (b Bar) Valid() bool {
	if b.Close <= 0 || b.Volume < 0 {
		return false
	}
	if b.Low > b.Open || b.Low > b.Close {
		return false
	}
	if b.High < b.Open || b.High < b.Close {
		return false
	}
	return b.High >= b.Low
}

// ForeignFlow is a daily foreign buy/sell aggregate for a symbol.
type ForeignFlow struct {
	Symbol     string    `json:"symbol"`
	Time       time.Time `json:"time"`
	BuyVolume  int64     `json:"buy_volume"`
	SellVolume int64     `json:"sell_volume"`
	BuyValue   float64   `json:"buy_value"`
	SellValue  float64   `json:"sell_value"`
	Source     Source    `json:"source"`
}

// NetVolume returns foreign buy volume minus sell volume.
func (f ForeignFlow) NetVolume() int64 {
	return f.BuyVolume - f.SellVolume
}

// NetValue returns foreign buy value minus sell value.
func (f ForeignFlow) NetValue() float64 {
	return f.BuyValue - f.SellValue
}

// UpdateStatus is the state of the last ingestion attempt for a
// (symbol, source) pair.
type UpdateStatus string

const (
	UpdatePending UpdateStatus = "PENDING"
	UpdateSuccess UpdateStatus = "SUCCESS"
	UpdateError   UpdateStatus = "ERROR"
)

// Watermark tracks how far a (symbol, source) pair has been ingested.
// LastUpdatedDate is the inclusive date through which stored data are
// authoritative; it is monotonic non-decreasing under successful updates.
type Watermark struct {
	Symbol           string       `json:"symbol"`
	Source           Source       `json:"source"`
	LastUpdatedDate  time.Time    `json:"last_updated_date"`
	TotalRecords     int64        `json:"total_records"`
	LastUpdateStatus UpdateStatus `json:"last_update_status"`
	LastErrorMessage string       `json:"last_error_message,omitempty"`
	LastDurationSecs float64      `json:"last_update_duration_seconds"`
	UpdatedAt        time.Time    `json:"updated_at"`
}

// StockStatus is the lifecycle state of a universe entry.
type StockStatus string

const (
	StockNew      StockStatus = "NEW"
	StockActive   StockStatus = "ACTIVE"
	StockInactive StockStatus = "INACTIVE"
	StockUnknown  StockStatus = "UNKNOWN"
)

// Stock is an entry in the symbol universe.
type Stock struct {
	Symbol        string      `json:"symbol"`
	Name          string      `json:"name"`
	Exchange      string      `json:"exchange"`
	Sector        string      `json:"sector"`
	Industry      string      `json:"industry"`
	Tier          string      `json:"tier"`
	Rank          int         `json:"rank"`
	Status        StockStatus `json:"status"`
	FirstAppeared time.Time   `json:"first_appeared"`
	WeeksActive   int         `json:"weeks_active"`
	IsActive      bool        `json:"is_active"`
}

// NormalizeSymbol uppercases and trims a ticker symbol.
func NormalizeSymbol(symbol string) string {
	return strings.ToUpper(strings.TrimSpace(symbol))
}

// Action is a discrete trading recommendation.
type Action string

const (
	ActionBuy  Action = "BUY"
	ActionSell Action = "SELL"
	ActionHold Action = "HOLD"
)

// Strength grades how far a score sits beyond the signal thresholds.
type Strength string

const (
	StrengthWeak       Strength = "WEAK"
	StrengthMedium     Strength = "MEDIUM"
	StrengthStrong     Strength = "STRONG"
	StrengthVeryStrong Strength = "VERY_STRONG"
)

// Date returns t truncated to midnight UTC.
func Date(t time.Time) time.Time {
	y, m, d := t.UTC().Date()
	return time.Date(y, m, d, 0, 0, 0, 0, time.UTC)
}

// DateString formats a date as YYYY-MM-DD.
func DateString(t time.Time) string {
	return t.UTC().Format("2006-01-02")
}
