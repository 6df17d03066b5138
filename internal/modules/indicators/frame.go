package indicators

import (
	"fmt"
	"math"
	"time"

	"github.com/Hoangnph/vnstock-sub000/internal/domain"
	"github.com/Hoangnph/vnstock-sub000/pkg/formulas"
)

// Frame is a column-oriented view of a symbol's bars plus computed
// indicator columns. All columns share the same length and index; nulls
// are NaN in memory and become JSON null when snapshotted.
type Frame struct {
	Symbol string  `msgpack:"symbol"`
	Times  []int64 `msgpack:"times"` // unix seconds, midnight UTC dates

	Open   []float64 `msgpack:"open"`
	High   []float64 `msgpack:"high"`
	Low    []float64 `msgpack:"low"`
	Close  []float64 `msgpack:"close"`
	Volume []float64 `msgpack:"volume"`

	MAShort  []float64 `msgpack:"ma_short"`
	MAMedium []float64 `msgpack:"ma_medium"`
	MALong   []float64 `msgpack:"ma_long"`

	RSI []float64 `msgpack:"rsi"`

	MACD       []float64 `msgpack:"macd"`
	MACDSignal []float64 `msgpack:"signal_line"`
	MACDHist   []float64 `msgpack:"macd_hist"`

	BBUpper []float64 `msgpack:"bb_upper"`
	BBLower []float64 `msgpack:"bb_lower"`
	BBWidth []float64 `msgpack:"bb_width"`

	VolAvg      []float64 `msgpack:"vol_avg"`
	VolumeSpike []float64 `msgpack:"volume_spike"`

	Tenkan  []float64 `msgpack:"tenkan"`
	Kijun   []float64 `msgpack:"kijun"`
	SenkouA []float64 `msgpack:"senkou_a"`
	SenkouB []float64 `msgpack:"senkou_b"`

	OBV   []float64 `msgpack:"obv"`
	OBVMA []float64 `msgpack:"obv_ma"`
}

// NewFrame builds the base frame from bars. Bars are assumed ascending
// and deduplicated, as the price repository returns them.
func NewFrame(symbol string, bars []domain.Bar) *Frame {
	f := &Frame{
		Symbol: domain.NormalizeSymbol(symbol),
		Times:  make([]int64, len(bars)),
		Open:   make([]float64, len(bars)),
		High:   make([]float64, len(bars)),
		Low:    make([]float64, len(bars)),
		Close:  make([]float64, len(bars)),
		Volume: make([]float64, len(bars)),
	}
	for i, b := range bars {
		f.Times[i] = b.Time.Unix()
		f.Open[i] = b.Open
		f.High[i] = b.High
		f.Low[i] = b.Low
		f.Close[i] = b.Close
		f.Volume[i] = float64(b.Volume)
	}
	return f
}

// Len returns the number of bars in the frame.
func (f *Frame) Len() int {
	return len(f.Times)
}

// Time returns the bar time at index i.
func (f *Frame) Time(i int) time.Time {
	return time.Unix(f.Times[i], 0).UTC()
}

// Column returns the named column. Names follow the rule-variable
// alphabet: open, high, low, close, volume, ma_short, ma_medium,
// ma_long, rsi, macd, signal_line, macd_hist, bb_upper, bb_lower,
// bb_width, volume_spike, tenkan, kijun, senkou_a, senkou_b, obv,
// obv_ma.
func (f *Frame) Column(name string) ([]float64, bool) {
	switch name {
	case "open":
		return f.Open, true
	case "high":
		return f.High, true
	case "low":
		return f.Low, true
	case "close":
		return f.Close, true
	case "volume":
		return f.Volume, true
	case "ma_short":
		return f.MAShort, true
	case "ma_medium":
		return f.MAMedium, true
	case "ma_long":
		return f.MALong, true
	case "rsi":
		return f.RSI, true
	case "macd":
		return f.MACD, true
	case "signal_line":
		return f.MACDSignal, true
	case "macd_hist":
		return f.MACDHist, true
	case "bb_upper":
		return f.BBUpper, true
	case "bb_lower":
		return f.BBLower, true
	case "bb_width":
		return f.BBWidth, true
	case "volume_spike":
		return f.VolumeSpike, true
	case "tenkan":
		return f.Tenkan, true
	case "kijun":
		return f.Kijun, true
	case "senkou_a":
		return f.SenkouA, true
	case "senkou_b":
		return f.SenkouB, true
	case "obv":
		return f.OBV, true
	case "obv_ma":
		return f.OBVMA, true
	default:
		return nil, false
	}
}

// computedColumns lists the indicator columns in snapshot order.
var computedColumns = []string{
	"ma_short", "ma_medium", "ma_long",
	"rsi",
	"macd", "signal_line", "macd_hist",
	"bb_upper", "bb_lower", "bb_width",
	"volume_spike",
	"tenkan", "kijun", "senkou_a", "senkou_b",
	"obv", "obv_ma",
}

// Snapshot returns the indicator values at index i as a JSON-friendly
// map: NaN entries become nil so encoding/json emits null.
func (f *Frame) Snapshot(i int) map[string]interface{} {
	out := make(map[string]interface{}, len(computedColumns)+5)
	out["close"] = f.Close[i]
	out["volume"] = f.Volume[i]
	for _, name := range computedColumns {
		col, _ := f.Column(name)
		if len(col) <= i || math.IsNaN(col[i]) {
			out[name] = nil
			continue
		}
		out[name] = col[i]
	}
	return out
}

// validateBase checks that the raw columns are present and aligned.
func (f *Frame) validateBase() error {
	n := len(f.Times)
	if n == 0 {
		return fmt.Errorf("frame for %s is empty", f.Symbol)
	}
	for name, col := range map[string][]float64{
		"open":   f.Open,
		"high":   f.High,
		"low":    f.Low,
		"close":  f.Close,
		"volume": f.Volume,
	} {
		if len(col) != n {
			return fmt.Errorf("frame for %s: column %s has %d rows, want %d",
				f.Symbol, name, len(col), n)
		}
	}
	return nil
}

// IsNull reports whether a frame value is the null marker.
func IsNull(v float64) bool {
	return formulas.IsNull(v)
}
