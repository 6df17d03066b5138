// Package formulas provides the numeric kernels behind the indicator
// engine. Rolling outputs are slices aligned with their input; entries
// before the window is full are NaN. All computation is deterministic
// double precision.
package formulas

import (
	"math"

	"github.com/markcheno/go-talib"
	"gonum.org/v1/gonum/stat"
)

// IsNull reports whether a computed value is the null marker (NaN).
func IsNull(v float64) bool {
	return math.IsNaN(v)
}

// Null returns the null marker used for warm-up entries.
func Null() float64 {
	return math.NaN()
}

// nanPad overwrites the first n entries of out with NaN. go-talib fills
// its lookback region with zeros, which would read as real values.
func nanPad(out []float64, n int) []float64 {
	if n > len(out) {
		n = len(out)
	}
	for i := 0; i < n; i++ {
		out[i] = math.NaN()
	}
	return out
}

// SMA computes the simple moving average over the full window.
func SMA(values []float64, period int) []float64 {
	if period <= 0 || len(values) < period {
		return nanPad(make([]float64, len(values)), len(values))
	}
	return nanPad(talib.Sma(values, period), period-1)
}

// RollingMax computes the highest value over the trailing window.
func RollingMax(values []float64, period int) []float64 {
	if period <= 0 || len(values) < period {
		return nanPad(make([]float64, len(values)), len(values))
	}
	return nanPad(talib.Max(values, period), period-1)
}

// RollingMin computes the lowest value over the trailing window.
func RollingMin(values []float64, period int) []float64 {
	if period <= 0 || len(values) < period {
		return nanPad(make([]float64, len(values)), len(values))
	}
	return nanPad(talib.Min(values, period), period-1)
}

// RollingStd computes the trailing sample standard deviation (ddof=1),
// matching the statistics the scoring rules were calibrated against.
func RollingStd(values []float64, period int) []float64 {
	out := make([]float64, len(values))
	for i := range out {
		if i < period-1 {
			out[i] = math.NaN()
			continue
		}
		window := values[i-period+1 : i+1]
		out[i] = stat.StdDev(window, nil)
	}
	return out
}

// RollingMean computes the trailing mean without talib, used where the
// window contents need NaN awareness (e.g. OBV averages).
func RollingMean(values []float64, period int) []float64 {
	out := make([]float64, len(values))
	for i := range out {
		if i < period-1 {
			out[i] = math.NaN()
			continue
		}
		window := values[i-period+1 : i+1]
		out[i] = stat.Mean(window, nil)
	}
	return out
}

// Shift returns values displaced forward by k: out[i] = values[i-k].
// The first k entries are NaN. Used for Ichimoku cloud projection.
func Shift(values []float64, k int) []float64 {
	out := make([]float64, len(values))
	for i := range out {
		if i < k || IsNull(values[i-k]) {
			out[i] = math.NaN()
			continue
		}
		out[i] = values[i-k]
	}
	return out
}
