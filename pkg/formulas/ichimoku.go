package formulas

import "math"

// Midpoint computes the rolling (highest high + lowest low) / 2 over the
// trailing window. This is the building block for tenkan, kijun and
// senkou span B.
func Midpoint(highs, lows []float64, period int) []float64 {
	hh := RollingMax(highs, period)
	ll := RollingMin(lows, period)

	out := make([]float64, len(highs))
	for i := range out {
		if IsNull(hh[i]) || IsNull(ll[i]) {
			out[i] = math.NaN()
			continue
		}
		out[i] = (hh[i] + ll[i]) / 2.0
	}
	return out
}

// Ichimoku holds the computed Ichimoku component series.
type Ichimoku struct {
	Tenkan  []float64
	Kijun   []float64
	SenkouA []float64
	SenkouB []float64
}

// ComputeIchimoku computes the Ichimoku components. Senkou spans are
// shifted forward by the kijun period so that the cloud at index i was
// projected from bar i-kijun.
func ComputeIchimoku(highs, lows []float64, tenkan, kijun, senkouB int) Ichimoku {
	t := Midpoint(highs, lows, tenkan)
	k := Midpoint(highs, lows, kijun)

	senkouA := make([]float64, len(highs))
	for i := range senkouA {
		if IsNull(t[i]) || IsNull(k[i]) {
			senkouA[i] = math.NaN()
			continue
		}
		senkouA[i] = (t[i] + k[i]) / 2.0
	}

	return Ichimoku{
		Tenkan:  t,
		Kijun:   k,
		SenkouA: Shift(senkouA, kijun),
		SenkouB: Shift(Midpoint(highs, lows, senkouB), kijun),
	}
}
