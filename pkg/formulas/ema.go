package formulas

import "math"

// EMA computes the exponentially weighted moving average with
// alpha = 2/(span+1) and the standard no-bias adjustment: each output is
// the weighted mean of all samples seen so far,
//
//	ema[t] = sum_{i=0..t} (1-a)^i * x[t-i] / sum_{i=0..t} (1-a)^i
//
// computed incrementally via numerator/denominator recursion. Every
// output from index 0 is defined (no warm-up nulls).
func EMA(values []float64, span int) []float64 {
	out := make([]float64, len(values))
	if span <= 0 || len(values) == 0 {
		return nanPad(out, len(out))
	}

	alpha := 2.0 / (float64(span) + 1.0)
	decay := 1.0 - alpha

	var num, den float64
	for i, v := range values {
		if math.IsNaN(v) {
			// Propagate nulls but keep the recursion state
			out[i] = math.NaN()
			continue
		}
		num = num*decay + v
		den = den*decay + 1.0
		out[i] = num / den
	}
	return out
}

// MACD computes the MACD line, its signal line and the histogram:
// macd = EMA(fast) - EMA(slow), signal = EMA(macd, signalSpan),
// hist = macd - signal.
func MACD(closes []float64, fast, slow, signalSpan int) (macd, signal, hist []float64) {
	emaFast := EMA(closes, fast)
	emaSlow := EMA(closes, slow)

	macd = make([]float64, len(closes))
	for i := range macd {
		macd[i] = emaFast[i] - emaSlow[i]
	}

	signal = EMA(macd, signalSpan)

	hist = make([]float64, len(closes))
	for i := range hist {
		hist[i] = macd[i] - signal[i]
	}
	return macd, signal, hist
}
