package formulas

import "math"

// RSI computes the relative strength index using simple averages of
// gains and losses over the trailing period of close-to-close diffs:
//
//	RSI = 100 - 100/(1 + avgGain/avgLoss)
//
// With zero losses in the window the RSI saturates at 100; with zero
// gains it is 0. Outputs before index `period` are NaN (the diff series
// needs period samples, which requires period+1 closes).
func RSI(closes []float64, period int) []float64 {
	out := make([]float64, len(closes))
	if period <= 0 || len(closes) < period+1 {
		return nanPad(out, len(out))
	}

	gains := make([]float64, len(closes))
	losses := make([]float64, len(closes))
	for i := 1; i < len(closes); i++ {
		diff := closes[i] - closes[i-1]
		if diff > 0 {
			gains[i] = diff
		} else {
			losses[i] = -diff
		}
	}

	for i := range out {
		if i < period {
			out[i] = math.NaN()
			continue
		}
		var gainSum, lossSum float64
		for j := i - period + 1; j <= i; j++ {
			gainSum += gains[j]
			lossSum += losses[j]
		}
		avgGain := gainSum / float64(period)
		avgLoss := lossSum / float64(period)

		switch {
		case avgLoss == 0 && avgGain == 0:
			out[i] = 50.0
		case avgLoss == 0:
			out[i] = 100.0
		default:
			rs := avgGain / avgLoss
			out[i] = 100.0 - 100.0/(1.0+rs)
		}
	}
	return out
}
