package formulas

import "math"

// Bollinger computes the upper band, lower band and relative band width
// over closes: middle = SMA(period), bands = middle +/- k*sigma where
// sigma is the trailing sample standard deviation, and
// width = (upper - lower) / middle.
func Bollinger(closes []float64, period int, k float64) (upper, lower, width []float64) {
	middle := SMA(closes, period)
	sigma := RollingStd(closes, period)

	upper = make([]float64, len(closes))
	lower = make([]float64, len(closes))
	width = make([]float64, len(closes))

	for i := range closes {
		if IsNull(middle[i]) || IsNull(sigma[i]) {
			upper[i] = math.NaN()
			lower[i] = math.NaN()
			width[i] = math.NaN()
			continue
		}
		upper[i] = middle[i] + k*sigma[i]
		lower[i] = middle[i] - k*sigma[i]
		if middle[i] != 0 {
			width[i] = (upper[i] - lower[i]) / middle[i]
		} else {
			width[i] = math.NaN()
		}
	}
	return upper, lower, width
}
