package formulas

import (
	"math"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestSMA(t *testing.T) {
	values := []float64{1, 2, 3, 4, 5}
	out := SMA(values, 3)
	require.Len(t, out, 5)

	assert.True(t, IsNull(out[0]))
	assert.True(t, IsNull(out[1]))
	assert.InDelta(t, 2.0, out[2], 1e-12)
	assert.InDelta(t, 3.0, out[3], 1e-12)
	assert.InDelta(t, 4.0, out[4], 1e-12)
}

func TestSMA_TooShort(t *testing.T) {
	out := SMA([]float64{1, 2}, 5)
	for _, v := range out {
		assert.True(t, IsNull(v))
	}
}

func TestEMA_NoBiasAdjustment(t *testing.T) {
	// span=3 => alpha=0.5. Weighted means:
	// ema[0] = 1
	// ema[1] = (2 + 0.5*1) / 1.5 = 5/3
	// ema[2] = (3 + 0.5*2 + 0.25*1) / 1.75 = 4.25/1.75
	out := EMA([]float64{1, 2, 3}, 3)
	assert.InDelta(t, 1.0, out[0], 1e-12)
	assert.InDelta(t, 5.0/3.0, out[1], 1e-12)
	assert.InDelta(t, 4.25/1.75, out[2], 1e-12)
}

func TestEMA_ConstantSeries(t *testing.T) {
	out := EMA([]float64{7, 7, 7, 7, 7}, 10)
	for _, v := range out {
		assert.InDelta(t, 7.0, v, 1e-12)
	}
}

func TestRSI_AllGains(t *testing.T) {
	closes := make([]float64, 30)
	for i := range closes {
		closes[i] = 100 + 0.5*float64(i)
	}
	out := RSI(closes, 14)

	for i := 0; i < 14; i++ {
		assert.True(t, IsNull(out[i]), "index %d should be null", i)
	}
	for i := 14; i < len(out); i++ {
		assert.InDelta(t, 100.0, out[i], 1e-12, "index %d", i)
	}
}

func TestRSI_AllLosses(t *testing.T) {
	closes := make([]float64, 20)
	for i := range closes {
		closes[i] = 100 - float64(i)
	}
	out := RSI(closes, 14)
	assert.InDelta(t, 0.0, out[len(out)-1], 1e-12)
}

func TestRSI_FlatSeries(t *testing.T) {
	closes := make([]float64, 20)
	for i := range closes {
		closes[i] = 50
	}
	out := RSI(closes, 14)
	assert.InDelta(t, 50.0, out[len(out)-1], 1e-12)
}

func TestRSI_Balanced(t *testing.T) {
	// Alternating +1/-1 diffs: equal gains and losses => RSI 50
	closes := make([]float64, 31)
	closes[0] = 100
	for i := 1; i < len(closes); i++ {
		if i%2 == 1 {
			closes[i] = closes[i-1] + 1
		} else {
			closes[i] = closes[i-1] - 1
		}
	}
	out := RSI(closes, 14)
	assert.InDelta(t, 50.0, out[len(out)-1], 1e-9)
}

func TestBollinger(t *testing.T) {
	closes := []float64{10, 11, 12, 11, 10, 11, 12, 11, 10, 11}
	upper, lower, width := Bollinger(closes, 5, 2.0)

	for i := 0; i < 4; i++ {
		assert.True(t, IsNull(upper[i]))
		assert.True(t, IsNull(lower[i]))
		assert.True(t, IsNull(width[i]))
	}
	for i := 4; i < len(closes); i++ {
		assert.False(t, IsNull(upper[i]))
		assert.Greater(t, upper[i], lower[i])
		assert.Greater(t, width[i], 0.0)
	}
}

func TestBollinger_ConstantSeriesHasZeroWidth(t *testing.T) {
	closes := []float64{10, 10, 10, 10, 10, 10}
	upper, lower, width := Bollinger(closes, 5, 2.0)
	last := len(closes) - 1
	assert.InDelta(t, 10.0, upper[last], 1e-12)
	assert.InDelta(t, 10.0, lower[last], 1e-12)
	assert.InDelta(t, 0.0, width[last], 1e-12)
}

func TestOBV(t *testing.T) {
	closes := []float64{10, 11, 10.5, 10.5, 12}
	volumes := []float64{100, 200, 300, 400, 500}
	out := OBV(closes, volumes)

	assert.Equal(t, []float64{0, 200, -100, -100, 400}, out)
}

func TestMidpoint(t *testing.T) {
	highs := []float64{12, 13, 14, 15}
	lows := []float64{8, 9, 10, 11}
	out := Midpoint(highs, lows, 3)

	assert.True(t, IsNull(out[0]))
	assert.True(t, IsNull(out[1]))
	// window [12..14] high, [8..10] low => (14+8)/2 = 11
	assert.InDelta(t, 11.0, out[2], 1e-12)
	assert.InDelta(t, 12.0, out[3], 1e-12)
}

func TestComputeIchimoku_Shift(t *testing.T) {
	n := 80
	highs := make([]float64, n)
	lows := make([]float64, n)
	for i := 0; i < n; i++ {
		highs[i] = 100 + float64(i)
		lows[i] = 90 + float64(i)
	}

	ich := ComputeIchimoku(highs, lows, 9, 26, 52)
	require.Len(t, ich.SenkouA, n)

	// SenkouA at i is the projection computed at i-26
	for i := 0; i < 26+26-1; i++ {
		assert.True(t, IsNull(ich.SenkouA[i]), "senkou_a[%d]", i)
	}
	last := n - 1
	src := last - 26
	expected := (ich.Tenkan[src] + ich.Kijun[src]) / 2.0
	assert.InDelta(t, expected, ich.SenkouA[last], 1e-12)

	// SenkouB needs 52 bars plus the 26-bar shift
	for i := 0; i < 52+26-1; i++ {
		assert.True(t, IsNull(ich.SenkouB[i]), "senkou_b[%d]", i)
	}
	assert.False(t, IsNull(ich.SenkouB[last]))
}

func TestShift(t *testing.T) {
	out := Shift([]float64{1, 2, 3, 4}, 2)
	assert.True(t, IsNull(out[0]))
	assert.True(t, IsNull(out[1]))
	assert.Equal(t, 1.0, out[2])
	assert.Equal(t, 2.0, out[3])
}

func TestRollingStd_SampleVariance(t *testing.T) {
	out := RollingStd([]float64{2, 4, 4, 4, 5, 5, 7, 9}, 8)
	// Sample std (ddof=1) of this classic set is ~2.138
	assert.InDelta(t, 2.138, out[7], 1e-3)
	assert.True(t, math.IsNaN(out[6]))
}

func TestMACD_Relationship(t *testing.T) {
	closes := make([]float64, 60)
	for i := range closes {
		closes[i] = 100 + 0.5*float64(i)
	}
	macd, signal, hist := MACD(closes, 12, 26, 9)
	for i := range closes {
		assert.InDelta(t, macd[i]-signal[i], hist[i], 1e-12)
	}
	// Steady uptrend: fast EMA above slow EMA in the tail
	assert.Greater(t, macd[len(macd)-1], 0.0)
}
