package indicators

import (
	"fmt"
	"math"

	"github.com/Hoangnph/vnstock-sub000/pkg/formulas"
)

// Engine computes indicator columns for a frame. It holds no mutable
// state; two engines with the same config are interchangeable.
type Engine struct {
	cfg Config
}

// NewEngine creates an indicator engine for the given config.
func NewEngine(cfg Config) (*Engine, error) {
	if err := cfg.Validate(); err != nil {
		return nil, err
	}
	return &Engine{cfg: cfg}, nil
}

// Config returns the engine's parameter set.
func (e *Engine) Config() Config {
	return e.cfg
}

// Compute fills the indicator columns of the frame in place and returns
// it. The frame must carry at least MinBars rows of aligned OHLCV
// columns. Warm-up entries are NaN.
func (e *Engine) Compute(f *Frame) (*Frame, error) {
	if err := f.validateBase(); err != nil {
		return nil, err
	}
	if f.Len() < e.cfg.MinBars() {
		return nil, fmt.Errorf("frame for %s has %d bars, need at least %d",
			f.Symbol, f.Len(), e.cfg.MinBars())
	}

	f.MAShort = formulas.SMA(f.Close, e.cfg.MAShort)
	f.MAMedium = formulas.SMA(f.Close, e.cfg.MAMedium)
	f.MALong = formulas.SMA(f.Close, e.cfg.MALong)

	f.RSI = formulas.RSI(f.Close, e.cfg.RSIPeriod)

	f.MACD, f.MACDSignal, f.MACDHist = formulas.MACD(
		f.Close, e.cfg.MACDFast, e.cfg.MACDSlow, e.cfg.MACDSignal)

	f.BBUpper, f.BBLower, f.BBWidth = formulas.Bollinger(
		f.Close, e.cfg.BBPeriod, e.cfg.BBStd)

	f.VolAvg = formulas.SMA(f.Volume, e.cfg.VolumeAvgPeriod)
	f.VolumeSpike = volumeSpike(f.Volume, f.VolAvg)

	ichimoku := formulas.ComputeIchimoku(f.High, f.Low,
		e.cfg.IchimokuTenkan, e.cfg.IchimokuKijun, e.cfg.IchimokuSenkouB)
	f.Tenkan = ichimoku.Tenkan
	f.Kijun = ichimoku.Kijun
	f.SenkouA = ichimoku.SenkouA
	f.SenkouB = ichimoku.SenkouB

	f.OBV = formulas.OBV(f.Close, f.Volume)
	f.OBVMA = formulas.RollingMean(f.OBV, e.cfg.OBVMAPeriod)

	return f, nil
}

// volumeSpike is volume relative to its rolling average; null while the
// average is warming up or zero.
func volumeSpike(volume, volAvg []float64) []float64 {
	out := make([]float64, len(volume))
	for i := range out {
		if formulas.IsNull(volAvg[i]) || volAvg[i] == 0 {
			out[i] = math.NaN()
			continue
		}
		out[i] = volume[i] / volAvg[i]
	}
	return out
}
