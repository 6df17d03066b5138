// Package indicators computes technical indicator frames from OHLCV
// bars. Computation is pure: the same bars and config always produce
// the same frame.
package indicators

import "fmt"

// Config holds all indicator parameters. The zero value is not usable;
// start from DefaultConfig.
type Config struct {
	MAShort  int `json:"ma_short" msgpack:"ma_short"`
	MAMedium int `json:"ma_medium" msgpack:"ma_medium"`
	MALong   int `json:"ma_long" msgpack:"ma_long"`

	RSIPeriod     int     `json:"rsi_period" msgpack:"rsi_period"`
	RSIOverbought float64 `json:"rsi_overbought" msgpack:"rsi_overbought"`
	RSIOversold   float64 `json:"rsi_oversold" msgpack:"rsi_oversold"`

	MACDFast   int `json:"macd_fast" msgpack:"macd_fast"`
	MACDSlow   int `json:"macd_slow" msgpack:"macd_slow"`
	MACDSignal int `json:"macd_signal" msgpack:"macd_signal"`

	BBPeriod int     `json:"bb_period" msgpack:"bb_period"`
	BBStd    float64 `json:"bb_std" msgpack:"bb_std"`

	VolumeAvgPeriod       int     `json:"volume_avg_period" msgpack:"volume_avg_period"`
	VolumeSpikeMultiplier float64 `json:"volume_spike_multiplier" msgpack:"volume_spike_multiplier"`

	IchimokuTenkan  int `json:"ichimoku_tenkan" msgpack:"ichimoku_tenkan"`
	IchimokuKijun   int `json:"ichimoku_kijun" msgpack:"ichimoku_kijun"`
	IchimokuSenkouB int `json:"ichimoku_senkou_b" msgpack:"ichimoku_senkou_b"`

	OBVMAPeriod          int `json:"obv_ma_period" msgpack:"obv_ma_period"`
	OBVDivergenceLookback int `json:"obv_divergence_lookback" msgpack:"obv_divergence_lookback"`
	SqueezeLookback       int `json:"squeeze_lookback" msgpack:"squeeze_lookback"`
}

// DefaultConfig returns the standard parameter set.
func DefaultConfig() Config {
	return Config{
		MAShort:  9,
		MAMedium: 20,
		MALong:   50,

		RSIPeriod:     14,
		RSIOverbought: 70,
		RSIOversold:   30,

		MACDFast:   12,
		MACDSlow:   26,
		MACDSignal: 9,

		BBPeriod: 20,
		BBStd:    2.0,

		VolumeAvgPeriod:       20,
		VolumeSpikeMultiplier: 2.0,

		IchimokuTenkan:  9,
		IchimokuKijun:   26,
		IchimokuSenkouB: 52,

		OBVMAPeriod:           20,
		OBVDivergenceLookback: 5,
		SqueezeLookback:       120,
	}
}

// MinBars returns the minimum frame length the engine accepts for this
// configuration.
func (c Config) MinBars() int {
	min := c.IchimokuSenkouB
	if c.MALong > min {
		min = c.MALong
	}
	if c.BBPeriod > min {
		min = c.BBPeriod
	}
	return min
}

// Validate checks structural sanity of the parameters.
func (c Config) Validate() error {
	positive := map[string]int{
		"ma_short":          c.MAShort,
		"ma_medium":         c.MAMedium,
		"ma_long":           c.MALong,
		"rsi_period":        c.RSIPeriod,
		"macd_fast":         c.MACDFast,
		"macd_slow":         c.MACDSlow,
		"macd_signal":       c.MACDSignal,
		"bb_period":         c.BBPeriod,
		"volume_avg_period": c.VolumeAvgPeriod,
		"ichimoku_tenkan":   c.IchimokuTenkan,
		"ichimoku_kijun":    c.IchimokuKijun,
		"ichimoku_senkou_b": c.IchimokuSenkouB,
		"obv_ma_period":     c.OBVMAPeriod,
	}
	for name, v := range positive {
		if v <= 0 {
			return fmt.Errorf("indicator config: %s must be positive, got %d", name, v)
		}
	}
	if c.MACDFast >= c.MACDSlow {
		return fmt.Errorf("indicator config: macd_fast (%d) must be below macd_slow (%d)", c.MACDFast, c.MACDSlow)
	}
	if c.BBStd <= 0 {
		return fmt.Errorf("indicator config: bb_std must be positive, got %g", c.BBStd)
	}
	return nil
}
