package scoring

// Rule is one weighted scoring rule. Negative weights push toward BUY,
// positive toward SELL.
type Rule struct {
	Name        string    `json:"name"`
	Weight      float64   `json:"weight"`
	Enabled     bool      `json:"enabled"`
	Description string    `json:"description,omitempty"`
	Condition   Condition `json:"condition"`
}

// DefaultRules returns the starter rule library. Weights and conditions
// are configuration, not law; runs resolve the active set from the
// config table.
func DefaultRules() []Rule {
	return []Rule{
		{
			Name:        "ma_golden_cross",
			Weight:      -20,
			Enabled:     true,
			Description: "Short MA crosses above medium MA",
			Condition:   Crossover(V("ma_short"), V("ma_medium")),
		},
		{
			Name:        "ma_death_cross",
			Weight:      20,
			Enabled:     true,
			Description: "Short MA crosses below medium MA",
			Condition:   Crossunder(V("ma_short"), V("ma_medium")),
		},
		{
			Name:        "price_above_ma_long",
			Weight:      -10,
			Enabled:     true,
			Description: "Close above the long MA",
			Condition:   Compare(OpGT, V("close"), V("ma_long")),
		},
		{
			Name:        "price_below_ma_long",
			Weight:      10,
			Enabled:     true,
			Description: "Close below the long MA",
			Condition:   Compare(OpLT, V("close"), V("ma_long")),
		},
		{
			Name:        "rsi_oversold_recovery",
			Weight:      -25,
			Enabled:     true,
			Description: "RSI crosses back above the oversold line",
			Condition:   Crossover(V("rsi"), C(30)),
		},
		{
			Name:        "rsi_overbought_rollover",
			Weight:      25,
			Enabled:     true,
			Description: "RSI crosses back below the overbought line",
			Condition:   Crossunder(V("rsi"), C(70)),
		},
		{
			Name:        "rsi_bullish_divergence",
			Weight:      -15,
			Enabled:     true,
			Description: "Price makes a lower low while RSI makes a higher low",
			Condition:   Divergence("close", "rsi", 5, DivBullish),
		},
		{
			Name:        "rsi_bearish_divergence",
			Weight:      15,
			Enabled:     true,
			Description: "Price makes a higher high while RSI makes a lower high",
			Condition:   Divergence("close", "rsi", 5, DivBearish),
		},
		{
			Name:        "macd_bullish_cross",
			Weight:      -20,
			Enabled:     true,
			Description: "MACD crosses above its signal line",
			Condition:   Crossover(V("macd"), V("signal_line")),
		},
		{
			Name:        "macd_bearish_cross",
			Weight:      20,
			Enabled:     true,
			Description: "MACD crosses below its signal line",
			Condition:   Crossunder(V("macd"), V("signal_line")),
		},
		{
			Name:        "macd_hist_expanding_up",
			Weight:      -10,
			Enabled:     true,
			Description: "Positive histogram growing versus the prior bar",
			Condition: And(
				Compare(OpGT, V("macd_hist"), C(0)),
				Compare(OpGT, V("macd_hist"), VS("macd_hist", 1)),
			),
		},
		{
			Name:        "macd_hist_expanding_down",
			Weight:      10,
			Enabled:     true,
			Description: "Negative histogram growing versus the prior bar",
			Condition: And(
				Compare(OpLT, V("macd_hist"), C(0)),
				Compare(OpLT, V("macd_hist"), VS("macd_hist", 1)),
			),
		},
		{
			Name:        "bb_lower_band_touch",
			Weight:      -15,
			Enabled:     true,
			Description: "Close below the lower Bollinger band",
			Condition:   Compare(OpLT, V("close"), V("bb_lower")),
		},
		{
			Name:        "bb_upper_band_touch",
			Weight:      15,
			Enabled:     true,
			Description: "Close above the upper Bollinger band",
			Condition:   Compare(OpGT, V("close"), V("bb_upper")),
		},
		{
			Name:        "bb_squeeze_breakout_up",
			Weight:      -15,
			Enabled:     true,
			Description: "Tight bands with price pushing above the medium MA",
			Condition: And(
				Compare(OpLT, V("bb_width"), C(0.05)),
				Compare(OpGT, V("close"), V("ma_medium")),
			),
		},
		{
			Name:        "volume_spike_up_day",
			Weight:      -15,
			Enabled:     true,
			Description: "Above-average volume on a rising close",
			Condition: And(
				Compare(OpGT, V("volume_spike"), C(1.5)),
				Compare(OpGT, V("close"), VS("close", 1)),
			),
		},
		{
			Name:        "volume_spike_down_day",
			Weight:      15,
			Enabled:     true,
			Description: "Above-average volume on a falling close",
			Condition: And(
				Compare(OpGT, V("volume_spike"), C(1.5)),
				Compare(OpLT, V("close"), VS("close", 1)),
			),
		},
		{
			Name:        "ichimoku_bullish_alignment",
			Weight:      -25,
			Enabled:     true,
			Description: "Tenkan above kijun with price above both cloud spans",
			Condition: And(
				Compare(OpGT, V("tenkan"), V("kijun")),
				Compare(OpGT, V("close"), V("senkou_a")),
				Compare(OpGT, V("close"), V("senkou_b")),
			),
		},
		{
			Name:        "ichimoku_bearish_alignment",
			Weight:      25,
			Enabled:     true,
			Description: "Tenkan below kijun with price below both cloud spans",
			Condition: And(
				Compare(OpLT, V("tenkan"), V("kijun")),
				Compare(OpLT, V("close"), V("senkou_a")),
				Compare(OpLT, V("close"), V("senkou_b")),
			),
		},
		{
			Name:        "obv_bullish_divergence",
			Weight:      -20,
			Enabled:     true,
			Description: "Price makes a lower low while OBV makes a higher low",
			Condition:   Divergence("close", "obv", 5, DivBullish),
		},
		{
			Name:        "obv_bearish_divergence",
			Weight:      20,
			Enabled:     true,
			Description: "Price makes a higher high while OBV makes a lower high",
			Condition:   Divergence("close", "obv", 5, DivBearish),
		},
	}
}
