package domain

// Regime is the market regime used to scale a raw score before signal
// mapping. Modeled as a sum type rather than free-form strings so a typo
// in a multiplier key is a compile error, not a silent no-op.
type Regime int

const (
	RegimeSideways Regime = iota
	RegimeUptrendBuy
	RegimeUptrendSell
	RegimeDowntrendBuy
	RegimeDowntrendSell
)

// String returns the label persisted in signal context payloads.
func (r Regime) String() string {
	switch r {
	case RegimeUptrendBuy:
		return "uptrend_buy"
	case RegimeUptrendSell:
		return "uptrend_sell"
	case RegimeDowntrendBuy:
		return "downtrend_buy"
	case RegimeDowntrendSell:
		return "downtrend_sell"
	default:
		return "sideways"
	}
}

// RegimeMultipliers scales raw scores by regime. Zero value means "no
// adjustment"; use DefaultRegimeMultipliers for the standard set.
type RegimeMultipliers struct {
	UptrendBuy    float64 `json:"uptrend_buy"`
	UptrendSell   float64 `json:"uptrend_sell"`
	DowntrendBuy  float64 `json:"downtrend_buy"`
	DowntrendSell float64 `json:"downtrend_sell"`
	Sideways      float64 `json:"sideways"`
}

// DefaultRegimeMultipliers returns the standard context multipliers:
// signals aligned with the prevailing trend are amplified, counter-trend
// signals damped, and sideways markets discounted.
func DefaultRegimeMultipliers() RegimeMultipliers {
	return RegimeMultipliers{
		UptrendBuy:    1.5,
		UptrendSell:   0.5,
		DowntrendBuy:  0.5,
		DowntrendSell: 1.5,
		Sideways:      0.7,
	}
}

// For returns the multiplier for a regime. Unset (zero) multipliers fall
// back to 1.0 so a partial config never zeroes out scores.
func (m RegimeMultipliers) For(r Regime) float64 {
	var v float64
	switch r {
	case RegimeUptrendBuy:
		v = m.UptrendBuy
	case RegimeUptrendSell:
		v = m.UptrendSell
	case RegimeDowntrendBuy:
		v = m.DowntrendBuy
	case RegimeDowntrendSell:
		v = m.DowntrendSell
	default:
		v = m.Sideways
	}
	if v == 0 {
		return 1.0
	}
	return v
}
