package signals

import (
	"math"
	"testing"

	"github.com/rs/zerolog"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/Hoangnph/vnstock-sub000/internal/domain"
	"github.com/Hoangnph/vnstock-sub000/internal/modules/indicators"
	"github.com/Hoangnph/vnstock-sub000/internal/modules/scoring"
)

// flatFrame builds a two-bar frame where no default context bucket is
// extreme; individual tests bend columns as needed.
func flatFrame() *indicators.Frame {
	return &indicators.Frame{
		Symbol: "ACB",
		Times:  []int64{1704153600, 1704240000},

		Open:   []float64{10, 10.5},
		High:   []float64{11, 10.8},
		Low:    []float64{9, 10.2},
		Close:  []float64{10, 11},
		Volume: []float64{1000, 900},

		MAShort:  []float64{10, 10.2},
		MAMedium: []float64{10.1, 10.1},
		MALong:   []float64{9, 9},

		RSI: []float64{55, 60},

		MACD:       []float64{0.5, 0.6},
		MACDSignal: []float64{0.4, 0.4},
		MACDHist:   []float64{0.1, 0.2},

		BBUpper: []float64{12, 12},
		BBLower: []float64{8, 8},
		BBWidth: []float64{0.08, 0.08},

		VolAvg:      []float64{1000, 1000},
		VolumeSpike: []float64{1.0, 0.9},

		Tenkan:  []float64{10.5, 10.5},
		Kijun:   []float64{10, 10},
		SenkouA: []float64{9.5, 9.5},
		SenkouB: []float64{9.8, 9.8},

		OBV:   []float64{0, 900},
		OBVMA: []float64{0, 450},
	}
}

func sellRules(weight float64) []scoring.Rule {
	return []scoring.Rule{{
		Name:      "close_above_ma_long",
		Weight:    weight,
		Enabled:   true,
		Condition: scoring.Compare(scoring.OpGT, scoring.V("close"), scoring.V("ma_long")),
	}}
}

func newTestEngine(t *testing.T, rules []scoring.Rule, multipliers domain.RegimeMultipliers) *Engine {
	t.Helper()
	scfg := scoring.DefaultConfig()
	scfg.Rules = rules
	scfg.Multipliers = multipliers
	scorer, err := scoring.NewEngine(scfg, zerolog.Nop())
	require.NoError(t, err)
	return NewEngine(scorer, DefaultConfig(), zerolog.Nop())
}

func TestEvaluate_BelowThresholdEmitsNothing(t *testing.T) {
	engine := newTestEngine(t, sellRules(5), domain.RegimeMultipliers{})
	assert.Nil(t, engine.Evaluate(flatFrame(), 1))
}

func TestEvaluate_EmitsSellSignal(t *testing.T) {
	engine := newTestEngine(t, sellRules(90), domain.RegimeMultipliers{})

	sig := engine.Evaluate(flatFrame(), 1)
	require.NotNil(t, sig)

	assert.Equal(t, "ACB", sig.Symbol)
	assert.Equal(t, domain.ActionSell, sig.Action)
	assert.Equal(t, domain.StrengthVeryStrong, sig.Strength)
	assert.Equal(t, 90.0, sig.RawScore)
	assert.Equal(t, "2024-01-02", domain.DateString(sig.Time))
	require.Len(t, sig.TriggeredRules, 1)
	assert.Contains(t, sig.Description, "SELL")

	// Snapshot carries the indicator state at the bar
	assert.Equal(t, 11.0, sig.Indicators["close"])
}

func TestEvaluate_ContextBuckets(t *testing.T) {
	engine := newTestEngine(t, sellRules(30), domain.RegimeMultipliers{})

	f := flatFrame()
	f.BBWidth[1] = 0.02
	f.VolumeSpike[1] = 2.5
	f.RSI[1] = 75

	sig := engine.Evaluate(f, 1)
	require.NotNil(t, sig)

	assert.Equal(t, "uptrend", sig.Context.Trend)
	assert.Equal(t, "low", sig.Context.Volatility)
	assert.Equal(t, "very_high", sig.Context.Volume)
	assert.Equal(t, "overbought", sig.Context.RSIZone)
	assert.Equal(t, "mixed", sig.Context.PricePosition)
}

func TestEvaluate_PricePositionStrongAboveAll(t *testing.T) {
	engine := newTestEngine(t, sellRules(30), domain.RegimeMultipliers{})

	f := flatFrame()
	f.Close[1] = 12
	f.MAShort[1] = 11
	f.MAMedium[1] = 10.5
	f.MALong[1] = 10

	sig := engine.Evaluate(f, 1)
	require.NotNil(t, sig)
	assert.Equal(t, "strong_above_all", sig.Context.PricePosition)
}

func TestEvaluate_IchimokuBullishAppliesUptrendMultiplier(t *testing.T) {
	// With the real multipliers a bullish cloud halves a sell score
	engine := newTestEngine(t, sellRules(60), domain.DefaultRegimeMultipliers())

	f := flatFrame()
	// tenkan>kijun and close above both spans; only two bars so the
	// chikou reference is absent and does not veto
	sig := engine.Evaluate(f, 1)
	require.NotNil(t, sig)

	assert.Equal(t, "bullish", sig.Context.Ichimoku)
	assert.Equal(t, "uptrend_sell", sig.Context.Regime)
	assert.Equal(t, 60.0, sig.RawScore)
	assert.Equal(t, 30.0, sig.Score)
	assert.Equal(t, domain.StrengthMedium, sig.Strength)
}

func TestEvaluate_IchimokuChikouVeto(t *testing.T) {
	engine := newTestEngine(t, sellRules(30), domain.RegimeMultipliers{})
	cfg := DefaultConfig()
	cfg.ChikouLag = 1
	engine.cfg = cfg

	f := flatFrame()
	// close[1]=11 vs close[0]=10: chikou confirms bullish
	sig := engine.Evaluate(f, 1)
	require.NotNil(t, sig)
	assert.Equal(t, "bullish", sig.Context.Ichimoku)

	// Falling close breaks the lagging confirmation
	f.Close[1] = 9.9
	f.Tenkan[1] = 10.5 // keep primary conditions bullish-leaning
	sig = engine.Evaluate(f, 1)
	require.NotNil(t, sig)
	assert.Equal(t, "neutral", sig.Context.Ichimoku)
}

func TestEvaluate_NullCloudIsNeutral(t *testing.T) {
	engine := newTestEngine(t, sellRules(30), domain.RegimeMultipliers{})

	f := flatFrame()
	f.SenkouA[1] = math.NaN()
	sig := engine.Evaluate(f, 1)
	require.NotNil(t, sig)
	assert.Equal(t, "neutral", sig.Context.Ichimoku)
	assert.Equal(t, "sideways", sig.Context.Regime)
}

func TestEvaluateAll_SkipsWarmup(t *testing.T) {
	engine := newTestEngine(t, sellRules(30), domain.RegimeMultipliers{})

	f := flatFrame()
	f.MALong[0] = math.NaN()

	signals := engine.EvaluateAll(f)
	require.Len(t, signals, 1)
	assert.Equal(t, "2024-01-02", domain.DateString(signals[0].Time))
}
