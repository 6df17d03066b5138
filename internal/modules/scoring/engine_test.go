package scoring

import (
	"math"
	"testing"

	"github.com/rs/zerolog"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/Hoangnph/vnstock-sub000/internal/domain"
	"github.com/Hoangnph/vnstock-sub000/internal/modules/indicators"
)

// testFrame builds a two-bar frame with hand-set columns so individual
// rule conditions can be pinned precisely.
func testFrame() *indicators.Frame {
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
		BBWidth: []float64{0.4, 0.4},

		VolAvg:      []float64{1000, 1000},
		VolumeSpike: []float64{1.0, 0.9},

		Tenkan:  []float64{10, 10},
		Kijun:   []float64{10, 10},
		SenkouA: []float64{9.5, 9.5},
		SenkouB: []float64{9.8, 9.8},

		OBV:   []float64{0, 900},
		OBVMA: []float64{0, 450},
	}
}

func newEngine(t *testing.T, cfg Config) *Engine {
	t.Helper()
	engine, err := NewEngine(cfg, zerolog.Nop())
	require.NoError(t, err)
	return engine
}

func scenarioRules() []Rule {
	return []Rule{
		{
			Name:      "close_above_ma_long",
			Weight:    30,
			Enabled:   true,
			Condition: Compare(OpGT, V("close"), V("ma_long")),
		},
		{
			Name:      "macd_above_signal",
			Weight:    60,
			Enabled:   true,
			Condition: Compare(OpGT, V("macd"), V("signal_line")),
		},
	}
}

func TestCalculate_ScoreIsSumOfFiredWeights(t *testing.T) {
	cfg := DefaultConfig()
	cfg.Rules = scenarioRules()
	engine := newEngine(t, cfg)

	score, triggered := engine.Calculate(testFrame(), 1)
	assert.Equal(t, 90.0, score)
	require.Len(t, triggered, 2)
	assert.Equal(t, "close_above_ma_long", triggered[0].Name)
	assert.Equal(t, "macd_above_signal", triggered[1].Name)
}

func TestCalculate_TogglingRuleShiftsScoreByItsWeight(t *testing.T) {
	cfg := DefaultConfig()
	cfg.Rules = scenarioRules()
	engine := newEngine(t, cfg)

	base, _ := engine.Calculate(testFrame(), 1)

	cfg.Rules[1].Enabled = false
	engine = newEngine(t, cfg)
	reduced, triggered := engine.Calculate(testFrame(), 1)

	assert.Equal(t, base-60, reduced)
	require.Len(t, triggered, 1)
	assert.Equal(t, "close_above_ma_long", triggered[0].Name)
}

// neutralConfig has no regime multipliers configured, so every regime
// falls back to 1.0 and the raw score maps directly.
func neutralConfig() Config {
	cfg := DefaultConfig()
	cfg.Multipliers = domain.RegimeMultipliers{}
	return cfg
}

func TestMap_ScenarioThresholds(t *testing.T) {
	engine := newEngine(t, neutralConfig())

	action, strength, adjusted := engine.Map(90, domain.RegimeSideways)
	assert.Equal(t, domain.ActionSell, action)
	assert.Equal(t, domain.StrengthVeryStrong, strength)
	assert.Equal(t, 90.0, adjusted)

	action, strength, _ = engine.Map(30, domain.RegimeSideways)
	assert.Equal(t, domain.ActionSell, action)
	assert.Equal(t, domain.StrengthMedium, strength)

	action, strength, _ = engine.Map(0, domain.RegimeSideways)
	assert.Equal(t, domain.ActionHold, action)
	assert.Equal(t, domain.StrengthWeak, strength)
}

func TestMap_BuySideAndStrongBand(t *testing.T) {
	engine := newEngine(t, neutralConfig())

	action, strength, _ := engine.Map(-80, domain.RegimeSideways)
	assert.Equal(t, domain.ActionBuy, action)
	assert.Equal(t, domain.StrengthVeryStrong, strength)

	action, strength, _ = engine.Map(-60, domain.RegimeSideways)
	assert.Equal(t, domain.ActionBuy, action)
	assert.Equal(t, domain.StrengthStrong, strength)

	action, strength, _ = engine.Map(-30, domain.RegimeSideways)
	assert.Equal(t, domain.ActionBuy, action)
	assert.Equal(t, domain.StrengthMedium, strength)
}

func TestMap_RegimeMultiplier(t *testing.T) {
	engine := newEngine(t, DefaultConfig())

	// Uptrend dampens sell scores: 60 * 0.5 = 30 stays a SELL but drops
	// from STRONG to MEDIUM
	action, strength, adjusted := engine.Map(60, domain.RegimeUptrendSell)
	assert.Equal(t, 30.0, adjusted)
	assert.Equal(t, domain.ActionSell, action)
	assert.Equal(t, domain.StrengthMedium, strength)

	// Uptrend amplifies buy scores: -60 * 1.5 = -90
	action, strength, adjusted = engine.Map(-60, domain.RegimeUptrendBuy)
	assert.Equal(t, -90.0, adjusted)
	assert.Equal(t, domain.ActionBuy, action)
	assert.Equal(t, domain.StrengthVeryStrong, strength)
}

func TestCalculate_UnknownVariableFailsRuleNotRun(t *testing.T) {
	cfg := DefaultConfig()
	cfg.Rules = []Rule{
		{
			Name:      "broken",
			Weight:    50,
			Enabled:   true,
			Condition: Compare(OpGT, V("no_such_column"), C(1)),
		},
		{
			Name:      "valid",
			Weight:    30,
			Enabled:   true,
			Condition: Compare(OpGT, V("close"), V("ma_long")),
		},
	}
	engine := newEngine(t, cfg)

	score, triggered := engine.Calculate(testFrame(), 1)
	assert.Equal(t, 30.0, score)
	require.Len(t, triggered, 1)
	assert.Equal(t, "valid", triggered[0].Name)
}

func TestCalculate_DisallowedShiftFailsRule(t *testing.T) {
	cfg := DefaultConfig()
	cfg.Rules = []Rule{{
		Name:      "bad_shift",
		Weight:    50,
		Enabled:   true,
		Condition: Compare(OpGT, VS("close", 3), C(1)),
	}}
	engine := newEngine(t, cfg)

	score, triggered := engine.Calculate(testFrame(), 1)
	assert.Equal(t, 0.0, score)
	assert.Empty(t, triggered)
}

func TestCrossover(t *testing.T) {
	f := testFrame()
	// MAShort moves from below MAMedium (10 <= 10.1) to above (10.2 > 10.1)
	fired, err := evaluate(Crossover(V("ma_short"), V("ma_medium")), f, 1)
	require.NoError(t, err)
	assert.True(t, fired)

	// No crossover at index 0: no prior bar
	fired, err = evaluate(Crossover(V("ma_short"), V("ma_medium")), f, 0)
	require.NoError(t, err)
	assert.False(t, fired)

	// Crossunder is the mirror and must not fire
	fired, err = evaluate(Crossunder(V("ma_short"), V("ma_medium")), f, 1)
	require.NoError(t, err)
	assert.False(t, fired)
}

func TestCrossover_NullPreviousBarIsFalse(t *testing.T) {
	f := testFrame()
	f.MAShort[0] = math.NaN()

	fired, err := evaluate(Crossover(V("ma_short"), V("ma_medium")), f, 1)
	require.NoError(t, err)
	assert.False(t, fired)
}

func TestDivergence(t *testing.T) {
	f := &indicators.Frame{
		Symbol: "ACB",
		Times:  make([]int64, 6),
		Close:  []float64{10, 10, 10, 10, 10, 9},  // lower low over 5 bars
		RSI:    []float64{40, 40, 40, 40, 40, 45}, // higher low
	}

	fired, err := evaluate(Divergence("close", "rsi", 5, DivBullish), f, 5)
	require.NoError(t, err)
	assert.True(t, fired)

	fired, err = evaluate(Divergence("close", "rsi", 5, DivBearish), f, 5)
	require.NoError(t, err)
	assert.False(t, fired)

	// Window not yet available
	fired, err = evaluate(Divergence("close", "rsi", 5, DivBullish), f, 4)
	require.NoError(t, err)
	assert.False(t, fired)
}

func TestLaggedComparison(t *testing.T) {
	f := testFrame()

	// close[1]=11 > close[0]=10
	fired, err := evaluate(Compare(OpGT, V("close"), VS("close", 1)), f, 1)
	require.NoError(t, err)
	assert.True(t, fired)

	// Absent lag at index 0 makes the comparison false, not an error
	fired, err = evaluate(Compare(OpGT, V("close"), VS("close", 1)), f, 0)
	require.NoError(t, err)
	assert.False(t, fired)
}

func TestConfigValidate_ThresholdOrdering(t *testing.T) {
	cfg := DefaultConfig()
	require.NoError(t, cfg.Validate())

	cfg.BuyMedium = -80 // below BuyStrong
	assert.Error(t, cfg.Validate())

	cfg = DefaultConfig()
	cfg.SellMedium = 100
	assert.Error(t, cfg.Validate())
}

func TestDefaultRules_EvaluateCleanly(t *testing.T) {
	engine := newEngine(t, DefaultConfig())
	f := testFrame()

	// Every default rule must resolve against the closed variable set
	// without evaluation errors; firing or not is data-dependent.
	for _, rule := range DefaultRules() {
		_, err := evaluate(rule.Condition, f, 1)
		assert.NoError(t, err, rule.Name)
	}

	score, _ := engine.Calculate(f, 1)
	assert.False(t, math.IsNaN(score))
}
