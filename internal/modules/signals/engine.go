// Package signals derives market context from indicator frames and
// emits trading signals for bars whose score clears the threshold.
package signals

import (
	"fmt"
	"math"
	"time"

	"github.com/rs/zerolog"

	"github.com/Hoangnph/vnstock-sub000/internal/domain"
	"github.com/Hoangnph/vnstock-sub000/internal/modules/indicators"
	"github.com/Hoangnph/vnstock-sub000/internal/modules/scoring"
)

// Config holds the context bucket boundaries and the emission threshold.
type Config struct {
	MinScoreThreshold float64 `json:"min_score_threshold"`

	BBWidthLow  float64 `json:"bb_width_low"`
	BBWidthHigh float64 `json:"bb_width_high"`

	VolumeLow      float64 `json:"volume_low"`
	VolumeHigh     float64 `json:"volume_high"`
	VolumeVeryHigh float64 `json:"volume_very_high"`

	RSIOverbought float64 `json:"rsi_overbought"`
	RSIOversold   float64 `json:"rsi_oversold"`

	// ChikouLag is the historical offset used for the Ichimoku lagging
	// confirmation, conventionally the kijun period.
	ChikouLag int `json:"chikou_lag"`
}

// DefaultConfig returns the standard context boundaries.
func DefaultConfig() Config {
	return Config{
		MinScoreThreshold: 10,
		BBWidthLow:        0.05,
		BBWidthHigh:       0.10,
		VolumeLow:         0.5,
		VolumeHigh:        1.5,
		VolumeVeryHigh:    2.0,
		RSIOverbought:     70,
		RSIOversold:       30,
		ChikouLag:         26,
	}
}

// Context is the derived market context attached to each signal.
type Context struct {
	Trend         string `json:"trend"`
	Volatility    string `json:"volatility"`
	Volume        string `json:"volume"`
	RSIZone       string `json:"rsi_zone"`
	Ichimoku      string `json:"ichimoku"`
	PricePosition string `json:"price_position"`
	Regime        string `json:"regime"`
}

// Signal is a materialized recommendation for one bar.
type Signal struct {
	Symbol         string
	Time           time.Time
	Action         domain.Action
	Strength       domain.Strength
	Score          float64 // regime-adjusted
	RawScore       float64
	Description    string
	TriggeredRules []scoring.TriggeredRule
	Context        Context
	Indicators     map[string]interface{}
}

// Engine combines the scoring engine with context derivation.
type Engine struct {
	scorer *scoring.Engine
	cfg    Config
	log    zerolog.Logger
}

// NewEngine creates a signal engine.
func NewEngine(scorer *scoring.Engine, cfg Config, log zerolog.Logger) *Engine {
	return &Engine{
		scorer: scorer,
		cfg:    cfg,
		log:    log.With().Str("component", "signals").Logger(),
	}
}

// Config returns the engine's configuration.
func (e *Engine) Config() Config {
	return e.cfg
}

// Scorer returns the underlying scoring engine.
func (e *Engine) Scorer() *scoring.Engine {
	return e.scorer
}

// Evaluate scores bar i and returns a signal, or nil when the score
// stays below the emission threshold.
func (e *Engine) Evaluate(f *indicators.Frame, i int) *Signal {
	score, triggered := e.scorer.Calculate(f, i)
	if math.Abs(score) < e.cfg.MinScoreThreshold {
		return nil
	}

	ctx := e.deriveContext(f, i)
	regime := e.regime(ctx.Ichimoku, score)
	ctx.Regime = regime.String()

	action, strength, adjusted := e.scorer.Map(score, regime)

	return &Signal{
		Symbol:         f.Symbol,
		Time:           f.Time(i),
		Action:         action,
		Strength:       strength,
		Score:          adjusted,
		RawScore:       score,
		Description:    fmt.Sprintf("%s (%s): score %.1f, %d rules fired", action, strength, adjusted, len(triggered)),
		TriggeredRules: triggered,
		Context:        ctx,
		Indicators:     f.Snapshot(i),
	}
}

// EvaluateAll walks the frame from the warm-up boundary and collects
// every emitted signal in bar order.
func (e *Engine) EvaluateAll(f *indicators.Frame) []Signal {
	var out []Signal
	for i := e.warmup(f); i < f.Len(); i++ {
		if sig := e.Evaluate(f, i); sig != nil {
			out = append(out, *sig)
		}
	}
	return out
}

// warmup returns the first index where the slowest columns are defined.
func (e *Engine) warmup(f *indicators.Frame) int {
	for i := 0; i < f.Len(); i++ {
		if !indicators.IsNull(f.MALong[i]) && !indicators.IsNull(f.SenkouB[i]) {
			return i
		}
	}
	return f.Len()
}

func (e *Engine) deriveContext(f *indicators.Frame, i int) Context {
	return Context{
		Trend:         e.trend(f, i),
		Volatility:    e.volatility(f, i),
		Volume:        e.volumeBucket(f, i),
		RSIZone:       e.rsiZone(f, i),
		Ichimoku:      e.ichimoku(f, i),
		PricePosition: e.pricePosition(f, i),
	}
}

func (e *Engine) trend(f *indicators.Frame, i int) string {
	short, long := f.MAShort[i], f.MALong[i]
	if indicators.IsNull(short) || indicators.IsNull(long) {
		return "sideways"
	}
	switch {
	case short > long:
		return "uptrend"
	case short < long:
		return "downtrend"
	default:
		return "sideways"
	}
}

func (e *Engine) volatility(f *indicators.Frame, i int) string {
	w := f.BBWidth[i]
	if indicators.IsNull(w) {
		return "normal"
	}
	switch {
	case w < e.cfg.BBWidthLow:
		return "low"
	case w > e.cfg.BBWidthHigh:
		return "high"
	default:
		return "normal"
	}
}

func (e *Engine) volumeBucket(f *indicators.Frame, i int) string {
	s := f.VolumeSpike[i]
	if indicators.IsNull(s) {
		return "normal"
	}
	switch {
	case s > e.cfg.VolumeVeryHigh:
		return "very_high"
	case s > e.cfg.VolumeHigh:
		return "high"
	case s < e.cfg.VolumeLow:
		return "low"
	default:
		return "normal"
	}
}

func (e *Engine) rsiZone(f *indicators.Frame, i int) string {
	r := f.RSI[i]
	if indicators.IsNull(r) {
		return "neutral"
	}
	switch {
	case r > e.cfg.RSIOverbought:
		return "overbought"
	case r < e.cfg.RSIOversold:
		return "oversold"
	default:
		return "neutral"
	}
}

// ichimoku summarizes the cloud regime. The lagging (chikou)
// confirmation compares the current close with the close ChikouLag bars
// back; without that history the regime stays neutral unless the
// primary conditions alone are decisive.
func (e *Engine) ichimoku(f *indicators.Frame, i int) string {
	tenkan, kijun := f.Tenkan[i], f.Kijun[i]
	senkouA, senkouB := f.SenkouA[i], f.SenkouB[i]
	close := f.Close[i]

	if indicators.IsNull(tenkan) || indicators.IsNull(kijun) ||
		indicators.IsNull(senkouA) || indicators.IsNull(senkouB) {
		return "neutral"
	}

	cloudTop := math.Max(senkouA, senkouB)
	cloudBottom := math.Min(senkouA, senkouB)

	chikouBull, chikouBear := true, true
	if j := i - e.cfg.ChikouLag; j >= 0 {
		chikouBull = close > f.Close[j]
		chikouBear = close < f.Close[j]
	}

	switch {
	case tenkan > kijun && close > cloudTop && chikouBull:
		return "bullish"
	case tenkan < kijun && close < cloudBottom && chikouBear:
		return "bearish"
	default:
		return "neutral"
	}
}

func (e *Engine) pricePosition(f *indicators.Frame, i int) string {
	close := f.Close[i]
	short, medium, long := f.MAShort[i], f.MAMedium[i], f.MALong[i]

	if indicators.IsNull(short) || indicators.IsNull(medium) || indicators.IsNull(long) {
		return "mixed"
	}
	switch {
	case close > short && short > medium && medium > long:
		return "strong_above_all"
	case close < short && short < medium && medium < long:
		return "strong_below_all"
	default:
		return "mixed"
	}
}

// regime maps the Ichimoku summary and the score side onto the
// multiplier regime: bullish clouds are uptrends, bearish downtrends,
// and the side comes from the score sign (negative = buy).
func (e *Engine) regime(ichimoku string, score float64) domain.Regime {
	buySide := score < 0
	switch ichimoku {
	case "bullish":
		if buySide {
			return domain.RegimeUptrendBuy
		}
		return domain.RegimeUptrendSell
	case "bearish":
		if buySide {
			return domain.RegimeDowntrendBuy
		}
		return domain.RegimeDowntrendSell
	default:
		return domain.RegimeSideways
	}
}
