package scoring

import (
	"fmt"

	"github.com/rs/zerolog"

	"github.com/Hoangnph/vnstock-sub000/internal/domain"
	"github.com/Hoangnph/vnstock-sub000/internal/modules/indicators"
)

// Config holds the scoring thresholds, regime multipliers and the rule
// set. Thresholds follow the sign convention: negative scores are the
// BUY side, positive the SELL side.
type Config struct {
	BuyStrong         float64                  `json:"buy_strong"`
	BuyMedium         float64                  `json:"buy_medium"`
	SellMedium        float64                  `json:"sell_medium"`
	SellStrong        float64                  `json:"sell_strong"`
	MinScoreThreshold float64                  `json:"min_score_threshold"`
	Multipliers       domain.RegimeMultipliers `json:"multipliers"`
	Rules             []Rule                   `json:"rules"`
}

// DefaultConfig returns the standard thresholds with the starter rule
// library.
func DefaultConfig() Config {
	return Config{
		BuyStrong:         -75,
		BuyMedium:         -25,
		SellMedium:        25,
		SellStrong:        75,
		MinScoreThreshold: 10,
		Multipliers:       domain.DefaultRegimeMultipliers(),
		Rules:             DefaultRules(),
	}
}

// Validate checks threshold ordering.
func (c Config) Validate() error {
	if !(c.BuyStrong < c.BuyMedium && c.BuyMedium < 0 &&
		0 < c.SellMedium && c.SellMedium < c.SellStrong) {
		return fmt.Errorf("scoring thresholds out of order: %g < %g < 0 < %g < %g required",
			c.BuyStrong, c.BuyMedium, c.SellMedium, c.SellStrong)
	}
	if c.MinScoreThreshold < 0 {
		return fmt.Errorf("min_score_threshold must be non-negative, got %g", c.MinScoreThreshold)
	}
	return nil
}

// TriggeredRule records one rule that fired during scoring.
type TriggeredRule struct {
	Name        string  `json:"name"`
	Weight      float64 `json:"weight"`
	Description string  `json:"description,omitempty"`
}

// Engine evaluates the configured rules against frame bars.
type Engine struct {
	cfg Config
	log zerolog.Logger
}

// NewEngine creates a scoring engine.
func NewEngine(cfg Config, log zerolog.Logger) (*Engine, error) {
	if err := cfg.Validate(); err != nil {
		return nil, err
	}
	return &Engine{
		cfg: cfg,
		log: log.With().Str("component", "scoring").Logger(),
	}, nil
}

// Config returns the engine's configuration.
func (e *Engine) Config() Config {
	return e.cfg
}

// Calculate evaluates every enabled rule at frame index i and returns
// the summed score plus the rules that fired. A rule whose condition
// cannot be evaluated (unknown variable, malformed AST) is skipped and
// logged; it never aborts the calculation.
func (e *Engine) Calculate(f *indicators.Frame, i int) (float64, []TriggeredRule) {
	var score float64
	var triggered []TriggeredRule

	for _, rule := range e.cfg.Rules {
		if !rule.Enabled {
			continue
		}
		fired, err := evaluate(rule.Condition, f, i)
		if err != nil {
			e.log.Warn().
				Err(err).
				Str("rule", rule.Name).
				Str("symbol", f.Symbol).
				Msg("Rule evaluation failed, skipping rule")
			continue
		}
		if fired {
			score += rule.Weight
			triggered = append(triggered, TriggeredRule{
				Name:        rule.Name,
				Weight:      rule.Weight,
				Description: rule.Description,
			})
		}
	}

	return score, triggered
}

// Map converts a raw score into an action and strength, applying the
// regime multiplier first. The strength ladder splits the span between
// the medium and strong thresholds in half for STRONG.
func (e *Engine) Map(score float64, regime domain.Regime) (domain.Action, domain.Strength, float64) {
	adjusted := score * e.cfg.Multipliers.For(regime)

	var action domain.Action
	switch {
	case adjusted <= e.cfg.BuyMedium:
		action = domain.ActionBuy
	case adjusted >= e.cfg.SellMedium:
		action = domain.ActionSell
	default:
		action = domain.ActionHold
	}

	return action, e.strength(adjusted), adjusted
}

func (e *Engine) strength(adjusted float64) domain.Strength {
	var magnitude, medium, strong float64
	if adjusted < 0 {
		magnitude = -adjusted
		medium = -e.cfg.BuyMedium
		strong = -e.cfg.BuyStrong
	} else {
		magnitude = adjusted
		medium = e.cfg.SellMedium
		strong = e.cfg.SellStrong
	}

	switch {
	case magnitude >= strong:
		return domain.StrengthVeryStrong
	case magnitude >= (medium+strong)/2:
		return domain.StrengthStrong
	case magnitude >= medium:
		return domain.StrengthMedium
	default:
		return domain.StrengthWeak
	}
}
