// Package scoring evaluates weighted rule sets over indicator frames
// and maps the resulting score to a trading action.
package scoring

import (
	"fmt"
	"math"

	"github.com/Hoangnph/vnstock-sub000/internal/modules/indicators"
)

// Condition kinds.
const (
	KindCompare    = "compare"
	KindAnd        = "and"
	KindOr         = "or"
	KindNot        = "not"
	KindCrossover  = "crossover"  // left crosses above right
	KindCrossunder = "crossunder" // left crosses below right
	KindDivergence = "divergence"
)

// Comparison operators.
const (
	OpGT = "gt"
	OpLT = "lt"
	OpGE = "ge"
	OpLE = "le"
)

// Divergence directions.
const (
	DivBullish = "bullish"
	DivBearish = "bearish"
)

// allowedShifts is the closed set of lag offsets rules may reference.
var allowedShifts = map[int]bool{0: true, 1: true, 2: true, 5: true}

// Operand is a value reference in a condition: either a frame column
// (optionally lagged) or a constant.
type Operand struct {
	Var   string   `json:"var,omitempty"`
	Shift int      `json:"shift,omitempty"`
	Const *float64 `json:"const,omitempty"`
}

// Condition is the tagged-variant rule condition. Kind selects which
// fields are meaningful: compare uses Op/Left/Right, and/or/not use
// Args, crossover/crossunder use Left/Right, divergence uses
// Price/Indicator/Lookback/Direction.
type Condition struct {
	Kind      string      `json:"kind"`
	Op        string      `json:"op,omitempty"`
	Left      *Operand    `json:"left,omitempty"`
	Right     *Operand    `json:"right,omitempty"`
	Args      []Condition `json:"args,omitempty"`
	Price     string      `json:"price,omitempty"`
	Indicator string      `json:"indicator,omitempty"`
	Lookback  int         `json:"lookback,omitempty"`
	Direction string      `json:"direction,omitempty"`
}

// Constructors used by the default rule library and tests.

// V references a frame column at the current bar.
func V(name string) *Operand { return &Operand{Var: name} }

// VS references a frame column lagged by k bars.
func VS(name string, k int) *Operand { return &Operand{Var: name, Shift: k} }

// C is a constant operand.
func C(v float64) *Operand { return &Operand{Const: &v} }

// Compare builds a comparison condition.
func Compare(op string, left, right *Operand) Condition {
	return Condition{Kind: KindCompare, Op: op, Left: left, Right: right}
}

// And is true when every argument is true.
func And(args ...Condition) Condition { return Condition{Kind: KindAnd, Args: args} }

// Or is true when any argument is true.
func Or(args ...Condition) Condition { return Condition{Kind: KindOr, Args: args} }

// Not negates a single condition.
func Not(arg Condition) Condition { return Condition{Kind: KindNot, Args: []Condition{arg}} }

// Crossover is true when left moves from at-or-below right to above it.
func Crossover(left, right *Operand) Condition {
	return Condition{Kind: KindCrossover, Left: left, Right: right}
}

// Crossunder is true when left moves from at-or-above right to below it.
func Crossunder(left, right *Operand) Condition {
	return Condition{Kind: KindCrossunder, Left: left, Right: right}
}

// Divergence compares the direction of a price column against an
// indicator column over a lookback window.
func Divergence(price, indicator string, lookback int, direction string) Condition {
	return Condition{
		Kind:      KindDivergence,
		Price:     price,
		Indicator: indicator,
		Lookback:  lookback,
		Direction: direction,
	}
}

// evaluate resolves a condition against frame index i. A null operand
// value makes the enclosing comparison false rather than an error;
// unknown identifiers and malformed conditions are errors, which fail
// the rule they belong to.
func evaluate(c Condition, f *indicators.Frame, i int) (bool, error) {
	switch c.Kind {
	case KindCompare:
		l, lnull, err := resolve(c.Left, f, i)
		if err != nil {
			return false, err
		}
		r, rnull, err := resolve(c.Right, f, i)
		if err != nil {
			return false, err
		}
		if lnull || rnull {
			return false, nil
		}
		return compare(c.Op, l, r)

	case KindAnd:
		if len(c.Args) == 0 {
			return false, fmt.Errorf("and condition with no arguments")
		}
		for _, arg := range c.Args {
			ok, err := evaluate(arg, f, i)
			if err != nil || !ok {
				return false, err
			}
		}
		return true, nil

	case KindOr:
		if len(c.Args) == 0 {
			return false, fmt.Errorf("or condition with no arguments")
		}
		for _, arg := range c.Args {
			ok, err := evaluate(arg, f, i)
			if err != nil {
				return false, err
			}
			if ok {
				return true, nil
			}
		}
		return false, nil

	case KindNot:
		if len(c.Args) != 1 {
			return false, fmt.Errorf("not condition needs exactly one argument")
		}
		ok, err := evaluate(c.Args[0], f, i)
		if err != nil {
			return false, err
		}
		return !ok, nil

	case KindCrossover, KindCrossunder:
		return evaluateCross(c, f, i)

	case KindDivergence:
		return evaluateDivergence(c, f, i)

	default:
		return false, fmt.Errorf("unknown condition kind %q", c.Kind)
	}
}

func compare(op string, l, r float64) (bool, error) {
	switch op {
	case OpGT:
		return l > r, nil
	case OpLT:
		return l < r, nil
	case OpGE:
		return l >= r, nil
	case OpLE:
		return l <= r, nil
	default:
		return false, fmt.Errorf("unknown comparison operator %q", op)
	}
}

func evaluateCross(c Condition, f *indicators.Frame, i int) (bool, error) {
	if i < 1 {
		return false, nil
	}
	lNow, lNowNull, err := resolve(c.Left, f, i)
	if err != nil {
		return false, err
	}
	rNow, rNowNull, err := resolve(c.Right, f, i)
	if err != nil {
		return false, err
	}
	lPrev, lPrevNull, err := resolve(c.Left, f, i-1)
	if err != nil {
		return false, err
	}
	rPrev, rPrevNull, err := resolve(c.Right, f, i-1)
	if err != nil {
		return false, err
	}
	if lNowNull || rNowNull || lPrevNull || rPrevNull {
		return false, nil
	}
	if c.Kind == KindCrossover {
		return lNow > rNow && lPrev <= rPrev, nil
	}
	return lNow < rNow && lPrev >= rPrev, nil
}

// evaluateDivergence checks whether price and indicator moved in
// opposite directions over the lookback window. Bullish: price made a
// lower low while the indicator made a higher low. Bearish: price made
// a higher high while the indicator made a lower high.
func evaluateDivergence(c Condition, f *indicators.Frame, i int) (bool, error) {
	if c.Lookback <= 0 {
		return false, fmt.Errorf("divergence condition needs a positive lookback")
	}
	if c.Direction != DivBullish && c.Direction != DivBearish {
		return false, fmt.Errorf("unknown divergence direction %q", c.Direction)
	}
	if i < c.Lookback {
		return false, nil
	}

	price, priceNull, err := columnAt(c.Price, f, i)
	if err != nil {
		return false, err
	}
	priceRef, priceRefNull, err := columnAt(c.Price, f, i-c.Lookback)
	if err != nil {
		return false, err
	}
	ind, indNull, err := columnAt(c.Indicator, f, i)
	if err != nil {
		return false, err
	}
	indRef, indRefNull, err := columnAt(c.Indicator, f, i-c.Lookback)
	if err != nil {
		return false, err
	}
	if priceNull || priceRefNull || indNull || indRefNull {
		return false, nil
	}

	if c.Direction == DivBullish {
		return price < priceRef && ind > indRef, nil
	}
	return price > priceRef && ind < indRef, nil
}

// resolve evaluates an operand at frame index i. The second return is
// true when the value is null (absent lag or warm-up NaN).
func resolve(op *Operand, f *indicators.Frame, i int) (float64, bool, error) {
	if op == nil {
		return 0, false, fmt.Errorf("condition is missing an operand")
	}
	if op.Const != nil {
		return *op.Const, false, nil
	}
	if !allowedShifts[op.Shift] {
		return 0, false, fmt.Errorf("shift %d is outside the allowed set", op.Shift)
	}
	return columnAt(op.Var, f, i-op.Shift)
}

func columnAt(name string, f *indicators.Frame, i int) (float64, bool, error) {
	col, ok := f.Column(name)
	if !ok {
		return 0, false, fmt.Errorf("unknown rule variable %q", name)
	}
	if i < 0 || i >= len(col) {
		return 0, true, nil
	}
	if math.IsNaN(col[i]) {
		return 0, true, nil
	}
	return col[i], false, nil
}
