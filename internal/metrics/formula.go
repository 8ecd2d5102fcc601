package metrics

import (
	"fmt"
	"math"
	"sort"
)

// #region terms

// Terms are the named inputs a Formula may combine.
type Terms struct {
	Correctness float64
	Success     float64
	Violation   float64
	Syntax      float64
	LatencyMS   float64
	Tokens      float64
	Cost        float64
	Params      float64
}

// Term names accepted by Weighted.
const (
	TermCorrectness = "correctness"
	TermSuccess     = "success"
	TermViolation   = "violation"
	TermSyntax      = "syntax"
	TermLatency     = "latency_ms"
	TermTokens      = "tokens"
	TermCost        = "cost"
	TermLogParams   = "log10_params"
	TermLogParamsB  = "log10_params_b"
)

func (t Terms) lookup(name string) (float64, bool) {
	switch name {
	case TermCorrectness:
		return t.Correctness, true
	case TermSuccess:
		return t.Success, true
	case TermViolation:
		return t.Violation, true
	case TermSyntax:
		return t.Syntax, true
	case TermLatency:
		return t.LatencyMS, true
	case TermTokens:
		return t.Tokens, true
	case TermCost:
		return t.Cost, true
	case TermLogParams:
		if t.Params <= 1 {
			return 0, true
		}
		return math.Log10(t.Params), true
	case TermLogParamsB:
		if t.Params <= 0 {
			return 0, true
		}
		return math.Log10(t.Params / 1e9), true
	}
	return 0, false
}

// #endregion terms

// #region formula

// Formula turns the terms of one run into a composite score.
type Formula interface {
	Name() string
	Eval(Terms) float64
}

type formulaFunc struct {
	name string
	fn   func(Terms) float64
}

func (f formulaFunc) Name() string         { return f.name }
func (f formulaFunc) Eval(t Terms) float64 { return f.fn(t) }

// DefaultPEP is correctness / log10(params), zero for degenerate sizes.
func DefaultPEP() Formula {
	return formulaFunc{name: "pep", fn: func(t Terms) float64 {
		if t.Params <= 1 {
			return 0
		}
		return t.Correctness / math.Log10(t.Params)
	}}
}

// DefaultPVO is correctness / (log10(params in billions) * (1 + cost)).
// Sub-billion models use |log10| and exactly one billion uses 0.1 so the
// denominator stays positive.
func DefaultPVO() Formula {
	return formulaFunc{name: "pvo", fn: func(t Terms) float64 {
		b := t.Params / 1e9
		if b <= 0 {
			return 0
		}
		lp := math.Log10(b)
		if lp <= 0 {
			lp = math.Abs(lp)
			if lp == 0 {
				lp = 0.1
			}
		}
		d := lp * (1 + t.Cost)
		if d <= 0 {
			return 0
		}
		return t.Correctness / d
	}}
}

// Weighted is a linear combination of named terms, optionally divided by
// another linear combination. Weights are configuration, never code.
type Weighted struct {
	Label       string             `yaml:"name" json:"name" validate:"required"`
	Bias        float64            `yaml:"bias" json:"bias"`
	Numerator   map[string]float64 `yaml:"numerator" json:"numerator" validate:"required,min=1"`
	Denominator map[string]float64 `yaml:"denominator,omitempty" json:"denominator,omitempty"`
	DenomBias   float64            `yaml:"denominator_bias,omitempty" json:"denominator_bias,omitempty"`
}

func (w Weighted) Name() string { return w.Label }

func (w Weighted) Eval(t Terms) float64 {
	num := w.Bias + combine(w.Numerator, t)
	if len(w.Denominator) == 0 && w.DenomBias == 0 {
		return num
	}
	den := w.DenomBias + combine(w.Denominator, t)
	if den == 0 {
		return 0
	}
	return num / den
}

// Check reports unknown term names.
func (w Weighted) Check() error {
	for _, m := range []map[string]float64{w.Numerator, w.Denominator} {
		for name := range m {
			if _, ok := (Terms{}).lookup(name); !ok {
				return fmt.Errorf("formula %s: unknown term %q", w.Label, name)
			}
		}
	}
	return nil
}

func combine(weights map[string]float64, t Terms) float64 {
	names := make([]string, 0, len(weights))
	for n := range weights {
		names = append(names, n)
	}
	// Fixed order keeps float sums reproducible.
	sort.Strings(names)
	var sum float64
	for _, n := range names {
		v, _ := t.lookup(n)
		sum += weights[n] * v
	}
	return sum
}

// #endregion formula
