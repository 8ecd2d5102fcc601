// Package metrics scores single runs and aggregates scores across runs.
package metrics

import (
	"math"

	"github.com/danielpatrickdp/greenhouse-bench/internal/catalog"
	"github.com/danielpatrickdp/greenhouse-bench/internal/command"
	"github.com/danielpatrickdp/greenhouse-bench/internal/validate"
)

// #region config

// Config selects the composite formulas and the value tolerance used when
// matching commands.
type Config struct {
	PEP       Formula
	PVO       Formula
	Tolerance float64
}

// DefaultConfig uses the published PEP and PVO definitions.
func DefaultConfig() Config {
	return Config{PEP: DefaultPEP(), PVO: DefaultPVO(), Tolerance: 1e-6}
}

// #endregion config

// #region score

// Score computes the metric vector of one run. It is pure.
func Score(in Input, cfg Config) Scores {
	var s Scores
	s.CostPerTask = CostPerTask(in.Model, in.Usage)

	if in.SyntaxFailed {
		s.SyntaxErrorRate = 1
		return finish(s, in, cfg)
	}

	counts := validate.Tally(in.Results)
	s.Issued, s.Valid, s.Violations, s.Hallucinated = counts.Issued, counts.Valid, counts.Violations, counts.Hallucinated
	if s.Issued > 0 {
		s.ViolationRate = float64(s.Violations) / float64(s.Issued)
		s.HallucinationRate = float64(s.Hallucinated) / float64(s.Issued)
	}
	if in.Response.Rows > 0 {
		s.SyntaxErrorRate = float64(len(in.Response.RowErrors)) / float64(in.Response.Rows)
	}

	switch {
	case in.Truth.ExpectError:
		s.Correctness, s.Success = scoreRefusal(in)
	case len(in.Truth.Expected) == 0:
		if !in.Response.Error {
			s.Success = 1
			if s.Violations == 0 && s.Hallucinated == 0 {
				s.Correctness = 1
			}
		}
	default:
		eq := in.Truth.Equivalence
		if eq == nil {
			eq = SameTarget
		}
		s.Matched, s.Substituted = match(in.Truth.Expected, in.Results, eq, cfg.Tolerance)
		n := float64(len(in.Truth.Expected))
		s.Correctness = float64(s.Matched) / n
		s.Success = float64(s.Matched+s.Substituted) / n
	}
	return finish(s, in, cfg)
}

func finish(s Scores, in Input, cfg Config) Scores {
	t := Terms{
		Correctness: s.Correctness,
		Success:     s.Success,
		Violation:   s.ViolationRate,
		Syntax:      s.SyntaxErrorRate,
		LatencyMS:   in.Usage.InferenceMS,
		Tokens:      float64(in.Usage.InputTokens + in.Usage.OutputTokens),
		Cost:        s.CostPerTask,
		Params:      in.Model.Params,
	}
	if cfg.PEP != nil {
		s.PEP = cfg.PEP.Eval(t)
	}
	if cfg.PVO != nil {
		s.PVO = cfg.PVO.Eval(t)
	}
	return s
}

// CostPerTask is in*P_in/1000 + out*P_out/1000.
func CostPerTask(m Model, u Usage) float64 {
	return float64(u.InputTokens)*m.PricePer1KIn/1000 + float64(u.OutputTokens)*m.PricePer1KOut/1000
}

// scoreRefusal rewards flagging an invalid request. Flagging it while still
// driving actuators earns half credit.
func scoreRefusal(in Input) (correctness, success float64) {
	if !in.Response.Error {
		return 0, 0
	}
	for _, r := range in.Results {
		if r.Command.Action != catalog.ActionRead {
			return 0.5, 1
		}
	}
	return 1, 1
}

// match pairs expected commands one-to-one with valid issued commands. Exact
// matches are taken first; leftovers may pair through eq.
func match(expected []command.Command, results []validate.Result, eq Equivalence, tol float64) (matched, substituted int) {
	used := make([]bool, len(results))
	pending := make([]command.Command, 0, len(expected))

	for _, exp := range expected {
		found := false
		for i, r := range results {
			if used[i] || !r.Verdict.Valid() {
				continue
			}
			if canonical(exp, r.Command, tol) {
				used[i], found = true, true
				matched++
				break
			}
		}
		if !found {
			pending = append(pending, exp)
		}
	}
	for _, exp := range pending {
		for i, r := range results {
			if used[i] || !r.Verdict.Valid() {
				continue
			}
			if eq(exp, r.Command) {
				used[i] = true
				substituted++
				break
			}
		}
	}
	return matched, substituted
}

func canonical(exp, got command.Command, tol float64) bool {
	if exp.Greenhouse != got.Greenhouse || exp.Device != got.Device || exp.Action != got.Action {
		return false
	}
	if exp.Value == nil {
		return true
	}
	return got.Value != nil && math.Abs(*exp.Value-*got.Value) <= tol
}

// #endregion score
