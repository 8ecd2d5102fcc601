// Package replay re-scores recorded model replies offline. A replay runs the
// same parse, validate and score pipeline as a live benchmark, without calling
// a model, and reports every run whose scores drifted from the recorded ones.
package replay

import (
	"fmt"
	"math"

	"github.com/danielpatrickdp/greenhouse-bench/internal/bench"
	"github.com/danielpatrickdp/greenhouse-bench/internal/catalog"
	"github.com/danielpatrickdp/greenhouse-bench/internal/command"
	"github.com/danielpatrickdp/greenhouse-bench/internal/metrics"
	"github.com/danielpatrickdp/greenhouse-bench/internal/scenario"
	"github.com/danielpatrickdp/greenhouse-bench/internal/validate"
)

// #region types

// Replay actions.
const (
	ActionMatch   = "match"
	ActionDrift   = "drift"
	ActionSkipped = "skipped"
	ActionError   = "error"
)

// Case is one recorded reply.
type Case struct {
	RunID  string
	Prompt string
	Format command.Format
	Raw    string
	Model  metrics.Model
	Usage  metrics.Usage
	// Failed marks runs whose inference never produced a reply.
	Failed bool
}

// ReplayConfig holds the pipeline settings a replay runs with.
type ReplayConfig struct {
	Seed     uint64
	Validate validate.Config
	Metrics  metrics.Config
	// Epsilon bounds the accepted difference between recorded and replayed
	// scores.
	Epsilon float64
}

// DefaultReplayConfig matches bench.DefaultConfig.
func DefaultReplayConfig() ReplayConfig {
	return ReplayConfig{
		Seed:     42,
		Validate: validate.DefaultConfig(),
		Metrics:  metrics.DefaultConfig(),
		Epsilon:  1e-9,
	}
}

// Diff is one score that changed.
type Diff struct {
	Metric   string  `json:"metric"`
	Recorded float64 `json:"recorded"`
	Replayed float64 `json:"replayed"`
}

// ReplayResult is the outcome of replaying one case.
type ReplayResult struct {
	RunID   string
	Action  string
	Reason  string
	Outcome bench.Outcome
	Diffs   []Diff
}

// ReplaySummary counts results by action.
type ReplaySummary struct {
	TotalRuns int
	Matches   int
	Drifts    int
	Skipped   int
	Errors    int
}

// #endregion types

// #region replay

// Replay re-scores every case against the ground truth in suite and compares
// the result with expected, keyed by run id. Cases without an expectation are
// scored and reported as matches.
func Replay(suite *scenario.Suite, cat *catalog.Catalog, cases []Case, expected map[string]metrics.Scores, cfg ReplayConfig) []ReplayResult {
	pipe := bench.NewPipeline(cat, suite.ResponseSchema(), cfg.Validate, bench.SuiteMetrics(suite, cfg.Metrics), cfg.Seed)
	results := make([]ReplayResult, 0, len(cases))

	for _, c := range cases {
		r := ReplayResult{RunID: c.RunID}

		// 1. Runs that never produced a reply have nothing to re-score.
		if c.Failed {
			r.Action, r.Reason = ActionSkipped, "inference failed"
			results = append(results, r)
			continue
		}

		// 2. Stage and evaluate
		prompt, ok := suite.Prompt(c.Prompt)
		if !ok {
			r.Action, r.Reason = ActionError, fmt.Sprintf("unknown prompt %q", c.Prompt)
			results = append(results, r)
			continue
		}
		store, err := pipe.Stage(prompt)
		if err != nil {
			r.Action, r.Reason = ActionError, err.Error()
			results = append(results, r)
			continue
		}
		out, err := pipe.Evaluate(store, c.Format, c.Raw, prompt.GroundTruth(), c.Model, c.Usage)
		if err != nil {
			r.Action, r.Reason = ActionError, err.Error()
			results = append(results, r)
			continue
		}
		r.Outcome = out

		// 3. Compare
		want, ok := expected[c.RunID]
		if !ok {
			r.Action, r.Reason = ActionMatch, "no recorded scores"
			results = append(results, r)
			continue
		}
		r.Diffs = Compare(want, out.Scores, cfg.Epsilon)
		if len(r.Diffs) > 0 {
			r.Action = ActionDrift
			r.Reason = fmt.Sprintf("%d scores differ, first %s", len(r.Diffs), r.Diffs[0].Metric)
		} else {
			r.Action = ActionMatch
		}
		results = append(results, r)
	}

	return results
}

// Compare lists the scores of got that differ from want by more than eps.
func Compare(want, got metrics.Scores, eps float64) []Diff {
	pairs := []struct {
		name     string
		rec, rep float64
	}{
		{metrics.MetricCorrectness, want.Correctness, got.Correctness},
		{metrics.MetricSuccess, want.Success, got.Success},
		{metrics.MetricViolationRate, want.ViolationRate, got.ViolationRate},
		{metrics.MetricHallucinationRate, want.HallucinationRate, got.HallucinationRate},
		{metrics.MetricSyntaxErrorRate, want.SyntaxErrorRate, got.SyntaxErrorRate},
		{metrics.MetricCostPerTask, want.CostPerTask, got.CostPerTask},
		{metrics.MetricPEP, want.PEP, got.PEP},
		{metrics.MetricPVO, want.PVO, got.PVO},
		{"issued", float64(want.Issued), float64(got.Issued)},
		{"valid", float64(want.Valid), float64(got.Valid)},
		{"violations", float64(want.Violations), float64(got.Violations)},
		{"hallucinated", float64(want.Hallucinated), float64(got.Hallucinated)},
		{"matched", float64(want.Matched), float64(got.Matched)},
		{"substituted", float64(want.Substituted), float64(got.Substituted)},
	}
	var diffs []Diff
	for _, p := range pairs {
		if math.Abs(p.rec-p.rep) > eps {
			diffs = append(diffs, Diff{Metric: p.name, Recorded: p.rec, Replayed: p.rep})
		}
	}
	return diffs
}

// Summarize counts results by action.
func Summarize(results []ReplayResult) ReplaySummary {
	s := ReplaySummary{TotalRuns: len(results)}
	for _, r := range results {
		switch r.Action {
		case ActionMatch:
			s.Matches++
		case ActionDrift:
			s.Drifts++
		case ActionSkipped:
			s.Skipped++
		case ActionError:
			s.Errors++
		}
	}
	return s
}

// #endregion replay
