package replay

import (
	"os"
	"testing"

	"github.com/danielpatrickdp/greenhouse-bench/internal/catalog"
	"github.com/danielpatrickdp/greenhouse-bench/internal/command"
	"github.com/danielpatrickdp/greenhouse-bench/internal/metrics"
	"github.com/danielpatrickdp/greenhouse-bench/internal/validate"
)

func writeFile(path string, data []byte) error {
	return os.WriteFile(path, data, 0o644)
}

// helper: P01 case cooling GH005 twice from 32 °C.
func coolTwice(runID string) Case {
	return Case{
		RunID:  runID,
		Prompt: "P01",
		Format: command.FormatJSON,
		Raw: `{"error": false, "actions": [
			{"greenhouse_id": "GH005", "actuator": "temperature_control", "action": "cool"},
			{"greenhouse_id": "GH005", "actuator": "temperature_control", "action": "cool"}]}`,
		Model: metrics.Model{Params: 12e9},
	}
}

// 1. Changed scores are reported as drift with per-metric diffs.
func TestReplay_DetectsDrift(t *testing.T) {
	suite := defaultSuite(t)
	c := coolTwice("run-1")
	recorded := metrics.Scores{Correctness: 0.5, Success: 1, Issued: 2, Valid: 2, Matched: 1}

	results := Replay(suite, catalog.Default(), []Case{c}, map[string]metrics.Scores{"run-1": recorded}, DefaultReplayConfig())

	r := results[0]
	if r.Action != ActionDrift {
		t.Fatalf("expected drift, got %s", r.Action)
	}
	found := map[string]Diff{}
	for _, d := range r.Diffs {
		found[d.Metric] = d
	}
	if d, ok := found[metrics.MetricCorrectness]; !ok || d.Recorded != 0.5 || d.Replayed != 1 {
		t.Fatalf("expected correctness diff 0.5 -> 1, got %+v", r.Diffs)
	}
	if _, ok := found["matched"]; ok {
		t.Fatalf("matched count did not change: %+v", r.Diffs)
	}
}

// 2. Validator settings flow through: without sequential projection both
// cools start from 32 and stay valid; with it the second lands on 28.
func TestReplay_UsesValidatorConfig(t *testing.T) {
	suite := defaultSuite(t)
	cfg := DefaultReplayConfig()

	seq := Replay(suite, catalog.Default(), []Case{coolTwice("a")}, nil, cfg)
	after := seq[0].Outcome.Results[1].Verdict.After
	if after != 28 {
		t.Fatalf("sequential: expected second cool to reach 28, got %v", after)
	}

	cfg.Validate = validate.Config{TowardComfort: true}
	flat := Replay(suite, catalog.Default(), []Case{coolTwice("b")}, nil, cfg)
	if got := flat[0].Outcome.Results[1].Verdict.Before; got != 32 {
		t.Fatalf("non-sequential: expected second cool to start at 32, got %v", got)
	}
	if flat[0].Action != ActionMatch || flat[0].Reason != "no recorded scores" {
		t.Fatalf("unexpected action without expectation: %s %s", flat[0].Action, flat[0].Reason)
	}
}

// 3. Unknown prompts are errors, not panics.
func TestReplay_UnknownPrompt(t *testing.T) {
	c := coolTwice("x")
	c.Prompt = "P99"
	results := Replay(defaultSuite(t), catalog.Default(), []Case{c}, nil, DefaultReplayConfig())
	if results[0].Action != ActionError {
		t.Fatalf("expected error action, got %s", results[0].Action)
	}
	if s := Summarize(results); s.Errors != 1 || s.TotalRuns != 1 {
		t.Fatalf("unexpected summary: %+v", s)
	}
}

// 4. Compare honors epsilon.
func TestCompare_Epsilon(t *testing.T) {
	a := metrics.Scores{PEP: 0.1}
	b := metrics.Scores{PEP: 0.1 + 1e-12}
	if d := Compare(a, b, 1e-9); len(d) != 0 {
		t.Fatalf("expected no diff within epsilon, got %+v", d)
	}
	if d := Compare(a, b, 0); len(d) != 1 || d[0].Metric != metrics.MetricPEP {
		t.Fatalf("expected a pep diff, got %+v", d)
	}
}
