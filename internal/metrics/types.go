package metrics

import (
	"github.com/danielpatrickdp/greenhouse-bench/internal/command"
	"github.com/danielpatrickdp/greenhouse-bench/internal/validate"
)

// #region ground-truth

// Equivalence decides whether got is an acceptable substitute for expected.
// Both commands are already known to be Valid.
type Equivalence func(expected, got command.Command) bool

// SameTarget accepts any valid command on the expected greenhouse and device.
func SameTarget(expected, got command.Command) bool {
	return expected.Greenhouse == got.Greenhouse && expected.Device == got.Device
}

// SameGreenhouse accepts any valid command on the expected greenhouse.
func SameGreenhouse(expected, got command.Command) bool {
	return expected.Greenhouse == got.Greenhouse
}

// Equivalences maps the names ground-truth files use to predicates.
var Equivalences = map[string]Equivalence{
	"same_target":     SameTarget,
	"same_greenhouse": SameGreenhouse,
	"exact":           func(command.Command, command.Command) bool { return false },
}

// GroundTruth is the expected outcome of one prompt.
type GroundTruth struct {
	// Expected lists the canonical commands. A nil Value matches any value.
	Expected []command.Command
	// ExpectError marks prompts the model should refuse.
	ExpectError bool
	// Equivalence judges substitutes for Success; nil means SameTarget.
	Equivalence Equivalence
}

// #endregion ground-truth

// #region input

// Model carries the attributes cost and efficiency formulas need.
type Model struct {
	Params        float64 `json:"params"`
	PricePer1KIn  float64 `json:"price_per_1k_input"`
	PricePer1KOut float64 `json:"price_per_1k_output"`
}

// Usage is the measured cost of one inference.
type Usage struct {
	InputTokens  int     `json:"input_tokens"`
	OutputTokens int     `json:"output_tokens"`
	InferenceMS  float64 `json:"inference_latency_ms"`
	EndToEndMS   float64 `json:"end_to_end_latency_ms"`
}

// Input is everything needed to score one run.
type Input struct {
	Response command.Response
	// SyntaxFailed marks a whole-response parse failure.
	SyntaxFailed bool
	Results      []validate.Result
	Truth        GroundTruth
	Model        Model
	Usage        Usage
}

// #endregion input

// #region scores

// Scores is the per-run metric vector.
type Scores struct {
	Correctness       float64 `json:"correctness"`
	Success           float64 `json:"success"`
	ViolationRate     float64 `json:"constraint_violation"`
	HallucinationRate float64 `json:"hallucination_rate"`
	SyntaxErrorRate   float64 `json:"syntax_error"`
	CostPerTask       float64 `json:"cost_per_task"`
	PEP               float64 `json:"pep"`
	PVO               float64 `json:"pvo"`

	Issued       int `json:"issued"`
	Valid        int `json:"valid"`
	Violations   int `json:"violations"`
	Hallucinated int `json:"hallucinated"`
	Matched      int `json:"matched"`
	Substituted  int `json:"substituted"`
}

// #endregion scores
