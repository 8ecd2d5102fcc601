package scenario

import (
	"github.com/danielpatrickdp/greenhouse-bench/internal/command"
	"github.com/danielpatrickdp/greenhouse-bench/internal/metrics"
)

// #region categories

// Prompt categories.
const (
	CategorySimple        = "simple"
	CategoryComplex       = "complex"
	CategoryHallucination = "hallucination"
)

// #endregion categories

// #region suite

// Suite is the static experiment catalog: the models under test, the system
// messages, the prompts with their ground truth, and the run settings.
type Suite struct {
	Version        int                `yaml:"version" validate:"eq=1"`
	Runs           int                `yaml:"runs_per_combination" validate:"min=1"`
	CheckpointEach int                `yaml:"checkpoint_every" validate:"min=0"`
	TimeoutSeconds int                `yaml:"timeout_seconds" validate:"min=1"`
	Schema         *command.Schema    `yaml:"schema,omitempty"`
	Models         []Model            `yaml:"models" validate:"required,min=1,dive"`
	SystemMessages []SystemMessage    `yaml:"system_messages" validate:"required,min=1,dive"`
	Prompts        []Prompt           `yaml:"prompts" validate:"required,min=1,dive"`
	Formulas       []metrics.Weighted `yaml:"formulas,omitempty" validate:"omitempty,dive"`
}

// Model is one hosted model under test.
type Model struct {
	Key           string  `yaml:"key" json:"key" validate:"required"`
	ID            string  `yaml:"model_id" json:"model_id" validate:"required"`
	Name          string  `yaml:"name" json:"name"`
	Provider      string  `yaml:"provider" json:"provider"`
	Params        float64 `yaml:"parameters" json:"parameters" validate:"gt=0"`
	PricePer1KIn  float64 `yaml:"price_per_1k_input" json:"price_per_1k_input" validate:"gte=0"`
	PricePer1KOut float64 `yaml:"price_per_1k_output" json:"price_per_1k_output" validate:"gte=0"`
}

// Metrics returns the attributes the scoring formulas use.
func (m Model) Metrics() metrics.Model {
	return metrics.Model{Params: m.Params, PricePer1KIn: m.PricePer1KIn, PricePer1KOut: m.PricePer1KOut}
}

// SystemMessage is a persona template. Template is rendered with text/template
// against the device catalog, see Render.
type SystemMessage struct {
	ID          string `yaml:"id" validate:"required"`
	Name        string `yaml:"name"`
	Description string `yaml:"description"`
	Template    string `yaml:"template" validate:"required"`
}

// Prompt is one user request with its expected outcome.
type Prompt struct {
	ID          string            `yaml:"id" validate:"required"`
	Name        string            `yaml:"name"`
	Category    string            `yaml:"category" validate:"required,oneof=simple complex hallucination"`
	Valid       bool              `yaml:"valid"`
	Text        string            `yaml:"text" validate:"required"`
	Context     []UnitContext     `yaml:"context" validate:"omitempty,dive"`
	Expected    []ExpectedCommand `yaml:"expected" validate:"omitempty,dive"`
	Equivalence string            `yaml:"equivalence" validate:"omitempty,oneof=same_target same_greenhouse exact"`
}

// UnitContext stages the readings of one greenhouse before the prompt runs.
type UnitContext struct {
	Greenhouse string             `yaml:"greenhouse_id" validate:"required"`
	Readings   map[string]float64 `yaml:"readings" validate:"omitempty,dive,keys,oneof=temperature soil_humidity soil_ph luminosity ventilation,endkeys"`
}

// ExpectedCommand is the YAML form of a canonical command.
type ExpectedCommand struct {
	Greenhouse string   `yaml:"greenhouse_id" validate:"required"`
	Device     string   `yaml:"actuator" validate:"required"`
	Action     string   `yaml:"action" validate:"required"`
	Value      *float64 `yaml:"value"`
	Step       int      `yaml:"step" validate:"min=0"`
}

// #endregion suite

// #region ground-truth

// GroundTruth converts the prompt's expectation for the metrics engine.
func (p Prompt) GroundTruth() metrics.GroundTruth {
	gt := metrics.GroundTruth{ExpectError: !p.Valid}
	for _, e := range p.Expected {
		gt.Expected = append(gt.Expected, command.Command{
			Greenhouse: e.Greenhouse, Device: e.Device, Action: e.Action, Value: e.Value, Step: e.Step,
		})
	}
	if p.Equivalence != "" {
		gt.Equivalence = metrics.Equivalences[p.Equivalence]
	}
	return gt
}

// Greenhouses lists the ids the prompt context mentions.
func (p Prompt) Greenhouses() []string {
	ids := make([]string, 0, len(p.Context))
	for _, c := range p.Context {
		ids = append(ids, c.Greenhouse)
	}
	return ids
}

// #endregion ground-truth
