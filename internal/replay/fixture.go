package replay

import (
	"encoding/json"
	"fmt"
	"io"
	"os"

	"github.com/danielpatrickdp/greenhouse-bench/internal/command"
	"github.com/danielpatrickdp/greenhouse-bench/internal/metrics"
	"github.com/danielpatrickdp/greenhouse-bench/internal/results"
	"github.com/danielpatrickdp/greenhouse-bench/internal/validate"
)

// #region fixture-types

// Fixture is the top-level JSON structure for a replay fixture.
type Fixture struct {
	Description     string                  `json:"description"`
	Config          FixtureConfig           `json:"config"`
	Cases           []FixtureCase           `json:"cases"`
	ExpectedResults []FixtureExpectedResult `json:"expected_results"`
}

// FixtureConfig mirrors ReplayConfig with JSON tags.
type FixtureConfig struct {
	Seed          uint64  `json:"seed"`
	TowardComfort bool    `json:"toward_comfort"`
	Sequential    bool    `json:"sequential"`
	Tolerance     float64 `json:"tolerance"`
}

// FixtureCase mirrors Case with JSON tags.
type FixtureCase struct {
	RunID         string         `json:"run_id"`
	Model         string         `json:"model_key"`
	ModelInfo     metrics.Model  `json:"model"`
	SystemMessage string         `json:"system_message_id"`
	Prompt        string         `json:"prompt_id"`
	Format        command.Format `json:"input_format"`
	Raw           string         `json:"actual_response"`
	Usage         metrics.Usage  `json:"usage"`
	Failed        bool           `json:"failed,omitempty"`
}

// FixtureExpectedResult captures the recorded scores per run.
type FixtureExpectedResult struct {
	RunID  string         `json:"run_id"`
	Scores metrics.Scores `json:"scores"`
}

// #endregion fixture-types

// #region fixture-loader

// LoadFixture reads and parses a JSON fixture file.
func LoadFixture(path string) (*Fixture, error) {
	data, err := os.ReadFile(path)
	if err != nil {
		return nil, fmt.Errorf("read fixture %s: %w", path, err)
	}
	var f Fixture
	if err := json.Unmarshal(data, &f); err != nil {
		return nil, fmt.Errorf("parse fixture %s: %w", path, err)
	}
	return &f, nil
}

// Write encodes the fixture as indented JSON.
func (f *Fixture) Write(w io.Writer) error {
	enc := json.NewEncoder(w)
	enc.SetIndent("", "  ")
	if err := enc.Encode(f); err != nil {
		return fmt.Errorf("write fixture: %w", err)
	}
	return nil
}

// FromRecords builds a fixture from stored runs. Their current scores become
// the expected results.
func FromRecords(description string, cfg ReplayConfig, recs []results.RunRecord) *Fixture {
	f := &Fixture{
		Description: description,
		Config: FixtureConfig{
			Seed:          cfg.Seed,
			TowardComfort: cfg.Validate.TowardComfort,
			Sequential:    cfg.Validate.Sequential,
			Tolerance:     cfg.Metrics.Tolerance,
		},
		Cases:           make([]FixtureCase, 0, len(recs)),
		ExpectedResults: make([]FixtureExpectedResult, 0, len(recs)),
	}
	for _, r := range recs {
		f.Cases = append(f.Cases, FixtureCase{
			RunID:         r.ID,
			Model:         r.Model,
			ModelInfo:     r.ModelInfo,
			SystemMessage: r.SystemMessage,
			Prompt:        r.Prompt,
			Format:        r.Format,
			Raw:           r.Raw,
			Usage:         r.Usage,
			Failed:        r.Status == results.StatusError && r.Raw == "",
		})
		f.ExpectedResults = append(f.ExpectedResults, FixtureExpectedResult{RunID: r.ID, Scores: r.Scores})
	}
	return f
}

// ToCase converts a FixtureCase to a domain Case.
func (fc *FixtureCase) ToCase() Case {
	return Case{
		RunID:  fc.RunID,
		Prompt: fc.Prompt,
		Format: fc.Format,
		Raw:    fc.Raw,
		Model:  fc.ModelInfo,
		Usage:  fc.Usage,
		Failed: fc.Failed,
	}
}

// ToReplayConfig converts a FixtureConfig to a domain ReplayConfig. Zero
// tolerance keeps the default.
func (fc *FixtureConfig) ToReplayConfig() ReplayConfig {
	cfg := DefaultReplayConfig()
	cfg.Seed = fc.Seed
	cfg.Validate = validate.Config{TowardComfort: fc.TowardComfort, Sequential: fc.Sequential}
	if fc.Tolerance > 0 {
		cfg.Metrics.Tolerance = fc.Tolerance
	}
	return cfg
}

// Inputs returns the domain cases and the expected scores keyed by run id.
func (f *Fixture) Inputs() ([]Case, map[string]metrics.Scores) {
	cases := make([]Case, len(f.Cases))
	for i := range f.Cases {
		cases[i] = f.Cases[i].ToCase()
	}
	expected := make(map[string]metrics.Scores, len(f.ExpectedResults))
	for _, e := range f.ExpectedResults {
		expected[e.RunID] = e.Scores
	}
	return cases, expected
}

// #endregion fixture-loader
