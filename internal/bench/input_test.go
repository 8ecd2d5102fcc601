package bench

import (
	"encoding/json"
	"encoding/xml"
	"strings"
	"testing"

	"gopkg.in/yaml.v3"

	"github.com/danielpatrickdp/greenhouse-bench/internal/catalog"
	"github.com/danielpatrickdp/greenhouse-bench/internal/command"
	"github.com/danielpatrickdp/greenhouse-bench/internal/greenhouse"
	"github.com/danielpatrickdp/greenhouse-bench/internal/metrics"
	"github.com/danielpatrickdp/greenhouse-bench/internal/scenario"
	"github.com/danielpatrickdp/greenhouse-bench/internal/validate"
)

func stagedUnits(t *testing.T, ids ...string) []greenhouse.Unit {
	t.Helper()
	store, err := greenhouse.NewStore(catalog.Default(), 42)
	if err != nil {
		t.Fatalf("NewStore: %v", err)
	}
	err = store.SetReadings("GH005", map[catalog.Parameter]float64{catalog.ParamTemperature: 32})
	if err != nil {
		t.Fatalf("SetReadings: %v", err)
	}
	snap := store.Snapshot()
	var units []greenhouse.Unit
	for _, id := range ids {
		u, ok := snap.Unit(id)
		if !ok {
			t.Fatalf("unit %s missing", id)
		}
		units = append(units, u)
	}
	return units
}

func TestRenderInputEveryFormat(t *testing.T) {
	const prompt = "Cool greenhouse GH005 please."
	units := stagedUnits(t, "GH005", "GH006")
	s := command.DefaultSchema()

	for _, f := range command.Formats {
		text, err := RenderInput(f, prompt, units, s)
		if err != nil {
			t.Fatalf("%s: %v", f, err)
		}
		for _, want := range []string{prompt, "GH005", "GH006", "Reply in " + strings.ToUpper(string(f)) + " only"} {
			if !strings.Contains(text, want) {
				t.Fatalf("%s: input lacks %q:\n%s", f, want, text)
			}
		}
	}
}

func TestRenderInputDocumentsAreWellFormed(t *testing.T) {
	units := stagedUnits(t, "GH005")
	s := command.DefaultSchema()
	body := func(f command.Format) string {
		text, err := RenderInput(f, "status?", units, s)
		if err != nil {
			t.Fatalf("%s: %v", f, err)
		}
		return text[:strings.Index(text, "\n\nReply in ")]
	}

	var doc documentInput
	if err := json.Unmarshal([]byte(body(command.FormatJSON)), &doc); err != nil {
		t.Fatalf("json input: %v", err)
	}
	if got := doc.System.State.Greenhouses[0]; got.ID != "GH005" || got.Temperature != 32 || got.PlantType != "E" {
		t.Fatalf("unexpected json unit: %+v", got)
	}

	doc = documentInput{}
	if err := yaml.Unmarshal([]byte(body(command.FormatYAML)), &doc); err != nil {
		t.Fatalf("yaml input: %v", err)
	}
	if doc.System.Command != "status?" {
		t.Fatalf("unexpected yaml command %q", doc.System.Command)
	}

	var x xmlInput
	if err := xml.Unmarshal([]byte(body(command.FormatXML)), &x); err != nil {
		t.Fatalf("xml input: %v", err)
	}
	if len(x.Greenhouses) != 1 || len(x.Greenhouses[0].Sensors) != 5 {
		t.Fatalf("unexpected xml input: %+v", x)
	}

	toon := body(command.FormatTOON)
	if !strings.Contains(toon, "greenhouses[1]{") || !strings.Contains(toon, "GH005,E,32,") {
		t.Fatalf("unexpected toon input:\n%s", toon)
	}
}

func TestRenderInputWithoutContext(t *testing.T) {
	text, err := RenderInput(command.FormatMarkdown, "Put GH045 in auto mode", nil, command.DefaultSchema())
	if err != nil {
		t.Fatalf("RenderInput: %v", err)
	}
	if !strings.Contains(text, "No greenhouse state attached") || !strings.Contains(text, "GH001") {
		t.Fatalf("unexpected input:\n%s", text)
	}
}

func TestPipelineCommitsOnlyValidCommands(t *testing.T) {
	cat := catalog.Default()
	suite, err := scenario.Default()
	if err != nil {
		t.Fatalf("scenario.Default: %v", err)
	}
	p1, _ := suite.Prompt("P01")
	pipe := NewPipeline(cat, suite.ResponseSchema(), validate.DefaultConfig(), metrics.DefaultConfig(), 42)

	store, err := pipe.Stage(p1)
	if err != nil {
		t.Fatalf("Stage: %v", err)
	}
	raw := `{"error": false, "actions": [
		{"greenhouse_id": "GH005", "actuator": "temperature_control", "action": "cool"},
		{"greenhouse_id": "GH005", "actuator": "temperature_control", "action": "heat"},
		{"greenhouse_id": "GH005", "actuator": "temperature_control", "action": "heat"}
	]}`
	out, err := pipe.Evaluate(store, command.FormatJSON, raw, p1.GroundTruth(), metrics.Model{Params: 12e9}, metrics.Usage{})
	if err != nil {
		t.Fatalf("Evaluate: %v", err)
	}
	// Cooling 32 -> 30 is valid. Both heats go 30 -> 32, away from 23-28.
	if out.Scores.Valid != 1 || out.Scores.Violations != 2 || len(out.Applied) != 1 {
		t.Fatalf("unexpected outcome: %+v applied=%d", out.Scores, len(out.Applied))
	}
	u, _ := store.Snapshot().Unit("GH005")
	if got := u.Reading(catalog.ParamTemperature); got != 30 {
		t.Fatalf("expected committed temperature 30, got %v", got)
	}

	bad, err := pipe.Evaluate(store, command.FormatJSON, "no json here", p1.GroundTruth(), metrics.Model{}, metrics.Usage{})
	if err != nil {
		t.Fatalf("Evaluate: %v", err)
	}
	if bad.Syntax == nil || bad.Response != nil || bad.Scores.SyntaxErrorRate != 1 {
		t.Fatalf("expected a syntax failure, got %+v", bad)
	}
}

func TestPipelineNonFiniteValueStaysStorable(t *testing.T) {
	suite, err := scenario.Default()
	if err != nil {
		t.Fatalf("scenario.Default: %v", err)
	}
	p1, _ := suite.Prompt("P01")
	pipe := NewPipeline(catalog.Default(), suite.ResponseSchema(), validate.DefaultConfig(), metrics.DefaultConfig(), 42)
	store, err := pipe.Stage(p1)
	if err != nil {
		t.Fatalf("Stage: %v", err)
	}

	raw := "error: false\nactions:\n  - greenhouse_id: GH005\n    actuator: temperature_control\n    action: set\n    value: .nan\n"
	out, err := pipe.Evaluate(store, command.FormatYAML, raw, p1.GroundTruth(), metrics.Model{Params: 12e9}, metrics.Usage{})
	if err != nil {
		t.Fatalf("Evaluate: %v", err)
	}
	if out.Syntax == nil || out.Scores.SyntaxErrorRate != 1 {
		t.Fatalf("expected a syntax failure, got %+v", out.Scores)
	}
	if _, err := json.Marshal(out); err != nil {
		t.Fatalf("outcome must marshal: %v", err)
	}
}
