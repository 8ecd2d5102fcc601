// Package scenario holds the experiment catalog: models, system messages and
// prompts with ground truth. The built-in suite is embedded YAML.
package scenario

import (
	_ "embed"
	"fmt"
	"os"
	"strings"
	"text/template"

	"github.com/go-playground/validator/v10"
	"gopkg.in/yaml.v3"

	"github.com/danielpatrickdp/greenhouse-bench/internal/catalog"
	"github.com/danielpatrickdp/greenhouse-bench/internal/command"
	"github.com/danielpatrickdp/greenhouse-bench/internal/greenhouse"
)

//go:embed suite.yaml
var builtin []byte

var validate = validator.New()

// #region load

// Default returns the embedded benchmark suite.
func Default() (*Suite, error) {
	return Parse(builtin)
}

// Load reads a suite from a YAML file.
func Load(path string) (*Suite, error) {
	b, err := os.ReadFile(path)
	if err != nil {
		return nil, fmt.Errorf("read suite %s: %w", path, err)
	}
	return Parse(b)
}

// Parse decodes, validates and cross-checks suite YAML.
func Parse(b []byte) (*Suite, error) {
	var s Suite
	if err := yaml.Unmarshal(b, &s); err != nil {
		return nil, fmt.Errorf("parse suite: %w", err)
	}
	if err := validate.Struct(s); err != nil {
		return nil, fmt.Errorf("validate suite: %w", err)
	}
	if err := s.check(); err != nil {
		return nil, fmt.Errorf("validate suite: %w", err)
	}
	return &s, nil
}

// check enforces what struct tags cannot: unique ids, a closed greenhouse id
// space for staged context, and a consistent expectation per prompt.
func (s *Suite) check() error {
	seen := map[string]bool{}
	unique := func(kind, id string) error {
		if seen[kind+id] {
			return fmt.Errorf("duplicate %s %q", kind, id)
		}
		seen[kind+id] = true
		return nil
	}
	for _, m := range s.Models {
		if err := unique("model", m.Key); err != nil {
			return err
		}
	}
	for _, sm := range s.SystemMessages {
		if err := unique("system message", sm.ID); err != nil {
			return err
		}
		if _, err := template.New(sm.ID).Parse(sm.Template); err != nil {
			return fmt.Errorf("system message %s: %w", sm.ID, err)
		}
	}
	for _, p := range s.Prompts {
		if err := unique("prompt", p.ID); err != nil {
			return err
		}
		for _, c := range p.Context {
			if !greenhouse.ValidID(c.Greenhouse) {
				return fmt.Errorf("prompt %s: context names unknown greenhouse %s", p.ID, c.Greenhouse)
			}
		}
		if !p.Valid && len(p.Expected) > 0 {
			return fmt.Errorf("prompt %s: invalid prompts cannot expect commands", p.ID)
		}
	}
	for _, f := range s.Formulas {
		if err := f.Check(); err != nil {
			return err
		}
	}
	if s.Schema != nil {
		if err := s.Schema.Validate(); err != nil {
			return err
		}
	}
	return nil
}

// #endregion load

// #region lookup

// ResponseSchema returns the suite's key names, or the defaults.
func (s *Suite) ResponseSchema() command.Schema {
	if s.Schema != nil {
		return *s.Schema
	}
	return command.DefaultSchema()
}

// Model looks up a model by key.
func (s *Suite) Model(key string) (Model, bool) {
	for _, m := range s.Models {
		if m.Key == key {
			return m, true
		}
	}
	return Model{}, false
}

// SystemMessage looks up a system message by id.
func (s *Suite) SystemMessage(id string) (SystemMessage, bool) {
	for _, sm := range s.SystemMessages {
		if sm.ID == id {
			return sm, true
		}
	}
	return SystemMessage{}, false
}

// Prompt looks up a prompt by id.
func (s *Suite) Prompt(id string) (Prompt, bool) {
	for _, p := range s.Prompts {
		if p.ID == id {
			return p, true
		}
	}
	return Prompt{}, false
}

// Filter keeps only the listed models, system messages and prompts, in the
// order given. Empty lists keep everything.
func (s *Suite) Filter(models, systemMessages, prompts []string) (*Suite, error) {
	out := *s
	var err error
	if out.Models, err = keep(s.Models, models, func(m Model) string { return m.Key }); err != nil {
		return nil, fmt.Errorf("filter models: %w", err)
	}
	if out.SystemMessages, err = keep(s.SystemMessages, systemMessages, func(m SystemMessage) string { return m.ID }); err != nil {
		return nil, fmt.Errorf("filter system messages: %w", err)
	}
	if out.Prompts, err = keep(s.Prompts, prompts, func(p Prompt) string { return p.ID }); err != nil {
		return nil, fmt.Errorf("filter prompts: %w", err)
	}
	return &out, nil
}

func keep[T any](items []T, want []string, id func(T) string) ([]T, error) {
	if len(want) == 0 {
		return items, nil
	}
	var out []T
	for _, w := range want {
		found := false
		for _, it := range items {
			if id(it) == w {
				out = append(out, it)
				found = true
				break
			}
		}
		if !found {
			return nil, fmt.Errorf("unknown id %q", w)
		}
	}
	return out, nil
}

// #endregion lookup

// #region render

// templateData is what system message templates can reference.
type templateData struct {
	Units      int
	FirstUnit  string
	LastUnit   string
	PlantTypes []catalog.PlantType
	Sensors    string
	Actuators  string
	Comfort    string
}

// Render expands a system message against the device catalog.
func Render(sm SystemMessage, cat *catalog.Catalog) (string, error) {
	tmpl, err := template.New(sm.ID).Parse(sm.Template)
	if err != nil {
		return "", fmt.Errorf("system message %s: %w", sm.ID, err)
	}
	data := templateData{
		Units:      greenhouse.NumUnits,
		FirstUnit:  greenhouse.UnitID(1),
		LastUnit:   greenhouse.UnitID(greenhouse.NumUnits),
		PlantTypes: cat.PlantTypes(),
	}

	var sensors, actuators strings.Builder
	for _, d := range cat.Devices() {
		if d.Kind == catalog.KindSensor {
			fmt.Fprintf(&sensors, "- %s (%s): %s\n", d.Name, d.Unit, d.Parameter)
			continue
		}
		fmt.Fprintf(&actuators, "- %s: actions [%s], affects %s\n", d.Name, strings.Join(d.ActionNames(), ", "), d.Parameter)
	}
	data.Sensors = strings.TrimRight(sensors.String(), "\n")
	data.Actuators = strings.TrimRight(actuators.String(), "\n")

	var comfort strings.Builder
	for _, pt := range cat.PlantTypes() {
		fmt.Fprintf(&comfort, "Type %s:\n", pt)
		for i, iv := range cat.Intervals(pt) {
			p := catalog.Parameters[i]
			fmt.Fprintf(&comfort, "  - %s: %g to %g %s\n", p, iv.Low, iv.High, cat.Sensor(p).Unit)
		}
	}
	data.Comfort = strings.TrimRight(comfort.String(), "\n")

	var b strings.Builder
	if err := tmpl.Execute(&b, data); err != nil {
		return "", fmt.Errorf("system message %s: %w", sm.ID, err)
	}
	return b.String(), nil
}

// #endregion render
