package bench

import (
	"errors"
	"fmt"

	"github.com/danielpatrickdp/greenhouse-bench/internal/catalog"
	"github.com/danielpatrickdp/greenhouse-bench/internal/command"
	"github.com/danielpatrickdp/greenhouse-bench/internal/greenhouse"
	"github.com/danielpatrickdp/greenhouse-bench/internal/metrics"
	"github.com/danielpatrickdp/greenhouse-bench/internal/parser"
	"github.com/danielpatrickdp/greenhouse-bench/internal/scenario"
	"github.com/danielpatrickdp/greenhouse-bench/internal/validate"
)

// #region pipeline

// Pipeline is the offline half of a run: stage the greenhouse state, then
// parse, validate, commit and score a raw reply. Live runs and replays share
// it so a recorded response always re-scores the same way.
type Pipeline struct {
	cat       *catalog.Catalog
	schema    command.Schema
	validator *validate.Validator
	metrics   metrics.Config
	seed      uint64
}

// NewPipeline wires the core components.
func NewPipeline(cat *catalog.Catalog, schema command.Schema, vcfg validate.Config, mcfg metrics.Config, seed uint64) *Pipeline {
	return &Pipeline{
		cat:       cat,
		schema:    schema,
		validator: validate.NewWithConfig(cat, vcfg),
		metrics:   mcfg,
		seed:      seed,
	}
}

// Stage builds a fresh store and applies the prompt's context readings.
func (p *Pipeline) Stage(prompt scenario.Prompt) (*greenhouse.Store, error) {
	store, err := greenhouse.NewStore(p.cat, p.seed)
	if err != nil {
		return nil, fmt.Errorf("stage %s: %w", prompt.ID, err)
	}
	for _, c := range prompt.Context {
		readings := make(map[catalog.Parameter]float64, len(c.Readings))
		for k, v := range c.Readings {
			readings[catalog.Parameter(k)] = v
		}
		if err := store.SetReadings(c.Greenhouse, readings); err != nil {
			return nil, fmt.Errorf("stage %s: %w", prompt.ID, err)
		}
	}
	return store, nil
}

// Outcome is the scored result of one reply.
type Outcome struct {
	Response *command.Response
	Results  []validate.Result
	Applied  []greenhouse.ApplyResult
	Scores   metrics.Scores
	// Syntax is set when the whole reply failed to parse.
	Syntax *parser.SyntaxError
}

// Evaluate scores raw against truth. Valid commands are committed to store.
func (p *Pipeline) Evaluate(store *greenhouse.Store, f command.Format, raw string, truth metrics.GroundTruth, model metrics.Model, usage metrics.Usage) (Outcome, error) {
	var out Outcome
	resp, err := parser.Parse(f, raw, p.schema)
	var synErr *parser.SyntaxError
	switch {
	case errors.As(err, &synErr):
		out.Syntax = synErr
		out.Results = []validate.Result{{Verdict: validate.SyntaxVerdict(synErr.Detail)}}
		out.Scores = metrics.Score(metrics.Input{SyntaxFailed: true, Truth: truth, Model: model, Usage: usage}, p.metrics)
		return out, nil
	case err != nil:
		return out, fmt.Errorf("evaluate: %w", err)
	}

	out.Response = &resp
	out.Results = p.validator.Validate(resp.Commands, store.Snapshot())
	out.Applied, err = p.validator.Commit(store, out.Results)
	if err != nil {
		return out, fmt.Errorf("evaluate: %w", err)
	}
	out.Scores = metrics.Score(metrics.Input{
		Response: resp,
		Results:  out.Results,
		Truth:    truth,
		Model:    model,
		Usage:    usage,
	}, p.metrics)
	return out, nil
}

// #endregion pipeline
