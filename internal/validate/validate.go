// Package validate classifies parsed commands against the device catalog,
// the plant comfort intervals and a store snapshot.
package validate

import (
	"fmt"

	"github.com/danielpatrickdp/greenhouse-bench/internal/catalog"
	"github.com/danielpatrickdp/greenhouse-bench/internal/command"
	"github.com/danielpatrickdp/greenhouse-bench/internal/greenhouse"
)

// #region validator

// Validator is stateless between calls and safe for concurrent use.
type Validator struct {
	cat    *catalog.Catalog
	config Config
}

// New creates a validator with DefaultConfig.
func New(cat *catalog.Catalog) *Validator {
	return NewWithConfig(cat, DefaultConfig())
}

// NewWithConfig creates a validator with explicit settings.
func NewWithConfig(cat *catalog.Catalog, config Config) *Validator {
	return &Validator{cat: cat, config: config}
}

// Validate returns one Result per command in input order. The snapshot is
// never modified, so repeated calls give identical results.
func (v *Validator) Validate(cmds []command.Command, snap *greenhouse.Snapshot) []Result {
	proj := projection{}
	out := make([]Result, 0, len(cmds))
	for _, cmd := range cmds {
		r := v.check(cmd, snap, proj)
		if r.Verdict.Valid() && v.config.Sequential {
			proj.set(cmd.Greenhouse, r.Parameter, r.Verdict.After)
		}
		out = append(out, r)
	}
	return out
}

// check runs referential resolution first, then value checks. A command that
// names an unknown entity is always Hallucinated, whatever its value.
func (v *Validator) check(cmd command.Command, snap *greenhouse.Snapshot, proj projection) Result {
	res := Result{Command: cmd}

	// 1. Referential stage
	unit, ok := snap.Unit(cmd.Greenhouse)
	if !ok {
		res.Verdict = Verdict{Kind: KindHallucinated, Reason: ReasonUnknownGreenhouse}
		return res
	}
	dev, ok := v.cat.Device(cmd.Device)
	if !ok {
		res.Verdict = Verdict{Kind: KindHallucinated, Reason: ReasonUnknownDevice}
		return res
	}
	effect, ok := dev.Action(cmd.Action)
	if !ok {
		res.Verdict = Verdict{Kind: KindHallucinated, Reason: ReasonUnknownAction}
		return res
	}
	res.Parameter = dev.Parameter

	// 2. Physical stage
	current := proj.value(unit, dev.Parameter)
	next, ok := effect.Resolve(current, cmd.Value)
	if !ok {
		res.Verdict = Verdict{Kind: KindConstraintViolation, Reason: ReasonMissingSetpoint, Before: current, After: current}
		return res
	}
	res.Verdict = Verdict{Before: current, After: next}

	if dev.Kind == catalog.KindSensor {
		res.Verdict.Kind = KindValid
		return res
	}
	if !dev.Range.Contains(next) {
		res.Verdict.Kind = KindConstraintViolation
		res.Verdict.Reason = ReasonDeviceRange
		return res
	}
	comfort := v.cat.Intervals(unit.PlantType).For(dev.Parameter)
	switch {
	case comfort.Contains(next):
		res.Verdict.Kind = KindValid
	case v.config.TowardComfort && comfort.Deviation(next) < comfort.Deviation(current):
		res.Verdict.Kind = KindValid
	default:
		res.Verdict.Kind = KindConstraintViolation
		res.Verdict.Reason = ReasonComfortRange
	}
	return res
}

// Commit applies every valid result to store in order and returns the applied
// effects. Non-valid results are skipped.
func (v *Validator) Commit(store *greenhouse.Store, results []Result) ([]greenhouse.ApplyResult, error) {
	var applied []greenhouse.ApplyResult
	for _, r := range results {
		if !r.Verdict.Valid() {
			continue
		}
		ar, err := store.Apply(r.Command)
		if err != nil {
			return applied, fmt.Errorf("commit %s: %w", r.Command, err)
		}
		applied = append(applied, ar)
	}
	return applied, nil
}

// #endregion validator

// #region projection

// projection overlays values written by earlier commands in the same batch.
type projection map[string]map[catalog.Parameter]float64

func (p projection) value(u greenhouse.Unit, param catalog.Parameter) float64 {
	if m, ok := p[u.ID]; ok {
		if v, ok := m[param]; ok {
			return v
		}
	}
	return u.Reading(param)
}

func (p projection) set(id string, param catalog.Parameter, v float64) {
	m, ok := p[id]
	if !ok {
		m = map[catalog.Parameter]float64{}
		p[id] = m
	}
	m[param] = v
}

// #endregion projection
