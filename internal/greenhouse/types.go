package greenhouse

import (
	"errors"
	"fmt"
	"strconv"

	"github.com/danielpatrickdp/greenhouse-bench/internal/catalog"
)

// #region ids

// NumUnits is the size of the closed greenhouse id space GH001..GH030.
const NumUnits = 30

// ErrNotFound is returned for ids outside GH001..GH030.
var ErrNotFound = errors.New("greenhouse not found")

// ErrUnknownDevice is returned when a command names a device the catalog lacks.
var ErrUnknownDevice = errors.New("unknown device")

// UnitID formats the 1-based index n as a greenhouse id.
func UnitID(n int) string { return fmt.Sprintf("GH%03d", n) }

// index parses an id into a 0-based slot. ok is false outside the id space.
func index(id string) (int, bool) {
	if len(id) != 5 || id[:2] != "GH" {
		return 0, false
	}
	n, err := strconv.Atoi(id[2:])
	if err != nil || n < 1 || n > NumUnits {
		return 0, false
	}
	return n - 1, true
}

// ValidID reports whether id belongs to the greenhouse id space.
func ValidID(id string) bool {
	_, ok := index(id)
	return ok
}

// #endregion ids

// #region unit

// ActuatorState is the last commanded state of one actuator.
type ActuatorState struct {
	Action string  `json:"action"`
	Value  float64 `json:"value"`
}

// Unit is one greenhouse. Arrays are indexed like catalog.Parameters, so a
// Unit value is a full copy.
type Unit struct {
	ID        string                               `json:"id"`
	PlantType catalog.PlantType                    `json:"plant_type"`
	Sensors   [catalog.NumParameters]float64       `json:"sensors"`
	Actuators [catalog.NumParameters]ActuatorState `json:"actuators"`
}

// Reading returns the current sensor value for p.
func (u Unit) Reading(p catalog.Parameter) float64 {
	if i := p.Index(); i >= 0 {
		return u.Sensors[i]
	}
	return 0
}

// Readings returns sensor values keyed by parameter.
func (u Unit) Readings() map[catalog.Parameter]float64 {
	out := make(map[catalog.Parameter]float64, catalog.NumParameters)
	for i, p := range catalog.Parameters {
		out[p] = u.Sensors[i]
	}
	return out
}

// #endregion unit

// #region snapshot

// Snapshot is an immutable view of every unit at one instant.
type Snapshot struct {
	units [NumUnits]Unit
}

// Unit returns the unit with id; ok is false for ids outside the id space.
func (s *Snapshot) Unit(id string) (Unit, bool) {
	i, ok := index(id)
	if !ok {
		return Unit{}, false
	}
	return s.units[i], true
}

// Units returns every unit in id order.
func (s *Snapshot) Units() []Unit {
	out := make([]Unit, NumUnits)
	copy(out, s.units[:])
	return out
}

// #endregion snapshot

// #region results

// ApplyResult reports the effect of one applied command.
type ApplyResult struct {
	Greenhouse string            `json:"greenhouse_id"`
	Device     string            `json:"device"`
	Parameter  catalog.Parameter `json:"parameter"`
	Previous   float64           `json:"previous"`
	Value      float64           `json:"value"`
}

// Issue is a parameter outside its comfort interval.
type Issue struct {
	Parameter catalog.Parameter `json:"parameter"`
	Value     float64           `json:"value"`
	Deviation float64           `json:"deviation"`
}

// CriticalUnit groups the issues of one greenhouse.
type CriticalUnit struct {
	Greenhouse string            `json:"greenhouse_id"`
	PlantType  catalog.PlantType `json:"plant_type"`
	Issues     []Issue           `json:"issues"`
	Severity   float64           `json:"severity"`
}

// #endregion results
