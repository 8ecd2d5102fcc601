package catalog

import (
	"fmt"
	"sort"
)

// #region plant-type

// PlantType identifies one of the crop profiles a greenhouse can be assigned.
type PlantType string

const (
	PlantA PlantType = "A"
	PlantB PlantType = "B"
	PlantC PlantType = "C"
	PlantD PlantType = "D"
	PlantE PlantType = "E"
	PlantF PlantType = "F"
)

// #endregion plant-type

// #region parameter

// Parameter is a controlled environmental quantity. Each greenhouse has exactly
// one sensor and one actuator per parameter.
type Parameter string

const (
	ParamTemperature  Parameter = "temperature"
	ParamSoilMoisture Parameter = "soil_humidity"
	ParamSoilPH       Parameter = "soil_ph"
	ParamIlluminance  Parameter = "luminosity"
	ParamVentilation  Parameter = "ventilation"
)

// NumParameters is the fixed number of controlled parameters per greenhouse.
const NumParameters = 5

// Parameters lists every parameter in index order.
var Parameters = [NumParameters]Parameter{
	ParamTemperature,
	ParamSoilMoisture,
	ParamSoilPH,
	ParamIlluminance,
	ParamVentilation,
}

// Index returns the parameter's position in Parameters, or -1.
func (p Parameter) Index() int {
	for i, q := range Parameters {
		if q == p {
			return i
		}
	}
	return -1
}

// ParseParameter resolves a parameter name.
func ParseParameter(s string) (Parameter, error) {
	p := Parameter(s)
	if p.Index() < 0 {
		return "", fmt.Errorf("unknown parameter %q", s)
	}
	return p, nil
}

// #endregion parameter

// #region interval

// Interval is a closed numeric range [Low, High].
type Interval struct {
	Low  float64 `json:"min" yaml:"min"`
	High float64 `json:"max" yaml:"max"`
}

// Contains reports whether v lies inside the closed interval.
func (i Interval) Contains(v float64) bool {
	return v >= i.Low && v <= i.High
}

// Deviation is the distance from v to the nearest bound, 0 when inside.
func (i Interval) Deviation(v float64) float64 {
	switch {
	case v < i.Low:
		return i.Low - v
	case v > i.High:
		return v - i.High
	}
	return 0
}

// Mid returns the interval midpoint.
func (i Interval) Mid() float64 { return (i.Low + i.High) / 2 }

// Width returns High - Low.
func (i Interval) Width() float64 { return i.High - i.Low }

// Clamp pulls v into the interval.
func (i Interval) Clamp(v float64) float64 {
	if v < i.Low {
		return i.Low
	}
	if v > i.High {
		return i.High
	}
	return v
}

// #endregion interval

// #region comfort

// Comfort holds the five comfort intervals of a plant type, indexed like Parameters.
type Comfort [NumParameters]Interval

// For returns the interval for p. Unknown parameters yield the zero interval.
func (c Comfort) For(p Parameter) Interval {
	if i := p.Index(); i >= 0 {
		return c[i]
	}
	return Interval{}
}

// Plant is a named crop profile.
type Plant struct {
	Type    PlantType
	Name    string
	Comfort Comfort
}

// #endregion comfort

// #region device

// DeviceKind distinguishes read-only sensors from actuators.
type DeviceKind string

const (
	KindSensor   DeviceKind = "sensor"
	KindActuator DeviceKind = "actuator"
)

// Well-known action names shared by every device of a kind.
const (
	ActionRead = "read"
	ActionSet  = "set"
)

// Effect describes how an action changes the parameter an actuator drives.
// Exactly one of Delta, Set, Setpoint or Read is meaningful; a zero Effect
// leaves the value unchanged.
type Effect struct {
	Delta    float64
	Set      *float64
	Setpoint bool // value supplied by the command
	Read     bool
}

// Resolve computes the parameter value after the effect is applied to current.
// ok is false when the effect needs a command value and none was given.
func (e Effect) Resolve(current float64, value *float64) (next float64, ok bool) {
	switch {
	case e.Read:
		return current, true
	case e.Setpoint:
		if value == nil {
			return current, false
		}
		return *value, true
	case e.Set != nil:
		return *e.Set, true
	}
	return current + e.Delta, true
}

// DeviceSpec describes one sensor or actuator type installed in every greenhouse.
type DeviceSpec struct {
	Name      string
	Kind      DeviceKind
	Parameter Parameter
	Unit      string
	Range     Interval // hard operating limits, independent of comfort
	actions   map[string]Effect
}

// NewDeviceSpec builds a device with its action table. The map is copied.
func NewDeviceSpec(name string, kind DeviceKind, param Parameter, unit string, rng Interval, actions map[string]Effect) DeviceSpec {
	cp := make(map[string]Effect, len(actions))
	for k, v := range actions {
		cp[k] = v
	}
	return DeviceSpec{Name: name, Kind: kind, Parameter: param, Unit: unit, Range: rng, actions: cp}
}

// Action looks up the effect of a named action.
func (d DeviceSpec) Action(name string) (Effect, bool) {
	e, ok := d.actions[name]
	return e, ok
}

// ActionNames returns the supported actions in sorted order.
func (d DeviceSpec) ActionNames() []string {
	names := make([]string, 0, len(d.actions))
	for k := range d.actions {
		names = append(names, k)
	}
	sort.Strings(names)
	return names
}

// #endregion device
