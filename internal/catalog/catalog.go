package catalog

import (
	"errors"
	"fmt"
	"sync"
)

// #region catalog

// Catalog is the immutable table of plant comfort intervals and installed
// devices. Build one with New or use the process-wide Default.
type Catalog struct {
	order     []PlantType
	plants    map[PlantType]Plant
	devices   map[string]DeviceSpec
	sensors   [NumParameters]string
	actuators [NumParameters]string
}

// New validates plants and devices and builds a Catalog. Every parameter must
// have exactly one sensor and one actuator.
func New(plants []Plant, devices []DeviceSpec) (*Catalog, error) {
	if len(plants) == 0 {
		return nil, errors.New("catalog: no plant types")
	}
	c := &Catalog{
		plants:  make(map[PlantType]Plant, len(plants)),
		devices: make(map[string]DeviceSpec, len(devices)),
	}
	for _, p := range plants {
		if p.Type == "" {
			return nil, errors.New("catalog: plant with empty type")
		}
		if _, dup := c.plants[p.Type]; dup {
			return nil, fmt.Errorf("catalog: duplicate plant type %s", p.Type)
		}
		for i, iv := range p.Comfort {
			if iv.Low > iv.High {
				return nil, fmt.Errorf("catalog: plant %s %s interval [%g, %g] is empty", p.Type, Parameters[i], iv.Low, iv.High)
			}
		}
		c.plants[p.Type] = p
		c.order = append(c.order, p.Type)
	}

	for _, d := range devices {
		if _, dup := c.devices[d.Name]; dup {
			return nil, fmt.Errorf("catalog: duplicate device %s", d.Name)
		}
		idx := d.Parameter.Index()
		if idx < 0 {
			return nil, fmt.Errorf("catalog: device %s drives unknown parameter %q", d.Name, d.Parameter)
		}
		if d.Range.Low > d.Range.High {
			return nil, fmt.Errorf("catalog: device %s range [%g, %g] is empty", d.Name, d.Range.Low, d.Range.High)
		}
		if len(d.actions) == 0 {
			return nil, fmt.Errorf("catalog: device %s has no actions", d.Name)
		}
		slot := &c.actuators[idx]
		if d.Kind == KindSensor {
			slot = &c.sensors[idx]
		} else if d.Kind != KindActuator {
			return nil, fmt.Errorf("catalog: device %s has unknown kind %q", d.Name, d.Kind)
		}
		if *slot != "" {
			return nil, fmt.Errorf("catalog: parameter %s already has a %s (%s)", d.Parameter, d.Kind, *slot)
		}
		*slot = d.Name
		c.devices[d.Name] = d
	}

	for i, p := range Parameters {
		if c.sensors[i] == "" || c.actuators[i] == "" {
			return nil, fmt.Errorf("catalog: parameter %s needs one sensor and one actuator", p)
		}
	}
	return c, nil
}

var (
	defaultOnce sync.Once
	defaultCat  *Catalog
)

// Default returns the built-in catalog. It panics only if the built-in tables
// are inconsistent, which is a programming error.
func Default() *Catalog {
	defaultOnce.Do(func() {
		c, err := New(DefaultPlants(), DefaultDevices())
		if err != nil {
			panic(err)
		}
		defaultCat = c
	})
	return defaultCat
}

// #endregion catalog

// #region accessors

// PlantTypes returns plant types in declaration order.
func (c *Catalog) PlantTypes() []PlantType {
	out := make([]PlantType, len(c.order))
	copy(out, c.order)
	return out
}

// Plant returns the profile for pt.
func (c *Catalog) Plant(pt PlantType) (Plant, bool) {
	p, ok := c.plants[pt]
	return p, ok
}

// Intervals returns the comfort intervals for pt. Plant types absent from the
// catalog yield the zero Comfort.
func (c *Catalog) Intervals(pt PlantType) Comfort {
	return c.plants[pt].Comfort
}

// Device looks up a sensor or actuator by name.
func (c *Catalog) Device(name string) (DeviceSpec, bool) {
	d, ok := c.devices[name]
	return d, ok
}

// Sensor returns the sensor measuring p.
func (c *Catalog) Sensor(p Parameter) DeviceSpec {
	if i := p.Index(); i >= 0 {
		return c.devices[c.sensors[i]]
	}
	return DeviceSpec{}
}

// Actuator returns the actuator driving p.
func (c *Catalog) Actuator(p Parameter) DeviceSpec {
	if i := p.Index(); i >= 0 {
		return c.devices[c.actuators[i]]
	}
	return DeviceSpec{}
}

// Devices returns sensors then actuators, each in parameter order.
func (c *Catalog) Devices() []DeviceSpec {
	out := make([]DeviceSpec, 0, 2*NumParameters)
	for _, name := range c.sensors {
		out = append(out, c.devices[name])
	}
	for _, name := range c.actuators {
		out = append(out, c.devices[name])
	}
	return out
}

// #endregion accessors
