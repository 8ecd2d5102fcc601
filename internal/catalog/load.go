package catalog

import (
	"fmt"
	"os"

	"github.com/go-playground/validator/v10"
	"gopkg.in/yaml.v3"
)

// #region file-types

// File is the YAML layout of a catalog override.
type File struct {
	Version int          `yaml:"version" validate:"eq=1"`
	Plants  []FilePlant  `yaml:"plants" validate:"required,min=1,dive"`
	Devices []FileDevice `yaml:"devices" validate:"omitempty,dive"`
}

// FilePlant mirrors Plant with YAML tags.
type FilePlant struct {
	Type    string                  `yaml:"type" validate:"required"`
	Name    string                  `yaml:"name"`
	Comfort map[string]FileInterval `yaml:"comfort" validate:"len=5,dive,keys,oneof=temperature soil_humidity soil_ph luminosity ventilation,endkeys"`
}

// FileInterval mirrors Interval; max must not be below min.
type FileInterval struct {
	Min float64 `yaml:"min"`
	Max float64 `yaml:"max" validate:"gtefield=Min"`
}

// FileDevice mirrors DeviceSpec with YAML tags.
type FileDevice struct {
	Name      string                `yaml:"name" validate:"required"`
	Kind      string                `yaml:"kind" validate:"required,oneof=sensor actuator"`
	Parameter string                `yaml:"parameter" validate:"required,oneof=temperature soil_humidity soil_ph luminosity ventilation"`
	Unit      string                `yaml:"unit"`
	Range     FileInterval          `yaml:"range"`
	Actions   map[string]FileEffect `yaml:"actions" validate:"required,min=1"`
}

// FileEffect mirrors Effect with YAML tags.
type FileEffect struct {
	Delta    float64  `yaml:"delta"`
	Set      *float64 `yaml:"set"`
	Setpoint bool     `yaml:"setpoint"`
	Read     bool     `yaml:"read"`
}

// #endregion file-types

// #region load

var validate = validator.New()

// Load reads a catalog override from a YAML file. Devices default to
// DefaultDevices when the file lists none.
func Load(path string) (*Catalog, error) {
	b, err := os.ReadFile(path)
	if err != nil {
		return nil, fmt.Errorf("read catalog %s: %w", path, err)
	}
	return Parse(b)
}

// Parse decodes and validates catalog YAML.
func Parse(b []byte) (*Catalog, error) {
	var f File
	if err := yaml.Unmarshal(b, &f); err != nil {
		return nil, fmt.Errorf("parse catalog: %w", err)
	}
	if err := validate.Struct(f); err != nil {
		return nil, fmt.Errorf("validate catalog: %w", err)
	}
	return f.ToCatalog()
}

// ToCatalog converts the file layout into a Catalog.
func (f *File) ToCatalog() (*Catalog, error) {
	plants := make([]Plant, 0, len(f.Plants))
	for _, fp := range f.Plants {
		p := Plant{Type: PlantType(fp.Type), Name: fp.Name}
		for name, fi := range fp.Comfort {
			param, err := ParseParameter(name)
			if err != nil {
				return nil, fmt.Errorf("plant %s: %w", fp.Type, err)
			}
			p.Comfort[param.Index()] = Interval{Low: fi.Min, High: fi.Max}
		}
		plants = append(plants, p)
	}

	devices := DefaultDevices()
	if len(f.Devices) > 0 {
		devices = make([]DeviceSpec, 0, len(f.Devices))
		for _, fd := range f.Devices {
			actions := make(map[string]Effect, len(fd.Actions))
			for name, fe := range fd.Actions {
				actions[name] = Effect{Delta: fe.Delta, Set: fe.Set, Setpoint: fe.Setpoint, Read: fe.Read}
			}
			devices = append(devices, NewDeviceSpec(
				fd.Name, DeviceKind(fd.Kind), Parameter(fd.Parameter), fd.Unit,
				Interval{Low: fd.Range.Min, High: fd.Range.Max}, actions,
			))
		}
	}
	return New(plants, devices)
}

// #endregion load
