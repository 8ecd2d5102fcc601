package greenhouse

import (
	"fmt"
	"math"
	"math/rand/v2"
	"sort"
	"sync"

	"github.com/danielpatrickdp/greenhouse-bench/internal/catalog"
	"github.com/danielpatrickdp/greenhouse-bench/internal/command"
)

// #region store-struct

// Store holds the simulated state of all greenhouses. A benchmark run owns one
// Store exclusively; the mutex only guards readers such as an HTTP handler.
type Store struct {
	mu    sync.RWMutex
	cat   *catalog.Catalog
	seed  uint64
	units [NumUnits]Unit
}

// #endregion store-struct

// #region constructor

// NewStore creates the 30 units, assigning plant types round-robin in catalog
// order so each type gets NumUnits/len(types) units, and seeds every sensor
// inside its comfort interval. The same seed always yields the same store.
func NewStore(cat *catalog.Catalog, seed uint64) (*Store, error) {
	types := cat.PlantTypes()
	if NumUnits%len(types) != 0 {
		return nil, fmt.Errorf("greenhouse: %d plant types do not divide %d units", len(types), NumUnits)
	}
	s := &Store{cat: cat, seed: seed}
	s.initialize()
	return s, nil
}

// Reset restores the deterministic initial state.
func (s *Store) Reset() {
	s.mu.Lock()
	defer s.mu.Unlock()
	s.initialize()
}

func (s *Store) initialize() {
	types := s.cat.PlantTypes()
	rng := rand.New(rand.NewPCG(s.seed, s.seed^0x9e3779b97f4a7c15))

	for i := range s.units {
		pt := types[i%len(types)]
		comfort := s.cat.Intervals(pt)
		u := Unit{ID: UnitID(i + 1), PlantType: pt}
		for j, iv := range comfort {
			v := iv.Mid() + rng.NormFloat64()*iv.Width()/4
			v = iv.Clamp(round2(v))
			u.Sensors[j] = v
			u.Actuators[j] = ActuatorState{Action: "off", Value: v}
		}
		s.units[i] = u
	}
}

// #endregion constructor

// #region reads

// Catalog returns the catalog the store was built from.
func (s *Store) Catalog() *catalog.Catalog { return s.cat }

// Get returns a copy of the unit with id.
func (s *Store) Get(id string) (Unit, error) {
	i, ok := index(id)
	if !ok {
		return Unit{}, fmt.Errorf("get %s: %w", id, ErrNotFound)
	}
	s.mu.RLock()
	defer s.mu.RUnlock()
	return s.units[i], nil
}

// Snapshot returns an immutable copy of every unit.
func (s *Store) Snapshot() *Snapshot {
	s.mu.RLock()
	defer s.mu.RUnlock()
	snap := &Snapshot{}
	snap.units = s.units
	return snap
}

// ByPlantType returns the ids of units assigned pt.
func (s *Store) ByPlantType(pt catalog.PlantType) []string {
	s.mu.RLock()
	defer s.mu.RUnlock()
	var ids []string
	for _, u := range s.units {
		if u.PlantType == pt {
			ids = append(ids, u.ID)
		}
	}
	return ids
}

// #endregion reads

// #region apply

// Apply executes cmd against the targeted unit and returns the new value of the
// parameter the device drives. Comfort and device ranges are not enforced here;
// that is the validator's job, so the store can hold out-of-range states.
func (s *Store) Apply(cmd command.Command) (ApplyResult, error) {
	i, ok := index(cmd.Greenhouse)
	if !ok {
		return ApplyResult{}, fmt.Errorf("apply %s: %w", cmd, ErrNotFound)
	}
	dev, ok := s.cat.Device(cmd.Device)
	if !ok {
		return ApplyResult{}, fmt.Errorf("apply %s: %w", cmd, ErrUnknownDevice)
	}
	effect, ok := dev.Action(cmd.Action)
	if !ok {
		return ApplyResult{}, fmt.Errorf("apply %s: unsupported action %q", cmd, cmd.Action)
	}

	s.mu.Lock()
	defer s.mu.Unlock()

	p := dev.Parameter.Index()
	u := &s.units[i]
	prev := u.Sensors[p]
	next, ok := effect.Resolve(prev, cmd.Value)
	if !ok {
		return ApplyResult{}, fmt.Errorf("apply %s: action needs a value", cmd)
	}
	if dev.Kind == catalog.KindActuator {
		u.Actuators[p] = ActuatorState{Action: cmd.Action, Value: next}
	}
	u.Sensors[p] = next

	return ApplyResult{
		Greenhouse: u.ID,
		Device:     dev.Name,
		Parameter:  dev.Parameter,
		Previous:   prev,
		Value:      next,
	}, nil
}

// #endregion apply

// #region simulation

// SetReadings overrides sensor values, e.g. to stage the situation a prompt
// describes.
func (s *Store) SetReadings(id string, readings map[catalog.Parameter]float64) error {
	i, ok := index(id)
	if !ok {
		return fmt.Errorf("set readings %s: %w", id, ErrNotFound)
	}
	s.mu.Lock()
	defer s.mu.Unlock()
	for p, v := range readings {
		j := p.Index()
		if j < 0 {
			return fmt.Errorf("set readings %s: unknown parameter %q", id, p)
		}
		s.units[i].Sensors[j] = v
	}
	return nil
}

// Drift moves one sensor by delta, the simulator's own update step.
func (s *Store) Drift(id string, p catalog.Parameter, delta float64) (float64, error) {
	i, ok := index(id)
	if !ok {
		return 0, fmt.Errorf("drift %s: %w", id, ErrNotFound)
	}
	j := p.Index()
	if j < 0 {
		return 0, fmt.Errorf("drift %s: unknown parameter %q", id, p)
	}
	s.mu.Lock()
	defer s.mu.Unlock()
	s.units[i].Sensors[j] = round2(s.units[i].Sensors[j] + delta)
	return s.units[i].Sensors[j], nil
}

// Critical lists units with at least one parameter outside comfort, most
// severe first. Severity sums deviations relative to interval width so
// parameters with different units are comparable.
func (s *Store) Critical() []CriticalUnit {
	snap := s.Snapshot()
	var out []CriticalUnit
	for _, u := range snap.units {
		comfort := s.cat.Intervals(u.PlantType)
		cu := CriticalUnit{Greenhouse: u.ID, PlantType: u.PlantType}
		for j, iv := range comfort {
			dev := iv.Deviation(u.Sensors[j])
			if dev == 0 {
				continue
			}
			cu.Issues = append(cu.Issues, Issue{Parameter: catalog.Parameters[j], Value: u.Sensors[j], Deviation: dev})
			if w := iv.Width(); w > 0 {
				cu.Severity += dev / w
			} else {
				cu.Severity += dev
			}
		}
		if len(cu.Issues) > 0 {
			out = append(out, cu)
		}
	}
	sort.SliceStable(out, func(a, b int) bool { return out[a].Severity > out[b].Severity })
	return out
}

// #endregion simulation

func round2(v float64) float64 { return math.Round(v*100) / 100 }
