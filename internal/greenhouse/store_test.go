package greenhouse

import (
	"errors"
	"testing"

	"github.com/danielpatrickdp/greenhouse-bench/internal/catalog"
	"github.com/danielpatrickdp/greenhouse-bench/internal/command"
)

func newStore(t *testing.T) *Store {
	t.Helper()
	s, err := NewStore(catalog.Default(), 42)
	if err != nil {
		t.Fatalf("NewStore: %v", err)
	}
	return s
}

func TestAllIDsResolve(t *testing.T) {
	s := newStore(t)
	for n := 1; n <= NumUnits; n++ {
		id := UnitID(n)
		u, err := s.Get(id)
		if err != nil {
			t.Fatalf("Get(%s): %v", id, err)
		}
		if u.ID != id {
			t.Fatalf("expected %s, got %s", id, u.ID)
		}
	}
}

func TestUnknownIDsAreNotFound(t *testing.T) {
	s := newStore(t)
	for _, id := range []string{"GH000", "GH031", "GH999", "gh001", "GH1", "", "GHXYZ"} {
		if _, err := s.Get(id); !errors.Is(err, ErrNotFound) {
			t.Fatalf("Get(%q): expected ErrNotFound, got %v", id, err)
		}
		if ValidID(id) {
			t.Fatalf("ValidID(%q) should be false", id)
		}
	}
}

func TestFiveUnitsPerPlantType(t *testing.T) {
	s := newStore(t)
	for _, pt := range catalog.Default().PlantTypes() {
		if n := len(s.ByPlantType(pt)); n != 5 {
			t.Fatalf("plant %s: expected 5 units, got %d", pt, n)
		}
	}

	// Round-robin assignment: GH001 and GH007 share type A.
	u1, _ := s.Get("GH001")
	u7, _ := s.Get("GH007")
	u2, _ := s.Get("GH002")
	if u1.PlantType != catalog.PlantA || u7.PlantType != catalog.PlantA || u2.PlantType != catalog.PlantB {
		t.Fatalf("unexpected assignment: GH001=%s GH002=%s GH007=%s", u1.PlantType, u2.PlantType, u7.PlantType)
	}
}

func TestSeededReadingsInsideComfort(t *testing.T) {
	s := newStore(t)
	cat := catalog.Default()
	for _, u := range s.Snapshot().Units() {
		comfort := cat.Intervals(u.PlantType)
		for i, v := range u.Sensors {
			if !comfort[i].Contains(v) {
				t.Fatalf("%s %s = %g outside %+v", u.ID, catalog.Parameters[i], v, comfort[i])
			}
		}
	}
	if c := s.Critical(); len(c) != 0 {
		t.Fatalf("expected no critical units after seeding, got %d", len(c))
	}
}

func TestSameSeedSameStore(t *testing.T) {
	a, _ := NewStore(catalog.Default(), 7)
	b, _ := NewStore(catalog.Default(), 7)
	if a.Snapshot().Units()[12] != b.Snapshot().Units()[12] {
		t.Fatal("same seed produced different units")
	}
	c, _ := NewStore(catalog.Default(), 8)
	if a.Snapshot().Units()[12].Sensors == c.Snapshot().Units()[12].Sensors {
		t.Fatal("different seeds produced identical sensors")
	}
}

func TestNewStoreRejectsUnevenPlantTypes(t *testing.T) {
	plants := catalog.DefaultPlants()[:4]
	cat, err := catalog.New(plants, catalog.DefaultDevices())
	if err != nil {
		t.Fatalf("catalog.New: %v", err)
	}
	if _, err := NewStore(cat, 1); err == nil {
		t.Fatal("expected error for 4 plant types over 30 units")
	}
}

func TestSnapshotIsImmutable(t *testing.T) {
	s := newStore(t)
	snap := s.Snapshot()
	before, _ := snap.Unit("GH001")

	if _, err := s.Apply(command.Command{Greenhouse: "GH001", Device: "irrigation", Action: "set", Value: command.Float(40)}); err != nil {
		t.Fatalf("Apply: %v", err)
	}
	after, _ := snap.Unit("GH001")
	if after != before {
		t.Fatal("snapshot changed after Apply")
	}

	units := snap.Units()
	units[0].Sensors[0] = -100
	again, _ := snap.Unit("GH001")
	if again.Sensors[0] == -100 {
		t.Fatal("mutating Units() result changed the snapshot")
	}
}

func TestApply(t *testing.T) {
	s := newStore(t)
	start, _ := s.Get("GH003")
	temp := start.Reading(catalog.ParamTemperature)

	// 1. Delta action
	res, err := s.Apply(command.Command{Greenhouse: "GH003", Device: "temperature_control", Action: "cool"})
	if err != nil {
		t.Fatalf("Apply cool: %v", err)
	}
	if res.Previous != temp || res.Value != temp-2 {
		t.Fatalf("expected %g -> %g, got %+v", temp, temp-2, res)
	}

	// 2. Setpoint, outside comfort is still stored
	res, err = s.Apply(command.Command{Greenhouse: "GH003", Device: "irrigation", Action: "set", Value: command.Float(5)})
	if err != nil {
		t.Fatalf("Apply set: %v", err)
	}
	u, _ := s.Get("GH003")
	if u.Reading(catalog.ParamSoilMoisture) != 5 {
		t.Fatalf("expected moisture 5, got %g", u.Reading(catalog.ParamSoilMoisture))
	}
	if st := u.Actuators[catalog.ParamSoilMoisture.Index()]; st.Action != "set" || st.Value != 5 {
		t.Fatalf("unexpected actuator state %+v", st)
	}

	// 3. Critical now lists GH003
	crit := s.Critical()
	if len(crit) == 0 || crit[0].Greenhouse != "GH003" {
		t.Fatalf("expected GH003 critical, got %+v", crit)
	}

	// 4. Errors
	if _, err := s.Apply(command.Command{Greenhouse: "GH999", Device: "irrigation", Action: "irrigate"}); !errors.Is(err, ErrNotFound) {
		t.Fatalf("expected ErrNotFound, got %v", err)
	}
	if _, err := s.Apply(command.Command{Greenhouse: "GH003", Device: "co2", Action: "read"}); !errors.Is(err, ErrUnknownDevice) {
		t.Fatalf("expected ErrUnknownDevice, got %v", err)
	}
	if _, err := s.Apply(command.Command{Greenhouse: "GH003", Device: "irrigation", Action: "set"}); err == nil {
		t.Fatal("expected error for set without value")
	}

	// 5. Reset restores the seeded state
	s.Reset()
	again, _ := s.Get("GH003")
	if again != start {
		t.Fatal("Reset did not restore initial state")
	}
}

func TestSetReadingsAndDrift(t *testing.T) {
	s := newStore(t)
	err := s.SetReadings("GH005", map[catalog.Parameter]float64{catalog.ParamTemperature: 35})
	if err != nil {
		t.Fatalf("SetReadings: %v", err)
	}
	v, err := s.Drift("GH005", catalog.ParamTemperature, 1.5)
	if err != nil {
		t.Fatalf("Drift: %v", err)
	}
	if v != 36.5 {
		t.Fatalf("expected 36.5, got %g", v)
	}
	if err := s.SetReadings("GH005", map[catalog.Parameter]float64{"co2": 1}); err == nil {
		t.Fatal("expected unknown parameter error")
	}
	if _, err := s.Drift("GH040", catalog.ParamTemperature, 1); !errors.Is(err, ErrNotFound) {
		t.Fatalf("expected ErrNotFound, got %v", err)
	}
}
