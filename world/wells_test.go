package world

import (
	"testing"

	"gonum.org/v1/gonum/spatial/r3"
)

func TestWellRegistryLifecycle(t *testing.T) {
	r := NewWellRegistry()

	id1, ok := r.Add(r3.Vec{X: 10}, 1000, 10, WellStar)
	if !ok {
		t.Fatal("valid well rejected")
	}
	id2, ok := r.Add(r3.Vec{Y: -5}, 500, 4, WellSingularity)
	if !ok {
		t.Fatal("valid well rejected")
	}
	if id1 == id2 {
		t.Errorf("well ids must be unique, both %d", id1)
	}
	if got := r.Count(); got != 2 {
		t.Errorf("count = %d, want 2", got)
	}

	if !r.Remove(id1) {
		t.Error("remove of placed well failed")
	}
	if r.Remove(id1) {
		t.Error("second remove reported success")
	}
	if got := r.Count(); got != 1 {
		t.Errorf("count after remove = %d, want 1", got)
	}

	if got := r.Clear(); got != 1 {
		t.Errorf("clear dropped %d wells, want 1", got)
	}
	if got := r.Count(); got != 0 {
		t.Errorf("count after clear = %d, want 0", got)
	}
}

func TestWellRegistryRejectsDegenerate(t *testing.T) {
	r := NewWellRegistry()
	if _, ok := r.Add(r3.Vec{}, 0, 10, WellStar); ok {
		t.Error("zero mass accepted")
	}
	if _, ok := r.Add(r3.Vec{}, -100, 10, WellStar); ok {
		t.Error("negative mass accepted")
	}
	if _, ok := r.Add(r3.Vec{}, 100, 0, WellStar); ok {
		t.Error("zero radius accepted")
	}
	if r.Count() != 0 {
		t.Errorf("rejected wells were stored, count = %d", r.Count())
	}
}

func TestWellStatesWireShape(t *testing.T) {
	r := NewWellRegistry()
	r.Add(r3.Vec{X: 1, Y: 2, Z: 3}, 1000, 10, WellSingularity)

	states := r.AppendStates(nil)
	if len(states) != 1 {
		t.Fatalf("states = %d, want 1", len(states))
	}
	ws := states[0]
	if ws.Type != "singularity" {
		t.Errorf("type = %q, want singularity", ws.Type)
	}
	if !ws.Active {
		t.Error("placed well must serialize active")
	}
	if ws.Position.R3() != (r3.Vec{X: 1, Y: 2, Z: 3}) {
		t.Errorf("position = %+v", ws.Position)
	}
	if ws.Mass != 1000 || ws.Radius != 10 {
		t.Errorf("mass/radius = %g/%g", ws.Mass, ws.Radius)
	}
}

func TestWellTypeNames(t *testing.T) {
	cases := []struct {
		t    WellType
		want string
	}{
		{WellStar, "star"},
		{WellPlanet, "planet"},
		{WellSingularity, "singularity"},
		{WellType(99), "unknown"},
	}
	for _, c := range cases {
		if got := c.t.String(); got != c.want {
			t.Errorf("WellType(%d).String() = %q, want %q", c.t, got, c.want)
		}
	}
}
