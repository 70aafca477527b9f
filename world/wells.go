package world

import (
	"gonum.org/v1/gonum/spatial/r3"
)

// WellType tags the visual flavor of a gravity well. Physics reads only
// mass and radius; the type travels for renderers and snapshot replays.
type WellType uint8

const (
	WellStar WellType = iota
	WellPlanet
	WellSingularity
)

// String returns the lowercase name used on the wire.
func (t WellType) String() string {
	switch t {
	case WellStar:
		return "star"
	case WellPlanet:
		return "planet"
	case WellSingularity:
		return "singularity"
	default:
		return "unknown"
	}
}

// Well is a canonical gravity well. Position is fixed at placement; wells
// are removed explicitly, never pooled.
type Well struct {
	ID     uint32
	Pos    r3.Vec
	Mass   float64
	Radius float64
	Type   WellType
	Active bool
}

// WellRegistry holds the placed wells. Like the store it is owned by a
// single goroutine.
type WellRegistry struct {
	wells  []Well
	nextID uint32
}

// NewWellRegistry returns an empty registry.
func NewWellRegistry() *WellRegistry {
	return &WellRegistry{nextID: 1}
}

// Add places a well and returns its id. Non-positive mass or radius is
// rejected; a massless well would be a no-op and a zero radius breaks the
// softening floor.
func (r *WellRegistry) Add(pos r3.Vec, mass, radius float64, t WellType) (uint32, bool) {
	if mass <= 0 || radius <= 0 {
		return 0, false
	}
	id := r.nextID
	r.nextID++
	r.wells = append(r.wells, Well{
		ID:     id,
		Pos:    pos,
		Mass:   mass,
		Radius: radius,
		Type:   t,
		Active: true,
	})
	return id, true
}

// Remove deactivates and drops the well with the given id.
func (r *WellRegistry) Remove(id uint32) bool {
	for i := range r.wells {
		if r.wells[i].ID == id {
			r.wells = append(r.wells[:i], r.wells[i+1:]...)
			return true
		}
	}
	return false
}

// Clear removes every well and returns how many were dropped.
func (r *WellRegistry) Clear() int {
	n := len(r.wells)
	r.wells = r.wells[:0]
	return n
}

// Count returns the number of placed wells.
func (r *WellRegistry) Count() int { return len(r.wells) }

// Active appends the active wells to dst and returns it.
func (r *WellRegistry) Active(dst []Well) []Well {
	for i := range r.wells {
		if r.wells[i].Active {
			dst = append(dst, r.wells[i])
		}
	}
	return dst
}
