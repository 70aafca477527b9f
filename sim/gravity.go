package sim

import (
	"gonum.org/v1/gonum/spatial/r3"
)

// Well is the physics-relevant view of a gravity well: an external point
// mass with a visual radius. The canonical registry record (id, type tag,
// active flag) lives on the owning side; only this much crosses into the
// engine.
type Well struct {
	Pos    r3.Vec
	Mass   float64
	Radius float64
}

const (
	// minDistanceMul floors the effective distance at 1.1x the well radius,
	// keeping the force finite at the well surface.
	minDistanceMul = 1.1
	// influenceRadiusMul sets the long-range falloff radius at 40x the well
	// radius.
	influenceRadiusMul = 40.0
)

// pointGravity is the single inverse-square force law used by both well
// gravity and octree particle gravity. softening floors the effective
// distance; pass 0 for the raw law. The two callers pass different
// effective constants (gravityStrength*gravityScale with radius softening
// for wells, particleG with none for the octree); both are tuned
// independently.
func pointGravity(g, m1, m2, dist, softening float64) float64 {
	d := dist
	if d < softening {
		d = softening
	}
	if d < 1e-6 {
		return 0
	}
	return g * m1 * m2 / (d * d)
}

// ForceOn returns the gravitational pull of the well on a particle of the
// given (already clamped) mass at pos. Beyond the influence radius a smooth
// falloff tapers the pull so distant particles stay loosely bound rather
// than escaping indefinitely.
func (w *Well) ForceOn(pos r3.Vec, mass, strength, scale float64) r3.Vec {
	d := r3.Sub(w.Pos, pos)
	dist := r3.Norm(d)
	if dist < 1e-6 {
		return r3.Vec{}
	}

	f := pointGravity(strength*scale, w.Mass, mass, dist, w.Radius*minDistanceMul)

	if ir := w.Radius * influenceRadiusMul; dist > ir {
		x := (dist - ir) / ir
		f /= 1 + x*x
	}

	return r3.Scale(f/dist, d)
}
