// Package sim implements the particle physics engine: SPH fluid solver,
// Barnes-Hut gravity, gravity wells, per-liquid-type force policy, and the
// semi-implicit Verlet integrator with boundary constraints. The engine
// operates on plain particle slices so it can run on a worker goroutine
// against a snapshot of the canonical store.
package sim

import (
	"gonum.org/v1/gonum/spatial/r3"
)

// LiquidType selects one of the eight behavioral particle profiles.
type LiquidType uint8

const (
	Plasma LiquidType = iota
	Crystal
	Temporal
	Antimatter
	Quantum
	DarkMatter
	Exotic
	Photonic

	NumLiquidTypes = 8
)

// String returns the lowercase name used in logs and snapshots.
func (t LiquidType) String() string {
	switch t {
	case Plasma:
		return "plasma"
	case Crystal:
		return "crystal"
	case Temporal:
		return "temporal"
	case Antimatter:
		return "antimatter"
	case Quantum:
		return "quantum"
	case DarkMatter:
		return "darkmatter"
	case Exotic:
		return "exotic"
	case Photonic:
		return "photonic"
	default:
		return "unknown"
	}
}

// Particle is the engine-side particle state. Inactive particles are
// filtered out before a slice reaches the engine; the solver never reads
// them.
type Particle struct {
	ID       uint32
	Pos      r3.Vec
	Vel      r3.Vec
	Mass     float64
	Charge   float64
	Type     LiquidType
	Density  float64 // derived each tick
	Pressure float64 // derived each tick
	Age      float64 // seconds since activation
	Active   bool
}

// minMass floors every mass before it enters a force or gravity formula.
// Photonic particles carry near-zero mass and exotic mass is handled as a
// sign tag, so the shared formulas only ever see max(minMass, |m|).
const minMass = 0.0001

func clampMass(m float64) float64 {
	if m < 0 {
		m = -m
	}
	if m < minMass {
		return minMass
	}
	return m
}

// Profile holds the static per-type physical parameters. The table is
// immutable; behavior modifiers live in the liquid rule table.
type Profile struct {
	Charge       float64 // electromagnetic flavor, informational for renderers
	MassMul      float64 // multiplier on the spawn mass
	BaseSize     float64 // render-only visual size
	Uncertainty  float64 // quantum jitter scale, 0 disables
	SpeedCapFrac float64 // fraction of scaled light speed, 0 = uncapped
	Solidify     float64 // density/rest ratio above which crystallization engages, 0 = never
	AntiGravity  bool    // gravity sign inverted
	NegativeMass bool    // mass treated as negative via post-hoc sign flip
}

// Profiles is indexed by LiquidType.
var Profiles = [NumLiquidTypes]Profile{
	Plasma:     {Charge: 1, MassMul: 0.8, BaseSize: 3.0},
	Crystal:    {Charge: 0, MassMul: 1.5, BaseSize: 2.5, Solidify: 1.5},
	Temporal:   {Charge: 0, MassMul: 1.0, BaseSize: 2.0},
	Antimatter: {Charge: -1, MassMul: 1.0, BaseSize: 2.5, AntiGravity: true},
	Quantum:    {Charge: 0, MassMul: 0.3, BaseSize: 1.5, Uncertainty: 1.0},
	DarkMatter: {Charge: 0, MassMul: 2.5, BaseSize: 4.0},
	Exotic:     {Charge: 0, MassMul: 1.0, BaseSize: 2.0, NegativeMass: true},
	Photonic:   {Charge: 0, MassMul: 0.01, BaseSize: 1.0, SpeedCapFrac: 0.9},
}

// defaultCrossCohesion is the fallback for type pairs without an explicit
// matrix entry: everything weakly attracts everything else.
const defaultCrossCohesion = 0.3

var cohesionMatrix = buildCohesionMatrix()

func buildCohesionMatrix() [NumLiquidTypes][NumLiquidTypes]float64 {
	var m [NumLiquidTypes][NumLiquidTypes]float64
	for i := range m {
		for j := range m[i] {
			m[i][j] = defaultCrossCohesion
		}
	}

	// Self-cohesion
	m[Plasma][Plasma] = 0.8
	m[Crystal][Crystal] = 1.6
	m[Temporal][Temporal] = 1.0
	m[Antimatter][Antimatter] = 0.9
	m[Quantum][Quantum] = 0.7
	m[DarkMatter][DarkMatter] = 1.8
	m[Exotic][Exotic] = 0.6
	m[Photonic][Photonic] = 0.2

	pair := func(a, b LiquidType, v float64) {
		m[a][b] = v
		m[b][a] = v
	}

	// Explicit cross pairs
	pair(Plasma, Photonic, 0.5)   // both energetic, mix freely
	pair(Crystal, Temporal, 0.6)  // lattices trap temporal flow
	pair(Crystal, DarkMatter, 1.1)
	pair(Antimatter, Plasma, 0.15) // annihilation-flavored repulsion
	pair(Quantum, Photonic, 0.45)

	return m
}

// CohesionBetween returns the cohesion multiplier for a type pair.
// The matrix is symmetric, so the cohesion force obeys Newton's third law.
func CohesionBetween(a, b LiquidType) float64 {
	return cohesionMatrix[a][b]
}

// Speed returns the velocity magnitude.
func (p *Particle) Speed() float64 {
	return r3.Norm(p.Vel)
}
