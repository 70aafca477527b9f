// Package world owns the canonical particle state: a pooled ark ECS world,
// the gravity-well registry, and snapshot/reconcile against the worker
// protocol. Exactly one goroutine writes the store; the worker only ever
// sees plain copies.
package world

import (
	"gonum.org/v1/gonum/spatial/r3"

	"github.com/pthm-cable/nebula/sim"
)

// Position is the canonical particle position.
type Position struct {
	Vec r3.Vec
}

// Velocity is the canonical particle velocity.
type Velocity struct {
	Vec r3.Vec
}

// Body holds the static physical identity of a particle. Set at spawn,
// never written by reconciliation.
type Body struct {
	Mass   float64
	Charge float64
	Size   float64 // visual radius for the render feed
	Type   sim.LiquidType
}

// Fluid holds the per-tick SPH fields written back by the worker.
type Fluid struct {
	Density  float64
	Pressure float64
}

// Meta tracks pool lifecycle. ID doubles as the pool slot index and never
// changes after the store is built.
type Meta struct {
	ID     uint32
	Age    float64
	Active bool
}
