package sim

import (
	"math"
	"math/rand"

	"gonum.org/v1/gonum/spatial/r3"

	"github.com/pthm-cable/nebula/config"
	"github.com/pthm-cable/nebula/telemetry"
)

// Engine is the replica-side simulation context. One engine is constructed
// per worker (or per tuner evaluation) and persists across ticks, but the
// per-tick particle and well data is fully replaced on every Step call:
// only kernel constants, scratch storage, the rng and the clock persist.
type Engine struct {
	cfg     *config.Config
	kernels Kernels
	grid    *Grid
	octree  *Octree
	rules   [NumLiquidTypes]rule

	accums   []forceAccum
	wells    []Well
	parallel *parallelState

	rng   *rand.Rand
	clock float64 // accumulated capped sim time, drives temporal dilation

	perf *telemetry.PerfCollector
}

// NewEngine constructs an engine bound to one config instance. Engines are
// fully independent, so parallel tuner evaluations each build their own.
func NewEngine(cfg *config.Config, seed int64) *Engine {
	return &Engine{
		cfg:      cfg,
		kernels:  NewKernels(cfg),
		grid:     NewGrid(cfg.Derived.CellSize),
		octree:   NewOctree(cfg.World.OctreeExtent),
		rules:    buildRules(cfg),
		rng:      rand.New(rand.NewSource(seed)),
		parallel: newParallelState(),
		accums:   make([]forceAccum, 0, cfg.Pool.Capacity),
	}
}

// SetPerf attaches a collector for per-phase timings. Nil disables.
func (e *Engine) SetPerf(p *telemetry.PerfCollector) {
	e.perf = p
}

// Clock returns the accumulated simulation time in seconds.
func (e *Engine) Clock() float64 {
	return e.clock
}

// Close stops the in-tick worker pool. The engine must not be stepped again.
func (e *Engine) Close() {
	e.parallel.stopWorkers()
}

// Step advances the population by one tick. The dt cap is enforced here,
// exactly once; everything downstream trusts the capped value. ps is
// mutated in place, wells are read-only for the tick.
func (e *Engine) Step(ps []Particle, wells []Well, dt float64) {
	if dt > e.cfg.Integrator.MaxDT {
		dt = e.cfg.Integrator.MaxDT
	}

	e.wells = wells
	if cap(e.accums) < len(ps) {
		e.accums = make([]forceAccum, len(ps))
	}
	e.accums = e.accums[:len(ps)]

	e.tickStart()

	e.phase(telemetry.PhaseGrid)
	e.grid.Build(ps)

	e.phase(telemetry.PhaseDensity)
	e.runPhase(ps, phaseDensity)

	e.phase(telemetry.PhaseOctree)
	e.octree.Build(ps)

	e.phase(telemetry.PhaseForces)
	e.runPhase(ps, phaseForces)

	e.phase(telemetry.PhaseApply)
	e.applyForces(ps, dt)

	e.tickEnd()

	e.clock += dt
	e.wells = nil
}

func (e *Engine) tickStart() {
	if e.perf != nil {
		e.perf.StartTick()
	}
}

func (e *Engine) phase(name string) {
	if e.perf != nil {
		e.perf.StartPhase(name)
	}
}

func (e *Engine) tickEnd() {
	if e.perf != nil {
		e.perf.EndTick()
	}
}

// randUnit returns a uniformly distributed unit vector.
func (e *Engine) randUnit() r3.Vec {
	z := 2*e.rng.Float64() - 1
	phi := 2 * math.Pi * e.rng.Float64()
	s := math.Sqrt(1 - z*z)
	return r3.Vec{X: s * math.Cos(phi), Y: s * math.Sin(phi), Z: z}
}
