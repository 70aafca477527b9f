// Package sandbox owns the canonical particle world and drives the physics
// worker. A Sandbox is confined to one goroutine, conventionally the render
// loop; the worker goroutine never touches canonical state, so there are no
// locks anywhere on the hot path.
package sandbox

import (
	"log/slog"

	"gonum.org/v1/gonum/spatial/r3"

	"github.com/pthm-cable/nebula/config"
	"github.com/pthm-cable/nebula/sim"
	"github.com/pthm-cable/nebula/telemetry"
	"github.com/pthm-cable/nebula/worker"
	"github.com/pthm-cable/nebula/world"
)

// DT is the nominal tick length the interactive loop targets.
const DT = 1.0 / 60.0

// Options configures a Sandbox beyond the physics config.
type Options struct {
	Seed int64

	// LogStats emits window stats via slog on every flush.
	LogStats bool

	// StatsWindowSec overrides cfg.Telemetry.StatsWindow when positive.
	StatsWindowSec float64

	// OutputDir enables CSV logging and the config dump. Empty disables.
	OutputDir string

	// SnapshotDir receives JSON tick snapshots. Empty defaults to the
	// output manager's snapshot directory when OutputDir is set.
	SnapshotDir string

	// SnapshotEvery dumps the posted request every N ticks. 0 disables.
	SnapshotEvery int

	// StatsCallback receives every flushed window, before CSV output.
	StatsCallback func(telemetry.WindowStats)
}

// Sandbox wires the particle store, well registry, physics worker, and
// telemetry into one interactive surface.
type Sandbox struct {
	cfg  *config.Config
	opts Options

	store *world.Store
	wells *world.WellRegistry

	wk       *worker.Worker
	pending  bool // a request is in flight
	dropNext bool // discard the next result; canonical state was cleared
	restarts int
	degraded bool

	// Request buffers reused across ticks. Safe to rebuild only when no
	// request is pending; the worker reads the posted request until it
	// replies.
	req worker.Request

	collector *telemetry.Collector
	perf      *telemetry.PerfCollector
	output    *telemetry.OutputManager

	tick    int64
	simTime float64

	// Sampling scratch
	densities []float64
	speeds    []float64
}

// New wires a sandbox and starts its worker.
func New(cfg *config.Config, opts Options) (*Sandbox, error) {
	output, err := telemetry.NewOutputManager(opts.OutputDir)
	if err != nil {
		return nil, err
	}
	if opts.SnapshotDir == "" {
		opts.SnapshotDir = output.SnapshotDir()
	}

	statsWindowSec := cfg.Telemetry.StatsWindow
	if opts.StatsWindowSec > 0 {
		statsWindowSec = opts.StatsWindowSec
	}

	s := &Sandbox{
		cfg:       cfg,
		opts:      opts,
		store:     world.NewStore(cfg, opts.Seed),
		wells:     world.NewWellRegistry(),
		collector: telemetry.NewCollector(int(statsWindowSec / DT)),
		perf:      telemetry.NewPerfCollector(cfg.Telemetry.PerfWindow),
		output:    output,
	}

	if err := s.output.WriteConfig(cfg); err != nil {
		slog.Error("failed to write config", "error", err)
	}

	s.wk = worker.New(cfg, opts.Seed, s.perf)
	s.wk.Start()

	return s, nil
}

// Update advances the sandbox by one frame: drain the worker's reply,
// supervise the goroutine, post the next tick, and flush telemetry windows.
func (s *Sandbox) Update(dt float64) {
	s.tick++
	s.perf.RecordFrame()

	s.drainWorker()
	s.superviseWorker()
	s.postTick(dt)
	s.flushTelemetry()
}

// drainWorker applies a finished tick to the canonical store, or logs the
// error payload if the tick failed.
func (s *Sandbox) drainWorker() {
	resp, ok := s.wk.Poll()
	if !ok {
		return
	}
	s.pending = false

	if resp.Err != nil {
		s.dropNext = false
		s.collector.RecordWorkerError()
		slog.Error("physics tick failed",
			"phase", resp.Err.Phase,
			"error", resp.Err.Message,
		)
		return
	}
	if s.dropNext {
		// Result computed against pre-clear state; ids may already be
		// recycled, so it must not touch the store.
		s.dropNext = false
		return
	}

	_, killed := s.store.Reconcile(resp.Result.Particles)
	if killed > 0 {
		s.collector.RecordKilled(killed)
	}
}

// superviseWorker restarts a dead worker goroutine until the restart budget
// is exhausted, then latches degraded mode.
func (s *Sandbox) superviseWorker() {
	if s.degraded || s.wk.Alive() {
		return
	}

	// Whatever was in flight died with the goroutine.
	s.pending = false
	s.dropNext = false
	s.store.DisarmReconcile()

	if s.restarts >= s.cfg.Worker.RestartLimit {
		s.degraded = true
		slog.Error("physics worker degraded, restart budget exhausted",
			"restarts", s.restarts,
		)
		return
	}

	s.restarts++
	s.wk = worker.New(s.cfg, s.opts.Seed, s.perf)
	s.wk.Start()
	slog.Warn("physics worker restarted", "attempt", s.restarts)
}

// postTick snapshots the canonical state and offers it to the worker. A busy
// worker makes this frame a skip; the previous state stays on screen.
func (s *Sandbox) postTick(dt float64) {
	if s.degraded {
		return
	}
	if s.pending {
		s.collector.RecordFrameSkip()
		return
	}

	s.req.Particles = s.store.AppendParticleStates(s.req.Particles[:0])
	s.req.Wells = s.wells.AppendStates(s.req.Wells[:0])
	s.req.DeltaTime = dt

	if s.opts.SnapshotEvery > 0 && s.tick%int64(s.opts.SnapshotEvery) == 0 {
		s.saveTickSnapshot()
	}

	if !s.wk.TryPost(&s.req) {
		// Mailbox full; skip this frame.
		s.store.DisarmReconcile()
		s.collector.RecordFrameSkip()
		return
	}
	s.pending = true

	// Mirror the engine's dt cap so the stats clock matches the worker's.
	capped := dt
	if capped > s.cfg.Integrator.MaxDT {
		capped = s.cfg.Integrator.MaxDT
	}
	s.simTime += capped
}

func (s *Sandbox) saveTickSnapshot() {
	if s.opts.SnapshotDir == "" {
		return
	}
	path, err := telemetry.SaveTickSnapshot(s.opts.SnapshotDir, s.tick, &s.req)
	if err != nil {
		slog.Error("failed to save tick snapshot", "error", err)
		return
	}
	slog.Info("tick snapshot saved", "path", path, "tick", s.tick)
}

// flushTelemetry checks if the stats window should be flushed and writes it
// to the configured sinks.
func (s *Sandbox) flushTelemetry() {
	if !s.collector.ShouldFlush(s.tick) {
		return
	}

	stats := s.collector.Flush(s.tick, s.simTime, s.samplePopulation())
	perfStats := s.perf.Stats()

	if s.opts.StatsCallback != nil {
		s.opts.StatsCallback(stats)
	}

	if s.opts.LogStats {
		stats.LogStats()
		perfStats.LogStats()
	}

	if s.output != nil {
		if err := s.output.WriteTelemetry(stats); err != nil {
			slog.Error("failed to write telemetry", "error", err)
		}
		if err := s.output.WritePerf(perfStats, stats.WindowEndTick); err != nil {
			slog.Error("failed to write perf", "error", err)
		}
	}
}

// samplePopulation gathers density and speed observations for the flush.
func (s *Sandbox) samplePopulation() telemetry.Sample {
	s.densities = s.densities[:0]
	s.speeds = s.speeds[:0]
	var kinetic float64

	s.store.ForEachActive(func(_ *world.Position, vel *world.Velocity, body *world.Body, fluid *world.Fluid, _ *world.Meta) {
		speed := r3.Norm(vel.Vec)
		s.densities = append(s.densities, fluid.Density)
		s.speeds = append(s.speeds, speed)
		kinetic += 0.5 * body.Mass * speed * speed
	})

	return telemetry.Sample{
		Densities:     s.densities,
		Speeds:        s.speeds,
		KineticEnergy: kinetic,
		ActiveCount:   s.store.ActiveCount(),
		WellCount:     s.wells.Count(),
	}
}

// SpawnBurst emits up to n particles of one liquid type scattered around
// origin with a shared stream velocity. Returns how many spawned before the
// pool saturated.
func (s *Sandbox) SpawnBurst(origin, vel r3.Vec, n int, t sim.LiquidType) int {
	spawned := s.store.SpawnBurst(origin, vel, n, t)
	if spawned > 0 {
		s.collector.RecordSpawned(spawned)
	}
	return spawned
}

// PlaceWell adds a gravity well. Non-positive mass or radius is rejected.
func (s *Sandbox) PlaceWell(pos r3.Vec, mass, radius float64, t world.WellType) (uint32, bool) {
	id, ok := s.wells.Add(pos, mass, radius, t)
	if ok {
		s.collector.RecordWellPlaced()
	}
	return id, ok
}

// RemoveWell drops the well with the given id.
func (s *Sandbox) RemoveWell(id uint32) bool {
	ok := s.wells.Remove(id)
	if ok {
		s.collector.RecordWellRemoved()
	}
	return ok
}

// ClearWells removes every well.
func (s *Sandbox) ClearWells() int {
	n := s.wells.Clear()
	for i := 0; i < n; i++ {
		s.collector.RecordWellRemoved()
	}
	return n
}

// ClearParticles deactivates every particle and resets emission order. An
// in-flight tick result becomes stale and will be discarded on arrival.
func (s *Sandbox) ClearParticles() int {
	n := s.store.Clear()
	if n > 0 {
		s.collector.RecordCleared(n)
	}
	if s.pending {
		s.dropNext = true
	}
	s.store.DisarmReconcile()
	return n
}

// RenderParticle is one particle's read-only render state.
type RenderParticle struct {
	ID       uint32
	Pos      r3.Vec
	Vel      r3.Vec
	Type     sim.LiquidType
	Age      float64
	Density  float64
	Pressure float64
}

// AppendRenderStates appends the live particles to dst and returns it. The
// copy decouples renderers from the canonical components.
func (s *Sandbox) AppendRenderStates(dst []RenderParticle) []RenderParticle {
	s.store.ForEachActive(func(pos *world.Position, vel *world.Velocity, body *world.Body, fluid *world.Fluid, meta *world.Meta) {
		dst = append(dst, RenderParticle{
			ID:       meta.ID,
			Pos:      pos.Vec,
			Vel:      vel.Vec,
			Type:     body.Type,
			Age:      meta.Age,
			Density:  fluid.Density,
			Pressure: fluid.Pressure,
		})
	})
	return dst
}

// Wells appends the active wells to dst and returns it.
func (s *Sandbox) Wells(dst []world.Well) []world.Well {
	return s.wells.Active(dst)
}

// Tick returns the number of Update calls so far.
func (s *Sandbox) Tick() int64 { return s.tick }

// SimTime returns the accumulated simulation time in seconds.
func (s *Sandbox) SimTime() float64 { return s.simTime }

// ActiveCount returns the number of live particles.
func (s *Sandbox) ActiveCount() int { return s.store.ActiveCount() }

// WellCount returns the number of placed wells.
func (s *Sandbox) WellCount() int { return s.wells.Count() }

// Degraded reports whether the worker restart budget is exhausted and
// physics is frozen.
func (s *Sandbox) Degraded() bool { return s.degraded }

// Close stops the worker and closes telemetry outputs.
func (s *Sandbox) Close() error {
	s.wk.Stop()
	return s.output.Close()
}
