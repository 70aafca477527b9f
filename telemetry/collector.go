// Package telemetry collects simulation statistics, writes CSV output,
// tracks per-phase timing, and dumps tick snapshots for offline replay.
package telemetry

import (
	"gonum.org/v1/gonum/stat"
)

// Collector accumulates events within stats windows and produces WindowStats.
type Collector struct {
	windowTicks int64
	windowStart int64

	// Event counters for the current window
	spawned       int
	killed        int
	cleared       int
	wellsPlaced   int
	wellsRemoved  int
	framesSkipped int
	workerErrors  int
}

// NewCollector creates a collector that flushes every windowTicks ticks.
func NewCollector(windowTicks int) *Collector {
	if windowTicks < 1 {
		windowTicks = 1
	}
	return &Collector{windowTicks: int64(windowTicks)}
}

// RecordSpawned records n particles spawned.
func (c *Collector) RecordSpawned(n int) {
	c.spawned += n
}

// RecordKilled records n particles deactivated by the simulation.
func (c *Collector) RecordKilled(n int) {
	c.killed += n
}

// RecordCleared records n particles removed by a clear command.
func (c *Collector) RecordCleared(n int) {
	c.cleared += n
}

// RecordWellPlaced records a gravity well placement.
func (c *Collector) RecordWellPlaced() {
	c.wellsPlaced++
}

// RecordWellRemoved records a gravity well removal.
func (c *Collector) RecordWellRemoved() {
	c.wellsRemoved++
}

// RecordFrameSkip records a frame where the worker was still busy and the
// previous physics state was reused.
func (c *Collector) RecordFrameSkip() {
	c.framesSkipped++
}

// RecordWorkerError records a tick the worker rejected or aborted.
func (c *Collector) RecordWorkerError() {
	c.workerErrors++
}

// ShouldFlush returns true if enough ticks have passed to flush the window.
func (c *Collector) ShouldFlush(currentTick int64) bool {
	return currentTick-c.windowStart >= c.windowTicks
}

// Sample holds the per-particle observations gathered for one flush.
// Slices are sorted in place while computing distributions.
type Sample struct {
	Densities []float64
	Speeds    []float64

	// KineticEnergy is the summed 0.5*m*v*v over active particles.
	KineticEnergy float64

	ActiveCount int
	WellCount   int
}

// Flush produces a WindowStats and resets counters for the next window.
// simTime is the engine clock at the flush tick.
func (c *Collector) Flush(currentTick int64, simTime float64, sample Sample) WindowStats {
	stats := WindowStats{
		WindowStartTick: c.windowStart,
		WindowEndTick:   currentTick,
		SimTimeSec:      simTime,

		ActiveCount: sample.ActiveCount,
		WellCount:   sample.WellCount,

		Spawned:       c.spawned,
		Killed:        c.killed,
		Cleared:       c.cleared,
		WellsPlaced:   c.wellsPlaced,
		WellsRemoved:  c.wellsRemoved,
		FramesSkipped: c.framesSkipped,
		WorkerErrors:  c.workerErrors,

		KineticEnergy: sample.KineticEnergy,
	}

	stats.DensityMean, stats.DensityP10, stats.DensityP50, stats.DensityP90 = Distribution(sample.Densities)
	stats.SpeedMean, stats.SpeedP10, stats.SpeedP50, stats.SpeedP90 = Distribution(sample.Speeds)
	if len(sample.Speeds) > 1 {
		stats.SpeedStd = stat.StdDev(sample.Speeds, nil)
	}

	// Reset for next window
	c.windowStart = currentTick
	c.spawned = 0
	c.killed = 0
	c.cleared = 0
	c.wellsPlaced = 0
	c.wellsRemoved = 0
	c.framesSkipped = 0
	c.workerErrors = 0

	return stats
}

// WindowTicks returns the number of ticks per window.
func (c *Collector) WindowTicks() int64 {
	return c.windowTicks
}
