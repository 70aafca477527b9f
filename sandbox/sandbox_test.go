package sandbox

import (
	"math"
	"os"
	"path/filepath"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	"gonum.org/v1/gonum/spatial/r3"

	"github.com/pthm-cable/nebula/config"
	"github.com/pthm-cable/nebula/sim"
	"github.com/pthm-cable/nebula/telemetry"
	"github.com/pthm-cable/nebula/world"
)

func newTestConfig(t *testing.T, capacity int) *config.Config {
	t.Helper()
	cfg, err := config.Load("")
	require.NoError(t, err)
	cfg.Pool.Capacity = capacity
	return cfg
}

func newTestSandbox(t *testing.T, cfg *config.Config, opts Options) *Sandbox {
	t.Helper()
	s, err := New(cfg, opts)
	require.NoError(t, err)
	t.Cleanup(func() { s.Close() })
	return s
}

// pumpUntil drives Update at the nominal rate until cond holds.
func pumpUntil(t *testing.T, s *Sandbox, cond func() bool) {
	t.Helper()
	deadline := time.Now().Add(5 * time.Second)
	for time.Now().Before(deadline) {
		s.Update(DT)
		if cond() {
			return
		}
		time.Sleep(time.Millisecond)
	}
	t.Fatal("condition not reached before deadline")
}

func TestSandboxRunsPhysicsRoundTrip(t *testing.T) {
	cfg := newTestConfig(t, 64)
	s := newTestSandbox(t, cfg, Options{Seed: 3})

	spawned := s.SpawnBurst(r3.Vec{}, r3.Vec{X: 10}, 8, sim.Plasma)
	require.Equal(t, 8, spawned)

	var feed []RenderParticle
	pumpUntil(t, s, func() bool {
		feed = s.AppendRenderStates(feed[:0])
		return len(feed) == 8 && feed[0].Age > 0
	})

	for _, p := range feed {
		assert.Equal(t, sim.Plasma, p.Type)
		assert.Greater(t, p.Age, 0.0)
		assert.Greater(t, p.Density, 0.0)
	}
	assert.Positive(t, s.SimTime())
}

func TestSandboxWellPullsParticles(t *testing.T) {
	cfg := newTestConfig(t, 16)
	cfg.Spawn.SpeedJitter = 0
	s := newTestSandbox(t, cfg, Options{Seed: 5})

	_, ok := s.PlaceWell(r3.Vec{}, 1000, 10, world.WellStar)
	require.True(t, ok)
	s.SpawnBurst(r3.Vec{X: 200}, r3.Vec{}, 1, sim.Crystal)

	var feed []RenderParticle
	pumpUntil(t, s, func() bool {
		feed = s.AppendRenderStates(feed[:0])
		return len(feed) == 1 && feed[0].Vel.X < -0.01
	})

	assert.Less(t, feed[0].Pos.X, 200.0)
}

func TestSandboxClearDropsStaleResult(t *testing.T) {
	cfg := newTestConfig(t, 32)
	cfg.Spawn.SpeedJitter = 0
	s := newTestSandbox(t, cfg, Options{Seed: 9})

	// Fill the pool and post a tick against it.
	s.SpawnBurst(r3.Vec{X: 500}, r3.Vec{}, 32, sim.Temporal)
	s.Update(DT)

	// Clearing while the tick is in flight stales the pending result, and
	// the fresh spawn recycles slot 0, an id the stale result also carries.
	require.Equal(t, 32, s.ClearParticles())
	s.SpawnBurst(r3.Vec{}, r3.Vec{}, 1, sim.Quantum)
	require.Equal(t, 1, s.ActiveCount())

	var feed []RenderParticle
	pumpUntil(t, s, func() bool {
		feed = s.AppendRenderStates(feed[:0])
		return len(feed) == 1 && feed[0].Age > 0
	})

	// The survivor is the fresh spawn near the origin, not a resurrected
	// particle from the cleared burst at x=500.
	assert.Equal(t, sim.Quantum, feed[0].Type)
	assert.Less(t, math.Abs(feed[0].Pos.X), 100.0)
}

func TestSandboxWorkerRestartAndDegradedMode(t *testing.T) {
	cfg := newTestConfig(t, 8)
	cfg.Worker.RestartLimit = 2
	s := newTestSandbox(t, cfg, Options{Seed: 1})

	for attempt := 1; attempt <= 2; attempt++ {
		s.wk.Stop()
		s.Update(DT)
		require.True(t, s.wk.Alive(), "restart %d should bring the worker back", attempt)
		require.False(t, s.Degraded())
	}

	// Budget exhausted; the next death latches degraded mode.
	s.wk.Stop()
	s.Update(DT)
	assert.True(t, s.Degraded())
	assert.False(t, s.wk.Alive())

	// Degraded mode is stable and commands stay safe.
	s.Update(DT)
	assert.True(t, s.Degraded())
	s.SpawnBurst(r3.Vec{}, r3.Vec{}, 2, sim.Photonic)
	assert.Equal(t, 2, s.ActiveCount())
}

func TestSandboxRestartKeepsCanonicalState(t *testing.T) {
	cfg := newTestConfig(t, 8)
	cfg.Worker.RestartLimit = 3
	s := newTestSandbox(t, cfg, Options{Seed: 2})

	s.SpawnBurst(r3.Vec{}, r3.Vec{X: 5}, 4, sim.DarkMatter)
	var feed []RenderParticle
	pumpUntil(t, s, func() bool {
		feed = s.AppendRenderStates(feed[:0])
		return len(feed) == 4 && feed[0].Age > 0
	})

	s.wk.Stop()
	s.Update(DT)
	require.True(t, s.wk.Alive())

	// Particles survive the restart and keep simulating.
	ageBefore := feed[0].Age
	pumpUntil(t, s, func() bool {
		feed = s.AppendRenderStates(feed[:0])
		return len(feed) == 4 && feed[0].Age > ageBefore
	})
}

func TestSandboxFrameSkipsWhenWorkerBusy(t *testing.T) {
	cfg := newTestConfig(t, 4096)
	var skips int
	s := newTestSandbox(t, cfg, Options{
		Seed:           4,
		StatsWindowSec: DT,
		StatsCallback: func(ws telemetry.WindowStats) {
			skips += ws.FramesSkipped
		},
	})

	// A pool this size takes the worker well over a frame per tick, so
	// back-to-back updates must skip instead of queueing.
	s.SpawnBurst(r3.Vec{}, r3.Vec{}, 4096, sim.Antimatter)
	for i := 0; i < 20; i++ {
		s.Update(DT)
	}

	assert.Positive(t, skips)
}

func TestSandboxWellCommands(t *testing.T) {
	cfg := newTestConfig(t, 8)
	s := newTestSandbox(t, cfg, Options{Seed: 6})

	id1, ok := s.PlaceWell(r3.Vec{X: 1}, 100, 5, world.WellStar)
	require.True(t, ok)
	id2, ok := s.PlaceWell(r3.Vec{X: 2}, 200, 5, world.WellSingularity)
	require.True(t, ok)
	require.NotEqual(t, id1, id2)

	_, ok = s.PlaceWell(r3.Vec{}, -1, 5, world.WellPlanet)
	assert.False(t, ok, "degenerate mass must be rejected")

	assert.Equal(t, 2, s.WellCount())

	wells := s.Wells(nil)
	require.Len(t, wells, 2)
	assert.Equal(t, world.WellStar, wells[0].Type)

	assert.True(t, s.RemoveWell(id1))
	assert.False(t, s.RemoveWell(id1))
	assert.Equal(t, 1, s.WellCount())

	assert.Equal(t, 1, s.ClearWells())
	assert.Equal(t, 0, s.WellCount())
}

func TestSandboxStatsWindow(t *testing.T) {
	cfg := newTestConfig(t, 16)
	var windows []telemetry.WindowStats
	s := newTestSandbox(t, cfg, Options{
		Seed:           7,
		StatsWindowSec: 2 * DT,
		StatsCallback: func(ws telemetry.WindowStats) {
			windows = append(windows, ws)
		},
	})

	s.SpawnBurst(r3.Vec{}, r3.Vec{X: 20}, 5, sim.Exotic)
	pumpUntil(t, s, func() bool {
		for _, w := range windows {
			if w.DensityMean > 0 {
				return true
			}
		}
		return false
	})

	first := windows[0]
	assert.Equal(t, 5, first.Spawned)
	assert.Equal(t, 5, first.ActiveCount)
	assert.EqualValues(t, 0, first.WindowStartTick)

	// Windows tile the tick line without gaps.
	for i := 1; i < len(windows); i++ {
		assert.Equal(t, windows[i-1].WindowEndTick, windows[i].WindowStartTick)
		assert.Equal(t, 0, windows[i].Spawned, "spawn count must reset between windows")
	}
}

func TestSandboxOutputFiles(t *testing.T) {
	dir := filepath.Join(t.TempDir(), "run")
	cfg := newTestConfig(t, 8)
	s := newTestSandbox(t, cfg, Options{
		Seed:           8,
		StatsWindowSec: DT,
		OutputDir:      dir,
		SnapshotEvery:  1,
	})

	s.SpawnBurst(r3.Vec{}, r3.Vec{}, 3, sim.Crystal)
	var feed []RenderParticle
	pumpUntil(t, s, func() bool {
		feed = s.AppendRenderStates(feed[:0])
		return len(feed) == 3 && feed[0].Age > 0
	})
	require.NoError(t, s.Close())

	for _, name := range []string{"telemetry.csv", "perf.csv", "config.yaml"} {
		_, err := os.Stat(filepath.Join(dir, name))
		assert.NoError(t, err, "%s should exist", name)
	}

	snapshots, err := filepath.Glob(filepath.Join(dir, "snapshots", "tick_*.json"))
	require.NoError(t, err)
	assert.NotEmpty(t, snapshots)

	// Snapshots replay as worker requests.
	var req struct {
		Particles []struct {
			ID int `json:"id"`
		} `json:"particles"`
		DeltaTime float64 `json:"deltaTime"`
	}
	_, err = telemetry.LoadTickSnapshot(snapshots[len(snapshots)-1], &req)
	require.NoError(t, err)
	assert.Equal(t, DT, req.DeltaTime)
}

func TestSandboxSpawnSaturatesAtCapacity(t *testing.T) {
	cfg := newTestConfig(t, 10)
	s := newTestSandbox(t, cfg, Options{Seed: 11})

	assert.Equal(t, 10, s.SpawnBurst(r3.Vec{}, r3.Vec{}, 50, sim.Plasma))
	assert.Equal(t, 0, s.SpawnBurst(r3.Vec{}, r3.Vec{}, 1, sim.Plasma))
	assert.Equal(t, 10, s.ActiveCount())

	assert.Equal(t, 10, s.ClearParticles())
	assert.Equal(t, 0, s.ActiveCount())
	assert.Equal(t, 4, s.SpawnBurst(r3.Vec{}, r3.Vec{}, 4, sim.Photonic))
}
