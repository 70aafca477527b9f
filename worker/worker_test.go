package worker

import (
	"math"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/pthm-cable/nebula/config"
	"github.com/pthm-cable/nebula/sim"
)

func testConfig(t *testing.T) *config.Config {
	t.Helper()
	cfg, err := config.Load("")
	if err != nil {
		t.Fatalf("loading default config: %v", err)
	}
	return cfg
}

// awaitResponse polls until the worker replies.
func awaitResponse(t *testing.T, w *Worker) Response {
	t.Helper()
	var resp Response
	require.Eventually(t, func() bool {
		r, ok := w.Poll()
		if ok {
			resp = r
		}
		return ok
	}, 5*time.Second, time.Millisecond)
	return resp
}

func particleAt(id uint32, x float64, lt sim.LiquidType) ParticleState {
	return ParticleState{
		ID:         id,
		Position:   Vec3{X: x},
		Mass:       1,
		LiquidType: uint8(lt),
		Active:     true,
	}
}

func TestWorkerTickRoundTrip(t *testing.T) {
	w := New(testConfig(t), 3, nil)
	w.Start()
	defer w.Stop()

	req := &Request{
		Particles: []ParticleState{
			particleAt(0, 0, sim.Plasma),
			particleAt(1, 30, sim.Plasma),
		},
		DeltaTime: 1.0 / 60,
	}
	require.True(t, w.TryPost(req))

	resp := awaitResponse(t, w)
	require.Nil(t, resp.Err)
	require.NotNil(t, resp.Result)
	require.Len(t, resp.Result.Particles, 2)

	byID := map[uint32]ParticleResult{}
	for _, pr := range resp.Result.Particles {
		byID[pr.ID] = pr
	}
	for id := uint32(0); id < 2; id++ {
		pr, ok := byID[id]
		require.True(t, ok, "particle %d missing from result", id)
		assert.True(t, pr.Active)
		assert.InDelta(t, 1.0/60, pr.Age, 1e-12)
		assert.Positive(t, pr.Density)
	}
}

func TestWorkerEngineStatePersistsAcrossTicks(t *testing.T) {
	w := New(testConfig(t), 3, nil)
	w.Start()
	defer w.Stop()

	// Ages echo back and accumulate because the request carries them.
	req := &Request{
		Particles: []ParticleState{particleAt(0, 0, sim.Crystal)},
		DeltaTime: 1.0 / 60,
	}
	require.True(t, w.TryPost(req))
	resp := awaitResponse(t, w)
	require.NotNil(t, resp.Result)

	req.Particles[0].Age = resp.Result.Particles[0].Age
	require.True(t, w.TryPost(req))
	resp = awaitResponse(t, w)
	require.NotNil(t, resp.Result)
	assert.InDelta(t, 2.0/60, resp.Result.Particles[0].Age, 1e-12)
}

func TestWorkerValidationError(t *testing.T) {
	w := New(testConfig(t), 3, nil)
	w.Start()
	defer w.Stop()

	bad := particleAt(7, 0, sim.Plasma)
	bad.Position.Y = math.NaN()
	req := &Request{Particles: []ParticleState{bad}, DeltaTime: 1.0 / 60}
	require.True(t, w.TryPost(req))

	resp := awaitResponse(t, w)
	require.Nil(t, resp.Result)
	require.NotNil(t, resp.Err)
	assert.Equal(t, "validate", resp.Err.Phase)
	assert.Contains(t, resp.Err.Message, "particle 7")
	assert.False(t, resp.Err.Timestamp.IsZero())
}

func TestWorkerRejectsBadDeltaTime(t *testing.T) {
	w := New(testConfig(t), 3, nil)
	w.Start()
	defer w.Stop()

	req := &Request{DeltaTime: -1}
	require.True(t, w.TryPost(req))
	resp := awaitResponse(t, w)
	require.NotNil(t, resp.Err)
	assert.Equal(t, "validate", resp.Err.Phase)
}

func TestWorkerRejectsUnknownLiquidType(t *testing.T) {
	w := New(testConfig(t), 3, nil)
	w.Start()
	defer w.Stop()

	bad := particleAt(0, 0, sim.Plasma)
	bad.LiquidType = 200
	req := &Request{Particles: []ParticleState{bad}, DeltaTime: 1.0 / 60}
	require.True(t, w.TryPost(req))

	resp := awaitResponse(t, w)
	require.NotNil(t, resp.Err)
	assert.Equal(t, "validate", resp.Err.Phase)
}

func TestWorkerRejectsDegenerateWell(t *testing.T) {
	w := New(testConfig(t), 3, nil)
	w.Start()
	defer w.Stop()

	req := &Request{
		DeltaTime: 1.0 / 60,
		Wells:     []WellState{{Mass: -5, Radius: 10, Active: true}},
	}
	require.True(t, w.TryPost(req))
	resp := awaitResponse(t, w)
	require.NotNil(t, resp.Err)
	assert.Equal(t, "validate", resp.Err.Phase)
}

func TestWorkerOmitsKilledParticles(t *testing.T) {
	cfg := testConfig(t)
	w := New(cfg, 3, nil)
	w.Start()
	defer w.Stop()

	// Outside the kill radius on the first boundary pass.
	far := particleAt(0, cfg.World.KillRadius+100, sim.Plasma)
	near := particleAt(1, 50, sim.Plasma)
	req := &Request{Particles: []ParticleState{far, near}, DeltaTime: 1.0 / 60}
	require.True(t, w.TryPost(req))

	resp := awaitResponse(t, w)
	require.NotNil(t, resp.Result)
	require.Len(t, resp.Result.Particles, 1)
	assert.Equal(t, uint32(1), resp.Result.Particles[0].ID)
}

func TestWorkerFiltersInactiveInput(t *testing.T) {
	w := New(testConfig(t), 3, nil)
	w.Start()
	defer w.Stop()

	ghost := particleAt(0, 10, sim.Plasma)
	ghost.Active = false
	req := &Request{
		Particles: []ParticleState{ghost, particleAt(1, 20, sim.Plasma)},
		DeltaTime: 1.0 / 60,
	}
	require.True(t, w.TryPost(req))

	resp := awaitResponse(t, w)
	require.NotNil(t, resp.Result)
	require.Len(t, resp.Result.Particles, 1)
	assert.Equal(t, uint32(1), resp.Result.Particles[0].ID)
}

func TestWorkerMailboxDepthOne(t *testing.T) {
	// A stopped worker never drains its mailbox, so the second post must
	// be refused: that refusal is the frame-skip backpressure signal.
	w := New(testConfig(t), 3, nil)
	assert.True(t, w.TryPost(&Request{DeltaTime: 1.0 / 60}))
	assert.False(t, w.TryPost(&Request{DeltaTime: 1.0 / 60}))

	w.Start()
	w.Stop()
}

func TestWorkerAliveTracksGoroutine(t *testing.T) {
	w := New(testConfig(t), 3, nil)
	w.Start()
	assert.True(t, w.Alive())
	w.Stop()
	assert.False(t, w.Alive())
}
