package worker

import (
	"fmt"
	"math"
	"time"

	"github.com/pthm-cable/nebula/config"
	"github.com/pthm-cable/nebula/sim"
	"github.com/pthm-cable/nebula/telemetry"
)

// Worker owns a persistent sim.Engine on its own goroutine. The owning
// thread talks to it through a depth-1 request mailbox and a depth-1
// response channel; both ends are non-blocking, so a busy worker makes the
// owner skip frames instead of queueing them.
//
// Result buffers are reused across ticks. The protocol guarantees this is
// safe: the owner drains and reconciles a response before posting the next
// request.
type Worker struct {
	cfg  *config.Config
	seed int64
	perf *telemetry.PerfCollector

	reqCh  chan *Request
	resCh  chan Response
	stopCh chan struct{}
	done   chan struct{}

	// Goroutine-local state below; the owner must never touch it.
	eng       *sim.Engine
	particles []sim.Particle
	wells     []sim.Well
	result    Result
}

// New builds a stopped worker. perf may be nil.
func New(cfg *config.Config, seed int64, perf *telemetry.PerfCollector) *Worker {
	return &Worker{
		cfg:    cfg,
		seed:   seed,
		perf:   perf,
		reqCh:  make(chan *Request, 1),
		resCh:  make(chan Response, 1),
		stopCh: make(chan struct{}),
		done:   make(chan struct{}),
	}
}

// Start launches the worker goroutine.
func (w *Worker) Start() {
	go w.run()
}

// Stop asks the goroutine to exit and waits for it. Only valid after
// Start.
func (w *Worker) Stop() {
	select {
	case <-w.stopCh:
	default:
		close(w.stopCh)
	}
	<-w.done
}

// Alive reports whether the goroutine is still running.
func (w *Worker) Alive() bool {
	select {
	case <-w.done:
		return false
	default:
		return true
	}
}

// TryPost offers a request without blocking. False means the mailbox is
// full and the caller should skip this frame.
func (w *Worker) TryPost(req *Request) bool {
	select {
	case w.reqCh <- req:
		return true
	default:
		return false
	}
}

// Poll fetches a finished response without blocking.
func (w *Worker) Poll() (Response, bool) {
	select {
	case resp := <-w.resCh:
		return resp, true
	default:
		return Response{}, false
	}
}

func (w *Worker) run() {
	defer close(w.done)

	w.eng = sim.NewEngine(w.cfg, w.seed)
	w.eng.SetPerf(w.perf)
	defer func() { w.eng.Close() }()

	for {
		select {
		case <-w.stopCh:
			return
		case req := <-w.reqCh:
			resp := w.process(req)
			select {
			case w.resCh <- resp:
			case <-w.stopCh:
				return
			}
		}
	}
}

// process runs one tick. Panics anywhere in the solver are converted into
// an ErrorPayload naming the phase that was executing; the engine is then
// rebuilt so corrupted scratch state cannot leak into the next tick.
func (w *Worker) process(req *Request) (resp Response) {
	defer func() {
		if r := recover(); r != nil {
			phase := "tick"
			if w.perf != nil {
				phase = w.perf.CurrentPhase()
			}
			resp = Response{Err: &ErrorPayload{
				Message:   fmt.Sprintf("physics tick panicked: %v", r),
				Phase:     phase,
				Timestamp: time.Now(),
			}}

			w.eng.Close()
			w.eng = sim.NewEngine(w.cfg, w.seed)
			w.eng.SetPerf(w.perf)
		}
	}()

	if err := validateRequest(req); err != nil {
		return Response{Err: &ErrorPayload{
			Message:   err.Error(),
			Phase:     "validate",
			Timestamp: time.Now(),
		}}
	}

	w.loadRequest(req)
	w.eng.Step(w.particles, w.wells, req.DeltaTime)
	return Response{Result: w.buildResult(req)}
}

// loadRequest rebuilds the replica particle and well slices from the
// request, reusing the previous tick's buffers.
func (w *Worker) loadRequest(req *Request) {
	w.particles = w.particles[:0]
	for i := range req.Particles {
		ps := &req.Particles[i]
		if !ps.Active {
			continue
		}
		w.particles = append(w.particles, sim.Particle{
			ID:     ps.ID,
			Pos:    ps.Position.R3(),
			Vel:    ps.Velocity.R3(),
			Mass:   ps.Mass,
			Charge: ps.Charge,
			Type:   sim.LiquidType(ps.LiquidType),
			Age:    ps.Age,
			Active: true,
		})
	}

	w.wells = w.wells[:0]
	for i := range req.Wells {
		ws := &req.Wells[i]
		if !ws.Active {
			continue
		}
		w.wells = append(w.wells, sim.Well{
			Pos:    ws.Position.R3(),
			Mass:   ws.Mass,
			Radius: ws.Radius,
		})
	}
}

// buildResult copies the surviving particles into the reply. Particles the
// integrator deactivated are dropped here; the owner treats their absence
// as the kill signal.
func (w *Worker) buildResult(req *Request) *Result {
	w.result.Particles = w.result.Particles[:0]
	for i := range w.particles {
		p := &w.particles[i]
		if !p.Active {
			continue
		}
		w.result.Particles = append(w.result.Particles, ParticleResult{
			ID:       p.ID,
			Position: FromR3(p.Pos),
			Velocity: FromR3(p.Vel),
			Active:   true,
			Age:      p.Age,
			Density:  p.Density,
			Pressure: p.Pressure,
		})
	}
	return &w.result
}

func validateRequest(req *Request) error {
	if req == nil {
		return fmt.Errorf("nil request")
	}
	if math.IsNaN(req.DeltaTime) || math.IsInf(req.DeltaTime, 0) || req.DeltaTime < 0 {
		return fmt.Errorf("invalid deltaTime %v", req.DeltaTime)
	}
	for i := range req.Particles {
		ps := &req.Particles[i]
		if !finite(ps.Position) || !finite(ps.Velocity) {
			return fmt.Errorf("particle %d: non-finite position or velocity", ps.ID)
		}
		if math.IsNaN(ps.Mass) || math.IsInf(ps.Mass, 0) {
			return fmt.Errorf("particle %d: non-finite mass", ps.ID)
		}
		if ps.LiquidType >= sim.NumLiquidTypes {
			return fmt.Errorf("particle %d: unknown liquid type %d", ps.ID, ps.LiquidType)
		}
	}
	for i := range req.Wells {
		ws := &req.Wells[i]
		if !finite(ws.Position) {
			return fmt.Errorf("well %d: non-finite position", i)
		}
		if !(ws.Mass > 0) || !(ws.Radius > 0) {
			return fmt.Errorf("well %d: mass and radius must be positive", i)
		}
	}
	return nil
}

func finite(v Vec3) bool {
	for _, c := range []float64{v.X, v.Y, v.Z} {
		if math.IsNaN(c) || math.IsInf(c, 0) {
			return false
		}
	}
	return true
}
