package sim

import (
	"math"

	"gonum.org/v1/gonum/spatial/r3"
)

// integrate advances one particle under the net force with semi-implicit
// Verlet and applies the global damping factor.
func (e *Engine) integrate(p *Particle, force r3.Vec, dt float64) {
	a := r3.Scale(1/clampMass(p.Mass), force)
	dx := r3.Add(r3.Scale(dt, p.Vel), r3.Scale(0.5*dt*dt, a))
	p.Pos = r3.Add(p.Pos, dx)
	p.Vel = r3.Add(p.Vel, r3.Scale(dt, a))
	p.Vel = r3.Scale(e.cfg.Integrator.Damping, p.Vel)
}

// applyBoundaries enforces the origin-centered containment shells in order:
// soft pull, hard clamp + reflect, rest jitter, kill. The distance is
// measured once before any clamp, so a runaway particle past the kill
// radius is deactivated even though the hard clamp has already pulled its
// position back. Returns false when the particle was deactivated.
func (e *Engine) applyBoundaries(p *Particle) bool {
	w := &e.cfg.World
	it := &e.cfg.Integrator

	dist := r3.Norm(p.Pos)

	if dist > w.SoftBoundary && dist > 1e-9 {
		// Soft shell: inward velocity pull only, no position clamp.
		pull := math.Min((dist-w.SoftBoundary)/w.SoftBand, 1) * it.SoftPull * it.SoftPullCoef
		p.Vel = r3.Add(p.Vel, r3.Scale(-pull/dist, p.Pos))
	}

	if dist > w.HardBoundary {
		// Hard shell: clamp radially, reflect any outward velocity
		// component with restitution loss.
		n := r3.Scale(1/dist, p.Pos)
		p.Pos = r3.Scale(w.HardBoundary, n)
		if out := r3.Dot(p.Vel, n); out > 0 {
			p.Vel = r3.Scale(it.Restitution, r3.Sub(p.Vel, r3.Scale(2*out, n)))
		}
	}

	if p.Speed() < it.RestSpeed {
		// Tiny random kick so nothing freezes exactly at rest.
		p.Vel = r3.Add(p.Vel, r3.Scale(it.RestKick*e.rng.Float64(), e.randUnit()))
	}

	if dist > w.KillRadius {
		p.Active = false
		return false
	}

	return true
}

// applyForces is the single-threaded apply phase: liquid policy, Verlet
// integration, per-type post hooks, boundary constraints, aging. Runs after
// the parallel force pass has filled e.accums.
func (e *Engine) applyForces(ps []Particle, dt float64) {
	for i := range ps {
		p := &ps[i]
		if !p.Active {
			continue
		}

		force := e.applyPolicy(p, &e.accums[i])
		e.integrate(p, force, dt)

		if post := e.rules[p.Type].postMove; post != nil {
			post(e, p)
		}

		if !e.applyBoundaries(p) {
			continue
		}
		p.Age += dt
	}
}
