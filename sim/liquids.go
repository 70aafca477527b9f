package sim

import (
	"math"

	"gonum.org/v1/gonum/spatial/r3"

	"github.com/pthm-cable/nebula/config"
)

// modifiers scales the per-component force accumulators before they are
// combined into the net force. 1 everywhere is the identity.
type modifiers struct {
	pressure  float64
	viscosity float64
	cohesion  float64
	gravity   float64
}

var identityMods = modifiers{pressure: 1, viscosity: 1, cohesion: 1, gravity: 1}

// rule is one liquid type's behavior policy, applied after force summation
// and before integration in a fixed order: static coefficients, then the
// dynamic adjust hook, then (after the position update) the postMove hook
// for caps and jitter. Hooks may use the engine rng and clock, so rules run
// only on the single-threaded apply path.
type rule struct {
	base     modifiers
	adjust   func(e *Engine, p *Particle, m *modifiers)
	postMove func(e *Engine, p *Particle)
}

// buildRules binds the per-type policy table to one engine's config.
func buildRules(cfg *config.Config) [NumLiquidTypes]rule {
	rest := cfg.SPH.RestDensity
	boost := cfg.Liquids.PlasmaPressureBoost
	hbar := cfg.Liquids.Hbar
	maxJitter := cfg.SPH.SmoothingRadius / 4
	photonCap := cfg.Derived.PhotonicCap

	var rules [NumLiquidTypes]rule
	for i := range rules {
		rules[i].base = identityMods
		// Gravity inversion comes from the profile markers. The sign flip is
		// applied to the summed gravity component, never by feeding a
		// negative mass through the shared force formulas.
		if Profiles[i].AntiGravity || Profiles[i].NegativeMass {
			rules[i].base.gravity = -1
		}
	}

	rules[Plasma].base.cohesion = 0.7
	rules[Plasma].adjust = func(e *Engine, p *Particle, m *modifiers) {
		if p.Density > 1.2*rest {
			m.pressure *= boost
		}
	}

	rules[Crystal].base.cohesion = 1.5
	solidify := Profiles[Crystal].Solidify
	rules[Crystal].adjust = func(e *Engine, p *Particle, m *modifiers) {
		// Crystallization: packed lattices lose internal friction.
		if p.Density > solidify*rest {
			m.viscosity *= 0.3
		}
	}

	rules[Temporal].adjust = func(e *Engine, p *Particle, m *modifiers) {
		m.viscosity *= 1 + 0.2*math.Sin(e.clock)
	}

	rules[Antimatter].base.cohesion = -0.5 // net repulsion from its own kind

	rules[Quantum].adjust = func(e *Engine, p *Particle, m *modifiers) {
		m.pressure *= 0.8 + 0.4*e.rng.Float64()
	}
	uncertainty := Profiles[Quantum].Uncertainty
	rules[Quantum].postMove = func(e *Engine, p *Particle) {
		// Uncertainty jitter grows as momentum shrinks, clamped to h/4 so a
		// near-resting particle cannot teleport out of its neighborhood.
		momentum := math.Max(p.Speed()*clampMass(p.Mass), 1e-6)
		mag := uncertainty * hbar / (2 * momentum)
		if mag > maxJitter {
			mag = maxJitter
		}
		p.Pos = r3.Add(p.Pos, r3.Scale(mag, e.randUnit()))
	}

	rules[DarkMatter].base.cohesion = 2
	rules[DarkMatter].base.gravity = 2

	rules[Exotic].base.pressure = -0.3

	rules[Photonic].base.cohesion = 0.1
	rules[Photonic].base.viscosity = 0.1
	rules[Photonic].postMove = func(e *Engine, p *Particle) {
		if v := r3.Norm(p.Vel); v > photonCap {
			p.Vel = r3.Scale(photonCap/v, p.Vel)
		}
	}

	return rules
}

// applyPolicy combines the per-component force accumulators for one
// particle under its liquid rule and returns the net force. Surface tension
// is never modified by the policy. Single-threaded only.
func (e *Engine) applyPolicy(p *Particle, acc *forceAccum) r3.Vec {
	r := &e.rules[p.Type]
	m := r.base
	if r.adjust != nil {
		r.adjust(e, p, &m)
	}

	f := r3.Scale(m.pressure, acc.Pressure)
	f = r3.Add(f, r3.Scale(m.viscosity, acc.Viscosity))
	f = r3.Add(f, r3.Scale(m.cohesion, acc.Cohesion))
	f = r3.Add(f, acc.Surface)
	f = r3.Add(f, r3.Scale(m.gravity, acc.Gravity))
	return f
}
