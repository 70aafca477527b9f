package sim

import (
	"gonum.org/v1/gonum/spatial/r3"
)

// forceAccum keeps each force component separate so the liquid policy can
// scale them independently before they are combined.
type forceAccum struct {
	Pressure  r3.Vec
	Viscosity r3.Vec
	Cohesion  r3.Vec
	Surface   r3.Vec
	Gravity   r3.Vec
}

// densityChunk computes density and pressure for ps[i0:i1]. It writes only
// ps[i].Density and ps[i].Pressure, so disjoint chunks can run concurrently.
func (e *Engine) densityChunk(ps []Particle, i0, i1 int, scratch *workerScratch) {
	k := &e.kernels
	rest := e.cfg.SPH.RestDensity
	kGas := e.cfg.SPH.GasConstant
	floor := 0.1 * rest

	for i := i0; i < i1; i++ {
		p := &ps[i]
		if !p.Active {
			continue
		}
		scratch.Neighbors = e.grid.QueryNeighborsInto(scratch.Neighbors[:0], ps, i, k.H)

		rho := clampMass(p.Mass) // self-contribution; empty neighborhoods fall back to this
		for _, nb := range scratch.Neighbors {
			rho += clampMass(ps[nb.Index].Mass) * k.W(nb.Dist2)
		}
		if rho < floor {
			rho = floor
		}
		p.Density = rho
		p.Pressure = kGas * (rho - rest) // negative under rest density: tension
	}
}

// forceChunk computes the per-component forces on ps[i0:i1] into e.accums.
// It reads particle state, the grid, the octree and the wells, and writes
// only accums[i0:i1], so disjoint chunks can run concurrently.
func (e *Engine) forceChunk(ps []Particle, i0, i1 int, scratch *workerScratch) {
	k := &e.kernels
	visc := e.cfg.SPH.Viscosity
	cohesion := e.cfg.SPH.CohesionStrength
	sigma := e.cfg.SPH.SurfaceTension
	surfThreshold := e.cfg.SPH.SurfaceThreshold
	strength := e.cfg.Gravity.Strength
	scale := e.cfg.Gravity.Scale
	particleG := e.cfg.Gravity.ParticleG
	theta := e.cfg.Gravity.Theta

	for i := i0; i < i1; i++ {
		p := &ps[i]
		acc := &e.accums[i]
		*acc = forceAccum{}
		if !p.Active {
			continue
		}

		mi := clampMass(p.Mass)
		scratch.Neighbors = e.grid.QueryNeighborsInto(scratch.Neighbors[:0], ps, i, k.H)

		var colorGrad r3.Vec
		var colorLap float64

		for _, nb := range scratch.Neighbors {
			if nb.Dist < 1e-6 {
				continue // coincident pair has no defined direction
			}
			q := &ps[nb.Index]
			mj := clampMass(q.Mass)
			dir := r3.Scale(1/nb.Dist, nb.D)

			// Pressure: spiky gradient with the symmetrized (p_i+p_j)/2
			// term. SpikyGrad is negative, so positive pressure pushes the
			// pair apart.
			fp := -mj * (p.Pressure + q.Pressure) / (2 * q.Density) * k.SpikyGrad(nb.Dist)
			acc.Pressure = r3.Add(acc.Pressure, r3.Scale(fp, dir))

			// Viscosity: Laplacian kernel on the relative velocity.
			fv := visc * mj * k.ViscLap(nb.Dist) / q.Density
			acc.Viscosity = r3.Add(acc.Viscosity, r3.Scale(fv, r3.Sub(q.Vel, p.Vel)))

			// Cohesion: attraction toward the neighbor, scaled by the
			// type-pair matrix entry.
			fc := cohesion * CohesionBetween(p.Type, q.Type) * mj * k.Cohesion(nb.Dist)
			acc.Cohesion = r3.Sub(acc.Cohesion, r3.Scale(fc, dir))

			// Color field terms for surface tension.
			w := mj / q.Density
			colorGrad = r3.Add(colorGrad, r3.Scale(w*k.ColorGrad(nb.Dist2), nb.D))
			colorLap += w * k.ColorLap(nb.Dist2)
		}

		// Surface tension applies only near a free surface, where the
		// color-field gradient is strong enough to define a normal.
		if g := r3.Norm(colorGrad); g > surfThreshold {
			acc.Surface = r3.Scale(-sigma*colorLap/g, colorGrad)
		}

		// Mutual gravity via the octree, then the external wells.
		acc.Gravity = e.octree.ForceOn(int32(i), p.Pos, mi, particleG, theta)
		for wi := range e.wells {
			acc.Gravity = r3.Add(acc.Gravity, e.wells[wi].ForceOn(p.Pos, mi, strength, scale))
		}
	}
}
