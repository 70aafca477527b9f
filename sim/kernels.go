package sim

import (
	"github.com/pthm-cable/nebula/config"
)

// Kernels bundles the smoothing-kernel normalization constants for a fixed
// smoothing radius h. The constants are precomputed once when the config is
// loaded; evaluation is branch-plus-multiply only.
type Kernels struct {
	H  float64
	H2 float64

	poly6     float64 // 315 / (64 pi h^9)
	poly6Grad float64 // -945 / (32 pi h^9)
	poly6Lap  float64 // -945 / (32 pi h^9)
	spikyGrad float64 // -45 / (pi h^6)
	viscLap   float64 // 45 / (pi h^6)
}

// NewKernels copies the derived constants out of the config.
func NewKernels(cfg *config.Config) Kernels {
	d := &cfg.Derived
	return Kernels{
		H:         cfg.SPH.SmoothingRadius,
		H2:        d.H2,
		poly6:     d.Poly6Const,
		poly6Grad: d.Poly6GradConst,
		poly6Lap:  d.Poly6LapConst,
		spikyGrad: d.SpikyGradConst,
		viscLap:   d.ViscLapConst,
	}
}

// W is the poly6 density kernel evaluated at squared distance r2.
// Zero outside the support radius.
func (k *Kernels) W(r2 float64) float64 {
	if r2 >= k.H2 {
		return 0
	}
	d := k.H2 - r2
	return k.poly6 * d * d * d
}

// SpikyGrad is the scalar magnitude of the spiky kernel gradient. Negative
// for 0 < r < h, so a positive pressure term pushes particles apart when
// multiplied by the displacement direction. Returns 0 for degenerate
// separations below 1e-6.
func (k *Kernels) SpikyGrad(r float64) float64 {
	if r < 1e-6 || r >= k.H {
		return 0
	}
	d := k.H - r
	return k.spikyGrad * d * d
}

// ViscLap is the Laplacian of the viscosity kernel, applied to relative
// velocity.
func (k *Kernels) ViscLap(r float64) float64 {
	if r >= k.H {
		return 0
	}
	return k.viscLap * (k.H - r)
}

// Cohesion is a piecewise cubic on q = r/h: near-field plateau for q < 0.5,
// cubic falloff to zero at q = 1. Both branches evaluate to 0.25 at the
// joint and their slopes match, so the force has no kink.
func (k *Kernels) Cohesion(r float64) float64 {
	q := r / k.H
	switch {
	case q >= 1:
		return 0
	case q < 0.5:
		return 1 - 6*q*q + 6*q*q*q
	default:
		u := 1 - q
		return 2 * u * u * u
	}
}

// ColorGrad is the scalar factor of the color-field gradient; callers
// multiply by the displacement vector.
func (k *Kernels) ColorGrad(r2 float64) float64 {
	if r2 >= k.H2 {
		return 0
	}
	d := k.H2 - r2
	return k.poly6Grad * d * d
}

// ColorLap is the color-field Laplacian contribution at squared distance r2.
func (k *Kernels) ColorLap(r2 float64) float64 {
	if r2 >= k.H2 {
		return 0
	}
	return k.poly6Lap * (k.H2 - r2) * (3*k.H2 - 7*r2)
}
