// Package main provides CMA-ES tuning for solver parameters that keep the
// particle sandbox stable under load.
package main

import (
	"github.com/pthm-cable/nebula/config"
)

// ParamSpec defines a single tunable parameter.
type ParamSpec struct {
	Name    string  // Human-readable name
	Path    string  // Config path for logging
	Min     float64 // Lower bound
	Max     float64 // Upper bound
	Default float64 // Default value
}

// ParamVector holds the set of all tunable parameters.
type ParamVector struct {
	Specs []ParamSpec
}

// NewParamVector creates the standard set of tunable parameters. The
// smoothing radius is deliberately excluded: it feeds the precomputed kernel
// constants, so changing it requires a config reload.
func NewParamVector() *ParamVector {
	return &ParamVector{
		Specs: []ParamSpec{
			// SPH solver
			{Name: "gas_constant", Path: "sph.gas_constant", Min: 1.0, Max: 30.0, Default: 8.0},
			{Name: "viscosity", Path: "sph.viscosity", Min: 0.05, Max: 5.0, Default: 0.5},
			{Name: "cohesion_strength", Path: "sph.cohesion_strength", Min: 0.0, Max: 10.0, Default: 2.0},
			{Name: "surface_tension", Path: "sph.surface_tension", Min: 0.0, Max: 3.0, Default: 0.6},
			// Gravity
			{Name: "gravity_strength", Path: "gravity.strength", Min: 5.0, Max: 200.0, Default: 50.0},
			{Name: "particle_g", Path: "gravity.particle_g", Min: 0.0, Max: 5.0, Default: 0.5},
			// Integrator
			{Name: "max_dt", Path: "integrator.max_dt", Min: 0.01, Max: 0.05, Default: 1.0 / 30.0},
			{Name: "damping", Path: "integrator.damping", Min: 0.95, Max: 0.9999, Default: 0.995},
			{Name: "restitution", Path: "integrator.restitution", Min: 0.3, Max: 1.0, Default: 0.9},
			{Name: "soft_pull", Path: "integrator.soft_pull", Min: 5.0, Max: 200.0, Default: 50.0},
			{Name: "soft_pull_coef", Path: "integrator.soft_pull_coef", Min: 0.001, Max: 0.1, Default: 0.01},
			// Liquids
			{Name: "plasma_boost", Path: "liquids.plasma_pressure_boost", Min: 1.0, Max: 3.0, Default: 1.5},
		},
	}
}

// Dim returns the number of parameters.
func (pv *ParamVector) Dim() int {
	return len(pv.Specs)
}

// DefaultVector returns the default parameter values as a slice.
func (pv *ParamVector) DefaultVector() []float64 {
	v := make([]float64, len(pv.Specs))
	for i, spec := range pv.Specs {
		v[i] = spec.Default
	}
	return v
}

// Normalize converts raw parameter values to [0,1] range.
func (pv *ParamVector) Normalize(raw []float64) []float64 {
	normalized := make([]float64, len(pv.Specs))
	for i, spec := range pv.Specs {
		normalized[i] = (raw[i] - spec.Min) / (spec.Max - spec.Min)
	}
	return normalized
}

// Denormalize converts [0,1] values back to raw parameter values.
func (pv *ParamVector) Denormalize(normalized []float64) []float64 {
	raw := make([]float64, len(pv.Specs))
	for i, spec := range pv.Specs {
		raw[i] = spec.Min + normalized[i]*(spec.Max-spec.Min)
	}
	return raw
}

// Clamp ensures all values are within bounds.
func (pv *ParamVector) Clamp(v []float64) []float64 {
	clamped := make([]float64, len(pv.Specs))
	for i, spec := range pv.Specs {
		val := v[i]
		if val < spec.Min {
			val = spec.Min
		}
		if val > spec.Max {
			val = spec.Max
		}
		clamped[i] = val
	}
	return clamped
}

// ApplyToConfig applies parameter values to a Config struct.
// Order must match Specs order.
func (pv *ParamVector) ApplyToConfig(cfg *config.Config, values []float64) {
	clamped := pv.Clamp(values)
	i := 0

	// SPH solver
	cfg.SPH.GasConstant = clamped[i]
	i++
	cfg.SPH.Viscosity = clamped[i]
	i++
	cfg.SPH.CohesionStrength = clamped[i]
	i++
	cfg.SPH.SurfaceTension = clamped[i]
	i++

	// Gravity
	cfg.Gravity.Strength = clamped[i]
	i++
	cfg.Gravity.ParticleG = clamped[i]
	i++

	// Integrator
	cfg.Integrator.MaxDT = clamped[i]
	i++
	cfg.Integrator.Damping = clamped[i]
	i++
	cfg.Integrator.Restitution = clamped[i]
	i++
	cfg.Integrator.SoftPull = clamped[i]
	i++
	cfg.Integrator.SoftPullCoef = clamped[i]
	i++

	// Liquids
	cfg.Liquids.PlasmaPressureBoost = clamped[i]
}

// ExtractFromConfig extracts current parameter values from a Config struct.
func (pv *ParamVector) ExtractFromConfig(cfg *config.Config) []float64 {
	return []float64{
		cfg.SPH.GasConstant,
		cfg.SPH.Viscosity,
		cfg.SPH.CohesionStrength,
		cfg.SPH.SurfaceTension,
		cfg.Gravity.Strength,
		cfg.Gravity.ParticleG,
		cfg.Integrator.MaxDT,
		cfg.Integrator.Damping,
		cfg.Integrator.Restitution,
		cfg.Integrator.SoftPull,
		cfg.Integrator.SoftPullCoef,
		cfg.Liquids.PlasmaPressureBoost,
	}
}
