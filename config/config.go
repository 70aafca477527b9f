// Package config provides configuration loading and access for the simulation.
package config

import (
	_ "embed"
	"fmt"
	"math"
	"os"

	"gopkg.in/yaml.v3"
)

//go:embed defaults.yaml
var defaultsYAML []byte

// Config holds all simulation configuration parameters.
type Config struct {
	World      WorldConfig      `yaml:"world"`
	Pool       PoolConfig       `yaml:"pool"`
	SPH        SPHConfig        `yaml:"sph"`
	Gravity    GravityConfig    `yaml:"gravity"`
	Integrator IntegratorConfig `yaml:"integrator"`
	Liquids    LiquidsConfig    `yaml:"liquids"`
	Spawn      SpawnConfig      `yaml:"spawn"`
	Worker     WorkerConfig     `yaml:"worker"`
	Telemetry  TelemetryConfig  `yaml:"telemetry"`

	// Derived values computed after loading
	Derived DerivedConfig `yaml:"-"`
}

// WorldConfig holds the containment geometry, all measured from the origin.
type WorldConfig struct {
	SoftBoundary float64 `yaml:"soft_boundary"` // inward pull starts here
	SoftBand     float64 `yaml:"soft_band"`     // pull ramps to full over this distance
	HardBoundary float64 `yaml:"hard_boundary"` // position clamp + velocity reflection
	KillRadius   float64 `yaml:"kill_radius"`   // particles past this are deactivated
	OctreeExtent float64 `yaml:"octree_extent"` // half-size of the fixed octree root cube
}

// PoolConfig holds particle pool parameters.
type PoolConfig struct {
	Capacity int `yaml:"capacity"`
}

// SPHConfig holds fluid solver parameters.
type SPHConfig struct {
	SmoothingRadius  float64 `yaml:"smoothing_radius"`  // kernel support h; also the grid cell size
	RestDensity      float64 `yaml:"rest_density"`      // rho_0 in the equation of state
	GasConstant      float64 `yaml:"gas_constant"`      // k in p = k*(rho - rho_0)
	Viscosity        float64 `yaml:"viscosity"`         // global viscosity coefficient
	CohesionStrength float64 `yaml:"cohesion_strength"` // global scale on the cohesion kernel
	SurfaceTension   float64 `yaml:"surface_tension"`   // sigma for the color-field force
	SurfaceThreshold float64 `yaml:"surface_threshold"` // min |grad c| to count as a free surface
}

// GravityConfig holds gravity parameters for wells and particle-particle forces.
type GravityConfig struct {
	Strength  float64 `yaml:"strength"`   // well gravity base constant
	Scale     float64 `yaml:"scale"`      // user-facing global multiplier on well gravity
	ParticleG float64 `yaml:"particle_g"` // particle-particle gravitational constant
	Theta     float64 `yaml:"theta"`      // Barnes-Hut opening angle
}

// IntegratorConfig holds stepping and boundary parameters.
type IntegratorConfig struct {
	MaxDT        float64 `yaml:"max_dt"`         // upper bound on a single step
	Damping      float64 `yaml:"damping"`        // velocity multiplier per step
	Restitution  float64 `yaml:"restitution"`    // velocity retained on hard-boundary reflection
	SoftPull     float64 `yaml:"soft_pull"`      // max inward pull speed at the soft boundary
	SoftPullCoef float64 `yaml:"soft_pull_coef"` // pull-to-velocity coupling
	RestSpeed    float64 `yaml:"rest_speed"`     // below this speed a jitter kick is applied
	RestKick     float64 `yaml:"rest_kick"`      // magnitude of the jitter kick
}

// LiquidsConfig holds liquid-type policy parameters.
type LiquidsConfig struct {
	LightSpeed          float64 `yaml:"light_speed"`           // scaled c; photonic particles cap at 0.9*c
	Hbar                float64 `yaml:"hbar"`                  // scaled Planck constant for quantum jitter
	PlasmaPressureBoost float64 `yaml:"plasma_pressure_boost"` // pressure multiplier for over-dense plasma
}

// SpawnConfig holds stream-emission parameters.
type SpawnConfig struct {
	DefaultMass float64 `yaml:"default_mass"` // base mass before the per-type multiplier
	SpeedJitter float64 `yaml:"speed_jitter"` // random velocity spread on burst emission
}

// WorkerConfig holds worker supervision parameters.
type WorkerConfig struct {
	RestartLimit int `yaml:"restart_limit"` // restarts before entering degraded mode
}

// TelemetryConfig holds telemetry parameters.
type TelemetryConfig struct {
	StatsWindow float64 `yaml:"stats_window"` // seconds of sim time per stats window
	PerfWindow  int     `yaml:"perf_window"`  // ticks in the perf rolling window
}

// DerivedConfig holds values computed from the loaded config.
// The kernel constants bake the smoothing radius into the SPH kernel
// normalizations so the hot loops never touch math.Pow.
type DerivedConfig struct {
	H2             float64 // SmoothingRadius squared
	Poly6Const     float64 // 315 / (64*pi*h^9)
	Poly6GradConst float64 // -945 / (32*pi*h^9)
	Poly6LapConst  float64 // -945 / (32*pi*h^9), shared with gradient
	SpikyGradConst float64 // -45 / (pi*h^6)
	ViscLapConst   float64 // 45 / (pi*h^6)
	CellSize       float64 // grid cell size, equal to the smoothing radius
	PhotonicCap    float64 // 0.9 * LightSpeed
}

// global holds the loaded configuration.
var global *Config

// Init loads configuration from the given path, or uses embedded defaults if path is empty.
// Must be called before Cfg().
func Init(path string) error {
	cfg, err := Load(path)
	if err != nil {
		return err
	}
	global = cfg
	return nil
}

// MustInit is like Init but panics on error.
func MustInit(path string) {
	if err := Init(path); err != nil {
		panic(fmt.Sprintf("config: failed to initialize: %v", err))
	}
}

// Cfg returns the global configuration. Panics if Init was not called.
func Cfg() *Config {
	if global == nil {
		panic("config: Cfg() called before Init()")
	}
	return global
}

// Load loads configuration from a YAML file, merging with embedded defaults.
// If path is empty, only embedded defaults are used.
func Load(path string) (*Config, error) {
	// Start with embedded defaults
	cfg := &Config{}
	if err := yaml.Unmarshal(defaultsYAML, cfg); err != nil {
		return nil, fmt.Errorf("parsing embedded defaults: %w", err)
	}

	// Load user config if provided
	if path != "" {
		data, err := os.ReadFile(path)
		if err != nil {
			return nil, fmt.Errorf("reading config file: %w", err)
		}
		// Unmarshal into same struct - only overwrites fields present in file
		if err := yaml.Unmarshal(data, cfg); err != nil {
			return nil, fmt.Errorf("parsing config file: %w", err)
		}
	}

	// Compute derived values
	cfg.computeDerived()

	return cfg, nil
}

// computeDerived calculates values derived from loaded config.
func (c *Config) computeDerived() {
	h := c.SPH.SmoothingRadius
	h2 := h * h
	h6 := h2 * h2 * h2
	h9 := h6 * h2 * h

	c.Derived.H2 = h2
	c.Derived.Poly6Const = 315.0 / (64.0 * math.Pi * h9)
	c.Derived.Poly6GradConst = -945.0 / (32.0 * math.Pi * h9)
	c.Derived.Poly6LapConst = c.Derived.Poly6GradConst
	c.Derived.SpikyGradConst = -45.0 / (math.Pi * h6)
	c.Derived.ViscLapConst = 45.0 / (math.Pi * h6)
	c.Derived.CellSize = h
	c.Derived.PhotonicCap = 0.9 * c.Liquids.LightSpeed
}

// WriteYAML writes the configuration to a YAML file.
func (c *Config) WriteYAML(path string) error {
	data, err := yaml.Marshal(c)
	if err != nil {
		return fmt.Errorf("marshaling config: %w", err)
	}
	if err := os.WriteFile(path, data, 0644); err != nil {
		return fmt.Errorf("writing config file: %w", err)
	}
	return nil
}
