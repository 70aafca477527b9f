package main

import (
	"math"
	"math/rand"
	"sync"

	"gonum.org/v1/gonum/spatial/r3"
	"gonum.org/v1/gonum/stat"

	"github.com/pthm-cable/nebula/config"
	"github.com/pthm-cable/nebula/sim"
)

// Evaluation scene parameters.
const (
	tuneParticles = 512
	tuneDT        = 1.0 / 60.0
	densityStride = 15 // ticks between density variance samples
)

// Objective component weights.
const (
	weightSpeed    = 0.4
	weightEjected  = 0.4
	weightDensity  = 0.2
	failurePenalty = 1e6
)

// FitnessEvaluator runs short headless simulations and scores instability.
type FitnessEvaluator struct {
	params     *ParamVector
	maxTicks   int
	seeds      []int64
	configPath string

	mu          sync.Mutex
	bestFitness float64
}

// NewFitnessEvaluator creates a new evaluator.
func NewFitnessEvaluator(params *ParamVector, maxTicks int, seeds []int64, configPath string) *FitnessEvaluator {
	return &FitnessEvaluator{
		params:      params,
		maxTicks:    maxTicks,
		seeds:       seeds,
		configPath:  configPath,
		bestFitness: math.Inf(1),
	}
}

// BestFitness returns the lowest fitness seen so far.
func (fe *FitnessEvaluator) BestFitness() float64 {
	fe.mu.Lock()
	defer fe.mu.Unlock()
	return fe.bestFitness
}

// runResult holds the instability measurements from a single run.
type runResult struct {
	speedFrac   float64 // peak speed as a fraction of light speed
	ejectedFrac float64 // particles lost past the kill radius
	densityCV   float64 // mean coefficient of variation of density
	failed      bool    // NaN positions or config failure
}

// Evaluate computes the instability objective for a parameter vector
// (lower = better). Each seed runs on its own goroutine against an isolated
// config copy.
func (fe *FitnessEvaluator) Evaluate(x []float64) float64 {
	fitnesses := make([]float64, len(fe.seeds))
	var wg sync.WaitGroup

	for i, seed := range fe.seeds {
		wg.Add(1)
		go func(idx int, s int64) {
			defer wg.Done()
			result := fe.runSimulation(x, s)
			fitnesses[idx] = computeFitness(result)
		}(i, seed)
	}
	wg.Wait()

	var total float64
	for _, f := range fitnesses {
		total += f
	}
	avg := total / float64(len(fe.seeds))

	fe.mu.Lock()
	if avg < fe.bestFitness {
		fe.bestFitness = avg
	}
	fe.mu.Unlock()

	return avg
}

// runSimulation steps an isolated engine through the evaluation scene and
// measures instability.
func (fe *FitnessEvaluator) runSimulation(x []float64, seed int64) *runResult {
	cfg, err := config.Load(fe.configPath)
	if err != nil {
		return &runResult{failed: true}
	}
	fe.params.ApplyToConfig(cfg, x)

	eng := sim.NewEngine(cfg, seed)
	defer eng.Close()

	rng := rand.New(rand.NewSource(seed))
	ps := tuneScene(cfg, rng)
	wells := []sim.Well{{Pos: r3.Vec{}, Mass: 1500, Radius: 25}}

	result := &runResult{}
	var maxSpeed float64
	densities := make([]float64, 0, len(ps))
	var cvSum float64
	var cvCount int

	for tick := 0; tick < fe.maxTicks; tick++ {
		eng.Step(ps, wells, tuneDT)

		for i := range ps {
			p := &ps[i]
			if !p.Active {
				continue
			}
			if math.IsNaN(p.Pos.X) || math.IsNaN(p.Pos.Y) || math.IsNaN(p.Pos.Z) {
				result.failed = true
				return result
			}
			if speed := p.Speed(); speed > maxSpeed {
				maxSpeed = speed
			}
		}

		if tick%densityStride == 0 {
			densities = densities[:0]
			for i := range ps {
				if ps[i].Active {
					densities = append(densities, ps[i].Density)
				}
			}
			if len(densities) > 1 {
				mean, std := stat.MeanStdDev(densities, nil)
				if mean > 0 {
					cvSum += std / mean
					cvCount++
				}
			}
		}
	}

	ejected := 0
	for i := range ps {
		if !ps[i].Active {
			ejected++
		}
	}

	result.speedFrac = maxSpeed / cfg.Liquids.LightSpeed
	result.ejectedFrac = float64(ejected) / float64(len(ps))
	if cvCount > 0 {
		result.densityCV = cvSum / float64(cvCount)
	}
	return result
}

// tuneScene fills a deterministic shell of mixed-type particles orbiting the
// central well.
func tuneScene(cfg *config.Config, rng *rand.Rand) []sim.Particle {
	ps := make([]sim.Particle, tuneParticles)
	for i := range ps {
		t := sim.LiquidType(i % int(sim.NumLiquidTypes))
		prof := &sim.Profiles[t]

		dir := r3.Unit(r3.Vec{X: rng.NormFloat64(), Y: rng.NormFloat64(), Z: rng.NormFloat64()})
		radius := 200 + 400*rng.Float64()
		pos := r3.Scale(radius, dir)

		ps[i] = sim.Particle{
			ID:     uint32(i),
			Pos:    pos,
			Vel:    r3.Vec{X: -pos.Y / radius * 30, Y: pos.X / radius * 30},
			Mass:   cfg.Spawn.DefaultMass * prof.MassMul,
			Charge: prof.Charge,
			Type:   t,
			Active: true,
		}
	}
	return ps
}

// computeFitness folds a run's measurements into the scalar objective
// (lower = better).
func computeFitness(r *runResult) float64 {
	if r.failed {
		return failurePenalty
	}
	return weightSpeed*r.speedFrac + weightEjected*r.ejectedFrac + weightDensity*r.densityCV
}
