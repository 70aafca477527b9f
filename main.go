package main

import (
	"flag"
	"log/slog"
	"math"
	"os"
	"time"

	"gonum.org/v1/gonum/spatial/r3"

	"github.com/pthm-cable/nebula/config"
	"github.com/pthm-cable/nebula/sandbox"
	"github.com/pthm-cable/nebula/sim"
	"github.com/pthm-cable/nebula/world"
)

func main() {
	// CLI flags
	configPath := flag.String("config", "", "Path to config.yaml (empty = use defaults)")
	logStats := flag.Bool("log-stats", false, "Output stats via slog")
	statsWindow := flag.Float64("stats-window", 0, "Stats window size in seconds (0 = use config)")
	snapshotDir := flag.String("snapshot-dir", "", "Directory for tick snapshot files")
	snapshotEvery := flag.Int("snapshot-every", 0, "Dump a tick snapshot every N ticks (0 = disabled)")
	outputDir := flag.String("output-dir", "", "Output directory for CSV logs and config snapshot")
	seed := flag.Int64("seed", 0, "RNG seed (0 = time-based)")
	maxTicks := flag.Int("max-ticks", 0, "Stop after N ticks (0 = unlimited)")
	particles := flag.Int("particles", 4000, "Particles emitted into the demo scene")

	flag.Parse()

	// Initialize config before anything else
	if err := config.Init(*configPath); err != nil {
		slog.Error("failed to load config", "error", err)
		os.Exit(1)
	}
	cfg := config.Cfg()

	// Set up seed
	rngSeed := *seed
	if rngSeed == 0 {
		rngSeed = time.Now().UnixNano()
	}

	// Set up slog (JSON to stdout for structured logging)
	logger := slog.New(slog.NewJSONHandler(os.Stdout, nil))
	slog.SetDefault(logger)

	s, err := sandbox.New(cfg, sandbox.Options{
		Seed:           rngSeed,
		LogStats:       *logStats,
		StatsWindowSec: *statsWindow,
		OutputDir:      *outputDir,
		SnapshotDir:    *snapshotDir,
		SnapshotEvery:  *snapshotEvery,
	})
	if err != nil {
		slog.Error("failed to build sandbox", "error", err)
		os.Exit(1)
	}
	defer s.Close()

	seedScene(s, *particles)

	slog.Info("starting headless run",
		"seed", rngSeed,
		"particles", s.ActiveCount(),
		"wells", s.WellCount(),
		"max_ticks", *maxTicks,
	)

	for {
		s.Update(sandbox.DT)

		if s.Degraded() {
			slog.Error("physics degraded, stopping", "tick", s.Tick())
			return
		}
		if *maxTicks > 0 && s.Tick() >= int64(*maxTicks) {
			slog.Info("max ticks reached", "tick", s.Tick())
			return
		}
	}
}

// seedScene builds the demo composition: a heavy star with a planet
// companion, and one stream of every liquid type on a ring around them.
func seedScene(s *sandbox.Sandbox, particles int) {
	s.PlaceWell(r3.Vec{}, 2000, 30, world.WellStar)
	s.PlaceWell(r3.Vec{X: 900, Y: 300}, 600, 15, world.WellPlanet)

	perType := particles / int(sim.NumLiquidTypes)
	if perType < 1 {
		perType = 1
	}
	for t := sim.LiquidType(0); t < sim.NumLiquidTypes; t++ {
		angle := 2 * math.Pi * float64(t) / float64(sim.NumLiquidTypes)
		origin := r3.Vec{X: 700 * math.Cos(angle), Y: 700 * math.Sin(angle)}
		// Streams aim tangentially so the scene orbits instead of collapsing.
		vel := r3.Vec{X: -40 * math.Sin(angle), Y: 40 * math.Cos(angle)}
		s.SpawnBurst(origin, vel, perType, t)
	}
}
