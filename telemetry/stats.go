package telemetry

import (
	"log/slog"
	"sort"

	"gonum.org/v1/gonum/stat"
)

// WindowStats holds aggregated simulation statistics for one stats window.
type WindowStats struct {
	WindowStartTick int64   `csv:"-"`
	WindowEndTick   int64   `csv:"window_end"`
	SimTimeSec      float64 `csv:"sim_time"`

	// Population at window end
	ActiveCount int `csv:"active"`
	WellCount   int `csv:"wells"`

	// Events during the window
	Spawned       int `csv:"spawned"`
	Killed        int `csv:"killed"`
	Cleared       int `csv:"cleared"`
	WellsPlaced   int `csv:"wells_placed"`
	WellsRemoved  int `csv:"wells_removed"`
	FramesSkipped int `csv:"frames_skipped"`
	WorkerErrors  int `csv:"worker_errors"`

	// Density distribution (sampled at window end)
	DensityMean float64 `csv:"density_mean"`
	DensityP10  float64 `csv:"density_p10"`
	DensityP50  float64 `csv:"density_p50"`
	DensityP90  float64 `csv:"density_p90"`

	// Speed distribution
	SpeedMean float64 `csv:"speed_mean"`
	SpeedStd  float64 `csv:"speed_std"`
	SpeedP10  float64 `csv:"speed_p10"`
	SpeedP50  float64 `csv:"speed_p50"`
	SpeedP90  float64 `csv:"speed_p90"`

	// Total kinetic energy, the cheapest global stability indicator
	KineticEnergy float64 `csv:"kinetic_energy"`
}

// Percentile calculates the p-th percentile of a sorted slice with linear
// interpolation. p should be in [0, 1]. Returns 0 if the slice is empty.
func Percentile(sorted []float64, p float64) float64 {
	n := len(sorted)
	if n == 0 {
		return 0
	}
	if p <= 0 {
		return sorted[0]
	}
	if p >= 1 {
		return sorted[n-1]
	}

	idx := p * float64(n-1)
	lo := int(idx)
	hi := lo + 1
	if hi >= n {
		return sorted[n-1]
	}

	frac := idx - float64(lo)
	return sorted[lo]*(1-frac) + sorted[hi]*frac
}

// Distribution computes mean and p10/p50/p90 of values. The slice is sorted
// in place.
func Distribution(values []float64) (mean, p10, p50, p90 float64) {
	if len(values) == 0 {
		return 0, 0, 0, 0
	}
	mean = stat.Mean(values, nil)
	sort.Float64s(values)
	return mean, Percentile(values, 0.10), Percentile(values, 0.50), Percentile(values, 0.90)
}

// LogValue implements slog.LogValuer for structured logging.
func (s WindowStats) LogValue() slog.Value {
	return slog.GroupValue(
		slog.Int64("window_start", s.WindowStartTick),
		slog.Int64("window_end", s.WindowEndTick),
		slog.Float64("sim_time", s.SimTimeSec),
		slog.Int("active", s.ActiveCount),
		slog.Int("wells", s.WellCount),
		slog.Int("spawned", s.Spawned),
		slog.Int("killed", s.Killed),
		slog.Int("cleared", s.Cleared),
		slog.Int("wells_placed", s.WellsPlaced),
		slog.Int("wells_removed", s.WellsRemoved),
		slog.Int("frames_skipped", s.FramesSkipped),
		slog.Int("worker_errors", s.WorkerErrors),
		slog.Float64("density_mean", s.DensityMean),
		slog.Float64("density_p10", s.DensityP10),
		slog.Float64("density_p50", s.DensityP50),
		slog.Float64("density_p90", s.DensityP90),
		slog.Float64("speed_mean", s.SpeedMean),
		slog.Float64("speed_std", s.SpeedStd),
		slog.Float64("speed_p10", s.SpeedP10),
		slog.Float64("speed_p50", s.SpeedP50),
		slog.Float64("speed_p90", s.SpeedP90),
		slog.Float64("kinetic_energy", s.KineticEnergy),
	)
}

// LogStats logs the window stats using slog.
func (s WindowStats) LogStats() {
	slog.Info("stats",
		"window_end", s.WindowEndTick,
		"sim_time", s.SimTimeSec,
		"active", s.ActiveCount,
		"wells", s.WellCount,
		"spawned", s.Spawned,
		"killed", s.Killed,
		"frames_skipped", s.FramesSkipped,
		"worker_errors", s.WorkerErrors,
		"density_mean", s.DensityMean,
		"density_p50", s.DensityP50,
		"speed_mean", s.SpeedMean,
		"speed_p90", s.SpeedP90,
		"kinetic_energy", s.KineticEnergy,
	)
}
