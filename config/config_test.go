package config

import (
	"math"
	"os"
	"path/filepath"
	"testing"
)

func TestLoad_Defaults(t *testing.T) {
	cfg, err := Load("")
	if err != nil {
		t.Fatalf("Load(\"\") returned error: %v", err)
	}

	if cfg.Pool.Capacity != 10000 {
		t.Errorf("Pool.Capacity = %d, want 10000", cfg.Pool.Capacity)
	}
	if cfg.SPH.SmoothingRadius != 50.0 {
		t.Errorf("SPH.SmoothingRadius = %v, want 50", cfg.SPH.SmoothingRadius)
	}
	if cfg.SPH.RestDensity != 1000.0 {
		t.Errorf("SPH.RestDensity = %v, want 1000", cfg.SPH.RestDensity)
	}
	if cfg.World.HardBoundary != 2000.0 {
		t.Errorf("World.HardBoundary = %v, want 2000", cfg.World.HardBoundary)
	}
	if cfg.World.KillRadius != 5000.0 {
		t.Errorf("World.KillRadius = %v, want 5000", cfg.World.KillRadius)
	}
	if cfg.Gravity.Theta != 0.5 {
		t.Errorf("Gravity.Theta = %v, want 0.5", cfg.Gravity.Theta)
	}
	if got, want := cfg.Integrator.MaxDT, 1.0/30.0; math.Abs(got-want) > 1e-6 {
		t.Errorf("Integrator.MaxDT = %v, want ~%v", got, want)
	}
}

func TestLoad_DerivedKernelConstants(t *testing.T) {
	cfg, err := Load("")
	if err != nil {
		t.Fatalf("Load(\"\") returned error: %v", err)
	}

	h := cfg.SPH.SmoothingRadius
	wantPoly6 := 315.0 / (64.0 * math.Pi * math.Pow(h, 9))
	if got := cfg.Derived.Poly6Const; math.Abs(got-wantPoly6) > wantPoly6*1e-12 {
		t.Errorf("Derived.Poly6Const = %g, want %g", got, wantPoly6)
	}

	wantSpiky := -45.0 / (math.Pi * math.Pow(h, 6))
	if got := cfg.Derived.SpikyGradConst; math.Abs(got-wantSpiky) > math.Abs(wantSpiky)*1e-12 {
		t.Errorf("Derived.SpikyGradConst = %g, want %g", got, wantSpiky)
	}

	if got := cfg.Derived.ViscLapConst; got != -cfg.Derived.SpikyGradConst {
		t.Errorf("Derived.ViscLapConst = %g, want %g", got, -cfg.Derived.SpikyGradConst)
	}

	if cfg.Derived.CellSize != h {
		t.Errorf("Derived.CellSize = %v, want smoothing radius %v", cfg.Derived.CellSize, h)
	}
	if got, want := cfg.Derived.PhotonicCap, 0.9*cfg.Liquids.LightSpeed; got != want {
		t.Errorf("Derived.PhotonicCap = %v, want %v", got, want)
	}
}

func TestLoad_UserOverride(t *testing.T) {
	dir := t.TempDir()
	path := filepath.Join(dir, "override.yaml")
	content := []byte("sph:\n  gas_constant: 12.5\ngravity:\n  theta: 0.8\n")
	if err := os.WriteFile(path, content, 0644); err != nil {
		t.Fatalf("writing temp config: %v", err)
	}

	cfg, err := Load(path)
	if err != nil {
		t.Fatalf("Load(%q) returned error: %v", path, err)
	}

	if cfg.SPH.GasConstant != 12.5 {
		t.Errorf("SPH.GasConstant = %v, want 12.5 from override", cfg.SPH.GasConstant)
	}
	if cfg.Gravity.Theta != 0.8 {
		t.Errorf("Gravity.Theta = %v, want 0.8 from override", cfg.Gravity.Theta)
	}
	// Untouched fields keep defaults
	if cfg.SPH.RestDensity != 1000.0 {
		t.Errorf("SPH.RestDensity = %v, want default 1000", cfg.SPH.RestDensity)
	}
}

func TestLoad_MissingFile(t *testing.T) {
	if _, err := Load("/nonexistent/config.yaml"); err == nil {
		t.Error("Load with missing file should return an error")
	}
}

func TestWriteYAML_RoundTrip(t *testing.T) {
	cfg, err := Load("")
	if err != nil {
		t.Fatalf("Load(\"\") returned error: %v", err)
	}

	path := filepath.Join(t.TempDir(), "out.yaml")
	if err := cfg.WriteYAML(path); err != nil {
		t.Fatalf("WriteYAML returned error: %v", err)
	}

	reloaded, err := Load(path)
	if err != nil {
		t.Fatalf("reloading written config: %v", err)
	}
	if reloaded.SPH.GasConstant != cfg.SPH.GasConstant {
		t.Errorf("round-trip GasConstant = %v, want %v", reloaded.SPH.GasConstant, cfg.SPH.GasConstant)
	}
	if reloaded.World.HardBoundary != cfg.World.HardBoundary {
		t.Errorf("round-trip HardBoundary = %v, want %v", reloaded.World.HardBoundary, cfg.World.HardBoundary)
	}
}
