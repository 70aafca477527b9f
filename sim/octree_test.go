package sim

import (
	"math"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	"gonum.org/v1/gonum/spatial/r3"
)

// directGravity is the O(n^2) reference for the octree force.
func directGravity(ps []Particle, i int, g float64) r3.Vec {
	var sum r3.Vec
	mi := clampMass(ps[i].Mass)
	for j := range ps {
		if j == i || !ps[j].Active {
			continue
		}
		d := r3.Sub(ps[j].Pos, ps[i].Pos)
		dist := r3.Norm(d)
		if dist < 1e-6 {
			continue
		}
		f := pointGravity(g, mi, clampMass(ps[j].Mass), dist, 0)
		sum = r3.Add(sum, r3.Scale(f/dist, d))
	}
	return sum
}

func TestOctreeThetaZeroMatchesDirectSum(t *testing.T) {
	const g = 0.5
	ps := randomParticles(250, 800, 11)
	tree := NewOctree(2000)
	tree.Build(ps)

	for i := 0; i < len(ps); i += 10 {
		want := directGravity(ps, i, g)
		got := tree.ForceOn(int32(i), ps[i].Pos, clampMass(ps[i].Mass), g, 0)

		tol := 1e-9 * (r3.Norm(want) + 1e-12)
		require.InDelta(t, want.X, got.X, tol, "particle %d X", i)
		require.InDelta(t, want.Y, got.Y, tol, "particle %d Y", i)
		require.InDelta(t, want.Z, got.Z, tol, "particle %d Z", i)
	}
}

func TestOctreeErrorGrowsMonotonicallyWithTheta(t *testing.T) {
	const g = 0.5
	// Tight cluster far from a lone test particle so the opening-angle
	// criterion actually collapses nodes at the larger thetas.
	ps := randomParticles(200, 50, 12)
	for i := range ps {
		ps[i].Pos = r3.Add(ps[i].Pos, r3.Vec{X: -500})
	}
	ps = append(ps, Particle{ID: 999, Pos: r3.Vec{X: 600}, Mass: 1, Active: true})
	probe := len(ps) - 1

	tree := NewOctree(2000)
	tree.Build(ps)

	exact := directGravity(ps, probe, g)
	exactNorm := r3.Norm(exact)
	require.Greater(t, exactNorm, 0.0)

	thetas := []float64{0, 0.25, 0.5, 1.0, 2.0}
	errs := make([]float64, len(thetas))
	for k, theta := range thetas {
		got := tree.ForceOn(int32(probe), ps[probe].Pos, clampMass(ps[probe].Mass), g, theta)
		errs[k] = r3.Norm(r3.Sub(got, exact))
	}

	assert.Less(t, errs[0], 1e-9*exactNorm, "theta=0 must be exact")
	for k := 1; k < len(errs); k++ {
		assert.GreaterOrEqual(t, errs[k], errs[k-1]-1e-12,
			"error must not shrink from theta=%g to theta=%g", thetas[k-1], thetas[k])
	}
	// Even the coarsest approximation stays bounded.
	assert.Less(t, errs[len(errs)-1], 0.5*exactNorm)
}

func TestOctreeDropsOutOfBoundsParticles(t *testing.T) {
	tree := NewOctree(2000)
	tree.Insert(0, r3.Vec{X: 100}, 2)
	tree.Insert(1, r3.Vec{X: 3000}, 5) // outside the root cube
	tree.Insert(2, r3.Vec{Y: -2500}, 7)

	assert.Equal(t, 2.0, tree.TotalMass(), "out-of-bounds mass must not enter the tree")
}

func TestOctreeSelfInteractionIsZero(t *testing.T) {
	tree := NewOctree(2000)
	pos := r3.Vec{X: 10, Y: 20, Z: 30}
	tree.Insert(0, pos, 5)

	f := tree.ForceOn(0, pos, 5, 0.5, 0.5)
	assert.Equal(t, r3.Vec{}, f)
}

func TestOctreeCoincidentParticles(t *testing.T) {
	// 100 particles at the same point: subdivision must stop at the depth
	// cap and forces must stay finite.
	pos := r3.Vec{X: 1, Y: 2, Z: 3}
	ps := make([]Particle, 100)
	for i := range ps {
		ps[i] = Particle{ID: uint32(i), Pos: pos, Mass: 0.8, Active: true}
	}

	tree := NewOctree(2000)
	tree.Build(ps)

	require.InDelta(t, 80.0, tree.TotalMass(), 1e-9)

	for i := range ps {
		f := tree.ForceOn(int32(i), ps[i].Pos, clampMass(ps[i].Mass), 0.5, 0.5)
		require.False(t, math.IsNaN(f.X) || math.IsInf(f.X, 0), "particle %d: force X = %g", i, f.X)
		require.False(t, math.IsNaN(f.Y) || math.IsInf(f.Y, 0), "particle %d: force Y = %g", i, f.Y)
		require.False(t, math.IsNaN(f.Z) || math.IsInf(f.Z, 0), "particle %d: force Z = %g", i, f.Z)
	}
}

func TestOctreeCenterOfMass(t *testing.T) {
	tree := NewOctree(2000)
	tree.Insert(0, r3.Vec{X: 100}, 1)
	tree.Insert(1, r3.Vec{X: -100}, 3)

	require.Equal(t, 4.0, tree.TotalMass())
	assert.InDelta(t, -50.0, tree.nodes[0].com.X, 1e-12)
	assert.InDelta(t, 0.0, tree.nodes[0].com.Y, 1e-12)
}

func TestOctreeAttractionDirection(t *testing.T) {
	ps := []Particle{
		{ID: 0, Pos: r3.Vec{X: -100}, Mass: 10, Active: true},
		{ID: 1, Pos: r3.Vec{X: 100}, Mass: 10, Active: true},
	}
	tree := NewOctree(2000)
	tree.Build(ps)

	f0 := tree.ForceOn(0, ps[0].Pos, clampMass(ps[0].Mass), 0.5, 0.5)
	f1 := tree.ForceOn(1, ps[1].Pos, clampMass(ps[1].Mass), 0.5, 0.5)

	assert.Positive(t, f0.X, "left particle must be pulled right")
	assert.Negative(t, f1.X, "right particle must be pulled left")
	assert.InDelta(t, f0.X, -f1.X, 1e-12, "pair forces must be symmetric")
}

func BenchmarkOctreeBuild(b *testing.B) {
	ps := randomParticles(5000, 1500, 13)
	tree := NewOctree(2000)
	b.ResetTimer()
	for i := 0; i < b.N; i++ {
		tree.Build(ps)
	}
}

func BenchmarkOctreeForce(b *testing.B) {
	ps := randomParticles(5000, 1500, 14)
	tree := NewOctree(2000)
	tree.Build(ps)
	b.ResetTimer()
	for i := 0; i < b.N; i++ {
		j := i % len(ps)
		tree.ForceOn(int32(j), ps[j].Pos, 1, 0.5, 0.5)
	}
}
