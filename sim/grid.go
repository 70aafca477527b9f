package sim

import (
	"math"

	"gonum.org/v1/gonum/spatial/r3"
)

// MaxNeighbors caps the neighbor list returned by grid queries. Dense
// clusters truncate silently beyond the cap; the resulting density
// underestimation is an accepted approximation.
const MaxNeighbors = 64

// Neighbor holds a nearby particle with precomputed pair geometry so the
// solver never recomputes displacement or distance.
type Neighbor struct {
	Index int32
	D     r3.Vec // displacement from neighbor to query particle
	Dist  float64
	Dist2 float64
}

type cellKey struct {
	X, Y, Z int32
}

// Grid is a uniform spatial hash over active particles. Cell size equals
// the SPH smoothing radius, which is what makes the 27-cell scan in
// QueryNeighborsInto complete for query radius h. Rebuilt fully every tick,
// never partially updated.
type Grid struct {
	cellSize     float64
	cells        map[cellKey][]int32
	lastOccupied int
}

// NewGrid creates a grid with the given cell size.
func NewGrid(cellSize float64) *Grid {
	return &Grid{
		cellSize: cellSize,
		cells:    make(map[cellKey][]int32, 1024),
	}
}

// Build clears and repopulates the grid from the particle snapshot.
// Inactive particles are skipped.
func (g *Grid) Build(ps []Particle) {
	// Truncate in place so cell slices are reused across ticks. If stale
	// empty cells heavily outnumber live ones, drop the map and start over.
	if len(g.cells) > 4096 && len(g.cells) > 4*g.lastOccupied {
		g.cells = make(map[cellKey][]int32, 2*g.lastOccupied)
	} else {
		for k := range g.cells {
			g.cells[k] = g.cells[k][:0]
		}
	}

	occupied := 0
	for i := range ps {
		if !ps[i].Active {
			continue
		}
		key := g.keyFor(ps[i].Pos)
		cell := g.cells[key]
		if len(cell) == 0 {
			occupied++
		}
		g.cells[key] = append(cell, int32(i))
	}
	g.lastOccupied = occupied
}

// QueryNeighborsInto appends the neighbors of ps[i] within radius to dst and
// returns the updated slice, excluding ps[i] itself and inactive particles.
// Only the 3x3x3 cell block around the query cell is scanned; this is
// complete only while radius <= cell size. Reuse dst across calls to avoid
// allocations. Truncates at MaxNeighbors.
func (g *Grid) QueryNeighborsInto(dst []Neighbor, ps []Particle, i int, radius float64) []Neighbor {
	center := g.keyFor(ps[i].Pos)
	pos := ps[i].Pos
	r2 := radius * radius

	for dx := int32(-1); dx <= 1; dx++ {
		for dy := int32(-1); dy <= 1; dy++ {
			for dz := int32(-1); dz <= 1; dz++ {
				key := cellKey{X: center.X + dx, Y: center.Y + dy, Z: center.Z + dz}
				for _, j := range g.cells[key] {
					if int(j) == i {
						continue
					}
					q := &ps[j]
					if !q.Active {
						continue
					}
					d := r3.Sub(pos, q.Pos)
					d2 := r3.Norm2(d)
					if d2 > r2 {
						continue
					}
					dst = append(dst, Neighbor{Index: j, D: d, Dist: math.Sqrt(d2), Dist2: d2})
					if len(dst) >= MaxNeighbors {
						return dst
					}
				}
			}
		}
	}
	return dst
}

func (g *Grid) keyFor(p r3.Vec) cellKey {
	return cellKey{
		X: int32(math.Floor(p.X / g.cellSize)),
		Y: int32(math.Floor(p.Y / g.cellSize)),
		Z: int32(math.Floor(p.Z / g.cellSize)),
	}
}
