package sim

import (
	"math"

	"gonum.org/v1/gonum/spatial/r3"
)

// octreeMaxDepth bounds subdivision. Coincident particles would otherwise
// subdivide forever; at the cap their mass is folded into one leaf.
const octreeMaxDepth = 24

// octNode is one node of the Barnes-Hut octree. Nodes live in a flat arena
// and reference their 8 children by the index of the first, so rebuilding
// the tree every tick reuses a single allocation.
type octNode struct {
	center r3.Vec
	half   float64

	com  r3.Vec  // running center of mass of everything below
	mass float64 // accumulated total mass

	particle    int32 // leaf particle index, -1 when empty or internal
	leafPos     r3.Vec
	leafMass    float64
	children    int32 // arena index of child octant 0
	hasChildren bool
}

func (n *octNode) size() float64 {
	return 2 * n.half
}

// Octree approximates particle-particle gravity in O(n log n). The root
// covers a fixed world cube centered on the origin; particles outside it are
// silently dropped and contribute no mutual gravity that tick. Built fresh
// from the snapshot every tick, never persisted.
type Octree struct {
	nodes []octNode
	half  float64 // root half extent
}

// NewOctree creates an octree whose root cube spans ±halfExtent per axis.
func NewOctree(halfExtent float64) *Octree {
	t := &Octree{
		half:  halfExtent,
		nodes: make([]octNode, 0, 4096),
	}
	t.Reset()
	return t
}

// Reset drops all nodes and re-creates the empty root, keeping the arena.
func (t *Octree) Reset() {
	t.nodes = t.nodes[:0]
	t.nodes = append(t.nodes, octNode{half: t.half, particle: -1, children: -1})
}

// Build resets the tree and inserts every active particle.
func (t *Octree) Build(ps []Particle) {
	t.Reset()
	for i := range ps {
		if !ps[i].Active {
			continue
		}
		t.Insert(int32(i), ps[i].Pos, ps[i].Mass)
	}
}

// Insert adds one particle. Positions outside the root cube are dropped.
// Mass is clamped before it enters the tree.
func (t *Octree) Insert(idx int32, pos r3.Vec, mass float64) {
	if math.Abs(pos.X) > t.half || math.Abs(pos.Y) > t.half || math.Abs(pos.Z) > t.half {
		return
	}
	t.insert(0, idx, pos, clampMass(mass), 0)
}

// TotalMass returns the accumulated mass at the root.
func (t *Octree) TotalMass() float64 {
	return t.nodes[0].mass
}

// NodeCount returns the number of arena nodes, root included.
func (t *Octree) NodeCount() int {
	return len(t.nodes)
}

func (t *Octree) insert(n, idx int32, pos r3.Vec, mass float64, depth int) {
	t.accumulate(n, pos, mass)

	nd := &t.nodes[n]
	if nd.hasChildren {
		c := nd.children + childOctant(nd.center, pos)
		t.insert(c, idx, pos, mass, depth+1)
		return
	}

	if nd.particle < 0 {
		nd.particle = idx
		nd.leafPos = pos
		nd.leafMass = mass
		return
	}

	if depth >= octreeMaxDepth {
		// Coincident particles: mass and center of mass are already folded
		// into this leaf, the first occupant keeps the slot.
		return
	}

	// Occupied leaf: split and push both particles down. The re-inserted
	// occupant accumulates into the children only; its mass is already
	// counted here.
	oldIdx, oldPos, oldMass := nd.particle, nd.leafPos, nd.leafMass
	t.subdivide(n)
	t.nodes[n].particle = -1

	oc := t.nodes[n].children + childOctant(t.nodes[n].center, oldPos)
	t.insert(oc, oldIdx, oldPos, oldMass, depth+1)

	nc := t.nodes[n].children + childOctant(t.nodes[n].center, pos)
	t.insert(nc, idx, pos, mass, depth+1)
}

// accumulate folds one particle into the node's running center of mass.
func (t *Octree) accumulate(n int32, pos r3.Vec, mass float64) {
	nd := &t.nodes[n]
	total := nd.mass + mass
	nd.com = r3.Scale(1/total, r3.Add(r3.Scale(nd.mass, nd.com), r3.Scale(mass, pos)))
	nd.mass = total
}

// subdivide appends 8 empty children covering the octants of node n.
// Appending can grow the arena, so callers must not hold node pointers
// across this call.
func (t *Octree) subdivide(n int32) {
	parent := t.nodes[n]
	first := int32(len(t.nodes))
	h := parent.half / 2

	for oz := 0; oz < 2; oz++ {
		for oy := 0; oy < 2; oy++ {
			for ox := 0; ox < 2; ox++ {
				c := parent.center
				if ox == 0 {
					c.X -= h
				} else {
					c.X += h
				}
				if oy == 0 {
					c.Y -= h
				} else {
					c.Y += h
				}
				if oz == 0 {
					c.Z -= h
				} else {
					c.Z += h
				}
				t.nodes = append(t.nodes, octNode{center: c, half: h, particle: -1, children: -1})
			}
		}
	}

	t.nodes[n].children = first
	t.nodes[n].hasChildren = true
}

// childOctant maps a position to the octant index under center:
// bit 0 = +x, bit 1 = +y, bit 2 = +z. Must match subdivide's append order.
func childOctant(center, pos r3.Vec) int32 {
	var o int32
	if pos.X >= center.X {
		o |= 1
	}
	if pos.Y >= center.Y {
		o |= 2
	}
	if pos.Z >= center.Z {
		o |= 4
	}
	return o
}

// ForceOn returns the approximate gravitational force on a particle at pos
// with the given (already clamped) mass. theta is the opening-angle
// criterion: a node whose size/distance ratio is below theta acts as a
// single body at its center of mass; theta = 0 degenerates to exact
// pairwise summation. idx identifies the particle so its own leaf
// contributes nothing.
func (t *Octree) ForceOn(idx int32, pos r3.Vec, mass, g, theta float64) r3.Vec {
	return t.forceFrom(0, idx, pos, mass, g, theta)
}

func (t *Octree) forceFrom(n, idx int32, pos r3.Vec, mass, g, theta float64) r3.Vec {
	nd := &t.nodes[n]
	if nd.mass == 0 {
		return r3.Vec{}
	}
	if !nd.hasChildren && nd.particle == idx {
		return r3.Vec{}
	}

	d := r3.Sub(nd.com, pos)
	dist := r3.Norm(d)

	if !nd.hasChildren {
		if dist < 1e-6 {
			// Coincident pair (merged depth-cap leaf), skip rather than blow up.
			return r3.Vec{}
		}
		f := pointGravity(g, mass, nd.mass, dist, 0)
		return r3.Scale(f/dist, d)
	}

	if dist > 0 && nd.size()/dist < theta {
		f := pointGravity(g, mass, nd.mass, dist, 0)
		return r3.Scale(f/dist, d)
	}

	var sum r3.Vec
	for c := int32(0); c < 8; c++ {
		sum = r3.Add(sum, t.forceFrom(nd.children+c, idx, pos, mass, g, theta))
	}
	return sum
}
