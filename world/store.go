package world

import (
	"math"
	"math/rand"

	"github.com/mlange-42/ark/ecs"
	"gonum.org/v1/gonum/spatial/r3"

	"github.com/pthm-cable/nebula/config"
	"github.com/pthm-cable/nebula/sim"
)

// Store is the canonical particle pool. Every entity is created once at
// construction and never removed; lifecycle is the Meta.Active flag plus a
// free list of inactive slots, so particle ids stay stable for the whole
// run and the hot path never allocates.
type Store struct {
	world  *ecs.World
	mapper *ecs.Map5[Position, Velocity, Body, Fluid, Meta]
	filter *ecs.Filter5[Position, Velocity, Body, Fluid, Meta]

	posMap   *ecs.Map1[Position]
	velMap   *ecs.Map1[Velocity]
	bodyMap  *ecs.Map1[Body]
	fluidMap *ecs.Map1[Fluid]
	metaMap  *ecs.Map1[Meta]

	entities []ecs.Entity // slot index == particle id
	free     []uint32     // inactive slots, top of stack spawns first
	active   int

	posted []bool // ids included in the last snapshot, armed for reconcile
	seen   []bool // reconcile scratch

	cfg *config.Config
	rng *rand.Rand
}

// NewStore builds the pool at full capacity with every slot inactive.
func NewStore(cfg *config.Config, seed int64) *Store {
	capacity := cfg.Pool.Capacity
	w := ecs.NewWorld()

	s := &Store{
		world:    w,
		mapper:   ecs.NewMap5[Position, Velocity, Body, Fluid, Meta](w),
		filter:   ecs.NewFilter5[Position, Velocity, Body, Fluid, Meta](w),
		posMap:   ecs.NewMap1[Position](w),
		velMap:   ecs.NewMap1[Velocity](w),
		bodyMap:  ecs.NewMap1[Body](w),
		fluidMap: ecs.NewMap1[Fluid](w),
		metaMap:  ecs.NewMap1[Meta](w),
		entities: make([]ecs.Entity, capacity),
		free:     make([]uint32, 0, capacity),
		posted:   make([]bool, capacity),
		seen:     make([]bool, capacity),
		cfg:      cfg,
		rng:      rand.New(rand.NewSource(seed)),
	}

	for i := range s.entities {
		meta := Meta{ID: uint32(i)}
		s.entities[i] = s.mapper.NewEntity(&Position{}, &Velocity{}, &Body{}, &Fluid{}, &meta)
	}
	// Reverse order so slot 0 spawns first.
	for i := capacity - 1; i >= 0; i-- {
		s.free = append(s.free, uint32(i))
	}
	return s
}

// Capacity returns the fixed pool size.
func (s *Store) Capacity() int { return len(s.entities) }

// ActiveCount returns the number of live particles.
func (s *Store) ActiveCount() int { return s.active }

// Spawn activates one particle of the given type. Returns false when the
// pool is saturated; emission silently stops rather than evicting.
func (s *Store) Spawn(pos, vel r3.Vec, t sim.LiquidType) (uint32, bool) {
	if len(s.free) == 0 {
		return 0, false
	}
	id := s.free[len(s.free)-1]
	s.free = s.free[:len(s.free)-1]

	prof := &sim.Profiles[t]
	e := s.entities[id]

	*s.posMap.Get(e) = Position{Vec: pos}
	*s.velMap.Get(e) = Velocity{Vec: s.jitter(vel)}
	*s.bodyMap.Get(e) = Body{
		Mass:   s.cfg.Spawn.DefaultMass * prof.MassMul,
		Charge: prof.Charge,
		Size:   prof.BaseSize,
		Type:   t,
	}
	*s.fluidMap.Get(e) = Fluid{}
	*s.metaMap.Get(e) = Meta{ID: id, Active: true}

	s.active++
	return id, true
}

// SpawnBurst activates up to n particles of one type scattered around
// origin with a shared stream velocity. Returns how many actually spawned
// before the pool saturated.
func (s *Store) SpawnBurst(origin, vel r3.Vec, n int, t sim.LiquidType) int {
	scatter := sim.Profiles[t].BaseSize
	spawned := 0
	for i := 0; i < n; i++ {
		pos := r3.Add(origin, r3.Scale(scatter*s.rng.Float64(), randDir(s.rng)))
		if _, ok := s.Spawn(pos, vel, t); !ok {
			break
		}
		spawned++
	}
	return spawned
}

// Deactivate returns a particle to the pool. Safe to call twice; the second
// call reports false.
func (s *Store) Deactivate(id uint32) bool {
	if int(id) >= len(s.entities) {
		return false
	}
	meta := s.metaMap.Get(s.entities[id])
	if !meta.Active {
		return false
	}
	meta.Active = false
	s.free = append(s.free, id)
	s.active--
	return true
}

// Clear deactivates every particle and resets the free list so emission
// starts over from slot zero.
func (s *Store) Clear() int {
	cleared := s.active

	query := s.filter.Query()
	for query.Next() {
		_, _, _, _, meta := query.Get()
		meta.Active = false
	}

	s.free = s.free[:0]
	for i := len(s.entities) - 1; i >= 0; i-- {
		s.free = append(s.free, uint32(i))
	}
	s.active = 0
	return cleared
}

// ForEachActive visits every live particle. Callers must not spawn or
// deactivate during the visit.
func (s *Store) ForEachActive(fn func(pos *Position, vel *Velocity, body *Body, fluid *Fluid, meta *Meta)) {
	query := s.filter.Query()
	for query.Next() {
		pos, vel, body, fluid, meta := query.Get()
		if !meta.Active {
			continue
		}
		fn(pos, vel, body, fluid, meta)
	}
}

func (s *Store) jitter(vel r3.Vec) r3.Vec {
	j := s.cfg.Spawn.SpeedJitter
	if j <= 0 {
		return vel
	}
	return r3.Add(vel, r3.Scale(j*s.rng.Float64(), randDir(s.rng)))
}

// randDir samples a uniform direction by rejection from the unit ball.
func randDir(rng *rand.Rand) r3.Vec {
	for {
		v := r3.Vec{
			X: rng.Float64()*2 - 1,
			Y: rng.Float64()*2 - 1,
			Z: rng.Float64()*2 - 1,
		}
		if n2 := r3.Norm2(v); n2 > 1e-12 && n2 <= 1 {
			return r3.Scale(1/math.Sqrt(n2), v)
		}
	}
}
