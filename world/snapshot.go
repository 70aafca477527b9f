package world

import (
	"github.com/pthm-cable/nebula/worker"
)

// AppendParticleStates appends a wire snapshot of every active particle to
// dst and returns it. The call arms the reconcile set: the next Reconcile
// treats exactly these ids as in flight, so particles spawned while the
// worker is busy are never mistaken for kills.
func (s *Store) AppendParticleStates(dst []worker.ParticleState) []worker.ParticleState {
	for i := range s.posted {
		s.posted[i] = false
	}

	s.ForEachActive(func(pos *Position, vel *Velocity, body *Body, _ *Fluid, meta *Meta) {
		s.posted[meta.ID] = true
		dst = append(dst, worker.ParticleState{
			ID:         meta.ID,
			Position:   worker.FromR3(pos.Vec),
			Velocity:   worker.FromR3(vel.Vec),
			Mass:       body.Mass,
			Charge:     body.Charge,
			LiquidType: uint8(body.Type),
			Active:     true,
			Age:        meta.Age,
		})
	})
	return dst
}

// Reconcile copies a tick result back onto the canonical components,
// matching strictly by id. Results for unknown or cleared ids are dropped;
// in-flight ids missing from the result are marked inactive (the engine
// killed them past the kill radius). Returns how many particles were
// updated and how many were deactivated.
func (s *Store) Reconcile(results []worker.ParticleResult) (applied, killed int) {
	for i := range s.seen {
		s.seen[i] = false
	}

	for i := range results {
		pr := &results[i]
		if int(pr.ID) >= len(s.entities) {
			continue
		}
		s.seen[pr.ID] = true

		e := s.entities[pr.ID]
		meta := s.metaMap.Get(e)
		if !meta.Active {
			// Cleared while the worker was busy; do not resurrect.
			continue
		}
		if !pr.Active {
			s.Deactivate(pr.ID)
			killed++
			continue
		}

		s.posMap.Get(e).Vec = pr.Position.R3()
		s.velMap.Get(e).Vec = pr.Velocity.R3()
		fl := s.fluidMap.Get(e)
		fl.Density = pr.Density
		fl.Pressure = pr.Pressure
		meta.Age = pr.Age
		applied++
	}

	for id := range s.posted {
		if s.posted[id] && !s.seen[id] {
			if s.Deactivate(uint32(id)) {
				killed++
			}
		}
		s.posted[id] = false
	}
	return applied, killed
}

// DisarmReconcile forgets the in-flight id set. The sandbox calls this when
// a pending result must be discarded, such as a clear-all issued while the
// worker was computing.
func (s *Store) DisarmReconcile() {
	for i := range s.posted {
		s.posted[i] = false
	}
}

// AppendStates appends the wire form of every active well to dst.
func (r *WellRegistry) AppendStates(dst []worker.WellState) []worker.WellState {
	for i := range r.wells {
		w := &r.wells[i]
		if !w.Active {
			continue
		}
		dst = append(dst, worker.WellState{
			Position: worker.FromR3(w.Pos),
			Mass:     w.Mass,
			Radius:   w.Radius,
			Type:     w.Type.String(),
			Active:   true,
		})
	}
	return dst
}
