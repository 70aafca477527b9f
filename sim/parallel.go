package sim

import (
	"runtime"
	"sync"
)

// parallelThreshold is the minimum particle count to use the worker pool.
// Below this, single-threaded is faster than the dispatch overhead.
const parallelThreshold = 64

// tickPhase selects which compute pass a chunk runs.
type tickPhase uint8

const (
	phaseDensity tickPhase = iota
	phaseForces
)

// workerScratch holds per-worker reusable buffers.
type workerScratch struct {
	Neighbors []Neighbor
}

// workChunk is a particle index range for one pool worker.
type workChunk struct {
	start, end int
	phase      tickPhase
}

// parallelState holds the persistent in-tick worker pool. The density pass
// writes only ps[i].Density/Pressure and the force pass writes only
// accums[i], so disjoint chunk ranges need no locks.
type parallelState struct {
	numWorkers int
	scratches  []workerScratch

	workChan chan workChunk
	doneChan chan struct{}
	stopChan chan struct{}
	wg       sync.WaitGroup
	running  bool

	ps []Particle // slice the current dispatch operates on
}

func newParallelState() *parallelState {
	numWorkers := runtime.GOMAXPROCS(0)
	scratches := make([]workerScratch, numWorkers)
	for i := range scratches {
		scratches[i].Neighbors = make([]Neighbor, 0, MaxNeighbors)
	}
	return &parallelState{
		numWorkers: numWorkers,
		scratches:  scratches,
	}
}

// startWorkers launches the persistent pool goroutines.
func (p *parallelState) startWorkers(e *Engine) {
	if p.running {
		return
	}

	p.workChan = make(chan workChunk, p.numWorkers)
	p.doneChan = make(chan struct{}, p.numWorkers)
	p.stopChan = make(chan struct{})
	p.running = true

	for i := 0; i < p.numWorkers; i++ {
		p.wg.Add(1)
		go p.worker(e, i)
	}
}

// stopWorkers signals all pool goroutines to exit and waits for them.
func (p *parallelState) stopWorkers() {
	if !p.running {
		return
	}

	close(p.stopChan)
	p.wg.Wait()
	close(p.workChan)
	close(p.doneChan)
	p.running = false
}

// worker runs in a goroutine, processing chunks until stopped.
func (p *parallelState) worker(e *Engine, workerID int) {
	defer p.wg.Done()
	scratch := &p.scratches[workerID]

	for {
		select {
		case <-p.stopChan:
			return
		case chunk, ok := <-p.workChan:
			if !ok {
				return
			}
			p.runChunk(e, chunk, scratch)
			p.doneChan <- struct{}{}
		}
	}
}

func (p *parallelState) runChunk(e *Engine, c workChunk, scratch *workerScratch) {
	switch c.phase {
	case phaseDensity:
		e.densityChunk(p.ps, c.start, c.end, scratch)
	case phaseForces:
		e.forceChunk(p.ps, c.start, c.end, scratch)
	}
}

// runPhase executes one compute pass over ps, chunked across the pool when
// the population is large enough.
func (e *Engine) runPhase(ps []Particle, phase tickPhase) {
	n := len(ps)
	if n == 0 {
		return
	}

	pool := e.parallel
	pool.ps = ps

	if n < parallelThreshold {
		pool.runChunk(e, workChunk{start: 0, end: n, phase: phase}, &pool.scratches[0])
		pool.ps = nil
		return
	}

	if !pool.running {
		pool.startWorkers(e)
	}

	chunkSize := (n + pool.numWorkers - 1) / pool.numWorkers
	dispatched := 0
	for w := 0; w < pool.numWorkers; w++ {
		start := w * chunkSize
		end := start + chunkSize
		if end > n {
			end = n
		}
		if start >= end {
			continue
		}
		pool.workChan <- workChunk{start: start, end: end, phase: phase}
		dispatched++
	}

	for i := 0; i < dispatched; i++ {
		<-pool.doneChan
	}
	pool.ps = nil
}
