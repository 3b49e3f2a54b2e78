package soft

import (
	"runtime"
	"sync"
	"sync/atomic"
)

// pool is a fixed set of goroutines executing workgroups.
//
// Each worker owns a queue and steals from the others when its own queue is
// empty, which keeps the tail of a dispatch short when some workgroups
// straddle the grid edge and finish early.
type pool struct {
	workers int
	queues  []chan func()
	done    chan struct{}
	wg      sync.WaitGroup
	running atomic.Bool
	next    atomic.Uint64
}

func newPool(workers int) *pool {
	if workers <= 0 {
		workers = runtime.GOMAXPROCS(0)
	}
	queueSize := max(workers*4, 8)

	p := &pool{
		workers: workers,
		queues:  make([]chan func(), workers),
		done:    make(chan struct{}),
	}
	for i := range workers {
		p.queues[i] = make(chan func(), queueSize)
	}
	p.running.Store(true)

	p.wg.Add(workers)
	for i := range workers {
		go p.worker(i)
	}
	return p
}

func (p *pool) worker(id int) {
	defer p.wg.Done()
	own := p.queues[id]
	for {
		select {
		case <-p.done:
			p.drain(own)
			return
		case work := <-own:
			work()
		default:
			if stolen := p.steal(id); stolen != nil {
				stolen()
				continue
			}
			select {
			case <-p.done:
				p.drain(own)
				return
			case work := <-own:
				work()
			}
		}
	}
}

func (p *pool) drain(queue chan func()) {
	for {
		select {
		case work := <-queue:
			work()
		default:
			return
		}
	}
}

func (p *pool) steal(id int) func() {
	for i := range p.workers {
		if i == id {
			continue
		}
		select {
		case work := <-p.queues[i]:
			return work
		default:
		}
	}
	return nil
}

// submit queues work round-robin and reports false if the pool is closed.
// It may block while the target queue is full.
func (p *pool) submit(work func()) bool {
	if !p.running.Load() {
		return false
	}
	id := int(p.next.Add(1) % uint64(p.workers))
	select {
	case p.queues[id] <- work:
		return true
	case <-p.done:
		return false
	}
}

// close stops accepting work, runs whatever is queued and joins the workers.
func (p *pool) close() {
	if !p.running.CompareAndSwap(true, false) {
		return
	}
	close(p.done)
	p.wg.Wait()
}
