package parallel

import (
	"runtime"
	"sync"
	"sync/atomic"
)

// Task is a unit of work. worker is the index of the goroutine running it,
// in [0, Workers()), so tasks can use per-worker scratch state without
// locking.
type Task func(worker int)

// WorkerPool is a pool of goroutines for chunk generation and meshing.
//
// Each worker has its own bounded queue and steals from the other queues
// when its own is empty, which balances load when some chunks take longer
// than others.
//
// Thread safety: WorkerPool is safe for concurrent use.
type WorkerPool struct {
	workers    int
	workQueues []chan Task
	done       chan struct{}
	wg         sync.WaitGroup
	running    atomic.Bool
	queueSize  int
}

// NewWorkerPoolCapacity creates a pool whose queues hold capacity tasks in
// total, split evenly across workers (at least one slot each).
// If workers is 0 or negative, GOMAXPROCS is used.
func NewWorkerPoolCapacity(workers, capacity int) *WorkerPool {
	if workers <= 0 {
		workers = runtime.GOMAXPROCS(0)
	}
	queueSize := (capacity + workers - 1) / workers
	if queueSize < 1 {
		queueSize = 1
	}

	p := &WorkerPool{
		workers:    workers,
		workQueues: make([]chan Task, workers),
		done:       make(chan struct{}),
		queueSize:  queueSize,
	}
	for i := range workers {
		p.workQueues[i] = make(chan Task, queueSize)
	}
	p.running.Store(true)

	p.wg.Add(workers)
	for i := range workers {
		go p.worker(i)
	}
	return p
}

func (p *WorkerPool) worker(id int) {
	defer p.wg.Done()

	myQueue := p.workQueues[id]
	for {
		select {
		case <-p.done:
			p.drainQueue(id, myQueue)
			return

		case work := <-myQueue:
			work(id)

		default:
			if stolen := p.steal(id); stolen != nil {
				stolen(id)
				continue
			}
			// Nothing anywhere: block on our own queue.
			select {
			case <-p.done:
				p.drainQueue(id, myQueue)
				return
			case work := <-myQueue:
				work(id)
			}
		}
	}
}

// drainQueue runs the tasks left in queue after Close.
func (p *WorkerPool) drainQueue(id int, queue chan Task) {
	for {
		select {
		case work := <-queue:
			work(id)
		default:
			return
		}
	}
}

// steal takes one task from another worker's queue, or returns nil.
func (p *WorkerPool) steal(myID int) Task {
	for i := range p.workers {
		if i == myID {
			continue
		}
		select {
		case work := <-p.workQueues[i]:
			return work
		default:
		}
	}
	return nil
}

// TrySubmit queues fn without blocking. It tries the shortest queue first
// and then every other queue, and reports false if all are full or the pool
// is closed.
func (p *WorkerPool) TrySubmit(fn Task) bool {
	if fn == nil || !p.running.Load() {
		return false
	}
	start := p.shortest()
	for i := range p.workers {
		select {
		case p.workQueues[(start+i)%p.workers] <- fn:
			return true
		default:
		}
	}
	return false
}

func (p *WorkerPool) shortest() int {
	minLen, minIdx := len(p.workQueues[0]), 0
	for i := 1; i < p.workers; i++ {
		if n := len(p.workQueues[i]); n < minLen {
			minLen, minIdx = n, i
		}
	}
	return minIdx
}

// Close stops accepting work, runs the tasks already queued and waits for
// every worker to exit. Close is safe to call multiple times.
func (p *WorkerPool) Close() {
	if !p.running.CompareAndSwap(true, false) {
		return
	}
	close(p.done)
	p.wg.Wait()
}

// Workers returns the number of workers in the pool.
func (p *WorkerPool) Workers() int {
	return p.workers
}

// Capacity returns the total number of tasks the queues can hold.
func (p *WorkerPool) Capacity() int {
	return p.workers * p.queueSize
}

// QueuedWork returns the approximate number of queued tasks.
func (p *WorkerPool) QueuedWork() int {
	total := 0
	for _, q := range p.workQueues {
		total += len(q)
	}
	return total
}
