package pool

import (
	"errors"
	"fmt"
	"sync"
	"sync/atomic"

	"github.com/vk/taskgrid/queue"
)

// ErrPoolStopped is returned by futures whose thunk was rejected at submit
// time or discarded by an abrupt stop before it could run.
var ErrPoolStopped = errors.New("pool: stopped")

// job is a queued unit of work. run executes it on a worker; abort fails
// its future when the pool discards it unexecuted.
type job struct {
	run   func(worker int)
	abort func()
}

// worker pairs a stable id with the per-worker stop flag shared between the
// pool and the worker goroutine. The flag must stay reachable by the
// goroutine after a shrink removes the worker from the tracked slice.
type worker struct {
	id   int
	stop *atomic.Bool
}

// Pool runs submitted thunks on a set of worker goroutines that share one
// unbounded FIFO queue. All scheduling state is guarded by a single mutex
// with a wait condition for idle workers.
type Pool struct {
	mu      sync.Mutex
	cond    *sync.Cond
	tasks   *queue.Queue[job]
	workers []*worker
	nextID  int
	idle    int
	done    bool // drain stop requested
	stopped bool // abrupt stop requested
	wg      sync.WaitGroup

	metrics atomic.Pointer[Metrics] // nil means unmetered
}

// New creates a pool and spawns count worker loops. A count below one is
// treated as one.
func New(count int) *Pool {
	if count < 1 {
		count = 1
	}

	p := &Pool{tasks: queue.New[job]()}
	p.cond = sync.NewCond(&p.mu)

	p.mu.Lock()
	for i := 0; i < count; i++ {
		p.spawnLocked()
	}
	p.mu.Unlock()

	return p
}

// Submit wraps fn into a worker-id-taking thunk, enqueues it, and returns a
// future for its result. Submission never blocks and the queue is
// unbounded. A panic inside fn is recovered into the future's error; the
// worker moves on to its next thunk. Submitting to a stopped pool returns a
// future that has already failed with ErrPoolStopped.
func Submit[T any](p *Pool, fn func(worker int) (T, error)) *Future[T] {
	f := newFuture[T]()

	p.mu.Lock()
	if p.stopped || p.done {
		p.mu.Unlock()
		f.fail(ErrPoolStopped)
		return f
	}

	p.tasks.Push(job{
		run: func(worker int) {
			defer func() {
				if r := recover(); r != nil {
					p.metrics.Load().countPanic()
					f.fail(fmt.Errorf("pool: task panic: %v", r))
				}
			}()
			v, err := fn(worker)
			if err != nil {
				f.fail(err)
				return
			}
			f.complete(v)
		},
		abort: func() { f.fail(ErrPoolStopped) },
	})

	// Wake one idle worker; the rest stay parked.
	p.cond.Signal()
	p.mu.Unlock()

	return f
}

// Resize changes the number of workers. Growing spawns additional worker
// loops. Shrinking flips the stop flag of the excess workers and wakes all
// waiters: each flagged worker finishes its current thunk, then exits.
// Resize does not wait for shrunk workers to terminate; they are still
// joined by Stop. Resizing a stopping pool is a no-op.
func (p *Pool) Resize(count int) {
	if count < 0 {
		count = 0
	}

	p.mu.Lock()
	defer p.mu.Unlock()
	if p.stopped || p.done {
		return
	}

	cur := len(p.workers)
	switch {
	case count > cur:
		for i := cur; i < count; i++ {
			p.spawnLocked()
		}
	case count < cur:
		for _, w := range p.workers[count:] {
			w.stop.Store(true)
		}
		p.workers = p.workers[:count]
		p.cond.Broadcast()
	}
}

// Stop shuts the pool down and joins every worker ever spawned, including
// ones removed by earlier shrinks. With drain=true workers keep popping
// until the queue is naturally empty, so already-enqueued thunks always
// complete. With drain=false every worker is flagged to stop after its
// current thunk and the remaining queue is discarded, failing the discarded
// futures with ErrPoolStopped. Stop is idempotent; later calls just wait
// for teardown to finish.
func (p *Pool) Stop(drain bool) {
	p.mu.Lock()
	if p.stopped || p.done {
		p.mu.Unlock()
		p.wg.Wait()
		return
	}

	if drain {
		p.done = true
	} else {
		p.stopped = true
		for _, w := range p.workers {
			w.stop.Store(true)
		}
	}
	p.cond.Broadcast()
	p.mu.Unlock()

	if !drain {
		p.discardQueue()
	}

	p.wg.Wait()

	// Catch anything that raced past the submit-time check.
	p.discardQueue()

	p.mu.Lock()
	p.workers = nil
	p.mu.Unlock()
}

// Size returns the number of workers currently tracked by the pool.
// Observability only.
func (p *Pool) Size() int {
	p.mu.Lock()
	defer p.mu.Unlock()
	return len(p.workers)
}

// IdleCount returns the number of workers parked on the wait condition.
// Observability only.
func (p *Pool) IdleCount() int {
	p.mu.Lock()
	defer p.mu.Unlock()
	return p.idle
}

// QueueLen returns the number of thunks waiting in the queue.
func (p *Pool) QueueLen() int {
	return p.tasks.Len()
}

// spawnLocked starts one worker loop. Caller holds p.mu.
func (p *Pool) spawnLocked() {
	w := &worker{id: p.nextID, stop: new(atomic.Bool)}
	p.nextID++
	p.workers = append(p.workers, w)
	p.wg.Add(1)
	go p.work(w)
}

// work is the loop run by every worker goroutine: drain the queue, park on
// the wait condition, repeat. It exits when its own stop flag fires or the
// pool is draining and the queue is empty.
func (p *Pool) work(w *worker) {
	defer p.wg.Done()

	t, ok := p.tasks.Pop()
	for {
		for ok {
			t.run(w.id)
			p.metrics.Load().countExecuted()

			// Honor the stop flag even if the queue still has work.
			if w.stop.Load() {
				return
			}
			t, ok = p.tasks.Pop()
		}

		p.mu.Lock()
		p.idle++
		for {
			t, ok = p.tasks.Pop()
			if ok || p.done || w.stop.Load() {
				break
			}
			p.cond.Wait()
		}
		p.idle--
		p.mu.Unlock()

		if !ok {
			return
		}
	}
}

// discardQueue pops every remaining job and aborts it without running it.
func (p *Pool) discardQueue() {
	for {
		j, ok := p.tasks.Pop()
		if !ok {
			return
		}
		j.abort()
	}
}
