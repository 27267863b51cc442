// Package parallel provides the worker pool that runs decode tasks.
package parallel

import (
	"errors"
	"runtime"
	"sync"
	"sync/atomic"
)

// ErrClosed is returned by Submit after Close.
var ErrClosed = errors.New("parallel: executor closed")

// Executor is a pool of goroutines running independent tasks.
//
// Each worker has its own queue and steals from the others when idle, so a
// slow decode on one worker does not hold up tasks queued behind it.
//
// Thread safety: Executor is safe for concurrent use.
type Executor struct {
	// workers is the number of worker goroutines.
	workers int

	// queues holds per-worker task queues.
	queues []chan func()

	// done signals workers to stop.
	done chan struct{}

	// wg waits for all workers to finish.
	wg sync.WaitGroup

	// running indicates whether the executor is accepting work.
	running atomic.Bool

	// submitMu lets Close wait out in-flight Submit calls.
	submitMu sync.RWMutex

	// next rotates the starting queue for Submit.
	next atomic.Uint32
}

// NewExecutor creates an executor with the specified number of workers.
// If workers is 0 or negative, GOMAXPROCS is used.
// Workers start immediately.
func NewExecutor(workers int) *Executor {
	if workers <= 0 {
		workers = runtime.GOMAXPROCS(0)
	}

	// Buffer size: 2-4x workers helps hide latency
	queueSize := max(workers*4, 8)

	e := &Executor{
		workers: workers,
		queues:  make([]chan func(), workers),
		done:    make(chan struct{}),
	}
	for i := range workers {
		e.queues[i] = make(chan func(), queueSize)
	}
	e.running.Store(true)

	e.wg.Add(workers)
	for i := range workers {
		go e.worker(i)
	}
	return e
}

// worker is the main loop for each worker goroutine.
func (e *Executor) worker(id int) {
	defer e.wg.Done()

	own := e.queues[id]
	for {
		select {
		case <-e.done:
			e.drain(own)
			return

		case task := <-own:
			run(task)

		default:
			if stolen := e.steal(id); stolen != nil {
				run(stolen)
				continue
			}
			// Nothing anywhere, block on own queue
			select {
			case <-e.done:
				e.drain(own)
				return
			case task := <-own:
				run(task)
			}
		}
	}
}

func run(task func()) {
	if task != nil {
		task()
	}
}

// drain executes all remaining tasks in a queue.
func (e *Executor) drain(queue chan func()) {
	for {
		select {
		case task := <-queue:
			run(task)
		default:
			return
		}
	}
}

// steal attempts to take a task from another worker's queue.
func (e *Executor) steal(self int) func() {
	for i := range e.workers {
		if i == self {
			continue
		}
		select {
		case task := <-e.queues[i]:
			return task
		default:
		}
	}
	return nil
}

// Submit queues fn on the least loaded worker. It blocks while every queue
// is full and returns ErrClosed once Close has been called.
func (e *Executor) Submit(fn func()) error {
	if fn == nil {
		return nil
	}

	e.submitMu.RLock()
	defer e.submitMu.RUnlock()
	if !e.running.Load() {
		return ErrClosed
	}

	start := int(e.next.Add(1)) % e.workers
	target := start
	shortest := len(e.queues[start])
	for i := 1; i < e.workers; i++ {
		idx := (start + i) % e.workers
		if n := len(e.queues[idx]); n < shortest {
			shortest, target = n, idx
		}
	}

	select {
	case e.queues[target] <- fn:
		return nil
	case <-e.done:
		return ErrClosed
	}
}

// Close stops accepting work, runs everything already queued, and waits
// for the workers to exit. Close is safe to call multiple times.
func (e *Executor) Close() {
	if !e.running.CompareAndSwap(true, false) {
		return
	}

	// Wait out in-flight Submit calls while workers still consume.
	e.submitMu.Lock()
	e.submitMu.Unlock() //nolint:staticcheck // barrier only

	close(e.done)
	e.wg.Wait()
}

// Workers returns the number of workers.
func (e *Executor) Workers() int {
	return e.workers
}

// Queued returns the number of tasks waiting in queues.
// This is an approximation as queues can change while iterating.
func (e *Executor) Queued() int {
	total := 0
	for _, q := range e.queues {
		total += len(q)
	}
	return total
}
