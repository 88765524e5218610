// Package executor provides the pluggable scheduling surface every
// interface uses to guarantee a single logical ownership thread: all
// inbound parsing, handler dispatch, outbound serialization, and
// frame-driven arbitration transitions for one interface run through its
// Executor, even though frames may arrive on a separate I/O goroutine. The
// arbiter's timed CID/RID steps fire on their own timer goroutines.
package executor

import (
	"errors"
	"sync"

	"github.com/sourcegraph/conc"
)

// ErrClosed is returned by Schedule after Close has been called.
var ErrClosed = errors.New("executor: closed")

// Executor is the capability object interfaces schedule work through. Two
// variants are provided: Pool (production, asynchronous) and Inline (test
// mode, synchronous).
type Executor interface {
	// Schedule enqueues task for execution on the executor's owning
	// thread. Submission itself never blocks the caller.
	Schedule(task func()) error
	// Close drains any queued tasks to completion, then releases the
	// executor. Idempotent.
	Close() error
}

// Pool is the asynchronous executor variant: one supervised worker
// goroutine drains an unbounded FIFO queue. Tasks submitted from any
// goroutine are guaranteed to run in submission order on the same worker,
// giving every interface the single-ownership-thread guarantee the core
// requires. The worker is wrapped in a conc.WaitGroup so a panicking task
// is caught and re-raised from Close rather than crashing the process.
type Pool struct {
	mu     sync.Mutex
	queue  []func()
	notify chan struct{}
	closed bool
	done   chan struct{}
	wg     conc.WaitGroup
}

// NewPool starts a Pool's worker goroutine and returns it ready to accept
// Schedule calls.
func NewPool() *Pool {
	p := &Pool{
		notify: make(chan struct{}, 1),
		done:   make(chan struct{}),
	}
	p.wg.Go(p.run)
	return p
}

func (p *Pool) run() {
	defer close(p.done)
	for {
		task, ok := p.pop()
		if ok {
			task()
			continue
		}
		if p.isClosed() {
			return
		}
		<-p.notify
	}
}

func (p *Pool) pop() (func(), bool) {
	p.mu.Lock()
	defer p.mu.Unlock()
	if len(p.queue) == 0 {
		return nil, false
	}
	task := p.queue[0]
	p.queue = p.queue[1:]
	return task, true
}

func (p *Pool) isClosed() bool {
	p.mu.Lock()
	defer p.mu.Unlock()
	return p.closed
}

// Schedule enqueues task without blocking the caller.
func (p *Pool) Schedule(task func()) error {
	p.mu.Lock()
	if p.closed {
		p.mu.Unlock()
		return ErrClosed
	}
	p.queue = append(p.queue, task)
	p.mu.Unlock()

	select {
	case p.notify <- struct{}{}:
	default:
	}
	return nil
}

// Close signals the worker to drain the remaining queue and exit, then
// waits for it. A panic from a queued task surfaces here.
func (p *Pool) Close() error {
	p.mu.Lock()
	if p.closed {
		p.mu.Unlock()
		return nil
	}
	p.closed = true
	p.mu.Unlock()

	select {
	case p.notify <- struct{}{}:
	default:
	}

	p.wg.Wait()
	return nil
}

// Inline is the synchronous test-mode executor: Schedule runs task to
// completion on the caller's goroutine before returning, making test
// assertions deterministic without any timing dependency.
type Inline struct {
	mu     sync.Mutex
	closed bool
}

// NewInline constructs a ready-to-use synchronous executor.
func NewInline() *Inline { return &Inline{} }

// Schedule runs task immediately, synchronously.
func (e *Inline) Schedule(task func()) error {
	e.mu.Lock()
	if e.closed {
		e.mu.Unlock()
		return ErrClosed
	}
	e.mu.Unlock()
	task()
	return nil
}

// Close marks the executor closed. Idempotent.
func (e *Inline) Close() error {
	e.mu.Lock()
	defer e.mu.Unlock()
	e.closed = true
	return nil
}
