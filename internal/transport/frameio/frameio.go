// Package frameio defines the FrameSink contract at the bottom of the
// core: the boundary every transport (serial GridConnect, SPI-attached
// CAN controller, or an in-memory loopback for tests) implements.
package frameio

import (
	"errors"
	"sync"

	"github.com/edgeflow/lccstack/internal/canframe"
)

// ErrClosed is returned by Send/Receive after Close.
var ErrClosed = errors.New("frameio: closed")

// Sink is the transport-facing boundary of an interface. Send is
// non-blocking from the caller's point of view (it may buffer
// internally); Receive blocks until a frame arrives or the sink closes;
// Close is idempotent.
type Sink interface {
	Send(f canframe.Frame) error
	Receive() (canframe.Frame, error)
	Close() error
}

// Loopback is an in-memory Sink pairing Send with Receive through an
// unbounded queue, for tests where no real wire exists.
type Loopback struct {
	mu     sync.Mutex
	cond   *sync.Cond
	queue  []canframe.Frame
	closed bool
}

// NewLoopback constructs a ready-to-use in-memory Sink.
func NewLoopback() *Loopback {
	l := &Loopback{}
	l.cond = sync.NewCond(&l.mu)
	return l
}

// Send appends f to the queue and wakes any blocked Receive.
func (l *Loopback) Send(f canframe.Frame) error {
	l.mu.Lock()
	defer l.mu.Unlock()
	if l.closed {
		return ErrClosed
	}
	l.queue = append(l.queue, f)
	l.cond.Signal()
	return nil
}

// Receive blocks until a frame is available or the sink is closed.
func (l *Loopback) Receive() (canframe.Frame, error) {
	l.mu.Lock()
	defer l.mu.Unlock()
	for len(l.queue) == 0 && !l.closed {
		l.cond.Wait()
	}
	if len(l.queue) == 0 {
		return canframe.Frame{}, ErrClosed
	}
	f := l.queue[0]
	l.queue = l.queue[1:]
	return f, nil
}

// Close marks the sink closed and wakes any blocked Receive. Idempotent.
func (l *Loopback) Close() error {
	l.mu.Lock()
	defer l.mu.Unlock()
	if l.closed {
		return nil
	}
	l.closed = true
	l.cond.Broadcast()
	return nil
}
