package frameio

import "github.com/edgeflow/lccstack/internal/canframe"

// Counter receives one notification per frame sent or received. It is
// satisfied by telemetry.Counters without this package depending on it.
type Counter interface {
	IncFramesSent()
	IncFramesReceived()
}

// CountingSink wraps a Sink and reports every Send/Receive to a
// Counter, so telemetry stays a thin decorator rather than something
// every transport implementation has to remember to call into itself.
type CountingSink struct {
	Sink
	counter Counter
}

// NewCountingSink wraps sink so every frame that passes through it is
// reported to counter.
func NewCountingSink(sink Sink, counter Counter) *CountingSink {
	return &CountingSink{Sink: sink, counter: counter}
}

// Send forwards to the wrapped Sink and counts the frame on success.
func (c *CountingSink) Send(f canframe.Frame) error {
	if err := c.Sink.Send(f); err != nil {
		return err
	}
	c.counter.IncFramesSent()
	return nil
}

// Receive forwards to the wrapped Sink and counts the frame on success.
func (c *CountingSink) Receive() (canframe.Frame, error) {
	f, err := c.Sink.Receive()
	if err != nil {
		return f, err
	}
	c.counter.IncFramesReceived()
	return f, nil
}
