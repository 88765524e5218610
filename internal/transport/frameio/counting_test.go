package frameio

import (
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/edgeflow/lccstack/internal/canframe"
)

type fakeCounter struct {
	sent, received int
}

func (c *fakeCounter) IncFramesSent()     { c.sent++ }
func (c *fakeCounter) IncFramesReceived() { c.received++ }

func TestCountingSink_CountsSendAndReceive(t *testing.T) {
	inner := NewLoopback()
	counter := &fakeCounter{}
	sink := NewCountingSink(inner, counter)

	f := canframe.New(0x19100333, []byte{1, 2, 3})
	require.NoError(t, sink.Send(f))
	assert.Equal(t, 1, counter.sent)

	got, err := sink.Receive()
	require.NoError(t, err)
	assert.Equal(t, f, got)
	assert.Equal(t, 1, counter.received)
}

func TestCountingSink_DoesNotCountFailedSend(t *testing.T) {
	inner := NewLoopback()
	require.NoError(t, inner.Close())
	counter := &fakeCounter{}
	sink := NewCountingSink(inner, counter)

	err := sink.Send(canframe.New(0, nil))
	assert.Error(t, err)
	assert.Equal(t, 0, counter.sent)
}
