package telemetry

import (
	"strings"
	"testing"

	"github.com/stretchr/testify/assert"
)

func TestCounters_IncrementsAreIndependent(t *testing.T) {
	c := New()
	c.IncFramesSent()
	c.IncFramesSent()
	c.IncFramesReceived()
	c.IncMessagesDispatched()
	c.IncArbitrationRestarts()
	c.IncDatagramTimeouts()

	snap := c.Snapshot()
	assert.EqualValues(t, 2, snap.FramesSent)
	assert.EqualValues(t, 1, snap.FramesReceived)
	assert.EqualValues(t, 1, snap.MessagesDispatched)
	assert.EqualValues(t, 1, snap.ArbitrationRestarts)
	assert.EqualValues(t, 1, snap.DatagramTimeouts)
}

func TestSnapshot_PrometheusFormatContainsAllCounters(t *testing.T) {
	c := New()
	c.IncFramesSent()
	out := c.Snapshot().Prometheus()

	for _, want := range []string{
		"lccnode_frames_sent_total 1",
		"lccnode_frames_received_total 0",
		"lccnode_messages_dispatched_total 0",
		"lccnode_arbitration_restarts_total 0",
		"lccnode_datagram_timeouts_total 0",
		"lccnode_uptime_seconds",
	} {
		assert.True(t, strings.Contains(out, want), "missing %q in:\n%s", want, out)
	}
}
