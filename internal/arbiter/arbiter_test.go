package arbiter

import (
	"sync"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	"go.uber.org/zap"

	"github.com/edgeflow/lccstack/internal/canframe"
	"github.com/edgeflow/lccstack/internal/nodeid"
)

type fakeSink struct {
	mu     sync.Mutex
	frames []canframe.Frame
}

func (s *fakeSink) Send(f canframe.Frame) error {
	s.mu.Lock()
	defer s.mu.Unlock()
	s.frames = append(s.frames, f)
	return nil
}

func (s *fakeSink) snapshot() []canframe.Frame {
	s.mu.Lock()
	defer s.mu.Unlock()
	return append([]canframe.Frame(nil), s.frames...)
}

// immediateAfter replaces the arbiter's timer with synchronous inline
// execution so tests don't depend on wall-clock timing.
func immediateAfter(_ time.Duration, f func()) func() bool {
	f()
	return func() bool { return false }
}

func newTestArbiter(t *testing.T) (*AliasArbiter, *fakeSink) {
	t.Helper()
	sink := &fakeSink{}
	nid := nodeid.FromUint64(0x010200000101)
	a := New(zap.NewNop(), nid, sink, nil, nil)
	a.after = immediateAfter
	return a, sink
}

func TestStart_RunsFullSequenceToActive(t *testing.T) {
	var activated nodeid.Alias
	sink := &fakeSink{}
	nid := nodeid.FromUint64(0x010200000101)
	a := New(zap.NewNop(), nid, sink, func(alias nodeid.Alias) { activated = alias }, nil)
	a.after = immediateAfter

	require.NoError(t, a.Start())

	assert.Equal(t, StateActive, a.State())
	frames := sink.snapshot()
	require.Len(t, frames, 6) // CID1..4, RID, AMD

	assert.True(t, frames[0].IsCheckID1())
	assert.True(t, frames[1].IsCheckID2())
	assert.True(t, frames[2].IsCheckID3())
	assert.True(t, frames[3].IsCheckID4())
	assert.True(t, frames[4].IsReserveID())
	assert.True(t, frames[5].IsAliasMapDefinition())

	assert.Equal(t, a.Alias(), activated)
	for _, f := range frames {
		assert.Equal(t, a.Alias(), f.SourceAlias())
	}
}

func TestHandleFrame_CollisionDuringArbitrationRestarts(t *testing.T) {
	// Record scheduled steps instead of running them: we want to interrupt mid-sequence, which the
	// immediate/synchronous after() doesn't allow (Start would already be
	// StateActive by the time HandleFrame runs).
	sink := &fakeSink{}
	nid := nodeid.FromUint64(0x010200000101)
	var restarts int
	a := New(zap.NewNop(), nid, sink, nil, func() { restarts++ })

	var scheduled []func()
	var mu sync.Mutex
	a.after = func(_ time.Duration, f func()) func() bool {
		mu.Lock()
		scheduled = append(scheduled, f)
		mu.Unlock()
		return func() bool { return true }
	}

	require.NoError(t, a.Start())
	assert.Equal(t, StateCID1Sent, a.State())

	collidingFrame := buildFrameFromAlias(a.Alias())

	require.NoError(t, a.HandleFrame(collidingFrame))

	// Restart picks a (likely) different candidate and re-sends CID1;
	// state returns to CID1_SENT under the new epoch.
	assert.Equal(t, StateCID1Sent, a.State())

	frames := sink.snapshot()
	require.Len(t, frames, 2) // first CID1, then restarted CID1
	assert.True(t, frames[0].IsCheckID1())
	assert.True(t, frames[1].IsCheckID1())

	// The stale timer callback captured before the restart must be a
	// no-op against the new epoch.
	mu.Lock()
	stale := scheduled[0]
	mu.Unlock()
	stale()
	assert.Len(t, sink.snapshot(), 2)

	assert.Equal(t, 1, restarts)
}

func buildFrameFromAlias(alias nodeid.Alias) canframe.Frame {
	f, _ := canframe.BuildCheckID(2, nodeid.FromUint64(0xAAAAAAAAAAAA), alias)
	return f
}

func TestHandleFrame_IgnoresFramesFromOtherAliases(t *testing.T) {
	a, sink := newTestArbiter(t)
	require.NoError(t, a.Start())
	require.Equal(t, StateActive, a.State())

	other := buildFrameFromAlias(a.Alias() + 1)
	require.NoError(t, a.HandleFrame(other))
	assert.Equal(t, StateActive, a.State())
	assert.Len(t, sink.snapshot(), 6)
}

func TestHandleFrame_ActiveDefendsOnCheckID(t *testing.T) {
	a, sink := newTestArbiter(t)
	require.NoError(t, a.Start())
	mine := a.Alias()

	challenge := buildFrameFromAlias(mine)
	require.NoError(t, a.HandleFrame(challenge))

	frames := sink.snapshot()
	last := frames[len(frames)-1]
	assert.True(t, last.IsReserveID())
	assert.Equal(t, StateActive, a.State())
}

func TestHandleFrame_ActiveRelinquishesOnRID(t *testing.T) {
	sink := &fakeSink{}
	nid := nodeid.FromUint64(0x010200000101)
	var restarts int
	a := New(zap.NewNop(), nid, sink, nil, func() { restarts++ })
	a.after = immediateAfter
	require.NoError(t, a.Start())
	mine := a.Alias()
	before := len(sink.snapshot())

	claim := canframe.BuildReserveID(mine)
	require.NoError(t, a.HandleFrame(claim))

	frames := sink.snapshot()
	require.True(t, len(frames) > before)
	// AMR sent, then full arbitration ran again to ACTIVE.
	assert.Equal(t, StateActive, a.State())
	assert.Equal(t, 1, restarts)
}
