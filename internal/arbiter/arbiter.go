// Package arbiter implements AliasArbiter, the state machine that
// acquires one CAN-segment-local alias for a node's NodeID: CID1..CID4,
// a quiet period, RID, and an AMD announcement. The arbiter is isolated
// from message-plane logic — it only ever sees and emits CAN frames.
//
// Arbitration is driven by timers rather than blocking sleeps: Start
// returns immediately after sending CID1, and each subsequent step fires
// from a timer callback. This keeps the interface's single executor
// thread free to observe collisions (via HandleFrame) for the whole
// ~200ms+ arbitration window instead of stalling behind it.
package arbiter

import (
	"math/rand"
	"sync"
	"time"

	"go.uber.org/zap"

	"github.com/edgeflow/lccstack/internal/canframe"
	"github.com/edgeflow/lccstack/internal/nodeid"
)

// State names a position in the arbitration state machine.
type State int

const (
	StateInitial State = iota
	StateCID1Sent
	StateCID2Sent
	StateCID3Sent
	StateCID4Sent
	StateRIDSent
	StateActive
)

func (s State) String() string {
	switch s {
	case StateInitial:
		return "INITIAL"
	case StateCID1Sent:
		return "CID1_SENT"
	case StateCID2Sent:
		return "CID2_SENT"
	case StateCID3Sent:
		return "CID3_SENT"
	case StateCID4Sent:
		return "CID4_SENT"
	case StateRIDSent:
		return "RID_SENT"
	case StateActive:
		return "ACTIVE"
	default:
		return "UNKNOWN"
	}
}

// interCIDGap is the minimum spacing between successive CID frames.
const interCIDGap = 250 * time.Microsecond

// quietPeriod is the minimum silence required after CID4 before RID is
// sent.
const quietPeriod = 200 * time.Millisecond

// FrameSink is the minimal outbound capability the arbiter needs: it
// never reads from a sink, only writes arbitration frames to one.
type FrameSink interface {
	Send(f canframe.Frame) error
}

// ActiveNotifier is called once, when the arbiter reaches StateActive
// with its final alias — the interface uses this to start sending
// InitializationComplete and unblock the outbound path. It fires on the
// first successful arbitration too, not only after a collision.
type ActiveNotifier func(alias nodeid.Alias)

// RestartNotifier is called each time a collision forces arbitration to
// restart with a fresh candidate alias — either mid-sequence (observed in
// HandleFrame before StateActive) or via relinquishAndRestart after losing
// an already-active alias. It is never called for the initial Start().
type RestartNotifier func()

// AliasArbiter drives alias acquisition for a single NodeID on a single
// CAN segment. HandleFrame and Start are expected to be invoked only from
// the owning interface's single executor thread; the arbiter itself does
// no internal synchronization against concurrent callers of those two
// methods (only against its own timer callbacks).
type AliasArbiter struct {
	log       *zap.Logger
	nodeID    nodeid.NodeID
	sink      FrameSink
	onActive  ActiveNotifier
	onRestart RestartNotifier
	rng       *rand.Rand
	after     func(d time.Duration, f func()) func() bool

	mu        sync.Mutex
	state     State
	candidate nodeid.Alias
	epoch     int
}

// New constructs an arbiter for nodeID, emitting frames to sink. onActive
// and onRestart (both optional) are invoked on arbitration success and on
// each collision-triggered restart respectively.
func New(log *zap.Logger, nodeID nodeid.NodeID, sink FrameSink, onActive ActiveNotifier, onRestart RestartNotifier) *AliasArbiter {
	if log == nil {
		log = zap.NewNop()
	}
	return &AliasArbiter{
		log:       log,
		nodeID:    nodeID,
		sink:      sink,
		onActive:  onActive,
		onRestart: onRestart,
		rng:       rand.New(rand.NewSource(int64(nodeID.Uint64()))),
		after:     realAfter,
	}
}

// realAfter schedules f to run after d via time.AfterFunc, returning a
// Stop closure.
func realAfter(d time.Duration, f func()) func() bool {
	t := time.AfterFunc(d, f)
	return t.Stop
}

// State returns the arbiter's current state.
func (a *AliasArbiter) State() State {
	a.mu.Lock()
	defer a.mu.Unlock()
	return a.state
}

// Alias returns the arbiter's current candidate/active alias.
func (a *AliasArbiter) Alias() nodeid.Alias {
	a.mu.Lock()
	defer a.mu.Unlock()
	return a.candidate
}

// nextCandidate picks a pseudo-random 12-bit alias avoiding the reserved
// 0x000/0xFFF values and the previous candidate. Caller must hold a.mu.
func (a *AliasArbiter) nextCandidate() nodeid.Alias {
	for {
		v := nodeid.Alias(a.rng.Intn(0x1000))
		if v != 0x000 && v != 0xFFF && v != a.candidate {
			return v
		}
	}
}

// Start begins (or restarts) arbitration: sends CID1 immediately, then
// schedules CID2..CID4, the quiet period, and RID/AMD via timers. Returns
// after CID1 has been sent.
func (a *AliasArbiter) Start() error {
	a.mu.Lock()
	a.epoch++
	epoch := a.epoch
	a.candidate = a.nextCandidate()
	a.state = StateInitial
	a.mu.Unlock()

	return a.sendStep(epoch, 1)
}

// sendStep sends the CID frame for step (1..4) if epoch is still current,
// then schedules the next step.
func (a *AliasArbiter) sendStep(epoch, step int) error {
	a.mu.Lock()
	if a.epoch != epoch {
		a.mu.Unlock()
		return nil
	}
	candidate := a.candidate
	a.mu.Unlock()

	f, err := canframe.BuildCheckID(step, a.nodeID, candidate)
	if err != nil {
		return err
	}
	if err := a.sink.Send(f); err != nil {
		return err
	}

	a.mu.Lock()
	if a.epoch != epoch {
		a.mu.Unlock()
		return nil
	}
	a.state = cidState(step)
	a.mu.Unlock()

	if step < 4 {
		a.after(interCIDGap, func() { _ = a.sendStep(epoch, step+1) })
		return nil
	}
	a.after(quietPeriod, func() { _ = a.sendReserveAndActivate(epoch) })
	return nil
}

func cidState(step int) State {
	switch step {
	case 1:
		return StateCID1Sent
	case 2:
		return StateCID2Sent
	case 3:
		return StateCID3Sent
	default:
		return StateCID4Sent
	}
}

func (a *AliasArbiter) sendReserveAndActivate(epoch int) error {
	a.mu.Lock()
	if a.epoch != epoch {
		a.mu.Unlock()
		return nil
	}
	candidate := a.candidate
	a.state = StateRIDSent
	a.mu.Unlock()

	if err := a.sink.Send(canframe.BuildReserveID(candidate)); err != nil {
		return err
	}
	if err := a.sink.Send(canframe.BuildAliasMapDefinition(candidate, a.nodeID)); err != nil {
		return err
	}

	a.mu.Lock()
	if a.epoch != epoch {
		a.mu.Unlock()
		return nil
	}
	a.state = StateActive
	a.mu.Unlock()

	if a.onActive != nil {
		a.onActive(candidate)
	}
	return nil
}

// HandleFrame observes an inbound CAN frame. Pre-ACTIVE, any frame whose
// source alias equals our candidate restarts arbitration with a fresh
// candidate (invalidating any timers from the current round). In ACTIVE,
// a CID* frame targeting our alias triggers a defending RID; an RID or
// AMD claiming our alias forces relinquish and re-arbitration.
func (a *AliasArbiter) HandleFrame(f canframe.Frame) error {
	a.mu.Lock()
	state := a.state
	mine := a.candidate
	a.mu.Unlock()

	if f.SourceAlias() != mine {
		return nil
	}

	switch state {
	case StateActive:
		switch {
		case f.IsAnyCheckID():
			return a.sink.Send(canframe.BuildReserveID(mine))
		case f.IsReserveID(), f.IsAliasMapDefinition():
			return a.relinquishAndRestart()
		}
		return nil
	case StateInitial:
		return nil
	default:
		a.log.Info("arbiter: collision observed, restarting", zap.String("state", state.String()))
		if a.onRestart != nil {
			a.onRestart()
		}
		return a.Start()
	}
}

func (a *AliasArbiter) relinquishAndRestart() error {
	a.mu.Lock()
	mine := a.candidate
	a.mu.Unlock()

	if err := a.sink.Send(canframe.BuildAliasMapReset(mine, a.nodeID)); err != nil {
		return err
	}
	if a.onRestart != nil {
		a.onRestart()
	}
	return a.Start()
}
