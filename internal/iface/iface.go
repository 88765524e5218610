// Package iface implements the Interface dispatcher: the single
// logical-ownership-thread boundary between the wire (frame sink,
// AliasMap, MessageBuilder, AliasArbiter) and upper-layer message
// handlers.
package iface

import (
	"errors"
	"sync"
	"sync/atomic"
	"time"

	"go.uber.org/zap"

	"github.com/edgeflow/lccstack/internal/aliasmap"
	"github.com/edgeflow/lccstack/internal/arbiter"
	"github.com/edgeflow/lccstack/internal/builder"
	"github.com/edgeflow/lccstack/internal/canframe"
	"github.com/edgeflow/lccstack/internal/executor"
	"github.com/edgeflow/lccstack/internal/lccmsg"
	"github.com/edgeflow/lccstack/internal/nodeid"
	"github.com/edgeflow/lccstack/internal/protosupport"
	"github.com/edgeflow/lccstack/internal/snip"
	"github.com/edgeflow/lccstack/internal/transport/frameio"
)

// defaultDatagramTimeout bounds how long a sent Datagram waits for a
// DatagramAcknowledged/DatagramRejected reply before this core gives up
// on it. There is no retry — a timed-out datagram is simply surfaced to
// the caller via OnDatagramTimeout.
const defaultDatagramTimeout = 3 * time.Second

// ErrDisposed is returned by any operation issued after Dispose.
var ErrDisposed = errors.New("iface: disposed")

// Handler is invoked for each inbound Message whose Predicate matches.
type Handler func(msg lccmsg.Message)

// Predicate selects which inbound messages a Handler receives.
type Predicate func(msg lccmsg.Message) bool

type registration struct {
	predicate Predicate
	handler   Handler
}

// Interface is a single OpenLCB node's dispatcher: it owns one
// AliasArbiter, one MessageBuilder, one outbound frame sink, and the
// executor that serializes everything onto one logical thread.
type Interface struct {
	log      *zap.Logger
	localNID nodeid.NodeID
	aliases  *aliasmap.AliasMap
	msgs     *builder.MessageBuilder
	arb      *arbiter.AliasArbiter
	sink     frameio.Sink
	exec     executor.Executor

	handlersMu sync.Mutex
	handlers   []registration // copy-on-write

	sendMu sync.Mutex
	sendQ  []lccmsg.Message

	snip              snip.Info
	datagramTimeout   time.Duration
	onDatagramTimeout func(dest nodeid.NodeID)

	pendingMu sync.Mutex
	pending   map[nodeid.NodeID]*time.Timer

	disposed atomic.Bool
}

// Config bundles the collaborators an Interface is built from.
type Config struct {
	Log      *zap.Logger
	LocalNID nodeid.NodeID
	AliasMap *aliasmap.AliasMap
	Builder  *builder.MessageBuilder
	Arbiter  *arbiter.AliasArbiter
	Sink     frameio.Sink
	Executor executor.Executor

	// SNIP describes this node for SimpleNodeIdentInfoRequest replies.
	// The zero value still replies, with empty identification strings.
	SNIP snip.Info

	// DatagramTimeout bounds how long a sent Datagram waits for an
	// acknowledgement before OnDatagramTimeout fires. Zero uses
	// defaultDatagramTimeout.
	DatagramTimeout time.Duration

	// OnDatagramTimeout, if set, is called (off the executor's thread,
	// from a timer goroutine) when a sent Datagram's ack/reject never
	// arrives in time.
	OnDatagramTimeout func(dest nodeid.NodeID)
}

// New constructs an Interface from cfg. Callers are expected to start
// arbitration separately (arb.Start()) before relying on OutputConnection
// to succeed.
func New(cfg Config) *Interface {
	log := cfg.Log
	if log == nil {
		log = zap.NewNop()
	}
	timeout := cfg.DatagramTimeout
	if timeout <= 0 {
		timeout = defaultDatagramTimeout
	}
	i := &Interface{
		log:               log,
		localNID:          cfg.LocalNID,
		aliases:           cfg.AliasMap,
		msgs:              cfg.Builder,
		arb:               cfg.Arbiter,
		sink:              cfg.Sink,
		exec:              cfg.Executor,
		snip:              cfg.SNIP,
		datagramTimeout:   timeout,
		onDatagramTimeout: cfg.OnDatagramTimeout,
		pending:           make(map[nodeid.NodeID]*time.Timer),
	}
	i.registerBuiltins()
	return i
}

// registerBuiltins wires the two always-on protocol replies this node
// answers without upper-layer involvement: node identification and
// protocol capability inquiry.
func (i *Interface) registerBuiltins() {
	i.RegisterHandler(
		func(msg lccmsg.Message) bool { return msg.Kind == lccmsg.KindSimpleNodeIdentInfoRequest },
		func(msg lccmsg.Message) {
			reply := lccmsg.Message{
				Kind:   lccmsg.KindSimpleNodeIdentInfoReply,
				Source: i.localNID,
				Dest:   msg.Source,
				Data:   i.snip.Encode(),
			}
			if err := i.OutputConnection(reply); err != nil {
				i.log.Warn("iface: failed to send SNIP reply", zap.Error(err))
			}
		},
	)

	i.RegisterHandler(
		func(msg lccmsg.Message) bool { return msg.Kind == lccmsg.KindProtocolSupportInquiry },
		func(msg lccmsg.Message) {
			reply := lccmsg.Message{
				Kind:   lccmsg.KindProtocolSupportReply,
				Source: i.localNID,
				Dest:   msg.Source,
				Data:   protosupport.Encode(),
			}
			if err := i.OutputConnection(reply); err != nil {
				i.log.Warn("iface: failed to send protocol support reply", zap.Error(err))
			}
		},
	)

	i.RegisterHandler(
		func(msg lccmsg.Message) bool {
			return msg.Kind == lccmsg.KindDatagramAcknowledged || msg.Kind == lccmsg.KindDatagramRejected
		},
		func(msg lccmsg.Message) { i.resolveDatagram(msg.Source) },
	)
}

// RegisterHandler adds handler to the registry for every inbound message
// matching predicate. Uses copy-on-write so dispatch in flight never
// blocks on registration.
func (i *Interface) RegisterHandler(predicate Predicate, handler Handler) {
	i.handlersMu.Lock()
	defer i.handlersMu.Unlock()
	next := make([]registration, len(i.handlers), len(i.handlers)+1)
	copy(next, i.handlers)
	i.handlers = append(next, registration{predicate: predicate, handler: handler})
}

func (i *Interface) snapshotHandlers() []registration {
	i.handlersMu.Lock()
	defer i.handlersMu.Unlock()
	return i.handlers
}

// OutputConnection accepts a Message from an upper layer. A message
// addressed to the local NodeID loops back directly to inbound handlers
// and never touches the frame sink. A source or destination NodeID with
// no resolved alias is reported to the caller as
// builder.ErrUnknownSourceAlias / builder.ErrUnknownDestinationAlias and
// the message is not enqueued. Otherwise it is enqueued and serialized
// onto the executor's single thread in submission order.
func (i *Interface) OutputConnection(msg lccmsg.Message) error {
	if i.disposed.Load() {
		return ErrDisposed
	}

	if msg.Addressed() && msg.Dest == i.localNID {
		i.deliverInbound(msg)
		return nil
	}

	if i.aliases.GetAlias(msg.Source) == nodeid.NoAlias {
		return builder.ErrUnknownSourceAlias
	}
	if msg.Addressed() && i.aliases.GetAlias(msg.Dest) == nodeid.NoAlias {
		return builder.ErrUnknownDestinationAlias
	}

	i.sendMu.Lock()
	i.sendQ = append(i.sendQ, msg)
	i.sendMu.Unlock()

	return i.exec.Schedule(func() { i.drainOne() })
}

// FlushSendQueue drains any buffered outbound messages synchronously,
// bypassing the executor — intended for tests that want to observe
// emission immediately after the call returns.
func (i *Interface) FlushSendQueue() error {
	for {
		msg, ok := i.popSend()
		if !ok {
			return nil
		}
		if err := i.emit(msg); err != nil {
			return err
		}
	}
}

func (i *Interface) drainOne() {
	msg, ok := i.popSend()
	if !ok {
		return
	}
	if err := i.emit(msg); err != nil {
		i.log.Warn("iface: failed to emit outbound message", zap.Error(err))
	}
}

func (i *Interface) popSend() (lccmsg.Message, bool) {
	i.sendMu.Lock()
	defer i.sendMu.Unlock()
	if len(i.sendQ) == 0 {
		return lccmsg.Message{}, false
	}
	msg := i.sendQ[0]
	i.sendQ = i.sendQ[1:]
	return msg, true
}

func (i *Interface) emit(msg lccmsg.Message) error {
	frames, err := i.msgs.ProcessMessage(msg)
	if err != nil {
		return err
	}
	for _, f := range frames {
		if err := i.sink.Send(f); err != nil {
			return err
		}
	}
	if msg.Kind == lccmsg.KindDatagram {
		i.trackDatagram(msg.Dest)
	}
	return nil
}

// trackDatagram arms a single-shot timeout for a Datagram just sent to
// dest. Only one outstanding datagram per destination is tracked — a
// second send to the same destination replaces the first's timer,
// matching this node's single-in-flight-datagram-per-peer usage.
func (i *Interface) trackDatagram(dest nodeid.NodeID) {
	timer := time.AfterFunc(i.datagramTimeout, func() {
		i.pendingMu.Lock()
		_, stillPending := i.pending[dest]
		delete(i.pending, dest)
		i.pendingMu.Unlock()
		if stillPending && i.onDatagramTimeout != nil {
			i.onDatagramTimeout(dest)
		}
	})

	i.pendingMu.Lock()
	if prior, ok := i.pending[dest]; ok {
		prior.Stop()
	}
	i.pending[dest] = timer
	i.pendingMu.Unlock()
}

// resolveDatagram cancels the pending timeout for a datagram sent to
// source, in response to its DatagramAcknowledged/DatagramRejected.
func (i *Interface) resolveDatagram(source nodeid.NodeID) {
	i.pendingMu.Lock()
	defer i.pendingMu.Unlock()
	if timer, ok := i.pending[source]; ok {
		timer.Stop()
		delete(i.pending, source)
	}
}

// HandleInboundFrame is the entry point for frames arriving from the I/O
// side. It feeds the arbiter and AliasMap first (frame-plane), then the
// MessageBuilder (message-plane), then dispatches any synthesized
// Messages to matching handlers — all on the caller's goroutine, which in
// production is the executor's single worker.
func (i *Interface) HandleInboundFrame(f canframe.Frame) error {
	if i.disposed.Load() {
		return ErrDisposed
	}

	if i.arb != nil {
		if err := i.arb.HandleFrame(f); err != nil {
			return err
		}
	}
	i.aliases.ProcessFrame(f)

	msgs, ok := i.msgs.ProcessFrame(f)
	if !ok {
		return nil
	}
	for _, msg := range msgs {
		i.deliverInbound(msg)
	}
	return nil
}

func (i *Interface) deliverInbound(msg lccmsg.Message) {
	for _, reg := range i.snapshotHandlers() {
		if reg.predicate == nil || reg.predicate(msg) {
			reg.handler(msg)
		}
	}
}

// Dispose drains the executor (completing any in-flight task) and
// releases the frame sink. Idempotent; operations after Dispose return
// ErrDisposed.
func (i *Interface) Dispose() error {
	if !i.disposed.CompareAndSwap(false, true) {
		return nil
	}
	i.pendingMu.Lock()
	for dest, timer := range i.pending {
		timer.Stop()
		delete(i.pending, dest)
	}
	i.pendingMu.Unlock()
	if err := i.exec.Close(); err != nil {
		return err
	}
	return i.sink.Close()
}
