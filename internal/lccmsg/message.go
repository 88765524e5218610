package lccmsg

import (
	"github.com/edgeflow/lccstack/internal/mti"
	"github.com/edgeflow/lccstack/internal/nodeid"
)

// Message is the single tagged-variant type for every OpenLCB message kind.
// Every message carries a source NodeID; addressed kinds additionally carry
// a destination; event-carrying kinds carry an EventID; datagram/stream
// kinds carry an opaque Data payload.
type Message struct {
	Kind Kind

	Source nodeid.NodeID
	Dest   nodeid.NodeID // valid iff Kind.MTI().IsAddressed()
	Event  nodeid.EventID

	// Query carries the optional "NodeID in question" payload of
	// VerifyNodeIDGlobal. Zero means "all nodes". The builder neither
	// encodes nor decodes it for VerifyNodeIDAddressed.
	Query nodeid.NodeID

	// Data is the opaque payload for Datagram/Stream/SNIP/ProtocolSupportReply
	// and KindAddressedGeneric messages.
	Data []byte
}

// MTI returns the message's wire MTI, derived from its Kind.
func (m Message) MTI() mti.MTI { return m.Kind.MTI() }

// Addressed reports whether m carries a destination alias on the wire.
// Derived from the MTI, not the Kind directly.
func (m Message) Addressed() bool { return m.MTI().IsAddressed() }

// CarriesEvent reports whether m's first 8 payload bytes are an EventID.
func (m Message) CarriesEvent() bool { return m.MTI().CarriesEvent() }

// NewInitializationComplete builds the self-announcement a node sends once
// its alias has been reserved.
func NewInitializationComplete(source nodeid.NodeID) Message {
	return Message{Kind: KindInitializationComplete, Source: source}
}

// NewVerifiedNodeID builds the reply a node sends to confirm its identity.
func NewVerifiedNodeID(source nodeid.NodeID) Message {
	return Message{Kind: KindVerifiedNodeID, Source: source}
}

// NewVerifyNodeIDGlobal builds a global identity-verification request.
// query may be nodeid.Zero to mean "every node should respond".
func NewVerifyNodeIDGlobal(source, query nodeid.NodeID) Message {
	return Message{Kind: KindVerifyNodeIDGlobal, Source: source, Query: query}
}

// NewProducerConsumerEventReport builds an event production report.
func NewProducerConsumerEventReport(source nodeid.NodeID, event nodeid.EventID) Message {
	return Message{Kind: KindProducerConsumerEventReport, Source: source, Event: event}
}

// NewDatagram builds an addressed datagram carrying an opaque payload.
func NewDatagram(source, dest nodeid.NodeID, data []byte) Message {
	return Message{Kind: KindDatagram, Source: source, Dest: dest, Data: append([]byte(nil), data...)}
}
