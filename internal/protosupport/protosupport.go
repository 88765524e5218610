// Package protosupport encodes the fixed protocol-support bitmask this
// node returns in reply to a ProtocolSupportInquiry.
package protosupport

// Bit positions within the protocol-support bitmask, high bit first, as
// laid out on the wire by the protocol identification reply body.
const (
	SimpleNodeIdentProtocol = 1 << 23
	Datagram                = 1 << 22
	EventExchange           = 1 << 21
)

// Supported is this node's fixed capability set: it always speaks the
// Simple Node Ident protocol, Datagram transport, and Event Exchange,
// and nothing else (no Stream, no CDI, no Configuration Update).
const Supported = SimpleNodeIdentProtocol | Datagram | EventExchange

// Encode renders the support bitmask as its 3-byte big-endian wire form.
func Encode() []byte {
	return []byte{
		byte(Supported >> 16),
		byte(Supported >> 8),
		byte(Supported),
	}
}
