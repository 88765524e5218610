// Package canframe implements the 29-bit CAN frame container used to carry
// OpenLCB messages and CAN control frames, plus the classification
// predicates that distinguish one kind of frame from another by header bits
// alone.
package canframe

import (
	"fmt"

	"github.com/edgeflow/lccstack/internal/mti"
	"github.com/edgeflow/lccstack/internal/nodeid"
)

// Frame is a single CAN frame: a 29-bit identifier plus a 0-8 byte payload.
// Only the low 29 bits of Header are significant.
type Frame struct {
	Header uint32
	Len    uint8
	Data   [8]byte
}

const (
	headerMask       = 0x1FFFFFFF
	reservedBit      = 1 << 28
	frameTypeBit     = 1 << 27
	variableFieldShift = 12
	variableFieldMask = 0x7FFF
	sourceAliasMask  = 0xFFF
)

// New builds a Frame from a header and payload, truncating the payload to
// 8 bytes.
func New(header uint32, payload []byte) Frame {
	var f Frame
	f.Header = header & headerMask
	if len(payload) > 8 {
		payload = payload[:8]
	}
	f.Len = uint8(len(payload))
	copy(f.Data[:], payload)
	return f
}

// Payload returns the frame's data bytes (length Len).
func (f Frame) Payload() []byte {
	return append([]byte(nil), f.Data[:f.Len]...)
}

// SourceAlias returns the 12-bit source alias encoded in the header.
func (f Frame) SourceAlias() nodeid.Alias {
	return nodeid.Alias(f.Header & sourceAliasMask)
}

// VariableField returns the 15-bit variable field.
func (f Frame) VariableField() uint16 {
	return uint16((f.Header >> variableFieldShift) & variableFieldMask)
}

// IsMessageFrame reports whether this is an OpenLCB-message frame (as
// opposed to a CAN control frame: CID*/RID/AME). AMD and AMR are built as
// message frames.
func (f Frame) IsMessageFrame() bool {
	return f.Header&frameTypeBit != 0
}

// MTI extracts the MTI from an OpenLCB-message frame's variable field. Only
// meaningful when IsMessageFrame() is true.
func (f Frame) MTI() mti.MTI {
	return mti.FromVariableField(f.VariableField())
}

// BuildMessageHeader constructs a header for an OpenLCB-message frame.
func BuildMessageHeader(m mti.MTI, source nodeid.Alias) uint32 {
	return reservedBit | frameTypeBit | (uint32(m.VariableField()) << variableFieldShift) | uint32(source&sourceAliasMask)
}

// --- Alias-management frames: CID1-4, RID, AME (control frames); AMD, AMR (message frames) ---

// controlCode occupies the top 3 bits of the 15-bit variable field on a
// control frame (IsMessageFrame() == false).
type controlCode uint16

const (
	codeAME  controlCode = 2
	codeRID  controlCode = 3
	codeCID4 controlCode = 4
	codeCID3 controlCode = 5
	codeCID2 controlCode = 6
	codeCID1 controlCode = 7
)

func (f Frame) controlCode() controlCode {
	return controlCode((f.VariableField() >> 12) & 0x7)
}

// IsCheckID1 reports whether f is a CID1 arbitration frame.
func (f Frame) IsCheckID1() bool { return !f.IsMessageFrame() && f.controlCode() == codeCID1 }

// IsCheckID2 reports whether f is a CID2 arbitration frame.
func (f Frame) IsCheckID2() bool { return !f.IsMessageFrame() && f.controlCode() == codeCID2 }

// IsCheckID3 reports whether f is a CID3 arbitration frame.
func (f Frame) IsCheckID3() bool { return !f.IsMessageFrame() && f.controlCode() == codeCID3 }

// IsCheckID4 reports whether f is a CID4 arbitration frame.
func (f Frame) IsCheckID4() bool { return !f.IsMessageFrame() && f.controlCode() == codeCID4 }

// IsAnyCheckID reports whether f is any CID1..CID4 arbitration frame.
func (f Frame) IsAnyCheckID() bool {
	return f.IsCheckID1() || f.IsCheckID2() || f.IsCheckID3() || f.IsCheckID4()
}

// IsReserveID reports whether f is a Reserve-ID frame.
func (f Frame) IsReserveID() bool { return !f.IsMessageFrame() && f.controlCode() == codeRID }

// IsAliasMapEnquiry reports whether f is an Alias-Map-Enquiry frame.
func (f Frame) IsAliasMapEnquiry() bool { return !f.IsMessageFrame() && f.controlCode() == codeAME }

// IsInitializationComplete reports whether f is an InitializationComplete
// message frame.
func (f Frame) IsInitializationComplete() bool {
	return f.IsMessageFrame() && f.MTI() == mti.InitializationComplete
}

// IsVerifiedNID reports whether f is a VerifiedNodeID message frame.
func (f Frame) IsVerifiedNID() bool {
	return f.IsMessageFrame() && f.MTI() == mti.VerifiedNodeID
}

// IsAliasMapDefinition reports whether f is an Alias-Map-Definition frame.
// Per the wire spec, AMD is carried as an OpenLCB-message frame with a
// reserved MTI, not as a raw CAN control frame.
func (f Frame) IsAliasMapDefinition() bool {
	return f.IsMessageFrame() && f.MTI() == mti.AliasMapDefinition
}

// IsAliasMapReset reports whether f is an Alias-Map-Reset frame.
func (f Frame) IsAliasMapReset() bool {
	return f.IsMessageFrame() && f.MTI() == mti.AliasMapReset
}

// nodeIDChunk extracts one of the four 12-bit chunks (1=high..4=low) of a
// 48-bit NodeID, used to populate CID1..CID4 frames.
func nodeIDChunk(n nodeid.NodeID, step int) uint16 {
	v := n.Uint64()
	shift := uint((4 - step) * 12)
	return uint16((v >> shift) & 0xFFF)
}

func controlHeader(code controlCode, lower12 uint16, source nodeid.Alias) uint32 {
	vf := (uint16(code)&0x7)<<12 | (lower12 & 0xFFF)
	return reservedBit | (uint32(vf) << variableFieldShift) | uint32(source&sourceAliasMask)
}

// BuildCheckID builds a CID<step> frame (step in 1..4) for candidate,
// carrying the corresponding 12-bit chunk of fullNodeID.
func BuildCheckID(step int, fullNodeID nodeid.NodeID, candidate nodeid.Alias) (Frame, error) {
	var code controlCode
	switch step {
	case 1:
		code = codeCID1
	case 2:
		code = codeCID2
	case 3:
		code = codeCID3
	case 4:
		code = codeCID4
	default:
		return Frame{}, fmt.Errorf("canframe: invalid CID step %d", step)
	}
	h := controlHeader(code, nodeIDChunk(fullNodeID, step), candidate)
	return New(h, nil), nil
}

// BuildReserveID builds an RID frame for alias.
func BuildReserveID(alias nodeid.Alias) Frame {
	return New(controlHeader(codeRID, 0, alias), nil)
}

// BuildAliasMapDefinition builds an AMD frame announcing that alias now
// maps to nid.
func BuildAliasMapDefinition(alias nodeid.Alias, nid nodeid.NodeID) Frame {
	return New(BuildMessageHeader(mti.AliasMapDefinition, alias), nid.Bytes())
}

// BuildAliasMapEnquiry builds an AME frame.
func BuildAliasMapEnquiry(alias nodeid.Alias) Frame {
	return New(controlHeader(codeAME, 0, alias), nil)
}

// BuildAliasMapReset builds an AMR frame releasing alias.
func BuildAliasMapReset(alias nodeid.Alias, nid nodeid.NodeID) Frame {
	return New(BuildMessageHeader(mti.AliasMapReset, alias), nid.Bytes())
}
