// Package builder implements MessageBuilder, the bidirectional codec
// between the Message taxonomy (internal/lccmsg) and the wire-level
// CanFrame (internal/canframe), including addressed-message multi-frame
// splitting and reassembly.
package builder

import (
	"errors"
	"fmt"

	"go.uber.org/zap"

	"github.com/edgeflow/lccstack/internal/aliasmap"
	"github.com/edgeflow/lccstack/internal/canframe"
	"github.com/edgeflow/lccstack/internal/lccmsg"
	"github.com/edgeflow/lccstack/internal/mti"
	"github.com/edgeflow/lccstack/internal/nodeid"
)

// Protocol errors returned by processMessage. Mirrors the taxonomy
// described for the interface's outbound path: these are reported
// synchronously to the caller, never swallowed.
var (
	ErrUnknownSourceAlias      = errors.New("builder: source NodeID has no resolved alias")
	ErrUnknownDestinationAlias = errors.New("builder: destination NodeID has no resolved alias")
)

const maxAddressedPayloadPerFrame = 6

// maxReassemblyBytes bounds a single (source-alias, MTI) reassembly
// buffer. A peer that never terminates a multi-frame sequence would
// otherwise grow its buffer without limit; past this cap the partial
// sequence is dropped rather than accumulated further.
const maxReassemblyBytes = 64 * 1024

// Continuation bit values occupying the top two bits of the addressed
// prefix's first byte.
const (
	continuationFirstAndLast = 0x0
	continuationFirstOnly    = 0x1
	continuationLastOnly     = 0x2
	continuationMiddle       = 0x3
)

type reassemblyKey struct {
	alias nodeid.Alias
	mti   mti.MTI
}

// MessageBuilder holds only a reference to the shared AliasMap and a small
// reassembly buffer for addressed multi-frame messages arriving on this
// interface. It is not safe to share across interfaces/goroutines — each
// interface owns one.
type MessageBuilder struct {
	log     *zap.Logger
	aliases *aliasmap.AliasMap

	reassembly map[reassemblyKey][]byte
}

// New constructs a MessageBuilder bound to aliases.
func New(log *zap.Logger, aliases *aliasmap.AliasMap) *MessageBuilder {
	if log == nil {
		log = zap.NewNop()
	}
	return &MessageBuilder{
		log:        log,
		aliases:    aliases,
		reassembly: make(map[reassemblyKey][]byte),
	}
}

// ProcessMessage encodes msg into one or more CanFrames, resolving source
// and (for addressed kinds) destination aliases via the AliasMap.
func (b *MessageBuilder) ProcessMessage(msg lccmsg.Message) ([]canframe.Frame, error) {
	srcAlias := b.aliases.GetAlias(msg.Source)
	if srcAlias == nodeid.NoAlias {
		return nil, fmt.Errorf("%w: %s", ErrUnknownSourceAlias, msg.Source)
	}

	header := canframe.BuildMessageHeader(msg.MTI(), srcAlias)
	body := userPayload(msg)

	if !msg.Addressed() {
		return []canframe.Frame{canframe.New(header, body)}, nil
	}

	destAlias := b.aliases.GetAlias(msg.Dest)
	if destAlias == nodeid.NoAlias {
		return nil, fmt.Errorf("%w: %s", ErrUnknownDestinationAlias, msg.Dest)
	}

	return splitAddressed(header, destAlias, body), nil
}

// splitAddressed chunks body into frames of at most 6 user bytes, each
// prefixed by the 2-byte {continuation, destAlias} header, tagging
// continuation bits per position in the sequence.
func splitAddressed(header uint32, dest nodeid.Alias, body []byte) []canframe.Frame {
	if len(body) <= maxAddressedPayloadPerFrame {
		return []canframe.Frame{addressedFrame(header, dest, continuationFirstAndLast, body)}
	}

	var frames []canframe.Frame
	for i := 0; i < len(body); i += maxAddressedPayloadPerFrame {
		end := i + maxAddressedPayloadPerFrame
		if end > len(body) {
			end = len(body)
		}
		chunk := body[i:end]

		var cont uint16
		switch {
		case i == 0:
			cont = continuationFirstOnly
		case end == len(body):
			cont = continuationLastOnly
		default:
			cont = continuationMiddle
		}
		frames = append(frames, addressedFrame(header, dest, cont, chunk))
	}
	return frames
}

func addressedFrame(header uint32, dest nodeid.Alias, continuation uint16, chunk []byte) canframe.Frame {
	prefix := continuation<<12 | uint16(dest&0xFFF)
	payload := make([]byte, 0, 2+len(chunk))
	payload = append(payload, byte(prefix>>8), byte(prefix))
	payload = append(payload, chunk...)
	return canframe.New(header, payload)
}

// ProcessFrame decodes f into zero or more Messages. Control frames
// (CID*/RID/AME) never produce a Message. Addressed frames accumulate in
// the per-(source-alias, MTI) reassembly buffer until a terminating
// continuation code is observed.
func (b *MessageBuilder) ProcessFrame(f canframe.Frame) ([]lccmsg.Message, bool) {
	if !f.IsMessageFrame() {
		return nil, false
	}

	kind, ok := lccmsg.KindFromMTI(f.MTI())
	if !ok {
		b.log.Debug("builder: dropping frame with unrecognized MTI", zap.Uint32("header", f.Header))
		return nil, false
	}

	source := b.aliases.GetNodeID(f.SourceAlias())

	if !kind.MTI().IsAddressed() {
		msg := decodeBody(kind, source, nodeid.Zero, f.Payload())
		return []lccmsg.Message{msg}, true
	}

	payload := f.Payload()
	if len(payload) < 2 {
		b.log.Warn("builder: dropping addressed frame with missing prefix", zap.Uint32("header", f.Header))
		return nil, false
	}
	prefix := uint16(payload[0])<<8 | uint16(payload[1])
	continuation := (prefix >> 12) & 0x3
	dest := b.aliases.GetNodeID(nodeid.Alias(prefix & 0xFFF))
	rest := payload[2:]

	key := reassemblyKey{alias: f.SourceAlias(), mti: f.MTI()}

	switch continuation {
	case continuationFirstAndLast:
		delete(b.reassembly, key)
		msg := decodeBody(kind, source, dest, rest)
		return []lccmsg.Message{msg}, true

	case continuationFirstOnly:
		b.reassembly[key] = append([]byte(nil), rest...)
		return nil, false

	case continuationMiddle:
		open, ok := b.reassembly[key]
		if !ok {
			// No sequence open for this key (never started, or dropped at
			// the cap): the middle frame has nothing to extend.
			return nil, false
		}
		buf := append(open, rest...)
		if len(buf) > maxReassemblyBytes {
			b.log.Warn("builder: reassembly buffer exceeded cap, dropping sequence",
				zap.Stringer("source_alias", f.SourceAlias()), zap.Int("bytes", len(buf)))
			delete(b.reassembly, key)
			return nil, false
		}
		b.reassembly[key] = buf
		return nil, false

	case continuationLastOnly:
		buf := append(b.reassembly[key], rest...)
		delete(b.reassembly, key)
		if len(buf) > maxReassemblyBytes {
			b.log.Warn("builder: reassembled payload exceeded cap, dropping",
				zap.Stringer("source_alias", f.SourceAlias()), zap.Int("bytes", len(buf)))
			return nil, false
		}
		msg := decodeBody(kind, source, dest, buf)
		return []lccmsg.Message{msg}, true
	}

	return nil, false
}

// userPayload extracts the wire body for msg, before any addressed
// prefix/splitting is applied.
func userPayload(msg lccmsg.Message) []byte {
	switch {
	case msg.CarriesEvent():
		return msg.Event.Bytes()
	case msg.Kind == lccmsg.KindInitializationComplete || msg.Kind == lccmsg.KindVerifiedNodeID:
		return msg.Source.Bytes()
	case msg.Kind == lccmsg.KindVerifyNodeIDGlobal:
		if !msg.Query.IsZero() {
			return msg.Query.Bytes()
		}
		return nil
	default:
		return msg.Data
	}
}

// decodeBody is the inverse of userPayload, reconstructing the kind-
// specific fields of a Message from its decoded wire body. Source is
// always the AliasMap-resolved sender, never reparsed from the body.
func decodeBody(kind lccmsg.Kind, source, dest nodeid.NodeID, body []byte) lccmsg.Message {
	msg := lccmsg.Message{Kind: kind, Source: source}
	if kind.MTI().IsAddressed() {
		msg.Dest = dest
	}

	switch {
	case kind.MTI().CarriesEvent():
		if len(body) >= 8 {
			ev, _ := nodeid.FromEventBytes(body[:8])
			msg.Event = ev
		}
	case kind == lccmsg.KindVerifyNodeIDGlobal:
		if len(body) == 6 {
			q, _ := nodeid.FromBytes(body)
			msg.Query = q
		}
	case kind == lccmsg.KindInitializationComplete, kind == lccmsg.KindVerifiedNodeID:
		// Source already resolved via AliasMap; the payload carries the
		// same NodeID redundantly on the wire and is not reparsed here.
	default:
		msg.Data = append([]byte(nil), body...)
	}
	return msg
}
