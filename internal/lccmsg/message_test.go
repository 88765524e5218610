package lccmsg

import (
	"testing"

	"github.com/stretchr/testify/assert"

	"github.com/edgeflow/lccstack/internal/mti"
	"github.com/edgeflow/lccstack/internal/nodeid"
)

func TestKindFromMTI_RoundTripsEveryKind(t *testing.T) {
	for kind, m := range kindMTI {
		got, ok := KindFromMTI(m)
		assert.True(t, ok)
		assert.Equal(t, kind, got)
	}
}

func TestKindFromMTI_UnknownMTIIsNotFound(t *testing.T) {
	_, ok := KindFromMTI(mti.New(1, false, false, false, 50))
	assert.False(t, ok)
}

func TestMessage_AddressedAndCarriesEventDeriveFromMTI(t *testing.T) {
	src := nodeid.FromUint64(1)
	dst := nodeid.FromUint64(2)

	dg := NewDatagram(src, dst, []byte{1})
	assert.True(t, dg.Addressed())
	assert.False(t, dg.CarriesEvent())

	ev, _ := nodeid.FromEventBytes([]byte{1, 2, 3, 4, 5, 6, 7, 8})
	pcer := NewProducerConsumerEventReport(src, ev)
	assert.False(t, pcer.Addressed())
	assert.True(t, pcer.CarriesEvent())
}

func TestNewVerifyNodeIDGlobal_QueryMayBeZero(t *testing.T) {
	src := nodeid.FromUint64(1)
	msg := NewVerifyNodeIDGlobal(src, nodeid.Zero)
	assert.True(t, msg.Query.IsZero())
}

func TestNewDatagram_CopiesDataRatherThanAliasing(t *testing.T) {
	src := nodeid.FromUint64(1)
	dst := nodeid.FromUint64(2)
	data := []byte{1, 2, 3}

	msg := NewDatagram(src, dst, data)
	data[0] = 0xFF

	assert.Equal(t, byte(1), msg.Data[0])
}
