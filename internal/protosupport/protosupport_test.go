package protosupport

import (
	"testing"

	"github.com/stretchr/testify/assert"
)

func TestEncode_SetsExpectedBits(t *testing.T) {
	got := Encode()
	assert.Len(t, got, 3)

	value := uint32(got[0])<<16 | uint32(got[1])<<8 | uint32(got[2])
	assert.Equal(t, uint32(Supported), value)
	assert.NotZero(t, value&SimpleNodeIdentProtocol)
	assert.NotZero(t, value&Datagram)
	assert.NotZero(t, value&EventExchange)
}
