package mti

import (
	"testing"

	"github.com/stretchr/testify/assert"
)

func TestNew_PacksAllFields(t *testing.T) {
	m := New(3, true, true, true, 0x2A)
	assert.Equal(t, uint8(3), m.Priority())
	assert.True(t, m.IsComplex())
	assert.True(t, m.IsAddressed())
	assert.True(t, m.CarriesEvent())
	assert.Equal(t, uint8(0x2A), m.Modifier())
}

func TestNew_ClampsOutOfRangeFields(t *testing.T) {
	m := New(0xFF, false, false, false, 0xFF)
	assert.Equal(t, uint8(0x7), m.Priority())
	assert.Equal(t, uint8(0x3F), m.Modifier())
}

func TestVariableField_RoundTripsThroughFromVariableField(t *testing.T) {
	m := New(1, false, true, false, 19)
	vf := m.VariableField()
	assert.Equal(t, m, FromVariableField(vf))
}

func TestVariableField_ReservedLowBitsAreZero(t *testing.T) {
	m := New(7, true, true, true, 0x3F)
	assert.Zero(t, m.VariableField()&0x7)
}
