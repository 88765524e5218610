package snip

import (
	"testing"

	"github.com/stretchr/testify/assert"
)

func TestEncode_StartsWithVersionByteAndNullTerminatesEachField(t *testing.T) {
	info := Info{
		Manufacturer:    "EdgeFlow",
		Model:           "lccnode",
		HardwareVersion: "rev-b",
		SoftwareVersion: "0.1.0",
	}
	got := info.Encode()

	assert.Equal(t, byte(protocolVersion), got[0])

	expected := []byte{protocolVersion}
	for _, s := range []string{"EdgeFlow", "lccnode", "rev-b", "0.1.0"} {
		expected = append(expected, []byte(s)...)
		expected = append(expected, 0)
	}
	assert.Equal(t, expected, got)
}

func TestEncode_EmptyFieldsStillNullTerminate(t *testing.T) {
	got := Info{}.Encode()
	assert.Equal(t, []byte{protocolVersion, 0, 0, 0, 0}, got)
}
