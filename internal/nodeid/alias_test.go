package nodeid

import (
	"testing"

	"github.com/stretchr/testify/assert"
)

func TestAlias_Valid(t *testing.T) {
	assert.False(t, Alias(0x000).Valid())
	assert.True(t, Alias(0x001).Valid())
	assert.True(t, Alias(0xFFF).Valid())
	assert.False(t, NoAlias.Valid())
}

func TestAlias_String(t *testing.T) {
	assert.Equal(t, "333", Alias(0x333).String())
	assert.Equal(t, "001", Alias(0x001).String())
}
