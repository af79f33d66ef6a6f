package shared

import (
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestRandomHex(t *testing.T) {
	a, err := RandomHex(16)
	require.NoError(t, err)
	b, err := RandomHex(16)
	require.NoError(t, err)

	assert.Len(t, a, 32)
	assert.NotEqual(t, a, b)
}

func TestWipe(t *testing.T) {
	b := []byte("longpw123")
	Wipe(b)
	assert.Equal(t, make([]byte, 9), b)

	assert.NotPanics(t, func() { Wipe(nil) })
}
