package safe_random

import (
	"strings"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestGenerateRandomBytes(t *testing.T) {
	b, err := GenerateRandomBytes(32)
	require.NoError(t, err)
	assert.Len(t, b, 32)
	assert.NotEqual(t, make([]byte, 32), b, "极不可能全为零")

	other, err := GenerateRandomBytes(32)
	require.NoError(t, err)
	assert.NotEqual(t, b, other)
}

func TestGenerateRandomHexString(t *testing.T) {
	s, err := GenerateRandomHexString(16)
	require.NoError(t, err)
	assert.Len(t, s, 34)
	assert.True(t, strings.HasPrefix(s, "0x"))
}
