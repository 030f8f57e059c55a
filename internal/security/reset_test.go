package security

import (
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestNewResetToken(t *testing.T) {
	t.Parallel()

	raw, digest, err := NewResetToken()
	require.NoError(t, err)

	assert.Len(t, raw, 64) // 32 random bytes, hex encoded
	assert.Equal(t, digest, HashResetToken(raw))
	assert.NotContains(t, string(digest), raw)
}

func TestNewResetToken_Unique(t *testing.T) {
	t.Parallel()

	first, _, err := NewResetToken()
	require.NoError(t, err)
	second, _, err := NewResetToken()
	require.NoError(t, err)

	assert.NotEqual(t, first, second)
}
