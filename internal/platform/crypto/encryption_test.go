package crypto

import (
	"encoding/hex"
	"strings"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestFieldSealOpen(t *testing.T) {
	f, err := NewField(hex.EncodeToString([]byte(strings.Repeat("k", 32))))
	require.NoError(t, err)
	require.True(t, f.Configured())

	sealed, err := f.SealString("+441212345678")
	require.NoError(t, err)
	assert.NotContains(t, string(sealed), "+441212345678")

	opened, err := f.OpenString(sealed)
	require.NoError(t, err)
	assert.Equal(t, "+441212345678", opened)
}

func TestFieldWithoutKeyPassesThrough(t *testing.T) {
	f, err := NewField("")
	require.NoError(t, err)
	assert.False(t, f.Configured())

	sealed, err := f.SealString("plain")
	require.NoError(t, err)
	assert.Equal(t, []byte("plain"), sealed)
}

func TestFieldRejectsShortKey(t *testing.T) {
	_, err := NewField("too-short")
	require.Error(t, err)
}

func TestFieldOpenTamperedValue(t *testing.T) {
	f, err := NewField(strings.Repeat("a", 32))
	require.NoError(t, err)

	sealed, err := f.SealString("secret")
	require.NoError(t, err)
	sealed[len(sealed)-1] ^= 0xff

	_, err = f.Open(sealed)
	require.Error(t, err)

	_, err = f.Open([]byte{1, 2})
	require.ErrorIs(t, err, ErrCiphertextTooShort)
}
