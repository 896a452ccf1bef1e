package middleware

import (
	"context"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestRequestHashDeterministic(t *testing.T) {
	assert.Equal(t, RequestHash([]byte("payload")), RequestHash([]byte("payload")))
	assert.NotEqual(t, RequestHash([]byte("payload")), RequestHash([]byte("other")))
	assert.Len(t, RequestHash(nil), 64)
}

func TestNilIdempotencyStoreIsInert(t *testing.T) {
	var store *IdempotencyStore
	stored, found, err := store.Check(context.Background(), "u", "dsar.create", "k", "h")
	require.NoError(t, err)
	assert.False(t, found)
	assert.Nil(t, stored)
	assert.NoError(t, store.Save(context.Background(), "u", "dsar.create", "k", "h", []byte(`{}`)))
}
