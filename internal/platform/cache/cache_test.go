package cache

import (
	"context"
	"sync"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

type memoryCache struct {
	mu    sync.Mutex
	items map[string][]byte
}

func (m *memoryCache) Get(_ context.Context, key string) ([]byte, bool, error) {
	m.mu.Lock()
	defer m.mu.Unlock()
	v, ok := m.items[key]
	return v, ok, nil
}

func (m *memoryCache) Set(_ context.Context, key string, value []byte, _ time.Duration) error {
	m.mu.Lock()
	defer m.mu.Unlock()
	m.items[key] = value
	return nil
}

func (m *memoryCache) Delete(_ context.Context, keys ...string) error {
	m.mu.Lock()
	defer m.mu.Unlock()
	for _, k := range keys {
		delete(m.items, k)
	}
	return nil
}

func TestJSONHelpers(t *testing.T) {
	ctx := context.Background()
	c := &memoryCache{items: map[string][]byte{}}

	type overview struct {
		Total int `json:"total"`
	}
	require.NoError(t, SetJSON(ctx, c, "overview", overview{Total: 7}, time.Minute))

	var got overview
	ok, err := GetJSON(ctx, c, "overview", &got)
	require.NoError(t, err)
	assert.True(t, ok)
	assert.Equal(t, 7, got.Total)

	c.items["broken"] = []byte("{")
	ok, err = GetJSON(ctx, c, "broken", &got)
	require.NoError(t, err)
	assert.False(t, ok)
}

func TestNoopAlwaysMisses(t *testing.T) {
	ctx := context.Background()
	var c Cache = Noop{}
	require.NoError(t, c.Set(ctx, "k", []byte("v"), time.Minute))
	_, ok, err := c.Get(ctx, "k")
	require.NoError(t, err)
	assert.False(t, ok)
}
