package blobstore

import (
	"context"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestMemory_GetPut(t *testing.T) {
	ctx := context.Background()
	m := NewMemory()

	_, err := m.Get(ctx, "missing")
	assert.ErrorIs(t, err, ErrNotFound)

	value := []byte(`{"a":1}`)
	require.NoError(t, m.Put(ctx, "k", value))

	// Mutating the caller's slice must not change the stored blob.
	value[0] = 'x'

	got, err := m.Get(ctx, "k")
	require.NoError(t, err)
	assert.Equal(t, `{"a":1}`, string(got))

	require.NoError(t, m.Put(ctx, "k", []byte("second")))
	got, err = m.Get(ctx, "k")
	require.NoError(t, err)
	assert.Equal(t, "second", string(got))
	assert.Equal(t, []string{"k"}, m.Keys())
}

func TestMemory_CancelledContext(t *testing.T) {
	ctx, cancel := context.WithCancel(context.Background())
	cancel()

	m := NewMemory()
	assert.ErrorIs(t, m.Put(ctx, "k", nil), context.Canceled)
	_, err := m.Get(ctx, "k")
	assert.ErrorIs(t, err, context.Canceled)
}

func TestConfig_IsValidBackend(t *testing.T) {
	for _, backend := range []string{BackendMemory, BackendMinio, BackendDatabase, BackendRedis} {
		assert.True(t, Config{Backend: backend}.IsValidBackend(), backend)
	}
	assert.False(t, Config{Backend: "s3"}.IsValidBackend())
	assert.False(t, Config{}.IsValidBackend())
}
