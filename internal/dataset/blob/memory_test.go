package blob

import (
	"context"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"fedlearn/pkg/platform/sentinel"
)

func TestMemoryStore(t *testing.T) {
	ctx := context.Background()
	s := NewMemoryStore()

	payload := []byte("nonce-ciphertext-tag")
	require.NoError(t, s.Put(ctx, "projects/1/a.bin", payload))
	payload[0] = 'X'

	got, err := s.Get(ctx, "projects/1/a.bin")
	require.NoError(t, err)
	assert.Equal(t, []byte("nonce-ciphertext-tag"), got)

	_, err = s.Get(ctx, "missing")
	assert.ErrorIs(t, err, sentinel.ErrNotFound)

	require.NoError(t, s.Delete(ctx, "projects/1/a.bin"))
	_, err = s.Get(ctx, "projects/1/a.bin")
	assert.ErrorIs(t, err, sentinel.ErrNotFound)
	assert.NoError(t, s.Delete(ctx, "projects/1/a.bin"))
}
