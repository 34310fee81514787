package crypto

import (
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

var testSalt = []byte("test-salt-do-not-use")

func TestKeyDeriver(t *testing.T) {
	d, err := NewKeyDeriver(testSalt)
	require.NoError(t, err)

	t.Run("same inputs yield the same key", func(t *testing.T) {
		k1, err := d.Derive("PRJ-ALPHA", 7)
		require.NoError(t, err)
		k2, err := d.Derive("PRJ-ALPHA", 7)
		require.NoError(t, err)
		assert.Equal(t, k1, k2)
		assert.Len(t, k1, KeySize)
	})

	t.Run("different users get different keys", func(t *testing.T) {
		k1, err := d.Derive("PRJ-ALPHA", 7)
		require.NoError(t, err)
		k2, err := d.Derive("PRJ-ALPHA", 8)
		require.NoError(t, err)
		assert.NotEqual(t, k1, k2)
	})

	t.Run("different salts get different keys", func(t *testing.T) {
		other, err := NewKeyDeriver([]byte("another-salt"))
		require.NoError(t, err)
		k1, _ := d.Derive("PRJ-ALPHA", 7)
		k2, _ := other.Derive("PRJ-ALPHA", 7)
		assert.NotEqual(t, k1, k2)
	})

	t.Run("stateless form matches", func(t *testing.T) {
		k1, _ := d.Derive("PRJ-ALPHA", 7)
		k2, err := DeriveKey("PRJ-ALPHA", 7, testSalt, MinIterations)
		require.NoError(t, err)
		assert.Equal(t, k1, k2)
	})
}

func TestKeyDeriver_RejectsMalformedInput(t *testing.T) {
	_, err := NewKeyDeriver(nil)
	assert.ErrorIs(t, err, ErrMissingSalt)

	d, err := NewKeyDeriver(testSalt)
	require.NoError(t, err)

	_, err = d.Derive("", 1)
	assert.ErrorIs(t, err, ErrMalformedIdentity)

	_, err = d.Derive("   ", 1)
	assert.ErrorIs(t, err, ErrMalformedIdentity)

	_, err = d.Derive("PRJ", 0)
	assert.ErrorIs(t, err, ErrMalformedIdentity)
}

func TestKeyDeriver_IterationsFloor(t *testing.T) {
	d, err := NewKeyDeriver(testSalt, WithIterations(10))
	require.NoError(t, err)
	assert.Equal(t, MinIterations, d.iterations)
	assert.Contains(t, d.Description(), "100000 iterations")
}

func TestFingerprint(t *testing.T) {
	d, err := NewKeyDeriver(testSalt)
	require.NoError(t, err)
	key, err := d.Derive("PRJ", 3)
	require.NoError(t, err)

	fp := d.Fingerprint(key)
	assert.Len(t, fp, 16)
	assert.Equal(t, fp, Fingerprint(key, testSalt))
	assert.NotEqual(t, fp, Fingerprint(key, []byte("other")))
}
