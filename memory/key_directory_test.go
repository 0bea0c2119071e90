package memory

import (
	"context"
	"fmt"
	"sync"
	"testing"

	"github.com/opd-ai/corecrypto/crypto"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestKeyDirectoryRegisterResolve(t *testing.T) {
	d := NewKeyDirectory()
	key := make([]byte, 32)
	key[0] = 0xAB

	require.NoError(t, d.Register("node-1", key))
	assert.Equal(t, 1, d.Count())

	got, found, err := d.ResolvePublicKey(context.Background(), "node-1")
	require.NoError(t, err)
	assert.True(t, found)
	assert.Equal(t, key, got[:])

	_, found, err = d.ResolvePublicKey(context.Background(), "node-2")
	require.NoError(t, err)
	assert.False(t, found)
}

func TestKeyDirectoryReplaceAndRemove(t *testing.T) {
	d := NewKeyDirectory()
	require.NoError(t, d.Register("n", make([]byte, 32)))

	replacement := make([]byte, 32)
	replacement[31] = 1
	require.NoError(t, d.Register("n", replacement))
	assert.Equal(t, 1, d.Count())

	got, _, err := d.ResolvePublicKey(context.Background(), "n")
	require.NoError(t, err)
	assert.Equal(t, byte(1), got[31])

	assert.True(t, d.Remove("n"))
	assert.False(t, d.Remove("n"))
	assert.Equal(t, 0, d.Count())
}

func TestKeyDirectoryValidation(t *testing.T) {
	d := NewKeyDirectory()
	assert.ErrorIs(t, d.Register("", make([]byte, 32)), crypto.ErrMissingFields)
	assert.ErrorIs(t, d.Register("n", make([]byte, 16)), crypto.ErrInvalidLength)
}

func TestKeyDirectoryCopiesKey(t *testing.T) {
	d := NewKeyDirectory()
	key := make([]byte, 32)
	require.NoError(t, d.Register("n", key))
	key[0] = 0xFF

	got, _, err := d.ResolvePublicKey(context.Background(), "n")
	require.NoError(t, err)
	assert.Equal(t, byte(0), got[0])
}

func TestKeyDirectoryHonorsContext(t *testing.T) {
	d := NewKeyDirectory()
	ctx, cancel := context.WithCancel(context.Background())
	cancel()
	_, _, err := d.ResolvePublicKey(ctx, "n")
	assert.ErrorIs(t, err, context.Canceled)
}

func TestKeyDirectoryConcurrentAccess(t *testing.T) {
	d := NewKeyDirectory()
	var wg sync.WaitGroup
	for i := 0; i < 20; i++ {
		wg.Add(2)
		go func(i int) {
			defer wg.Done()
			assert.NoError(t, d.Register(fmt.Sprintf("node-%d", i), make([]byte, 32)))
		}(i)
		go func(i int) {
			defer wg.Done()
			_, _, err := d.ResolvePublicKey(context.Background(), fmt.Sprintf("node-%d", i))
			assert.NoError(t, err)
		}(i)
	}
	wg.Wait()
	assert.Equal(t, 20, d.Count())
}
