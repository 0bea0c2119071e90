package provider

import (
	"crypto/rand"
	"testing"

	"github.com/opd-ai/corecrypto/crypto"
	"github.com/opd-ai/corecrypto/interfaces"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func providers() []interfaces.ICurveProvider {
	return []interfaces.ICurveProvider{NewPure(), NewPlatform()}
}

func TestProvidersAgree(t *testing.T) {
	pure, platform := NewPure(), NewPlatform()

	for i := 0; i < 10; i++ {
		seed := make([]byte, 32)
		_, err := rand.Read(seed)
		require.NoError(t, err)
		msg := []byte("provider agreement check")

		pk1, err := pure.SigningPublicKey(seed)
		require.NoError(t, err)
		pk2, err := platform.SigningPublicKey(seed)
		require.NoError(t, err)
		assert.Equal(t, pk1, pk2)

		s1, err := pure.Sign(seed, msg)
		require.NoError(t, err)
		s2, err := platform.Sign(seed, msg)
		require.NoError(t, err)
		assert.Equal(t, s1, s2)

		assert.True(t, pure.Verify(pk1[:], msg, s2[:]))
		assert.True(t, platform.Verify(pk2[:], msg, s1[:]))

		var a, b [32]byte
		_, err = rand.Read(a[:])
		require.NoError(t, err)
		_, err = rand.Read(b[:])
		require.NoError(t, err)

		pa1, err := pure.ExchangePublicKey(a)
		require.NoError(t, err)
		pa2, err := platform.ExchangePublicKey(a)
		require.NoError(t, err)
		assert.Equal(t, pa1, pa2)

		pb, err := platform.ExchangePublicKey(b)
		require.NoError(t, err)
		ss1, err := pure.ECDH(a[:], pb[:])
		require.NoError(t, err)
		ss2, err := platform.ECDH(a[:], pb[:])
		require.NoError(t, err)
		assert.Equal(t, ss1, ss2)
	}
}

func TestProvidersDoNotRejectLowOrder(t *testing.T) {
	for _, p := range providers() {
		t.Run(p.Name(), func(t *testing.T) {
			priv := make([]byte, 32)
			priv[0] = 0x42
			out, err := p.ECDH(priv, make([]byte, 32))
			require.NoError(t, err)
			assert.Equal(t, [32]byte{}, out)
		})
	}
}

func TestProvidersRejectBadLengths(t *testing.T) {
	for _, p := range providers() {
		t.Run(p.Name(), func(t *testing.T) {
			_, err := p.Sign(make([]byte, 16), []byte("m"))
			assert.Equal(t, crypto.CodeInvalidLength, crypto.CodeOf(err))

			_, err = p.SigningPublicKey(nil)
			assert.ErrorIs(t, err, crypto.ErrInvalidLength)

			_, err = p.ECDH(make([]byte, 32), make([]byte, 31))
			assert.ErrorIs(t, err, crypto.ErrInvalidLength)

			assert.False(t, p.Verify(make([]byte, 31), nil, make([]byte, 64)))
			assert.False(t, p.Verify(make([]byte, 32), nil, make([]byte, 63)))
		})
	}
}

func TestNew(t *testing.T) {
	p, err := New(interfaces.ProviderPlatform)
	require.NoError(t, err)
	assert.Equal(t, "platform", p.Name())

	p, err = New("")
	require.NoError(t, err)
	assert.Equal(t, "pure", p.Name())

	_, err = New("quantum")
	assert.ErrorIs(t, err, interfaces.ErrInvalidProvider)
}
