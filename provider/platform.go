package provider

import (
	"fmt"

	"github.com/opd-ai/corecrypto/crypto"
	"github.com/opd-ai/corecrypto/interfaces"
	"golang.org/x/crypto/curve25519"
	"golang.org/x/crypto/ed25519"
)

// Platform delegates to golang.org/x/crypto.
type Platform struct{}

var _ interfaces.ICurveProvider = (*Platform)(nil)

// NewPlatform returns the platform-accelerated provider.
func NewPlatform() *Platform {
	return &Platform{}
}

// Name returns "platform".
func (*Platform) Name() string { return string(interfaces.ProviderPlatform) }

// SigningPublicKey returns the Ed25519 public key for seed.
func (*Platform) SigningPublicKey(seed []byte) ([32]byte, error) {
	var out [32]byte
	if err := checkSeed(seed); err != nil {
		return out, err
	}
	priv := ed25519.NewKeyFromSeed(seed)
	defer crypto.ZeroBytes(priv)
	copy(out[:], priv[32:])
	return out, nil
}

// Sign signs message with seed.
func (*Platform) Sign(seed, message []byte) ([64]byte, error) {
	var out [64]byte
	if err := checkSeed(seed); err != nil {
		return out, err
	}
	priv := ed25519.NewKeyFromSeed(seed)
	defer crypto.ZeroBytes(priv)
	copy(out[:], ed25519.Sign(priv, message))
	return out, nil
}

// Verify checks a signature with the cofactorless equation.
func (*Platform) Verify(publicKey, message, signature []byte) bool {
	if len(publicKey) != ed25519.PublicKeySize || len(signature) != ed25519.SignatureSize {
		return false
	}
	return ed25519.Verify(publicKey, message, signature)
}

// ExchangePublicKey returns the X25519 public key for privateKey.
func (*Platform) ExchangePublicKey(privateKey [32]byte) ([32]byte, error) {
	var out [32]byte
	pub, err := curve25519.X25519(privateKey[:], curve25519.Basepoint)
	if err != nil {
		return out, fmt.Errorf("%w: %v", crypto.ErrInvalidEncoding, err)
	}
	copy(out[:], pub)
	return out, nil
}

// ECDH returns the X25519 shared secret. It uses ScalarMult rather than
// X25519 because the latter rejects low-order peer keys.
func (*Platform) ECDH(privateKey, peerPublicKey []byte) ([32]byte, error) {
	var out, priv, peer [32]byte
	if len(privateKey) != 32 {
		return out, fmt.Errorf("%w: private key must be 32 bytes, got %d", crypto.ErrInvalidLength, len(privateKey))
	}
	if len(peerPublicKey) != 32 {
		return out, fmt.Errorf("%w: peer public key must be 32 bytes, got %d", crypto.ErrInvalidLength, len(peerPublicKey))
	}
	copy(priv[:], privateKey)
	copy(peer[:], peerPublicKey)
	defer crypto.Zero32(&priv)

	curve25519.ScalarMult(&out, &priv, &peer) //nolint:staticcheck // low-order output must not be rejected
	return out, nil
}
