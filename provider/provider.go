// Package provider implements interfaces.ICurveProvider twice: Pure, on top
// of this module's field and curve arithmetic, and Platform, on top of
// golang.org/x/crypto. Both produce identical keys, signatures and shared
// secrets for valid input.
//
// The two differ in one documented place. Pure.Verify uses the cofactored
// equation and Platform.Verify the cofactorless one, so a signature carrying
// a deliberate small-order component can verify under Pure and fail under
// Platform. Honestly generated signatures verify under both.
package provider

import (
	"fmt"

	"github.com/opd-ai/corecrypto/crypto"
	"github.com/opd-ai/corecrypto/eddsa"
	"github.com/opd-ai/corecrypto/interfaces"
	"github.com/opd-ai/corecrypto/x25519"
)

// Pure is the from-scratch provider.
type Pure struct{}

var _ interfaces.ICurveProvider = (*Pure)(nil)

// NewPure returns the pure-arithmetic provider.
func NewPure() *Pure {
	return &Pure{}
}

// Name returns "pure".
func (*Pure) Name() string { return string(interfaces.ProviderPure) }

// SigningPublicKey returns the Ed25519 public key for seed.
func (*Pure) SigningPublicKey(seed []byte) ([32]byte, error) {
	return eddsa.PublicKey(seed)
}

// Sign signs message with seed.
func (*Pure) Sign(seed, message []byte) ([64]byte, error) {
	return eddsa.Sign(seed, message)
}

// Verify checks a signature with the cofactored equation.
func (*Pure) Verify(publicKey, message, signature []byte) bool {
	return eddsa.Verify(publicKey, message, signature)
}

// ExchangePublicKey returns the X25519 public key for privateKey.
func (*Pure) ExchangePublicKey(privateKey [32]byte) ([32]byte, error) {
	return x25519.PublicKey(privateKey), nil
}

// ECDH returns the X25519 shared secret.
func (*Pure) ECDH(privateKey, peerPublicKey []byte) ([32]byte, error) {
	return x25519.SharedSecret(privateKey, peerPublicKey)
}

// New returns the provider named by kind.
func New(kind interfaces.ProviderKind) (interfaces.ICurveProvider, error) {
	switch kind {
	case interfaces.ProviderPure, "":
		return NewPure(), nil
	case interfaces.ProviderPlatform:
		return NewPlatform(), nil
	default:
		return nil, fmt.Errorf("%w: %q", interfaces.ErrInvalidProvider, kind)
	}
}

func checkSeed(seed []byte) error {
	if len(seed) != eddsa.SeedSize {
		return fmt.Errorf("%w: seed must be %d bytes, got %d", crypto.ErrInvalidLength, eddsa.SeedSize, len(seed))
	}
	return nil
}
