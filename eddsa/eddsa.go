// Package eddsa implements Ed25519 signatures (RFC 8032) on top of the
// edwards and scalar packages.
//
// Private keys are 32-byte seeds. The seed is never used as a scalar
// directly: SHA-512 of the seed yields the signing scalar (first half,
// clamped and reduced) and the nonce-derivation prefix (second half).
//
// Verify uses the cofactored equation [8]S·B = [8]R + [8]k·A and rejects
// signatures whose S is not reduced modulo L. Rejecting non-canonical S
// removes the classic S + L malleability; the cofactored check accepts
// signatures that differ only by a small-order component, matching the
// batch-verification behavior recommended by RFC 8032.
package eddsa

import (
	"crypto/sha512"
	"fmt"
	"io"

	"github.com/opd-ai/corecrypto/crypto"
	"github.com/opd-ai/corecrypto/edwards"
	"github.com/opd-ai/corecrypto/scalar"
)

const (
	// PublicKeySize is the size of an encoded public key.
	PublicKeySize = 32
	// SeedSize is the size of a private seed.
	SeedSize = 32
	// SignatureSize is the size of a signature, R || S.
	SignatureSize = 64
)

// expandSeed hashes seed into the signing scalar and the nonce prefix.
func expandSeed(seed []byte) (*scalar.Scalar, [32]byte) {
	h := sha512.Sum512(seed)
	defer crypto.ZeroBytes(h[:])

	var lower, prefix [32]byte
	copy(lower[:], h[:32])
	copy(prefix[:], h[32:])
	s := scalar.PrepareForMul(lower)
	crypto.Zero32(&lower)
	return s, prefix
}

// PublicKey returns the public key for a 32-byte seed.
func PublicKey(seed []byte) ([PublicKeySize]byte, error) {
	if len(seed) != SeedSize {
		return [PublicKeySize]byte{}, fmt.Errorf("%w: seed must be %d bytes, got %d", crypto.ErrInvalidLength, SeedSize, len(seed))
	}
	s, prefix := expandSeed(seed)
	crypto.Zero32(&prefix)
	return new(edwards.Point).ScalarBaseMult(s).Bytes(), nil
}

// Sign returns the deterministic RFC 8032 signature of message under seed.
func Sign(seed, message []byte) ([SignatureSize]byte, error) {
	var sig [SignatureSize]byte
	if len(seed) != SeedSize {
		return sig, fmt.Errorf("%w: seed must be %d bytes, got %d", crypto.ErrInvalidLength, SeedSize, len(seed))
	}

	s, prefix := expandSeed(seed)
	defer crypto.Zero32(&prefix)
	publicKey := new(edwards.Point).ScalarBaseMult(s).Bytes()

	// r = H(prefix || M) mod L
	h := sha512.New()
	h.Write(prefix[:])
	h.Write(message)
	rDigest := h.Sum(nil)
	r := scalar.ReduceModL(rDigest)
	crypto.ZeroBytes(rDigest)

	R := new(edwards.Point).ScalarBaseMult(r).Bytes()

	// k = H(R || A || M) mod L
	k := challenge(R[:], publicKey[:], message)

	// S = r + k * s mod L
	S := scalar.NewScalar().MulAdd(k, s, r)

	copy(sig[:32], R[:])
	sBytes := S.Bytes()
	copy(sig[32:], sBytes[:])
	return sig, nil
}

func challenge(R, A, message []byte) *scalar.Scalar {
	h := sha512.New()
	h.Write(R)
	h.Write(A)
	h.Write(message)
	return scalar.ReduceModL(h.Sum(nil))
}

// Verify reports whether sig is a valid signature of message by publicKey.
// Malformed inputs of any kind return false.
func Verify(publicKey, message, sig []byte) bool {
	if len(publicKey) != PublicKeySize || len(sig) != SignatureSize {
		return false
	}

	A, err := new(edwards.Point).SetBytes(publicKey)
	if err != nil {
		return false
	}
	R, err := new(edwards.Point).SetBytes(sig[:32])
	if err != nil {
		return false
	}
	S, err := scalar.NewScalar().SetCanonicalBytes(sig[32:])
	if err != nil {
		return false
	}

	k := challenge(sig[:32], publicKey, message)

	// [8]S·B == [8]R + [8]k·A
	lhs := new(edwards.Point).ScalarBaseMult(S)
	lhs.MultByCofactor(lhs)

	kA := new(edwards.Point).ScalarMult(k, A)
	rhs := new(edwards.Point).Add(R, kA)
	rhs.MultByCofactor(rhs)

	return lhs.Equal(rhs) == 1
}

// KeyPair is an Ed25519 key pair. The seed is the private key.
type KeyPair struct {
	PublicKey [PublicKeySize]byte
	Seed      [SeedSize]byte
}

// NewKeyPairFromSeed derives the key pair for seed.
func NewKeyPairFromSeed(seed [SeedSize]byte) (*KeyPair, error) {
	pub, err := PublicKey(seed[:])
	if err != nil {
		return nil, err
	}
	return &KeyPair{PublicKey: pub, Seed: seed}, nil
}

// GenerateKeyPair creates a key pair from rand, or crypto/rand when nil.
func GenerateKeyPair(rand io.Reader) (*KeyPair, error) {
	seed, err := crypto.Random32(rand)
	if err != nil {
		return nil, err
	}
	defer crypto.Zero32(&seed)
	return NewKeyPairFromSeed(seed)
}

// Sign signs message with the key pair's seed.
func (kp *KeyPair) Sign(message []byte) ([SignatureSize]byte, error) {
	return Sign(kp.Seed[:], message)
}

// Clone returns an independent copy of kp.
func (kp *KeyPair) Clone() *KeyPair {
	c := *kp
	return &c
}

// Wipe zeroes the seed.
func (kp *KeyPair) Wipe() {
	if kp == nil {
		return
	}
	crypto.Zero32(&kp.Seed)
}
