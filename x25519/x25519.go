package x25519

import (
	"fmt"
	"io"

	"github.com/opd-ai/corecrypto/crypto"
	"github.com/opd-ai/corecrypto/field"
	"github.com/opd-ai/corecrypto/scalar"
)

const (
	// ScalarSize is the size of an X25519 private key.
	ScalarSize = 32
	// PointSize is the size of an X25519 public key or shared secret.
	PointSize = 32
)

// Basepoint is the u-coordinate 9 of the Curve25519 base point.
var Basepoint = [PointSize]byte{9}

// a24 is (A - 2) / 4 for Curve25519, per RFC 7748 section 5.
var a24 = new(field.Element).SetUint64(121665)

// Ladder returns the u-coordinate of k * P, where P has u-coordinate u. k is
// used exactly as given; callers clamp it first.
func Ladder(k [ScalarSize]byte, u *field.Element) *field.Element {
	var x1, x2, z2, x3, z3 field.Element
	var a, aa, b, bb, e, c, d, da, cb, t field.Element

	x1.Set(u)
	x2.One()
	z2.Zero()
	x3.Set(u)
	z3.One()

	swap := 0
	for pos := 254; pos >= 0; pos-- {
		bit := int(k[pos/8]>>(uint(pos)&7)) & 1
		swap ^= bit
		x2.Swap(&x3, swap)
		z2.Swap(&z3, swap)
		swap = bit

		a.Add(&x2, &z2)
		aa.Square(&a)
		b.Subtract(&x2, &z2)
		bb.Square(&b)
		e.Subtract(&aa, &bb)
		c.Add(&x3, &z3)
		d.Subtract(&x3, &z3)
		da.Multiply(&d, &a)
		cb.Multiply(&c, &b)

		x3.Add(&da, &cb)
		x3.Square(&x3)
		z3.Subtract(&da, &cb)
		z3.Square(&z3)
		z3.Multiply(&z3, &x1)

		x2.Multiply(&aa, &bb)
		t.Multiply(a24, &e)
		t.Add(&t, &aa)
		z2.Multiply(&e, &t)
	}
	x2.Swap(&x3, swap)
	z2.Swap(&z3, swap)

	z2.Invert(&z2)
	return x2.Multiply(&x2, &z2)
}

func encodeU(u *field.Element) [PointSize]byte {
	out := u.Bytes()
	out[31] &= 0x7f
	return out
}

// PublicKey returns the public key for the raw private key priv.
func PublicKey(priv [ScalarSize]byte) [PointSize]byte {
	clamped := scalar.Clamp(priv)
	defer crypto.Zero32(&clamped)

	base, _ := new(field.Element).SetBytes(Basepoint[:])
	return encodeU(Ladder(clamped, base))
}

// SharedSecret computes the X25519 function of priv and the peer's public
// key. Both inputs must be 32 bytes. Low-order peer keys are not rejected.
func SharedSecret(priv, peerPublic []byte) ([PointSize]byte, error) {
	if len(priv) != ScalarSize {
		return [PointSize]byte{}, fmt.Errorf("%w: private key must be %d bytes, got %d", crypto.ErrInvalidLength, ScalarSize, len(priv))
	}
	u, err := new(field.Element).SetBytes(peerPublic)
	if err != nil {
		return [PointSize]byte{}, fmt.Errorf("peer public key: %w", err)
	}

	var k [ScalarSize]byte
	copy(k[:], priv)
	clamped := scalar.Clamp(k)
	defer crypto.Zero32(&k)
	defer crypto.Zero32(&clamped)

	return encodeU(Ladder(clamped, u)), nil
}

// IsAllZero reports whether a shared secret is all zeros, which happens
// exactly when the peer key has small order.
func IsAllZero(shared [PointSize]byte) bool {
	return crypto.IsZero(shared[:])
}

// KeyPair is an X25519 key pair. PrivateKey holds the clamped scalar.
type KeyPair struct {
	PublicKey  [PointSize]byte
	PrivateKey [ScalarSize]byte
}

// KeyPairFromPrivate clamps priv and derives the matching public key.
func KeyPairFromPrivate(priv [ScalarSize]byte) *KeyPair {
	kp := &KeyPair{PrivateKey: scalar.Clamp(priv)}
	kp.PublicKey = PublicKey(kp.PrivateKey)
	return kp
}

// GenerateKeyPair creates a key pair from rand, or crypto/rand when nil.
func GenerateKeyPair(rand io.Reader) (*KeyPair, error) {
	priv, err := crypto.Random32(rand)
	if err != nil {
		return nil, err
	}
	defer crypto.Zero32(&priv)
	return KeyPairFromPrivate(priv), nil
}

// Clone returns an independent copy of kp.
func (kp *KeyPair) Clone() *KeyPair {
	c := *kp
	return &c
}

// Wipe zeroes the private key.
func (kp *KeyPair) Wipe() {
	if kp == nil {
		return
	}
	crypto.Zero32(&kp.PrivateKey)
}
