// Package scalar implements arithmetic modulo the Ed25519 group order
// L = 2^252 + 27742317777372353535851937790883648493.
//
// A Scalar is always reduced into [0, L). The raw clamped 32-byte scalar
// consumed by the Montgomery ladder is a different thing and is produced by
// Clamp without any reduction.
package scalar

import (
	"crypto/subtle"
	"encoding/binary"
	"fmt"
	"math/bits"

	"github.com/opd-ai/corecrypto/crypto"
)

// Size is the length of an encoded scalar.
const Size = 32

// orderLimbs is L as little-endian 64-bit limbs.
var orderLimbs = [4]uint64{
	0x5812631a5cf5d3ed,
	0x14def9dea2f79cd6,
	0x0000000000000000,
	0x1000000000000000,
}

// Scalar is an integer modulo L. The zero value is a valid zero.
type Scalar struct {
	l [4]uint64
}

// NewScalar returns a new zero Scalar.
func NewScalar() *Scalar {
	return &Scalar{}
}

// Set sets s = x, and returns s.
func (s *Scalar) Set(x *Scalar) *Scalar {
	*s = *x
	return s
}

// subOrderIfGreater returns r - L when r >= L and r otherwise, without
// branching on r.
func subOrderIfGreater(r [4]uint64) [4]uint64 {
	var t [4]uint64
	var b uint64
	t[0], b = bits.Sub64(r[0], orderLimbs[0], 0)
	t[1], b = bits.Sub64(r[1], orderLimbs[1], b)
	t[2], b = bits.Sub64(r[2], orderLimbs[2], b)
	t[3], b = bits.Sub64(r[3], orderLimbs[3], b)

	keep := -b // all ones when r < L
	for i := range r {
		r[i] = (r[i] & keep) | (t[i] &^ keep)
	}
	return r
}

// reduceLimbs computes x mod L for a little-endian limb slice of any length
// by shifting in one bit at a time. r stays below L between steps, so 2r+1
// needs at most one conditional subtraction.
func reduceLimbs(x []uint64) [4]uint64 {
	var r [4]uint64
	for i := len(x)*64 - 1; i >= 0; i-- {
		bit := (x[i/64] >> (uint(i) % 64)) & 1
		r[3] = r[3]<<1 | r[2]>>63
		r[2] = r[2]<<1 | r[1]>>63
		r[1] = r[1]<<1 | r[0]>>63
		r[0] = r[0]<<1 | bit
		r = subOrderIfGreater(r)
	}
	return r
}

func bytesToLimbs(b []byte) []uint64 {
	padded := make([]byte, (len(b)+7)/8*8)
	copy(padded, b)
	limbs := make([]uint64, len(padded)/8)
	for i := range limbs {
		limbs[i] = binary.LittleEndian.Uint64(padded[i*8:])
	}
	crypto.ZeroBytes(padded)
	return limbs
}

// ReduceModL interprets b as a little-endian integer of any length and
// returns it reduced modulo L.
func ReduceModL(b []byte) *Scalar {
	limbs := bytesToLimbs(b)
	s := &Scalar{l: reduceLimbs(limbs)}
	for i := range limbs {
		limbs[i] = 0
	}
	return s
}

// SetCanonicalBytes sets s to the 32-byte little-endian encoding x, which
// must already be reduced. It fails with InvalidLength for the wrong size
// and InvalidEncoding for values >= L.
func (s *Scalar) SetCanonicalBytes(x []byte) (*Scalar, error) {
	if len(x) != Size {
		return nil, fmt.Errorf("%w: scalar must be %d bytes, got %d", crypto.ErrInvalidLength, Size, len(x))
	}
	var r [4]uint64
	for i := range r {
		r[i] = binary.LittleEndian.Uint64(x[i*8:])
	}
	if subOrderIfGreater(r) != r {
		return nil, fmt.Errorf("%w: scalar is not reduced modulo the group order", crypto.ErrInvalidEncoding)
	}
	s.l = r
	return s, nil
}

// Bytes returns the canonical 32-byte little-endian encoding of s.
func (s *Scalar) Bytes() [Size]byte {
	var out [Size]byte
	for i, l := range s.l {
		binary.LittleEndian.PutUint64(out[i*8:], l)
	}
	return out
}

// Add sets s = a + b mod L, and returns s.
func (s *Scalar) Add(a, b *Scalar) *Scalar {
	var r [4]uint64
	var c uint64
	r[0], c = bits.Add64(a.l[0], b.l[0], 0)
	r[1], c = bits.Add64(a.l[1], b.l[1], c)
	r[2], c = bits.Add64(a.l[2], b.l[2], c)
	r[3], _ = bits.Add64(a.l[3], b.l[3], c)
	s.l = subOrderIfGreater(r)
	return s
}

// mulWide returns the full 512-bit product a * b.
func mulWide(a, b [4]uint64) [8]uint64 {
	var r [8]uint64
	for i := 0; i < 4; i++ {
		var carry uint64
		for j := 0; j < 4; j++ {
			hi, lo := bits.Mul64(a[i], b[j])
			var c uint64
			lo, c = bits.Add64(lo, r[i+j], 0)
			hi += c
			lo, c = bits.Add64(lo, carry, 0)
			hi += c
			r[i+j] = lo
			carry = hi
		}
		r[i+4] = carry
	}
	return r
}

// Multiply sets s = a * b mod L, and returns s.
func (s *Scalar) Multiply(a, b *Scalar) *Scalar {
	wide := mulWide(a.l, b.l)
	s.l = reduceLimbs(wide[:])
	return s
}

// MulAdd sets s = a * b + c mod L, and returns s.
func (s *Scalar) MulAdd(a, b, c *Scalar) *Scalar {
	wide := mulWide(a.l, b.l)
	var carry uint64
	for i := 0; i < 8; i++ {
		var addend uint64
		if i < 4 {
			addend = c.l[i]
		}
		wide[i], carry = bits.Add64(wide[i], addend, carry)
	}
	s.l = reduceLimbs(wide[:])
	return s
}

// Bit returns bit i of s, for i in [0, 256).
func (s *Scalar) Bit(i int) int {
	return int(s.l[i/64]>>(uint(i)%64)) & 1
}

// Equal returns 1 if s and t are equal, and 0 otherwise.
func (s *Scalar) Equal(t *Scalar) int {
	a, b := s.Bytes(), t.Bytes()
	return subtle.ConstantTimeCompare(a[:], b[:])
}

// IsZero returns 1 if s == 0, and 0 otherwise.
func (s *Scalar) IsZero() int {
	return s.Equal(&Scalar{})
}

// Clamp returns k with bits 0-2 and 255 cleared and bit 254 set. The result
// is the raw scalar used by X25519; it is not reduced modulo L.
func Clamp(k [32]byte) [32]byte {
	k[0] &= 248
	k[31] &= 127
	k[31] |= 64
	return k
}

// PrepareForMul clamps k and reduces it modulo L, producing the scalar that
// multiplies Edwards points during signing and key derivation.
func PrepareForMul(k [32]byte) *Scalar {
	clamped := Clamp(k)
	s := ReduceModL(clamped[:])
	crypto.ZeroBytes(clamped[:])
	return s
}
