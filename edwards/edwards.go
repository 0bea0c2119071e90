// Package edwards implements group operations on the twisted Edwards curve
// -x^2 + y^2 = 1 + d x^2 y^2 used by Ed25519.
//
// Points are kept in extended coordinates (X:Y:Z:T) with x = X/Z, y = Y/Z
// and xy = T/Z. Addition uses the unified formula from RFC 8032 section
// 5.1.4, which also covers doubling, so no operation branches on whether its
// inputs are equal. Points are only converted to affine form when encoded.
package edwards

import (
	"fmt"

	"github.com/opd-ai/corecrypto/crypto"
	"github.com/opd-ai/corecrypto/field"
	"github.com/opd-ai/corecrypto/scalar"
)

// Point is a point on the Ed25519 curve. The zero value is NOT valid; use
// NewIdentityPoint or NewGeneratorPoint.
type Point struct {
	x, y, z, t field.Element
}

var (
	// d = -121665 / 121666
	d = func() *field.Element {
		var num, den, r field.Element
		num.SetUint64(121665)
		num.Negate(&num)
		den.SetUint64(121666)
		den.Invert(&den)
		return r.Multiply(&num, &den)
	}()
	d2 = new(field.Element).Add(d, d)
)

// generatorBytes is the RFC 8032 encoding of the base point B, y = 4/5.
var generatorBytes = [32]byte{
	0x58, 0x66, 0x66, 0x66, 0x66, 0x66, 0x66, 0x66,
	0x66, 0x66, 0x66, 0x66, 0x66, 0x66, 0x66, 0x66,
	0x66, 0x66, 0x66, 0x66, 0x66, 0x66, 0x66, 0x66,
	0x66, 0x66, 0x66, 0x66, 0x66, 0x66, 0x66, 0x66,
}

var generator = func() *Point {
	p, err := new(Point).SetBytes(generatorBytes[:])
	if err != nil {
		panic("edwards: invalid generator encoding")
	}
	return p
}()

// NewIdentityPoint returns a new Point set to the identity (0, 1).
func NewIdentityPoint() *Point {
	p := &Point{}
	p.x.Zero()
	p.y.One()
	p.z.One()
	p.t.Zero()
	return p
}

// NewGeneratorPoint returns a new Point set to the base point B.
func NewGeneratorPoint() *Point {
	return new(Point).Set(generator)
}

// Set sets v = u, and returns v.
func (v *Point) Set(u *Point) *Point {
	*v = *u
	return v
}

// Add sets v = p + q, and returns v. It is valid for p == q.
func (v *Point) Add(p, q *Point) *Point {
	var a, b, c, dd, e, f, g, h, tmp field.Element

	a.Subtract(&p.y, &p.x)
	tmp.Subtract(&q.y, &q.x)
	a.Multiply(&a, &tmp)

	b.Add(&p.y, &p.x)
	tmp.Add(&q.y, &q.x)
	b.Multiply(&b, &tmp)

	c.Multiply(&p.t, d2)
	c.Multiply(&c, &q.t)

	dd.Add(&p.z, &p.z)
	dd.Multiply(&dd, &q.z)

	e.Subtract(&b, &a)
	f.Subtract(&dd, &c)
	g.Add(&dd, &c)
	h.Add(&b, &a)

	v.x.Multiply(&e, &f)
	v.y.Multiply(&g, &h)
	v.t.Multiply(&e, &h)
	v.z.Multiply(&f, &g)
	return v
}

// Double sets v = p + p, and returns v.
func (v *Point) Double(p *Point) *Point {
	return v.Add(p, p)
}

// Negate sets v = -p, and returns v.
func (v *Point) Negate(p *Point) *Point {
	v.x.Negate(&p.x)
	v.y.Set(&p.y)
	v.z.Set(&p.z)
	v.t.Negate(&p.t)
	return v
}

// Select sets v to a if cond == 1 and to b if cond == 0.
func (v *Point) Select(a, b *Point, cond int) *Point {
	v.x.Select(&a.x, &b.x, cond)
	v.y.Select(&a.y, &b.y, cond)
	v.z.Select(&a.z, &b.z, cond)
	v.t.Select(&a.t, &b.t, cond)
	return v
}

// ScalarMult sets v = s * p, and returns v. It walks all 256 bits of s from
// the least significant end, always computing the addition and selecting the
// result, so the operation count is independent of s.
func (v *Point) ScalarMult(s *scalar.Scalar, p *Point) *Point {
	acc := NewIdentityPoint()
	addend := new(Point).Set(p)
	var sum Point
	for i := 0; i < 256; i++ {
		sum.Add(acc, addend)
		acc.Select(&sum, acc, s.Bit(i))
		addend.Double(addend)
	}
	return v.Set(acc)
}

// ScalarBaseMult sets v = s * B, and returns v.
func (v *Point) ScalarBaseMult(s *scalar.Scalar) *Point {
	return v.ScalarMult(s, generator)
}

// MultByCofactor sets v = 8 * p, and returns v.
func (v *Point) MultByCofactor(p *Point) *Point {
	v.Double(p)
	v.Double(v)
	return v.Double(v)
}

// ToAffine returns the affine coordinates (x, y) of v using a single
// inversion.
func (v *Point) ToAffine() (x, y *field.Element) {
	var zInv field.Element
	zInv.Invert(&v.z)
	x = new(field.Element).Multiply(&v.x, &zInv)
	y = new(field.Element).Multiply(&v.y, &zInv)
	return x, y
}

// Bytes returns the RFC 8032 encoding of v: y in little-endian with the sign
// of x in the top bit.
func (v *Point) Bytes() [32]byte {
	x, y := v.ToAffine()
	out := y.Bytes()
	out[31] |= byte(x.IsNegative() << 7)
	return out
}

// SetBytes sets v to the point encoded by b, and returns v. It follows RFC
// 8032 section 5.1.3: y must be canonical, x^2 must be a square, and an
// encoding of x = 0 must not carry the sign bit.
func (v *Point) SetBytes(b []byte) (*Point, error) {
	if len(b) != 32 {
		return nil, fmt.Errorf("%w: point must be 32 bytes, got %d", crypto.ErrInvalidLength, len(b))
	}

	var y field.Element
	if _, err := y.SetBytes(b); err != nil {
		return nil, err
	}
	canonical := y.Bytes()
	masked := [32]byte{}
	copy(masked[:], b)
	masked[31] &= 0x7f
	if canonical != masked {
		return nil, fmt.Errorf("%w: non-canonical y coordinate", crypto.ErrInvalidEncoding)
	}

	// x^2 = (y^2 - 1) / (d y^2 + 1)
	var y2, u, w, x field.Element
	y2.Square(&y)
	u.Subtract(&y2, new(field.Element).One())
	w.Multiply(&y2, d)
	w.Add(&w, new(field.Element).One())

	if _, ok := x.SqrtRatio(&u, &w); ok != 1 {
		return nil, fmt.Errorf("%w: point is not on the curve", crypto.ErrInvalidEncoding)
	}

	sign := int(b[31] >> 7)
	if x.IsZero() == 1 && sign == 1 {
		return nil, fmt.Errorf("%w: negative zero x coordinate", crypto.ErrInvalidEncoding)
	}
	var negX field.Element
	negX.Negate(&x)
	x.Select(&negX, &x, x.IsNegative()^sign)

	v.x.Set(&x)
	v.y.Set(&y)
	v.z.One()
	v.t.Multiply(&x, &y)
	return v, nil
}

// Equal returns 1 if v and u represent the same point, and 0 otherwise.
func (v *Point) Equal(u *Point) int {
	var t1, t2, t3, t4 field.Element
	t1.Multiply(&v.x, &u.z)
	t2.Multiply(&u.x, &v.z)
	t3.Multiply(&v.y, &u.z)
	t4.Multiply(&u.y, &v.z)
	return t1.Equal(&t2) & t3.Equal(&t4)
}
