package field

// pMinus5Over8 is (p - 5) / 8 = 2^252 - 3 in little-endian order.
var pMinus5Over8 = [32]byte{
	0xfd, 0xff, 0xff, 0xff, 0xff, 0xff, 0xff, 0xff,
	0xff, 0xff, 0xff, 0xff, 0xff, 0xff, 0xff, 0xff,
	0xff, 0xff, 0xff, 0xff, 0xff, 0xff, 0xff, 0xff,
	0xff, 0xff, 0xff, 0xff, 0xff, 0xff, 0xff, 0x0f,
}

// pMinus1Over4 is (p - 1) / 4 = 2^253 - 5 in little-endian order.
var pMinus1Over4 = [32]byte{
	0xfb, 0xff, 0xff, 0xff, 0xff, 0xff, 0xff, 0xff,
	0xff, 0xff, 0xff, 0xff, 0xff, 0xff, 0xff, 0xff,
	0xff, 0xff, 0xff, 0xff, 0xff, 0xff, 0xff, 0xff,
	0xff, 0xff, 0xff, 0xff, 0xff, 0xff, 0xff, 0x1f,
}

// sqrtM1 is 2^((p-1)/4), a square root of -1 mod p.
var sqrtM1 = func() *Element {
	var two, r Element
	two.SetUint64(2)
	return r.Pow(&two, pMinus1Over4)
}()

// SqrtM1 returns a fresh copy of the square root of -1.
func SqrtM1() *Element {
	return new(Element).Set(sqrtM1)
}

// SqrtRatio sets r to a square root of u/v and returns (r, 1) when one
// exists, following RFC 8032 section 5.1.3. Otherwise it returns (r, 0) with
// r unspecified. The root is not normalized to a particular sign.
func (r *Element) SqrtRatio(u, v *Element) (*Element, int) {
	var v3, v7, uv3, uv7, x, check, negU, xI Element

	v3.Square(v)
	v3.Multiply(&v3, v) // v^3
	v7.Square(&v3)
	v7.Multiply(&v7, v)  // v^7
	uv3.Multiply(u, &v3) // u v^3
	uv7.Multiply(u, &v7) // u v^7

	// x = u v^3 (u v^7)^((p-5)/8)
	x.Pow(&uv7, pMinus5Over8)
	x.Multiply(&x, &uv3)

	check.Square(&x)
	check.Multiply(&check, v) // v x^2

	negU.Negate(u)
	correct := check.Equal(u)
	flipped := check.Equal(&negU)

	xI.Multiply(&x, sqrtM1)
	r.Select(&xI, &x, flipped)

	return r, correct | flipped
}
