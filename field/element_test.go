package field

import (
	"bytes"
	"crypto/rand"
	"math/big"
	"testing"

	"github.com/opd-ai/corecrypto/crypto"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

var bigP = func() *big.Int {
	p := new(big.Int).Lsh(big.NewInt(1), 255)
	return p.Sub(p, big.NewInt(19))
}()

func leToBig(b []byte) *big.Int {
	be := make([]byte, len(b))
	for i := range b {
		be[len(b)-1-i] = b[i]
	}
	return new(big.Int).SetBytes(be)
}

func bigToLE(n *big.Int) []byte {
	out := make([]byte, 32)
	be := n.Bytes()
	for i := range be {
		out[i] = be[len(be)-1-i]
	}
	return out
}

func toBig(v *Element) *big.Int {
	b := v.Bytes()
	return leToBig(b[:])
}

func assertBig(t *testing.T, want, got *big.Int, msgAndArgs ...interface{}) {
	t.Helper()
	assert.Zero(t, want.Cmp(got), msgAndArgs...)
}

func randomElement(t *testing.T) (*Element, *big.Int) {
	t.Helper()
	buf := make([]byte, 32)
	_, err := rand.Read(buf)
	require.NoError(t, err)
	buf[31] &= 0x7f
	v, err := new(Element).SetBytes(buf)
	require.NoError(t, err)
	n := leToBig(buf)
	return v, n.Mod(n, bigP)
}

func TestArithmeticMatchesBigInt(t *testing.T) {
	for i := 0; i < 200; i++ {
		a, an := randomElement(t)
		b, bn := randomElement(t)

		sum := new(Element).Add(a, b)
		want := new(big.Int).Add(an, bn)
		assertBig(t, want.Mod(want, bigP), toBig(sum), "add")

		diff := new(Element).Subtract(a, b)
		want = new(big.Int).Sub(an, bn)
		assertBig(t, want.Mod(want, bigP), toBig(diff), "sub")

		prod := new(Element).Multiply(a, b)
		want = new(big.Int).Mul(an, bn)
		assertBig(t, want.Mod(want, bigP), toBig(prod), "mul")

		sq := new(Element).Square(a)
		want = new(big.Int).Mul(an, an)
		assertBig(t, want.Mod(want, bigP), toBig(sq), "square")
	}
}

func TestAddSubtractRoundTrip(t *testing.T) {
	for i := 0; i < 100; i++ {
		a, _ := randomElement(t)
		b, _ := randomElement(t)

		var d, back Element
		d.Subtract(a, b)
		back.Add(&d, b)
		assert.Equal(t, 1, back.Equal(a))
	}
}

func TestInvert(t *testing.T) {
	for i := 0; i < 50; i++ {
		a, an := randomElement(t)
		if an.Sign() == 0 {
			continue
		}
		var inv, prod, one Element
		inv.Invert(a)
		prod.Multiply(a, &inv)
		one.One()
		require.Equal(t, 1, prod.Equal(&one))

		want := new(big.Int).ModInverse(an, bigP)
		assertBig(t, want, toBig(&inv))
	}

	var zero, inv Element
	inv.Invert(&zero)
	assert.Equal(t, 1, inv.IsZero(), "Invert(0) must be 0")
}

func TestPowMatchesBigInt(t *testing.T) {
	a, an := randomElement(t)
	var e [32]byte
	_, err := rand.Read(e[:])
	require.NoError(t, err)

	got := new(Element).Pow(a, e)
	want := new(big.Int).Exp(an, leToBig(e[:]), bigP)
	assertBig(t, want, toBig(got))
}

func TestSetBytes(t *testing.T) {
	tests := []struct {
		name string
		in   []byte
		want *big.Int
	}{
		{"zero", make([]byte, 32), big.NewInt(0)},
		{"p reduces to zero", bigToLE(bigP), big.NewInt(0)},
		{"p plus one reduces to one", bigToLE(new(big.Int).Add(bigP, big.NewInt(1))), big.NewInt(1)},
		{"bit 255 ignored", append(make([]byte, 31), 0x80), big.NewInt(0)},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			v, err := new(Element).SetBytes(tt.in)
			require.NoError(t, err)
			assertBig(t, tt.want, toBig(v))
		})
	}

	_, err := new(Element).SetBytes(make([]byte, 31))
	assert.Equal(t, crypto.CodeInvalidLength, crypto.CodeOf(err))
	_, err = new(Element).SetBytes(make([]byte, 33))
	assert.ErrorIs(t, err, crypto.ErrInvalidLength)
}

func TestBytesIdempotentOnCanonical(t *testing.T) {
	for i := 0; i < 100; i++ {
		v, _ := randomElement(t)
		enc := v.Bytes()
		w, err := new(Element).SetBytes(enc[:])
		require.NoError(t, err)
		again := w.Bytes()
		assert.True(t, bytes.Equal(enc[:], again[:]))
	}
}

func TestSelectSwap(t *testing.T) {
	a, _ := randomElement(t)
	b, _ := randomElement(t)

	var r Element
	r.Select(a, b, 1)
	assert.Equal(t, 1, r.Equal(a))
	r.Select(a, b, 0)
	assert.Equal(t, 1, r.Equal(b))

	x, y := *a, *b
	x.Swap(&y, 0)
	assert.Equal(t, 1, x.Equal(a))
	x.Swap(&y, 1)
	assert.Equal(t, 1, x.Equal(b))
	assert.Equal(t, 1, y.Equal(a))
}

func TestSqrtM1(t *testing.T) {
	var sq, minusOne, one Element
	one.One()
	minusOne.Negate(&one)
	sq.Square(SqrtM1())
	assert.Equal(t, 1, sq.Equal(&minusOne))
}

func TestSqrtRatio(t *testing.T) {
	for i := 0; i < 20; i++ {
		x, _ := randomElement(t)
		v, _ := randomElement(t)
		if v.IsZero() == 1 {
			continue
		}
		// u = x^2 v has root x (up to sign)
		var u, r, check Element
		u.Square(x)
		u.Multiply(&u, v)

		_, ok := r.SqrtRatio(&u, v)
		require.Equal(t, 1, ok)
		check.Square(&r)
		check.Multiply(&check, v)
		assert.Equal(t, 1, check.Equal(&u))
	}

	// 2 is not a square mod p, so 2/1 has no root
	var two, one, r Element
	two.SetUint64(2)
	one.One()
	_, ok := r.SqrtRatio(&two, &one)
	assert.Equal(t, 0, ok)
}

func TestAbsolute(t *testing.T) {
	a, _ := randomElement(t)
	var abs Element
	abs.Absolute(a)
	assert.Equal(t, 0, abs.IsNegative())
}

func FuzzSetBytesRoundTrip(f *testing.F) {
	f.Add(make([]byte, 32))
	f.Add(bytes.Repeat([]byte{0xff}, 32))
	f.Fuzz(func(t *testing.T, in []byte) {
		v, err := new(Element).SetBytes(in)
		if len(in) != 32 {
			if err == nil {
				t.Fatal("expected length error")
			}
			return
		}
		if err != nil {
			t.Fatalf("SetBytes: %v", err)
		}
		enc := v.Bytes()
		n := leToBig(enc[:])
		if n.Cmp(bigP) >= 0 {
			t.Fatalf("encoding not canonical: %x", enc)
		}
		masked := append([]byte(nil), in...)
		masked[31] &= 0x7f
		want := leToBig(masked)
		want.Mod(want, bigP)
		if want.Cmp(n) != 0 {
			t.Fatalf("decode mismatch: got %v want %v", n, want)
		}
	})
}
