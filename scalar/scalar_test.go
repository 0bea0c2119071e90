package scalar

import (
	"crypto/rand"
	"math/big"
	"testing"

	"filippo.io/edwards25519"
	"github.com/opd-ai/corecrypto/crypto"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

var bigL, _ = new(big.Int).SetString("7237005577332262213973186563042994240857116359379907606001950938285454250989", 10)

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

func randomBytes(t *testing.T, n int) []byte {
	t.Helper()
	b := make([]byte, n)
	_, err := rand.Read(b)
	require.NoError(t, err)
	return b
}

func scalarToBig(s *Scalar) *big.Int {
	b := s.Bytes()
	return leToBig(b[:])
}

func TestOrderConstant(t *testing.T) {
	want := new(big.Int).Lsh(big.NewInt(1), 252)
	tail, _ := new(big.Int).SetString("27742317777372353535851937790883648493", 10)
	want.Add(want, tail)
	require.Zero(t, want.Cmp(bigL))

	var enc [32]byte
	for i, l := range orderLimbs {
		for j := 0; j < 8; j++ {
			enc[i*8+j] = byte(l >> (8 * j))
		}
	}
	assert.Zero(t, bigL.Cmp(leToBig(enc[:])))
}

func TestReduceModLMatchesOracle(t *testing.T) {
	for i := 0; i < 100; i++ {
		wide := randomBytes(t, 64)

		got := ReduceModL(wide)
		oracle, err := edwards25519.NewScalar().SetUniformBytes(wide)
		require.NoError(t, err)

		gotBytes := got.Bytes()
		assert.Equal(t, oracle.Bytes(), gotBytes[:])
	}
}

func TestReduceModLAnyLength(t *testing.T) {
	for _, n := range []int{0, 1, 17, 32, 33, 64, 100} {
		in := randomBytes(t, n)
		want := new(big.Int).Mod(leToBig(in), bigL)
		assert.Zero(t, want.Cmp(scalarToBig(ReduceModL(in))), "length %d", n)
	}
}

func TestMultiplyAndMulAdd(t *testing.T) {
	for i := 0; i < 50; i++ {
		a := ReduceModL(randomBytes(t, 64))
		b := ReduceModL(randomBytes(t, 64))
		c := ReduceModL(randomBytes(t, 64))

		an, bn, cn := scalarToBig(a), scalarToBig(b), scalarToBig(c)

		prod := NewScalar().Multiply(a, b)
		want := new(big.Int).Mul(an, bn)
		assert.Zero(t, want.Mod(want, bigL).Cmp(scalarToBig(prod)))

		ma := NewScalar().MulAdd(a, b, c)
		want = new(big.Int).Mul(an, bn)
		want.Add(want, cn)
		assert.Zero(t, want.Mod(want, bigL).Cmp(scalarToBig(ma)))

		sum := NewScalar().Add(a, b)
		want = new(big.Int).Add(an, bn)
		assert.Zero(t, want.Mod(want, bigL).Cmp(scalarToBig(sum)))
	}
}

func TestSetCanonicalBytes(t *testing.T) {
	lMinusOne := new(big.Int).Sub(bigL, big.NewInt(1))

	tests := []struct {
		name string
		in   []byte
		code crypto.Code
	}{
		{"zero", make([]byte, 32), ""},
		{"L minus one", bigToLE(lMinusOne), ""},
		{"L itself", bigToLE(bigL), crypto.CodeInvalidEncoding},
		{"all ones", []byte{
			0xff, 0xff, 0xff, 0xff, 0xff, 0xff, 0xff, 0xff,
			0xff, 0xff, 0xff, 0xff, 0xff, 0xff, 0xff, 0xff,
			0xff, 0xff, 0xff, 0xff, 0xff, 0xff, 0xff, 0xff,
			0xff, 0xff, 0xff, 0xff, 0xff, 0xff, 0xff, 0xff,
		}, crypto.CodeInvalidEncoding},
		{"short", make([]byte, 31), crypto.CodeInvalidLength},
		{"long", make([]byte, 64), crypto.CodeInvalidLength},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			s, err := NewScalar().SetCanonicalBytes(tt.in)
			if tt.code == "" {
				require.NoError(t, err)
				enc := s.Bytes()
				assert.Equal(t, tt.in, enc[:])
				return
			}
			assert.Equal(t, tt.code, crypto.CodeOf(err))
			assert.Nil(t, s)
		})
	}
}

func TestClamp(t *testing.T) {
	var k [32]byte
	for i := range k {
		k[i] = 0xff
	}
	c := Clamp(k)
	assert.Equal(t, byte(0xf8), c[0])
	assert.Equal(t, byte(0x7f), c[31])

	var z [32]byte
	c = Clamp(z)
	assert.Equal(t, byte(0x40), c[31])
	assert.Equal(t, byte(0), c[0])

	// input array untouched
	assert.Equal(t, byte(0xff), k[0])
}

func TestPrepareForMul(t *testing.T) {
	var k [32]byte
	copy(k[:], randomBytes(t, 32))

	clamped := Clamp(k)
	want := new(big.Int).Mod(leToBig(clamped[:]), bigL)
	assert.Zero(t, want.Cmp(scalarToBig(PrepareForMul(k))))
}

func TestBitAndZero(t *testing.T) {
	s := ReduceModL([]byte{0x05})
	assert.Equal(t, 1, s.Bit(0))
	assert.Equal(t, 0, s.Bit(1))
	assert.Equal(t, 1, s.Bit(2))
	assert.Equal(t, 0, s.IsZero())
	assert.Equal(t, 1, NewScalar().IsZero())

	// L reduces to zero
	assert.Equal(t, 1, ReduceModL(bigToLE(bigL)).IsZero())
}
