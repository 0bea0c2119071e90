package crypto

import (
	"crypto/rand"
	"fmt"
	"io"
)

// ReadRandom fills buf from r, or from crypto/rand.Reader when r is nil.
// A failing or short source is reported as ErrNoSecureRandom; there is no
// fallback to a weaker source.
func ReadRandom(r io.Reader, buf []byte) error {
	if r == nil {
		r = rand.Reader
	}
	if _, err := io.ReadFull(r, buf); err != nil {
		ZeroBytes(buf)
		return fmt.Errorf("%w: %v", ErrNoSecureRandom, err)
	}
	return nil
}

// Random32 returns 32 bytes read through ReadRandom.
func Random32(r io.Reader) ([32]byte, error) {
	var out [32]byte
	if err := ReadRandom(r, out[:]); err != nil {
		return [32]byte{}, err
	}
	return out, nil
}
