// Package aead seals opaque payloads under a 32-byte symmetric key with
// XChaCha20-Poly1305.
//
// Every Encrypt call draws a fresh random 24-byte nonce. The extended nonce
// makes random nonces safe for the lifetime of a key, so callers never manage
// nonce state. Counter-based nonces are used only by the channel package,
// under per-epoch keys.
package aead

import (
	"crypto/cipher"
	"fmt"
	"io"

	"github.com/opd-ai/corecrypto/crypto"
	"github.com/opd-ai/corecrypto/limits"
	"golang.org/x/crypto/chacha20poly1305"
)

const (
	// KeySize is the required key length.
	KeySize = chacha20poly1305.KeySize
	// NonceSize is the length of the random nonce.
	NonceSize = chacha20poly1305.NonceSizeX
)

// Sealed is an encrypted payload together with its nonce. Both fields are
// base64 in JSON.
type Sealed struct {
	Nonce      []byte `json:"nonce"`
	Ciphertext []byte `json:"ciphertext"`
}

func newCipher(key []byte) (cipher.AEAD, error) {
	if len(key) != KeySize {
		return nil, fmt.Errorf("%w: key must be %d bytes, got %d", crypto.ErrInvalidLength, KeySize, len(key))
	}
	c, err := chacha20poly1305.NewX(key)
	if err != nil {
		return nil, fmt.Errorf("%w: %v", crypto.ErrInvalidLength, err)
	}
	return c, nil
}

// Encrypt seals plaintext and optional associated data under key with a
// fresh nonce from rand (crypto/rand when nil).
func Encrypt(key, plaintext, ad []byte, rand io.Reader) ([NonceSize]byte, []byte, error) {
	var nonce [NonceSize]byte
	if err := limits.ValidatePlaintext(plaintext); err != nil {
		return nonce, nil, err
	}
	c, err := newCipher(key)
	if err != nil {
		return nonce, nil, err
	}
	if err := crypto.ReadRandom(rand, nonce[:]); err != nil {
		return nonce, nil, err
	}
	return nonce, c.Seal(nil, nonce[:], plaintext, ad), nil
}

// Decrypt opens ciphertext. Any authentication failure returns
// ErrAuthenticationFailed and a nil plaintext.
func Decrypt(key, nonce, ciphertext, ad []byte) ([]byte, error) {
	if len(nonce) != NonceSize {
		return nil, fmt.Errorf("%w: nonce must be %d bytes, got %d", crypto.ErrInvalidLength, NonceSize, len(nonce))
	}
	if err := limits.ValidateCiphertext(ciphertext); err != nil {
		return nil, err
	}
	c, err := newCipher(key)
	if err != nil {
		return nil, err
	}
	plaintext, err := c.Open(nil, nonce, ciphertext, ad)
	if err != nil {
		crypto.NewLogger("aead", "Decrypt").
			WithField("ciphertext_size", len(ciphertext)).
			Debug("Rejected ciphertext with invalid tag")
		return nil, fmt.Errorf("%w: tag mismatch", crypto.ErrAuthenticationFailed)
	}
	return plaintext, nil
}

// Seal is Encrypt returning a Sealed value.
func Seal(key, plaintext, ad []byte, rand io.Reader) (*Sealed, error) {
	nonce, ct, err := Encrypt(key, plaintext, ad, rand)
	if err != nil {
		return nil, err
	}
	return &Sealed{Nonce: nonce[:], Ciphertext: ct}, nil
}

// Open is Decrypt taking a Sealed value.
func Open(key []byte, s *Sealed, ad []byte) ([]byte, error) {
	if s == nil {
		return nil, fmt.Errorf("%w: nil sealed payload", crypto.ErrMissingFields)
	}
	return Decrypt(key, s.Nonce, s.Ciphertext, ad)
}
