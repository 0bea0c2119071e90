package channel

import (
	"bytes"
	"encoding/binary"
	"fmt"

	"github.com/flynn/noise"
	"github.com/opd-ai/corecrypto/crypto"
	"github.com/opd-ai/corecrypto/limits"
)

// NonceSize is the ChaCha20-Poly1305 nonce length.
const NonceSize = 12

// Message is one encrypted channel record.
type Message struct {
	Epoch      uint32 `json:"epoch"`
	Counter    uint32 `json:"counter"`
	Nonce      []byte `json:"nonce"`
	Ciphertext []byte `json:"ciphertext"`
}

// nonceValue packs epoch and counter into the 64-bit AEAD nonce. The cipher
// lays it out as four zero bytes followed by the value in little-endian.
func nonceValue(epoch, counter uint32) uint64 {
	return uint64(epoch)<<32 | uint64(counter)
}

// NonceBytes returns the 12-byte nonce used for (epoch, counter).
func NonceBytes(epoch, counter uint32) []byte {
	nonce := make([]byte, NonceSize)
	binary.LittleEndian.PutUint64(nonce[4:], nonceValue(epoch, counter))
	return nonce
}

// associatedData binds the record header to the caller's associated data.
func associatedData(epoch, counter uint32, ad []byte) []byte {
	out := make([]byte, 8, 8+len(ad))
	binary.BigEndian.PutUint32(out[0:4], epoch)
	binary.BigEndian.PutUint32(out[4:8], counter)
	return append(out, ad...)
}

// Send encrypts plaintext under the current epoch. ad is authenticated but
// not encrypted and must be passed unchanged to Receive.
func (s *Session) Send(plaintext, ad []byte) (*Message, error) {
	s.mu.Lock()
	defer s.mu.Unlock()

	switch s.state {
	case Closed:
		return nil, crypto.ErrChannelClosed
	case Established, Rekeying:
	default:
		return nil, fmt.Errorf("%w: cannot send while %s", crypto.ErrInvalidState, s.state)
	}
	if err := limits.ValidatePlaintext(plaintext); err != nil {
		return nil, err
	}

	keys := s.current
	if keys.sendCounter >= s.maxCounter {
		s.logger("Send").WithField("epoch", keys.epoch).Warn("Send counter exhausted, rekey required")
		return nil, fmt.Errorf("%w: epoch %d sent %d messages", crypto.ErrNonceExhausted, keys.epoch, keys.sendCounter)
	}
	counter := keys.sendCounter
	keys.sendCounter++

	c := noise.CipherChaChaPoly.Cipher(keys.sendKey)
	ct := c.Encrypt(nil, nonceValue(keys.epoch, counter), associatedData(keys.epoch, counter, ad), plaintext)
	return &Message{
		Epoch:      keys.epoch,
		Counter:    counter,
		Nonce:      NonceBytes(keys.epoch, counter),
		Ciphertext: ct,
	}, nil
}

// Receive authenticates and decrypts msg. Counters must increase strictly
// within an epoch. Messages of the previous epoch are accepted only while
// its grace window is open.
func (s *Session) Receive(msg *Message, ad []byte) ([]byte, error) {
	s.mu.Lock()
	defer s.mu.Unlock()

	if s.state == Closed {
		return nil, crypto.ErrChannelClosed
	}
	if s.current == nil {
		return nil, fmt.Errorf("%w: cannot receive while %s", crypto.ErrInvalidState, s.state)
	}
	if msg == nil {
		return nil, fmt.Errorf("%w: nil message", crypto.ErrMissingFields)
	}
	if err := limits.ValidateCiphertext(msg.Ciphertext); err != nil {
		return nil, err
	}
	s.expirePreviousLocked()

	keys, err := s.keysForLocked(msg.Epoch)
	if err != nil {
		return nil, err
	}
	if msg.Nonce != nil && !bytes.Equal(msg.Nonce, NonceBytes(msg.Epoch, msg.Counter)) {
		return nil, fmt.Errorf("%w: nonce does not match epoch and counter", crypto.ErrInvalidEncoding)
	}
	if uint64(msg.Counter) < keys.recvNext {
		return nil, fmt.Errorf("%w: epoch %d counter %d", crypto.ErrReplayedCounter, msg.Epoch, msg.Counter)
	}

	c := noise.CipherChaChaPoly.Cipher(keys.recvKey)
	plaintext, err := c.Decrypt(nil, nonceValue(msg.Epoch, msg.Counter), associatedData(msg.Epoch, msg.Counter, ad), msg.Ciphertext)
	if err != nil {
		s.logger("Receive").WithField("epoch", msg.Epoch).Debug("Record failed authentication")
		return nil, fmt.Errorf("%w: channel record", crypto.ErrAuthenticationFailed)
	}
	keys.recvNext = uint64(msg.Counter) + 1

	if keys == s.current && s.previous != nil {
		// The peer has moved to the new epoch; nothing older can arrive.
		s.previous.wipe()
		s.previous = nil
		s.logger("Receive").WithField("epoch", keys.epoch).Debug("Discarded previous epoch keys")
	}
	return plaintext, nil
}

func (s *Session) keysForLocked(epoch uint32) (*epochKeys, error) {
	switch {
	case epoch == s.current.epoch:
		return s.current, nil
	case s.previous != nil && epoch == s.previous.epoch:
		return s.previous, nil
	case epoch > s.current.epoch:
		return nil, fmt.Errorf("%w: epoch %d ahead of %d", crypto.ErrUnknownEpoch, epoch, s.current.epoch)
	default:
		return nil, fmt.Errorf("%w: epoch %d behind %d", crypto.ErrStaleEpoch, epoch, s.current.epoch)
	}
}

// expirePreviousLocked drops the previous epoch once its grace window has
// elapsed.
func (s *Session) expirePreviousLocked() {
	if s.previous == nil {
		return
	}
	if s.clock.Since(s.rekeyedAt) < s.grace {
		return
	}
	s.previous.wipe()
	s.previous = nil
	s.logger("expirePrevious").Debug("Grace window elapsed, discarded previous epoch keys")
}
