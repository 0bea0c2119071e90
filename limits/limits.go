package limits

import (
	"fmt"

	"github.com/opd-ai/corecrypto/crypto"
)

const (
	// MaxPlaintext is the largest payload accepted by packet encryption and
	// channel sends (1 MiB).
	MaxPlaintext = 1024 * 1024

	// AEADOverhead is the Poly1305 tag appended by every AEAD seal.
	AEADOverhead = 16

	// MaxCiphertext is the largest sealed payload, MaxPlaintext plus the tag.
	MaxCiphertext = MaxPlaintext + AEADOverhead

	// MaxPacketSize bounds any encoded signed or routing packet before it is
	// parsed (4 MiB). It prevents memory exhaustion from untrusted peers.
	MaxPacketSize = 4 * 1024 * 1024
)

var (
	// ErrMessageEmpty indicates an empty message was provided
	ErrMessageEmpty = fmt.Errorf("%w: empty message", crypto.ErrInvalidLength)

	// ErrMessageTooLarge indicates message exceeds maximum size
	ErrMessageTooLarge = fmt.Errorf("%w: message too large", crypto.ErrInvalidLength)

	// ErrMessageTooShort indicates a ciphertext shorter than its tag
	ErrMessageTooShort = fmt.Errorf("%w: message too short", crypto.ErrInvalidLength)
)

// ValidateMessageSize checks message against an arbitrary maximum. Empty
// messages are allowed.
func ValidateMessageSize(message []byte, maxSize int) error {
	if len(message) > maxSize {
		return fmt.Errorf("%w: size %d exceeds limit %d", ErrMessageTooLarge, len(message), maxSize)
	}
	return nil
}

// ValidatePlaintext checks a payload about to be sealed.
func ValidatePlaintext(message []byte) error {
	if err := ValidateMessageSize(message, MaxPlaintext); err != nil {
		return fmt.Errorf("plaintext: %w", err)
	}
	return nil
}

// ValidateCiphertext checks a sealed payload before it is opened. It must
// at least hold the authentication tag.
func ValidateCiphertext(message []byte) error {
	if len(message) < AEADOverhead {
		return fmt.Errorf("%w: ciphertext size %d below tag size %d", ErrMessageTooShort, len(message), AEADOverhead)
	}
	if err := ValidateMessageSize(message, MaxCiphertext); err != nil {
		return fmt.Errorf("ciphertext: %w", err)
	}
	return nil
}

// ValidatePacket checks an encoded packet received from the network.
func ValidatePacket(data []byte) error {
	if len(data) == 0 {
		return ErrMessageEmpty
	}
	if err := ValidateMessageSize(data, MaxPacketSize); err != nil {
		return fmt.Errorf("packet: %w", err)
	}
	return nil
}
