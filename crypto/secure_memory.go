package crypto

import (
	"crypto/subtle"
	"errors"
	"runtime"
)

// SecureWipe overwrites a byte slice holding key material with zeros.
// It returns an error if the slice is nil.
func SecureWipe(data []byte) error {
	if data == nil {
		return errors.New("cannot wipe nil data")
	}

	// The compare keeps the overwrite observable to the compiler.
	zeros := make([]byte, len(data))
	subtle.ConstantTimeCompare(data, zeros)
	copy(data, zeros)

	runtime.KeepAlive(data)
	runtime.KeepAlive(zeros)

	return nil
}

// ZeroBytes erases a byte slice, ignoring the nil error from SecureWipe.
func ZeroBytes(data []byte) {
	_ = SecureWipe(data)
}

// Zero32 erases a fixed-size key buffer in place.
func Zero32(key *[32]byte) {
	if key == nil {
		return
	}
	ZeroBytes(key[:])
}

// IsZero reports in constant time whether every byte of data is zero.
func IsZero(data []byte) bool {
	var acc byte
	for _, b := range data {
		acc |= b
	}
	return subtle.ConstantTimeByteEq(acc, 0) == 1
}
