// Package x25519 implements the X25519 Diffie-Hellman function from RFC 7748
// on top of the field package.
//
// Scalar multiplication uses a constant-structure Montgomery ladder over bits
// 254 down to 0 of the clamped scalar. The ladder swaps its two working points
// with a masked conditional swap, so the sequence of field operations does not
// depend on the key.
//
// # Low-Order Points
//
// SharedSecret does not reject peer public keys of small order. Such keys
// produce the all-zero shared secret, which is returned as is. Protocols that
// need contributory behavior check the result with IsAllZero:
//
//	shared, err := x25519.SharedSecret(kp.PrivateKey[:], peer)
//	if err != nil {
//	    return err
//	}
//	if x25519.IsAllZero(shared) {
//	    return errors.New("peer supplied a low-order key")
//	}
package x25519
