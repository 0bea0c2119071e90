// Package crypto holds the ambient foundation shared by every corecrypto
// package: the typed error taxonomy, structured logging helpers, secure
// randomness, secure memory wiping and an injectable clock.
//
// # Errors
//
// Every failure carries a stable reason [Code]. Sentinels such as
// [ErrInvalidSignature] are wrapped with fmt.Errorf("%w: ...") at the call
// site, and consumers recover the code with errors.Is or [CodeOf]:
//
//	if _, err := verifier.Verify(ctx, pkt); err != nil {
//	    switch crypto.CodeOf(err) {
//	    case crypto.CodeReplayNonce:
//	        // drop silently
//	    case crypto.CodeInvalidSignature:
//	        // penalize peer
//	    }
//	}
//
// Verification failures are ordinary return values. Nothing in the core
// panics on untrusted input.
//
// # Randomness
//
// [ReadRandom] is the single entry point for randomness. It defaults to
// crypto/rand and maps any short read to [ErrNoSecureRandom].
//
// # Secure Memory
//
// [SecureWipe], [ZeroBytes] and [Zero32] erase seeds, scalars, shared secrets
// and session keys once their lifetime ends.
//
// # Deterministic Testing
//
// Components that read the clock accept a [TimeProvider]. Tests inject a
// controllable implementation instead of sleeping.
package crypto
