// Package limits provides centralized size limits for sealed payloads and
// encoded packets, so that every component rejects oversized input the same
// way.
//
// # Size Hierarchy
//
//   - MaxPlaintext (1 MiB): the largest payload accepted by packet encryption
//     and by channel sends.
//   - MaxCiphertext: MaxPlaintext plus the 16-byte Poly1305 tag.
//   - MaxPacketSize (4 MiB): the largest encoded signed or routing packet
//     accepted before JSON parsing.
//
// # Errors
//
// All limit errors wrap crypto.ErrInvalidLength, so callers that switch on
// crypto.CodeOf see the stable InvalidLength reason code:
//
//	if err := limits.ValidatePacket(raw); err != nil {
//	    // errors.Is(err, limits.ErrMessageTooLarge) or ErrMessageEmpty
//	}
package limits
