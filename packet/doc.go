// Package packet implements the signed packet and routing packet
// authentication protocols.
//
// A SignedPacket carries an opaque JSON body and an auth header. The header
// binds the sender's node id, a Unix-seconds timestamp, a random nonce and
// the SHA-256 of the canonical body; its signature covers the SHA-256 of the
// canonical header without the signature field.
//
// A RoutingPacket is flatter: its signature covers the canonical JSON of all
// other fields directly and its timestamp is in milliseconds.
//
// # Verification
//
// The Verifier walks a packet through Unverified, BodyHashChecked,
// SignatureChecked and Verified, stopping in Rejected at the first failed
// check. Public keys and replay state come from injected collaborators:
//
//	v := &packet.Verifier{
//	    Provider: provider.NewPure(),
//	    Resolver: directory,
//	    Guard:    replayStore,
//	    Recorder: replayStore,
//	}
//	res, err := v.Verify(ctx, pkt)
//	if err != nil {
//	    log.Printf("rejected: %s", res.Reason)
//	}
//
// # Canonicalization
//
// Canonicalize must produce identical bytes on signer and verifier. Object
// keys are sorted at every depth and numbers are kept as written, so a
// large integer never passes through float64.
package packet
