// Package channel implements an authenticated secure channel between two
// peers with in-band rekeying.
//
// The handshake exchanges ephemeral X25519 keys, each optionally signed
// with the sender's long-term Ed25519 key. Both sides run ECDH and derive a
// pair of directional keys with HKDF, so the initiator-to-responder key is
// never used in the other direction:
//
//	alice, _ := channel.NewSession(channel.Config{Role: channel.Initiator, LocalStatic: aliceKey, RemoteStatic: bobPub})
//	bob, _ := channel.NewSession(channel.Config{Role: channel.Responder, LocalStatic: bobKey, RemoteStatic: alicePub})
//
//	hello, _ := alice.Start()
//	reply, _ := bob.Accept(hello)
//	_ = alice.Complete(reply)
//
//	msg, _ := alice.Send([]byte("ping"), nil)
//	pt, _ := bob.Receive(msg, nil)
//
// Records are sealed with ChaCha20-Poly1305. The nonce is the epoch and the
// per-epoch send counter packed into one 64-bit value, and the associated
// data repeats both, so a record cannot be moved to another position.
//
// # Rekeying
//
// Either side calls Rekey and the peer answers with AcceptRekey. The new
// epoch starts as soon as the keys are installed. The previous epoch stays
// readable until the first record of the new epoch arrives or the grace
// period passes, whichever comes first. Older records then fail with
// StaleEpoch.
//
// Each epoch also derives a binding value that salts the next epoch's keys
// and is covered by rekey signatures, so a rekey request only verifies in
// the session it was made for.
//
// Any failed handshake check closes the session and wipes its keys.
package channel
