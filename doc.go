// Package corecrypto is the cryptographic core shared by the node services:
// Curve25519 key agreement, Ed25519 signatures, key derivation, signed
// packet authentication, packet encryption and an authenticated secure
// channel with rekeying.
//
// Services treat the core as a library. Storage, discovery and transport
// stay outside; the core reaches them only through the collaborator
// interfaces in package interfaces.
//
// # Getting Started
//
//	directory := memory.NewKeyDirectory()
//	replay := memory.NewReplayStore(0, nil)
//	defer replay.Close()
//
//	options := corecrypto.NewOptions()
//	options.Resolver = directory
//	options.NonceGuard = replay
//	options.NonceRecorder = replay
//
//	core, err := corecrypto.New(options)
//	if err != nil {
//	    log.Fatal(err)
//	}
//
//	kp, _ := core.GenerateKeyPair()
//	_ = directory.Register("node-1", kp.PublicKey[:])
//
//	pkt, _ := core.BuildSignedPacket("node-1", map[string]any{"op": "ping"}, kp.Seed[:])
//	res, err := core.VerifySignedPacket(ctx, pkt)
//
// # Core Types
//
//   - [Core]: the facade over every operation
//   - [Options]: provider choice, skew window, grace period and collaborators
//
// # Configuration
//
// [NewOptions] reads CORECRYPTO_PROVIDER, CORECRYPTO_MAX_SKEW_SECONDS,
// CORECRYPTO_REKEY_GRACE_MS and CORECRYPTO_REQUIRE_CHANNEL_AUTH through
// package factory.
//
// # Errors
//
// Every failure carries a stable reason code from package crypto. Use
// errors.Is with the crypto sentinels, or crypto.CodeOf:
//
//	if errors.Is(err, crypto.ErrReplayNonce) {
//	    // duplicate delivery
//	}
//
// # Security Notes
//
// DeriveSharedSecret does not reject low-order peer keys, and the mnemonic
// stretch in DeriveKeysFromMnemonic is a fixed 1000-round SHA-256 chain.
// Neither is suitable where those properties matter.
package corecrypto
