// Package interfaces defines the collaborator contracts between the
// protocol core and the services that embed it.
//
// The core keeps no process-wide registries. Public-key lookup and replay
// tracking are injected into verification calls through small interfaces:
//
//   - [IPublicKeyResolver] maps a node id to its Ed25519 public key.
//   - [INonceGuard] answers "have I already accepted this nonce from this node".
//   - [INonceRecorder] remembers nonces of packets that passed verification.
//
// Plain functions satisfy the first two through [ResolverFunc] and
// [NonceGuardFunc]:
//
//	resolver := interfaces.ResolverFunc(func(ctx context.Context, id string) ([32]byte, bool, error) {
//	    key, ok := registry[id]
//	    return key, ok, nil
//	})
//
// [ICurveProvider] is the capability interface over the signature and key
// exchange primitives. The provider package offers a pure implementation
// built on this module's arithmetic and a platform implementation built on
// golang.org/x/crypto.
//
// [CoreConfig] carries the shared tunables and is produced by the factory
// package from environment variables.
package interfaces
