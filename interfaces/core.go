package interfaces

import (
	"context"
	"errors"
	"fmt"
	"time"
)

// IPublicKeyResolver looks up the Ed25519 public key registered for a node.
// It may block on I/O; callers bound it with ctx.
type IPublicKeyResolver interface {
	// ResolvePublicKey returns the node's key and true, or false when the
	// node is unknown. A non-nil error means the lookup itself failed.
	ResolvePublicKey(ctx context.Context, nodeID string) (publicKey [32]byte, found bool, err error)
}

// INonceGuard answers whether a (node, nonce) pair was already accepted.
type INonceGuard interface {
	HasSeenNonce(ctx context.Context, nodeID, nonce string) (bool, error)
}

// INonceRecorder remembers a (node, nonce) pair once a packet carrying it
// has been fully verified.
type INonceRecorder interface {
	RecordNonce(ctx context.Context, nodeID, nonce string, seenAt time.Time) error
}

// ICurveProvider is the capability interface over the Curve25519 and
// Ed25519 primitives. Implementations are interchangeable and selected at
// construction time.
type ICurveProvider interface {
	// Name identifies the implementation in logs and configuration.
	Name() string

	// SigningPublicKey returns the Ed25519 public key for a 32-byte seed.
	SigningPublicKey(seed []byte) ([32]byte, error)

	// Sign produces a deterministic Ed25519 signature.
	Sign(seed, message []byte) ([64]byte, error)

	// Verify reports whether signature is valid. Malformed input is false.
	Verify(publicKey, message, signature []byte) bool

	// ExchangePublicKey returns the X25519 public key for a raw private key.
	ExchangePublicKey(privateKey [32]byte) ([32]byte, error)

	// ECDH computes the X25519 shared secret without rejecting low-order
	// peer keys.
	ECDH(privateKey, peerPublicKey []byte) ([32]byte, error)
}

// ResolverFunc adapts a plain function to IPublicKeyResolver.
type ResolverFunc func(ctx context.Context, nodeID string) ([32]byte, bool, error)

// ResolvePublicKey calls f.
func (f ResolverFunc) ResolvePublicKey(ctx context.Context, nodeID string) ([32]byte, bool, error) {
	return f(ctx, nodeID)
}

// NonceGuardFunc adapts a plain predicate to INonceGuard.
type NonceGuardFunc func(ctx context.Context, nodeID, nonce string) (bool, error)

// HasSeenNonce calls f.
func (f NonceGuardFunc) HasSeenNonce(ctx context.Context, nodeID, nonce string) (bool, error) {
	return f(ctx, nodeID, nonce)
}

// ProviderKind names a curve provider implementation.
type ProviderKind string

const (
	// ProviderPure selects the arithmetic implemented in this module.
	ProviderPure ProviderKind = "pure"
	// ProviderPlatform selects golang.org/x/crypto and crypto/ed25519.
	ProviderPlatform ProviderKind = "platform"
)

// Validation bounds for CoreConfig.
const (
	MinMaxSkewSeconds   = 1
	MaxMaxSkewSeconds   = 86400
	MinRekeyGracePeriod = 0
	MaxRekeyGracePeriod = 600000
)

var (
	// ErrInvalidProvider indicates an unknown provider kind.
	ErrInvalidProvider = errors.New("invalid curve provider")
	// ErrInvalidSkew indicates a skew window outside its bounds.
	ErrInvalidSkew = errors.New("invalid max skew")
	// ErrInvalidGracePeriod indicates a rekey grace period outside its bounds.
	ErrInvalidGracePeriod = errors.New("invalid rekey grace period")
)

// CoreConfig holds the tunables shared by the packet and channel layers.
type CoreConfig struct {
	// Provider selects the primitive back-end
	Provider ProviderKind

	// MaxSkewSeconds is the accepted clock difference for signed packets
	MaxSkewSeconds int

	// RekeyGracePeriod is how long, in milliseconds, previous-epoch keys stay
	// usable after a rekey
	RekeyGracePeriod int

	// RequireChannelAuth makes channels demand signed handshake messages
	RequireChannelAuth bool
}

// MaxSkew returns MaxSkewSeconds as a duration.
func (c *CoreConfig) MaxSkew() time.Duration {
	return time.Duration(c.MaxSkewSeconds) * time.Second
}

// GracePeriod returns RekeyGracePeriod as a duration.
func (c *CoreConfig) GracePeriod() time.Duration {
	return time.Duration(c.RekeyGracePeriod) * time.Millisecond
}

// Validate checks every field against its bounds.
func (c *CoreConfig) Validate() error {
	switch c.Provider {
	case ProviderPure, ProviderPlatform:
	default:
		return fmt.Errorf("%w: %q", ErrInvalidProvider, c.Provider)
	}
	if c.MaxSkewSeconds < MinMaxSkewSeconds || c.MaxSkewSeconds > MaxMaxSkewSeconds {
		return fmt.Errorf("%w: %d not in [%d, %d]", ErrInvalidSkew, c.MaxSkewSeconds, MinMaxSkewSeconds, MaxMaxSkewSeconds)
	}
	if c.RekeyGracePeriod < MinRekeyGracePeriod || c.RekeyGracePeriod > MaxRekeyGracePeriod {
		return fmt.Errorf("%w: %d not in [%d, %d]", ErrInvalidGracePeriod, c.RekeyGracePeriod, MinRekeyGracePeriod, MaxRekeyGracePeriod)
	}
	return nil
}
