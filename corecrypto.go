package corecrypto

import (
	"context"
	"fmt"
	"io"
	"time"

	"github.com/opd-ai/corecrypto/aead"
	"github.com/opd-ai/corecrypto/channel"
	"github.com/opd-ai/corecrypto/crypto"
	"github.com/opd-ai/corecrypto/eddsa"
	"github.com/opd-ai/corecrypto/factory"
	"github.com/opd-ai/corecrypto/interfaces"
	"github.com/opd-ai/corecrypto/kdf"
	"github.com/opd-ai/corecrypto/packet"
	"github.com/opd-ai/corecrypto/scalar"
	"github.com/opd-ai/corecrypto/x25519"
	"github.com/sirupsen/logrus"
)

// Options configures a Core.
type Options struct {
	// Provider selects the primitive back-end.
	Provider interfaces.ProviderKind

	// MaxSkew is the accepted clock difference for signed and routing
	// packets. It must be a whole number of seconds between 1s and 24h.
	MaxSkew time.Duration

	// RekeyGracePeriod is how long a channel keeps the previous epoch
	// readable after a rekey, at most 10 minutes.
	RekeyGracePeriod time.Duration

	// RequireChannelAuth makes NewChannel demand static keys on both sides.
	RequireChannelAuth bool

	// Resolver maps node ids to Ed25519 public keys for packet verification.
	Resolver interfaces.IPublicKeyResolver

	// NonceGuard and NonceRecorder enable replay protection. Both are
	// optional; a memory.ReplayStore implements both.
	NonceGuard    interfaces.INonceGuard
	NonceRecorder interfaces.INonceRecorder

	// Rand supplies all randomness; nil means crypto/rand.
	Rand io.Reader

	// Time is the clock; nil means the system clock.
	Time crypto.TimeProvider
}

// NewOptions returns options seeded from the factory defaults and the
// CORECRYPTO_* environment variables.
func NewOptions() *Options {
	config := factory.NewProviderFactory().GetCurrentConfig()
	return &Options{
		Provider:           config.Provider,
		MaxSkew:            config.MaxSkew(),
		RekeyGracePeriod:   config.GracePeriod(),
		RequireChannelAuth: config.RequireChannelAuth,
	}
}

func (o *Options) coreConfig() *interfaces.CoreConfig {
	return &interfaces.CoreConfig{
		Provider:           o.Provider,
		MaxSkewSeconds:     int(o.MaxSkew / time.Second),
		RekeyGracePeriod:   int(o.RekeyGracePeriod / time.Millisecond),
		RequireChannelAuth: o.RequireChannelAuth,
	}
}

// Core is the entry point services call for signing, verification, key
// agreement, packet authentication, encryption and channels.
type Core struct {
	options  Options
	provider interfaces.ICurveProvider
	builder  *packet.Builder
	verifier *packet.Verifier
}

// New validates options and builds a Core. A nil options value means
// NewOptions().
func New(options *Options) (*Core, error) {
	if options == nil {
		options = NewOptions()
	}
	config := options.coreConfig()
	if options.MaxSkew%time.Second != 0 {
		return nil, fmt.Errorf("%w: %s is not a whole number of seconds", interfaces.ErrInvalidSkew, options.MaxSkew)
	}
	p, err := factory.NewProviderFactory().CreateProviderWithConfig(config)
	if err != nil {
		return nil, err
	}

	c := &Core{
		options:  *options,
		provider: p,
		builder: &packet.Builder{
			Provider:     p,
			Rand:         options.Rand,
			TimeProvider: options.Time,
		},
		verifier: &packet.Verifier{
			Provider:     p,
			Resolver:     options.Resolver,
			Guard:        options.NonceGuard,
			Recorder:     options.NonceRecorder,
			MaxSkew:      options.MaxSkew,
			TimeProvider: options.Time,
		},
	}

	crypto.NewLogger("corecrypto", "New").WithFields(logrus.Fields{
		"provider":       p.Name(),
		"max_skew":       options.MaxSkew.String(),
		"rekey_grace":    options.RekeyGracePeriod.String(),
		"channel_auth":   options.RequireChannelAuth,
		"replay_guarded": options.NonceGuard != nil,
	}).Info("Created core")
	return c, nil
}

// Provider returns the curve provider in use.
func (c *Core) Provider() interfaces.ICurveProvider {
	return c.provider
}

// GenerateKeyPair creates a random Ed25519 signing key pair.
func (c *Core) GenerateKeyPair() (*eddsa.KeyPair, error) {
	seed, err := crypto.Random32(c.options.Rand)
	if err != nil {
		return nil, err
	}
	pub, err := c.provider.SigningPublicKey(seed[:])
	if err != nil {
		crypto.Zero32(&seed)
		return nil, err
	}
	return &eddsa.KeyPair{PublicKey: pub, Seed: seed}, nil
}

// GenerateExchangeKeyPair creates a random X25519 key pair.
func (c *Core) GenerateExchangeKeyPair() (*x25519.KeyPair, error) {
	priv, err := crypto.Random32(c.options.Rand)
	if err != nil {
		return nil, err
	}
	kp := &x25519.KeyPair{PrivateKey: scalar.Clamp(priv)}
	crypto.Zero32(&priv)
	pub, err := c.provider.ExchangePublicKey(kp.PrivateKey)
	if err != nil {
		kp.Wipe()
		return nil, err
	}
	kp.PublicKey = pub
	return kp, nil
}

// Sign signs message with a 32-byte Ed25519 seed.
func (c *Core) Sign(seed, message []byte) ([64]byte, error) {
	return c.provider.Sign(seed, message)
}

// Verify reports whether signature is a valid signature of message.
func (c *Core) Verify(publicKey, message, signature []byte) bool {
	return c.provider.Verify(publicKey, message, signature)
}

// DeriveSharedSecret runs X25519. Low-order peer keys are not rejected
// here; callers that need contributory behavior check the result with
// x25519.IsAllZero.
func (c *Core) DeriveSharedSecret(privateKey, peerPublicKey []byte) ([32]byte, error) {
	return c.provider.ECDH(privateKey, peerPublicKey)
}

// BuildSignedPacket signs body as nodeID.
func (c *Core) BuildSignedPacket(nodeID string, body any, seed []byte) (*packet.SignedPacket, error) {
	return c.builder.Build(nodeID, body, seed)
}

// VerifySignedPacket runs the signed packet checks with the configured
// resolver and replay guard.
func (c *Core) VerifySignedPacket(ctx context.Context, p *packet.SignedPacket) (*packet.Verification, error) {
	return c.verifier.Verify(ctx, p)
}

// BuildRoutingPacket signs a routing payload as nodeID.
func (c *Core) BuildRoutingPacket(nodeID string, payload any, seed []byte) (*packet.RoutingPacket, error) {
	return c.builder.BuildRouting(nodeID, payload, seed)
}

// VerifyRoutingPacket runs the routing packet checks.
func (c *Core) VerifyRoutingPacket(ctx context.Context, p *packet.RoutingPacket) (*packet.Verification, error) {
	return c.verifier.VerifyRouting(ctx, p)
}

// DeriveSessionKey runs HKDF-SHA256 over secret.
func (c *Core) DeriveSessionKey(secret, salt, info []byte, length int) ([]byte, error) {
	return kdf.DeriveSessionKey(secret, salt, info, length)
}

// EncryptPacket seals plaintext with XChaCha20-Poly1305 under a fresh
// random nonce.
func (c *Core) EncryptPacket(key, plaintext, ad []byte) (*aead.Sealed, error) {
	return aead.Seal(key, plaintext, ad, c.options.Rand)
}

// DecryptPacket opens a payload sealed by EncryptPacket.
func (c *Core) DecryptPacket(key []byte, sealed *aead.Sealed, ad []byte) ([]byte, error) {
	return aead.Open(key, sealed, ad)
}

// DeriveKeysFromMnemonic derives the signing and exchange identity at path.
// The mnemonic stretch is deliberately weak; see package kdf.
func (c *Core) DeriveKeysFromMnemonic(mnemonic, password, path string) (*kdf.Identity, error) {
	return kdf.DeriveIdentity(mnemonic, password, path)
}

// NewChannel creates a channel session using the core's provider, clock,
// randomness and rekey grace period. local and remote may be nil for an
// anonymous channel unless RequireChannelAuth is set.
func (c *Core) NewChannel(role channel.Role, local *eddsa.KeyPair, remote []byte) (*channel.Session, error) {
	return channel.NewSession(channel.Config{
		Role:         role,
		Provider:     c.provider,
		LocalStatic:  local,
		RemoteStatic: remote,
		RequireAuth:  c.options.RequireChannelAuth,
		GracePeriod:  c.options.RekeyGracePeriod,
		Rand:         c.options.Rand,
		Time:         c.options.Time,
	})
}
