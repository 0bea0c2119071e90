package packet

import (
	"crypto/sha256"
	"encoding/base64"
	"encoding/hex"
	"encoding/json"
	"fmt"
	"io"

	"github.com/opd-ai/corecrypto/crypto"
	"github.com/opd-ai/corecrypto/interfaces"
	"github.com/opd-ai/corecrypto/limits"
	"github.com/sirupsen/logrus"
)

// NonceSize is the number of random bytes in a signed packet nonce. The
// nonce travels hex-encoded.
const NonceSize = 16

// Auth is the authentication header of a SignedPacket.
type Auth struct {
	NodeID    string `json:"node_id"`
	Timestamp int64  `json:"timestamp"`
	Nonce     string `json:"nonce"`
	BodyHash  string `json:"body_hash"`
	Signature string `json:"signature"`
}

// SignedPacket is an application packet authenticated by its sender's
// Ed25519 key. Body holds canonical JSON.
type SignedPacket struct {
	Auth Auth            `json:"auth"`
	Body json.RawMessage `json:"body"`
}

// authSigningView is Auth without the signature, the object that is
// canonicalized, hashed and signed.
type authSigningView struct {
	NodeID    string `json:"node_id"`
	Timestamp int64  `json:"timestamp"`
	Nonce     string `json:"nonce"`
	BodyHash  string `json:"body_hash"`
}

// SigningDigest returns SHA-256 of the canonical auth header without its
// signature.
func (a *Auth) SigningDigest() ([32]byte, error) {
	canonical, err := Canonicalize(authSigningView{
		NodeID:    a.NodeID,
		Timestamp: a.Timestamp,
		Nonce:     a.Nonce,
		BodyHash:  a.BodyHash,
	})
	if err != nil {
		return [32]byte{}, err
	}
	return sha256.Sum256(canonical), nil
}

// BodyHash returns the hex SHA-256 of the canonical form of body.
func BodyHash(body any) (string, error) {
	canonical, err := Canonicalize(body)
	if err != nil {
		return "", err
	}
	sum := sha256.Sum256(canonical)
	return hex.EncodeToString(sum[:]), nil
}

// Marshal encodes the packet as JSON.
func (p *SignedPacket) Marshal() ([]byte, error) {
	return json.Marshal(p)
}

// ParseSignedPacket decodes a packet received from the network. Field
// presence is checked later by the Verifier.
func ParseSignedPacket(data []byte) (*SignedPacket, error) {
	if err := limits.ValidatePacket(data); err != nil {
		return nil, err
	}
	var p SignedPacket
	if err := json.Unmarshal(data, &p); err != nil {
		return nil, fmt.Errorf("%w: signed packet: %v", crypto.ErrInvalidEncoding, err)
	}
	return &p, nil
}

// Builder creates signed and routing packets.
type Builder struct {
	// Provider performs the signing
	Provider interfaces.ICurveProvider

	// Rand supplies packet nonces; nil means crypto/rand
	Rand io.Reader

	// TimeProvider stamps packets; nil means the system clock
	TimeProvider crypto.TimeProvider
}

// NewBuilder returns a Builder using provider, crypto/rand and the system clock.
func NewBuilder(provider interfaces.ICurveProvider) *Builder {
	return &Builder{Provider: provider}
}

func (b *Builder) nonce(size int) (string, error) {
	buf := make([]byte, size)
	if err := crypto.ReadRandom(b.Rand, buf); err != nil {
		return "", err
	}
	return hex.EncodeToString(buf), nil
}

// Build signs body on behalf of nodeID with the Ed25519 seed.
func (b *Builder) Build(nodeID string, body any, seed []byte) (*SignedPacket, error) {
	logger := crypto.NewLogger("packet", "Build").WithField("node_id", nodeID)

	if nodeID == "" {
		return nil, fmt.Errorf("%w: node_id", crypto.ErrMissingFields)
	}
	canonicalBody, err := Canonicalize(body)
	if err != nil {
		return nil, fmt.Errorf("body: %w", err)
	}
	bodySum := sha256.Sum256(canonicalBody)

	nonce, err := b.nonce(NonceSize)
	if err != nil {
		return nil, err
	}

	auth := Auth{
		NodeID:    nodeID,
		Timestamp: crypto.OrDefault(b.TimeProvider).Now().Unix(),
		Nonce:     nonce,
		BodyHash:  hex.EncodeToString(bodySum[:]),
	}
	digest, err := auth.SigningDigest()
	if err != nil {
		return nil, err
	}
	sig, err := b.Provider.Sign(seed, digest[:])
	if err != nil {
		return nil, fmt.Errorf("sign auth header: %w", err)
	}
	auth.Signature = base64.StdEncoding.EncodeToString(sig[:])

	logger.WithFields(logrus.Fields{
		"timestamp": auth.Timestamp,
		"body_size": len(canonicalBody),
	}).Debug("Built signed packet")

	return &SignedPacket{Auth: auth, Body: canonicalBody}, nil
}
