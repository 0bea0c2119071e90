package packet

import (
	"context"
	"encoding/base64"
	"fmt"
	"time"

	"github.com/opd-ai/corecrypto/crypto"
	"github.com/opd-ai/corecrypto/interfaces"
	"github.com/sirupsen/logrus"
)

// DefaultMaxSkew is the accepted clock difference when Verifier.MaxSkew is
// zero.
const DefaultMaxSkew = 300 * time.Second

// State is the verification progress of a packet.
type State int

const (
	// Unverified is the initial state.
	Unverified State = iota
	// BodyHashChecked means the body matches the signed hash.
	BodyHashChecked
	// SignatureChecked means the auth signature verified.
	SignatureChecked
	// Verified is the terminal success state.
	Verified
	// Rejected is the terminal failure state; Verification.Reason says why.
	Rejected
)

func (s State) String() string {
	switch s {
	case Unverified:
		return "Unverified"
	case BodyHashChecked:
		return "BodyHashChecked"
	case SignatureChecked:
		return "SignatureChecked"
	case Verified:
		return "Verified"
	case Rejected:
		return "Rejected"
	default:
		return fmt.Sprintf("State(%d)", int(s))
	}
}

// Verification is the outcome of verifying one packet.
type Verification struct {
	State     State
	Reason    crypto.Code
	NodeID    string
	Nonce     string
	PublicKey [32]byte
}

// Verifier checks signed and routing packets. Guard and Recorder are
// optional; without them replayed packets are not detected.
type Verifier struct {
	Provider     interfaces.ICurveProvider
	Resolver     interfaces.IPublicKeyResolver
	Guard        interfaces.INonceGuard
	Recorder     interfaces.INonceRecorder
	MaxSkew      time.Duration
	TimeProvider crypto.TimeProvider
}

func (v *Verifier) maxSkew() time.Duration {
	if v.MaxSkew <= 0 {
		return DefaultMaxSkew
	}
	return v.MaxSkew
}

// reject moves res to Rejected and returns err, logging the reason.
func (v *Verifier) reject(res *Verification, function string, err error) (*Verification, error) {
	res.State = Rejected
	res.Reason = crypto.CodeOf(err)
	crypto.NewLogger("packet", function).
		WithField("node_id", res.NodeID).
		WithFields(crypto.SecureFieldHash([]byte(res.Nonce), "nonce")).
		WithError(err, "verify").
		Warn("Rejected packet")
	return res, err
}

func (v *Verifier) checkSkew(sent time.Time) error {
	now := crypto.OrDefault(v.TimeProvider).Now()
	skew := crypto.AbsDuration(now.Sub(sent))
	if skew > v.maxSkew() {
		return fmt.Errorf("%w: skew %s exceeds %s", crypto.ErrTimestampOutOfRange, skew, v.maxSkew())
	}
	return nil
}

func (v *Verifier) checkReplay(ctx context.Context, nodeID, nonce string) error {
	if v.Guard == nil {
		return nil
	}
	seen, err := v.Guard.HasSeenNonce(ctx, nodeID, nonce)
	if err != nil {
		// Fail closed when the replay store is unreachable.
		return fmt.Errorf("%w: replay guard: %v", crypto.ErrReplayNonce, err)
	}
	if seen {
		return fmt.Errorf("%w: nonce %s from %s", crypto.ErrReplayNonce, nonce, nodeID)
	}
	return nil
}

func (v *Verifier) resolve(ctx context.Context, nodeID string) ([32]byte, error) {
	if v.Resolver == nil {
		return [32]byte{}, fmt.Errorf("%w: no resolver configured", crypto.ErrUnknownNode)
	}
	key, found, err := v.Resolver.ResolvePublicKey(ctx, nodeID)
	if err != nil {
		return [32]byte{}, fmt.Errorf("%w: resolver: %v", crypto.ErrUnknownNode, err)
	}
	if !found {
		return [32]byte{}, fmt.Errorf("%w: %s", crypto.ErrUnknownNode, nodeID)
	}
	return key, nil
}

func (v *Verifier) checkSignature(publicKey [32]byte, message []byte, encoded string) error {
	sig, err := base64.StdEncoding.DecodeString(encoded)
	if err != nil {
		return fmt.Errorf("%w: signature is not base64", crypto.ErrInvalidSignature)
	}
	if !v.Provider.Verify(publicKey[:], message, sig) {
		return fmt.Errorf("%w: signature does not verify", crypto.ErrInvalidSignature)
	}
	return nil
}

// record stores the nonce of a verified packet. A recorder reporting the
// nonce as already present means a concurrent duplicate won the race.
func (v *Verifier) record(ctx context.Context, res *Verification, function string) error {
	if v.Recorder == nil {
		return nil
	}
	now := crypto.OrDefault(v.TimeProvider).Now()
	err := v.Recorder.RecordNonce(ctx, res.NodeID, res.Nonce, now)
	if err == nil {
		return nil
	}
	if crypto.CodeOf(err) == crypto.CodeReplayNonce {
		return err
	}
	crypto.NewLogger("packet", function).
		WithField("node_id", res.NodeID).
		WithError(err, "record_nonce").
		Warn("Failed to record nonce of verified packet")
	return nil
}

// Verify runs the signed packet checks in order and stops at the first
// failure: required fields, clock skew, replay, body hash, key lookup and
// signature. The nonce is recorded only once the packet is Verified.
func (v *Verifier) Verify(ctx context.Context, p *SignedPacket) (*Verification, error) {
	res := &Verification{State: Unverified}
	if p == nil {
		return v.reject(res, "Verify", fmt.Errorf("%w: nil packet", crypto.ErrMissingFields))
	}
	res.NodeID = p.Auth.NodeID
	res.Nonce = p.Auth.Nonce

	if missing := missingAuthFields(p); len(missing) > 0 {
		return v.reject(res, "Verify", fmt.Errorf("%w: %v", crypto.ErrMissingFields, missing))
	}
	if err := v.checkSkew(time.Unix(p.Auth.Timestamp, 0)); err != nil {
		return v.reject(res, "Verify", err)
	}
	if err := v.checkReplay(ctx, p.Auth.NodeID, p.Auth.Nonce); err != nil {
		return v.reject(res, "Verify", err)
	}

	bodyHash, err := BodyHash(p.Body)
	if err != nil {
		return v.reject(res, "Verify", fmt.Errorf("%w: body: %v", crypto.ErrBodyHashMismatch, err))
	}
	if bodyHash != p.Auth.BodyHash {
		return v.reject(res, "Verify", fmt.Errorf("%w: computed %s", crypto.ErrBodyHashMismatch, bodyHash))
	}
	res.State = BodyHashChecked

	publicKey, err := v.resolve(ctx, p.Auth.NodeID)
	if err != nil {
		return v.reject(res, "Verify", err)
	}
	res.PublicKey = publicKey

	digest, err := p.Auth.SigningDigest()
	if err != nil {
		return v.reject(res, "Verify", err)
	}
	if err := v.checkSignature(publicKey, digest[:], p.Auth.Signature); err != nil {
		return v.reject(res, "Verify", err)
	}
	res.State = SignatureChecked

	if err := v.record(ctx, res, "Verify"); err != nil {
		return v.reject(res, "Verify", err)
	}
	res.State = Verified

	crypto.NewLogger("packet", "Verify").WithFields(logrus.Fields{
		"node_id":   res.NodeID,
		"timestamp": p.Auth.Timestamp,
	}).Debug("Verified signed packet")
	return res, nil
}

func missingAuthFields(p *SignedPacket) []string {
	var missing []string
	if p.Auth.NodeID == "" {
		missing = append(missing, "node_id")
	}
	if p.Auth.Timestamp == 0 {
		missing = append(missing, "timestamp")
	}
	if p.Auth.Nonce == "" {
		missing = append(missing, "nonce")
	}
	if p.Auth.BodyHash == "" {
		missing = append(missing, "body_hash")
	}
	if p.Auth.Signature == "" {
		missing = append(missing, "signature")
	}
	if len(p.Body) == 0 {
		missing = append(missing, "body")
	}
	return missing
}
