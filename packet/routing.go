package packet

import (
	"bytes"
	"context"
	"encoding/base64"
	"encoding/json"
	"fmt"
	"time"

	"github.com/opd-ai/corecrypto/crypto"
	"github.com/opd-ai/corecrypto/limits"
	"github.com/sirupsen/logrus"
)

// RoutingVersion is the only accepted routing packet version.
const RoutingVersion = "routing-crypto-01"

// RoutingNonceSize is the number of random bytes in a routing nonce.
const RoutingNonceSize = 8

// RoutingPacket carries a payload between routing nodes. The signature
// covers the canonical JSON of every other field.
type RoutingPacket struct {
	Version   string          `json:"version"`
	NodeID    string          `json:"node_id"`
	TS        int64           `json:"ts"`
	Nonce     string          `json:"nonce"`
	Payload   json.RawMessage `json:"payload"`
	Signature string          `json:"signature"`
}

type routingSigningView struct {
	Version string          `json:"version"`
	NodeID  string          `json:"node_id"`
	TS      int64           `json:"ts"`
	Nonce   string          `json:"nonce"`
	Payload json.RawMessage `json:"payload"`
}

// SigningBytes returns the canonical JSON of the packet without its
// signature.
func (p *RoutingPacket) SigningBytes() ([]byte, error) {
	return Canonicalize(routingSigningView{
		Version: p.Version,
		NodeID:  p.NodeID,
		TS:      p.TS,
		Nonce:   p.Nonce,
		Payload: p.Payload,
	})
}

// Marshal encodes the packet as JSON.
func (p *RoutingPacket) Marshal() ([]byte, error) {
	return json.Marshal(p)
}

// ParseRoutingPacket decodes a routing packet received from the network.
func ParseRoutingPacket(data []byte) (*RoutingPacket, error) {
	if err := limits.ValidatePacket(data); err != nil {
		return nil, err
	}
	var p RoutingPacket
	dec := json.NewDecoder(bytes.NewReader(data))
	dec.DisallowUnknownFields()
	if err := dec.Decode(&p); err != nil {
		return nil, fmt.Errorf("%w: routing packet: %v", crypto.ErrInvalidEncoding, err)
	}
	if dec.More() {
		return nil, fmt.Errorf("%w: routing packet: trailing data", crypto.ErrInvalidEncoding)
	}
	return &p, nil
}

// validRoutingNonce reports whether nonce is RoutingNonceSize bytes of
// lowercase hex.
func validRoutingNonce(nonce string) bool {
	if len(nonce) != 2*RoutingNonceSize {
		return false
	}
	for i := 0; i < len(nonce); i++ {
		c := nonce[i]
		if (c < '0' || c > '9') && (c < 'a' || c > 'f') {
			return false
		}
	}
	return true
}

// BuildRouting signs payload on behalf of nodeID. The timestamp is in Unix
// milliseconds.
func (b *Builder) BuildRouting(nodeID string, payload any, seed []byte) (*RoutingPacket, error) {
	if nodeID == "" {
		return nil, fmt.Errorf("%w: node_id", crypto.ErrMissingFields)
	}
	canonicalPayload, err := Canonicalize(payload)
	if err != nil {
		return nil, fmt.Errorf("payload: %w", err)
	}
	nonce, err := b.nonce(RoutingNonceSize)
	if err != nil {
		return nil, err
	}

	p := &RoutingPacket{
		Version: RoutingVersion,
		NodeID:  nodeID,
		TS:      crypto.OrDefault(b.TimeProvider).Now().UnixMilli(),
		Nonce:   nonce,
		Payload: canonicalPayload,
	}
	msg, err := p.SigningBytes()
	if err != nil {
		return nil, err
	}
	sig, err := b.Provider.Sign(seed, msg)
	if err != nil {
		return nil, fmt.Errorf("sign routing packet: %w", err)
	}
	p.Signature = base64.StdEncoding.EncodeToString(sig[:])

	crypto.NewLogger("packet", "BuildRouting").WithFields(logrus.Fields{
		"node_id": nodeID,
		"ts":      p.TS,
	}).Debug("Built routing packet")
	return p, nil
}

// VerifyRouting checks a routing packet: version, required fields, nonce
// format, clock skew, replay, key lookup and signature. Routing packets have no separate
// body hash, so a passing packet moves straight to SignatureChecked.
func (v *Verifier) VerifyRouting(ctx context.Context, p *RoutingPacket) (*Verification, error) {
	res := &Verification{State: Unverified}
	if p == nil {
		return v.reject(res, "VerifyRouting", fmt.Errorf("%w: nil packet", crypto.ErrMissingFields))
	}
	res.NodeID = p.NodeID
	res.Nonce = p.Nonce

	if p.Version != RoutingVersion {
		return v.reject(res, "VerifyRouting", fmt.Errorf("%w: unsupported version %q", crypto.ErrInvalidEncoding, p.Version))
	}
	if missing := missingRoutingFields(p); len(missing) > 0 {
		return v.reject(res, "VerifyRouting", fmt.Errorf("%w: %v", crypto.ErrMissingFields, missing))
	}
	if !validRoutingNonce(p.Nonce) {
		return v.reject(res, "VerifyRouting", fmt.Errorf("%w: nonce must be %d hex characters", crypto.ErrInvalidEncoding, 2*RoutingNonceSize))
	}
	if err := v.checkSkew(time.UnixMilli(p.TS)); err != nil {
		return v.reject(res, "VerifyRouting", err)
	}
	if err := v.checkReplay(ctx, p.NodeID, p.Nonce); err != nil {
		return v.reject(res, "VerifyRouting", err)
	}

	publicKey, err := v.resolve(ctx, p.NodeID)
	if err != nil {
		return v.reject(res, "VerifyRouting", err)
	}
	res.PublicKey = publicKey

	msg, err := p.SigningBytes()
	if err != nil {
		return v.reject(res, "VerifyRouting", err)
	}
	if err := v.checkSignature(publicKey, msg, p.Signature); err != nil {
		return v.reject(res, "VerifyRouting", err)
	}
	res.State = SignatureChecked

	if err := v.record(ctx, res, "VerifyRouting"); err != nil {
		return v.reject(res, "VerifyRouting", err)
	}
	res.State = Verified
	return res, nil
}

func missingRoutingFields(p *RoutingPacket) []string {
	var missing []string
	if p.NodeID == "" {
		missing = append(missing, "node_id")
	}
	if p.TS == 0 {
		missing = append(missing, "ts")
	}
	if p.Nonce == "" {
		missing = append(missing, "nonce")
	}
	if len(p.Payload) == 0 {
		missing = append(missing, "payload")
	}
	if p.Signature == "" {
		missing = append(missing, "signature")
	}
	return missing
}
