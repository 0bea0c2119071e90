package channel

import (
	"bytes"
	"encoding/binary"
	"errors"
	"fmt"
	"io"
	"math"
	"sync"
	"time"

	"github.com/opd-ai/corecrypto/crypto"
	"github.com/opd-ai/corecrypto/eddsa"
	"github.com/opd-ai/corecrypto/interfaces"
	"github.com/opd-ai/corecrypto/kdf"
	"github.com/opd-ai/corecrypto/provider"
	"github.com/opd-ai/corecrypto/scalar"
	"github.com/opd-ai/corecrypto/x25519"
	"github.com/sirupsen/logrus"
)

// Role says which side of the handshake a session plays.
type Role uint8

const (
	// Initiator sends the first handshake message and owns the c2s key.
	Initiator Role = iota
	// Responder answers the first handshake message.
	Responder
)

func (r Role) String() string {
	switch r {
	case Initiator:
		return "initiator"
	case Responder:
		return "responder"
	default:
		return fmt.Sprintf("Role(%d)", uint8(r))
	}
}

func (r Role) peer() Role {
	if r == Initiator {
		return Responder
	}
	return Initiator
}

// State is the lifecycle stage of a Session.
type State int

const (
	// Idle is a fresh session.
	Idle State = iota
	// HandshakeSent means the initiator is waiting for the reply.
	HandshakeSent
	// Established means traffic keys are installed.
	Established
	// Rekeying means this side requested a new epoch and awaits the reply.
	// Traffic keeps flowing under the current epoch.
	Rekeying
	// Closed is terminal; all key material has been wiped.
	Closed
)

func (s State) String() string {
	switch s {
	case Idle:
		return "Idle"
	case HandshakeSent:
		return "HandshakeSent"
	case Established:
		return "Established"
	case Rekeying:
		return "Rekeying"
	case Closed:
		return "Closed"
	default:
		return fmt.Sprintf("State(%d)", int(s))
	}
}

const (
	// DefaultGracePeriod is how long the previous epoch stays readable after
	// a rekey when Config.GracePeriod is negative.
	DefaultGracePeriod = 30 * time.Second

	// MaxCounter is the largest number of messages sent per epoch.
	MaxCounter = math.MaxUint32

	transcriptLabel = "corecrypto-channel-v1"
	bindingInfo     = "corecrypto-channel-binding"
)

// Config configures a Session.
type Config struct {
	Role Role

	// Provider performs ECDH and handshake signatures; nil means pure.
	Provider interfaces.ICurveProvider

	// LocalStatic signs our handshake messages when set.
	LocalStatic *eddsa.KeyPair

	// RemoteStatic is the peer's Ed25519 key. When set, every handshake
	// message from the peer must carry a valid signature.
	RemoteStatic []byte

	// RequireAuth refuses unsigned handshakes. It needs both LocalStatic
	// and RemoteStatic.
	RequireAuth bool

	// GracePeriod bounds how long the previous epoch stays readable after
	// a rekey. Zero disables the window; negative selects the default.
	GracePeriod time.Duration

	// MaxCounter caps messages per epoch; zero means MaxCounter.
	MaxCounter uint32

	Rand io.Reader
	Time crypto.TimeProvider
}

// HandshakeMessage carries an ephemeral public key, signed when the sender
// holds a static key. It opens a channel (epoch 0) or a rekey (epoch > 0).
type HandshakeMessage struct {
	Epoch              uint32 `json:"epoch"`
	EphemeralPublicKey []byte `json:"ephemeral_public_key"`
	Signature          []byte `json:"signature,omitempty"`
}

// epochKeys is the key material of one epoch.
type epochKeys struct {
	epoch       uint32
	sendKey     [32]byte
	recvKey     [32]byte
	sendCounter uint32
	// recvNext is the lowest counter still acceptable.
	recvNext uint64
	// binding chains every epoch back to the opening handshake. Rekey
	// signatures cover it and the next epoch's salt starts with it.
	binding [32]byte
}

func (k *epochKeys) wipe() {
	crypto.Zero32(&k.sendKey)
	crypto.Zero32(&k.recvKey)
	crypto.Zero32(&k.binding)
}

// Session is one end of an authenticated channel. All methods are safe for
// concurrent use; send counters are allocated under the session lock.
type Session struct {
	mu sync.Mutex

	role         Role
	provider     interfaces.ICurveProvider
	localStatic  *eddsa.KeyPair
	remoteStatic []byte
	requireAuth  bool
	grace        time.Duration
	maxCounter   uint32
	rand         io.Reader
	clock        crypto.TimeProvider

	state State
	// ephemeral is our pending handshake or rekey key pair.
	ephemeral *x25519.KeyPair
	current   *epochKeys
	previous  *epochKeys
	rekeyedAt time.Time
}

// NewSession validates cfg and returns an Idle session.
func NewSession(cfg Config) (*Session, error) {
	if cfg.Role != Initiator && cfg.Role != Responder {
		return nil, fmt.Errorf("%w: unknown role %d", crypto.ErrInvalidState, cfg.Role)
	}
	if cfg.RemoteStatic != nil && len(cfg.RemoteStatic) != eddsa.PublicKeySize {
		return nil, fmt.Errorf("%w: remote static key must be %d bytes, got %d",
			crypto.ErrInvalidLength, eddsa.PublicKeySize, len(cfg.RemoteStatic))
	}
	if cfg.RequireAuth && (cfg.LocalStatic == nil || cfg.RemoteStatic == nil) {
		return nil, fmt.Errorf("%w: authenticated channel needs local and remote static keys", crypto.ErrInvalidState)
	}

	s := &Session{
		role:        cfg.Role,
		provider:    cfg.Provider,
		requireAuth: cfg.RequireAuth,
		grace:       cfg.GracePeriod,
		maxCounter:  cfg.MaxCounter,
		rand:        cfg.Rand,
		clock:       crypto.OrDefault(cfg.Time),
		state:       Idle,
	}
	if s.provider == nil {
		s.provider = provider.NewPure()
	}
	if s.grace < 0 {
		s.grace = DefaultGracePeriod
	}
	if s.maxCounter == 0 {
		s.maxCounter = MaxCounter
	}
	if cfg.LocalStatic != nil {
		s.localStatic = cfg.LocalStatic.Clone()
	}
	if cfg.RemoteStatic != nil {
		s.remoteStatic = bytes.Clone(cfg.RemoteStatic)
	}
	return s, nil
}

// State returns the current lifecycle stage.
func (s *Session) State() State {
	s.mu.Lock()
	defer s.mu.Unlock()
	return s.state
}

// Epoch returns the current key epoch. It is zero before the handshake
// completes.
func (s *Session) Epoch() uint32 {
	s.mu.Lock()
	defer s.mu.Unlock()
	if s.current == nil {
		return 0
	}
	return s.current.epoch
}

// Role returns the session role.
func (s *Session) Role() Role {
	return s.role
}

func (s *Session) logger(function string) *crypto.LoggerHelper {
	return crypto.NewLogger("channel", function).WithFields(logrus.Fields{
		"role":  s.role.String(),
		"state": s.state.String(),
	})
}

// transcript is the byte string a handshake signature covers. binding is
// empty for the opening handshake and the current epoch's binding for a
// rekey.
func transcript(role Role, epoch uint32, binding, ephemeral, peerEphemeral []byte) []byte {
	buf := make([]byte, 0, len(transcriptLabel)+1+4+len(binding)+2*x25519.PointSize)
	buf = append(buf, transcriptLabel...)
	buf = append(buf, byte(role))
	buf = binary.BigEndian.AppendUint32(buf, epoch)
	buf = append(buf, binding...)
	buf = append(buf, ephemeral...)
	buf = append(buf, peerEphemeral...)
	return buf
}

// bindingLocked returns the binding of the current epoch, or nil before the
// channel is established.
func (s *Session) bindingLocked() []byte {
	if s.current == nil {
		return nil
	}
	return s.current.binding[:]
}

func (s *Session) newEphemeral() (*x25519.KeyPair, error) {
	priv, err := crypto.Random32(s.rand)
	if err != nil {
		return nil, err
	}
	pub, err := s.provider.ExchangePublicKey(priv)
	if err != nil {
		crypto.Zero32(&priv)
		return nil, err
	}
	kp := &x25519.KeyPair{PublicKey: pub, PrivateKey: scalar.Clamp(priv)}
	crypto.Zero32(&priv)
	return kp, nil
}

// signedMessage builds our half of an exchange for epoch.
func (s *Session) signedMessage(epoch uint32, peerEphemeral []byte) (*HandshakeMessage, error) {
	msg := &HandshakeMessage{
		Epoch:              epoch,
		EphemeralPublicKey: bytes.Clone(s.ephemeral.PublicKey[:]),
	}
	if s.localStatic == nil {
		return msg, nil
	}
	sig, err := s.provider.Sign(s.localStatic.Seed[:], transcript(s.role, epoch, s.bindingLocked(), msg.EphemeralPublicKey, peerEphemeral))
	if err != nil {
		return nil, err
	}
	msg.Signature = sig[:]
	return msg, nil
}

// checkPeer validates the shape and signature of a peer handshake message.
// ourEphemeral is non-nil when the peer is answering us.
func (s *Session) checkPeer(msg *HandshakeMessage, ourEphemeral []byte) error {
	if msg == nil {
		return errors.New("nil handshake message")
	}
	if len(msg.EphemeralPublicKey) != x25519.PointSize {
		return fmt.Errorf("%w: ephemeral key must be %d bytes, got %d",
			crypto.ErrInvalidLength, x25519.PointSize, len(msg.EphemeralPublicKey))
	}
	if s.remoteStatic == nil {
		if len(msg.Signature) > 0 {
			s.logger("checkPeer").Debug("Ignoring handshake signature without a remote static key")
		}
		return nil
	}
	if len(msg.Signature) == 0 {
		return fmt.Errorf("%w: unsigned handshake", crypto.ErrInvalidSignature)
	}
	t := transcript(s.role.peer(), msg.Epoch, s.bindingLocked(), msg.EphemeralPublicKey, ourEphemeral)
	if !s.provider.Verify(s.remoteStatic, t, msg.Signature) {
		return fmt.Errorf("%w: handshake signature", crypto.ErrInvalidSignature)
	}
	return nil
}

// deriveEpoch runs ECDH against the peer's ephemeral key and derives the
// directional keys and binding for epoch. The salt is the current binding,
// if any, followed by both ephemeral keys in initiator-then-responder order.
func (s *Session) deriveEpoch(epoch uint32, peerEphemeral []byte) (*epochKeys, error) {
	shared, err := s.provider.ECDH(s.ephemeral.PrivateKey[:], peerEphemeral)
	if err != nil {
		return nil, err
	}
	defer crypto.Zero32(&shared)
	if x25519.IsAllZero(shared) {
		return nil, fmt.Errorf("%w: low-order ephemeral key", crypto.ErrInvalidEncoding)
	}

	salt := bytes.Clone(s.bindingLocked())
	if s.role == Initiator {
		salt = append(append(salt, s.ephemeral.PublicKey[:]...), peerEphemeral...)
	} else {
		salt = append(append(salt, peerEphemeral...), s.ephemeral.PublicKey[:]...)
	}
	defer crypto.ZeroBytes(salt)

	c2s, s2c, err := kdf.DeriveChannelKeys(shared[:], salt, epoch)
	if err != nil {
		return nil, err
	}
	binding, err := kdf.DeriveSessionKey(shared[:], salt, binary.BigEndian.AppendUint32([]byte(bindingInfo), epoch), 32)
	if err != nil {
		crypto.Zero32(&c2s)
		crypto.Zero32(&s2c)
		return nil, err
	}
	keys := &epochKeys{epoch: epoch}
	copy(keys.binding[:], binding)
	crypto.ZeroBytes(binding)
	if s.role == Initiator {
		keys.sendKey, keys.recvKey = c2s, s2c
	} else {
		keys.sendKey, keys.recvKey = s2c, c2s
	}
	crypto.Zero32(&c2s)
	crypto.Zero32(&s2c)
	return keys, nil
}

func (s *Session) dropEphemeral() {
	if s.ephemeral != nil {
		s.ephemeral.Wipe()
		s.ephemeral = nil
	}
}

// wipeLocked zeroes every key and moves to Closed.
func (s *Session) wipeLocked() {
	s.dropEphemeral()
	if s.current != nil {
		s.current.wipe()
		s.current = nil
	}
	if s.previous != nil {
		s.previous.wipe()
		s.previous = nil
	}
	s.state = Closed
}

// abortLocked tears the session down after a failed handshake step.
func (s *Session) abortLocked(function string, cause error) error {
	s.logger(function).WithCaller().WithError(cause, "handshake").Warn("Handshake aborted")
	s.wipeLocked()
	return fmt.Errorf("%w: %w", crypto.ErrHandshakeAborted, cause)
}

// Start begins the handshake and returns the first message for the
// responder.
func (s *Session) Start() (*HandshakeMessage, error) {
	s.mu.Lock()
	defer s.mu.Unlock()

	if err := s.expectLocked(Initiator, Idle); err != nil {
		return nil, err
	}
	eph, err := s.newEphemeral()
	if err != nil {
		return nil, s.abortLocked("Start", err)
	}
	s.ephemeral = eph
	msg, err := s.signedMessage(0, nil)
	if err != nil {
		return nil, s.abortLocked("Start", err)
	}
	s.state = HandshakeSent
	s.logger("Start").WithFields(crypto.SecureFieldHash(msg.EphemeralPublicKey, "ephemeral")).Debug("Sent handshake")
	return msg, nil
}

// Accept answers the initiator's first message and establishes epoch 0 on
// the responder side.
func (s *Session) Accept(msg *HandshakeMessage) (*HandshakeMessage, error) {
	s.mu.Lock()
	defer s.mu.Unlock()

	if err := s.expectLocked(Responder, Idle); err != nil {
		return nil, err
	}
	if err := s.checkPeer(msg, nil); err != nil {
		return nil, s.abortLocked("Accept", err)
	}
	if msg.Epoch != 0 {
		return nil, s.abortLocked("Accept", fmt.Errorf("%w: opening handshake at epoch %d", crypto.ErrInvalidState, msg.Epoch))
	}
	eph, err := s.newEphemeral()
	if err != nil {
		return nil, s.abortLocked("Accept", err)
	}
	s.ephemeral = eph

	reply, err := s.signedMessage(0, msg.EphemeralPublicKey)
	if err != nil {
		return nil, s.abortLocked("Accept", err)
	}
	keys, err := s.deriveEpoch(0, msg.EphemeralPublicKey)
	if err != nil {
		return nil, s.abortLocked("Accept", err)
	}
	s.dropEphemeral()
	s.current = keys
	s.state = Established
	s.logger("Accept").Info("Channel established")
	return reply, nil
}

// Complete processes the responder's reply and establishes epoch 0 on the
// initiator side.
func (s *Session) Complete(reply *HandshakeMessage) error {
	s.mu.Lock()
	defer s.mu.Unlock()

	if err := s.expectLocked(Initiator, HandshakeSent); err != nil {
		return err
	}
	if err := s.checkPeer(reply, s.ephemeral.PublicKey[:]); err != nil {
		return s.abortLocked("Complete", err)
	}
	if reply.Epoch != 0 {
		return s.abortLocked("Complete", fmt.Errorf("%w: reply for epoch %d", crypto.ErrInvalidState, reply.Epoch))
	}
	keys, err := s.deriveEpoch(0, reply.EphemeralPublicKey)
	if err != nil {
		return s.abortLocked("Complete", err)
	}
	s.dropEphemeral()
	s.current = keys
	s.state = Established
	s.logger("Complete").Info("Channel established")
	return nil
}

// expectLocked checks the role and state a handshake step runs in.
func (s *Session) expectLocked(role Role, state State) error {
	if s.state == Closed {
		return crypto.ErrChannelClosed
	}
	if s.role != role {
		return fmt.Errorf("%w: %s cannot run this step", crypto.ErrInvalidState, s.role)
	}
	if s.state != state {
		return fmt.Errorf("%w: session is %s, want %s", crypto.ErrInvalidState, s.state, state)
	}
	return nil
}

// Close wipes all key material. It is safe to call more than once.
func (s *Session) Close() error {
	s.mu.Lock()
	defer s.mu.Unlock()
	if s.state == Closed {
		return nil
	}
	s.wipeLocked()
	s.logger("Close").Debug("Channel closed")
	return nil
}
