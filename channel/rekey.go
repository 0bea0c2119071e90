package channel

import (
	"fmt"
	"math"

	"github.com/opd-ai/corecrypto/crypto"
)

// Rekey requests a new epoch. Traffic continues under the current epoch
// until CompleteRekey installs the new keys.
func (s *Session) Rekey() (*HandshakeMessage, error) {
	s.mu.Lock()
	defer s.mu.Unlock()

	switch s.state {
	case Closed:
		return nil, crypto.ErrChannelClosed
	case Established:
	default:
		return nil, fmt.Errorf("%w: cannot rekey while %s", crypto.ErrInvalidState, s.state)
	}
	if s.current.epoch == math.MaxUint32 {
		return nil, fmt.Errorf("%w: epoch space exhausted", crypto.ErrNonceExhausted)
	}

	eph, err := s.newEphemeral()
	if err != nil {
		return nil, err
	}
	s.ephemeral = eph
	msg, err := s.signedMessage(s.current.epoch+1, nil)
	if err != nil {
		s.dropEphemeral()
		return nil, err
	}
	s.state = Rekeying
	s.logger("Rekey").
		WithField("epoch", msg.Epoch).
		WithFields(crypto.SecureFieldHash(msg.EphemeralPublicKey, "ephemeral")).
		Debug("Requested rekey")
	return msg, nil
}

// checkNextEpoch rejects rekey messages that are not for current+1.
func (s *Session) checkNextEpoch(epoch uint32) error {
	next := uint64(s.current.epoch) + 1
	switch {
	case uint64(epoch) == next:
		return nil
	case uint64(epoch) < next:
		return fmt.Errorf("%w: rekey to epoch %d, current %d", crypto.ErrStaleEpoch, epoch, s.current.epoch)
	default:
		return fmt.Errorf("%w: rekey to epoch %d, current %d", crypto.ErrUnknownEpoch, epoch, s.current.epoch)
	}
}

// AcceptRekey answers a peer's rekey request and switches to the new epoch
// immediately. When both sides request a rekey at once the initiator's
// request wins: the initiator refuses the responder's request with
// InvalidState, and the responder drops its own pending request.
func (s *Session) AcceptRekey(msg *HandshakeMessage) (*HandshakeMessage, error) {
	s.mu.Lock()
	defer s.mu.Unlock()

	switch s.state {
	case Closed:
		return nil, crypto.ErrChannelClosed
	case Established:
	case Rekeying:
		if s.role == Initiator {
			return nil, fmt.Errorf("%w: rekey collision, own request pending", crypto.ErrInvalidState)
		}
	default:
		return nil, fmt.Errorf("%w: cannot accept rekey while %s", crypto.ErrInvalidState, s.state)
	}
	if msg == nil {
		return nil, fmt.Errorf("%w: nil rekey message", crypto.ErrMissingFields)
	}
	if err := s.checkNextEpoch(msg.Epoch); err != nil {
		return nil, err
	}
	if err := s.checkPeer(msg, nil); err != nil {
		return nil, s.abortLocked("AcceptRekey", err)
	}
	// Our own request is dropped only once the initiator's one checks out.
	if s.state == Rekeying {
		s.logger("AcceptRekey").Debug("Rekey collision, yielding to initiator")
		s.dropEphemeral()
		s.state = Established
	}

	eph, err := s.newEphemeral()
	if err != nil {
		return nil, err
	}
	s.ephemeral = eph
	reply, err := s.signedMessage(msg.Epoch, msg.EphemeralPublicKey)
	if err != nil {
		s.dropEphemeral()
		return nil, err
	}
	keys, err := s.deriveEpoch(msg.Epoch, msg.EphemeralPublicKey)
	if err != nil {
		return nil, s.abortLocked("AcceptRekey", err)
	}
	s.dropEphemeral()
	s.installLocked(keys)
	return reply, nil
}

// CompleteRekey processes the answer to our Rekey request and switches to
// the new epoch.
func (s *Session) CompleteRekey(reply *HandshakeMessage) error {
	s.mu.Lock()
	defer s.mu.Unlock()

	switch s.state {
	case Closed:
		return crypto.ErrChannelClosed
	case Rekeying:
	default:
		return fmt.Errorf("%w: no rekey pending while %s", crypto.ErrInvalidState, s.state)
	}
	if reply == nil {
		return fmt.Errorf("%w: nil rekey reply", crypto.ErrMissingFields)
	}
	if err := s.checkNextEpoch(reply.Epoch); err != nil {
		return err
	}
	if err := s.checkPeer(reply, s.ephemeral.PublicKey[:]); err != nil {
		return s.abortLocked("CompleteRekey", err)
	}
	keys, err := s.deriveEpoch(reply.Epoch, reply.EphemeralPublicKey)
	if err != nil {
		return s.abortLocked("CompleteRekey", err)
	}
	s.dropEphemeral()
	s.installLocked(keys)
	return nil
}

// installLocked makes keys current and keeps the old receive key for the
// grace window.
func (s *Session) installLocked(keys *epochKeys) {
	if s.previous != nil {
		s.previous.wipe()
	}
	old := s.current
	crypto.Zero32(&old.sendKey)
	s.previous = old
	s.current = keys
	s.rekeyedAt = s.clock.Now()
	s.state = Established
	if s.grace == 0 {
		s.previous.wipe()
		s.previous = nil
	}
	s.logger("installLocked").WithField("epoch", keys.epoch).Info("Installed new epoch")
}
