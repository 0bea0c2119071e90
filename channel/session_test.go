package channel

import (
	"bytes"
	"sync"
	"testing"
	"time"

	"github.com/opd-ai/corecrypto/crypto"
	"github.com/opd-ai/corecrypto/eddsa"
	"github.com/opd-ai/corecrypto/provider"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

type pairOptions struct {
	auth        bool
	grace       time.Duration
	maxCounter  uint32
	wrongRemote bool
}

type channelPair struct {
	initiator *Session
	responder *Session
	clock     *crypto.ManualTimeProvider
}

func staticKey(t *testing.T, b byte) *eddsa.KeyPair {
	t.Helper()
	var seed [eddsa.SeedSize]byte
	for i := range seed {
		seed[i] = b
	}
	kp, err := eddsa.NewKeyPairFromSeed(seed)
	require.NoError(t, err)
	return kp
}

func newPair(t *testing.T, opts pairOptions) *channelPair {
	t.Helper()
	clock := crypto.NewManualTimeProvider(time.Date(2024, 1, 1, 0, 0, 0, 0, time.UTC))
	iCfg := Config{Role: Initiator, GracePeriod: opts.grace, MaxCounter: opts.maxCounter, Time: clock}
	rCfg := Config{Role: Responder, GracePeriod: opts.grace, MaxCounter: opts.maxCounter, Time: clock}

	if opts.auth {
		alice, bob := staticKey(t, 1), staticKey(t, 2)
		iCfg.LocalStatic, rCfg.LocalStatic = alice, bob
		iCfg.RemoteStatic = bob.PublicKey[:]
		rCfg.RemoteStatic = alice.PublicKey[:]
		if opts.wrongRemote {
			mallory := staticKey(t, 3)
			rCfg.RemoteStatic = mallory.PublicKey[:]
		}
		iCfg.RequireAuth, rCfg.RequireAuth = true, true
	}

	initiator, err := NewSession(iCfg)
	require.NoError(t, err)
	responder, err := NewSession(rCfg)
	require.NoError(t, err)
	return &channelPair{initiator: initiator, responder: responder, clock: clock}
}

func (p *channelPair) handshake(t *testing.T) {
	t.Helper()
	hello, err := p.initiator.Start()
	require.NoError(t, err)
	assert.Equal(t, HandshakeSent, p.initiator.State())

	reply, err := p.responder.Accept(hello)
	require.NoError(t, err)
	require.NoError(t, p.initiator.Complete(reply))

	require.Equal(t, Established, p.initiator.State())
	require.Equal(t, Established, p.responder.State())
}

func (p *channelPair) rekey(t *testing.T) {
	t.Helper()
	req, err := p.initiator.Rekey()
	require.NoError(t, err)
	reply, err := p.responder.AcceptRekey(req)
	require.NoError(t, err)
	require.NoError(t, p.initiator.CompleteRekey(reply))
}

func TestHandshakeAndTraffic(t *testing.T) {
	for _, auth := range []bool{false, true} {
		p := newPair(t, pairOptions{auth: auth, grace: -1})
		p.handshake(t)
		assert.Equal(t, uint32(0), p.initiator.Epoch())

		msg, err := p.initiator.Send([]byte("ping"), []byte("hdr"))
		require.NoError(t, err)
		assert.Equal(t, uint32(0), msg.Counter)
		pt, err := p.responder.Receive(msg, []byte("hdr"))
		require.NoError(t, err)
		assert.Equal(t, []byte("ping"), pt)

		back, err := p.responder.Send([]byte("pong"), nil)
		require.NoError(t, err)
		pt, err = p.initiator.Receive(back, nil)
		require.NoError(t, err)
		assert.Equal(t, []byte("pong"), pt)
	}
}

func TestDirectionalKeysDiffer(t *testing.T) {
	p := newPair(t, pairOptions{grace: -1})
	p.handshake(t)

	msg, err := p.initiator.Send([]byte("to responder"), nil)
	require.NoError(t, err)

	// The initiator's own receive key must not open what it sent.
	_, err = p.initiator.Receive(msg, nil)
	assert.ErrorIs(t, err, crypto.ErrAuthenticationFailed)
}

func TestNonceLayout(t *testing.T) {
	assert.Equal(t,
		[]byte{0, 0, 0, 0, 0x02, 0, 0, 0, 0x01, 0, 0, 0},
		NonceBytes(1, 2))

	p := newPair(t, pairOptions{grace: -1})
	p.handshake(t)
	msg, err := p.initiator.Send([]byte("x"), nil)
	require.NoError(t, err)
	assert.Equal(t, NonceBytes(0, 0), msg.Nonce)

	msg.Nonce = NonceBytes(0, 9)
	_, err = p.responder.Receive(msg, nil)
	assert.ErrorIs(t, err, crypto.ErrInvalidEncoding)
}

func TestReceiveRejectsTampering(t *testing.T) {
	p := newPair(t, pairOptions{grace: -1})
	p.handshake(t)

	msg, err := p.initiator.Send([]byte("payload"), []byte("ad"))
	require.NoError(t, err)

	_, err = p.responder.Receive(msg, []byte("other ad"))
	assert.ErrorIs(t, err, crypto.ErrAuthenticationFailed)

	tampered := *msg
	tampered.Ciphertext = bytes.Clone(msg.Ciphertext)
	tampered.Ciphertext[0] ^= 1
	_, err = p.responder.Receive(&tampered, []byte("ad"))
	assert.ErrorIs(t, err, crypto.ErrAuthenticationFailed)

	// Failed attempts do not consume the counter.
	pt, err := p.responder.Receive(msg, []byte("ad"))
	require.NoError(t, err)
	assert.Equal(t, []byte("payload"), pt)
}

func TestReplayedCounter(t *testing.T) {
	p := newPair(t, pairOptions{grace: -1})
	p.handshake(t)

	first, err := p.initiator.Send([]byte("one"), nil)
	require.NoError(t, err)
	second, err := p.initiator.Send([]byte("two"), nil)
	require.NoError(t, err)

	_, err = p.responder.Receive(second, nil)
	require.NoError(t, err)

	_, err = p.responder.Receive(second, nil)
	assert.ErrorIs(t, err, crypto.ErrReplayedCounter)
	_, err = p.responder.Receive(first, nil)
	assert.ErrorIs(t, err, crypto.ErrReplayedCounter)
}

func TestNonceExhaustion(t *testing.T) {
	p := newPair(t, pairOptions{grace: -1, maxCounter: 3})
	p.handshake(t)

	for i := 0; i < 3; i++ {
		_, err := p.initiator.Send([]byte("m"), nil)
		require.NoError(t, err)
	}
	_, err := p.initiator.Send([]byte("m"), nil)
	assert.ErrorIs(t, err, crypto.ErrNonceExhausted)

	p.rekey(t)
	msg, err := p.initiator.Send([]byte("fresh"), nil)
	require.NoError(t, err)
	assert.Equal(t, uint32(1), msg.Epoch)
	assert.Equal(t, uint32(0), msg.Counter)
}

func TestRekeyGraceWindow(t *testing.T) {
	p := newPair(t, pairOptions{auth: true, grace: 30 * time.Second})
	p.handshake(t)

	inFlight, err := p.initiator.Send([]byte("old epoch"), nil)
	require.NoError(t, err)
	late, err := p.initiator.Send([]byte("old epoch too"), nil)
	require.NoError(t, err)

	p.rekey(t)
	assert.Equal(t, uint32(1), p.initiator.Epoch())
	assert.Equal(t, uint32(1), p.responder.Epoch())

	pt, err := p.responder.Receive(inFlight, nil)
	require.NoError(t, err)
	assert.Equal(t, []byte("old epoch"), pt)

	fresh, err := p.initiator.Send([]byte("new epoch"), nil)
	require.NoError(t, err)
	assert.Equal(t, uint32(1), fresh.Epoch)
	_, err = p.responder.Receive(fresh, nil)
	require.NoError(t, err)

	// The first new-epoch record closes the window.
	_, err = p.responder.Receive(late, nil)
	assert.ErrorIs(t, err, crypto.ErrStaleEpoch)
}

func TestRekeyGraceExpires(t *testing.T) {
	p := newPair(t, pairOptions{grace: 30 * time.Second})
	p.handshake(t)

	old, err := p.initiator.Send([]byte("old"), nil)
	require.NoError(t, err)
	p.rekey(t)

	p.clock.Advance(30 * time.Second)
	_, err = p.responder.Receive(old, nil)
	assert.ErrorIs(t, err, crypto.ErrStaleEpoch)
}

func TestRekeyWithoutGrace(t *testing.T) {
	p := newPair(t, pairOptions{grace: 0})
	p.handshake(t)

	old, err := p.initiator.Send([]byte("old"), nil)
	require.NoError(t, err)
	p.rekey(t)

	_, err = p.responder.Receive(old, nil)
	assert.ErrorIs(t, err, crypto.ErrStaleEpoch)
}

func TestUnknownEpoch(t *testing.T) {
	p := newPair(t, pairOptions{grace: -1})
	p.handshake(t)

	msg, err := p.initiator.Send([]byte("x"), nil)
	require.NoError(t, err)
	msg.Epoch = 5
	msg.Nonce = nil
	_, err = p.responder.Receive(msg, nil)
	assert.ErrorIs(t, err, crypto.ErrUnknownEpoch)
}

func TestRekeyCollisionInitiatorWins(t *testing.T) {
	p := newPair(t, pairOptions{auth: true, grace: -1})
	p.handshake(t)

	fromInitiator, err := p.initiator.Rekey()
	require.NoError(t, err)
	fromResponder, err := p.responder.Rekey()
	require.NoError(t, err)

	_, err = p.initiator.AcceptRekey(fromResponder)
	assert.ErrorIs(t, err, crypto.ErrInvalidState)
	assert.Equal(t, Rekeying, p.initiator.State())

	reply, err := p.responder.AcceptRekey(fromInitiator)
	require.NoError(t, err)
	require.NoError(t, p.initiator.CompleteRekey(reply))

	msg, err := p.responder.Send([]byte("after collision"), nil)
	require.NoError(t, err)
	pt, err := p.initiator.Receive(msg, nil)
	require.NoError(t, err)
	assert.Equal(t, []byte("after collision"), pt)
}

func TestRekeyCollisionKeepsPendingOnBadRequest(t *testing.T) {
	p := newPair(t, pairOptions{auth: true, grace: -1})
	p.handshake(t)

	fromInitiator, err := p.initiator.Rekey()
	require.NoError(t, err)
	_, err = p.responder.Rekey()
	require.NoError(t, err)

	_, err = p.responder.AcceptRekey(nil)
	assert.ErrorIs(t, err, crypto.ErrMissingFields)
	assert.Equal(t, Rekeying, p.responder.State())

	future := *fromInitiator
	future.Epoch = 7
	_, err = p.responder.AcceptRekey(&future)
	assert.ErrorIs(t, err, crypto.ErrUnknownEpoch)
	assert.Equal(t, Rekeying, p.responder.State())

	reply, err := p.responder.AcceptRekey(fromInitiator)
	require.NoError(t, err)
	require.NoError(t, p.initiator.CompleteRekey(reply))
	assert.Equal(t, uint32(1), p.responder.Epoch())
	assert.Equal(t, uint32(1), p.initiator.Epoch())
}

func TestRekeyFromAnotherSessionRejected(t *testing.T) {
	earlier := newPair(t, pairOptions{auth: true, grace: -1})
	earlier.handshake(t)
	captured, err := earlier.initiator.Rekey()
	require.NoError(t, err)

	// Same static keys, fresh handshake.
	p := newPair(t, pairOptions{auth: true, grace: -1})
	p.handshake(t)

	_, err = p.responder.AcceptRekey(captured)
	assert.ErrorIs(t, err, crypto.ErrHandshakeAborted)
	assert.ErrorIs(t, err, crypto.ErrInvalidSignature)
	assert.Equal(t, Closed, p.responder.State())
	assert.Equal(t, uint32(0), p.initiator.Epoch())
}

func TestEpochBindingChains(t *testing.T) {
	p := newPair(t, pairOptions{grace: -1})
	p.handshake(t)

	first := p.initiator.current.binding
	assert.Equal(t, first, p.responder.current.binding)
	assert.NotEqual(t, [32]byte{}, first)

	p.rekey(t)
	second := p.initiator.current.binding
	assert.Equal(t, second, p.responder.current.binding)
	assert.NotEqual(t, first, second)
}

func TestRekeyEpochChecks(t *testing.T) {
	p := newPair(t, pairOptions{grace: -1})
	p.handshake(t)

	req, err := p.initiator.Rekey()
	require.NoError(t, err)
	reply, err := p.responder.AcceptRekey(req)
	require.NoError(t, err)
	require.NoError(t, p.initiator.CompleteRekey(reply))

	_, err = p.responder.AcceptRekey(req)
	assert.ErrorIs(t, err, crypto.ErrStaleEpoch)

	future := *req
	future.Epoch = 9
	_, err = p.responder.AcceptRekey(&future)
	assert.ErrorIs(t, err, crypto.ErrUnknownEpoch)

	err = p.initiator.CompleteRekey(reply)
	assert.ErrorIs(t, err, crypto.ErrInvalidState)
}

func TestHandshakeAbortsOnBadSignature(t *testing.T) {
	p := newPair(t, pairOptions{auth: true, grace: -1, wrongRemote: true})

	hello, err := p.initiator.Start()
	require.NoError(t, err)
	_, err = p.responder.Accept(hello)
	assert.ErrorIs(t, err, crypto.ErrHandshakeAborted)
	assert.ErrorIs(t, err, crypto.ErrInvalidSignature)
	assert.Equal(t, Closed, p.responder.State())

	_, err = p.responder.Send([]byte("x"), nil)
	assert.ErrorIs(t, err, crypto.ErrChannelClosed)
}

func TestHandshakeAbortsOnBadMessages(t *testing.T) {
	tests := []struct {
		name   string
		mutate func(m *HandshakeMessage)
	}{
		{"unsigned", func(m *HandshakeMessage) { m.Signature = nil }},
		{"short ephemeral", func(m *HandshakeMessage) { m.EphemeralPublicKey = m.EphemeralPublicKey[:31] }},
		{"tampered ephemeral", func(m *HandshakeMessage) { m.EphemeralPublicKey[0] ^= 1 }},
		{"wrong epoch", func(m *HandshakeMessage) { m.Epoch = 1 }},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			p := newPair(t, pairOptions{auth: true, grace: -1})
			hello, err := p.initiator.Start()
			require.NoError(t, err)
			tt.mutate(hello)

			_, err = p.responder.Accept(hello)
			assert.ErrorIs(t, err, crypto.ErrHandshakeAborted)
			assert.Equal(t, Closed, p.responder.State())
		})
	}
}

func TestHandshakeRejectsLowOrderEphemeral(t *testing.T) {
	p := newPair(t, pairOptions{grace: -1})
	_, err := p.responder.Accept(&HandshakeMessage{EphemeralPublicKey: make([]byte, 32)})
	assert.ErrorIs(t, err, crypto.ErrHandshakeAborted)
	assert.Equal(t, Closed, p.responder.State())
}

func TestInitiatorAbortsOnForgedReply(t *testing.T) {
	p := newPair(t, pairOptions{auth: true, grace: -1})
	hello, err := p.initiator.Start()
	require.NoError(t, err)
	reply, err := p.responder.Accept(hello)
	require.NoError(t, err)

	reply.Signature[0] ^= 0x80
	err = p.initiator.Complete(reply)
	assert.ErrorIs(t, err, crypto.ErrHandshakeAborted)
	assert.Equal(t, Closed, p.initiator.State())
}

func TestStepOrderEnforced(t *testing.T) {
	p := newPair(t, pairOptions{grace: -1})

	_, err := p.responder.Start()
	assert.ErrorIs(t, err, crypto.ErrInvalidState)
	_, err = p.initiator.Accept(&HandshakeMessage{})
	assert.ErrorIs(t, err, crypto.ErrInvalidState)
	err = p.initiator.Complete(&HandshakeMessage{})
	assert.ErrorIs(t, err, crypto.ErrInvalidState)
	_, err = p.initiator.Send([]byte("early"), nil)
	assert.ErrorIs(t, err, crypto.ErrInvalidState)
	_, err = p.initiator.Receive(&Message{Ciphertext: make([]byte, 16)}, nil)
	assert.ErrorIs(t, err, crypto.ErrInvalidState)
	_, err = p.initiator.Rekey()
	assert.ErrorIs(t, err, crypto.ErrInvalidState)
}

func TestCloseWipesSession(t *testing.T) {
	p := newPair(t, pairOptions{grace: -1})
	p.handshake(t)
	msg, err := p.initiator.Send([]byte("x"), nil)
	require.NoError(t, err)

	require.NoError(t, p.responder.Close())
	require.NoError(t, p.responder.Close())
	assert.Equal(t, Closed, p.responder.State())

	_, err = p.responder.Receive(msg, nil)
	assert.ErrorIs(t, err, crypto.ErrChannelClosed)
	_, err = p.responder.Send([]byte("x"), nil)
	assert.ErrorIs(t, err, crypto.ErrChannelClosed)
	_, err = p.responder.Rekey()
	assert.ErrorIs(t, err, crypto.ErrChannelClosed)
}

func TestConcurrentSendsUseDistinctCounters(t *testing.T) {
	p := newPair(t, pairOptions{grace: -1})
	p.handshake(t)

	const senders = 32
	counters := make(chan uint32, senders)
	var wg sync.WaitGroup
	for i := 0; i < senders; i++ {
		wg.Add(1)
		go func() {
			defer wg.Done()
			msg, err := p.initiator.Send([]byte("c"), nil)
			if assert.NoError(t, err) {
				counters <- msg.Counter
			}
		}()
	}
	wg.Wait()
	close(counters)

	seen := make(map[uint32]bool)
	for c := range counters {
		assert.False(t, seen[c], "counter %d issued twice", c)
		seen[c] = true
	}
	assert.Len(t, seen, senders)
}

func TestProvidersInteroperate(t *testing.T) {
	alice, bob := staticKey(t, 1), staticKey(t, 2)
	initiator, err := NewSession(Config{
		Role: Initiator, Provider: provider.NewPure(),
		LocalStatic: alice, RemoteStatic: bob.PublicKey[:], GracePeriod: -1,
	})
	require.NoError(t, err)
	responder, err := NewSession(Config{
		Role: Responder, Provider: provider.NewPlatform(),
		LocalStatic: bob, RemoteStatic: alice.PublicKey[:], GracePeriod: -1,
	})
	require.NoError(t, err)

	p := &channelPair{initiator: initiator, responder: responder}
	p.handshake(t)
	msg, err := responder.Send([]byte("cross"), nil)
	require.NoError(t, err)
	pt, err := initiator.Receive(msg, nil)
	require.NoError(t, err)
	assert.Equal(t, []byte("cross"), pt)
}

func TestNewSessionValidation(t *testing.T) {
	_, err := NewSession(Config{Role: Role(7)})
	assert.ErrorIs(t, err, crypto.ErrInvalidState)

	_, err = NewSession(Config{Role: Initiator, RequireAuth: true})
	assert.ErrorIs(t, err, crypto.ErrInvalidState)

	_, err = NewSession(Config{Role: Initiator, RemoteStatic: make([]byte, 31)})
	assert.ErrorIs(t, err, crypto.ErrInvalidLength)
}

func TestStartWithoutRandomness(t *testing.T) {
	s, err := NewSession(Config{Role: Initiator, Rand: bytes.NewReader(nil)})
	require.NoError(t, err)

	_, err = s.Start()
	assert.ErrorIs(t, err, crypto.ErrNoSecureRandom)
	assert.Equal(t, Closed, s.State())
}

func TestStrings(t *testing.T) {
	assert.Equal(t, "initiator", Initiator.String())
	assert.Equal(t, "responder", Responder.String())
	assert.Equal(t, "Rekeying", Rekeying.String())
	assert.Equal(t, "State(9)", State(9).String())
}
