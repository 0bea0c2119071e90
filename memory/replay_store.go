package memory

import (
	"context"
	"encoding/binary"
	"fmt"
	"sync"
	"time"

	"github.com/minio/blake2b-simd"
	"github.com/opd-ai/corecrypto/crypto"
	"github.com/opd-ai/corecrypto/interfaces"
	"github.com/sirupsen/logrus"
)

const (
	// DefaultRetention keeps a nonce for twice the default clock skew. A
	// packet is accepted for MaxSkew on either side of its timestamp, so
	// its nonce must outlive that whole window.
	DefaultRetention = 2 * 300 * time.Second

	// DefaultCleanupInterval is how often expired nonces are swept.
	DefaultCleanupInterval = time.Minute
)

// ReplayStore remembers (node id, nonce) pairs of accepted packets until
// they can no longer pass the skew check. It implements both
// INonceGuard and INonceRecorder.
//
//	store := memory.NewReplayStore(2*maxSkew, nil)
//	defer store.Close()
//	verifier := &packet.Verifier{Guard: store, Recorder: store}
//
// The store is safe for concurrent use and runs a background goroutine
// that drops expired entries until Close is called.
type ReplayStore struct {
	mu           sync.RWMutex
	entries      map[[32]byte]time.Time // replay key -> expiry
	retention    time.Duration
	stopChan     chan struct{}
	closeOnce    sync.Once
	timeProvider crypto.TimeProvider
}

var (
	_ interfaces.INonceGuard    = (*ReplayStore)(nil)
	_ interfaces.INonceRecorder = (*ReplayStore)(nil)
)

// NewReplayStore creates a store keeping nonces for retention, sweeping
// every DefaultCleanupInterval. A nil timeProvider means the system clock.
func NewReplayStore(retention time.Duration, timeProvider crypto.TimeProvider) *ReplayStore {
	return NewReplayStoreWithInterval(retention, DefaultCleanupInterval, timeProvider)
}

// NewReplayStoreWithInterval is NewReplayStore with a custom sweep
// interval. A non-positive retention selects DefaultRetention.
func NewReplayStoreWithInterval(retention, interval time.Duration, timeProvider crypto.TimeProvider) *ReplayStore {
	if retention <= 0 {
		retention = DefaultRetention
	}
	if interval <= 0 {
		interval = DefaultCleanupInterval
	}
	rs := &ReplayStore{
		entries:      make(map[[32]byte]time.Time),
		retention:    retention,
		stopChan:     make(chan struct{}),
		timeProvider: crypto.OrDefault(timeProvider),
	}
	go rs.cleanupLoop(interval)
	return rs
}

// replayKey compacts a (node id, nonce) pair into a fixed-size key. The
// node id is length-prefixed so no two pairs share an encoding.
func replayKey(nodeID, nonce string) [32]byte {
	buf := make([]byte, 0, 8+len(nodeID)+len(nonce))
	buf = binary.BigEndian.AppendUint64(buf, uint64(len(nodeID)))
	buf = append(buf, nodeID...)
	buf = append(buf, nonce...)
	return blake2b.Sum256(buf)
}

// HasSeenNonce implements interfaces.INonceGuard.
func (rs *ReplayStore) HasSeenNonce(ctx context.Context, nodeID, nonce string) (bool, error) {
	if err := ctx.Err(); err != nil {
		return false, err
	}
	key := replayKey(nodeID, nonce)
	now := rs.timeProvider.Now()

	rs.mu.RLock()
	defer rs.mu.RUnlock()
	expiry, ok := rs.entries[key]
	return ok && now.Before(expiry), nil
}

// RecordNonce implements interfaces.INonceRecorder. Recording a pair that
// is still live fails with ErrReplayNonce, which makes the insert atomic
// against a concurrent verifier that passed the same HasSeenNonce check.
func (rs *ReplayStore) RecordNonce(ctx context.Context, nodeID, nonce string, seenAt time.Time) error {
	if err := ctx.Err(); err != nil {
		return err
	}
	key := replayKey(nodeID, nonce)
	now := rs.timeProvider.Now()

	rs.mu.Lock()
	defer rs.mu.Unlock()
	if expiry, ok := rs.entries[key]; ok && now.Before(expiry) {
		crypto.NewLogger("memory", "ReplayStore.RecordNonce").
			WithField("node_id", nodeID).
			WithFields(crypto.SecureFieldHash([]byte(nonce), "nonce")).
			Warn("Replay detected: nonce already recorded")
		return fmt.Errorf("%w: nonce already recorded for %s", crypto.ErrReplayNonce, nodeID)
	}
	rs.entries[key] = seenAt.Add(rs.retention)
	return nil
}

func (rs *ReplayStore) cleanupLoop(interval time.Duration) {
	ticker := time.NewTicker(interval)
	defer ticker.Stop()

	for {
		select {
		case <-ticker.C:
			rs.cleanup()
		case <-rs.stopChan:
			return
		}
	}
}

// cleanup removes expired entries and returns how many it dropped.
func (rs *ReplayStore) cleanup() int {
	now := rs.timeProvider.Now()

	rs.mu.Lock()
	defer rs.mu.Unlock()
	removed := 0
	for key, expiry := range rs.entries {
		if !now.Before(expiry) {
			delete(rs.entries, key)
			removed++
		}
	}
	if removed > 0 {
		crypto.NewLogger("memory", "ReplayStore.cleanup").WithFields(logrus.Fields{
			"removed":   removed,
			"remaining": len(rs.entries),
		}).Debug("Cleaned up expired nonces")
	}
	return removed
}

// Size returns the number of stored nonces, including expired ones not yet
// swept.
func (rs *ReplayStore) Size() int {
	rs.mu.RLock()
	defer rs.mu.RUnlock()
	return len(rs.entries)
}

// Close stops the cleanup loop. It is safe to call more than once.
func (rs *ReplayStore) Close() error {
	rs.closeOnce.Do(func() {
		close(rs.stopChan)
	})
	return nil
}
