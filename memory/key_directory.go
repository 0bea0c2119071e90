package memory

import (
	"context"
	"fmt"
	"sync"

	"github.com/opd-ai/corecrypto/crypto"
	"github.com/opd-ai/corecrypto/interfaces"
	"github.com/sirupsen/logrus"
)

// KeyDirectory maps node ids to Ed25519 public keys. It is the in-process
// IPublicKeyResolver used by tests, demos and single-node deployments.
type KeyDirectory struct {
	mu   sync.RWMutex
	keys map[string][32]byte
}

var _ interfaces.IPublicKeyResolver = (*KeyDirectory)(nil)

// NewKeyDirectory returns an empty directory.
func NewKeyDirectory() *KeyDirectory {
	return &KeyDirectory{keys: make(map[string][32]byte)}
}

// Register stores the public key of nodeID, replacing any previous key.
func (d *KeyDirectory) Register(nodeID string, publicKey []byte) error {
	if nodeID == "" {
		return fmt.Errorf("%w: node_id", crypto.ErrMissingFields)
	}
	if len(publicKey) != 32 {
		return fmt.Errorf("%w: public key must be 32 bytes, got %d", crypto.ErrInvalidLength, len(publicKey))
	}
	var key [32]byte
	copy(key[:], publicKey)

	d.mu.Lock()
	_, replaced := d.keys[nodeID]
	d.keys[nodeID] = key
	d.mu.Unlock()

	crypto.NewLogger("memory", "KeyDirectory.Register").WithFields(logrus.Fields{
		"node_id":  nodeID,
		"replaced": replaced,
	}).Debug("Registered node key")
	return nil
}

// Remove forgets nodeID. It reports whether the node was present.
func (d *KeyDirectory) Remove(nodeID string) bool {
	d.mu.Lock()
	defer d.mu.Unlock()
	_, ok := d.keys[nodeID]
	delete(d.keys, nodeID)
	return ok
}

// Count returns the number of registered nodes.
func (d *KeyDirectory) Count() int {
	d.mu.RLock()
	defer d.mu.RUnlock()
	return len(d.keys)
}

// ResolvePublicKey implements interfaces.IPublicKeyResolver.
func (d *KeyDirectory) ResolvePublicKey(ctx context.Context, nodeID string) ([32]byte, bool, error) {
	if err := ctx.Err(); err != nil {
		return [32]byte{}, false, err
	}
	d.mu.RLock()
	defer d.mu.RUnlock()
	key, ok := d.keys[nodeID]
	return key, ok, nil
}
