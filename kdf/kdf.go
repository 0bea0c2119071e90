package kdf

import (
	"crypto/sha256"
	"encoding/binary"
	"fmt"
	"io"
	"strings"

	"github.com/opd-ai/corecrypto/crypto"
	"github.com/opd-ai/corecrypto/eddsa"
	"github.com/opd-ai/corecrypto/x25519"
	"golang.org/x/crypto/hkdf"
)

const (
	// MasterSecretRounds is the fixed number of SHA-256 rounds applied by
	// DeriveMasterSecret.
	MasterSecretRounds = 1000
	// MaxKeyLength is the HKDF-SHA256 output limit, 255 blocks of 32 bytes.
	MaxKeyLength = 255 * sha256.Size
	// PathPrefix is prepended to every derivation path to form the HKDF info.
	PathPrefix = "ns:"

	channelInfoC2S = "channel:c2s"
	channelInfoS2C = "channel:s2c"
)

// MnemonicToSeed trims and lowercases phrase and hashes it to 32 bytes.
func MnemonicToSeed(phrase string) [32]byte {
	normalized := strings.ToLower(strings.TrimSpace(phrase))
	return sha256.Sum256([]byte(normalized))
}

// DeriveMasterSecret stretches the mnemonic seed and password into a master
// secret: the first round hashes seed || password and every following round
// hashes the previous digest, for MasterSecretRounds rounds in total.
func DeriveMasterSecret(mnemonic, password string) [32]byte {
	seed := MnemonicToSeed(mnemonic)
	buf := make([]byte, 0, len(seed)+len(password))
	buf = append(buf, seed[:]...)
	buf = append(buf, password...)

	digest := sha256.Sum256(buf)
	for i := 1; i < MasterSecretRounds; i++ {
		digest = sha256.Sum256(digest[:])
	}

	crypto.ZeroBytes(buf)
	crypto.Zero32(&seed)
	return digest
}

func checkLength(length int) error {
	if length <= 0 || length > MaxKeyLength {
		return fmt.Errorf("%w: key length %d outside 1..%d", crypto.ErrInvalidLength, length, MaxKeyLength)
	}
	return nil
}

// DeriveKey expands master into length bytes bound to path, using master
// directly as the HKDF pseudorandom key.
func DeriveKey(master []byte, path string, length int) ([]byte, error) {
	if err := checkLength(length); err != nil {
		return nil, err
	}
	if len(master) == 0 {
		return nil, fmt.Errorf("%w: empty master secret", crypto.ErrInvalidLength)
	}
	out := make([]byte, length)
	r := hkdf.Expand(sha256.New, master, []byte(PathPrefix+path))
	if _, err := io.ReadFull(r, out); err != nil {
		return nil, fmt.Errorf("hkdf expand: %w", err)
	}
	return out, nil
}

func derive32(master []byte, path string) ([32]byte, error) {
	var seed [32]byte
	raw, err := DeriveKey(master, path, 32)
	if err != nil {
		return seed, err
	}
	copy(seed[:], raw)
	crypto.ZeroBytes(raw)
	return seed, nil
}

// DeriveEd25519 derives the Ed25519 key pair whose seed is DeriveKey(master, path).
func DeriveEd25519(master []byte, path string) (*eddsa.KeyPair, error) {
	seed, err := derive32(master, path)
	if err != nil {
		return nil, err
	}
	defer crypto.Zero32(&seed)
	return eddsa.NewKeyPairFromSeed(seed)
}

// DeriveX25519 derives the X25519 key pair whose raw private key is
// DeriveKey(master, path).
func DeriveX25519(master []byte, path string) (*x25519.KeyPair, error) {
	priv, err := derive32(master, path)
	if err != nil {
		return nil, err
	}
	defer crypto.Zero32(&priv)
	return x25519.KeyPairFromPrivate(priv), nil
}

// Identity bundles the long-term keys derived from one mnemonic and path.
type Identity struct {
	Signing  *eddsa.KeyPair
	Exchange *x25519.KeyPair
}

// Wipe zeroes both private keys.
func (id *Identity) Wipe() {
	if id == nil {
		return
	}
	id.Signing.Wipe()
	id.Exchange.Wipe()
}

// DeriveIdentity runs the full mnemonic pipeline and derives the signing key
// at path+":sign" and the exchange key at path+":dh".
func DeriveIdentity(mnemonic, password, path string) (*Identity, error) {
	master := DeriveMasterSecret(mnemonic, password)
	defer crypto.Zero32(&master)

	signing, err := DeriveEd25519(master[:], path+":sign")
	if err != nil {
		return nil, err
	}
	exchange, err := DeriveX25519(master[:], path+":dh")
	if err != nil {
		signing.Wipe()
		return nil, err
	}
	return &Identity{Signing: signing, Exchange: exchange}, nil
}

// DeriveSessionKey runs full HKDF-SHA256 over secret with the given salt and
// info and returns length bytes.
func DeriveSessionKey(secret, salt, info []byte, length int) ([]byte, error) {
	if err := checkLength(length); err != nil {
		return nil, err
	}
	if len(secret) == 0 {
		return nil, fmt.Errorf("%w: empty input secret", crypto.ErrInvalidLength)
	}
	out := make([]byte, length)
	r := hkdf.New(sha256.New, secret, salt, info)
	if _, err := io.ReadFull(r, out); err != nil {
		return nil, fmt.Errorf("hkdf: %w", err)
	}
	return out, nil
}

// DeriveChannelKeys derives the two directional keys of a channel epoch from
// an ECDH output. c2s protects initiator-to-responder traffic and s2c the
// reverse. salt binds the keys to the handshake transcript.
func DeriveChannelKeys(shared, salt []byte, epoch uint32) (c2s, s2c [32]byte, err error) {
	var suffix [4]byte
	binary.BigEndian.PutUint32(suffix[:], epoch)

	a, err := DeriveSessionKey(shared, salt, append([]byte(channelInfoC2S), suffix[:]...), 32)
	if err != nil {
		return c2s, s2c, err
	}
	b, err := DeriveSessionKey(shared, salt, append([]byte(channelInfoS2C), suffix[:]...), 32)
	if err != nil {
		crypto.ZeroBytes(a)
		return c2s, s2c, err
	}
	copy(c2s[:], a)
	copy(s2c[:], b)
	crypto.ZeroBytes(a)
	crypto.ZeroBytes(b)
	return c2s, s2c, nil
}
