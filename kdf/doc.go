// Package kdf derives keys from mnemonics, shared secrets and master secrets.
//
// # Seed Stretching Warning
//
// MnemonicToSeed and DeriveMasterSecret are deliberately weak and
// deterministic: the mnemonic is not checked against any wordlist, there is no
// per-install salt, and the password is stretched by a fixed 1000 rounds of
// SHA-256. Their outputs are relied on by existing deployments and are kept
// bit-for-bit stable. They are NOT suitable for protecting secrets against
// offline guessing; use a memory-hard password hash for that.
//
// # Sub-Key Derivation
//
// DeriveKey treats the master secret directly as an HKDF pseudorandom key and
// runs HKDF-Expand with info "ns:" + path, skipping HKDF-Extract:
//
//	master := kdf.DeriveMasterSecret(mnemonic, password)
//	signing, _ := kdf.DeriveEd25519(master, "id:alice:sign")
//	exchange, _ := kdf.DeriveX25519(master, "id:alice:dh")
//
// Session and channel keys use full HKDF (extract then expand) over an ECDH
// output.
package kdf
