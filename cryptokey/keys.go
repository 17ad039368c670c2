// Package cryptokey wraps the secp256k1 ECDSA primitives used to sign and
// verify transactions. An address in this module is simply the hex
// encoding of a 33-byte compressed public key; there is no separate
// base58/bech32 address format.
package cryptokey

import (
	"encoding/hex"
	"errors"

	"github.com/decred/dcrd/dcrec/secp256k1/v4"
	"github.com/decred/dcrd/dcrec/secp256k1/v4/ecdsa"
)

// ErrInvalidAddress is returned when a hex string does not decode to a
// valid compressed secp256k1 public key.
var ErrInvalidAddress = errors.New("cryptokey: invalid address encoding")

// PrivateKey wraps a secp256k1 signing key.
type PrivateKey struct {
	key *secp256k1.PrivateKey
}

// PublicKey wraps a secp256k1 verification key.
type PublicKey struct {
	key *secp256k1.PublicKey
}

// GeneratePrivateKey returns a new randomly generated signing key.
func GeneratePrivateKey() (*PrivateKey, error) {
	key, err := secp256k1.GeneratePrivateKey()
	if err != nil {
		return nil, err
	}
	return &PrivateKey{key: key}, nil
}

// PrivateKeyFromHex parses a hex-encoded 32-byte scalar into a PrivateKey.
func PrivateKeyFromHex(s string) (*PrivateKey, error) {
	b, err := hex.DecodeString(s)
	if err != nil {
		return nil, err
	}
	if len(b) != 32 {
		return nil, errors.New("cryptokey: private key must be 32 bytes")
	}
	priv := secp256k1.PrivKeyFromBytes(b)
	return &PrivateKey{key: priv}, nil
}

// Hex returns the 32-byte scalar, hex-encoded.
func (p *PrivateKey) Hex() string {
	return hex.EncodeToString(p.key.Serialize())
}

// PubKey derives the corresponding PublicKey.
func (p *PrivateKey) PubKey() *PublicKey {
	return &PublicKey{key: p.key.PubKey()}
}

// Address returns the hex-encoded compressed public key, which doubles
// as the account address for the sender of a signed transaction.
func (p *PrivateKey) Address() string {
	return p.PubKey().Address()
}

// Sign computes an ECDSA signature over hash (the transaction's signable
// digest) and returns it DER-encoded, hex-encoded.
func (p *PrivateKey) Sign(hash []byte) string {
	sig := ecdsa.Sign(p.key, hash)
	return hex.EncodeToString(sig.Serialize())
}

// Address returns the hex-encoded compressed public key.
func (pub *PublicKey) Address() string {
	return hex.EncodeToString(pub.key.SerializeCompressed())
}

// AddressFromHex decodes a hex-encoded compressed public key into a
// PublicKey usable for signature verification.
func AddressFromHex(address string) (*PublicKey, error) {
	b, err := hex.DecodeString(address)
	if err != nil {
		return nil, ErrInvalidAddress
	}
	key, err := secp256k1.ParsePubKey(b)
	if err != nil {
		return nil, ErrInvalidAddress
	}
	return &PublicKey{key: key}, nil
}

// Verify reports whether sigHex is a valid DER-encoded ECDSA signature by
// this public key over hash.
func (pub *PublicKey) Verify(hash []byte, sigHex string) bool {
	sigBytes, err := hex.DecodeString(sigHex)
	if err != nil {
		return false
	}
	sig, err := ecdsa.ParseDERSignature(sigBytes)
	if err != nil {
		return false
	}
	return sig.Verify(hash, pub.key)
}
