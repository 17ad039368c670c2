// Package chainhash provides the SHA-256 based hashing primitives used
// for transaction identifiers and Merkle roots.
package chainhash

import (
	"encoding/hex"

	"crypto/sha256"
)

// Sum returns the hex-encoded SHA-256 digest of data.
func Sum(data []byte) string {
	h := sha256.Sum256(data)
	return hex.EncodeToString(h[:])
}

// SumBytes returns the raw SHA-256 digest of data, for callers (signing,
// verification) that need bytes rather than a hex string.
func SumBytes(data []byte) []byte {
	h := sha256.Sum256(data)
	return h[:]
}

// pairHash returns SHA-256(a || b), hex-encoded, where a and b are
// concatenated as their literal (hex) string bytes, matching how the
// reference implementation hashes two hex digest strings together
// rather than decoding them back to binary first.
func pairHash(a, b string) string {
	return Sum([]byte(a + b))
}

// MerkleRoot computes the Merkle root of an ordered list of hex-encoded
// transaction hashes. txHashes must already be in canonical order
// (coinbase first, remaining sorted ascending by hash). Levels are built
// by pairing adjacent hashes and SHA-256-concatenating them; an odd
// leaf at the end of a level is paired with itself. Panics if txHashes
// is empty, since a block's Merkle root is always computed after the
// coinbase-required transaction list has been validated non-empty.
func MerkleRoot(txHashes []string) string {
	if len(txHashes) == 0 {
		panic("chainhash: MerkleRoot called with no transaction hashes")
	}
	level := make([]string, len(txHashes))
	copy(level, txHashes)
	for len(level) > 1 {
		next := make([]string, 0, (len(level)+1)/2)
		for i := 0; i < len(level); i += 2 {
			if i == len(level)-1 {
				next = append(next, pairHash(level[i], level[i]))
			} else {
				next = append(next, pairHash(level[i], level[i+1]))
			}
		}
		level = next
	}
	return level[0]
}
