package chain

import (
	"encoding/hex"
	"fmt"
	"sort"
	"strings"
	"time"

	"golang.org/x/crypto/scrypt"

	"github.com/emberchain/emberd/chainhash"
)

// CurrentVersion is the block header version this node produces.
const CurrentVersion = 1

// scryptN/scryptR/scryptP/scryptDKLen are the fixed PoW hashing
// parameters; consensus-critical, never configurable.
const (
	scryptN     = 1024
	scryptR     = 1
	scryptP     = 1
	scryptDKLen = 32
)

// BlockHeader is the consensus-critical, hashable portion of a block.
type BlockHeader struct {
	Version      int32  `json:"version"`
	PreviousHash string `json:"previous_hash"`
	MerkleRoot   string `json:"merkle_root"`
	Timestamp    int64  `json:"timestamp"`
	Nonce        uint32 `json:"nonce"`
}

// NewBlockHeader builds a header with the given fields. timestamp of 0
// means "now".
func NewBlockHeader(previousHash, merkleRoot string, timestamp int64, nonce uint32) *BlockHeader {
	if timestamp == 0 {
		timestamp = time.Now().Unix()
	}
	return &BlockHeader{
		Version:      CurrentVersion,
		PreviousHash: previousHash,
		MerkleRoot:   merkleRoot,
		Timestamp:    timestamp,
		Nonce:        nonce,
	}
}

// Hashable returns the exact byte sequence that is scrypt-hashed for
// proof of work: the zero-padded 8-hex-digit version, previous_hash,
// merkle_root, zero-padded 8-hex-digit timestamp, and zero-padded
// 8-hex-digit nonce, concatenated.
func (h *BlockHeader) Hashable() []byte {
	s := fmt.Sprintf("%08x%s%s%08x%08x",
		uint32(h.Version), h.PreviousHash, h.MerkleRoot, uint32(h.Timestamp), h.Nonce)
	return []byte(s)
}

// Hash computes the scrypt(N=1024,r=1,p=1,dkLen=32) proof-of-work hash
// of the header, hex-encoded. This is deliberately expensive: it is the
// function a miner calls once per nonce attempt.
func (h *BlockHeader) Hash() string {
	hashable := h.Hashable()
	digest, err := scrypt.Key(hashable, hashable, scryptN, scryptR, scryptP, scryptDKLen)
	if err != nil {
		panic(err)
	}
	return hex.EncodeToString(digest)
}

// HashDifficulty returns the count of leading '0' hex characters in the
// header's proof-of-work hash.
func (h *BlockHeader) HashDifficulty() int {
	hash := h.Hash()
	n := 0
	for _, c := range hash {
		if c != '0' {
			break
		}
		n++
	}
	return n
}

// Block is a height-addressed sequence of transactions plus its header.
// Transactions() always returns the canonical order: coinbase first,
// remaining transactions sorted ascending by tx_hash.
type Block struct {
	Height       uint64
	transactions []*Transaction
	Header       *BlockHeader
}

// NewBlock canonicalizes txs (coinbase first, rest sorted by tx_hash),
// computes the Merkle root over that order, and builds the block's
// header. Panics if txs is empty — a block always carries at least its
// coinbase transaction.
func NewBlock(height uint64, txs []*Transaction, previousHash string, timestamp int64, nonce uint32) *Block {
	if len(txs) < 1 {
		panic("chain: block requires at least a coinbase transaction")
	}
	b := &Block{Height: height}
	b.setTransactions(txs)
	root := chainhash.MerkleRoot(b.txHashes())
	b.Header = NewBlockHeader(previousHash, root, timestamp, nonce)
	return b
}

func (b *Block) setTransactions(txs []*Transaction) {
	if len(txs) <= 1 {
		b.transactions = txs
		return
	}
	coinbase := txs[0]
	rest := make([]*Transaction, len(txs)-1)
	copy(rest, txs[1:])
	sort.Slice(rest, func(i, j int) bool { return rest[i].TxHash < rest[j].TxHash })
	ordered := make([]*Transaction, 0, len(txs))
	ordered = append(ordered, coinbase)
	ordered = append(ordered, rest...)
	b.transactions = ordered
}

// Transactions returns the block's transactions in canonical order.
func (b *Block) Transactions() []*Transaction {
	return b.transactions
}

func (b *Block) txHashes() []string {
	hashes := make([]string, len(b.transactions))
	for i, t := range b.transactions {
		hashes[i] = t.TxHash
	}
	return hashes
}

// Hash returns the block's proof-of-work hash (its header hash).
func (b *Block) Hash() string {
	return b.Header.Hash()
}

func (b *Block) String() string {
	return fmt.Sprintf("<Block height=%d hash=%s>", b.Height, b.Hash())
}

// FormatHex is a small helper used by the RPC layer to validate that a
// user-supplied hash string looks like a hex digest before using it as
// a lookup key.
func FormatHex(s string) (string, error) {
	s = strings.ToLower(strings.TrimSpace(s))
	if _, err := hex.DecodeString(s); err != nil {
		return "", fmt.Errorf("chain: %q is not valid hex: %w", s, err)
	}
	return s, nil
}
