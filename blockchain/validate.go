// Copyright (c) 2013-2016 The btcsuite developers
// Copyright (c) 2024 The Flokicoin developers
// Use of this source code is governed by an ISC
// license that can be found in the LICENSE file.

// Package blockchain implements the Validator: the component that
// verifies block headers, transactions, proof of work and rewards
// against the rules of consensus before a block is allowed into the
// chain store.
package blockchain

import (
	"errors"

	"github.com/emberchain/emberd/chain"
	"github.com/emberchain/emberd/chaincfg"
	"github.com/emberchain/emberd/chainerr"
	"github.com/emberchain/emberd/chainhash"
	"github.com/emberchain/emberd/chainstore"
)

// HeaderStatus is the three-way outcome of validating a block header.
type HeaderStatus int

const (
	// HeaderInvalid means the header fails a rule unconditionally.
	HeaderInvalid HeaderStatus = iota
	// HeaderOutOfSync means the header's parent is unknown to the chain
	// store; the caller should synchronize with the sender rather than
	// reject the header outright.
	HeaderOutOfSync
	// HeaderValid means the header is acceptable at the returned height.
	HeaderValid
)

// Validator checks blocks and transactions against consensus rules. It
// reads chain state from store but never mutates it; mempool is
// consulted (not mutated) when resolving a block's transaction
// inventory against unconfirmed transactions already held locally.
type Validator struct {
	store   *chainstore.Store
	mempool UnconfirmedLookup
	params  *chaincfg.Params
}

// UnconfirmedLookup is the subset of mempool.Mempool the validator
// depends on, kept narrow so that this package does not import mempool;
// tests can supply their own lookup.
type UnconfirmedLookup interface {
	GetUnconfirmedTransaction(txHash string) (*chain.Transaction, bool)
}

// New creates a Validator backed by store, params and an unconfirmed
// transaction lookup (typically the node's mempool).
func New(store *chainstore.Store, params *chaincfg.Params, mempool UnconfirmedLookup) *Validator {
	return &Validator{store: store, mempool: mempool, params: params}
}

// CheckHashAndHashPattern verifies the block's proof of work meets the
// minimum required difficulty for its height.
func (v *Validator) CheckHashAndHashPattern(b *chain.Block) error {
	required, err := v.store.CalculateHashDifficulty(b.Height)
	if err != nil {
		return err
	}
	if b.Header.HashDifficulty() < required {
		return chainerr.NewAt(chainerr.ErrInvalidHash, b.Height,
			"incompatible block hash: insufficient leading-zero difficulty")
	}
	return nil
}

// CheckHeightAndPreviousHash verifies the block's previous_hash refers
// to a known block at exactly height-1.
func (v *Validator) CheckHeightAndPreviousHash(b *chain.Block) error {
	_, _, height, err := v.store.BlockHeaderByHash(b.Header.PreviousHash)
	if errors.Is(err, chainstore.ErrNotFound) {
		return chainerr.NewAt(chainerr.ErrChainContinuity, b.Height,
			"previous block unknown: "+b.Header.PreviousHash)
	} else if err != nil {
		return err
	}
	if height != b.Height-1 {
		return chainerr.NewAt(chainerr.ErrChainContinuity, b.Height,
			"previous block height does not precede this block's height")
	}
	return nil
}

// CheckBlockReward verifies the block's coinbase transaction (and only
// its coinbase transaction) pays exactly the block subsidy plus the sum
// of every other transaction's fee.
func (v *Validator) CheckBlockReward(b *chain.Block) error {
	txs := b.Transactions()
	if len(txs) == 0 {
		return chainerr.NewAt(chainerr.ErrInvalidCoinbase, b.Height, "block has no transactions")
	}
	reward := v.store.GetReward(b.Height)
	for _, tx := range txs[1:] {
		if tx.IsCoinbase() {
			return chainerr.NewAt(chainerr.ErrInvalidCoinbase, b.Height, "multiple coinbase transactions")
		}
		reward += tx.Fee
	}
	coinbase := txs[0]
	if !coinbase.IsCoinbase() {
		return chainerr.NewAt(chainerr.ErrInvalidCoinbase, b.Height, "missing coinbase transaction")
	}
	if coinbase.Amount != reward {
		return chainerr.NewAt(chainerr.ErrInvalidCoinbase, b.Height, "coinbase amount does not match subsidy plus fees")
	}
	if coinbase.Source != "0" {
		return chainerr.NewAt(chainerr.ErrInvalidCoinbase, b.Height, "coinbase source must be the sentinel address")
	}
	return nil
}

// ValidateBlockHeader checks a header against the merkle root implied
// by txInv and the chain store's view of the header's parent. It
// returns HeaderOutOfSync (rather than an error) when the parent is
// unknown, since that is not necessarily a protocol violation — it
// usually just means this node is behind and should synchronize.
func (v *Validator) ValidateBlockHeader(header *chain.BlockHeader, txInv []string) (uint64, HeaderStatus, error) {
	if _, _, err := v.store.BlockByHash(header.Hash()); err == nil {
		return 0, HeaderInvalid, nil
	}
	if header.Version != v.params.Version {
		return 0, HeaderInvalid, nil
	}
	if len(txInv) == 0 {
		return 0, HeaderInvalid, nil
	}
	if header.MerkleRoot != chainhash.MerkleRoot(txInv) {
		return 0, HeaderInvalid, nil
	}
	_, _, parentHeight, err := v.store.BlockHeaderByHash(header.PreviousHash)
	if errors.Is(err, chainstore.ErrNotFound) {
		return 0, HeaderOutOfSync, nil
	} else if err != nil {
		return 0, HeaderInvalid, err
	}
	required, err := v.store.CalculateHashDifficulty(parentHeight + 1)
	if err != nil {
		return 0, HeaderInvalid, err
	}
	if required > header.HashDifficulty() {
		return 0, HeaderInvalid, nil
	}
	return parentHeight + 1, HeaderValid, nil
}

// ValidateBlock performs the block-contents checks that require the
// full transaction list to already be assembled: the Merkle root must
// match the header's, and the reward must be correct.
func (v *Validator) ValidateBlock(b *chain.Block, merkleRootFromHeader string) error {
	root := chainhash.MerkleRoot(txHashes(b))
	if root != merkleRootFromHeader {
		return chainerr.NewAt(chainerr.ErrInvalidHash, b.Height, "merkle root does not match header")
	}
	return v.CheckBlockReward(b)
}

func txHashes(b *chain.Block) []string {
	txs := b.Transactions()
	h := make([]string, len(txs))
	for i, t := range txs {
		h[i] = t.TxHash
	}
	return h
}

// ValidateBlockTransactionsInv splits a block's advertised transaction
// hash list into those already held unconfirmed locally and those that
// must still be fetched from the sender. It fails fast: any hash that
// already belongs to a committed block anywhere in the store is treated
// as a double-spend attempt and aborts the whole batch, rather than
// silently dropping just that one hash.
func (v *Validator) ValidateBlockTransactionsInv(txInv []string) (known []*chain.Transaction, missing []string, err error) {
	for _, h := range txInv {
		if v.store.FindDuplicateTransaction(h) {
			return nil, nil, chainerr.New(chainerr.ErrInvalidTransactions,
				"double-spend prevented: transaction already on chain: "+h)
		}
		if tx, ok := v.mempool.GetUnconfirmedTransaction(h); ok {
			known = append(known, tx)
		} else {
			missing = append(missing, h)
		}
	}
	return known, missing, nil
}

// ValidateTransaction validates a single standalone transaction: no
// double-spend, a verifying signature, and sufficient balance to cover
// amount plus fee.
func (v *Validator) ValidateTransaction(tx *chain.Transaction) error {
	if v.store.FindDuplicateTransaction(tx.TxHash) {
		return chainerr.New(chainerr.ErrInvalidTransactions, "double-spend prevented: "+tx.TxHash)
	}
	if !tx.Verify() {
		return chainerr.New(chainerr.ErrInvalidTransactions, "invalid transaction signature: "+tx.TxHash)
	}
	balance, err := v.store.GetBalance(tx.Source, tx.Asset, 0)
	if err != nil {
		return err
	}
	if tx.Amount+tx.Fee > balance {
		return chainerr.New(chainerr.ErrInvalidTransactions, "insufficient funds: "+tx.TxHash)
	}
	return nil
}
