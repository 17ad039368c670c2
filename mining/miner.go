// Copyright (c) 2014-2016 The btcsuite developers
// Copyright (c) 2024 The Flokicoin developers
// Use of this source code is governed by an ISC
// license that can be found in the LICENSE file.

// Package mining implements the single dedicated mining worker: it
// assembles a candidate block from the mempool's highest-fee
// transactions, drives the proof-of-work loop, and aborts as soon as a
// taller tip appears so it never wastes work racing a chain it has
// already lost.
package mining

import (
	"context"
	"time"

	"github.com/emberchain/emberd/chain"
	"github.com/emberchain/emberd/chaincfg"
	"github.com/emberchain/emberd/chainstore"
	"github.com/emberchain/emberd/mempool"
)

// Miner drives the proof-of-work mining loop for one address.
type Miner struct {
	store   *chainstore.Store
	pool    *mempool.Mempool
	params  *chaincfg.Params
	address string
}

// New creates a Miner that pays block rewards to address.
func New(store *chainstore.Store, pool *mempool.Mempool, params *chaincfg.Params, address string) *Miner {
	return &Miner{store: store, pool: pool, params: params, address: address}
}

// MineBlock assembles a candidate from the current mempool and runs the
// proof-of-work loop until either a valid nonce is found, ctx is
// canceled, or a taller tip preempts the attempt — in which case it
// returns (nil, nil), matching "mine_block produces no block" rather
// than treating preemption as an error.
func (m *Miner) MineBlock(ctx context.Context) (*chain.Block, error) {
	parentHeight, parentHash, err := m.tallestTip()
	if err != nil {
		return nil, err
	}
	height := parentHeight + 1

	required, err := m.store.CalculateHashDifficulty(height)
	if err != nil {
		return nil, err
	}

	txs := m.pool.GetUnconfirmedTransactionsChunk(m.params.MaxTransactionsPerBlock)
	var fees int64
	for _, tx := range txs {
		fees += tx.Fee
	}

	prevCoinbaseHash := m.parentCoinbaseHash(parentHash)

	reward := m.store.GetReward(height)
	now := time.Now().Unix()
	coinbase := chain.NewCoinbase(m.address, reward, fees, prevCoinbaseHash, now)
	all := append([]*chain.Transaction{coinbase}, txs...)

	block := chain.NewBlock(height, all, parentHash, now, 0)

	if ctx.Err() != nil {
		return nil, nil
	}
	for block.Header.HashDifficulty() < required {
		select {
		case <-ctx.Done():
			return nil, nil
		default:
		}
		curHeight, curHash, err := m.tallestTip()
		if err != nil {
			return nil, err
		}
		if curHeight >= height || curHash != parentHash {
			log.Debugf("mining: preempted at height %d (tallest now %d)", height, curHeight)
			return nil, nil
		}
		block.Header.Nonce++
	}
	log.Infof("mined block %d: %s (difficulty %d)", block.Height, block.Hash(), block.Header.HashDifficulty())
	return block, nil
}

// parentCoinbaseHash resolves the coinbase transaction hash of the
// parent block, or "0" at height 1 (genesis's parent sentinel).
func (m *Miner) parentCoinbaseHash(parentHash string) string {
	if parentHash == "0" || parentHash == "" {
		return "0"
	}
	parent, _, err := m.store.BlockByHash(parentHash)
	if err != nil {
		return "0"
	}
	txs := parent.Transactions()
	if len(txs) == 0 || !txs[0].IsCoinbase() {
		return "0"
	}
	return txs[0].TxHash
}

func (m *Miner) tallestTip() (uint64, string, error) {
	height, hash, err := m.store.PrimaryTip()
	if err != nil {
		// No genesis committed yet: the node guarantees genesis is
		// committed before mining starts, so this only happens in tests
		// that exercise the miner in isolation.
		return 0, "0", nil
	}
	return height, hash, nil
}
