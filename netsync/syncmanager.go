// Copyright (c) 2017 The btcsuite developers
// Copyright (c) 2024 The Flokicoin developers
// Use of this source code is governed by an ISC
// license that can be found in the LICENSE file.

package netsync

import (
	"errors"
	"fmt"

	"github.com/emberchain/emberd/blockchain"
	"github.com/emberchain/emberd/chain"
	"github.com/emberchain/emberd/chainstore"
	elog "github.com/emberchain/emberd/log"
)

// log is the package logger; disabled until UseLogger is called.
var log elog.Logger

func init() {
	DisableLog()
}

// DisableLog disables all library log output.
func DisableLog() { log = elog.Disabled }

// UseLogger uses a specified Logger to output package logging info.
func UseLogger(logger elog.Logger) { log = logger }

// overlapBlocks is how many blocks synchronize rewinds before the
// local tip when asking a peer for its inventory, letting small reorgs
// resolve without an explicit back-scan.
const overlapBlocks = 100

// roundCapBlocks bounds how many blocks a single synchronize round will
// request, so one peer can never force an unbounded amount of work.
const roundCapBlocks = 500

// SyncManager is the worker-side state machine: it turns dequeued
// inbound messages into chain store mutations and outbound broadcasts.
// One SyncManager is shared by every inbound queue worker goroutine;
// all of its methods are safe to call concurrently because the pieces
// it delegates to (store, mempool, validator) already serialize their
// own mutations.
type SyncManager struct {
	cfg       Config
	validator *blockchain.Validator
	selfHost  string
}

// New creates a SyncManager from cfg, constructing its own Validator
// bound to cfg.Store, cfg.ChainParams and cfg.Mempool.
func New(cfg Config) *SyncManager {
	return &SyncManager{
		cfg:       cfg,
		validator: blockchain.New(cfg.Store, cfg.ChainParams, cfg.Mempool),
		selfHost:  cfg.SelfHost,
	}
}

// headerMessage is the payload of a BLOCK_HEADER message.
type headerMessage struct {
	Header *chain.BlockHeader
}

// HandleBlockHeader processes one dequeued BLOCK_HEADER message. If the
// header was produced by this node, it only needs to announce it; any
// other sender triggers the full process_block_header flow.
func (sm *SyncManager) HandleBlockHeader(sender string, header *chain.BlockHeader) error {
	if sender == sm.selfHost {
		sm.cfg.PeerNotifier.BroadcastBlockInv([]string{header.Hash()})
		return nil
	}
	return sm.processBlockHeader(header, sender)
}

// processBlockHeader implements process_block_header: it asks the
// sender for the block's transaction inventory, validates the header
// against it, resolves every transaction (from mempool or the sender),
// reconstructs and validates the full block, and commits it.
func (sm *SyncManager) processBlockHeader(header *chain.BlockHeader, sender string) error {
	blockHash := header.Hash()
	txInv, err := sm.cfg.Client.RequestTransactionsInv(sender, blockHash)
	if err != nil {
		return fmt.Errorf("netsync: requesting tx inventory from %s: %w", sender, err)
	}

	height, status, err := sm.validator.ValidateBlockHeader(header, txInv)
	if err != nil {
		return err
	}
	switch status {
	case blockchain.HeaderInvalid:
		log.Warnf("rejected header %s from %s", blockHash, sender)
		return nil
	case blockchain.HeaderOutOfSync:
		return sm.Synchronize(sender)
	}

	known, missing, err := sm.validator.ValidateBlockTransactionsInv(txInv)
	if err != nil {
		return err
	}

	byHash := make(map[string]*chain.Transaction, len(txInv))
	for _, tx := range known {
		byHash[tx.TxHash] = tx
	}
	for _, h := range missing {
		tx, err := sm.cfg.Client.RequestTransaction(sender, h)
		if err != nil {
			return fmt.Errorf("netsync: requesting transaction %s from %s: %w", h, sender, err)
		}
		if !tx.IsCoinbase() {
			if err := sm.validator.ValidateTransaction(tx); err != nil {
				return fmt.Errorf("netsync: transaction %s from %s failed validation: %w", h, sender, err)
			}
		}
		byHash[tx.TxHash] = tx
	}

	txs := make([]*chain.Transaction, 0, len(txInv))
	for _, h := range txInv {
		tx, ok := byHash[h]
		if !ok {
			return fmt.Errorf("netsync: transaction %s missing after resolution", h)
		}
		txs = append(txs, tx)
	}

	block := chain.NewBlock(height, txs, header.PreviousHash, header.Timestamp, header.Nonce)
	if err := sm.validator.ValidateBlock(block, header.MerkleRoot); err != nil {
		return err
	}
	if _, err := sm.cfg.Store.AddBlock(block); err != nil {
		return fmt.Errorf("netsync: committing block %s: %w", blockHash, err)
	}

	sm.cfg.Mempool.RemoveUnconfirmedTransactions(txInvExceptCoinbase(txInv, block))
	sm.cfg.PeerNotifier.BroadcastBlockInv([]string{blockHash})
	return nil
}

func txInvExceptCoinbase(txInv []string, b *chain.Block) []string {
	out := make([]string, 0, len(txInv))
	for _, tx := range b.Transactions() {
		if !tx.IsCoinbase() {
			out = append(out, tx.TxHash)
		}
	}
	return out
}

// HandleUnconfirmedTransaction processes a dequeued UNCONFIRMED_TRANSACTION
// message: self-originated transactions were already validated at
// submission time, anything else is validated here before admission.
func (sm *SyncManager) HandleUnconfirmedTransaction(sender string, tx *chain.Transaction) error {
	if sender != sm.selfHost {
		if err := sm.validator.ValidateTransaction(tx); err != nil {
			return err
		}
	}
	if !sm.cfg.Mempool.PushUnconfirmedTransaction(tx) {
		return nil
	}
	sm.cfg.PeerNotifier.BroadcastTransactionInv([]string{tx.TxHash})
	return nil
}

// HandleBlockInv processes a dequeued BLOCK_INV message: every hash the
// store does not already know is fetched and run through
// processBlockHeader as if it had arrived as a BLOCK_HEADER.
func (sm *SyncManager) HandleBlockInv(sender string, hashes []string) error {
	for _, h := range hashes {
		if _, _, err := sm.cfg.Store.BlockByHash(h); err == nil {
			continue
		}
		header, err := sm.cfg.Client.RequestBlockHeader(sender, h, "")
		if err != nil {
			log.Warnf("requesting header %s from %s: %v", h, sender, err)
			continue
		}
		if err := sm.processBlockHeader(header, sender); err != nil {
			log.Warnf("processing header %s from %s: %v", h, sender, err)
		}
	}
	return nil
}

// HandleUnconfirmedTransactionInv processes a dequeued
// UNCONFIRMED_TRANSACTION_INV message: hashes absent both on-chain and
// in the mempool are fetched, validated, and re-broadcast once admitted.
func (sm *SyncManager) HandleUnconfirmedTransactionInv(sender string, hashes []string) error {
	_, missing := sm.cfg.Mempool.ResolveInventory(hashes)
	var admitted []string
	for _, h := range missing {
		if sm.cfg.Store.FindDuplicateTransaction(h) {
			continue
		}
		tx, err := sm.cfg.Client.RequestTransaction(sender, h)
		if err != nil {
			log.Warnf("requesting transaction %s from %s: %v", h, sender, err)
			continue
		}
		if err := sm.validator.ValidateTransaction(tx); err != nil {
			log.Warnf("transaction %s from %s failed validation: %v", h, sender, err)
			continue
		}
		if sm.cfg.Mempool.PushUnconfirmedTransaction(tx) {
			admitted = append(admitted, tx.TxHash)
		}
	}
	if len(admitted) > 0 {
		sm.cfg.PeerNotifier.BroadcastTransactionInv(admitted)
	}
	return nil
}

// HandleSynchronize processes a dequeued, peer-pushed SYNCHRONIZE
// message by acting symmetrically to a pull synchronize: anything the
// sender claims to have that we lack is fetched the same way BLOCK_INV
// resolves it.
func (sm *SyncManager) HandleSynchronize(sender string, peerHeight uint64, blocksInv []string) error {
	localHeight, _, err := sm.cfg.Store.PrimaryTip()
	if err != nil && !errors.Is(err, chainstore.ErrNotFound) {
		return err
	}
	if peerHeight <= localHeight {
		return nil
	}
	return sm.HandleBlockInv(sender, blocksInv)
}

// Synchronize pulls blocks from peer in overlap-windowed rounds until
// heights converge, implementing the reference node's synchronize loop:
// each round re-establishes a common ancestor via a 100-block overlap
// before walking forward through whatever the peer has beyond it.
func (sm *SyncManager) Synchronize(peerHost string) error {
	for {
		localHeight, _, err := sm.cfg.Store.PrimaryTip()
		if err != nil && !errors.Is(err, chainstore.ErrNotFound) {
			return err
		}
		peerHeight, err := sm.cfg.Client.RequestHeight(peerHost)
		if err != nil {
			return fmt.Errorf("netsync: requesting height from %s: %w", peerHost, err)
		}
		if peerHeight <= localHeight {
			return nil
		}

		startHeight := uint64(1)
		if localHeight > overlapBlocks {
			startHeight = localHeight - overlapBlocks
		}
		endHeight := peerHeight
		if endHeight > startHeight+roundCapBlocks {
			endHeight = startHeight + roundCapBlocks
		}

		peerInv, err := sm.cfg.Client.RequestBlocksInv(peerHost, startHeight, endHeight)
		if err != nil {
			return fmt.Errorf("netsync: auditing %s: %w", peerHost, err)
		}

		lastCommon := -1
		for i, h := range peerInv {
			if _, _, err := sm.cfg.Store.BlockByHash(h); err == nil {
				lastCommon = i
			}
		}
		if lastCommon == -1 && startHeight > 1 {
			log.Warnf("synchronize: %s fully divergent in range [%d,%d]", peerHost, startHeight, endHeight)
			return fmt.Errorf("netsync: no common ancestor with %s", peerHost)
		}

		for _, h := range peerInv[lastCommon+1:] {
			header, err := sm.cfg.Client.RequestBlockHeader(peerHost, h, "")
			if err != nil {
				return fmt.Errorf("netsync: requesting header %s from %s: %w", h, peerHost, err)
			}
			if err := sm.processBlockHeader(header, peerHost); err != nil {
				log.Warnf("synchronize: processing header %s from %s: %v", h, peerHost, err)
			}
		}

		if endHeight == peerHeight {
			return nil
		}
	}
}
