// Copyright (c) 2013-2016 The btcsuite developers
// Copyright (c) 2024 The Flokicoin developers
// Use of this source code is governed by an ISC
// license that can be found in the LICENSE file.

// Package server wires together the chain store, mempool, validator,
// miner, peer registry, inbound queue and sync engine into one running
// node, the way flokicoind's server type wires together its blockchain,
// mempool, sync manager and connection manager.
package server

import (
	"context"
	"fmt"
	"sync"

	"github.com/emberchain/emberd/chain"
	"github.com/emberchain/emberd/chaincfg"
	"github.com/emberchain/emberd/chainstore"
	elog "github.com/emberchain/emberd/log"
	"github.com/emberchain/emberd/mempool"
	"github.com/emberchain/emberd/mining"
	"github.com/emberchain/emberd/netsync"
	"github.com/emberchain/emberd/peer"
	"github.com/emberchain/emberd/queue"
	"github.com/emberchain/emberd/rpcclient"
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

// Config configures a new Server.
type Config struct {
	DataDir     string
	SelfHost    string
	Params      *chaincfg.Params
	MiningAddr  string // empty disables mining
	Workers     int    // inbound queue worker count
	QueueDepth  int
}

// Server is a single running node: its durable store, mempool, miner,
// peer registry and gossip engine, plus the goroutines that drive them.
type Server struct {
	cfg     Config
	Store   *chainstore.Store
	Mempool *mempool.Mempool
	Peers   *peer.Registry
	Client  *rpcclient.Client
	Sync    *netsync.SyncManager
	Miner   *mining.Miner
	queue   *queue.InboundQueue

	quit   chan struct{}
	wg     sync.WaitGroup
	cancel context.CancelFunc
}

// New creates a Server bound to cfg, opening its chain store and
// ensuring the network's genesis block is committed.
func New(cfg Config) (*Server, error) {
	store, err := chainstore.Open(cfg.DataDir, cfg.Params)
	if err != nil {
		return nil, fmt.Errorf("server: opening chain store: %w", err)
	}
	genesis := cfg.Params.GenesisBlock().Build()
	if err := store.EnsureGenesis(genesis); err != nil {
		store.Close()
		return nil, fmt.Errorf("server: genesis check: %w", err)
	}

	pool := mempool.New()
	registry := peer.New(cfg.Params.MaxPeers, cfg.Params.DowntimeThreshold)
	client := rpcclient.New(cfg.Params.FullNodePort)

	s := &Server{
		cfg:     cfg,
		Store:   store,
		Mempool: pool,
		Peers:   registry,
		Client:  client,
		quit:    make(chan struct{}),
	}

	s.Sync = netsync.New(netsync.Config{
		PeerNotifier: s,
		Store:        store,
		Mempool:      pool,
		ChainParams:  cfg.Params,
		Client:       client,
		SelfHost:     cfg.SelfHost,
	})

	if cfg.MiningAddr != "" {
		s.Miner = mining.New(store, pool, cfg.Params, cfg.MiningAddr)
	}

	workers := cfg.Workers
	if workers <= 0 {
		workers = 4
	}
	depth := cfg.QueueDepth
	if depth <= 0 {
		depth = 256
	}
	s.queue = queue.New(depth, s.dispatch)

	return s, nil
}

// BroadcastBlockInv satisfies netsync.PeerNotifier by pushing a
// BLOCK_INV announcement to every known online peer.
func (s *Server) BroadcastBlockInv(hashes []string) {
	for _, host := range s.Peers.GetAllPeers() {
		go func(host string) {
			if err := s.Client.BroadcastBlockInv(host, s.cfg.SelfHost, hashes); err != nil {
				s.Peers.RecordDowntime(host)
			}
		}(host)
	}
}

// BroadcastTransactionInv satisfies netsync.PeerNotifier by pushing an
// UNCONFIRMED_TRANSACTION_INV announcement to every known online peer.
func (s *Server) BroadcastTransactionInv(hashes []string) {
	for _, host := range s.Peers.GetAllPeers() {
		go func(host string) {
			if err := s.Client.BroadcastUnconfirmedTransactionInv(host, s.cfg.SelfHost, hashes); err != nil {
				s.Peers.RecordDowntime(host)
			}
		}(host)
	}
}

// Enqueue submits an inbound message for processing by a queue worker.
func (s *Server) Enqueue(ctx context.Context, sender string, msgType int, data interface{}) bool {
	return s.queue.Enqueue(ctx, queue.Message{Sender: sender, Type: msgType, Data: data})
}

func (s *Server) dispatch(ctx context.Context, msg queue.Message) {
	var err error
	switch netsync.MessageType(msg.Type) {
	case netsync.BlockHeaderMsg:
		if header, ok := msg.Data.(*chain.BlockHeader); ok {
			err = s.Sync.HandleBlockHeader(msg.Sender, header)
		}
	case netsync.UnconfirmedTransactionMsg:
		if tx, ok := msg.Data.(*chain.Transaction); ok {
			err = s.Sync.HandleUnconfirmedTransaction(msg.Sender, tx)
		}
	case netsync.BlockInvMsg:
		if hashes, ok := msg.Data.([]string); ok {
			err = s.Sync.HandleBlockInv(msg.Sender, hashes)
		}
	case netsync.UnconfirmedTransactionInvMsg:
		if hashes, ok := msg.Data.([]string); ok {
			err = s.Sync.HandleUnconfirmedTransactionInv(msg.Sender, hashes)
		}
	case netsync.SynchronizeMsg:
		if payload, ok := msg.Data.(map[string]interface{}); ok {
			height, _ := payload["height"].(uint64)
			inv, _ := payload["blocks_inv"].([]string)
			err = s.Sync.HandleSynchronize(msg.Sender, height, inv)
		}
	}
	if err != nil {
		log.Warnf("dispatch message type=%d from=%s: %v", msg.Type, msg.Sender, err)
	}
}

// Start launches the inbound queue workers and, if configured, the
// mining loop.
func (s *Server) Start() {
	ctx, cancel := context.WithCancel(context.Background())
	s.cancel = cancel
	s.queue.Start(ctx, s.workerCount())
	if s.Miner != nil {
		s.wg.Add(1)
		go s.mineLoop(ctx)
	}
	log.Infof("server started, self=%s", s.cfg.SelfHost)
}

func (s *Server) workerCount() int {
	if s.cfg.Workers > 0 {
		return s.cfg.Workers
	}
	return 4
}

// mineLoop repeatedly mines candidate blocks, broadcasting and
// committing each one it successfully completes, until ctx is canceled.
func (s *Server) mineLoop(ctx context.Context) {
	defer s.wg.Done()
	for {
		select {
		case <-ctx.Done():
			return
		default:
		}
		block, err := s.Miner.MineBlock(ctx)
		if err != nil {
			log.Errorf("mining: %v", err)
			continue
		}
		if block == nil {
			continue // preempted by a taller tip arriving mid-mine
		}
		if _, err := s.Store.AddBlock(block); err != nil {
			log.Errorf("mining: committing own block: %v", err)
			continue
		}
		s.Mempool.RemoveUnconfirmedTransactions(minedTxHashes(block))
		s.BroadcastBlockInv([]string{block.Hash()})
	}
}

func minedTxHashes(b *chain.Block) []string {
	out := make([]string, 0, len(b.Transactions()))
	for _, tx := range b.Transactions() {
		if !tx.IsCoinbase() {
			out = append(out, tx.TxHash)
		}
	}
	return out
}

// NetworkVersion returns the block header version this node's network
// expects, used to answer status checks and reject foreign-network peers.
func (s *Server) NetworkVersion() int32 {
	return s.cfg.Params.Version
}

// Stop signals every background goroutine to exit and waits for them.
func (s *Server) Stop() error {
	if s.cancel != nil {
		s.cancel()
	}
	s.queue.Wait()
	s.wg.Wait()
	return s.Store.Close()
}
