// Copyright (c) 2017 The btcsuite developers
// Copyright (c) 2024 The Flokicoin developers
// Use of this source code is governed by an ISC
// license that can be found in the LICENSE file.

// Package netsync implements the gossip and synchronization engine: the
// worker-side state machine that turns dequeued inbound messages into
// chain store mutations and outbound broadcasts.
package netsync

import (
	"github.com/emberchain/emberd/chaincfg"
	"github.com/emberchain/emberd/chainstore"
	"github.com/emberchain/emberd/mempool"
	"github.com/emberchain/emberd/peer"
	"github.com/emberchain/emberd/rpcclient"
)

// MessageType enumerates the wire message kinds this engine handles,
// matching the closed set the reference node's enum named.
type MessageType int

const (
	BlockHeaderMsg MessageType = iota + 1
	BlockInvMsg
	UnconfirmedTransactionMsg
	UnconfirmedTransactionInvMsg
	// BlockTransactionInvMsg identifies a block's transaction inventory
	// in the message catalog. This engine resolves that inventory with
	// a synchronous request (rpcclient.Client.RequestTransactionsInv)
	// rather than a pushed inbox message, so this value is never
	// dispatched through handleInbox; it exists for parity with the
	// reference catalog's numbering.
	BlockTransactionInvMsg
	SynchronizeMsg
)

// PeerNotifier is implemented by the node's server type; it lets the
// sync manager announce locally-relevant events without importing the
// server package back (which would cycle).
type PeerNotifier interface {
	BroadcastBlockInv(hashes []string)
	BroadcastTransactionInv(hashes []string)
}

// Config configures a new SyncManager.
type Config struct {
	PeerNotifier PeerNotifier
	Store        *chainstore.Store
	Mempool      *mempool.Mempool
	ChainParams  *chaincfg.Params
	Client       *rpcclient.Client
	SelfHost     string
}
