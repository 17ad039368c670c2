// Package chaincfg holds the tunable consensus and network parameters
// a node is configured with, plus the hardcoded genesis block for each
// network.
package chaincfg

import "time"

// Params groups every consensus-relevant constant a node needs. Unlike
// a UTXO chain's chaincfg.Params, there is no address-prefix or
// checkpoint machinery here — the account model and fixed genesis are
// the only chain-shape knobs this design has.
type Params struct {
	Name    string
	Version int32

	// InitialCoinsPerBlock is the block subsidy at height 0, expressed in
	// whole coins (not glim).
	InitialCoinsPerBlock float64
	HalvingFrequency     uint64
	SignificantDigits    uint

	MaxTransactionsPerBlock int
	MinimumHashDifficulty   int
	TargetTimePerBlock      time.Duration
	DifficultyAdjustmentSpan uint64
	ShortChainTolerance     uint64

	FullNodePort   string
	MinPeers       int
	MaxPeers       int
	// DowntimeThreshold is how many consecutive recorded downtimes a
	// peer tolerates before it is excluded from broadcasts and sync.
	DowntimeThreshold int

	GenesisBlock func() *GenesisSpec
}

// GenesisSpec is the hardcoded, deterministic description of a
// network's genesis block: a list of GENESIS transactions plus the
// header fields (timestamp, nonce) that together must reproduce a
// specific, known hash. A mismatch on startup is fatal.
type GenesisSpec struct {
	PreviousHash string
	Timestamp    int64
	Nonce        uint32
	Transactions []GenesisTxSpec
}

// GenesisTxSpec describes one hardcoded genesis transaction.
type GenesisTxSpec struct {
	Destination string
	Amount      int64
	Data        string
}

// MainNetParams are the parameters for the production Ember network.
var MainNetParams = Params{
	Name:                     "mainnet",
	Version:                  1,
	InitialCoinsPerBlock:     50,
	HalvingFrequency:         210000,
	SignificantDigits:        8,
	MaxTransactionsPerBlock:  2000,
	MinimumHashDifficulty:    4,
	TargetTimePerBlock:       150 * time.Second,
	DifficultyAdjustmentSpan: 2016,
	ShortChainTolerance:      5,
	FullNodePort:             "15417",
	MinPeers:                 3,
	MaxPeers:                 64,
	DowntimeThreshold:        10,
	GenesisBlock:             mainGenesisSpec,
}

// RegressionNetParams relax difficulty for local development.
var RegressionNetParams = Params{
	Name:                     "regtest",
	Version:                  1,
	InitialCoinsPerBlock:     50,
	HalvingFrequency:         150,
	SignificantDigits:        8,
	MaxTransactionsPerBlock:  2000,
	MinimumHashDifficulty:    1,
	TargetTimePerBlock:       10 * time.Second,
	DifficultyAdjustmentSpan: 20,
	ShortChainTolerance:      5,
	FullNodePort:             "25417",
	MinPeers:                 1,
	MaxPeers:                 16,
	DowntimeThreshold:        3,
	GenesisBlock:             regtestGenesisSpec,
}

// TestNetParams is the public test network.
var TestNetParams = Params{
	Name:                     "testnet",
	Version:                  1,
	InitialCoinsPerBlock:     50,
	HalvingFrequency:         21000,
	SignificantDigits:        8,
	MaxTransactionsPerBlock:  2000,
	MinimumHashDifficulty:    2,
	TargetTimePerBlock:       60 * time.Second,
	DifficultyAdjustmentSpan: 504,
	ShortChainTolerance:      5,
	FullNodePort:             "35417",
	MinPeers:                 2,
	MaxPeers:                 32,
	DowntimeThreshold:        5,
	GenesisBlock:             testnetGenesisSpec,
}
