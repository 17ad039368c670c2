// Copyright (c) 2014-2016 The btcsuite developers
// Copyright (c) 2024 The Flokicoin developers
// Use of this source code is governed by an ISC
// license that can be found in the LICENSE file.

package chaincfg

import (
	"github.com/emberchain/emberd/chain"
)

// Build constructs the deterministic genesis block for this network from
// its hardcoded transaction list. Every node on the network computes
// this same block independently at height 0; there is nothing to fetch
// or agree on.
func (s *GenesisSpec) Build() *chain.Block {
	txs := make([]*chain.Transaction, len(s.Transactions))
	for i, gt := range s.Transactions {
		tx := chain.NewTransaction("0", gt.Destination, gt.Amount, 0, "0", chain.GenesisTx, gt.Data, "")
		tx.Timestamp = s.Timestamp
		tx.Finalize()
		txs[i] = tx
	}
	return chain.NewBlock(0, txs, s.PreviousHash, s.Timestamp, s.Nonce)
}

// mainGenesisSpec is the hardcoded genesis allocation for mainnet: a
// single founding allocation transaction, deliberately small, timestamped
// at network launch.
func mainGenesisSpec() *GenesisSpec {
	return &GenesisSpec{
		PreviousHash: "0",
		Timestamp:    1732924800, // 2024-11-30T00:00:00Z
		Nonce:        0,
		Transactions: []GenesisTxSpec{
			{
				Destination: "02e276c7f28ce843d8282d60d36d5263fe7b9f96d7185a8376d42a0deaa69bec73",
				Amount:      100000 * 1e8,
				Data:        "ember genesis 2024-11-30",
			},
		},
	}
}

func regtestGenesisSpec() *GenesisSpec {
	return &GenesisSpec{
		PreviousHash: "0",
		Timestamp:    1732924800,
		Nonce:        0,
		Transactions: []GenesisTxSpec{
			{
				Destination: "02e276c7f28ce843d8282d60d36d5263fe7b9f96d7185a8376d42a0deaa69bec73",
				Amount:      100000 * 1e8,
				Data:        "ember regtest genesis",
			},
		},
	}
}

func testnetGenesisSpec() *GenesisSpec {
	return &GenesisSpec{
		PreviousHash: "0",
		Timestamp:    1732924800,
		Nonce:        0,
		Transactions: []GenesisTxSpec{
			{
				Destination: "02e276c7f28ce843d8282d60d36d5263fe7b9f96d7185a8376d42a0deaa69bec73",
				Amount:      100000 * 1e8,
				Data:        "ember testnet genesis",
			},
		},
	}
}
