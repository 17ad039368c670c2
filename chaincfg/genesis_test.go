// Copyright (c) 2013-2016 The btcsuite developers
// Copyright (c) 2024 The Flokicoin developers
// Use of this source code is governed by an ISC
// license that can be found in the LICENSE file.

package chaincfg

import (
	"testing"

	"github.com/davecgh/go-spew/spew"
)

// TestGenesisBlocksBuildDeterministically ensures that each network's
// hardcoded GenesisSpec always reconstructs into a block with the exact
// same hash, since EnsureGenesis relies on that determinism to detect a
// foreign or corrupted data directory.
func TestGenesisBlocksBuildDeterministically(t *testing.T) {
	for _, params := range []*Params{&MainNetParams, &RegressionNetParams, &TestNetParams} {
		params := params
		t.Run(params.Name, func(t *testing.T) {
			first := params.GenesisBlock().Build()
			second := params.GenesisBlock().Build()
			if first.Hash() != second.Hash() {
				t.Fatalf("%s genesis is not deterministic:\ngot  %s\nwant %s",
					params.Name, spew.Sdump(second.Hash()), spew.Sdump(first.Hash()))
			}
			if first.Height != 0 {
				t.Fatalf("genesis block must be height 0, got %d", first.Height)
			}
			if len(first.Transactions()) == 0 {
				t.Fatal("genesis block must carry at least one transaction")
			}
		})
	}
}

func TestGenesisTransactionsAreFinalized(t *testing.T) {
	for _, params := range []*Params{&MainNetParams, &RegressionNetParams, &TestNetParams} {
		block := params.GenesisBlock().Build()
		for _, tx := range block.Transactions() {
			if tx.TxHash == "" {
				t.Fatalf("%s: genesis transaction missing tx_hash", params.Name)
			}
			if !tx.Verify() {
				t.Fatalf("%s: genesis transaction must verify", params.Name)
			}
		}
	}
}
