package mining

import (
	"context"
	"path/filepath"
	"testing"
	"time"

	"github.com/emberchain/emberd/chain"
	"github.com/emberchain/emberd/chaincfg"
	"github.com/emberchain/emberd/chainstore"
	"github.com/emberchain/emberd/cryptokey"
	"github.com/emberchain/emberd/mempool"
)

func testParams() *chaincfg.Params {
	p := chaincfg.RegressionNetParams
	return &p
}

func openTestStore(t *testing.T) *chainstore.Store {
	t.Helper()
	dir := t.TempDir()
	store, err := chainstore.Open(filepath.Join(dir, "chain"), testParams())
	if err != nil {
		t.Fatalf("Open: %v", err)
	}
	t.Cleanup(func() { store.Close() })
	if err := store.EnsureGenesis(testParams().GenesisBlock().Build()); err != nil {
		t.Fatalf("EnsureGenesis: %v", err)
	}
	return store
}

func TestMineBlockProducesValidBlockAtNextHeight(t *testing.T) {
	store := openTestStore(t)
	pool := mempool.New()
	miner := New(store, pool, testParams(), "miner-address")

	ctx, cancel := context.WithTimeout(context.Background(), 30*time.Second)
	defer cancel()

	block, err := miner.MineBlock(ctx)
	if err != nil {
		t.Fatalf("MineBlock: %v", err)
	}
	if block == nil {
		t.Fatal("expected a mined block, got nil")
	}
	if block.Height != 1 {
		t.Fatalf("expected height 1, got %d", block.Height)
	}
	required, err := store.CalculateHashDifficulty(1)
	if err != nil {
		t.Fatalf("CalculateHashDifficulty: %v", err)
	}
	if block.Header.HashDifficulty() < required {
		t.Fatalf("mined block difficulty %d below required %d", block.Header.HashDifficulty(), required)
	}
	if !block.Transactions()[0].IsCoinbase() {
		t.Fatal("first transaction must be the coinbase")
	}
}

func TestMineBlockIncludesMempoolTransactionsAndFees(t *testing.T) {
	store := openTestStore(t)
	pool := mempool.New()
	priv, _ := cryptokey.GeneratePrivateKey()
	tx := chain.NewTransaction("", "dest", 100, 7, "0", chain.StandardTx, "", "")
	tx.Sign(priv)
	pool.PushUnconfirmedTransaction(tx)

	miner := New(store, pool, testParams(), "miner-address")
	ctx, cancel := context.WithTimeout(context.Background(), 30*time.Second)
	defer cancel()

	block, err := miner.MineBlock(ctx)
	if err != nil {
		t.Fatalf("MineBlock: %v", err)
	}
	if block == nil {
		t.Fatal("expected a mined block")
	}
	txs := block.Transactions()
	if len(txs) != 2 {
		t.Fatalf("expected coinbase + 1 pooled transaction, got %d", len(txs))
	}
	coinbase := txs[0]
	reward := store.GetReward(1)
	if coinbase.Amount != reward+tx.Fee {
		t.Fatalf("expected coinbase amount reward+fee = %d, got %d", reward+tx.Fee, coinbase.Amount)
	}
}

func TestMineBlockAbortsWhenContextCanceled(t *testing.T) {
	store := openTestStore(t)
	pool := mempool.New()
	miner := New(store, pool, testParams(), "miner-address")

	ctx, cancel := context.WithCancel(context.Background())
	cancel()

	block, err := miner.MineBlock(ctx)
	if err != nil {
		t.Fatalf("MineBlock should not error on cancellation, got: %v", err)
	}
	if block != nil {
		t.Fatal("expected no block once the context is already canceled")
	}
}

func TestMineBlockTargetsLatestTip(t *testing.T) {
	store := openTestStore(t)
	pool := mempool.New()
	miner := New(store, pool, testParams(), "miner-address")

	genesis := testParams().GenesisBlock().Build()
	rival := chain.NewBlock(1, []*chain.Transaction{
		chain.NewCoinbase("rival", 5000000000, 0, "0", genesis.Header.Timestamp+5),
	}, genesis.Hash(), genesis.Header.Timestamp+5, 0)

	// A competing block lands on the primary branch before mining
	// starts; MineBlock must read the current tip fresh rather than
	// assume genesis is still the parent.
	for rival.Header.HashDifficulty() < 1 {
		rival.Header.Nonce++
	}
	if _, err := store.AddBlock(rival); err != nil {
		t.Fatalf("AddBlock rival: %v", err)
	}

	ctx, cancel := context.WithTimeout(context.Background(), 30*time.Second)
	defer cancel()
	block, err := miner.MineBlock(ctx)
	if err != nil {
		t.Fatalf("MineBlock: %v", err)
	}
	if block == nil {
		t.Fatal("miner should still produce a block once restarted against the new tip")
	}
	if block.Height != 2 {
		t.Fatalf("expected miner to target height 2 after the rival extended the chain, got %d", block.Height)
	}
}
