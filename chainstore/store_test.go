package chainstore

import (
	"path/filepath"
	"testing"

	"github.com/emberchain/emberd/chain"
	"github.com/emberchain/emberd/chaincfg"
)

func testParams() *chaincfg.Params {
	p := chaincfg.RegressionNetParams
	return &p
}

func openTestStore(t *testing.T) *Store {
	t.Helper()
	dir := t.TempDir()
	store, err := Open(filepath.Join(dir, "chain"), testParams())
	if err != nil {
		t.Fatalf("Open: %v", err)
	}
	t.Cleanup(func() { store.Close() })
	return store
}

func mineBlock(t *testing.T, height uint64, previousHash string, timestamp int64, dest string) *chain.Block {
	t.Helper()
	coinbase := chain.NewCoinbase(dest, 5000000000, 0, "0", timestamp)
	return chain.NewBlock(height, []*chain.Transaction{coinbase}, previousHash, timestamp, 0)
}

func TestEnsureGenesisCommitsOnEmptyStore(t *testing.T) {
	store := openTestStore(t)
	genesis := testParams().GenesisBlock().Build()

	if !store.IsEmpty() {
		t.Fatal("a freshly opened store should be empty")
	}
	if err := store.EnsureGenesis(genesis); err != nil {
		t.Fatalf("EnsureGenesis: %v", err)
	}
	if store.IsEmpty() {
		t.Fatal("store should no longer be empty after EnsureGenesis")
	}

	height, hash, err := store.PrimaryTip()
	if err != nil {
		t.Fatalf("PrimaryTip: %v", err)
	}
	if height != 0 || hash != genesis.Hash() {
		t.Fatalf("expected tip (0, %s), got (%d, %s)", genesis.Hash(), height, hash)
	}
}

func TestEnsureGenesisIsIdempotent(t *testing.T) {
	store := openTestStore(t)
	genesis := testParams().GenesisBlock().Build()
	if err := store.EnsureGenesis(genesis); err != nil {
		t.Fatalf("first EnsureGenesis: %v", err)
	}
	if err := store.EnsureGenesis(genesis); err != nil {
		t.Fatalf("second EnsureGenesis should be a no-op, got: %v", err)
	}
}

func TestEnsureGenesisDetectsMismatch(t *testing.T) {
	store := openTestStore(t)
	genesis := testParams().GenesisBlock().Build()
	if err := store.EnsureGenesis(genesis); err != nil {
		t.Fatalf("EnsureGenesis: %v", err)
	}

	foreign := mineBlock(t, 0, "0", genesis.Header.Timestamp, "someone-else")
	if err := store.EnsureGenesis(foreign); err != ErrGenesisMismatch {
		t.Fatalf("expected ErrGenesisMismatch, got %v", err)
	}
}

func TestAddBlockExtendsPrimaryBranch(t *testing.T) {
	store := openTestStore(t)
	genesis := testParams().GenesisBlock().Build()
	if err := store.EnsureGenesis(genesis); err != nil {
		t.Fatalf("EnsureGenesis: %v", err)
	}

	b1 := mineBlock(t, 1, genesis.Hash(), genesis.Header.Timestamp+10, "miner-1")
	branch, err := store.AddBlock(b1)
	if err != nil {
		t.Fatalf("AddBlock: %v", err)
	}
	if branch != 0 {
		t.Fatalf("expected block extending the primary tip to land on branch 0, got %d", branch)
	}

	height, hash, err := store.PrimaryTip()
	if err != nil {
		t.Fatalf("PrimaryTip: %v", err)
	}
	if height != 1 || hash != b1.Hash() {
		t.Fatalf("expected tip (1, %s), got (%d, %s)", b1.Hash(), height, hash)
	}
}

func TestAddBlockReturnsErrOrphanForUnknownParent(t *testing.T) {
	store := openTestStore(t)
	genesis := testParams().GenesisBlock().Build()
	if err := store.EnsureGenesis(genesis); err != nil {
		t.Fatalf("EnsureGenesis: %v", err)
	}

	orphan := mineBlock(t, 5, "deadbeef", genesis.Header.Timestamp+10, "miner-1")
	if _, err := store.AddBlock(orphan); err != ErrOrphan {
		t.Fatalf("expected ErrOrphan, got %v", err)
	}
}

func TestAddBlockReorgsToTallerBranch(t *testing.T) {
	store := openTestStore(t)
	genesis := testParams().GenesisBlock().Build()
	if err := store.EnsureGenesis(genesis); err != nil {
		t.Fatalf("EnsureGenesis: %v", err)
	}

	ts := genesis.Header.Timestamp
	b1 := mineBlock(t, 1, genesis.Hash(), ts+10, "miner-a")
	if _, err := store.AddBlock(b1); err != nil {
		t.Fatalf("AddBlock b1: %v", err)
	}
	b2 := mineBlock(t, 2, b1.Hash(), ts+20, "miner-a")
	if _, err := store.AddBlock(b2); err != nil {
		t.Fatalf("AddBlock b2: %v", err)
	}

	// A competing fork off genesis, initially shorter than the primary.
	forkB1 := mineBlock(t, 1, genesis.Hash(), ts+11, "miner-b")
	forkBranch, err := store.AddBlock(forkB1)
	if err != nil {
		t.Fatalf("AddBlock forkB1: %v", err)
	}
	if forkBranch == 0 {
		t.Fatal("a fork off an already-extended parent must land on a new branch")
	}

	height, hash, _ := store.PrimaryTip()
	if height != 2 || hash != b2.Hash() {
		t.Fatal("primary tip should remain the taller chain before the fork overtakes it")
	}

	// Extend the fork past the primary chain's height; this should
	// trigger a reorg.
	forkB2 := mineBlock(t, 2, forkB1.Hash(), ts+21, "miner-b")
	if _, err := store.AddBlock(forkB2); err != nil {
		t.Fatalf("AddBlock forkB2: %v", err)
	}
	forkB3 := mineBlock(t, 3, forkB2.Hash(), ts+31, "miner-b")
	if _, err := store.AddBlock(forkB3); err != nil {
		t.Fatalf("AddBlock forkB3: %v", err)
	}

	height, hash, err = store.PrimaryTip()
	if err != nil {
		t.Fatalf("PrimaryTip: %v", err)
	}
	if height != 3 || hash != forkB3.Hash() {
		t.Fatalf("expected reorg to promote the fork to primary: got (%d, %s), want (3, %s)",
			height, hash, forkB3.Hash())
	}

	// Height 1 on the primary branch should now resolve to the fork's block.
	atHeight1, err := store.BlockByHeight(0, 1)
	if err != nil {
		t.Fatalf("BlockByHeight(0, 1): %v", err)
	}
	if atHeight1.Hash() != forkB1.Hash() {
		t.Fatalf("reorg should rewrite the primary height index: got %s want %s",
			atHeight1.Hash(), forkB1.Hash())
	}

	// The promoted chain must be relabeled to branch 0, and the displaced
	// chain (the old primary beyond the fork) must be relabeled off of
	// branch 0 rather than left mislabeled forever.
	promotedBranch, err := store.GetBranchByHash(forkB1.Hash())
	if err != nil {
		t.Fatalf("GetBranchByHash(forkB1): %v", err)
	}
	if promotedBranch != 0 {
		t.Fatalf("promoted block should be relabeled to branch 0, got %d", promotedBranch)
	}
	displacedBranch, err := store.GetBranchByHash(b1.Hash())
	if err != nil {
		t.Fatalf("GetBranchByHash(b1): %v", err)
	}
	if displacedBranch == 0 {
		t.Fatal("displaced block should no longer be labeled branch 0")
	}
	displacedBranch2, err := store.GetBranchByHash(b2.Hash())
	if err != nil {
		t.Fatalf("GetBranchByHash(b2): %v", err)
	}
	if displacedBranch2 != displacedBranch {
		t.Fatalf("the whole displaced chain should share one branch id: got %d and %d",
			displacedBranch, displacedBranch2)
	}

	branches, err := store.GetBranchesByPrevHash(genesis.Hash())
	if err != nil {
		t.Fatalf("GetBranchesByPrevHash: %v", err)
	}
	if len(branches) != 2 {
		t.Fatalf("expected two competing children of genesis, got %v", branches)
	}
}

func TestGetBalanceIsScopedToBranch(t *testing.T) {
	store := openTestStore(t)
	genesis := testParams().GenesisBlock().Build()
	if err := store.EnsureGenesis(genesis); err != nil {
		t.Fatalf("EnsureGenesis: %v", err)
	}

	ts := genesis.Header.Timestamp
	primaryAddr := "miner-primary"
	forkAddr := "miner-fork"

	b1 := mineBlock(t, 1, genesis.Hash(), ts+10, primaryAddr)
	if _, err := store.AddBlock(b1); err != nil {
		t.Fatalf("AddBlock b1: %v", err)
	}

	forkB1 := mineBlock(t, 1, genesis.Hash(), ts+11, forkAddr)
	forkBranch, err := store.AddBlock(forkB1)
	if err != nil {
		t.Fatalf("AddBlock forkB1: %v", err)
	}
	if forkBranch == 0 {
		t.Fatal("a fork off an already-extended parent must land on a new branch")
	}

	primaryBalance, err := store.GetBalance(forkAddr, "", 0)
	if err != nil {
		t.Fatalf("GetBalance(forkAddr, branch 0): %v", err)
	}
	if primaryBalance != 0 {
		t.Fatalf("a reward sitting only on a losing branch must not count toward branch 0's balance, got %d",
			primaryBalance)
	}

	forkBalance, err := store.GetBalance(forkAddr, "", forkBranch)
	if err != nil {
		t.Fatalf("GetBalance(forkAddr, forkBranch): %v", err)
	}
	if forkBalance != 5000000000 {
		t.Fatalf("expected the fork reward to be visible when querying its own branch, got %d", forkBalance)
	}

	history, err := store.GetTransactionHistory(forkAddr, forkBranch)
	if err != nil {
		t.Fatalf("GetTransactionHistory: %v", err)
	}
	if len(history) != 1 || history[0].TxHash != forkB1.Transactions()[0].TxHash {
		t.Fatalf("expected the fork coinbase in forkAddr's branch history, got %v", history)
	}
}

func TestGetBalanceTracksIncomingAndOutgoing(t *testing.T) {
	store := openTestStore(t)
	genesis := testParams().GenesisBlock().Build()
	if err := store.EnsureGenesis(genesis); err != nil {
		t.Fatalf("EnsureGenesis: %v", err)
	}
	minerAddr := "miner-reward-address"
	b1 := mineBlock(t, 1, genesis.Hash(), genesis.Header.Timestamp+10, minerAddr)
	if _, err := store.AddBlock(b1); err != nil {
		t.Fatalf("AddBlock: %v", err)
	}

	balance, err := store.GetBalance(minerAddr, "", 0)
	if err != nil {
		t.Fatalf("GetBalance: %v", err)
	}
	if balance != 5000000000 {
		t.Fatalf("expected miner balance to equal the block reward, got %d", balance)
	}
}

func TestFindDuplicateTransaction(t *testing.T) {
	store := openTestStore(t)
	genesis := testParams().GenesisBlock().Build()
	if err := store.EnsureGenesis(genesis); err != nil {
		t.Fatalf("EnsureGenesis: %v", err)
	}
	genesisTxHash := genesis.Transactions()[0].TxHash
	if !store.FindDuplicateTransaction(genesisTxHash) {
		t.Fatal("genesis transaction should be found as a duplicate once committed")
	}
	if store.FindDuplicateTransaction("nonexistent-hash") {
		t.Fatal("an unknown hash should not be reported as a duplicate")
	}
}
