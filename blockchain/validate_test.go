package blockchain

import (
	"errors"
	"path/filepath"
	"testing"

	"github.com/emberchain/emberd/chain"
	"github.com/emberchain/emberd/chaincfg"
	"github.com/emberchain/emberd/chainerr"
	"github.com/emberchain/emberd/chainhash"
	"github.com/emberchain/emberd/chainstore"
)

func testParams() *chaincfg.Params {
	p := chaincfg.RegressionNetParams
	return &p
}

// fakeMempool satisfies UnconfirmedLookup without pulling in the
// mempool package, avoiding an import cycle in tests.
type fakeMempool struct {
	txs map[string]*chain.Transaction
}

func (f fakeMempool) GetUnconfirmedTransaction(txHash string) (*chain.Transaction, bool) {
	tx, ok := f.txs[txHash]
	return tx, ok
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

func ruleErrorCode(t *testing.T, err error) chainerr.ErrorCode {
	t.Helper()
	var re chainerr.RuleError
	if !errors.As(err, &re) {
		t.Fatalf("expected a chainerr.RuleError, got %T: %v", err, err)
	}
	return re.Code
}

func TestCheckBlockRewardAcceptsExactSubsidyPlusFees(t *testing.T) {
	store := openTestStore(t)
	v := New(store, testParams(), fakeMempool{})

	genesis := testParams().GenesisBlock().Build()
	reward := store.GetReward(1)
	coinbase := chain.NewCoinbase("miner", reward, 0, "0", genesis.Header.Timestamp+10)
	block := chain.NewBlock(1, []*chain.Transaction{coinbase}, genesis.Hash(), genesis.Header.Timestamp+10, 0)

	if err := v.CheckBlockReward(block); err != nil {
		t.Fatalf("CheckBlockReward: %v", err)
	}
}

func TestCheckBlockRewardCoinbaseRewardEndToEnd(t *testing.T) {
	// Mirrors the height-5 coinbase reward scenario: a coinbase amount
	// that does not equal reward(height) plus the sum of fees must be
	// rejected.
	store := openTestStore(t)
	v := New(store, testParams(), fakeMempool{})

	reward := store.GetReward(5)
	fee := int64(10000000) // 0.1 EMB at 1e8 glim/EMB
	standardTx := &chain.Transaction{
		Source: "someone", Destination: "dest", Amount: 1, Fee: fee,
		Type: chain.StandardTx, Asset: chain.NativeAssetID, PrevHash: "0",
	}
	standardTx.Finalize()

	goodCoinbase := chain.NewCoinbase("miner", reward, fee, "prev-coinbase-hash", 1000)
	goodBlock := chain.NewBlock(5, []*chain.Transaction{goodCoinbase, standardTx}, "parent-hash", 1000, 0)
	if err := v.CheckBlockReward(goodBlock); err != nil {
		t.Fatalf("expected matching coinbase amount to pass, got: %v", err)
	}

	badCoinbase := chain.NewCoinbase("miner", reward, 0, "prev-coinbase-hash", 1000)
	badBlock := chain.NewBlock(5, []*chain.Transaction{badCoinbase, standardTx}, "parent-hash", 1000, 0)
	err := v.CheckBlockReward(badBlock)
	if err == nil {
		t.Fatal("expected a coinbase amount that omits the fee to be rejected")
	}
	if code := ruleErrorCode(t, err); code != chainerr.ErrInvalidCoinbase {
		t.Fatalf("expected ErrInvalidCoinbase, got %s", code)
	}
}

func TestCheckBlockRewardRejectsMultipleCoinbases(t *testing.T) {
	store := openTestStore(t)
	v := New(store, testParams(), fakeMempool{})

	reward := store.GetReward(1)
	coinbase1 := chain.NewCoinbase("miner-a", reward, 0, "0", 1000)
	coinbase2 := chain.NewCoinbase("miner-b", reward, 0, "0", 1000)
	block := chain.NewBlock(1, []*chain.Transaction{coinbase1, coinbase2}, "parent-hash", 1000, 0)

	err := v.CheckBlockReward(block)
	if err == nil {
		t.Fatal("expected a second coinbase transaction to be rejected")
	}
	if code := ruleErrorCode(t, err); code != chainerr.ErrInvalidCoinbase {
		t.Fatalf("expected ErrInvalidCoinbase, got %s", code)
	}
}

func TestCheckBlockRewardRejectsMissingCoinbase(t *testing.T) {
	store := openTestStore(t)
	v := New(store, testParams(), fakeMempool{})

	standardTx := &chain.Transaction{
		Source: "someone", Destination: "dest", Amount: 1, Fee: 0,
		Type: chain.StandardTx, Asset: chain.NativeAssetID, PrevHash: "0",
	}
	standardTx.Finalize()
	block := chain.NewBlock(1, []*chain.Transaction{standardTx}, "parent-hash", 1000, 0)

	err := v.CheckBlockReward(block)
	if err == nil {
		t.Fatal("expected a block with no coinbase transaction to be rejected")
	}
	if code := ruleErrorCode(t, err); code != chainerr.ErrInvalidCoinbase {
		t.Fatalf("expected ErrInvalidCoinbase, got %s", code)
	}
}

func TestValidateBlockRejectsMerkleRootMismatch(t *testing.T) {
	store := openTestStore(t)
	v := New(store, testParams(), fakeMempool{})

	genesis := testParams().GenesisBlock().Build()
	reward := store.GetReward(1)
	coinbase := chain.NewCoinbase("miner", reward, 0, "0", genesis.Header.Timestamp+10)
	block := chain.NewBlock(1, []*chain.Transaction{coinbase}, genesis.Hash(), genesis.Header.Timestamp+10, 0)

	err := v.ValidateBlock(block, "not-the-real-merkle-root")
	if err == nil {
		t.Fatal("expected a merkle root mismatch to be rejected")
	}
	if code := ruleErrorCode(t, err); code != chainerr.ErrInvalidHash {
		t.Fatalf("expected ErrInvalidHash, got %s", code)
	}
}

func TestValidateBlockAcceptsMatchingMerkleRootAndReward(t *testing.T) {
	store := openTestStore(t)
	v := New(store, testParams(), fakeMempool{})

	genesis := testParams().GenesisBlock().Build()
	reward := store.GetReward(1)
	coinbase := chain.NewCoinbase("miner", reward, 0, "0", genesis.Header.Timestamp+10)
	block := chain.NewBlock(1, []*chain.Transaction{coinbase}, genesis.Hash(), genesis.Header.Timestamp+10, 0)

	if err := v.ValidateBlock(block, block.Header.MerkleRoot); err != nil {
		t.Fatalf("ValidateBlock: %v", err)
	}
}

func TestValidateBlockHeaderRejectsInsufficientDifficulty(t *testing.T) {
	store := openTestStore(t)
	v := New(store, testParams(), fakeMempool{})

	genesis := testParams().GenesisBlock().Build()
	required, err := store.CalculateHashDifficulty(1)
	if err != nil {
		t.Fatalf("CalculateHashDifficulty: %v", err)
	}
	if required < 1 {
		t.Fatal("test assumes height 1 requires at least one leading zero on regression net")
	}

	txInv := []string{"only-leaf-hash"}
	root := chainhash.MerkleRoot(txInv)
	header := chain.NewBlockHeader(genesis.Hash(), root, genesis.Header.Timestamp+10, 0)
	for header.HashDifficulty() >= required {
		header.Nonce++
	}

	_, status, err := v.ValidateBlockHeader(header, txInv)
	if err != nil {
		t.Fatalf("ValidateBlockHeader: %v", err)
	}
	if status != HeaderInvalid {
		t.Fatalf("expected HeaderInvalid for a header below the required difficulty, got %v", status)
	}
}

func TestValidateBlockHeaderOutOfSyncForUnknownParent(t *testing.T) {
	store := openTestStore(t)
	v := New(store, testParams(), fakeMempool{})

	txInv := []string{"only-leaf-hash"}
	root := chainhash.MerkleRoot(txInv)
	header := chain.NewBlockHeader("some-unknown-parent-hash", root, 1000, 0)

	_, status, err := v.ValidateBlockHeader(header, txInv)
	if err != nil {
		t.Fatalf("ValidateBlockHeader: %v", err)
	}
	if status != HeaderOutOfSync {
		t.Fatalf("expected HeaderOutOfSync for an unknown parent, got %v", status)
	}
}

func TestValidateBlockHeaderRejectsMerkleMismatch(t *testing.T) {
	store := openTestStore(t)
	v := New(store, testParams(), fakeMempool{})

	genesis := testParams().GenesisBlock().Build()
	txInv := []string{"only-leaf-hash"}
	header := chain.NewBlockHeader(genesis.Hash(), "not-the-right-root", 1000, 0)

	_, status, err := v.ValidateBlockHeader(header, txInv)
	if err != nil {
		t.Fatalf("ValidateBlockHeader: %v", err)
	}
	if status != HeaderInvalid {
		t.Fatalf("expected HeaderInvalid for a merkle root mismatch, got %v", status)
	}
}

func TestValidateBlockHeaderRejectsWrongVersion(t *testing.T) {
	store := openTestStore(t)
	v := New(store, testParams(), fakeMempool{})

	genesis := testParams().GenesisBlock().Build()
	txInv := []string{"only-leaf-hash"}
	root := chainhash.MerkleRoot(txInv)
	header := chain.NewBlockHeader(genesis.Hash(), root, 1000, 0)
	header.Version = testParams().Version + 1

	_, status, err := v.ValidateBlockHeader(header, txInv)
	if err != nil {
		t.Fatalf("ValidateBlockHeader: %v", err)
	}
	if status != HeaderInvalid {
		t.Fatalf("expected HeaderInvalid for a wrong version, got %v", status)
	}
}
