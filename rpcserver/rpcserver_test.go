package rpcserver

import (
	"bytes"
	"encoding/json"
	"net/http"
	"net/http/httptest"
	"path/filepath"
	"testing"
	"time"

	"github.com/emberchain/emberd/chain"
	"github.com/emberchain/emberd/chaincfg"
	"github.com/emberchain/emberd/cryptokey"
	"github.com/emberchain/emberd/server"
)

func testParams() *chaincfg.Params {
	p := chaincfg.RegressionNetParams
	return &p
}

func newTestServer(t *testing.T) (*Server, *httptest.Server) {
	t.Helper()
	dir := t.TempDir()
	node, err := server.New(server.Config{
		DataDir:    filepath.Join(dir, "chain"),
		SelfHost:   "self",
		Params:     testParams(),
		Workers:    2,
		QueueDepth: 16,
	})
	if err != nil {
		t.Fatalf("server.New: %v", err)
	}
	node.Start()
	t.Cleanup(func() { node.Stop() })

	rpc := New(node, "127.0.0.1:0")
	ts := httptest.NewServer(rpc.mux)
	t.Cleanup(ts.Close)
	return rpc, ts
}

func TestHandleStatusReportsNetworkVersion(t *testing.T) {
	_, ts := newTestServer(t)
	resp, err := http.Get(ts.URL + "/status")
	if err != nil {
		t.Fatalf("GET /status: %v", err)
	}
	defer resp.Body.Close()

	var out struct {
		Version int32 `json:"version"`
	}
	if err := json.NewDecoder(resp.Body).Decode(&out); err != nil {
		t.Fatalf("decode: %v", err)
	}
	if out.Version != testParams().Version {
		t.Fatalf("expected version %d, got %d", testParams().Version, out.Version)
	}
}

func TestHandleHeightReportsGenesisHeight(t *testing.T) {
	_, ts := newTestServer(t)
	resp, err := http.Get(ts.URL + "/height")
	if err != nil {
		t.Fatalf("GET /height: %v", err)
	}
	defer resp.Body.Close()

	var out struct {
		Height uint64 `json:"height"`
	}
	json.NewDecoder(resp.Body).Decode(&out)
	if out.Height != 0 {
		t.Fatalf("expected height 0 right after genesis, got %d", out.Height)
	}
}

func TestHandleConnectUpsertsPeerAndReturns202(t *testing.T) {
	rpc, ts := newTestServer(t)
	body, _ := json.Marshal(map[string]interface{}{"host": "peer-a", "network": int(testParams().Version)})
	resp, err := http.Post(ts.URL+"/connect", "application/json", bytes.NewReader(body))
	if err != nil {
		t.Fatalf("POST /connect: %v", err)
	}
	defer resp.Body.Close()
	if resp.StatusCode != http.StatusAccepted {
		t.Fatalf("expected 202 Accepted, got %d", resp.StatusCode)
	}
	if rpc.node.Peers.GetPeer("peer-a") == nil {
		t.Fatal("expected peer-a to be registered")
	}
}

func TestHandleSubmitTransactionEnqueuesAndReturnsHash(t *testing.T) {
	_, ts := newTestServer(t)
	// A remote submission is validated before it is pooled, so the
	// transaction is signed; amount and fee are zero so the fresh key's
	// zero balance covers them.
	priv, _ := cryptokey.GeneratePrivateKey()
	tx := chain.NewTransaction("", "dest", 0, 0, "0", chain.StandardTx, "", "")
	tx.Sign(priv)

	buf, _ := json.Marshal(tx)
	resp, err := http.Post(ts.URL+"/transactions", "application/json", bytes.NewReader(buf))
	if err != nil {
		t.Fatalf("POST /transactions: %v", err)
	}
	defer resp.Body.Close()
	if resp.StatusCode != http.StatusAccepted {
		t.Fatalf("expected 202 Accepted, got %d", resp.StatusCode)
	}

	var out struct {
		TxHash string `json:"tx_hash"`
	}
	json.NewDecoder(resp.Body).Decode(&out)
	if out.TxHash != tx.TxHash {
		t.Fatalf("expected echoed tx_hash %s, got %s", tx.TxHash, out.TxHash)
	}

	deadline := time.Now().Add(2 * time.Second)
	for time.Now().Before(deadline) {
		resp, err := http.Get(ts.URL + "/transactions/" + tx.TxHash)
		if err == nil && resp.StatusCode == http.StatusOK {
			resp.Body.Close()
			return
		}
		if resp != nil {
			resp.Body.Close()
		}
		time.Sleep(10 * time.Millisecond)
	}
	t.Fatal("submitted transaction never became visible via /transactions/{hash}")
}

func TestHandleTransactionReturns404ForUnknownHash(t *testing.T) {
	_, ts := newTestServer(t)
	resp, err := http.Get(ts.URL + "/transactions/does-not-exist")
	if err != nil {
		t.Fatalf("GET: %v", err)
	}
	defer resp.Body.Close()
	if resp.StatusCode != http.StatusNotFound {
		t.Fatalf("expected 404, got %d", resp.StatusCode)
	}
}

func TestHandleBlockByHeightLatestReturnsGenesis(t *testing.T) {
	_, ts := newTestServer(t)
	resp, err := http.Get(ts.URL + "/blocks/height/latest")
	if err != nil {
		t.Fatalf("GET: %v", err)
	}
	defer resp.Body.Close()
	if resp.StatusCode != http.StatusOK {
		t.Fatalf("expected 200, got %d", resp.StatusCode)
	}
	var header chain.BlockHeader
	if err := json.NewDecoder(resp.Body).Decode(&header); err != nil {
		t.Fatalf("decode: %v", err)
	}
	genesis := testParams().GenesisBlock().Build()
	if header.Hash() != genesis.Hash() {
		t.Fatalf("expected genesis header, got hash %s", header.Hash())
	}
}

func TestHandleBlocksInvReturnsOnlyKnownHeights(t *testing.T) {
	_, ts := newTestServer(t)
	resp, err := http.Get(ts.URL + "/blocks_inv?start=0&stop=5")
	if err != nil {
		t.Fatalf("GET: %v", err)
	}
	defer resp.Body.Close()
	var out struct {
		BlockHashes []string `json:"block_hashes"`
	}
	json.NewDecoder(resp.Body).Decode(&out)
	if len(out.BlockHashes) != 1 {
		t.Fatalf("expected only the genesis hash for an unmined chain, got %v", out.BlockHashes)
	}
}

func TestHandleBalanceForUnknownAddressIsZero(t *testing.T) {
	_, ts := newTestServer(t)
	resp, err := http.Get(ts.URL + "/balance/nobody")
	if err != nil {
		t.Fatalf("GET: %v", err)
	}
	defer resp.Body.Close()
	var out struct {
		Balance int64 `json:"balance"`
	}
	json.NewDecoder(resp.Body).Decode(&out)
	if out.Balance != 0 {
		t.Fatalf("expected zero balance for an unknown address, got %d", out.Balance)
	}
}
