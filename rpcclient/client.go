// Copyright (c) 2014-2017 The btcsuite developers
// Copyright (c) 2024 The Flokicoin developers
// Use of this source code is governed by an ISC
// license that can be found in the LICENSE file.

// Package rpcclient is the semantic API client peers use to talk to one
// another: fetch block headers and transactions, push inventory
// announcements, and check liveness. It is grounded on the reference
// node's ApiClient (request_*/broadcast_* methods) but collapses its
// Future/Async/Receive promise machinery down to plain synchronous
// calls, since this client runs inside the sync worker goroutines and
// never needs to fan a single call out to a caller-chosen later point in
// time the way a wallet-facing JSON-RPC client does.
package rpcclient

import (
	"bytes"
	"encoding/json"
	"fmt"
	"io"
	"net/http"
	"time"

	"github.com/emberchain/emberd/chain"
)

// Client is a thin HTTP client for the peer-to-peer REST surface every
// node exposes on its FullNodePort.
type Client struct {
	hc   *http.Client
	port string
}

// New creates a Client that reaches peers on port (e.g. "15417").
func New(port string) *Client {
	return &Client{hc: &http.Client{Timeout: 10 * time.Second}, port: port}
}

func (c *Client) url(host, path string) string {
	return fmt.Sprintf("http://%s:%s%s", host, c.port, path)
}

func (c *Client) getJSON(url string, out interface{}) error {
	resp, err := c.hc.Get(url)
	if err != nil {
		return err
	}
	defer resp.Body.Close()
	if resp.StatusCode != http.StatusOK {
		return fmt.Errorf("rpcclient: %s returned %d", url, resp.StatusCode)
	}
	body, err := io.ReadAll(resp.Body)
	if err != nil {
		return err
	}
	return json.Unmarshal(body, out)
}

func (c *Client) postJSON(url string, payload interface{}) error {
	buf, err := json.Marshal(payload)
	if err != nil {
		return err
	}
	resp, err := c.hc.Post(url, "application/json", bytes.NewReader(buf))
	if err != nil {
		return err
	}
	defer resp.Body.Close()
	io.Copy(io.Discard, resp.Body)
	return nil
}

// RequestHeight returns a peer's reported primary branch tip height.
func (c *Client) RequestHeight(host string) (uint64, error) {
	var out struct {
		Height uint64 `json:"height"`
	}
	if err := c.getJSON(c.url(host, "/height"), &out); err != nil {
		return 0, err
	}
	return out.Height, nil
}

// RequestBlockHeader fetches a block header by hash, or by height when
// hash is empty ("latest" when height is also empty).
func (c *Client) RequestBlockHeader(host string, blockHash string, height string) (*chain.BlockHeader, error) {
	var path string
	switch {
	case blockHash != "":
		path = "/blocks/hash/" + blockHash
	case height != "":
		path = "/blocks/height/" + height
	default:
		path = "/blocks/height/latest"
	}
	var header chain.BlockHeader
	if err := c.getJSON(c.url(host, path), &header); err != nil {
		return nil, err
	}
	return &header, nil
}

// RequestTransaction fetches a single transaction by hash, verifying
// the peer didn't lie about its own hash.
func (c *Client) RequestTransaction(host, txHash string) (*chain.Transaction, error) {
	var tx chain.Transaction
	if err := c.getJSON(c.url(host, "/transactions/"+txHash), &tx); err != nil {
		return nil, err
	}
	if tx.TxHash != txHash {
		return nil, fmt.Errorf("rpcclient: peer %s returned mismatched tx hash", host)
	}
	return &tx, nil
}

// RequestTransactionsInv fetches the ordered transaction hash list for
// a block, used to reconstruct a block from just its header.
func (c *Client) RequestTransactionsInv(host, blockHash string) ([]string, error) {
	var out struct {
		TxHashes []string `json:"tx_hashes"`
	}
	if err := c.getJSON(c.url(host, "/transactions_inv/"+blockHash), &out); err != nil {
		return nil, err
	}
	return out.TxHashes, nil
}

// RequestBlocksInv fetches the block hash list between two heights,
// used to drive a synchronize exchange between peers.
func (c *Client) RequestBlocksInv(host string, startHeight, stopHeight uint64) ([]string, error) {
	path := fmt.Sprintf("/blocks_inv?start=%d&stop=%d", startHeight, stopHeight)
	var out struct {
		BlockHashes []string `json:"block_hashes"`
	}
	if err := c.getJSON(c.url(host, path), &out); err != nil {
		return nil, err
	}
	return out.BlockHashes, nil
}

// inboxMessage is the envelope every push to a peer's inbox uses.
type inboxMessage struct {
	Host string      `json:"host"`
	Type int         `json:"type"`
	Data interface{} `json:"data"`
}

// BroadcastBlockInv pushes a BLOCK_INV announcement to host's inbox.
func (c *Client) BroadcastBlockInv(host, selfHost string, hashes []string) error {
	return c.postJSON(c.url(host, "/inbox"), inboxMessage{Host: selfHost, Type: 2, Data: hashes})
}

// BroadcastUnconfirmedTransactionInv pushes an
// UNCONFIRMED_TRANSACTION_INV announcement to host's inbox.
func (c *Client) BroadcastUnconfirmedTransactionInv(host, selfHost string, hashes []string) error {
	return c.postJSON(c.url(host, "/inbox"), inboxMessage{Host: selfHost, Type: 4, Data: hashes})
}

// BroadcastBlockHeader pushes a self-mined BLOCK_HEADER to host's inbox.
func (c *Client) BroadcastBlockHeader(host, selfHost string, header *chain.BlockHeader) error {
	return c.postJSON(c.url(host, "/inbox"), inboxMessage{Host: selfHost, Type: 1, Data: header})
}

// BroadcastTransaction posts a locally originated transaction to host.
func (c *Client) BroadcastTransaction(host, selfHost string, tx *chain.Transaction) error {
	return c.postJSON(c.url(host, "/inbox"), inboxMessage{Host: selfHost, Type: 3, Data: tx})
}

// PushSynchronize sends a SYNCHRONIZE request to host, advertising the
// sender's own blocks inventory and current height.
func (c *Client) PushSynchronize(host, selfHost string, currentHeight uint64, blocksInv []string) error {
	data := map[string]interface{}{"height": currentHeight, "blocks_inv": blocksInv}
	return c.postJSON(c.url(host, "/inbox"), inboxMessage{Host: selfHost, Type: 6, Data: data})
}

// PingStatus reports whether host is reachable and on the expected
// network version.
func (c *Client) PingStatus(host string, expectedVersion int) bool {
	var out struct {
		Version int `json:"version"`
	}
	if err := c.getJSON(c.url(host, "/status"), &out); err != nil {
		return false
	}
	return out.Version == expectedVersion
}

// RequestNodes asks host for its known peer list.
func (c *Client) RequestNodes(host string) ([]string, error) {
	var nodes []string
	if err := c.getJSON(c.url(host, "/nodes"), &nodes); err != nil {
		return nil, err
	}
	return nodes, nil
}

// Connect announces selfHost to a peer, completing the two-step
// status-then-connect handshake.
func (c *Client) Connect(host, selfHost string, networkVersion int) (bool, error) {
	var out struct {
		Success bool `json:"success"`
	}
	url := c.url(host, "/connect")
	buf, err := json.Marshal(map[string]interface{}{"host": selfHost, "network": networkVersion})
	if err != nil {
		return false, err
	}
	resp, err := c.hc.Post(url, "application/json", bytes.NewReader(buf))
	if err != nil {
		return false, err
	}
	defer resp.Body.Close()
	if resp.StatusCode != http.StatusAccepted {
		return false, nil
	}
	body, _ := io.ReadAll(resp.Body)
	json.Unmarshal(body, &out)
	return out.Success, nil
}
