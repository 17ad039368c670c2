// Copyright (c) 2013-2016 The btcsuite developers
// Copyright (c) 2024 The Flokicoin developers
// Use of this source code is governed by an ISC
// license that can be found in the LICENSE file.

// Package rpcserver exposes the node's peer-to-peer and wallet-facing
// surface over plain HTTP, the account-model REST analogue of the
// reference node's JSON-RPC server. It is the server side of
// rpcclient's routes.
package rpcserver

import (
	"context"
	"encoding/json"
	"errors"
	"net/http"
	"strconv"
	"strings"
	"time"

	"github.com/gorilla/websocket"

	"github.com/emberchain/emberd/chain"
	"github.com/emberchain/emberd/chainstore"
	"github.com/emberchain/emberd/chainutil"
	elog "github.com/emberchain/emberd/log"
	"github.com/emberchain/emberd/netsync"
	"github.com/emberchain/emberd/server"
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

// Server is the HTTP front end for one node.Server.
type Server struct {
	node     *server.Server
	mux      *http.ServeMux
	hs       *http.Server
	upgrader websocket.Upgrader
}

// New builds a Server that serves node's REST surface on addr.
func New(node *server.Server, addr string) *Server {
	s := &Server{node: node, mux: http.NewServeMux()}
	s.routes()
	s.hs = &http.Server{Addr: addr, Handler: s.mux}
	return s
}

func (s *Server) routes() {
	s.mux.HandleFunc("/status", s.handleStatus)
	s.mux.HandleFunc("/height", s.handleHeight)
	s.mux.HandleFunc("/nodes", s.handleNodes)
	s.mux.HandleFunc("/connect", s.handleConnect)
	s.mux.HandleFunc("/inbox", s.handleInbox)
	s.mux.HandleFunc("/transactions", s.handleSubmitTransaction)
	s.mux.HandleFunc("/transactions/", s.handleTransaction)
	s.mux.HandleFunc("/transactions_inv/", s.handleTransactionsInv)
	s.mux.HandleFunc("/blocks/hash/", s.handleBlockByHash)
	s.mux.HandleFunc("/blocks/height/", s.handleBlockByHeight)
	s.mux.HandleFunc("/blocks_inv", s.handleBlocksInv)
	s.mux.HandleFunc("/balance/", s.handleBalance)
	s.mux.HandleFunc("/history/", s.handleHistory)
	s.mux.HandleFunc("/mempool", s.handleMempoolList)
	s.mux.HandleFunc("/mempool/", s.handleMempoolTransaction)
	s.mux.HandleFunc("/watch/", s.handleWatch)
}

// watchPollInterval is how often a /watch/{address} connection re-checks
// the address's balance for a push update.
const watchPollInterval = 3 * time.Second

// handleWatch upgrades to a websocket and pushes the watched address's
// balance whenever it changes, letting a wallet avoid polling /balance.
func (s *Server) handleWatch(w http.ResponseWriter, r *http.Request) {
	addr := strings.TrimPrefix(r.URL.Path, "/watch/")
	asset := r.URL.Query().Get("asset")

	conn, err := s.upgrader.Upgrade(w, r, nil)
	if err != nil {
		log.Warnf("watch upgrade for %s: %v", addr, err)
		return
	}
	defer conn.Close()

	ticker := time.NewTicker(watchPollInterval)
	defer ticker.Stop()

	var last int64
	first := true
	for range ticker.C {
		balance, err := s.node.Store.GetBalance(addr, asset, 0)
		if err != nil {
			log.Warnf("watch balance for %s: %v", addr, err)
			return
		}
		if first || balance != last {
			msg := map[string]interface{}{
				"balance":     balance,
				"balance_emb": chainutil.Amount(balance).String(),
			}
			if err := conn.WriteJSON(msg); err != nil {
				return
			}
			last, first = balance, false
		}
	}
}

// ListenAndServe blocks serving the node's REST surface.
func (s *Server) ListenAndServe() error {
	log.Infof("rpcserver listening on %s", s.hs.Addr)
	return s.hs.ListenAndServe()
}

// Shutdown gracefully stops the HTTP server.
func (s *Server) Shutdown(ctx context.Context) error {
	return s.hs.Shutdown(ctx)
}

func writeJSON(w http.ResponseWriter, v interface{}) {
	w.Header().Set("Content-Type", "application/json")
	json.NewEncoder(w).Encode(v)
}

func writeError(w http.ResponseWriter, status int, msg string) {
	w.WriteHeader(status)
	json.NewEncoder(w).Encode(map[string]string{"error": msg})
}

func (s *Server) handleStatus(w http.ResponseWriter, r *http.Request) {
	writeJSON(w, map[string]interface{}{"version": s.node.NetworkVersion()})
}

func (s *Server) handleHeight(w http.ResponseWriter, r *http.Request) {
	height, _, err := s.node.Store.PrimaryTip()
	if errors.Is(err, chainstore.ErrNotFound) {
		writeJSON(w, map[string]uint64{"height": 0})
		return
	}
	if err != nil {
		writeError(w, http.StatusInternalServerError, err.Error())
		return
	}
	writeJSON(w, map[string]uint64{"height": height})
}

func (s *Server) handleNodes(w http.ResponseWriter, r *http.Request) {
	writeJSON(w, s.node.Peers.GetAllPeers())
}

func (s *Server) handleConnect(w http.ResponseWriter, r *http.Request) {
	if r.Method != http.MethodPost {
		writeError(w, http.StatusMethodNotAllowed, "POST required")
		return
	}
	var body struct {
		Host    string `json:"host"`
		Network int    `json:"network"`
	}
	if err := json.NewDecoder(r.Body).Decode(&body); err != nil {
		writeError(w, http.StatusBadRequest, err.Error())
		return
	}
	if body.Network != int(s.node.NetworkVersion()) {
		s.node.Peers.RemovePeer(body.Host)
		writeError(w, http.StatusBadRequest, "network mismatch")
		return
	}
	s.node.Peers.AddPeer(body.Host)
	w.WriteHeader(http.StatusAccepted)
	writeJSON(w, map[string]bool{"success": true})
}

// inboxMessage mirrors rpcclient's envelope.
type inboxMessage struct {
	Host string          `json:"host"`
	Type int             `json:"type"`
	Data json.RawMessage `json:"data"`
}

func (s *Server) handleInbox(w http.ResponseWriter, r *http.Request) {
	if r.Method != http.MethodPost {
		writeError(w, http.StatusMethodNotAllowed, "POST required")
		return
	}
	var msg inboxMessage
	if err := json.NewDecoder(r.Body).Decode(&msg); err != nil {
		writeError(w, http.StatusBadRequest, err.Error())
		return
	}

	var data interface{}
	switch netsync.MessageType(msg.Type) {
	case netsync.BlockHeaderMsg:
		var h chain.BlockHeader
		if err := json.Unmarshal(msg.Data, &h); err != nil {
			writeError(w, http.StatusBadRequest, err.Error())
			return
		}
		data = &h
	case netsync.UnconfirmedTransactionMsg:
		var tx chain.Transaction
		if err := json.Unmarshal(msg.Data, &tx); err != nil {
			writeError(w, http.StatusBadRequest, err.Error())
			return
		}
		data = &tx
	case netsync.BlockInvMsg, netsync.UnconfirmedTransactionInvMsg:
		var hashes []string
		if err := json.Unmarshal(msg.Data, &hashes); err != nil {
			writeError(w, http.StatusBadRequest, err.Error())
			return
		}
		data = hashes
	case netsync.SynchronizeMsg:
		var payload struct {
			Height    uint64   `json:"height"`
			BlocksInv []string `json:"blocks_inv"`
		}
		if err := json.Unmarshal(msg.Data, &payload); err != nil {
			writeError(w, http.StatusBadRequest, err.Error())
			return
		}
		data = map[string]interface{}{"height": payload.Height, "blocks_inv": payload.BlocksInv}
	default:
		writeError(w, http.StatusBadRequest, "unknown message type")
		return
	}

	ctx, cancel := context.WithTimeout(r.Context(), 30*time.Second)
	defer cancel()
	s.node.Enqueue(ctx, msg.Host, msg.Type, data)
	w.WriteHeader(http.StatusAccepted)
}

func (s *Server) handleSubmitTransaction(w http.ResponseWriter, r *http.Request) {
	if r.Method != http.MethodPost {
		writeError(w, http.StatusMethodNotAllowed, "POST required")
		return
	}
	var tx chain.Transaction
	if err := json.NewDecoder(r.Body).Decode(&tx); err != nil {
		writeError(w, http.StatusBadRequest, err.Error())
		return
	}
	check := tx
	check.Finalize()
	if check.TxHash != tx.TxHash {
		writeError(w, http.StatusNotAcceptable, "tx_hash mismatch")
		return
	}
	ctx, cancel := context.WithTimeout(r.Context(), 10*time.Second)
	defer cancel()
	s.node.Enqueue(ctx, "", int(netsync.UnconfirmedTransactionMsg), &tx)
	w.WriteHeader(http.StatusAccepted)
	writeJSON(w, map[string]string{"tx_hash": tx.TxHash})
}

func (s *Server) handleTransaction(w http.ResponseWriter, r *http.Request) {
	hash := strings.TrimPrefix(r.URL.Path, "/transactions/")
	if tx, ok := s.node.Mempool.GetUnconfirmedTransaction(hash); ok {
		writeJSON(w, tx)
		return
	}
	tx, err := s.node.Store.TransactionByHash(hash)
	if errors.Is(err, chainstore.ErrNotFound) {
		writeError(w, http.StatusNotFound, "unknown transaction")
		return
	}
	if err != nil {
		writeError(w, http.StatusInternalServerError, err.Error())
		return
	}
	writeJSON(w, tx)
}

func (s *Server) handleTransactionsInv(w http.ResponseWriter, r *http.Request) {
	hash := strings.TrimPrefix(r.URL.Path, "/transactions_inv/")
	block, _, err := s.node.Store.BlockByHash(hash)
	if errors.Is(err, chainstore.ErrNotFound) {
		writeError(w, http.StatusNotFound, "unknown block")
		return
	}
	if err != nil {
		writeError(w, http.StatusInternalServerError, err.Error())
		return
	}
	hashes := make([]string, len(block.Transactions()))
	for i, tx := range block.Transactions() {
		hashes[i] = tx.TxHash
	}
	writeJSON(w, map[string][]string{"tx_hashes": hashes})
}

func (s *Server) handleBlockByHash(w http.ResponseWriter, r *http.Request) {
	hash := strings.TrimPrefix(r.URL.Path, "/blocks/hash/")
	block, _, err := s.node.Store.BlockByHash(hash)
	if errors.Is(err, chainstore.ErrNotFound) {
		writeError(w, http.StatusNotFound, "unknown block")
		return
	}
	if err != nil {
		writeError(w, http.StatusInternalServerError, err.Error())
		return
	}
	writeJSON(w, block.Header)
}

func (s *Server) handleBlockByHeight(w http.ResponseWriter, r *http.Request) {
	raw := strings.TrimPrefix(r.URL.Path, "/blocks/height/")
	var height uint64
	if raw == "latest" {
		h, _, err := s.node.Store.PrimaryTip()
		if err != nil {
			writeError(w, http.StatusNotFound, "no blocks yet")
			return
		}
		height = h
	} else {
		h, err := strconv.ParseUint(raw, 10, 64)
		if err != nil {
			writeError(w, http.StatusBadRequest, "invalid height")
			return
		}
		height = h
	}
	block, err := s.node.Store.BlockByHeight(0, height)
	if errors.Is(err, chainstore.ErrNotFound) {
		writeError(w, http.StatusNotFound, "unknown height")
		return
	}
	if err != nil {
		writeError(w, http.StatusInternalServerError, err.Error())
		return
	}
	writeJSON(w, block.Header)
}

// handleBlocksInv serves the blocks_inv route rpcclient uses for a
// synchronize round: the ordered primary-branch hash list between two
// heights, stopping at the first height not yet stored.
func (s *Server) handleBlocksInv(w http.ResponseWriter, r *http.Request) {
	q := r.URL.Query()
	start, err := strconv.ParseUint(q.Get("start"), 10, 64)
	if err != nil {
		writeError(w, http.StatusBadRequest, "invalid start")
		return
	}
	stop, err := strconv.ParseUint(q.Get("stop"), 10, 64)
	if err != nil {
		writeError(w, http.StatusBadRequest, "invalid stop")
		return
	}
	var hashes []string
	for h := start; h <= stop; h++ {
		block, err := s.node.Store.BlockByHeight(0, h)
		if errors.Is(err, chainstore.ErrNotFound) {
			break
		}
		if err != nil {
			writeError(w, http.StatusInternalServerError, err.Error())
			return
		}
		hashes = append(hashes, block.Hash())
	}
	writeJSON(w, map[string][]string{"block_hashes": hashes})
}

func (s *Server) handleBalance(w http.ResponseWriter, r *http.Request) {
	addr := strings.TrimPrefix(r.URL.Path, "/balance/")
	asset := r.URL.Query().Get("asset")
	balance, err := s.node.Store.GetBalance(addr, asset, 0)
	if err != nil {
		writeError(w, http.StatusInternalServerError, err.Error())
		return
	}
	writeJSON(w, map[string]interface{}{
		"balance":     balance,
		"balance_emb": chainutil.Amount(balance).String(),
	})
}

// handleHistory serves get_transaction_history(addr, branch=0): every
// transaction that has ever touched addr on the primary branch.
func (s *Server) handleHistory(w http.ResponseWriter, r *http.Request) {
	addr := strings.TrimPrefix(r.URL.Path, "/history/")
	txs, err := s.node.Store.GetTransactionHistory(addr, 0)
	if err != nil {
		writeError(w, http.StatusInternalServerError, err.Error())
		return
	}
	writeJSON(w, txs)
}

// handleMempoolList lists every transaction currently pooled and
// awaiting confirmation.
func (s *Server) handleMempoolList(w http.ResponseWriter, r *http.Request) {
	count := s.node.Mempool.GetUnconfirmedTransactionsCount()
	writeJSON(w, s.node.Mempool.GetUnconfirmedTransactionsChunk(count))
}

// handleMempoolTransaction looks up a single pooled transaction by hash.
func (s *Server) handleMempoolTransaction(w http.ResponseWriter, r *http.Request) {
	hash := strings.TrimPrefix(r.URL.Path, "/mempool/")
	tx, ok := s.node.Mempool.GetUnconfirmedTransaction(hash)
	if !ok {
		writeError(w, http.StatusNotFound, "unknown transaction")
		return
	}
	writeJSON(w, tx)
}
