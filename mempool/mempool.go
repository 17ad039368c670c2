package mempool

import (
	"sort"
	"sync"

	"github.com/emberchain/emberd/chain"
	elog "github.com/emberchain/emberd/log"
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

// Mempool is the in-memory pool of unconfirmed transactions.
type Mempool struct {
	mu      sync.Mutex
	byHash  map[string]*chain.Transaction
	ordered []*chain.Transaction // kept sorted by Fee DESC
}

// New creates an empty Mempool.
func New() *Mempool {
	return &Mempool{byHash: make(map[string]*chain.Transaction)}
}

// PushUnconfirmedTransaction inserts tx if its hash is not already
// present, maintaining fee-descending order. Returns false if tx was
// already known.
func (m *Mempool) PushUnconfirmedTransaction(tx *chain.Transaction) bool {
	m.mu.Lock()
	defer m.mu.Unlock()
	if _, exists := m.byHash[tx.TxHash]; exists {
		return false
	}
	m.byHash[tx.TxHash] = tx
	idx := sort.Search(len(m.ordered), func(i int) bool {
		return m.ordered[i].Fee < tx.Fee
	})
	m.ordered = append(m.ordered, nil)
	copy(m.ordered[idx+1:], m.ordered[idx:])
	m.ordered[idx] = tx
	return true
}

// GetUnconfirmedTransaction returns a transaction by hash.
func (m *Mempool) GetUnconfirmedTransaction(txHash string) (*chain.Transaction, bool) {
	m.mu.Lock()
	defer m.mu.Unlock()
	tx, ok := m.byHash[txHash]
	return tx, ok
}

// GetUnconfirmedTransactionsCount returns the number of pooled
// transactions.
func (m *Mempool) GetUnconfirmedTransactionsCount() int {
	m.mu.Lock()
	defer m.mu.Unlock()
	return len(m.ordered)
}

// GetUnconfirmedTransactionsChunk returns up to n transactions, highest
// fee first, without removing them from the pool.
func (m *Mempool) GetUnconfirmedTransactionsChunk(n int) []*chain.Transaction {
	m.mu.Lock()
	defer m.mu.Unlock()
	if n > len(m.ordered) {
		n = len(m.ordered)
	}
	out := make([]*chain.Transaction, n)
	copy(out, m.ordered[:n])
	return out
}

// RemoveUnconfirmedTransaction removes a single transaction by hash,
// e.g. once it has been confirmed in a committed block.
func (m *Mempool) RemoveUnconfirmedTransaction(txHash string) {
	m.mu.Lock()
	defer m.mu.Unlock()
	m.removeLocked(txHash)
}

// RemoveUnconfirmedTransactions removes every hash in hashes.
func (m *Mempool) RemoveUnconfirmedTransactions(hashes []string) {
	m.mu.Lock()
	defer m.mu.Unlock()
	for _, h := range hashes {
		m.removeLocked(h)
	}
}

func (m *Mempool) removeLocked(txHash string) {
	if _, ok := m.byHash[txHash]; !ok {
		return
	}
	delete(m.byHash, txHash)
	for i, tx := range m.ordered {
		if tx.TxHash == txHash {
			m.ordered = append(m.ordered[:i], m.ordered[i+1:]...)
			break
		}
	}
}

// ResolveInventory splits a block's transaction hash list into those
// already held in the pool and those missing, so the caller knows which
// to fetch from the peer that announced the block. It does not itself
// check on-chain duplicates — that fail-fast check belongs to the
// validator, which owns the chain store.
func (m *Mempool) ResolveInventory(txHashes []string) (known []*chain.Transaction, missing []string) {
	m.mu.Lock()
	defer m.mu.Unlock()
	for _, h := range txHashes {
		if tx, ok := m.byHash[h]; ok {
			known = append(known, tx)
		} else {
			missing = append(missing, h)
		}
	}
	return known, missing
}
