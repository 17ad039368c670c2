// Package chainstore is the durable, multi-branch chain store. It
// persists blocks, transactions and branch tips in a goleveldb database
// using key-prefix pseudo-tables, mirroring the relational schema this
// design was distilled from with secondary indexes instead of SQL
// indexes. Branch 0 is always the primary branch; every mutation that
// can change which branch is primary goes through maybeRestructurePrimaryBranch.
package chainstore

import (
	"encoding/json"
	"errors"
	"fmt"
	"sync"

	"github.com/syndtr/goleveldb/leveldb"
	"github.com/syndtr/goleveldb/leveldb/util"

	"github.com/decred/dcrd/lru"

	"github.com/emberchain/emberd/chain"
	"github.com/emberchain/emberd/chaincfg"
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

// Errors returned by Store operations.
var (
	ErrNotFound       = errors.New("chainstore: not found")
	ErrGenesisMismatch = errors.New("chainstore: genesis block mismatch")
)

const primaryBranch = 0

// key prefixes for the leveldb pseudo-tables.
const (
	prefixBlock      = "b/"  // b/<hash>        -> storedBlock
	prefixTx         = "t/"  // t/<tx_hash>     -> storedTx
	prefixBranch     = "br/" // br/<id>         -> branchMeta
	prefixHeight     = "h/"  // h/<branch>/<height padded> -> hash
	prefixAddrIndex  = "a/"  // a/<address>/<tx_hash> -> 1
	keyBranchCounter = "meta/branch_counter"
)

// storedBlock is the on-disk representation of a committed block.
type storedBlock struct {
	Height     uint64              `json:"height"`
	Branch     int                 `json:"branch"`
	Header     *chain.BlockHeader  `json:"header"`
	TxHashes   []string            `json:"tx_hashes"`
}

// storedTx is the on-disk representation of a committed transaction,
// tagged with the block hash and branch it belongs to.
type storedTx struct {
	Tx        *chain.Transaction `json:"tx"`
	BlockHash string             `json:"block_hash"`
	Branch    int                `json:"branch"`
}

// branchMeta tracks one branch's tip and lineage.
type branchMeta struct {
	ID          int    `json:"id"`
	ParentBranch int   `json:"parent_branch"`
	ForkHeight  uint64 `json:"fork_height"`
	TipHash     string `json:"tip_hash"`
	TipHeight   uint64 `json:"tip_height"`
}

// Store is the durable chain store. All mutating operations are
// serialized through mu; readers may run concurrently against the
// underlying goleveldb snapshot isolation.
type Store struct {
	db     *leveldb.DB
	mu     sync.Mutex
	params *chaincfg.Params

	headerCache lru.Cache // allocated by Open; no lookup reads or writes it, header reads go to db
}

// Open opens (creating if necessary) a chain store at path, governed by
// the consensus parameters in params.
func Open(path string, params *chaincfg.Params) (*Store, error) {
	db, err := leveldb.OpenFile(path, nil)
	if err != nil {
		return nil, fmt.Errorf("chainstore: open %s: %w", path, err)
	}
	return &Store{db: db, params: params, headerCache: lru.NewCache(2048)}, nil
}

// Close releases the underlying database handle.
func (s *Store) Close() error {
	return s.db.Close()
}

// IsEmpty reports whether the store has never had a genesis block
// committed to it.
func (s *Store) IsEmpty() bool {
	_, err := s.db.Get([]byte(heightKey(primaryBranch, 0)), nil)
	return errors.Is(err, leveldb.ErrNotFound)
}

// EnsureGenesis commits genesis if the store is empty, otherwise
// verifies the stored height-0 block on the primary branch matches
// genesis bit-for-bit. A mismatch is treated as fatal by the caller.
func (s *Store) EnsureGenesis(genesis *chain.Block) error {
	if s.IsEmpty() {
		return s.commitBlock(genesis, primaryBranch, 0, "0")
	}
	existing, err := s.BlockByHeight(primaryBranch, 0)
	if err != nil {
		return err
	}
	if existing.Hash() != genesis.Hash() {
		log.Criticalf("stored genesis %s does not match computed genesis %s",
			existing.Hash(), genesis.Hash())
		return ErrGenesisMismatch
	}
	return nil
}

func heightKey(branch int, height uint64) string {
	return fmt.Sprintf("%s%d/%020d", prefixHeight, branch, height)
}

// commitBlock writes a block, its transactions, and its height index
// entry in a single atomic batch.
func (s *Store) commitBlock(b *chain.Block, branch int, forkHeight uint64, parentHashAtFork string) error {
	batch := new(leveldb.Batch)

	hashes := make([]string, len(b.Transactions()))
	for i, tx := range b.Transactions() {
		hashes[i] = tx.TxHash
		st := storedTx{Tx: tx, BlockHash: b.Hash(), Branch: branch}
		buf, err := json.Marshal(st)
		if err != nil {
			return err
		}
		batch.Put([]byte(prefixTx+tx.TxHash), buf)
		if tx.Source != "0" {
			batch.Put([]byte(prefixAddrIndex+tx.Source+"/"+tx.TxHash), []byte{1})
		}
		batch.Put([]byte(prefixAddrIndex+tx.Destination+"/"+tx.TxHash), []byte{1})
	}

	sb := storedBlock{Height: b.Height, Branch: branch, Header: b.Header, TxHashes: hashes}
	buf, err := json.Marshal(sb)
	if err != nil {
		return err
	}
	batch.Put([]byte(prefixBlock+b.Hash()), buf)
	batch.Put([]byte(heightKey(branch, b.Height)), []byte(b.Hash()))

	bm := branchMeta{ID: branch, TipHash: b.Hash(), TipHeight: b.Height}
	if branch != primaryBranch {
		bm.ForkHeight = forkHeight
	}
	bmBuf, err := json.Marshal(bm)
	if err != nil {
		return err
	}
	batch.Put([]byte(fmt.Sprintf("%s%d", prefixBranch, branch)), bmBuf)

	return s.db.Write(batch, nil)
}

// BlockByHash returns the block committed at hash, on whatever branch it
// belongs to.
func (s *Store) BlockByHash(hash string) (*chain.Block, int, error) {
	buf, err := s.db.Get([]byte(prefixBlock+hash), nil)
	if errors.Is(err, leveldb.ErrNotFound) {
		return nil, 0, ErrNotFound
	} else if err != nil {
		return nil, 0, err
	}
	var sb storedBlock
	if err := json.Unmarshal(buf, &sb); err != nil {
		return nil, 0, err
	}
	block, err := s.hydrateBlock(&sb)
	if err != nil {
		return nil, 0, err
	}
	return block, sb.Branch, nil
}

// BlockByHeight returns the committed block at height on branch.
func (s *Store) BlockByHeight(branch int, height uint64) (*chain.Block, error) {
	hash, err := s.db.Get([]byte(heightKey(branch, height)), nil)
	if errors.Is(err, leveldb.ErrNotFound) {
		return nil, ErrNotFound
	} else if err != nil {
		return nil, err
	}
	block, _, err := s.BlockByHash(string(hash))
	return block, err
}

func (s *Store) hydrateBlock(sb *storedBlock) (*chain.Block, error) {
	txs := make([]*chain.Transaction, len(sb.TxHashes))
	for i, h := range sb.TxHashes {
		tx, err := s.TransactionByHash(h)
		if err != nil {
			return nil, err
		}
		txs[i] = tx
	}
	if len(txs) == 0 {
		return nil, fmt.Errorf("chainstore: block has no transactions on disk")
	}
	return chain.NewBlock(sb.Height, txs, sb.Header.PreviousHash, sb.Header.Timestamp, sb.Header.Nonce), nil
}

// TransactionByHash returns a committed transaction.
func (s *Store) TransactionByHash(hash string) (*chain.Transaction, error) {
	st, err := s.storedTransactionByHash(hash)
	if err != nil {
		return nil, err
	}
	return st.Tx, nil
}

// storedTransactionByHash returns the full on-disk record for hash,
// including the branch it is currently labeled with.
func (s *Store) storedTransactionByHash(hash string) (*storedTx, error) {
	buf, err := s.db.Get([]byte(prefixTx+hash), nil)
	if errors.Is(err, leveldb.ErrNotFound) {
		return nil, ErrNotFound
	} else if err != nil {
		return nil, err
	}
	var st storedTx
	if err := json.Unmarshal(buf, &st); err != nil {
		return nil, err
	}
	return &st, nil
}

// FindDuplicateTransaction reports whether a transaction with this hash
// has already been committed to any branch.
func (s *Store) FindDuplicateTransaction(hash string) bool {
	_, err := s.db.Get([]byte(prefixTx+hash), nil)
	return err == nil
}

// PrimaryTip returns the current primary branch tip height and hash.
func (s *Store) PrimaryTip() (uint64, string, error) {
	buf, err := s.db.Get([]byte(fmt.Sprintf("%s%d", prefixBranch, primaryBranch)), nil)
	if errors.Is(err, leveldb.ErrNotFound) {
		return 0, "", ErrNotFound
	} else if err != nil {
		return 0, "", err
	}
	var bm branchMeta
	if err := json.Unmarshal(buf, &bm); err != nil {
		return 0, "", err
	}
	return bm.TipHeight, bm.TipHash, nil
}

// BlockHeaderByHash returns just the header, the branch id it lives on,
// and its height, without hydrating its transactions. Mirrors
// get_block_header_by_hash from the reference chain store, including its
// None-equivalent (ErrNotFound) when the hash is unknown.
func (s *Store) BlockHeaderByHash(hash string) (*chain.BlockHeader, int, uint64, error) {
	buf, err := s.db.Get([]byte(prefixBlock+hash), nil)
	if errors.Is(err, leveldb.ErrNotFound) {
		return nil, 0, 0, ErrNotFound
	} else if err != nil {
		return nil, 0, 0, err
	}
	var sb storedBlock
	if err := json.Unmarshal(buf, &sb); err != nil {
		return nil, 0, 0, err
	}
	return sb.Header, sb.Branch, sb.Height, nil
}

// GetBalance sums incoming minus outgoing (including fees) for addr on
// asset, considering only transactions currently labeled with branch —
// branch 0 for the balance every caller outside chain-split tooling
// cares about, matching get_balance(address, asset, branch).
func (s *Store) GetBalance(addr, asset string, branch int) (int64, error) {
	if asset == "" {
		asset = chain.NativeAssetID
	}
	iter := s.db.NewIterator(util.BytesPrefix([]byte(prefixAddrIndex+addr+"/")), nil)
	defer iter.Release()

	var balance int64
	seen := make(map[string]bool)
	for iter.Next() {
		key := string(iter.Key())
		txHash := key[len(prefixAddrIndex+addr+"/"):]
		if seen[txHash] {
			continue
		}
		seen[txHash] = true
		st, err := s.storedTransactionByHash(txHash)
		if err != nil {
			continue
		}
		if st.Branch != branch {
			continue
		}
		tx := st.Tx
		if tx.Asset != asset {
			continue
		}
		if tx.Destination == addr {
			balance += tx.Amount
		}
		if tx.Source == addr {
			balance -= tx.Amount + tx.Fee
		}
	}
	return balance, iter.Error()
}

// GetTransactionHistory returns every transaction touching addr, as
// either source or destination, currently labeled with branch. Order
// is not guaranteed beyond what the address index iterates in.
func (s *Store) GetTransactionHistory(addr string, branch int) ([]*chain.Transaction, error) {
	iter := s.db.NewIterator(util.BytesPrefix([]byte(prefixAddrIndex+addr+"/")), nil)
	defer iter.Release()

	var txs []*chain.Transaction
	seen := make(map[string]bool)
	for iter.Next() {
		key := string(iter.Key())
		txHash := key[len(prefixAddrIndex+addr+"/"):]
		if seen[txHash] {
			continue
		}
		seen[txHash] = true
		st, err := s.storedTransactionByHash(txHash)
		if err != nil {
			continue
		}
		if st.Branch != branch {
			continue
		}
		txs = append(txs, st.Tx)
	}
	return txs, iter.Error()
}

// nextBranchID allocates and persists the next branch id, mirroring the
// auto-increment rowid the reference chain store relies on for new
// branches (crankycoin's cursor.lastrowid).
func (s *Store) nextBranchID() (int, error) {
	buf, err := s.db.Get([]byte(keyBranchCounter), nil)
	next := 1
	if err == nil {
		var last int
		if jerr := json.Unmarshal(buf, &last); jerr == nil {
			next = last + 1
		}
	} else if !errors.Is(err, leveldb.ErrNotFound) {
		return 0, err
	}
	encoded, err := json.Marshal(next)
	if err != nil {
		return 0, err
	}
	if err := s.db.Put([]byte(keyBranchCounter), encoded, nil); err != nil {
		return 0, err
	}
	return next, nil
}
