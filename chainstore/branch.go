package chainstore

import (
	"encoding/json"
	"errors"
	"fmt"
	"sort"

	"github.com/syndtr/goleveldb/leveldb"
	"github.com/syndtr/goleveldb/leveldb/util"

	"github.com/emberchain/emberd/chain"
)

// ErrOrphan is returned by AddBlock when the block's previous_hash is
// not known to the store at all (neither on the primary branch nor on
// any fork); the caller should treat this as "out of sync" and trigger
// a synchronize with the sender, matching validate_block_header's
// None-sentinel in the reference implementation.
var ErrOrphan = errors.New("chainstore: previous block unknown")

// AddBlock commits block to its parent's branch when the parent is that
// branch's tip, or to a newly allocated branch when the parent sits below
// its branch's tip, and promotes that branch to primary if doing so makes
// it the tallest. It returns the branch id the block was committed to.
func (s *Store) AddBlock(b *chain.Block) (int, error) {
	s.mu.Lock()
	defer s.mu.Unlock()

	if _, _, err := s.BlockByHash(b.Hash()); err == nil {
		return 0, fmt.Errorf("chainstore: block %s already exists", b.Hash())
	}

	_, parentBranch, parentHeight, err := s.BlockHeaderByHash(b.Header.PreviousHash)
	if errors.Is(err, ErrNotFound) {
		return 0, ErrOrphan
	} else if err != nil {
		return 0, err
	}
	if parentHeight != b.Height-1 {
		return 0, fmt.Errorf("chainstore: height %d does not follow parent height %d", b.Height, parentHeight)
	}

	parentTipHeight, parentTipHash, err := s.branchTip(parentBranch)
	if err != nil {
		return 0, err
	}

	var branch int
	if parentTipHash == b.Header.PreviousHash {
		// Extends an existing branch's tip directly.
		branch = parentBranch
	} else {
		// Forks off mid-branch: allocate a new branch starting at this
		// block.
		branch, err = s.nextBranchID()
		if err != nil {
			return 0, err
		}
	}
	_ = parentTipHeight

	if err := s.commitBlock(b, branch, parentHeight, b.Header.PreviousHash); err != nil {
		return 0, err
	}

	if branch != primaryBranch {
		if err := s.maybeRestructurePrimaryBranch(branch); err != nil {
			return 0, err
		}
	}
	return branch, nil
}

func (s *Store) branchTip(branch int) (uint64, string, error) {
	buf, err := s.db.Get([]byte(fmt.Sprintf("%s%d", prefixBranch, branch)), nil)
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

// chainEntry is a (height, hash) pair collected while walking a chain
// back toward a fork point.
type chainEntry struct {
	height uint64
	hash   string
}

// maybeRestructurePrimaryBranch compares candidateBranch's tip height
// against the current primary tip and, if the candidate is now taller,
// promotes it to branch 0 — a reorg. Mirrors restructure_primary_branch:
// the blocks and transactions walked back from the candidate's tip to
// the fork point are relabeled to branch 0, and the primary blocks they
// displace are relabeled to a freshly allocated branch so they remain
// addressable by get_branch_by_hash/get_transaction_history instead of
// vanishing.
func (s *Store) maybeRestructurePrimaryBranch(candidateBranch int) error {
	candHeight, candHash, err := s.branchTip(candidateBranch)
	if err != nil {
		return err
	}
	primHeight, primHash, err := s.PrimaryTip()
	if err != nil {
		return err
	}
	if candHeight <= primHeight {
		return nil
	}

	log.Infof("reorg: branch %d (height %d) overtakes primary (height %d)",
		candidateBranch, candHeight, primHeight)

	promoted, forkHeight, err := s.collectChainToFork(candHash)
	if err != nil {
		return err
	}
	displaced, err := s.collectChainAboveHeight(primHash, forkHeight)
	if err != nil {
		return err
	}

	displacedBranch, err := s.nextBranchID()
	if err != nil {
		return err
	}

	batch := new(leveldb.Batch)
	for _, entry := range promoted {
		if err := s.relabelBlock(batch, entry.hash, primaryBranch); err != nil {
			return err
		}
		batch.Put([]byte(heightKey(primaryBranch, entry.height)), []byte(entry.hash))
	}
	for _, entry := range displaced {
		if err := s.relabelBlock(batch, entry.hash, displacedBranch); err != nil {
			return err
		}
		batch.Put([]byte(heightKey(displacedBranch, entry.height)), []byte(entry.hash))
	}

	primBm := branchMeta{ID: primaryBranch, TipHash: candHash, TipHeight: candHeight}
	primBuf, err := json.Marshal(primBm)
	if err != nil {
		return err
	}
	batch.Put([]byte(fmt.Sprintf("%s%d", prefixBranch, primaryBranch)), primBuf)

	if len(displaced) > 0 {
		dispBm := branchMeta{ID: displacedBranch, ParentBranch: primaryBranch, ForkHeight: forkHeight,
			TipHash: primHash, TipHeight: primHeight}
		dispBuf, err := json.Marshal(dispBm)
		if err != nil {
			return err
		}
		batch.Put([]byte(fmt.Sprintf("%s%d", prefixBranch, displacedBranch)), dispBuf)
	}

	// candidateBranch's blocks now all live on branch 0; its own branch
	// record is retired rather than left dangling with a stale tip.
	batch.Delete([]byte(fmt.Sprintf("%s%d", prefixBranch, candidateBranch)))

	return s.db.Write(batch, nil)
}

// collectChainToFork walks back from hash, following previous_hash,
// until it reaches a block already recorded as primary at that height.
// It returns the walked (height, hash) entries, tip-first, and the
// height of the fork point (exclusive — not itself part of the result).
func (s *Store) collectChainToFork(hash string) ([]chainEntry, uint64, error) {
	var entries []chainEntry
	for {
		header, _, height, err := s.BlockHeaderByHash(hash)
		if err != nil {
			return nil, 0, err
		}
		existingHash, err := s.db.Get([]byte(heightKey(primaryBranch, height)), nil)
		if err == nil && string(existingHash) == hash {
			return entries, height, nil
		}
		entries = append(entries, chainEntry{height: height, hash: hash})
		if height == 0 || header.PreviousHash == "0" {
			return entries, 0, nil
		}
		hash = header.PreviousHash
	}
}

// collectChainAboveHeight walks back from hash, following previous_hash,
// collecting every entry whose height is strictly greater than
// forkHeight.
func (s *Store) collectChainAboveHeight(hash string, forkHeight uint64) ([]chainEntry, error) {
	var entries []chainEntry
	for {
		header, _, height, err := s.BlockHeaderByHash(hash)
		if err != nil {
			return nil, err
		}
		if height <= forkHeight {
			return entries, nil
		}
		entries = append(entries, chainEntry{height: height, hash: hash})
		hash = header.PreviousHash
	}
}

// relabelBlock rewrites the stored Branch field of the block at hash,
// and of every transaction committed in it, to branch, batching the
// writes rather than applying them immediately.
func (s *Store) relabelBlock(batch *leveldb.Batch, hash string, branch int) error {
	buf, err := s.db.Get([]byte(prefixBlock+hash), nil)
	if err != nil {
		return err
	}
	var sb storedBlock
	if err := json.Unmarshal(buf, &sb); err != nil {
		return err
	}
	sb.Branch = branch
	sbBuf, err := json.Marshal(sb)
	if err != nil {
		return err
	}
	batch.Put([]byte(prefixBlock+hash), sbBuf)

	for _, txHash := range sb.TxHashes {
		st, err := s.storedTransactionByHash(txHash)
		if err != nil {
			return err
		}
		st.Branch = branch
		stBuf, err := json.Marshal(st)
		if err != nil {
			return err
		}
		batch.Put([]byte(prefixTx+txHash), stBuf)
	}
	return nil
}

// GetBranchByHash returns the branch id hash currently belongs to,
// reflecting any relabeling a prior reorg performed.
func (s *Store) GetBranchByHash(hash string) (int, error) {
	_, branch, _, err := s.BlockHeaderByHash(hash)
	return branch, err
}

// GetBranchesByPrevHash returns the ids, ascending, of every branch
// holding a block whose previous_hash is prevHash. More than one
// distinct id means prevHash has competing children — a fresh chain
// split.
func (s *Store) GetBranchesByPrevHash(prevHash string) ([]int, error) {
	iter := s.db.NewIterator(util.BytesPrefix([]byte(prefixBlock)), nil)
	defer iter.Release()

	var branches []int
	for iter.Next() {
		var sb storedBlock
		if err := json.Unmarshal(iter.Value(), &sb); err != nil {
			return nil, err
		}
		if sb.Header.PreviousHash == prevHash {
			branches = append(branches, sb.Branch)
		}
	}
	if err := iter.Error(); err != nil {
		return nil, err
	}
	sort.Ints(branches)
	return branches, nil
}

// OpenBranches returns the ids of every branch whose tip height is
// within tolerance blocks of the primary branch's tip, i.e. branches
// still plausible as competing chains rather than abandoned stubs. Not
// part of the public contract but useful for operator tooling.
func (s *Store) OpenBranches(tolerance uint64) ([]int, error) {
	primHeight, _, err := s.PrimaryTip()
	if err != nil {
		return nil, err
	}
	count := s.branchCounterValue()
	var open []int
	for id := 0; id <= count; id++ {
		h, _, err := s.branchTip(id)
		if errors.Is(err, ErrNotFound) {
			continue
		}
		if err != nil {
			return nil, err
		}
		if primHeight >= h && primHeight-h <= tolerance {
			open = append(open, id)
		} else if h > primHeight {
			open = append(open, id)
		}
	}
	return open, nil
}

func (s *Store) branchCounterValue() int {
	buf, err := s.db.Get([]byte(keyBranchCounter), nil)
	if err != nil {
		return 0
	}
	var n int
	if err := json.Unmarshal(buf, &n); err != nil {
		return 0
	}
	return n
}
