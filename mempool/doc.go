// Copyright (c) 2016 The btcsuite developers
// Copyright (c) 2024 The Flokicoin developers
// Use of this source code is governed by an ISC
// license that can be found in the LICENSE file.

/*
Package mempool provides a fee-ordered pool of unconfirmed, signed
transactions.

Transactions enter the pool once the validator has accepted them (either
because they originated locally, via post_transaction, or because they
arrived via an UNCONFIRMED_TRANSACTION gossip message and were
individually verified). They leave the pool either because they were
included in a block the chain store committed, or they simply expire
from relevance once the tallest chain moves far enough past their
prev_hash ancestor to make them unspendable.

Preemption never drops pooled transactions: when the miner abandons an
in-flight candidate because a new tip appeared, the candidate's
transactions remain in the pool for the next mining attempt to pick up.
*/
package mempool
