// Package chain defines the core data model: transactions, block
// headers and blocks, along with the deterministic hashing and proof of
// work rules that make them verifiable.
package chain

import (
	"encoding/json"
	"fmt"
	"time"

	"github.com/emberchain/emberd/chainhash"
	"github.com/emberchain/emberd/cryptokey"
)

// TransactionType enumerates the kinds of transaction a block may carry.
type TransactionType int

const (
	GenesisTx TransactionType = iota + 1
	CoinbaseTx
	StandardTx
)

// NativeAssetID is the default asset identifier used whenever a
// transaction omits one; it denotes the native Ember coin itself.
const NativeAssetID = "29bb7eb4fa78fc709e1b8b88362b7f8cb61d9379667ad4aedc8ec9f664e16680"

// coinbaseSource is the sentinel "address" used as the source of
// coinbase and genesis transactions.
const coinbaseSource = "0"

// Transaction is immutable once signed. Amount and Fee are fixed-point
// values scaled by 10^SignificantDigits (see chainutil.Amount).
type Transaction struct {
	Source      string          `json:"source"`
	Destination string          `json:"destination"`
	Amount      int64           `json:"amount"`
	Fee         int64           `json:"fee"`
	Timestamp   int64           `json:"timestamp"`
	Type        TransactionType `json:"tx_type"`
	Asset       string          `json:"asset"`
	Data        string          `json:"data"`
	PrevHash    string          `json:"prev_hash"`
	Signature   string          `json:"signature"`
	TxHash      string          `json:"tx_hash"`
}

// NewTransaction constructs an unsigned transaction with tx_hash left
// empty; Sign fills in Signature and TxHash. asset and prevHash default
// to the native asset id and "0" respectively when empty.
func NewTransaction(source, destination string, amount, fee int64, prevHash string, txType TransactionType, data, asset string) *Transaction {
	if asset == "" {
		asset = NativeAssetID
	}
	if prevHash == "" {
		prevHash = "0"
	}
	return &Transaction{
		Source:      source,
		Destination: destination,
		Amount:      amount,
		Fee:         fee,
		Timestamp:   time.Now().Unix(),
		Type:        txType,
		Asset:       asset,
		Data:        data,
		PrevHash:    prevHash,
	}
}

// Signable returns the colon-joined encoding that is signed and
// verified; it excludes the signature and tx_hash fields.
func (t *Transaction) Signable() []byte {
	s := fmt.Sprintf("%s:%s:%d:%d:%d:%d:%s:%s:%s",
		t.Source, t.Destination, t.Amount, t.Fee, t.Timestamp,
		int(t.Type), t.Asset, t.Data, t.PrevHash)
	return []byte(s)
}

// canonicalFields mirrors the field set hashed into tx_hash, declared in
// alphabetical key order so json.Marshal reproduces a sort_keys-style
// encoding.
type canonicalFields struct {
	Amount      int64  `json:"amount"`
	Asset       string `json:"asset"`
	Data        string `json:"data"`
	Destination string `json:"destination"`
	Fee         int64  `json:"fee"`
	PrevHash    string `json:"prev_hash"`
	Signature   string `json:"signature"`
	Source      string `json:"source"`
	Timestamp   int64  `json:"timestamp"`
	TxType      int    `json:"tx_type"`
}

// calculateTxHash hashes the full canonical encoding, including the
// signature, over SHA-256.
func (t *Transaction) calculateTxHash() string {
	cf := canonicalFields{
		Amount:      t.Amount,
		Asset:       t.Asset,
		Data:        t.Data,
		Destination: t.Destination,
		Fee:         t.Fee,
		PrevHash:    t.PrevHash,
		Signature:   t.Signature,
		Source:      t.Source,
		Timestamp:   t.Timestamp,
		TxType:      int(t.Type),
	}
	b, err := json.Marshal(cf)
	if err != nil {
		panic(err)
	}
	return chainhash.Sum(b)
}

// Finalize computes and sets TxHash from the transaction's current
// fields. Used for GENESIS and COINBASE transactions, which carry no
// signature and so skip Sign.
func (t *Transaction) Finalize() {
	t.TxHash = t.calculateTxHash()
}

// Sign signs the transaction's signable encoding with priv, then fills
// in Source (the signer's address), Signature, and TxHash.
func (t *Transaction) Sign(priv *cryptokey.PrivateKey) {
	t.Source = priv.Address()
	t.Signature = priv.Sign(chainhash.SumBytes(t.Signable()))
	t.TxHash = t.calculateTxHash()
}

// Verify reports whether the signature validates the signable encoding
// under Source, bypassing the check entirely for GENESIS and COINBASE
// transactions whose authenticity is instead guaranteed by block-level
// rules (check_block_reward, hardcoded genesis bytes).
func (t *Transaction) Verify() bool {
	if t.Type == GenesisTx || t.Type == CoinbaseTx {
		return true
	}
	pub, err := cryptokey.AddressFromHex(t.Source)
	if err != nil {
		return false
	}
	return pub.Verify(chainhash.SumBytes(t.Signable()), t.Signature)
}

// IsCoinbase reports whether t is a coinbase transaction.
func (t *Transaction) IsCoinbase() bool {
	return t.Type == CoinbaseTx
}

// NewCoinbase builds the unsigned coinbase transaction for a block, with
// its tx_hash computed: source is the sentinel "0", signature is empty,
// amount is the block reward plus the sum of fees from the block's other
// transactions.
func NewCoinbase(destination string, reward int64, fees int64, prevCoinbaseHash string, timestamp int64) *Transaction {
	if prevCoinbaseHash == "" {
		prevCoinbaseHash = "0"
	}
	tx := &Transaction{
		Source:      coinbaseSource,
		Destination: destination,
		Amount:      reward + fees,
		Fee:         0,
		Timestamp:   timestamp,
		Type:        CoinbaseTx,
		Asset:       NativeAssetID,
		Data:        "",
		PrevHash:    prevCoinbaseHash,
		Signature:   "",
	}
	tx.TxHash = tx.calculateTxHash()
	return tx
}
