// Copyright (c) 2026 The btcsuite developers
// Use of this source code is governed by an ISC
// license that can be found in the LICENSE file.

package mempool

import (
	"errors"
	"sync"
	"time"

	"github.com/btcsuite/btcd/btcutil"
	"github.com/btcsuite/btcd/chaincfg/chainhash"
	"github.com/btcsuite/btcd/wire"
	"github.com/btcsuite/bumpfee"
	"github.com/decred/dcrd/lru"
)

const (
	// defaultReplacedHistory is the number of cascade-evicted transaction
	// ids the pool remembers for RecentlyReplaced queries.
	defaultReplacedHistory = 1000

	// witnessScaleFactor is the multiplier applied to a transaction's
	// base size when computing its weight under the segwit size rules.
	witnessScaleFactor = 4
)

var (
	// ErrDuplicateTx is returned by AddTransaction when the pool already
	// holds the transaction.
	ErrDuplicateTx = errors.New("transaction already in pool")

	// ErrDoubleSpend is returned by AddTransaction when the transaction
	// spends an outpoint some pool transaction already spends.
	ErrDoubleSpend = errors.New("outpoint already spent by the pool")

	// ErrBadOutpoint is returned by AddTransaction when the transaction
	// spends an output index its in-pool parent does not have.
	ErrBadOutpoint = errors.New("outpoint index out of range for parent")

	// ErrTxNotFound is returned when a transaction required to be in the
	// pool is not.
	ErrTxNotFound = errors.New("transaction is not in the pool")
)

// TxDesc is a descriptor containing a transaction in the pool along with the
// metadata bump-fee estimation consumes.
type TxDesc struct {
	// Tx is the transaction associated with the entry.
	Tx *btcutil.Tx

	// Fee is the absolute fee the transaction pays, as reported by the
	// caller at insertion.
	Fee btcutil.Amount

	// FeeDelta is the accumulated prioritisation adjustment. The pool
	// ranks the transaction as if it paid Fee + FeeDelta; a negative
	// delta can push the modified fee below zero.
	FeeDelta btcutil.Amount

	// VirtualSize is the witness-discounted size in virtual bytes.
	VirtualSize int64

	// AncestorFee and AncestorSize aggregate modified fees and virtual
	// sizes over the entry's in-pool ancestor closure, the entry itself
	// included. The pool keeps them current across every mutation.
	AncestorFee  btcutil.Amount
	AncestorSize int64

	// Added is the time when the entry was added to the pool.
	Added time.Time
}

// modifiedFee is the fee the pool treats the transaction as paying.
func (d *TxDesc) modifiedFee() btcutil.Amount {
	return d.Fee + d.FeeDelta
}

// TxPool holds standalone unconfirmed transactions and the spend
// relationships between them. It is safe for concurrent access.
type TxPool struct {
	mtx       sync.RWMutex
	pool      map[chainhash.Hash]*TxDesc
	outpoints map[wire.OutPoint]*TxDesc
	replaced  lru.Cache
}

// Ensure the TxPool type implements the bumpfee.MempoolSource interface.
var _ bumpfee.MempoolSource = (*TxPool)(nil)

// New returns a new memory pool for storing standalone transactions and
// serving bump-fee estimation snapshots.
func New() *TxPool {
	return &TxPool{
		pool:      make(map[chainhash.Hash]*TxDesc),
		outpoints: make(map[wire.OutPoint]*TxDesc),
		replaced:  lru.NewCache(defaultReplacedHistory),
	}
}

// GetTxVirtualSize computes the virtual size of the given transaction: its
// weight, which discounts witness data against base transaction data,
// divided by four and rounded up.
func GetTxVirtualSize(tx *btcutil.Tx) int64 {
	msgTx := tx.MsgTx()
	baseSize := int64(msgTx.SerializeSizeStripped())
	totalSize := int64(msgTx.SerializeSize())

	weight := baseSize*(witnessScaleFactor-1) + totalSize
	return (weight + (witnessScaleFactor - 1)) / witnessScaleFactor
}

// ancestors returns tx's in-pool ancestor closure, excluding tx itself,
// keyed by transaction id.
//
// This function MUST be called with the pool lock held (for reads).
func (mp *TxPool) ancestors(tx *btcutil.Tx) map[chainhash.Hash]*TxDesc {
	ancestors := make(map[chainhash.Hash]*TxDesc)
	queue := []*btcutil.Tx{tx}
	for len(queue) > 0 {
		next := queue[0]
		queue = queue[1:]

		for _, txIn := range next.MsgTx().TxIn {
			parentHash := txIn.PreviousOutPoint.Hash
			if _, seen := ancestors[parentHash]; seen {
				continue
			}
			parent, exists := mp.pool[parentHash]
			if !exists {
				// Confirmed from the pool's point of view.
				continue
			}
			ancestors[parentHash] = parent
			queue = append(queue, parent.Tx)
		}
	}

	return ancestors
}

// descendants returns the in-pool descendant closure of the given
// transaction id, the transaction itself included, keyed by transaction id.
// It returns nil when the id is not in the pool.
//
// This function MUST be called with the pool lock held (for reads).
func (mp *TxPool) descendants(hash *chainhash.Hash) map[chainhash.Hash]*TxDesc {
	entry, exists := mp.pool[*hash]
	if !exists {
		return nil
	}

	descendants := map[chainhash.Hash]*TxDesc{*hash: entry}
	queue := []*TxDesc{entry}
	for len(queue) > 0 {
		next := queue[0]
		queue = queue[1:]

		nextHash := next.Tx.Hash()
		for i := uint32(0); i < uint32(len(next.Tx.MsgTx().TxOut)); i++ {
			prevOut := wire.OutPoint{Hash: *nextHash, Index: i}
			spender, exists := mp.outpoints[prevOut]
			if !exists {
				continue
			}
			spenderHash := *spender.Tx.Hash()
			if _, seen := descendants[spenderHash]; seen {
				continue
			}
			descendants[spenderHash] = spender
			queue = append(queue, spender)
		}
	}

	return descendants
}

// addTransaction is the internal function which implements the public
// AddTransaction.  See the comment for AddTransaction for more details.
//
// This function MUST be called with the pool lock held (for writes).
func (mp *TxPool) addTransaction(tx *btcutil.Tx, fee btcutil.Amount) (*TxDesc, error) {
	txHash := tx.Hash()
	if _, exists := mp.pool[*txHash]; exists {
		return nil, ErrDuplicateTx
	}

	for _, txIn := range tx.MsgTx().TxIn {
		prevOut := txIn.PreviousOutPoint
		if _, exists := mp.outpoints[prevOut]; exists {
			return nil, ErrDoubleSpend
		}
		if parent, exists := mp.pool[prevOut.Hash]; exists {
			if prevOut.Index >= uint32(len(parent.Tx.MsgTx().TxOut)) {
				return nil, ErrBadOutpoint
			}
		}
	}

	desc := &TxDesc{
		Tx:          tx,
		Fee:         fee,
		VirtualSize: GetTxVirtualSize(tx),
		Added:       time.Now(),
	}

	// Seed the ancestor aggregates with the entry itself, then fold in
	// the in-pool ancestor closure. Parents are always inserted first,
	// so the closure is complete at this point.
	desc.AncestorFee = fee
	desc.AncestorSize = desc.VirtualSize
	for _, anc := range mp.ancestors(tx) {
		desc.AncestorFee += anc.modifiedFee()
		desc.AncestorSize += anc.VirtualSize
	}

	mp.pool[*txHash] = desc
	for _, txIn := range tx.MsgTx().TxIn {
		mp.outpoints[txIn.PreviousOutPoint] = desc
	}

	log.Debugf("Accepted transaction %v (pool size: %v)", txHash,
		len(mp.pool))

	return desc, nil
}

// AddTransaction adds a standalone transaction to the pool, along with the
// absolute fee the caller vouches it pays. The pool performs no script,
// signature, or policy validation; it only rejects what would corrupt its
// own bookkeeping: duplicates, spends of an outpoint the pool already spends
// elsewhere, and spends of an output index an in-pool parent does not have.
// Inputs whose previous outpoint is unknown to the pool are treated as
// confirmed. Parents must be added before children.
//
// This function is safe for concurrent access.
func (mp *TxPool) AddTransaction(tx *btcutil.Tx, fee btcutil.Amount) (*TxDesc, error) {
	// Protect concurrent access.
	mp.mtx.Lock()
	desc, err := mp.addTransaction(tx, fee)
	mp.mtx.Unlock()

	return desc, err
}

// removeTransaction is the internal function which implements the public
// RemoveTransaction.  See the comment for RemoveTransaction for more details.
//
// This function MUST be called with the pool lock held (for writes).
func (mp *TxPool) removeTransaction(tx *btcutil.Tx, removeRedeemers bool) {
	txHash := tx.Hash()
	if _, exists := mp.pool[*txHash]; !exists {
		return
	}

	var surviving map[chainhash.Hash]*TxDesc
	if removeRedeemers {
		// Remove any transactions which rely on this one first, then
		// record the eviction.
		for i := uint32(0); i < uint32(len(tx.MsgTx().TxOut)); i++ {
			prevOut := wire.OutPoint{Hash: *txHash, Index: i}
			if redeemer, exists := mp.outpoints[prevOut]; exists {
				mp.removeTransaction(redeemer.Tx, true)
			}
		}
		mp.replaced.Add(*txHash)
	} else {
		// Confirmed: the entry's descendants survive, but their
		// ancestor closures lose the entry itself along with any of
		// its in-pool ancestors that were reachable only through it.
		surviving = mp.descendants(txHash)
		delete(surviving, *txHash)
	}

	// Mark the referenced outpoints as unspent by the pool.
	for _, txIn := range tx.MsgTx().TxIn {
		delete(mp.outpoints, txIn.PreviousOutPoint)
	}
	delete(mp.pool, *txHash)

	// Re-derive each surviving descendant's aggregates from the graph
	// that remains. A plain decrement of the removed entry's own values
	// is not enough: a mid-chain removal also severs the walk to the
	// entry's parents, which would leave them counted but unreachable.
	for _, desc := range surviving {
		desc.AncestorFee = desc.modifiedFee()
		desc.AncestorSize = desc.VirtualSize
		for _, anc := range mp.ancestors(desc.Tx) {
			desc.AncestorFee += anc.modifiedFee()
			desc.AncestorSize += anc.VirtualSize
		}
	}

	log.Tracef("Removed transaction %v (redeemers: %v, pool size: %v)",
		txHash, removeRedeemers, len(mp.pool))
}

// RemoveTransaction removes the passed transaction from the mempool. When
// removeRedeemers is false the transaction is treated as confirmed: the
// entry is unlinked and every remaining descendant's ancestor aggregates are
// re-derived over the ancestors it can still reach, which drops both the
// entry's own contribution and that of any of its parents the descendant was
// connected to only through the entry. When
// removeRedeemers is true the entry and any transactions that redeem outputs
// from it are removed recursively, as happens when a conflicting replacement
// is accepted, and every evicted transaction id is recorded in the
// recently-replaced history.
//
// This function is safe for concurrent access.
func (mp *TxPool) RemoveTransaction(tx *btcutil.Tx, removeRedeemers bool) {
	// Protect concurrent access.
	mp.mtx.Lock()
	mp.removeTransaction(tx, removeRedeemers)
	mp.mtx.Unlock()
}

// RemoveDoubleSpends removes all transactions which spend outputs spent by
// the passed transaction from the memory pool, recursively. A wallet invokes
// this with a replacement transaction before broadcasting it so the pool
// reflects the eviction the network is about to perform.
//
// This function is safe for concurrent access.
func (mp *TxPool) RemoveDoubleSpends(tx *btcutil.Tx) {
	// Protect concurrent access.
	mp.mtx.Lock()
	for _, txIn := range tx.MsgTx().TxIn {
		if conflict, ok := mp.outpoints[txIn.PreviousOutPoint]; ok {
			if !conflict.Tx.Hash().IsEqual(tx.Hash()) {
				mp.removeTransaction(conflict.Tx, true)
			}
		}
	}
	mp.mtx.Unlock()
}

// PrioritiseTransaction adjusts the fee the pool ranks the given transaction
// as paying, without touching the transaction itself. The delta joins the
// entry's fee delta and the ancestor-aggregate fee of every descendant
// entry, the entry itself included. Deltas may be negative and may push the
// modified fee below zero.
//
// This function is safe for concurrent access.
func (mp *TxPool) PrioritiseTransaction(hash *chainhash.Hash, delta btcutil.Amount) error {
	mp.mtx.Lock()
	defer mp.mtx.Unlock()

	entry, exists := mp.pool[*hash]
	if !exists {
		return ErrTxNotFound
	}

	entry.FeeDelta += delta
	for _, desc := range mp.descendants(hash) {
		desc.AncestorFee += delta
	}

	log.Debugf("Prioritised transaction %v by %v (modified fee: %v)",
		hash, delta, entry.modifiedFee())

	return nil
}

// haveTransaction returns whether or not the passed transaction already
// exists in the pool.
//
// This function MUST be called with the pool lock held (for reads).
func (mp *TxPool) haveTransaction(hash *chainhash.Hash) bool {
	_, exists := mp.pool[*hash]
	return exists
}

// HaveTransaction returns whether or not the passed transaction already
// exists in the pool.
//
// This function is safe for concurrent access.
func (mp *TxPool) HaveTransaction(hash *chainhash.Hash) bool {
	// Protect concurrent access.
	mp.mtx.RLock()
	haveTx := mp.haveTransaction(hash)
	mp.mtx.RUnlock()

	return haveTx
}

// FetchTransaction returns the requested transaction from the pool.
//
// This function is safe for concurrent access.
func (mp *TxPool) FetchTransaction(txHash *chainhash.Hash) (*btcutil.Tx, error) {
	// Protect concurrent access.
	mp.mtx.RLock()
	desc, exists := mp.pool[*txHash]
	mp.mtx.RUnlock()

	if !exists {
		return nil, ErrTxNotFound
	}
	return desc.Tx, nil
}

// checkSpend returns the transaction currently spending the passed outpoint,
// if any.
//
// This function MUST be called with the pool lock held (for reads).
func (mp *TxPool) checkSpend(op wire.OutPoint) *btcutil.Tx {
	if desc, exists := mp.outpoints[op]; exists {
		return desc.Tx
	}
	return nil
}

// CheckSpend checks whether the passed outpoint is already spent by a
// transaction in the pool. If that's the case the spending transaction is
// returned; if not nil is returned.
//
// This function is safe for concurrent access.
func (mp *TxPool) CheckSpend(op wire.OutPoint) *btcutil.Tx {
	// Protect concurrent access.
	mp.mtx.RLock()
	txR := mp.checkSpend(op)
	mp.mtx.RUnlock()

	return txR
}

// RecentlyReplaced reports whether the given transaction id was evicted from
// the pool by a cascade removal recently enough to remain in the replacement
// history.
//
// This function is safe for concurrent access.
func (mp *TxPool) RecentlyReplaced(hash *chainhash.Hash) bool {
	// Protect concurrent access.
	mp.mtx.RLock()
	replaced := mp.replaced.Contains(*hash)
	mp.mtx.RUnlock()

	return replaced
}

// Count returns the number of transactions in the pool.
//
// This function is safe for concurrent access.
func (mp *TxPool) Count() int {
	// Protect concurrent access.
	mp.mtx.RLock()
	count := len(mp.pool)
	mp.mtx.RUnlock()

	return count
}

// TxDescs returns a slice of descriptors for all the transactions in the
// pool. The descriptors are to be treated as read only.
//
// This function is safe for concurrent access.
func (mp *TxPool) TxDescs() []*TxDesc {
	mp.mtx.RLock()
	descs := make([]*TxDesc, len(mp.pool))
	i := 0
	for _, desc := range mp.pool {
		descs[i] = desc
		i++
	}
	mp.mtx.RUnlock()

	return descs
}

// View runs fn with a read-only view over the pool. The pool's read lock is
// held for the duration of the callback, so everything fn observes through
// the view reflects one consistent pool state. The callback must not invoke
// any mutating pool method; doing so would deadlock.
//
// This function is safe for concurrent access.
func (mp *TxPool) View(fn func(bumpfee.MempoolView) error) error {
	mp.mtx.RLock()
	defer mp.mtx.RUnlock()

	return fn(&view{mp: mp})
}

// view is the bumpfee.MempoolView facade handed to View callbacks. It is
// only valid while the View call that produced it is running.
type view struct {
	mp *TxPool
}

// Ensure the view type implements the bumpfee.MempoolView interface.
var _ bumpfee.MempoolView = (*view)(nil)

// CheckSpend returns the transaction currently spending the passed outpoint,
// if any.
func (v *view) CheckSpend(op wire.OutPoint) *btcutil.Tx {
	return v.mp.checkSpend(op)
}

// HaveTransaction returns whether or not the passed transaction exists in
// the pool.
func (v *view) HaveTransaction(hash *chainhash.Hash) bool {
	return v.mp.haveTransaction(hash)
}

// Cluster returns snapshot descriptors for the connected component spanning
// the given transaction ids: every pool transaction reachable from any of
// them over parent or child edges. Ids not in the pool contribute nothing.
// The returned descriptors are copies and remain valid after the view's
// lock window closes.
func (v *view) Cluster(txids []chainhash.Hash) []*bumpfee.TxDesc {
	cluster := make(map[chainhash.Hash]*TxDesc)
	var queue []*TxDesc
	for _, txid := range txids {
		if _, seen := cluster[txid]; seen {
			continue
		}
		if desc, exists := v.mp.pool[txid]; exists {
			cluster[txid] = desc
			queue = append(queue, desc)
		}
	}

	for len(queue) > 0 {
		next := queue[0]
		queue = queue[1:]

		// Parent edges.
		for _, txIn := range next.Tx.MsgTx().TxIn {
			parentHash := txIn.PreviousOutPoint.Hash
			if _, seen := cluster[parentHash]; seen {
				continue
			}
			if parent, exists := v.mp.pool[parentHash]; exists {
				cluster[parentHash] = parent
				queue = append(queue, parent)
			}
		}

		// Child edges.
		nextHash := next.Tx.Hash()
		for i := uint32(0); i < uint32(len(next.Tx.MsgTx().TxOut)); i++ {
			prevOut := wire.OutPoint{Hash: *nextHash, Index: i}
			spender, exists := v.mp.outpoints[prevOut]
			if !exists {
				continue
			}
			spenderHash := *spender.Tx.Hash()
			if _, seen := cluster[spenderHash]; seen {
				continue
			}
			cluster[spenderHash] = spender
			queue = append(queue, spender)
		}
	}

	descs := make([]*bumpfee.TxDesc, 0, len(cluster))
	for _, desc := range cluster {
		descs = append(descs, &bumpfee.TxDesc{
			Tx:           desc.Tx,
			Fee:          desc.modifiedFee(),
			VirtualSize:  desc.VirtualSize,
			AncestorFee:  desc.AncestorFee,
			AncestorSize: desc.AncestorSize,
		})
	}
	return descs
}

// Descendants returns the ids of every pool transaction descending from the
// given id, the id itself included, or nil when the id is not in the pool.
func (v *view) Descendants(hash *chainhash.Hash) []chainhash.Hash {
	descendants := v.mp.descendants(hash)
	if descendants == nil {
		return nil
	}

	hashes := make([]chainhash.Hash, 0, len(descendants))
	for hash := range descendants {
		hashes = append(hashes, hash)
	}
	return hashes
}
