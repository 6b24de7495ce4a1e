// Copyright (c) 2026 The btcsuite developers
// Use of this source code is governed by an ISC
// license that can be found in the LICENSE file.

package bumpfee

import (
	"github.com/btcsuite/btcd/btcutil"
	"github.com/btcsuite/btcd/chaincfg/chainhash"
	"github.com/btcsuite/btcd/wire"
)

// TxDesc describes one unconfirmed transaction as seen by a mempool view.
// It carries exactly the information the estimator snapshots: the transaction
// itself (for walking its inputs) plus individual and ancestor-aggregate fee
// and size figures. Fees are modified fees, meaning any prioritisation delta
// the pool applies is already folded in.
type TxDesc struct {
	// Tx is the transaction this descriptor refers to. The estimator only
	// reads its inputs (to discover in-snapshot parents) and its hash.
	Tx *btcutil.Tx

	// Fee is the transaction's own modified fee, excluding ancestors.
	Fee btcutil.Amount

	// VirtualSize is the transaction's own virtual size in vbytes.
	VirtualSize int64

	// AncestorFee is the summed modified fee of the transaction and all
	// of its unconfirmed ancestors.
	AncestorFee btcutil.Amount

	// AncestorSize is the summed virtual size of the transaction and all
	// of its unconfirmed ancestors, in vbytes.
	AncestorSize int64
}

// MempoolView provides read access to mempool state. A view is only valid
// inside the MempoolSource.View callback that produced it; implementations
// assume their pool's lock is held for the life of the view, and the
// estimator copies everything it needs before the callback returns.
type MempoolView interface {
	// CheckSpend returns the transaction in the pool that spends the
	// given outpoint, or nil if the outpoint is unspent within the pool.
	CheckSpend(op wire.OutPoint) *btcutil.Tx

	// HaveTransaction returns whether the transaction with the given hash
	// is present in the pool.
	HaveTransaction(hash *chainhash.Hash) bool

	// Cluster returns descriptors for every pool transaction connected to
	// any of the given transactions through ancestor or descendant links,
	// including the given transactions themselves. Ids not present in the
	// pool contribute nothing. The returned descriptors are snapshot
	// copies owned by the caller.
	Cluster(txids []chainhash.Hash) []*TxDesc

	// Descendants returns the hashes of the given transaction and every
	// pool transaction that directly or transitively spends from it. The
	// result always includes the given hash itself when present; a hash
	// not in the pool yields an empty result.
	Descendants(hash *chainhash.Hash) []chainhash.Hash
}

// MempoolSource is implemented by mempools that can expose a consistent
// read-only view of themselves. View runs fn under the source's read lock so
// that every lookup fn performs observes one coherent pool state; the lock is
// released when fn returns. fn must not retain the view or call back into the
// source's mutating methods.
type MempoolSource interface {
	View(fn func(MempoolView) error) error
}
