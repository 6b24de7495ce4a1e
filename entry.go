// Copyright (c) 2026 The btcsuite developers
// Use of this source code is governed by an ISC
// license that can be found in the LICENSE file.

package bumpfee

import (
	"bytes"

	"github.com/btcsuite/btcd/btcutil"
	"github.com/btcsuite/btcd/chaincfg/chainhash"
	"github.com/btcsuite/bumpfee/feerate"
)

// txEntry is the estimator's working copy of one unconfirmed transaction.
// Entries are owned by the entry set map; the sortable view and the
// descendant caches alias the same pointers, so an aggregate update through
// one is visible through all of them.
type txEntry struct {
	// fee and vsize are the transaction's own modified fee and virtual
	// size. They never change after the snapshot.
	fee   btcutil.Amount
	vsize int64

	// tx is retained for walking inputs during ancestor closure
	// computation and for its cached hash.
	tx *btcutil.Tx

	// ancestorFee and ancestorSize aggregate the entry together with its
	// not-yet-mined in-snapshot ancestors. Mining an ancestor decrements
	// them; they never grow.
	ancestorFee  btcutil.Amount
	ancestorSize int64
}

func (e *txEntry) hash() *chainhash.Hash {
	return e.tx.Hash()
}

// ancestorRate returns the entry's current ancestor package fee rate.
func (e *txEntry) ancestorRate() feerate.SatPerKVByte {
	return feerate.NewSatPerKVByte(e.ancestorFee, e.ancestorSize)
}

// mineFirst reports whether a's ancestor package outranks b's for inclusion.
// Rates compare in truncated sat/kvB, so near-equal densities tie; ties fall
// to the transaction id bytes, which keeps a given snapshot's partition
// deterministic without carrying any business meaning.
func mineFirst(a, b *txEntry) bool {
	aRate, bRate := a.ancestorRate(), b.ancestorRate()
	if aRate != bRate {
		return aRate > bRate
	}
	return bytes.Compare(a.hash()[:], b.hash()[:]) < 0
}
