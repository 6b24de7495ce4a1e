// Copyright (c) 2026 The btcsuite developers
// Use of this source code is governed by an ISC
// license that can be found in the LICENSE file.

package bumpfee

import (
	"slices"
	"sort"

	"github.com/btcsuite/btcd/btcutil"
	"github.com/btcsuite/btcd/chaincfg/chainhash"
	"github.com/btcsuite/btcd/wire"
	"github.com/btcsuite/bumpfee/feerate"
	"github.com/davecgh/go-spew/spew"
)

// Estimator answers how much additional fee a set of unconfirmed outputs
// needs before their owning transactions would be mined at a target fee
// rate. It snapshots the relevant mempool state once, at construction, and
// afterwards works entirely on its own copies, so results describe the pool
// as it was at that instant.
//
// An estimator serves exactly one derivation. BumpFees and TotalBumpFee
// consume the snapshot destructively and return ErrEstimatorUsed on any
// later call; construct a fresh estimator per target rate.
type Estimator struct {
	// toBeReplaced holds the txids of pool transactions already spending
	// one of the requested outpoints. Spending such an outpoint evicts
	// the current spender, so these never compete for block space.
	toBeReplaced map[chainhash.Hash]struct{}

	// requested groups the requested outpoints by owning transaction.
	// Groups are deleted as their bump fees get written, so by the end
	// of a derivation the map is empty.
	requested map[chainhash.Hash][]wire.OutPoint

	// bumpFees accumulates the per-outpoint results, including the
	// zeroes written for immediately resolved outpoints at snapshot
	// time.
	bumpFees map[wire.OutPoint]btcutil.Amount

	// inBlock holds the txids mined into the mock template.
	inBlock map[chainhash.Hash]struct{}

	// totalFee and totalVSize are the mock template's running totals.
	totalFee   btcutil.Amount
	totalVSize int64

	// entriesByTxid is the entry set: every not-yet-mined snapshot
	// entry, keyed by txid. entries is the same set as a slice so the
	// template builder can sort it. descendants caches each entry's
	// in-snapshot descendant list, itself included. All three shrink in
	// lockstep as packages are mined.
	entriesByTxid map[chainhash.Hash]*txEntry
	entries       []*txEntry
	descendants   map[chainhash.Hash][]*txEntry

	// used flips when a derivation consumes the snapshot.
	used bool
}

// NewEstimator snapshots the mempool state relevant to the given outpoints
// and prepares a single bump fee derivation over it. The snapshot is taken
// in one View call, so classification, clustering, and aggregate caching
// all observe the same pool state.
//
// Outpoints whose transactions are unknown to the pool resolve to a zero
// bump fee immediately: a confirmed output needs no bumping, and an unknown
// one cannot be priced. Outpoints already spent by another pool transaction
// also resolve to zero, since spending them replaces the current spender
// rather than competing alongside it.
func NewEstimator(source MempoolSource, outpoints []wire.OutPoint) (*Estimator, error) {
	e := &Estimator{
		toBeReplaced:  make(map[chainhash.Hash]struct{}),
		requested:     make(map[chainhash.Hash][]wire.OutPoint),
		bumpFees:      make(map[wire.OutPoint]btcutil.Amount),
		inBlock:       make(map[chainhash.Hash]struct{}),
		entriesByTxid: make(map[chainhash.Hash]*txEntry),
		descendants:   make(map[chainhash.Hash][]*txEntry),
	}
	err := source.View(func(view MempoolView) error {
		e.snapshot(view, outpoints)
		return nil
	})
	if err != nil {
		return nil, err
	}
	return e, nil
}

// snapshot classifies the requested outpoints and copies their cluster out
// of the pool. It runs entirely within the source's View window.
func (e *Estimator) snapshot(view MempoolView, outpoints []wire.OutPoint) {
	for _, op := range outpoints {
		if conflict := view.CheckSpend(op); conflict != nil {
			e.toBeReplaced[*conflict.Hash()] = struct{}{}
		}

		if !view.HaveTransaction(&op.Hash) {
			// Confirmed or unknown; nothing to bump either way.
			e.bumpFees[op] = 0
			continue
		}
		if !slices.Contains(e.requested[op.Hash], op) {
			e.requested[op.Hash] = append(e.requested[op.Hash], op)
		}
	}

	txids := make([]chainhash.Hash, 0, len(e.requested))
	for txid := range e.requested {
		txids = append(txids, txid)
	}
	cluster := view.Cluster(txids)
	assert(len(txids) == 0 || len(cluster) > 0,
		"empty cluster for %d in-pool requested transactions", len(txids))

	// Copy the cluster into the entry set, skipping members slated for
	// replacement. Their requested outpoints, if any, resolve to zero
	// right away.
	for _, desc := range cluster {
		txid := *desc.Tx.Hash()
		if _, ok := e.toBeReplaced[txid]; ok {
			e.resolveZero(txid)
			continue
		}
		e.entriesByTxid[txid] = &txEntry{
			fee:          desc.Fee,
			vsize:        desc.VirtualSize,
			tx:           desc.Tx,
			ancestorFee:  desc.AncestorFee,
			ancestorSize: desc.AncestorSize,
		}
	}

	// Descendants of a to-be-replaced transaction get evicted along with
	// it, so they cannot fee bump anything. Remove them before any
	// caches are built over the entry set.
	for _, desc := range cluster {
		txid := *desc.Tx.Hash()
		if _, ok := e.toBeReplaced[txid]; !ok {
			continue
		}
		for _, dh := range view.Descendants(&txid) {
			if _, ok := e.entriesByTxid[dh]; !ok {
				continue
			}
			delete(e.entriesByTxid, dh)
			e.resolveZero(dh)
		}
	}

	// Cache each survivor's descendant list, filtered to surviving
	// entries, and build the sortable view over the same pointers.
	e.entries = make([]*txEntry, 0, len(e.entriesByTxid))
	for txid, entry := range e.entriesByTxid {
		var list []*txEntry
		for _, dh := range view.Descendants(&txid) {
			if de, ok := e.entriesByTxid[dh]; ok {
				list = append(list, de)
			}
		}
		e.descendants[txid] = list
		e.entries = append(e.entries, entry)
	}

	assert(len(e.entries) == len(e.entriesByTxid) &&
		len(e.descendants) == len(e.entriesByTxid),
		"snapshot out of sync: %d entries, %d by txid, %d descendant lists",
		len(e.entries), len(e.entriesByTxid), len(e.descendants))

	log.Debugf("Snapshot for %d outpoint(s): %d cluster entries, %d to "+
		"be replaced, %d resolved at snapshot", len(outpoints),
		len(e.entries), len(e.toBeReplaced), len(e.bumpFees))
}

// resolveZero writes a zero bump fee for every requested outpoint grouped
// under txid and consumes the group.
func (e *Estimator) resolveZero(txid chainhash.Hash) {
	for _, op := range e.requested[txid] {
		e.bumpFees[op] = 0
	}
	delete(e.requested, txid)
}

// ancestorClosure walks the seeds' inputs breadth-first, following only
// prevouts still present in the entry set, and returns the union of their
// ancestor packages keyed by txid. The seeds themselves are included.
func (e *Estimator) ancestorClosure(seeds []*txEntry) map[chainhash.Hash]*txEntry {
	closure := make(map[chainhash.Hash]*txEntry, len(seeds))
	queue := make([]*txEntry, 0, len(seeds))
	for _, seed := range seeds {
		closure[*seed.hash()] = seed
		queue = append(queue, seed)
	}
	for len(queue) > 0 {
		entry := queue[0]
		queue = queue[1:]

		for _, txIn := range entry.tx.MsgTx().TxIn {
			parentHash := txIn.PreviousOutPoint.Hash
			parent, ok := e.entriesByTxid[parentHash]
			if !ok {
				// Confirmed, or already mined into the mock
				// template.
				continue
			}
			if _, seen := closure[parentHash]; seen {
				continue
			}
			closure[parentHash] = parent
			queue = append(queue, parent)
		}
	}
	return closure
}

// buildTemplate greedily fills the mock block: each round mines the
// remaining entry with the highest ancestor package fee rate, together with
// that whole package, until the best remaining package no longer meets the
// target. Unlike real block assembly there is no weight limit, so when the
// loop stops, everything left is genuinely below target.
func (e *Estimator) buildTemplate(target feerate.SatPerKVByte) {
	for len(e.entriesByTxid) > 0 {
		// Mining decrements the survivors' ancestor aggregates, so
		// the order must be rebuilt every round.
		sort.Slice(e.entries, func(i, j int) bool {
			return mineFirst(e.entries[i], e.entries[j])
		})

		best := e.entries[0]
		if best.ancestorFee < target.FeeForVSize(best.ancestorSize) {
			break
		}

		ancestors := e.ancestorClosure([]*txEntry{best})

		var pkgFee btcutil.Amount
		var pkgSize int64
		for _, anc := range ancestors {
			pkgFee += anc.fee
			pkgSize += anc.vsize
		}
		assert(pkgFee == best.ancestorFee && pkgSize == best.ancestorSize,
			"package of %v walks to fee %v size %d, cached "+
				"aggregates say fee %v size %d", best.hash(),
			pkgFee, pkgSize, best.ancestorFee, best.ancestorSize)

		log.Tracef("Mining package of %d transaction(s) at %v: %v",
			len(ancestors), best.ancestorRate(),
			newLogClosure(func() string {
				return spew.Sdump(ancestors)
			}))

		e.mine(ancestors)
	}

	log.Debugf("Mock template holds %d transaction(s), %v in %d vB",
		len(e.inBlock), e.totalFee, e.totalVSize)
}

// mine includes an ancestor package in the mock template: every member joins
// inBlock and the running totals, each member's individual fee and size are
// subtracted from its descendants' aggregates, and the package is removed
// from the entry set, the sortable view, and the descendant index.
func (e *Estimator) mine(ancestors map[chainhash.Hash]*txEntry) {
	for txid, anc := range ancestors {
		e.inBlock[txid] = struct{}{}
		e.totalFee += anc.fee
		e.totalVSize += anc.vsize

		list, ok := e.descendants[txid]
		assert(ok, "no descendant cache for mined transaction %v", txid)
		for _, d := range list {
			d.ancestorFee -= anc.fee
			d.ancestorSize -= anc.vsize
		}
	}

	for txid := range ancestors {
		delete(e.entriesByTxid, txid)
		delete(e.descendants, txid)
	}
	e.entries = slices.DeleteFunc(e.entries, func(entry *txEntry) bool {
		_, mined := ancestors[*entry.hash()]
		return mined
	})

	assert(len(e.entries) == len(e.entriesByTxid) &&
		len(e.descendants) == len(e.entriesByTxid),
		"entry set out of sync after mining: %d entries, %d by txid, "+
			"%d descendant lists", len(e.entries),
		len(e.entriesByTxid), len(e.descendants))
}

// BumpFees derives, for every requested outpoint, the additional fee its
// owning transaction's ancestor package needs to reach the target fee rate.
// Outpoints whose owners made it into the mock template map to zero. Shared
// ancestors are counted once per package here; summing the results
// overstates the joint requirement when requested transactions overlap, so
// use TotalBumpFee for a combined figure.
//
// The derivation consumes the snapshot. Further calls on the same estimator
// return ErrEstimatorUsed.
func (e *Estimator) BumpFees(target feerate.SatPerKVByte) (map[wire.OutPoint]btcutil.Amount, error) {
	if e.used {
		return nil, ErrEstimatorUsed
	}
	e.used = true

	e.buildTemplate(target)

	// Owners mined into the template already clear the target.
	for txid := range e.inBlock {
		if _, ok := e.requested[txid]; !ok {
			continue
		}
		e.resolveZero(txid)
	}

	// Everything left fell short. The bump is the target's demand for
	// the owner's remaining ancestor package minus what the package
	// already pays.
	for txid, ops := range e.requested {
		entry, ok := e.entriesByTxid[txid]
		assert(ok, "requested transaction %v missing from final "+
			"entry set", txid)

		bump := target.FeeForVSize(entry.ancestorSize) - entry.ancestorFee
		assert(bump >= 0, "negative bump %v for %v at target %v",
			bump, txid, target)
		for _, op := range ops {
			e.bumpFees[op] = bump
		}
	}

	log.Debugf("Derived bump fees for %d outpoint(s) at target %v",
		len(e.bumpFees), target)

	return e.bumpFees, nil
}

// TotalBumpFee derives one combined additional fee that would lift every
// requested transaction left out of the mock template to the target fee
// rate, counting shared ancestors exactly once. When the requested
// transactions jointly ride on a well-paying shared ancestor, the union can
// already clear the target even though each package alone fell short; the
// result is then zero, never negative.
//
// The derivation consumes the snapshot. Further calls on the same estimator
// return ErrEstimatorUsed.
func (e *Estimator) TotalBumpFee(target feerate.SatPerKVByte) (btcutil.Amount, error) {
	if e.used {
		return 0, ErrEstimatorUsed
	}
	e.used = true

	e.buildTemplate(target)

	seeds := make([]*txEntry, 0, len(e.requested))
	for txid := range e.requested {
		if _, mined := e.inBlock[txid]; mined {
			continue
		}
		entry, ok := e.entriesByTxid[txid]
		assert(ok, "requested transaction %v missing from final "+
			"entry set", txid)
		seeds = append(seeds, entry)
	}

	closure := e.ancestorClosure(seeds)
	var unionFee btcutil.Amount
	var unionSize int64
	for _, entry := range closure {
		unionFee += entry.fee
		unionSize += entry.vsize
	}

	shortfall := target.FeeForVSize(unionSize) - unionFee
	if shortfall < 0 {
		shortfall = 0
	}

	log.Debugf("Derived total bump fee %v for %d seed transaction(s) "+
		"(%d in union) at target %v", shortfall, len(seeds),
		len(closure), target)

	return shortfall, nil
}
