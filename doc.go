// Copyright (c) 2026 The btcsuite developers
// Use of this source code is governed by an ISC
// license that can be found in the LICENSE file.

// Package bumpfee estimates the additional fee required to raise unconfirmed
// transactions, together with their unconfirmed ancestors, to a target fee
// rate. It answers the wallet question "how much more do I have to pay to get
// this output's transaction package above N sat/kvB?" without running full
// block assembly.
//
// # Algorithm
//
// An Estimator takes a snapshot of the relevant mempool cluster for a set of
// requested outpoints, then greedily builds a mock block template: it
// repeatedly selects the remaining entry with the highest ancestor fee rate,
// includes that entry's whole ancestor package, and updates the remaining
// entries' ancestor aggregates, stopping when the best remaining package no
// longer clears the target rate. Outpoints whose transactions made it into
// the template need no bump; every other outpoint's bump fee is the
// difference between what the target rate demands for its ancestor package
// and what that package already pays.
//
// Outpoints that are not in the mempool at all (confirmed or unknown) cost
// nothing to bump. Transactions that conflict with a requested outpoint are
// treated as to-be-replaced: they and their descendants are excluded from the
// simulation entirely, since a replacement would evict them.
//
// # Snapshot Discipline
//
// All mempool access happens inside a single MempoolSource.View call during
// NewEstimator. The snapshot owns copies of every value it needs; after
// construction the estimator never touches the mempool again, so results are
// consistent even if the pool keeps changing underneath.
//
// # Single Use
//
// Building the template consumes the snapshot. An Estimator therefore
// supports exactly one derivation, either BumpFees or TotalBumpFee, and returns
// ErrEstimatorUsed on any further call. Estimating at several target rates
// means constructing one Estimator per rate.
package bumpfee
