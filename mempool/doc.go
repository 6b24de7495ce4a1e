// Copyright (c) 2026 The btcsuite developers
// Use of this source code is governed by an ISC
// license that can be found in the LICENSE file.

/*
Package mempool provides a compact unconfirmed transaction pool for driving
bump-fee estimation.

The pool tracks standalone transactions, the outpoints they spend, and live
ancestor fee and size aggregates over the unconfirmed parent/child graph. It
performs no script or signature validation, applies no standardness policy,
and keeps no orphans: callers insert parents before children and vouch for
the fees they report. What it does maintain, it maintains exactly: every
entry's ancestor aggregates always equal the sum of modified fees and virtual
sizes over its in-pool ancestor closure, itself included, across additions,
removals in both confirmed and cascade mode, and fee prioritisation.

Estimators read the pool through View, which runs a callback under the
pool's read lock against a bumpfee.MempoolView. Everything the callback
observes (conflict lookups, cluster membership, descendant closures)
reflects one consistent pool state, and the snapshot descriptors it copies
out remain valid after the lock is released.
*/
package mempool
