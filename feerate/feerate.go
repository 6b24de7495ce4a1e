// Copyright (c) 2026 The btcsuite developers
// Use of this source code is governed by an ISC
// license that can be found in the LICENSE file.

// Package feerate provides the fee rate unit used to rank and price
// unconfirmed transaction packages.
package feerate

import (
	"fmt"

	"github.com/btcsuite/btcd/btcutil"
)

// SatPerKVByte is a fee rate expressed in satoshis per 1000 virtual bytes.
// The integer unit matches the granularity used by mempool acceptance and
// mining code, so rates derived from a (fee, size) pair truncate rather than
// round; two packages whose real-valued densities differ by less than one
// sat/kvB compare as equal.
type SatPerKVByte btcutil.Amount

// NewSatPerKVByte returns the fee rate implied by paying the given fee for a
// transaction (or package) of the given virtual size. The division truncates
// toward zero, and a zero size yields a zero rate.
func NewSatPerKVByte(fee btcutil.Amount, vsize int64) SatPerKVByte {
	if vsize == 0 {
		return 0
	}
	return SatPerKVByte(int64(fee) * 1000 / vsize)
}

// FeeForVSize returns the fee demanded by this rate for a transaction of the
// given virtual size. The result truncates toward zero, except that a nonzero
// rate applied to a nonzero size never demands less than one satoshi in
// magnitude: the result is bumped to 1 (or -1 for a negative rate) when the
// truncated product would be zero. Fee deltas can push a rate negative, so
// the sign is preserved rather than clamped.
func (r SatPerKVByte) FeeForVSize(vsize int64) btcutil.Amount {
	fee := int64(r) * vsize / 1000
	if fee == 0 && vsize != 0 {
		if r > 0 {
			fee = 1
		}
		if r < 0 {
			fee = -1
		}
	}
	return btcutil.Amount(fee)
}

// String returns the rate in a human-readable form.
func (r SatPerKVByte) String() string {
	return fmt.Sprintf("%d sat/kvB", int64(r))
}
