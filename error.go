// Copyright (c) 2026 The btcsuite developers
// Use of this source code is governed by an ISC
// license that can be found in the LICENSE file.

package bumpfee

import (
	"errors"
	"fmt"
)

var (
	// ErrEstimatorUsed is returned when a derivation is requested from an
	// estimator whose snapshot has already been consumed by a previous
	// derivation.  Estimators are single use: construct a new one per
	// target rate.
	ErrEstimatorUsed = errors.New("estimator already used")
)

// AssertError identifies an error that indicates an internal code consistency
// issue and should be treated as a critical and unrecoverable error: either
// the mempool view supplied an inconsistent snapshot or the bookkeeping here
// is broken.  Violations panic rather than surface as returned errors.
type AssertError string

// Error returns the assertion error message and satisfies the error interface.
func (e AssertError) Error() string {
	return "assertion failed: " + string(e)
}

// assert panics with an AssertError when the given condition does not hold.
func assert(cond bool, format string, args ...interface{}) {
	if !cond {
		panic(AssertError(fmt.Sprintf(format, args...)))
	}
}
