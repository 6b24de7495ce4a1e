// Copyright (c) 2026 The btcsuite developers
// Use of this source code is governed by an ISC
// license that can be found in the LICENSE file.

package main

import (
	"bytes"
	"encoding/hex"
	"encoding/json"
	"fmt"
	"os"

	"github.com/btcsuite/btcd/btcutil"
	"github.com/btcsuite/btcd/chaincfg/chainhash"
	"github.com/btcsuite/btcd/wire"
	"github.com/btcsuite/bumpfee/mempool"
)

// snapshotTx is one pool transaction record in the snapshot file. Priority
// is an optional fee delta applied after insertion.
type snapshotTx struct {
	Hex      string `json:"hex"`
	Fee      int64  `json:"fee"`
	Priority int64  `json:"priority"`
}

// snapshotOutPoint names one spendable output to estimate a bump fee for.
type snapshotOutPoint struct {
	TxID string `json:"txid"`
	Vout uint32 `json:"vout"`
}

// snapshot is the on-disk input format: the pool transactions listed
// parents-first, plus the outpoints to estimate for.
type snapshot struct {
	Transactions []snapshotTx       `json:"transactions"`
	Outpoints    []snapshotOutPoint `json:"outpoints"`
}

// loadSnapshot reads the JSON snapshot file and builds the transaction pool
// and the requested outpoints from it.
func loadSnapshot(path string) (*mempool.TxPool, []wire.OutPoint, error) {
	data, err := os.ReadFile(path)
	if err != nil {
		return nil, nil, err
	}

	var snap snapshot
	if err := json.Unmarshal(data, &snap); err != nil {
		return nil, nil, fmt.Errorf("malformed snapshot: %w", err)
	}

	mp := mempool.New()
	for i, st := range snap.Transactions {
		rawTx, err := hex.DecodeString(st.Hex)
		if err != nil {
			return nil, nil, fmt.Errorf("transaction %d: %w", i, err)
		}

		var msgTx wire.MsgTx
		if err := msgTx.Deserialize(bytes.NewReader(rawTx)); err != nil {
			return nil, nil, fmt.Errorf("transaction %d: %w", i, err)
		}
		tx := btcutil.NewTx(&msgTx)

		_, err = mp.AddTransaction(tx, btcutil.Amount(st.Fee))
		if err != nil {
			return nil, nil, fmt.Errorf("transaction %d (%v): %w",
				i, tx.Hash(), err)
		}

		if st.Priority != 0 {
			err = mp.PrioritiseTransaction(
				tx.Hash(), btcutil.Amount(st.Priority),
			)
			if err != nil {
				return nil, nil, fmt.Errorf(
					"transaction %d (%v): %w", i,
					tx.Hash(), err)
			}
		}
	}

	outpoints := make([]wire.OutPoint, 0, len(snap.Outpoints))
	for i, so := range snap.Outpoints {
		hash, err := chainhash.NewHashFromStr(so.TxID)
		if err != nil {
			return nil, nil, fmt.Errorf("outpoint %d: %w", i, err)
		}
		outpoints = append(outpoints, wire.OutPoint{
			Hash:  *hash,
			Index: so.Vout,
		})
	}

	return mp, outpoints, nil
}
