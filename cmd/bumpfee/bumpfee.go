// Copyright (c) 2026 The btcsuite developers
// Use of this source code is governed by an ISC
// license that can be found in the LICENSE file.

package main

import (
	"fmt"
	"os"
	"path/filepath"

	"github.com/btcsuite/btclog"
	"github.com/btcsuite/bumpfee"
	"github.com/btcsuite/bumpfee/feerate"
	"github.com/btcsuite/bumpfee/mempool"
	"github.com/jrick/logrotate/rotator"
)

var (
	cfg *config
	log btclog.Logger

	// logRotator duplicates log output into a rotated file when
	// --logfile is set.
	logRotator *rotator.Rotator
)

// logWriter mirrors every log line to stdout and, when configured, to the
// rotated log file.
type logWriter struct{}

func (logWriter) Write(p []byte) (n int, err error) {
	os.Stdout.Write(p)
	if logRotator != nil {
		logRotator.Write(p)
	}
	return len(p), nil
}

// setupLogging wires the subsystem loggers to one backend at the configured
// level.
func setupLogging() error {
	if cfg.LogFile != "" {
		logDir, _ := filepath.Split(cfg.LogFile)
		if logDir != "" {
			if err := os.MkdirAll(logDir, 0700); err != nil {
				return err
			}
		}
		r, err := rotator.New(cfg.LogFile, 10*1024, false, 3)
		if err != nil {
			return err
		}
		logRotator = r
	}

	backendLogger := btclog.NewBackend(logWriter{})
	level, _ := btclog.LevelFromString(cfg.DebugLevel)

	log = backendLogger.Logger("MAIN")
	log.SetLevel(level)

	estimatorLog := backendLogger.Logger("BUMP")
	estimatorLog.SetLevel(level)
	bumpfee.UseLogger(estimatorLog)

	poolLog := backendLogger.Logger("MPOL")
	poolLog.SetLevel(level)
	mempool.UseLogger(poolLog)

	return nil
}

// realMain is the real main function for the utility.  It is necessary to
// work around the fact that deferred functions do not run when os.Exit() is
// called.
func realMain() error {
	// Load configuration and parse command line.
	tcfg, _, err := loadConfig()
	if err != nil {
		return err
	}
	cfg = tcfg

	if err := setupLogging(); err != nil {
		fmt.Fprintf(os.Stderr, "failed to set up logging: %v\n", err)
		return err
	}
	defer os.Stdout.Sync()
	defer func() {
		if logRotator != nil {
			logRotator.Close()
		}
	}()

	mp, outpoints, err := loadSnapshot(cfg.InFile)
	if err != nil {
		log.Errorf("Failed to load snapshot %v: %v", cfg.InFile, err)
		return err
	}
	log.Infof("Loaded %d transaction(s) and %d outpoint(s) from %v",
		mp.Count(), len(outpoints), cfg.InFile)

	// Each target rate gets a fresh estimator; a snapshot serves exactly
	// one derivation.
	for _, rate := range cfg.Targets {
		target := feerate.SatPerKVByte(rate)

		est, err := bumpfee.NewEstimator(mp, outpoints)
		if err != nil {
			log.Errorf("Failed to snapshot mempool: %v", err)
			return err
		}

		if cfg.Total {
			total, err := est.TotalBumpFee(target)
			if err != nil {
				log.Errorf("Failed to estimate at %v: %v",
					target, err)
				return err
			}
			fmt.Printf("target %v: total bump fee %d\n", target,
				int64(total))
			continue
		}

		bumps, err := est.BumpFees(target)
		if err != nil {
			log.Errorf("Failed to estimate at %v: %v", target, err)
			return err
		}

		fmt.Printf("target %v:\n", target)
		for _, op := range outpoints {
			fmt.Printf("  %v => %d\n", op, int64(bumps[op]))
		}
	}

	return nil
}

func main() {
	// Work around defer not working after os.Exit()
	if err := realMain(); err != nil {
		os.Exit(1)
	}
}
