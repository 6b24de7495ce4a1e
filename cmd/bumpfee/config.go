// Copyright (c) 2026 The btcsuite developers
// Use of this source code is governed by an ISC
// license that can be found in the LICENSE file.

package main

import (
	"fmt"
	"os"

	"github.com/btcsuite/btclog"
	flags "github.com/jessevdk/go-flags"
)

const (
	defaultDebugLevel = "info"
)

// config defines the configuration options for bumpfee.
//
// See loadConfig for details on the configuration load process.
type config struct {
	DebugLevel string  `short:"d" long:"debuglevel" description:"Logging level {trace, debug, info, warn, error, critical}"`
	InFile     string  `short:"i" long:"input" description:"File containing the mempool snapshot JSON"`
	LogFile    string  `long:"logfile" description:"Write log output to this rotated file in addition to stdout"`
	Targets    []int64 `short:"t" long:"target" description:"Target fee rate in sat/kvB to estimate for; may be specified multiple times"`
	Total      bool    `long:"total" description:"Print one aggregate bump fee per target instead of per-outpoint amounts"`
}

// fileExists reports whether the named file or directory exists.
func fileExists(name string) bool {
	if _, err := os.Stat(name); err != nil {
		if os.IsNotExist(err) {
			return false
		}
	}
	return true
}

// loadConfig initializes and parses the config using command line options.
func loadConfig() (*config, []string, error) {
	// Default config.
	cfg := config{
		DebugLevel: defaultDebugLevel,
	}

	// Parse command line options.
	parser := flags.NewParser(&cfg, flags.Default)
	remainingArgs, err := parser.Parse()
	if err != nil {
		if e, ok := err.(*flags.Error); !ok || e.Type != flags.ErrHelp {
			parser.WriteHelp(os.Stderr)
		}
		return nil, nil, err
	}

	funcName := "loadConfig"

	// Validate debug log level.
	if _, ok := btclog.LevelFromString(cfg.DebugLevel); !ok {
		str := "%s: The specified debug level [%v] is invalid"
		err := fmt.Errorf(str, funcName, cfg.DebugLevel)
		fmt.Fprintln(os.Stderr, err)
		parser.WriteHelp(os.Stderr)
		return nil, nil, err
	}

	// Ensure the specified snapshot file exists.
	if cfg.InFile == "" {
		str := "%s: A mempool snapshot file is required -- use -i/--input"
		err := fmt.Errorf(str, funcName)
		fmt.Fprintln(os.Stderr, err)
		parser.WriteHelp(os.Stderr)
		return nil, nil, err
	}
	if !fileExists(cfg.InFile) {
		str := "%s: The specified snapshot file [%v] does not exist"
		err := fmt.Errorf(str, funcName, cfg.InFile)
		fmt.Fprintln(os.Stderr, err)
		parser.WriteHelp(os.Stderr)
		return nil, nil, err
	}

	// At least one target fee rate is needed to estimate anything, and
	// negative rates are meaningless.
	if len(cfg.Targets) == 0 {
		str := "%s: At least one target fee rate is required -- use " +
			"-t/--target"
		err := fmt.Errorf(str, funcName)
		fmt.Fprintln(os.Stderr, err)
		parser.WriteHelp(os.Stderr)
		return nil, nil, err
	}
	for _, target := range cfg.Targets {
		if target < 0 {
			str := "%s: The target fee rate [%v] is invalid -- " +
				"rates must not be negative"
			err := fmt.Errorf(str, funcName, target)
			fmt.Fprintln(os.Stderr, err)
			parser.WriteHelp(os.Stderr)
			return nil, nil, err
		}
	}

	return &cfg, remainingArgs, nil
}
