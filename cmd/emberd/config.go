// Copyright (c) 2013-2015 The btcsuite developers
// Copyright (c) 2024 The Flokicoin developers
// Use of this source code is governed by an ISC
// license that can be found in the LICENSE file.

package main

import (
	"fmt"
	"os"
	"path/filepath"
	"strings"

	flags "github.com/jessevdk/go-flags"

	"github.com/emberchain/emberd/chaincfg"
)

const defaultConfigFilename = "emberd.conf"
const defaultLogFilename = "emberd.log"
const defaultMaxPeers = 64

var (
	defaultHomeDir   = defaultAppDataDir()
	defaultConfigFile = filepath.Join(defaultHomeDir, defaultConfigFilename)
	defaultDataDir   = filepath.Join(defaultHomeDir, "data")
	defaultLogDir    = filepath.Join(defaultHomeDir, "logs")
)

func defaultAppDataDir() string {
	home, err := os.UserHomeDir()
	if err != nil {
		home = "."
	}
	return filepath.Join(home, ".emberd")
}

// config defines the configuration options for emberd.
//
// See loadConfig for details on the configuration load process.
type config struct {
	ConfigFile string `short:"C" long:"configfile" description:"Path to configuration file"`
	DataDir    string `short:"b" long:"datadir" description:"Directory to store the chain database"`
	LogDir     string `long:"logdir" description:"Directory to log output"`

	TestNet bool `long:"testnet" description:"Connect to the public test network"`
	RegTest bool `long:"regtest" description:"Run in regression test mode"`

	Listen     string   `long:"listen" description:"Host:port for this node's REST surface"`
	MiningAddr string   `long:"miningaddr" description:"Address to receive mined block rewards; mining disabled if empty"`
	Peers      []string `long:"addpeer" description:"Peer host to connect to on startup (may be given multiple times)"`
	MaxPeers   int      `long:"maxpeers" description:"Has no effect; the peer limit is the selected network's MaxPeers"`
	Workers    int      `long:"workers" description:"Number of inbound queue worker goroutines"`

	Debug string `long:"debug" description:"Logging level: trace, debug, info, warn, error, critical"`
}

func normalizeAddress(addr, defaultPort string) string {
	if addr == "" {
		return ":" + defaultPort
	}
	if !strings.Contains(addr, ":") {
		return addr + ":" + defaultPort
	}
	return addr
}

// loadConfig initializes and parses the config using a config file and
// command line options, following the standard four-step process: start
// from defaults, pre-parse for an alternative config file, load the
// config file, then re-parse the command line so flags always win.
func loadConfig() (*config, *chaincfg.Params, error) {
	cfg := config{
		ConfigFile: defaultConfigFile,
		DataDir:    defaultDataDir,
		LogDir:     defaultLogDir,
		MaxPeers:   defaultMaxPeers,
		Workers:    4,
		Debug:      "info",
	}

	preCfg := cfg
	preParser := flags.NewParser(&preCfg, flags.HelpFlag|flags.PassDoubleDash)
	if _, err := preParser.Parse(); err != nil {
		if e, ok := err.(*flags.Error); ok && e.Type == flags.ErrHelp {
			return nil, nil, err
		}
	}
	if preCfg.ConfigFile != "" {
		cfg.ConfigFile = preCfg.ConfigFile
	}

	parser := flags.NewParser(&cfg, flags.Default)
	if err := flags.NewIniParser(parser).ParseFile(cfg.ConfigFile); err != nil {
		if _, ok := err.(*os.PathError); !ok {
			return nil, nil, fmt.Errorf("emberd: parsing config file: %w", err)
		}
	}
	if _, err := parser.Parse(); err != nil {
		if e, ok := err.(*flags.Error); ok && e.Type == flags.ErrHelp {
			return nil, nil, err
		}
		return nil, nil, err
	}

	if cfg.TestNet && cfg.RegTest {
		return nil, nil, fmt.Errorf("emberd: --testnet and --regtest are mutually exclusive")
	}

	params := &chaincfg.MainNetParams
	switch {
	case cfg.TestNet:
		params = &chaincfg.TestNetParams
	case cfg.RegTest:
		params = &chaincfg.RegressionNetParams
	}

	cfg.DataDir = filepath.Join(cfg.DataDir, params.Name)
	cfg.Listen = normalizeAddress(cfg.Listen, params.FullNodePort)

	if err := os.MkdirAll(cfg.DataDir, 0700); err != nil {
		return nil, nil, fmt.Errorf("emberd: creating data directory: %w", err)
	}
	if err := os.MkdirAll(cfg.LogDir, 0700); err != nil {
		return nil, nil, fmt.Errorf("emberd: creating log directory: %w", err)
	}

	return &cfg, params, nil
}
