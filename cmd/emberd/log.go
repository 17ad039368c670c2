// Copyright (c) 2013-2015 The btcsuite developers
// Copyright (c) 2024 The Flokicoin developers
// Use of this source code is governed by an ISC
// license that can be found in the LICENSE file.

package main

import (
	"fmt"
	"io"
	"os"
	"path/filepath"

	"github.com/jrick/logrotate/rotator"

	"github.com/emberchain/emberd/blockchain"
	"github.com/emberchain/emberd/chainstore"
	elog "github.com/emberchain/emberd/log"
	"github.com/emberchain/emberd/mempool"
	"github.com/emberchain/emberd/mining"
	"github.com/emberchain/emberd/netsync"
	"github.com/emberchain/emberd/rpcserver"
	"github.com/emberchain/emberd/server"
)

// logRotator writes written data to a rotating log file; logWriter pairs
// it with standard out, the same split every flokicoin-lineage daemon uses.
var logRotator *rotator.Rotator

// logWriter implements io.Writer fanning out to both stdout and the
// rotator, matching the reference daemon's dual-sink log backend.
type logWriter struct{}

func (logWriter) Write(p []byte) (int, error) {
	os.Stdout.Write(p)
	logRotator.Write(p)
	return len(p), nil
}

// initLogRotator initializes the logging rotator to write logs to
// logFile and create roll files in the same directory.
func initLogRotator(logFile string) error {
	logDir := filepath.Dir(logFile)
	if err := os.MkdirAll(logDir, 0700); err != nil {
		return fmt.Errorf("emberd: failed to create log directory: %w", err)
	}
	r, err := rotator.New(logFile, 10*1024, false, 3)
	if err != nil {
		return fmt.Errorf("emberd: failed to create file rotator: %w", err)
	}
	logRotator = r
	return nil
}

// subsystemLoggers maps each package's logger to the name its --debug
// level targets, mirroring the reference daemon's subsystem table.
func subsystemLoggers(backend *elog.Backend) map[string]elog.Logger {
	return map[string]elog.Logger{
		"SRVR": backend.Logger("SRVR"),
		"CHST": backend.Logger("CHST"),
		"VLDT": backend.Logger("VLDT"),
		"MEMP": backend.Logger("MEMP"),
		"MINR": backend.Logger("MINR"),
		"SYNC": backend.Logger("SYNC"),
		"RPCS": backend.Logger("RPCS"),
	}
}

// useLoggers wires a freshly built logging backend into every package
// that carries a disabled-by-default DisableLog/UseLogger pair.
func useLoggers(level elog.Level, w io.Writer) {
	backend := elog.NewBackend(w)
	loggers := subsystemLoggers(backend)
	for _, l := range loggers {
		l.SetLevel(level)
	}
	server.UseLogger(loggers["SRVR"])
	mempool.UseLogger(loggers["MEMP"])
	mining.UseLogger(loggers["MINR"])
	netsync.UseLogger(loggers["SYNC"])
	rpcserver.UseLogger(loggers["RPCS"])
	blockchain.UseLogger(loggers["VLDT"])
	chainstore.UseLogger(loggers["CHST"])
}
