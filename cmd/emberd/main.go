// Copyright (c) 2013-2016 The btcsuite developers
// Copyright (c) 2024 The Flokicoin developers
// Use of this source code is governed by an ISC
// license that can be found in the LICENSE file.

package main

import (
	"context"
	"fmt"
	"os"
	"os/signal"
	"path/filepath"
	"syscall"
	"time"

	elog "github.com/emberchain/emberd/log"
	"github.com/emberchain/emberd/rpcserver"
	"github.com/emberchain/emberd/server"
)

// shutdownTimeout bounds how long graceful shutdown waits for the REST
// server and background goroutines to drain.
const shutdownTimeout = 10 * time.Second

// interruptListener returns a channel that is closed once an interrupt
// or termination signal arrives.
func interruptListener() <-chan struct{} {
	ch := make(chan struct{})
	go func() {
		sigs := make(chan os.Signal, 1)
		signal.Notify(sigs, os.Interrupt, syscall.SIGTERM)
		<-sigs
		close(ch)
	}()
	return ch
}

// fmain is the real main function; separated from main so deferred
// functions still run when a fatal error forces an early return rather
// than an os.Exit.
func fmain() error {
	cfg, params, err := loadConfig()
	if err != nil {
		return err
	}

	if err := initLogRotator(filepath.Join(cfg.LogDir, defaultLogFilename)); err != nil {
		return err
	}
	defer logRotator.Close()

	level, ok := elog.LevelFromString(cfg.Debug)
	if !ok {
		level = elog.LevelInfo
	}
	useLoggers(level, logWriter{})

	fmt.Printf("emberd starting, network=%s datadir=%s\n", params.Name, cfg.DataDir)

	node, err := server.New(server.Config{
		DataDir:    cfg.DataDir,
		SelfHost:   cfg.Listen,
		Params:     params,
		MiningAddr: cfg.MiningAddr,
		Workers:    cfg.Workers,
	})
	if err != nil {
		return fmt.Errorf("emberd: building server: %w", err)
	}

	for _, p := range cfg.Peers {
		node.Peers.AddPeer(p)
	}

	node.Start()

	rpc := rpcserver.New(node, cfg.Listen)
	serveErrs := make(chan error, 1)
	go func() {
		if err := rpc.ListenAndServe(); err != nil {
			serveErrs <- err
		}
	}()

	interrupt := interruptListener()
	select {
	case <-interrupt:
	case err := <-serveErrs:
		fmt.Fprintf(os.Stderr, "emberd: rpcserver: %v\n", err)
	}

	fmt.Println("emberd shutting down...")
	ctx, cancel := context.WithTimeout(context.Background(), shutdownTimeout)
	defer cancel()
	rpc.Shutdown(ctx)
	return node.Stop()
}

func main() {
	if err := fmain(); err != nil {
		os.Exit(1)
	}
}
