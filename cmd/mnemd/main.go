// Copyright 2025 KrakLabs
//
// This program is free software: you can redistribute it and/or modify
// it under the terms of the GNU Affero General Public License as published
// by the Free Software Foundation, either version 3 of the License, or
// (at your option) any later version.
//
// This program is distributed in the hope that it will be useful,
// but WITHOUT ANY WARRANTY; without even the implied warranty of
// MERCHANTABILITY or FITNESS FOR A PARTICULAR PURPOSE. See the
// GNU Affero General Public License for more details.
//
// You should have received a copy of the GNU Affero General Public License
// along with this program. If not, see <https://www.gnu.org/licenses/>.
//
// For commercial licensing, contact: licensing@kraklabs.com
//
// SPDX-License-Identifier: AGPL-3.0-or-later

// Command mnemd is the per-user local-history daemon: it owns every open
// project repository, watches their working trees, and serves the IPC
// method set over a local Unix socket.
package main

import (
	"context"
	"fmt"
	"log/slog"
	"net"
	"net/http"
	"os"
	"os/signal"
	"syscall"
	"time"

	flag "github.com/spf13/pflag"
	"github.com/prometheus/client_golang/prometheus/promhttp"

	"github.com/mnemosyne-project/mnemosyne/internal/config"
	"github.com/mnemosyne-project/mnemosyne/internal/daemon"
	"github.com/mnemosyne-project/mnemosyne/internal/paths"
)

func main() {
	var (
		dataDir     = flag.String("data-dir", "", "override MNEMOSYNE_HOME")
		logJSON     = flag.Bool("log-json", false, "emit structured logs as JSON instead of text")
		metricsAddr = flag.String("metrics-addr", "", "if set, serve Prometheus metrics on this address (e.g. 127.0.0.1:9477)")
	)
	flag.Parse()

	base := *dataDir
	if base == "" {
		var err error
		base, err = paths.BaseDir()
		if err != nil {
			fmt.Fprintln(os.Stderr, "mnemd:", err)
			os.Exit(1)
		}
	}
	if err := paths.EnsureBaseDir(base); err != nil {
		fmt.Fprintln(os.Stderr, "mnemd:", err)
		os.Exit(1)
	}

	daemonCfg, err := config.LoadDaemon(base)
	if err != nil {
		fmt.Fprintln(os.Stderr, "mnemd:", err)
		os.Exit(1)
	}
	if !flag.CommandLine.Changed("log-json") {
		*logJSON = daemonCfg.LogJSON
	}
	if *metricsAddr == "" {
		*metricsAddr = daemonCfg.MetricsAddr
	}

	logger := newLogger(*logJSON)

	ctx, cancel := context.WithCancel(context.Background())

	d, err := daemon.New(ctx, base, logger)
	if err != nil {
		fmt.Fprintln(os.Stderr, "mnemd:", err)
		os.Exit(1)
	}

	socketPath := paths.SocketPath(base)
	os.Remove(socketPath)
	listener, err := net.Listen("unix", socketPath)
	if err != nil {
		fmt.Fprintln(os.Stderr, "mnemd: cannot listen on", socketPath, ":", err)
		os.Exit(1)
	}

	go d.RunMaintenanceLoop(ctx)

	if *metricsAddr != "" {
		go func() {
			if err := http.ListenAndServe(*metricsAddr, promhttp.Handler()); err != nil {
				logger.Warn("mnemd.metrics_server_failed", "error", err)
			}
		}()
	}

	go acceptLoop(listener, d, logger)

	logger.Info("mnemd.started", "socket", socketPath, "base_dir", base)

	sigChan := make(chan os.Signal, 1)
	signal.Notify(sigChan, syscall.SIGINT, syscall.SIGTERM)
	<-sigChan

	logger.Info("mnemd.shutting_down")
	cancel()
	listener.Close()

	shutdownCtx, shutdownCancel := context.WithTimeout(context.Background(), 5*time.Second)
	defer shutdownCancel()
	done := make(chan struct{})
	go func() {
		d.Shutdown()
		close(done)
	}()
	select {
	case <-done:
	case <-shutdownCtx.Done():
		logger.Warn("mnemd.shutdown_timed_out")
	}
}

func acceptLoop(listener net.Listener, d *daemon.Daemon, logger *slog.Logger) {
	for {
		conn, err := listener.Accept()
		if err != nil {
			return
		}
		go d.Dispatcher.Serve(conn)
	}
}

func newLogger(asJSON bool) *slog.Logger {
	opts := &slog.HandlerOptions{Level: slog.LevelInfo}
	if asJSON {
		return slog.New(slog.NewJSONHandler(os.Stderr, opts))
	}
	return slog.New(slog.NewTextHandler(os.Stderr, opts))
}
