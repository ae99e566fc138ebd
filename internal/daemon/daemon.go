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

// Package daemon owns every open Repository and Monitor for the life of
// the process, serves the IPC method set over them, and runs background
// maintenance. It is the one long-lived object cmd/mnemd constructs.
package daemon

import (
	"context"
	"fmt"
	"log/slog"
	"path/filepath"
	"sync"
	"time"

	"github.com/prometheus/client_golang/prometheus"

	"github.com/mnemosyne-project/mnemosyne/internal/config"
	"github.com/mnemosyne-project/mnemosyne/internal/ipc"
	"github.com/mnemosyne-project/mnemosyne/internal/mnemerr"
	"github.com/mnemosyne-project/mnemosyne/internal/monitor"
	"github.com/mnemosyne-project/mnemosyne/internal/paths"
	"github.com/mnemosyne-project/mnemosyne/internal/power"
	"github.com/mnemosyne-project/mnemosyne/internal/registry"
	"github.com/mnemosyne-project/mnemosyne/internal/repository"
)

// appVersion is the daemon's reported software version, independent of
// daemonCfg.Version which is daemon.yaml's own schema version.
const appVersion = "0.1.0"

// repoEntry pairs an open Repository with the Monitor watching its root.
// The daemon's repos map is the sole owner: closing an entry stops the
// watcher and closes the metadata DB.
type repoEntry struct {
	repo    *repository.Repository
	monitor *monitor.Monitor
}

// Daemon is the process-wide state: the project registry, every
// currently open repository, the IPC dispatcher, and the metrics
// registered against it.
type Daemon struct {
	ctx       context.Context
	base      string
	daemonCfg *config.Daemon
	registry  *registry.Registry
	logger    *slog.Logger
	startTime time.Time

	mu    sync.Mutex
	repos map[string]*repoEntry

	Dispatcher *ipc.Dispatcher

	requestsTotal   *prometheus.CounterVec
	gcRuns          prometheus.Counter
	migrationRuns   prometheus.Counter
	historySizeGauge prometheus.Gauge
}

// New wires a Daemon rooted at base: ensures the directory layout
// exists, opens the registry, loads or mints the auth token, and
// registers every IPC method handler. ctx is the process lifetime
// context; every Monitor opened later runs under it, so cancelling ctx
// stops all of them in one shot. A nil ctx falls back to
// context.Background() (non-cancellable, matching the teacher's
// test-only-usage pattern).
func New(ctx context.Context, base string, logger *slog.Logger) (*Daemon, error) {
	if ctx == nil {
		ctx = context.Background()
	}
	if logger == nil {
		logger = slog.Default()
	}
	if err := paths.EnsureBaseDir(base); err != nil {
		return nil, err
	}

	daemonCfg, err := config.LoadDaemon(base)
	if err != nil {
		return nil, err
	}

	reg, err := registry.Open(base)
	if err != nil {
		return nil, err
	}

	token, err := loadOrCreateToken(paths.TokenPath(base))
	if err != nil {
		return nil, err
	}

	d := &Daemon{
		ctx:       ctx,
		base:      base,
		daemonCfg: daemonCfg,
		registry:  reg,
		logger:    logger,
		startTime: time.Now(),
		repos:     make(map[string]*repoEntry),

		requestsTotal: prometheus.NewCounterVec(prometheus.CounterOpts{
			Namespace: "mnemosyne",
			Name:      "ipc_requests_total",
			Help:      "IPC requests handled, by method.",
		}, []string{"method"}),
		gcRuns: prometheus.NewCounter(prometheus.CounterOpts{
			Namespace: "mnemosyne", Name: "gc_runs_total", Help: "Garbage collection sweeps completed.",
		}),
		migrationRuns: prometheus.NewCounter(prometheus.CounterOpts{
			Namespace: "mnemosyne", Name: "tier_migrations_total", Help: "Tier migration passes completed.",
		}),
		historySizeGauge: prometheus.NewGauge(prometheus.GaugeOpts{
			Namespace: "mnemosyne", Name: "history_size_bytes", Help: "Total on-disk size of all content blobs.",
		}),
	}

	prometheus.MustRegister(d.requestsTotal, d.gcRuns, d.migrationRuns, d.historySizeGauge)

	d.Dispatcher = ipc.NewDispatcher(token, logger)
	d.registerHandlers()
	return d, nil
}

// openRepository returns the Repository for projectRoot, opening and
// registering it (and starting its Monitor) on first use.
func (d *Daemon) openRepository(projectRoot string) (*repository.Repository, error) {
	canonical, err := filepath.Abs(projectRoot)
	if err != nil {
		return nil, mnemerr.NewIOError(projectRoot, err)
	}

	proj, err := d.registry.GetOrCreate(canonical)
	if err != nil {
		return nil, err
	}

	d.mu.Lock()
	defer d.mu.Unlock()
	if entry, ok := d.repos[proj.ID]; ok {
		return entry.repo, nil
	}

	vault := paths.ProjectDir(d.base, proj.ID)
	repoCfg, err := config.LoadRepository(vault)
	if err != nil {
		return nil, err
	}

	repo, err := repository.Open(proj.ID, canonical, vault, repoCfg, d.logger)
	if err != nil {
		return nil, err
	}

	profile := power.Detect()
	debounce := time.Duration(repoCfg.DebounceMillis) * time.Millisecond
	if debounce <= 0 {
		debounce = profile.Debounce
	}

	mon, err := monitor.New(canonical, repo, d.logger, debounce)
	if err != nil {
		repo.Close()
		return nil, err
	}
	if err := mon.Start(d.ctx); err != nil {
		repo.Close()
		return nil, err
	}

	d.repos[proj.ID] = &repoEntry{repo: repo, monitor: mon}
	d.logger.Info("daemon.repository_opened", "project_id", proj.ID, "path", canonical)
	return repo, nil
}

// StatusResponse is the payload of daemon.getStatus.
type StatusResponse struct {
	Version           string `json:"version"`
	UptimeSeconds     int64  `json:"uptime_seconds"`
	WatchedProjects   int    `json:"watched_projects"`
	AvgResponseTimeMs int64  `json:"avg_response_time_ms"`
	AvgSaveTimeMs     int64  `json:"avg_save_time_ms"`
	HistorySizeBytes  int64  `json:"history_size_bytes"`
	TotalSizeBytes    int64  `json:"total_size_bytes"`
	TotalSnapshots    int    `json:"total_snapshots"`
	TotalSymbols      int    `json:"total_symbols"`
}

// Status gathers a daemon.getStatus snapshot across every open
// repository.
func (d *Daemon) Status() (StatusResponse, error) {
	d.mu.Lock()
	watched := len(d.repos)
	entries := make([]*repoEntry, 0, watched)
	for _, e := range d.repos {
		entries = append(entries, e)
	}
	d.mu.Unlock()

	resp := StatusResponse{
		Version:         appVersion,
		UptimeSeconds:   int64(time.Since(d.startTime).Seconds()),
		WatchedProjects: watched,
	}

	var totalBytes int64
	for _, e := range entries {
		stats, err := e.repo.Stats()
		if err != nil {
			continue
		}
		resp.TotalSnapshots += stats.TotalSnapshots
		resp.TotalSymbols += stats.TotalSymbols
		totalBytes += stats.SizeBytes
	}
	d.historySizeGauge.Set(float64(totalBytes))
	resp.HistorySizeBytes = totalBytes
	resp.TotalSizeBytes = totalBytes
	return resp, nil
}

// Shutdown stops every Monitor and closes every open Repository.
func (d *Daemon) Shutdown() {
	d.mu.Lock()
	defer d.mu.Unlock()
	for id, e := range d.repos {
		e.monitor.Stop()
		if err := e.repo.Close(); err != nil {
			d.logger.Warn("daemon.repo_close_failed", "project_id", id, "error", err)
		}
	}
	d.repos = make(map[string]*repoEntry)
}

// socketDescription describes where the daemon listens, for log lines
// inside this package.
func (d *Daemon) socketDescription() string {
	return fmt.Sprintf("unix socket at %s", paths.SocketPath(d.base))
}
