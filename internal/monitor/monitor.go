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

// Package monitor watches a project tree with fsnotify, debounces
// per-file events, and drives snapshot capture through a Recorder.
package monitor

import (
	"context"
	"log/slog"
	"os"
	"path/filepath"
	"strings"
	"sync"
	"time"

	"github.com/fsnotify/fsnotify"
	"github.com/schollz/progressbar/v3"
)

// skipDirs are never descended into or watched, regardless of ignore
// policy.
var skipDirs = map[string]bool{
	".git": true, ".mnemosyne": true, "node_modules": true, "vendor": true,
}

// fileState is the per-file debounce state machine: Idle -> Pending
// (timer running) -> Recording (snapshot in flight) -> Idle. An event
// arriving during Recording sets pending so the cycle restarts.
type fileState int

const (
	stateIdle fileState = iota
	statePending
	stateRecording
)

// Recorder is the subset of Repository the Monitor needs: capture a
// file's content and decide whether a path should be skipped.
type Recorder interface {
	SaveSnapshotFromFile(path string) error
	Excluded(relPath string) bool
}

// Monitor watches one project root and calls into a Recorder whenever a
// watched file settles after its debounce window.
type Monitor struct {
	root     string
	recorder Recorder
	logger   *slog.Logger
	debounce time.Duration

	watcher *fsnotify.Watcher
	mu      sync.Mutex
	files   map[string]*fileTimer
	cancel  context.CancelFunc
	done    chan struct{}
}

type fileTimer struct {
	state   fileState
	timer   *time.Timer
	pending bool
}

// New creates a Monitor for root. debounce is the power-derived interval
// to wait after the last event on a file before recording it.
func New(root string, recorder Recorder, logger *slog.Logger, debounce time.Duration) (*Monitor, error) {
	if logger == nil {
		logger = slog.Default()
	}
	watcher, err := fsnotify.NewWatcher()
	if err != nil {
		return nil, err
	}
	return &Monitor{
		root:     root,
		recorder: recorder,
		logger:   logger,
		debounce: debounce,
		watcher:  watcher,
		files:    make(map[string]*fileTimer),
	}, nil
}

// Start adds every non-skipped directory under root to the watcher and
// begins the event loop in a background goroutine.
func (m *Monitor) Start(ctx context.Context) error {
	ctx, cancel := context.WithCancel(ctx)
	m.cancel = cancel
	m.done = make(chan struct{})

	if err := m.addDirs(m.root); err != nil {
		cancel()
		return err
	}

	go m.loop(ctx)
	return nil
}

func (m *Monitor) addDirs(root string) error {
	return filepath.Walk(root, func(path string, info os.FileInfo, err error) error {
		if err != nil {
			if os.IsPermission(err) {
				return filepath.SkipDir
			}
			return nil
		}
		if !info.IsDir() {
			return nil
		}
		base := filepath.Base(path)
		if skipDirs[base] || (strings.HasPrefix(base, ".") && base != "." && path != root) {
			return filepath.SkipDir
		}
		if err := m.watcher.Add(path); err != nil {
			m.logger.Warn("monitor.watch_dir_failed", "path", path, "error", err)
			if os.IsPermission(err) {
				return filepath.SkipDir
			}
		}
		return nil
	})
}

func (m *Monitor) loop(ctx context.Context) {
	defer close(m.done)
	defer m.watcher.Close()

	for {
		select {
		case <-ctx.Done():
			m.stopAllTimers()
			return
		case event, ok := <-m.watcher.Events:
			if !ok {
				return
			}
			m.handleEvent(ctx, event)
		case err, ok := <-m.watcher.Errors:
			if !ok {
				return
			}
			m.logger.Warn("monitor.watch_error", "error", err)
		}
	}
}

func (m *Monitor) handleEvent(ctx context.Context, event fsnotify.Event) {
	relPath, err := filepath.Rel(m.root, event.Name)
	if err != nil {
		return
	}
	relPath = filepath.ToSlash(relPath)
	if m.recorder.Excluded(relPath) {
		return
	}

	info, statErr := os.Stat(event.Name)
	if statErr == nil && info.IsDir() {
		if event.Op&fsnotify.Create != 0 {
			_ = m.watcher.Add(event.Name)
		}
		return
	}

	m.mu.Lock()
	ft, ok := m.files[event.Name]
	if !ok {
		ft = &fileTimer{}
		m.files[event.Name] = ft
	}

	switch ft.state {
	case stateRecording:
		ft.pending = true
		m.mu.Unlock()
		return
	case statePending:
		ft.timer.Stop()
	}
	ft.state = statePending
	ft.timer = time.AfterFunc(m.debounce, func() { m.fire(ctx, event.Name) })
	m.mu.Unlock()
}

func (m *Monitor) fire(ctx context.Context, path string) {
	m.mu.Lock()
	ft, ok := m.files[path]
	if !ok {
		m.mu.Unlock()
		return
	}
	ft.state = stateRecording
	m.mu.Unlock()

	if ctx.Err() == nil {
		if err := m.recorder.SaveSnapshotFromFile(path); err != nil {
			m.logger.Warn("monitor.save_snapshot_failed", "path", path, "error", err)
		}
	}

	m.mu.Lock()
	defer m.mu.Unlock()
	if ft.pending {
		ft.pending = false
		ft.state = statePending
		ft.timer = time.AfterFunc(m.debounce, func() { m.fire(ctx, path) })
		return
	}
	ft.state = stateIdle
}

func (m *Monitor) stopAllTimers() {
	m.mu.Lock()
	defer m.mu.Unlock()
	for _, ft := range m.files {
		if ft.timer != nil {
			ft.timer.Stop()
		}
	}
}

// Stop cancels the watcher and all pending debounce timers, and blocks
// until the event loop has exited.
func (m *Monitor) Stop() {
	if m.cancel != nil {
		m.cancel()
	}
	if m.done != nil {
		<-m.done
	}
}

// InitialScan walks the tree once, snapshotting any file whose content
// differs from its latest recorded snapshot. parallelism bounds the
// number of concurrent file reads, driven by the power profile's
// scan_parallelism.
func (m *Monitor) InitialScan(parallelism int, reportProgress bool) error {
	if parallelism < 1 {
		parallelism = 1
	}

	var paths []string
	err := filepath.Walk(m.root, func(path string, info os.FileInfo, err error) error {
		if err != nil {
			return nil
		}
		if info.IsDir() {
			base := filepath.Base(path)
			if skipDirs[base] || (strings.HasPrefix(base, ".") && base != "." && path != m.root) {
				return filepath.SkipDir
			}
			return nil
		}
		rel, relErr := filepath.Rel(m.root, path)
		if relErr != nil {
			return nil
		}
		if m.recorder.Excluded(filepath.ToSlash(rel)) {
			return nil
		}
		paths = append(paths, path)
		return nil
	})
	if err != nil {
		return err
	}

	var bar *progressbar.ProgressBar
	if reportProgress {
		bar = progressbar.Default(int64(len(paths)), "initial scan")
	}

	sem := make(chan struct{}, parallelism)
	var wg sync.WaitGroup
	for _, p := range paths {
		wg.Add(1)
		sem <- struct{}{}
		go func(path string) {
			defer wg.Done()
			defer func() { <-sem }()
			if err := m.recorder.SaveSnapshotFromFile(path); err != nil {
				m.logger.Warn("monitor.initial_scan_failed", "path", path, "error", err)
			}
			if bar != nil {
				_ = bar.Add(1)
			}
		}(p)
	}
	wg.Wait()
	return nil
}
