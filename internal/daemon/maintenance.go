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

package daemon

import (
	"context"
	"time"

	"github.com/mnemosyne-project/mnemosyne/internal/power"
)

// maintenanceInterval is how often the background loop sweeps every
// open repository for tier migration and, power permitting, GC.
const maintenanceInterval = time.Hour

// RunMaintenanceLoop ticks every maintenanceInterval until ctx is
// cancelled, running migration (always) and GC (only when the power
// profile allows it) across every currently open repository. Per
// repository errors are logged and swallowed: one misbehaving project
// must never stall maintenance for the rest.
func (d *Daemon) RunMaintenanceLoop(ctx context.Context) {
	ticker := time.NewTicker(maintenanceInterval)
	defer ticker.Stop()

	for {
		select {
		case <-ctx.Done():
			return
		case <-ticker.C:
			d.runMaintenanceSweep()
		}
	}
}

func (d *Daemon) runMaintenanceSweep() {
	d.mu.Lock()
	entries := make([]*repoEntry, 0, len(d.repos))
	ids := make([]string, 0, len(d.repos))
	for id, e := range d.repos {
		entries = append(entries, e)
		ids = append(ids, id)
	}
	d.mu.Unlock()

	profile := power.Detect()

	for i, e := range entries {
		moved, err := e.repo.RunMigration()
		if err != nil {
			d.logger.Warn("daemon.migration_failed", "project_id", ids[i], "error", err)
		} else {
			d.migrationRuns.Inc()
			if moved > 0 {
				d.logger.Info("daemon.migration_completed", "project_id", ids[i], "blobs_moved", moved)
			}
		}

		if !profile.AllowGC {
			continue
		}
		pruned, err := e.repo.RunGC()
		if err != nil {
			d.logger.Warn("daemon.gc_failed", "project_id", ids[i], "error", err)
			continue
		}
		d.gcRuns.Inc()
		if pruned > 0 {
			d.logger.Info("daemon.gc_completed", "project_id", ids[i], "blobs_pruned", pruned)
		}
	}
}
