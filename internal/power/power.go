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

// Package power detects AC vs battery power state and derives an
// adaptive profile that throttles compression, debounce, GC, and scan
// parallelism accordingly.
package power

import (
	"os"
	"os/exec"
	"runtime"
	"strconv"
	"strings"
	"time"
)

// Source abstracts battery detection so Profile can be computed against a
// stub in tests instead of shelling out or reading sysfs.
type Source interface {
	OnBattery() bool
	BatteryLevel() (level int, ok bool)
}

// Profile is the set of knobs the daemon adapts to the current power
// state.
type Profile struct {
	CompressionLevel int
	Debounce         time.Duration
	AllowGC          bool
	ScanParallelism  int
}

const criticalBatteryPercent = 20

// Detect builds a Profile from the live system power source.
func Detect() Profile {
	return ProfileFor(systemSource{})
}

// ProfileFor derives a Profile from an arbitrary Source, used directly by
// tests that stub battery state.
func ProfileFor(src Source) Profile {
	if !src.OnBattery() {
		return Profile{
			CompressionLevel: 6,
			Debounce:         500 * time.Millisecond,
			AllowGC:          true,
			ScanParallelism:  numCPU(),
		}
	}

	level, ok := src.BatteryLevel()
	critical := ok && level < criticalBatteryPercent
	if critical {
		return Profile{
			CompressionLevel: 1,
			Debounce:         5000 * time.Millisecond,
			AllowGC:          false,
			ScanParallelism:  1,
		}
	}
	return Profile{
		CompressionLevel: 3,
		Debounce:         2000 * time.Millisecond,
		AllowGC:          false,
		ScanParallelism:  2,
	}
}

func numCPU() int {
	n := runtime.GOMAXPROCS(0)
	if n < 1 {
		return 4
	}
	return n
}

// systemSource queries the real operating system: pmset on macOS, sysfs
// on Linux, and reports "on AC" (no battery) everywhere else.
type systemSource struct{}

func (systemSource) OnBattery() bool {
	if out, err := exec.Command("pmset", "-g", "batt").Output(); err == nil {
		return strings.Contains(string(out), "Battery Power")
	}

	if status, err := os.ReadFile("/sys/class/power_supply/BAT0/status"); err == nil {
		return strings.TrimSpace(string(status)) == "Discharging"
	}
	return false
}

func (systemSource) BatteryLevel() (int, bool) {
	if out, err := exec.Command("pmset", "-g", "batt").Output(); err == nil {
		for _, word := range strings.Fields(string(out)) {
			if strings.HasSuffix(word, "%;") || strings.HasSuffix(word, "%") {
				numStr := strings.TrimRight(word, "%;")
				if level, err := strconv.Atoi(numStr); err == nil {
					return level, true
				}
			}
		}
	}

	if content, err := os.ReadFile("/sys/class/power_supply/BAT0/capacity"); err == nil {
		if level, err := strconv.Atoi(strings.TrimSpace(string(content))); err == nil {
			return level, true
		}
	}
	return 0, false
}
