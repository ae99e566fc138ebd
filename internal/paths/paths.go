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

// Package paths resolves the base directory Mnemosyne stores its state
// under, and the well-known file/socket paths beneath it.
package paths

import (
	"os"
	"path/filepath"
	"runtime"

	"github.com/mnemosyne-project/mnemosyne/internal/mnemerr"
)

const envHomeOverride = "MNEMOSYNE_HOME"

// BaseDir resolves the root directory for daemon state: MNEMOSYNE_HOME if
// set (must be absolute), otherwise ~/.mnemosyne.
func BaseDir() (string, error) {
	if envPath := os.Getenv(envHomeOverride); envPath != "" {
		if !filepath.IsAbs(envPath) {
			return "", mnemerr.NewConfigError(
				"Invalid MNEMOSYNE_HOME",
				"MNEMOSYNE_HOME must be an absolute path, got "+envPath,
				"Set MNEMOSYNE_HOME to an absolute directory path",
				nil,
			)
		}
		return filepath.Clean(envPath), nil
	}

	home, err := os.UserHomeDir()
	if err != nil {
		return "", mnemerr.NewInternalError(
			"Cannot determine home directory",
			"the operating system did not provide a user home directory",
			"set MNEMOSYNE_HOME to an absolute path",
			err,
		)
	}
	return filepath.Join(home, ".mnemosyne"), nil
}

// RegistryPath is <base>/registry.json.
func RegistryPath(base string) string { return filepath.Join(base, "registry.json") }

// TokenPath is <base>/.daemon-token.
func TokenPath(base string) string { return filepath.Join(base, ".daemon-token") }

// SocketPath is the Unix stream socket path, or the named pipe path on Windows.
func SocketPath(base string) string {
	if runtime.GOOS == "windows" {
		return `\\.\pipe\mnemd`
	}
	return filepath.Join(base, "mnemd.sock")
}

// ProjectDir is <base>/<project_id>.
func ProjectDir(base, projectID string) string { return filepath.Join(base, projectID) }

// DBPath is <base>/<project_id>/db.sqlite.
func DBPath(base, projectID string) string {
	return filepath.Join(ProjectDir(base, projectID), "db.sqlite")
}

// CASRoot is <base>/<project_id>/cas.
func CASRoot(base, projectID string) string {
	return filepath.Join(ProjectDir(base, projectID), "cas")
}

// EnsureBaseDir creates the base directory (and parents) if missing.
func EnsureBaseDir(base string) error {
	if err := os.MkdirAll(base, 0o750); err != nil {
		return mnemerr.NewIOError(base, err)
	}
	return nil
}
