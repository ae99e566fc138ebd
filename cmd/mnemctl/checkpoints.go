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

package main

import (
	"encoding/json"
	"fmt"
	"os"
	"path/filepath"

	flag "github.com/spf13/pflag"

	"github.com/mnemosyne-project/mnemosyne/internal/metadb"
	"github.com/mnemosyne-project/mnemosyne/internal/mnemerr"
	"github.com/mnemosyne-project/mnemosyne/internal/ui"
)

// runCheckpoints executes the 'checkpoints' subcommand: lists every
// checkpoint recorded for the project rooted at the given path.
func runCheckpoints(args []string) {
	fs := flag.NewFlagSet("checkpoints", flag.ExitOnError)
	globals := parseGlobals(fs)
	fs.Usage = func() {
		fmt.Fprintln(os.Stderr, "Usage: mnemctl checkpoints <project-path> [--json]")
		fs.PrintDefaults()
	}
	if err := fs.Parse(args); err != nil {
		os.Exit(1)
	}
	if fs.NArg() < 1 {
		fs.Usage()
		os.Exit(1)
	}

	projectPath, err := filepath.Abs(fs.Arg(0))
	if err != nil {
		mnemerr.FatalError(mnemerr.NewIOError(fs.Arg(0), err), globals.JSON)
	}

	c, err := dial()
	if err != nil {
		mnemerr.FatalError(err, globals.JSON)
	}
	defer c.close()

	raw, err := c.call("checkpoint.list", map[string]string{"project_path": projectPath})
	if err != nil {
		mnemerr.FatalError(err, globals.JSON)
	}

	var checkpoints []metadb.CheckpointSummary
	if err := json.Unmarshal(raw, &checkpoints); err != nil {
		mnemerr.FatalError(mnemerr.NewInternalError("Cannot parse daemon response", err.Error(), "", err), globals.JSON)
	}

	if globals.JSON {
		enc := json.NewEncoder(os.Stdout)
		enc.SetIndent("", "  ")
		_ = enc.Encode(checkpoints)
		return
	}

	ui.Header("Checkpoints")
	if len(checkpoints) == 0 {
		ui.Info("No checkpoints recorded.")
		return
	}
	for _, cp := range checkpoints {
		fmt.Printf("%s  %s  %s\n", cp.Timestamp.Format("2006-01-02 15:04:05"), cp.CheckpointHash[:12], cp.Message)
	}
}
