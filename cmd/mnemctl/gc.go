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

	"github.com/mnemosyne-project/mnemosyne/internal/mnemerr"
	"github.com/mnemosyne-project/mnemosyne/internal/ui"
)

// runGC executes the 'gc' subcommand against the project rooted at the
// given path.
func runGC(args []string) {
	fs := flag.NewFlagSet("gc", flag.ExitOnError)
	globals := parseGlobals(fs)
	fs.Usage = func() {
		fmt.Fprintln(os.Stderr, "Usage: mnemctl gc <project-path> [--json]")
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

	raw, err := c.call("maintenance.gc", map[string]string{"project_path": projectPath})
	if err != nil {
		mnemerr.FatalError(err, globals.JSON)
	}

	var result struct {
		Pruned int `json:"pruned"`
	}
	if err := json.Unmarshal(raw, &result); err != nil {
		mnemerr.FatalError(mnemerr.NewInternalError("Cannot parse daemon response", err.Error(), "", err), globals.JSON)
	}

	if globals.JSON {
		enc := json.NewEncoder(os.Stdout)
		_ = enc.Encode(result)
		return
	}
	ui.Info(fmt.Sprintf("Pruned %s unreachable blob(s).", ui.CountText(result.Pruned)))
}
