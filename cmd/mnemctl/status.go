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

	flag "github.com/spf13/pflag"

	"github.com/mnemosyne-project/mnemosyne/internal/daemon"
	"github.com/mnemosyne-project/mnemosyne/internal/mnemerr"
	"github.com/mnemosyne-project/mnemosyne/internal/ui"
)

// runStatus executes the 'status' subcommand: connect to mnemd, call
// daemon.getStatus, and print the result.
func runStatus(args []string) {
	fs := flag.NewFlagSet("status", flag.ExitOnError)
	globals := parseGlobals(fs)
	fs.Usage = func() {
		fmt.Fprintln(os.Stderr, "Usage: mnemctl status [--json]")
		fs.PrintDefaults()
	}
	if err := fs.Parse(args); err != nil {
		os.Exit(1)
	}

	c, err := dial()
	if err != nil {
		mnemerr.FatalError(err, globals.JSON)
	}
	defer c.close()

	raw, err := c.call("daemon.getStatus", struct{}{})
	if err != nil {
		mnemerr.FatalError(err, globals.JSON)
	}

	var status daemon.StatusResponse
	if err := json.Unmarshal(raw, &status); err != nil {
		mnemerr.FatalError(mnemerr.NewInternalError("Cannot parse daemon response", err.Error(), "", err), globals.JSON)
	}

	if globals.JSON {
		enc := json.NewEncoder(os.Stdout)
		enc.SetIndent("", "  ")
		_ = enc.Encode(status)
		return
	}
	printStatus(status)
}

func printStatus(s daemon.StatusResponse) {
	ui.Header("Mnemosyne Daemon Status")
	fmt.Printf("%s %s\n", ui.Label("Version:"), s.Version)
	fmt.Printf("%s %ds\n", ui.Label("Uptime:"), s.UptimeSeconds)
	fmt.Printf("%s %s\n", ui.Label("Watched projects:"), ui.CountText(s.WatchedProjects))
	fmt.Println()
	ui.SubHeader("History:")
	fmt.Printf("  Snapshots:   %s\n", ui.CountText(s.TotalSnapshots))
	fmt.Printf("  Symbols:     %s\n", ui.CountText(s.TotalSymbols))
	fmt.Printf("  Size:        %s\n", ui.DimText(fmt.Sprintf("%d bytes", s.TotalSizeBytes)))
}
