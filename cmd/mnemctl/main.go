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

// Command mnemctl is a thin diagnostic client for mnemd: it dials the
// local socket, runs the initialize handshake, and issues one IPC call
// per subcommand.
//
// Usage:
//
//	mnemctl status [--json]
//	mnemctl gc <project-path>
//	mnemctl checkpoints <project-path>
package main

import (
	"fmt"
	"os"

	flag "github.com/spf13/pflag"
)

// GlobalFlags holds flags shared by every subcommand.
type GlobalFlags struct {
	JSON bool
}

func main() {
	if len(os.Args) < 2 {
		printUsage()
		os.Exit(1)
	}

	cmd := os.Args[1]
	args := os.Args[2:]

	switch cmd {
	case "status":
		runStatus(args)
	case "gc":
		runGC(args)
	case "checkpoints":
		runCheckpoints(args)
	case "--help", "-h", "help":
		printUsage()
	default:
		fmt.Fprintf(os.Stderr, "mnemctl: unknown command %q\n", cmd)
		printUsage()
		os.Exit(1)
	}
}

func printUsage() {
	fmt.Fprintln(os.Stderr, `Usage: mnemctl <command> [options]

Commands:
  status                    Show daemon status
  gc <project-path>         Run garbage collection for a project
  checkpoints <project-path> List recorded checkpoints for a project

Global options:
  --json    Output machine-readable JSON instead of formatted text`)
}

func parseGlobals(fs *flag.FlagSet) *GlobalFlags {
	g := &GlobalFlags{}
	fs.BoolVar(&g.JSON, "json", false, "output JSON")
	return g
}
