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

// Package ui renders mnemctl's human-readable output: colored headers,
// labels, and warnings, falling back to plain text on a non-tty.
package ui

import (
	"fmt"
	"os"

	"github.com/fatih/color"
	"github.com/mattn/go-isatty"
)

func init() {
	if !isatty.IsTerminal(os.Stdout.Fd()) {
		color.NoColor = true
	}
}

var (
	headerColor = color.New(color.FgCyan, color.Bold)
	labelColor  = color.New(color.FgWhite, color.Bold)
	dimColor    = color.New(color.Faint)
	warnColor   = color.New(color.FgYellow)
	countColor  = color.New(color.FgGreen)
)

// Header prints a top-level section title.
func Header(text string) { headerColor.Println(text) }

// SubHeader prints a nested section title.
func SubHeader(text string) { fmt.Println(text) }

// Label formats a field label for use inline with its value.
func Label(text string) string { return labelColor.Sprint(text) }

// DimText formats text in a lower-emphasis color.
func DimText(text string) string { return dimColor.Sprint(text) }

// CountText formats a numeric count.
func CountText(n int) string { return countColor.Sprintf("%d", n) }

// Warning prints a warning line.
func Warning(text string) { warnColor.Println(text) }

// Warningf prints a formatted warning line.
func Warningf(format string, args ...any) { warnColor.Printf(format+"\n", args...) }

// Info prints an informational line to stdout.
func Info(text string) { fmt.Println(text) }
