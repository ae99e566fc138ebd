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

package symbols

// Diff compares the symbols of two consecutive parses of the same file
// and produces the deltas between them. A symbol present in both with a
// changed StructuralHash is Modified; present only in before is a
// candidate for Deleted or, if an unmatched after-symbol shares its
// StructuralHash, Renamed; present only in after is Added.
func Diff(before, after []Symbol) []Delta {
	beforeByName := make(map[string]Symbol, len(before))
	for _, s := range before {
		beforeByName[s.Name] = s
	}
	afterByName := make(map[string]Symbol, len(after))
	for _, s := range after {
		afterByName[s.Name] = s
	}

	var deltas []Delta

	unmatchedBefore := make([]Symbol, 0)
	for _, b := range before {
		if a, ok := afterByName[b.Name]; ok {
			if a.StructuralHash != b.StructuralHash {
				deltas = append(deltas, Delta{
					SymbolName:     b.Name,
					Kind:           Modified,
					StructuralHash: a.StructuralHash,
				})
			}
			continue
		}
		unmatchedBefore = append(unmatchedBefore, b)
	}

	unmatchedAfter := make([]Symbol, 0)
	for _, a := range after {
		if _, ok := beforeByName[a.Name]; !ok {
			unmatchedAfter = append(unmatchedAfter, a)
		}
	}

	consumedAfter := make(map[int]bool)
	for _, b := range unmatchedBefore {
		renamedTo := -1
		for i, a := range unmatchedAfter {
			if consumedAfter[i] {
				continue
			}
			if a.StructuralHash == b.StructuralHash && a.Kind == b.Kind {
				renamedTo = i
				break
			}
		}
		if renamedTo >= 0 {
			consumedAfter[renamedTo] = true
			deltas = append(deltas, Delta{
				SymbolName:     b.Name,
				Kind:           Renamed,
				NewName:        unmatchedAfter[renamedTo].Name,
				StructuralHash: unmatchedAfter[renamedTo].StructuralHash,
			})
			continue
		}
		deltas = append(deltas, Delta{
			SymbolName:     b.Name,
			Kind:           Deleted,
			StructuralHash: b.StructuralHash,
		})
	}

	for i, a := range unmatchedAfter {
		if consumedAfter[i] {
			continue
		}
		deltas = append(deltas, Delta{
			SymbolName:     a.Name,
			Kind:           Added,
			StructuralHash: a.StructuralHash,
		})
	}

	return deltas
}
