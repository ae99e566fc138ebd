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

package store

import (
	"log/slog"
	"os"
	"path/filepath"
	"time"

	"github.com/mnemosyne-project/mnemosyne/internal/mnemerr"
)

// TierConfig tunes the age thresholds and cold compression level of a
// TieredStore. Hot always compresses at the fastest level and warm at a
// middling level; only cold's level is configurable, matching the
// original tuning knobs.
type TierConfig struct {
	HotWindowHours       int
	WarmWindowDays       int
	ColdCompressionLevel int
}

// DefaultTierConfig returns hot_window_hours=1, warm_window_days=3,
// cold_compression_level=15.
func DefaultTierConfig() TierConfig {
	return TierConfig{HotWindowHours: 1, WarmWindowDays: 3, ColdCompressionLevel: 15}
}

const (
	hotLevel  = 1
	warmLevel = 3
)

// TieredStore is the hash-addressed content store: writes always land in
// hot; reads waterfall hot -> warm -> cold; migrate() ages items down the
// tiers on a schedule driven by TierConfig.
type TieredStore struct {
	config TierConfig
	hot    *layer
	warm   *layer
	cold   *layer
	logger *slog.Logger
}

// Open creates (if absent) cas/{hot,warm,cold} under baseDir and returns a
// store ready for use. A nil logger falls back to slog.Default().
func Open(baseDir string, config TierConfig, logger *slog.Logger) (*TieredStore, error) {
	if logger == nil {
		logger = slog.Default()
	}

	casRoot := filepath.Join(baseDir, "cas")
	if err := os.MkdirAll(casRoot, 0o750); err != nil {
		return nil, mnemerr.NewIOError(casRoot, err)
	}

	hot, err := newLayer(filepath.Join(casRoot, "hot"), hotLevel)
	if err != nil {
		return nil, err
	}
	warm, err := newLayer(filepath.Join(casRoot, "warm"), warmLevel)
	if err != nil {
		return nil, err
	}
	cold, err := newLayer(filepath.Join(casRoot, "cold"), config.ColdCompressionLevel)
	if err != nil {
		return nil, err
	}

	return &TieredStore{config: config, hot: hot, warm: warm, cold: cold, logger: logger}, nil
}

// Write always lands the blob in the hot layer. Idempotent: writing the
// same hash twice with the same bytes leaves the store in the same state.
func (s *TieredStore) Write(hash string, content []byte) error {
	return s.hot.write(hash, content)
}

// Read performs the hot -> warm -> cold waterfall lookup, returning
// NotFound if the hash is in none of the three tiers.
func (s *TieredStore) Read(hash string) ([]byte, error) {
	if data, ok, err := s.hot.read(hash); err != nil {
		return nil, err
	} else if ok {
		return data, nil
	}
	if data, ok, err := s.warm.read(hash); err != nil {
		return nil, err
	} else if ok {
		return data, nil
	}
	if data, ok, err := s.cold.read(hash); err != nil {
		return nil, err
	} else if ok {
		return data, nil
	}
	return nil, mnemerr.NewNotFoundError("Blob not found", "content hash "+hash+" is not present in any tier")
}

// Exists reports whether hash is present in any tier.
func (s *TieredStore) Exists(hash string) bool {
	return s.hot.exists(hash) || s.warm.exists(hash) || s.cold.exists(hash)
}

// Size returns the compressed on-disk size of hash in whichever tier
// holds it, or 0 if absent from all three.
func (s *TieredStore) Size(hash string) (int64, error) {
	if n, ok, err := s.hot.size(hash); err != nil {
		return 0, err
	} else if ok {
		return n, nil
	}
	if n, ok, err := s.warm.size(hash); err != nil {
		return 0, err
	} else if ok {
		return n, nil
	}
	if n, ok, err := s.cold.size(hash); err != nil {
		return 0, err
	} else if ok {
		return n, nil
	}
	return 0, nil
}

// Delete removes hash from all three tiers. Silent if absent from all.
func (s *TieredStore) Delete(hash string) error {
	if err := s.hot.delete(hash); err != nil {
		return err
	}
	if err := s.warm.delete(hash); err != nil {
		return err
	}
	return s.cold.delete(hash)
}

// Migrate ages hot blobs older than HotWindowHours into warm, then warm
// blobs older than WarmWindowDays into cold. Each move writes to the
// destination tier before deleting from the source, so a crash mid-move
// leaves the blob readable (duplicated, never lost). A failure on any
// single entry is logged and skipped; only a failure to list a tier
// (scan itself) aborts the sweep. Returns the count of blobs moved
// across both passes.
func (s *TieredStore) Migrate() (int, error) {
	moved := 0

	hotEntries, err := s.hot.scan()
	if err != nil {
		return moved, err
	}
	hotThreshold := time.Duration(s.config.HotWindowHours) * time.Hour
	for _, e := range hotEntries {
		if e.age <= hotThreshold {
			continue
		}
		content, ok, err := s.hot.read(e.hash)
		if err != nil {
			s.logger.Warn("store.migrate_read_failed", "tier", "hot", "hash", e.hash, "error", err)
			continue
		}
		if !ok {
			continue
		}
		if err := s.warm.write(e.hash, content); err != nil {
			s.logger.Warn("store.migrate_write_failed", "tier", "warm", "hash", e.hash, "error", err)
			continue
		}
		if err := s.hot.delete(e.hash); err != nil {
			s.logger.Warn("store.migrate_delete_failed", "tier", "hot", "hash", e.hash, "error", err)
			continue
		}
		moved++
	}

	warmEntries, err := s.warm.scan()
	if err != nil {
		return moved, err
	}
	warmThreshold := time.Duration(s.config.WarmWindowDays) * 24 * time.Hour
	for _, e := range warmEntries {
		if e.age <= warmThreshold {
			continue
		}
		content, ok, err := s.warm.read(e.hash)
		if err != nil {
			s.logger.Warn("store.migrate_read_failed", "tier", "warm", "hash", e.hash, "error", err)
			continue
		}
		if !ok {
			continue
		}
		if err := s.cold.write(e.hash, content); err != nil {
			s.logger.Warn("store.migrate_write_failed", "tier", "cold", "hash", e.hash, "error", err)
			continue
		}
		if err := s.warm.delete(e.hash); err != nil {
			s.logger.Warn("store.migrate_delete_failed", "tier", "warm", "hash", e.hash, "error", err)
			continue
		}
		moved++
	}

	return moved, nil
}

// GCUnreachable deletes every blob, in any tier, whose hash is absent
// from reachable. Returns the count of blobs removed.
func (s *TieredStore) GCUnreachable(reachable map[string]bool) (int, error) {
	removed := 0
	for _, l := range []*layer{s.hot, s.warm, s.cold} {
		hashes, err := l.hashes()
		if err != nil {
			return removed, err
		}
		for _, h := range hashes {
			if reachable[h] {
				continue
			}
			if err := l.delete(h); err != nil {
				return removed, err
			}
			removed++
		}
	}
	return removed, nil
}

// TotalSize sums the on-disk size of every blob across all three tiers.
func (s *TieredStore) TotalSize() (int64, error) {
	var total int64
	for _, l := range []*layer{s.hot, s.warm, s.cold} {
		n, err := l.diskUsage()
		if err != nil {
			return total, err
		}
		total += n
	}
	return total, nil
}
