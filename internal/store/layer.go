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

// Package store implements the hash-addressed, hot/warm/cold tiered
// content store.
package store

import (
	"os"
	"path/filepath"
	"strings"
	"time"

	"github.com/klauspost/compress/zstd"

	"github.com/mnemosyne-project/mnemosyne/internal/mnemerr"
)

// levelForCompressionLevel maps the 1-21 zstd-style level used by
// TierConfig onto klauspost/compress's four encoder speed tiers. There is
// no 1:1 arbitrary-level API in this library; the bucketing below keeps
// hot fastest and cold most aggressive, matching the shape (not the exact
// ratio) of the three-layer scheme in the source this was ported from.
func levelForCompressionLevel(n int) zstd.EncoderLevel {
	switch {
	case n <= 1:
		return zstd.SpeedFastest
	case n <= 6:
		return zstd.SpeedDefault
	case n <= 15:
		return zstd.SpeedBetterCompression
	default:
		return zstd.SpeedBestCompression
	}
}

// layer is one hot/warm/cold tier: a directory of zstd-compressed blobs
// named by content hash.
type layer struct {
	root    string
	encoder *zstd.Encoder
	decoder *zstd.Decoder
}

func newLayer(root string, level int) (*layer, error) {
	if err := os.MkdirAll(root, 0o750); err != nil {
		return nil, mnemerr.NewIOError(root, err)
	}
	enc, err := zstd.NewWriter(nil, zstd.WithEncoderLevel(levelForCompressionLevel(level)))
	if err != nil {
		return nil, mnemerr.NewInternalError("Cannot initialise compressor", err.Error(), "", err)
	}
	dec, err := zstd.NewReader(nil)
	if err != nil {
		return nil, mnemerr.NewInternalError("Cannot initialise decompressor", err.Error(), "", err)
	}
	return &layer{root: root, encoder: enc, decoder: dec}, nil
}

func (l *layer) path(hash string) string { return filepath.Join(l.root, hash) }

// write compresses content and writes it atomically: temp file then
// rename, so a concurrent reader never observes a partial blob.
func (l *layer) write(hash string, content []byte) error {
	compressed := l.encoder.EncodeAll(content, nil)

	tmp, err := os.CreateTemp(l.root, hash+".tmp-*")
	if err != nil {
		return mnemerr.NewIOError(l.root, err)
	}
	tmpPath := tmp.Name()
	if _, err := tmp.Write(compressed); err != nil {
		tmp.Close()
		os.Remove(tmpPath)
		return mnemerr.NewIOError(tmpPath, err)
	}
	if err := tmp.Close(); err != nil {
		os.Remove(tmpPath)
		return mnemerr.NewIOError(tmpPath, err)
	}
	if err := os.Rename(tmpPath, l.path(hash)); err != nil {
		os.Remove(tmpPath)
		return mnemerr.NewIOError(l.path(hash), err)
	}
	return nil
}

// read returns (content, true, nil) on hit, (nil, false, nil) on miss.
// A blob that fails to decompress is returned verbatim, to tolerate
// legacy uncompressed entries written by an earlier store version.
func (l *layer) read(hash string) ([]byte, bool, error) {
	data, err := os.ReadFile(l.path(hash))
	if err != nil {
		if os.IsNotExist(err) {
			return nil, false, nil
		}
		return nil, false, mnemerr.NewIOError(l.path(hash), err)
	}
	decompressed, err := l.decoder.DecodeAll(data, nil)
	if err != nil {
		return data, true, nil
	}
	return decompressed, true, nil
}

func (l *layer) delete(hash string) error {
	err := os.Remove(l.path(hash))
	if err != nil && !os.IsNotExist(err) {
		return mnemerr.NewIOError(l.path(hash), err)
	}
	return nil
}

func (l *layer) exists(hash string) bool {
	_, err := os.Stat(l.path(hash))
	return err == nil
}

func (l *layer) size(hash string) (int64, bool, error) {
	info, err := os.Stat(l.path(hash))
	if err != nil {
		if os.IsNotExist(err) {
			return 0, false, nil
		}
		return 0, false, mnemerr.NewIOError(l.path(hash), err)
	}
	return info.Size(), true, nil
}

// aged is a hash paired with how long ago its blob was last modified.
type aged struct {
	hash string
	age  time.Duration
}

// hashes lists every blob hash currently stored in the layer, skipping
// in-flight temp files.
func (l *layer) hashes() ([]string, error) {
	entries, err := os.ReadDir(l.root)
	if err != nil {
		if os.IsNotExist(err) {
			return nil, nil
		}
		return nil, mnemerr.NewIOError(l.root, err)
	}
	results := make([]string, 0, len(entries))
	for _, e := range entries {
		name := e.Name()
		if strings.Contains(name, ".tmp-") {
			continue
		}
		results = append(results, name)
	}
	return results, nil
}

// diskUsage sums the on-disk size of every blob in the layer, skipping
// in-flight temp files.
func (l *layer) diskUsage() (int64, error) {
	entries, err := os.ReadDir(l.root)
	if err != nil {
		if os.IsNotExist(err) {
			return 0, nil
		}
		return 0, mnemerr.NewIOError(l.root, err)
	}
	var total int64
	for _, e := range entries {
		if strings.Contains(e.Name(), ".tmp-") {
			continue
		}
		info, err := e.Info()
		if err != nil {
			continue
		}
		total += info.Size()
	}
	return total, nil
}

// scan lists every blob in the layer with its age, skipping any
// in-flight temp files from a concurrent write.
func (l *layer) scan() ([]aged, error) {
	entries, err := os.ReadDir(l.root)
	if err != nil {
		if os.IsNotExist(err) {
			return nil, nil
		}
		return nil, mnemerr.NewIOError(l.root, err)
	}
	now := time.Now()
	results := make([]aged, 0, len(entries))
	for _, e := range entries {
		name := e.Name()
		if strings.Contains(name, ".tmp-") {
			continue
		}
		info, err := e.Info()
		if err != nil {
			continue
		}
		results = append(results, aged{hash: name, age: now.Sub(info.ModTime())})
	}
	return results, nil
}
