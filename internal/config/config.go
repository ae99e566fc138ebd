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

// Package config loads and saves the daemon-wide and per-repository YAML
// configuration files, applying environment overrides after the file is
// parsed.
package config

import (
	"fmt"
	"os"
	"path/filepath"
	"strconv"

	"gopkg.in/yaml.v3"

	"github.com/mnemosyne-project/mnemosyne/internal/mnemerr"
)

const configVersion = "1"

// Daemon is the contents of <base>/daemon.yaml. Every field has a
// hardcoded default; the file itself is optional.
type Daemon struct {
	Version     string `yaml:"version"`
	LogJSON     bool   `yaml:"log_json"`
	MetricsAddr string `yaml:"metrics_addr,omitempty"`
}

// DefaultDaemon returns the zero-config daemon settings.
func DefaultDaemon() *Daemon {
	return &Daemon{
		Version:     configVersion,
		LogJSON:     os.Getenv("MNEMOSYNE_LOG_JSON") == "1",
		MetricsAddr: "",
	}
}

// LoadDaemon reads <base>/daemon.yaml if present, falling back to defaults
// when the file does not exist. Env overrides apply either way.
func LoadDaemon(base string) (*Daemon, error) {
	cfg := DefaultDaemon()
	path := filepath.Join(base, "daemon.yaml")

	data, err := os.ReadFile(path)
	if err != nil {
		if os.IsNotExist(err) {
			cfg.applyEnvOverrides()
			return cfg, nil
		}
		return nil, mnemerr.NewIOError(path, err)
	}

	if err := yaml.Unmarshal(data, cfg); err != nil {
		return nil, mnemerr.NewConfigError(
			"Invalid daemon configuration",
			fmt.Sprintf("YAML parsing failed for %s", path),
			"fix the syntax error or delete the file to regenerate defaults",
			err,
		)
	}
	if cfg.Version != configVersion && cfg.Version != "" {
		return nil, mnemerr.NewConfigError(
			"Unsupported daemon configuration version",
			fmt.Sprintf("config version %q is not supported (expected %q)", cfg.Version, configVersion),
			"regenerate daemon.yaml",
			nil,
		)
	}
	cfg.Version = configVersion
	cfg.applyEnvOverrides()
	return cfg, nil
}

func (c *Daemon) applyEnvOverrides() {
	if v := os.Getenv("MNEMOSYNE_LOG_JSON"); v != "" {
		c.LogJSON = v == "1"
	}
	if v := os.Getenv("MNEMOSYNE_METRICS_ADDR"); v != "" {
		c.MetricsAddr = v
	}
}

// SaveDaemon writes cfg to <base>/daemon.yaml.
func SaveDaemon(base string, cfg *Daemon) error {
	data, err := yaml.Marshal(cfg)
	if err != nil {
		return mnemerr.NewInternalError(
			"Cannot encode daemon configuration",
			"YAML marshaling failed unexpectedly",
			"",
			err,
		)
	}
	path := filepath.Join(base, "daemon.yaml")
	if err := os.WriteFile(path, data, 0o600); err != nil {
		return mnemerr.NewIOError(path, err)
	}
	return nil
}

// Repository is the per-project configuration, resolved at repository
// open time: defaults, then <project_vault>/config.yaml if present, then
// environment variables.
type Repository struct {
	Version              string `yaml:"version"`
	HotWindowHours        int    `yaml:"hot_window_hours"`
	WarmWindowDays        int    `yaml:"warm_window_days"`
	ColdCompressionLevel  int    `yaml:"cold_compression_level"`
	MaxFileSizeBytes      int64  `yaml:"max_file_size_bytes"`
	RespectGitignore      bool   `yaml:"respect_gitignore"`
	RespectMnemignore     bool   `yaml:"respect_mnemignore"`
	DebounceMillis        int    `yaml:"debounce_millis,omitempty"`
}

// DefaultRepository mirrors the TierConfig defaults from the tiered store
// design: hot_window_hours=1, warm_window_days=3, cold_compression_level=15.
func DefaultRepository() *Repository {
	return &Repository{
		Version:              configVersion,
		HotWindowHours:       1,
		WarmWindowDays:       3,
		ColdCompressionLevel: 15,
		MaxFileSizeBytes:     10 * 1024 * 1024,
		RespectGitignore:     true,
		RespectMnemignore:    true,
	}
}

// LoadRepository reads <projectVault>/config.yaml if present, falling back
// to defaults. Env vars MNEMOSYNE_MAX_FILE_SIZE and MNEMOSYNE_COLD_LEVEL
// override the resolved values.
func LoadRepository(projectVault string) (*Repository, error) {
	cfg := DefaultRepository()
	path := filepath.Join(projectVault, "config.yaml")

	data, err := os.ReadFile(path)
	if err != nil {
		if os.IsNotExist(err) {
			cfg.applyEnvOverrides()
			return cfg, nil
		}
		return nil, mnemerr.NewIOError(path, err)
	}

	if err := yaml.Unmarshal(data, cfg); err != nil {
		return nil, mnemerr.NewConfigError(
			"Invalid repository configuration",
			fmt.Sprintf("YAML parsing failed for %s", path),
			"fix the syntax error or delete the file to regenerate defaults",
			err,
		)
	}
	cfg.Version = configVersion
	cfg.applyEnvOverrides()
	return cfg, nil
}

func (c *Repository) applyEnvOverrides() {
	if v := os.Getenv("MNEMOSYNE_MAX_FILE_SIZE"); v != "" {
		if n, err := strconv.ParseInt(v, 10, 64); err == nil {
			c.MaxFileSizeBytes = n
		}
	}
	if v := os.Getenv("MNEMOSYNE_COLD_LEVEL"); v != "" {
		if n, err := strconv.Atoi(v); err == nil {
			c.ColdCompressionLevel = n
		}
	}
}

// SaveRepository writes cfg to <projectVault>/config.yaml.
func SaveRepository(projectVault string, cfg *Repository) error {
	data, err := yaml.Marshal(cfg)
	if err != nil {
		return mnemerr.NewInternalError(
			"Cannot encode repository configuration",
			"YAML marshaling failed unexpectedly",
			"",
			err,
		)
	}
	if err := os.MkdirAll(projectVault, 0o750); err != nil {
		return mnemerr.NewIOError(projectVault, err)
	}
	path := filepath.Join(projectVault, "config.yaml")
	if err := os.WriteFile(path, data, 0o600); err != nil {
		return mnemerr.NewIOError(path, err)
	}
	return nil
}
