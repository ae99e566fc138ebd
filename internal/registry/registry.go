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

// Package registry maintains the single JSON file listing every tracked
// project, guarded by an advisory file lock so the daemon and any CLI
// client can mutate it safely from separate processes.
package registry

import (
	"encoding/json"
	"os"
	"path/filepath"
	"sync"
	"time"

	"github.com/gofrs/flock"

	"github.com/mnemosyne-project/mnemosyne/internal/hashid"
	"github.com/mnemosyne-project/mnemosyne/internal/mnemerr"
)

// Project is one tracked root: a stable id derived from its path, a
// display name (the directory's basename), the absolute path, and the
// timestamp it was last opened.
type Project struct {
	ID       string    `json:"id"`
	Path     string    `json:"path"`
	Name     string    `json:"name"`
	LastOpen time.Time `json:"last_open"`
}

// Registry is the JSON-backed project list at <base>/registry.json. An
// in-process mutex serialises access by this process; the flock guards
// against a concurrent process (another daemon instance, a CLI client)
// editing the same file.
type Registry struct {
	path string
	lock *flock.Flock
	mu   sync.Mutex
}

type document struct {
	Projects []Project `json:"projects"`
}

// Open returns a Registry rooted at <base>/registry.json, creating an
// empty document if the file does not yet exist.
func Open(base string) (*Registry, error) {
	path := filepath.Join(base, "registry.json")
	r := &Registry{path: path, lock: flock.New(path + ".lock")}

	if _, err := os.Stat(path); os.IsNotExist(err) {
		if err := r.save(document{Projects: []Project{}}); err != nil {
			return nil, err
		}
	}
	return r, nil
}

func (r *Registry) load() (document, error) {
	data, err := os.ReadFile(r.path)
	if err != nil {
		if os.IsNotExist(err) {
			return document{Projects: []Project{}}, nil
		}
		return document{}, mnemerr.NewIOError(r.path, err)
	}
	var doc document
	if len(data) == 0 {
		return document{Projects: []Project{}}, nil
	}
	if err := json.Unmarshal(data, &doc); err != nil {
		return document{}, mnemerr.NewConfigError(
			"Corrupt project registry",
			"registry.json failed to parse as JSON",
			"inspect "+r.path+" or remove it to start a fresh registry",
			err,
		)
	}
	return doc, nil
}

func (r *Registry) save(doc document) error {
	data, err := json.MarshalIndent(doc, "", "  ")
	if err != nil {
		return mnemerr.NewInternalError("Cannot encode project registry", err.Error(), "", err)
	}
	tmp := r.path + ".tmp"
	if err := os.WriteFile(tmp, data, 0o600); err != nil {
		return mnemerr.NewIOError(tmp, err)
	}
	if err := os.Rename(tmp, r.path); err != nil {
		return mnemerr.NewIOError(r.path, err)
	}
	return nil
}

// withLock runs fn while holding both the in-process mutex and the
// cross-process advisory flock.
func (r *Registry) withLock(fn func() error) error {
	r.mu.Lock()
	defer r.mu.Unlock()

	locked, err := r.lock.TryLockContext(flockContext(), 50*time.Millisecond)
	if err != nil {
		return mnemerr.NewIOError(r.path, err)
	}
	if !locked {
		return mnemerr.NewIOError(r.path, errLockTimeout)
	}
	defer r.lock.Unlock()
	return fn()
}

// GetOrCreate returns the existing Project for canonicalRootPath, or
// creates and persists a new one. LastOpen is refreshed on every call.
func (r *Registry) GetOrCreate(canonicalRootPath string) (Project, error) {
	var result Project
	err := r.withLock(func() error {
		doc, err := r.load()
		if err != nil {
			return err
		}
		for i := range doc.Projects {
			if doc.Projects[i].Path == canonicalRootPath {
				doc.Projects[i].LastOpen = time.Now()
				result = doc.Projects[i]
				return r.save(doc)
			}
		}
		p := Project{
			ID:       hashid.ProjectID(canonicalRootPath),
			Path:     canonicalRootPath,
			Name:     filepath.Base(canonicalRootPath),
			LastOpen: time.Now(),
		}
		doc.Projects = append(doc.Projects, p)
		result = p
		return r.save(doc)
	})
	return result, err
}

// List returns every tracked project.
func (r *Registry) List() ([]Project, error) {
	var result []Project
	err := r.withLock(func() error {
		doc, err := r.load()
		if err != nil {
			return err
		}
		result = doc.Projects
		return nil
	})
	return result, err
}

// Get returns the project with the given id, or NotFound.
func (r *Registry) Get(id string) (Project, error) {
	var result Project
	err := r.withLock(func() error {
		doc, err := r.load()
		if err != nil {
			return err
		}
		for _, p := range doc.Projects {
			if p.ID == id {
				result = p
				return nil
			}
		}
		return mnemerr.NewNotFoundError("Project not found", "no tracked project with id "+id)
	})
	return result, err
}

// Remove deletes the project with the given id from the registry. It does
// not touch that project's on-disk vault; callers that want to forget a
// project entirely are responsible for removing <base>/<id> themselves.
func (r *Registry) Remove(id string) error {
	return r.withLock(func() error {
		doc, err := r.load()
		if err != nil {
			return err
		}
		kept := doc.Projects[:0]
		for _, p := range doc.Projects {
			if p.ID != id {
				kept = append(kept, p)
			}
		}
		doc.Projects = kept
		return r.save(doc)
	})
}
