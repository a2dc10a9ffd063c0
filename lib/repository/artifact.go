// Copyright 2026 The Nanodata Authors
// SPDX-License-Identifier: Apache-2.0

package repository

import (
	"io"
	"io/fs"
	"os"
	"path/filepath"
	"sort"
	"strings"
	"sync"

	"github.com/nanodata-io/nanodata/lib/cachestore"
	"github.com/nanodata-io/nanodata/lib/fingerprint"
)

// Artifact is an open handle on a materialized cache entry. While the
// handle is open, the entry is pinned and cannot be evicted. Close
// releases the pin; the handle is single-use after that.
type Artifact struct {
	entry cachestore.Entry
	dir   string

	closeOnce sync.Once
	release   func()
}

// Fingerprint returns the artifact's identity.
func (a *Artifact) Fingerprint() fingerprint.Fingerprint {
	return a.entry.Fingerprint
}

// Dir returns the artifact's payload directory. The directory and its
// contents are immutable; callers must treat it as read-only.
func (a *Artifact) Dir() string {
	return a.dir
}

// Size returns the total payload size in bytes.
func (a *Artifact) Size() int64 {
	return a.entry.Size
}

// Source returns the URI the artifact was materialized from.
func (a *Artifact) Source() string {
	return a.entry.Source
}

// Files returns the artifact's payload file names, sorted, relative to
// Dir. Internal metadata files are excluded.
func (a *Artifact) Files() ([]string, error) {
	var names []string
	err := filepath.WalkDir(a.dir, func(path string, entry fs.DirEntry, err error) error {
		if err != nil {
			return err
		}
		if entry.IsDir() {
			return nil
		}
		relative, err := filepath.Rel(a.dir, path)
		if err != nil {
			return err
		}
		if strings.HasPrefix(filepath.Base(relative), ".") {
			return nil
		}
		names = append(names, filepath.ToSlash(relative))
		return nil
	})
	if err != nil {
		return nil, err
	}
	sort.Strings(names)
	return names, nil
}

// Open opens one payload file for reading.
func (a *Artifact) Open(name string) (io.ReadCloser, error) {
	return os.Open(filepath.Join(a.dir, filepath.FromSlash(name)))
}

// Close releases the eviction pin. Safe to call more than once.
func (a *Artifact) Close() error {
	a.closeOnce.Do(a.release)
	return nil
}
