// Copyright 2026 The Nanodata Authors
// SPDX-License-Identifier: Apache-2.0

package repository

import (
	"fmt"
	"os"
	"path/filepath"
	"regexp"
	"sort"
	"strings"
	"sync"
	"time"

	"github.com/nanodata-io/nanodata/lib/codec"
	"github.com/nanodata-io/nanodata/lib/fingerprint"
)

// MaxAliasLength bounds alias names. Long enough for hierarchical
// names like "team/mnist/v2/latest".
const MaxAliasLength = 256

// aliasNamePattern restricts aliases to names that are unambiguous in
// CLI arguments and safe as path fragments. Segments separated by "/"
// allow hierarchical naming.
var aliasNamePattern = regexp.MustCompile(`^[a-zA-Z0-9_][a-zA-Z0-9._-]*(/[a-zA-Z0-9_][a-zA-Z0-9._-]*)*$`)

// AliasRecord is one alias entry: a mutable name pointing at an
// immutable fingerprint. Stored as a CBOR file per alias.
type AliasRecord struct {
	Name      string                  `cbor:"name"`
	Target    fingerprint.Fingerprint `cbor:"target"`
	CreatedAt time.Time               `cbor:"created_at"`
	UpdatedAt time.Time               `cbor:"updated_at"`
}

// AliasStore manages the name-to-fingerprint registry: an in-memory
// map backed by per-alias CBOR files. Safe for concurrent use.
//
// On-disk layout is <root>/<name>.cbor, with "/" in hierarchical
// names mapping to subdirectories. The name inside each record is
// authoritative; the map is rebuilt from a directory scan at open.
type AliasStore struct {
	root    string
	mu      sync.RWMutex
	entries map[string]AliasRecord
}

// OpenAliasStore opens the registry rooted at the given directory,
// loading any existing alias files.
func OpenAliasStore(root string) (*AliasStore, error) {
	if err := os.MkdirAll(root, 0o755); err != nil {
		return nil, fmt.Errorf("creating alias directory %s: %w", root, err)
	}
	store := &AliasStore{
		root:    root,
		entries: make(map[string]AliasRecord),
	}
	if err := store.scanAll(); err != nil {
		return nil, fmt.Errorf("scanning aliases: %w", err)
	}
	return store, nil
}

// ValidateAliasName reports whether name is usable as an alias. A
// 64-character hex string is rejected even when well-formed: it would
// be ambiguous with a literal fingerprint in CLI arguments.
func ValidateAliasName(name string) error {
	if name == "" {
		return fmt.Errorf("alias name is required")
	}
	if len(name) > MaxAliasLength {
		return fmt.Errorf("alias name is %d bytes, maximum is %d", len(name), MaxAliasLength)
	}
	if !aliasNamePattern.MatchString(name) {
		return fmt.Errorf("alias name %q contains unsupported characters", name)
	}
	if _, err := fingerprint.Parse(name); err == nil {
		return fmt.Errorf("alias name %q is indistinguishable from a fingerprint", name)
	}
	return nil
}

// Get returns the record for an alias.
func (s *AliasStore) Get(name string) (AliasRecord, bool) {
	s.mu.RLock()
	defer s.mu.RUnlock()
	record, exists := s.entries[name]
	return record, exists
}

// Set creates or repoints an alias. Last writer wins; aliases are
// mutable by design, unlike the fingerprints they point at.
func (s *AliasStore) Set(name string, target fingerprint.Fingerprint, now time.Time) error {
	if err := ValidateAliasName(name); err != nil {
		return err
	}

	s.mu.Lock()
	defer s.mu.Unlock()

	record := AliasRecord{
		Name:      name,
		Target:    target,
		CreatedAt: now,
		UpdatedAt: now,
	}
	if existing, exists := s.entries[name]; exists {
		record.CreatedAt = existing.CreatedAt
	}

	if err := s.writeFile(record); err != nil {
		return err
	}
	s.entries[name] = record
	return nil
}

// Delete removes an alias. The artifact it pointed at is untouched.
func (s *AliasStore) Delete(name string) error {
	s.mu.Lock()
	defer s.mu.Unlock()

	if _, exists := s.entries[name]; !exists {
		return fmt.Errorf("alias %q not found", name)
	}
	if err := os.Remove(s.aliasPath(name)); err != nil && !os.IsNotExist(err) {
		return fmt.Errorf("removing alias file for %q: %w", name, err)
	}
	delete(s.entries, name)
	return nil
}

// List returns all aliases sorted by name.
func (s *AliasStore) List() []AliasRecord {
	s.mu.RLock()
	defer s.mu.RUnlock()

	records := make([]AliasRecord, 0, len(s.entries))
	for _, record := range s.entries {
		records = append(records, record)
	}
	sort.Slice(records, func(i, j int) bool {
		return records[i].Name < records[j].Name
	})
	return records
}

// Targets returns the set of fingerprints any alias points at. The
// eviction path could use this to protect aliased artifacts; today it
// serves `data list`.
func (s *AliasStore) Targets() map[fingerprint.Fingerprint][]string {
	s.mu.RLock()
	defer s.mu.RUnlock()

	result := make(map[fingerprint.Fingerprint][]string, len(s.entries))
	for _, record := range s.entries {
		result[record.Target] = append(result[record.Target], record.Name)
	}
	return result
}

func (s *AliasStore) aliasPath(name string) string {
	return filepath.Join(s.root, filepath.FromSlash(name)+".cbor")
}

func (s *AliasStore) scanAll() error {
	return filepath.WalkDir(s.root, func(path string, entry os.DirEntry, err error) error {
		if err != nil {
			return err
		}
		name := entry.Name()
		if entry.IsDir() || !strings.HasSuffix(name, ".cbor") || strings.HasPrefix(name, ".") {
			return nil
		}

		data, err := os.ReadFile(path)
		if err != nil {
			return fmt.Errorf("reading alias file %s: %w", path, err)
		}
		var record AliasRecord
		if err := codec.Unmarshal(data, &record); err != nil || record.Name == "" {
			// Corrupt or half-written file; skip rather than fail the
			// whole registry.
			return nil
		}
		s.entries[record.Name] = record
		return nil
	})
}

// writeFile atomically writes an alias record: temp file then rename.
func (s *AliasStore) writeFile(record AliasRecord) error {
	data, err := codec.Marshal(record)
	if err != nil {
		return fmt.Errorf("encoding alias %q: %w", record.Name, err)
	}

	finalPath := s.aliasPath(record.Name)
	if err := os.MkdirAll(filepath.Dir(finalPath), 0o755); err != nil {
		return fmt.Errorf("creating alias directory: %w", err)
	}

	// The dot prefix keeps half-written temp files out of scanAll.
	tmpFile, err := os.CreateTemp(s.root, ".alias-*.cbor")
	if err != nil {
		return fmt.Errorf("creating temp alias file: %w", err)
	}
	tmpPath := tmpFile.Name()

	success := false
	defer func() {
		if !success {
			os.Remove(tmpPath)
		}
	}()

	if _, err := tmpFile.Write(data); err != nil {
		tmpFile.Close()
		return fmt.Errorf("writing alias data: %w", err)
	}
	if err := tmpFile.Close(); err != nil {
		return fmt.Errorf("closing temp alias file: %w", err)
	}
	if err := os.Rename(tmpPath, finalPath); err != nil {
		return fmt.Errorf("renaming alias file to %s: %w", finalPath, err)
	}
	success = true
	return nil
}
