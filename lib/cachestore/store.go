// Copyright 2026 The Nanodata Authors
// SPDX-License-Identifier: Apache-2.0

package cachestore

import (
	"context"
	"fmt"
	"io/fs"
	"log/slog"
	"os"
	"path/filepath"
	"sync"
	"time"

	"github.com/nanodata-io/nanodata/lib/dataerr"
	"github.com/nanodata-io/nanodata/lib/fingerprint"
	"github.com/nanodata-io/nanodata/lib/sqlitepool"
)

// Directory names within the cache root.
const (
	entriesDir = "entries"
	tmpDir     = "tmp"
	indexFile  = "index.db"
)

// Status is the lifecycle state of a cache entry.
type Status string

const (
	// StatusPending marks an entry whose materialization is in flight
	// (or was interrupted). Never a valid cache hit.
	StatusPending Status = "pending"
	// StatusReady marks a committed, complete artifact.
	StatusReady Status = "ready"
	// StatusFailed marks an entry whose last build failed. The next
	// Get for the fingerprint retries.
	StatusFailed Status = "failed"
)

// Entry is the metadata record for one fingerprint.
type Entry struct {
	Fingerprint fingerprint.Fingerprint
	Status      Status

	// Source is the human-readable description of what the entry was
	// built from (the primary source URI).
	Source string

	// Size is the total payload size in bytes; valid once Ready.
	Size int64

	CreatedAt  time.Time
	LastAccess time.Time

	// Failure holds the recorded error message for Failed entries.
	Failure string
}

// Options configures a Store.
type Options struct {
	// Root is the cache root directory, created if absent.
	Root string

	// Logger receives operational messages. Nil means discard.
	Logger *slog.Logger

	// PoolSize is the SQLite connection pool size; zero for the
	// default.
	PoolSize int
}

// Store is the content-addressed cache. Safe for concurrent use.
// Shared mutable state is the SQLite index (per-connection locking)
// and the pin table (its own mutex); there is no global lock across
// fingerprints.
type Store struct {
	root   string
	pool   *sqlitepool.Pool
	logger *slog.Logger

	pinMu    sync.Mutex
	pins     map[fingerprint.Fingerprint]int
	evicting map[fingerprint.Fingerprint]bool

	now func() time.Time
}

// Open creates or opens a cache store rooted at options.Root. A
// corrupt metadata index is not fatal: it is discarded and rebuilt by
// rescanning the entries directory.
func Open(ctx context.Context, options Options) (*Store, error) {
	if options.Root == "" {
		return nil, fmt.Errorf("cachestore: Root is required")
	}
	logger := options.Logger
	if logger == nil {
		logger = slog.New(slog.DiscardHandler)
	}

	for _, dir := range []string{
		options.Root,
		filepath.Join(options.Root, entriesDir),
		filepath.Join(options.Root, tmpDir),
	} {
		if err := os.MkdirAll(dir, 0o755); err != nil {
			return nil, fmt.Errorf("creating cache directory %s: %w", dir, err)
		}
	}

	store := &Store{
		root:     options.Root,
		logger:   logger,
		pins:     make(map[fingerprint.Fingerprint]int),
		evicting: make(map[fingerprint.Fingerprint]bool),
		now:      time.Now,
	}

	indexPath := filepath.Join(options.Root, indexFile)
	pool, err := openIndex(indexPath, options.PoolSize, logger)
	if err != nil {
		// Corrupt index: rebuild from the directory. The payload
		// directories with their snapshots are the source of truth.
		logger.Warn("cache index unreadable, rebuilding from directory scan",
			"path", indexPath, "error", err)
		if removeErr := removeIndexFiles(indexPath); removeErr != nil {
			return nil, dataerr.Wrap(dataerr.CacheCorruption,
				fmt.Errorf("index unreadable (%v) and could not be removed: %w", err, removeErr))
		}
		pool, err = openIndex(indexPath, options.PoolSize, logger)
		if err != nil {
			return nil, dataerr.Wrap(dataerr.CacheCorruption, err)
		}
		store.pool = pool
		if err := store.Rescan(ctx); err != nil {
			pool.Close()
			return nil, dataerr.Wrap(dataerr.CacheCorruption, err)
		}
		return store, nil
	}

	store.pool = pool
	return store, nil
}

// Close flushes and closes the metadata index.
func (s *Store) Close() error {
	return s.pool.Close()
}

// Root returns the cache root directory.
func (s *Store) Root() string {
	return s.root
}

// EntryDir returns the payload directory for a fingerprint. The
// directory exists only for Ready entries.
func (s *Store) EntryDir(fp fingerprint.Fingerprint) string {
	hex := fp.Hex()
	return filepath.Join(s.root, entriesDir, hex[:2], hex)
}

// Lookup returns the entry for a fingerprint, if one exists. A Ready
// entry whose payload directory has vanished (manual deletion, partial
// restore) is dropped from the index and reported as absent. Lookup
// touches the last-access time of Ready entries.
func (s *Store) Lookup(ctx context.Context, fp fingerprint.Fingerprint) (Entry, bool, error) {
	entry, found, err := s.readEntry(ctx, fp)
	if err != nil || !found {
		return Entry{}, false, err
	}

	if entry.Status == StatusReady {
		if _, statErr := os.Stat(s.EntryDir(fp)); statErr != nil {
			s.logger.Warn("ready entry lost its payload directory, dropping",
				"fingerprint", fp.Hex())
			if deleteErr := s.deleteEntryRow(ctx, fp); deleteErr != nil {
				return Entry{}, false, deleteErr
			}
			return Entry{}, false, nil
		}
		if err := s.touch(ctx, fp); err != nil {
			return Entry{}, false, err
		}
	}
	return entry, true, nil
}

// WriteHandle is an in-flight build's staging area. Created by Begin,
// finished by Commit or Abort.
type WriteHandle struct {
	fp     fingerprint.Fingerprint
	source string
	dir    string
	done   bool
}

// Dir returns the staging directory the materializer writes into.
func (h *WriteHandle) Dir() string {
	return h.dir
}

// Fingerprint returns the identity being built.
func (h *WriteHandle) Fingerprint() fingerprint.Fingerprint {
	return h.fp
}

// Create creates a file within the staging directory, making parent
// directories as needed. name must be relative.
func (h *WriteHandle) Create(name string) (*os.File, error) {
	if filepath.IsAbs(name) {
		return nil, fmt.Errorf("artifact file name %q must be relative", name)
	}
	path := filepath.Join(h.dir, name)
	if err := os.MkdirAll(filepath.Dir(path), 0o755); err != nil {
		return nil, fmt.Errorf("creating artifact subdirectory: %w", err)
	}
	return os.Create(path)
}

// Begin starts a build for a fingerprint: records a Pending entry and
// creates a staging directory under tmp/. The caller must hold the
// coordination permit for the fingerprint.
func (s *Store) Begin(ctx context.Context, fp fingerprint.Fingerprint, source string) (*WriteHandle, error) {
	stagingDir, err := os.MkdirTemp(filepath.Join(s.root, tmpDir), fp.Hex()[:12]+"-*")
	if err != nil {
		return nil, fmt.Errorf("creating staging directory: %w", err)
	}

	if err := s.upsertPending(ctx, fp, source); err != nil {
		os.RemoveAll(stagingDir)
		return nil, err
	}

	return &WriteHandle{fp: fp, source: source, dir: stagingDir}, nil
}

// Commit finalizes a build: writes the metadata snapshot into the
// staging directory, atomically renames it into the entries keyspace,
// and marks the entry Ready.
func (s *Store) Commit(ctx context.Context, handle *WriteHandle) (Entry, error) {
	if handle.done {
		return Entry{}, fmt.Errorf("write handle for %s already finished", handle.fp.Hex())
	}
	handle.done = true

	size, err := directorySize(handle.dir)
	if err != nil {
		return Entry{}, fmt.Errorf("sizing staged artifact: %w", err)
	}

	now := s.now().UTC()
	snapshot := entrySnapshot{
		Fingerprint: handle.fp,
		Source:      handle.source,
		CreatedAt:   now,
		Size:        size,
	}
	if err := writeSnapshot(handle.dir, snapshot); err != nil {
		return Entry{}, err
	}

	finalDir := s.EntryDir(handle.fp)
	if err := os.MkdirAll(filepath.Dir(finalDir), 0o755); err != nil {
		return Entry{}, fmt.Errorf("creating entry shard directory: %w", err)
	}
	// A leftover directory here can only be debris from before a
	// crash (a Ready entry would have been a cache hit and no build
	// would have started). Clear it so the rename lands.
	if err := os.RemoveAll(finalDir); err != nil {
		return Entry{}, fmt.Errorf("clearing stale entry directory: %w", err)
	}
	if err := os.Rename(handle.dir, finalDir); err != nil {
		return Entry{}, fmt.Errorf("committing artifact for %s: %w", handle.fp.Hex(), err)
	}

	if err := s.markReady(ctx, handle.fp, size); err != nil {
		return Entry{}, err
	}

	s.logger.Info("artifact committed",
		"fingerprint", handle.fp.Hex(), "size", size, "source", handle.source)

	return Entry{
		Fingerprint: handle.fp,
		Status:      StatusReady,
		Source:      handle.source,
		Size:        size,
		CreatedAt:   now,
		LastAccess:  now,
	}, nil
}

// Abort records a failed build. The staging directory is kept for
// diagnostic inspection; the eviction sweep removes it later.
func (s *Store) Abort(ctx context.Context, handle *WriteHandle, cause error) error {
	if handle.done {
		return fmt.Errorf("write handle for %s already finished", handle.fp.Hex())
	}
	handle.done = true

	message := ""
	if cause != nil {
		message = cause.Error()
	}
	s.logger.Warn("build aborted",
		"fingerprint", handle.fp.Hex(), "staging_dir", handle.dir, "error", message)

	return s.markFailed(ctx, handle.fp, message)
}

// Invalidate removes an entry and its payload directory. Invalidation
// is explicit and unconditional; callers who need in-flight readers to
// finish first should drain them before invalidating.
func (s *Store) Invalidate(ctx context.Context, fp fingerprint.Fingerprint) error {
	if err := s.deleteEntryRow(ctx, fp); err != nil {
		return err
	}
	if err := os.RemoveAll(s.EntryDir(fp)); err != nil {
		return fmt.Errorf("removing entry directory for %s: %w", fp.Hex(), err)
	}
	return nil
}

// Acquire looks up a fingerprint and, if Ready, pins it. The pin is
// taken under the same lock Evict uses to select victims, so an
// acquired entry's payload cannot be swept before Unpin: either the
// pin lands first and Evict skips the entry, or eviction is already in
// progress and Acquire reports a miss.
func (s *Store) Acquire(ctx context.Context, fp fingerprint.Fingerprint) (Entry, bool, error) {
	if !s.tryPin(fp) {
		return Entry{}, false, nil
	}
	entry, found, err := s.Lookup(ctx, fp)
	if err != nil || !found || entry.Status != StatusReady {
		s.Unpin(fp)
		return Entry{}, false, err
	}
	return entry, true, nil
}

// Pin marks a fingerprint as held by a reader, protecting it from
// eviction. Pins nest; each Pin needs a matching Unpin.
func (s *Store) Pin(fp fingerprint.Fingerprint) {
	s.pinMu.Lock()
	s.pins[fp]++
	s.pinMu.Unlock()
}

// tryPin pins fp unless its payload is mid-eviction.
func (s *Store) tryPin(fp fingerprint.Fingerprint) bool {
	s.pinMu.Lock()
	defer s.pinMu.Unlock()
	if s.evicting[fp] {
		return false
	}
	s.pins[fp]++
	return true
}

// beginEvict claims fp for removal. It fails if a reader holds a pin;
// on success, tryPin refuses the fingerprint until endEvict.
func (s *Store) beginEvict(fp fingerprint.Fingerprint) bool {
	s.pinMu.Lock()
	defer s.pinMu.Unlock()
	if s.pins[fp] > 0 {
		return false
	}
	s.evicting[fp] = true
	return true
}

func (s *Store) endEvict(fp fingerprint.Fingerprint) {
	s.pinMu.Lock()
	delete(s.evicting, fp)
	s.pinMu.Unlock()
}

// Unpin releases a reader's hold.
func (s *Store) Unpin(fp fingerprint.Fingerprint) {
	s.pinMu.Lock()
	if s.pins[fp] > 1 {
		s.pins[fp]--
	} else {
		delete(s.pins, fp)
	}
	s.pinMu.Unlock()
}

// pinned reports whether any reader currently holds the fingerprint.
func (s *Store) pinned(fp fingerprint.Fingerprint) bool {
	s.pinMu.Lock()
	defer s.pinMu.Unlock()
	return s.pins[fp] > 0
}

// directorySize returns the total size of regular files under dir.
func directorySize(dir string) (int64, error) {
	var total int64
	err := filepath.WalkDir(dir, func(path string, entry fs.DirEntry, err error) error {
		if err != nil {
			return err
		}
		if entry.Type().IsRegular() {
			info, err := entry.Info()
			if err != nil {
				return err
			}
			total += info.Size()
		}
		return nil
	})
	return total, err
}
