// Copyright 2026 The Nanodata Authors
// SPDX-License-Identifier: Apache-2.0

package cachestore

import (
	"context"
	"fmt"
	"log/slog"
	"os"
	"path/filepath"
	"time"

	"zombiezen.com/go/sqlite"
	"zombiezen.com/go/sqlite/sqlitex"

	"github.com/nanodata-io/nanodata/lib/codec"
	"github.com/nanodata-io/nanodata/lib/dataerr"
	"github.com/nanodata-io/nanodata/lib/fingerprint"
	"github.com/nanodata-io/nanodata/lib/sqlitepool"
)

// snapshotFile is the per-entry metadata file written into each
// committed payload directory. It is what a rescan reads back.
const snapshotFile = ".entry.cbor"

const indexSchema = `
CREATE TABLE IF NOT EXISTS entries (
    fingerprint TEXT PRIMARY KEY,
    status      TEXT NOT NULL,
    source      TEXT NOT NULL DEFAULT '',
    size        INTEGER NOT NULL DEFAULT 0,
    created_at  INTEGER NOT NULL,
    last_access INTEGER NOT NULL,
    failure     TEXT NOT NULL DEFAULT ''
);
CREATE INDEX IF NOT EXISTS entries_last_access ON entries (last_access);
`

// entrySnapshot is the CBOR document stored as .entry.cbor inside each
// committed payload directory.
type entrySnapshot struct {
	Fingerprint fingerprint.Fingerprint `cbor:"fingerprint"`
	Source      string                  `cbor:"source"`
	CreatedAt   time.Time               `cbor:"created_at"`
	Size        int64                   `cbor:"size"`
}

func writeSnapshot(dir string, snapshot entrySnapshot) error {
	data, err := codec.Marshal(snapshot)
	if err != nil {
		return fmt.Errorf("encoding entry snapshot: %w", err)
	}
	if err := os.WriteFile(filepath.Join(dir, snapshotFile), data, 0o644); err != nil {
		return fmt.Errorf("writing entry snapshot: %w", err)
	}
	return nil
}

func readSnapshot(dir string) (entrySnapshot, error) {
	data, err := os.ReadFile(filepath.Join(dir, snapshotFile))
	if err != nil {
		return entrySnapshot{}, err
	}
	var snapshot entrySnapshot
	if err := codec.Unmarshal(data, &snapshot); err != nil {
		return entrySnapshot{}, fmt.Errorf("decoding entry snapshot: %w", err)
	}
	return snapshot, nil
}

func openIndex(path string, poolSize int, logger *slog.Logger) (*sqlitepool.Pool, error) {
	pool, err := sqlitepool.Open(sqlitepool.Config{
		Path:     path,
		PoolSize: poolSize,
		Logger:   logger,
		OnConnect: func(conn *sqlite.Conn) error {
			return sqlitex.ExecuteScript(conn, indexSchema, nil)
		},
	})
	if err != nil {
		return nil, err
	}
	// The pool opens connections lazily; force one now so schema or
	// file corruption surfaces at Open rather than mid-operation.
	conn, err := pool.Take(context.Background())
	if err != nil {
		pool.Close()
		return nil, err
	}
	pool.Put(conn)
	return pool, nil
}

// removeIndexFiles deletes the database plus its WAL sidecars.
func removeIndexFiles(path string) error {
	for _, p := range []string{path, path + "-wal", path + "-shm"} {
		if err := os.Remove(p); err != nil && !os.IsNotExist(err) {
			return err
		}
	}
	return nil
}

func (s *Store) readEntry(ctx context.Context, fp fingerprint.Fingerprint) (Entry, bool, error) {
	conn, err := s.pool.Take(ctx)
	if err != nil {
		return Entry{}, false, err
	}
	defer s.pool.Put(conn)

	var entry Entry
	found := false
	err = sqlitex.Execute(conn,
		`SELECT status, source, size, created_at, last_access, failure
		 FROM entries WHERE fingerprint = ?`,
		&sqlitex.ExecOptions{
			Args: []any{fp.Hex()},
			ResultFunc: func(stmt *sqlite.Stmt) error {
				found = true
				entry = Entry{
					Fingerprint: fp,
					Status:      Status(stmt.ColumnText(0)),
					Source:      stmt.ColumnText(1),
					Size:        stmt.ColumnInt64(2),
					CreatedAt:   time.Unix(stmt.ColumnInt64(3), 0).UTC(),
					LastAccess:  time.Unix(stmt.ColumnInt64(4), 0).UTC(),
					Failure:     stmt.ColumnText(5),
				}
				return nil
			},
		})
	if err != nil {
		return Entry{}, false, fmt.Errorf("reading entry %s: %w", fp.Hex(), err)
	}
	return entry, found, nil
}

func (s *Store) upsertPending(ctx context.Context, fp fingerprint.Fingerprint, source string) error {
	conn, err := s.pool.Take(ctx)
	if err != nil {
		return err
	}
	defer s.pool.Put(conn)

	now := s.now().Unix()
	err = sqlitex.Execute(conn,
		`INSERT INTO entries (fingerprint, status, source, created_at, last_access)
		 VALUES (?, ?, ?, ?, ?)
		 ON CONFLICT (fingerprint) DO UPDATE SET
		   status = excluded.status,
		   source = excluded.source,
		   failure = '',
		   last_access = excluded.last_access`,
		&sqlitex.ExecOptions{
			Args: []any{fp.Hex(), string(StatusPending), source, now, now},
		})
	if err != nil {
		return fmt.Errorf("recording pending entry %s: %w", fp.Hex(), err)
	}
	return nil
}

func (s *Store) markReady(ctx context.Context, fp fingerprint.Fingerprint, size int64) error {
	conn, err := s.pool.Take(ctx)
	if err != nil {
		return err
	}
	defer s.pool.Put(conn)

	err = sqlitex.Execute(conn,
		`UPDATE entries SET status = ?, size = ?, failure = '', last_access = ?
		 WHERE fingerprint = ?`,
		&sqlitex.ExecOptions{
			Args: []any{string(StatusReady), size, s.now().Unix(), fp.Hex()},
		})
	if err != nil {
		return fmt.Errorf("marking entry %s ready: %w", fp.Hex(), err)
	}
	return nil
}

func (s *Store) markFailed(ctx context.Context, fp fingerprint.Fingerprint, failure string) error {
	conn, err := s.pool.Take(ctx)
	if err != nil {
		return err
	}
	defer s.pool.Put(conn)

	err = sqlitex.Execute(conn,
		`UPDATE entries SET status = ?, failure = ?, last_access = ?
		 WHERE fingerprint = ?`,
		&sqlitex.ExecOptions{
			Args: []any{string(StatusFailed), failure, s.now().Unix(), fp.Hex()},
		})
	if err != nil {
		return fmt.Errorf("marking entry %s failed: %w", fp.Hex(), err)
	}
	return nil
}

func (s *Store) touch(ctx context.Context, fp fingerprint.Fingerprint) error {
	conn, err := s.pool.Take(ctx)
	if err != nil {
		return err
	}
	defer s.pool.Put(conn)

	err = sqlitex.Execute(conn,
		`UPDATE entries SET last_access = ? WHERE fingerprint = ?`,
		&sqlitex.ExecOptions{
			Args: []any{s.now().Unix(), fp.Hex()},
		})
	if err != nil {
		return fmt.Errorf("touching entry %s: %w", fp.Hex(), err)
	}
	return nil
}

func (s *Store) deleteEntryRow(ctx context.Context, fp fingerprint.Fingerprint) error {
	conn, err := s.pool.Take(ctx)
	if err != nil {
		return err
	}
	defer s.pool.Put(conn)

	err = sqlitex.Execute(conn,
		`DELETE FROM entries WHERE fingerprint = ?`,
		&sqlitex.ExecOptions{
			Args: []any{fp.Hex()},
		})
	if err != nil {
		return fmt.Errorf("deleting entry %s: %w", fp.Hex(), err)
	}
	return nil
}

// Entries returns all entries ordered by last access, oldest first.
// This is the eviction planner's view of the cache.
func (s *Store) Entries(ctx context.Context) ([]Entry, error) {
	conn, err := s.pool.Take(ctx)
	if err != nil {
		return nil, err
	}
	defer s.pool.Put(conn)

	var entries []Entry
	err = sqlitex.Execute(conn,
		`SELECT fingerprint, status, source, size, created_at, last_access, failure
		 FROM entries ORDER BY last_access ASC, fingerprint ASC`,
		&sqlitex.ExecOptions{
			ResultFunc: func(stmt *sqlite.Stmt) error {
				fp, err := fingerprint.Parse(stmt.ColumnText(0))
				if err != nil {
					return dataerr.Wrap(dataerr.CacheCorruption,
						fmt.Errorf("index row with bad fingerprint %q: %w", stmt.ColumnText(0), err))
				}
				entries = append(entries, Entry{
					Fingerprint: fp,
					Status:      Status(stmt.ColumnText(1)),
					Source:      stmt.ColumnText(2),
					Size:        stmt.ColumnInt64(3),
					CreatedAt:   time.Unix(stmt.ColumnInt64(4), 0).UTC(),
					LastAccess:  time.Unix(stmt.ColumnInt64(5), 0).UTC(),
					Failure:     stmt.ColumnText(6),
				})
				return nil
			},
		})
	if err != nil {
		return nil, fmt.Errorf("listing entries: %w", err)
	}
	return entries, nil
}

// Rescan rebuilds the index from the entries directory. Every payload
// directory carrying a readable snapshot becomes a Ready row;
// directories without one are unreadable debris and are removed.
// Existing index rows for fingerprints no longer on disk are dropped.
func (s *Store) Rescan(ctx context.Context) error {
	entriesRoot := filepath.Join(s.root, entriesDir)

	seen := make(map[fingerprint.Fingerprint]bool)
	shards, err := os.ReadDir(entriesRoot)
	if err != nil {
		return fmt.Errorf("scanning entries directory: %w", err)
	}
	for _, shard := range shards {
		if !shard.IsDir() {
			continue
		}
		shardPath := filepath.Join(entriesRoot, shard.Name())
		dirs, err := os.ReadDir(shardPath)
		if err != nil {
			return fmt.Errorf("scanning shard %s: %w", shard.Name(), err)
		}
		for _, dir := range dirs {
			if !dir.IsDir() {
				continue
			}
			entryPath := filepath.Join(shardPath, dir.Name())
			fp, err := fingerprint.Parse(dir.Name())
			if err != nil {
				s.logger.Warn("removing entry directory with malformed name",
					"path", entryPath)
				if err := os.RemoveAll(entryPath); err != nil {
					return err
				}
				continue
			}
			snapshot, err := readSnapshot(entryPath)
			if err != nil || snapshot.Fingerprint != fp {
				s.logger.Warn("removing entry directory with unreadable snapshot",
					"fingerprint", fp.Hex(), "error", err)
				if err := os.RemoveAll(entryPath); err != nil {
					return err
				}
				continue
			}
			if err := s.restoreRow(ctx, snapshot); err != nil {
				return err
			}
			seen[fp] = true
		}
	}

	// Drop rows whose payload no longer exists.
	existing, err := s.Entries(ctx)
	if err != nil {
		return err
	}
	for _, entry := range existing {
		if !seen[entry.Fingerprint] {
			if err := s.deleteEntryRow(ctx, entry.Fingerprint); err != nil {
				return err
			}
		}
	}

	s.logger.Info("cache index rebuilt", "entries", len(seen))
	return nil
}

// restoreRow writes a Ready row from a snapshot, preserving an
// existing row's last-access time when one is present.
func (s *Store) restoreRow(ctx context.Context, snapshot entrySnapshot) error {
	conn, err := s.pool.Take(ctx)
	if err != nil {
		return err
	}
	defer s.pool.Put(conn)

	err = sqlitex.Execute(conn,
		`INSERT INTO entries (fingerprint, status, source, size, created_at, last_access)
		 VALUES (?, ?, ?, ?, ?, ?)
		 ON CONFLICT (fingerprint) DO UPDATE SET
		   status = excluded.status,
		   source = excluded.source,
		   size = excluded.size,
		   created_at = excluded.created_at,
		   failure = ''`,
		&sqlitex.ExecOptions{
			Args: []any{
				snapshot.Fingerprint.Hex(),
				string(StatusReady),
				snapshot.Source,
				snapshot.Size,
				snapshot.CreatedAt.Unix(),
				s.now().Unix(),
			},
		})
	if err != nil {
		return fmt.Errorf("restoring entry %s: %w", snapshot.Fingerprint.Hex(), err)
	}
	return nil
}
