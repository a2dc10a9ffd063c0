// Copyright 2026 The Nanodata Authors
// SPDX-License-Identifier: Apache-2.0

// Package cachestore implements the content-addressed local cache that
// materialized artifacts live in.
//
// The keyspace is the fingerprint and nothing but the fingerprint:
// renaming or re-describing a config that resolves identically never
// invalidates anything, and any semantic change always does.
//
// On-disk layout under the cache root:
//
//	entries/<hex[:2]>/<hex>/    one payload directory per fingerprint
//	entries/.../<hex>/.entry.cbor   per-entry metadata snapshot
//	tmp/                        staging for in-flight builds
//	index.db                    SQLite metadata index
//
// The SQLite index (via lib/sqlitepool) is the fast path for lookups,
// eviction ordering, and entry state (Pending → Ready | Failed). It is
// never the source of truth: every committed payload directory carries
// a CBOR snapshot of its own metadata, so a corrupt or missing index
// is recovered by a full directory rescan.
//
// Builds write into a temporary directory and are renamed into place
// on commit, so a crash mid-materialization never leaves an entry
// observable as Ready with partial contents. Aborted builds keep
// their temporary data for diagnosis; the eviction sweep cleans it up.
//
// Entries pinned by in-flight readers are never evicted. Pins are
// process-local reference counts held by artifact handles.
package cachestore
