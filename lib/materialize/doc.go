// Copyright 2026 The Nanodata Authors
// SPDX-License-Identifier: Apache-2.0

// Package materialize turns a resolved configuration into artifact
// files inside a cache staging directory.
//
// The resolved config's materialization-relevant keys form a Plan:
//
//	source: !ref local://corpus.csv   # required; resolved to a Source
//	format: table                     # raw (default) | table
//	compression: zstd                 # none (default) | lz4 | zstd
//	shard_size: 67108864              # raw only; bytes per part file
//	drop_columns: [label]             # table only
//	select_columns: [text, score]     # table only
//
// Raw materialization streams the source's bytes into data.bin, or
// into part-00000, part-00001, ... when shard_size is set. Table
// materialization parses CSV or JSON-lines input into columnar CBOR
// blocks (one block per blockRows rows, each a schema + per-column
// arrays document) so downstream readers can scan single columns
// without touching the rest.
//
// Unknown mapping keys are ignored here: they are part of the
// artifact's identity (the fingerprint covers the whole resolved
// tree) but carry meaning only for the consumer.
//
// Failures leave the staging directory's partial output in place for
// diagnosis; the cache's eviction sweep removes it later.
package materialize
