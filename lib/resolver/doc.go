// Copyright 2026 The Nanodata Authors
// SPDX-License-Identifier: Apache-2.0

// Package resolver expands a configuration tree into a fully
// dereferenced, backend-independent description of the target
// artifact.
//
// Two kinds of references exist in input trees:
//
//   - A `base` mapping key pointing at another configuration file.
//     The referenced config is loaded, resolved, and layered beneath
//     the current mapping: the child's own keys win on conflict, and
//     nested mappings are merged key-by-key rather than replaced
//     wholesale. Layering is associative — stacking configs one at a
//     time or all at once produces the same resolved tree.
//
//   - Any other `!ref` scalar, which points at raw source content.
//     The reference is replaced by a source descriptor carrying the
//     backend's content digest (or size/mtime proxy) obtained via
//     Stat, so remote content changes flow into the fingerprint.
//
// The resolver tracks the chain of configs being imported and fails
// with CyclicReference when a reference re-enters a config already on
// the stack, rather than recursing forever.
//
// Resolution is read-only and pure given unchanged remote state: two
// value-equal input trees always resolve to value-equal outputs.
package resolver
