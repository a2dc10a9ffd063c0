// Copyright 2026 The Nanodata Authors
// SPDX-License-Identifier: Apache-2.0

// Package configtree defines the immutable configuration tree that the
// resolver, fingerprint engine, and materializer operate on.
//
// A [Node] is a tagged union over five kinds:
//
//   - Scalar: string, int64, float64, bool, or null
//   - Sequence: ordered list of nodes (order is semantically meaningful)
//   - Mapping: ordered set of string-keyed nodes (key order is preserved
//     for display but is NOT semantically meaningful — fingerprints are
//     key-order invariant)
//   - Reference: a pointer to another config or raw resource, written in
//     YAML as a `!ref scheme://path` scalar
//   - Source: a resolved [SourceDescriptor]; only appears in trees
//     produced by the resolver, never in parsed input
//
// Nodes are immutable once constructed. All "modification" happens by
// building new trees, which is what makes concurrent resolution and
// fingerprinting safe without locking.
//
// Configuration files are YAML (via gopkg.in/yaml.v3). Only the plain
// YAML data model is accepted: scalars outside the supported set
// (timestamps, binary) are rejected at parse time so that everything
// that parses can also be fingerprinted.
package configtree
