// Copyright 2026 The Nanodata Authors
// SPDX-License-Identifier: Apache-2.0

// Package dataerr defines the stable error taxonomy surfaced by the
// resolution and caching engine.
//
// Every error that crosses the public API boundary carries a [Kind]
// plus the fingerprint and/or configuration path involved, so callers
// (CLI, experiment launchers) can make programmatic decisions without
// parsing message text:
//
//   - structural errors (UnhashableValue, CyclicReference,
//     BackendNotFound) are never retried automatically;
//   - SourceUnavailable and MaterializationFailed are recorded against
//     the cache entry and retried on the next Get for that fingerprint;
//   - LockTimeout is the only kind eligible for bounded automatic retry
//     with backoff.
//
// Inner errors are preserved through the chain for debugging; the kind
// travels with the wrapper, checked with [KindOf] or errors.As.
package dataerr
