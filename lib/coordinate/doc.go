// Copyright 2026 The Nanodata Authors
// SPDX-License-Identifier: Apache-2.0

// Package coordinate serializes materialization so that concurrent
// requests for the same fingerprint produce exactly one build.
//
// Three layers of exclusion compose here:
//
//   - In-process, a singleflight group collapses concurrent Do calls
//     for the same fingerprint into one build; the rest wait for its
//     result. A waiter's context cancellation abandons the wait
//     without cancelling the shared build.
//   - Cross-process, an advisory flock on locks/<hex>.lock excludes
//     builders in other processes. flock locks die with their holder,
//     so a crashed builder never leaves a stale lock behind; a holder
//     that is merely slow is bounded by the acquisition timeout.
//   - A weighted semaphore caps the number of builds running at once
//     across all fingerprints, so a burst of cold lookups does not
//     fork unbounded downloads.
//
// The losing process of a cross-process race acquires the lock after
// the winner commits, re-checks the cache, and finds a hit instead of
// rebuilding.
package coordinate
