// Copyright 2026 The Nanodata Authors
// SPDX-License-Identifier: Apache-2.0

// Package backend defines the storage capability the resolver and
// materializer use to reach authoritative copies of data, and a
// scheme-keyed registry of implementations.
//
// A [Backend] is a closed capability interface: byte-level read, stat,
// list, and write against one storage system. Three implementations
// ship with the engine:
//
//   - [Local]: the local filesystem, optionally rooted at a directory.
//     Stat computes a streamed SHA256 content digest.
//   - [S3]: AWS S3 (or any S3-compatible object store) via
//     aws-sdk-go-v2. The object ETag serves as a content digest proxy.
//   - [Hub]: Hugging Face hub datasets over the hub's HTTPS resolve
//     and tree APIs. Read-only.
//
// Scheme strings route to backends through a [Registry] populated at
// configuration-load time. Unregistered schemes fail fast with a
// BackendNotFound error rather than dispatching dynamically at call
// time.
//
// All backend failures that stem from the underlying store being
// unreachable (network errors, missing objects) surface as
// SourceUnavailable errors annotated with the source URI — recoverable
// by the caller, never silently swallowed.
package backend
