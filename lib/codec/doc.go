// Copyright 2026 The Nanodata Authors
// SPDX-License-Identifier: Apache-2.0

// Package codec provides nanodata's standard CBOR encoding configuration.
//
// One encoding configuration serves three very different consumers:
//
//   - The fingerprint engine, which hashes the canonical serialization of
//     a resolved configuration tree. Fingerprints are only stable if the
//     same logical data always encodes to identical bytes.
//   - On-disk cache metadata (entry snapshots, alias records), which must
//     be readable across versions and rebuildable by directory scans.
//   - Columnar data blocks produced by the table materializer.
//
// The encoder therefore uses Core Deterministic Encoding (RFC 8949 §4.2):
// sorted map keys, smallest integer encoding, no indefinite-length items.
// Same logical data always produces identical bytes, which is the property
// the whole caching scheme rests on.
//
// For buffer-oriented operations (metadata files, fingerprint input):
//
//	data, err := codec.Marshal(value)
//	err = codec.Unmarshal(data, &value)
//
// For stream-oriented operations (columnar block files):
//
//	encoder := codec.NewEncoder(file)
//	decoder := codec.NewDecoder(file)
package codec
