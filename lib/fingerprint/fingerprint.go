// Copyright 2026 The Nanodata Authors
// SPDX-License-Identifier: Apache-2.0

// Package fingerprint computes the stable content identity of a
// resolved configuration tree.
//
// The identity is a BLAKE3 keyed hash of the tree's canonical CBOR
// serialization. Canonicalization (lib/configtree.Canonical) makes the
// encoding key-order invariant and numerically normalized; Core
// Deterministic CBOR (lib/codec) makes it byte-stable; the keyed hash
// gives domain separation from any other BLAKE3 use.
//
// Identical resolved trees always produce identical fingerprints. Any
// semantically relevant change produces a different fingerprint with
// overwhelming probability, inherited from BLAKE3's collision
// resistance.
package fingerprint

import (
	"encoding/hex"
	"fmt"

	"github.com/zeebo/blake3"

	"github.com/nanodata-io/nanodata/lib/codec"
	"github.com/nanodata-io/nanodata/lib/configtree"
)

// Fingerprint is a 32-byte BLAKE3 digest identifying a fully-resolved
// configuration's semantic content.
type Fingerprint [32]byte

// specDomainKey is the 32-byte key for BLAKE3 keyed hashing. Domain
// separation ensures the same bytes hashed in another context can never
// collide with a spec fingerprint. The value is the ASCII encoding of
// the domain name, zero-padded to 32 bytes: readable in hex dumps
// without sacrificing any cryptographic property. Changing it
// invalidates every existing cache entry.
var specDomainKey = [32]byte{
	'n', 'a', 'n', 'o', 'd', 'a', 't', 'a', '.',
	'f', 'i', 'n', 'g', 'e', 'r', 'p', 'r', 'i', 'n', 't', '.',
	's', 'p', 'e', 'c', 0, 0, 0, 0, 0, 0, 0,
}

// Of computes the fingerprint of a resolved configuration tree. Fails
// with an UnhashableValue error if the tree contains unresolved
// references or unsupported scalar types.
func Of(resolved *configtree.Node) (Fingerprint, error) {
	canonical, err := configtree.Canonical(resolved)
	if err != nil {
		return Fingerprint{}, err
	}
	data, err := codec.Marshal(canonical)
	if err != nil {
		return Fingerprint{}, fmt.Errorf("encoding canonical form: %w", err)
	}
	return ofBytes(data), nil
}

// CanonicalBytes returns the exact byte string that Of hashes for the
// given tree. Used by `data fingerprint --debug` to show what went
// into the digest.
func CanonicalBytes(resolved *configtree.Node) ([]byte, error) {
	canonical, err := configtree.Canonical(resolved)
	if err != nil {
		return nil, err
	}
	return codec.Marshal(canonical)
}

func ofBytes(data []byte) Fingerprint {
	// NewKeyed only fails for a wrong key length, which the fixed-size
	// array rules out.
	hasher, err := blake3.NewKeyed(specDomainKey[:])
	if err != nil {
		panic("fingerprint: BLAKE3 keyed hash initialization failed: " + err.Error())
	}
	hasher.Write(data)
	var fp Fingerprint
	copy(fp[:], hasher.Sum(nil))
	return fp
}

// Hex returns the canonical 64-character hex encoding. This is the
// form used for cache directory names, lock files, and CLI output.
func (f Fingerprint) Hex() string {
	return hex.EncodeToString(f[:])
}

// Short returns the first 12 hex characters, for human-facing listings
// where the full digest is noise.
func (f Fingerprint) Short() string {
	return hex.EncodeToString(f[:6])
}

// IsZero reports whether the fingerprint is the zero value (never a
// valid content identity).
func (f Fingerprint) IsZero() bool {
	return f == Fingerprint{}
}

// MarshalText implements encoding.TextMarshaler so fingerprints embed
// in CBOR and JSON as hex strings.
func (f Fingerprint) MarshalText() ([]byte, error) {
	return []byte(f.Hex()), nil
}

// UnmarshalText implements encoding.TextUnmarshaler.
func (f *Fingerprint) UnmarshalText(text []byte) error {
	parsed, err := Parse(string(text))
	if err != nil {
		return err
	}
	*f = parsed
	return nil
}

// Parse parses a 64-character hex string into a Fingerprint.
func Parse(hexString string) (Fingerprint, error) {
	var fp Fingerprint
	decoded, err := hex.DecodeString(hexString)
	if err != nil {
		return fp, fmt.Errorf("parsing fingerprint: %w", err)
	}
	if len(decoded) != 32 {
		return fp, fmt.Errorf("fingerprint is %d bytes, want 32", len(decoded))
	}
	copy(fp[:], decoded)
	return fp, nil
}
