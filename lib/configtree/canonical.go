// Copyright 2026 The Nanodata Authors
// SPDX-License-Identifier: Apache-2.0

package configtree

import (
	"math"

	"github.com/nanodata-io/nanodata/lib/dataerr"
)

// sourceKey wraps resolved source descriptors in the canonical form so
// they can never collide with a user mapping: Mapping rejects keys
// beginning with "$", so this spelling is unreachable from user input.
const sourceKey = "$source"

// Canonical converts a fully-resolved tree into plain Go values
// (map[string]any, []any, string, int64, float64, bool, nil) suitable
// for deterministic CBOR encoding. The conversion normalizes numbers:
// a float with an exact integral value becomes an int64, so `shards: 4`
// and `shards: 4.0` describe the same artifact.
//
// Unresolved Reference nodes are an error: canonical form is only
// defined for the output of the resolver. Scalar types outside the
// supported set fail with UnhashableValue.
func Canonical(node *Node) (any, error) {
	switch node.kind {
	case KindScalar:
		switch v := node.scalar.(type) {
		case nil, string, bool, int64:
			return v, nil
		case float64:
			return normalizeFloat(v)
		default:
			return nil, dataerr.New(dataerr.UnhashableValue,
				"scalar of type %T has no canonical form", v)
		}

	case KindSequence:
		out := make([]any, len(node.seq))
		for i, child := range node.seq {
			canonical, err := Canonical(child)
			if err != nil {
				return nil, err
			}
			out[i] = canonical
		}
		return out, nil

	case KindMapping:
		out := make(map[string]any, len(node.keys))
		for key, child := range node.fields {
			canonical, err := Canonical(child)
			if err != nil {
				return nil, err
			}
			out[key] = canonical
		}
		return out, nil

	case KindSource:
		descriptor := map[string]any{
			"scheme": node.source.Scheme,
			"path":   node.source.Path,
		}
		if node.source.Digest != "" {
			descriptor["digest"] = node.source.Digest
		} else {
			// No digest: size and mtime stand in as the change proxy.
			descriptor["size"] = node.source.Size
			descriptor["mtime"] = node.source.ModTime
		}
		return map[string]any{sourceKey: descriptor}, nil

	case KindReference:
		return nil, dataerr.New(dataerr.UnhashableValue,
			"unresolved reference %s: canonical form requires a resolved tree",
			node.ref)

	default:
		return nil, dataerr.New(dataerr.UnhashableValue,
			"node kind %s has no canonical form", node.kind)
	}
}

// normalizeFloat maps integral floats onto int64. NaN is rejected
// (x != x breaks determinism of equality); infinities keep their
// float identity.
func normalizeFloat(v float64) (any, error) {
	if math.IsNaN(v) {
		return nil, dataerr.New(dataerr.UnhashableValue, "NaN has no stable identity")
	}
	if math.IsInf(v, 0) {
		return v, nil
	}
	if math.Trunc(v) == v && math.Abs(v) < float64(1<<53) {
		return int64(v), nil
	}
	return v, nil
}
