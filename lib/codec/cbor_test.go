// Copyright 2026 The Nanodata Authors
// SPDX-License-Identifier: Apache-2.0

package codec

import (
	"bytes"
	"testing"
)

// sampleEntry is a representative on-disk metadata record using cbor
// struct tags (the convention for purely-internal types).
type sampleEntry struct {
	Fingerprint string `cbor:"fingerprint"`
	Size        int64  `cbor:"size"`
	Status      string `cbor:"status,omitempty"`
}

func TestMarshalUnmarshalRoundtrip(t *testing.T) {
	original := sampleEntry{
		Fingerprint: "a3f9b2c1",
		Size:        1 << 20,
		Status:      "ready",
	}

	data, err := Marshal(original)
	if err != nil {
		t.Fatalf("Marshal: %v", err)
	}

	var decoded sampleEntry
	if err := Unmarshal(data, &decoded); err != nil {
		t.Fatalf("Unmarshal: %v", err)
	}

	if decoded != original {
		t.Errorf("roundtrip mismatch: got %+v, want %+v", decoded, original)
	}
}

func TestMapEncodingDeterministic(t *testing.T) {
	// The fingerprint engine hashes canonical map values. Two maps with
	// the same contents must encode to identical bytes regardless of
	// insertion order.
	first := map[string]any{}
	first["alpha"] = int64(1)
	first["beta"] = "two"
	first["gamma"] = true

	second := map[string]any{}
	second["gamma"] = true
	second["beta"] = "two"
	second["alpha"] = int64(1)

	firstBytes, err := Marshal(first)
	if err != nil {
		t.Fatalf("Marshal first: %v", err)
	}
	secondBytes, err := Marshal(second)
	if err != nil {
		t.Fatalf("Marshal second: %v", err)
	}

	if !bytes.Equal(firstBytes, secondBytes) {
		t.Errorf("map encoding not deterministic:\n  first:  %x\n  second: %x",
			firstBytes, secondBytes)
	}
}

func TestDecodeAnyUsesStringKeyedMaps(t *testing.T) {
	data, err := Marshal(map[string]any{"nested": map[string]any{"k": "v"}})
	if err != nil {
		t.Fatalf("Marshal: %v", err)
	}

	var decoded any
	if err := Unmarshal(data, &decoded); err != nil {
		t.Fatalf("Unmarshal: %v", err)
	}

	top, ok := decoded.(map[string]any)
	if !ok {
		t.Fatalf("decoded top-level type = %T, want map[string]any", decoded)
	}
	if _, ok := top["nested"].(map[string]any); !ok {
		t.Errorf("nested type = %T, want map[string]any", top["nested"])
	}
}
