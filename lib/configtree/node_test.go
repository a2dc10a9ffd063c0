// Copyright 2026 The Nanodata Authors
// SPDX-License-Identifier: Apache-2.0

package configtree

import (
	"reflect"
	"testing"

	"github.com/nanodata-io/nanodata/lib/dataerr"
)

func TestParseYAMLBasicTypes(t *testing.T) {
	tree, err := ParseYAML([]byte(`
name: mnist
epochs: 10
rate: 0.001
shuffle: true
notes: null
splits:
  - train
  - test
`))
	if err != nil {
		t.Fatal(err)
	}

	if tree.Kind() != KindMapping {
		t.Fatalf("root kind = %s, want mapping", tree.Kind())
	}

	name, _ := tree.Get("name")
	if v, ok := name.StringValue(); !ok || v != "mnist" {
		t.Errorf("name = %v", name)
	}
	epochs, _ := tree.Get("epochs")
	if v, ok := epochs.IntValue(); !ok || v != 10 {
		t.Errorf("epochs = %v", epochs)
	}
	rate, _ := tree.Get("rate")
	if v, ok := rate.FloatValue(); !ok || v != 0.001 {
		t.Errorf("rate = %v", rate)
	}
	shuffle, _ := tree.Get("shuffle")
	if v, ok := shuffle.BoolValue(); !ok || !v {
		t.Errorf("shuffle = %v", shuffle)
	}
	notes, _ := tree.Get("notes")
	if !notes.IsNull() {
		t.Errorf("notes is not null")
	}
	splits, _ := tree.Get("splits")
	if splits.Kind() != KindSequence || splits.Len() != 2 {
		t.Errorf("splits = kind %s len %d", splits.Kind(), splits.Len())
	}
}

func TestParseYAMLRefTag(t *testing.T) {
	tree, err := ParseYAML([]byte("source: !ref hub://datasets/ylecun/mnist\n"))
	if err != nil {
		t.Fatal(err)
	}

	source, ok := tree.Get("source")
	if !ok {
		t.Fatal("source key missing")
	}
	ref, ok := source.Reference()
	if !ok {
		t.Fatalf("source kind = %s, want reference", source.Kind())
	}
	if ref.Scheme != "hub" || ref.Path != "datasets/ylecun/mnist" {
		t.Errorf("ref = %+v", ref)
	}
}

func TestParseYAMLRejectsTimestamps(t *testing.T) {
	_, err := ParseYAML([]byte("created: 2026-01-15T12:00:00Z\n"))
	if !dataerr.IsKind(err, dataerr.UnhashableValue) {
		t.Errorf("err = %v, want unhashable-value", err)
	}
}

func TestParseYAMLRejectsDuplicateKeys(t *testing.T) {
	_, err := ParseYAML([]byte("a: 1\na: 2\n"))
	if err == nil {
		t.Error("duplicate keys accepted")
	}
}

func TestMappingRejectsReservedKeys(t *testing.T) {
	_, err := Mapping(Entry{Key: "$source", Value: String("impostor")})
	if !dataerr.IsKind(err, dataerr.UnhashableValue) {
		t.Errorf("err = %v, want unhashable-value", err)
	}
	_, err = Mapping(Entry{Key: "$anything", Value: Int(1)})
	if !dataerr.IsKind(err, dataerr.UnhashableValue) {
		t.Errorf("err = %v, want unhashable-value", err)
	}
}

func TestParseYAMLRejectsReservedKeys(t *testing.T) {
	_, err := ParseYAML([]byte("$source:\n  scheme: local\n  path: /data\n"))
	if !dataerr.IsKind(err, dataerr.UnhashableValue) {
		t.Errorf("err = %v, want unhashable-value for $-prefixed key", err)
	}
}

func TestParseYAMLEmptyDocument(t *testing.T) {
	tree, err := ParseYAML(nil)
	if err != nil {
		t.Fatal(err)
	}
	if tree.Kind() != KindMapping || tree.Len() != 0 {
		t.Errorf("empty document = kind %s len %d, want empty mapping", tree.Kind(), tree.Len())
	}
}

func TestEqualIgnoresMappingKeyOrder(t *testing.T) {
	a := MustMapping(
		Entry{Key: "x", Value: Int(1)},
		Entry{Key: "y", Value: Int(2)},
	)
	b := MustMapping(
		Entry{Key: "y", Value: Int(2)},
		Entry{Key: "x", Value: Int(1)},
	)
	if !Equal(a, b) {
		t.Error("mappings differing only in key order compare unequal")
	}
}

func TestEqualSequenceOrderSignificant(t *testing.T) {
	a := Sequence(Int(1), Int(2))
	b := Sequence(Int(2), Int(1))
	if Equal(a, b) {
		t.Error("sequences with different order compare equal")
	}
}

func TestCanonicalNormalizesIntegralFloats(t *testing.T) {
	intTree := MustMapping(Entry{Key: "shards", Value: Int(4)})
	floatTree := MustMapping(Entry{Key: "shards", Value: Float(4.0)})

	intCanonical, err := Canonical(intTree)
	if err != nil {
		t.Fatal(err)
	}
	floatCanonical, err := Canonical(floatTree)
	if err != nil {
		t.Fatal(err)
	}

	if !reflect.DeepEqual(intCanonical, floatCanonical) {
		t.Errorf("canonical forms differ: %#v vs %#v", intCanonical, floatCanonical)
	}
}

func TestCanonicalRejectsUnresolvedReference(t *testing.T) {
	tree := MustMapping(Entry{Key: "source", Value: Ref(Reference{Scheme: "local", Path: "/data"})})
	_, err := Canonical(tree)
	if !dataerr.IsKind(err, dataerr.UnhashableValue) {
		t.Errorf("err = %v, want unhashable-value", err)
	}
}

func TestCanonicalSourceDescriptorDigestWins(t *testing.T) {
	withDigest := Source(SourceDescriptor{
		Scheme: "s3", Path: "bucket/data.csv", Digest: "abc123", Size: 42, ModTime: 1000,
	})
	canonical, err := Canonical(withDigest)
	if err != nil {
		t.Fatal(err)
	}
	descriptor := canonical.(map[string]any)["$source"].(map[string]any)
	if _, hasSize := descriptor["size"]; hasSize {
		t.Error("size included despite digest being present")
	}
	if descriptor["digest"] != "abc123" {
		t.Errorf("digest = %v", descriptor["digest"])
	}
}

func TestEncodeYAMLRoundtrip(t *testing.T) {
	input := []byte("base: !ref local:///etc/base.yaml\nepochs: 10\n")
	tree, err := ParseYAML(input)
	if err != nil {
		t.Fatal(err)
	}
	encoded, err := EncodeYAML(tree)
	if err != nil {
		t.Fatal(err)
	}
	reparsed, err := ParseYAML(encoded)
	if err != nil {
		t.Fatalf("reparsing encoded YAML: %v", err)
	}
	if !Equal(tree, reparsed) {
		t.Errorf("roundtrip mismatch:\noriginal: %s\nencoded: %s", input, encoded)
	}
}

func TestParseReference(t *testing.T) {
	ref, err := ParseReference("s3://bucket/key")
	if err != nil {
		t.Fatal(err)
	}
	if ref.Scheme != "s3" || ref.Path != "bucket/key" {
		t.Errorf("ref = %+v", ref)
	}

	if _, err := ParseReference("no-scheme-here"); err == nil {
		t.Error("reference without scheme accepted")
	}
}
