// Copyright 2026 The Nanodata Authors
// SPDX-License-Identifier: Apache-2.0

package fingerprint

import (
	"testing"

	"github.com/nanodata-io/nanodata/lib/configtree"
	"github.com/nanodata-io/nanodata/lib/dataerr"
)

func TestKeyOrderInvariance(t *testing.T) {
	a := configtree.MustMapping(
		configtree.Entry{Key: "epochs", Value: configtree.Int(10)},
		configtree.Entry{Key: "rate", Value: configtree.Float(0.5)},
		configtree.Entry{Key: "name", Value: configtree.String("mnist")},
	)
	b := configtree.MustMapping(
		configtree.Entry{Key: "name", Value: configtree.String("mnist")},
		configtree.Entry{Key: "rate", Value: configtree.Float(0.5)},
		configtree.Entry{Key: "epochs", Value: configtree.Int(10)},
	)

	fpA, err := Of(a)
	if err != nil {
		t.Fatal(err)
	}
	fpB, err := Of(b)
	if err != nil {
		t.Fatal(err)
	}
	if fpA != fpB {
		t.Errorf("fingerprints differ across key order: %s vs %s", fpA.Hex(), fpB.Hex())
	}
}

func TestSingleLeafSensitivity(t *testing.T) {
	base := configtree.MustMapping(
		configtree.Entry{Key: "epochs", Value: configtree.Int(10)},
		configtree.Entry{Key: "name", Value: configtree.String("mnist")},
	)
	changed := configtree.MustMapping(
		configtree.Entry{Key: "epochs", Value: configtree.Int(11)},
		configtree.Entry{Key: "name", Value: configtree.String("mnist")},
	)

	fpBase, err := Of(base)
	if err != nil {
		t.Fatal(err)
	}
	fpChanged, err := Of(changed)
	if err != nil {
		t.Fatal(err)
	}
	if fpBase == fpChanged {
		t.Error("single-leaf change did not change the fingerprint")
	}
}

func TestSequenceOrderSensitivity(t *testing.T) {
	a := configtree.Sequence(configtree.String("train"), configtree.String("test"))
	b := configtree.Sequence(configtree.String("test"), configtree.String("train"))

	fpA, _ := Of(a)
	fpB, _ := Of(b)
	if fpA == fpB {
		t.Error("sequence order is semantically meaningful but fingerprints match")
	}
}

func TestIntegralFloatNormalization(t *testing.T) {
	asInt := configtree.MustMapping(configtree.Entry{Key: "shards", Value: configtree.Int(4)})
	asFloat := configtree.MustMapping(configtree.Entry{Key: "shards", Value: configtree.Float(4.0)})

	fpInt, _ := Of(asInt)
	fpFloat, _ := Of(asFloat)
	if fpInt != fpFloat {
		t.Error("4 and 4.0 fingerprint differently")
	}
}

func TestUnresolvedReferenceFails(t *testing.T) {
	tree := configtree.MustMapping(configtree.Entry{
		Key:   "source",
		Value: configtree.Ref(configtree.Reference{Scheme: "local", Path: "/data"}),
	})
	_, err := Of(tree)
	if !dataerr.IsKind(err, dataerr.UnhashableValue) {
		t.Errorf("err = %v, want unhashable-value", err)
	}
}

func TestSourceDigestChangesFingerprint(t *testing.T) {
	first := configtree.Source(configtree.SourceDescriptor{
		Scheme: "s3", Path: "bucket/data.csv", Digest: "v1",
	})
	second := configtree.Source(configtree.SourceDescriptor{
		Scheme: "s3", Path: "bucket/data.csv", Digest: "v2",
	})

	fpFirst, _ := Of(first)
	fpSecond, _ := Of(second)
	if fpFirst == fpSecond {
		t.Error("changed source digest did not change the fingerprint")
	}
}

func TestSourceDescriptorCannotBeSpelledAsMapping(t *testing.T) {
	// A resolved source node has a well-defined fingerprint.
	genuine := configtree.MustMapping(configtree.Entry{
		Key: "source",
		Value: configtree.Source(configtree.SourceDescriptor{
			Scheme: "local", Path: "/data", Digest: "sha256:ab",
		}),
	})
	if _, err := Of(genuine); err != nil {
		t.Fatal(err)
	}

	// A user mapping trying to spell out the same canonical bytes is
	// rejected at construction: "$"-prefixed keys are reserved, so the
	// two trees can never collide.
	descriptor := configtree.MustMapping(
		configtree.Entry{Key: "scheme", Value: configtree.String("local")},
		configtree.Entry{Key: "path", Value: configtree.String("/data")},
		configtree.Entry{Key: "digest", Value: configtree.String("sha256:ab")},
	)
	_, err := configtree.Mapping(configtree.Entry{Key: "$source", Value: descriptor})
	if !dataerr.IsKind(err, dataerr.UnhashableValue) {
		t.Errorf("err = %v, want unhashable-value for reserved key", err)
	}
}

func TestHexRoundtrip(t *testing.T) {
	fp, err := Of(configtree.String("hello"))
	if err != nil {
		t.Fatal(err)
	}

	parsed, err := Parse(fp.Hex())
	if err != nil {
		t.Fatal(err)
	}
	if parsed != fp {
		t.Errorf("hex roundtrip mismatch: %s vs %s", parsed.Hex(), fp.Hex())
	}

	if len(fp.Short()) != 12 {
		t.Errorf("Short() length = %d, want 12", len(fp.Short()))
	}
}

func TestParseRejectsBadInput(t *testing.T) {
	if _, err := Parse("zz"); err == nil {
		t.Error("non-hex input accepted")
	}
	if _, err := Parse("abcd"); err == nil {
		t.Error("short input accepted")
	}
}
