// Copyright 2026 The Nanodata Authors
// SPDX-License-Identifier: Apache-2.0

package resolver

import (
	"context"
	"os"
	"path/filepath"
	"testing"

	"github.com/nanodata-io/nanodata/lib/backend"
	"github.com/nanodata-io/nanodata/lib/configtree"
	"github.com/nanodata-io/nanodata/lib/dataerr"
	"github.com/nanodata-io/nanodata/lib/fingerprint"
)

// newTestResolver returns a resolver over a local backend rooted at a
// fresh temp dir, plus the root for writing fixture files.
func newTestResolver(t *testing.T) (*Resolver, string) {
	t.Helper()
	root := t.TempDir()
	registry := backend.NewRegistry()
	if err := registry.Register("local", backend.NewLocal(root)); err != nil {
		t.Fatal(err)
	}
	return New(registry), root
}

func writeFixture(t *testing.T, root, name, content string) {
	t.Helper()
	path := filepath.Join(root, name)
	if err := os.MkdirAll(filepath.Dir(path), 0o755); err != nil {
		t.Fatal(err)
	}
	if err := os.WriteFile(path, []byte(content), 0o644); err != nil {
		t.Fatal(err)
	}
}

func TestResolveReplacesReferenceWithSource(t *testing.T) {
	resolver, root := newTestResolver(t)
	writeFixture(t, root, "data.csv", "a,b\n1,2\n")

	tree, err := configtree.ParseYAML([]byte("source: !ref local://data.csv\n"))
	if err != nil {
		t.Fatal(err)
	}

	resolved, err := resolver.Resolve(context.Background(), tree)
	if err != nil {
		t.Fatal(err)
	}

	source, ok := resolved.Get("source")
	if !ok {
		t.Fatal("source key missing after resolution")
	}
	descriptor, ok := source.SourceDescriptor()
	if !ok {
		t.Fatalf("source kind = %s, want source", source.Kind())
	}
	if descriptor.Scheme != "local" || descriptor.Path != "data.csv" {
		t.Errorf("descriptor = %+v", descriptor)
	}
	if descriptor.Digest == "" {
		t.Error("local source missing content digest")
	}
}

func TestLayeredOverride(t *testing.T) {
	resolver, root := newTestResolver(t)
	writeFixture(t, root, "base.yaml", `
model:
  depth: 4
  width: 128
epochs: 10
`)

	child, err := configtree.ParseYAML([]byte(`
base: !ref local://base.yaml
model:
  width: 256
`))
	if err != nil {
		t.Fatal(err)
	}

	resolved, err := resolver.Resolve(context.Background(), child)
	if err != nil {
		t.Fatal(err)
	}

	model, _ := resolved.Get("model")
	width, _ := model.Get("width")
	if v, _ := width.IntValue(); v != 256 {
		t.Errorf("width = %d, want 256 (child wins)", v)
	}
	depth, _ := model.Get("depth")
	if v, _ := depth.IntValue(); v != 4 {
		t.Errorf("depth = %d, want 4 (inherited, merged key-by-key)", v)
	}
	epochs, _ := resolved.Get("epochs")
	if v, _ := epochs.IntValue(); v != 10 {
		t.Errorf("epochs = %d, want 10 (inherited)", v)
	}
	if _, hasBase := resolved.Get("base"); hasBase {
		t.Error("base key survived resolution")
	}
}

func TestLayeringIsAssociative(t *testing.T) {
	resolver, root := newTestResolver(t)
	writeFixture(t, root, "a.yaml", "x: 1\ny: 1\nz: 1\n")
	writeFixture(t, root, "b.yaml", "base: !ref local://a.yaml\ny: 2\n")

	// Stack c on b on a via imports.
	chained, err := configtree.ParseYAML([]byte("base: !ref local://b.yaml\nz: 3\n"))
	if err != nil {
		t.Fatal(err)
	}
	resolvedChained, err := resolver.Resolve(context.Background(), chained)
	if err != nil {
		t.Fatal(err)
	}

	// Same layers, merged directly.
	a, _ := configtree.ParseYAML([]byte("x: 1\ny: 1\nz: 1\n"))
	b, _ := configtree.ParseYAML([]byte("y: 2\n"))
	c, _ := configtree.ParseYAML([]byte("z: 3\n"))
	direct := Merge(Merge(a, b), c)

	if !configtree.Equal(resolvedChained, direct) {
		t.Error("chained imports and direct merge disagree")
	}
}

func TestCyclicImportFails(t *testing.T) {
	resolver, root := newTestResolver(t)
	writeFixture(t, root, "a.yaml", "base: !ref local://b.yaml\nx: 1\n")
	writeFixture(t, root, "b.yaml", "base: !ref local://a.yaml\ny: 2\n")

	tree, err := configtree.ParseYAML([]byte("base: !ref local://a.yaml\n"))
	if err != nil {
		t.Fatal(err)
	}

	_, err = resolver.Resolve(context.Background(), tree)
	if !dataerr.IsKind(err, dataerr.CyclicReference) {
		t.Errorf("err = %v, want cyclic-reference", err)
	}
}

func TestSelfImportFails(t *testing.T) {
	resolver, root := newTestResolver(t)
	writeFixture(t, root, "self.yaml", "base: !ref local://self.yaml\n")

	tree, _ := configtree.ParseYAML([]byte("base: !ref local://self.yaml\n"))
	_, err := resolver.Resolve(context.Background(), tree)
	if !dataerr.IsKind(err, dataerr.CyclicReference) {
		t.Errorf("err = %v, want cyclic-reference", err)
	}
}

func TestUnregisteredSchemeFails(t *testing.T) {
	resolver, _ := newTestResolver(t)
	tree, _ := configtree.ParseYAML([]byte("source: !ref gopher://hole/data\n"))

	_, err := resolver.Resolve(context.Background(), tree)
	if !dataerr.IsKind(err, dataerr.BackendNotFound) {
		t.Errorf("err = %v, want backend-not-found", err)
	}
}

func TestBaseAcceptsPlainString(t *testing.T) {
	resolver, root := newTestResolver(t)
	writeFixture(t, root, "base.yaml", "x: 1\n")

	tree, _ := configtree.ParseYAML([]byte("base: local://base.yaml\ny: 2\n"))
	resolved, err := resolver.Resolve(context.Background(), tree)
	if err != nil {
		t.Fatal(err)
	}
	x, _ := resolved.Get("x")
	if v, _ := x.IntValue(); v != 1 {
		t.Errorf("x = %d, want 1", v)
	}
}

func TestResolutionIsStable(t *testing.T) {
	resolver, root := newTestResolver(t)
	writeFixture(t, root, "data.csv", "a,b\n1,2\n")
	writeFixture(t, root, "base.yaml", "source: !ref local://data.csv\nepochs: 10\n")

	tree, _ := configtree.ParseYAML([]byte("base: !ref local://base.yaml\nepochs: 20\n"))

	first, err := resolver.Resolve(context.Background(), tree)
	if err != nil {
		t.Fatal(err)
	}
	second, err := resolver.Resolve(context.Background(), tree)
	if err != nil {
		t.Fatal(err)
	}

	if !configtree.Equal(first, second) {
		t.Error("same input resolved to different trees")
	}

	fpFirst, err := fingerprint.Of(first)
	if err != nil {
		t.Fatal(err)
	}
	fpSecond, err := fingerprint.Of(second)
	if err != nil {
		t.Fatal(err)
	}
	if fpFirst != fpSecond {
		t.Error("stable resolution produced unstable fingerprints")
	}
}

func TestMergeSequencesReplaceWholesale(t *testing.T) {
	base := configtree.MustMapping(configtree.Entry{
		Key: "splits", Value: configtree.Sequence(configtree.String("train"), configtree.String("test")),
	})
	overlay := configtree.MustMapping(configtree.Entry{
		Key: "splits", Value: configtree.Sequence(configtree.String("validation")),
	})

	merged := Merge(base, overlay)
	splits, _ := merged.Get("splits")
	if splits.Len() != 1 {
		t.Errorf("splits length = %d, want 1 (sequences are not concatenated)", splits.Len())
	}
}
