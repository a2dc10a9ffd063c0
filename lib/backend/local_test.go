// Copyright 2026 The Nanodata Authors
// SPDX-License-Identifier: Apache-2.0

package backend

import (
	"context"
	"io"
	"os"
	"path/filepath"
	"strings"
	"testing"

	"github.com/nanodata-io/nanodata/lib/dataerr"
)

func TestLocalStatDigest(t *testing.T) {
	root := t.TempDir()
	content := []byte("column_a,column_b\n1,2\n")
	if err := os.WriteFile(filepath.Join(root, "data.csv"), content, 0o644); err != nil {
		t.Fatal(err)
	}

	local := NewLocal(root)
	info, err := local.Stat(context.Background(), "data.csv")
	if err != nil {
		t.Fatal(err)
	}

	if info.Size != int64(len(content)) {
		t.Errorf("size = %d, want %d", info.Size, len(content))
	}
	if !strings.HasPrefix(info.Digest, "sha256:") {
		t.Errorf("digest = %q, want sha256 prefix", info.Digest)
	}

	// Same content, same digest.
	if err := os.WriteFile(filepath.Join(root, "copy.csv"), content, 0o644); err != nil {
		t.Fatal(err)
	}
	copyInfo, err := local.Stat(context.Background(), "copy.csv")
	if err != nil {
		t.Fatal(err)
	}
	if copyInfo.Digest != info.Digest {
		t.Error("identical content produced different digests")
	}
}

func TestLocalOpenReadMissing(t *testing.T) {
	local := NewLocal(t.TempDir())
	_, err := local.OpenRead(context.Background(), "absent.csv")
	if !dataerr.IsKind(err, dataerr.SourceUnavailable) {
		t.Errorf("err = %v, want source-unavailable", err)
	}
}

func TestLocalRejectsRootEscape(t *testing.T) {
	local := NewLocal(t.TempDir())
	_, err := local.Stat(context.Background(), "../../etc/passwd")
	if !dataerr.IsKind(err, dataerr.SourceUnavailable) {
		t.Errorf("err = %v, want source-unavailable", err)
	}
}

func TestLocalWriteAndList(t *testing.T) {
	root := t.TempDir()
	local := NewLocal(root)
	ctx := context.Background()

	if err := local.Write(ctx, "out/part-00001", strings.NewReader("alpha")); err != nil {
		t.Fatal(err)
	}
	if err := local.Write(ctx, "out/part-00002", strings.NewReader("beta")); err != nil {
		t.Fatal(err)
	}

	paths, err := local.List(ctx, "out")
	if err != nil {
		t.Fatal(err)
	}
	want := []string{"out/part-00001", "out/part-00002"}
	if len(paths) != len(want) {
		t.Fatalf("paths = %v, want %v", paths, want)
	}
	for i := range want {
		if paths[i] != want[i] {
			t.Errorf("paths[%d] = %q, want %q", i, paths[i], want[i])
		}
	}

	reader, err := local.OpenRead(ctx, "out/part-00001")
	if err != nil {
		t.Fatal(err)
	}
	defer reader.Close()
	content, err := io.ReadAll(reader)
	if err != nil {
		t.Fatal(err)
	}
	if string(content) != "alpha" {
		t.Errorf("content = %q", content)
	}
}

func TestRegistryLookup(t *testing.T) {
	registry := NewRegistry()
	local := NewLocal(t.TempDir())
	if err := registry.Register("local", local); err != nil {
		t.Fatal(err)
	}

	backend, err := registry.Lookup("local")
	if err != nil {
		t.Fatal(err)
	}
	if backend != Backend(local) {
		t.Error("Lookup returned a different backend")
	}

	_, err = registry.Lookup("gopher")
	if !dataerr.IsKind(err, dataerr.BackendNotFound) {
		t.Errorf("err = %v, want backend-not-found", err)
	}
}

func TestRegistryRejectsDuplicateScheme(t *testing.T) {
	registry := NewRegistry()
	if err := registry.Register("local", NewLocal("")); err != nil {
		t.Fatal(err)
	}
	if err := registry.Register("local", NewLocal("")); err == nil {
		t.Error("duplicate registration accepted")
	}
}
