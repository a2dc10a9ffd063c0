// Copyright 2026 The Nanodata Authors
// SPDX-License-Identifier: Apache-2.0

package backend

import (
	"context"
	"io"
	"net/http"
	"net/http/httptest"
	"testing"

	"github.com/nanodata-io/nanodata/lib/dataerr"
)

// newTestHub starts a fake hub serving one dataset with two files.
func newTestHub(t *testing.T) *Hub {
	t.Helper()
	mux := http.NewServeMux()
	mux.HandleFunc("/datasets/acme/digits/resolve/main/train.csv",
		func(w http.ResponseWriter, r *http.Request) {
			w.Header().Set("Etag", `"abc123"`)
			w.Header().Set("Content-Length", "10")
			if r.Method == http.MethodHead {
				return
			}
			io.WriteString(w, "1,2\n3,4\n5,")
		})
	mux.HandleFunc("/api/datasets/acme/digits/tree/main",
		func(w http.ResponseWriter, r *http.Request) {
			io.WriteString(w, `[
				{"type":"file","path":"train.csv"},
				{"type":"file","path":"test.csv"},
				{"type":"directory","path":"aux"}
			]`)
		})
	server := httptest.NewServer(mux)
	t.Cleanup(server.Close)
	return NewHub(WithHubURL(server.URL), WithHubClient(server.Client()))
}

func TestHubStat(t *testing.T) {
	hub := newTestHub(t)
	info, err := hub.Stat(context.Background(), "datasets/acme/digits/train.csv")
	if err != nil {
		t.Fatal(err)
	}
	if info.Digest != "etag:abc123" {
		t.Errorf("digest = %q", info.Digest)
	}
	if info.Size != 10 {
		t.Errorf("size = %d, want 10", info.Size)
	}
}

func TestHubOpenRead(t *testing.T) {
	hub := newTestHub(t)
	reader, err := hub.OpenRead(context.Background(), "datasets/acme/digits/train.csv")
	if err != nil {
		t.Fatal(err)
	}
	defer reader.Close()
	content, err := io.ReadAll(reader)
	if err != nil {
		t.Fatal(err)
	}
	if string(content) != "1,2\n3,4\n5," {
		t.Errorf("content = %q", content)
	}
}

func TestHubList(t *testing.T) {
	hub := newTestHub(t)
	paths, err := hub.List(context.Background(), "datasets/acme/digits")
	if err != nil {
		t.Fatal(err)
	}
	want := []string{"datasets/acme/digits/test.csv", "datasets/acme/digits/train.csv"}
	if len(paths) != len(want) {
		t.Fatalf("paths = %v, want %v", paths, want)
	}
	for i := range want {
		if paths[i] != want[i] {
			t.Errorf("paths[%d] = %q, want %q", i, paths[i], want[i])
		}
	}
}

func TestHubMissingFile(t *testing.T) {
	hub := newTestHub(t)
	_, err := hub.Stat(context.Background(), "datasets/acme/digits/absent.csv")
	if !dataerr.IsKind(err, dataerr.SourceUnavailable) {
		t.Errorf("err = %v, want source-unavailable", err)
	}
}

func TestHubRejectsBadPath(t *testing.T) {
	hub := newTestHub(t)
	_, err := hub.Stat(context.Background(), "models/acme/digits/weights.bin")
	if !dataerr.IsKind(err, dataerr.SourceUnavailable) {
		t.Errorf("err = %v, want source-unavailable", err)
	}
}

func TestHubWriteReadOnly(t *testing.T) {
	hub := newTestHub(t)
	err := hub.Write(context.Background(), "datasets/acme/digits/new.csv", nil)
	if err == nil {
		t.Error("write to read-only backend succeeded")
	}
}
