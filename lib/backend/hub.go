// Copyright 2026 The Nanodata Authors
// SPDX-License-Identifier: Apache-2.0

package backend

import (
	"context"
	"encoding/json"
	"fmt"
	"io"
	"net/http"
	"sort"
	"strconv"
	"strings"
	"time"
)

// DefaultHubURL is the Hugging Face hub endpoint.
const DefaultHubURL = "https://huggingface.co"

// Hub serves dataset files from a Hugging Face style hub over its
// HTTPS resolve and tree APIs. Read-only.
//
// Paths name a repository and optionally a file within it:
//
//	datasets/<owner>/<name>            (repository, for List)
//	datasets/<owner>/<name>/<file>     (file, for OpenRead/Stat)
//
// A revision can be pinned with an "@<revision>" suffix on the
// repository name; the default is "main". Pinning a revision is the
// only way to make hub sources fully reproducible — "main" sources
// change identity when the repository does, which is exactly what the
// fingerprint is supposed to capture.
type Hub struct {
	baseURL string
	token   string
	client  *http.Client
}

// HubOption configures a Hub backend.
type HubOption func(*Hub)

// WithHubURL points the backend at a different hub endpoint (mirrors,
// test servers).
func WithHubURL(baseURL string) HubOption {
	return func(h *Hub) { h.baseURL = strings.TrimRight(baseURL, "/") }
}

// WithHubToken sets the bearer token for gated or private datasets.
func WithHubToken(token string) HubOption {
	return func(h *Hub) { h.token = token }
}

// WithHubClient overrides the HTTP client (timeouts, proxies, tests).
func WithHubClient(client *http.Client) HubOption {
	return func(h *Hub) { h.client = client }
}

// NewHub returns a hub backend with the given options.
func NewHub(options ...HubOption) *Hub {
	hub := &Hub{
		baseURL: DefaultHubURL,
		client:  &http.Client{Timeout: 5 * time.Minute},
	}
	for _, option := range options {
		option(hub)
	}
	return hub
}

// Scheme implements Backend.
func (h *Hub) Scheme() string { return "hub" }

// hubLocation is a parsed hub path.
type hubLocation struct {
	repoType string // "datasets"
	repo     string // "<owner>/<name>"
	revision string
	file     string // may be empty
}

func (h *Hub) parsePath(path string) (hubLocation, error) {
	parts := strings.SplitN(path, "/", 4)
	if len(parts) < 3 || parts[0] != "datasets" {
		return hubLocation{}, fmt.Errorf(
			"hub path %q must be datasets/<owner>/<name>[/<file>]", path)
	}
	location := hubLocation{
		repoType: parts[0],
		repo:     parts[1] + "/" + parts[2],
		revision: "main",
	}
	if repo, revision, pinned := strings.Cut(location.repo, "@"); pinned {
		location.repo, location.revision = repo, revision
	}
	if len(parts) == 4 {
		location.file = parts[3]
	}
	return location, nil
}

func (h *Hub) resolveURL(location hubLocation) string {
	return fmt.Sprintf("%s/%s/%s/resolve/%s/%s",
		h.baseURL, location.repoType, location.repo, location.revision, location.file)
}

func (h *Hub) request(ctx context.Context, method, url string) (*http.Response, error) {
	request, err := http.NewRequestWithContext(ctx, method, url, nil)
	if err != nil {
		return nil, err
	}
	if h.token != "" {
		request.Header.Set("Authorization", "Bearer "+h.token)
	}
	return h.client.Do(request)
}

// OpenRead implements Backend.
func (h *Hub) OpenRead(ctx context.Context, path string) (io.ReadCloser, error) {
	location, err := h.parsePath(path)
	if err != nil {
		return nil, unavailable(h.Scheme(), path, err)
	}
	if location.file == "" {
		return nil, unavailable(h.Scheme(), path, fmt.Errorf("path names a repository, not a file"))
	}

	response, err := h.request(ctx, http.MethodGet, h.resolveURL(location))
	if err != nil {
		return nil, unavailable(h.Scheme(), path, err)
	}
	if response.StatusCode != http.StatusOK {
		response.Body.Close()
		return nil, unavailable(h.Scheme(), path,
			fmt.Errorf("hub returned %s", response.Status))
	}
	return response.Body, nil
}

// Stat implements Backend. The hub reports a content digest through
// the ETag headers: X-Linked-Etag carries the LFS object's SHA256 for
// large files, Etag the blob hash for small ones.
func (h *Hub) Stat(ctx context.Context, path string) (StatInfo, error) {
	location, err := h.parsePath(path)
	if err != nil {
		return StatInfo{}, unavailable(h.Scheme(), path, err)
	}
	if location.file == "" {
		return StatInfo{}, unavailable(h.Scheme(), path, fmt.Errorf("path names a repository, not a file"))
	}

	response, err := h.request(ctx, http.MethodHead, h.resolveURL(location))
	if err != nil {
		return StatInfo{}, unavailable(h.Scheme(), path, err)
	}
	defer response.Body.Close()
	if response.StatusCode != http.StatusOK {
		return StatInfo{}, unavailable(h.Scheme(), path,
			fmt.Errorf("hub returned %s", response.Status))
	}

	info := StatInfo{}
	if etag := firstHeader(response.Header, "X-Linked-Etag", "Etag"); etag != "" {
		info.Digest = "etag:" + strings.Trim(etag, `"W/`)
	}
	if size := firstHeader(response.Header, "X-Linked-Size", "Content-Length"); size != "" {
		info.Size, _ = strconv.ParseInt(size, 10, 64)
	}
	if modified := response.Header.Get("Last-Modified"); modified != "" {
		if t, err := http.ParseTime(modified); err == nil {
			info.ModTime = t
		}
	}
	return info, nil
}

// hubTreeEntry is one record of the hub tree API response.
type hubTreeEntry struct {
	Type string `json:"type"` // "file" or "directory"
	Path string `json:"path"`
}

// List implements Backend. Lists files in a repository (optionally
// under a subdirectory) via the tree API.
func (h *Hub) List(ctx context.Context, prefix string) ([]string, error) {
	location, err := h.parsePath(prefix)
	if err != nil {
		return nil, unavailable(h.Scheme(), prefix, err)
	}

	url := fmt.Sprintf("%s/api/%s/%s/tree/%s",
		h.baseURL, location.repoType, location.repo, location.revision)
	if location.file != "" {
		url += "/" + location.file
	}
	url += "?recursive=true"

	response, err := h.request(ctx, http.MethodGet, url)
	if err != nil {
		return nil, unavailable(h.Scheme(), prefix, err)
	}
	defer response.Body.Close()
	if response.StatusCode != http.StatusOK {
		return nil, unavailable(h.Scheme(), prefix,
			fmt.Errorf("hub returned %s", response.Status))
	}

	var entries []hubTreeEntry
	if err := json.NewDecoder(response.Body).Decode(&entries); err != nil {
		return nil, unavailable(h.Scheme(), prefix, fmt.Errorf("decoding tree response: %w", err))
	}

	repoPrefix := location.repoType + "/" + location.repo
	if location.revision != "main" {
		repoPrefix = location.repoType + "/" + location.repo + "@" + location.revision
	}

	var paths []string
	for _, entry := range entries {
		if entry.Type != "file" {
			continue
		}
		paths = append(paths, repoPrefix+"/"+entry.Path)
	}
	sort.Strings(paths)
	return paths, nil
}

// Write implements Backend. The hub backend is read-only.
func (h *Hub) Write(ctx context.Context, path string, r io.Reader) error {
	return unavailable(h.Scheme(), path, fmt.Errorf("hub backend is read-only"))
}

func firstHeader(header http.Header, names ...string) string {
	for _, name := range names {
		if value := header.Get(name); value != "" {
			return value
		}
	}
	return ""
}
