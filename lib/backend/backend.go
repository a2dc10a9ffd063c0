// Copyright 2026 The Nanodata Authors
// SPDX-License-Identifier: Apache-2.0

package backend

import (
	"context"
	"io"
	"sync"
	"time"

	"github.com/nanodata-io/nanodata/lib/configtree"
	"github.com/nanodata-io/nanodata/lib/dataerr"
)

// StatInfo describes a source object without reading its content.
type StatInfo struct {
	// Size is the content size in bytes.
	Size int64

	// ModTime is the last modification time, when the store tracks one.
	ModTime time.Time

	// Digest is a content digest in "<algorithm>:<value>" form when the
	// backend can provide one cheaply (or, for the local backend, by
	// streaming the file). Empty when unavailable; size and mtime then
	// serve as the change proxy.
	Digest string
}

// Backend is the storage capability interface. Implementations carry
// connection parameters only — no entity state.
//
// All methods honor context cancellation. Failures caused by the
// underlying store (network errors, missing objects) are returned as
// SourceUnavailable errors.
type Backend interface {
	// Scheme returns the URI scheme this backend serves ("local",
	// "s3", "hub").
	Scheme() string

	// OpenRead opens the object at path for streaming reads. The
	// caller must close the returned reader.
	OpenRead(ctx context.Context, path string) (io.ReadCloser, error)

	// Stat returns size, mtime, and a content digest when available.
	Stat(ctx context.Context, path string) (StatInfo, error)

	// List returns the paths of all objects under prefix, in
	// lexicographic order.
	List(ctx context.Context, prefix string) ([]string, error)

	// Write stores the content of r at path. Read-only backends return
	// an error.
	Write(ctx context.Context, path string, r io.Reader) error
}

// Registry maps storage schemes to backends. Registration happens at
// configuration-load time; lookups are concurrent and lock-free in the
// common path.
type Registry struct {
	mu       sync.RWMutex
	backends map[string]Backend
}

// NewRegistry returns an empty registry.
func NewRegistry() *Registry {
	return &Registry{backends: make(map[string]Backend)}
}

// Register adds a backend under the given scheme. Registering a scheme
// twice is a configuration bug and fails.
func (r *Registry) Register(scheme string, b Backend) error {
	if scheme == "" {
		return dataerr.New(dataerr.BackendNotFound, "cannot register empty scheme")
	}
	r.mu.Lock()
	defer r.mu.Unlock()
	if _, exists := r.backends[scheme]; exists {
		return dataerr.New(dataerr.BackendNotFound, "scheme %q already registered", scheme)
	}
	r.backends[scheme] = b
	return nil
}

// Lookup returns the backend registered for scheme, or a
// BackendNotFound error.
func (r *Registry) Lookup(scheme string) (Backend, error) {
	r.mu.RLock()
	b, ok := r.backends[scheme]
	r.mu.RUnlock()
	if !ok {
		return nil, dataerr.New(dataerr.BackendNotFound, "no backend registered for scheme %q", scheme)
	}
	return b, nil
}

// Resolve returns the backend serving a parsed reference.
func (r *Registry) Resolve(ref configtree.Reference) (Backend, error) {
	b, err := r.Lookup(ref.Scheme)
	if err != nil {
		var kinded *dataerr.Error
		if e, ok := err.(*dataerr.Error); ok {
			kinded = e.WithPath(ref.String())
			return nil, kinded
		}
		return nil, err
	}
	return b, nil
}

// Schemes returns the registered schemes in no particular order.
func (r *Registry) Schemes() []string {
	r.mu.RLock()
	defer r.mu.RUnlock()
	schemes := make([]string, 0, len(r.backends))
	for scheme := range r.backends {
		schemes = append(schemes, scheme)
	}
	return schemes
}

// unavailable wraps a store-level failure as SourceUnavailable,
// annotated with the source URI.
func unavailable(scheme, path string, err error) error {
	return dataerr.Wrap(dataerr.SourceUnavailable, err).WithPath(scheme + "://" + path)
}
