// Copyright 2026 The Nanodata Authors
// SPDX-License-Identifier: Apache-2.0

package resolver

import (
	"context"
	"fmt"
	"io"
	"strings"

	"github.com/nanodata-io/nanodata/lib/backend"
	"github.com/nanodata-io/nanodata/lib/configtree"
	"github.com/nanodata-io/nanodata/lib/dataerr"
)

// baseKey is the mapping key that declares a layered config import.
const baseKey = "base"

// Resolver expands configuration trees against a backend registry.
// Safe for concurrent use: all state lives on the per-call resolution
// stack.
type Resolver struct {
	registry *backend.Registry
}

// New returns a resolver using the given backend registry.
func New(registry *backend.Registry) *Resolver {
	return &Resolver{registry: registry}
}

// Resolve walks the tree, layers in `base` imports, and replaces every
// remaining reference with a source descriptor. The result contains no
// Reference nodes and is ready for fingerprinting.
func (r *Resolver) Resolve(ctx context.Context, node *configtree.Node) (*configtree.Node, error) {
	return r.resolve(ctx, node, nil)
}

// LoadConfig fetches a configuration file through its backend and
// parses it. No resolution is performed; callers pass the result to
// Resolve.
func (r *Resolver) LoadConfig(ctx context.Context, ref configtree.Reference) (*configtree.Node, error) {
	b, err := r.registry.Resolve(ref)
	if err != nil {
		return nil, err
	}
	reader, err := b.OpenRead(ctx, ref.Path)
	if err != nil {
		return nil, err
	}
	defer reader.Close()

	data, err := io.ReadAll(reader)
	if err != nil {
		return nil, dataerr.Wrap(dataerr.SourceUnavailable, err).WithPath(ref.String())
	}
	tree, err := configtree.ParseYAML(data)
	if err != nil {
		return nil, fmt.Errorf("config %s: %w", ref, err)
	}
	return tree, nil
}

// resolve is the recursive worker. stack holds the URIs of configs
// currently being imported, outermost first.
func (r *Resolver) resolve(ctx context.Context, node *configtree.Node, stack []string) (*configtree.Node, error) {
	if err := ctx.Err(); err != nil {
		return nil, err
	}

	switch node.Kind() {
	case configtree.KindScalar, configtree.KindSource:
		return node, nil

	case configtree.KindReference:
		ref, _ := node.Reference()
		return r.resolveSource(ctx, ref)

	case configtree.KindSequence:
		children := make([]*configtree.Node, node.Len())
		for i := 0; i < node.Len(); i++ {
			resolved, err := r.resolve(ctx, node.Index(i), stack)
			if err != nil {
				return nil, err
			}
			children[i] = resolved
		}
		return configtree.Sequence(children...), nil

	case configtree.KindMapping:
		return r.resolveMapping(ctx, node, stack)

	default:
		return nil, fmt.Errorf("cannot resolve node kind %s", node.Kind())
	}
}

// resolveMapping handles the layered-override policy: a `base` key is
// imported and resolved first, then the mapping's own keys (resolved
// themselves) are overlaid on top.
func (r *Resolver) resolveMapping(ctx context.Context, node *configtree.Node, stack []string) (*configtree.Node, error) {
	baseNode, hasBase := node.Get(baseKey)

	entries := make([]configtree.Entry, 0, node.Len())
	for _, key := range node.Keys() {
		if key == baseKey {
			continue
		}
		child, _ := node.Get(key)
		resolved, err := r.resolve(ctx, child, stack)
		if err != nil {
			return nil, err
		}
		entries = append(entries, configtree.Entry{Key: key, Value: resolved})
	}
	overlay, err := configtree.Mapping(entries...)
	if err != nil {
		return nil, err
	}

	if !hasBase {
		return overlay, nil
	}

	base, err := r.resolveBase(ctx, baseNode, stack)
	if err != nil {
		return nil, err
	}
	return Merge(base, overlay), nil
}

// resolveBase imports and resolves the config a `base` key points at.
// The value may be a `!ref` node or a plain scheme://path string.
func (r *Resolver) resolveBase(ctx context.Context, baseNode *configtree.Node, stack []string) (*configtree.Node, error) {
	ref, isRef := baseNode.Reference()
	if !isRef {
		uri, isString := baseNode.StringValue()
		if !isString {
			return nil, fmt.Errorf("base must be a reference or scheme://path string, got %s",
				baseNode.Kind())
		}
		parsed, err := configtree.ParseReference(uri)
		if err != nil {
			return nil, fmt.Errorf("base: %w", err)
		}
		ref = parsed
	}

	uri := ref.String()
	for _, visited := range stack {
		if visited == uri {
			return nil, dataerr.New(dataerr.CyclicReference,
				"config import cycle: %s", strings.Join(append(stack, uri), " -> ")).
				WithPath(uri)
		}
	}

	imported, err := r.LoadConfig(ctx, ref)
	if err != nil {
		return nil, err
	}
	return r.resolve(ctx, imported, append(stack, uri))
}

// resolveSource replaces a raw-content reference with a source
// descriptor via the backend's Stat.
func (r *Resolver) resolveSource(ctx context.Context, ref configtree.Reference) (*configtree.Node, error) {
	b, err := r.registry.Resolve(ref)
	if err != nil {
		return nil, err
	}
	info, err := b.Stat(ctx, ref.Path)
	if err != nil {
		return nil, err
	}

	descriptor := configtree.SourceDescriptor{
		Scheme: ref.Scheme,
		Path:   ref.Path,
		Digest: info.Digest,
		Size:   info.Size,
	}
	if !info.ModTime.IsZero() {
		descriptor.ModTime = info.ModTime.Unix()
	}
	return configtree.Source(descriptor), nil
}

// Merge layers overlay on top of base. Child keys win on conflict;
// when both sides hold mappings the merge recurses key-by-key, any
// other kind pairing replaces wholesale. Base keys keep their declared
// order, with overlay-only keys appended in overlay order.
func Merge(base, overlay *configtree.Node) *configtree.Node {
	if base.Kind() != configtree.KindMapping || overlay.Kind() != configtree.KindMapping {
		return overlay
	}

	var entries []configtree.Entry
	for _, key := range base.Keys() {
		baseChild, _ := base.Get(key)
		if overlayChild, overridden := overlay.Get(key); overridden {
			entries = append(entries, configtree.Entry{Key: key, Value: Merge(baseChild, overlayChild)})
		} else {
			entries = append(entries, configtree.Entry{Key: key, Value: baseChild})
		}
	}
	for _, key := range overlay.Keys() {
		if _, inBase := base.Get(key); !inBase {
			child, _ := overlay.Get(key)
			entries = append(entries, configtree.Entry{Key: key, Value: child})
		}
	}
	return configtree.MustMapping(entries...)
}
