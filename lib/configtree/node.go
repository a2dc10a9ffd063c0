// Copyright 2026 The Nanodata Authors
// SPDX-License-Identifier: Apache-2.0

package configtree

import (
	"fmt"
	"strings"

	"github.com/nanodata-io/nanodata/lib/dataerr"
)

// Kind identifies which arm of the Node union is populated.
type Kind uint8

const (
	// KindScalar is a string, int64, float64, bool, or null leaf.
	KindScalar Kind = iota
	// KindSequence is an ordered list of nodes.
	KindSequence
	// KindMapping is an ordered set of string-keyed nodes.
	KindMapping
	// KindReference is an unresolved pointer to another config or raw
	// resource (scheme + path).
	KindReference
	// KindSource is a resolved source descriptor. Only the resolver
	// produces Source nodes.
	KindSource
)

// String returns the lowercase kind name.
func (k Kind) String() string {
	switch k {
	case KindScalar:
		return "scalar"
	case KindSequence:
		return "sequence"
	case KindMapping:
		return "mapping"
	case KindReference:
		return "reference"
	case KindSource:
		return "source"
	default:
		return fmt.Sprintf("unknown(%d)", uint8(k))
	}
}

// Reference is a pointer to another configuration or raw resource,
// identified by a backend scheme and a backend-specific path.
type Reference struct {
	// Scheme selects the storage backend ("local", "s3", "hub").
	Scheme string
	// Path is the backend-specific path or identifier.
	Path string
}

// String returns the canonical scheme://path form.
func (r Reference) String() string {
	return r.Scheme + "://" + r.Path
}

// ParseReference parses a scheme://path string.
func ParseReference(uri string) (Reference, error) {
	scheme, path, found := strings.Cut(uri, "://")
	if !found || scheme == "" {
		return Reference{}, fmt.Errorf("reference %q is not of the form scheme://path", uri)
	}
	return Reference{Scheme: scheme, Path: path}, nil
}

// SourceDescriptor is the resolved form of a Reference: the backend
// identity of the content plus whatever content identity the backend
// could provide at resolution time. The descriptor participates in the
// fingerprint, so remote content changes (new digest, new size/mtime)
// change the artifact identity.
type SourceDescriptor struct {
	// Scheme is the backend scheme the content lives behind.
	Scheme string `cbor:"scheme"`

	// Path is the canonical backend path.
	Path string `cbor:"path"`

	// Digest is the content digest reported by the backend, when it has
	// one (hex or backend-native form). Empty when unavailable.
	Digest string `cbor:"digest,omitempty"`

	// Size is the content size in bytes, or 0 when unknown.
	Size int64 `cbor:"size,omitempty"`

	// ModTime is the source modification time as Unix seconds. Used as
	// a change proxy only when Digest is empty.
	ModTime int64 `cbor:"mtime,omitempty"`
}

// URI returns the scheme://path form of the descriptor.
func (d SourceDescriptor) URI() string {
	return d.Scheme + "://" + d.Path
}

// Node is one vertex of an immutable configuration tree. The zero
// value is a null scalar.
type Node struct {
	kind   Kind
	scalar any      // string | int64 | float64 | bool | nil
	seq    []*Node
	keys   []string
	fields map[string]*Node
	ref    Reference
	source *SourceDescriptor
}

// Null returns the null scalar node.
func Null() *Node {
	return &Node{kind: KindScalar, scalar: nil}
}

// String returns a string scalar node.
func String(v string) *Node {
	return &Node{kind: KindScalar, scalar: v}
}

// Int returns an integer scalar node.
func Int(v int64) *Node {
	return &Node{kind: KindScalar, scalar: v}
}

// Float returns a float scalar node.
func Float(v float64) *Node {
	return &Node{kind: KindScalar, scalar: v}
}

// Bool returns a boolean scalar node.
func Bool(v bool) *Node {
	return &Node{kind: KindScalar, scalar: v}
}

// Ref returns a reference node.
func Ref(r Reference) *Node {
	return &Node{kind: KindReference, ref: r}
}

// Source returns a resolved source node. The descriptor is copied.
func Source(d SourceDescriptor) *Node {
	return &Node{kind: KindSource, source: &d}
}

// Sequence returns a sequence node over the given children. The slice
// is copied; the children themselves are shared (they are immutable).
func Sequence(children ...*Node) *Node {
	copied := make([]*Node, len(children))
	copy(copied, children)
	return &Node{kind: KindSequence, seq: copied}
}

// Entry is a key/value pair used to build mappings with a defined
// order.
type Entry struct {
	Key   string
	Value *Node
}

// Mapping returns a mapping node from ordered entries. Duplicate keys
// are an error, as are keys beginning with "$": that prefix is
// reserved for the canonical encoding's own markers, so a user mapping
// can never spell out the same bytes as a resolved Source node.
func Mapping(entries ...Entry) (*Node, error) {
	node := &Node{
		kind:   KindMapping,
		keys:   make([]string, 0, len(entries)),
		fields: make(map[string]*Node, len(entries)),
	}
	for _, entry := range entries {
		if strings.HasPrefix(entry.Key, "$") {
			return nil, dataerr.New(dataerr.UnhashableValue,
				"mapping key %q: keys beginning with $ are reserved", entry.Key)
		}
		if _, exists := node.fields[entry.Key]; exists {
			return nil, fmt.Errorf("duplicate mapping key %q", entry.Key)
		}
		node.keys = append(node.keys, entry.Key)
		node.fields[entry.Key] = entry.Value
	}
	return node, nil
}

// MustMapping is Mapping for statically-known keys; panics on
// duplicates. Intended for tests and literals.
func MustMapping(entries ...Entry) *Node {
	node, err := Mapping(entries...)
	if err != nil {
		panic("configtree: " + err.Error())
	}
	return node
}

// Kind returns which arm of the union this node is.
func (n *Node) Kind() Kind {
	return n.kind
}

// IsNull reports whether the node is the null scalar.
func (n *Node) IsNull() bool {
	return n.kind == KindScalar && n.scalar == nil
}

// StringValue returns the string scalar value, if this is one.
func (n *Node) StringValue() (string, bool) {
	v, ok := n.scalar.(string)
	return v, ok && n.kind == KindScalar
}

// IntValue returns the integer scalar value, if this is one.
func (n *Node) IntValue() (int64, bool) {
	v, ok := n.scalar.(int64)
	return v, ok && n.kind == KindScalar
}

// FloatValue returns the float scalar value, if this is one.
func (n *Node) FloatValue() (float64, bool) {
	v, ok := n.scalar.(float64)
	return v, ok && n.kind == KindScalar
}

// BoolValue returns the boolean scalar value, if this is one.
func (n *Node) BoolValue() (bool, bool) {
	v, ok := n.scalar.(bool)
	return v, ok && n.kind == KindScalar
}

// ScalarValue returns the raw scalar value (string, int64, float64,
// bool, or nil) and whether the node is a scalar at all.
func (n *Node) ScalarValue() (any, bool) {
	return n.scalar, n.kind == KindScalar
}

// Len returns the number of children of a sequence or mapping, and 0
// for any other kind.
func (n *Node) Len() int {
	switch n.kind {
	case KindSequence:
		return len(n.seq)
	case KindMapping:
		return len(n.keys)
	default:
		return 0
	}
}

// Index returns the i'th child of a sequence. Panics if out of range
// or not a sequence, matching slice semantics.
func (n *Node) Index(i int) *Node {
	if n.kind != KindSequence {
		panic("configtree: Index on " + n.kind.String() + " node")
	}
	return n.seq[i]
}

// Keys returns the mapping keys in their declared order. The returned
// slice is a copy.
func (n *Node) Keys() []string {
	if n.kind != KindMapping {
		return nil
	}
	copied := make([]string, len(n.keys))
	copy(copied, n.keys)
	return copied
}

// Get returns the child for a mapping key.
func (n *Node) Get(key string) (*Node, bool) {
	if n.kind != KindMapping {
		return nil, false
	}
	child, ok := n.fields[key]
	return child, ok
}

// Reference returns the reference of a KindReference node.
func (n *Node) Reference() (Reference, bool) {
	return n.ref, n.kind == KindReference
}

// SourceDescriptor returns the descriptor of a KindSource node. The
// returned value is a copy.
func (n *Node) SourceDescriptor() (SourceDescriptor, bool) {
	if n.kind != KindSource {
		return SourceDescriptor{}, false
	}
	return *n.source, true
}

// Equal reports deep value equality. Mapping key order is ignored
// (mappings are ordered sets; order is display-only), sequence order
// is significant.
func Equal(a, b *Node) bool {
	if a.kind != b.kind {
		return false
	}
	switch a.kind {
	case KindScalar:
		return a.scalar == b.scalar
	case KindSequence:
		if len(a.seq) != len(b.seq) {
			return false
		}
		for i := range a.seq {
			if !Equal(a.seq[i], b.seq[i]) {
				return false
			}
		}
		return true
	case KindMapping:
		if len(a.keys) != len(b.keys) {
			return false
		}
		for key, aChild := range a.fields {
			bChild, ok := b.fields[key]
			if !ok || !Equal(aChild, bChild) {
				return false
			}
		}
		return true
	case KindReference:
		return a.ref == b.ref
	case KindSource:
		return *a.source == *b.source
	default:
		return false
	}
}
