// Copyright 2026 The Nanodata Authors
// SPDX-License-Identifier: Apache-2.0

package configtree

import (
	"fmt"
	"math"
	"strconv"

	"gopkg.in/yaml.v3"

	"github.com/nanodata-io/nanodata/lib/dataerr"
)

// refTag marks a scalar as a reference to another config or raw
// resource: `source: !ref hub://datasets/ylecun/mnist`.
const refTag = "!ref"

// ParseYAML parses a YAML document into a configuration tree. Only the
// plain YAML data model is accepted; scalars outside the supported set
// (timestamps, binary) fail with an UnhashableValue error so that any
// tree that parses can also be fingerprinted.
func ParseYAML(data []byte) (*Node, error) {
	var doc yaml.Node
	if err := yaml.Unmarshal(data, &doc); err != nil {
		return nil, fmt.Errorf("parsing config YAML: %w", err)
	}
	if doc.Kind == 0 || len(doc.Content) == 0 {
		// Empty document: treat as an empty mapping, the identity
		// element of layered merging.
		return MustMapping(), nil
	}
	return fromYAML(doc.Content[0], make(map[*yaml.Node]bool))
}

// fromYAML converts one yaml.Node. The visiting set guards against
// recursive anchors (&a [*a]) which yaml.v3 represents as cycles in
// the node graph.
func fromYAML(n *yaml.Node, visiting map[*yaml.Node]bool) (*Node, error) {
	if visiting[n] {
		return nil, dataerr.New(dataerr.CyclicReference,
			"line %d: YAML anchor cycle", n.Line)
	}
	visiting[n] = true
	defer delete(visiting, n)

	switch n.Kind {
	case yaml.AliasNode:
		return fromYAML(n.Alias, visiting)

	case yaml.ScalarNode:
		return scalarFromYAML(n)

	case yaml.SequenceNode:
		children := make([]*Node, 0, len(n.Content))
		for _, item := range n.Content {
			child, err := fromYAML(item, visiting)
			if err != nil {
				return nil, err
			}
			children = append(children, child)
		}
		return Sequence(children...), nil

	case yaml.MappingNode:
		entries := make([]Entry, 0, len(n.Content)/2)
		for i := 0; i+1 < len(n.Content); i += 2 {
			keyNode := n.Content[i]
			if keyNode.Kind == yaml.AliasNode {
				keyNode = keyNode.Alias
			}
			if keyNode.Kind != yaml.ScalarNode || keyNode.Tag != "!!str" {
				return nil, dataerr.New(dataerr.UnhashableValue,
					"line %d: mapping key must be a string, got %s", keyNode.Line, keyNode.Tag)
			}
			value, err := fromYAML(n.Content[i+1], visiting)
			if err != nil {
				return nil, err
			}
			entries = append(entries, Entry{Key: keyNode.Value, Value: value})
		}
		node, err := Mapping(entries...)
		if err != nil {
			return nil, fmt.Errorf("line %d: %w", n.Line, err)
		}
		return node, nil

	default:
		return nil, fmt.Errorf("line %d: unsupported YAML node kind %d", n.Line, n.Kind)
	}
}

func scalarFromYAML(n *yaml.Node) (*Node, error) {
	switch n.Tag {
	case refTag:
		ref, err := ParseReference(n.Value)
		if err != nil {
			return nil, fmt.Errorf("line %d: %w", n.Line, err)
		}
		return Ref(ref), nil

	case "!!str":
		return String(n.Value), nil

	case "!!int":
		v, err := strconv.ParseInt(n.Value, 0, 64)
		if err != nil {
			return nil, fmt.Errorf("line %d: parsing integer %q: %w", n.Line, n.Value, err)
		}
		return Int(v), nil

	case "!!float":
		v, err := strconv.ParseFloat(n.Value, 64)
		if err != nil {
			// YAML's .inf/.nan spellings are handled by ParseFloat
			// only in their Go forms; translate the YAML forms.
			switch n.Value {
			case ".inf", "+.inf":
				return Float(math.Inf(1)), nil
			case "-.inf":
				return Float(math.Inf(-1)), nil
			case ".nan":
				return nil, dataerr.New(dataerr.UnhashableValue,
					"line %d: NaN has no stable identity", n.Line)
			}
			return nil, fmt.Errorf("line %d: parsing float %q: %w", n.Line, n.Value, err)
		}
		return Float(v), nil

	case "!!bool":
		var v bool
		if err := n.Decode(&v); err != nil {
			return nil, fmt.Errorf("line %d: parsing bool %q: %w", n.Line, n.Value, err)
		}
		return Bool(v), nil

	case "!!null":
		return Null(), nil

	default:
		return nil, dataerr.New(dataerr.UnhashableValue,
			"line %d: unsupported scalar type %s", n.Line, n.Tag)
	}
}

// EncodeYAML renders a configuration tree back to YAML, preserving
// mapping key order. Reference nodes round-trip as `!ref` scalars;
// resolved Source nodes render as mappings (they have no input
// syntax).
func EncodeYAML(node *Node) ([]byte, error) {
	encoded, err := toYAML(node)
	if err != nil {
		return nil, err
	}
	return yaml.Marshal(encoded)
}

func toYAML(node *Node) (*yaml.Node, error) {
	switch node.kind {
	case KindScalar:
		out := &yaml.Node{Kind: yaml.ScalarNode}
		switch v := node.scalar.(type) {
		case nil:
			out.Tag, out.Value = "!!null", "null"
		case string:
			out.Tag, out.Value = "!!str", v
		case int64:
			out.Tag, out.Value = "!!int", strconv.FormatInt(v, 10)
		case float64:
			out.Tag, out.Value = "!!float", strconv.FormatFloat(v, 'g', -1, 64)
		case bool:
			out.Tag, out.Value = "!!bool", strconv.FormatBool(v)
		default:
			return nil, fmt.Errorf("unsupported scalar type %T", v)
		}
		return out, nil

	case KindReference:
		return &yaml.Node{Kind: yaml.ScalarNode, Tag: refTag, Value: node.ref.String()}, nil

	case KindSource:
		return toYAML(sourceAsMapping(node.source))

	case KindSequence:
		out := &yaml.Node{Kind: yaml.SequenceNode, Tag: "!!seq"}
		for _, child := range node.seq {
			encoded, err := toYAML(child)
			if err != nil {
				return nil, err
			}
			out.Content = append(out.Content, encoded)
		}
		return out, nil

	case KindMapping:
		out := &yaml.Node{Kind: yaml.MappingNode, Tag: "!!map"}
		for _, key := range node.keys {
			encoded, err := toYAML(node.fields[key])
			if err != nil {
				return nil, err
			}
			out.Content = append(out.Content,
				&yaml.Node{Kind: yaml.ScalarNode, Tag: "!!str", Value: key},
				encoded)
		}
		return out, nil

	default:
		return nil, fmt.Errorf("unsupported node kind %s", node.kind)
	}
}

// sourceAsMapping renders a source descriptor as a plain mapping for
// display purposes.
func sourceAsMapping(d *SourceDescriptor) *Node {
	entries := []Entry{
		{Key: "scheme", Value: String(d.Scheme)},
		{Key: "path", Value: String(d.Path)},
	}
	if d.Digest != "" {
		entries = append(entries, Entry{Key: "digest", Value: String(d.Digest)})
	}
	if d.Size != 0 {
		entries = append(entries, Entry{Key: "size", Value: Int(d.Size)})
	}
	if d.ModTime != 0 {
		entries = append(entries, Entry{Key: "mtime", Value: Int(d.ModTime)})
	}
	return MustMapping(entries...)
}
