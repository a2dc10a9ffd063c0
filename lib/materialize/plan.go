// Copyright 2026 The Nanodata Authors
// SPDX-License-Identifier: Apache-2.0

package materialize

import (
	"fmt"

	"github.com/nanodata-io/nanodata/lib/configtree"
	"github.com/nanodata-io/nanodata/lib/dataerr"
)

// Format selects the artifact's on-disk shape.
type Format string

const (
	// FormatRaw streams source bytes unmodified.
	FormatRaw Format = "raw"
	// FormatTable parses row-oriented input into columnar CBOR blocks.
	FormatTable Format = "table"
)

// Compression selects the per-file compression codec.
type Compression string

const (
	CompressionNone Compression = "none"
	CompressionLZ4  Compression = "lz4"
	CompressionZstd Compression = "zstd"
)

// Plan is the materialization recipe extracted from a resolved config.
type Plan struct {
	Source      configtree.SourceDescriptor
	Format      Format
	Compression Compression

	// ShardSize splits raw output into part files of at most this many
	// bytes. Zero means a single file.
	ShardSize int64

	// DropColumns removes the named columns from tabular output.
	DropColumns []string

	// SelectColumns keeps only the named columns. Applied before
	// DropColumns; empty means all columns.
	SelectColumns []string
}

// PlanFromConfig extracts the Plan from a resolved config tree. The
// tree must be fully resolved: an unresolved reference under "source"
// is a caller bug, not a recoverable condition.
func PlanFromConfig(resolved *configtree.Node) (Plan, error) {
	if resolved.Kind() != configtree.KindMapping {
		return Plan{}, dataerr.New(dataerr.MaterializationFailed,
			"config root is %s, want mapping", resolved.Kind())
	}

	sourceNode, ok := resolved.Get("source")
	if !ok {
		return Plan{}, dataerr.New(dataerr.MaterializationFailed,
			"config has no source key")
	}
	source, ok := sourceNode.SourceDescriptor()
	if !ok {
		return Plan{}, dataerr.New(dataerr.MaterializationFailed,
			"source key is %s, want a resolved source", sourceNode.Kind())
	}

	plan := Plan{
		Source:      source,
		Format:      FormatRaw,
		Compression: CompressionNone,
	}

	if node, ok := resolved.Get("format"); ok {
		value, err := stringField(node, "format")
		if err != nil {
			return Plan{}, err
		}
		switch Format(value) {
		case FormatRaw, FormatTable:
			plan.Format = Format(value)
		default:
			return Plan{}, dataerr.New(dataerr.MaterializationFailed,
				"unknown format %q", value)
		}
	}

	if node, ok := resolved.Get("compression"); ok {
		value, err := stringField(node, "compression")
		if err != nil {
			return Plan{}, err
		}
		switch Compression(value) {
		case CompressionNone, CompressionLZ4, CompressionZstd:
			plan.Compression = Compression(value)
		default:
			return Plan{}, dataerr.New(dataerr.MaterializationFailed,
				"unknown compression %q", value)
		}
	}

	if node, ok := resolved.Get("shard_size"); ok {
		size, isInt := node.IntValue()
		if !isInt || size < 0 {
			return Plan{}, dataerr.New(dataerr.MaterializationFailed,
				"shard_size must be a non-negative integer")
		}
		if plan.Format != FormatRaw && size > 0 {
			return Plan{}, dataerr.New(dataerr.MaterializationFailed,
				"shard_size applies only to raw format")
		}
		plan.ShardSize = size
	}

	var err error
	if plan.DropColumns, err = stringListField(resolved, "drop_columns"); err != nil {
		return Plan{}, err
	}
	if plan.SelectColumns, err = stringListField(resolved, "select_columns"); err != nil {
		return Plan{}, err
	}
	if (len(plan.DropColumns) > 0 || len(plan.SelectColumns) > 0) && plan.Format != FormatTable {
		return Plan{}, dataerr.New(dataerr.MaterializationFailed,
			"column selection applies only to table format")
	}

	return plan, nil
}

func stringField(node *configtree.Node, key string) (string, error) {
	value, ok := node.StringValue()
	if !ok {
		return "", dataerr.New(dataerr.MaterializationFailed,
			"%s must be a string, got %s", key, node.Kind())
	}
	return value, nil
}

func stringListField(mapping *configtree.Node, key string) ([]string, error) {
	node, ok := mapping.Get(key)
	if !ok {
		return nil, nil
	}
	if node.Kind() != configtree.KindSequence {
		return nil, dataerr.New(dataerr.MaterializationFailed,
			"%s must be a sequence of strings", key)
	}
	values := make([]string, 0, node.Len())
	for i := 0; i < node.Len(); i++ {
		value, ok := node.Index(i).StringValue()
		if !ok {
			return nil, fmt.Errorf("%s[%d] is not a string", key, i)
		}
		values = append(values, value)
	}
	return values, nil
}
