// Copyright 2026 The Nanodata Authors
// SPDX-License-Identifier: Apache-2.0

package materialize

import (
	"context"
	"errors"
	"fmt"
	"io"
	"log/slog"
	"os"

	"github.com/nanodata-io/nanodata/lib/backend"
	"github.com/nanodata-io/nanodata/lib/dataerr"
)

// rawFileName is the single-file name for unsharded raw output.
const rawFileName = "data.bin"

// Sink is where materialized files land. The cache's write handle
// satisfies this.
type Sink interface {
	Create(name string) (*os.File, error)
}

// Materializer executes plans against registered backends.
type Materializer struct {
	registry *backend.Registry
	logger   *slog.Logger
}

// New creates a Materializer. logger may be nil.
func New(registry *backend.Registry, logger *slog.Logger) *Materializer {
	if logger == nil {
		logger = slog.New(slog.DiscardHandler)
	}
	return &Materializer{registry: registry, logger: logger}
}

// Run executes the plan, writing artifact files into the sink. On
// error, whatever was already written stays in the sink's staging
// directory for diagnosis.
func (m *Materializer) Run(ctx context.Context, plan Plan, sink Sink) error {
	source, err := m.registry.Lookup(plan.Source.Scheme)
	if err != nil {
		return err
	}

	reader, err := source.OpenRead(ctx, plan.Source.Path)
	if err != nil {
		return err
	}
	defer reader.Close()

	m.logger.Debug("materializing",
		"source", plan.Source.URI(), "format", plan.Format,
		"compression", plan.Compression)

	switch plan.Format {
	case FormatRaw:
		err = m.writeRaw(ctx, plan, reader, sink)
	case FormatTable:
		err = m.writeTable(ctx, plan, reader, sink)
	default:
		err = fmt.Errorf("unsupported format %q", plan.Format)
	}
	if err != nil {
		if dataerr.KindOf(err) != "" {
			return err
		}
		return dataerr.Wrap(dataerr.MaterializationFailed,
			fmt.Errorf("materializing %s: %w", plan.Source.URI(), err))
	}
	return nil
}

// writeRaw streams source bytes into data.bin, or into fixed-size
// part-NNNNN files when the plan shards. With compression, the shard
// size bounds the uncompressed bytes per part.
func (m *Materializer) writeRaw(ctx context.Context, plan Plan, reader io.Reader, sink Sink) error {
	if plan.ShardSize == 0 {
		out, err := createCompressed(sink, rawFileName, plan.Compression)
		if err != nil {
			return err
		}
		if _, err := io.Copy(out, reader); err != nil {
			out.Close()
			return fmt.Errorf("streaming source: %w", err)
		}
		return out.Close()
	}

	for part := 0; ; part++ {
		if err := ctx.Err(); err != nil {
			return err
		}

		// Peek one byte so an exact-multiple input does not produce a
		// trailing empty part (and an empty input still produces
		// part-00000).
		buffered := make([]byte, 1)
		n, readErr := io.ReadFull(reader, buffered)
		if part > 0 && n == 0 {
			if readErr == io.EOF || readErr == io.ErrUnexpectedEOF {
				return nil
			}
			return fmt.Errorf("reading source: %w", readErr)
		}

		name := fmt.Sprintf("part-%05d", part)
		out, err := createCompressed(sink, name, plan.Compression)
		if err != nil {
			return err
		}
		if n > 0 {
			if _, err := out.Write(buffered[:n]); err != nil {
				out.Close()
				return fmt.Errorf("writing %s: %w", name, err)
			}
		}
		written, err := io.CopyN(out, reader, plan.ShardSize-int64(n))
		if err != nil && !errors.Is(err, io.EOF) {
			out.Close()
			return fmt.Errorf("writing %s: %w", name, err)
		}
		if closeErr := out.Close(); closeErr != nil {
			return fmt.Errorf("closing %s: %w", name, closeErr)
		}
		if errors.Is(err, io.EOF) || written < plan.ShardSize-int64(n) {
			return nil
		}
	}
}

// createCompressed creates a sink file with the codec's extension and
// its stream writer layered on top.
func createCompressed(sink Sink, name string, compression Compression) (io.WriteCloser, error) {
	file, err := sink.Create(name + compression.extension())
	if err != nil {
		return nil, fmt.Errorf("creating %s: %w", name, err)
	}
	return wrapCompression(file, compression)
}
