// Copyright 2026 The Nanodata Authors
// SPDX-License-Identifier: Apache-2.0

package materialize

import (
	"fmt"
	"io"

	"github.com/klauspost/compress/zstd"
	"github.com/pierrec/lz4/v4"
)

// extension returns the filename suffix a codec appends to its
// outputs, so readers can tell compressed parts apart by name.
func (c Compression) extension() string {
	switch c {
	case CompressionLZ4:
		return ".lz4"
	case CompressionZstd:
		return ".zst"
	default:
		return ""
	}
}

// compressedCloser chains a compressing writer over its underlying
// file so one Close finalizes both.
type compressedCloser struct {
	io.Writer
	closers []io.Closer
}

func (c *compressedCloser) Close() error {
	var firstErr error
	for _, closer := range c.closers {
		if err := closer.Close(); err != nil && firstErr == nil {
			firstErr = err
		}
	}
	return firstErr
}

// wrapCompression layers the codec's stream writer over out. The
// returned writer must be closed to flush the codec frame; closing it
// closes out as well.
func wrapCompression(out io.WriteCloser, compression Compression) (io.WriteCloser, error) {
	switch compression {
	case CompressionNone:
		return out, nil

	case CompressionLZ4:
		lz4Writer := lz4.NewWriter(out)
		return &compressedCloser{
			Writer:  lz4Writer,
			closers: []io.Closer{lz4Writer, out},
		}, nil

	case CompressionZstd:
		zstdWriter, err := zstd.NewWriter(out, zstd.WithEncoderLevel(zstd.SpeedDefault))
		if err != nil {
			out.Close()
			return nil, fmt.Errorf("zstd writer: %w", err)
		}
		return &compressedCloser{
			Writer:  zstdWriter,
			closers: []io.Closer{zstdWriter, out},
		}, nil

	default:
		out.Close()
		return nil, fmt.Errorf("unsupported compression %q", compression)
	}
}

// openDecompressed layers the matching stream reader over in, keyed by
// the filename the artifact was written under.
func openDecompressed(in io.ReadCloser, name string) (io.ReadCloser, error) {
	switch {
	case len(name) > 4 && name[len(name)-4:] == ".lz4":
		return &decompressedCloser{
			Reader: lz4.NewReader(in),
			under:  in,
		}, nil

	case len(name) > 4 && name[len(name)-4:] == ".zst":
		zstdReader, err := zstd.NewReader(in)
		if err != nil {
			in.Close()
			return nil, fmt.Errorf("zstd reader: %w", err)
		}
		return &decompressedCloser{
			Reader: zstdReader.IOReadCloser(),
			under:  in,
		}, nil

	default:
		return in, nil
	}
}

type decompressedCloser struct {
	io.Reader
	under io.Closer
}

func (d *decompressedCloser) Close() error {
	return d.under.Close()
}
