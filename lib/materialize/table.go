// Copyright 2026 The Nanodata Authors
// SPDX-License-Identifier: Apache-2.0

package materialize

import (
	"bufio"
	"context"
	"encoding/csv"
	"encoding/json"
	"fmt"
	"io"
	"os"
	"path"
	"slices"
	"strconv"
	"strings"

	"github.com/nanodata-io/nanodata/lib/codec"
)

// blockRows is how many rows one columnar block holds. Large enough
// that per-block overhead is noise, small enough that a reader
// scanning one column does not hold a whole artifact in memory.
const blockRows = 8192

// Block is one columnar unit of a table artifact: a slice of rows
// pivoted into per-column arrays. Blocks are self-describing; readers
// need no side schema file.
type Block struct {
	// Columns lists the column names in schema order.
	Columns []string `cbor:"columns"`

	// Rows is the row count, identical across all Values arrays.
	Rows int `cbor:"rows"`

	// Values maps column name to its value array. Cell values are
	// string, int64, float64, bool, or nil.
	Values map[string][]any `cbor:"values"`
}

// rowSource yields one record at a time from row-oriented input.
type rowSource interface {
	// Columns returns the schema, available after the first Next.
	Columns() []string
	// Next returns the next row as values aligned with Columns, or
	// io.EOF when exhausted.
	Next() ([]any, error)
}

// writeTable parses the source into blocks of blockRows rows and
// writes them as block-NNNNN.cbor files.
func (m *Materializer) writeTable(ctx context.Context, plan Plan, reader io.Reader, sink Sink) error {
	rows, err := newRowSource(plan.Source.Path, reader)
	if err != nil {
		return err
	}

	var (
		blockIndex int
		block      [][]any
	)
	flush := func() error {
		if err := writeBlock(sink, blockIndex, projectColumns(rows.Columns(), block, plan), plan.Compression); err != nil {
			return err
		}
		blockIndex++
		block = block[:0]
		return nil
	}

	for {
		if err := ctx.Err(); err != nil {
			return err
		}
		row, err := rows.Next()
		if err == io.EOF {
			break
		}
		if err != nil {
			return err
		}
		block = append(block, row)
		if len(block) == blockRows {
			if err := flush(); err != nil {
				return err
			}
		}
	}

	// Always emit at least one block so an empty table still records
	// its schema.
	if len(block) > 0 || blockIndex == 0 {
		return flush()
	}
	return nil
}

// projectColumns pivots rows into a Block, applying the plan's column
// selection.
func projectColumns(columns []string, rows [][]any, plan Plan) Block {
	kept := make([]string, 0, len(columns))
	keptIndex := make([]int, 0, len(columns))
	for i, name := range columns {
		if len(plan.SelectColumns) > 0 && !slices.Contains(plan.SelectColumns, name) {
			continue
		}
		if slices.Contains(plan.DropColumns, name) {
			continue
		}
		kept = append(kept, name)
		keptIndex = append(keptIndex, i)
	}

	values := make(map[string][]any, len(kept))
	for j, name := range kept {
		column := make([]any, len(rows))
		for r, row := range rows {
			column[r] = row[keptIndex[j]]
		}
		values[name] = column
	}
	return Block{Columns: kept, Rows: len(rows), Values: values}
}

func writeBlock(sink Sink, index int, block Block, compression Compression) error {
	data, err := codec.Marshal(block)
	if err != nil {
		return fmt.Errorf("encoding block %d: %w", index, err)
	}
	name := fmt.Sprintf("block-%05d.cbor", index)
	out, err := createCompressed(sink, name, compression)
	if err != nil {
		return err
	}
	if _, err := out.Write(data); err != nil {
		out.Close()
		return fmt.Errorf("writing block %d: %w", index, err)
	}
	return out.Close()
}

// ReadBlockFile reads one committed block file back, transparently
// decompressing by filename extension.
func ReadBlockFile(filePath string) (Block, error) {
	file, err := os.Open(filePath)
	if err != nil {
		return Block{}, err
	}
	reader, err := openDecompressed(file, filePath)
	if err != nil {
		return Block{}, err
	}
	defer reader.Close()

	data, err := io.ReadAll(reader)
	if err != nil {
		return Block{}, fmt.Errorf("reading block: %w", err)
	}
	var block Block
	if err := codec.Unmarshal(data, &block); err != nil {
		return Block{}, fmt.Errorf("decoding block: %w", err)
	}
	return block, nil
}

// newRowSource picks the input parser from the source path's
// extension.
func newRowSource(sourcePath string, reader io.Reader) (rowSource, error) {
	switch strings.ToLower(path.Ext(sourcePath)) {
	case ".csv":
		return newCSVSource(reader), nil
	case ".jsonl", ".ndjson", ".json":
		return newJSONLSource(reader), nil
	default:
		return nil, fmt.Errorf("table format needs a .csv, .jsonl, or .ndjson source, got %q", sourcePath)
	}
}

// csvSource reads CSV with a header row. Cell values are parsed as
// int64, then float64, then bool, falling back to string; empty cells
// are null.
type csvSource struct {
	reader  *csv.Reader
	columns []string
}

func newCSVSource(reader io.Reader) *csvSource {
	csvReader := csv.NewReader(reader)
	csvReader.ReuseRecord = true
	return &csvSource{reader: csvReader}
}

func (s *csvSource) Columns() []string {
	return s.columns
}

func (s *csvSource) Next() ([]any, error) {
	if s.columns == nil {
		header, err := s.reader.Read()
		if err == io.EOF {
			return nil, fmt.Errorf("csv input has no header row")
		}
		if err != nil {
			return nil, fmt.Errorf("reading csv header: %w", err)
		}
		s.columns = slices.Clone(header)
	}

	record, err := s.reader.Read()
	if err == io.EOF {
		return nil, io.EOF
	}
	if err != nil {
		return nil, fmt.Errorf("reading csv row: %w", err)
	}
	row := make([]any, len(record))
	for i, cell := range record {
		row[i] = parseCell(cell)
	}
	return row, nil
}

func parseCell(cell string) any {
	if cell == "" {
		return nil
	}
	if v, err := strconv.ParseInt(cell, 10, 64); err == nil {
		return v
	}
	if v, err := strconv.ParseFloat(cell, 64); err == nil {
		return v
	}
	switch cell {
	case "true":
		return true
	case "false":
		return false
	}
	return cell
}

// jsonlSource reads one JSON object per line. The schema is the first
// row's keys in sorted order; later rows may omit keys (null) but a
// key absent from the schema is an error, since silently dropping
// data would make two differing sources materialize identically.
type jsonlSource struct {
	scanner *bufio.Scanner
	columns []string
	line    int
}

func newJSONLSource(reader io.Reader) *jsonlSource {
	scanner := bufio.NewScanner(reader)
	scanner.Buffer(make([]byte, 0, 64*1024), 16*1024*1024)
	return &jsonlSource{scanner: scanner}
}

func (s *jsonlSource) Columns() []string {
	return s.columns
}

func (s *jsonlSource) Next() ([]any, error) {
	for {
		if !s.scanner.Scan() {
			if err := s.scanner.Err(); err != nil {
				return nil, fmt.Errorf("reading jsonl: %w", err)
			}
			return nil, io.EOF
		}
		s.line++
		text := strings.TrimSpace(s.scanner.Text())
		if text == "" {
			continue
		}

		var record map[string]any
		if err := json.Unmarshal([]byte(text), &record); err != nil {
			return nil, fmt.Errorf("jsonl line %d: %w", s.line, err)
		}

		if s.columns == nil {
			s.columns = make([]string, 0, len(record))
			for key := range record {
				s.columns = append(s.columns, key)
			}
			slices.Sort(s.columns)
		}

		row := make([]any, len(s.columns))
		for i, column := range s.columns {
			value, ok := record[column]
			if !ok {
				row[i] = nil
				continue
			}
			cell, err := normalizeJSONValue(value)
			if err != nil {
				return nil, fmt.Errorf("jsonl line %d, column %q: %w", s.line, column, err)
			}
			row[i] = cell
			delete(record, column)
		}
		for key := range record {
			return nil, fmt.Errorf("jsonl line %d: column %q not in schema", s.line, key)
		}
		return row, nil
	}
}

// normalizeJSONValue maps json.Unmarshal's types onto block cell
// types: integral float64 becomes int64; nested structures have no
// columnar representation and are rejected.
func normalizeJSONValue(value any) (any, error) {
	switch v := value.(type) {
	case float64:
		if v == float64(int64(v)) {
			return int64(v), nil
		}
		return v, nil
	case map[string]any, []any:
		return nil, fmt.Errorf("nested values are not supported in table format")
	default:
		return value, nil
	}
}
