// Copyright 2026 The Nanodata Authors
// SPDX-License-Identifier: Apache-2.0

package materialize

import (
	"context"
	"fmt"
	"path/filepath"
	"strings"
	"testing"
)

func TestTableFromCSV(t *testing.T) {
	materializer, root := newTestMaterializer(t)
	source := writeSource(t, root, "scores.csv",
		"name,score,passed\nalice,9.5,true\nbob,7,false\ncarol,,true\n")
	sink := dirSink{dir: t.TempDir()}

	err := materializer.Run(context.Background(), Plan{
		Source: source, Format: FormatTable, Compression: CompressionNone,
	}, sink)
	if err != nil {
		t.Fatal(err)
	}

	block, err := ReadBlockFile(filepath.Join(sink.dir, "block-00000.cbor"))
	if err != nil {
		t.Fatal(err)
	}
	if block.Rows != 3 {
		t.Fatalf("rows = %d, want 3", block.Rows)
	}
	wantColumns := []string{"name", "score", "passed"}
	if len(block.Columns) != 3 {
		t.Fatalf("columns = %v, want %v", block.Columns, wantColumns)
	}
	for i, name := range wantColumns {
		if block.Columns[i] != name {
			t.Fatalf("columns = %v, want %v", block.Columns, wantColumns)
		}
	}

	// Cell typing: float stays float, bare integer becomes int64,
	// booleans parse, empty cells are null.
	if v := block.Values["score"][0]; v != 9.5 {
		t.Errorf("score[0] = %v (%T), want 9.5", v, v)
	}
	if v := block.Values["score"][1]; v != int64(7) {
		t.Errorf("score[1] = %v (%T), want int64 7", v, v)
	}
	if v := block.Values["score"][2]; v != nil {
		t.Errorf("score[2] = %v, want null", v)
	}
	if v := block.Values["passed"][0]; v != true {
		t.Errorf("passed[0] = %v (%T), want true", v, v)
	}
	if v := block.Values["name"][1]; v != "bob" {
		t.Errorf("name[1] = %v", v)
	}
}

func TestTableDropAndSelectColumns(t *testing.T) {
	materializer, root := newTestMaterializer(t)
	source := writeSource(t, root, "data.csv",
		"text,label,weight\nhello,1,0.5\nworld,0,0.7\n")
	sink := dirSink{dir: t.TempDir()}

	err := materializer.Run(context.Background(), Plan{
		Source: source, Format: FormatTable, Compression: CompressionNone,
		SelectColumns: []string{"text", "label"},
		DropColumns:   []string{"label"},
	}, sink)
	if err != nil {
		t.Fatal(err)
	}

	block, err := ReadBlockFile(filepath.Join(sink.dir, "block-00000.cbor"))
	if err != nil {
		t.Fatal(err)
	}
	if len(block.Columns) != 1 || block.Columns[0] != "text" {
		t.Errorf("columns = %v, want [text] (select then drop)", block.Columns)
	}
	if _, dropped := block.Values["label"]; dropped {
		t.Error("dropped column still present in values")
	}
}

func TestTableFromJSONL(t *testing.T) {
	materializer, root := newTestMaterializer(t)
	source := writeSource(t, root, "events.jsonl",
		`{"id": 1, "kind": "open"}
{"kind": "close", "id": 2}
{"id": 3}
`)
	sink := dirSink{dir: t.TempDir()}

	err := materializer.Run(context.Background(), Plan{
		Source: source, Format: FormatTable, Compression: CompressionNone,
	}, sink)
	if err != nil {
		t.Fatal(err)
	}

	block, err := ReadBlockFile(filepath.Join(sink.dir, "block-00000.cbor"))
	if err != nil {
		t.Fatal(err)
	}
	// Schema is the first row's keys, sorted.
	if len(block.Columns) != 2 || block.Columns[0] != "id" || block.Columns[1] != "kind" {
		t.Fatalf("columns = %v, want [id kind]", block.Columns)
	}
	if v := block.Values["id"][1]; v != int64(2) {
		t.Errorf("id[1] = %v (%T), want int64 2 regardless of key order", v, v)
	}
	if v := block.Values["kind"][2]; v != nil {
		t.Errorf("kind[2] = %v, want null for omitted key", v)
	}
}

func TestTableJSONLRejectsUnknownColumn(t *testing.T) {
	materializer, root := newTestMaterializer(t)
	source := writeSource(t, root, "events.jsonl",
		`{"id": 1}
{"id": 2, "surprise": true}
`)
	sink := dirSink{dir: t.TempDir()}

	err := materializer.Run(context.Background(), Plan{
		Source: source, Format: FormatTable, Compression: CompressionNone,
	}, sink)
	if err == nil || !strings.Contains(err.Error(), "surprise") {
		t.Errorf("err = %v, want unknown-column error naming the column", err)
	}
}

func TestTableJSONLRejectsNestedValues(t *testing.T) {
	materializer, root := newTestMaterializer(t)
	source := writeSource(t, root, "events.jsonl", `{"id": {"nested": 1}}`+"\n")
	sink := dirSink{dir: t.TempDir()}

	err := materializer.Run(context.Background(), Plan{
		Source: source, Format: FormatTable, Compression: CompressionNone,
	}, sink)
	if err == nil {
		t.Error("nested JSON value accepted in table format")
	}
}

func TestTableSplitsIntoBlocks(t *testing.T) {
	materializer, root := newTestMaterializer(t)

	var builder strings.Builder
	builder.WriteString("n\n")
	for i := 0; i < blockRows+10; i++ {
		fmt.Fprintf(&builder, "%d\n", i)
	}
	source := writeSource(t, root, "numbers.csv", builder.String())
	sink := dirSink{dir: t.TempDir()}

	err := materializer.Run(context.Background(), Plan{
		Source: source, Format: FormatTable, Compression: CompressionNone,
	}, sink)
	if err != nil {
		t.Fatal(err)
	}

	names := sinkFiles(t, sink.dir)
	if len(names) != 2 {
		t.Fatalf("blocks = %v, want 2", names)
	}

	second, err := ReadBlockFile(filepath.Join(sink.dir, "block-00001.cbor"))
	if err != nil {
		t.Fatal(err)
	}
	if second.Rows != 10 {
		t.Errorf("second block rows = %d, want 10", second.Rows)
	}
}

func TestTableCompressedBlocksRoundtrip(t *testing.T) {
	materializer, root := newTestMaterializer(t)
	source := writeSource(t, root, "data.csv", "word\nalpha\nbeta\n")
	sink := dirSink{dir: t.TempDir()}

	err := materializer.Run(context.Background(), Plan{
		Source: source, Format: FormatTable, Compression: CompressionZstd,
	}, sink)
	if err != nil {
		t.Fatal(err)
	}

	block, err := ReadBlockFile(filepath.Join(sink.dir, "block-00000.cbor.zst"))
	if err != nil {
		t.Fatal(err)
	}
	if block.Rows != 2 || block.Values["word"][0] != "alpha" {
		t.Errorf("block = %+v", block)
	}
}

func TestTableNeedsKnownExtension(t *testing.T) {
	materializer, root := newTestMaterializer(t)
	source := writeSource(t, root, "data.parquet", "not parseable")
	sink := dirSink{dir: t.TempDir()}

	err := materializer.Run(context.Background(), Plan{
		Source: source, Format: FormatTable, Compression: CompressionNone,
	}, sink)
	if err == nil {
		t.Error("unknown table input extension accepted")
	}
}

func TestEmptyJSONLEmitsSchemalessBlock(t *testing.T) {
	materializer, root := newTestMaterializer(t)
	source := writeSource(t, root, "empty.jsonl", "")
	sink := dirSink{dir: t.TempDir()}

	err := materializer.Run(context.Background(), Plan{
		Source: source, Format: FormatTable, Compression: CompressionNone,
	}, sink)
	if err != nil {
		t.Fatal(err)
	}

	block, err := ReadBlockFile(filepath.Join(sink.dir, "block-00000.cbor"))
	if err != nil {
		t.Fatal(err)
	}
	if block.Rows != 0 {
		t.Errorf("rows = %d, want 0", block.Rows)
	}
}
