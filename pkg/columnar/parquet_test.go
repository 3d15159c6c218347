package columnar_test

import (
	"bytes"
	"context"
	"os"
	"path/filepath"
	"strings"
	"testing"

	"github.com/go-gota/gota/series"
	"github.com/google/go-cmp/cmp"

	"github.com/Xanthus1/louisville-expenditure-etl/pkg/columnar"
	"github.com/Xanthus1/louisville-expenditure-etl/pkg/dataset"
	"github.com/Xanthus1/louisville-expenditure-etl/pkg/expenditure"
)

func sampleDataset(t *testing.T) *dataset.Dataset {
	t.Helper()
	ds, err := dataset.FromRecords([][]string{
		{"id", "vendor", "amount", "paid", "void"},
		{"1", "Acme", "10.25", "2017-07-01", "true"},
		{"2", "", "", "bad", "false"},
		{"3", "Globex", "3", "07/09/2017 13:45:00", ""},
	})
	if err != nil {
		t.Fatalf("build dataset: %v", err)
	}
	if _, err := ds.CoerceTimestamp("paid"); err != nil {
		t.Fatalf("coerce: %v", err)
	}
	return ds
}

func TestRoundTrip(t *testing.T) {
	for _, c := range []columnar.Compression{columnar.CompressionGzip, columnar.CompressionSnappy, columnar.CompressionNone} {
		t.Run(string(c), func(t *testing.T) {
			ds := sampleDataset(t)

			b, err := columnar.Encode(ds, c)
			if err != nil {
				t.Fatalf("encode: %v", err)
			}
			got, err := columnar.Read(context.Background(), bytes.NewReader(b))
			if err != nil {
				t.Fatalf("read: %v", err)
			}

			if diff := cmp.Diff(ds.Columns(), got.Columns()); diff != "" {
				t.Fatalf("columns mismatch (-want +got):\n%s", diff)
			}
			if diff := cmp.Diff(ds.Records(), got.Records()); diff != "" {
				t.Fatalf("records mismatch (-want +got):\n%s", diff)
			}
			if !got.IsTimestamp("paid") {
				t.Fatalf("expected paid to come back as timestamp column")
			}
			if got.IsTimestamp("vendor") {
				t.Fatalf("vendor must not be a timestamp column")
			}

			want := map[string]series.Type{
				"id":     series.Int,
				"vendor": series.String,
				"amount": series.Float,
				"paid":   series.String,
				"void":   series.Bool,
			}
			for name, typ := range want {
				col, err := got.Column(name)
				if err != nil {
					t.Fatalf("column %s: %v", name, err)
				}
				if col.Type() != typ {
					t.Fatalf("column %s type=%s want=%s", name, col.Type(), typ)
				}
			}

			paid, _ := got.Column("paid")
			if !paid.Elem(1).IsNA() {
				t.Fatalf("expected missing timestamp to stay missing")
			}
		})
	}
}

func TestWriteFileCreatesDirectory(t *testing.T) {
	path := filepath.Join(t.TempDir(), "data", "nested", "out.parquet")
	if err := columnar.WriteFile(path, sampleDataset(t), columnar.CompressionGzip); err != nil {
		t.Fatalf("write: %v", err)
	}
	if _, err := os.Stat(path); err != nil {
		t.Fatalf("expected file to exist: %v", err)
	}

	got, err := columnar.ReadFile(context.Background(), path)
	if err != nil {
		t.Fatalf("read: %v", err)
	}
	if got.NumRows() != 3 {
		t.Fatalf("expected 3 rows, got %d", got.NumRows())
	}
}

func TestWriteFileHeaderOnlyDataset(t *testing.T) {
	cols := expenditure.Format2018.Columns()
	ds, err := dataset.ReadCSV(strings.NewReader(strings.Join(cols, ",") + "\n"))
	if err != nil {
		t.Fatalf("read csv: %v", err)
	}
	if _, _, err := expenditure.Clean(ds); err != nil {
		t.Fatalf("clean: %v", err)
	}

	path := filepath.Join(t.TempDir(), "empty.parquet")
	if err := columnar.WriteFile(path, ds, columnar.CompressionGzip); err != nil {
		t.Fatalf("write: %v", err)
	}
	got, err := columnar.ReadFile(context.Background(), path)
	if err != nil {
		t.Fatalf("read: %v", err)
	}
	if got.NumRows() != 0 {
		t.Fatalf("expected no rows, got %d", got.NumRows())
	}
	if diff := cmp.Diff(cols, got.Columns()); diff != "" {
		t.Fatalf("columns mismatch (-want +got):\n%s", diff)
	}
	if f := expenditure.ClassifyDataset(got); f != expenditure.Format2018 {
		t.Fatalf("expected %s after round trip, got %s", expenditure.Format2018, f)
	}
}

func TestParseCompression(t *testing.T) {
	tests := []struct {
		in      string
		want    columnar.Compression
		wantErr bool
	}{
		{in: "", want: columnar.CompressionGzip},
		{in: "GZIP", want: columnar.CompressionGzip},
		{in: "snappy", want: columnar.CompressionSnappy},
		{in: "none", want: columnar.CompressionNone},
		{in: "brotli", wantErr: true},
	}
	for _, tt := range tests {
		t.Run(tt.in, func(t *testing.T) {
			got, err := columnar.ParseCompression(tt.in)
			if (err != nil) != tt.wantErr {
				t.Fatalf("ParseCompression(%q) err=%v wantErr=%t", tt.in, err, tt.wantErr)
			}
			if got != tt.want {
				t.Fatalf("ParseCompression(%q)=%q want=%q", tt.in, got, tt.want)
			}
		})
	}
}
