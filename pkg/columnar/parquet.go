package columnar

import (
	"bytes"
	"context"
	"io"
	"os"
	"path/filepath"
	"strings"
	"time"

	"github.com/apache/arrow/go/v10/arrow"
	"github.com/apache/arrow/go/v10/arrow/array"
	"github.com/apache/arrow/go/v10/arrow/memory"
	"github.com/apache/arrow/go/v10/parquet"
	"github.com/apache/arrow/go/v10/parquet/compress"
	"github.com/apache/arrow/go/v10/parquet/file"
	"github.com/apache/arrow/go/v10/parquet/pqarrow"
	"github.com/go-gota/gota/series"
	"github.com/pkg/errors"

	"github.com/Xanthus1/louisville-expenditure-etl/pkg/dataset"
)

// Compression selects the Parquet page codec.
type Compression string

const (
	CompressionGzip   Compression = "gzip"
	CompressionSnappy Compression = "snappy"
	CompressionNone   Compression = "none"
)

// ParseCompression accepts gzip, snappy and none (case-insensitive).
func ParseCompression(raw string) (Compression, error) {
	switch c := Compression(strings.ToLower(strings.TrimSpace(raw))); c {
	case CompressionGzip, CompressionSnappy, CompressionNone:
		return c, nil
	case "":
		return CompressionGzip, nil
	default:
		return "", errors.Errorf("unsupported compression %q", raw)
	}
}

func (c Compression) codec() compress.Compression {
	switch c {
	case CompressionSnappy:
		return compress.Codecs.Snappy
	case CompressionNone:
		return compress.Codecs.Uncompressed
	default:
		return compress.Codecs.Gzip
	}
}

const rowGroupSize = 64 * 1024

// Write encodes ds as a Parquet file. Timestamp columns are written as UTC
// millisecond timestamps; every column is nullable.
func Write(w io.Writer, ds *dataset.Dataset, c Compression) error {
	mem := memory.NewGoAllocator()
	frame := ds.Frame()

	fields := make([]arrow.Field, 0, frame.Ncol())
	cols := make([]arrow.Array, 0, frame.Ncol())
	defer func() {
		for _, a := range cols {
			a.Release()
		}
	}()

	for _, name := range ds.Columns() {
		s, err := ds.Column(name)
		if err != nil {
			return err
		}
		arr, dt, err := buildArray(mem, ds, s)
		if err != nil {
			return errors.Wrapf(err, "encode column %q", name)
		}
		fields = append(fields, arrow.Field{Name: name, Type: dt, Nullable: true})
		cols = append(cols, arr)
	}

	schema := arrow.NewSchema(fields, nil)
	rec := array.NewRecord(schema, cols, int64(ds.NumRows()))
	defer rec.Release()
	tbl := array.NewTableFromRecords(schema, []arrow.Record{rec})
	defer tbl.Release()

	props := parquet.NewWriterProperties(
		parquet.WithCompression(c.codec()),
		parquet.WithDictionaryDefault(false),
	)
	arrProps := pqarrow.NewArrowWriterProperties(pqarrow.WithStoreSchema())
	if err := pqarrow.WriteTable(tbl, w, rowGroupSize, props, arrProps); err != nil {
		return errors.Wrap(err, "write parquet")
	}
	return nil
}

// WriteFile writes ds to path, creating the parent directory if absent.
func WriteFile(path string, ds *dataset.Dataset, c Compression) error {
	if err := os.MkdirAll(filepath.Dir(path), 0o755); err != nil {
		return errors.Wrap(err, "create target directory")
	}
	f, err := os.Create(path)
	if err != nil {
		return errors.Wrap(err, "create parquet file")
	}
	// pqarrow closes sinks that implement io.Closer; keep the close here.
	if err := Write(struct{ io.Writer }{f}, ds, c); err != nil {
		_ = f.Close()
		return err
	}
	return errors.Wrap(f.Close(), "close parquet file")
}

// Encode returns ds as an in-memory Parquet file.
func Encode(ds *dataset.Dataset, c Compression) ([]byte, error) {
	var buf bytes.Buffer
	if err := Write(&buf, ds, c); err != nil {
		return nil, err
	}
	return buf.Bytes(), nil
}

var timestampType = &arrow.TimestampType{Unit: arrow.Millisecond, TimeZone: "UTC"}

func buildArray(mem memory.Allocator, ds *dataset.Dataset, s series.Series) (arrow.Array, arrow.DataType, error) {
	n := s.Len()
	switch {
	case s.Type() == series.Int:
		b := array.NewInt64Builder(mem)
		defer b.Release()
		for i := 0; i < n; i++ {
			if v, ok := ds.Value(s, i); ok {
				b.Append(v.(int64))
				continue
			}
			b.AppendNull()
		}
		return b.NewArray(), arrow.PrimitiveTypes.Int64, nil
	case s.Type() == series.Float:
		b := array.NewFloat64Builder(mem)
		defer b.Release()
		for i := 0; i < n; i++ {
			if v, ok := ds.Value(s, i); ok {
				b.Append(v.(float64))
				continue
			}
			b.AppendNull()
		}
		return b.NewArray(), arrow.PrimitiveTypes.Float64, nil
	case s.Type() == series.Bool:
		b := array.NewBooleanBuilder(mem)
		defer b.Release()
		for i := 0; i < n; i++ {
			if v, ok := ds.Value(s, i); ok {
				b.Append(v.(bool))
				continue
			}
			b.AppendNull()
		}
		return b.NewArray(), arrow.FixedWidthTypes.Boolean, nil
	case ds.IsTimestamp(s.Name):
		b := array.NewTimestampBuilder(mem, timestampType)
		defer b.Release()
		for i := 0; i < n; i++ {
			if v, ok := ds.Value(s, i); ok {
				b.Append(arrow.Timestamp(v.(time.Time).UnixMilli()))
				continue
			}
			b.AppendNull()
		}
		return b.NewArray(), timestampType, nil
	case s.Type() == series.String:
		b := array.NewStringBuilder(mem)
		defer b.Release()
		for i := 0; i < n; i++ {
			if v, ok := ds.Value(s, i); ok {
				b.Append(v.(string))
				continue
			}
			b.AppendNull()
		}
		return b.NewArray(), arrow.BinaryTypes.String, nil
	default:
		return nil, nil, errors.Errorf("unsupported column type %s", s.Type())
	}
}

// Read decodes a Parquet file into a Dataset. Timestamp columns come back as
// flagged RFC 3339 string columns.
func Read(ctx context.Context, r parquet.ReaderAtSeeker) (*dataset.Dataset, error) {
	pf, err := file.NewParquetReader(r)
	if err != nil {
		return nil, errors.Wrap(err, "open parquet")
	}
	defer func() {
		_ = pf.Close()
	}()

	mem := memory.NewGoAllocator()
	reader, err := pqarrow.NewFileReader(pf, pqarrow.ArrowReadProperties{}, mem)
	if err != nil {
		return nil, errors.Wrap(err, "open parquet arrow reader")
	}
	tbl, err := reader.ReadTable(ctx)
	if err != nil {
		return nil, errors.Wrap(err, "read parquet table")
	}
	defer tbl.Release()

	cols := make([]series.Series, 0, tbl.NumCols())
	var timestamps []string
	for i := 0; i < int(tbl.NumCols()); i++ {
		col := tbl.Column(i)
		s, isTimestamp, err := columnToSeries(col)
		if err != nil {
			return nil, errors.Wrapf(err, "decode column %q", col.Name())
		}
		cols = append(cols, s)
		if isTimestamp {
			timestamps = append(timestamps, col.Name())
		}
	}

	ds, err := dataset.FromSeries(cols...)
	if err != nil {
		return nil, err
	}
	for _, name := range timestamps {
		ds.MarkTimestamp(name)
	}
	return ds, nil
}

// ReadFile decodes the Parquet file at path.
func ReadFile(ctx context.Context, path string) (*dataset.Dataset, error) {
	f, err := os.Open(path)
	if err != nil {
		return nil, errors.Wrap(err, "open parquet file")
	}
	defer func() {
		_ = f.Close()
	}()
	return Read(ctx, f)
}

func columnToSeries(col *arrow.Column) (series.Series, bool, error) {
	values := make([]interface{}, 0, col.Len())
	t := series.String
	isTimestamp := false
	switch col.DataType().ID() {
	case arrow.INT64, arrow.INT32:
		t = series.Int
	case arrow.FLOAT64:
		t = series.Float
	case arrow.BOOL:
		t = series.Bool
	case arrow.TIMESTAMP:
		isTimestamp = true
	}

	for _, chunk := range col.Data().Chunks() {
		switch a := chunk.(type) {
		case *array.String:
			for i := 0; i < a.Len(); i++ {
				values = append(values, nullable(a, i, func(i int) interface{} { return a.Value(i) }))
			}
		case *array.Int64:
			t = series.Int
			for i := 0; i < a.Len(); i++ {
				values = append(values, nullable(a, i, func(i int) interface{} { return int(a.Value(i)) }))
			}
		case *array.Int32:
			t = series.Int
			for i := 0; i < a.Len(); i++ {
				values = append(values, nullable(a, i, func(i int) interface{} { return int(a.Value(i)) }))
			}
		case *array.Float64:
			t = series.Float
			for i := 0; i < a.Len(); i++ {
				values = append(values, nullable(a, i, func(i int) interface{} { return a.Value(i) }))
			}
		case *array.Boolean:
			t = series.Bool
			for i := 0; i < a.Len(); i++ {
				values = append(values, nullable(a, i, func(i int) interface{} { return a.Value(i) }))
			}
		case *array.Timestamp:
			isTimestamp = true
			unit := a.DataType().(*arrow.TimestampType).Unit
			for i := 0; i < a.Len(); i++ {
				values = append(values, nullable(a, i, func(i int) interface{} {
					return timestampToTime(int64(a.Value(i)), unit).Format(dataset.TimestampLayout)
				}))
			}
		default:
			return series.Series{}, false, errors.Errorf("unsupported arrow type %s", chunk.DataType())
		}
	}
	return series.New(values, t, col.Name()), isTimestamp, nil
}

func nullable(a arrow.Array, i int, value func(int) interface{}) interface{} {
	if a.IsNull(i) {
		return nil
	}
	return value(i)
}

func timestampToTime(v int64, unit arrow.TimeUnit) time.Time {
	switch unit {
	case arrow.Second:
		return time.Unix(v, 0).UTC()
	case arrow.Millisecond:
		return time.UnixMilli(v).UTC()
	case arrow.Microsecond:
		return time.UnixMicro(v).UTC()
	default:
		return time.Unix(0, v).UTC()
	}
}
