package dataset

import (
	"bufio"
	"bytes"
	"encoding/csv"
	"io"

	"github.com/go-gota/gota/dataframe"
	"github.com/go-gota/gota/series"
	"github.com/klauspost/compress/gzip"
	"github.com/pkg/errors"
)

var (
	gzipMagic = []byte{0x1f, 0x8b}
	utf8BOM   = []byte{0xef, 0xbb, 0xbf}
)

// Cells matching one of these are loaded as missing.
var missingValues = []string{"", "NA", "NaN", "N/A", "nan", "null", "NULL", "<nil>"}

// ReadCSV parses a CSV with a header row into a Dataset, transparently
// decompressing gzip input. Column types are inferred from the values.
func ReadCSV(r io.Reader) (*Dataset, error) {
	br := bufio.NewReader(r)
	head, err := br.Peek(len(gzipMagic))
	if err != nil && err != io.EOF {
		return nil, errors.Wrap(err, "read csv")
	}

	var src io.Reader = br
	if bytes.Equal(head, gzipMagic) {
		zr, err := gzip.NewReader(br)
		if err != nil {
			return nil, errors.Wrap(err, "open gzip stream")
		}
		defer func() {
			_ = zr.Close()
		}()
		src = zr
	}

	cr := bufio.NewReader(src)
	if head, _ := cr.Peek(len(utf8BOM)); bytes.Equal(head, utf8BOM) {
		_, _ = cr.Discard(len(utf8BOM))
	}

	records, err := csv.NewReader(cr).ReadAll()
	if err != nil {
		return nil, errors.Wrap(err, "parse csv")
	}
	ds, err := FromRecords(records)
	if err != nil {
		return nil, errors.Wrap(err, "parse csv")
	}
	return ds, nil
}

// FromRecords builds a Dataset from a header row followed by data rows, with
// the same type inference as ReadCSV. A header without rows yields an empty
// Dataset whose columns are all strings.
func FromRecords(records [][]string) (*Dataset, error) {
	switch len(records) {
	case 0:
		return nil, errors.New("load records: no header row")
	case 1:
		cols := make([]series.Series, 0, len(records[0]))
		for _, name := range records[0] {
			cols = append(cols, series.New([]string{}, series.String, name))
		}
		ds, err := FromSeries(cols...)
		if err != nil {
			return nil, errors.Wrap(err, "load records")
		}
		return ds, nil
	}

	df := dataframe.LoadRecords(records,
		dataframe.HasHeader(true),
		dataframe.DetectTypes(true),
		dataframe.DefaultType(series.String),
		dataframe.NaNValues(missingValues),
	)
	if df.Err != nil {
		return nil, errors.Wrap(df.Err, "load records")
	}
	return New(df)
}
