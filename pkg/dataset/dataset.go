package dataset

import (
	"github.com/go-gota/gota/dataframe"
	"github.com/go-gota/gota/series"
	"github.com/pkg/errors"
)

// Dataset is an in-memory table with named, typed columns.
//
// String columns can be flagged as timestamp columns. Their cells hold UTC
// RFC 3339 values and are written as timestamps by the columnar codec.
type Dataset struct {
	frame      dataframe.DataFrame
	timestamps map[string]struct{}
}

// New wraps a gota DataFrame.
func New(frame dataframe.DataFrame) (*Dataset, error) {
	if frame.Err != nil {
		return nil, errors.Wrap(frame.Err, "build dataset")
	}
	return &Dataset{
		frame:      frame,
		timestamps: make(map[string]struct{}),
	}, nil
}

// FromSeries builds a Dataset from columns. All series must have the same length.
func FromSeries(cols ...series.Series) (*Dataset, error) {
	return New(dataframe.New(cols...))
}

// Frame returns the underlying DataFrame.
func (d *Dataset) Frame() dataframe.DataFrame {
	return d.frame
}

// Columns returns the column names in file order.
func (d *Dataset) Columns() []string {
	return d.frame.Names()
}

// NumRows returns the number of rows.
func (d *Dataset) NumRows() int {
	return d.frame.Nrow()
}

// HasColumn reports whether the named column exists.
func (d *Dataset) HasColumn(name string) bool {
	for _, n := range d.frame.Names() {
		if n == name {
			return true
		}
	}
	return false
}

// Column returns the named column.
func (d *Dataset) Column(name string) (series.Series, error) {
	if !d.HasColumn(name) {
		return series.Series{}, errors.Errorf("column %q not found", name)
	}
	s := d.frame.Col(name)
	if s.Err != nil {
		return series.Series{}, errors.Wrapf(s.Err, "column %q", name)
	}
	return s, nil
}

// Replace swaps the column with the same name as s.
func (d *Dataset) Replace(s series.Series) error {
	if !d.HasColumn(s.Name) {
		return errors.Errorf("column %q not found", s.Name)
	}
	next := d.frame.Mutate(s)
	if next.Err != nil {
		return errors.Wrapf(next.Err, "replace column %q", s.Name)
	}
	d.frame = next
	return nil
}

// MarkTimestamp flags a string column as holding RFC 3339 timestamps.
func (d *Dataset) MarkTimestamp(name string) {
	d.timestamps[name] = struct{}{}
}

// IsTimestamp reports whether the column is flagged as timestamps.
func (d *Dataset) IsTimestamp(name string) bool {
	_, ok := d.timestamps[name]
	return ok
}

// Slice returns rows [start, end) as a new Dataset sharing column flags.
func (d *Dataset) Slice(start, end int) (*Dataset, error) {
	if start < 0 || end > d.NumRows() || start > end {
		return nil, errors.Errorf("slice [%d:%d] out of range for %d rows", start, end, d.NumRows())
	}
	idx := make([]int, 0, end-start)
	for i := start; i < end; i++ {
		idx = append(idx, i)
	}
	sub := d.frame.Subset(idx)
	if sub.Err != nil {
		return nil, errors.Wrapf(sub.Err, "slice [%d:%d]", start, end)
	}
	out := &Dataset{frame: sub, timestamps: make(map[string]struct{}, len(d.timestamps))}
	for k := range d.timestamps {
		out.timestamps[k] = struct{}{}
	}
	return out, nil
}

// Records returns the header followed by every row rendered as strings.
// Missing cells render as "NaN".
func (d *Dataset) Records() [][]string {
	return d.frame.Records()
}
