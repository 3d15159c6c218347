package dataset

import (
	"math"
	"strconv"
	"strings"
	"time"

	"github.com/araddon/dateparse"
	"github.com/go-gota/gota/series"
	"github.com/pkg/errors"
)

// TimestampLayout is the layout timestamp cells are stored in.
const TimestampLayout = time.RFC3339Nano

// ParseTimestamp parses the common date and time spellings found in the
// source files. Values without a zone are read as UTC.
func ParseTimestamp(raw string) (time.Time, bool) {
	raw = strings.TrimSpace(raw)
	if raw == "" {
		return time.Time{}, false
	}
	t, err := dateparse.ParseIn(raw, time.UTC)
	if err != nil {
		return time.Time{}, false
	}
	return t.UTC(), true
}

// CoerceTimestamp converts a column to timestamps. Cells that cannot be
// parsed become missing; the count of such cells is returned.
func (d *Dataset) CoerceTimestamp(name string) (int, error) {
	col, err := d.Column(name)
	if err != nil {
		return 0, err
	}

	invalid := 0
	values := make([]interface{}, col.Len())
	for i := 0; i < col.Len(); i++ {
		e := col.Elem(i)
		if e.IsNA() {
			continue
		}
		t, ok := ParseTimestamp(e.String())
		if !ok {
			invalid++
			continue
		}
		values[i] = t.Format(TimestampLayout)
	}

	if err := d.Replace(series.New(values, series.String, name)); err != nil {
		return 0, errors.Wrapf(err, "coerce %q to timestamp", name)
	}
	d.MarkTimestamp(name)
	return invalid, nil
}

// CoerceNumeric converts a column to float64. Cells that cannot be parsed
// become missing; the count of such cells is returned.
func (d *Dataset) CoerceNumeric(name string) (int, error) {
	col, err := d.Column(name)
	if err != nil {
		return 0, err
	}

	numeric := col.Type() == series.Float || col.Type() == series.Int
	invalid := 0
	values := make([]interface{}, col.Len())
	for i := 0; i < col.Len(); i++ {
		e := col.Elem(i)
		if e.IsNA() {
			continue
		}
		if numeric {
			values[i] = e.Float()
			continue
		}
		f, err := strconv.ParseFloat(strings.TrimSpace(e.String()), 64)
		if err != nil || math.IsNaN(f) || math.IsInf(f, 0) {
			invalid++
			continue
		}
		values[i] = f
	}

	if err := d.Replace(series.New(values, series.Float, name)); err != nil {
		return 0, errors.Wrapf(err, "coerce %q to numeric", name)
	}
	return invalid, nil
}

// Value returns the native Go value of cell i of col: string, int64, float64,
// bool or time.Time for timestamp columns. ok is false for missing cells.
func (d *Dataset) Value(col series.Series, i int) (interface{}, bool) {
	e := col.Elem(i)
	if e.IsNA() {
		return nil, false
	}
	switch col.Type() {
	case series.Int:
		v, err := e.Int()
		if err != nil {
			return nil, false
		}
		return int64(v), true
	case series.Float:
		return e.Float(), true
	case series.Bool:
		v, err := e.Bool()
		if err != nil {
			return nil, false
		}
		return v, true
	default:
		s := e.String()
		if d.IsTimestamp(col.Name) {
			t, ok := ParseTimestamp(s)
			if !ok {
				return nil, false
			}
			return t, true
		}
		return s, true
	}
}
