package expenditure

import (
	"fmt"
	"strings"

	"github.com/pkg/errors"

	"github.com/Xanthus1/louisville-expenditure-etl/pkg/dataset"
)

// ClassificationError reports a dataset whose columns match no known format.
type ClassificationError struct {
	Format  Format
	Columns []string
}

func (e *ClassificationError) Error() string {
	if e == nil {
		return "unknown data format"
	}
	return fmt.Sprintf("unknown data format on cleaning dataset: %s. columns: [%s]", e.Format, strings.Join(e.Columns, ", "))
}

// cleaningRules lists the columns to coerce for one format.
type cleaningRules struct {
	timestamps []string
	numerics   []string
}

var rulesByFormat = map[Format]cleaningRules{
	// Some years carry unparseable dates and non-integer invoice IDs.
	Format2008: {
		timestamps: []string{"InvoiceDt", "CheckDt", "CheckVoidDt"},
		numerics:   []string{"InvoiceID"},
	},
	Format2018: {
		timestamps: []string{"invoice_date", "payment_date"},
	},
}

// CleanStats counts the cells replaced by missing values during cleaning.
type CleanStats struct {
	InvalidTimestamps int
	InvalidNumerics   int
}

// Clean classifies ds and applies the cleaning rules of its format in place.
func Clean(ds *dataset.Dataset) (Format, CleanStats, error) {
	f := ClassifyDataset(ds)
	stats, err := CleanAs(ds, f)
	return f, stats, err
}

// CleanAs applies the cleaning rules of f to ds in place. Unparseable values
// become missing rather than failing; FormatUnknown is an error.
func CleanAs(ds *dataset.Dataset, f Format) (CleanStats, error) {
	rules, ok := rulesByFormat[f]
	if !ok {
		return CleanStats{}, &ClassificationError{Format: f, Columns: ds.Columns()}
	}

	var stats CleanStats
	for _, col := range rules.timestamps {
		n, err := ds.CoerceTimestamp(col)
		if err != nil {
			return stats, errors.Wrapf(err, "clean %s", f)
		}
		stats.InvalidTimestamps += n
	}
	for _, col := range rules.numerics {
		n, err := ds.CoerceNumeric(col)
		if err != nil {
			return stats, errors.Wrapf(err, "clean %s", f)
		}
		stats.InvalidNumerics += n
	}
	return stats, nil
}

// TimestampColumns returns the columns of f holding timestamps once cleaned.
func (f Format) TimestampColumns() []string {
	rules := rulesByFormat[f]
	out := make([]string, len(rules.timestamps))
	copy(out, rules.timestamps)
	return out
}
