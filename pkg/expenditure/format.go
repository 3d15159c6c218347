package expenditure

import (
	"fmt"

	"github.com/Xanthus1/louisville-expenditure-etl/pkg/dataset"
)

// Format identifies a known column layout of the expenditure data. Formats
// are named by the first fiscal year they were used.
type Format int

const (
	FormatUnknown Format = -1
	Format2008    Format = 1 // 2008-2017
	Format2018    Format = 2 // 2018-2022
)

func (f Format) String() string {
	switch f {
	case Format2008:
		return "FMT1_2008"
	case Format2018:
		return "FMT2_2018"
	default:
		return "FMT_UNKNOWN"
	}
}

var columns2008 = []string{
	"ObjectId", "Fiscal_Year", "Budget_Type", "Agency_Name",
	"Sub_Agency_Name", "DepartmentName", "Sub_DepartmentName", "Category",
	"Sub_Category", "Stimulus_Type", "Funding_Source", "Vendor_Name",
	"InvoiceID", "InvoiceDt", "InvoiceAmt", "DistributionAmt", "CheckID",
	"CheckDt", "CheckAmt", "CheckVoidDt",
}

var columns2018 = []string{
	"ObjectId", "fiscal_year", "invoice_date", "invoice_number",
	"invoice_amount", "payee", "payment_date", "payment_number", "agency",
	"expenditure_type", "expenditure_category", "spend_category",
	"cost_center", "project", "program", "grant_", "fund",
	"financing_source", "region", "extended_amount",
}

// knownFormats is checked in order; the reference sets are disjoint.
var knownFormats = []struct {
	format  Format
	columns []string
}{
	{format: Format2008, columns: columns2008},
	{format: Format2018, columns: columns2018},
}

// Columns returns the reference column set of a known format, nil otherwise.
func (f Format) Columns() []string {
	for _, k := range knownFormats {
		if k.format == f {
			out := make([]string, len(k.columns))
			copy(out, k.columns)
			return out
		}
	}
	return nil
}

// AgencyColumn names the column holding free-text agency names.
func (f Format) AgencyColumn() string {
	switch f {
	case Format2008:
		return "Agency_Name"
	case Format2018:
		return "agency"
	default:
		return ""
	}
}

// TableName is the warehouse table receiving data of this format.
func (f Format) TableName() string {
	return fmt.Sprintf("%s_expenditure_data", f)
}

// Classify maps a column set to its format. The comparison is an exact,
// unordered set match: extra or missing columns yield FormatUnknown.
func Classify(columns []string) Format {
	got := make(map[string]struct{}, len(columns))
	for _, c := range columns {
		got[c] = struct{}{}
	}
	for _, k := range knownFormats {
		if sameSet(got, k.columns) {
			return k.format
		}
	}
	return FormatUnknown
}

// ClassifyDataset classifies a dataset by its column names.
func ClassifyDataset(ds *dataset.Dataset) Format {
	return Classify(ds.Columns())
}

func sameSet(got map[string]struct{}, want []string) bool {
	if len(got) != len(want) {
		return false
	}
	for _, c := range want {
		if _, ok := got[c]; !ok {
			return false
		}
	}
	return true
}
