package expenditure_test

import (
	"errors"
	"strings"
	"testing"

	"github.com/go-gota/gota/series"
	"github.com/google/go-cmp/cmp"

	"github.com/Xanthus1/louisville-expenditure-etl/pkg/dataset"
	"github.com/Xanthus1/louisville-expenditure-etl/pkg/expenditure"
)

func rowFor(columns []string, values map[string]string) []string {
	row := make([]string, len(columns))
	for i, c := range columns {
		if v, ok := values[c]; ok {
			row[i] = v
			continue
		}
		row[i] = "x"
	}
	return row
}

func fmt2008Dataset(t *testing.T, rows ...map[string]string) *dataset.Dataset {
	t.Helper()
	cols := expenditure.Format2008.Columns()
	records := [][]string{cols}
	for _, r := range rows {
		records = append(records, rowFor(cols, r))
	}
	ds, err := dataset.FromRecords(records)
	if err != nil {
		t.Fatalf("build dataset: %v", err)
	}
	return ds
}

func fmt2018Dataset(t *testing.T, rows ...map[string]string) *dataset.Dataset {
	t.Helper()
	cols := expenditure.Format2018.Columns()
	records := [][]string{cols}
	for _, r := range rows {
		records = append(records, rowFor(cols, r))
	}
	ds, err := dataset.FromRecords(records)
	if err != nil {
		t.Fatalf("build dataset: %v", err)
	}
	return ds
}

func TestClassify(t *testing.T) {
	cols2008 := expenditure.Format2008.Columns()
	cols2018 := expenditure.Format2018.Columns()

	reversed := make([]string, len(cols2018))
	for i, c := range cols2018 {
		reversed[len(cols2018)-1-i] = c
	}

	tests := []struct {
		name string
		in   []string
		want expenditure.Format
	}{
		{name: "2008 exact", in: cols2008, want: expenditure.Format2008},
		{name: "2018 exact", in: cols2018, want: expenditure.Format2018},
		{name: "2018 any order", in: reversed, want: expenditure.Format2018},
		{name: "superset", in: append(append([]string{}, cols2008...), "Extra"), want: expenditure.FormatUnknown},
		{name: "subset", in: cols2018[1:], want: expenditure.FormatUnknown},
		{name: "renamed column", in: append(append([]string{}, cols2008[1:]...), "objectid"), want: expenditure.FormatUnknown},
		{name: "mixed", in: append(append([]string{}, cols2008[:10]...), cols2018[10:]...), want: expenditure.FormatUnknown},
		{name: "empty", in: nil, want: expenditure.FormatUnknown},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			if got := expenditure.Classify(tt.in); got != tt.want {
				t.Fatalf("Classify()=%s want=%s", got, tt.want)
			}
		})
	}
}

func TestFormatNames(t *testing.T) {
	tests := []struct {
		f      expenditure.Format
		name   string
		table  string
		agency string
	}{
		{f: expenditure.Format2008, name: "FMT1_2008", table: "FMT1_2008_expenditure_data", agency: "Agency_Name"},
		{f: expenditure.Format2018, name: "FMT2_2018", table: "FMT2_2018_expenditure_data", agency: "agency"},
		{f: expenditure.FormatUnknown, name: "FMT_UNKNOWN", table: "FMT_UNKNOWN_expenditure_data", agency: ""},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			if got := tt.f.String(); got != tt.name {
				t.Fatalf("String()=%q want=%q", got, tt.name)
			}
			if got := tt.f.TableName(); got != tt.table {
				t.Fatalf("TableName()=%q want=%q", got, tt.table)
			}
			if got := tt.f.AgencyColumn(); got != tt.agency {
				t.Fatalf("AgencyColumn()=%q want=%q", got, tt.agency)
			}
		})
	}
}

func TestClean2008(t *testing.T) {
	ds := fmt2008Dataset(t,
		map[string]string{"InvoiceID": "1001", "InvoiceDt": "2008-07-15", "CheckDt": "2008-07-20", "CheckVoidDt": "not-a-date"},
		map[string]string{"InvoiceID": "INV-17", "InvoiceDt": "07/16/2008", "CheckDt": "", "CheckVoidDt": ""},
	)

	f, stats, err := expenditure.Clean(ds)
	if err != nil {
		t.Fatalf("unexpected error: %v", err)
	}
	if f != expenditure.Format2008 {
		t.Fatalf("expected FMT1_2008, got %s", f)
	}
	if stats.InvalidTimestamps != 1 || stats.InvalidNumerics != 1 {
		t.Fatalf("unexpected stats: %#v", stats)
	}
	if ds.NumRows() != 2 {
		t.Fatalf("expected rows to be preserved, got %d", ds.NumRows())
	}

	voidDt, _ := ds.Column("CheckVoidDt")
	if !voidDt.Elem(0).IsNA() {
		t.Fatalf("expected malformed date to be missing, got %q", voidDt.Elem(0).String())
	}
	invoiceDt, _ := ds.Column("InvoiceDt")
	if got := invoiceDt.Elem(1).String(); got != "2008-07-16T00:00:00Z" {
		t.Fatalf("unexpected InvoiceDt: %q", got)
	}
	invoiceID, _ := ds.Column("InvoiceID")
	if got := invoiceID.Elem(0).Float(); got != 1001 {
		t.Fatalf("unexpected InvoiceID: %v", got)
	}
	if !invoiceID.Elem(1).IsNA() {
		t.Fatalf("expected non-numeric InvoiceID to be missing")
	}
	vendor, _ := ds.Column("Vendor_Name")
	if got := vendor.Elem(0).String(); got != "x" {
		t.Fatalf("untouched column changed: %q", got)
	}

	for _, c := range expenditure.Format2008.TimestampColumns() {
		if !ds.IsTimestamp(c) {
			t.Fatalf("expected %s to be flagged as timestamp", c)
		}
	}
}

func TestClean2018(t *testing.T) {
	ds := fmt2018Dataset(t,
		map[string]string{"invoice_date": "2018-08-01 00:00:00", "payment_date": "garbage", "invoice_number": "ABC"},
	)

	f, stats, err := expenditure.Clean(ds)
	if err != nil {
		t.Fatalf("unexpected error: %v", err)
	}
	if f != expenditure.Format2018 {
		t.Fatalf("expected FMT2_2018, got %s", f)
	}
	if stats.InvalidTimestamps != 1 || stats.InvalidNumerics != 0 {
		t.Fatalf("unexpected stats: %#v", stats)
	}
	invoiceDate, _ := ds.Column("invoice_date")
	if got := invoiceDate.Elem(0).String(); got != "2018-08-01T00:00:00Z" {
		t.Fatalf("unexpected invoice_date: %q", got)
	}
	number, _ := ds.Column("invoice_number")
	if got := number.Elem(0).String(); got != "ABC" {
		t.Fatalf("invoice_number must not be coerced in FMT2_2018, got %q", got)
	}
}

func TestCleanUnknownFails(t *testing.T) {
	ds, err := dataset.FromRecords([][]string{{"a", "b"}, {"1", "2"}})
	if err != nil {
		t.Fatalf("build dataset: %v", err)
	}

	f, _, err := expenditure.Clean(ds)
	if err == nil {
		t.Fatalf("expected error")
	}
	if f != expenditure.FormatUnknown {
		t.Fatalf("expected FMT_UNKNOWN, got %s", f)
	}
	var ce *expenditure.ClassificationError
	if !errors.As(err, &ce) {
		t.Fatalf("expected ClassificationError, got %T", err)
	}
	if diff := cmp.Diff([]string{"a", "b"}, ce.Columns); diff != "" {
		t.Fatalf("columns mismatch (-want +got):\n%s", diff)
	}
	if !strings.Contains(err.Error(), "a, b") {
		t.Fatalf("error should name the columns: %q", err.Error())
	}
}

func TestCleanIsIdempotent(t *testing.T) {
	tests := []struct {
		name string
		ds   func(t *testing.T) *dataset.Dataset
	}{
		{
			name: "2008",
			ds: func(t *testing.T) *dataset.Dataset {
				return fmt2008Dataset(t, map[string]string{"InvoiceID": "12", "InvoiceDt": "2012-01-05", "CheckDt": "bad", "CheckVoidDt": ""})
			},
		},
		{
			name: "2018",
			ds: func(t *testing.T) *dataset.Dataset {
				return fmt2018Dataset(t, map[string]string{"invoice_date": "2019-03-04T05:06:07Z", "payment_date": "03/05/2019"})
			},
		},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			ds := tt.ds(t)
			if _, _, err := expenditure.Clean(ds); err != nil {
				t.Fatalf("first clean: %v", err)
			}
			once := ds.Records()

			_, stats, err := expenditure.Clean(ds)
			if err != nil {
				t.Fatalf("second clean: %v", err)
			}
			if stats != (expenditure.CleanStats{}) {
				t.Fatalf("second clean replaced cells: %#v", stats)
			}
			if diff := cmp.Diff(once, ds.Records()); diff != "" {
				t.Fatalf("second clean changed data (-first +second):\n%s", diff)
			}
		})
	}
}

func TestCanonicalAgency(t *testing.T) {
	tests := []struct {
		in   string
		want string
	}{
		{in: "Louisville Metro Police Department - Division X", want: expenditure.AgencyPolice},
		{in: "LOUISVILLE METRO POLICE", want: expenditure.AgencyPolice},
		{in: "Some Public Works & Assets Department Unit", want: expenditure.AgencyPublicWorks},
		{in: "Parks and Recreation", want: "Parks and Recreation"},
		{in: "", want: ""},
	}
	for _, tt := range tests {
		t.Run(tt.in, func(t *testing.T) {
			if got := expenditure.CanonicalAgency(tt.in, expenditure.DefaultAgencyRules); got != tt.want {
				t.Fatalf("CanonicalAgency(%q)=%q want=%q", tt.in, got, tt.want)
			}
		})
	}
}

func TestCanonicalAgencyFirstMatchWins(t *testing.T) {
	in := "Police Public Works Liaison"
	if got := expenditure.CanonicalAgency(in, expenditure.DefaultAgencyRules); got != expenditure.AgencyPolice {
		t.Fatalf("expected police rule to win, got %q", got)
	}

	reordered := []expenditure.AgencyRule{expenditure.DefaultAgencyRules[1], expenditure.DefaultAgencyRules[0]}
	if got := expenditure.CanonicalAgency(in, reordered); got != expenditure.AgencyPublicWorks {
		t.Fatalf("expected public works rule to win when listed first, got %q", got)
	}
}

func TestNormalizeAgencies(t *testing.T) {
	ds := fmt2018Dataset(t,
		map[string]string{"agency": "Louisville Metro Police Department - Division X", "payee": "Police Supply Co"},
		map[string]string{"agency": "Parks and Recreation"},
		map[string]string{"agency": ""},
	)

	changed, err := expenditure.NormalizeAgencies(ds, expenditure.Format2018, expenditure.DefaultAgencyRules)
	if err != nil {
		t.Fatalf("unexpected error: %v", err)
	}
	if changed != 1 {
		t.Fatalf("expected 1 changed cell, got %d", changed)
	}

	agency, _ := ds.Column("agency")
	if got := agency.Elem(0).String(); got != expenditure.AgencyPolice {
		t.Fatalf("unexpected agency[0]: %q", got)
	}
	if got := agency.Elem(1).String(); got != "Parks and Recreation" {
		t.Fatalf("unexpected agency[1]: %q", got)
	}
	if !agency.Elem(2).IsNA() {
		t.Fatalf("expected missing agency to stay missing")
	}
	payee, _ := ds.Column("payee")
	if got := payee.Elem(0).String(); got != "Police Supply Co" {
		t.Fatalf("other columns must not change, payee=%q", got)
	}

	if _, err := expenditure.NormalizeAgencies(ds, expenditure.FormatUnknown, expenditure.DefaultAgencyRules); err == nil {
		t.Fatalf("expected error for unknown format")
	}
}

func TestNormalizeAgenciesKeepsColumnWhenUnchanged(t *testing.T) {
	ds := fmt2018Dataset(t,
		map[string]string{"agency": "101"},
		map[string]string{"agency": "202"},
	)
	before, _ := ds.Column("agency")
	if before.Type() != series.Int {
		t.Fatalf("expected agency to be inferred as int, got %s", before.Type())
	}

	changed, err := expenditure.NormalizeAgencies(ds, expenditure.Format2018, expenditure.DefaultAgencyRules)
	if err != nil {
		t.Fatalf("unexpected error: %v", err)
	}
	if changed != 0 {
		t.Fatalf("expected no changed cells, got %d", changed)
	}
	after, _ := ds.Column("agency")
	if after.Type() != series.Int {
		t.Fatalf("agency column type changed to %s", after.Type())
	}
}

func TestCleanByteOrderMarkFile(t *testing.T) {
	cols := expenditure.Format2018.Columns()
	body := "\ufeff" + strings.Join(cols, ",") + "\n" + strings.Join(rowFor(cols, map[string]string{"invoice_date": "2018-07-01"}), ",") + "\n"
	ds, err := dataset.ReadCSV(strings.NewReader(body))
	if err != nil {
		t.Fatalf("read: %v", err)
	}
	f, _, err := expenditure.Clean(ds)
	if err != nil {
		t.Fatalf("clean: %v", err)
	}
	if f != expenditure.Format2018 {
		t.Fatalf("expected %s, got %s", expenditure.Format2018, f)
	}
}

func TestCleanHeaderOnlyFile(t *testing.T) {
	cols := expenditure.Format2008.Columns()
	ds, err := dataset.ReadCSV(strings.NewReader(strings.Join(cols, ",") + "\n"))
	if err != nil {
		t.Fatalf("read: %v", err)
	}
	f, stats, err := expenditure.Clean(ds)
	if err != nil {
		t.Fatalf("clean: %v", err)
	}
	if f != expenditure.Format2008 {
		t.Fatalf("expected %s, got %s", expenditure.Format2008, f)
	}
	if stats != (expenditure.CleanStats{}) {
		t.Fatalf("expected no invalid cells, got %+v", stats)
	}
	if ds.NumRows() != 0 {
		t.Fatalf("expected no rows, got %d", ds.NumRows())
	}
}

func TestPaths(t *testing.T) {
	if got, want := expenditure.ObjectPath(2008), "data/Louisville_Metro_KY_-_Expenditures_Data_For_Fiscal_Year_2008.parquet"; got != want {
		t.Fatalf("ObjectPath()=%q want=%q", got, want)
	}
	if got, want := expenditure.SourceURL("https://example.test/v1.0/", 2018), "https://example.test/v1.0/Louisville_Metro_KY_-_Expenditures_Data_For_Fiscal_Year_2018.csv.gz"; got != want {
		t.Fatalf("SourceURL()=%q want=%q", got, want)
	}
}
