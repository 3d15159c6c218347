package expenditure

import (
	"strings"

	"github.com/go-gota/gota/series"
	"github.com/pkg/errors"

	"github.com/Xanthus1/louisville-expenditure-etl/pkg/dataset"
)

// Canonical agency names.
const (
	AgencyPolice      = "Louisville Metro Police Department"
	AgencyPublicWorks = "Public Works & Assets Department"
)

// AgencyRule maps agency names containing Keyword (case-insensitive) to Canonical.
type AgencyRule struct {
	Keyword   string
	Canonical string
}

// DefaultAgencyRules are applied in order; the first matching keyword wins.
var DefaultAgencyRules = []AgencyRule{
	{Keyword: "police", Canonical: AgencyPolice},
	{Keyword: "public works", Canonical: AgencyPublicWorks},
}

// CanonicalAgency returns the canonical name for name, or name unchanged when
// no rule matches.
func CanonicalAgency(name string, rules []AgencyRule) string {
	lower := strings.ToLower(name)
	for _, r := range rules {
		if strings.Contains(lower, strings.ToLower(r.Keyword)) {
			return r.Canonical
		}
	}
	return name
}

// NormalizeAgencies rewrites the agency column of ds in place. Only that
// column is touched and missing cells stay missing. It returns the number of
// cells whose value changed.
func NormalizeAgencies(ds *dataset.Dataset, f Format, rules []AgencyRule) (int, error) {
	name := f.AgencyColumn()
	if name == "" {
		return 0, &ClassificationError{Format: f, Columns: ds.Columns()}
	}
	col, err := ds.Column(name)
	if err != nil {
		return 0, errors.Wrapf(err, "normalize agencies for %s", f)
	}

	changed := 0
	values := make([]interface{}, col.Len())
	for i := 0; i < col.Len(); i++ {
		e := col.Elem(i)
		if e.IsNA() {
			continue
		}
		before := e.String()
		after := CanonicalAgency(before, rules)
		if after != before {
			changed++
		}
		values[i] = after
	}

	if changed == 0 {
		return 0, nil
	}
	if err := ds.Replace(series.New(values, series.String, name)); err != nil {
		return 0, errors.Wrapf(err, "normalize agencies for %s", f)
	}
	return changed, nil
}
