package source

import (
	"context"
	"os"
	"path/filepath"

	"github.com/pkg/errors"

	"github.com/Xanthus1/louisville-expenditure-etl/pkg/dataset"
	"github.com/Xanthus1/louisville-expenditure-etl/pkg/expenditure"
)

// LocalFetcher reads <Dir>/<file>.csv.gz, falling back to <Dir>/<file>.csv.
type LocalFetcher struct {
	Dir string
}

func (f *LocalFetcher) Fetch(ctx context.Context, year int) (*dataset.Dataset, error) {
	if err := ctx.Err(); err != nil {
		return nil, err
	}
	name := expenditure.FileName(year)
	candidates := []string{
		filepath.Join(f.Dir, name+".csv.gz"),
		filepath.Join(f.Dir, name+".csv"),
	}
	for _, path := range candidates {
		fh, err := os.Open(path)
		if errors.Is(err, os.ErrNotExist) {
			continue
		}
		if err != nil {
			return nil, errors.Wrapf(err, "open %s", path)
		}
		ds, err := dataset.ReadCSV(fh)
		_ = fh.Close()
		if err != nil {
			return nil, errors.Wrapf(err, "read %s", path)
		}
		return ds, nil
	}
	return nil, errors.Errorf("no source file for fiscal year %d in %s", year, f.Dir)
}
