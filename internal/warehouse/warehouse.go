// Package warehouse appends cleaned expenditure data to analytics tables.
package warehouse

import (
	"context"
	"strings"

	"github.com/pkg/errors"

	"github.com/Xanthus1/louisville-expenditure-etl/pkg/dataset"
)

// TableRef names a table inside a warehouse dataset (schema).
type TableRef struct {
	Dataset string
	Table   string
}

func (r TableRef) String() string {
	return r.Dataset + "." + r.Table
}

// Appender appends rows to a table, creating it if needed.
type Appender interface {
	Append(ctx context.Context, ref TableRef, ds *dataset.Dataset) error
	Close() error
}

const (
	BackendBigQuery = "bigquery"
	BackendPostgres = "postgres"
	BackendSQLite   = "sqlite"
)

type Config struct {
	Backend         string
	ProjectID       string
	DSN             string
	CredentialsPath string
}

// New builds the Appender for cfg.Backend.
func New(ctx context.Context, cfg Config) (Appender, error) {
	switch strings.ToLower(strings.TrimSpace(cfg.Backend)) {
	case BackendBigQuery, "":
		return NewBigQuery(ctx, cfg.ProjectID, cfg.CredentialsPath)
	case BackendPostgres:
		return OpenSQL(DialectPostgres, cfg.DSN)
	case BackendSQLite:
		return OpenSQL(DialectSQLite, cfg.DSN)
	default:
		return nil, errors.Errorf("unknown warehouse backend %q", cfg.Backend)
	}
}

// AppendInBatches appends ds in consecutive slices of at most chunkSize rows
// and returns the number of batches written. An empty dataset writes nothing.
func AppendInBatches(ctx context.Context, a Appender, ref TableRef, ds *dataset.Dataset, chunkSize int) (int, error) {
	if chunkSize <= 0 {
		return 0, errors.Errorf("chunk size must be positive, got %d", chunkSize)
	}
	n := ds.NumRows()
	batches := 0
	for start := 0; start < n; start += chunkSize {
		if err := ctx.Err(); err != nil {
			return batches, err
		}
		end := start + chunkSize
		if end > n {
			end = n
		}
		batch := ds
		if start != 0 || end != n {
			b, err := ds.Slice(start, end)
			if err != nil {
				return batches, errors.Wrapf(err, "slice rows %d-%d", start, end)
			}
			batch = b
		}
		if err := a.Append(ctx, ref, batch); err != nil {
			return batches, errors.Wrapf(err, "append rows %d-%d to %s", start, end, ref)
		}
		batches++
	}
	return batches, nil
}
