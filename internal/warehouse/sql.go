package warehouse

import (
	"context"
	"database/sql"
	"fmt"
	"strings"

	"github.com/go-gota/gota/series"
	"github.com/lib/pq"
	"github.com/pkg/errors"
	_ "modernc.org/sqlite"

	"github.com/Xanthus1/louisville-expenditure-etl/pkg/dataset"
)

// Dialect captures the differences between the SQL backends.
type Dialect struct {
	Driver string

	// Schemas reports whether TableRef.Dataset maps to a real schema.
	// Without schemas the table is named "<dataset>.<table>" verbatim.
	Schemas bool

	Text, Integer, Real, Boolean, Timestamp string

	placeholder func(i int) string
}

var (
	DialectPostgres = Dialect{
		Driver:      "postgres",
		Schemas:     true,
		Text:        "TEXT",
		Integer:     "BIGINT",
		Real:        "DOUBLE PRECISION",
		Boolean:     "BOOLEAN",
		Timestamp:   "TIMESTAMPTZ",
		placeholder: func(i int) string { return fmt.Sprintf("$%d", i) },
	}
	DialectSQLite = Dialect{
		Driver:      "sqlite",
		Text:        "TEXT",
		Integer:     "INTEGER",
		Real:        "REAL",
		Boolean:     "INTEGER",
		Timestamp:   "TIMESTAMP",
		placeholder: func(int) string { return "?" },
	}
)

// QualifiedName returns the quoted table identifier for ref.
func (d Dialect) QualifiedName(ref TableRef) string {
	if d.Schemas {
		return pq.QuoteIdentifier(ref.Dataset) + "." + pq.QuoteIdentifier(ref.Table)
	}
	return pq.QuoteIdentifier(ref.String())
}

func (d Dialect) columnType(ds *dataset.Dataset, s series.Series) string {
	switch {
	case ds.IsTimestamp(s.Name):
		return d.Timestamp
	case s.Type() == series.Int:
		return d.Integer
	case s.Type() == series.Float:
		return d.Real
	case s.Type() == series.Bool:
		return d.Boolean
	default:
		return d.Text
	}
}

// SQL appends rows with prepared INSERTs inside one transaction per call.
type SQL struct {
	db      *sql.DB
	dialect Dialect
}

// OpenSQL opens dsn with the dialect's driver.
func OpenSQL(d Dialect, dsn string) (*SQL, error) {
	if strings.TrimSpace(dsn) == "" {
		return nil, errors.Errorf("%s dsn is required", d.Driver)
	}
	db, err := sql.Open(d.Driver, dsn)
	if err != nil {
		return nil, errors.Wrapf(err, "open %s", d.Driver)
	}
	return NewSQL(db, d), nil
}

func NewSQL(db *sql.DB, d Dialect) *SQL {
	return &SQL{db: db, dialect: d}
}

func (s *SQL) Append(ctx context.Context, ref TableRef, ds *dataset.Dataset) (err error) {
	cols := make([]series.Series, 0, len(ds.Columns()))
	for _, name := range ds.Columns() {
		c, cerr := ds.Column(name)
		if cerr != nil {
			return cerr
		}
		cols = append(cols, c)
	}

	tx, err := s.db.BeginTx(ctx, nil)
	if err != nil {
		return errors.Wrap(err, "begin transaction")
	}
	defer func() {
		if err != nil {
			_ = tx.Rollback()
		}
	}()

	for _, stmt := range s.createStatements(ref, ds, cols) {
		if _, err = tx.ExecContext(ctx, stmt); err != nil {
			return errors.Wrapf(err, "create %s", ref)
		}
	}

	insert, err := tx.PrepareContext(ctx, s.insertStatement(ref, cols))
	if err != nil {
		return errors.Wrapf(err, "prepare insert into %s", ref)
	}
	defer func() {
		_ = insert.Close()
	}()

	args := make([]interface{}, len(cols))
	for i := 0; i < ds.NumRows(); i++ {
		for j, c := range cols {
			if v, ok := ds.Value(c, i); ok {
				args[j] = v
			} else {
				args[j] = nil
			}
		}
		if _, err = insert.ExecContext(ctx, args...); err != nil {
			return errors.Wrapf(err, "insert row %d into %s", i, ref)
		}
	}

	if err = tx.Commit(); err != nil {
		return errors.Wrap(err, "commit")
	}
	return nil
}

func (s *SQL) createStatements(ref TableRef, ds *dataset.Dataset, cols []series.Series) []string {
	var out []string
	if s.dialect.Schemas {
		out = append(out, "CREATE SCHEMA IF NOT EXISTS "+pq.QuoteIdentifier(ref.Dataset))
	}
	defs := make([]string, len(cols))
	for i, c := range cols {
		defs[i] = pq.QuoteIdentifier(c.Name) + " " + s.dialect.columnType(ds, c)
	}
	out = append(out, fmt.Sprintf("CREATE TABLE IF NOT EXISTS %s (%s)",
		s.dialect.QualifiedName(ref), strings.Join(defs, ", ")))
	return out
}

func (s *SQL) insertStatement(ref TableRef, cols []series.Series) string {
	names := make([]string, len(cols))
	marks := make([]string, len(cols))
	for i, c := range cols {
		names[i] = pq.QuoteIdentifier(c.Name)
		marks[i] = s.dialect.placeholder(i + 1)
	}
	return fmt.Sprintf("INSERT INTO %s (%s) VALUES (%s)",
		s.dialect.QualifiedName(ref), strings.Join(names, ", "), strings.Join(marks, ", "))
}

func (s *SQL) Close() error {
	return s.db.Close()
}
