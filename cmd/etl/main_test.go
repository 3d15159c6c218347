package main

import (
	"bytes"
	"context"
	"database/sql"
	"net/http/httptest"
	"os"
	"path/filepath"
	"strings"
	"testing"

	"github.com/stretchr/testify/require"
	_ "modernc.org/sqlite"

	"github.com/Xanthus1/louisville-expenditure-etl/internal/config"
	"github.com/Xanthus1/louisville-expenditure-etl/internal/mocksource"
	"github.com/Xanthus1/louisville-expenditure-etl/pkg/expenditure"
)

func execute(t *testing.T, args ...string) (int, string) {
	t.Helper()
	state := &runState{}
	var stdout, stderr bytes.Buffer
	rc := newRootCommand(state, &stdout, &stderr)
	rc.SetArgs(args)
	if err := rc.ExecuteContext(context.Background()); err != nil {
		return exitCode(state, err), stdout.String()
	}
	return 0, stdout.String()
}

func TestConfigCommand(t *testing.T) {
	t.Setenv(config.EnvConfig, "")
	t.Setenv("ETL_PROJECT_ID", "civic")

	code, out := execute(t, "config")
	require.Equal(t, 0, code)
	require.Contains(t, out, "dataset: louisville_data_all")
	require.Contains(t, out, "bucket: louisville_data_lake_civic")
}

func TestUsageErrorsExitTwo(t *testing.T) {
	t.Setenv(config.EnvConfig, "")

	tests := [][]string{
		{"bogus"},
		{"ingest", "--start_year", "2019", "--end_year", "2018"},
		{"load", "--start_year", "2001"},
		{"load", "--unknown-flag"},
		{"ingest", "extra-arg"},
	}
	for _, args := range tests {
		t.Run(strings.Join(args, " "), func(t *testing.T) {
			code, _ := execute(t, args...)
			require.Equal(t, 2, code)
		})
	}

	// Default configuration has no project, so bigquery cannot be used.
	code, _ := execute(t, "load")
	require.Equal(t, 2, code)
}

func TestHealthcheckCommand(t *testing.T) {
	t.Setenv(config.EnvConfig, "")
	srv := mocksource.New(t.TempDir())
	ts := httptest.NewServer(srv.Handler())
	t.Cleanup(ts.Close)
	t.Setenv("ETL_HEALTHCHECK_URL", ts.URL+"/api")

	code, _ := execute(t, "healthcheck")
	require.Equal(t, 0, code)

	srv.SetHealthy(false)
	code, _ = execute(t, "healthcheck")
	require.Equal(t, 1, code)
}

func TestIngestAndLoadEndToEnd(t *testing.T) {
	root := t.TempDir()
	sourceDir := filepath.Join(root, "source")
	require.NoError(t, os.MkdirAll(sourceDir, 0o755))

	header := strings.Join(expenditure.Format2018.Columns(), ",")
	row := make([]string, len(expenditure.Format2018.Columns()))
	for i, c := range expenditure.Format2018.Columns() {
		switch c {
		case "ObjectId":
			row[i] = "1"
		case "agency":
			row[i] = "Metro Police"
		case "invoice_date":
			row[i] = "2018-07-01"
		}
	}
	csvBody := header + "\n" + strings.Join(row, ",") + "\n"
	require.NoError(t, os.WriteFile(filepath.Join(sourceDir, expenditure.FileName(2018)+".csv"), []byte(csvBody), 0o644))

	srv := mocksource.New(sourceDir)
	ts := httptest.NewServer(srv.Handler())
	t.Cleanup(ts.Close)

	dsn := filepath.Join(root, "warehouse.db")
	t.Setenv(config.EnvConfig, "")
	t.Setenv("ETL_SOURCE_BASE_URL", ts.URL)
	t.Setenv("ETL_SOURCE_CACHE_PATH", filepath.Join(root, "cache", "fetch.db"))
	t.Setenv("ETL_DATA_DIR", filepath.Join(root, "work"))
	t.Setenv("ETL_STORAGE_BACKEND", "local")
	t.Setenv("ETL_STORAGE_LOCAL_DIR", filepath.Join(root, "lake"))
	t.Setenv("ETL_WAREHOUSE_BACKEND", "sqlite")
	t.Setenv("ETL_WAREHOUSE_DSN", dsn)
	t.Setenv("ETL_LOG_LEVEL", "error")

	code, _ := execute(t, "ingest", "--start_year", "2018", "--end_year", "2018")
	require.Equal(t, 0, code)
	_, err := os.Stat(filepath.Join(root, "lake", "data", expenditure.FileName(2018)+".parquet"))
	require.NoError(t, err)

	code, _ = execute(t, "load-normalized", "--start_year", "2018", "--end_year", "2018")
	require.Equal(t, 0, code)

	db, err := sql.Open("sqlite", dsn)
	require.NoError(t, err)
	defer db.Close()
	var agency string
	require.NoError(t, db.QueryRow(`SELECT "agency" FROM "louisville_data_all.FMT2_2018_expenditure_data"`).Scan(&agency))
	require.Equal(t, expenditure.AgencyPolice, agency)

	// A year with no source fails the run.
	code, _ = execute(t, "ingest", "--start_year", "2017", "--end_year", "2017")
	require.Equal(t, 1, code)
}
