package main

import (
	"flag"
	"fmt"
	"net/http"
	"os"
	"strings"

	"github.com/Xanthus1/louisville-expenditure-etl/internal/mocksource"
)

func main() {
	addr := defaultString("MOCK_SOURCE_ADDR", ":4200")
	dataDir := defaultString("MOCK_SOURCE_DATA_DIR", "/data/source")

	fs := flag.NewFlagSet("mock-source", flag.ExitOnError)
	fs.StringVar(&addr, "addr", addr, "Listen address")
	fs.StringVar(&dataDir, "data-dir", dataDir, "Directory containing <file>.csv or <file>.csv.gz")
	_ = fs.Parse(os.Args[1:])

	srv := mocksource.New(dataDir)

	_, _ = fmt.Fprintf(os.Stdout, "mock-source listening on %s (data=%s)\n", addr, dataDir)
	if err := http.ListenAndServe(addr, srv.Handler()); err != nil {
		_, _ = fmt.Fprintf(os.Stderr, "server error: %v\n", err)
		os.Exit(1)
	}
}

func defaultString(envVar string, fallback string) string {
	v := strings.TrimSpace(os.Getenv(envVar))
	if v == "" {
		return fallback
	}
	return v
}
