// Package source fetches the raw fiscal-year expenditure CSVs, either over
// HTTP from the published release or from a local directory.
package source

import (
	"context"
	"strings"
	"time"

	"github.com/pkg/errors"
	"go.uber.org/zap"

	"github.com/Xanthus1/louisville-expenditure-etl/pkg/dataset"
)

// Fetcher returns the raw dataset for one fiscal year.
type Fetcher interface {
	Fetch(ctx context.Context, year int) (*dataset.Dataset, error)
}

// Config selects and tunes the Fetcher built by New.
type Config struct {
	// BaseURL is the release URL the <file>.csv.gz objects live under.
	BaseURL string
	// Dir switches to local files when set.
	Dir string

	Retries   int
	Timeout   time.Duration
	CachePath string
	CacheTTL  time.Duration
}

// New returns a LocalFetcher when cfg.Dir is set and a RemoteFetcher otherwise.
// The returned close function releases the fetch cache, if any.
func New(cfg Config, logger *zap.Logger) (Fetcher, func() error, error) {
	if strings.TrimSpace(cfg.Dir) != "" {
		return &LocalFetcher{Dir: cfg.Dir}, func() error { return nil }, nil
	}
	if strings.TrimSpace(cfg.BaseURL) == "" {
		return nil, nil, errors.New("source base url is required when no source dir is set")
	}

	var cache *Cache
	if strings.TrimSpace(cfg.CachePath) != "" {
		c, err := OpenCache(cfg.CachePath, cfg.CacheTTL)
		if err != nil {
			return nil, nil, err
		}
		cache = c
	}

	f := NewRemoteFetcher(cfg.BaseURL, RemoteOptions{
		Retries: cfg.Retries,
		Timeout: cfg.Timeout,
		Cache:   cache,
		Logger:  logger,
	})
	closeFn := func() error {
		if cache == nil {
			return nil
		}
		return cache.Close()
	}
	return f, closeFn, nil
}
