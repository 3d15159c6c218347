package app

import (
	"context"
	"net/http"
	"time"

	"github.com/pkg/errors"
	"go.uber.org/zap"

	"github.com/Xanthus1/louisville-expenditure-etl/internal/config"
	"github.com/Xanthus1/louisville-expenditure-etl/internal/objectstore"
	"github.com/Xanthus1/louisville-expenditure-etl/internal/source"
	"github.com/Xanthus1/louisville-expenditure-etl/pkg/columnar"
	"github.com/Xanthus1/louisville-expenditure-etl/pkg/expenditure"
	"github.com/Xanthus1/louisville-expenditure-etl/pkg/pipeline/core"
)

// Ingest runs Fetch -> Clean -> PersistLocal -> Upload for fiscal years.
type Ingest struct {
	Config  config.Config
	Fetcher source.Fetcher
	Store   objectstore.Store
	Logger  *zap.Logger
}

// Run ingests start..end inclusive, one year after another.
func (in *Ingest) Run(ctx context.Context, start, end int) error {
	return runYears(ctx, "ingest", in.Config, in.logger(), start, end, in.year)
}

// Year ingests a single fiscal year.
func (in *Ingest) Year(ctx context.Context, year int) error {
	return in.year(ctx, in.logger().With(zap.Int("year", year)), year)
}

func (in *Ingest) logger() *zap.Logger {
	if in.Logger == nil {
		return zap.NewNop()
	}
	return in.Logger
}

func (in *Ingest) year(ctx context.Context, logger *zap.Logger, year int) error {
	compression, err := columnar.ParseCompression(in.Config.Compression)
	if err != nil {
		return err
	}

	fetchStart := time.Now()
	ds, err := in.Fetcher.Fetch(ctx, year)
	if err != nil {
		return markTransientFetch(errors.Wrapf(err, "fetch fiscal year %d", year))
	}
	logger.Info("fetched source",
		zap.Int("rows", ds.NumRows()),
		zap.Int("columns", len(ds.Columns())),
		zap.Int64("duration_ms", time.Since(fetchStart).Milliseconds()),
	)

	format, stats, err := expenditure.Clean(ds)
	if err != nil {
		return errors.Wrapf(err, "clean fiscal year %d", year)
	}
	logger.Info("cleaned dataset",
		zap.Stringer("format", format),
		zap.Int("invalid_timestamps", stats.InvalidTimestamps),
		zap.Int("invalid_numerics", stats.InvalidNumerics),
	)

	localPath := expenditure.LocalPath(in.Config.DataDir, year)
	writeStart := time.Now()
	if err := columnar.WriteFile(localPath, ds, compression); err != nil {
		return errors.Wrapf(err, "persist %s", localPath)
	}
	logger.Info("wrote parquet",
		zap.String("path", localPath),
		zap.String("compression", string(compression)),
		zap.Int64("duration_ms", time.Since(writeStart).Milliseconds()),
	)

	objectPath := expenditure.ObjectPath(year)
	uploadStart := time.Now()
	if err := in.Store.Upload(ctx, localPath, objectPath); err != nil {
		return errors.Wrapf(err, "upload %s", objectPath)
	}
	logger.Info("uploaded parquet",
		zap.String("object", objectPath),
		zap.Int64("duration_ms", time.Since(uploadStart).Milliseconds()),
	)
	return nil
}

// markTransientFetch lets the chain runner retry server-side source failures.
func markTransientFetch(err error) error {
	var httpErr *source.HTTPError
	if errors.As(err, &httpErr) && httpErr.StatusCode >= http.StatusInternalServerError {
		return &core.TransientError{Err: err}
	}
	return err
}
