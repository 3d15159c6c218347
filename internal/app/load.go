package app

import (
	"context"
	"strings"
	"time"

	"github.com/pkg/errors"
	"go.uber.org/zap"

	"github.com/Xanthus1/louisville-expenditure-etl/internal/config"
	"github.com/Xanthus1/louisville-expenditure-etl/internal/objectstore"
	"github.com/Xanthus1/louisville-expenditure-etl/internal/warehouse"
	"github.com/Xanthus1/louisville-expenditure-etl/pkg/columnar"
	"github.com/Xanthus1/louisville-expenditure-etl/pkg/dataset"
	"github.com/Xanthus1/louisville-expenditure-etl/pkg/expenditure"
)

// Transform is applied to each downloaded dataset before it is appended.
type Transform string

const (
	TransformIdentity Transform = "identity"
	TransformAgency   Transform = "normalize-agencies"
)

// ParseTransform accepts identity and normalize-agencies; empty means identity.
func ParseTransform(raw string) (Transform, error) {
	switch t := Transform(strings.ToLower(strings.TrimSpace(raw))); t {
	case TransformIdentity, TransformAgency:
		return t, nil
	case "":
		return TransformIdentity, nil
	default:
		return "", errors.Errorf("unknown transform %q", raw)
	}
}

// Load runs Download -> Transform -> Append for fiscal years.
type Load struct {
	Config    config.Config
	Store     objectstore.Store
	Warehouse warehouse.Appender
	Transform Transform
	Logger    *zap.Logger

	// AgencyRules overrides expenditure.DefaultAgencyRules when set.
	AgencyRules []expenditure.AgencyRule
}

// Run loads start..end inclusive, one year after another.
func (l *Load) Run(ctx context.Context, start, end int) error {
	op := "load"
	if l.Transform == TransformAgency {
		op = "load-normalized"
	}
	return runYears(ctx, op, l.Config, l.logger(), start, end, l.year)
}

// Year loads a single fiscal year.
func (l *Load) Year(ctx context.Context, year int) error {
	return l.year(ctx, l.logger().With(zap.Int("year", year)), year)
}

func (l *Load) logger() *zap.Logger {
	if l.Logger == nil {
		return zap.NewNop()
	}
	return l.Logger
}

func (l *Load) year(ctx context.Context, logger *zap.Logger, year int) error {
	objectPath := expenditure.ObjectPath(year)
	localPath := expenditure.LocalPath(l.Config.DataDir, year)

	downloadStart := time.Now()
	if err := l.Store.Download(ctx, objectPath, localPath); err != nil {
		return errors.Wrapf(err, "download %s", objectPath)
	}
	ds, err := columnar.ReadFile(ctx, localPath)
	if err != nil {
		return errors.Wrapf(err, "read %s", localPath)
	}
	logger.Info("downloaded parquet",
		zap.String("object", objectPath),
		zap.Int("rows", ds.NumRows()),
		zap.Int64("duration_ms", time.Since(downloadStart).Milliseconds()),
	)

	format, err := l.transform(logger, ds)
	if err != nil {
		return errors.Wrapf(err, "transform fiscal year %d", year)
	}

	ref := warehouse.TableRef{Dataset: l.Config.Warehouse.Dataset, Table: format.TableName()}
	appendStart := time.Now()
	batches, err := warehouse.AppendInBatches(ctx, l.Warehouse, ref, ds, l.Config.Warehouse.ChunkSize)
	if err != nil {
		return err
	}
	logger.Info("appended to warehouse",
		zap.String("table", ref.String()),
		zap.Int("rows", ds.NumRows()),
		zap.Int("batches", batches),
		zap.Int64("duration_ms", time.Since(appendStart).Milliseconds()),
	)
	return nil
}

// transform applies l.Transform and re-classifies ds to pick its table.
func (l *Load) transform(logger *zap.Logger, ds *dataset.Dataset) (expenditure.Format, error) {
	format := expenditure.ClassifyDataset(ds)
	if format == expenditure.FormatUnknown {
		return format, &expenditure.ClassificationError{Format: format, Columns: ds.Columns()}
	}

	switch l.Transform {
	case TransformAgency:
		rules := l.AgencyRules
		if rules == nil {
			rules = expenditure.DefaultAgencyRules
		}
		changed, err := expenditure.NormalizeAgencies(ds, format, rules)
		if err != nil {
			return format, err
		}
		logger.Info("normalized agencies", zap.Stringer("format", format), zap.Int("changed", changed))
	case TransformIdentity, "":
	default:
		return format, errors.Errorf("unknown transform %q", l.Transform)
	}

	// The table is chosen from the post-transform format.
	if after := expenditure.ClassifyDataset(ds); after != format {
		return after, &expenditure.ClassificationError{Format: after, Columns: ds.Columns()}
	}
	return format, nil
}
