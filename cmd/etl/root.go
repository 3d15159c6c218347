package main

import (
	"context"
	"io"

	"github.com/pkg/errors"
	"github.com/spf13/cobra"
	"github.com/spf13/pflag"
	"go.uber.org/zap"

	"github.com/Xanthus1/louisville-expenditure-etl/internal/app"
	"github.com/Xanthus1/louisville-expenditure-etl/internal/config"
	"github.com/Xanthus1/louisville-expenditure-etl/internal/healthcheck"
	"github.com/Xanthus1/louisville-expenditure-etl/internal/logging"
	"github.com/Xanthus1/louisville-expenditure-etl/internal/objectstore"
	"github.com/Xanthus1/louisville-expenditure-etl/internal/source"
	"github.com/Xanthus1/louisville-expenditure-etl/internal/version"
	"github.com/Xanthus1/louisville-expenditure-etl/internal/warehouse"
)

// runState records whether a command body started, so that cobra's own
// argument and flag errors map to the usage exit code.
type runState struct {
	started bool
}

// usageError marks configuration and usage failures (exit code 2).
type usageError struct {
	err error
}

func (e *usageError) Error() string { return e.err.Error() }
func (e *usageError) Unwrap() error { return e.err }

func exitCode(state *runState, err error) int {
	var uerr *usageError
	if errors.As(err, &uerr) || !state.started {
		return 2
	}
	return 1
}

func newRootCommand(state *runState, stdout, stderr io.Writer) *cobra.Command {
	rc := &cobra.Command{
		Use:   "etl",
		Short: "Louisville Metro expenditure ETL.",
		Long: `Downloads Louisville Metro expenditure data by fiscal year, normalizes the
two known column layouts, stores the result as Parquet in object storage and
appends it to the warehouse.

Configuration comes from defaults, the YAML file named by ETL_CONFIG and
ETL_* environment variables (for example ETL_STORAGE_BACKEND=local).`,
		Version:       version.Current,
		SilenceUsage:  true,
		SilenceErrors: true,
	}
	rc.SetFlagErrorFunc(func(_ *cobra.Command, err error) error {
		return &usageError{err: err}
	})

	rc.AddCommand(newIngestCommand(state))
	rc.AddCommand(newLoadCommand(state, "load", app.TransformIdentity,
		"Append the stored Parquet files to the warehouse as they are."))
	rc.AddCommand(newLoadCommand(state, "load-normalized", app.TransformAgency,
		"Canonicalize agency names, then append to the warehouse."))
	rc.AddCommand(newHealthcheckCommand(state))
	rc.AddCommand(newConfigCommand(state, stdout))

	rc.SetOut(stdout)
	rc.SetErr(stderr)
	return rc
}

type yearFlags struct {
	start, end int
}

func (y *yearFlags) register(fs *pflag.FlagSet) {
	fs.IntVar(&y.start, "start_year", 2017, "First fiscal year to process (inclusive).")
	fs.IntVar(&y.end, "end_year", 2018, "Last fiscal year to process (inclusive).")
}

// setup loads and validates configuration and builds the logger.
func setup(years yearFlags) (config.Config, *zap.Logger, error) {
	if err := app.ValidateYears(years.start, years.end); err != nil {
		return config.Config{}, nil, &usageError{err: err}
	}
	cfg, err := config.Load()
	if err != nil {
		return config.Config{}, nil, &usageError{err: err}
	}
	if err := cfg.Validate(); err != nil {
		return config.Config{}, nil, &usageError{err: err}
	}
	logger, err := logging.New(cfg.LogLevel, cfg.LogFormat)
	if err != nil {
		return config.Config{}, nil, &usageError{err: err}
	}
	return cfg, logger, nil
}

func newIngestCommand(state *runState) *cobra.Command {
	var years yearFlags
	cmd := &cobra.Command{
		Use:   "ingest",
		Short: "Fetch, clean and upload fiscal years to object storage.",
		Args:  cobra.NoArgs,
		RunE: func(cmd *cobra.Command, _ []string) error {
			state.started = true
			cfg, logger, err := setup(years)
			if err != nil {
				return err
			}
			defer func() { _ = logger.Sync() }()
			return runIngest(cmd.Context(), cfg, logger, years)
		},
	}
	years.register(cmd.Flags())
	return cmd
}

func runIngest(ctx context.Context, cfg config.Config, logger *zap.Logger, years yearFlags) error {
	fetcher, closeFetcher, err := source.New(cfg.SourceConfig(), logger.Named("source"))
	if err != nil {
		return err
	}
	defer func() { _ = closeFetcher() }()

	store, err := objectstore.New(ctx, cfg.ObjectStore())
	if err != nil {
		return err
	}
	defer func() { _ = store.Close() }()

	in := &app.Ingest{Config: cfg, Fetcher: fetcher, Store: store, Logger: logger}
	return in.Run(ctx, years.start, years.end)
}

func newLoadCommand(state *runState, use string, transform app.Transform, short string) *cobra.Command {
	var years yearFlags
	cmd := &cobra.Command{
		Use:   use,
		Short: short,
		Args:  cobra.NoArgs,
		RunE: func(cmd *cobra.Command, _ []string) error {
			state.started = true
			cfg, logger, err := setup(years)
			if err != nil {
				return err
			}
			defer func() { _ = logger.Sync() }()
			return runLoad(cmd.Context(), cfg, logger, years, transform)
		},
	}
	years.register(cmd.Flags())
	return cmd
}

func runLoad(ctx context.Context, cfg config.Config, logger *zap.Logger, years yearFlags, transform app.Transform) error {
	store, err := objectstore.New(ctx, cfg.ObjectStore())
	if err != nil {
		return err
	}
	defer func() { _ = store.Close() }()

	wh, err := warehouse.New(ctx, cfg.WarehouseConfig())
	if err != nil {
		return err
	}
	defer func() { _ = wh.Close() }()

	load := &app.Load{Config: cfg, Store: store, Warehouse: wh, Transform: transform, Logger: logger}
	return load.Run(ctx, years.start, years.end)
}

func newHealthcheckCommand(state *runState) *cobra.Command {
	return &cobra.Command{
		Use:   "healthcheck",
		Short: "Exit non-zero unless the orchestration API answers 200.",
		Args:  cobra.NoArgs,
		RunE: func(cmd *cobra.Command, _ []string) error {
			state.started = true
			cfg, err := config.Load()
			if err != nil {
				return &usageError{err: err}
			}
			return healthcheck.Check(cmd.Context(), nil, cfg.HealthcheckURL)
		},
	}
}

func newConfigCommand(state *runState, stdout io.Writer) *cobra.Command {
	return &cobra.Command{
		Use:   "config",
		Short: "Print the effective configuration as YAML.",
		Args:  cobra.NoArgs,
		RunE: func(_ *cobra.Command, _ []string) error {
			state.started = true
			cfg, err := config.Load()
			if err != nil {
				return &usageError{err: err}
			}
			return cfg.WriteYAML(stdout)
		},
	}
}
