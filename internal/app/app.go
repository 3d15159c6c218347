package app

import (
	"context"
	"fmt"
	"strconv"
	"strings"
	"time"

	"github.com/pkg/errors"
	"go.uber.org/zap"

	"github.com/Xanthus1/louisville-expenditure-etl/internal/config"
	"github.com/Xanthus1/louisville-expenditure-etl/pkg/pipeline/core"
	"github.com/Xanthus1/louisville-expenditure-etl/pkg/pipeline/worker"
)

// FirstYear is the earliest fiscal year with published expenditure data.
const FirstYear = 2008

// ErrInvalidYearRange is returned for ranges outside FirstYear..end or with
// start after end.
var ErrInvalidYearRange = errors.New("invalid year range")

// ValidateYears checks an inclusive fiscal year range.
func ValidateYears(start, end int) error {
	if start < FirstYear {
		return errors.Wrapf(ErrInvalidYearRange, "start_year %d is before %d", start, FirstYear)
	}
	if start > end {
		return errors.Wrapf(ErrInvalidYearRange, "start_year %d is after end_year %d", start, end)
	}
	return nil
}

// Years lists start..end inclusive.
func Years(start, end int) []int {
	if end < start {
		return nil
	}
	out := make([]int, 0, end-start+1)
	for y := start; y <= end; y++ {
		out = append(out, y)
	}
	return out
}

// YearsFailedError summarizes a continue-on-failure run.
type YearsFailedError struct {
	Op     string
	Failed []worker.Result[int]
	Total  int
}

func (e *YearsFailedError) Error() string {
	years := make([]string, len(e.Failed))
	for i, r := range e.Failed {
		years[i] = strconv.Itoa(r.Input)
	}
	return fmt.Sprintf("%s: %d of %d years failed: [%s]", e.Op, len(e.Failed), e.Total, strings.Join(years, ", "))
}

func newRunID() string {
	return fmt.Sprintf("run-%d", time.Now().UnixNano())
}

func runnerOptions(cfg config.Config) worker.Options {
	policy := worker.FailurePolicyContinue
	if cfg.Pipeline.FailFast {
		policy = worker.FailurePolicyFailFast
	}
	return worker.Options{
		MaxRetries:        cfg.Pipeline.Retries,
		RateLimitRPS:      cfg.Pipeline.RateLimitRPS,
		FailurePolicy:     policy,
		BackoffInitial:    1 * time.Second,
		BackoffMax:        30 * time.Second,
		BackoffJitterFrac: 0.2,
	}
}

// runYears drives step over start..end through the chain runner and logs
// one line per year.
func runYears(
	ctx context.Context,
	op string,
	cfg config.Config,
	logger *zap.Logger,
	start, end int,
	step func(ctx context.Context, logger *zap.Logger, year int) error,
) error {
	if err := ValidateYears(start, end); err != nil {
		return err
	}
	years := Years(start, end)
	logger = logger.With(zap.String("run", newRunID()), zap.String("op", op))
	opts := runnerOptions(cfg)
	logger.Info(op+" run start",
		zap.Int("start_year", start),
		zap.Int("end_year", end),
		zap.Bool("fail_fast", cfg.Pipeline.FailFast),
		zap.Int("retries", opts.MaxRetries),
		zap.Float64("rate_limit_rps", opts.RateLimitRPS),
	)
	runStart := time.Now()

	chain := core.StepFunc[int](func(ctx context.Context, year int) error {
		return step(ctx, logger.With(zap.Int("year", year)), year)
	})
	onResult := func(r worker.Result[int]) error {
		fields := []zap.Field{
			zap.Int("year", r.Input),
			zap.Int("attempts", r.Attempts),
			zap.Int64("duration_ms", r.Duration.Milliseconds()),
		}
		if r.Err != nil {
			logger.Error(op+" year failed", append(fields, zap.Error(r.Err))...)
			return nil
		}
		logger.Info(op+" year complete", fields...)
		return nil
	}

	results, err := worker.Run(ctx, years, chain, onResult, opts)
	if err != nil {
		logger.Error(op+" run aborted", zap.Error(err), zap.Int64("duration_ms", time.Since(runStart).Milliseconds()))
		return err
	}
	if failed := worker.Failed(results); len(failed) > 0 {
		ferr := &YearsFailedError{Op: op, Failed: failed, Total: len(years)}
		logger.Error(op+" run complete with failures", zap.Error(ferr))
		return ferr
	}
	logger.Info(op+" run complete",
		zap.Int("years", len(results)),
		zap.Int64("duration_ms", time.Since(runStart).Milliseconds()),
	)
	return nil
}
