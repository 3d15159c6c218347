package worker

import (
	"context"
	"errors"
	"math/rand/v2"
	"net"
	"time"

	"github.com/Xanthus1/louisville-expenditure-etl/pkg/pipeline/core"
	"golang.org/x/time/rate"
)

type FailurePolicy int

const (
	// FailurePolicyFailFast stops at the first item whose step fails.
	FailurePolicyFailFast FailurePolicy = iota
	// FailurePolicyContinue records the failure and moves on to the next item.
	FailurePolicyContinue
)

type Options struct {
	MaxRetries int

	// StepTimeout bounds one attempt of a step. Zero means no bound.
	StepTimeout time.Duration

	// RateLimitRPS paces step attempts. Set to <=0 to disable.
	RateLimitRPS float64

	FailurePolicy FailurePolicy

	// BackoffInitial is the initial sleep before retrying a transient failure.
	BackoffInitial time.Duration
	// BackoffMax caps exponential backoff.
	BackoffMax time.Duration
	// BackoffJitterFrac applies +/- jitter to backoff sleeps (0.2 = +/-20%).
	BackoffJitterFrac float64
}

// Result records the outcome of the step for one item.
type Result[In any] struct {
	Input    In
	Err      error
	Attempts int
	Duration time.Duration
}

func (o Options) withDefaults() Options {
	if o.MaxRetries < 0 {
		o.MaxRetries = 0
	}
	if o.StepTimeout < 0 {
		o.StepTimeout = 0
	}
	if o.BackoffInitial <= 0 {
		o.BackoffInitial = 1 * time.Second
	}
	if o.BackoffMax <= 0 {
		o.BackoffMax = 30 * time.Second
	}
	if o.BackoffJitterFrac < 0 {
		o.BackoffJitterFrac = 0
	}
	return o
}

// Run executes step for each item, one after another, in input order.
//
// onResult, when set, is called after each item; an error from it stops the
// run. With FailurePolicyFailFast the first failed item stops the run and its
// error is returned together with the results so far.
func Run[In any](
	ctx context.Context,
	items []In,
	step core.Step[In],
	onResult func(Result[In]) error,
	opts Options,
) ([]Result[In], error) {
	opts = opts.withDefaults()

	var limiter *rate.Limiter
	if opts.RateLimitRPS > 0 {
		limiter = rate.NewLimiter(rate.Limit(opts.RateLimitRPS), 1)
	}

	out := make([]Result[In], 0, len(items))
	for _, item := range items {
		if err := ctx.Err(); err != nil {
			return out, err
		}

		start := time.Now()
		attempts, err := runWithRetry(ctx, item, step, limiter, opts)
		res := Result[In]{
			Input:    item,
			Err:      err,
			Attempts: attempts,
			Duration: time.Since(start),
		}
		out = append(out, res)

		if onResult != nil {
			if cbErr := onResult(res); cbErr != nil {
				return out, cbErr
			}
		}
		if err != nil && ctx.Err() != nil {
			return out, ctx.Err()
		}
		if err != nil && opts.FailurePolicy == FailurePolicyFailFast {
			return out, err
		}
	}
	return out, nil
}

// Failed returns the results that ended in an error.
func Failed[In any](results []Result[In]) []Result[In] {
	var out []Result[In]
	for _, r := range results {
		if r.Err != nil {
			out = append(out, r)
		}
	}
	return out
}

func runWithRetry[In any](
	ctx context.Context,
	item In,
	step core.Step[In],
	limiter *rate.Limiter,
	opts Options,
) (int, error) {
	for attempt := 0; ; attempt++ {
		if err := ctx.Err(); err != nil {
			return attempt, err
		}

		if limiter != nil {
			if err := limiter.Wait(ctx); err != nil {
				return attempt, err
			}
		}

		stepCtx := ctx
		var cancel context.CancelFunc
		if opts.StepTimeout > 0 {
			stepCtx, cancel = context.WithTimeout(ctx, opts.StepTimeout)
		}
		err := step.Run(stepCtx, item)
		if cancel != nil {
			cancel()
		}
		if err == nil {
			return attempt + 1, nil
		}
		if errors.Is(err, context.Canceled) && ctx.Err() != nil {
			return attempt + 1, ctx.Err()
		}
		maxRetries := maxExtraRetries(opts.MaxRetries, err)
		if !isTransient(err) || attempt >= maxRetries {
			return attempt + 1, err
		}

		sleep := backoffSleep(opts.BackoffInitial, opts.BackoffMax, opts.BackoffJitterFrac, attempt)
		t := time.NewTimer(sleep)
		select {
		case <-t.C:
		case <-ctx.Done():
			t.Stop()
			return attempt + 1, ctx.Err()
		}
	}
}

type retryCap interface {
	MaxExtraRetries() int
}

func maxExtraRetries(defaultRetries int, err error) int {
	if defaultRetries < 0 {
		defaultRetries = 0
	}
	var capErr retryCap
	if errors.As(err, &capErr) {
		limited := capErr.MaxExtraRetries()
		if limited < 0 {
			limited = 0
		}
		if limited < defaultRetries {
			return limited
		}
	}
	return defaultRetries
}

func isTransient(err error) bool {
	if err == nil {
		return false
	}
	var te *core.TransientError
	if errors.As(err, &te) {
		return true
	}
	var lte *core.LimitedTransientError
	if errors.As(err, &lte) {
		return true
	}
	if errors.Is(err, context.DeadlineExceeded) {
		return true
	}
	var ne net.Error
	if errors.As(err, &ne) {
		return ne.Timeout()
	}
	return false
}

func backoffSleep(initial, max time.Duration, jitterFrac float64, attempt int) time.Duration {
	sleep := initial
	for i := 0; i < attempt && sleep < max; i++ {
		sleep *= 2
		if sleep > max {
			sleep = max
			break
		}
	}
	if jitterFrac <= 0 {
		return sleep
	}
	// Apply +/- jitterFrac.
	j := 1 + (rand.Float64()*2-1)*jitterFrac
	return time.Duration(float64(sleep) * j)
}
