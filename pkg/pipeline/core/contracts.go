package core

import "context"

// Step runs one unit of pipeline work, such as the full chain for one fiscal year.
type Step[In any] interface {
	Run(ctx context.Context, in In) error
}

// StepFunc adapts a function to the Step interface.
type StepFunc[In any] func(ctx context.Context, in In) error

func (f StepFunc[In]) Run(ctx context.Context, in In) error {
	return f(ctx, in)
}

// TransientError marks an error as retryable by the chain runner.
type TransientError struct {
	Err error
}

func (e *TransientError) Error() string {
	if e == nil || e.Err == nil {
		return "transient error"
	}
	return e.Err.Error()
}

func (e *TransientError) Unwrap() error {
	if e == nil {
		return nil
	}
	return e.Err
}

// LimitedTransientError is retryable at most ExtraRetries more times,
// regardless of the configured retry budget.
type LimitedTransientError struct {
	Err          error
	ExtraRetries int
}

func (e *LimitedTransientError) Error() string {
	if e == nil || e.Err == nil {
		return "transient error"
	}
	return e.Err.Error()
}

func (e *LimitedTransientError) Unwrap() error {
	if e == nil {
		return nil
	}
	return e.Err
}

func (e *LimitedTransientError) MaxExtraRetries() int {
	if e == nil {
		return 0
	}
	return e.ExtraRetries
}
