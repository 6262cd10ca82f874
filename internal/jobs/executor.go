package jobs

import (
	"context"
	"fmt"
)

// ProgressFunc reports a completion percentage for the running job.
type ProgressFunc func(percent int)

// Executor performs the work of one job. Implementations should check
// ctx.Done() between discrete steps and return ctx.Err() when it fires.
type Executor interface {
	Execute(ctx context.Context, params any, progress ProgressFunc) (any, error)
}

// ParamsChecker is implemented by executors that only accept one params type.
// Submit rejects params an executor does not accept.
type ParamsChecker interface {
	Accepts(params any) bool
}

// Typed adapts a function over a concrete params type into an Executor.
type Typed[P any, R any] func(ctx context.Context, params P, progress ProgressFunc) (R, error)

func (f Typed[P, R]) Execute(ctx context.Context, params any, progress ProgressFunc) (any, error) {
	p, ok := params.(P)
	if !ok {
		return nil, fmt.Errorf("unexpected params type %T", params)
	}
	return f(ctx, p, progress)
}

func (f Typed[P, R]) Accepts(params any) bool {
	_, ok := params.(P)
	return ok
}
