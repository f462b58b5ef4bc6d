package pipeline

import (
	"context"
	"fmt"
	"runtime/debug"

	"golang.org/x/sync/errgroup"
)

// Result is the outcome of one stage for one candidate. Value is always the
// candidate itself so failures can be attributed to a record id.
type Result[T any] struct {
	Value T
	Keep  bool
	Err   error
}

// Batch holds stage outcomes in input order.
type Batch[T any] []Result[T]

// Kept returns the values that passed the stage, in input order.
func (b Batch[T]) Kept() []T {
	out := make([]T, 0, len(b))
	for _, r := range b {
		if r.Err == nil && r.Keep {
			out = append(out, r.Value)
		}
	}
	return out
}

// Errors returns the results that failed, in input order.
func (b Batch[T]) Errors() []Result[T] {
	var out []Result[T]
	for _, r := range b {
		if r.Err != nil {
			out = append(out, r)
		}
	}
	return out
}

// Counts reports how many candidates were kept, dropped without error, and failed.
func (b Batch[T]) Counts() (kept, dropped, failed int) {
	for _, r := range b {
		switch {
		case r.Err != nil:
			failed++
		case r.Keep:
			kept++
		default:
			dropped++
		}
	}
	return kept, dropped, failed
}

// StageFunc decides whether item continues to the next stage.
type StageFunc[T any] func(ctx context.Context, item T) (keep bool, err error)

// RunStage applies fn to every item with at most parallelism concurrent
// calls (values below 1 mean sequential) and returns the outcomes indexed
// like items. A failing or panicking call is recorded in its Result and
// never cancels the others. Items not yet started when ctx is done fail
// with ctx.Err().
func RunStage[T any](ctx context.Context, items []T, parallelism int, fn StageFunc[T]) Batch[T] {
	out := make(Batch[T], len(items))
	if parallelism < 1 {
		parallelism = 1
	}

	var g errgroup.Group
	g.SetLimit(parallelism)

	for i, item := range items {
		g.Go(func() error {
			out[i] = evaluate(ctx, item, fn)
			return nil
		})
	}
	_ = g.Wait()

	return out
}

func evaluate[T any](ctx context.Context, item T, fn StageFunc[T]) (res Result[T]) {
	res.Value = item
	if err := ctx.Err(); err != nil {
		res.Err = err
		return res
	}

	defer func() {
		if r := recover(); r != nil {
			res.Keep = false
			res.Err = fmt.Errorf("panic: %v\n%s", r, debug.Stack())
		}
	}()

	res.Keep, res.Err = fn(ctx, item)
	if res.Err != nil {
		res.Keep = false
	}
	return res
}
