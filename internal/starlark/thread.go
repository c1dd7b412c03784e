package starlark

import (
	"context"

	"go.starlark.net/starlark"
	"golang.org/x/sync/errgroup"
)

// DefaultMaxSteps caps the abstract computation steps of a single
// evaluation. Row mode gets the cap once per row.
const DefaultMaxSteps = 1_000_000

// newThread returns a thread with no print, no load and a step cap. The
// thread is cancelled when ctx is done.
func newThread(ctx context.Context, name string, maxSteps uint64) (*starlark.Thread, func() bool) {
	thread := &starlark.Thread{
		Name:  name,
		Print: func(_ *starlark.Thread, _ string) {},
	}
	if maxSteps > 0 {
		thread.SetMaxExecutionSteps(maxSteps)
	}
	stop := context.AfterFunc(ctx, func() {
		thread.Cancel(context.Cause(ctx).Error())
	})
	return thread, stop
}

// runParallel calls fn for every index in [0, n) with at most limit calls in
// flight. Results are written by fn into caller-owned slots, so ordering is
// preserved.
func runParallel(n, limit int, fn func(i int)) {
	if limit <= 1 || n <= 1 {
		for i := 0; i < n; i++ {
			fn(i)
		}
		return
	}
	var g errgroup.Group
	g.SetLimit(limit)
	for i := 0; i < n; i++ {
		g.Go(func() error {
			fn(i)
			return nil
		})
	}
	_ = g.Wait()
}
