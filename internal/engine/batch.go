package engine

import (
	"context"
	"errors"
	"fmt"

	"github.com/leapstack-labs/leapgov/pkg/core"
	"golang.org/x/sync/errgroup"
)

// RunAll governs several datasets concurrently, each from its rule set's
// source. An empty names list runs every configured dataset. Reports are
// returned in the order of names; a dataset that failed has a nil report and
// its error is joined into the returned error. One failure does not stop the
// other runs.
func (e *Engine) RunAll(ctx context.Context, names []string) ([]*core.Report, error) {
	if len(names) == 0 {
		names = e.rules.Names()
	}
	e.logger.Info("starting batch", "datasets", len(names), "parallelism", e.parallelism)

	reports := make([]*core.Report, len(names))
	errs := make([]error, len(names))

	var g errgroup.Group
	g.SetLimit(e.parallelism)
	for i, name := range names {
		g.Go(func() error {
			report, err := e.Run(ctx, RunRequest{Dataset: name})
			if err != nil {
				errs[i] = fmt.Errorf("dataset %s: %w", name, err)
				return nil
			}
			reports[i] = report
			return nil
		})
	}
	_ = g.Wait()

	err := errors.Join(errs...)
	if err != nil {
		e.logger.Error("batch finished with errors", "error", err)
	} else {
		e.logger.Info("batch completed", "datasets", len(names))
	}
	return reports, err
}
