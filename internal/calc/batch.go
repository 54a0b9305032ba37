package calc

import (
	"context"

	"github.com/sirupsen/logrus"
	"golang.org/x/sync/errgroup"
)

// EvaluateBatch evaluates exprs with at most limit requests in flight and
// returns the outcomes in input order. Each expression gets its own output,
// so no result can overwrite another.
func EvaluateBatch(ctx context.Context, api API, exprs []string, limit int, format Formatter, log logrus.FieldLogger) []Outcome {
	out := make([]Outcome, len(exprs))
	if limit <= 0 {
		limit = 1
	}

	g, gctx := errgroup.WithContext(ctx)
	g.SetLimit(limit)
	for i, expr := range exprs {
		g.Go(func() error {
			ev := &Evaluator{
				API:    api,
				Input:  NewBox(expr),
				Output: NewOutput(NewBox("")),
				Format: format,
				Log:    logger(log).WithField("index", i),
			}
			out[i] = ev.Evaluate(gctx)
			return nil
		})
	}
	_ = g.Wait()
	return out
}
