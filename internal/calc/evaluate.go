package calc

import (
	"context"
	"errors"
	"io"
	"strings"

	"github.com/sirupsen/logrus"

	"calcdesk/internal/calcapi"
)

const (
	PromptExpression = "Enter an expression"
	PendingEvaluate  = "Computing..."

	prefixAppError     = "Error: "
	prefixNetworkError = "Network error: "
	prefixFormatError  = "Format error: "
)

// Evaluator sends the expression field to /api/evaluate and writes the
// answer into its output.
type Evaluator struct {
	API    API
	Input  Source
	Output *Output
	Format Formatter
	Log    logrus.FieldLogger
}

// Start reads the expression and begins a request. It returns nil when the
// expression is blank; the prompt has been written in that case.
func (e *Evaluator) Start(ctx context.Context) *Call {
	expr := strings.TrimSpace(e.Input.Text())
	if expr == "" {
		e.Output.Set(PromptExpression)
		return nil
	}

	cctx, cancel, seq := e.Output.begin(ctx, PendingEvaluate)
	log := logger(e.Log).WithFields(logrus.Fields{"handler": "evaluate", "seq": seq})
	log.WithField("expr", expr).Debug("request started")

	return &Call{
		out:    e.Output,
		seq:    seq,
		ctx:    cctx,
		cancel: cancel,
		run: func(ctx context.Context) Outcome {
			o := e.evaluate(ctx, expr)
			log.WithField("kind", o.Kind).Debug("request finished")
			return o
		},
	}
}

// Evaluate runs the whole handler synchronously.
func (e *Evaluator) Evaluate(ctx context.Context) Outcome {
	c := e.Start(ctx)
	if c == nil {
		return Outcome{Text: PromptExpression, Kind: KindPrompt}
	}
	o, _ := c.Do()
	return o
}

func (e *Evaluator) evaluate(ctx context.Context, expr string) Outcome {
	res, err := e.API.Evaluate(ctx, expr)
	if err != nil {
		var apiErr *calcapi.APIError
		if errors.As(err, &apiErr) {
			return Outcome{Text: prefixAppError + apiErr.Message, Kind: KindAppError, Err: err}
		}
		return Outcome{Text: prefixNetworkError + err.Error(), Kind: KindNetworkError, Err: err}
	}
	if e.Format != nil {
		res, err = e.Format(ctx, res)
		if err != nil {
			return Outcome{Text: prefixFormatError + err.Error(), Kind: KindFormatError, Err: err}
		}
	}
	return Outcome{Text: displayScalar(res), Kind: KindResult}
}

var discard = func() *logrus.Logger {
	l := logrus.New()
	l.SetOutput(io.Discard)
	return l
}()

func logger(l logrus.FieldLogger) logrus.FieldLogger {
	if l != nil {
		return l
	}
	return discard
}
