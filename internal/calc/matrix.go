package calc

import (
	"bytes"
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"strings"

	"github.com/sirupsen/logrus"

	"calcdesk/internal/calcapi"
)

const (
	PendingMatrix = "Working..."

	prefixMatrixFailure = "Parse or network error: "
)

// ParseError is a matrix field that is not valid JSON.
type ParseError struct {
	Field string
	Err   error
}

func (e *ParseError) Error() string {
	return fmt.Sprintf("matrix %s: %v", e.Field, e.Err)
}

func (e *ParseError) Unwrap() error { return e.Err }

// MatrixRunner sends the two matrix fields and an operation name to
// /api/matrix and writes the indented result into its output.
type MatrixRunner struct {
	API    API
	A      Source
	B      Source
	Output *Output
	Format Formatter
	Log    logrus.FieldLogger
}

// Start writes the pending text, reads both fields and begins a request for op.
// A field that fails to parse is reported by the returned call without any
// network traffic.
func (m *MatrixRunner) Start(ctx context.Context, op string) *Call {
	cctx, cancel, seq := m.Output.begin(ctx, PendingMatrix)
	log := logger(m.Log).WithFields(logrus.Fields{"handler": "matrix", "seq": seq, "op": op})

	a, parseErr := parseOperand("A", m.A)
	var b json.RawMessage
	if parseErr == nil {
		b, parseErr = parseOperand("B", m.B)
	}

	log.Debug("request started")
	return &Call{
		out:    m.Output,
		seq:    seq,
		ctx:    cctx,
		cancel: cancel,
		run: func(ctx context.Context) Outcome {
			var o Outcome
			if parseErr != nil {
				o = Outcome{Text: prefixMatrixFailure + parseErr.Error(), Kind: KindParseError, Err: parseErr}
			} else {
				o = m.run(ctx, op, a, b)
			}
			log.WithField("kind", o.Kind).Debug("request finished")
			return o
		},
	}
}

// Run executes op synchronously.
func (m *MatrixRunner) Run(ctx context.Context, op string) Outcome {
	o, _ := m.Start(ctx, op).Do()
	return o
}

func (m *MatrixRunner) run(ctx context.Context, op string, a, b json.RawMessage) Outcome {
	res, err := m.API.Matrix(ctx, op, a, b)
	if err != nil {
		var apiErr *calcapi.APIError
		if errors.As(err, &apiErr) {
			return Outcome{Text: prefixAppError + apiErr.Message, Kind: KindAppError, Err: err}
		}
		return Outcome{Text: prefixMatrixFailure + err.Error(), Kind: KindNetworkError, Err: err}
	}
	if m.Format != nil {
		res, err = m.Format(ctx, res)
		if err != nil {
			return Outcome{Text: prefixFormatError + err.Error(), Kind: KindFormatError, Err: err}
		}
	}
	text, err := indentResult(res)
	if err != nil {
		return Outcome{Text: prefixMatrixFailure + err.Error(), Kind: KindNetworkError, Err: err}
	}
	return Outcome{Text: text, Kind: KindResult}
}

// parseOperand returns nil for a blank field, which is sent as null.
func parseOperand(name string, src Source) (json.RawMessage, error) {
	if src == nil {
		return nil, nil
	}
	text := strings.TrimSpace(src.Text())
	if text == "" {
		return nil, nil
	}
	var v any
	if err := json.Unmarshal([]byte(text), &v); err != nil {
		return nil, &ParseError{Field: name, Err: err}
	}
	var b bytes.Buffer
	if err := json.Compact(&b, []byte(text)); err != nil {
		return nil, &ParseError{Field: name, Err: err}
	}
	return json.RawMessage(b.Bytes()), nil
}
