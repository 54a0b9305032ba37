package jsbox

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"io"
	"os"
	"runtime"
	"time"

	"github.com/dop251/goja"
)

const (
	sandboxMaxInputBytes  = 4 * 1024 * 1024
	sandboxMaxCodeBytes   = 64 * 1024
	sandboxMaxOutputBytes = 256 * 1024
	sandboxTimeout        = 250 * time.Millisecond
)

type interruptSentinel struct{}

// RunSandbox is the entry point of the child process. It always exits 0 and
// reports failures through the response.
func RunSandbox() int {
	setSandboxRlimits()
	runtime.GOMAXPROCS(1)
	return serve(os.Stdin, os.Stdout)
}

func serve(in io.Reader, out io.Writer) int {
	resp := handle(in)
	b, err := json.Marshal(resp)
	if err != nil {
		_, _ = io.WriteString(out, `{"ok":false,"error":"internal"}`)
		return 0
	}
	_, _ = out.Write(b)
	return 0
}

func handle(in io.Reader) Response {
	raw, err := io.ReadAll(io.LimitReader(in, sandboxMaxInputBytes+1))
	if err != nil {
		return Response{Error: err.Error()}
	}
	if len(raw) > sandboxMaxInputBytes {
		return Response{Error: "request too large"}
	}

	var req Request
	if err := json.Unmarshal(raw, &req); err != nil {
		return Response{Error: "invalid json"}
	}
	switch {
	case req.Kind != KindFormat:
		return Response{Error: "unsupported kind"}
	case len(req.Code) == 0:
		return Response{Error: "missing code"}
	case len(req.Code) > sandboxMaxCodeBytes:
		return Response{Error: "code too large"}
	}

	ctx, cancel := context.WithTimeout(context.Background(), sandboxTimeout)
	defer cancel()

	res, err := runFormat(ctx, req.Code, req.Value)
	if err != nil {
		return Response{Error: err.Error()}
	}
	if len(res) > sandboxMaxOutputBytes {
		return Response{Error: "result too large"}
	}
	return Response{OK: true, Result: res}
}

func runFormat(ctx context.Context, src string, value json.RawMessage) (out json.RawMessage, err error) {
	var input any
	if len(value) > 0 {
		if err := json.Unmarshal(value, &input); err != nil {
			return nil, fmt.Errorf("value is not json: %w", err)
		}
	}

	rt := goja.New()
	_ = rt.Set("eval", goja.Undefined())
	_ = rt.Set("Function", goja.Undefined())

	done := make(chan struct{})
	go func() {
		select {
		case <-ctx.Done():
			rt.Interrupt(interruptSentinel{})
		case <-done:
		}
	}()
	defer close(done)

	defer func() {
		if r := recover(); r != nil {
			if _, ok := r.(interruptSentinel); ok {
				err = ctx.Err()
				return
			}
			panic(r)
		}
	}()

	v, err := rt.RunString("(" + src + ")")
	if err != nil {
		return nil, interruptedOr(ctx, err)
	}
	fn, ok := goja.AssertFunction(v)
	if !ok {
		return nil, errors.New("hook is not a function")
	}
	res, err := fn(goja.Undefined(), rt.ToValue(input))
	if err != nil {
		return nil, interruptedOr(ctx, err)
	}
	if goja.IsUndefined(res) {
		return nil, errors.New("hook returned undefined")
	}

	b, err := json.Marshal(res.Export())
	if err != nil {
		return nil, fmt.Errorf("hook result is not json: %w", err)
	}
	return b, nil
}

// interruptedOr maps goja's InterruptedError back to the context error.
func interruptedOr(ctx context.Context, err error) error {
	var ie *goja.InterruptedError
	if errors.As(err, &ie) && ctx.Err() != nil {
		return ctx.Err()
	}
	return err
}
