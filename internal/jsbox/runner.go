package jsbox

import (
	"bytes"
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"os"
	"os/exec"
	"strings"
	"time"
)

// SubcommandName is the argv[1] that makes the binary act as the sandbox child.
const SubcommandName = "js-sandbox"

const (
	defaultTimeout        = 500 * time.Millisecond
	defaultMaxStdoutBytes = 256 * 1024
	defaultMaxStderrBytes = 8 * 1024
)

// Runner starts a fresh sandbox child per hook invocation.
type Runner struct {
	ExecPath       string
	Args           []string
	Timeout        time.Duration
	MaxStdoutBytes int
	MaxStderrBytes int
}

// NewRunner re-executes the current binary with SubcommandName.
func NewRunner() (*Runner, error) {
	exe, err := os.Executable()
	if err != nil {
		return nil, err
	}
	return &Runner{
		ExecPath:       exe,
		Args:           []string{SubcommandName},
		Timeout:        defaultTimeout,
		MaxStdoutBytes: defaultMaxStdoutBytes,
		MaxStderrBytes: defaultMaxStderrBytes,
	}, nil
}

// Format runs code, a JavaScript function expression, on value and returns
// the function's result as JSON.
func (r *Runner) Format(ctx context.Context, code string, value json.RawMessage) (json.RawMessage, error) {
	if r == nil {
		return nil, errors.New("jsbox runner is nil")
	}
	if strings.TrimSpace(code) == "" {
		return value, nil
	}
	if len(value) == 0 {
		value = json.RawMessage("null")
	}
	return r.call(ctx, Request{Kind: KindFormat, Code: code, Value: value})
}

// Hook binds code to the runner. An empty code yields a nil hook.
func (r *Runner) Hook(code string) func(context.Context, json.RawMessage) (json.RawMessage, error) {
	if r == nil || strings.TrimSpace(code) == "" {
		return nil
	}
	return func(ctx context.Context, value json.RawMessage) (json.RawMessage, error) {
		return r.Format(ctx, code, value)
	}
}

func (r *Runner) call(ctx context.Context, req Request) (json.RawMessage, error) {
	if r.ExecPath == "" {
		return nil, errors.New("jsbox ExecPath is empty")
	}
	timeout := r.Timeout
	if timeout <= 0 {
		timeout = defaultTimeout
	}
	maxOut := r.MaxStdoutBytes
	if maxOut <= 0 {
		maxOut = defaultMaxStdoutBytes
	}
	maxErr := r.MaxStderrBytes
	if maxErr <= 0 {
		maxErr = defaultMaxStderrBytes
	}

	input, err := json.Marshal(req)
	if err != nil {
		return nil, err
	}

	ctx, cancel := context.WithTimeout(ctx, timeout)
	defer cancel()

	stdout := &cappedBuffer{max: maxOut}
	stderr := &cappedBuffer{max: maxErr}
	cmd := exec.CommandContext(ctx, r.ExecPath, r.Args...)
	cmd.Stdin = bytes.NewReader(input)
	cmd.Stdout = stdout
	cmd.Stderr = stderr

	runErr := cmd.Run()
	if ctx.Err() != nil {
		return nil, fmt.Errorf("js-sandbox: %w", ctx.Err())
	}
	if stdout.overflow {
		return nil, fmt.Errorf("js-sandbox stdout exceeded limit (%d bytes)", maxOut)
	}
	if runErr != nil {
		msg := strings.TrimSpace(stderr.String())
		if msg == "" {
			msg = runErr.Error()
		}
		return nil, fmt.Errorf("js-sandbox failed: %s", msg)
	}

	var resp Response
	if err := json.Unmarshal(stdout.Bytes(), &resp); err != nil {
		return nil, fmt.Errorf("js-sandbox bad json: %w", err)
	}
	if !resp.OK {
		if resp.Error == "" {
			resp.Error = "unknown js-sandbox error"
		}
		return nil, errors.New(resp.Error)
	}
	if len(resp.Result) == 0 {
		return nil, errors.New("js-sandbox returned empty result")
	}
	return resp.Result, nil
}

// cappedBuffer keeps the first max bytes and silently drops the rest so the
// child never blocks on a full pipe.
type cappedBuffer struct {
	bytes.Buffer
	max      int
	overflow bool
}

func (b *cappedBuffer) Write(p []byte) (int, error) {
	room := b.max - b.Len()
	if room <= 0 {
		b.overflow = b.overflow || len(p) > 0
		return len(p), nil
	}
	if len(p) > room {
		b.overflow = true
		b.Buffer.Write(p[:room])
		return len(p), nil
	}
	return b.Buffer.Write(p)
}
