package calc

import (
	"context"
	"sync"
)

// Kind classifies what an output currently shows.
type Kind int

const (
	KindPrompt       Kind = iota // input was blank, a prompt is shown
	KindResult                   // the service answered ok:true
	KindAppError                 // the service answered ok:false
	KindNetworkError             // transport failure or malformed envelope
	KindParseError               // a matrix field is not valid JSON
	KindFormatError              // the result hook failed
)

func (k Kind) String() string {
	switch k {
	case KindPrompt:
		return "prompt"
	case KindResult:
		return "result"
	case KindAppError:
		return "app_error"
	case KindNetworkError:
		return "network_error"
	case KindParseError:
		return "parse_error"
	case KindFormatError:
		return "format_error"
	default:
		return "unknown"
	}
}

// Outcome is what a finished call wants to display.
type Outcome struct {
	Text string
	Kind Kind
	Err  error
}

// Output is one display target. Every write through it is tagged with a
// sequence number so that only the most recent request may render.
type Output struct {
	sink Sink

	mu     sync.Mutex
	seq    uint64
	cancel context.CancelFunc
}

// NewOutput binds an Output to sink.
func NewOutput(sink Sink) *Output {
	return &Output{sink: sink}
}

// Set writes s immediately and supersedes any call in flight.
func (o *Output) Set(s string) uint64 {
	o.mu.Lock()
	defer o.mu.Unlock()
	seq := o.supersedeLocked(nil)
	o.sink.SetText(s)
	return seq
}

// Seq is the sequence number of the latest write or call.
func (o *Output) Seq() uint64 {
	o.mu.Lock()
	defer o.mu.Unlock()
	return o.seq
}

func (o *Output) begin(ctx context.Context, placeholder string) (context.Context, context.CancelFunc, uint64) {
	ctx, cancel := context.WithCancel(ctx)
	o.mu.Lock()
	defer o.mu.Unlock()
	seq := o.supersedeLocked(cancel)
	o.sink.SetText(placeholder)
	return ctx, cancel, seq
}

func (o *Output) supersedeLocked(next context.CancelFunc) uint64 {
	if o.cancel != nil {
		o.cancel()
	}
	o.cancel = next
	o.seq++
	return o.seq
}

func (o *Output) commit(seq uint64, s string) bool {
	o.mu.Lock()
	defer o.mu.Unlock()
	if seq != o.seq {
		return false
	}
	o.sink.SetText(s)
	o.cancel = nil
	return true
}

// Call is a request in flight for one Output. Run does the blocking work and
// may be called from any goroutine; Render publishes the outcome unless a newer
// call or write has replaced this one.
type Call struct {
	out    *Output
	seq    uint64
	ctx    context.Context
	cancel context.CancelFunc
	run    func(ctx context.Context) Outcome

	once    sync.Once
	outcome Outcome
}

// Seq is the sequence number this call was started with.
func (c *Call) Seq() uint64 { return c.seq }

// Cancel aborts the network call. Run still returns, with a network error outcome.
func (c *Call) Cancel() { c.cancel() }

// Stale reports whether another call or write has taken over the output.
func (c *Call) Stale() bool { return c.out.Seq() != c.seq }

// Run does the request once; later calls return the same outcome.
func (c *Call) Run() Outcome {
	c.once.Do(func() {
		defer c.cancel()
		c.outcome = c.run(c.ctx)
	})
	return c.outcome
}

// Render writes o to the output and reports whether it was still current.
func (c *Call) Render(o Outcome) bool {
	return c.out.commit(c.seq, o.Text)
}

// Do runs the call and renders its outcome.
func (c *Call) Do() (Outcome, bool) {
	o := c.Run()
	return o, c.Render(o)
}
