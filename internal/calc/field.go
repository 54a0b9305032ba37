package calc

import (
	"context"
	"encoding/json"
	"sync"
)

//go:generate mockgen -source=field.go -destination=mock_api.go -package=calc API

// API is the calculator service as seen by the handlers.
type API interface {
	Evaluate(ctx context.Context, expr string) (json.RawMessage, error)
	Matrix(ctx context.Context, op string, a, b json.RawMessage) (json.RawMessage, error)
}

// Source is an input field.
type Source interface {
	Text() string
}

// Sink is anything a handler can write text into.
type Sink interface {
	SetText(s string)
}

// Formatter rewrites a successful result before it is displayed.
type Formatter func(ctx context.Context, result json.RawMessage) (json.RawMessage, error)

// Box is an in-memory field, safe for concurrent use.
type Box struct {
	mu   sync.Mutex
	text string
}

// NewBox returns a Box holding text.
func NewBox(text string) *Box {
	return &Box{text: text}
}

func (b *Box) Text() string {
	b.mu.Lock()
	defer b.mu.Unlock()
	return b.text
}

func (b *Box) SetText(s string) {
	b.mu.Lock()
	b.text = s
	b.mu.Unlock()
}

// SinkFunc adapts a function to Sink.
type SinkFunc func(string)

func (f SinkFunc) SetText(s string) { f(s) }

// SourceFunc adapts a function to Source.
type SourceFunc func() string

func (f SourceFunc) Text() string { return f() }
