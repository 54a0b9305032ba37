package jsbox

import "encoding/json"

type Kind string

const (
	KindFormat Kind = "format"
)

// Request is written to the sandbox child on stdin.
type Request struct {
	Kind  Kind            `json:"kind"`
	Code  string          `json:"code"`
	Value json.RawMessage `json:"value"`
}

// Response is read back from the child's stdout.
type Response struct {
	OK     bool            `json:"ok"`
	Error  string          `json:"error,omitempty"`
	Result json.RawMessage `json:"result,omitempty"`
}
