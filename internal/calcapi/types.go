package calcapi

import (
	"encoding/json"
	"errors"
	"fmt"
)

type EvaluateRequest struct {
	Expr string `json:"expr"`
}

// MatrixRequest is the /api/matrix body. A nil operand is sent as null.
type MatrixRequest struct {
	Op string          `json:"op"`
	A  json.RawMessage `json:"a"`
	B  json.RawMessage `json:"b"`
}

// APIError is an ok:false envelope.
type APIError struct {
	Endpoint string
	Message  string
}

func (e *APIError) Error() string { return e.Message }

// DecodeError means the response body was not a usable envelope.
type DecodeError struct {
	Status int
	Reason string
}

func (e *DecodeError) Error() string {
	if e.Status < 200 || e.Status >= 300 {
		return fmt.Sprintf("calcapi http %d: %s", e.Status, e.Reason)
	}
	return "calcapi: " + e.Reason
}

var (
	ErrLoginRejected = errors.New("calcapi: login rejected")
	ErrUsernameTaken = errors.New("calcapi: username already exists")
)
