package calcapi

import (
	"bytes"
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"io"
	"net"
	"net/http"
	"net/http/cookiejar"
	"strings"
	"time"

	"github.com/tidwall/gjson"
)

const (
	DefaultBaseURL = "http://127.0.0.1:5000"
	DefaultTimeout = 25 * time.Second

	maxBodyBytes = 4 * 1024 * 1024
	userAgent    = "calcdesk"
)

type Client struct {
	BaseURL string
	HTTP    *http.Client
}

func New(baseURL string, timeout time.Duration) *Client {
	baseURL = strings.TrimRight(strings.TrimSpace(baseURL), "/")
	if baseURL == "" {
		baseURL = DefaultBaseURL
	}
	if timeout <= 0 {
		timeout = DefaultTimeout
	}
	return &Client{
		BaseURL: baseURL,
		HTTP:    newHTTPClient(timeout),
	}
}

func newHTTPClient(timeout time.Duration) *http.Client {
	dialer := &net.Dialer{Timeout: 10 * time.Second, KeepAlive: 30 * time.Second}
	tr := &http.Transport{
		Proxy:                 http.ProxyFromEnvironment,
		DialContext:           dialer.DialContext,
		TLSHandshakeTimeout:   10 * time.Second,
		ResponseHeaderTimeout: 15 * time.Second,
		IdleConnTimeout:       30 * time.Second,
		ExpectContinueTimeout: 1 * time.Second,
	}
	// cookiejar.New only fails on a bad PublicSuffixList.
	jar, _ := cookiejar.New(nil)
	return &http.Client{Timeout: timeout, Transport: tr, Jar: jar}
}

// Evaluate posts expr to /api/evaluate and returns the raw result.
// An ok:false envelope is returned as *APIError.
func (c *Client) Evaluate(ctx context.Context, expr string) (json.RawMessage, error) {
	return c.postEnvelope(ctx, "/api/evaluate", EvaluateRequest{Expr: expr})
}

// Matrix posts {op, a, b} to /api/matrix. a and b are sent verbatim; nil means null.
func (c *Client) Matrix(ctx context.Context, op string, a, b json.RawMessage) (json.RawMessage, error) {
	return c.postEnvelope(ctx, "/api/matrix", MatrixRequest{Op: op, A: a, B: b})
}

func (c *Client) postEnvelope(ctx context.Context, path string, body any) (json.RawMessage, error) {
	b, err := json.Marshal(body)
	if err != nil {
		return nil, err
	}

	req, err := http.NewRequestWithContext(ctx, http.MethodPost, c.BaseURL+path, bytes.NewReader(b))
	if err != nil {
		return nil, err
	}
	req.Header.Set("Content-Type", "application/json")
	req.Header.Set("Accept", "application/json")
	req.Header.Set("User-Agent", userAgent)

	res, err := c.http().Do(req)
	if err != nil {
		return nil, err
	}
	defer res.Body.Close()

	raw, err := io.ReadAll(io.LimitReader(res.Body, maxBodyBytes+1))
	if err != nil {
		return nil, err
	}
	if len(raw) > maxBodyBytes {
		return nil, &DecodeError{Status: res.StatusCode, Reason: fmt.Sprintf("response exceeds %d bytes", maxBodyBytes)}
	}
	return decodeEnvelope(path, res.StatusCode, raw)
}

// decodeEnvelope does not look at the status code first: an error status with a
// well-formed envelope is reported through the envelope.
func decodeEnvelope(endpoint string, status int, body []byte) (json.RawMessage, error) {
	if !gjson.ValidBytes(body) {
		return nil, &DecodeError{Status: status, Reason: "response is not valid json"}
	}
	ok := gjson.GetBytes(body, "ok")
	if ok.Type != gjson.True && ok.Type != gjson.False {
		return nil, &DecodeError{Status: status, Reason: "response has no boolean ok field"}
	}

	if ok.Bool() {
		res := gjson.GetBytes(body, "result")
		if !res.Exists() {
			return nil, nil
		}
		return json.RawMessage(res.Raw), nil
	}

	msg := gjson.GetBytes(body, "error")
	apiErr := &APIError{Endpoint: endpoint}
	switch {
	case msg.Type == gjson.String:
		apiErr.Message = msg.Str
	case msg.Exists() && msg.Type != gjson.Null:
		apiErr.Message = msg.Raw
	default:
		apiErr.Message = "unknown error"
	}
	return nil, apiErr
}

// IsAPIError reports whether err carries an ok:false envelope.
func IsAPIError(err error) bool {
	var apiErr *APIError
	return errors.As(err, &apiErr)
}

func (c *Client) http() *http.Client {
	if c.HTTP != nil {
		return c.HTTP
	}
	return http.DefaultClient
}
