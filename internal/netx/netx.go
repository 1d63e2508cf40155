// Package netx holds small HTTP helpers for JSON APIs.
package netx

import (
	"bytes"
	"context"
	"encoding/json"
	"fmt"
	"io"
	"net/http"
)

// maxDetailBytes bounds how much of an error body is read.
const maxDetailBytes = 4 << 10

// NewJSONRequest builds a request whose body is body encoded as JSON. A nil
// body sends no payload.
func NewJSONRequest(ctx context.Context, method, url string, body any) (*http.Request, error) {
	var r io.Reader
	if body != nil {
		b, err := json.Marshal(body)
		if err != nil {
			return nil, fmt.Errorf("encode request: %w", err)
		}
		r = bytes.NewReader(b)
	}

	req, err := http.NewRequestWithContext(ctx, method, url, r)
	if err != nil {
		return nil, err
	}
	req.Header.Set("Accept", "application/json")
	if body != nil {
		req.Header.Set("Content-Type", "application/json")
	}
	return req, nil
}

// SetBearer sets the Authorization header when token is not empty.
func SetBearer(req *http.Request, token string) {
	if token != "" {
		req.Header.Set("Authorization", "Bearer "+token)
	}
}

// DecodeJSON reads resp.Body into out. A nil out drains the body.
func DecodeJSON(resp *http.Response, out any) error {
	if out == nil {
		_, _ = io.Copy(io.Discard, resp.Body)
		return nil
	}
	if err := json.NewDecoder(resp.Body).Decode(out); err != nil {
		return fmt.Errorf("decode response: %w", err)
	}
	return nil
}

// ErrorDetail extracts the "detail" field of an error body, falling back to
// the raw body and then to the status text.
func ErrorDetail(resp *http.Response) string {
	b, _ := io.ReadAll(io.LimitReader(resp.Body, maxDetailBytes))

	var e struct {
		Detail string `json:"detail"`
	}
	if err := json.Unmarshal(b, &e); err == nil && e.Detail != "" {
		return e.Detail
	}
	if s := string(bytes.TrimSpace(b)); s != "" {
		return s
	}
	return http.StatusText(resp.StatusCode)
}
