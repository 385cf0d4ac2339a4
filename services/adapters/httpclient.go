package adapters

import (
	"bytes"
	"context"
	"encoding/json"
	"fmt"
	"io"
	"net/http"
	"strings"
	"time"
)

const maxErrorBody = 512

// jsonClient is the JSON-over-HTTP transport shared by the official and
// partner adapters. It maps HTTP status codes onto adapter error kinds.
type jsonClient struct {
	adapterID string
	baseURL   string
	headers   map[string]string
	http      *http.Client
}

func newJSONClient(adapterID, baseURL string, headers map[string]string, timeout time.Duration) *jsonClient {
	if timeout <= 0 {
		timeout = 15 * time.Second
	}
	return &jsonClient{
		adapterID: adapterID,
		baseURL:   strings.TrimRight(baseURL, "/"),
		headers:   headers,
		http:      &http.Client{Timeout: timeout},
	}
}

// do sends body (if any) as JSON and decodes a 2xx response into out.
func (c *jsonClient) do(ctx context.Context, method, path string, extra map[string]string, body, out interface{}) error {
	var reader io.Reader
	if body != nil {
		data, err := json.Marshal(body)
		if err != nil {
			return NewValidationError(c.adapterID, fmt.Sprintf("encode request: %v", err))
		}
		reader = bytes.NewReader(data)
	}

	req, err := http.NewRequestWithContext(ctx, method, c.baseURL+path, reader)
	if err != nil {
		return NewUnavailableError(c.adapterID, "build request", err)
	}
	req.Header.Set("Accept", "application/json")
	if body != nil {
		req.Header.Set("Content-Type", "application/json")
	}
	for k, v := range c.headers {
		req.Header.Set(k, v)
	}
	for k, v := range extra {
		req.Header.Set(k, v)
	}

	resp, err := c.http.Do(req)
	if err != nil {
		return Classify(ctx, c.adapterID, err)
	}
	defer resp.Body.Close()

	if resp.StatusCode >= 200 && resp.StatusCode < 300 {
		if out == nil {
			return nil
		}
		if err := json.NewDecoder(resp.Body).Decode(out); err != nil {
			return NewUnavailableError(c.adapterID, "malformed response", err)
		}
		return nil
	}

	snippet, _ := io.ReadAll(io.LimitReader(resp.Body, maxErrorBody))
	return statusError(c.adapterID, resp.StatusCode, strings.TrimSpace(string(snippet)))
}

// statusError maps a non-2xx status to an adapter error.
func statusError(adapterID string, status int, body string) error {
	msg := fmt.Sprintf("HTTP %d", status)
	if body != "" {
		msg = fmt.Sprintf("HTTP %d: %s", status, body)
	}
	switch {
	case status == http.StatusBadRequest || status == http.StatusUnprocessableEntity:
		return NewValidationError(adapterID, msg)
	case status == http.StatusNotFound || status == http.StatusConflict || status == http.StatusGone:
		return NewNoSlotsError(adapterID, msg)
	case status == http.StatusUnauthorized || status == http.StatusPaymentRequired || status == http.StatusForbidden:
		return NewUnavailableError(adapterID, "credentials or balance rejected: "+msg, nil)
	case status == http.StatusTooManyRequests || status == http.StatusRequestTimeout || status >= 500:
		return NewTransientError(adapterID, msg, nil)
	default:
		return NewUnavailableError(adapterID, msg, nil)
	}
}
