package upstream

import (
	"bytes"
	"context"
	"encoding/json"
	"fmt"
	"io"
	"net/http"
	"strconv"
	"time"
)

// HTTPSubmitter performs the synchronous vendor exchange over HTTP:
// POST {base}/{kind} with the raw request body. The vendor API has no job
// semantics of its own; one request blocks until the image is ready.
type HTTPSubmitter struct {
	baseURL string
	apiKey  string
	client  *http.Client
}

// HTTPOption configures an HTTPSubmitter.
type HTTPOption func(*HTTPSubmitter)

// WithHTTPClient replaces the default client. The client's timeout bounds
// the whole exchange; the store relies on the submitter to do this.
func WithHTTPClient(c *http.Client) HTTPOption {
	return func(s *HTTPSubmitter) { s.client = c }
}

// NewHTTPSubmitter creates a Submitter for the vendor endpoint.
func NewHTTPSubmitter(baseURL, apiKey string, opts ...HTTPOption) *HTTPSubmitter {
	s := &HTTPSubmitter{
		baseURL: baseURL,
		apiKey:  apiKey,
		client:  &http.Client{Timeout: 5 * time.Minute},
	}
	for _, opt := range opts {
		opt(s)
	}
	return s
}

var _ Submitter = (*HTTPSubmitter)(nil)

// Submit implements Submitter.
func (s *HTTPSubmitter) Submit(ctx context.Context, kind string, request json.RawMessage) (json.RawMessage, error) {
	req, err := http.NewRequestWithContext(ctx, http.MethodPost, s.baseURL+"/"+kind, bytes.NewReader(request))
	if err != nil {
		return nil, fmt.Errorf("upstream: build request: %w", err)
	}
	req.Header.Set("Content-Type", "application/json")
	req.Header.Set("Api-Key", s.apiKey)

	resp, err := s.client.Do(req)
	if err != nil {
		return nil, fmt.Errorf("upstream: %s: %w", kind, err)
	}
	defer resp.Body.Close()

	body, err := io.ReadAll(resp.Body)
	if err != nil {
		return nil, fmt.Errorf("upstream: read response: %w", err)
	}

	if resp.StatusCode >= 400 {
		e := NewError(resp.StatusCode, vendorMessage(body))
		if ra := parseRetryAfter(resp.Header.Get("Retry-After")); ra > 0 {
			e.RetryAfter = ra
		}
		return nil, e
	}

	if !json.Valid(body) {
		// A malformed success body is permanent: retrying replays the
		// same broken contract.
		return nil, &Error{
			Code:       "malformed_response",
			Message:    "vendor returned invalid JSON",
			StatusCode: resp.StatusCode,
		}
	}

	return body, nil
}

// vendorMessage pulls the human-readable message out of a vendor error
// body, falling back to the raw body.
func vendorMessage(body []byte) string {
	var payload struct {
		Error   string `json:"error"`
		Message string `json:"message"`
	}
	if json.Unmarshal(body, &payload) == nil {
		if payload.Error != "" {
			return payload.Error
		}
		if payload.Message != "" {
			return payload.Message
		}
	}
	return string(body)
}

// parseRetryAfter handles the delta-seconds form of the Retry-After header.
func parseRetryAfter(header string) time.Duration {
	if header == "" {
		return 0
	}
	seconds, err := strconv.Atoi(header)
	if err != nil || seconds <= 0 {
		return 0
	}
	return time.Duration(seconds) * time.Second
}
