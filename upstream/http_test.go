package upstream_test

import (
	"context"
	"encoding/json"
	"errors"
	"net/http"
	"net/http/httptest"
	"testing"
	"time"

	"github.com/takeshijuan/ideogram-mcp-server-sub001/upstream"
)

func TestHTTPSubmitter_Success(t *testing.T) {
	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		if r.URL.Path != "/generate" {
			t.Errorf("path = %q, want /generate", r.URL.Path)
		}
		if r.Header.Get("Api-Key") != "secret" {
			t.Errorf("Api-Key header = %q", r.Header.Get("Api-Key"))
		}
		var body map[string]any
		if err := json.NewDecoder(r.Body).Decode(&body); err != nil {
			t.Errorf("request body not JSON: %v", err)
		}
		w.Header().Set("Content-Type", "application/json")
		_, _ = w.Write([]byte(`{"data":[{"url":"https://img.example/1.png"}]}`))
	}))
	defer srv.Close()

	sub := upstream.NewHTTPSubmitter(srv.URL, "secret")
	result, err := sub.Submit(context.Background(), "generate", json.RawMessage(`{"prompt":"a cat"}`))
	if err != nil {
		t.Fatalf("Submit error: %v", err)
	}
	if !json.Valid(result) {
		t.Errorf("result is not valid JSON: %s", result)
	}
}

func TestHTTPSubmitter_ClassifiesVendorErrors(t *testing.T) {
	tests := []struct {
		status        int
		body          string
		wantCode      string
		wantRetryable bool
	}{
		{400, `{"error":"bad prompt"}`, "invalid_request", false},
		{429, `{"message":"rate limit"}`, "rate_limited", true},
		{500, `whoops`, "upstream_error", true},
		{503, `{"error":"maintenance"}`, "upstream_error", true},
	}
	for _, tt := range tests {
		srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, _ *http.Request) {
			w.WriteHeader(tt.status)
			_, _ = w.Write([]byte(tt.body))
		}))

		sub := upstream.NewHTTPSubmitter(srv.URL, "k")
		_, err := sub.Submit(context.Background(), "generate", json.RawMessage(`{}`))
		srv.Close()

		var ue *upstream.Error
		if !errors.As(err, &ue) {
			t.Fatalf("status %d: error %v is not *upstream.Error", tt.status, err)
		}
		if ue.Code != tt.wantCode || ue.Retryable != tt.wantRetryable {
			t.Errorf("status %d: got {%s retryable=%v}, want {%s retryable=%v}",
				tt.status, ue.Code, ue.Retryable, tt.wantCode, tt.wantRetryable)
		}
	}
}

func TestHTTPSubmitter_ParsesRetryAfter(t *testing.T) {
	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, _ *http.Request) {
		w.Header().Set("Retry-After", "5")
		w.WriteHeader(http.StatusTooManyRequests)
		_, _ = w.Write([]byte(`{"error":"slow down"}`))
	}))
	defer srv.Close()

	sub := upstream.NewHTTPSubmitter(srv.URL, "k")
	_, err := sub.Submit(context.Background(), "generate", json.RawMessage(`{}`))

	ra, ok := upstream.RetryAfter(err)
	if !ok || ra != 5*time.Second {
		t.Errorf("RetryAfter = (%v, %v), want (5s, true)", ra, ok)
	}
}

func TestHTTPSubmitter_MalformedSuccessBodyIsPermanent(t *testing.T) {
	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, _ *http.Request) {
		_, _ = w.Write([]byte(`not json at all`))
	}))
	defer srv.Close()

	sub := upstream.NewHTTPSubmitter(srv.URL, "k")
	_, err := sub.Submit(context.Background(), "generate", json.RawMessage(`{}`))
	if err == nil {
		t.Fatal("expected error for malformed body")
	}
	if upstream.Retryable(err) {
		t.Error("malformed response classified as retryable")
	}
}
