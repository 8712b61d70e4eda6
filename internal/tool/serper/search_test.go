package serper

import (
	"context"
	"encoding/json"
	"net/http"
	"net/http/httptest"
	"strings"
	"sync/atomic"
	"testing"
	"time"

	xerrors "MarketCrew/internal/errors"
)

func newTestSearch(t *testing.T, endpoint string, maxRetries int) *Search {
	t.Helper()
	search, err := NewSearch(Config{
		APIKey:     "serper-test",
		Endpoint:   endpoint,
		MaxResults: 3,
		Timeout:    time.Second,
		MaxRetries: maxRetries,
	})
	if err != nil {
		t.Fatalf("unexpected error: %v", err)
	}
	return search
}

func TestNewSearchRequiresAPIKey(t *testing.T) {
	if _, err := NewSearch(Config{}); err == nil {
		t.Fatalf("expected error when api key is missing")
	}
}

func TestInvokeRendersResults(t *testing.T) {
	var captured struct {
		APIKey string
		Query  string
	}
	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		captured.APIKey = r.Header.Get("X-API-KEY")
		var body map[string]any
		_ = json.NewDecoder(r.Body).Decode(&body)
		captured.Query, _ = body["q"].(string)

		_ = json.NewEncoder(w).Encode(map[string]any{
			"organic": []map[string]any{
				{"title": "AI in analytics", "link": "https://example.com/a", "snippet": "trends"},
				{"title": "Market report", "link": "https://example.com/b", "snippet": "sentiment"},
			},
		})
	}))
	defer srv.Close()

	search := newTestSearch(t, srv.URL, 0)
	output, err := search.Invoke(context.Background(), "generative ai analytics")
	if err != nil {
		t.Fatalf("unexpected error: %v", err)
	}
	if captured.APIKey != "serper-test" {
		t.Fatalf("api key header missing: %q", captured.APIKey)
	}
	if captured.Query != "generative ai analytics" {
		t.Fatalf("query not forwarded: %q", captured.Query)
	}
	if !strings.Contains(output, "1. AI in analytics") || !strings.Contains(output, "https://example.com/b") {
		t.Fatalf("unexpected output:\n%s", output)
	}
}

func TestInvokeEmptyQuery(t *testing.T) {
	search := newTestSearch(t, "http://127.0.0.1:0", 0)
	_, err := search.Invoke(context.Background(), "  ")
	if xerrors.CodeOf(err) != xerrors.CodeToolFailure {
		t.Fatalf("expected TOOL_FAILURE, got %v", err)
	}
}

func TestInvokeRetriesRateLimit(t *testing.T) {
	var calls atomic.Int32
	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		if calls.Add(1) == 1 {
			http.Error(w, "rate limited", http.StatusTooManyRequests)
			return
		}
		_ = json.NewEncoder(w).Encode(map[string]any{
			"organic": []map[string]any{
				{"title": "ok", "link": "https://example.com", "snippet": "fine"},
			},
		})
	}))
	defer srv.Close()

	search := newTestSearch(t, srv.URL, 1)
	output, err := search.Invoke(context.Background(), "topic")
	if err != nil {
		t.Fatalf("unexpected error: %v", err)
	}
	if !strings.Contains(output, "ok") {
		t.Fatalf("unexpected output: %q", output)
	}
	if calls.Load() != 2 {
		t.Fatalf("expected 2 attempts, got %d", calls.Load())
	}
}

func TestInvokeRetryBoundary(t *testing.T) {
	// 故障恰好 2 次时，只允许 1 次重试的工具必然失败。
	var calls atomic.Int32
	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		if calls.Add(1) <= 2 {
			http.Error(w, "boom", http.StatusInternalServerError)
			return
		}
		_ = json.NewEncoder(w).Encode(map[string]any{"organic": []map[string]any{{"title": "late"}}})
	}))
	defer srv.Close()

	search := newTestSearch(t, srv.URL, 1)
	_, err := search.Invoke(context.Background(), "topic")
	if xerrors.CodeOf(err) != xerrors.CodeToolFailure {
		t.Fatalf("expected TOOL_FAILURE at retry boundary, got %v", err)
	}
	if calls.Load() != 2 {
		t.Fatalf("expected exactly 2 attempts, got %d", calls.Load())
	}
}

func TestInvokeClientErrorNotRetried(t *testing.T) {
	var calls atomic.Int32
	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		calls.Add(1)
		http.Error(w, "forbidden", http.StatusForbidden)
	}))
	defer srv.Close()

	search := newTestSearch(t, srv.URL, 3)
	_, err := search.Invoke(context.Background(), "topic")
	if xerrors.CodeOf(err) != xerrors.CodeToolFailure {
		t.Fatalf("expected TOOL_FAILURE, got %v", err)
	}
	if calls.Load() != 1 {
		t.Fatalf("client error must not be retried, got %d attempts", calls.Load())
	}
}

func TestInvokeNoResults(t *testing.T) {
	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		_ = json.NewEncoder(w).Encode(map[string]any{"organic": []any{}})
	}))
	defer srv.Close()

	search := newTestSearch(t, srv.URL, 0)
	output, err := search.Invoke(context.Background(), "obscure topic")
	if err != nil {
		t.Fatalf("unexpected error: %v", err)
	}
	if output != "No search results found." {
		t.Fatalf("unexpected output: %q", output)
	}
}
