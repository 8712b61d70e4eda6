package scraper

import (
	"context"
	"fmt"
	"net/http"
	"net/http/httptest"
	"strings"
	"testing"
	"time"

	xerrors "MarketCrew/internal/errors"
)

func TestInvokeExtractsBodyText(t *testing.T) {
	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		w.Header().Set("Content-Type", "text/html")
		fmt.Fprint(w, `<html><head><title>Page</title><style>body{}</style></head>
<body>
  <nav>Home About</nav>
  <script>var tracking = true;</script>
  <article>Quarterly revenue grew 40% year over year.</article>
  <footer>Copyright</footer>
</body></html>`)
	}))
	defer srv.Close()

	scraper := NewScraper(Config{Timeout: 2 * time.Second})
	output, err := scraper.Invoke(context.Background(), srv.URL)
	if err != nil {
		t.Fatalf("unexpected error: %v", err)
	}
	if !strings.Contains(output, "Quarterly revenue grew 40%") {
		t.Fatalf("article text missing: %q", output)
	}
	if strings.Contains(output, "tracking") || strings.Contains(output, "Home About") || strings.Contains(output, "Copyright") {
		t.Fatalf("noise nodes not stripped: %q", output)
	}
}

func TestInvokeRejectsMalformedURL(t *testing.T) {
	scraper := NewScraper(Config{})

	for _, input := range []string{"", "ftp://example.com/file", "not a url at all", "https://"} {
		_, err := scraper.Invoke(context.Background(), input)
		if xerrors.CodeOf(err) != xerrors.CodeToolFailure {
			t.Fatalf("input %q: expected TOOL_FAILURE, got %v", input, err)
		}
	}
}

func TestInvokeTruncatesLongPages(t *testing.T) {
	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		w.Header().Set("Content-Type", "text/html")
		fmt.Fprintf(w, "<html><body><p>%s</p></body></html>", strings.Repeat("data ", 200))
	}))
	defer srv.Close()

	scraper := NewScraper(Config{Timeout: 2 * time.Second, MaxRunes: 50})
	output, err := scraper.Invoke(context.Background(), srv.URL)
	if err != nil {
		t.Fatalf("unexpected error: %v", err)
	}
	if !strings.HasSuffix(output, "…[truncated]") {
		t.Fatalf("expected truncation marker: %q", output)
	}
	if len([]rune(strings.TrimSuffix(output, " …[truncated]"))) > 50 {
		t.Fatalf("output longer than limit: %q", output)
	}
}

func TestInvokeNotFoundNotRetried(t *testing.T) {
	var calls int
	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		calls++
		http.NotFound(w, r)
	}))
	defer srv.Close()

	scraper := NewScraper(Config{Timeout: 2 * time.Second, MaxRetries: 3})
	_, err := scraper.Invoke(context.Background(), srv.URL)
	if xerrors.CodeOf(err) != xerrors.CodeToolFailure {
		t.Fatalf("expected TOOL_FAILURE, got %v", err)
	}
	if calls != 1 {
		t.Fatalf("404 must not be retried, got %d attempts", calls)
	}
}

func TestInvokeRetriesServerError(t *testing.T) {
	var calls int
	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		calls++
		if calls == 1 {
			http.Error(w, "flaky", http.StatusServiceUnavailable)
			return
		}
		w.Header().Set("Content-Type", "text/html")
		fmt.Fprint(w, "<html><body><p>recovered content</p></body></html>")
	}))
	defer srv.Close()

	scraper := NewScraper(Config{Timeout: 2 * time.Second, MaxRetries: 1})
	output, err := scraper.Invoke(context.Background(), srv.URL)
	if err != nil {
		t.Fatalf("unexpected error: %v", err)
	}
	if !strings.Contains(output, "recovered content") {
		t.Fatalf("unexpected output: %q", output)
	}
	if calls != 2 {
		t.Fatalf("expected 2 attempts, got %d", calls)
	}
}
