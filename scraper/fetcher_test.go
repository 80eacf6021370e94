package scraper

import (
	"context"
	"errors"
	"fmt"
	"net"
	"net/http"
	"testing"
	"time"

	"github.com/jarcoal/httpmock"

	"github.com/aluiziolira/go-scrape-recipes/config"
)

func TestClassifyError(t *testing.T) {
	tests := []struct {
		name       string
		err        error
		statusCode int
		expected   string
	}{
		{name: "nil", err: nil, statusCode: 0, expected: "unknown"},
		{name: "context timeout", err: context.DeadlineExceeded, statusCode: 0, expected: "timeout"},
		{name: "net timeout", err: &net.DNSError{IsTimeout: true}, statusCode: 0, expected: "timeout"},
		{name: "connection", err: &net.OpError{Op: "dial", Net: "tcp", Err: errors.New("connection refused")}, statusCode: 0, expected: "connection"},
		{name: "forbidden", err: nil, statusCode: http.StatusForbidden, expected: "forbidden"},
		{name: "not found", err: nil, statusCode: http.StatusNotFound, expected: "not_found"},
		{name: "rate limited", err: nil, statusCode: http.StatusTooManyRequests, expected: "rate_limited"},
		{name: "server error", err: nil, statusCode: http.StatusServiceUnavailable, expected: "http_status"},
		{name: "other", err: errors.New("some other error"), statusCode: 0, expected: "other"},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			if got := errorTypeLabel(classifyError(tt.err, tt.statusCode)); got != tt.expected {
				t.Fatalf("classifyError(%v, %d) = %q, want %q", tt.err, tt.statusCode, got, tt.expected)
			}
		})
	}
}

func newTestFetcher(t *testing.T, transport http.RoundTripper) *Fetcher {
	t.Helper()

	cfg := config.DefaultConfig()
	cfg.Parallelism = 2
	cfg.Timeout = 5 * time.Second

	f, err := NewFetcher(cfg, NewMetrics(), transport)
	if err != nil {
		t.Fatalf("new fetcher: %v", err)
	}
	return f
}

func TestFetcherReturnsBody(t *testing.T) {
	transport := httpmock.NewMockTransport()
	transport.RegisterResponder("GET", "http://example.test/recipe/all/popular", htmlResponder("<html>ok</html>"))

	f := newTestFetcher(t, transport)

	for i := 0; i < 2; i++ {
		body, err := f.Fetch(context.Background(), PhaseListing, "http://example.test/recipe/all/popular")
		if err != nil {
			t.Fatalf("fetch %d: %v", i, err)
		}
		if string(body) != "<html>ok</html>" {
			t.Fatalf("body = %q", body)
		}
	}
	if got := transport.GetTotalCallCount(); got != 2 {
		t.Fatalf("calls = %d, want 2 (revisits must be allowed)", got)
	}
}

func TestFetcherHTTPStatusClassification(t *testing.T) {
	tests := []struct {
		status   int
		expected string
	}{
		{status: http.StatusTooManyRequests, expected: "rate_limited"},
		{status: http.StatusForbidden, expected: "forbidden"},
		{status: http.StatusNotFound, expected: "not_found"},
		{status: http.StatusInternalServerError, expected: "http_status"},
	}

	for _, tt := range tests {
		t.Run(fmt.Sprintf("status_%d", tt.status), func(t *testing.T) {
			url := "http://example.test/recipe/all/trending"
			transport := httpmock.NewMockTransport()
			transport.RegisterResponder("GET", url, httpmock.NewStringResponder(tt.status, ""))

			f := newTestFetcher(t, transport)

			_, err := f.Fetch(context.Background(), PhaseListing, url)
			var fetchErr *FetchError
			if !errors.As(err, &fetchErr) {
				t.Fatalf("expected FetchError, got %v", err)
			}
			if fetchErr.StatusCode != tt.status {
				t.Fatalf("status = %d, want %d", fetchErr.StatusCode, tt.status)
			}
			if fetchErr.URL != url {
				t.Fatalf("url = %q, want %q", fetchErr.URL, url)
			}
			if got := errorTypeLabel(err); got != tt.expected {
				t.Fatalf("label = %q, want %q", got, tt.expected)
			}
		})
	}
}

func TestFetcherTransportError(t *testing.T) {
	transport := httpmock.NewMockTransport()
	transport.RegisterResponder("GET", "http://example.test/down",
		httpmock.NewErrorResponder(&net.OpError{Op: "dial", Net: "tcp", Err: errors.New("connection refused")}))

	f := newTestFetcher(t, transport)

	_, err := f.Fetch(context.Background(), PhaseDetail, "http://example.test/down")
	var fetchErr *FetchError
	if !errors.As(err, &fetchErr) {
		t.Fatalf("expected FetchError, got %v", err)
	}
	if fetchErr.StatusCode != 0 {
		t.Fatalf("status = %d, want 0", fetchErr.StatusCode)
	}
	if got := errorTypeLabel(err); got != "connection" {
		t.Fatalf("label = %q, want connection", got)
	}
}

func TestFetcherCanceledContext(t *testing.T) {
	transport := httpmock.NewMockTransport()
	f := newTestFetcher(t, transport)

	ctx, cancel := context.WithCancel(context.Background())
	cancel()

	if _, err := f.Fetch(ctx, PhaseListing, "http://example.test/recipe/all/popular"); !errors.Is(err, context.Canceled) {
		t.Fatalf("err = %v, want context.Canceled", err)
	}
	if got := transport.GetTotalCallCount(); got != 0 {
		t.Fatalf("calls = %d, want 0", got)
	}
}

func htmlResponder(body string) httpmock.Responder {
	resp := httpmock.NewStringResponse(200, body)
	resp.Header.Set("Content-Type", "text/html")
	return httpmock.ResponderFromResponse(resp)
}

func TestFetcherCancelAbortsInFlightRequest(t *testing.T) {
	url := "http://example.test/recipe/slow-1"
	entered := make(chan struct{})
	transport := httpmock.NewMockTransport()
	transport.RegisterResponder("GET", url, func(req *http.Request) (*http.Response, error) {
		close(entered)
		<-req.Context().Done()
		return nil, req.Context().Err()
	})

	cfg := config.DefaultConfig()
	cfg.Timeout = time.Minute
	f, err := NewFetcher(cfg, NewMetrics(), transport)
	if err != nil {
		t.Fatalf("new fetcher: %v", err)
	}

	ctx, cancel := context.WithCancel(context.Background())
	done := make(chan error, 1)
	go func() {
		_, err := f.Fetch(ctx, PhaseDetail, url)
		done <- err
	}()

	select {
	case <-entered:
	case <-time.After(5 * time.Second):
		t.Fatalf("request never reached the transport")
	}
	cancel()

	select {
	case err := <-done:
		if !errors.Is(err, context.Canceled) {
			t.Fatalf("err = %v, want context.Canceled", err)
		}
	case <-time.After(5 * time.Second):
		t.Fatalf("fetch did not return after cancel")
	}
}
