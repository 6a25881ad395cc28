package spindle

import (
	"context"
	"fmt"
	"io"
	"net/http"
	"net/http/httptest"
	"strings"
	"testing"
	"time"
)

func TestCollyFetcherGet(t *testing.T) {
	t.Parallel()

	var gotAgent string
	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		gotAgent = r.UserAgent()
		w.Header().Set("X-Served-By", "fixture")
		fmt.Fprint(w, "<html><body>hello</body></html>")
	}))
	defer srv.Close()

	f := NewCollyFetcher("test-agent/1.0")
	result, err := f.Fetch(context.Background(), FetchRequest{
		URL:     srv.URL,
		Method:  http.MethodGet,
		Timeout: 5 * time.Second,
	})
	if err != nil {
		t.Fatalf("Fetch() error = %v", err)
	}
	if result.StatusCode != http.StatusOK {
		t.Fatalf("expected 200, got %d", result.StatusCode)
	}
	if !strings.Contains(string(result.Body), "hello") {
		t.Fatalf("unexpected body %q", result.Body)
	}
	if result.Header.Get("X-Served-By") != "fixture" {
		t.Fatalf("expected response header, got %+v", result.Header)
	}
	if result.FinalURL != srv.URL+"/" && result.FinalURL != srv.URL {
		t.Fatalf("unexpected final URL %q", result.FinalURL)
	}
	if gotAgent != "test-agent/1.0" {
		t.Fatalf("expected configured user agent, got %q", gotAgent)
	}
}

func TestCollyFetcherErrorStatusIsResult(t *testing.T) {
	t.Parallel()

	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		w.WriteHeader(http.StatusNotFound)
		fmt.Fprint(w, "not here")
	}))
	defer srv.Close()

	f := NewCollyFetcher("test-agent/1.0")
	result, err := f.Fetch(context.Background(), FetchRequest{
		URL:     srv.URL,
		Method:  http.MethodGet,
		Timeout: 5 * time.Second,
	})
	if err != nil {
		t.Fatalf("expected a 404 to be a result, got error %v", err)
	}
	if result.StatusCode != http.StatusNotFound {
		t.Fatalf("expected 404, got %d", result.StatusCode)
	}
	if string(result.Body) != "not here" {
		t.Fatalf("unexpected body %q", result.Body)
	}
}

func TestCollyFetcherPostBody(t *testing.T) {
	t.Parallel()

	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		payload, _ := io.ReadAll(r.Body)
		fmt.Fprintf(w, "%s:%s", r.Method, payload)
	}))
	defer srv.Close()

	f := NewCollyFetcher("test-agent/1.0")
	result, err := f.Fetch(context.Background(), FetchRequest{
		URL:     srv.URL,
		Method:  http.MethodPost,
		Body:    []byte(`{"q":"price"}`),
		Timeout: 5 * time.Second,
	})
	if err != nil {
		t.Fatalf("Fetch() error = %v", err)
	}
	if string(result.Body) != `POST:{"q":"price"}` {
		t.Fatalf("unexpected echo %q", result.Body)
	}
}

func TestCollyFetcherSendsHeaders(t *testing.T) {
	t.Parallel()

	var gotTrace string
	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		gotTrace = r.Header.Get("X-Trace")
		fmt.Fprint(w, "ok")
	}))
	defer srv.Close()

	f := NewCollyFetcher("test-agent/1.0")
	_, err := f.Fetch(context.Background(), FetchRequest{
		URL:     srv.URL,
		Method:  http.MethodGet,
		Header:  http.Header{"X-Trace": {"trace-123"}},
		Timeout: 5 * time.Second,
	})
	if err != nil {
		t.Fatalf("Fetch() error = %v", err)
	}
	if gotTrace != "trace-123" {
		t.Fatalf("expected request header to be sent, got %q", gotTrace)
	}
}

func TestCollyFetcherUserAgentOverride(t *testing.T) {
	t.Parallel()

	var gotAgent string
	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		gotAgent = r.UserAgent()
		fmt.Fprint(w, "ok")
	}))
	defer srv.Close()

	f := NewCollyFetcher("base-agent/1.0")
	_, err := f.Fetch(context.Background(), FetchRequest{
		URL:       srv.URL,
		Method:    http.MethodGet,
		UserAgent: "override-agent/2.0",
		Timeout:   5 * time.Second,
	})
	if err != nil {
		t.Fatalf("Fetch() error = %v", err)
	}
	if gotAgent != "override-agent/2.0" {
		t.Fatalf("expected per-fetch override, got %q", gotAgent)
	}
}

func TestCollyFetcherCookiesPersistAcrossFetches(t *testing.T) {
	t.Parallel()

	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		switch r.URL.Path {
		case "/login":
			http.SetCookie(w, &http.Cookie{Name: "session", Value: "abc123", Path: "/"})
			fmt.Fprint(w, "logged in")
		default:
			c, err := r.Cookie("session")
			if err != nil {
				w.WriteHeader(http.StatusForbidden)
				fmt.Fprint(w, "no session")
				return
			}
			fmt.Fprintf(w, "session=%s", c.Value)
		}
	}))
	defer srv.Close()

	f := NewCollyFetcher("test-agent/1.0")
	ctx := context.Background()
	if _, err := f.Fetch(ctx, FetchRequest{URL: srv.URL + "/login", Method: http.MethodGet, Timeout: 5 * time.Second}); err != nil {
		t.Fatalf("login fetch error = %v", err)
	}
	result, err := f.Fetch(ctx, FetchRequest{URL: srv.URL + "/area", Method: http.MethodGet, Timeout: 5 * time.Second})
	if err != nil {
		t.Fatalf("area fetch error = %v", err)
	}
	if result.StatusCode != http.StatusOK || string(result.Body) != "session=abc123" {
		t.Fatalf("expected the session cookie to persist, got %d %q", result.StatusCode, result.Body)
	}
}

func TestCollyFetcherFollowsRedirects(t *testing.T) {
	t.Parallel()

	mux := http.NewServeMux()
	srv := httptest.NewServer(mux)
	defer srv.Close()
	mux.HandleFunc("/start", func(w http.ResponseWriter, r *http.Request) {
		http.Redirect(w, r, "/final", http.StatusFound)
	})
	mux.HandleFunc("/final", func(w http.ResponseWriter, r *http.Request) {
		fmt.Fprint(w, "landed")
	})

	f := NewCollyFetcher("test-agent/1.0")
	result, err := f.Fetch(context.Background(), FetchRequest{
		URL:     srv.URL + "/start",
		Method:  http.MethodGet,
		Timeout: 5 * time.Second,
	})
	if err != nil {
		t.Fatalf("Fetch() error = %v", err)
	}
	if string(result.Body) != "landed" {
		t.Fatalf("unexpected body %q", result.Body)
	}
	if result.FinalURL != srv.URL+"/final" {
		t.Fatalf("expected final URL after redirect, got %q", result.FinalURL)
	}
}

func TestCollyFetcherConnectionError(t *testing.T) {
	t.Parallel()

	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {}))
	target := srv.URL
	srv.Close()

	f := NewCollyFetcher("test-agent/1.0")
	if _, err := f.Fetch(context.Background(), FetchRequest{
		URL:     target,
		Method:  http.MethodGet,
		Timeout: 5 * time.Second,
	}); err == nil {
		t.Fatal("expected an error for a closed server")
	}
}

func TestCollyFetcherTimeout(t *testing.T) {
	t.Parallel()

	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		time.Sleep(2 * time.Second)
		fmt.Fprint(w, "too late")
	}))
	defer srv.Close()

	f := NewCollyFetcher("test-agent/1.0")
	start := time.Now()
	_, err := f.Fetch(context.Background(), FetchRequest{
		URL:     srv.URL,
		Method:  http.MethodGet,
		Timeout: 100 * time.Millisecond,
	})
	if err == nil {
		t.Fatal("expected a timeout error")
	}
	if elapsed := time.Since(start); elapsed > time.Second {
		t.Fatalf("expected the timeout to cut the fetch short, took %v", elapsed)
	}
}

func TestCollyFetcherContextCanceled(t *testing.T) {
	t.Parallel()

	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		time.Sleep(300 * time.Millisecond)
		fmt.Fprint(w, "too late")
	}))
	defer srv.Close()

	ctx, cancel := context.WithCancel(context.Background())
	go func() {
		time.Sleep(30 * time.Millisecond)
		cancel()
	}()

	f := NewCollyFetcher("test-agent/1.0")
	_, err := f.Fetch(ctx, FetchRequest{
		URL:     srv.URL,
		Method:  http.MethodGet,
		Timeout: 5 * time.Second,
	})
	if err == nil {
		t.Fatal("expected an error for a canceled context")
	}
	if !strings.Contains(err.Error(), "canceled") {
		t.Fatalf("expected a cancellation error, got %v", err)
	}
}
