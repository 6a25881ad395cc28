package spindle

import (
	"net/http"
	"testing"
)

func TestNewRequestDefaults(t *testing.T) {
	t.Parallel()

	req := NewRequest("https://example.com/")
	if req.Method != http.MethodGet {
		t.Fatalf("expected GET, got %q", req.Method)
	}
	if req.Header == nil {
		t.Fatal("expected a non-nil header map")
	}
	if req.Callback != nil || req.Meta != nil || req.Body != nil {
		t.Fatalf("expected zero optional fields, got %+v", req)
	}
}

func TestNewRequestOptions(t *testing.T) {
	t.Parallel()

	called := false
	req := NewRequest("https://example.com/api",
		WithMethod("post"),
		WithHeader("Accept", "application/json"),
		WithHeader("Accept", "text/html"),
		WithBody([]byte(`{"q":1}`)),
		WithMeta("depth", 2),
		WithCallback(func(*Response) ([]Yield, error) {
			called = true
			return nil, nil
		}),
	)

	if req.Method != http.MethodPost {
		t.Fatalf("expected method to be upper-cased, got %q", req.Method)
	}
	if got := req.Header.Values("Accept"); len(got) != 2 {
		t.Fatalf("expected both Accept values, got %v", got)
	}
	if string(req.Body) != `{"q":1}` {
		t.Fatalf("unexpected body %q", req.Body)
	}
	if req.Meta["depth"] != 2 {
		t.Fatalf("unexpected meta %v", req.Meta)
	}
	if _, err := req.Callback(nil); err != nil || !called {
		t.Fatal("expected the bound callback to run")
	}
}

func TestRequestMethodNormalization(t *testing.T) {
	t.Parallel()

	tests := []struct {
		in   string
		want string
	}{
		{"", http.MethodGet},
		{"get", http.MethodGet},
		{"Post", http.MethodPost},
		{"DELETE", http.MethodDelete},
	}
	for _, tt := range tests {
		req := &Request{URL: "https://example.com/", Method: tt.in}
		if got := req.method(); got != tt.want {
			t.Fatalf("method(%q) = %q, want %q", tt.in, got, tt.want)
		}
	}
}

func TestStartURLs(t *testing.T) {
	t.Parallel()

	reqs := StartURLs("https://example.com/a", "https://example.com/b")
	if len(reqs) != 2 {
		t.Fatalf("expected 2 requests, got %d", len(reqs))
	}
	if reqs[0].URL != "https://example.com/a" || reqs[1].URL != "https://example.com/b" {
		t.Fatalf("unexpected request order: %s, %s", reqs[0].URL, reqs[1].URL)
	}
	if reqs[0].Method != http.MethodGet {
		t.Fatalf("expected GET seeds, got %q", reqs[0].Method)
	}

	if got := StartURLs(); len(got) != 0 {
		t.Fatalf("expected no requests for no URLs, got %d", len(got))
	}
}
