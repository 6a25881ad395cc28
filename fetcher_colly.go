package spindle

import (
	"bytes"
	"context"
	"errors"
	"fmt"
	"io"
	"net"
	"net/http"
	"net/url"
	"sync"
	"time"

	"github.com/gocolly/colly/v2"
)

// CollyFetcher is the default transport. One base collector is configured
// per fetcher and cloned for every fetch, so per-request hooks never leak
// between requests; all clones share the base collector's backend, which
// gives a crawl the cookie session of a single browser.
type CollyFetcher struct {
	mu        sync.Mutex
	base      *colly.Collector
	transport *http.Transport
	proxyURL  string
}

// NewCollyFetcher builds the default Fetcher. userAgent is the collector's
// default identity; FetchRequest.UserAgent overrides it per fetch.
func NewCollyFetcher(userAgent string) *CollyFetcher {
	f := &CollyFetcher{}
	f.transport = &http.Transport{
		Proxy: f.proxy,
		DialContext: (&net.Dialer{
			Timeout:   10 * time.Second,
			KeepAlive: 30 * time.Second,
		}).DialContext,
		TLSHandshakeTimeout:   15 * time.Second,
		ExpectContinueTimeout: 1 * time.Second,
		MaxIdleConns:          100,
		IdleConnTimeout:       90 * time.Second,
	}

	base := colly.NewCollector(
		colly.Async(false),
		colly.UserAgent(userAgent),
	)
	// Identity and revisit decisions belong to the scheduler's fingerprint
	// seen-set, and non-2xx pages still go to callbacks.
	base.AllowURLRevisit = true
	base.ParseHTTPErrorResponse = true
	base.IgnoreRobotsTxt = true
	base.WithTransport(f.transport)

	f.base = base
	return f
}

// Fetch executes one HTTP request with a collector clone.
func (f *CollyFetcher) Fetch(ctx context.Context, req FetchRequest) (*FetchResult, error) {
	f.mu.Lock()
	defer f.mu.Unlock()

	f.proxyURL = req.ProxyURL
	collector := f.base.Clone()
	collector.SetRequestTimeout(req.Timeout)
	if req.UserAgent != "" {
		collector.UserAgent = req.UserAgent
	}

	var (
		result   *FetchResult
		fetchErr error
	)
	collector.OnRequest(func(r *colly.Request) {
		copyHeaders(req.Header, r)
	})
	collector.OnResponse(func(r *colly.Response) {
		result = &FetchResult{
			StatusCode: r.StatusCode,
			Header:     r.Headers.Clone(),
			Body:       append([]byte(nil), r.Body...),
			FinalURL:   r.Request.URL.String(),
		}
	})
	collector.OnError(func(_ *colly.Response, err error) {
		fetchErr = err
	})

	if err := f.run(ctx, collector, req); err != nil {
		return nil, err
	}
	if fetchErr != nil {
		return nil, fmt.Errorf("colly response failed: %w", fetchErr)
	}
	if result == nil {
		return nil, errors.New("colly returned no response")
	}
	return result, nil
}

// run drives the collector on its own goroutine so a cancelled context
// unblocks the caller; the in-flight request itself is bounded by the
// collector timeout.
func (f *CollyFetcher) run(ctx context.Context, collector *colly.Collector, req FetchRequest) error {
	var body io.Reader
	if len(req.Body) > 0 {
		body = bytes.NewReader(req.Body)
	}
	done := make(chan error, 1)
	go func() {
		done <- collector.Request(req.Method, req.URL, body, nil, nil)
	}()

	select {
	case <-ctx.Done():
		return fmt.Errorf("colly fetch canceled: %w", ctx.Err())
	case err := <-done:
		if err != nil {
			return fmt.Errorf("colly request failed: %w", err)
		}
		return nil
	}
}

// proxy is the transport's proxy function; it serves whatever URL the
// current fetch selected, or direct when there is none.
func (f *CollyFetcher) proxy(_ *http.Request) (*url.URL, error) {
	if f.proxyURL == "" {
		return nil, nil
	}
	u, err := url.Parse(f.proxyURL)
	if err != nil {
		return nil, fmt.Errorf("parse proxy url %q: %w", f.proxyURL, err)
	}
	return u, nil
}

func copyHeaders(header http.Header, r *colly.Request) {
	if header == nil {
		return
	}
	for key, values := range header {
		for _, v := range values {
			r.Headers.Add(key, v)
		}
	}
}
