package spindle

import (
	"context"
	"fmt"
	"net/http"
	"net/url"
	"time"

	"go.uber.org/zap"
)

// FetchRequest is the transport-level view of one Request handed to a
// Fetcher, with the crawl policy already applied.
type FetchRequest struct {
	URL       string
	Method    string
	Header    http.Header
	Body      []byte
	ProxyURL  string
	Timeout   time.Duration
	UserAgent string
}

// FetchResult is the raw transport outcome. Non-2xx statuses are results,
// not errors: an error means the transport itself failed.
type FetchResult struct {
	StatusCode int
	Header     http.Header
	Body       []byte
	FinalURL   string
}

// Fetcher performs one HTTP request. It is the engine's transport seam:
// CollyFetcher is the default, headless.Fetcher renders scripted pages, and
// tests substitute stubs.
type Fetcher interface {
	Fetch(ctx context.Context, req FetchRequest) (*FetchResult, error)
}

// Clock supplies the current time, injectable so delay math is testable.
type Clock interface {
	Now() time.Time
}

type systemClock struct{}

func (systemClock) Now() time.Time { return time.Now() }

// waiter blocks for a duration, honoring context cancellation.
type waiter interface {
	Wait(ctx context.Context, d time.Duration) error
}

type timerWaiter struct{}

func (timerWaiter) Wait(ctx context.Context, d time.Duration) error {
	if d <= 0 {
		return nil
	}
	timer := time.NewTimer(d)
	defer timer.Stop()
	select {
	case <-ctx.Done():
		return ctx.Err()
	case <-timer.C:
		return nil
	}
}

// downloader resolves requests through the Fetcher with the per-scheme
// proxy choice and the inter-request delay applied. One downloader serves
// one crawl: the delay is measured from the moment the previous fetch
// returned.
type downloader struct {
	fetcher   Fetcher
	settings  *Settings
	clock     Clock
	wait      waiter
	log       *zap.Logger
	lastFetch time.Time
}

func newDownloader(fetcher Fetcher, settings *Settings, clock Clock, wait waiter, log *zap.Logger) *downloader {
	return &downloader{
		fetcher:  fetcher,
		settings: settings,
		clock:    clock,
		wait:     wait,
		log:      log,
	}
}

// fetch resolves req to a Response. Transport failures come back wrapped as
// transient, so the engine drops the request and keeps crawling; a
// cancelled context comes back as the context's own error and aborts.
func (d *downloader) fetch(ctx context.Context, req *Request) (*Response, error) {
	if err := d.pause(ctx); err != nil {
		return nil, err
	}
	proxy := ""
	if u, err := url.Parse(req.URL); err == nil {
		proxy = d.settings.ProxyFor(u.Scheme)
	}
	start := d.clock.Now()
	result, err := d.fetcher.Fetch(ctx, FetchRequest{
		URL:       req.URL,
		Method:    req.method(),
		Header:    req.Header,
		Body:      req.Body,
		ProxyURL:  proxy,
		Timeout:   d.settings.Timeout,
		UserAgent: d.settings.UserAgent,
	})
	d.lastFetch = d.clock.Now()
	if err != nil {
		if ctx.Err() != nil {
			return nil, ctx.Err()
		}
		fetchErrors.Inc()
		return nil, markTransient(fmt.Errorf("fetch %s: %w", req.URL, err))
	}
	fetches.Inc()
	d.log.Debug("fetched",
		zap.String("url", req.URL),
		zap.Int("status", result.StatusCode),
		zap.Duration("elapsed", d.lastFetch.Sub(start)),
	)
	finalURL := result.FinalURL
	if finalURL == "" {
		finalURL = req.URL
	}
	return &Response{
		Request:    req,
		StatusCode: result.StatusCode,
		Header:     result.Header,
		Body:       result.Body,
		URL:        finalURL,
		FetchedAt:  d.lastFetch,
	}, nil
}

// pause enforces the configured minimum gap since the previous fetch
// returned. The first fetch of a crawl is never delayed.
func (d *downloader) pause(ctx context.Context) error {
	if d.settings.Delay <= 0 || d.lastFetch.IsZero() {
		return nil
	}
	remaining := d.settings.Delay - d.clock.Now().Sub(d.lastFetch)
	if remaining <= 0 {
		return nil
	}
	d.log.Debug("download delay", zap.Duration("wait", remaining))
	return d.wait.Wait(ctx, remaining)
}
