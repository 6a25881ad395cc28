// Package headless fetches pages with a real browser, for sites that only
// render their content through scripts. Fetcher satisfies spindle.Fetcher,
// so it drops into Settings.Fetcher unchanged.
package headless

import (
	"context"
	"fmt"
	"net/http"
	"sync"
	"time"

	"github.com/chromedp/cdproto/emulation"
	"github.com/chromedp/cdproto/network"
	"github.com/chromedp/chromedp"
	"go.uber.org/zap"

	"github.com/spindleworks/spindle"
)

const defaultNavTimeout = 45 * time.Second

// Config controls the browser pool.
type Config struct {
	// MaxParallel bounds concurrent tabs. The engine itself fetches
	// sequentially; the bound matters when one Fetcher serves several
	// engines. Zero means unbounded.
	MaxParallel int
	// NavTimeout bounds one navigation when the fetch request carries no
	// timeout of its own.
	NavTimeout time.Duration
	// ProxyURL routes all browser traffic. Browser proxying is
	// process-wide: per-request proxy URLs from crawl settings are not
	// honored here.
	ProxyURL string
}

// Fetcher runs fetches in headless Chrome via chromedp.
type Fetcher struct {
	cfg         Config
	limiter     chan struct{}
	allocator   context.Context
	allocCancel context.CancelFunc
	log         *zap.Logger
}

// New starts a browser allocator that lives until Close. ctx bounds the
// allocator's lifetime as well.
func New(ctx context.Context, cfg Config, log *zap.Logger) (*Fetcher, error) {
	if cfg.MaxParallel < 0 {
		return nil, fmt.Errorf("max parallel must be >= 0")
	}
	if cfg.NavTimeout <= 0 {
		cfg.NavTimeout = defaultNavTimeout
	}
	if log == nil {
		log = zap.NewNop()
	}
	var limiter chan struct{}
	if cfg.MaxParallel > 0 {
		limiter = make(chan struct{}, cfg.MaxParallel)
	}

	opts := append(chromedp.DefaultExecAllocatorOptions[:],
		chromedp.Flag("headless", "new"),
		chromedp.Flag("disable-gpu", true),
		chromedp.Flag("hide-scrollbars", true),
		chromedp.Flag("enable-automation", false),
	)
	if cfg.ProxyURL != "" {
		opts = append(opts, chromedp.ProxyServer(cfg.ProxyURL))
	}
	allocCtx, allocCancel := chromedp.NewExecAllocator(ctx, opts...)

	return &Fetcher{
		cfg:         cfg,
		limiter:     limiter,
		allocator:   allocCtx,
		allocCancel: allocCancel,
		log:         log.Named("headless"),
	}, nil
}

// Close shuts the browser allocator down.
func (f *Fetcher) Close() {
	f.allocCancel()
}

// Fetch navigates a fresh tab to the request URL and returns the rendered
// DOM. Browsers navigate; anything but GET is refused.
func (f *Fetcher) Fetch(ctx context.Context, req spindle.FetchRequest) (*spindle.FetchResult, error) {
	if req.Method != "" && req.Method != http.MethodGet {
		return nil, fmt.Errorf("headless fetcher supports GET only, got %s", req.Method)
	}
	if req.ProxyURL != "" && req.ProxyURL != f.cfg.ProxyURL {
		f.log.Debug("per-request proxy ignored by browser fetcher",
			zap.String("url", req.URL),
			zap.String("proxy", req.ProxyURL),
		)
	}
	if err := f.acquire(ctx); err != nil {
		return nil, err
	}
	defer f.release()

	tabCtx, tabCancel := chromedp.NewContext(f.allocator)
	defer tabCancel()

	timeout := req.Timeout
	if timeout <= 0 {
		timeout = f.cfg.NavTimeout
	}
	tabCtx, cancel := context.WithTimeout(tabCtx, timeout)
	defer cancel()

	// A canceled crawl context must tear the tab down too.
	stop := context.AfterFunc(ctx, tabCancel)
	defer stop()

	meta := newPageMeta()
	chromedp.ListenTarget(tabCtx, meta.onEvent)

	html, finalURL, err := f.render(tabCtx, req)
	if err != nil {
		return nil, err
	}

	status, header, responseURL := meta.resolved(req.URL, finalURL)
	return &spindle.FetchResult{
		StatusCode: status,
		Header:     header,
		Body:       []byte(html),
		FinalURL:   responseURL,
	}, nil
}

func (f *Fetcher) render(ctx context.Context, req spindle.FetchRequest) (string, string, error) {
	var (
		html     string
		finalURL string
	)
	actions := []chromedp.Action{
		f.setup(req),
		chromedp.Navigate(req.URL),
		chromedp.WaitReady("body", chromedp.ByQuery),
		chromedp.Sleep(500 * time.Millisecond),
		chromedp.Location(&finalURL),
		chromedp.OuterHTML("html", &html, chromedp.ByQuery),
	}
	if err := chromedp.Run(ctx, actions...); err != nil {
		return "", "", fmt.Errorf("chromedp run: %w", err)
	}
	return html, finalURL, nil
}

func (f *Fetcher) setup(req spindle.FetchRequest) chromedp.Action {
	return chromedp.ActionFunc(func(ctx context.Context) error {
		if err := network.Enable().Do(ctx); err != nil {
			return fmt.Errorf("enable network domain: %w", err)
		}
		if req.UserAgent != "" {
			if err := emulation.SetUserAgentOverride(req.UserAgent).Do(ctx); err != nil {
				return fmt.Errorf("set user-agent: %w", err)
			}
		}
		if len(req.Header) > 0 {
			if err := network.SetExtraHTTPHeaders(toNetworkHeaders(req.Header)).Do(ctx); err != nil {
				return fmt.Errorf("set extra headers: %w", err)
			}
		}
		return nil
	})
}

func (f *Fetcher) acquire(ctx context.Context) error {
	if f.limiter == nil {
		return nil
	}
	select {
	case f.limiter <- struct{}{}:
		return nil
	case <-ctx.Done():
		return fmt.Errorf("headless slot wait canceled: %w", ctx.Err())
	}
}

func (f *Fetcher) release() {
	if f.limiter == nil {
		return
	}
	select {
	case <-f.limiter:
	default:
	}
}

// pageMeta collects the main document's response metadata off the browser
// event stream, which runs concurrently with the navigation actions.
type pageMeta struct {
	mu     sync.RWMutex
	status int
	header http.Header
	url    string
}

func newPageMeta() *pageMeta {
	return &pageMeta{header: http.Header{}}
}

func (m *pageMeta) onEvent(ev any) {
	resp, ok := ev.(*network.EventResponseReceived)
	if !ok || resp.Type != network.ResourceTypeDocument || resp.Response == nil {
		return
	}
	header := http.Header{}
	for key, value := range resp.Response.Headers {
		switch v := value.(type) {
		case string:
			header.Add(key, v)
		case []string:
			for _, entry := range v {
				header.Add(key, entry)
			}
		case []any:
			for _, entry := range v {
				header.Add(key, fmt.Sprint(entry))
			}
		default:
			header.Add(key, fmt.Sprint(v))
		}
	}
	m.mu.Lock()
	m.status = int(resp.Response.Status)
	m.header = header
	m.url = resp.Response.URL
	m.mu.Unlock()
}

// resolved returns the captured metadata with fallbacks applied: a page
// served entirely from the browser cache produces no network event, so the
// status defaults to 200 and the URL to what the navigation reported.
func (m *pageMeta) resolved(requestURL, finalURL string) (int, http.Header, string) {
	m.mu.RLock()
	defer m.mu.RUnlock()

	url := m.url
	switch {
	case url != "":
	case finalURL != "":
		url = finalURL
	default:
		url = requestURL
	}
	status := m.status
	if status == 0 {
		status = http.StatusOK
	}
	return status, m.header.Clone(), url
}

func toNetworkHeaders(h http.Header) network.Headers {
	headers := network.Headers{}
	for key, values := range h {
		if len(values) == 0 {
			continue
		}
		if len(values) == 1 {
			headers[key] = values[0]
		} else {
			headers[key] = append([]string(nil), values...)
		}
	}
	return headers
}
