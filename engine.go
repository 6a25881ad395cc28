package spindle

import (
	"context"
	"fmt"

	"github.com/google/uuid"
	"go.uber.org/zap"
)

// Engine binds one immutable Settings value to the machinery that runs
// crawls. Engines are cheap: build one per configuration and start as many
// crawls from it as needed.
type Engine struct {
	settings *Settings
	fetcher  Fetcher
	clock    Clock
	wait     waiter
	log      *zap.Logger
}

// NewEngine resolves settings (nil means defaults) and the transport.
func NewEngine(settings *Settings) (*Engine, error) {
	s := settings.withDefaults()
	if s.Delay < 0 {
		return nil, fmt.Errorf("download delay must not be negative: %v", s.Delay)
	}
	log := s.Logger
	if log == nil {
		log = zap.NewNop()
	}
	fetcher := s.Fetcher
	if fetcher == nil {
		fetcher = NewCollyFetcher(s.UserAgent)
	}
	return &Engine{
		settings: s,
		fetcher:  fetcher,
		clock:    systemClock{},
		wait:     timerWaiter{},
		log:      log.Named("spindle"),
	}, nil
}

// Crawl starts one crawl of spider and returns its lazy item sequence.
// Every call builds a fresh queue, seen-set and, unless Settings.Cache
// installed a backend, a fresh cache; a Crawl is not restartable.
func (e *Engine) Crawl(ctx context.Context, spider Spider) *Crawl {
	log := e.log.With(zap.String("crawl_id", uuid.NewString()))
	var cache Cache
	if e.settings.CacheEnabled {
		cache = e.settings.Cache
		if cache == nil {
			cache = NewMemoryCache()
		}
	}
	c := &Crawl{
		ctx:    ctx,
		spider: spider,
		sched:  newScheduler(e.settings.Fingerprint, log),
		cache:  cache,
		dl:     newDownloader(e.fetcher, e.settings, e.clock, e.wait, log),
		log:    log,
	}
	for _, req := range spider.StartRequests() {
		c.sched.enqueue(req)
	}
	log.Info("crawl started", zap.Int("seed_requests", c.sched.pending()))
	return c
}

// Run builds an engine for settings and starts a crawl of spider. It is
// the one-shot convenience over NewEngine plus Engine.Crawl.
func Run(ctx context.Context, spider Spider, settings *Settings) (*Crawl, error) {
	engine, err := NewEngine(settings)
	if err != nil {
		return nil, err
	}
	return engine.Crawl(ctx, spider), nil
}

// Crawl is the pull-based item sequence of one engine run. Use it like
// bufio.Scanner: Next advances to the next Item, Item returns it, and Err
// explains a false Next (nil on clean end-of-stream).
//
// Advancing performs at most one fetch-and-callback cycle. Values a
// callback yielded beyond the returned one stay buffered and are drained
// by later Next calls before anything else is fetched; nothing ever runs
// ahead of the consumer, so abandoning the Crawl is a complete
// cancellation by itself.
type Crawl struct {
	ctx     context.Context
	spider  Spider
	sched   *scheduler
	cache   Cache
	dl      *downloader
	log     *zap.Logger
	pending []Yield
	lastURL string
	item    Item
	err     error
	done    bool
}

// Next advances the crawl until the next Item is available. It returns
// false when the crawl has terminated, cleanly or not; consult Err.
func (c *Crawl) Next() bool {
	if c.done {
		return false
	}
	for {
		if err := c.ctx.Err(); err != nil {
			c.fail(fmt.Errorf("crawl canceled: %w", err))
			return false
		}

		// Drain what the current callback already yielded.
		for len(c.pending) > 0 {
			y := c.pending[0]
			c.pending = c.pending[1:]
			switch {
			case y.item != nil:
				c.item = y.item
				itemsEmitted.Inc()
				return true
			case y.req != nil:
				c.sched.enqueue(y.req)
			default:
				c.fail(&CallbackError{URL: c.lastURL, Err: ErrInvalidYield})
				return false
			}
		}

		req, ok := c.sched.pop()
		if !ok {
			c.finish()
			return false
		}

		resp, err := c.resolve(req)
		if err != nil {
			if IsTransient(err) {
				c.log.Warn("request skipped",
					zap.String("url", req.URL),
					zap.Error(err),
				)
				continue
			}
			c.fail(err)
			return false
		}

		cb := req.Callback
		if cb == nil {
			cb = c.spider.Parse
		}
		yields, err := cb(resp)
		if err != nil {
			c.fail(&CallbackError{URL: resp.URL, Err: err})
			return false
		}
		c.lastURL = resp.URL
		c.pending = yields
	}
}

// resolve produces the Response for req, consulting the cache before the
// downloader. Cache trouble is logged and treated as a miss; the fresh
// fetch then repopulates the entry.
func (c *Crawl) resolve(req *Request) (*Response, error) {
	var fp string
	if c.cache != nil {
		fp = c.sched.fingerprint(req)
		entry, err := c.cache.Get(fp)
		switch {
		case err != nil:
			c.log.Warn("cache get failed",
				zap.String("url", req.URL),
				zap.Error(err),
			)
		case entry != nil:
			cacheHits.Inc()
			c.log.Debug("cache hit", zap.String("url", req.URL))
			return responseFromEntry(req, entry), nil
		}
	}
	resp, err := c.dl.fetch(c.ctx, req)
	if err != nil {
		return nil, err
	}
	if c.cache != nil {
		if err := c.cache.Put(entryFromResponse(fp, resp)); err != nil {
			c.log.Warn("cache put failed",
				zap.String("url", req.URL),
				zap.Error(err),
			)
		}
	}
	return resp, nil
}

func (c *Crawl) finish() {
	c.done = true
	c.item = nil
	c.log.Info("crawl finished")
}

func (c *Crawl) fail(err error) {
	c.done = true
	c.item = nil
	c.err = err
	c.log.Error("crawl aborted", zap.Error(err))
}

// Item returns the item produced by the last successful Next.
func (c *Crawl) Item() Item { return c.item }

// Err returns the error that terminated the crawl, nil after a clean
// end-of-stream.
func (c *Crawl) Err() error { return c.err }

// Collect drains the remaining items into a slice. The returned error
// matches Err.
func (c *Crawl) Collect() ([]Item, error) {
	var items []Item
	for c.Next() {
		items = append(items, c.item)
	}
	return items, c.err
}
