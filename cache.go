package spindle

import (
	"net/http"
	"sync"
	"time"
)

// CacheEntry is the stored transport payload for one fingerprint. Entries
// record what came over the wire, not the request that triggered it, so a
// hit can be rebound to whichever request is being resolved.
type CacheEntry struct {
	Fingerprint string      `json:"fingerprint"`
	StatusCode  int         `json:"status_code"`
	Header      http.Header `json:"header"`
	Body        []byte      `json:"body"`
	URL         string      `json:"url"`
	StoredAt    time.Time   `json:"stored_at"`
}

// Cache stores fetched responses by fingerprint. Get returns a nil entry on
// a miss. The engine consults a Cache only while caching is enabled, and a
// failing backend costs single operations, never the crawl.
type Cache interface {
	Get(fingerprint string) (*CacheEntry, error)
	Put(entry *CacheEntry) error
}

// MemoryCache is the default backend: an unbounded in-process store. The
// engine builds a fresh one per crawl unless Settings.Cache installs a
// caller-owned instance.
type MemoryCache struct {
	mu      sync.RWMutex
	entries map[string]*CacheEntry
}

// NewMemoryCache returns an empty in-memory cache.
func NewMemoryCache() *MemoryCache {
	return &MemoryCache{entries: make(map[string]*CacheEntry)}
}

// Get returns the entry stored for fingerprint, nil when there is none.
func (c *MemoryCache) Get(fingerprint string) (*CacheEntry, error) {
	c.mu.RLock()
	defer c.mu.RUnlock()
	return c.entries[fingerprint], nil
}

// Put stores entry under its fingerprint, replacing any previous one.
func (c *MemoryCache) Put(entry *CacheEntry) error {
	c.mu.Lock()
	defer c.mu.Unlock()
	c.entries[entry.Fingerprint] = entry
	return nil
}

// Len reports the number of stored entries.
func (c *MemoryCache) Len() int {
	c.mu.RLock()
	defer c.mu.RUnlock()
	return len(c.entries)
}

// responseFromEntry rebinds a cached payload to the request being resolved,
// keeping its Meta and Callback live for the callback invocation.
func responseFromEntry(req *Request, entry *CacheEntry) *Response {
	return &Response{
		Request:    req,
		StatusCode: entry.StatusCode,
		Header:     entry.Header.Clone(),
		Body:       entry.Body,
		URL:        entry.URL,
		FetchedAt:  entry.StoredAt,
	}
}

func entryFromResponse(fingerprint string, resp *Response) *CacheEntry {
	return &CacheEntry{
		Fingerprint: fingerprint,
		StatusCode:  resp.StatusCode,
		Header:      resp.Header.Clone(),
		Body:        resp.Body,
		URL:         resp.URL,
		StoredAt:    resp.FetchedAt,
	}
}
