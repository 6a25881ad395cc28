package spindle

import (
	"bytes"
	"fmt"
	"net/http"
	"net/url"
	"time"

	"github.com/PuerkitoBio/goquery"
)

// Response is the outcome of resolving one Request. It is immutable once
// built and owned by the single callback invocation handling it.
type Response struct {
	// Request is the originating request, Meta intact.
	Request *Request
	// StatusCode is the HTTP status. Non-2xx responses still reach the
	// callback; what to do with them is spider business.
	StatusCode int
	// Header holds the response headers.
	Header http.Header
	// Body is the raw response payload.
	Body []byte
	// URL is the final URL after any redirects.
	URL string
	// FetchedAt records when the transport returned, or when the cache
	// entry serving this response was stored.
	FetchedAt time.Time

	doc    *goquery.Document
	docErr error
}

// Text returns the body as a string.
func (r *Response) Text() string { return string(r.Body) }

// Selector parses the body as HTML on first use and returns the cached
// document on every call after that.
func (r *Response) Selector() (*goquery.Document, error) {
	if r.doc == nil && r.docErr == nil {
		doc, err := goquery.NewDocumentFromReader(bytes.NewReader(r.Body))
		if err != nil {
			r.docErr = fmt.Errorf("parse response body: %w", err)
			return nil, r.docErr
		}
		r.doc = doc
	}
	return r.doc, r.docErr
}

// Find runs a CSS selector against the parsed body. A body that cannot be
// parsed yields an empty selection.
func (r *Response) Find(selector string) *goquery.Selection {
	doc, err := r.Selector()
	if err != nil {
		return &goquery.Selection{}
	}
	return doc.Find(selector)
}

// JoinURL resolves ref against the response URL using the usual
// relative-reference rules. Absolute refs pass through unchanged.
func (r *Response) JoinURL(ref string) (string, error) {
	base, err := url.Parse(r.URL)
	if err != nil {
		return "", fmt.Errorf("parse base url %q: %w", r.URL, err)
	}
	target, err := url.Parse(ref)
	if err != nil {
		return "", fmt.Errorf("parse reference %q: %w", ref, err)
	}
	return base.ResolveReference(target).String(), nil
}
