package spindle

import (
	"net/http"
	"strings"
)

// CallbackFunc handles one Response, returning the yields to act on. A nil
// CallbackFunc on a Request means the spider's Parse method.
type CallbackFunc func(*Response) ([]Yield, error)

// Request describes one crawl target. Its identity for scheduling and
// caching is the active fingerprint function's output, never structural
// equality.
type Request struct {
	// URL is the absolute target URL.
	URL string
	// Method is the HTTP method; empty means GET.
	Method string
	// Header holds extra request headers.
	Header http.Header
	// Body is the optional request payload.
	Body []byte
	// Meta is carried untouched to the resulting Response for callback use.
	Meta map[string]any
	// Callback handles the resulting Response; nil means the spider's
	// Parse.
	Callback CallbackFunc
}

// RequestOption adjusts a Request under construction.
type RequestOption func(*Request)

// WithMethod sets the HTTP method.
func WithMethod(method string) RequestOption {
	return func(r *Request) { r.Method = strings.ToUpper(method) }
}

// WithHeader adds one request header.
func WithHeader(key, value string) RequestOption {
	return func(r *Request) { r.Header.Add(key, value) }
}

// WithBody sets the request payload.
func WithBody(body []byte) RequestOption {
	return func(r *Request) { r.Body = body }
}

// WithMeta stores one meta entry, creating the map as needed.
func WithMeta(key string, value any) RequestOption {
	return func(r *Request) {
		if r.Meta == nil {
			r.Meta = make(map[string]any)
		}
		r.Meta[key] = value
	}
}

// WithCallback binds the function that will handle the Response.
func WithCallback(cb CallbackFunc) RequestOption {
	return func(r *Request) { r.Callback = cb }
}

// NewRequest builds a GET request for url and applies opts.
func NewRequest(url string, opts ...RequestOption) *Request {
	r := &Request{
		URL:    url,
		Method: http.MethodGet,
		Header: make(http.Header),
	}
	for _, opt := range opts {
		opt(r)
	}
	return r
}

func (r *Request) method() string {
	if r.Method == "" {
		return http.MethodGet
	}
	return strings.ToUpper(r.Method)
}
