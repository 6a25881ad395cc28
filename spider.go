package spindle

// Spider supplies the seed requests and the default extraction callback for
// a crawl.
type Spider interface {
	// StartRequests returns the seed requests in the order they should be
	// scheduled.
	StartRequests() []*Request
	// Parse handles every response whose request carries no callback of its
	// own.
	Parse(*Response) ([]Yield, error)
}

// StartURLs builds GET seed requests for urls, each handled by the spider's
// Parse. It is the usual body of a StartRequests implementation.
func StartURLs(urls ...string) []*Request {
	reqs := make([]*Request, 0, len(urls))
	for _, u := range urls {
		reqs = append(reqs, NewRequest(u))
	}
	return reqs
}
