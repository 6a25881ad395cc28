package spindle

import "go.uber.org/zap"

// scheduler is the pending-request queue of one crawl: FIFO ordering with
// fingerprint dedup. FIFO walks the request graph breadth-first; the
// seen-set guarantees every fingerprint is scheduled at most once per
// crawl, whatever discovery path produced it.
type scheduler struct {
	fingerprint FingerprintFunc
	queue       []*Request
	seen        map[string]struct{}
	log         *zap.Logger
}

func newScheduler(fingerprint FingerprintFunc, log *zap.Logger) *scheduler {
	return &scheduler{
		fingerprint: fingerprint,
		seen:        make(map[string]struct{}),
		log:         log,
	}
}

// enqueue appends req unless its fingerprint was scheduled before in this
// crawl. Duplicates are dropped silently; that is the contract, not a
// failure.
func (s *scheduler) enqueue(req *Request) {
	fp := s.fingerprint(req)
	if _, dup := s.seen[fp]; dup {
		requestsDeduped.Inc()
		s.log.Debug("duplicate request dropped",
			zap.String("url", req.URL),
			zap.String("fingerprint", fp),
		)
		return
	}
	s.seen[fp] = struct{}{}
	s.queue = append(s.queue, req)
}

// pop removes and returns the oldest pending request. ok is false when the
// queue is empty, which ends the crawl.
func (s *scheduler) pop() (*Request, bool) {
	if len(s.queue) == 0 {
		return nil, false
	}
	req := s.queue[0]
	s.queue = s.queue[1:]
	return req, true
}

func (s *scheduler) pending() int { return len(s.queue) }
