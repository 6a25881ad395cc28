package spindle

import (
	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/promauto"
)

var (
	fetches = promauto.NewCounter(prometheus.CounterOpts{
		Name: "spindle_fetches_total",
		Help: "Requests resolved over the network.",
	})
	fetchErrors = promauto.NewCounter(prometheus.CounterOpts{
		Name: "spindle_fetch_errors_total",
		Help: "Transport failures while fetching.",
	})
	cacheHits = promauto.NewCounter(prometheus.CounterOpts{
		Name: "spindle_cache_hits_total",
		Help: "Requests served from the response cache.",
	})
	itemsEmitted = promauto.NewCounter(prometheus.CounterOpts{
		Name: "spindle_items_total",
		Help: "Items emitted to consumers.",
	})
	requestsDeduped = promauto.NewCounter(prometheus.CounterOpts{
		Name: "spindle_requests_deduped_total",
		Help: "Requests dropped by the scheduler as duplicates.",
	})
)
