package server

import (
	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/promauto"
)

var (
	// requestTotal counts HTTP requests by method, route pattern and status.
	requestTotal = promauto.NewCounterVec(
		prometheus.CounterOpts{
			Name: "scout_http_requests_total",
			Help: "Total number of HTTP requests",
		},
		[]string{"method", "route", "status"},
	)
	// requestDuration is the latency of HTTP requests.
	requestDuration = promauto.NewHistogramVec(
		prometheus.HistogramOpts{
			Name:    "scout_http_request_duration_seconds",
			Help:    "HTTP request latency in seconds",
			Buckets: prometheus.DefBuckets,
		},
		[]string{"method", "route"},
	)
	// searchTotal counts searches by mode (dsl or plain) and outcome.
	searchTotal = promauto.NewCounterVec(
		prometheus.CounterOpts{
			Name: "scout_searches_total",
			Help: "Total number of searches",
		},
		[]string{"mode", "outcome"},
	)
	// searchHits observes how many rows a search matched.
	searchHits = promauto.NewHistogram(
		prometheus.HistogramOpts{
			Name:    "scout_search_total_hits",
			Help:    "Rows matched per search",
			Buckets: prometheus.ExponentialBuckets(1, 10, 7),
		},
	)
	// switchTotal counts database switches by outcome.
	switchTotal = promauto.NewCounterVec(
		prometheus.CounterOpts{
			Name: "scout_database_switches_total",
			Help: "Total number of database switches",
		},
		[]string{"outcome"},
	)
)

func outcome(err error) string {
	if err != nil {
		return "error"
	}
	return "ok"
}
