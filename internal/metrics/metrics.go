// Package metrics holds the Prometheus collectors shared by the server and
// the sweeper.
package metrics

import (
	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/promauto"
)

var (
	HTTPRequests = promauto.NewCounterVec(prometheus.CounterOpts{
		Namespace: "giftlist",
		Name:      "http_requests_total",
		Help:      "HTTP requests by route pattern, method and status code.",
	}, []string{"route", "method", "status"})

	HTTPDuration = promauto.NewHistogramVec(prometheus.HistogramOpts{
		Namespace: "giftlist",
		Name:      "http_request_duration_seconds",
		Help:      "HTTP request latency by route pattern and method.",
		Buckets:   prometheus.DefBuckets,
	}, []string{"route", "method"})

	SweepRuns = promauto.NewCounterVec(prometheus.CounterOpts{
		Namespace: "giftlist",
		Name:      "sweep_runs_total",
		Help:      "Orphan sweeps by outcome.",
	}, []string{"outcome"})

	SweepDeleted = promauto.NewCounterVec(prometheus.CounterOpts{
		Namespace: "giftlist",
		Name:      "sweep_deleted_total",
		Help:      "Orphaned documents removed by the sweeper.",
	}, []string{"kind"})

	GroupStreams = promauto.NewGauge(prometheus.GaugeOpts{
		Namespace: "giftlist",
		Name:      "group_streams_open",
		Help:      "Open group list event streams.",
	})
)
