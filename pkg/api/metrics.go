package api

import (
	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/promauto"
)

var (
	httpRequestsTotal = promauto.NewCounterVec(prometheus.CounterOpts{
		Name: "wirv_http_requests_total",
		Help: "HTTP requests served, by route and status code",
	}, []string{"route", "code"})

	httpRequestDuration = promauto.NewHistogramVec(prometheus.HistogramOpts{
		Name:    "wirv_http_request_duration_seconds",
		Help:    "Duration of HTTP requests by route",
		Buckets: []float64{0.001, 0.005, 0.01, 0.05, 0.1, 0.5, 1, 5},
	}, []string{"route"})

	logsIngestedTotal = promauto.NewCounterVec(prometheus.CounterOpts{
		Name: "wirv_logs_ingested_total",
		Help: "Request logs stored, split by whether they were suspicious",
	}, []string{"suspicious"})

	rangeLogsReturned = promauto.NewHistogram(prometheus.HistogramOpts{
		Name:    "wirv_range_logs_returned",
		Help:    "Number of logs returned per range query",
		Buckets: prometheus.ExponentialBuckets(1, 4, 10),
	})
)
