package server

import (
	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/promauto"
)

var (
	// HTTP request metrics
	httpRequestsTotal = promauto.NewCounterVec(
		prometheus.CounterOpts{
			Name: "printlabel_http_requests_total",
			Help: "Total number of HTTP requests",
		},
		[]string{"method", "endpoint", "status"},
	)

	httpRequestDuration = promauto.NewHistogramVec(
		prometheus.HistogramOpts{
			Name:    "printlabel_http_request_duration_seconds",
			Help:    "HTTP request duration in seconds",
			Buckets: prometheus.DefBuckets,
		},
		[]string{"method", "endpoint"},
	)

	// Label rendering metrics
	labelsRenderedTotal = promauto.NewCounterVec(
		prometheus.CounterOpts{
			Name: "printlabel_labels_rendered_total",
			Help: "Total number of label renders",
		},
		[]string{"kind", "status"}, // kind: file, preview, websocket
	)

	renderDuration = promauto.NewHistogramVec(
		prometheus.HistogramOpts{
			Name:    "printlabel_render_duration_seconds",
			Help:    "Label render duration in seconds",
			Buckets: []float64{.005, .01, .025, .05, .1, .25, .5, 1, 2.5},
		},
		[]string{"kind"},
	)

	labelHeight = promauto.NewHistogramVec(
		prometheus.HistogramOpts{
			Name:    "printlabel_label_height_pixels",
			Help:    "Height of rendered labels after cropping",
			Buckets: []float64{100, 150, 200, 250, 300, 350, 400, 450},
		},
		[]string{"profile"},
	)

	composerWait = promauto.NewHistogram(
		prometheus.HistogramOpts{
			Name:    "printlabel_composer_wait_seconds",
			Help:    "Time spent waiting for a free composer",
			Buckets: []float64{.0005, .001, .005, .01, .05, .1, .5, 1},
		},
	)

	// Rate limiting metrics
	rateLimitHits = promauto.NewCounterVec(
		prometheus.CounterOpts{
			Name: "printlabel_rate_limit_hits_total",
			Help: "Total number of rate limit hits",
		},
		[]string{"type"}, // type: minute, hour, requests
	)

	// WebSocket metrics
	websocketConnections = promauto.NewGauge(
		prometheus.GaugeOpts{
			Name: "printlabel_websocket_active_connections",
			Help: "Number of active WebSocket connections",
		},
	)

	websocketMessagesTotal = promauto.NewCounterVec(
		prometheus.CounterOpts{
			Name: "printlabel_websocket_messages_total",
			Help: "Total number of WebSocket messages",
		},
		[]string{"direction"}, // direction: sent, received
	)
)
