package observability

import (
	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/promauto"
)

var (
	PhotosIngested = promauto.NewCounterVec(prometheus.CounterOpts{
		Namespace: "fm",
		Name:      "photos_ingested_total",
		Help:      "Total number of photos that completed ingestion, by final state",
	}, []string{"state"})

	SelfiesIngested = promauto.NewCounterVec(prometheus.CounterOpts{
		Namespace: "fm",
		Name:      "selfies_ingested_total",
		Help:      "Total number of selfie submissions processed, by final state",
	}, []string{"state"})

	FacesExtracted = promauto.NewCounter(prometheus.CounterOpts{
		Namespace: "fm",
		Name:      "faces_extracted_total",
		Help:      "Total number of face descriptors extracted",
	})

	MatchesRecorded = promauto.NewCounter(prometheus.CounterOpts{
		Namespace: "fm",
		Name:      "matches_recorded_total",
		Help:      "Total number of attributions written to the ledger",
	})

	StageDuration = promauto.NewHistogramVec(prometheus.HistogramOpts{
		Namespace: "fm",
		Name:      "stage_duration_seconds",
		Help:      "Duration of ingestion stages",
		Buckets:   prometheus.ExponentialBuckets(0.005, 2, 12),
	}, []string{"stage"})

	QueueDepth = promauto.NewGauge(prometheus.GaugeOpts{
		Namespace: "fm",
		Name:      "queue_depth",
		Help:      "Number of pending ingestion tasks in queue",
	})

	HTTPRequestDuration = promauto.NewHistogramVec(prometheus.HistogramOpts{
		Namespace: "fm",
		Name:      "http_request_duration_seconds",
		Help:      "HTTP request duration",
		Buckets:   prometheus.DefBuckets,
	}, []string{"method", "route", "status"})

	WSConnections = promauto.NewGauge(prometheus.GaugeOpts{
		Namespace: "fm",
		Name:      "ws_connections",
		Help:      "Number of active WebSocket connections",
	})
)
