package metrics

import (
	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/promauto"
)

var (
	// API metrics
	HTTPRequestsTotal = promauto.NewCounterVec(
		prometheus.CounterOpts{
			Name: "videovault_http_requests_total",
			Help: "Total number of HTTP requests",
		},
		[]string{"method", "endpoint", "status"},
	)

	VideoUploadsTotal = promauto.NewCounter(
		prometheus.CounterOpts{
			Name: "videovault_video_uploads_total",
			Help: "Total number of video uploads",
		},
	)

	// Probe metrics
	ProbeFailuresTotal = promauto.NewCounterVec(
		prometheus.CounterOpts{
			Name: "videovault_probe_failures_total",
			Help: "Total number of failed probe operations",
		},
		[]string{"operation"},
	)

	// Transcode metrics
	TranscodesStartedTotal = promauto.NewCounterVec(
		prometheus.CounterOpts{
			Name: "videovault_transcodes_started_total",
			Help: "Total number of transcode attempts started",
		},
		[]string{"format"},
	)

	TranscodesCompletedTotal = promauto.NewCounterVec(
		prometheus.CounterOpts{
			Name: "videovault_transcodes_completed_total",
			Help: "Total number of finished transcode attempts",
		},
		[]string{"format", "status"},
	)

	TranscodeRequestsDroppedTotal = promauto.NewCounter(
		prometheus.CounterOpts{
			Name: "videovault_transcode_requests_dropped_total",
			Help: "Requests refused because an encode was already in flight for the pair",
		},
	)

	TranscodeDuration = promauto.NewHistogramVec(
		prometheus.HistogramOpts{
			Name:    "videovault_transcode_duration_seconds",
			Help:    "Transcode duration in seconds",
			Buckets: prometheus.ExponentialBuckets(1, 2, 12), // 1s to ~1 hour
		},
		[]string{"format"},
	)

	// Task metrics
	TasksProcessedTotal = promauto.NewCounterVec(
		prometheus.CounterOpts{
			Name: "videovault_tasks_processed_total",
			Help: "Total number of queue tasks processed",
		},
		[]string{"task", "status"},
	)
)
