package observability

import (
	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/promauto"
)

var (
	UploadRows = promauto.NewHistogram(
		prometheus.HistogramOpts{
			Namespace: "scoring_pipeline",
			Name:      "upload_rows",
			Help:      "Rows per accepted batch upload",
			Buckets:   prometheus.ExponentialBuckets(1, 4, 10), // 1 .. 262144
		},
	)

	UploadsRejected = promauto.NewCounterVec(
		prometheus.CounterOpts{
			Namespace: "scoring_pipeline",
			Name:      "uploads_rejected_total",
			Help:      "Batch uploads rejected before scoring, by reason",
		},
		[]string{"reason"},
	)

	ChunksScored = promauto.NewCounter(
		prometheus.CounterOpts{
			Namespace: "scoring_pipeline",
			Name:      "chunks_committed_total",
			Help:      "Chunks whose transactions and predictions were committed",
		},
	)

	ChunksFailed = promauto.NewCounterVec(
		prometheus.CounterOpts{
			Namespace: "scoring_pipeline",
			Name:      "chunks_failed_total",
			Help:      "Chunks rolled back, by error code",
		},
		[]string{"code"},
	)

	RowsScored = promauto.NewCounterVec(
		prometheus.CounterOpts{
			Namespace: "scoring_pipeline",
			Name:      "rows_scored_total",
			Help:      "Committed predictions by label",
		},
		[]string{"label"},
	)

	ManualReviewFlagged = promauto.NewCounter(
		prometheus.CounterOpts{
			Namespace: "scoring_pipeline",
			Name:      "manual_review_flagged_total",
			Help:      "Committed predictions flagged for manual review",
		},
	)

	ReviewEventsFailed = promauto.NewCounter(
		prometheus.CounterOpts{
			Namespace: "scoring_pipeline",
			Name:      "review_events_failed_total",
			Help:      "Manual review events that could not be handed to the broker",
		},
	)

	ChunkLatency = promauto.NewHistogram(
		prometheus.HistogramOpts{
			Namespace: "scoring_pipeline",
			Name:      "chunk_duration_seconds",
			Help:      "Time to insert, classify and commit one chunk",
			Buckets:   prometheus.DefBuckets,
		},
	)

	InflightChunks = promauto.NewGauge(
		prometheus.GaugeOpts{
			Namespace: "scoring_pipeline",
			Name:      "inflight_chunks",
			Help:      "Chunks currently being scored (worker group depth)",
		},
	)
)
