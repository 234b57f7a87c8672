package pipeline

import (
	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/promauto"
)

var (
	framesProcessedTotal = promauto.NewCounterVec(
		prometheus.CounterOpts{
			Name: "hudscan_frames_processed_total",
			Help: "Total number of frames processed",
		},
		[]string{"outcome"}, // accepted, rejected
	)

	frameRejectionsTotal = promauto.NewCounterVec(
		prometheus.CounterOpts{
			Name: "hudscan_frame_rejections_total",
			Help: "Total number of rejected frames by reason",
		},
		[]string{"reason"},
	)

	frameProcessingDuration = promauto.NewHistogram(
		prometheus.HistogramOpts{
			Name:    "hudscan_frame_processing_duration_seconds",
			Help:    "Time to decode, extract and validate a single frame",
			Buckets: []float64{.01, .025, .05, .1, .25, .5, 1, 2.5, 5},
		},
	)

	runsTotal = promauto.NewCounterVec(
		prometheus.CounterOpts{
			Name: "hudscan_runs_total",
			Help: "Total number of extraction runs",
		},
		[]string{"status"}, // completed, failed
	)

	lastRunErrorRate = promauto.NewGauge(
		prometheus.GaugeOpts{
			Name: "hudscan_last_run_error_rate",
			Help: "Error rate of the most recent run with at least one frame",
		},
	)

	activeWorkers = promauto.NewGauge(
		prometheus.GaugeOpts{
			Name: "hudscan_active_workers",
			Help: "Number of frame workers currently running",
		},
	)
)

func recordOutcomeMetrics(o FrameOutcome) {
	if o.Outcome.Accepted() {
		framesProcessedTotal.WithLabelValues("accepted").Inc()
		return
	}
	framesProcessedTotal.WithLabelValues("rejected").Inc()
	if o.Outcome.Rejection != nil {
		frameRejectionsTotal.WithLabelValues(string(o.Outcome.Rejection.Reason)).Inc()
	}
}

func recordRunMetrics(summary RunSummary, err error) {
	if err != nil {
		runsTotal.WithLabelValues("failed").Inc()
		return
	}
	runsTotal.WithLabelValues("completed").Inc()
	if rate, ok := summary.ErrorRate(); ok {
		lastRunErrorRate.Set(rate)
	}
}
