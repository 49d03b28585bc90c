// Package metrics exposes Prometheus collectors for the generation pipeline
// and story lifecycle. A nil *Recorder is a valid no-op so callers can treat
// instrumentation as optional.
package metrics

import (
	"net/http"
	"time"

	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/promhttp"
)

// Recorder aggregates every collector the service registers. Construct one
// Recorder per registry; NewRecorder panics if the registry already holds
// these collectors.
type Recorder struct {
	generationDuration prometheus.Histogram
	uploadDuration     prometheus.Histogram
	generationAttempts prometheus.Counter
	rateLimitTrips     prometheus.Counter
	taskFailures       *prometheus.CounterVec
	batchDuration      prometheus.Histogram
	batchesDegraded    prometheus.Counter
	runRetries         prometheus.Counter
	sequentialRuns     prometheus.Counter
	sceneResults       *prometheus.CounterVec
	storiesStarted     prometheus.Counter
	storiesFinished    *prometheus.CounterVec
	storiesActive      prometheus.Gauge
}

// NewRecorder constructs and registers the service collectors. A nil reg
// falls back to the default Prometheus registerer.
func NewRecorder(reg prometheus.Registerer) *Recorder {
	if reg == nil {
		reg = prometheus.DefaultRegisterer
	}

	r := &Recorder{
		generationDuration: prometheus.NewHistogram(prometheus.HistogramOpts{
			Namespace: "storyforge",
			Subsystem: "pipeline",
			Name:      "generation_duration_seconds",
			Help:      "Latency of one image provider call.",
			Buckets:   []float64{0.5, 1, 2.5, 5, 10, 20, 30, 60, 120},
		}),
		uploadDuration: prometheus.NewHistogram(prometheus.HistogramOpts{
			Namespace: "storyforge",
			Subsystem: "pipeline",
			Name:      "upload_duration_seconds",
			Help:      "Latency of one image upload to object storage.",
			Buckets:   prometheus.DefBuckets,
		}),
		generationAttempts: prometheus.NewCounter(prometheus.CounterOpts{
			Namespace: "storyforge",
			Subsystem: "pipeline",
			Name:      "generation_attempts_total",
			Help:      "Image provider calls, including retries.",
		}),
		rateLimitTrips: prometheus.NewCounter(prometheus.CounterOpts{
			Namespace: "storyforge",
			Subsystem: "pipeline",
			Name:      "rate_limit_trips_total",
			Help:      "Provider responses classified as rate limiting.",
		}),
		taskFailures: prometheus.NewCounterVec(prometheus.CounterOpts{
			Namespace: "storyforge",
			Subsystem: "pipeline",
			Name:      "task_failures_total",
			Help:      "Tasks that failed permanently, by stage.",
		}, []string{"stage"}),
		batchDuration: prometheus.NewHistogram(prometheus.HistogramOpts{
			Namespace: "storyforge",
			Subsystem: "pipeline",
			Name:      "batch_duration_seconds",
			Help:      "Wall time for one batch to settle.",
			Buckets:   []float64{1, 5, 10, 30, 60, 120, 300, 600},
		}),
		batchesDegraded: prometheus.NewCounter(prometheus.CounterOpts{
			Namespace: "storyforge",
			Subsystem: "pipeline",
			Name:      "batches_degraded_total",
			Help:      "Batches that settled with at least one failed task.",
		}),
		runRetries: prometheus.NewCounter(prometheus.CounterOpts{
			Namespace: "storyforge",
			Subsystem: "pipeline",
			Name:      "run_retries_total",
			Help:      "Whole-run retries after a scheduler failure.",
		}),
		sequentialRuns: prometheus.NewCounter(prometheus.CounterOpts{
			Namespace: "storyforge",
			Subsystem: "pipeline",
			Name:      "sequential_fallbacks_total",
			Help:      "Runs that degraded to the sequential pass.",
		}),
		sceneResults: prometheus.NewCounterVec(prometheus.CounterOpts{
			Namespace: "storyforge",
			Subsystem: "pipeline",
			Name:      "scene_results_total",
			Help:      "Ledger entries produced, by result.",
		}, []string{"result"}),
		storiesStarted: prometheus.NewCounter(prometheus.CounterOpts{
			Namespace: "storyforge",
			Subsystem: "stories",
			Name:      "started_total",
			Help:      "Story generation tasks started.",
		}),
		storiesFinished: prometheus.NewCounterVec(prometheus.CounterOpts{
			Namespace: "storyforge",
			Subsystem: "stories",
			Name:      "finished_total",
			Help:      "Story generation tasks finished, by final status.",
		}, []string{"status"}),
		storiesActive: prometheus.NewGauge(prometheus.GaugeOpts{
			Namespace: "storyforge",
			Subsystem: "stories",
			Name:      "active",
			Help:      "Story generation tasks currently running.",
		}),
	}

	reg.MustRegister(
		r.generationDuration,
		r.uploadDuration,
		r.generationAttempts,
		r.rateLimitTrips,
		r.taskFailures,
		r.batchDuration,
		r.batchesDegraded,
		r.runRetries,
		r.sequentialRuns,
		r.sceneResults,
		r.storiesStarted,
		r.storiesFinished,
		r.storiesActive,
	)
	return r
}

// Handler serves g in the Prometheus exposition format.
func Handler(g prometheus.Gatherer) http.Handler {
	return promhttp.HandlerFor(g, promhttp.HandlerOpts{})
}

// ObserveGeneration records one provider call's latency.
func (r *Recorder) ObserveGeneration(d time.Duration) {
	if r == nil {
		return
	}
	r.generationDuration.Observe(d.Seconds())
}

// ObserveUpload records one upload's latency.
func (r *Recorder) ObserveUpload(d time.Duration) {
	if r == nil {
		return
	}
	r.uploadDuration.Observe(d.Seconds())
}

// GenerationAttempt counts one provider call.
func (r *Recorder) GenerationAttempt() {
	if r == nil {
		return
	}
	r.generationAttempts.Inc()
}

// RateLimitTrip counts one rate-limited provider response.
func (r *Recorder) RateLimitTrip() {
	if r == nil {
		return
	}
	r.rateLimitTrips.Inc()
}

// TaskFailed counts one permanently failed task for the given stage.
func (r *Recorder) TaskFailed(stage string) {
	if r == nil {
		return
	}
	r.taskFailures.WithLabelValues(stage).Inc()
}

// ObserveBatch records one batch's wall time and whether it degraded.
func (r *Recorder) ObserveBatch(d time.Duration, failed int) {
	if r == nil {
		return
	}
	r.batchDuration.Observe(d.Seconds())
	if failed > 0 {
		r.batchesDegraded.Inc()
	}
}

// RunRetry counts one whole-run retry.
func (r *Recorder) RunRetry() {
	if r == nil {
		return
	}
	r.runRetries.Inc()
}

// SequentialFallback counts one run degraded to the sequential pass.
func (r *Recorder) SequentialFallback() {
	if r == nil {
		return
	}
	r.sequentialRuns.Inc()
}

// AddSceneResults counts a run's ledger entries.
func (r *Recorder) AddSceneResults(completed, skipped int) {
	if r == nil {
		return
	}
	r.sceneResults.WithLabelValues("completed").Add(float64(completed))
	r.sceneResults.WithLabelValues("skipped").Add(float64(skipped))
}

// StoryStarted marks a story task as running.
func (r *Recorder) StoryStarted() {
	if r == nil {
		return
	}
	r.storiesStarted.Inc()
	r.storiesActive.Inc()
}

// StoryFinished marks a story task as done with its final status.
func (r *Recorder) StoryFinished(status string) {
	if r == nil {
		return
	}
	r.storiesFinished.WithLabelValues(status).Inc()
	r.storiesActive.Dec()
}
