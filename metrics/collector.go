package metrics

import (
	"time"

	"github.com/prometheus/client_golang/prometheus"
)

// Collector exports pipeline and HTTP metrics to Prometheus and mirrors
// finished runs into a Store for the stats endpoint.
//
// A nil *Collector is valid and records nothing, so components can take one
// without a nil check at every call site.
type Collector struct {
	runsTotal      *prometheus.CounterVec
	stageDuration  *prometheus.HistogramVec
	stageFailures  *prometheus.CounterVec
	httpRequests   *prometheus.CounterVec
	httpDuration   *prometheus.HistogramVec
	orphansWritten prometheus.Counter

	store *Store
}

// NewCollector registers the aichat metrics with reg. store may be nil.
// Registration fails if the metrics are already registered with reg.
func NewCollector(reg prometheus.Registerer, store *Store) (*Collector, error) {
	c := &Collector{
		runsTotal: prometheus.NewCounterVec(
			prometheus.CounterOpts{
				Namespace: "aichat",
				Name:      "pipeline_runs_total",
				Help:      "Finished pipeline runs by mode and outcome.",
			},
			[]string{"mode", "outcome"},
		),
		stageDuration: prometheus.NewHistogramVec(
			prometheus.HistogramOpts{
				Namespace: "aichat",
				Name:      "stage_duration_seconds",
				Help:      "Duration of each pipeline stage, including retries.",
				Buckets:   []float64{0.05, 0.1, 0.25, 0.5, 1, 2.5, 5, 10, 30, 60, 120},
			},
			[]string{"stage"},
		),
		stageFailures: prometheus.NewCounterVec(
			prometheus.CounterOpts{
				Namespace: "aichat",
				Name:      "stage_failures_total",
				Help:      "Classified stage failures.",
			},
			[]string{"stage", "kind"},
		),
		httpRequests: prometheus.NewCounterVec(
			prometheus.CounterOpts{
				Namespace: "aichat",
				Name:      "http_requests_total",
				Help:      "HTTP requests by method, route and status.",
			},
			[]string{"method", "route", "status"},
		),
		httpDuration: prometheus.NewHistogramVec(
			prometheus.HistogramOpts{
				Namespace: "aichat",
				Name:      "http_request_duration_seconds",
				Help:      "HTTP request duration in seconds.",
				Buckets:   prometheus.DefBuckets,
			},
			[]string{"method", "route"},
		),
		orphansWritten: prometheus.NewCounter(prometheus.CounterOpts{
			Namespace: "aichat",
			Name:      "orphaned_images_total",
			Help:      "Generated images kept on disk because persistence failed.",
		}),
		store: store,
	}

	for _, col := range []prometheus.Collector{
		c.runsTotal, c.stageDuration, c.stageFailures,
		c.httpRequests, c.httpDuration, c.orphansWritten,
	} {
		if err := reg.Register(col); err != nil {
			return nil, err
		}
	}
	return c, nil
}

// RecordRun counts a finished run and adds it to the store.
func (c *Collector) RecordRun(rec RunRecord) {
	if c == nil {
		return
	}
	c.runsTotal.WithLabelValues(rec.Type, rec.Status).Inc()
	if c.store != nil {
		c.store.RecordRun(rec)
	}
}

// ObserveStage records a stage's duration and, when failureKind is not
// empty, its classified failure.
func (c *Collector) ObserveStage(stage string, d time.Duration, failureKind string) {
	if c == nil {
		return
	}
	c.stageDuration.WithLabelValues(stage).Observe(d.Seconds())
	if failureKind != "" {
		c.stageFailures.WithLabelValues(stage, failureKind).Inc()
	}
}

// ObserveHTTP records one handled request.
func (c *Collector) ObserveHTTP(method, route string, status int, d time.Duration) {
	if c == nil {
		return
	}
	c.httpRequests.WithLabelValues(method, route, statusLabel(status)).Inc()
	c.httpDuration.WithLabelValues(method, route).Observe(d.Seconds())
}

// OrphanWritten counts an image saved by the orphan sink.
func (c *Collector) OrphanWritten() {
	if c == nil {
		return
	}
	c.orphansWritten.Inc()
}

// Store returns the backing run store, which may be nil.
func (c *Collector) Store() *Store {
	if c == nil {
		return nil
	}
	return c.store
}

func statusLabel(status int) string {
	switch {
	case status >= 500:
		return "5xx"
	case status >= 400:
		return "4xx"
	case status >= 300:
		return "3xx"
	default:
		return "2xx"
	}
}
