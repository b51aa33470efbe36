package telemetry

import (
	"log"
	"net/http"
	"time"

	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/promhttp"
)

// Stage names one pipeline step for observability purposes.
type Stage string

const (
	StageClassify Stage = "classify"
	StageRetrieve Stage = "retrieve"
	StageAugment  Stage = "augment"
	StageAssemble Stage = "assemble"
	StageGenerate Stage = "generate"
)

// Telemetry records per-stage counters and durations on its own
// prometheus registry, replacing the ad-hoc debug printing of earlier
// iterations with structured, leveled hooks.
type Telemetry struct {
	enabled  bool
	registry *prometheus.Registry

	requests      *prometheus.CounterVec
	stageDuration *prometheus.HistogramVec
	stageFailures *prometheus.CounterVec
}

func New(enabled bool) *Telemetry {
	reg := prometheus.NewRegistry()
	t := &Telemetry{
		enabled:  enabled,
		registry: reg,
		requests: prometheus.NewCounterVec(prometheus.CounterOpts{
			Name: "niki_requests_total",
			Help: "Processed chat turns by classified intent.",
		}, []string{"intent"}),
		stageDuration: prometheus.NewHistogramVec(prometheus.HistogramOpts{
			Name:    "niki_stage_duration_seconds",
			Help:    "Pipeline stage latency.",
			Buckets: prometheus.DefBuckets,
		}, []string{"stage"}),
		stageFailures: prometheus.NewCounterVec(prometheus.CounterOpts{
			Name: "niki_stage_failures_total",
			Help: "Recovered per-stage failures.",
		}, []string{"stage"}),
	}
	reg.MustRegister(t.requests, t.stageDuration, t.stageFailures)
	return t
}

// RecordRequest counts one processed turn.
func (t *Telemetry) RecordRequest(intent string) {
	if t == nil || !t.enabled {
		return
	}
	t.requests.WithLabelValues(intent).Inc()
}

// ObserveStage records a stage's duration from its start time.
func (t *Telemetry) ObserveStage(stage Stage, start time.Time) {
	if t == nil || !t.enabled {
		return
	}
	t.stageDuration.WithLabelValues(string(stage)).Observe(time.Since(start).Seconds())
}

// RecordFailure counts a recovered failure in a stage.
func (t *Telemetry) RecordFailure(stage Stage) {
	if t == nil || !t.enabled {
		return
	}
	t.stageFailures.WithLabelValues(string(stage)).Inc()
}

// Handler exposes the metrics endpoint for this instance's registry.
func (t *Telemetry) Handler() http.Handler {
	return promhttp.HandlerFor(t.registry, promhttp.HandlerOpts{})
}

// NewLogger builds a prefixed logger in the house style.
func NewLogger(prefix string) *log.Logger {
	return log.New(log.Writer(), "["+prefix+"] ", log.LstdFlags)
}
