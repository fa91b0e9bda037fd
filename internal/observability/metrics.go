package observability

import (
	"fmt"
	"net/http"
	"strconv"
	"time"

	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/promhttp"
)

// SubmissionCollector bundles Prometheus metrics for the schedule submission
// surface and provides helpers to wire them into HTTP handlers.
type SubmissionCollector struct {
	gatherer prometheus.Gatherer

	HTTPRequests  *prometheus.CounterVec
	HTTPDurations *prometheus.HistogramVec

	Submissions      *prometheus.CounterVec
	ArchivedProjects prometheus.Gauge
}

// Submission outcome labels.
const (
	OutcomeAccepted          = "accepted"
	OutcomeMalformed         = "malformed"
	OutcomeConstraintFailure = "constraint_failure"
	OutcomeStorageFailure    = "storage_failure"
)

// NewSubmissionCollector registers submission metrics against the provided
// registerer, defaulting to the global Prometheus registry when nil.
func NewSubmissionCollector(reg prometheus.Registerer) (*SubmissionCollector, error) {
	if reg == nil {
		reg = prometheus.DefaultRegisterer
	}
	gatherer := prometheus.DefaultGatherer
	if g, ok := reg.(prometheus.Gatherer); ok {
		gatherer = g
	}

	requests := prometheus.NewCounterVec(prometheus.CounterOpts{
		Name: "schedule_http_requests_total",
		Help: "Total handled HTTP requests, labeled by route, method, and status code.",
	}, []string{"route", "method", "code"})
	requests, err := registerCounterVec(reg, requests, "schedule_http_requests_total")
	if err != nil {
		return nil, err
	}

	durations := prometheus.NewHistogramVec(prometheus.HistogramOpts{
		Name:    "schedule_http_request_duration_seconds",
		Help:    "HTTP request latency in seconds.",
		Buckets: []float64{0.005, 0.01, 0.025, 0.05, 0.1, 0.25, 0.5, 1, 2, 5},
	}, []string{"route"})
	durations, err = registerHistogramVec(reg, durations, "schedule_http_request_duration_seconds")
	if err != nil {
		return nil, err
	}

	submissions := prometheus.NewCounterVec(prometheus.CounterOpts{
		Name: "schedule_submissions_total",
		Help: "Schedule files submitted, labeled by format variant and processing outcome.",
	}, []string{"variant", "outcome"})
	submissions, err = registerCounterVec(reg, submissions, "schedule_submissions_total")
	if err != nil {
		return nil, err
	}

	archived, err := registerGauge(reg, prometheus.NewGauge(prometheus.GaugeOpts{
		Name: "schedule_archived_projects",
		Help: "Current number of projects held in the submission archive.",
	}), "schedule_archived_projects")
	if err != nil {
		return nil, err
	}

	return &SubmissionCollector{
		gatherer:         gatherer,
		HTTPRequests:     requests,
		HTTPDurations:    durations,
		Submissions:      submissions,
		ArchivedProjects: archived,
	}, nil
}

// Middleware records request counts and durations for one named route.
func (c *SubmissionCollector) Middleware(route string, next http.Handler) http.Handler {
	return http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		start := time.Now()
		rec := &statusRecorder{ResponseWriter: w, code: http.StatusOK}
		next.ServeHTTP(rec, r)

		if c == nil {
			return
		}
		if c.HTTPRequests != nil {
			c.HTTPRequests.WithLabelValues(route, r.Method, strconv.Itoa(rec.code)).Inc()
		}
		if c.HTTPDurations != nil {
			c.HTTPDurations.WithLabelValues(route).Observe(time.Since(start).Seconds())
		}
	})
}

// RecordSubmission counts one processed schedule file.
func (c *SubmissionCollector) RecordSubmission(variant, outcome string) {
	if c == nil || c.Submissions == nil {
		return
	}
	c.Submissions.WithLabelValues(variant, outcome).Inc()
}

// SetArchivedCount drives the archive-size gauge from the storage layer.
func (c *SubmissionCollector) SetArchivedCount(n int) {
	if c == nil || c.ArchivedProjects == nil {
		return
	}
	c.ArchivedProjects.Set(float64(n))
}

// Handler exposes a ready-to-use /metrics handler.
func (c *SubmissionCollector) Handler() http.Handler {
	gatherer := c.gatherer
	if gatherer == nil {
		gatherer = prometheus.DefaultGatherer
	}
	return promhttp.HandlerFor(gatherer, promhttp.HandlerOpts{})
}

type statusRecorder struct {
	http.ResponseWriter
	code int
}

func (r *statusRecorder) WriteHeader(code int) {
	r.code = code
	r.ResponseWriter.WriteHeader(code)
}

func registerCounterVec(reg prometheus.Registerer, vec *prometheus.CounterVec, name string) (*prometheus.CounterVec, error) {
	if err := reg.Register(vec); err != nil {
		if are, ok := err.(prometheus.AlreadyRegisteredError); ok {
			if existing, ok := are.ExistingCollector.(*prometheus.CounterVec); ok {
				return existing, nil
			}
			return nil, fmt.Errorf("collector %s already registered with incompatible type", name)
		}
		return nil, err
	}
	return vec, nil
}

func registerHistogramVec(reg prometheus.Registerer, vec *prometheus.HistogramVec, name string) (*prometheus.HistogramVec, error) {
	if err := reg.Register(vec); err != nil {
		if are, ok := err.(prometheus.AlreadyRegisteredError); ok {
			if existing, ok := are.ExistingCollector.(*prometheus.HistogramVec); ok {
				return existing, nil
			}
			return nil, fmt.Errorf("collector %s already registered with incompatible type", name)
		}
		return nil, err
	}
	return vec, nil
}

func registerGauge(reg prometheus.Registerer, gauge prometheus.Gauge, name string) (prometheus.Gauge, error) {
	if err := reg.Register(gauge); err != nil {
		if are, ok := err.(prometheus.AlreadyRegisteredError); ok {
			if existing, ok := are.ExistingCollector.(prometheus.Gauge); ok {
				return existing, nil
			}
			return nil, fmt.Errorf("collector %s already registered with incompatible type", name)
		}
		return nil, err
	}
	return gauge, nil
}
