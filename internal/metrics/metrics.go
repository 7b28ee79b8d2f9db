// Package metrics defines the Prometheus collectors exported on /metrics.
package metrics

import (
	"strconv"
	"time"

	"github.com/prometheus/client_golang/prometheus"
)

// Assignment run outcomes.
const (
	OutcomeCreated         = "created"
	OutcomeUnsatisfiable   = "unsatisfiable"
	OutcomeAlreadyAssigned = "already_assigned"
	OutcomeInsufficient    = "insufficient"
	OutcomeSnapshotChanged = "snapshot_changed"
	OutcomeNotFound        = "not_found"
	OutcomeError           = "error"
)

// Metrics holds every collector the server updates.
type Metrics struct {
	AssignmentRuns  *prometheus.CounterVec
	MatchDuration   prometheus.Histogram
	SnapshotRetries prometheus.Counter
	HistoryRepeats  prometheus.Counter
	Notifications   *prometheus.CounterVec
	HTTPRequests    *prometheus.CounterVec
	HTTPDuration    *prometheus.HistogramVec
}

// New creates the collectors and registers them with reg.
// A nil reg leaves them unregistered, which tests use.
func New(reg prometheus.Registerer) *Metrics {
	m := &Metrics{
		AssignmentRuns: prometheus.NewCounterVec(prometheus.CounterOpts{
			Namespace: "secretsanta",
			Name:      "assignment_runs_total",
			Help:      "Assignment runs by outcome.",
		}, []string{"outcome"}),
		MatchDuration: prometheus.NewHistogram(prometheus.HistogramOpts{
			Namespace: "secretsanta",
			Name:      "match_duration_seconds",
			Help:      "Time spent computing one matching.",
			Buckets:   prometheus.ExponentialBuckets(0.0001, 4, 8),
		}),
		SnapshotRetries: prometheus.NewCounter(prometheus.CounterOpts{
			Namespace: "secretsanta",
			Name:      "snapshot_retries_total",
			Help:      "Assignment runs retried because the group changed mid-run.",
		}),
		HistoryRepeats: prometheus.NewCounter(prometheus.CounterOpts{
			Namespace: "secretsanta",
			Name:      "history_repeats_total",
			Help:      "Prior-year pairs reused under the relaxed history policy.",
		}),
		Notifications: prometheus.NewCounterVec(prometheus.CounterOpts{
			Namespace: "secretsanta",
			Name:      "notifications_total",
			Help:      "Assignment notifications by result.",
		}, []string{"result"}),
		HTTPRequests: prometheus.NewCounterVec(prometheus.CounterOpts{
			Namespace: "secretsanta",
			Name:      "http_requests_total",
			Help:      "HTTP requests by method, route and status code.",
		}, []string{"method", "route", "code"}),
		HTTPDuration: prometheus.NewHistogramVec(prometheus.HistogramOpts{
			Namespace: "secretsanta",
			Name:      "http_request_duration_seconds",
			Help:      "HTTP request latency by route.",
			Buckets:   prometheus.DefBuckets,
		}, []string{"route"}),
	}

	if reg != nil {
		reg.MustRegister(
			m.AssignmentRuns,
			m.MatchDuration,
			m.SnapshotRetries,
			m.HistoryRepeats,
			m.Notifications,
			m.HTTPRequests,
			m.HTTPDuration,
		)
	}
	return m
}

// ObserveMatch records how long a matching took.
func (m *Metrics) ObserveMatch(start time.Time) {
	if m == nil {
		return
	}
	m.MatchDuration.Observe(time.Since(start).Seconds())
}

// RunOutcome counts a finished assignment run.
func (m *Metrics) RunOutcome(outcome string) {
	if m == nil {
		return
	}
	m.AssignmentRuns.WithLabelValues(outcome).Inc()
}

// Retry counts one snapshot retry.
func (m *Metrics) Retry() {
	if m == nil {
		return
	}
	m.SnapshotRetries.Inc()
}

// Repeats counts reused prior-year pairs.
func (m *Metrics) Repeats(n int) {
	if m == nil || n == 0 {
		return
	}
	m.HistoryRepeats.Add(float64(n))
}

// Notified counts delivered and failed notifications.
func (m *Metrics) Notified(sent, failed int) {
	if m == nil {
		return
	}
	m.Notifications.WithLabelValues("sent").Add(float64(sent))
	m.Notifications.WithLabelValues("failed").Add(float64(failed))
}

// ObserveHTTP records one served HTTP request. route is the matched
// route template, not the raw path, to keep label cardinality bounded.
func (m *Metrics) ObserveHTTP(method, route string, code int, start time.Time) {
	if m == nil {
		return
	}
	m.HTTPRequests.WithLabelValues(method, route, strconv.Itoa(code)).Inc()
	m.HTTPDuration.WithLabelValues(route).Observe(time.Since(start).Seconds())
}
