package observability

import (
	"context"

	"github.com/prometheus/client_golang/prometheus"
)

// Metrics collects application metrics.
type Metrics interface {
	RecordRequest(ctx context.Context, labels RequestLabels)
	RecordLatency(ctx context.Context, duration float64, labels RequestLabels)
	RecordLogin(ctx context.Context, method, outcome string)
	RecordInvitation(ctx context.Context, event string)
}

// RequestLabels contains metric dimensions.
type RequestLabels struct {
	Method string
	Route  string
	Status string
}

// Login methods and outcomes.
const (
	LoginPassword = "password"
	LoginGoogle   = "google"

	OutcomeSuccess = "success"
	OutcomeFailure = "failure"
)

// Invitation events.
const (
	InvitationSent     = "sent"
	InvitationAccepted = "accepted"
	InvitationMailFail = "mail_failed"
)

// requestBuckets covers API latencies from 5ms to 10s.
var requestBuckets = []float64{0.005, 0.01, 0.025, 0.05, 0.1, 0.25, 0.5, 1, 2.5, 5, 10}

// PrometheusMetrics implements Metrics with client_golang collectors.
type PrometheusMetrics struct {
	requestsTotal   *prometheus.CounterVec
	requestDuration *prometheus.HistogramVec
	loginsTotal     *prometheus.CounterVec
	invitations     *prometheus.CounterVec
}

// NewPrometheusMetrics creates the collectors and registers them with reg.
func NewPrometheusMetrics(reg prometheus.Registerer) *PrometheusMetrics {
	m := &PrometheusMetrics{
		requestsTotal: prometheus.NewCounterVec(
			prometheus.CounterOpts{
				Name: "esign_http_requests_total",
				Help: "Total HTTP requests",
			},
			[]string{"method", "route", "status"},
		),
		requestDuration: prometheus.NewHistogramVec(
			prometheus.HistogramOpts{
				Name:    "esign_http_request_duration_seconds",
				Help:    "HTTP request duration",
				Buckets: requestBuckets,
			},
			[]string{"method", "route"},
		),
		loginsTotal: prometheus.NewCounterVec(
			prometheus.CounterOpts{
				Name: "esign_logins_total",
				Help: "Login attempts by method and outcome",
			},
			[]string{"method", "outcome"},
		),
		invitations: prometheus.NewCounterVec(
			prometheus.CounterOpts{
				Name: "esign_invitations_total",
				Help: "Invitation lifecycle events",
			},
			[]string{"event"},
		),
	}
	reg.MustRegister(m.requestsTotal, m.requestDuration, m.loginsTotal, m.invitations)
	return m
}

func (m *PrometheusMetrics) RecordRequest(_ context.Context, l RequestLabels) {
	m.requestsTotal.WithLabelValues(l.Method, l.Route, l.Status).Inc()
}

func (m *PrometheusMetrics) RecordLatency(_ context.Context, duration float64, l RequestLabels) {
	m.requestDuration.WithLabelValues(l.Method, l.Route).Observe(duration)
}

func (m *PrometheusMetrics) RecordLogin(_ context.Context, method, outcome string) {
	m.loginsTotal.WithLabelValues(method, outcome).Inc()
}

func (m *PrometheusMetrics) RecordInvitation(_ context.Context, event string) {
	m.invitations.WithLabelValues(event).Inc()
}

// NopMetrics discards everything.
type NopMetrics struct{}

func (NopMetrics) RecordRequest(context.Context, RequestLabels) {}
func (NopMetrics) RecordLatency(context.Context, float64, RequestLabels) {}
func (NopMetrics) RecordLogin(context.Context, string, string) {}
func (NopMetrics) RecordInvitation(context.Context, string) {}
