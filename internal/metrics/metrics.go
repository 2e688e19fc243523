package metrics

import (
	"strconv"
	"time"

	"github.com/gin-gonic/gin"
	"github.com/prometheus/client_golang/prometheus"
)

// Metrics exposes application-level instruments.
type Metrics struct {
	registry *prometheus.Registry

	paymentsApplied   prometheus.Counter
	paymentsDuplicate prometheus.Counter
	creditsGranted    prometheus.Counter
	creditsSpent      prometheus.Counter
	downtimeStarted   prometheus.Counter
	downtimeClosed    prometheus.Counter

	httpRequests *prometheus.CounterVec
	httpDuration *prometheus.HistogramVec
}

func New() *Metrics {
	registry := prometheus.NewRegistry()

	m := &Metrics{
		registry: registry,
		paymentsApplied: prometheus.NewCounter(prometheus.CounterOpts{
			Name: "makestack_payments_applied_total",
			Help: "Payments applied to credit accounts.",
		}),
		paymentsDuplicate: prometheus.NewCounter(prometheus.CounterOpts{
			Name: "makestack_payments_duplicate_total",
			Help: "Payment applications skipped by the idempotency guard.",
		}),
		creditsGranted: prometheus.NewCounter(prometheus.CounterOpts{
			Name: "makestack_credits_granted_total",
			Help: "Credits granted through payments and bonuses.",
		}),
		creditsSpent: prometheus.NewCounter(prometheus.CounterOpts{
			Name: "makestack_credits_spent_total",
			Help: "Credits debited for tool runs.",
		}),
		downtimeStarted: prometheus.NewCounter(prometheus.CounterOpts{
			Name: "makestack_downtime_started_total",
			Help: "Downtime intervals opened.",
		}),
		downtimeClosed: prometheus.NewCounter(prometheus.CounterOpts{
			Name: "makestack_downtime_closed_total",
			Help: "Downtime intervals closed.",
		}),
		httpRequests: prometheus.NewCounterVec(prometheus.CounterOpts{
			Name: "makestack_http_requests_total",
			Help: "HTTP requests by route and status.",
		}, []string{"method", "route", "status"}),
		httpDuration: prometheus.NewHistogramVec(prometheus.HistogramOpts{
			Name:    "makestack_http_request_duration_seconds",
			Help:    "HTTP request latency by route.",
			Buckets: prometheus.DefBuckets,
		}, []string{"method", "route"}),
	}

	registry.MustRegister(
		m.paymentsApplied,
		m.paymentsDuplicate,
		m.creditsGranted,
		m.creditsSpent,
		m.downtimeStarted,
		m.downtimeClosed,
		m.httpRequests,
		m.httpDuration,
	)
	return m
}

// Registry returns the registry backing the /metrics endpoint.
func (m *Metrics) Registry() *prometheus.Registry {
	if m == nil {
		return nil
	}
	return m.registry
}

func (m *Metrics) RecordPaymentApplied(credits int64) {
	if m == nil {
		return
	}
	m.paymentsApplied.Inc()
	m.creditsGranted.Add(float64(credits))
}

func (m *Metrics) RecordPaymentDuplicate() {
	if m == nil {
		return
	}
	m.paymentsDuplicate.Inc()
}

func (m *Metrics) RecordCreditsSpent(credits int64) {
	if m == nil {
		return
	}
	m.creditsSpent.Add(float64(credits))
}

func (m *Metrics) RecordCreditsGranted(credits int64) {
	if m == nil {
		return
	}
	m.creditsGranted.Add(float64(credits))
}

func (m *Metrics) RecordDowntimeStarted() {
	if m == nil {
		return
	}
	m.downtimeStarted.Inc()
}

func (m *Metrics) RecordDowntimeClosed() {
	if m == nil {
		return
	}
	m.downtimeClosed.Inc()
}

// GinMiddleware records request counts and latency per route.
func GinMiddleware(m *Metrics) gin.HandlerFunc {
	return func(c *gin.Context) {
		if m == nil {
			c.Next()
			return
		}
		start := time.Now()
		c.Next()

		route := c.FullPath()
		if route == "" {
			route = "unmatched"
		}
		m.httpRequests.WithLabelValues(c.Request.Method, route, strconv.Itoa(c.Writer.Status())).Inc()
		m.httpDuration.WithLabelValues(c.Request.Method, route).Observe(time.Since(start).Seconds())
	}
}
