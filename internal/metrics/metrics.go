package metrics

import (
	"net/http"
	"strconv"
	"time"

	"github.com/gin-gonic/gin"
	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/collectors"
	"github.com/prometheus/client_golang/prometheus/promauto"
	"github.com/prometheus/client_golang/prometheus/promhttp"
)

// Metrics holds all Prometheus metrics
type Metrics struct {
	registry *prometheus.Registry

	// HTTP metrics
	HTTPRequestsTotal   *prometheus.CounterVec
	HTTPRequestDuration *prometheus.HistogramVec

	// Business metrics
	SubscriptionsCreated    *prometheus.CounterVec
	SubscriptionTransitions *prometheus.CounterVec
	SubscriptionsDeleted    prometheus.Counter
	InvoicesCreated         *prometheus.CounterVec
	InvoiceTransitions      *prometheus.CounterVec
	PaymentsRecorded        prometheus.Counter
	NotificationsGenerated  prometheus.Counter
	BroadcastsSent          prometheus.Counter
	RenewalJobRuns          *prometheus.CounterVec
}

// New creates a Metrics instance backed by its own registry so that several
// instances (tests, CLI) never collide on registration.
func New() *Metrics {
	reg := prometheus.NewRegistry()
	reg.MustRegister(collectors.NewGoCollector(), collectors.NewProcessCollector(collectors.ProcessCollectorOpts{}))
	f := promauto.With(reg)

	return &Metrics{
		registry: reg,

		HTTPRequestsTotal: f.NewCounterVec(
			prometheus.CounterOpts{
				Name: "http_requests_total",
				Help: "Total number of HTTP requests",
			},
			[]string{"method", "path", "status"},
		),
		HTTPRequestDuration: f.NewHistogramVec(
			prometheus.HistogramOpts{
				Name:    "http_request_duration_seconds",
				Help:    "HTTP request latency in seconds",
				Buckets: prometheus.DefBuckets,
			},
			[]string{"method", "path", "status"},
		),

		SubscriptionsCreated: f.NewCounterVec(prometheus.CounterOpts{
			Name: "billing_subscriptions_created_total",
			Help: "Subscriptions created, by origin (new, renewal, upsell)",
		}, []string{"origin"}),
		SubscriptionTransitions: f.NewCounterVec(prometheus.CounterOpts{
			Name: "billing_subscription_transitions_total",
			Help: "Subscription status transitions, by action and outcome",
		}, []string{"action", "outcome"}),
		SubscriptionsDeleted: f.NewCounter(prometheus.CounterOpts{
			Name: "billing_subscriptions_deleted_total",
			Help: "Subscriptions removed with their invoices and payments",
		}),
		InvoicesCreated: f.NewCounterVec(prometheus.CounterOpts{
			Name: "billing_invoices_created_total",
			Help: "Draft invoices created, by resolved amount column",
		}, []string{"amount_column"}),
		InvoiceTransitions: f.NewCounterVec(prometheus.CounterOpts{
			Name: "billing_invoice_transitions_total",
			Help: "Invoice status transitions, by action and outcome",
		}, []string{"action", "outcome"}),
		PaymentsRecorded: f.NewCounter(prometheus.CounterOpts{
			Name: "billing_payments_recorded_total",
			Help: "Payments recorded",
		}),
		NotificationsGenerated: f.NewCounter(prometheus.CounterOpts{
			Name: "billing_renewal_notifications_generated_total",
			Help: "Renewal notifications inserted",
		}),
		BroadcastsSent: f.NewCounter(prometheus.CounterOpts{
			Name: "billing_broadcasts_total",
			Help: "Broadcast notifications stored",
		}),
		RenewalJobRuns: f.NewCounterVec(prometheus.CounterOpts{
			Name: "billing_renewal_job_runs_total",
			Help: "Scheduled renewal generator runs, by result (ok, error, skipped)",
		}, []string{"result"}),
	}
}

// Registry exposes the underlying registry, mainly for tests.
func (m *Metrics) Registry() *prometheus.Registry {
	return m.registry
}

// Handler serves the registry in the Prometheus exposition format.
func (m *Metrics) Handler() http.Handler {
	return promhttp.HandlerFor(m.registry, promhttp.HandlerOpts{Registry: m.registry})
}

// Middleware records request count and latency per route template.
func (m *Metrics) Middleware() gin.HandlerFunc {
	return func(c *gin.Context) {
		start := time.Now()
		c.Next()

		path := c.FullPath()
		if path == "" {
			path = "unmatched"
		}
		status := strconv.Itoa(c.Writer.Status())

		m.HTTPRequestsTotal.WithLabelValues(c.Request.Method, path, status).Inc()
		m.HTTPRequestDuration.WithLabelValues(c.Request.Method, path, status).Observe(time.Since(start).Seconds())
	}
}

// Outcome labels a transition result.
func Outcome(err error) string {
	if err != nil {
		return "rejected"
	}
	return "applied"
}
