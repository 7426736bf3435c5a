package metrics

import (
	"net/http"
	"strconv"
	"time"

	"github.com/gofiber/fiber/v2"
	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/promhttp"
)

// Metrics holds the HTTP and checkout collectors of one app instance. A nil
// *Metrics is valid and records nothing.
type Metrics struct {
	registry *prometheus.Registry

	Requests  *prometheus.CounterVec
	LatencyMS *prometheus.HistogramVec

	OrdersCreated          prometheus.Counter
	DuplicateConfirmations prometheus.Counter
	VerificationFailures   prometheus.Counter
	CarrierFailures        prometheus.Counter
	Shipments              *prometheus.CounterVec
}

// New builds the collectors on a private registry, so several apps can live
// in one process (tests).
func New(namespace string) *Metrics {
	reg := prometheus.NewRegistry()
	m := &Metrics{
		registry: reg,
		Requests: prometheus.NewCounterVec(prometheus.CounterOpts{
			Namespace: namespace,
			Name:      "http_requests_total",
			Help:      "Total number of HTTP requests.",
		}, []string{"route", "status"}),
		LatencyMS: prometheus.NewHistogramVec(prometheus.HistogramOpts{
			Namespace: namespace,
			Name:      "http_request_duration_ms",
			Help:      "HTTP request latency in milliseconds.",
			Buckets:   []float64{5, 10, 25, 50, 100, 250, 500, 1000, 2500, 5000},
		}, []string{"route"}),
		OrdersCreated: prometheus.NewCounter(prometheus.CounterOpts{
			Namespace: namespace,
			Name:      "orders_created_total",
			Help:      "Orders materialised from verified payments.",
		}),
		DuplicateConfirmations: prometheus.NewCounter(prometheus.CounterOpts{
			Namespace: namespace,
			Name:      "payment_duplicate_confirmations_total",
			Help:      "Payment callbacks for an already materialised order.",
		}),
		VerificationFailures: prometheus.NewCounter(prometheus.CounterOpts{
			Namespace: namespace,
			Name:      "payment_verification_failures_total",
			Help:      "Payment callbacks rejected because the signature did not match.",
		}),
		CarrierFailures: prometheus.NewCounter(prometheus.CounterOpts{
			Namespace: namespace,
			Name:      "carrier_failures_total",
			Help:      "Logistics provider calls that failed or timed out.",
		}),
		Shipments: prometheus.NewCounterVec(prometheus.CounterOpts{
			Namespace: namespace,
			Name:      "shipments_assigned_total",
			Help:      "Orders moved to Shipped, by shipping method.",
		}, []string{"method"}),
	}
	reg.MustRegister(
		m.Requests, m.LatencyMS,
		m.OrdersCreated, m.DuplicateConfirmations, m.VerificationFailures,
		m.CarrierFailures, m.Shipments,
	)
	return m
}

// Handler exposes the registry in the Prometheus text format.
func (m *Metrics) Handler() http.Handler {
	return promhttp.HandlerFor(m.registry, promhttp.HandlerOpts{Registry: m.registry})
}

// Middleware records request count and latency per matched route.
func (m *Metrics) Middleware() fiber.Handler {
	return func(c *fiber.Ctx) error {
		start := time.Now()
		err := c.Next()

		status := c.Response().StatusCode()
		if err != nil {
			if fe, ok := err.(*fiber.Error); ok {
				status = fe.Code
			} else {
				status = fiber.StatusInternalServerError
			}
		}
		route := c.Route().Path
		m.Requests.WithLabelValues(route, strconv.Itoa(status)).Inc()
		m.LatencyMS.WithLabelValues(route).Observe(float64(time.Since(start).Milliseconds()))
		return err
	}
}

// OrderCreated counts a new order.
func (m *Metrics) OrderCreated() {
	if m != nil {
		m.OrdersCreated.Inc()
	}
}

// DuplicateConfirmation counts an idempotent replay of a payment callback.
func (m *Metrics) DuplicateConfirmation() {
	if m != nil {
		m.DuplicateConfirmations.Inc()
	}
}

// VerificationFailed counts a rejected payment signature.
func (m *Metrics) VerificationFailed() {
	if m != nil {
		m.VerificationFailures.Inc()
	}
}

// CarrierFailed counts a failed logistics provider call.
func (m *Metrics) CarrierFailed() {
	if m != nil {
		m.CarrierFailures.Inc()
	}
}

// Shipped counts an order moved to Shipped with method.
func (m *Metrics) Shipped(method string) {
	if m != nil {
		m.Shipments.WithLabelValues(method).Inc()
	}
}
