// Package metrics collects and exposes Prometheus metrics for the auth
// gating and OAuth bridge flows.
package metrics

import (
	"net/http"
	"strconv"
	"time"

	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/promhttp"
)

// Recorder is the interface the transport layer records through.
type Recorder interface {
	RecordHTTPStatus(statusCode int)
	RecordGateRedirect(reason string)
	RecordCallbackOutcome(tag string)
	RecordTokenExchangeLatency(duration time.Duration)
}

// Collector implements Recorder on a Prometheus registry.
type Collector struct {
	httpStatus      *prometheus.CounterVec
	gateRedirects   *prometheus.CounterVec
	callbackOutcome *prometheus.CounterVec
	exchangeLatency prometheus.Histogram
}

// NewCollector creates a Collector and registers its metrics on reg.
func NewCollector(reg prometheus.Registerer) *Collector {
	c := &Collector{
		httpStatus: prometheus.NewCounterVec(prometheus.CounterOpts{
			Name: "stridelog_http_responses_total",
			Help: "HTTP responses by status code.",
		}, []string{"status_code"}),
		gateRedirects: prometheus.NewCounterVec(prometheus.CounterOpts{
			Name: "stridelog_gate_redirects_total",
			Help: "Request-gate redirects by reason.",
		}, []string{"reason"}),
		callbackOutcome: prometheus.NewCounterVec(prometheus.CounterOpts{
			Name: "stridelog_oauth_callback_outcomes_total",
			Help: "Strava callback terminal outcomes by tag.",
		}, []string{"tag"}),
		exchangeLatency: prometheus.NewHistogram(prometheus.HistogramOpts{
			Name:    "stridelog_token_exchange_latency_seconds",
			Help:    "Latency of the Strava token exchange.",
			Buckets: prometheus.DefBuckets,
		}),
	}

	reg.MustRegister(
		c.httpStatus,
		c.gateRedirects,
		c.callbackOutcome,
		c.exchangeLatency,
	)

	return c
}

// RecordHTTPStatus counts a response by status code.
func (c *Collector) RecordHTTPStatus(statusCode int) {
	c.httpStatus.WithLabelValues(strconv.Itoa(statusCode)).Inc()
}

// RecordGateRedirect counts a gate-issued redirect.
func (c *Collector) RecordGateRedirect(reason string) {
	c.gateRedirects.WithLabelValues(reason).Inc()
}

// RecordCallbackOutcome counts a callback terminal outcome.
func (c *Collector) RecordCallbackOutcome(tag string) {
	c.callbackOutcome.WithLabelValues(tag).Inc()
}

// RecordTokenExchangeLatency observes one token exchange round trip.
func (c *Collector) RecordTokenExchangeLatency(duration time.Duration) {
	c.exchangeLatency.Observe(duration.Seconds())
}

// Handler returns the Prometheus scrape handler for the gatherer.
func Handler(gatherer prometheus.Gatherer) http.Handler {
	return promhttp.HandlerFor(gatherer, promhttp.HandlerOpts{})
}
