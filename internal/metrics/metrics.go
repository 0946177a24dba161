// Package metrics collects and exposes Prometheus metrics.
package metrics

import (
	"net/http"
	"strconv"
	"time"

	"github.com/labstack/echo/v4"
	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/promhttp"
)

// Recorder is the metrics surface used by the service layer.
type Recorder interface {
	RecordLogin(origin, result string)
	RecordOAuthCall(step, result string)
}

// Nop discards every measurement.
type Nop struct{}

func (Nop) RecordLogin(string, string) {}
func (Nop) RecordOAuthCall(string, string) {}

// Collector is the Prometheus implementation of Recorder.
type Collector struct {
	logins       *prometheus.CounterVec
	oauthCalls   *prometheus.CounterVec
	httpRequests *prometheus.CounterVec
	httpLatency  *prometheus.HistogramVec
}

// NewCollector creates a Collector and registers its metrics with reg.
func NewCollector(reg prometheus.Registerer) *Collector {
	c := &Collector{
		logins: prometheus.NewCounterVec(prometheus.CounterOpts{
			Name: "cronboard_login_attempts_total",
			Help: "Login attempts by origin and result.",
		}, []string{"origin", "result"}),
		oauthCalls: prometheus.NewCounterVec(prometheus.CounterOpts{
			Name: "cronboard_oauth_calls_total",
			Help: "Outbound OAuth provider calls by step and result.",
		}, []string{"step", "result"}),
		httpRequests: prometheus.NewCounterVec(prometheus.CounterOpts{
			Name: "cronboard_http_requests_total",
			Help: "HTTP requests by method and status code.",
		}, []string{"method", "status"}),
		httpLatency: prometheus.NewHistogramVec(prometheus.HistogramOpts{
			Name:    "cronboard_http_request_duration_seconds",
			Help:    "HTTP request latency in seconds.",
			Buckets: prometheus.DefBuckets,
		}, []string{"method"}),
	}

	reg.MustRegister(c.logins, c.oauthCalls, c.httpRequests, c.httpLatency)
	return c
}

// RecordLogin counts a login attempt.
func (c *Collector) RecordLogin(origin, result string) {
	c.logins.WithLabelValues(origin, result).Inc()
}

// RecordOAuthCall counts a call to the OAuth provider.
func (c *Collector) RecordOAuthCall(step, result string) {
	c.oauthCalls.WithLabelValues(step, result).Inc()
}

// RecordHTTP records status and latency of a served request.
func (c *Collector) RecordHTTP(method string, status int, d time.Duration) {
	c.httpRequests.WithLabelValues(method, strconv.Itoa(status)).Inc()
	c.httpLatency.WithLabelValues(method).Observe(d.Seconds())
}

// Middleware records every request passing through echo.
func (c *Collector) Middleware() echo.MiddlewareFunc {
	return func(next echo.HandlerFunc) echo.HandlerFunc {
		return func(ctx echo.Context) error {
			start := time.Now()
			if err := next(ctx); err != nil {
				ctx.Error(err)
			}
			c.RecordHTTP(ctx.Request().Method, ctx.Response().Status, time.Since(start))
			return nil
		}
	}
}

// Handler serves the metrics gathered by g.
func Handler(g prometheus.Gatherer) http.Handler {
	return promhttp.HandlerFor(g, promhttp.HandlerOpts{})
}
