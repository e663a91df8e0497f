package metrics

import (
	"net/http"
	"strconv"

	"github.com/labstack/echo/v4"
	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/promauto"
	"github.com/prometheus/client_golang/prometheus/promhttp"
)

var (
	// LedgerOperations counts engine and workflow operations by result kind.
	LedgerOperations = promauto.NewCounterVec(prometheus.CounterOpts{
		Name: "mealcard_ledger_operations_total",
		Help: "Ledger operations processed, labeled by operation and outcome",
	}, []string{"operation", "outcome"})

	// UnitRetries counts atomic units retried after a transient store conflict.
	UnitRetries = promauto.NewCounterVec(prometheus.CounterOpts{
		Name: "mealcard_unit_retries_total",
		Help: "Atomic units retried after a transient conflict",
	}, []string{"operation"})

	httpRequestsTotal = promauto.NewCounterVec(prometheus.CounterOpts{
		Name: "mealcard_http_requests_total",
		Help: "Total HTTP requests processed, labeled by status code",
	}, []string{"method", "route", "status"})

	httpRequestDuration = promauto.NewHistogramVec(prometheus.HistogramOpts{
		Name:    "mealcard_http_request_duration_seconds",
		Help:    "Latency distribution of HTTP requests",
		Buckets: []float64{0.005, 0.01, 0.025, 0.05, 0.1, 0.25, 0.5, 1},
	}, []string{"method", "route"})
)

// ObserveOperation records one finished ledger operation. An empty outcome
// means success.
func ObserveOperation(operation, outcome string) {
	if outcome == "" {
		outcome = "success"
	}
	LedgerOperations.WithLabelValues(operation, outcome).Inc()
}

// Middleware records request counts and latency per route template.
func Middleware() echo.MiddlewareFunc {
	return func(next echo.HandlerFunc) echo.HandlerFunc {
		return func(c echo.Context) error {
			route := c.Path()
			if route == "" {
				route = "unmatched"
			}
			method := c.Request().Method
			timer := prometheus.NewTimer(httpRequestDuration.WithLabelValues(method, route))
			err := next(c)
			timer.ObserveDuration()

			status := c.Response().Status
			if err != nil {
				if he, ok := err.(*echo.HTTPError); ok {
					status = he.Code
				} else {
					status = http.StatusInternalServerError
				}
			}
			httpRequestsTotal.WithLabelValues(method, route, strconv.Itoa(status)).Inc()
			return err
		}
	}
}

// Handler exposes the default registry.
func Handler() http.Handler {
	return promhttp.Handler()
}
