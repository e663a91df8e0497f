package metrics

import (
	"net/http"
	"net/http/httptest"
	"strings"
	"testing"

	"github.com/labstack/echo/v4"
	"github.com/prometheus/client_golang/prometheus/testutil"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestObserveOperation(t *testing.T) {
	before := testutil.ToFloat64(LedgerOperations.WithLabelValues("purchase", "success"))
	ObserveOperation("purchase", "")
	ObserveOperation("purchase", "success")
	assert.Equal(t, before+2, testutil.ToFloat64(LedgerOperations.WithLabelValues("purchase", "success")))
}

func TestMiddleware(t *testing.T) {
	e := echo.New()
	e.Use(Middleware())
	e.GET("/ok/:id", func(c echo.Context) error { return c.String(http.StatusOK, "ok") })
	e.GET("/teapot", func(c echo.Context) error { return echo.NewHTTPError(http.StatusTeapot) })
	e.GET("/metrics", echo.WrapHandler(Handler()))

	okBefore := testutil.ToFloat64(httpRequestsTotal.WithLabelValues(http.MethodGet, "/ok/:id", "200"))
	teapotBefore := testutil.ToFloat64(httpRequestsTotal.WithLabelValues(http.MethodGet, "/teapot", "418"))

	for _, path := range []string{"/ok/1", "/ok/2", "/teapot"} {
		rec := httptest.NewRecorder()
		e.ServeHTTP(rec, httptest.NewRequest(http.MethodGet, path, nil))
	}

	assert.Equal(t, okBefore+2, testutil.ToFloat64(httpRequestsTotal.WithLabelValues(http.MethodGet, "/ok/:id", "200")))
	assert.Equal(t, teapotBefore+1, testutil.ToFloat64(httpRequestsTotal.WithLabelValues(http.MethodGet, "/teapot", "418")))

	rec := httptest.NewRecorder()
	e.ServeHTTP(rec, httptest.NewRequest(http.MethodGet, "/metrics", nil))
	require.Equal(t, http.StatusOK, rec.Code)
	assert.True(t, strings.Contains(rec.Body.String(), "mealcard_http_requests_total"))
}
