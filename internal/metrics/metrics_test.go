package metrics

import (
	"net/http"
	"net/http/httptest"
	"testing"

	"github.com/labstack/echo/v4"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/iliyamo/canteen-ledger/internal/config"
)

func newTestMetrics() *Metrics {
	return New(config.MetricsConfig{Namespace: "test", Buckets: []float64{0.1, 1}})
}

func scrape(t *testing.T, m *Metrics) string {
	t.Helper()
	e := echo.New()
	e.GET("/metrics", m.Handler())
	rec := httptest.NewRecorder()
	e.ServeHTTP(rec, httptest.NewRequest(http.MethodGet, "/metrics", nil))
	require.Equal(t, http.StatusOK, rec.Code)
	return rec.Body.String()
}

func TestMiddlewareCountsByRoute(t *testing.T) {
	m := newTestMetrics()
	e := echo.New()
	e.Use(m.Middleware())
	e.GET("/users/:id", func(c echo.Context) error { return c.NoContent(http.StatusNoContent) })
	e.GET("/boom", func(c echo.Context) error { return echo.NewHTTPError(http.StatusTeapot) })

	for _, path := range []string{"/users/1", "/users/2", "/boom"} {
		e.ServeHTTP(httptest.NewRecorder(), httptest.NewRequest(http.MethodGet, path, nil))
	}

	body := scrape(t, m)
	assert.Contains(t, body, `test_http_requests_total{method="GET",route="/users/:id",status="204"} 2`)
	assert.Contains(t, body, `test_http_requests_total{method="GET",route="/boom",status="418"} 1`)
	assert.Contains(t, body, `test_http_requests_inflight{route="/users/:id"} 0`)
}

func TestDomainCounters(t *testing.T) {
	m := newTestMetrics()
	m.DebtCleared(3)
	m.DebtCleared(0)
	m.LoginAttempt(LoginSuccess)
	m.LoginAttempt(LoginBadCredential)
	m.LoginAttempt(LoginBadCredential)

	body := scrape(t, m)
	assert.Contains(t, body, "test_debt_clearances_total 2")
	assert.Contains(t, body, "test_debt_cleared_consumptions_total 3")
	assert.Contains(t, body, `test_login_attempts_total{result="bad_credential"} 2`)
	assert.Contains(t, body, `test_login_attempts_total{result="success"} 1`)
}

func TestNilMetricsIsNoop(t *testing.T) {
	var m *Metrics
	assert.NotPanics(t, func() {
		m.DebtCleared(1)
		m.LoginAttempt(LoginSuccess)
	})
}
