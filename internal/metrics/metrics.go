package metrics

import (
	"strconv"
	"time"

	"github.com/labstack/echo/v4"
	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/collectors"
	"github.com/prometheus/client_golang/prometheus/promhttp"

	"github.com/iliyamo/canteen-ledger/internal/config"
)

// Login attempt outcomes.
const (
	LoginSuccess       = "success"
	LoginNotFound      = "not_found"
	LoginNoCredential  = "no_credential"
	LoginBadCredential = "bad_credential"
	LoginInvalid       = "invalid"
	LoginError         = "error"
)

// Metrics holds the service collectors.  A nil *Metrics is valid and
// records nothing, which keeps tests and the consumer free of wiring.
type Metrics struct {
	registry       *prometheus.Registry
	httpReqCnt     *prometheus.CounterVec
	httpDur        *prometheus.HistogramVec
	httpInfl       *prometheus.GaugeVec
	debtClearances prometheus.Counter
	clearedRows    prometheus.Counter
	loginAttempts  *prometheus.CounterVec
}

func New(cfg config.MetricsConfig) *Metrics {
	ns := cfg.Namespace
	r := prometheus.NewRegistry()
	r.MustRegister(collectors.NewProcessCollector(collectors.ProcessCollectorOpts{}))
	r.MustRegister(collectors.NewGoCollector())

	httpReqCnt := prometheus.NewCounterVec(prometheus.CounterOpts{Namespace: ns, Name: "http_requests_total"}, []string{"method", "route", "status"})
	httpDur := prometheus.NewHistogramVec(prometheus.HistogramOpts{Namespace: ns, Name: "http_request_duration_seconds", Buckets: cfg.Buckets}, []string{"method", "route", "status"})
	httpInfl := prometheus.NewGaugeVec(prometheus.GaugeOpts{Namespace: ns, Name: "http_requests_inflight"}, []string{"route"})
	r.MustRegister(httpReqCnt, httpDur, httpInfl)

	debtClearances := prometheus.NewCounter(prometheus.CounterOpts{Namespace: ns, Name: "debt_clearances_total", Help: "Debt clearing operations committed."})
	clearedRows := prometheus.NewCounter(prometheus.CounterOpts{Namespace: ns, Name: "debt_cleared_consumptions_total", Help: "Consumption rows removed by debt clearing."})
	loginAttempts := prometheus.NewCounterVec(prometheus.CounterOpts{Namespace: ns, Name: "login_attempts_total"}, []string{"result"})
	r.MustRegister(debtClearances, clearedRows, loginAttempts)

	return &Metrics{
		registry:       r,
		httpReqCnt:     httpReqCnt,
		httpDur:        httpDur,
		httpInfl:       httpInfl,
		debtClearances: debtClearances,
		clearedRows:    clearedRows,
		loginAttempts:  loginAttempts,
	}
}

// DebtCleared records one committed clearing that removed rows consumptions.
func (m *Metrics) DebtCleared(rows int64) {
	if m == nil {
		return
	}
	m.debtClearances.Inc()
	m.clearedRows.Add(float64(rows))
}

// LoginAttempt counts a login by outcome.
func (m *Metrics) LoginAttempt(result string) {
	if m == nil {
		return
	}
	m.loginAttempts.WithLabelValues(result).Inc()
}

// Middleware records request count, latency and in-flight requests per
// route template.
func (m *Metrics) Middleware() echo.MiddlewareFunc {
	return func(next echo.HandlerFunc) echo.HandlerFunc {
		return func(c echo.Context) error {
			route := c.Path()
			if route == "" {
				route = c.Request().URL.Path
			}
			m.httpInfl.WithLabelValues(route).Inc()
			start := time.Now()
			err := next(c)
			if err != nil {
				c.Error(err)
			}
			status := strconv.Itoa(c.Response().Status)
			m.httpReqCnt.WithLabelValues(c.Request().Method, route, status).Inc()
			m.httpDur.WithLabelValues(c.Request().Method, route, status).Observe(time.Since(start).Seconds())
			m.httpInfl.WithLabelValues(route).Dec()
			return nil
		}
	}
}

// Handler serves the registry in the prometheus text format.
func (m *Metrics) Handler() echo.HandlerFunc {
	return echo.WrapHandler(promhttp.HandlerFor(m.registry, promhttp.HandlerOpts{}))
}
