// Package metrics exposes Prometheus counters for security operations.
package metrics

import (
	"context"
	"errors"
	"net/http"

	"github.com/dmitrijs2005/secledger/internal/common"
	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/collectors"
	"github.com/prometheus/client_golang/prometheus/promhttp"
)

// Metrics owns a private registry so tests and multiple servers in one
// process do not collide. A nil *Metrics records nothing.
type Metrics struct {
	registry   *prometheus.Registry
	operations *prometheus.CounterVec
	totpChecks *prometheus.CounterVec
}

func New() *Metrics {
	m := &Metrics{
		registry: prometheus.NewRegistry(),
		operations: prometheus.NewCounterVec(prometheus.CounterOpts{
			Namespace: "secledger",
			Name:      "operations_total",
			Help:      "Security ledger operations by outcome.",
		}, []string{"operation", "outcome"}),
		totpChecks: prometheus.NewCounterVec(prometheus.CounterOpts{
			Namespace: "secledger",
			Name:      "totp_checks_total",
			Help:      "One-time code checks by kind (enroll, login) and result.",
		}, []string{"kind", "result"}),
	}
	m.registry.MustRegister(
		m.operations,
		m.totpChecks,
		collectors.NewGoCollector(),
		collectors.NewProcessCollector(collectors.ProcessCollectorOpts{}),
	)
	return m
}

// ObserveOperation counts one call of op, classified by err.
func (m *Metrics) ObserveOperation(op string, err error) {
	if m == nil {
		return
	}
	m.operations.WithLabelValues(op, Outcome(err)).Inc()
}

func (m *Metrics) ObserveTOTPCheck(kind string, ok bool) {
	if m == nil {
		return
	}
	result := "rejected"
	if ok {
		result = "accepted"
	}
	m.totpChecks.WithLabelValues(kind, result).Inc()
}

func (m *Metrics) Handler() http.Handler {
	if m == nil {
		return http.NotFoundHandler()
	}
	return promhttp.HandlerFor(m.registry, promhttp.HandlerOpts{Registry: m.registry})
}

// Outcome maps an operation error to a bounded label value.
func Outcome(err error) string {
	switch {
	case err == nil:
		return "ok"
	case errors.Is(err, common.ErrorInvalidArgument):
		return "invalid_argument"
	case errors.Is(err, common.ErrorNotFound):
		return "not_found"
	case errors.Is(err, common.ErrorFailedPrecondition):
		return "failed_precondition"
	case errors.Is(err, common.ErrInvalidToken), errors.Is(err, common.ErrTokenExpired):
		return "invalid_token"
	case errors.Is(err, common.ErrorRateLimited):
		return "rate_limited"
	case errors.Is(err, context.Canceled), errors.Is(err, context.DeadlineExceeded):
		return "canceled"
	default:
		return "error"
	}
}
