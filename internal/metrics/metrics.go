// Package metrics exposes the scheduler's runtime behavior as
// Prometheus metrics: turns, steps, tool calls, LLM calls, and pending
// approvals. Grounded on
// _examples/kadirpekel-hector/pkg/observability/metrics.go's nil-safe
// recorder pattern (every Record/Inc method is a no-op on a nil
// *Metrics, so call sites never need a feature-flag check) scaled down
// to this module's domain.
package metrics

import (
	"net/http"
	"time"

	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/promhttp"
)

const namespace = "kagent"

// Metrics holds the process's Prometheus registry and instruments. A
// nil *Metrics is valid: every method degrades to a no-op, so callers
// can pass one around unconditionally whether or not metrics were
// enabled at startup.
type Metrics struct {
	registry *prometheus.Registry

	turnsTotal    *prometheus.CounterVec
	turnDuration  *prometheus.HistogramVec
	stepsTotal    *prometheus.CounterVec
	toolCalls     *prometheus.CounterVec
	toolDuration  *prometheus.HistogramVec
	toolErrors    *prometheus.CounterVec
	llmCalls      *prometheus.CounterVec
	llmDuration   *prometheus.HistogramVec
	llmTokens     *prometheus.CounterVec
	approvalsWait *prometheus.GaugeVec
}

// New builds a fresh Metrics with its own registry.
func New() *Metrics {
	m := &Metrics{registry: prometheus.NewRegistry()}

	m.turnsTotal = prometheus.NewCounterVec(prometheus.CounterOpts{
		Namespace: namespace, Subsystem: "turn", Name: "total", Help: "Total number of soul turns run.",
	}, []string{"agent", "status"})

	m.turnDuration = prometheus.NewHistogramVec(prometheus.HistogramOpts{
		Namespace: namespace, Subsystem: "turn", Name: "duration_seconds", Help: "Turn duration in seconds.",
		Buckets: prometheus.ExponentialBuckets(0.1, 2, 14),
	}, []string{"agent"})

	m.stepsTotal = prometheus.NewCounterVec(prometheus.CounterOpts{
		Namespace: namespace, Subsystem: "step", Name: "total", Help: "Total number of scheduler steps run.",
	}, []string{"agent"})

	m.toolCalls = prometheus.NewCounterVec(prometheus.CounterOpts{
		Namespace: namespace, Subsystem: "tool", Name: "calls_total", Help: "Total number of tool invocations.",
	}, []string{"tool"})

	m.toolDuration = prometheus.NewHistogramVec(prometheus.HistogramOpts{
		Namespace: namespace, Subsystem: "tool", Name: "call_duration_seconds", Help: "Tool call duration in seconds.",
		Buckets: prometheus.ExponentialBuckets(0.001, 2, 16),
	}, []string{"tool"})

	m.toolErrors = prometheus.NewCounterVec(prometheus.CounterOpts{
		Namespace: namespace, Subsystem: "tool", Name: "errors_total", Help: "Total number of tool call errors.",
	}, []string{"tool"})

	m.llmCalls = prometheus.NewCounterVec(prometheus.CounterOpts{
		Namespace: namespace, Subsystem: "llm", Name: "calls_total", Help: "Total number of LLM generation calls.",
	}, []string{"model"})

	m.llmDuration = prometheus.NewHistogramVec(prometheus.HistogramOpts{
		Namespace: namespace, Subsystem: "llm", Name: "call_duration_seconds", Help: "LLM generation call duration in seconds.",
		Buckets: prometheus.ExponentialBuckets(0.1, 2, 12),
	}, []string{"model"})

	m.llmTokens = prometheus.NewCounterVec(prometheus.CounterOpts{
		Namespace: namespace, Subsystem: "llm", Name: "tokens_total", Help: "Total number of tokens consumed, by direction.",
	}, []string{"model", "direction"})

	m.approvalsWait = prometheus.NewGaugeVec(prometheus.GaugeOpts{
		Namespace: namespace, Subsystem: "approval", Name: "pending", Help: "Number of approval requests currently awaiting a response.",
	}, []string{"agent"})

	m.registry.MustRegister(
		m.turnsTotal, m.turnDuration, m.stepsTotal,
		m.toolCalls, m.toolDuration, m.toolErrors,
		m.llmCalls, m.llmDuration, m.llmTokens,
		m.approvalsWait,
	)
	return m
}

func (m *Metrics) RecordTurn(agent, status string, duration time.Duration) {
	if m == nil {
		return
	}
	m.turnsTotal.WithLabelValues(agent, status).Inc()
	m.turnDuration.WithLabelValues(agent).Observe(duration.Seconds())
}

func (m *Metrics) RecordStep(agent string) {
	if m == nil {
		return
	}
	m.stepsTotal.WithLabelValues(agent).Inc()
}

func (m *Metrics) RecordToolCall(tool string, duration time.Duration, isError bool) {
	if m == nil {
		return
	}
	m.toolCalls.WithLabelValues(tool).Inc()
	m.toolDuration.WithLabelValues(tool).Observe(duration.Seconds())
	if isError {
		m.toolErrors.WithLabelValues(tool).Inc()
	}
}

func (m *Metrics) RecordLLMCall(model string, duration time.Duration, inputTokens, outputTokens int64) {
	if m == nil {
		return
	}
	m.llmCalls.WithLabelValues(model).Inc()
	m.llmDuration.WithLabelValues(model).Observe(duration.Seconds())
	m.llmTokens.WithLabelValues(model, "input").Add(float64(inputTokens))
	m.llmTokens.WithLabelValues(model, "output").Add(float64(outputTokens))
}

func (m *Metrics) SetApprovalsPending(agent string, count int) {
	if m == nil {
		return
	}
	m.approvalsWait.WithLabelValues(agent).Set(float64(count))
}

// Handler serves the registry in the Prometheus exposition format. On
// a nil Metrics it reports 503, matching the "not enabled" case rather
// than panicking.
func (m *Metrics) Handler() http.Handler {
	if m == nil {
		return http.HandlerFunc(func(w http.ResponseWriter, _ *http.Request) {
			w.WriteHeader(http.StatusServiceUnavailable)
		})
	}
	return promhttp.HandlerFor(m.registry, promhttp.HandlerOpts{})
}
