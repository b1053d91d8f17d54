// Package metrics exposes Prometheus instruments for the agent loop, the
// database executor, the model providers and the HTTP surface.
package metrics

import (
	"context"
	"errors"
	"net/http"
	"time"

	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/promhttp"

	"github.com/ekaya-inc/ekaya-sqlagent/pkg/models"
)

var (
	agentQueriesTotal = prometheus.NewCounterVec(
		prometheus.CounterOpts{
			Name: "sqlagent_queries_total",
			Help: "Total number of natural-language questions answered, by outcome and error kind.",
		},
		[]string{"outcome", "error_kind"},
	)
	agentIterations = prometheus.NewHistogram(
		prometheus.HistogramOpts{
			Name:    "sqlagent_query_iterations",
			Help:    "Candidates tried per question.",
			Buckets: []float64{1, 2, 3, 4, 5, 7, 10},
		},
	)
	agentQueryDurationSeconds = prometheus.NewHistogram(
		prometheus.HistogramOpts{
			Name:    "sqlagent_query_duration_seconds",
			Help:    "Wall-clock time to answer a question, model calls included.",
			Buckets: []float64{0.1, 0.25, 0.5, 1, 2.5, 5, 10, 30, 60},
		},
	)
	policyRejectionsTotal = prometheus.NewCounterVec(
		prometheus.CounterOpts{
			Name: "sqlagent_policy_rejections_total",
			Help: "Candidates rejected by the validator, by reason code.",
		},
		[]string{"code"},
	)
	executionsTotal = prometheus.NewCounterVec(
		prometheus.CounterOpts{
			Name: "sqlagent_executions_total",
			Help: "Statements sent to the database, by result (ok or failure kind).",
		},
		[]string{"result"},
	)
	executionDurationSeconds = prometheus.NewHistogram(
		prometheus.HistogramOpts{
			Name:    "sqlagent_execution_duration_seconds",
			Help:    "Database round-trip time per statement.",
			Buckets: prometheus.DefBuckets,
		},
	)
	llmCallsTotal = prometheus.NewCounterVec(
		prometheus.CounterOpts{
			Name: "sqlagent_llm_calls_total",
			Help: "Model calls by purpose (generate, correct, summarize) and status.",
		},
		[]string{"purpose", "status"},
	)
	llmCallDurationSeconds = prometheus.NewHistogramVec(
		prometheus.HistogramOpts{
			Name:    "sqlagent_llm_call_duration_seconds",
			Help:    "Model call latency by purpose.",
			Buckets: []float64{0.25, 0.5, 1, 2, 5, 10, 20, 60},
		},
		[]string{"purpose"},
	)
	llmCircuitState = prometheus.NewGauge(
		prometheus.GaugeOpts{
			Name: "sqlagent_llm_circuit_state",
			Help: "Model provider circuit breaker state (0 closed, 1 open, 2 half-open).",
		},
	)
	memoryEntries = prometheus.NewGauge(
		prometheus.GaugeOpts{
			Name: "sqlagent_memory_entries",
			Help: "Entries currently held in the agent's short-term memory.",
		},
	)
	httpRequestsTotal = prometheus.NewCounterVec(
		prometheus.CounterOpts{
			Name: "sqlagent_http_requests_total",
			Help: "Total number of HTTP requests.",
		},
		[]string{"method", "path", "status"},
	)
	httpRequestDurationSeconds = prometheus.NewHistogramVec(
		prometheus.HistogramOpts{
			Name:    "sqlagent_http_request_duration_seconds",
			Help:    "HTTP request latency by route.",
			Buckets: prometheus.DefBuckets,
		},
		[]string{"method", "path", "status"},
	)
)

func init() {
	prometheus.MustRegister(
		agentQueriesTotal,
		agentIterations,
		agentQueryDurationSeconds,
		policyRejectionsTotal,
		executionsTotal,
		executionDurationSeconds,
		llmCallsTotal,
		llmCallDurationSeconds,
		llmCircuitState,
		memoryEntries,
		httpRequestsTotal,
		httpRequestDurationSeconds,
	)
}

// Handler serves the default registry.
func Handler() http.Handler {
	return promhttp.Handler()
}

// ObserveQuery records a finished question.
func ObserveQuery(result *models.QueryResult) {
	if result == nil {
		return
	}
	outcome := string(models.OutcomeSuccess)
	if !result.Success {
		outcome = string(models.OutcomeFailure)
	}
	agentQueriesTotal.WithLabelValues(outcome, string(result.ErrorKind)).Inc()
	agentIterations.Observe(float64(result.Iterations))
	agentQueryDurationSeconds.Observe(result.Elapsed.Seconds())
	if result.ErrorKind == models.ErrorKindPolicyViolation {
		policyRejectionsTotal.WithLabelValues(string(result.ReasonCode)).Inc()
	}
}

// ObserveExecution records one executor call.
func ObserveExecution(result *models.ExecutionResult) {
	if result == nil {
		return
	}
	label := "ok"
	if result.Failure != nil {
		label = string(result.Failure.Kind)
	}
	executionsTotal.WithLabelValues(label).Inc()
	executionDurationSeconds.Observe(result.Elapsed.Seconds())
}

// ObserveLLMCall records one model call. Canceled contexts count as "canceled"
// so they do not inflate the error rate.
func ObserveLLMCall(purpose string, elapsed time.Duration, err error) {
	status := "ok"
	switch {
	case err == nil:
	case errors.Is(err, context.Canceled):
		status = "canceled"
	default:
		status = "error"
	}
	llmCallsTotal.WithLabelValues(purpose, status).Inc()
	llmCallDurationSeconds.WithLabelValues(purpose).Observe(elapsed.Seconds())
}

// SetCircuitState publishes the breaker state.
func SetCircuitState(state int) {
	llmCircuitState.Set(float64(state))
}

// SetMemoryEntries publishes the current memory size.
func SetMemoryEntries(n int) {
	if n < 0 {
		n = 0
	}
	memoryEntries.Set(float64(n))
}
