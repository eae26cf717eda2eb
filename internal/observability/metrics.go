package observability

import (
	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/promauto"
)

// Metrics provides a centralized interface for collecting application metrics.
//
// The metrics system is built on Prometheus and tracks:
//   - LLM backend request performance and response times
//   - Tool execution patterns and latencies
//   - Error rates categorized by type and component
//   - Routing decisions by strategy and selected model
//   - Circuit breaker state transitions per backend
//   - Confirmation outcomes for gated tool calls
//
// Usage:
//
//	metrics := observability.NewMetrics()
//	defer metrics.LLMRequestDuration("anthropic", "claude-3-opus").Observe(time.Since(start).Seconds())
type Metrics struct {
	// LLMRequestDuration measures backend Generate call latency in seconds.
	// Labels: backend_id, model
	// Buckets: 0.1s, 0.5s, 1s, 2s, 5s, 10s, 30s, 60s
	LLMRequestDuration *prometheus.HistogramVec

	// LLMRequestCounter counts generate calls by backend, model, and status.
	// Labels: backend_id, model, status (success|error)
	LLMRequestCounter *prometheus.CounterVec

	// LLMTokensUsed tracks token consumption.
	// Labels: backend_id, model
	LLMTokensUsed *prometheus.CounterVec

	// LLMCostUSD tracks estimated cost in USD.
	// Labels: backend_id, model
	LLMCostUSD *prometheus.CounterVec

	// ToolExecutionCounter counts tool invocations.
	// Labels: tool_name, status (success|error)
	ToolExecutionCounter *prometheus.CounterVec

	// ToolExecutionDuration measures tool execution time in seconds.
	// Labels: tool_name
	// Buckets: 0.01s, 0.05s, 0.1s, 0.5s, 1s, 5s, 10s, 30s, 60s
	ToolExecutionDuration *prometheus.HistogramVec

	// ErrorCounter tracks errors by component and error kind.
	// Labels: component (router|executor|orchestrator|tool|confirm), error_kind
	ErrorCounter *prometheus.CounterVec

	// RoutingDecisions counts routing decisions by strategy and the
	// capability-tier primary model selected.
	// Labels: strategy, complexity
	RoutingDecisions *prometheus.CounterVec

	// CircuitBreakerState is a gauge of the current breaker state per
	// backend: 0=CLOSED, 1=HALF_OPEN, 2=OPEN.
	// Labels: backend_id
	CircuitBreakerState *prometheus.GaugeVec

	// CircuitBreakerTransitions counts state transitions per backend.
	// Labels: backend_id, from, to
	CircuitBreakerTransitions *prometheus.CounterVec

	// ConfirmationOutcomes counts confirmation resolutions.
	// Labels: tool_name, outcome (approved|denied|expired)
	ConfirmationOutcomes *prometheus.CounterVec

	// ActiveChats is a gauge tracking tracked conversation contexts.
	ActiveChats prometheus.Gauge

	// RunAttempts counts execution attempts across the fallback chain.
	// Labels: status (success|retry|failed)
	RunAttempts *prometheus.CounterVec
}

// NewMetrics creates and registers all Prometheus metrics.
// This should be called once at application startup.
//
// All metrics are automatically registered with Prometheus's default registry
// and will be available at the /metrics endpoint when using prometheus HTTP handler.
func NewMetrics() *Metrics {
	return newMetrics(prometheus.DefaultRegisterer)
}

// newMetrics builds the metric set against an arbitrary registerer, so
// tests can use an isolated prometheus.NewRegistry() instead of the
// package-global default (which would panic on repeated registration).
func newMetrics(reg prometheus.Registerer) *Metrics {
	factory := promauto.With(reg)
	return &Metrics{
		LLMRequestDuration: factory.NewHistogramVec(
			prometheus.HistogramOpts{
				Name:    "agentrouter_llm_request_duration_seconds",
				Help:    "Duration of LLM backend requests in seconds",
				Buckets: []float64{0.1, 0.5, 1, 2, 5, 10, 30, 60},
			},
			[]string{"backend_id", "model"},
		),

		LLMRequestCounter: factory.NewCounterVec(
			prometheus.CounterOpts{
				Name: "agentrouter_llm_requests_total",
				Help: "Total number of LLM requests by backend, model, and status",
			},
			[]string{"backend_id", "model", "status"},
		),

		LLMTokensUsed: factory.NewCounterVec(
			prometheus.CounterOpts{
				Name: "agentrouter_llm_tokens_total",
				Help: "Total number of tokens used by backend and model",
			},
			[]string{"backend_id", "model"},
		),

		LLMCostUSD: factory.NewCounterVec(
			prometheus.CounterOpts{
				Name: "agentrouter_llm_cost_usd_total",
				Help: "Estimated LLM request cost in USD",
			},
			[]string{"backend_id", "model"},
		),

		ToolExecutionCounter: factory.NewCounterVec(
			prometheus.CounterOpts{
				Name: "agentrouter_tool_executions_total",
				Help: "Total number of tool executions by tool name and status",
			},
			[]string{"tool_name", "status"},
		),

		ToolExecutionDuration: factory.NewHistogramVec(
			prometheus.HistogramOpts{
				Name:    "agentrouter_tool_execution_duration_seconds",
				Help:    "Duration of tool executions in seconds",
				Buckets: []float64{0.01, 0.05, 0.1, 0.5, 1, 5, 10, 30, 60},
			},
			[]string{"tool_name"},
		),

		ErrorCounter: factory.NewCounterVec(
			prometheus.CounterOpts{
				Name: "agentrouter_errors_total",
				Help: "Total number of errors by component and error kind",
			},
			[]string{"component", "error_kind"},
		),

		RoutingDecisions: factory.NewCounterVec(
			prometheus.CounterOpts{
				Name: "agentrouter_routing_decisions_total",
				Help: "Total number of routing decisions by strategy and classified complexity",
			},
			[]string{"strategy", "complexity"},
		),

		CircuitBreakerState: factory.NewGaugeVec(
			prometheus.GaugeOpts{
				Name: "agentrouter_circuit_breaker_state",
				Help: "Current circuit breaker state per backend (0=closed, 1=half_open, 2=open)",
			},
			[]string{"backend_id"},
		),

		CircuitBreakerTransitions: factory.NewCounterVec(
			prometheus.CounterOpts{
				Name: "agentrouter_circuit_breaker_transitions_total",
				Help: "Total number of circuit breaker state transitions",
			},
			[]string{"backend_id", "from", "to"},
		),

		ConfirmationOutcomes: factory.NewCounterVec(
			prometheus.CounterOpts{
				Name: "agentrouter_confirmation_outcomes_total",
				Help: "Total number of tool confirmation resolutions by outcome",
			},
			[]string{"tool_name", "outcome"},
		),

		ActiveChats: factory.NewGauge(
			prometheus.GaugeOpts{
				Name: "agentrouter_active_chats",
				Help: "Current number of chats with tracked conversation context",
			},
		),

		RunAttempts: factory.NewCounterVec(
			prometheus.CounterOpts{
				Name: "agentrouter_run_attempts_total",
				Help: "Total number of execution-chain attempts by status",
			},
			[]string{"status"},
		),
	}
}

// RecordLLMRequest records metrics for a backend generate call.
//
// Example:
//
//	start := time.Now()
//	// ... call backend ...
//	metrics.RecordLLMRequest("backend-1", "m1", "success", time.Since(start).Seconds(), 120)
func (m *Metrics) RecordLLMRequest(backendID, model, status string, durationSeconds float64, tokens int) {
	m.LLMRequestCounter.WithLabelValues(backendID, model, status).Inc()
	m.LLMRequestDuration.WithLabelValues(backendID, model).Observe(durationSeconds)
	if tokens > 0 {
		m.LLMTokensUsed.WithLabelValues(backendID, model).Add(float64(tokens))
	}
}

// RecordLLMCost records estimated backend request cost.
//
// Example:
//
//	metrics.RecordLLMCost("backend-1", "m1", 0.015)
func (m *Metrics) RecordLLMCost(backendID, model string, costUSD float64) {
	m.LLMCostUSD.WithLabelValues(backendID, model).Add(costUSD)
}

// RecordToolExecution records metrics for a tool execution.
//
// Example:
//
//	start := time.Now()
//	// ... execute tool ...
//	metrics.RecordToolExecution("web_search", "success", time.Since(start).Seconds())
func (m *Metrics) RecordToolExecution(toolName, status string, durationSeconds float64) {
	m.ToolExecutionCounter.WithLabelValues(toolName, status).Inc()
	m.ToolExecutionDuration.WithLabelValues(toolName).Observe(durationSeconds)
}

// RecordError increments the error counter for a given component and error kind.
//
// Example:
//
//	metrics.RecordError("executor", "TIMEOUT")
//	metrics.RecordError("tool", "TOOL_EXECUTION")
func (m *Metrics) RecordError(component, errorKind string) {
	m.ErrorCounter.WithLabelValues(component, errorKind).Inc()
}

// RecordRoutingDecision records a routing decision's strategy and classified complexity.
//
// Example:
//
//	metrics.RecordRoutingDecision("BALANCED", "COMPLEX")
func (m *Metrics) RecordRoutingDecision(strategy, complexity string) {
	m.RoutingDecisions.WithLabelValues(strategy, complexity).Inc()
}

// circuitBreakerStateValue maps a breaker state name to its gauge value.
func circuitBreakerStateValue(state string) float64 {
	switch state {
	case "HALF_OPEN":
		return 1
	case "OPEN":
		return 2
	default:
		return 0
	}
}

// SetCircuitBreakerState sets the current state gauge for backendID and, if
// from is non-empty, records the transition.
//
// Example:
//
//	metrics.SetCircuitBreakerState("backend-1", "CLOSED", "OPEN")
func (m *Metrics) SetCircuitBreakerState(backendID, from, to string) {
	m.CircuitBreakerState.WithLabelValues(backendID).Set(circuitBreakerStateValue(to))
	if from != "" {
		m.CircuitBreakerTransitions.WithLabelValues(backendID, from, to).Inc()
	}
}

// RecordConfirmationOutcome records a resolved confirmation.
//
// Example:
//
//	metrics.RecordConfirmationOutcome("delete_file", "denied")
func (m *Metrics) RecordConfirmationOutcome(toolName, outcome string) {
	m.ConfirmationOutcomes.WithLabelValues(toolName, outcome).Inc()
}

// SetActiveChats sets the current tracked-chat gauge.
//
// Example:
//
//	metrics.SetActiveChats(42)
func (m *Metrics) SetActiveChats(count int) {
	m.ActiveChats.Set(float64(count))
}

// RecordRunAttempt records an execution-chain attempt outcome.
//
// Example:
//
//	metrics.RecordRunAttempt("success")
//	metrics.RecordRunAttempt("retry")
//	metrics.RecordRunAttempt("failed")
func (m *Metrics) RecordRunAttempt(status string) {
	m.RunAttempts.WithLabelValues(status).Inc()
}
