package observability

import (
	"strings"
	"testing"
	"time"

	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/testutil"
)

func TestNewMetricsRegistersWithoutPanic(t *testing.T) {
	reg := prometheus.NewRegistry()
	m := newMetrics(reg)
	if m.LLMRequestCounter == nil {
		t.Fatal("expected metrics struct to be populated")
	}
}

func TestRecordLLMRequest(t *testing.T) {
	reg := prometheus.NewRegistry()
	m := newMetrics(reg)

	m.RecordLLMRequest("backend-1", "m1", "success", 0.25, 120)
	m.RecordLLMRequest("backend-1", "m1", "error", 0.1, 0)

	if count := testutil.CollectAndCount(m.LLMRequestCounter); count != 2 {
		t.Fatalf("expected 2 label combinations, got %d", count)
	}
	expected := `
		# HELP agentrouter_llm_tokens_total Total number of tokens used by backend and model
		# TYPE agentrouter_llm_tokens_total counter
		agentrouter_llm_tokens_total{backend_id="backend-1",model="m1"} 120
	`
	if err := testutil.CollectAndCompare(m.LLMTokensUsed, strings.NewReader(expected)); err != nil {
		t.Errorf("unexpected token metric: %v", err)
	}
}

func TestRecordLLMCost(t *testing.T) {
	reg := prometheus.NewRegistry()
	m := newMetrics(reg)

	m.RecordLLMCost("backend-1", "m1", 0.02)
	m.RecordLLMCost("backend-1", "m1", 0.03)

	expected := `
		# HELP agentrouter_llm_cost_usd_total Estimated LLM request cost in USD
		# TYPE agentrouter_llm_cost_usd_total counter
		agentrouter_llm_cost_usd_total{backend_id="backend-1",model="m1"} 0.05
	`
	if err := testutil.CollectAndCompare(m.LLMCostUSD, strings.NewReader(expected)); err != nil {
		t.Errorf("unexpected cost metric: %v", err)
	}
}

func TestRecordToolExecution(t *testing.T) {
	reg := prometheus.NewRegistry()
	m := newMetrics(reg)

	m.RecordToolExecution("web_search", "success", 0.2)
	m.RecordToolExecution("web_search", "success", 0.3)
	m.RecordToolExecution("browser", "error", 1.5)

	if count := testutil.CollectAndCount(m.ToolExecutionCounter); count != 2 {
		t.Errorf("expected 2 label combinations, got %d", count)
	}
}

func TestRecordError(t *testing.T) {
	reg := prometheus.NewRegistry()
	m := newMetrics(reg)

	m.RecordError("executor", "TIMEOUT")
	m.RecordError("executor", "TIMEOUT")
	m.RecordError("tool", "TOOL_EXECUTION")

	expected := `
		# HELP agentrouter_errors_total Total number of errors by component and error kind
		# TYPE agentrouter_errors_total counter
		agentrouter_errors_total{component="executor",error_kind="TIMEOUT"} 2
		agentrouter_errors_total{component="tool",error_kind="TOOL_EXECUTION"} 1
	`
	if err := testutil.CollectAndCompare(m.ErrorCounter, strings.NewReader(expected)); err != nil {
		t.Errorf("unexpected error metric: %v", err)
	}
}

func TestRecordRoutingDecision(t *testing.T) {
	reg := prometheus.NewRegistry()
	m := newMetrics(reg)

	m.RecordRoutingDecision("BALANCED", "COMPLEX")
	m.RecordRoutingDecision("SPEED", "TRIVIAL")

	if count := testutil.CollectAndCount(m.RoutingDecisions); count != 2 {
		t.Errorf("expected 2 label combinations, got %d", count)
	}
}

func TestSetCircuitBreakerState(t *testing.T) {
	reg := prometheus.NewRegistry()
	m := newMetrics(reg)

	m.SetCircuitBreakerState("backend-1", "", "CLOSED")
	m.SetCircuitBreakerState("backend-1", "CLOSED", "OPEN")

	expected := `
		# HELP agentrouter_circuit_breaker_state Current circuit breaker state per backend (0=closed, 1=half_open, 2=open)
		# TYPE agentrouter_circuit_breaker_state gauge
		agentrouter_circuit_breaker_state{backend_id="backend-1"} 2
	`
	if err := testutil.CollectAndCompare(m.CircuitBreakerState, strings.NewReader(expected)); err != nil {
		t.Errorf("unexpected gauge value: %v", err)
	}
	if count := testutil.CollectAndCount(m.CircuitBreakerTransitions); count != 1 {
		t.Errorf("expected 1 recorded transition, got %d", count)
	}
}

func TestRecordConfirmationOutcome(t *testing.T) {
	reg := prometheus.NewRegistry()
	m := newMetrics(reg)

	m.RecordConfirmationOutcome("delete_file", "denied")
	m.RecordConfirmationOutcome("delete_file", "approved")

	if count := testutil.CollectAndCount(m.ConfirmationOutcomes); count != 2 {
		t.Errorf("expected 2 label combinations, got %d", count)
	}
}

func TestSetActiveChats(t *testing.T) {
	reg := prometheus.NewRegistry()
	m := newMetrics(reg)

	m.SetActiveChats(7)

	expected := `
		# HELP agentrouter_active_chats Current number of chats with tracked conversation context
		# TYPE agentrouter_active_chats gauge
		agentrouter_active_chats 7
	`
	if err := testutil.CollectAndCompare(m.ActiveChats, strings.NewReader(expected)); err != nil {
		t.Errorf("unexpected gauge value: %v", err)
	}
}

func TestRecordRunAttempt(t *testing.T) {
	reg := prometheus.NewRegistry()
	m := newMetrics(reg)

	m.RecordRunAttempt("success")
	m.RecordRunAttempt("retry")
	m.RecordRunAttempt("failed")

	if count := testutil.CollectAndCount(m.RunAttempts); count != 3 {
		t.Errorf("expected 3 label combinations, got %d", count)
	}
}

func TestConcurrentMetrics(t *testing.T) {
	reg := prometheus.NewRegistry()
	m := newMetrics(reg)

	done := make(chan bool)
	iterations := 100

	go func() {
		for i := 0; i < iterations; i++ {
			m.RecordToolExecution("search", "success", 0.01)
			time.Sleep(time.Microsecond)
		}
		done <- true
	}()

	go func() {
		for i := 0; i < iterations; i++ {
			m.RecordError("executor", "TRANSPORT")
			time.Sleep(time.Microsecond)
		}
		done <- true
	}()

	<-done
	<-done

	if testutil.CollectAndCount(m.ToolExecutionCounter) < 1 {
		t.Error("expected concurrent metric recording to work")
	}
}
