// Package observability provides comprehensive monitoring and debugging capabilities
// for the agent orchestrator through metrics, structured logging, distributed tracing,
// and a replayable event timeline.
//
// # Overview
//
// The observability package implements the three pillars of observability, plus a
// timeline store for post-mortem debugging of individual runs:
//
//  1. Metrics - Quantitative measurements using Prometheus
//  2. Logging - Structured logs with sensitive data redaction
//  3. Tracing - Distributed request tracing with OpenTelemetry
//  4. Events - A queryable, replayable timeline of a run's lifecycle
//
// # Architecture
//
// The package is designed to be:
//   - Low-overhead: Minimal performance impact on production systems
//   - Type-safe: Strongly-typed APIs reduce configuration errors
//   - Production-ready: Built-in security (redaction) and reliability features
//   - Standards-based: Uses Prometheus, OpenTelemetry, and slog
//
// # Metrics
//
// Metrics are implemented using Prometheus client libraries and track:
//   - LLM backend request latency, token usage, and estimated cost
//   - Tool execution performance and outcomes
//   - Routing decisions by strategy and classified complexity
//   - Circuit breaker state and transitions per backend
//   - Confirmation outcomes for gated tool calls
//   - Error rates by component and error kind
//   - Active tracked-conversation counts
//
// Example usage:
//
//	metrics := observability.NewMetrics()
//	defer prometheus.Handler() // Expose metrics endpoint
//
//	// Track an LLM backend request
//	start := time.Now()
//	// ... call backend.Generate ...
//	metrics.RecordLLMRequest("backend-1", "m1", "success", time.Since(start).Seconds(), tokens)
//
//	// Track tool execution
//	start = time.Now()
//	// ... execute tool ...
//	metrics.RecordToolExecution("web_search", "success", time.Since(start).Seconds())
//
// # Logging
//
// Logging is built on Go's slog package with enhancements for:
//   - Automatic request ID correlation from context
//   - Sensitive data redaction (API keys, passwords, tokens)
//   - JSON output for production, text for development
//   - Configurable log levels
//
// Example usage:
//
//	logger := observability.NewLogger(observability.LogConfig{
//	    Level:     "info",
//	    Format:    "json",
//	    AddSource: true,
//	})
//
//	// Add context IDs for correlation
//	ctx := observability.AddRequestID(ctx, requestID)
//	ctx = observability.AddSessionID(ctx, chatID)
//
//	// Structured logging with automatic context correlation
//	logger.Info(ctx, "processing message",
//	    "interface", "telegram",
//	    "chat_id", chatID,
//	    "message_length", len(content),
//	)
//
//	// Error logging with automatic redaction
//	logger.Error(ctx, "backend request failed",
//	    "error", err,
//	    "backend_id", backendID,
//	    "api_key", apiKey, // Automatically redacted
//	)
//
// # Tracing
//
// Distributed tracing uses OpenTelemetry to track a message through the orchestrator
// pipeline:
//   - End-to-end request visualization (classify, route, generate, execute tools)
//   - Performance bottleneck identification
//   - Backend and tool dependency mapping
//   - Error correlation across pipeline phases
//
// Example usage:
//
//	tracer, shutdown := observability.NewTracer(observability.TraceConfig{
//	    ServiceName:    "agentrouter",
//	    ServiceVersion: "1.0.0",
//	    Environment:    "production",
//	    Endpoint:       "localhost:4317", // OTLP collector
//	    SamplingRate:   0.1,              // Sample 10% of traces
//	})
//	defer shutdown(context.Background())
//
//	// Trace a full processMessage run
//	ctx, span := tracer.TraceProcessMessage(ctx, "telegram", chatID)
//	defer span.End()
//
//	// Trace a routing decision
//	ctx, routeSpan := tracer.TraceRouting(ctx, "BALANCED")
//	defer routeSpan.End()
//
//	// Trace a backend request
//	ctx, llmSpan := tracer.TraceLLMRequest(ctx, "backend-1", "m1")
//	defer llmSpan.End()
//	tracer.SetAttributes(llmSpan, "prompt_tokens", 100, "completion_tokens", 500)
//
//	// Trace tool execution
//	ctx, toolSpan := tracer.TraceToolExecution(ctx, "web_search")
//	defer toolSpan.End()
//	if err != nil {
//	    tracer.RecordError(toolSpan, err)
//	}
//
// # Events
//
// The event timeline records a durable, queryable history of a run, independent of
// the live eventbus.Bus that drives interface-facing progress notifications. Where
// eventbus is for subscribers watching a run in flight, EventStore is for replaying
// one after the fact.
//
//	store := observability.NewMemoryEventStore(10000)
//	recorder := observability.NewEventRecorder(store, logger)
//
//	ctx = observability.AddRunID(ctx, runID)
//	recorder.RecordRunStart(ctx, runID, nil)
//	recorder.RecordToolStart(ctx, "web_search", params)
//	recorder.RecordToolEnd(ctx, "web_search", elapsed, result, nil)
//	recorder.RecordRunEnd(ctx, elapsed, nil)
//
//	events, _ := store.GetByRunID(runID)
//	timeline := observability.BuildTimeline(events)
//	fmt.Println(observability.FormatTimeline(timeline))
//
// # Context Propagation
//
// All components integrate with Go's context for automatic correlation:
//
//	// Add IDs to context
//	ctx = observability.AddRequestID(ctx, "req-123")
//	ctx = observability.AddSessionID(ctx, "chat-456")
//	ctx = observability.AddUserID(ctx, "user-789")
//	ctx = observability.AddRunID(ctx, "run-abc")
//
//	// IDs automatically appear in logs
//	logger.Info(ctx, "processing") // Includes request_id, session_id, etc.
//
//	// Spans inherit context
//	ctx, span := tracer.Start(ctx, "operation")
//	// Trace context propagates to child spans
//
// # Integration Example
//
// Complete example integrating metrics, logging, and tracing around a ProcessMessage call:
//
//	func (o *Orchestrator) trackedProcessMessage(ctx context.Context, chatID, msg string) ProcessingResult {
//	    ctx = observability.AddSessionID(ctx, chatID)
//	    ctx, span := tracer.TraceProcessMessage(ctx, "telegram", chatID)
//	    defer span.End()
//
//	    start := time.Now()
//	    result := o.ProcessMessage(ctx, chatID, msg, InterfaceTelegram, UserContext{})
//
//	    status := "success"
//	    if !result.Success {
//	        status = "error"
//	        metrics.RecordError("orchestrator", string(result.ErrorKind))
//	        tracer.RecordError(span, result.Err)
//	        logger.Error(ctx, "processing failed", "error", result.Err)
//	    }
//	    metrics.RecordRunAttempt(status)
//	    logger.Info(ctx, "processing completed", "duration_ms", time.Since(start).Milliseconds())
//
//	    return result
//	}
//
// # Security Considerations
//
// The logging component automatically redacts:
//   - API keys (Anthropic, OpenAI, generic)
//   - Passwords and secrets
//   - JWT tokens
//   - Bearer tokens
//   - Custom patterns via configuration
//
// Sensitive fields in maps are also redacted:
//   - password, passwd, pwd
//   - secret, api_key, apikey
//   - token, auth, authorization
//   - private_key, privatekey
//
// # Performance
//
// The observability system is designed for minimal overhead:
//   - Metrics use lock-free counters where possible
//   - Logging with slog is highly efficient
//   - Tracing supports sampling to reduce overhead
//   - Context propagation is zero-allocation in most cases
//
// Typical overhead:
//   - Metrics: <1% CPU, ~10KB memory per metric
//   - Logging: ~1-5μs per log call
//   - Tracing: ~2-10μs per span (when sampled)
//
// # Configuration
//
// All components support configuration via structs:
//
//	// Metrics - no configuration needed, auto-registered
//	metrics := observability.NewMetrics()
//
//	// Logging - configurable output, level, format
//	logger := observability.NewLogger(observability.LogConfig{
//	    Level:          os.Getenv("LOG_LEVEL"),
//	    Format:         "json",
//	    AddSource:      true,
//	    RedactPatterns: []string{`custom-secret-\d+`},
//	})
//
//	// Tracing - configurable sampling, endpoint, attributes
//	tracer, shutdown := observability.NewTracer(observability.TraceConfig{
//	    ServiceName:    "agentrouter",
//	    ServiceVersion: version,
//	    Environment:    env,
//	    Endpoint:       os.Getenv("OTEL_ENDPOINT"),
//	    SamplingRate:   0.1,
//	    Attributes: map[string]string{
//	        "deployment.region": region,
//	        "deployment.cluster": cluster,
//	    },
//	})
//	defer shutdown(context.Background())
//
// # Testing
//
// All components provide testable interfaces:
//   - Metrics can be verified using prometheus/testutil against an isolated registry
//   - Logging can write to bytes.Buffer for assertions
//   - Tracing works with no-op exporters in tests
//   - Events use MemoryEventStore, no external dependency needed
//
// # Best Practices
//
//  1. Always propagate context to enable correlation
//  2. Use defer for span.End() to ensure spans are closed
//  3. Record errors on both metrics and traces
//  4. Use structured logging with key-value pairs
//  5. Set appropriate sampling rates for high-traffic systems
//  6. Add relevant attributes to spans for debugging
//  7. Use typed metric labels (avoid high-cardinality values)
//  8. Call shutdown() on tracer during graceful shutdown
//
// # Monitoring Dashboard
//
// The metrics exposed can be used to build dashboards:
//
//	# Request throughput
//	rate(agentrouter_llm_requests_total[5m])
//
//	# LLM request latency (95th percentile)
//	histogram_quantile(0.95, rate(agentrouter_llm_request_duration_seconds_bucket[5m]))
//
//	# Error rate
//	rate(agentrouter_errors_total[5m])
//
//	# Active chats
//	agentrouter_active_chats
//
//	# Tool execution time
//	rate(agentrouter_tool_execution_duration_seconds_sum[5m]) /
//	rate(agentrouter_tool_execution_duration_seconds_count[5m])
//
// # Alerting
//
// Recommended alerts based on metrics:
//   - High error rate: agentrouter_errors_total > threshold
//   - High LLM latency: p95 latency > 10s
//   - Open circuit breakers: agentrouter_circuit_breaker_state == 2
//   - Chat accumulation: agentrouter_active_chats growing unbounded
//
// # Further Reading
//
//   - Prometheus best practices: https://prometheus.io/docs/practices/naming/
//   - OpenTelemetry specification: https://opentelemetry.io/docs/specs/otel/
//   - slog documentation: https://pkg.go.dev/log/slog
package observability
