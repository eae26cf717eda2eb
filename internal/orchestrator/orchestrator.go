// Package orchestrator implements the Agent Orchestrator: the single
// entry point that assembles context, dispatches routing/execution, gates
// tool calls behind confirmation, and persists conversation turns with
// crash-safety.
package orchestrator

import (
	"context"
	"fmt"
	"strings"
	"time"

	"github.com/google/uuid"

	"github.com/haasonsaas/agentrouter/internal/breaker"
	"github.com/haasonsaas/agentrouter/internal/confirm"
	"github.com/haasonsaas/agentrouter/internal/convo"
	"github.com/haasonsaas/agentrouter/internal/eventbus"
	"github.com/haasonsaas/agentrouter/internal/executor"
	"github.com/haasonsaas/agentrouter/internal/models"
	"github.com/haasonsaas/agentrouter/internal/observability"
	"github.com/haasonsaas/agentrouter/internal/prompt"
	"github.com/haasonsaas/agentrouter/internal/tools"
	"github.com/haasonsaas/agentrouter/internal/tools/policy"
)

// ErrorKind is the orchestrator's closed error taxonomy (spec.md §7).
type ErrorKind string

const (
	ErrValidation         ErrorKind = "VALIDATION"
	ErrAuthz              ErrorKind = "AUTHZ"
	ErrRateLimit          ErrorKind = "RATE_LIMIT"
	ErrToolNotFound       ErrorKind = "TOOL_NOT_FOUND"
	ErrToolValidation     ErrorKind = "TOOL_VALIDATION"
	ErrToolDenied         ErrorKind = "TOOL_DENIED"
	ErrToolExecution      ErrorKind = "TOOL_EXECUTION"
	ErrBackendOpen        ErrorKind = "BACKEND_OPEN"
	ErrBackendUnavailable ErrorKind = "BACKEND_UNAVAILABLE"
	ErrTimeout            ErrorKind = "TIMEOUT"
	ErrTransport          ErrorKind = "TRANSPORT"
	ErrServerError        ErrorKind = "SERVER_ERROR"
	ErrAuth               ErrorKind = "AUTH"
	ErrBadRequest         ErrorKind = "BAD_REQUEST"
	ErrAllModelsFailed    ErrorKind = "ALL_MODELS_FAILED"
	ErrCancelled          ErrorKind = "CANCELLED"
)

// fromExecutorKind converts the Execution Engine's narrower ErrorKind
// into the orchestrator's taxonomy by string cast; both enumerate the
// same underlying wire values.
func fromExecutorKind(k executor.ErrorKind) ErrorKind {
	return ErrorKind(k)
}

// Phase names a stage of the processMessage state machine.
type Phase string

const (
	PhaseValidating  Phase = "VALIDATING"
	PhaseClassifying Phase = "CLASSIFYING"
	PhaseRouted      Phase = "ROUTED"
	PhaseExecuting   Phase = "EXECUTING"
	PhasePersisted   Phase = "PERSISTED"
)

// ProcessingError reports which phase of processMessage failed, wrapping
// the underlying cause for errors.Is/errors.As callers.
type ProcessingError struct {
	Phase     Phase
	ErrorKind ErrorKind
	ChatID    string
	Cause     error
}

func (e *ProcessingError) Error() string {
	if e.Cause != nil {
		return fmt.Sprintf("processMessage failed at %s (chat %s): %s: %v", e.Phase, e.ChatID, e.ErrorKind, e.Cause)
	}
	return fmt.Sprintf("processMessage failed at %s (chat %s): %s", e.Phase, e.ChatID, e.ErrorKind)
}

func (e *ProcessingError) Unwrap() error { return e.Cause }

// InterfaceTag identifies the calling surface.
type InterfaceTag string

const (
	InterfaceTelegram InterfaceTag = "TELEGRAM"
	InterfaceWeb      InterfaceTag = "WEB"
	InterfaceSlack    InterfaceTag = "SLACK"
	InterfaceAPI      InterfaceTag = "API"
	InterfaceCLI      InterfaceTag = "CLI"
	InterfaceUnknown  InterfaceTag = "UNKNOWN"
)

// UserContext is the caller-supplied per-request context.
type UserContext struct {
	UserID        string
	Preferences   prompt.Preferences
	HasAttachment bool
}

// ProcessingResult is always returned, never an exception: success=false
// carries a terminal ErrorKind and a human-readable response.
type ProcessingResult struct {
	Success   bool
	Response  string
	ModelUsed string
	ErrorKind ErrorKind
	TraceID   string
	Err       error
}

// ToolResult is the outcome of a direct executeTool call.
type ToolResult struct {
	Success   bool
	Output    any
	ErrorKind ErrorKind
}

// Orchestrator wires every component per spec.md §2's data-flow diagram.
type Orchestrator struct {
	context     *convo.Manager
	bus         *eventbus.Bus
	promptMgr   *prompt.Manager
	toolReg     *tools.Registry
	engine      *executor.Engine
	breakers    *breaker.Registry
	registry    *models.Registry
	confirmMW   *confirm.Middleware
	maxTokens   int
	temperature float64
	maxCost     float64
	ceiling     time.Duration
	toolPolicy  *policy.Policy
	events      *observability.EventRecorder
}

// Config bundles Orchestrator construction dependencies.
type Config struct {
	Context     *convo.Manager
	Bus         *eventbus.Bus
	PromptMgr   *prompt.Manager
	Tools       *tools.Registry
	Engine      *executor.Engine
	Breakers    *breaker.Registry
	ModelReg    *models.Registry
	ConfirmMW   *confirm.Middleware // optional
	MaxTokens   int
	Temperature float64
	MaxCost     float64
	Ceiling     time.Duration                // overall processMessage bound, default 400s
	ToolPolicy  *policy.Policy               // optional; nil means every registered tool is allowed
	Events      *observability.EventRecorder // optional replayable run/tool timeline
}

// New constructs an Orchestrator.
func New(cfg Config) *Orchestrator {
	ceiling := cfg.Ceiling
	if ceiling <= 0 {
		ceiling = 400 * time.Second
	}
	toolPolicy := cfg.ToolPolicy
	if toolPolicy == nil {
		toolPolicy = &policy.Policy{Profile: policy.ProfileFull}
	}
	return &Orchestrator{
		context:     cfg.Context,
		bus:         cfg.Bus,
		promptMgr:   cfg.PromptMgr,
		toolReg:     cfg.Tools,
		engine:      cfg.Engine,
		breakers:    cfg.Breakers,
		registry:    cfg.ModelReg,
		confirmMW:   cfg.ConfirmMW,
		maxTokens:   cfg.MaxTokens,
		temperature: cfg.Temperature,
		maxCost:     cfg.MaxCost,
		ceiling:     ceiling,
		toolPolicy:  toolPolicy,
		events:      cfg.Events,
	}
}

// PublishConfirmationEvent implements confirm.EventPublisher, routing
// confirmation lifecycle transitions onto the shared event bus.
func (o *Orchestrator) PublishConfirmationEvent(eventType string, req confirm.Request) {
	publishConfirmationEvent(o.bus, eventType, req)
}

func publishConfirmationEvent(bus *eventbus.Bus, eventType string, req confirm.Request) {
	bus.Publish(eventbus.Event{
		Type:   eventbus.EventType(eventType),
		ChatID: req.ChatID,
		Payload: map[string]any{
			"confirmationId": req.ConfirmationID,
			"toolName":       req.ToolName,
		},
	})
}

// busPublisher adapts a *eventbus.Bus directly to confirm.EventPublisher,
// for composition roots that must build the Confirmation Middleware
// before the Orchestrator exists to receive its events.
type busPublisher struct{ bus *eventbus.Bus }

func (p busPublisher) PublishConfirmationEvent(eventType string, req confirm.Request) {
	publishConfirmationEvent(p.bus, eventType, req)
}

// NewBusPublisher returns a confirm.EventPublisher that forwards directly
// to bus, identical to what Orchestrator.PublishConfirmationEvent does.
func NewBusPublisher(bus *eventbus.Bus) confirm.EventPublisher {
	return busPublisher{bus: bus}
}

// ProcessMessage is the single entry point for the orchestrator's
// generate-a-response pipeline.
func (o *Orchestrator) ProcessMessage(ctx context.Context, chatID, message string, iface InterfaceTag, uctx UserContext) (result ProcessingResult) {
	ctx, cancel := context.WithTimeout(ctx, o.ceiling)
	defer cancel()

	start := time.Now()
	traceID := uuid.NewString()
	o.bus.Publish(eventbus.Event{Type: eventbus.ProcessingStarted, ChatID: chatID, TraceID: traceID})

	if o.events != nil {
		evtCtx := observability.AddRunID(observability.AddSessionID(ctx, chatID), traceID)
		o.events.RecordRunStart(evtCtx, traceID, map[string]interface{}{"interface": string(iface)})
		defer func() {
			o.events.RecordRunEnd(evtCtx, time.Since(start), result.Err)
		}()
	}

	if strings.TrimSpace(message) == "" {
		perr := &ProcessingError{Phase: PhaseValidating, ErrorKind: ErrValidation, ChatID: chatID, Cause: fmt.Errorf("message is empty")}
		o.bus.Publish(eventbus.Event{Type: eventbus.ProcessingFailed, ChatID: chatID, TraceID: traceID, Payload: map[string]any{"errorKind": string(ErrValidation)}})
		return ProcessingResult{Success: false, Response: "message cannot be empty", ErrorKind: ErrValidation, TraceID: traceID, Err: perr}
	}

	_ = o.context.History(chatID, 10)
	o.bus.Publish(eventbus.Event{Type: eventbus.ContextLoaded, ChatID: chatID, TraceID: traceID})

	// Crash-safety: append the user's message before any step that can fail.
	o.context.Append(chatID, convo.Message{Role: convo.RoleUser, Content: message, InterfaceTag: string(iface)})

	toolNames := make([]string, 0, len(o.toolReg.All()))
	for _, d := range o.toolReg.All() {
		toolNames = append(toolNames, d.Name)
	}
	toolsSummary := joinNames(toolNames)

	systemPrompt := ""
	if o.promptMgr != nil {
		rendered, err := prompt.Render(o.promptMgr, string(iface), toolsSummary, uctx.Preferences, time.Now())
		if err == nil {
			systemPrompt = rendered
		}
	}

	if ctx.Err() != nil {
		perr := &ProcessingError{Phase: PhaseClassifying, ErrorKind: ErrCancelled, ChatID: chatID, Cause: ctx.Err()}
		o.bus.Publish(eventbus.Event{Type: eventbus.ProcessingFailed, ChatID: chatID, TraceID: traceID, Payload: map[string]any{"errorKind": string(ErrCancelled)}})
		return ProcessingResult{Success: false, Response: "request was cancelled", ErrorKind: ErrCancelled, TraceID: traceID, Err: perr}
	}

	o.bus.Publish(eventbus.Event{Type: eventbus.RoutingDecision, ChatID: chatID, TraceID: traceID})
	o.bus.Publish(eventbus.Event{Type: eventbus.ModelGenerating, ChatID: chatID, TraceID: traceID})

	result := o.engine.Execute(ctx, executor.Request{
		Query:         message,
		HasAttachment: uctx.HasAttachment,
		SystemPrompt:  systemPrompt,
		MaxTokens:     o.maxTokens,
		Temperature:   o.temperature,
		MaxCost:       o.maxCost,
	})

	if !result.Success {
		kind := fromExecutorKind(result.ErrorKind)
		if ctx.Err() != nil {
			kind = ErrCancelled
		} else if kind == "" {
			kind = ErrAllModelsFailed
		}
		perr := &ProcessingError{Phase: PhaseExecuting, ErrorKind: kind, ChatID: chatID, Cause: fmt.Errorf("%s", result.Diagnostic)}
		o.bus.Publish(eventbus.Event{Type: eventbus.ProcessingFailed, ChatID: chatID, TraceID: traceID, Payload: map[string]any{"errorKind": string(kind)}})
		return ProcessingResult{Success: false, Response: humanizeFailure(kind), ErrorKind: kind, TraceID: traceID, Err: perr}
	}

	o.context.Append(chatID, convo.Message{
		Role:          convo.RoleAssistant,
		Content:       result.Text,
		InterfaceTag:  string(iface),
		ModelUsed:     result.ModelUsed,
		ExecElapsedMs: result.ElapsedMs,
	})

	o.bus.Publish(eventbus.Event{Type: eventbus.ProcessingCompleted, ChatID: chatID, TraceID: traceID})

	return ProcessingResult{Success: true, Response: result.Text, ModelUsed: result.ModelUsed, TraceID: traceID}
}

// ExecuteTool runs the direct tool-invocation path, optionally gated by
// the Confirmation Middleware.
func (o *Orchestrator) ExecuteTool(ctx context.Context, name string, params map[string]any, chatID, userID string, invoke func(map[string]any) (any, error)) ToolResult {
	descriptor, ok := o.toolReg.Get(name)
	if !ok {
		return ToolResult{Success: false, ErrorKind: ErrToolNotFound}
	}

	if decision := o.toolReg.Resolver().Decide(o.toolPolicy, name); !decision.Allowed {
		return ToolResult{Success: false, ErrorKind: ErrToolDenied}
	}

	if descriptor.RequiresConfirmation && o.confirmMW != nil {
		approved := o.confirmMW.RequestConfirmation(ctx, name, params, chatID, userID, 0)
		if !approved {
			return ToolResult{Success: false, ErrorKind: ErrToolDenied}
		}
	}

	if ok, reason := o.toolReg.Validate(name, params); !ok {
		_ = reason
		return ToolResult{Success: false, ErrorKind: ErrToolValidation}
	}

	if o.events != nil {
		o.events.RecordToolStart(observability.AddSessionID(ctx, chatID), name, params)
	}

	start := time.Now()
	output, err := invoke(params)
	elapsed := time.Since(start)
	o.toolReg.RecordExecution(name, err == nil, elapsed)

	if o.events != nil {
		o.events.RecordToolEnd(observability.AddSessionID(ctx, chatID), name, elapsed, output, err)
	}

	if err != nil {
		return ToolResult{Success: false, ErrorKind: ErrToolExecution}
	}
	return ToolResult{Success: true, Output: output}
}

// HealthStatus is the orchestrator's self-reported status level.
type HealthStatus string

const (
	Healthy  HealthStatus = "healthy"
	Degraded HealthStatus = "degraded"
	Unhealthy HealthStatus = "unhealthy"
)

// HealthReport summarizes system status for operators.
type HealthReport struct {
	Status              HealthStatus
	BackendSnapshots    map[string]breaker.Snapshot
	RegisteredModels    int
	RegisteredTools     int
	PendingConfirmations int
	TrackedChats        int
}

// HealthCheck enumerates backend availability, circuit states, registry
// sizes, pending confirmations, and context count.
func (o *Orchestrator) HealthCheck(ctx context.Context, adapterAvailability map[string]bool) HealthReport {
	snapshots := o.breakers.Snapshots()

	anyAvailable := false
	anyOpen := false
	anyUnreachable := false
	for backendID, available := range adapterAvailability {
		if available {
			anyAvailable = true
		} else {
			anyUnreachable = true
		}
		if snap, ok := snapshots[backendID]; ok && snap.State == breaker.Open {
			anyOpen = true
		}
	}

	status := Healthy
	if !anyAvailable {
		status = Unhealthy
	} else if anyOpen || anyUnreachable {
		status = Degraded
	}

	pending := 0
	if o.confirmMW != nil {
		pending = o.confirmMW.PendingCount()
	}

	return HealthReport{
		Status:               status,
		BackendSnapshots:     snapshots,
		RegisteredModels:     len(o.registry.List()),
		RegisteredTools:      len(o.toolReg.All()),
		PendingConfirmations: pending,
		TrackedChats:         o.context.ChatCount(),
	}
}

func joinNames(names []string) string {
	out := ""
	for i, n := range names {
		if i > 0 {
			out += ", "
		}
		out += n
	}
	return out
}

func humanizeFailure(kind ErrorKind) string {
	switch kind {
	case ErrAllModelsFailed:
		return "Every available model failed to respond; please try again shortly."
	case ErrCancelled:
		return "The request was cancelled."
	case ErrBackendOpen:
		return "The selected backend is temporarily unavailable (circuit open)."
	case ErrBackendUnavailable:
		return "The selected backend is temporarily unreachable."
	case ErrTimeout:
		return "The request timed out."
	case ErrAuth:
		return "Authentication with the backend failed."
	case ErrBadRequest:
		return "The request was rejected by the backend as malformed."
	default:
		return fmt.Sprintf("The request failed (%s).", kind)
	}
}
