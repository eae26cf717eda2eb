// Package executor implements the timed, fallback-chain Execution Engine:
// it turns a RoutingDecision into an ExecutionResult by walking the
// primary-then-fallbacks chain through each model's backend adapter,
// guarded by that backend's circuit breaker.
package executor

import (
	"context"
	"fmt"
	"strings"
	"time"

	"github.com/haasonsaas/agentrouter/internal/backend"
	"github.com/haasonsaas/agentrouter/internal/breaker"
	"github.com/haasonsaas/agentrouter/internal/models"
	"github.com/haasonsaas/agentrouter/internal/router"
)

// ErrorKind mirrors the generate-call and chain-level subset of the
// orchestrator's closed ErrorKind taxonomy. It is a plain string type so
// callers in other packages (notably internal/orchestrator) can convert
// it to their own enum by simple string cast.
type ErrorKind string

const (
	ErrTimeout            ErrorKind = "TIMEOUT"
	ErrTransport          ErrorKind = "TRANSPORT"
	ErrAuth               ErrorKind = "AUTH"
	ErrBadRequest         ErrorKind = "BAD_REQUEST"
	ErrServerError        ErrorKind = "SERVER_ERROR"
	ErrBackendOpen        ErrorKind = "BACKEND_OPEN"
	ErrBackendUnavailable ErrorKind = "BACKEND_UNAVAILABLE"
	ErrAllModelsFailed    ErrorKind = "ALL_MODELS_FAILED"
	ErrCancelled          ErrorKind = "CANCELLED"
)

func fromBackendKind(k backend.ErrorKind) ErrorKind {
	switch k {
	case backend.ErrTimeout:
		return ErrTimeout
	case backend.ErrTransport:
		return ErrTransport
	case backend.ErrAuth:
		return ErrAuth
	case backend.ErrBadRequest:
		return ErrBadRequest
	case backend.ErrServerError:
		return ErrServerError
	default:
		return ErrTransport
	}
}

// Request bundles the execute() inputs.
type Request struct {
	Query           string
	HasAttachment   bool
	SystemPrompt    string
	MaxTokens       int
	Temperature     float64
	MaxCost         float64
	Timeout         time.Duration // default 60s if zero
	CircuitOverride *breaker.Registry
}

// Result is the value the Execution Engine returns.
type Result struct {
	Success       bool
	Text          string
	ModelUsed     string
	Tokens        int
	ElapsedMs     int64
	FallbacksUsed int
	ErrorKind     ErrorKind
	Diagnostic    string
}

// Engine ties a Router, a Model Registry, a backend adapter per backendId,
// and a per-backend circuit breaker registry together.
type Engine struct {
	registry       *models.Registry
	router         *router.Router
	adapters       map[string]backend.Adapter
	breakers       *breaker.Registry
	defaultTimeout time.Duration
}

// New constructs an Engine. adapters is keyed by backendId, matching
// ModelDescriptor.BackendID.
func New(registry *models.Registry, rt *router.Router, adapters map[string]backend.Adapter, breakers *breaker.Registry) *Engine {
	return &Engine{
		registry:       registry,
		router:         rt,
		adapters:       adapters,
		breakers:       breakers,
		defaultTimeout: 60 * time.Second,
	}
}

// Execute runs req through the routing decision's fallback chain.
func (e *Engine) Execute(ctx context.Context, req Request) Result {
	decision := e.router.Route(req.Query, req.HasAttachment, req.MaxCost)

	if decision.Primary == router.UnavailableModelID {
		return Result{Success: false, ErrorKind: ErrAllModelsFailed, Diagnostic: "no model available anywhere"}
	}

	chain := append([]string{decision.Primary}, decision.Fallbacks...)
	timeout := req.Timeout
	if timeout <= 0 {
		timeout = e.defaultTimeout
	}

	var diagnostics []string
	var lastKind ErrorKind = ErrAllModelsFailed
	fallbacksUsed := 0

	for i, modelID := range chain {
		if ctx.Err() != nil {
			return Result{Success: false, ErrorKind: ErrCancelled, FallbacksUsed: fallbacksUsed, Diagnostic: strings.Join(diagnostics, "; ")}
		}

		desc, ok := e.registry.Get(modelID)
		if !ok {
			diagnostics = append(diagnostics, fmt.Sprintf("%s: not found in registry", modelID))
			continue
		}

		cb := e.breakers.Get(desc.BackendID)
		allowed, isProbe := cb.Allow()
		if !allowed {
			diagnostics = append(diagnostics, fmt.Sprintf("%s: circuit open for backend %s", modelID, desc.BackendID))
			lastKind = ErrBackendOpen
			if i > 0 {
				fallbacksUsed++
			}
			continue
		}

		adapter, ok := e.adapters[desc.BackendID]
		if !ok {
			cb.RecordSuccess(isProbe) // release probe slot, this is not the backend's fault
			diagnostics = append(diagnostics, fmt.Sprintf("%s: no adapter registered for backend %s", modelID, desc.BackendID))
			continue
		}

		availCtx, cancelAvail := context.WithTimeout(ctx, 5*time.Second)
		available := adapter.IsAvailable(availCtx)
		cancelAvail()
		if !available {
			cb.RecordSuccess(isProbe) // availability miss is not a generate failure
			diagnostics = append(diagnostics, fmt.Sprintf("%s: backend unavailable", modelID))
			lastKind = ErrBackendUnavailable
			if i > 0 {
				fallbacksUsed++
			}
			continue
		}

		genCtx, cancelGen := context.WithTimeout(ctx, timeout)
		genResult := adapter.Generate(genCtx, backend.GenerationRequest{
			Prompt:       req.Query,
			ModelName:    desc.APIModelName,
			SystemPrompt: req.SystemPrompt,
			MaxTokens:    req.MaxTokens,
			Temperature:  req.Temperature,
		})
		cancelGen()

		if genResult.Success {
			cb.RecordSuccess(isProbe)
			return Result{
				Success:       true,
				Text:          genResult.Text,
				ModelUsed:     desc.DisplayName,
				Tokens:        genResult.TokenCount,
				ElapsedMs:     genResult.Elapsed.Milliseconds(),
				FallbacksUsed: i,
			}
		}

		kind := fromBackendKind(genResult.ErrorKind)
		if genResult.ErrorKind.CountsAsFailure() {
			cb.RecordFailure(isProbe)
		} else {
			cb.RecordSuccess(isProbe)
		}
		lastKind = kind
		diagnostics = append(diagnostics, fmt.Sprintf("%s: %s (%v)", modelID, kind, genResult.Err))
		if i > 0 {
			fallbacksUsed++
		}
	}

	return Result{
		Success:       false,
		ErrorKind:     lastKind,
		FallbacksUsed: fallbacksUsed,
		Diagnostic:    strings.Join(diagnostics, "; "),
	}
}
