package orchestrator

import (
	"context"
	"testing"
	"testing/fstest"
	"time"

	"github.com/haasonsaas/agentrouter/internal/backend"
	"github.com/haasonsaas/agentrouter/internal/breaker"
	"github.com/haasonsaas/agentrouter/internal/confirm"
	"github.com/haasonsaas/agentrouter/internal/convo"
	"github.com/haasonsaas/agentrouter/internal/eventbus"
	"github.com/haasonsaas/agentrouter/internal/executor"
	"github.com/haasonsaas/agentrouter/internal/models"
	"github.com/haasonsaas/agentrouter/internal/prompt"
	"github.com/haasonsaas/agentrouter/internal/router"
	"github.com/haasonsaas/agentrouter/internal/tools"
	"github.com/haasonsaas/agentrouter/internal/tools/policy"
)

type fakeAdapter struct {
	backendID string
	available bool
	result    backend.GenerationResult
}

func (f *fakeAdapter) BackendID() string { return f.backendID }
func (f *fakeAdapter) Generate(ctx context.Context, req backend.GenerationRequest) backend.GenerationResult {
	return f.result
}
func (f *fakeAdapter) IsAvailable(ctx context.Context) bool { return f.available }
func (f *fakeAdapter) Close() error                         { return nil }

func buildOrchestrator(t *testing.T, adapters map[string]backend.Adapter, strategy router.Strategy, confirmMW *confirm.Middleware) (*Orchestrator, *models.Registry, *breaker.Registry) {
	t.Helper()
	reg := models.NewRegistry()
	reg.Register(models.NewDescriptor("m1", "Model One", "backend-1", "m1",
		[]models.Capability{models.CapabilityGeneral, models.CapabilitySpeed}, models.SpeedInstant, "", 4096, 0.0, 0.5))
	rt := router.New(reg, strategy, nil)
	brk := breaker.NewRegistry(breaker.DefaultConfig())
	eng := executor.New(reg, rt, adapters, brk)

	fsys := fstest.MapFS{}
	pm, err := prompt.New(fsys, "templates")
	if err != nil {
		t.Fatalf("prompt.New: %v", err)
	}

	o := New(Config{
		Context:   convo.NewManager(convo.DefaultMaxMessages),
		Bus:       eventbus.New(100),
		PromptMgr: pm,
		Tools:     tools.NewRegistry(),
		Engine:    eng,
		Breakers:  brk,
		ModelReg:  reg,
		ConfirmMW: confirmMW,
		Ceiling:   5 * time.Second,
	})
	return o, reg, brk
}

func TestProcessMessageSuccessAppendsBothTurns(t *testing.T) {
	adapters := map[string]backend.Adapter{
		"backend-1": &fakeAdapter{backendID: "backend-1", available: true, result: backend.GenerationResult{Success: true, Text: "hello there"}},
	}
	o, _, _ := buildOrchestrator(t, adapters, router.Speed, nil)

	res := o.ProcessMessage(context.Background(), "chat1", "hi", InterfaceWeb, UserContext{UserID: "u1"})
	if !res.Success || res.Response != "hello there" {
		t.Fatalf("expected success, got %+v", res)
	}

	history := o.context.History("chat1", 0)
	if len(history) != 2 {
		t.Fatalf("expected 2 messages persisted, got %d", len(history))
	}
	if history[0].Role != convo.RoleUser || history[1].Role != convo.RoleAssistant {
		t.Fatalf("unexpected role order: %+v", history)
	}
}

func TestProcessMessageCrashSafetyAppendsUserMessageBeforeFailure(t *testing.T) {
	adapters := map[string]backend.Adapter{
		"backend-1": &fakeAdapter{backendID: "backend-1", available: true, result: backend.GenerationResult{Success: false, ErrorKind: backend.ErrServerError}},
	}
	o, _, _ := buildOrchestrator(t, adapters, router.Speed, nil)

	res := o.ProcessMessage(context.Background(), "chat1", "hi", InterfaceWeb, UserContext{UserID: "u1"})
	if res.Success {
		t.Fatal("expected failure")
	}

	history := o.context.History("chat1", 0)
	if len(history) != 1 || history[0].Role != convo.RoleUser {
		t.Fatalf("expected only the user message persisted on failure, got %+v", history)
	}
}

func TestProcessMessageEmptyMessageReturnsValidation(t *testing.T) {
	adapters := map[string]backend.Adapter{
		"backend-1": &fakeAdapter{backendID: "backend-1", available: true, result: backend.GenerationResult{Success: true, Text: "hello there"}},
	}
	o, _, _ := buildOrchestrator(t, adapters, router.Speed, nil)

	res := o.ProcessMessage(context.Background(), "chat1", "   ", InterfaceWeb, UserContext{UserID: "u1"})
	if res.Success {
		t.Fatal("expected failure for blank message")
	}
	if res.ErrorKind != ErrValidation {
		t.Fatalf("expected ErrValidation, got %s", res.ErrorKind)
	}

	history := o.context.History("chat1", 0)
	if len(history) != 0 {
		t.Fatalf("expected no message persisted for a blank input, got %+v", history)
	}
}

func TestProcessMessageCancellationReturnsCancelledWithoutAssistantTurn(t *testing.T) {
	adapters := map[string]backend.Adapter{
		"backend-1": &fakeAdapter{backendID: "backend-1", available: true, result: backend.GenerationResult{Success: true, Text: "ok"}},
	}
	o, _, _ := buildOrchestrator(t, adapters, router.Speed, nil)

	ctx, cancel := context.WithCancel(context.Background())
	cancel()
	time.Sleep(time.Millisecond)

	res := o.ProcessMessage(ctx, "chat1", "hi", InterfaceWeb, UserContext{UserID: "u1"})
	if res.Success || res.ErrorKind != ErrCancelled {
		t.Fatalf("expected CANCELLED, got %+v", res)
	}

	history := o.context.History("chat1", 0)
	for _, m := range history {
		if m.Role == convo.RoleAssistant {
			t.Fatal("expected no assistant message appended after cancellation")
		}
	}
}

func TestExecuteToolNotFound(t *testing.T) {
	o, _, _ := buildOrchestrator(t, map[string]backend.Adapter{}, router.Speed, nil)
	res := o.ExecuteTool(context.Background(), "missing", nil, "chat1", "u1", nil)
	if res.Success || res.ErrorKind != ErrToolNotFound {
		t.Fatalf("expected TOOL_NOT_FOUND, got %+v", res)
	}
}

func TestExecuteToolValidationFailure(t *testing.T) {
	o, _, _ := buildOrchestrator(t, map[string]backend.Adapter{}, router.Speed, nil)
	o.toolReg.Register(tools.Descriptor{
		Name:       "search",
		Parameters: []tools.Parameter{{Name: "query", Required: true}},
	})
	res := o.ExecuteTool(context.Background(), "search", map[string]any{}, "chat1", "u1", func(map[string]any) (any, error) {
		return "should not run", nil
	})
	if res.Success || res.ErrorKind != ErrToolValidation {
		t.Fatalf("expected TOOL_VALIDATION, got %+v", res)
	}
}

func TestExecuteToolSuccessRecordsStats(t *testing.T) {
	o, _, _ := buildOrchestrator(t, map[string]backend.Adapter{}, router.Speed, nil)
	o.toolReg.Register(tools.Descriptor{Name: "ping"})

	res := o.ExecuteTool(context.Background(), "ping", nil, "chat1", "u1", func(map[string]any) (any, error) {
		return "pong", nil
	})
	if !res.Success || res.Output != "pong" {
		t.Fatalf("expected success with pong output, got %+v", res)
	}
	snap, ok := o.toolReg.StatsFor("ping")
	if !ok || snap.Attempts != 1 || snap.Successes != 1 {
		t.Fatalf("expected recorded stats, got %+v ok=%v", snap, ok)
	}
}

func TestExecuteToolDeniedWhenConfirmationRejected(t *testing.T) {
	var mw *confirm.Middleware
	mw = confirm.New(func(r confirm.Request) {
		go func() {
			time.Sleep(10 * time.Millisecond)
			mw.Deny(r.ConfirmationID, "auto")
		}()
	}, nil)
	defer mw.Stop()

	o, _, _ := buildOrchestrator(t, map[string]backend.Adapter{}, router.Speed, mw)
	o.toolReg.Register(tools.Descriptor{Name: "delete_file", RequiresConfirmation: true})

	res := o.ExecuteTool(context.Background(), "delete_file", nil, "chat1", "u1", func(map[string]any) (any, error) {
		return nil, nil
	})
	if res.Success || res.ErrorKind != ErrToolDenied {
		t.Fatalf("expected TOOL_DENIED, got %+v", res)
	}
}

func TestExecuteToolDeniedByPolicy(t *testing.T) {
	reg := models.NewRegistry()
	rt := router.New(reg, router.Speed, nil)
	brk := breaker.NewRegistry(breaker.DefaultConfig())
	eng := executor.New(reg, rt, map[string]backend.Adapter{}, brk)
	toolReg := tools.NewRegistry()
	toolReg.Register(tools.Descriptor{Name: "web_search"})

	o := New(Config{
		Context:    convo.NewManager(convo.DefaultMaxMessages),
		Bus:        eventbus.New(100),
		Tools:      toolReg,
		Engine:     eng,
		Breakers:   brk,
		ModelReg:   reg,
		ToolPolicy: &policy.Policy{Allow: []string{"status"}},
	})

	res := o.ExecuteTool(context.Background(), "web_search", nil, "chat1", "u1", func(map[string]any) (any, error) {
		return "should not run", nil
	})
	if res.Success || res.ErrorKind != ErrToolDenied {
		t.Fatalf("expected TOOL_DENIED for a tool outside the policy's allow list, got %+v", res)
	}
}

func TestExecuteToolAllowedByDefaultFullPolicy(t *testing.T) {
	o, _, _ := buildOrchestrator(t, map[string]backend.Adapter{}, router.Speed, nil)
	o.toolReg.Register(tools.Descriptor{Name: "ping"})

	res := o.ExecuteTool(context.Background(), "ping", nil, "chat1", "u1", func(map[string]any) (any, error) {
		return "pong", nil
	})
	if !res.Success {
		t.Fatalf("expected an unconfigured ToolPolicy to default to allow-everything, got %+v", res)
	}
}

func TestHealthCheckReportsDegradedWhenAnyBackendUnavailable(t *testing.T) {
	o, _, _ := buildOrchestrator(t, map[string]backend.Adapter{}, router.Speed, nil)

	report := o.HealthCheck(context.Background(), map[string]bool{"backend-1": true, "backend-2": false})
	if report.Status != Degraded {
		t.Fatalf("expected degraded status, got %s", report.Status)
	}
}

func TestHealthCheckReportsHealthyWhenAllAvailable(t *testing.T) {
	o, _, _ := buildOrchestrator(t, map[string]backend.Adapter{}, router.Speed, nil)
	report := o.HealthCheck(context.Background(), map[string]bool{"backend-1": true})
	if report.Status != Healthy {
		t.Fatalf("expected healthy status, got %s", report.Status)
	}
}

func TestHealthCheckReportsUnhealthyWhenNoneAvailable(t *testing.T) {
	o, _, _ := buildOrchestrator(t, map[string]backend.Adapter{}, router.Speed, nil)
	report := o.HealthCheck(context.Background(), map[string]bool{"backend-1": false})
	if report.Status != Unhealthy {
		t.Fatalf("expected unhealthy status, got %s", report.Status)
	}
}
