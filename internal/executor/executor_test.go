package executor

import (
	"context"
	"testing"
	"time"

	"github.com/haasonsaas/agentrouter/internal/backend"
	"github.com/haasonsaas/agentrouter/internal/breaker"
	"github.com/haasonsaas/agentrouter/internal/models"
	"github.com/haasonsaas/agentrouter/internal/router"
)

type fakeAdapter struct {
	backendID string
	available bool
	result    backend.GenerationResult
	calls     int
}

func (f *fakeAdapter) BackendID() string { return f.backendID }
func (f *fakeAdapter) Generate(ctx context.Context, req backend.GenerationRequest) backend.GenerationResult {
	f.calls++
	return f.result
}
func (f *fakeAdapter) IsAvailable(ctx context.Context) bool { return f.available }
func (f *fakeAdapter) Close() error                         { return nil }

func setup() (*models.Registry, *router.Router) {
	reg := models.NewRegistry()
	reg.Register(models.NewDescriptor("m1", "Model One", "backend-1", "m1",
		[]models.Capability{models.CapabilityGeneral, models.CapabilitySpeed}, models.SpeedInstant, "", 4096, 0.0, 0.5))
	reg.Register(models.NewDescriptor("m2", "Model Two", "backend-2", "m2",
		[]models.Capability{models.CapabilityGeneral}, models.SpeedFast, "", 4096, 0.0, 0.6))
	rt := router.New(reg, router.Speed, nil)
	return reg, rt
}

func TestExecuteSucceedsOnPrimary(t *testing.T) {
	reg, rt := setup()
	adapters := map[string]backend.Adapter{
		"backend-1": &fakeAdapter{backendID: "backend-1", available: true, result: backend.GenerationResult{Success: true, Text: "hi", TokenCount: 3}},
	}
	e := New(reg, rt, adapters, breaker.NewRegistry(breaker.DefaultConfig()))
	res := e.Execute(context.Background(), Request{Query: "hello"})
	if !res.Success || res.Text != "hi" {
		t.Fatalf("expected success, got %+v", res)
	}
	if res.FallbacksUsed != 0 {
		t.Fatalf("expected 0 fallbacks used, got %d", res.FallbacksUsed)
	}
}

func TestExecuteFallsBackOnTransportFailure(t *testing.T) {
	reg, rt := setup()
	adapters := map[string]backend.Adapter{
		"backend-1": &fakeAdapter{backendID: "backend-1", available: true, result: backend.GenerationResult{Success: false, ErrorKind: backend.ErrTransport}},
		"backend-2": &fakeAdapter{backendID: "backend-2", available: true, result: backend.GenerationResult{Success: true, Text: "fallback ok"}},
	}
	e := New(reg, rt, adapters, breaker.NewRegistry(breaker.DefaultConfig()))
	res := e.Execute(context.Background(), Request{Query: "hello"})
	if !res.Success || res.Text != "fallback ok" {
		t.Fatalf("expected fallback success, got %+v", res)
	}
	if res.FallbacksUsed != 1 {
		t.Fatalf("expected 1 fallback used, got %d", res.FallbacksUsed)
	}
}

func TestExecuteExhaustsChainReturnsAllModelsFailed(t *testing.T) {
	reg, rt := setup()
	adapters := map[string]backend.Adapter{
		"backend-1": &fakeAdapter{backendID: "backend-1", available: true, result: backend.GenerationResult{Success: false, ErrorKind: backend.ErrTransport}},
		"backend-2": &fakeAdapter{backendID: "backend-2", available: true, result: backend.GenerationResult{Success: false, ErrorKind: backend.ErrServerError}},
	}
	e := New(reg, rt, adapters, breaker.NewRegistry(breaker.DefaultConfig()))
	res := e.Execute(context.Background(), Request{Query: "hello"})
	if res.Success {
		t.Fatal("expected failure")
	}
	if res.ErrorKind != ErrServerError {
		t.Fatalf("expected last error kind SERVER_ERROR, got %s", res.ErrorKind)
	}
}

func TestExecuteSkipsUnavailableBackendWithoutCountingAsFailure(t *testing.T) {
	reg, rt := setup()
	unavailable := &fakeAdapter{backendID: "backend-1", available: false}
	adapters := map[string]backend.Adapter{
		"backend-1": unavailable,
		"backend-2": &fakeAdapter{backendID: "backend-2", available: true, result: backend.GenerationResult{Success: true, Text: "ok"}},
	}
	br := breaker.NewRegistry(breaker.DefaultConfig())
	e := New(reg, rt, adapters, br)
	res := e.Execute(context.Background(), Request{Query: "hello"})
	if !res.Success {
		t.Fatalf("expected success via second model, got %+v", res)
	}
	if br.Get("backend-1").State() != breaker.Closed {
		t.Fatal("unavailable probe must not trip the breaker")
	}
}

func TestExecuteRespectsCancellation(t *testing.T) {
	reg, rt := setup()
	adapters := map[string]backend.Adapter{
		"backend-1": &fakeAdapter{backendID: "backend-1", available: true, result: backend.GenerationResult{Success: true, Text: "ok"}},
	}
	e := New(reg, rt, adapters, breaker.NewRegistry(breaker.DefaultConfig()))
	ctx, cancel := context.WithCancel(context.Background())
	cancel()
	time.Sleep(time.Millisecond)
	res := e.Execute(ctx, Request{Query: "hello"})
	if res.Success || res.ErrorKind != ErrCancelled {
		t.Fatalf("expected CANCELLED, got %+v", res)
	}
}
