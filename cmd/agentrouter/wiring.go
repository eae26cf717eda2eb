package main

import (
	"context"
	"fmt"
	"os"

	"github.com/haasonsaas/agentrouter/internal/backend"
	"github.com/haasonsaas/agentrouter/internal/breaker"
	"github.com/haasonsaas/agentrouter/internal/confirm"
	"github.com/haasonsaas/agentrouter/internal/config"
	"github.com/haasonsaas/agentrouter/internal/convo"
	"github.com/haasonsaas/agentrouter/internal/eventbus"
	"github.com/haasonsaas/agentrouter/internal/executor"
	"github.com/haasonsaas/agentrouter/internal/models"
	"github.com/haasonsaas/agentrouter/internal/observability"
	"github.com/haasonsaas/agentrouter/internal/orchestrator"
	"github.com/haasonsaas/agentrouter/internal/prompt"
	"github.com/haasonsaas/agentrouter/internal/router"
	"github.com/haasonsaas/agentrouter/internal/tools"
	"github.com/haasonsaas/agentrouter/internal/tools/policy"
)

// system bundles everything runServe and runStatus need, so both can share
// one construction path instead of drifting apart.
type system struct {
	cfg          *config.Config
	orchestrator *orchestrator.Orchestrator
	registry     *models.Registry
	breakers     *breaker.Registry
	adapters     map[string]backend.Adapter
	bus          *eventbus.Bus
	metrics      *observability.Metrics
	tracer       *observability.Tracer
	tracerClose  func() error
	logger       *observability.Logger
	events       *observability.MemoryEventStore
}

// buildSystem wires every package into a running Orchestrator. Construction
// order matters: the Event Bus and Confirmation Middleware must exist
// before the Orchestrator, so the Middleware is handed a bus-backed
// publisher rather than the Orchestrator's own method.
func buildSystem(cfg *config.Config) (*system, error) {
	logger := observability.NewLogger(observability.LogConfig{
		Level:  cfg.Logging.Level,
		Format: cfg.Logging.Format,
	})

	metrics := observability.NewMetrics()

	tracingEndpoint := cfg.Tracing.Endpoint
	if !cfg.Tracing.Enabled {
		tracingEndpoint = ""
	}
	tracer, tracerClose := observability.NewTracer(observability.TraceConfig{
		ServiceName:    "agentrouter",
		Endpoint:       tracingEndpoint,
		ServiceVersion: cfg.Tracing.ServiceVersion,
		Environment:    cfg.Tracing.Environment,
		SamplingRate:   cfg.Tracing.SamplingRate,
		EnableInsecure: cfg.Tracing.Insecure,
		Attributes:     cfg.Tracing.Attributes,
	})

	registry := models.NewRegistry()
	adapters := make(map[string]backend.Adapter, len(cfg.Backends))

	for _, b := range cfg.Backends {
		adapter, err := buildAdapter(b)
		if err != nil {
			return nil, fmt.Errorf("build adapter %q: %w", b.ID, err)
		}
		adapters[b.ID] = adapter

		for _, m := range b.Models {
			registry.Register(models.NewDescriptor(
				m.ModelID,
				m.DisplayName,
				b.ID,
				m.APIModelName,
				parseCapabilities(m.Capabilities),
				models.SpeedClass(m.SpeedClass),
				m.ParameterSize,
				m.ContextWindow,
				m.Cost,
				m.QualityScore,
			))
			registry.SetAvailable(m.ModelID, true)
		}
	}

	rt := router.New(registry, router.Strategy(cfg.Router.Strategy), nil)

	breakers := breaker.NewRegistry(breaker.Config{
		FailureThreshold: cfg.Breaker.FailureThreshold,
		OpenDuration:     cfg.Breaker.OpenDuration,
	})

	engine := executor.New(registry, rt, adapters, breakers)

	bus := eventbus.New(cfg.EventBus.RingSize)

	var confirmMW *confirm.Middleware
	if cfg.Confirm.DefaultTimeout > 0 {
		confirmMW = confirm.New(loggingConfirmSender(logger), orchestrator.NewBusPublisher(bus))
	}

	promptMgr, err := prompt.New(os.DirFS("."), "prompts")
	if err != nil {
		return nil, fmt.Errorf("load prompt templates: %w", err)
	}

	toolReg := tools.NewRegistry()
	var toolPolicy *policy.Policy
	switch {
	case cfg.Tools.PolicyFile != "":
		pol, err := policy.LoadPolicyFile(cfg.Tools.PolicyFile)
		if err != nil {
			return nil, fmt.Errorf("load tool policy: %w", err)
		}
		toolPolicy = pol
	case cfg.Tools.DefaultProfile != "":
		toolPolicy = &policy.Policy{Profile: policy.Profile(cfg.Tools.DefaultProfile)}
	}

	convoMgr := convo.NewManager(cfg.Conversation.MaxMessages)

	eventStore := observability.NewMemoryEventStore(cfg.EventBus.RingSize)
	eventRecorder := observability.NewEventRecorder(eventStore, logger)

	orch := orchestrator.New(orchestrator.Config{
		Context:     convoMgr,
		Bus:         bus,
		PromptMgr:   promptMgr,
		Tools:       toolReg,
		Engine:      engine,
		Breakers:    breakers,
		ModelReg:    registry,
		ConfirmMW:   confirmMW,
		Events:      eventRecorder,
		MaxTokens:   cfg.Executor.MaxTokens,
		Temperature: cfg.Executor.Temperature,
		MaxCost:     cfg.Executor.MaxCostUSD,
		Ceiling:     cfg.Executor.Ceiling,
		ToolPolicy:  toolPolicy,
	})

	return &system{
		cfg:          cfg,
		orchestrator: orch,
		registry:     registry,
		breakers:     breakers,
		adapters:     adapters,
		bus:          bus,
		metrics:      metrics,
		tracer:       tracer,
		tracerClose:  tracerClose,
		logger:       logger,
		events:       eventStore,
	}, nil
}

// buildAdapter constructs the backend.Adapter for b. Cloud adapters read
// their API key from the process environment directly; when the config
// carries a resolved key (including an "env:VAR" indirection) that isn't
// already in the environment, it's exported under the provider's expected
// variable name first so the adapter constructor picks it up.
func buildAdapter(b config.BackendConfig) (backend.Adapter, error) {
	key := config.ResolveSecret(b.APIKey)

	switch b.Provider {
	case "anthropic":
		if key != "" && os.Getenv("ANTHROPIC_API_KEY") == "" {
			os.Setenv("ANTHROPIC_API_KEY", key)
		}
		return backend.NewCloudAnthropicAdapter(b.ID)
	case "openai":
		if key != "" && os.Getenv("OPENAI_API_KEY") == "" {
			os.Setenv("OPENAI_API_KEY", key)
		}
		return backend.NewCloudOpenAIAdapter(b.ID)
	case "local":
		return backend.NewLocalChatAdapter(b.ID, b.BaseURL), nil
	default:
		return nil, fmt.Errorf("unknown provider %q", b.Provider)
	}
}

func parseCapabilities(names []string) []models.Capability {
	caps := make([]models.Capability, 0, len(names))
	for _, n := range names {
		caps = append(caps, models.Capability(n))
	}
	return caps
}

// loggingConfirmSender is the default Sender used when no interface-specific
// delivery mechanism (chat button, CLI prompt) has registered one: it logs
// the pending confirmation so an operator can approve/deny out of band.
func loggingConfirmSender(logger *observability.Logger) confirm.Sender {
	return func(req confirm.Request) {
		logger.Warn(context.Background(), "tool confirmation required",
			"confirmationId", req.ConfirmationID,
			"toolName", req.ToolName,
			"chatId", req.ChatID,
		)
	}
}

func (s *system) close() {
	for _, a := range s.adapters {
		if err := a.Close(); err != nil {
			s.logger.Warn(context.Background(), "adapter close failed", "error", err)
		}
	}
	if s.tracerClose != nil {
		if err := s.tracerClose(context.Background()); err != nil {
			s.logger.Warn(context.Background(), "tracer shutdown failed", "error", err)
		}
	}
}
