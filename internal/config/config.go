// Package config loads the agentrouter YAML configuration: backend
// credentials, routing strategy, circuit breaker thresholds, and the
// ambient server/observability settings.
package config

import (
	"fmt"
	"io"
	"os"
	"strings"
	"time"

	"gopkg.in/yaml.v3"
)

// Config is the top-level agentrouter configuration.
type Config struct {
	Server       ServerConfig       `yaml:"server"`
	Logging      LoggingConfig      `yaml:"logging"`
	Tracing      TracingConfig      `yaml:"tracing"`
	Backends     []BackendConfig    `yaml:"backends"`
	Router       RouterConfig       `yaml:"router"`
	Breaker      BreakerConfig      `yaml:"breaker"`
	Executor     ExecutorConfig     `yaml:"executor"`
	Confirm      ConfirmConfig      `yaml:"confirm"`
	Conversation ConversationConfig `yaml:"conversation"`
	EventBus     EventBusConfig     `yaml:"event_bus"`
	Tools        ToolsConfig        `yaml:"tools"`
}

// Load reads path, expands environment variables, resolves $include
// directives, applies defaults, and validates the result.
func Load(path string) (*Config, error) {
	raw, err := LoadRaw(path)
	if err != nil {
		return nil, err
	}

	cfg, err := decodeRawConfig(raw)
	if err != nil {
		return nil, err
	}

	applyDefaults(cfg)

	if err := validateConfig(cfg); err != nil {
		return nil, err
	}

	return cfg, nil
}

func decodeRawConfig(raw map[string]any) (*Config, error) {
	payload, err := yaml.Marshal(raw)
	if err != nil {
		return nil, fmt.Errorf("serialize config: %w", err)
	}
	var cfg Config
	decoder := yaml.NewDecoder(strings.NewReader(string(payload)))
	decoder.KnownFields(true)
	if err := decoder.Decode(&cfg); err != nil {
		return nil, fmt.Errorf("parse config: %w", err)
	}
	if err := decoder.Decode(&struct{}{}); err != io.EOF {
		return nil, fmt.Errorf("parse config: expected single document")
	}
	return &cfg, nil
}

func applyDefaults(cfg *Config) {
	applyServerDefaults(&cfg.Server)
	applyLoggingDefaults(&cfg.Logging)
	applyTracingDefaults(&cfg.Tracing)
	applyRouterDefaults(&cfg.Router)
	applyBreakerDefaults(&cfg.Breaker)
	applyExecutorDefaults(&cfg.Executor)
	applyConfirmDefaults(&cfg.Confirm)
	applyConversationDefaults(&cfg.Conversation)
	applyEventBusDefaults(&cfg.EventBus)
	for i := range cfg.Backends {
		applyBackendDefaults(&cfg.Backends[i])
	}
}

func validateConfig(cfg *Config) error {
	if len(cfg.Backends) == 0 {
		return fmt.Errorf("config: at least one backend is required")
	}
	seen := make(map[string]bool, len(cfg.Backends))
	for _, b := range cfg.Backends {
		if strings.TrimSpace(b.ID) == "" {
			return fmt.Errorf("config: backend entries require an id")
		}
		if seen[b.ID] {
			return fmt.Errorf("config: duplicate backend id %q", b.ID)
		}
		seen[b.ID] = true
		if err := validateBackend(b); err != nil {
			return fmt.Errorf("config: backend %q: %w", b.ID, err)
		}
	}
	if err := validateRouter(cfg.Router); err != nil {
		return fmt.Errorf("config: router: %w", err)
	}
	return nil
}

func durationOrDefault(d, fallback time.Duration) time.Duration {
	if d <= 0 {
		return fallback
	}
	return d
}

// ResolveSecret expands a "env:VAR_NAME" indirection used for API keys so
// that raw secrets never need to live in the config file itself.
func ResolveSecret(value string) string {
	const prefix = "env:"
	if strings.HasPrefix(value, prefix) {
		return os.Getenv(strings.TrimPrefix(value, prefix))
	}
	return value
}
