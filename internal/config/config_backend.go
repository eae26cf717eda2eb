package config

import "fmt"

// BackendConfig describes one LLM backend adapter to wire into the
// executor's fallback chain.
type BackendConfig struct {
	// ID is the backend identifier used by breaker, router, and metrics labels.
	ID string `yaml:"id"`

	// Provider selects the adapter implementation: "anthropic", "openai",
	// or "local" (an OpenAI- or ollama-compatible HTTP endpoint).
	Provider string `yaml:"provider"`

	// APIKey is the credential, or an "env:VAR_NAME" indirection resolved
	// by ResolveSecret.
	APIKey string `yaml:"api_key"`

	// BaseURL overrides the provider's default endpoint; required for
	// provider "local".
	BaseURL string `yaml:"base_url"`

	// Models lists the model descriptors this backend serves.
	Models []ModelConfig `yaml:"models"`
}

// ModelConfig describes one model served by a backend, matching the
// fields models.NewDescriptor needs to register it.
type ModelConfig struct {
	ModelID       string   `yaml:"model_id"`
	DisplayName   string   `yaml:"display_name"`
	APIModelName  string   `yaml:"api_model_name"`
	Capabilities  []string `yaml:"capabilities"`
	SpeedClass    string   `yaml:"speed_class"`
	ParameterSize string   `yaml:"parameter_size"`
	ContextWindow int      `yaml:"context_window"`
	Cost          float64  `yaml:"cost"`
	QualityScore  float64  `yaml:"quality_score"`
}

func applyBackendDefaults(cfg *BackendConfig) {
	if cfg.Provider == "" {
		cfg.Provider = "anthropic"
	}
}

func validateBackend(cfg BackendConfig) error {
	switch cfg.Provider {
	case "anthropic", "openai", "local":
	default:
		return fmt.Errorf("unknown provider %q", cfg.Provider)
	}
	if cfg.Provider == "local" && cfg.BaseURL == "" {
		return fmt.Errorf("local provider requires base_url")
	}
	if len(cfg.Models) == 0 {
		return fmt.Errorf("at least one model is required")
	}
	return nil
}
